// Copyright 2025 The toolgate Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package tools

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubTool is a minimal Tool for registry tests.
type stubTool struct {
	name   string
	schema *Schema
	run    func(ctx context.Context, inputs map[string]interface{}) (map[string]interface{}, error)
}

func (s *stubTool) Name() string        { return s.name }
func (s *stubTool) Description() string { return "stub tool" }
func (s *stubTool) Schema() *Schema     { return s.schema }
func (s *stubTool) Execute(ctx context.Context, inputs map[string]interface{}) (map[string]interface{}, error) {
	if s.run != nil {
		return s.run(ctx, inputs)
	}
	return map[string]interface{}{}, nil
}

func newStubTool(name string) *stubTool {
	return &stubTool{
		name: name,
		schema: &Schema{
			Inputs: &ParameterSchema{Type: "object"},
		},
	}
}

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(newStubTool("echo")))

	tool, ok := r.Get("echo")
	require.True(t, ok)
	assert.Equal(t, "echo", tool.Name())

	_, ok = r.Get("missing")
	assert.False(t, ok)

	assert.Equal(t, 1, r.Count())
	assert.Equal(t, []string{"echo"}, r.Names())
	assert.Len(t, r.List(), 1)
}

func TestRegistryRegisterRejections(t *testing.T) {
	r := NewRegistry()

	assert.Error(t, r.Register(nil))
	assert.Error(t, r.Register(newStubTool("")))

	noSchema := newStubTool("no-schema")
	noSchema.schema = nil
	assert.Error(t, r.Register(noSchema))

	require.NoError(t, r.Register(newStubTool("dup")))
	assert.Error(t, r.Register(newStubTool("dup")))
	assert.Equal(t, 1, r.Count())
}

func TestRegistryUnregister(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(newStubTool("gone")))
	require.NoError(t, r.Unregister("gone"))

	_, ok := r.Get("gone")
	assert.False(t, ok)

	assert.Error(t, r.Unregister("gone"))
}

func TestRegistryExecute(t *testing.T) {
	r := NewRegistry()

	echo := newStubTool("echo")
	echo.run = func(_ context.Context, inputs map[string]interface{}) (map[string]interface{}, error) {
		return map[string]interface{}{"got": inputs["msg"]}, nil
	}
	require.NoError(t, r.Register(echo))

	out, err := r.Execute(context.Background(), "echo", map[string]interface{}{"msg": "hi"})
	require.NoError(t, err)
	assert.Equal(t, "hi", out["got"])

	_, err = r.Execute(context.Background(), "missing", nil)
	assert.Error(t, err)
}

func TestRegistryExecutePropagatesError(t *testing.T) {
	r := NewRegistry()

	boom := newStubTool("boom")
	wantErr := errors.New("execution failed")
	boom.run = func(context.Context, map[string]interface{}) (map[string]interface{}, error) {
		return nil, wantErr
	}
	require.NoError(t, r.Register(boom))

	_, err := r.Execute(context.Background(), "boom", nil)
	assert.ErrorIs(t, err, wantErr)
}
