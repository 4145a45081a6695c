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

package mcp

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorFormatting(t *testing.T) {
	err := NewError(ErrorCodeTimeout, "request timed out")
	assert.Equal(t, "request timed out", err.Error())

	err = err.WithDetail("after 30s")
	assert.Equal(t, "request timed out: after 30s", err.Error())
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("pipe closed")
	err := NewError(ErrorCodeBrokenPipe, "write failed").WithCause(cause)

	assert.ErrorIs(t, err, cause)
}

func TestIsCodeThroughWrapping(t *testing.T) {
	inner := ErrRequestTimeout(MethodCallTool, 5*time.Second)
	wrapped := fmt.Errorf("call failed: %w", inner)

	assert.True(t, IsCode(wrapped, ErrorCodeTimeout))
	assert.False(t, IsCode(wrapped, ErrorCodeSessionClosed))
	assert.False(t, IsCode(errors.New("plain"), ErrorCodeTimeout))
	assert.False(t, IsCode(nil, ErrorCodeTimeout))
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, ErrorCodeNotReady, CodeOf(ErrNotReady(SessionNotStarted)))
	assert.Equal(t, ErrorCodeInternal, CodeOf(errors.New("plain")))
}

func TestWrapError(t *testing.T) {
	cause := errors.New("disk full")
	err := WrapError(cause, ErrorCodeConfig, "could not save configuration")

	require.True(t, IsCode(err, ErrorCodeConfig))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "could not save configuration")
}

func TestErrUnknownToolListsKnownTools(t *testing.T) {
	err := ErrUnknownTool("wrte_query", []string{"read_query", "write_query"})
	assert.Contains(t, err.Error(), "wrte_query")
	assert.Contains(t, err.Detail, "read_query")
	assert.Contains(t, err.Detail, "write_query")
}

func TestErrMalformedMessageTruncates(t *testing.T) {
	err := ErrMalformedMessage([]byte(strings.Repeat("x", 1000)), nil)
	assert.LessOrEqual(t, len(err.Detail), 300)
}

func TestErrSessionClosedNilCause(t *testing.T) {
	err := ErrSessionClosed(nil)
	assert.Equal(t, ErrorCodeSessionClosed, err.Code)
	assert.NoError(t, err.Unwrap())
}
