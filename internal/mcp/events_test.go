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
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capturingEmitter(t *testing.T) (*EventEmitter, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	return NewEventEmitter(logger), &buf
}

func lastLogRecord(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.NotEmpty(t, lines)

	var record map[string]any
	require.NoError(t, json.Unmarshal(lines[len(lines)-1], &record))
	return record
}

func TestEmitStarted(t *testing.T) {
	e, buf := capturingEmitter(t)
	e.EmitStarted("sqlite")

	record := lastLogRecord(t, buf)
	assert.Equal(t, "tool server event", record["msg"])
	assert.Equal(t, "sqlite", record["server"])
	assert.Equal(t, string(EventStarted), record["type"])
}

func TestEmitFailedIncludesError(t *testing.T) {
	e, buf := capturingEmitter(t)
	e.EmitFailed("sqlite", errors.New("handshake timed out"))

	record := lastLogRecord(t, buf)
	assert.Equal(t, string(EventFailed), record["type"])
	assert.Equal(t, "handshake timed out", record["error"])
}

func TestEmitToolsChangedIncludesCount(t *testing.T) {
	e, buf := capturingEmitter(t)
	e.EmitToolsChanged("sqlite", 5)

	record := lastLogRecord(t, buf)
	assert.Equal(t, string(EventToolsChanged), record["type"])
	assert.EqualValues(t, 5, record["tool_count"])
}

func TestEmitRestartingIncludesAttempt(t *testing.T) {
	e, buf := capturingEmitter(t)
	e.EmitRestarting("sqlite", 3)

	record := lastLogRecord(t, buf)
	assert.Equal(t, string(EventRestarting), record["type"])
	assert.EqualValues(t, 3, record["attempt"])
}
