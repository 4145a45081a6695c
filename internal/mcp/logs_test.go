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
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entryWithMessage(msg string) LogEntry {
	return LogEntry{Timestamp: time.Now(), Level: LogLevelInfo, Message: msg, Source: "stderr"}
}

func messages(entries []LogEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Message
	}
	return out
}

func TestRingBufferBasics(t *testing.T) {
	rb := NewRingBuffer(5)
	require.Equal(t, 0, rb.Count())

	rb.Add(entryWithMessage("one"))
	rb.Add(entryWithMessage("two"))
	require.Equal(t, 2, rb.Count())
	assert.Equal(t, []string{"one", "two"}, messages(rb.GetAll()))
}

func TestRingBufferWrapAround(t *testing.T) {
	rb := NewRingBuffer(3)
	for i := 1; i <= 5; i++ {
		rb.Add(entryWithMessage(fmt.Sprintf("line%d", i)))
	}

	require.Equal(t, 3, rb.Count())
	assert.Equal(t, []string{"line3", "line4", "line5"}, messages(rb.GetAll()),
		"oldest entries must be evicted first")
}

func TestRingBufferGetLast(t *testing.T) {
	rb := NewRingBuffer(10)
	for i := 1; i <= 5; i++ {
		rb.Add(entryWithMessage(fmt.Sprintf("line%d", i)))
	}

	assert.Equal(t, []string{"line4", "line5"}, messages(rb.GetLast(2)))
	assert.Len(t, rb.GetLast(100), 5, "asking for more than stored returns everything")
}

func TestRingBufferGetSince(t *testing.T) {
	rb := NewRingBuffer(10)
	old := LogEntry{Timestamp: time.Now().Add(-time.Hour), Message: "old"}
	recent := LogEntry{Timestamp: time.Now(), Message: "recent"}
	rb.Add(old)
	rb.Add(recent)

	got := rb.GetSince(time.Now().Add(-time.Minute))
	require.Len(t, got, 1)
	assert.Equal(t, "recent", got[0].Message)
}

func TestRingBufferClear(t *testing.T) {
	rb := NewRingBuffer(3)
	rb.Add(entryWithMessage("x"))
	rb.Clear()
	require.Equal(t, 0, rb.Count())
	require.Empty(t, rb.GetAll())

	rb.Add(entryWithMessage("after clear"))
	assert.Equal(t, []string{"after clear"}, messages(rb.GetAll()))
}

func TestLogCapturePerServer(t *testing.T) {
	lc := NewLogCapture()
	lc.AddLog("alpha", LogLevelInfo, "from alpha", "stderr")
	lc.AddLog("beta", LogLevelError, "from beta", "stderr")

	assert.Equal(t, []string{"from alpha"}, messages(lc.GetLogs("alpha", 0, time.Time{})))
	assert.Equal(t, []string{"from beta"}, messages(lc.GetLogs("beta", 0, time.Time{})))
	assert.Nil(t, lc.GetLogs("gamma", 0, time.Time{}))

	lc.ClearLogs("alpha")
	assert.Empty(t, lc.GetLogs("alpha", 0, time.Time{}))

	lc.RemoveServer("beta")
	assert.Nil(t, lc.GetLogs("beta", 0, time.Time{}))
}

func TestLogWriterSplitsLines(t *testing.T) {
	lc := NewLogCapture()
	w := lc.Writer("srv")

	n, err := w.Write([]byte("first line\nsecond"))
	require.NoError(t, err)
	require.Equal(t, len("first line\nsecond"), n)

	// The partial second line is held until its newline arrives.
	assert.Equal(t, []string{"first line"}, messages(lc.GetLogs("srv", 0, time.Time{})))

	_, err = w.Write([]byte(" line\r\n\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"first line", "second line"},
		messages(lc.GetLogs("srv", 0, time.Time{})),
		"carriage returns stripped, blank lines skipped")
}

func TestLogWriterFlush(t *testing.T) {
	lc := NewLogCapture()
	w := lc.Writer("srv")

	_, err := w.Write([]byte("no newline yet"))
	require.NoError(t, err)
	assert.Empty(t, lc.GetLogs("srv", 0, time.Time{}))

	w.Flush()
	assert.Equal(t, []string{"no newline yet"}, messages(lc.GetLogs("srv", 0, time.Time{})))

	// Flushing again records nothing.
	w.Flush()
	assert.Len(t, lc.GetLogs("srv", 0, time.Time{}), 1)
}

func TestClassifyLogLine(t *testing.T) {
	tests := []struct {
		line string
		want LogLevel
	}{
		{"ERROR: connection refused", LogLevelError},
		{"fatal: cannot open database", LogLevelError},
		{"WARN something looks off", LogLevelWarn},
		{"[warning] deprecated flag", LogLevelWarn},
		{"DEBUG trace enabled", LogLevelDebug},
		{"server listening on stdio", LogLevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, classifyLogLine(tt.line), "line %q", tt.line)
	}
}
