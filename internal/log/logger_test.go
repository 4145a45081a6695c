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

package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"trace", LevelTrace},
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseLevel(tt.input), "level %q", tt.input)
	}
}

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("TOOLGATE_DEBUG", "")
	t.Setenv("TOOLGATE_LOG_LEVEL", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("LOG_FORMAT", "")
	t.Setenv("LOG_SOURCE", "")

	cfg := FromEnv()
	assert.Equal(t, "info", cfg.Level)
	assert.Equal(t, FormatJSON, cfg.Format)
	assert.False(t, cfg.AddSource)
}

func TestFromEnvDebugTakesPrecedence(t *testing.T) {
	t.Setenv("TOOLGATE_DEBUG", "1")
	t.Setenv("TOOLGATE_LOG_LEVEL", "error")

	cfg := FromEnv()
	assert.Equal(t, "debug", cfg.Level)
	assert.True(t, cfg.AddSource)
}

func TestFromEnvLevelPrecedence(t *testing.T) {
	t.Setenv("TOOLGATE_DEBUG", "")
	t.Setenv("TOOLGATE_LOG_LEVEL", "WARN")
	t.Setenv("LOG_LEVEL", "error")

	cfg := FromEnv()
	assert.Equal(t, "warn", cfg.Level)
}

func TestFromEnvFormat(t *testing.T) {
	t.Setenv("LOG_FORMAT", "TEXT")

	cfg := FromEnv()
	assert.Equal(t, FormatText, cfg.Format)
}

func TestNewWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&Config{Level: "debug", Format: FormatJSON, Output: &buf})

	logger.Info("session ready", slog.String(ServerKey, "sqlite"))

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "session ready", record["msg"])
	assert.Equal(t, "sqlite", record["server"])
}

func TestNewRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&Config{Level: "warn", Format: FormatJSON, Output: &buf})

	logger.Info("dropped")
	assert.Zero(t, buf.Len())

	logger.Warn("kept")
	assert.NotZero(t, buf.Len())
}

func TestNewNilConfig(t *testing.T) {
	require.NotNil(t, New(nil))
}

func TestWithSession(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&Config{Level: "info", Format: FormatJSON, Output: &buf})

	WithSession(logger, "sqlite", "abc-123").Info("hello")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "sqlite", record[ServerKey])
	assert.Equal(t, "abc-123", record[SessionIDKey])
}

func TestTraceLevelGating(t *testing.T) {
	var buf bytes.Buffer

	quiet := New(&Config{Level: "debug", Format: FormatJSON, Output: &buf})
	Trace(quiet, "raw line")
	assert.Zero(t, buf.Len(), "trace must be suppressed at debug level")

	verbose := New(&Config{Level: "trace", Format: FormatJSON, Output: &buf})
	Trace(verbose, "raw line")
	assert.NotZero(t, buf.Len())
}

func TestSanitizeAPIKey(t *testing.T) {
	assert.Equal(t, "...6789", SanitizeAPIKey("sk-123456789"))
	assert.Equal(t, "[REDACTED]", SanitizeAPIKey("abcd"))
	assert.Equal(t, "[REDACTED]", SanitizeAPIKey(""))
}

func TestSanitizeSecret(t *testing.T) {
	assert.Equal(t, "[REDACTED]", SanitizeSecret("anything"))
}
