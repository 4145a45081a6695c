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
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// startCat spawns `cat`, which echoes every input line back on stdout.
// That is enough of a "server" to exercise the session plumbing.
func startCat(t *testing.T) *ProcessSession {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX cat")
	}

	s, err := StartProcess(LaunchSpec{Command: "cat"}, nil, testLogger())
	require.NoError(t, err)
	t.Cleanup(s.Terminate)
	return s
}

func TestProcessSessionRoundTrip(t *testing.T) {
	s := startCat(t)

	require.NoError(t, s.WriteLine([]byte("hello\n")))
	line, err := s.ReadLine()
	require.NoError(t, err)
	require.Equal(t, "hello\n", string(line))

	require.NoError(t, s.WriteLine([]byte("second\n")))
	line, err = s.ReadLine()
	require.NoError(t, err)
	require.Equal(t, "second\n", string(line))

	require.False(t, s.Exited())
	require.Greater(t, s.Pid(), 0)
}

func TestProcessSessionTerminate(t *testing.T) {
	s := startCat(t)

	s.Terminate()
	require.True(t, s.Exited())

	select {
	case <-s.Done():
	default:
		t.Fatal("Done must be closed after Terminate returns")
	}

	// Idempotent.
	s.Terminate()
}

func TestProcessSessionReadAfterExit(t *testing.T) {
	s := startCat(t)
	s.Terminate()

	_, err := s.ReadLine()
	require.Error(t, err)
	require.True(t, IsCode(err, ErrorCodeSessionClosed), "got %v", err)
}

func TestProcessSessionWriteAfterExit(t *testing.T) {
	s := startCat(t)
	s.Terminate()

	err := s.WriteLine([]byte("too late\n"))
	require.Error(t, err)
	require.True(t, IsCode(err, ErrorCodeBrokenPipe), "got %v", err)
}

func TestProcessSessionOutputBeforeExitIsDelivered(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}

	// The server writes one line and exits immediately. The line must still
	// be readable after the process has been reaped; only then does the
	// stream end.
	s, err := StartProcess(LaunchSpec{
		Command: "sh",
		Args:    []string{"-c", "echo hello"},
	}, nil, testLogger())
	require.NoError(t, err)
	t.Cleanup(s.Terminate)

	select {
	case <-s.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("process did not exit")
	}

	line, err := s.ReadLine()
	require.NoError(t, err)
	require.Equal(t, "hello\n", string(line))

	_, err = s.ReadLine()
	require.Error(t, err)
	require.True(t, IsCode(err, ErrorCodeSessionClosed), "got %v", err)
}

func TestProcessSessionCommandNotFound(t *testing.T) {
	_, err := StartProcess(LaunchSpec{Command: "definitely-not-a-real-command-12345"}, nil, testLogger())
	require.Error(t, err)
	require.True(t, IsCode(err, ErrorCodeCommandNotFound), "got %v", err)
}

func TestProcessSessionEmptyCommand(t *testing.T) {
	_, err := StartProcess(LaunchSpec{}, nil, testLogger())
	require.Error(t, err)
	require.True(t, IsCode(err, ErrorCodeConfig), "got %v", err)
}

func TestProcessSessionStderrCapture(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}

	var buf bytes.Buffer
	s, err := StartProcess(LaunchSpec{
		Command: "sh",
		Args:    []string{"-c", "echo oops >&2"},
	}, &buf, testLogger())
	require.NoError(t, err)

	select {
	case <-s.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("process did not exit")
	}
	require.Contains(t, buf.String(), "oops")
	require.NoError(t, s.ExitErr())
}

func TestProcessSessionExitErr(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}

	s, err := StartProcess(LaunchSpec{
		Command: "sh",
		Args:    []string{"-c", "exit 3"},
	}, nil, testLogger())
	require.NoError(t, err)

	select {
	case <-s.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("process did not exit")
	}
	require.Error(t, s.ExitErr())
}
