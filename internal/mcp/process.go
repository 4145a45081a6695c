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
	"bufio"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"
)

// defaultTerminateGrace is how long Terminate waits for a clean exit after
// closing stdin before killing the process.
const defaultTerminateGrace = 5 * time.Second

// LaunchSpec describes how to spawn a tool server subprocess.
type LaunchSpec struct {
	// Command is the executable to run
	Command string

	// Args are the command-line arguments
	Args []string

	// Env are KEY=VALUE pairs overlaying the inherited environment
	Env []string

	// Dir is the working directory; empty means inherit
	Dir string

	// TerminateGrace overrides the graceful-shutdown wait (optional)
	TerminateGrace time.Duration
}

// ProcessSession owns one tool server subprocess: its pipes, its exit
// status, and nothing else. It has no protocol knowledge. All resources are
// released on every exit path; Terminate is safe to call any number of
// times and from any goroutine.
type ProcessSession struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	reader *bufio.Reader
	logger *slog.Logger
	grace  time.Duration

	// writeMu serializes writers so concurrent calls never interleave
	// partial lines on the subprocess's input.
	writeMu sync.Mutex

	// done is closed after the process has exited and been reaped.
	done    chan struct{}
	waitErr error

	terminateOnce sync.Once
}

// StartProcess spawns the subprocess described by spec with stdin/stdout
// connected as pipes. Subprocess stderr is written to the given sink, or
// discarded when the sink is nil.
func StartProcess(spec LaunchSpec, stderr io.Writer, logger *slog.Logger) (*ProcessSession, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if spec.Command == "" {
		return nil, ErrInvalidConfig("command is required")
	}

	if _, err := exec.LookPath(spec.Command); err != nil {
		return nil, ErrCommandNotFound(spec.Command, err)
	}

	cmd := exec.Command(spec.Command, spec.Args...)
	cmd.Dir = spec.Dir
	if len(spec.Env) > 0 {
		cmd.Env = append(os.Environ(), spec.Env...)
	}
	if stderr != nil {
		cmd.Stderr = stderr
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, ErrLaunchFailed(spec.Command, err)
	}

	// Own the stdout pipe instead of using StdoutPipe: Wait closes a
	// StdoutPipe as soon as the process exits, which can discard a response
	// the server flushed right before exiting. With our own pipe the read
	// side stays open until we drain it to EOF.
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		return nil, ErrLaunchFailed(spec.Command, err)
	}
	cmd.Stdout = stdoutW

	if err := cmd.Start(); err != nil {
		stdoutR.Close()
		stdoutW.Close()
		return nil, ErrLaunchFailed(spec.Command, err)
	}

	// The child holds its own copy of the write end; drop ours so reads
	// see EOF once the child exits.
	stdoutW.Close()

	grace := spec.TerminateGrace
	if grace <= 0 {
		grace = defaultTerminateGrace
	}

	s := &ProcessSession{
		cmd:    cmd,
		stdin:  stdin,
		stdout: stdoutR,
		reader: bufio.NewReader(stdoutR),
		logger: logger,
		grace:  grace,
		done:   make(chan struct{}),
	}

	go s.reap()

	logger.Debug("tool server process started",
		"command", spec.Command,
		"pid", cmd.Process.Pid,
	)

	return s, nil
}

// reap waits for the process to exit and records its status.
func (s *ProcessSession) reap() {
	err := s.cmd.Wait()
	s.waitErr = err
	close(s.done)

	s.logger.Debug("tool server process exited",
		"pid", s.cmd.Process.Pid,
		"error", err,
	)
}

// WriteLine writes one newline-terminated message to the subprocess input.
// Writers are serialized; a write after process exit fails with BROKEN_PIPE.
func (s *ProcessSession) WriteLine(line []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	select {
	case <-s.done:
		return ErrBrokenPipe(s.waitErr)
	default:
	}

	if _, err := s.stdin.Write(line); err != nil {
		if errors.Is(err, io.ErrClosedPipe) || s.Exited() {
			return ErrBrokenPipe(err)
		}
		return WrapError(err, ErrorCodeBrokenPipe, "failed to write to tool server")
	}
	return nil
}

// ReadLine blocks until a complete line is available on the subprocess
// output, or returns SESSION_CLOSED once the stream ends (Terminate, or
// process exit after buffered output is drained). The line includes its
// trailing newline.
func (s *ProcessSession) ReadLine() ([]byte, error) {
	line, err := s.reader.ReadBytes('\n')
	if err != nil {
		// A final unterminated fragment before EOF is not a full frame;
		// the stream is over either way.
		return nil, ErrSessionClosed(err)
	}
	return line, nil
}

// Terminate requests graceful shutdown: close stdin, wait up to the grace
// period for the process to exit, then kill it. Idempotent; always waits
// for the process to be reaped before returning.
func (s *ProcessSession) Terminate() {
	s.terminateOnce.Do(func() {
		_ = s.stdin.Close()

		select {
		case <-s.done:
		case <-time.After(s.grace):
			s.logger.Warn("tool server did not exit within grace period, killing",
				"pid", s.cmd.Process.Pid,
				"grace", s.grace,
			)
			_ = s.cmd.Process.Kill()
		}

		// Unblock any reader still parked on the stdout pipe.
		_ = s.stdout.Close()
	})

	<-s.done
}

// Done returns a channel closed once the subprocess has exited.
func (s *ProcessSession) Done() <-chan struct{} {
	return s.done
}

// Exited reports whether the subprocess has exited.
func (s *ProcessSession) Exited() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// ExitErr returns the process exit error. Only meaningful after Done.
func (s *ProcessSession) ExitErr() error {
	select {
	case <-s.done:
		return s.waitErr
	default:
		return nil
	}
}

// Pid returns the subprocess pid.
func (s *ProcessSession) Pid() int {
	return s.cmd.Process.Pid
}
