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
	"time"
)

// ErrorCode represents a category of tool server error.
type ErrorCode string

const (
	// ErrorCodeLaunch indicates the server subprocess could not be started.
	ErrorCodeLaunch ErrorCode = "LAUNCH_FAILED"
	// ErrorCodeCommandNotFound indicates the server command was not found.
	ErrorCodeCommandNotFound ErrorCode = "COMMAND_NOT_FOUND"
	// ErrorCodeBrokenPipe indicates a write to an exited subprocess.
	ErrorCodeBrokenPipe ErrorCode = "BROKEN_PIPE"
	// ErrorCodeMalformedMessage indicates an undecodable protocol line.
	ErrorCodeMalformedMessage ErrorCode = "MALFORMED_MESSAGE"
	// ErrorCodeTimeout indicates a request did not complete in time.
	ErrorCodeTimeout ErrorCode = "TIMEOUT"
	// ErrorCodeSessionClosed indicates the session is no longer usable.
	ErrorCodeSessionClosed ErrorCode = "SESSION_CLOSED"
	// ErrorCodeNotReady indicates a call on a session that is not ready.
	ErrorCodeNotReady ErrorCode = "NOT_READY"
	// ErrorCodeUnknownTool indicates a call for a tool the server never declared.
	ErrorCodeUnknownTool ErrorCode = "UNKNOWN_TOOL"
	// ErrorCodeRateLimited indicates the per-server call budget was exhausted.
	ErrorCodeRateLimited ErrorCode = "RATE_LIMITED"
	// ErrorCodeNotFound indicates a server was not found.
	ErrorCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrorCodeAlreadyRunning indicates a server is already running.
	ErrorCodeAlreadyRunning ErrorCode = "ALREADY_RUNNING"
	// ErrorCodeNotRunning indicates a server is not running.
	ErrorCodeNotRunning ErrorCode = "NOT_RUNNING"
	// ErrorCodeValidation indicates a validation error.
	ErrorCodeValidation ErrorCode = "VALIDATION"
	// ErrorCodeConfig indicates a configuration error.
	ErrorCodeConfig ErrorCode = "CONFIG"
	// ErrorCodeInternal indicates an internal error.
	ErrorCodeInternal ErrorCode = "INTERNAL"
)

// Error is the error type returned by this package. It carries a category
// code so callers can branch on failure class without string matching, and
// optional suggestions for resolution.
type Error struct {
	// Code is the error category.
	Code ErrorCode
	// Message is the primary error message.
	Message string
	// Detail provides additional context.
	Detail string
	// Suggestions are actionable steps to resolve the error.
	Suggestions []string
	// Cause is the underlying error, if any.
	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Detail != "" {
		return e.Message + ": " + e.Detail
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetail adds detail to the error.
func (e *Error) WithDetail(detail string) *Error {
	e.Detail = detail
	return e
}

// WithSuggestions adds suggestions to the error.
func (e *Error) WithSuggestions(suggestions ...string) *Error {
	e.Suggestions = suggestions
	return e
}

// WithCause adds an underlying cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// NewError creates a new Error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// IsCode reports whether err (or any error it wraps) is an *Error with the
// given code.
func IsCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// CodeOf extracts the error code from an error chain.
// Returns ErrorCodeInternal for errors not produced by this package.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrorCodeInternal
}

// ErrLaunchFailed creates an error for a subprocess that could not be spawned.
func ErrLaunchFailed(command string, cause error) *Error {
	return NewError(ErrorCodeLaunch, fmt.Sprintf("failed to launch tool server %q", command)).
		WithDetail(cause.Error()).
		WithCause(cause).
		WithSuggestions(
			"Verify the command and arguments are correct",
			"Ensure required environment variables are set",
		)
}

// ErrCommandNotFound creates an error for a command missing from PATH.
func ErrCommandNotFound(command string, cause error) *Error {
	return NewError(ErrorCodeCommandNotFound, fmt.Sprintf("command %q not found", command)).
		WithCause(cause).
		WithSuggestions(
			"Verify the command is installed and in your PATH",
			fmt.Sprintf("Use an absolute path: /path/to/%s", command),
		)
}

// ErrBrokenPipe creates an error for a write to a dead subprocess.
func ErrBrokenPipe(cause error) *Error {
	return NewError(ErrorCodeBrokenPipe, "tool server closed its input stream").
		WithCause(cause).
		WithSuggestions("Check the server logs for crash details")
}

// ErrMalformedMessage creates an error for an undecodable protocol line.
// The offending line is recorded as detail, truncated to keep logs sane.
func ErrMalformedMessage(line []byte, cause error) *Error {
	const maxQuoted = 256
	quoted := string(line)
	if len(quoted) > maxQuoted {
		quoted = quoted[:maxQuoted] + "..."
	}
	e := NewError(ErrorCodeMalformedMessage, "malformed protocol message").
		WithDetail(quoted)
	if cause != nil {
		e = e.WithCause(cause)
	}
	return e
}

// ErrRequestTimeout creates an error for a request that outlived its timeout.
func ErrRequestTimeout(method string, timeout time.Duration) *Error {
	return NewError(ErrorCodeTimeout, fmt.Sprintf("request %q timed out after %s", method, timeout)).
		WithSuggestions(
			"Check if the server is responding",
			"Try increasing the timeout value",
		)
}

// ErrSessionClosed creates an error for operations on a closed session.
func ErrSessionClosed(cause error) *Error {
	e := NewError(ErrorCodeSessionClosed, "tool server session closed")
	if cause != nil {
		e = e.WithDetail(cause.Error()).WithCause(cause)
	}
	return e.WithSuggestions("Re-initialize the session before issuing further calls")
}

// ErrNotReady creates an error for calls issued before discovery completed.
func ErrNotReady(state SessionState) *Error {
	return NewError(ErrorCodeNotReady, fmt.Sprintf("session is %s, not ready", state)).
		WithSuggestions("Call DiscoverTools or Initialize before CallTool")
}

// ErrUnknownTool creates an error for a tool name absent from the registry.
func ErrUnknownTool(name string, known []string) *Error {
	e := NewError(ErrorCodeUnknownTool, fmt.Sprintf("unknown tool %q", name))
	if len(known) > 0 {
		e = e.WithDetail("known tools: " + strings.Join(known, ", "))
	}
	return e
}

// ErrRateLimited creates an error for an exhausted per-server call budget.
func ErrRateLimited(server string) *Error {
	return NewError(ErrorCodeRateLimited, fmt.Sprintf("tool calls to server %q are rate limited", server)).
		WithSuggestions("Retry after a short delay", "Raise calls_per_minute in the server configuration")
}

// ErrServerNotFound creates an error for when a server is not found.
func ErrServerNotFound(name string) *Error {
	return NewError(ErrorCodeNotFound, fmt.Sprintf("tool server %q not found", name)).
		WithSuggestions(
			"Check the server name: toolgate list",
			fmt.Sprintf("Register the server in servers.yaml under servers.%s", name),
		)
}

// ErrServerAlreadyRunning creates an error for when a server is already running.
func ErrServerAlreadyRunning(name string) *Error {
	return NewError(ErrorCodeAlreadyRunning, fmt.Sprintf("tool server %q is already running", name))
}

// ErrServerNotRunning creates an error for when a server is not running.
func ErrServerNotRunning(name string) *Error {
	return NewError(ErrorCodeNotRunning, fmt.Sprintf("tool server %q is not running", name)).
		WithSuggestions(fmt.Sprintf("Start the server: toolgate start %s", name))
}

// ErrInvalidServerName creates an error for an invalid server name.
func ErrInvalidServerName(name string) *Error {
	return NewError(ErrorCodeValidation, fmt.Sprintf("invalid server name %q", name)).
		WithDetail("names must start with a letter, contain only letters/numbers/hyphens/underscores, and be at most 64 characters")
}

// ErrInvalidConfig creates an error for invalid configuration.
func ErrInvalidConfig(detail string) *Error {
	return NewError(ErrorCodeConfig, "invalid tool server configuration").
		WithDetail(detail)
}

// WrapError wraps a standard error in an *Error if it isn't one already.
func WrapError(err error, code ErrorCode, message string) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return NewError(code, message).WithDetail(err.Error()).WithCause(err)
}
