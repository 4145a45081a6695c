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

package shared

import (
	"errors"
	"fmt"
	"os"

	"github.com/openswarm/toolgate/internal/mcp"
)

// Exit codes for the toolgate CLI
const (
	ExitSuccess         = 0
	ExitExecutionFailed = 1
	ExitInvalidConfig   = 2
	ExitServerNotFound  = 3
	ExitToolError       = 4
)

// ExitError is an error that carries an exit code
type ExitError struct {
	Code    int
	Message string
	Cause   error
}

func (e *ExitError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Cause
}

// NewExecutionError creates an error for tool call failures
func NewExecutionError(msg string, cause error) *ExitError {
	return &ExitError{
		Code:    ExitExecutionFailed,
		Message: msg,
		Cause:   cause,
	}
}

// NewInvalidConfigError creates an error for invalid configuration files
func NewInvalidConfigError(msg string, cause error) *ExitError {
	return &ExitError{
		Code:    ExitInvalidConfig,
		Message: msg,
		Cause:   cause,
	}
}

// HandleExitError checks if an error is an ExitError and exits with the
// appropriate code, printing any suggestions the error carries.
func HandleExitError(err error) {
	if err == nil {
		return
	}

	code := ExitExecutionFailed
	switch {
	case mcp.IsCode(err, mcp.ErrorCodeNotFound):
		code = ExitServerNotFound
	case mcp.IsCode(err, mcp.ErrorCodeConfig), mcp.IsCode(err, mcp.ErrorCodeValidation):
		code = ExitInvalidConfig
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		code = exitErr.Code
	}

	fmt.Fprintln(os.Stderr, "Error:", err.Error())

	printSuggestions(err)

	os.Exit(code)
}

// printSuggestions prints resolution suggestions for known error types.
func printSuggestions(err error) {
	var mcpErr *mcp.Error
	if !errors.As(err, &mcpErr) {
		return
	}
	for _, suggestion := range mcpErr.Suggestions {
		fmt.Fprintf(os.Stderr, "\nSuggestion: %s\n", suggestion)
	}
}
