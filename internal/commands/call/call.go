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

// Package call implements the 'toolgate call' command.
package call

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/openswarm/toolgate/internal/commands/shared"
	"github.com/openswarm/toolgate/internal/mcp"
)

// NewCommand creates the 'call' command.
func NewCommand() *cobra.Command {
	var (
		argPairs []string
		argsJSON string
		timeout  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "call <server> <tool>",
		Short: "Invoke a tool on a tool server",
		Long: `Launch a tool server, invoke one tool, and print the result.

Arguments are given as repeated --arg key=value pairs or as a single
--args-json object. A tool-reported failure prints the tool's error and
exits non-zero; the raw result is printed as JSON otherwise.`,
		Example: `  # Call with key=value arguments
  toolgate call db read_query --arg sql='SELECT 1'

  # Call with a JSON argument object
  toolgate call github list_repos --args-json '{"org":"golang"}'`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			arguments, err := buildArguments(argPairs, argsJSON)
			if err != nil {
				return err
			}
			return runCall(cmd.Context(), args[0], args[1], arguments, timeout)
		},
	}

	cmd.Flags().StringArrayVar(&argPairs, "arg", nil, "Tool argument key=value (repeatable)")
	cmd.Flags().StringVar(&argsJSON, "args-json", "", "Tool arguments as a JSON object")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Per-call timeout override (e.g. 90s)")

	return cmd
}

// buildArguments merges --arg pairs and --args-json into one argument map.
// Values from --arg are parsed as JSON when possible, else taken as strings.
func buildArguments(pairs []string, argsJSON string) (map[string]any, error) {
	arguments := map[string]any{}

	if argsJSON != "" {
		if err := json.Unmarshal([]byte(argsJSON), &arguments); err != nil {
			return nil, fmt.Errorf("invalid --args-json: %w", err)
		}
	}

	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("invalid --arg %q: expected key=value", pair)
		}

		var parsed any
		if err := json.Unmarshal([]byte(value), &parsed); err != nil {
			parsed = value
		}
		arguments[key] = parsed
	}

	return arguments, nil
}

func runCall(ctx context.Context, server, tool string, arguments map[string]any, timeout time.Duration) error {
	cfg, err := shared.LoadServerConfig()
	if err != nil {
		return err
	}

	entry, err := shared.FindServerEntry(cfg, server)
	if err != nil {
		return err
	}

	client, err := mcp.Connect(ctx, entry.ToClientConfig(server, shared.NewLogger()))
	if err != nil {
		return err
	}
	defer client.Close()

	res, err := client.CallTool(ctx, mcp.ToolCallRequest{
		Name:      tool,
		Arguments: arguments,
		Timeout:   timeout,
	})
	if err != nil {
		return err
	}

	if res.Failed() {
		return &shared.ExitError{
			Code:    shared.ExitToolError,
			Message: fmt.Sprintf("tool %q failed", tool),
			Cause:   res.Err,
		}
	}

	if len(res.Result) == 0 {
		fmt.Println("null")
		return nil
	}

	var pretty json.RawMessage = json.RawMessage(res.Result)
	data, err := json.MarshalIndent(pretty, "", "  ")
	if err != nil {
		// Result is opaque; print it as-is.
		fmt.Println(string(res.Result))
		return nil
	}
	fmt.Println(string(data))

	return nil
}
