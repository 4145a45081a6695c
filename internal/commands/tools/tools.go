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

// Package tools implements the 'toolgate tools' command.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/openswarm/toolgate/internal/commands/shared"
	"github.com/openswarm/toolgate/internal/mcp"
)

// NewCommand creates the 'tools' command.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools <server>",
		Short: "List tools exposed by a tool server",
		Long: `Launch a tool server, discover its tools, and print them.

The server is stopped again when discovery completes.`,
		Example: `  toolgate tools github
  toolgate tools github --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTools(cmd.Context(), args[0])
		},
	}

	return cmd
}

func runTools(ctx context.Context, name string) error {
	cfg, err := shared.LoadServerConfig()
	if err != nil {
		return err
	}

	entry, err := shared.FindServerEntry(cfg, name)
	if err != nil {
		return err
	}

	client, err := mcp.Connect(ctx, entry.ToClientConfig(name, shared.NewLogger()))
	if err != nil {
		return err
	}
	defer client.Close()

	discovered := client.Tools()

	if shared.GetJSON() {
		out := struct {
			Server string     `json:"server"`
			Tools  []mcp.Tool `json:"tools"`
		}{Server: name, Tools: discovered}

		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	if len(discovered) == 0 {
		fmt.Println("No tools available from this server.")
		return nil
	}

	fmt.Printf("Tools from %s:\n\n", name)
	for _, t := range discovered {
		fmt.Printf("  %s.%s\n", name, t.Name)
		if t.Description != "" {
			desc := shared.WrapText(t.Description, 60)
			for _, line := range strings.Split(desc, "\n") {
				fmt.Printf("    %s\n", line)
			}
		}
		fmt.Println()
	}

	return nil
}
