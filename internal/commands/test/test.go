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

// Package test implements the 'toolgate test' command.
package test

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/openswarm/toolgate/internal/commands/shared"
	"github.com/openswarm/toolgate/internal/mcp"
)

// NewCommand creates the 'test' command.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "test <server>",
		Short: "Test tool server connectivity",
		Long: `Test a tool server by starting it and verifying it responds correctly.

The test will:
1. Validate the server configuration
2. Launch the server and perform the protocol handshake
3. Check liveness with a ping
4. List available tools
5. Stop the server`,
		Example: `  toolgate test github`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTest(cmd.Context(), args[0])
		},
	}

	return cmd
}

func runTest(ctx context.Context, name string) error {
	fmt.Printf("Testing tool server: %s\n\n", name)

	fmt.Print("1. Checking server configuration... ")
	cfg, err := shared.LoadServerConfig()
	if err != nil {
		fmt.Println("FAILED")
		return err
	}
	entry, err := shared.FindServerEntry(cfg, name)
	if err != nil {
		fmt.Println("FAILED")
		return err
	}
	if err := entry.Validate(); err != nil {
		fmt.Println("FAILED")
		return shared.NewInvalidConfigError("invalid server entry", err)
	}
	fmt.Println("OK")

	fmt.Print("2. Starting server and performing handshake... ")
	started := time.Now()
	client, err := mcp.Connect(ctx, entry.ToClientConfig(name, shared.NewLogger()))
	if err != nil {
		fmt.Println("FAILED")
		return err
	}
	defer client.Close()
	fmt.Printf("OK (%dms, pid %d)\n", time.Since(started).Milliseconds(), client.Pid())

	fmt.Print("3. Checking health (ping)... ")
	pingStart := time.Now()
	if err := client.Ping(ctx); err != nil {
		fmt.Println("FAILED")
		return err
	}
	fmt.Printf("OK (%dms)\n", time.Since(pingStart).Milliseconds())

	fmt.Print("4. Listing tools... ")
	discovered := client.Tools()
	fmt.Printf("OK (%d tools found)\n", len(discovered))

	if len(discovered) > 0 {
		fmt.Println("\n   Available tools:")
		for _, t := range discovered {
			desc := shared.Truncate(t.Description, 50)
			fmt.Printf("   - %s: %s\n", t.Name, desc)
		}
	}

	fmt.Print("\n5. Stopping server... ")
	if err := client.Close(); err != nil {
		fmt.Println("FAILED")
		return err
	}
	fmt.Println("OK")

	fmt.Printf("\nTest PASSED for tool server: %s\n", name)
	return nil
}
