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

// Package cli builds the root command for the toolgate CLI.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/openswarm/toolgate/internal/commands/shared"
)

// SetVersion sets the version information (called from main)
func SetVersion(v, c, b string) {
	shared.SetVersion(v, c, b)
}

// NewRootCommand creates the root Cobra command for toolgate
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "toolgate",
		Short: "toolgate - tool server session manager",
		Long: `toolgate manages sessions with external tool servers.

A tool server is a subprocess speaking line-delimited JSON-RPC on its
standard streams. toolgate launches servers, performs the protocol
handshake, discovers the tools they expose, and routes tool calls.

Run 'toolgate server add' to register a server.
Run 'toolgate tools <server>' to see what it exposes.`,
		SilenceUsage:  true, // Don't show usage on errors
		SilenceErrors: true, // We handle errors ourselves for proper exit codes
	}

	verbose, quiet, json, config := shared.RegisterFlagPointers()

	cmd.PersistentFlags().BoolVarP(verbose, "verbose", "v", false, "Enable verbose output")
	cmd.PersistentFlags().BoolVarP(quiet, "quiet", "q", false, "Suppress non-error output")
	cmd.PersistentFlags().BoolVar(json, "json", false, "Output in JSON format")
	cmd.PersistentFlags().StringVar(config, "config", "", "Path to config file (default: ~/.config/toolgate/servers.yaml)")

	return cmd
}

// GetVersion returns version information
func GetVersion() (string, string, string) {
	return shared.GetVersion()
}

// HandleExitError handles exit errors with proper exit codes
func HandleExitError(err error) {
	shared.HandleExitError(err)
}
