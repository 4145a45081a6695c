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

// Package server implements the 'toolgate server' command group for
// registering and inspecting configured tool servers.
package server

import (
	"github.com/spf13/cobra"
)

// NewCommand creates the server command group.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Manage registered tool servers",
		Long: `Manage tool server registrations.

Commands:
  add       Register a new tool server
  remove    Remove a registered tool server
  list      List registered tool servers
  validate  Validate the server configuration file`,
	}

	cmd.AddCommand(newAddCommand())
	cmd.AddCommand(newRemoveCommand())
	cmd.AddCommand(newListCommand())
	cmd.AddCommand(newValidateCommand())

	return cmd
}
