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

package server

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openswarm/toolgate/internal/commands/shared"
	"github.com/openswarm/toolgate/internal/mcp"
)

func newRemoveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remove <name>",
		Short: "Remove a registered tool server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRemove(args[0])
		},
	}

	return cmd
}

func runRemove(name string) error {
	cfg, err := shared.LoadServerConfig()
	if err != nil {
		return err
	}

	if _, exists := cfg.Servers[name]; !exists {
		return mcp.ErrServerNotFound(name)
	}

	delete(cfg.Servers, name)

	if err := shared.SaveServerConfig(cfg); err != nil {
		return err
	}

	if !shared.GetQuiet() {
		fmt.Printf("Removed tool server %q\n", name)
	}
	return nil
}
