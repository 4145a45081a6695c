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
)

func newValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the server configuration file",
		Long: `Validate every server entry in the configuration file: names,
commands, arguments, and environment variables.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate()
		},
	}

	return cmd
}

func runValidate() error {
	path, err := shared.ServerConfigPath()
	if err != nil {
		return err
	}

	cfg, err := shared.LoadServerConfig()
	if err != nil {
		return shared.NewInvalidConfigError("failed to load configuration", err)
	}

	if err := cfg.Validate(); err != nil {
		return shared.NewInvalidConfigError("configuration is invalid", err)
	}

	if !shared.GetQuiet() {
		fmt.Printf("Configuration is valid: %s (%d servers)\n", path, len(cfg.Servers))
	}
	return nil
}
