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

func newAddCommand() *cobra.Command {
	var (
		command        string
		args           []string
		env            []string
		cwd            string
		timeout        int
		discovery      string
		callsPerMinute int
		autoStart      bool
		restartPolicy  string
		maxRestarts    int
	)

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Register a new tool server",
		Long: `Register a tool server in the configuration file.

The server is not started; registration only records how to launch it.`,
		Example: `  # Register a server run via npx
  toolgate server add github --command npx --arg -y --arg @modelcontextprotocol/server-github

  # Register a python server with an environment variable
  toolgate server add db --command python --arg server.py --env 'DB_URL=${DATABASE_URL}'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, cmdArgs []string) error {
			entry := &mcp.ServerEntry{
				Command:            command,
				Args:               args,
				Env:                env,
				Cwd:                cwd,
				Timeout:            timeout,
				Discovery:          mcp.DiscoveryMode(discovery),
				CallsPerMinute:     callsPerMinute,
				AutoStart:          autoStart,
				RestartPolicy:      mcp.RestartPolicy(restartPolicy),
				MaxRestartAttempts: maxRestarts,
			}
			return runAdd(cmdArgs[0], entry)
		},
	}

	cmd.Flags().StringVar(&command, "command", "", "Executable to run (required)")
	cmd.Flags().StringArrayVar(&args, "arg", nil, "Command argument (repeatable)")
	cmd.Flags().StringArrayVar(&env, "env", nil, "Environment variable KEY=VALUE (repeatable, supports ${VAR})")
	cmd.Flags().StringVar(&cwd, "cwd", "", "Working directory for the subprocess")
	cmd.Flags().IntVar(&timeout, "timeout", 0, "Tool call timeout in seconds (default 30)")
	cmd.Flags().StringVar(&discovery, "discovery", "", "Discovery variant: auto, inline, or list")
	cmd.Flags().IntVar(&callsPerMinute, "calls-per-minute", 0, "Rate limit for tool calls (0 = unlimited)")
	cmd.Flags().BoolVar(&autoStart, "auto-start", false, "Start this server with 'toolgate run'")
	cmd.Flags().StringVar(&restartPolicy, "restart-policy", "", "Restart policy: always, on-failure, or never")
	cmd.Flags().IntVar(&maxRestarts, "max-restart-attempts", 0, "Maximum restart attempts (0 = unlimited)")
	_ = cmd.MarkFlagRequired("command")

	return cmd
}

func runAdd(name string, entry *mcp.ServerEntry) error {
	if err := mcp.ValidateServerName(name); err != nil {
		return shared.NewInvalidConfigError("invalid server name", err)
	}
	if err := entry.Validate(); err != nil {
		return shared.NewInvalidConfigError("invalid server entry", err)
	}

	cfg, err := shared.LoadServerConfig()
	if err != nil {
		return err
	}

	if _, exists := cfg.Servers[name]; exists {
		return shared.NewInvalidConfigError(fmt.Sprintf("server %q is already registered", name), nil)
	}

	cfg.Servers[name] = entry

	if err := shared.SaveServerConfig(cfg); err != nil {
		return err
	}

	if !shared.GetQuiet() {
		fmt.Printf("Registered tool server %q (command: %s)\n", name, entry.Command)
	}
	return nil
}
