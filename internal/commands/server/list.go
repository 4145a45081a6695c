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
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/openswarm/toolgate/internal/commands/shared"
)

func newListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered tool servers",
		Example: `  # List registered servers
  toolgate server list

  # Extract server names for scripting
  toolgate server list --json | jq -r '.servers[].name'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList()
		},
	}

	return cmd
}

func runList() error {
	cfg, err := shared.LoadServerConfig()
	if err != nil {
		return err
	}

	names := make([]string, 0, len(cfg.Servers))
	for name := range cfg.Servers {
		names = append(names, name)
	}
	sort.Strings(names)

	if shared.GetJSON() {
		type serverJSON struct {
			Name           string   `json:"name"`
			Command        string   `json:"command"`
			Args           []string `json:"args,omitempty"`
			Timeout        int      `json:"timeout"`
			Discovery      string   `json:"discovery"`
			AutoStart      bool     `json:"auto_start"`
			RestartPolicy  string   `json:"restart_policy"`
			CallsPerMinute int      `json:"calls_per_minute,omitempty"`
		}
		out := struct {
			Servers []serverJSON `json:"servers"`
		}{Servers: make([]serverJSON, 0, len(names))}

		for _, name := range names {
			e := cfg.Servers[name]
			out.Servers = append(out.Servers, serverJSON{
				Name:           name,
				Command:        e.Command,
				Args:           e.Args,
				Timeout:        e.Timeout,
				Discovery:      string(e.Discovery),
				AutoStart:      e.AutoStart,
				RestartPolicy:  string(e.RestartPolicy),
				CallsPerMinute: e.CallsPerMinute,
			})
		}

		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	if len(names) == 0 {
		fmt.Println("No tool servers registered.")
		fmt.Println("\nTo add a server:")
		fmt.Println("  toolgate server add <name> --command <cmd>")
		return nil
	}

	fmt.Printf("%-20s %-30s %-10s %-10s %s\n", "NAME", "COMMAND", "TIMEOUT", "AUTOSTART", "POLICY")
	fmt.Println(strings.Repeat("-", 80))

	for _, name := range names {
		e := cfg.Servers[name]
		command := e.Command
		if len(e.Args) > 0 {
			command += " " + strings.Join(e.Args, " ")
		}
		fmt.Printf("%-20s %-30s %-10s %-10v %s\n",
			shared.Truncate(name, 20),
			shared.Truncate(command, 30),
			fmt.Sprintf("%ds", e.Timeout),
			e.AutoStart,
			e.RestartPolicy,
		)
	}

	return nil
}
