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

package main

import (
	"github.com/openswarm/toolgate/internal/cli"
	"github.com/openswarm/toolgate/internal/commands/call"
	"github.com/openswarm/toolgate/internal/commands/run"
	"github.com/openswarm/toolgate/internal/commands/server"
	"github.com/openswarm/toolgate/internal/commands/test"
	"github.com/openswarm/toolgate/internal/commands/tools"
	versioncmd "github.com/openswarm/toolgate/internal/commands/version"
)

// Version information (injected via ldflags at build time)
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	cli.SetVersion(version, commit, buildDate)

	rootCmd := cli.NewRootCommand()

	rootCmd.AddCommand(server.NewCommand())
	rootCmd.AddCommand(tools.NewCommand())
	rootCmd.AddCommand(call.NewCommand())
	rootCmd.AddCommand(test.NewCommand())
	rootCmd.AddCommand(run.NewCommand())
	rootCmd.AddCommand(versioncmd.NewCommand())

	if err := rootCmd.Execute(); err != nil {
		cli.HandleExitError(err)
	}
}
