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

// Package run implements the 'toolgate run' command: a foreground
// supervisor for the configured auto-start servers.
package run

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/openswarm/toolgate/internal/commands/shared"
	"github.com/openswarm/toolgate/internal/mcp"
)

// NewCommand creates the 'run' command.
func NewCommand() *cobra.Command {
	var (
		metricsAddr string
		watchConfig bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the configured tool servers in the foreground",
		Long: `Start every auto_start server from the configuration and supervise
them until interrupted. Crashed servers are restarted according to their
restart policy with exponential backoff.

With --watch, configuration file changes restart affected servers.`,
		Example: `  # Supervise the auto_start servers
  toolgate run

  # With a Prometheus metrics endpoint
  toolgate run --metrics-addr :9090`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSupervisor(metricsAddr, watchConfig)
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	cmd.Flags().BoolVar(&watchConfig, "watch", false, "Reload servers when the configuration file changes")

	return cmd
}

func runSupervisor(metricsAddr string, watchConfig bool) error {
	logger := shared.NewLogger()

	cfg, err := shared.LoadServerConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return shared.NewInvalidConfigError("configuration is invalid", err)
	}

	manager := mcp.NewManager(mcp.ManagerConfig{Logger: logger})
	defer manager.Close()

	manager.StartFromConfig(cfg)

	if manager.ServerCount() == 0 {
		fmt.Println("No auto_start servers configured; nothing to supervise.")
		fmt.Println("Mark servers with auto_start: true, or use 'toolgate server add --auto-start'.")
		return nil
	}

	if watchConfig {
		watcher, err := mcp.NewWatcher(mcp.WatcherConfig{
			Manager: manager,
			Logger:  logger,
		})
		if err != nil {
			return err
		}
		defer watcher.Close()

		path, err := shared.ServerConfigPath()
		if err != nil {
			return err
		}
		if err := watcher.WatchConfig(path, func() {
			reload(manager, logger)
		}); err != nil {
			return err
		}
	}

	if metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		go func() {
			if err := http.ListenAndServe(metricsAddr, mux); err != nil {
				logger.Error("metrics endpoint failed", "addr", metricsAddr, "error", err)
			}
		}()
		logger.Info("serving metrics", "addr", metricsAddr)
	}

	logger.Info("supervising tool servers", "count", manager.ServerCount())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	sig := <-sigCh

	logger.Info("shutting down", "signal", sig.String())
	return nil
}

// reload applies the configuration file to the running servers. Servers
// removed from the file are stopped, servers whose entry changed are
// restarted with the new entry, unchanged servers keep running, and new
// auto_start servers are started.
func reload(manager *mcp.Manager, logger *slog.Logger) {
	cfg, err := shared.LoadServerConfig()
	if err != nil {
		logger.Error("failed to reload configuration", "error", err)
		return
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("reloaded configuration is invalid", "error", err)
		return
	}

	managed := make(map[string]bool)
	for _, name := range manager.ListServers() {
		managed[name] = true
		entry, still := cfg.Servers[name]
		if !still {
			logger.Info("server removed from configuration, stopping", "server", name)
			_ = manager.Stop(name)
			continue
		}
		if err := manager.Update(name, *entry); err != nil {
			logger.Error("failed to apply updated configuration", "server", name, "error", err)
		}
	}

	for name, entry := range cfg.Servers {
		if entry.AutoStart && !managed[name] {
			if err := manager.Start(name, *entry); err != nil {
				logger.Error("failed to start tool server", "server", name, "error", err)
			}
		}
	}
}
