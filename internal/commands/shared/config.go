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

package shared

import (
	"log/slog"

	"github.com/openswarm/toolgate/internal/log"
	"github.com/openswarm/toolgate/internal/mcp"
)

// LoadServerConfig loads the server configuration, honoring the --config flag.
func LoadServerConfig() (*mcp.GlobalConfig, error) {
	if path := GetConfigPath(); path != "" {
		return mcp.LoadConfigFile(path)
	}
	return mcp.LoadConfig()
}

// SaveServerConfig saves the server configuration, honoring the --config flag.
func SaveServerConfig(cfg *mcp.GlobalConfig) error {
	if path := GetConfigPath(); path != "" {
		return mcp.SaveConfigFile(cfg, path)
	}
	return mcp.SaveConfig(cfg)
}

// ServerConfigPath resolves the configuration path, honoring the --config flag.
func ServerConfigPath() (string, error) {
	if path := GetConfigPath(); path != "" {
		return path, nil
	}
	return mcp.ConfigPath()
}

// NewLogger builds a logger from the environment and the global flags.
// --verbose lowers the level to debug, --quiet raises it to error.
func NewLogger() *slog.Logger {
	cfg := log.FromEnv()
	if GetVerbose() {
		cfg.Level = "debug"
	}
	if GetQuiet() {
		cfg.Level = "error"
	}
	return log.New(cfg)
}

// FindServerEntry looks up a server entry in the configuration by name.
func FindServerEntry(cfg *mcp.GlobalConfig, name string) (*mcp.ServerEntry, error) {
	entry, ok := cfg.Servers[name]
	if !ok {
		return nil, mcp.ErrServerNotFound(name)
	}
	return entry, nil
}
