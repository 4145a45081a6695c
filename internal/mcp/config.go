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

package mcp

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/openswarm/toolgate/internal/config"
)

// ServerNameRegex validates tool server names.
// Names must start with a letter and contain only letters, numbers, hyphens,
// and underscores. Maximum length is 64 characters.
var ServerNameRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_-]{0,63}$`)

// RestartPolicy defines when a server should be restarted after failure.
type RestartPolicy string

const (
	// RestartAlways always restarts the server on failure.
	RestartAlways RestartPolicy = "always"
	// RestartOnFailure only restarts on non-zero exit codes.
	RestartOnFailure RestartPolicy = "on-failure"
	// RestartNever never automatically restarts.
	RestartNever RestartPolicy = "never"
)

// GlobalConfig represents the tool server configuration file.
// Stored at ~/.config/toolgate/servers.yaml
type GlobalConfig struct {
	// Servers is a map of server name to configuration.
	Servers map[string]*ServerEntry `yaml:"servers,omitempty"`

	// Defaults provides default values for server configuration.
	Defaults Defaults `yaml:"defaults,omitempty"`
}

// ServerEntry represents a single tool server configuration entry.
type ServerEntry struct {
	// Command is the executable to run (e.g., "npx", "python").
	Command string `yaml:"command,omitempty"`

	// Args are command-line arguments.
	Args []string `yaml:"args,omitempty"`

	// Env are environment variables in KEY=VALUE format.
	// Supports ${VAR} syntax for runtime variable substitution.
	Env []string `yaml:"env,omitempty"`

	// Cwd is the working directory for the subprocess.
	Cwd string `yaml:"cwd,omitempty"`

	// Timeout is the default timeout for tool calls in seconds.
	// Defaults to 30 seconds if not specified.
	Timeout int `yaml:"timeout,omitempty"`

	// Discovery selects the tool discovery variant.
	// Valid values: "auto", "inline", "list" (default: "auto").
	Discovery DiscoveryMode `yaml:"discovery,omitempty"`

	// CallsPerMinute rate-limits tool calls to this server.
	// 0 means unlimited (default).
	CallsPerMinute int `yaml:"calls_per_minute,omitempty"`

	// AutoStart indicates whether to start this server with the manager.
	AutoStart bool `yaml:"auto_start,omitempty"`

	// RestartPolicy defines the restart behavior on failure.
	// Valid values: "always", "on-failure", "never"
	RestartPolicy RestartPolicy `yaml:"restart_policy,omitempty"`

	// MaxRestartAttempts limits the number of restart attempts.
	// Only applies when RestartPolicy is not "never".
	// 0 means unlimited (default).
	MaxRestartAttempts int `yaml:"max_restart_attempts,omitempty"`
}

// Defaults provides default values for tool server configuration.
type Defaults struct {
	// Timeout is the default timeout in seconds (default: 30).
	Timeout int `yaml:"timeout,omitempty"`

	// Discovery is the default discovery variant (default: "auto").
	Discovery DiscoveryMode `yaml:"discovery,omitempty"`

	// AutoStart is the default auto_start value (default: false).
	AutoStart bool `yaml:"auto_start,omitempty"`

	// RestartPolicy is the default restart policy (default: "always").
	RestartPolicy RestartPolicy `yaml:"restart_policy,omitempty"`

	// MaxRestartAttempts is the default max restart attempts (default: 5).
	MaxRestartAttempts int `yaml:"max_restart_attempts,omitempty"`
}

// DefaultDefaults returns the default values for server configuration.
func DefaultDefaults() Defaults {
	return Defaults{
		Timeout:            30,
		Discovery:          DiscoverAuto,
		AutoStart:          false,
		RestartPolicy:      RestartAlways,
		MaxRestartAttempts: 5,
	}
}

// ConfigPath returns the path to the tool server configuration file.
func ConfigPath() (string, error) {
	dir, err := config.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "servers.yaml"), nil
}

// LoadConfig loads the tool server configuration from disk.
// Returns an empty config if the file doesn't exist.
func LoadConfig() (*GlobalConfig, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, fmt.Errorf("failed to get config path: %w", err)
	}
	return LoadConfigFile(path)
}

// LoadConfigFile loads a tool server configuration from the given path.
func LoadConfigFile(path string) (*GlobalConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Return empty config with defaults
			return &GlobalConfig{
				Servers:  make(map[string]*ServerEntry),
				Defaults: DefaultDefaults(),
			}, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg GlobalConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if cfg.Servers == nil {
		cfg.Servers = make(map[string]*ServerEntry)
	}

	cfg.applyDefaults()

	return &cfg, nil
}

// SaveConfig saves the tool server configuration to disk.
func SaveConfig(cfg *GlobalConfig) error {
	path, err := ConfigPath()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}
	return SaveConfigFile(cfg, path)
}

// SaveConfigFile saves a tool server configuration to the given path.
func SaveConfigFile(cfg *GlobalConfig, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Write to temp file first, then rename (atomic operation)
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath) // Clean up on failure
		return fmt.Errorf("failed to save config file: %w", err)
	}

	return nil
}

// applyDefaults applies default values to server entries.
func (c *GlobalConfig) applyDefaults() {
	defaults := c.Defaults
	if defaults.Timeout == 0 {
		defaults.Timeout = 30
	}
	if defaults.Discovery == "" {
		defaults.Discovery = DiscoverAuto
	}
	if defaults.RestartPolicy == "" {
		defaults.RestartPolicy = RestartAlways
	}
	if defaults.MaxRestartAttempts == 0 {
		defaults.MaxRestartAttempts = 5
	}
	c.Defaults = defaults

	for _, entry := range c.Servers {
		if entry.Timeout == 0 {
			entry.Timeout = defaults.Timeout
		}
		if entry.Discovery == "" {
			entry.Discovery = defaults.Discovery
		}
		if entry.RestartPolicy == "" {
			entry.RestartPolicy = defaults.RestartPolicy
		}
		if entry.MaxRestartAttempts == 0 {
			entry.MaxRestartAttempts = defaults.MaxRestartAttempts
		}
	}
}

// Validate validates the entire configuration.
func (c *GlobalConfig) Validate() error {
	for name, entry := range c.Servers {
		if err := ValidateServerName(name); err != nil {
			return fmt.Errorf("server %q: %w", name, err)
		}
		if err := entry.Validate(); err != nil {
			return fmt.Errorf("server %q: %w", name, err)
		}
	}
	return nil
}

// Validate validates a single server entry.
func (e *ServerEntry) Validate() error {
	if e.Command == "" {
		return fmt.Errorf("command is required")
	}

	if err := ValidateCommand(e.Command); err != nil {
		return err
	}

	if e.Timeout < 0 {
		return fmt.Errorf("timeout must be non-negative")
	}

	if e.Discovery != "" {
		switch e.Discovery {
		case DiscoverAuto, DiscoverInline, DiscoverList:
			// Valid
		default:
			return fmt.Errorf("invalid discovery: %s (must be 'auto', 'inline', or 'list')", e.Discovery)
		}
	}

	if e.CallsPerMinute < 0 {
		return fmt.Errorf("calls_per_minute must be non-negative")
	}

	if e.RestartPolicy != "" {
		switch e.RestartPolicy {
		case RestartAlways, RestartOnFailure, RestartNever:
			// Valid
		default:
			return fmt.Errorf("invalid restart_policy: %s (must be 'always', 'on-failure', or 'never')", e.RestartPolicy)
		}
	}

	if e.MaxRestartAttempts < 0 {
		return fmt.Errorf("max_restart_attempts must be non-negative")
	}

	// Validate args for shell injection
	for i, arg := range e.Args {
		if err := ValidateArg(arg); err != nil {
			return fmt.Errorf("args[%d]: %w", i, err)
		}
	}

	// Validate env vars
	for i, env := range e.Env {
		if err := ValidateEnv(env); err != nil {
			return fmt.Errorf("env[%d]: %w", i, err)
		}
	}

	return nil
}

// Equal reports whether two entries describe the same server configuration.
func (e *ServerEntry) Equal(other *ServerEntry) bool {
	return e.Command == other.Command &&
		slices.Equal(e.Args, other.Args) &&
		slices.Equal(e.Env, other.Env) &&
		e.Cwd == other.Cwd &&
		e.Timeout == other.Timeout &&
		e.Discovery == other.Discovery &&
		e.CallsPerMinute == other.CallsPerMinute &&
		e.AutoStart == other.AutoStart &&
		e.RestartPolicy == other.RestartPolicy &&
		e.MaxRestartAttempts == other.MaxRestartAttempts
}

// ToClientConfig converts a ServerEntry to a ClientConfig, expanding ${VAR}
// references in env values against the current environment.
func (e *ServerEntry) ToClientConfig(name string, logger *slog.Logger) ClientConfig {
	return ClientConfig{
		ServerName:     name,
		Command:        e.Command,
		Args:           e.Args,
		Env:            ExpandEnv(e.Env, logger),
		Dir:            e.Cwd,
		Timeout:        time.Duration(e.Timeout) * time.Second,
		Discovery:      e.Discovery,
		CallsPerMinute: e.CallsPerMinute,
		Logger:         logger,
	}
}

// envVarPattern matches ${VAR} references in env values.
var envVarPattern = regexp.MustCompile(`\$\{([a-zA-Z_][a-zA-Z0-9_]*)\}`)

// ExpandEnv expands ${VAR} references in KEY=VALUE pairs against the
// current process environment. Unset variables expand to the empty string
// with a warning rather than failing the launch.
func ExpandEnv(envs []string, logger *slog.Logger) []string {
	if len(envs) == 0 {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}

	result := make([]string, len(envs))
	for i, env := range envs {
		result[i] = envVarPattern.ReplaceAllStringFunc(env, func(match string) string {
			name := envVarPattern.FindStringSubmatch(match)[1]
			value, ok := os.LookupEnv(name)
			if !ok {
				logger.Warn("environment variable referenced in config is not set",
					"variable", name)
			}
			return value
		})
	}
	return result
}

// ValidateServerName validates a tool server name.
func ValidateServerName(name string) error {
	if name == "" {
		return fmt.Errorf("server name is required")
	}
	if len(name) > 64 {
		return fmt.Errorf("server name exceeds 64 character limit")
	}
	if !ServerNameRegex.MatchString(name) {
		return fmt.Errorf("invalid server name: must start with a letter and contain only letters, numbers, hyphens, and underscores")
	}
	return nil
}

// ValidateCommand validates a command is safe to execute.
func ValidateCommand(cmd string) error {
	if cmd == "" {
		return fmt.Errorf("command is required")
	}

	if filepath.IsAbs(cmd) {
		info, err := os.Stat(cmd)
		if err != nil {
			if os.IsNotExist(err) {
				return fmt.Errorf("command not found: %s", cmd)
			}
			return fmt.Errorf("cannot access command: %w", err)
		}
		if info.IsDir() {
			return fmt.Errorf("command is a directory: %s", cmd)
		}
		// Check if executable (Unix only, but Windows will still work)
		if info.Mode()&0111 == 0 {
			return fmt.Errorf("command is not executable: %s", cmd)
		}
		return nil
	}

	// Check if command is in PATH
	if _, err := exec.LookPath(cmd); err != nil {
		return fmt.Errorf("command not found in PATH: %s", cmd)
	}

	return nil
}

// shellInjectionPatterns are patterns that could indicate shell injection attempts.
var shellInjectionPatterns = []string{
	";", "&&", "||", "|", "`", "$(", "${", "\n", "\r",
}

// ValidateArg validates a command argument for shell injection.
func ValidateArg(arg string) error {
	for _, pattern := range shellInjectionPatterns {
		if strings.Contains(arg, pattern) {
			return fmt.Errorf("argument contains potentially unsafe pattern %q", pattern)
		}
	}
	return nil
}

// envKeyPattern matches valid environment variable keys.
var envKeyPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ValidateEnv validates an environment variable.
func ValidateEnv(env string) error {
	// Must be in KEY=VALUE format
	parts := strings.SplitN(env, "=", 2)
	if len(parts) != 2 {
		return fmt.Errorf("environment variable must be in KEY=VALUE format")
	}

	key := parts[0]
	if key == "" {
		return fmt.Errorf("environment variable key is required")
	}

	if !envKeyPattern.MatchString(key) {
		return fmt.Errorf("invalid environment variable key: %s", key)
	}

	// Value is allowed to contain ${VAR} for variable substitution
	// but not shell injection patterns (except ${)
	value := parts[1]
	for _, pattern := range shellInjectionPatterns {
		if pattern == "${" {
			continue
		}
		if strings.Contains(value, pattern) {
			return fmt.Errorf("environment value contains potentially unsafe pattern %q", pattern)
		}
	}

	return nil
}

// sensitiveKeyPatterns are patterns that indicate a sensitive value.
var sensitiveKeyPatterns = []string{
	"SECRET", "TOKEN", "KEY", "PASSWORD", "CREDENTIAL", "AUTH", "API_KEY",
}

// IsSensitiveEnvKey returns true if the key appears to contain sensitive data.
func IsSensitiveEnvKey(key string) bool {
	upperKey := strings.ToUpper(key)
	for _, pattern := range sensitiveKeyPatterns {
		if strings.Contains(upperKey, pattern) {
			return true
		}
	}
	return false
}

// RedactEnv redacts sensitive values from an environment variable list.
func RedactEnv(envs []string) []string {
	result := make([]string, len(envs))
	for i, env := range envs {
		parts := strings.SplitN(env, "=", 2)
		if len(parts) == 2 && IsSensitiveEnvKey(parts[0]) {
			result[i] = parts[0] + "=***REDACTED***"
		} else {
			result[i] = env
		}
	}
	return result
}
