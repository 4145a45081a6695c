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
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// ServerRunState represents the lifecycle state of a managed server.
type ServerRunState string

const (
	// ServerStateStopped indicates the server is not running.
	ServerStateStopped ServerRunState = "stopped"
	// ServerStateStarting indicates the server is starting up.
	ServerStateStarting ServerRunState = "starting"
	// ServerStateRunning indicates the server is running and healthy.
	ServerStateRunning ServerRunState = "running"
	// ServerStateRestarting indicates the server is being restarted.
	ServerStateRestarting ServerRunState = "restarting"
	// ServerStateError indicates the server failed to start or crashed.
	ServerStateError ServerRunState = "error"
)

// serverState tracks the runtime state of a managed tool server.
type serverState struct {
	// name is the server's unique identifier
	name string

	// entry is the server configuration
	entry ServerEntry

	// client is the active session
	client *Client

	// startedAt is the timestamp when the server was last started
	startedAt time.Time

	// state is the current lifecycle state
	state ServerRunState

	// lastError is the most recent error message
	lastError string

	// failureCount tracks consecutive failures for backoff calculation
	failureCount int

	// lastFailure is the timestamp of the last failure
	lastFailure time.Time

	// restartCount tracks restarts since the last successful start
	restartCount int

	// lastToolCount is the tool count from the previous successful start,
	// or -1 before the first one
	lastToolCount int

	// restartCh signals when a restart is needed
	restartCh chan struct{}

	// stopCh signals when the server should be stopped
	stopCh chan struct{}

	// mu protects the state fields
	mu sync.RWMutex
}

// Manager manages the lifecycle of tool servers.
// It handles starting, stopping, health monitoring, and restart logic with
// exponential backoff governed by each server's restart policy.
type Manager struct {
	// servers tracks all managed tool servers by name
	servers map[string]*serverState

	// logs captures subprocess stderr per server
	logs *LogCapture

	// events emits lifecycle events
	events *EventEmitter

	// logger is used for structured logging
	logger *slog.Logger

	// mu protects the servers map
	mu sync.RWMutex

	// ctx is the manager's lifecycle context
	ctx context.Context

	// cancel stops all managed servers
	cancel context.CancelFunc

	// wg tracks active server monitors
	wg sync.WaitGroup
}

// ManagerConfig configures the tool server manager.
type ManagerConfig struct {
	// Logger is used for structured logging (optional)
	Logger *slog.Logger
}

// NewManager creates a new tool server manager.
func NewManager(cfg ManagerConfig) *Manager {
	ctx, cancel := context.WithCancel(context.Background())

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Manager{
		servers: make(map[string]*serverState),
		logs:    NewLogCapture(),
		events:  NewEventEmitter(logger),
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// StartFromConfig starts every auto_start server in the configuration.
// Servers that fail validation are skipped with a logged error; the rest
// still start.
func (m *Manager) StartFromConfig(cfg *GlobalConfig) {
	for name, entry := range cfg.Servers {
		if !entry.AutoStart {
			continue
		}
		if err := m.Start(name, *entry); err != nil {
			m.logger.Error("failed to start tool server",
				"server", name,
				"error", err,
			)
		}
	}
}

// Start starts a tool server with the given configuration.
// If a server with the same name is already running, it returns an error.
func (m *Manager) Start(name string, entry ServerEntry) error {
	if err := ValidateServerName(name); err != nil {
		return ErrInvalidServerName(name).WithCause(err)
	}
	if err := entry.Validate(); err != nil {
		return ErrInvalidConfig(err.Error()).WithCause(err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.servers[name]; exists {
		return ErrServerAlreadyRunning(name)
	}

	state := &serverState{
		name:          name,
		entry:         entry,
		lastToolCount: -1,
		restartCh:     make(chan struct{}, 1),
		stopCh:        make(chan struct{}),
	}

	m.servers[name] = state

	m.wg.Add(1)
	go m.monitorServer(state)

	m.logger.Info("tool server starting",
		"server", name,
		"command", entry.Command,
	)

	return nil
}

// Stop stops a tool server by name.
func (m *Manager) Stop(name string) error {
	m.mu.Lock()
	state, exists := m.servers[name]
	if !exists {
		m.mu.Unlock()
		return ErrServerNotFound(name)
	}
	delete(m.servers, name)
	m.mu.Unlock()

	close(state.stopCh)

	state.mu.Lock()
	if state.client != nil {
		_ = state.client.Close()
		state.client = nil
	}
	state.mu.Unlock()

	m.events.EmitStopped(name)

	return nil
}

// StopAll stops all managed tool servers.
func (m *Manager) StopAll() {
	m.mu.Lock()
	serverNames := make([]string, 0, len(m.servers))
	for name := range m.servers {
		serverNames = append(serverNames, name)
	}
	m.mu.Unlock()

	for _, name := range serverNames {
		_ = m.Stop(name)
	}

	m.wg.Wait()
}

// GetClient returns the client for a server by name.
// If the server is not running or not healthy, it returns an error.
func (m *Manager) GetClient(name string) (*Client, error) {
	m.mu.RLock()
	state, exists := m.servers[name]
	m.mu.RUnlock()

	if !exists {
		return nil, ErrServerNotFound(name)
	}

	state.mu.RLock()
	client := state.client
	state.mu.RUnlock()

	if client == nil {
		return nil, ErrServerNotRunning(name)
	}

	return client, nil
}

// Restart triggers a restart of the specified server.
func (m *Manager) Restart(name string) error {
	m.mu.RLock()
	state, exists := m.servers[name]
	m.mu.RUnlock()

	if !exists {
		return ErrServerNotFound(name)
	}

	select {
	case state.restartCh <- struct{}{}:
		m.logger.Info("tool server restart triggered", "server", name)
		return nil
	default:
		return ErrServerAlreadyRunning(name).WithDetail("restart already pending")
	}
}

// Update replaces a managed server's configuration and triggers a restart
// so the new entry takes effect. Updating with an unchanged entry is a
// no-op; the server keeps running.
func (m *Manager) Update(name string, entry ServerEntry) error {
	if err := entry.Validate(); err != nil {
		return ErrInvalidConfig(err.Error()).WithCause(err)
	}

	m.mu.RLock()
	state, exists := m.servers[name]
	m.mu.RUnlock()

	if !exists {
		return ErrServerNotFound(name)
	}

	state.mu.Lock()
	if state.entry.Equal(&entry) {
		state.mu.Unlock()
		return nil
	}
	state.entry = entry
	state.mu.Unlock()

	m.logger.Info("tool server configuration updated", "server", name)

	return m.Restart(name)
}

// GetLogs returns captured stderr lines for a server.
func (m *Manager) GetLogs(name string, lines int, since time.Time) []LogEntry {
	return m.logs.GetLogs(name, lines, since)
}

// Close shuts down the manager and all managed servers.
func (m *Manager) Close() error {
	m.cancel()
	m.StopAll()
	return nil
}

// ListServers returns the names of all managed servers.
func (m *Manager) ListServers() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.servers))
	for name := range m.servers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ServerStatus represents the status of a managed tool server.
type ServerStatus struct {
	Name         string
	State        ServerRunState
	Running      bool
	Pid          int
	SessionID    string
	StartedAt    *time.Time
	Uptime       time.Duration
	FailureCount int
	LastFailure  *time.Time
	LastError    string
	ToolCount    int
}

// GetStatus returns the status of a server by name.
func (m *Manager) GetStatus(name string) (*ServerStatus, error) {
	m.mu.RLock()
	state, exists := m.servers[name]
	m.mu.RUnlock()

	if !exists {
		return nil, ErrServerNotFound(name)
	}

	state.mu.RLock()
	defer state.mu.RUnlock()

	status := &ServerStatus{
		Name:         name,
		State:        state.state,
		Running:      state.client != nil,
		FailureCount: state.failureCount,
		LastError:    state.lastError,
	}

	if state.client != nil {
		status.Pid = state.client.Pid()
		status.SessionID = state.client.SessionID()
		status.ToolCount = len(state.client.Tools())
	}

	if !state.startedAt.IsZero() {
		status.StartedAt = &state.startedAt
		if state.client != nil {
			status.Uptime = time.Since(state.startedAt)
		}
	}

	if !state.lastFailure.IsZero() {
		status.LastFailure = &state.lastFailure
	}

	return status, nil
}

// ListAllStatus returns the status of all managed servers.
func (m *Manager) ListAllStatus() []*ServerStatus {
	names := m.ListServers()

	statuses := make([]*ServerStatus, 0, len(names))
	for _, name := range names {
		status, err := m.GetStatus(name)
		if err == nil {
			statuses = append(statuses, status)
		}
	}

	return statuses
}

// IsRunning returns true if the named server is running.
func (m *Manager) IsRunning(name string) bool {
	m.mu.RLock()
	state, exists := m.servers[name]
	m.mu.RUnlock()

	if !exists {
		return false
	}

	state.mu.RLock()
	defer state.mu.RUnlock()

	return state.client != nil
}

// ServerCount returns the number of managed servers.
func (m *Manager) ServerCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.servers)
}

// RunningCount returns the number of running servers.
func (m *Manager) RunningCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, state := range m.servers {
		state.mu.RLock()
		if state.client != nil {
			count++
		}
		state.mu.RUnlock()
	}
	return count
}
