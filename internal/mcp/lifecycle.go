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

// Server monitoring and restart logic.
// Manages the lifecycle of individual tool server instances including crash
// detection, automatic restart with exponential backoff, and graceful
// shutdown.

package mcp

import (
	"context"
	"time"
)

// monitorServer runs a server's lifecycle until stopped: start, watch for
// crash or restart signal, apply the restart policy with backoff.
func (m *Manager) monitorServer(state *serverState) {
	defer m.wg.Done()

	serverName := state.name

	for {
		state.mu.Lock()
		state.state = ServerStateStarting
		state.mu.Unlock()

		client, err := m.startServerClient(state)
		if err != nil {
			m.logger.Error("failed to start tool server",
				"server", serverName,
				"error", err,
			)
			m.events.EmitFailed(serverName, err)

			state.mu.Lock()
			state.state = ServerStateError
			state.lastError = err.Error()
			state.restartCount++
			currentRestartCount := state.restartCount
			policy := state.entry.RestartPolicy
			maxAttempts := state.entry.MaxRestartAttempts
			state.mu.Unlock()

			if !shouldRestart(policy, maxAttempts, currentRestartCount, err) {
				m.logger.Info("restart policy prevents restart",
					"server", serverName,
					"policy", policy,
					"restart_count", currentRestartCount,
					"max_attempts", maxAttempts,
				)
				return
			}

			backoff := m.calculateBackoff(state)
			m.logger.Info("tool server will retry after backoff",
				"server", serverName,
				"backoff", backoff,
				"failures", state.failureCount,
				"restart_count", currentRestartCount,
			)
			m.events.EmitRestarting(serverName, currentRestartCount)

			select {
			case <-time.After(backoff):
				continue
			case <-state.stopCh:
				return
			case <-m.ctx.Done():
				return
			}
		}

		toolCount := len(client.Tools())

		state.mu.Lock()
		state.failureCount = 0
		state.restartCount = 0
		state.state = ServerStateRunning
		state.startedAt = time.Now()
		state.lastError = ""
		toolsChanged := state.lastToolCount >= 0 && state.lastToolCount != toolCount
		state.lastToolCount = toolCount
		state.mu.Unlock()

		m.events.EmitStarted(serverName)
		if toolsChanged {
			m.events.EmitToolsChanged(serverName, toolCount)
		}

		// Watch for crash, restart request, or stop
		select {
		case <-client.SessionDone():
			exitErr := client.ExitErr()
			m.logger.Warn("tool server session ended",
				"server", serverName,
				"error", exitErr,
			)
			m.events.EmitUnhealthy(serverName, "session ended")

			state.mu.Lock()
			state.state = ServerStateError
			state.failureCount++
			state.lastFailure = time.Now()
			state.restartCount++
			if exitErr != nil {
				state.lastError = exitErr.Error()
			}
			currentRestartCount := state.restartCount
			policy := state.entry.RestartPolicy
			maxAttempts := state.entry.MaxRestartAttempts
			if state.client != nil {
				_ = state.client.Close()
				state.client = nil
			}
			state.mu.Unlock()

			if !shouldRestart(policy, maxAttempts, currentRestartCount, exitErr) {
				m.logger.Info("restart policy prevents restart",
					"server", serverName,
					"policy", policy,
					"restart_count", currentRestartCount,
				)
				state.mu.Lock()
				state.state = ServerStateStopped
				state.mu.Unlock()
				return
			}

			backoff := m.calculateBackoff(state)
			m.events.EmitRestarting(serverName, currentRestartCount)

			select {
			case <-time.After(backoff):
				continue
			case <-state.stopCh:
				return
			case <-m.ctx.Done():
				return
			}

		case <-state.restartCh:
			m.logger.Info("restarting tool server", "server", serverName)
			state.mu.Lock()
			state.state = ServerStateRestarting
			if state.client != nil {
				_ = state.client.Close()
				state.client = nil
			}
			state.mu.Unlock()
			continue

		case <-state.stopCh:
			m.logger.Info("stopping tool server monitor", "server", serverName)
			state.mu.Lock()
			state.state = ServerStateStopped
			state.mu.Unlock()
			return

		case <-m.ctx.Done():
			m.logger.Info("manager shutting down, stopping tool server", "server", serverName)
			state.mu.Lock()
			state.state = ServerStateStopped
			state.mu.Unlock()
			return
		}
	}
}

// startServerClient launches the session for a server and returns the client.
func (m *Manager) startServerClient(state *serverState) (*Client, error) {
	state.mu.Lock()
	defer state.mu.Unlock()

	clientConfig := state.entry.ToClientConfig(state.name, m.logger)
	clientConfig.Stderr = m.logs.Writer(state.name)

	ctx, cancel := context.WithTimeout(m.ctx, 10*time.Second)
	defer cancel()

	client, err := Connect(ctx, clientConfig)
	if err != nil {
		state.failureCount++
		state.lastFailure = time.Now()
		return nil, err
	}

	state.client = client
	return client, nil
}

// calculateBackoff calculates the backoff duration based on failure count.
// Uses exponential backoff: 1s, 2s, 4s, 8s, 16s, max 30s.
func (m *Manager) calculateBackoff(state *serverState) time.Duration {
	state.mu.RLock()
	failures := state.failureCount
	state.mu.RUnlock()

	if failures == 0 {
		return time.Second
	}

	backoff := time.Duration(1<<uint(failures-1)) * time.Second

	if backoff > 30*time.Second {
		backoff = 30 * time.Second
	}

	return backoff
}

// shouldRestart checks the restart policy against the restart count and the
// subprocess exit error. A nil exit error is treated as a clean exit.
func shouldRestart(policy RestartPolicy, maxAttempts, currentCount int, exitErr error) bool {
	switch policy {
	case RestartNever:
		return false
	case RestartOnFailure:
		if exitErr == nil {
			return false
		}
	case RestartAlways, "":
		// Default is always
	}

	// 0 means unlimited
	if maxAttempts > 0 && currentCount >= maxAttempts {
		return false
	}

	return true
}
