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
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher monitors files for changes. Server source paths trigger a
// debounced restart of the owning server; the configuration file triggers
// a reload callback.
type Watcher struct {
	// fsWatcher is the underlying filesystem watcher
	fsWatcher *fsnotify.Watcher

	// manager is the tool server manager to notify of changes
	manager *Manager

	// logger is used for structured logging
	logger *slog.Logger

	// debounceDelay is the delay before acting on file changes
	debounceDelay time.Duration

	// watchedServers maps server names to their watched paths
	watchedServers map[string][]string

	// pendingRestarts tracks servers with pending debounced restarts
	pendingRestarts map[string]*time.Timer

	// configPath is the watched configuration file, if any
	configPath string

	// onConfigChange is invoked (debounced) when the config file changes
	onConfigChange func()

	// configTimer is the pending debounced config reload
	configTimer *time.Timer

	// mu protects watchedServers, pendingRestarts, and config fields
	mu sync.RWMutex

	// ctx is the watcher's lifecycle context
	ctx context.Context

	// cancel stops the watcher
	cancel context.CancelFunc

	// wg tracks active goroutines
	wg sync.WaitGroup
}

// WatcherConfig configures the file watcher.
type WatcherConfig struct {
	// Manager is the tool server manager to notify of changes
	Manager *Manager

	// Logger is used for structured logging (optional)
	Logger *slog.Logger

	// DebounceDelay is the delay before acting on file changes (defaults to 200ms)
	DebounceDelay time.Duration
}

// NewWatcher creates a new file watcher for tool servers.
func NewWatcher(cfg WatcherConfig) (*Watcher, error) {
	if cfg.Manager == nil {
		return nil, fmt.Errorf("manager is required")
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	debounceDelay := cfg.DebounceDelay
	if debounceDelay == 0 {
		debounceDelay = 200 * time.Millisecond
	}

	ctx, cancel := context.WithCancel(context.Background())

	w := &Watcher{
		fsWatcher:       fsWatcher,
		manager:         cfg.Manager,
		logger:          logger,
		debounceDelay:   debounceDelay,
		watchedServers:  make(map[string][]string),
		pendingRestarts: make(map[string]*time.Timer),
		ctx:             ctx,
		cancel:          cancel,
	}

	w.wg.Add(1)
	go w.processEvents()

	return w, nil
}

// Watch adds file paths to watch for a specific tool server.
// When files change, the server will be automatically restarted.
func (w *Watcher) Watch(serverName string, paths []string) error {
	if serverName == "" {
		return fmt.Errorf("server name is required")
	}
	if len(paths) == 0 {
		return fmt.Errorf("at least one path is required")
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	for _, path := range paths {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return fmt.Errorf("failed to resolve path %s: %w", path, err)
		}

		if err := w.fsWatcher.Add(absPath); err != nil {
			return fmt.Errorf("failed to watch path %s: %w", absPath, err)
		}

		w.logger.Debug("watching path for tool server",
			"server", serverName,
			"path", absPath,
		)
	}

	w.watchedServers[serverName] = paths

	return nil
}

// WatchConfig watches the configuration file and invokes onChange
// (debounced) when it is rewritten.
func (w *Watcher) WatchConfig(path string, onChange func()) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path %s: %w", path, err)
	}

	// Watch the directory rather than the file: atomic saves replace the
	// file, which drops a direct watch on some platforms.
	if err := w.fsWatcher.Add(filepath.Dir(absPath)); err != nil {
		return fmt.Errorf("failed to watch config directory: %w", err)
	}

	w.mu.Lock()
	w.configPath = absPath
	w.onConfigChange = onChange
	w.mu.Unlock()

	w.logger.Debug("watching configuration file", "path", absPath)

	return nil
}

// Unwatch removes file path watches for a specific tool server.
func (w *Watcher) Unwatch(serverName string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	paths, exists := w.watchedServers[serverName]
	if !exists {
		return nil // Already unwatched
	}

	for _, path := range paths {
		absPath, err := filepath.Abs(path)
		if err != nil {
			continue
		}

		// Check if any other server is watching this path
		inUse := false
		for otherServer, otherPaths := range w.watchedServers {
			if otherServer == serverName {
				continue
			}
			for _, otherPath := range otherPaths {
				otherAbs, _ := filepath.Abs(otherPath)
				if otherAbs == absPath {
					inUse = true
					break
				}
			}
			if inUse {
				break
			}
		}

		if !inUse {
			_ = w.fsWatcher.Remove(absPath)
		}
	}

	delete(w.watchedServers, serverName)

	if timer, exists := w.pendingRestarts[serverName]; exists {
		timer.Stop()
		delete(w.pendingRestarts, serverName)
	}

	return nil
}

// processEvents processes filesystem events.
func (w *Watcher) processEvents() {
	defer w.wg.Done()

	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}

			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				w.handleFileChange(event.Name)
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("file watcher error", "error", err)

		case <-w.ctx.Done():
			return
		}
	}
}

// handleFileChange handles a file change event by scheduling debounced work.
func (w *Watcher) handleFileChange(changedPath string) {
	absPath, err := filepath.Abs(changedPath)
	if err != nil {
		return
	}

	w.mu.RLock()
	isConfig := w.configPath != "" && absPath == w.configPath
	w.mu.RUnlock()

	if isConfig {
		w.logger.Info("configuration file changed", "file", absPath)
		w.scheduleConfigReload()
		return
	}

	var serversToRestart []string

	w.mu.Lock()
	for serverName, watchedPaths := range w.watchedServers {
		isWatched := false
		for _, watchedPath := range watchedPaths {
			watchedAbs, _ := filepath.Abs(watchedPath)
			if watchedAbs == absPath {
				isWatched = true
				break
			}
		}

		if isWatched {
			serversToRestart = append(serversToRestart, serverName)
		}
	}
	w.mu.Unlock()

	// Schedule restarts outside the lock to avoid holding lock across blocking operation
	for _, serverName := range serversToRestart {
		w.logger.Info("tool server source file changed",
			"server", serverName,
			"file", absPath,
		)

		w.scheduleRestart(serverName)
	}
}

// scheduleConfigReload schedules a debounced config reload callback.
func (w *Watcher) scheduleConfigReload() {
	w.mu.Lock()
	if w.configTimer != nil {
		w.configTimer.Stop()
	}
	onChange := w.onConfigChange
	w.configTimer = time.AfterFunc(w.debounceDelay, func() {
		if onChange != nil {
			onChange()
		}
	})
	w.mu.Unlock()
}

// scheduleRestart schedules a debounced restart for a server.
func (w *Watcher) scheduleRestart(serverName string) {
	w.mu.Lock()
	if timer, exists := w.pendingRestarts[serverName]; exists {
		timer.Stop()
		delete(w.pendingRestarts, serverName)
	}
	w.mu.Unlock()

	name := serverName

	timer := time.AfterFunc(w.debounceDelay, func() {
		w.triggerRestart(name)
	})

	w.mu.Lock()
	w.pendingRestarts[serverName] = timer
	w.mu.Unlock()
}

// triggerRestart triggers an immediate restart of a server.
func (w *Watcher) triggerRestart(serverName string) {
	w.mu.Lock()
	delete(w.pendingRestarts, serverName)
	w.mu.Unlock()

	w.logger.Info("restarting tool server after file changes", "server", serverName)

	if err := w.manager.Restart(serverName); err != nil {
		w.logger.Error("failed to restart tool server",
			"server", serverName,
			"error", err,
		)
	}
}

// Close shuts down the watcher.
func (w *Watcher) Close() error {
	w.cancel()

	w.mu.Lock()
	for _, timer := range w.pendingRestarts {
		timer.Stop()
	}
	if w.configTimer != nil {
		w.configTimer.Stop()
	}
	w.mu.Unlock()

	w.wg.Wait()

	return w.fsWatcher.Close()
}
