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
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testWatcher(t *testing.T, m *Manager) *Watcher {
	t.Helper()
	w, err := NewWatcher(WatcherConfig{
		Manager:       m,
		Logger:        testLogger(),
		DebounceDelay: 50 * time.Millisecond,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })
	return w
}

func TestNewWatcherRequiresManager(t *testing.T) {
	_, err := NewWatcher(WatcherConfig{})
	require.Error(t, err)
}

func TestWatcherValidation(t *testing.T) {
	w := testWatcher(t, testManager(t))

	require.Error(t, w.Watch("", []string{"/tmp"}))
	require.Error(t, w.Watch("srv", nil))
	require.NoError(t, w.Unwatch("never-watched"))
}

func TestWatchConfigFiresOnRewrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "servers.yaml")
	require.NoError(t, os.WriteFile(path, []byte("servers: {}\n"), 0600))

	w := testWatcher(t, testManager(t))

	var fired atomic.Int32
	require.NoError(t, w.WatchConfig(path, func() {
		fired.Add(1)
	}))

	// An atomic save replaces the file via rename, the same way
	// SaveConfigFile does.
	require.NoError(t, SaveConfigFile(&GlobalConfig{}, path))

	require.Eventually(t, func() bool {
		return fired.Load() >= 1
	}, 5*time.Second, 20*time.Millisecond, "config change callback never fired")
}

func TestWatchConfigDebouncesBursts(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "servers.yaml")
	require.NoError(t, os.WriteFile(path, []byte("servers: {}\n"), 0600))

	w := testWatcher(t, testManager(t))

	var fired atomic.Int32
	require.NoError(t, w.WatchConfig(path, func() {
		fired.Add(1)
	}))

	// A burst of rapid writes collapses into at most a couple of reloads.
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte("servers: {}\n"), 0600))
		time.Sleep(5 * time.Millisecond)
	}

	require.Eventually(t, func() bool {
		return fired.Load() >= 1
	}, 5*time.Second, 20*time.Millisecond)

	time.Sleep(200 * time.Millisecond)
	require.Less(t, fired.Load(), int32(5), "reloads must be debounced")
}

func TestWatcherIgnoresUnrelatedFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "servers.yaml")
	require.NoError(t, os.WriteFile(path, []byte("servers: {}\n"), 0600))

	w := testWatcher(t, testManager(t))

	var fired atomic.Int32
	require.NoError(t, w.WatchConfig(path, func() {
		fired.Add(1)
	}))

	// A sibling file in the watched directory must not trigger a reload.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0600))

	time.Sleep(300 * time.Millisecond)
	require.Zero(t, fired.Load())
}
