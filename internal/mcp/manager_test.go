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
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syncBuffer is a goroutine-safe log sink for asserting on manager output.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// helperServerEntry describes the re-executed test binary as a managed
// tool server. See TestHelperServer in client_test.go.
func helperServerEntry() ServerEntry {
	return ServerEntry{
		Command:       os.Args[0],
		Args:          []string{"-test.run=TestHelperServer"},
		Env:           []string{"GO_HELPER_SERVER=1"},
		Timeout:       30,
		Discovery:     DiscoverAuto,
		RestartPolicy: RestartNever,
	}
}

func testManager(t *testing.T) *Manager {
	t.Helper()
	m := NewManager(ManagerConfig{Logger: testLogger()})
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func waitRunning(t *testing.T, m *Manager, name string) {
	t.Helper()
	require.Eventually(t, func() bool {
		return m.IsRunning(name)
	}, 10*time.Second, 20*time.Millisecond, "server %s never became running", name)
}

func TestManagerStartAndStop(t *testing.T) {
	m := testManager(t)

	require.NoError(t, m.Start("helper", helperServerEntry()))
	require.Equal(t, 1, m.ServerCount())
	waitRunning(t, m, "helper")

	client, err := m.GetClient("helper")
	require.NoError(t, err)
	require.Equal(t, SessionReady, client.State())

	status, err := m.GetStatus("helper")
	require.NoError(t, err)
	assert.Equal(t, "helper", status.Name)
	assert.True(t, status.Running)
	assert.Greater(t, status.Pid, 0)
	assert.NotEmpty(t, status.SessionID)
	assert.Equal(t, 3, status.ToolCount)

	require.NoError(t, m.Stop("helper"))
	require.Equal(t, 0, m.ServerCount())
	require.False(t, m.IsRunning("helper"))
}

func TestManagerStartValidation(t *testing.T) {
	m := testManager(t)

	err := m.Start("bad name!", helperServerEntry())
	require.Error(t, err)
	require.True(t, IsCode(err, ErrorCodeValidation), "got %v", err)

	err = m.Start("helper", ServerEntry{})
	require.Error(t, err)
	require.True(t, IsCode(err, ErrorCodeConfig), "got %v", err)

	require.Equal(t, 0, m.ServerCount())
}

func TestManagerStartDuplicate(t *testing.T) {
	m := testManager(t)

	require.NoError(t, m.Start("helper", helperServerEntry()))
	err := m.Start("helper", helperServerEntry())
	require.Error(t, err)
	require.True(t, IsCode(err, ErrorCodeAlreadyRunning), "got %v", err)
}

func TestManagerUnknownServer(t *testing.T) {
	m := testManager(t)

	require.True(t, IsCode(m.Stop("ghost"), ErrorCodeNotFound))
	require.True(t, IsCode(m.Restart("ghost"), ErrorCodeNotFound))

	_, err := m.GetClient("ghost")
	require.True(t, IsCode(err, ErrorCodeNotFound))

	_, err = m.GetStatus("ghost")
	require.True(t, IsCode(err, ErrorCodeNotFound))

	require.True(t, IsCode(m.Update("ghost", helperServerEntry()), ErrorCodeNotFound))
}

func TestManagerUpdateEntryRestartsWithNewConfig(t *testing.T) {
	var buf syncBuffer
	m := NewManager(ManagerConfig{Logger: slog.New(slog.NewJSONHandler(&buf, nil))})
	t.Cleanup(func() { _ = m.Close() })

	require.NoError(t, m.Start("helper", helperServerEntry()))
	waitRunning(t, m, "helper")

	client, err := m.GetClient("helper")
	require.NoError(t, err)
	firstSession := client.SessionID()

	status, err := m.GetStatus("helper")
	require.NoError(t, err)
	require.Equal(t, 3, status.ToolCount)

	// Point the entry at the alternate tool set. The restarted server must
	// come up with the updated environment, not the one it was started with.
	updated := helperServerEntry()
	updated.Env = append(updated.Env, "HELPER_TOOL_SET=alt")
	require.NoError(t, m.Update("helper", updated))

	require.Eventually(t, func() bool {
		c, err := m.GetClient("helper")
		return err == nil && c.State() == SessionReady && c.SessionID() != firstSession
	}, 10*time.Second, 20*time.Millisecond, "update never produced a fresh session")

	status, err = m.GetStatus("helper")
	require.NoError(t, err)
	require.Equal(t, 2, status.ToolCount)

	require.Eventually(t, func() bool {
		return strings.Contains(buf.String(), string(EventToolsChanged))
	}, 5*time.Second, 20*time.Millisecond, "tools_changed event never emitted")
}

func TestManagerUpdateUnchangedEntryKeepsSession(t *testing.T) {
	m := testManager(t)

	require.NoError(t, m.Start("helper", helperServerEntry()))
	waitRunning(t, m, "helper")

	client, err := m.GetClient("helper")
	require.NoError(t, err)
	firstSession := client.SessionID()

	require.NoError(t, m.Update("helper", helperServerEntry()))

	// An identical entry must not restart the server.
	time.Sleep(100 * time.Millisecond)
	client, err = m.GetClient("helper")
	require.NoError(t, err)
	require.Equal(t, firstSession, client.SessionID())
}

func TestManagerRestart(t *testing.T) {
	m := testManager(t)

	require.NoError(t, m.Start("helper", helperServerEntry()))
	waitRunning(t, m, "helper")

	client, err := m.GetClient("helper")
	require.NoError(t, err)
	firstSession := client.SessionID()

	require.NoError(t, m.Restart("helper"))

	require.Eventually(t, func() bool {
		c, err := m.GetClient("helper")
		return err == nil && c.State() == SessionReady && c.SessionID() != firstSession
	}, 10*time.Second, 20*time.Millisecond, "restart never produced a fresh session")
}

func TestManagerCallThroughManagedClient(t *testing.T) {
	m := testManager(t)

	require.NoError(t, m.Start("helper", helperServerEntry()))
	waitRunning(t, m, "helper")

	client, err := m.GetClient("helper")
	require.NoError(t, err)

	res, err := client.CallTool(context.Background(), ToolCallRequest{
		Name:      "read_query",
		Arguments: map[string]any{"sql": "SELECT 1"},
	})
	require.NoError(t, err)
	require.False(t, res.Failed())
}

func TestManagerStartFromConfig(t *testing.T) {
	m := testManager(t)

	auto := helperServerEntry()
	auto.AutoStart = true
	manual := helperServerEntry()

	m.StartFromConfig(&GlobalConfig{
		Servers: map[string]*ServerEntry{
			"auto-one": &auto,
			"manual":   &manual,
		},
	})

	require.Equal(t, 1, m.ServerCount())
	waitRunning(t, m, "auto-one")
	require.False(t, m.IsRunning("manual"))
}

func TestManagerListServers(t *testing.T) {
	m := testManager(t)

	require.NoError(t, m.Start("b-server", helperServerEntry()))
	require.NoError(t, m.Start("a-server", helperServerEntry()))

	require.Equal(t, []string{"a-server", "b-server"}, m.ListServers())
	require.Len(t, m.ListAllStatus(), 2)
}

func TestManagerGetLogsEmpty(t *testing.T) {
	m := testManager(t)
	require.Empty(t, m.GetLogs("nothing", 10, time.Time{}))
}

func TestManagerClose(t *testing.T) {
	m := NewManager(ManagerConfig{Logger: testLogger()})

	require.NoError(t, m.Start("helper", helperServerEntry()))
	waitRunning(t, m, "helper")

	require.NoError(t, m.Close())
	require.Equal(t, 0, m.RunningCount())
}

func TestShouldRestart(t *testing.T) {
	exitErr := errors.New("exit status 1")

	tests := []struct {
		name    string
		policy  RestartPolicy
		max     int
		count   int
		exitErr error
		want    bool
	}{
		{"never", RestartNever, 0, 0, exitErr, false},
		{"always on clean exit", RestartAlways, 0, 0, nil, true},
		{"always on crash", RestartAlways, 0, 0, exitErr, true},
		{"on-failure clean exit", RestartOnFailure, 0, 0, nil, false},
		{"on-failure crash", RestartOnFailure, 0, 0, exitErr, true},
		{"under attempt limit", RestartAlways, 3, 2, exitErr, true},
		{"at attempt limit", RestartAlways, 3, 3, exitErr, false},
		{"unlimited attempts", RestartAlways, 0, 100, exitErr, true},
		{"empty policy defaults to always", "", 0, 0, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := shouldRestart(tt.policy, tt.max, tt.count, tt.exitErr)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCalculateBackoff(t *testing.T) {
	m := testManager(t)

	tests := []struct {
		failures int
		want     time.Duration
	}{
		{0, time.Second},
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{5, 16 * time.Second},
		{6, 30 * time.Second},
		{10, 30 * time.Second},
	}
	for _, tt := range tests {
		state := &serverState{failureCount: tt.failures}
		assert.Equal(t, tt.want, m.calculateBackoff(state), "failures=%d", tt.failures)
	}
}
