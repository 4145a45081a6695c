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
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// SessionState is the lifecycle state of a client session.
type SessionState string

const (
	// SessionNotStarted means the subprocess has not been launched.
	SessionNotStarted SessionState = "not_started"
	// SessionInitializing means the handshake is in progress.
	SessionInitializing SessionState = "initializing"
	// SessionReady means tools are discovered and calls may be issued.
	SessionReady SessionState = "ready"
	// SessionClosed means the session is unusable until re-initialized.
	SessionClosed SessionState = "closed"
)

// DiscoveryMode selects how the tool list is obtained after the handshake.
// Servers differ: some inline their tool list in the initialize response,
// others expect a follow-up tools/list call.
type DiscoveryMode string

const (
	// DiscoverAuto uses the inlined list when present, else calls tools/list.
	DiscoverAuto DiscoveryMode = "auto"
	// DiscoverInline trusts the handshake response exclusively.
	DiscoverInline DiscoveryMode = "inline"
	// DiscoverList always issues a tools/list call after the handshake.
	DiscoverList DiscoveryMode = "list"
)

// Default timeouts.
const (
	// DefaultCallTimeout bounds a single tool call.
	DefaultCallTimeout = 30 * time.Second
	// DefaultHandshakeTimeout bounds the initialize exchange.
	DefaultHandshakeTimeout = 10 * time.Second
)

// clientName identifies this client in the handshake.
const clientName = "toolgate"

// clientVersion is reported in the handshake (injected via ldflags upstream).
var clientVersion = "0.1.0"

// ClientConfig configures a tool server client.
type ClientConfig struct {
	// ServerName is the unique identifier for this server
	ServerName string

	// Command is the executable to run
	Command string

	// Args are the command-line arguments
	Args []string

	// Env are KEY=VALUE pairs overlaying the inherited environment
	Env []string

	// Dir is the subprocess working directory (optional)
	Dir string

	// Timeout is the default timeout for tool calls (defaults to 30s)
	Timeout time.Duration

	// HandshakeTimeout bounds the initialize exchange (defaults to 10s)
	HandshakeTimeout time.Duration

	// Discovery selects the tool discovery protocol variant
	Discovery DiscoveryMode

	// CallsPerMinute rate-limits tool calls; 0 means unlimited
	CallsPerMinute int

	// Stderr receives the subprocess's stderr; nil discards it
	Stderr io.Writer

	// OnNotification receives out-of-band server messages (optional)
	OnNotification NotificationHandler

	// Logger is used for structured logging (optional)
	Logger *slog.Logger
}

// ToolCallRequest represents a request to execute a tool.
type ToolCallRequest struct {
	// Name is the tool to execute
	Name string

	// Arguments contains the input parameters for the tool
	Arguments map[string]any

	// Timeout overrides the client's default call timeout when positive
	Timeout time.Duration
}

// Client manages one tool server session: the subprocess, the handshake,
// the discovered tool registry, and concurrent tool calls multiplexed over
// the single connection. A Client drives the state machine
//
//	NotStarted -> Initializing -> Ready -> Closed
//
// with any number of calls in flight while Ready. A closed client may be
// re-initialized; each initialization gets a fresh session id and a fresh
// request id space.
type Client struct {
	name     string
	cfg      ClientConfig
	logger   *slog.Logger
	limiter  *rate.Limiter
	registry *ToolRegistry

	mu         sync.Mutex
	state      SessionState
	sessionID  string
	session    *ProcessSession
	correlator *Correlator
	closeCause error
}

// NewClient creates a client in the NotStarted state. The subprocess is not
// launched until Initialize or the first DiscoverTools call.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.ServerName == "" {
		return nil, ErrInvalidConfig("server name is required")
	}
	if cfg.Command == "" {
		return nil, ErrInvalidConfig("command is required")
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultCallTimeout
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if cfg.Discovery == "" {
		cfg.Discovery = DiscoverAuto
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("server", cfg.ServerName)

	var limiter *rate.Limiter
	if cfg.CallsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(cfg.CallsPerMinute)/60.0), cfg.CallsPerMinute)
	}

	return &Client{
		name:     cfg.ServerName,
		cfg:      cfg,
		logger:   logger,
		limiter:  limiter,
		registry: NewToolRegistry(),
		state:    SessionNotStarted,
	}, nil
}

// Connect creates a client and initializes it in one step.
func Connect(ctx context.Context, cfg ClientConfig) (*Client, error) {
	c, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}
	if err := c.Initialize(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// Initialize launches the subprocess and performs the handshake, populating
// the tool registry. Valid from NotStarted and from Closed (explicit
// re-initialization). On any failure the session transitions to Closed and
// the error is returned; there is no retry at this layer.
func (c *Client) Initialize(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case SessionReady:
		c.mu.Unlock()
		return nil
	case SessionInitializing:
		c.mu.Unlock()
		return NewError(ErrorCodeAlreadyRunning, "session initialization already in progress")
	}
	c.state = SessionInitializing
	c.sessionID = uuid.NewString()
	c.closeCause = nil
	sessionID := c.sessionID
	c.mu.Unlock()

	logger := c.logger.With("session_id", sessionID)

	session, err := StartProcess(LaunchSpec{
		Command: c.cfg.Command,
		Args:    c.cfg.Args,
		Env:     c.cfg.Env,
		Dir:     c.cfg.Dir,
	}, c.cfg.Stderr, logger)
	if err != nil {
		c.markClosed(nil, err)
		return err
	}

	correlator := NewCorrelator(c.name, session, logger, c.cfg.OnNotification)

	// Propagate unexpected subprocess death to the session state. The
	// guard on the correlator pointer keeps a stale watcher from closing
	// a re-initialized session.
	go func() {
		<-correlator.Done()
		c.mu.Lock()
		stale := c.correlator != correlator
		c.mu.Unlock()
		if stale {
			return
		}
		if c.markClosed(correlator, session.ExitErr()) {
			logger.Warn("tool server exited unexpectedly", "error", session.ExitErr())
			session.Terminate()
		}
	}()

	c.mu.Lock()
	c.session = session
	c.correlator = correlator
	c.mu.Unlock()

	tools, err := c.handshake(ctx, correlator)
	if err != nil {
		c.markClosed(correlator, err)
		correlator.Fail(err)
		session.Terminate()
		return err
	}

	if err := c.registry.Replace(tools); err != nil {
		c.markClosed(correlator, err)
		correlator.Fail(err)
		session.Terminate()
		return err
	}

	c.mu.Lock()
	// The death watcher may have closed the session while the handshake
	// was completing; do not resurrect it.
	if c.state != SessionInitializing {
		cause := c.closeCause
		c.mu.Unlock()
		return ErrSessionClosed(cause)
	}
	c.state = SessionReady
	c.mu.Unlock()

	recordSession(c.name, "opened")
	logger.Info("tool server session ready",
		"pid", session.Pid(),
		"tools", len(tools),
	)

	return nil
}

// handshake performs the initialize exchange and returns the initial tool
// set according to the configured discovery mode.
func (c *Client) handshake(ctx context.Context, correlator *Correlator) ([]Tool, error) {
	msg, err := correlator.Send(ctx, MethodInitialize, initializeParams{
		ProtocolVersion: ProtocolVersion,
		Capabilities:    map[string]any{},
		ClientInfo: clientInfo{
			Name:    clientName,
			Version: clientVersion,
		},
	}, c.cfg.HandshakeTimeout)
	if err != nil {
		return nil, WrapError(err, CodeOf(err), "initialize request failed")
	}
	if msg.Err != nil {
		return nil, NewError(ErrorCodeLaunch, "tool server rejected initialize").
			WithDetail(msg.Err.Message).
			WithCause(msg.Err)
	}

	var res initializeResult
	if err := codec.Unmarshal(msg.Result, &res); err != nil {
		return nil, ErrMalformedMessage(msg.Result, err)
	}

	switch c.cfg.Discovery {
	case DiscoverInline:
		return res.Tools, nil
	case DiscoverList:
		return c.listTools(ctx, correlator)
	default: // DiscoverAuto
		if len(res.Tools) > 0 {
			return res.Tools, nil
		}
		return c.listTools(ctx, correlator)
	}
}

// listTools issues a tools/list call and decodes the result.
func (c *Client) listTools(ctx context.Context, correlator *Correlator) ([]Tool, error) {
	msg, err := correlator.Send(ctx, MethodListTools, map[string]any{}, c.cfg.HandshakeTimeout)
	if err != nil {
		return nil, err
	}
	if msg.Err != nil {
		return nil, NewError(ErrorCodeLaunch, "tool listing rejected").
			WithDetail(msg.Err.Message).
			WithCause(msg.Err)
	}

	var res listToolsResult
	if err := codec.Unmarshal(msg.Result, &res); err != nil {
		return nil, ErrMalformedMessage(msg.Result, err)
	}
	return res.Tools, nil
}

// DiscoverTools returns the server's tool set. The first call on a
// NotStarted client lazily initializes the session; on a Ready client it
// performs an explicit re-discovery via tools/list and atomically replaces
// the registry. Use Tools for the cached set.
func (c *Client) DiscoverTools(ctx context.Context) ([]Tool, error) {
	c.mu.Lock()
	state := c.state
	correlator := c.correlator
	c.mu.Unlock()

	switch state {
	case SessionNotStarted:
		if err := c.Initialize(ctx); err != nil {
			return nil, err
		}
		return c.registry.List(), nil

	case SessionReady:
		tools, err := c.listTools(ctx, correlator)
		if err != nil {
			return nil, err
		}
		if err := c.registry.Replace(tools); err != nil {
			return nil, err
		}
		return c.registry.List(), nil

	default:
		return nil, ErrNotReady(state)
	}
}

// Tools returns the cached tool set from the most recent discovery.
func (c *Client) Tools() []Tool {
	return c.registry.List()
}

// CallTool invokes one tool by name. Only valid while Ready: calling before
// discovery fails fast with NOT_READY rather than implicitly initializing,
// and an unknown tool name fails without writing anything to the
// subprocess. A failure the tool itself reports comes back as the error
// variant of ToolCallResult with a nil error; a returned error always means
// the tool server could not be reached or did not answer.
func (c *Client) CallTool(ctx context.Context, req ToolCallRequest) (*ToolCallResult, error) {
	c.mu.Lock()
	state := c.state
	correlator := c.correlator
	c.mu.Unlock()

	if state != SessionReady {
		return nil, ErrNotReady(state)
	}

	if _, ok := c.registry.Get(req.Name); !ok {
		return nil, ErrUnknownTool(req.Name, c.registry.Names())
	}

	if c.limiter != nil && !c.limiter.Allow() {
		return nil, ErrRateLimited(c.name)
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = c.cfg.Timeout
	}

	args := req.Arguments
	if args == nil {
		args = map[string]any{}
	}

	start := time.Now()
	msg, err := correlator.Send(ctx, MethodCallTool, callToolParams{
		Name:      req.Name,
		Arguments: args,
	}, timeout)
	if err != nil {
		recordToolCall(c.name, string(CodeOf(err)), time.Since(start).Seconds())
		return nil, err
	}

	if msg.Err != nil {
		recordToolCall(c.name, "tool_error", time.Since(start).Seconds())
		return &ToolCallResult{Err: msg.Err}, nil
	}

	recordToolCall(c.name, "ok", time.Since(start).Seconds())
	return &ToolCallResult{Result: msg.Result}, nil
}

// Ping checks that the server is still answering requests. A server that
// rejects the ping method is still considered live: it answered.
func (c *Client) Ping(ctx context.Context) error {
	c.mu.Lock()
	state := c.state
	correlator := c.correlator
	c.mu.Unlock()

	if state != SessionReady {
		return ErrNotReady(state)
	}

	_, err := correlator.Send(ctx, MethodPing, map[string]any{}, c.cfg.HandshakeTimeout)
	return err
}

// Close shuts the session down: pending requests fail with SESSION_CLOSED
// and the subprocess is terminated. Idempotent. The client may be
// re-initialized afterwards.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.state == SessionClosed || c.state == SessionNotStarted {
		c.state = SessionClosed
		c.mu.Unlock()
		return nil
	}
	correlator := c.correlator
	session := c.session
	c.state = SessionClosed
	c.mu.Unlock()

	if correlator != nil {
		correlator.Fail(NewError(ErrorCodeSessionClosed, "client closed"))
	}
	if session != nil {
		session.Terminate()
	}

	recordSession(c.name, "closed")
	c.logger.Info("tool server session closed")

	return nil
}

// markClosed transitions to Closed, recording the cause. Returns false if
// the session was already closed (or belongs to a newer correlator).
func (c *Client) markClosed(correlator *Correlator, cause error) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == SessionClosed {
		return false
	}
	if correlator != nil && c.correlator != correlator {
		return false
	}
	c.state = SessionClosed
	c.closeCause = cause
	recordSession(c.name, "closed")
	return true
}

// State returns the current lifecycle state.
func (c *Client) State() SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ServerName returns the unique identifier for this server.
func (c *Client) ServerName() string {
	return c.name
}

// SessionID returns the id of the current (or last) session.
func (c *Client) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// neverStarted is returned by SessionDone before the first Initialize.
var neverStarted = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

// SessionDone returns a channel closed when the current session's reader
// exits, whether from Close or subprocess death. Before the first
// initialization the returned channel is already closed.
func (c *Client) SessionDone() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.correlator == nil {
		return neverStarted
	}
	return c.correlator.Done()
}

// ExitErr returns the subprocess exit error, or nil before exit.
func (c *Client) ExitErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	return c.session.ExitErr()
}

// Pid returns the subprocess pid, or 0 when no process is running.
func (c *Client) Pid() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil || c.session.Exited() {
		return 0
	}
	return c.session.Pid()
}
