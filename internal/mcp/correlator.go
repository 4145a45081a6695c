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
	"sync"
	"time"
)

// Stream is the line transport a Correlator multiplexes requests over.
// *ProcessSession satisfies it; tests substitute in-process pipes.
type Stream interface {
	// WriteLine writes one newline-terminated message.
	WriteLine(line []byte) error

	// ReadLine blocks until a complete line is available or the stream ends.
	ReadLine() ([]byte, error)
}

// NotificationHandler receives out-of-band messages (lines without an id).
type NotificationHandler func(*Message)

// correlationResult is the single-fulfillment outcome of a pending request.
type correlationResult struct {
	msg *Message
	err error
}

// pendingRequest tracks one in-flight request. Each entry is resolved at
// most once: whoever deletes it from the pending table owns resolution.
type pendingRequest struct {
	id          int64
	method      string
	submittedAt time.Time
	ch          chan correlationResult // buffered, capacity 1
}

// Correlator multiplexes concurrent requests over a single Stream. It
// allocates request ids (never reused within a session), keeps a table of
// pending requests, and runs one background reader that routes each
// response to its waiter by id. Responses therefore complete in server
// order, not submission order.
type Correlator struct {
	server string
	stream Stream
	framer Framer
	logger *slog.Logger

	onNotify NotificationHandler

	mu       sync.Mutex
	pending  map[int64]*pendingRequest
	nextID   int64
	closed   bool
	closeErr error

	readerDone chan struct{}
}

// NewCorrelator creates a correlator for the given stream and starts its
// background reader. The server name is used for logging and metrics only.
func NewCorrelator(server string, stream Stream, logger *slog.Logger, onNotify NotificationHandler) *Correlator {
	if logger == nil {
		logger = slog.Default()
	}

	c := &Correlator{
		server:     server,
		stream:     stream,
		logger:     logger,
		onNotify:   onNotify,
		pending:    make(map[int64]*pendingRequest),
		readerDone: make(chan struct{}),
	}

	go c.readLoop()

	return c
}

// Send issues one request and waits for its response, the timeout, or
// context cancellation, whichever comes first. A timeout or cancellation
// removes the pending entry so a late response is dropped instead of
// resolving a stale waiter.
func (c *Correlator) Send(ctx context.Context, method string, params any, timeout time.Duration) (*Message, error) {
	pr, err := c.register(method)
	if err != nil {
		return nil, err
	}

	line, err := c.framer.Encode(pr.id, method, params)
	if err != nil {
		c.claim(pr.id)
		return nil, err
	}

	recordRequest(c.server, method)

	if err := c.stream.WriteLine(line); err != nil {
		c.claim(pr.id)
		return nil, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-pr.ch:
		return res.msg, res.err

	case <-timer.C:
		if c.claim(pr.id) {
			recordTimeout(c.server, method)
			return nil, ErrRequestTimeout(method, timeout)
		}
		// Lost the race: a resolution is already on the channel.
		res := <-pr.ch
		return res.msg, res.err

	case <-ctx.Done():
		if c.claim(pr.id) {
			return nil, ctx.Err()
		}
		res := <-pr.ch
		return res.msg, res.err
	}
}

// register allocates the next id and inserts a pending entry.
func (c *Correlator) register(method string) (*pendingRequest, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrSessionClosed(c.closeErr)
	}

	c.nextID++
	pr := &pendingRequest{
		id:          c.nextID,
		method:      method,
		submittedAt: time.Now(),
		ch:          make(chan correlationResult, 1),
	}
	c.pending[pr.id] = pr

	return pr, nil
}

// claim removes a pending entry, returning false if it was already
// resolved by another path.
func (c *Correlator) claim(id int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.pending[id]; !ok {
		return false
	}
	delete(c.pending, id)
	return true
}

// resolve routes one response to its waiter. Stray ids are logged and
// dropped: a late response after a timeout, or a duplicate, must never
// resolve a waiter that is no longer there.
func (c *Correlator) resolve(id int64, msg *Message) {
	c.mu.Lock()
	pr, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	c.mu.Unlock()

	if !ok {
		c.logger.Debug("dropping response with no pending request",
			"server", c.server,
			"id", id,
		)
		return
	}

	pr.ch <- correlationResult{msg: msg}
}

// Fail closes the correlator and resolves every pending request with a
// SESSION_CLOSED error carrying the given cause. Safe to call more than
// once; only the first call has effect.
func (c *Correlator) Fail(cause error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.closeErr = cause

	orphans := make([]*pendingRequest, 0, len(c.pending))
	for _, pr := range c.pending {
		orphans = append(orphans, pr)
	}
	c.pending = make(map[int64]*pendingRequest)
	c.mu.Unlock()

	for _, pr := range orphans {
		pr.ch <- correlationResult{err: ErrSessionClosed(cause)}
	}

	if len(orphans) > 0 {
		c.logger.Debug("failed pending requests on session close",
			"server", c.server,
			"count", len(orphans),
		)
	}
}

// PendingCount returns the number of in-flight requests.
func (c *Correlator) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Done returns a channel closed once the background reader has exited.
func (c *Correlator) Done() <-chan struct{} {
	return c.readerDone
}

// readLoop continuously drains the stream, routing responses by id. One
// malformed line is discarded with a warning; the loop only exits when the
// stream itself ends, at which point every pending request is failed.
func (c *Correlator) readLoop() {
	defer close(c.readerDone)

	for {
		line, err := c.stream.ReadLine()
		if err != nil {
			c.Fail(err)
			return
		}

		msg, err := c.framer.Decode(line)
		if err != nil {
			recordMalformedLine(c.server)
			c.logger.Warn("discarding malformed line from tool server",
				"server", c.server,
				"error", err,
			)
			continue
		}

		if msg.Kind() == KindNotification {
			if c.onNotify != nil {
				c.onNotify(msg)
			} else {
				c.logger.Debug("ignoring notification from tool server",
					"server", c.server,
					"method", msg.Method,
				)
			}
			continue
		}

		c.resolve(*msg.ID, msg)
	}
}
