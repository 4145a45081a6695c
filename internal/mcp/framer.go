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
	"encoding/json"

	jsoniter "github.com/json-iterator/go"
)

// jsonrpcVersion is the protocol version tag emitted on every request line.
const jsonrpcVersion = "2.0"

var codec = jsoniter.ConfigCompatibleWithStandardLibrary

// request is the wire form of an outgoing request.
type request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// MessageKind classifies a decoded incoming line.
type MessageKind int

const (
	// KindResponse is a response carrying a success payload.
	KindResponse MessageKind = iota
	// KindError is a response carrying a protocol error.
	KindError
	// KindNotification is an out-of-band message with no id.
	KindNotification
)

// Message is one decoded incoming line.
type Message struct {
	// ID is the request id this message answers; nil for notifications
	ID *int64

	// Result is the success payload, mutually exclusive with Err
	Result json.RawMessage

	// Err is the protocol error payload, mutually exclusive with Result
	Err *ToolError

	// Method is set for notifications
	Method string

	// Params carries notification parameters
	Params json.RawMessage
}

// Kind classifies the message.
func (m *Message) Kind() MessageKind {
	switch {
	case m.ID == nil:
		return KindNotification
	case m.Err != nil:
		return KindError
	default:
		return KindResponse
	}
}

// wireMessage mirrors the fields a line may carry before classification.
type wireMessage struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *int64          `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
	Result  json.RawMessage `json:"result"`
	Error   *ToolError      `json:"error"`
}

// Framer encodes outgoing requests as single newline-terminated JSON lines
// and decodes incoming lines. JSON string escaping guarantees an encoded
// request never contains a literal newline, so framing is unambiguous.
type Framer struct{}

// Encode serializes one request as a single line terminated by '\n'.
func (Framer) Encode(id int64, method string, params any) ([]byte, error) {
	data, err := codec.Marshal(request{
		JSONRPC: jsonrpcVersion,
		ID:      id,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return nil, WrapError(err, ErrorCodeInternal, "failed to encode request")
	}
	return append(data, '\n'), nil
}

// Decode parses one line into a Message. It fails with a MALFORMED_MESSAGE
// error on invalid syntax, or on a line that carries a result or error
// payload without an id to route it by. A failed Decode discards only the
// one bad line; the session stays usable.
func (Framer) Decode(line []byte) (*Message, error) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return nil, ErrMalformedMessage(line, nil)
	}

	var wire wireMessage
	if err := codec.Unmarshal(line, &wire); err != nil {
		return nil, ErrMalformedMessage(line, err)
	}

	if wire.ID == nil {
		// A line with neither id nor method is not routable at all.
		if wire.Method == "" {
			return nil, ErrMalformedMessage(line, nil)
		}
		return &Message{Method: wire.Method, Params: wire.Params}, nil
	}

	if wire.Error == nil && wire.Result == nil {
		return nil, ErrMalformedMessage(line, nil)
	}

	return &Message{
		ID:     wire.ID,
		Result: wire.Result,
		Err:    wire.Error,
	}, nil
}
