// Copyright 2025 The ocx Authors
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

// Package jsonrpc implements the line-framed JSON-RPC dialect spoken by MCP
// documentation servers: one JSON object per newline-terminated line, with
// string request identifiers correlated by the client.
package jsonrpc

import (
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"
)

// Version is the protocol version tag carried on every request.
const Version = "2.0"

// Params is the tool-call payload of a request.
type Params struct {
	// Name is the tool name (e.g., "resolve-library-id", "get-library-docs").
	Name string `json:"name"`

	// Arguments is the opaque tool argument payload.
	Arguments map[string]any `json:"arguments"`
}

// Request is a single outgoing protocol message.
type Request struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  Params `json:"params"`
	ID      string `json:"id"`
}

// NewToolCall builds a tools/call request for the named tool.
// The ID must come from an IDGenerator so it is unique for the client's lifetime.
func NewToolCall(id, tool string, args map[string]any) *Request {
	return &Request{
		JSONRPC: Version,
		Method:  "tools/call",
		Params: Params{
			Name:      tool,
			Arguments: args,
		},
		ID: id,
	}
}

// Error is an explicit error payload from the remote side.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("remote error %d: %s", e.Code, e.Message)
}

// Response is a single incoming protocol message.
// Exactly one of Result and Error is populated.
type Response struct {
	ID     string          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *Error          `json:"error,omitempty"`
}

// IDGenerator produces request identifiers of the form req_<n>_<unixmillis>.
// The monotonic counter combined with a timestamp keeps identifiers unique
// across process restarts.
type IDGenerator struct {
	counter atomic.Uint64

	// now is overridable for tests.
	now func() time.Time
}

// NewIDGenerator returns a generator using the wall clock.
func NewIDGenerator() *IDGenerator {
	return &IDGenerator{now: time.Now}
}

// Next returns the next unique request identifier.
func (g *IDGenerator) Next() string {
	now := time.Now
	if g.now != nil {
		now = g.now
	}
	return fmt.Sprintf("req_%d_%d", g.counter.Add(1), now().UnixMilli())
}
