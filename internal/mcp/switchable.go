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

package mcp

import (
	"context"
	"sync"

	"github.com/ocxlabs/ocx/internal/jsonrpc"
)

// Switchable is a Client whose backing transport can be replaced at
// runtime, used for config hot-reload. Calls in flight on the old
// transport finish against it; new calls go to the replacement.
type Switchable struct {
	mu    sync.RWMutex
	inner Client
}

// NewSwitchable wraps inner in a swappable client.
func NewSwitchable(inner Client) *Switchable {
	return &Switchable{inner: inner}
}

// Call implements Client.
func (s *Switchable) Call(ctx context.Context, tool string, args map[string]any) (*jsonrpc.Response, error) {
	s.mu.RLock()
	inner := s.inner
	s.mu.RUnlock()
	if inner == nil {
		return nil, &ProcessError{Code: ErrorCodeDisposed, Message: "client is closed"}
	}
	return inner.Call(ctx, tool, args)
}

// Swap replaces the backing client and closes the old one.
func (s *Switchable) Swap(replacement Client) error {
	s.mu.Lock()
	old := s.inner
	s.inner = replacement
	s.mu.Unlock()

	if old != nil {
		return old.Close()
	}
	return nil
}

// Close implements Client.
func (s *Switchable) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inner == nil {
		return nil
	}
	err := s.inner.Close()
	s.inner = nil
	return err
}
