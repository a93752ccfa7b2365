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

package jsonrpc

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ocxlabs/ocx/pkg/errors"
)

// Outcome is the terminal result of one correlated request.
// Exactly one of Response and Err is set.
type Outcome struct {
	Response *Response
	Err      error
}

// pendingRequest tracks one in-flight request. Owned exclusively by the
// Correlator; removed on completion, timeout, or forced rejection.
type pendingRequest struct {
	done  chan Outcome // buffered, written to exactly once
	timer *time.Timer
}

// Correlator matches asynchronous responses to their originating requests by
// identifier. Each registered request observes exactly one outcome: a matching
// response, a per-request timeout, or a forced failure when the transport dies.
type Correlator struct {
	mu      sync.Mutex
	pending map[string]*pendingRequest
	timeout time.Duration
	logger  *slog.Logger
}

// NewCorrelator creates a correlator with the given per-request timeout.
// A zero timeout defaults to 30 seconds.
func NewCorrelator(timeout time.Duration, logger *slog.Logger) *Correlator {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Correlator{
		pending: make(map[string]*pendingRequest),
		timeout: timeout,
		logger:  logger,
	}
}

// Register tracks a request identifier and starts its timeout timer.
// The returned channel receives exactly one Outcome.
func (c *Correlator) Register(id string) <-chan Outcome {
	done := make(chan Outcome, 1)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.pending[id]; exists {
		// At most one pending entry per identifier. A duplicate means the
		// ID generator is broken; fail fast rather than cross wires.
		done <- Outcome{Err: errors.New("duplicate request id: " + id)}
		return done
	}

	p := &pendingRequest{done: done}
	p.timer = time.AfterFunc(c.timeout, func() {
		c.expire(id)
	})
	c.pending[id] = p

	return done
}

// Complete resolves the pending request matching the response identifier.
// Responses with unknown identifiers are logged and discarded; a late reply
// after a timeout lands here and is a no-op.
func (c *Correlator) Complete(resp *Response) {
	if resp == nil || resp.ID == "" {
		c.logger.Warn("discarding response without an id")
		return
	}

	p := c.remove(resp.ID)
	if p == nil {
		c.logger.Warn("no pending request for response", "request_id", resp.ID)
		return
	}

	if resp.Error != nil {
		p.done <- Outcome{Err: resp.Error}
		return
	}
	p.done <- Outcome{Response: resp}
}

// Fail rejects a single pending request, if still tracked.
func (c *Correlator) Fail(id string, err error) {
	if p := c.remove(id); p != nil {
		p.done <- Outcome{Err: err}
	}
}

// FailAll rejects every pending request with the same error and clears the
// mapping. Called on process exit and on disposal.
func (c *Correlator) FailAll(err error) {
	c.mu.Lock()
	pending := c.pending
	c.pending = make(map[string]*pendingRequest)
	c.mu.Unlock()

	for _, p := range pending {
		p.timer.Stop()
		p.done <- Outcome{Err: err}
	}
}

// Len reports the number of in-flight requests.
func (c *Correlator) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Wait blocks until the request observes its outcome or ctx is cancelled.
// Cancellation removes the pending entry, so a response arriving afterwards
// is discarded as unmatched.
func (c *Correlator) Wait(ctx context.Context, id string, done <-chan Outcome) (*Response, error) {
	select {
	case out := <-done:
		return out.Response, out.Err
	case <-ctx.Done():
		c.Fail(id, ctx.Err())
		// Drain the outcome the Fail call produced (or a response that
		// raced with cancellation).
		<-done
		return nil, ctx.Err()
	}
}

// expire handles a request timeout.
func (c *Correlator) expire(id string) {
	if p := c.remove(id); p != nil {
		p.done <- Outcome{Err: &errors.TimeoutError{
			Operation: "mcp request " + id,
			Duration:  c.timeout,
		}}
	}
}

// remove detaches a pending entry and stops its timer.
// Returns nil when the identifier is not tracked.
func (c *Correlator) remove(id string) *pendingRequest {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.pending[id]
	if !ok {
		return nil
	}
	delete(c.pending, id)
	p.timer.Stop()
	return p
}
