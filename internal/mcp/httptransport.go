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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/ocxlabs/ocx/internal/jsonrpc"
	"github.com/ocxlabs/ocx/pkg/httpclient"
)

// HTTPTransport posts each JSON-RPC request to a fixed endpoint.
// Some hosted MCP endpoints reply with event-stream framing, so response
// bodies are scanned to the first JSON object before decoding.
type HTTPTransport struct {
	serverName string
	url        string
	client     *http.Client
	ids        *jsonrpc.IDGenerator
	logger     *slog.Logger
}

// HTTPConfig configures an HTTP MCP transport.
type HTTPConfig struct {
	// ServerName identifies the server in logs and errors.
	ServerName string

	// URL is the JSON-RPC endpoint.
	URL string

	// Timeout is the per-request timeout (defaults to 30s).
	Timeout time.Duration

	// RetryAttempts is forwarded to the HTTP client (defaults to 0;
	// JSON-RPC POSTs are not idempotent).
	RetryAttempts int

	// RateLimit caps outbound requests per second (defaults to 4).
	RateLimit float64

	// RateBurst is the limiter burst size (defaults to 2).
	RateBurst int

	// Logger is used for structured logging (optional).
	Logger *slog.Logger
}

// Hosted MCP endpoints meter requests per client, so outbound calls
// are paced instead of fired back to back.
const (
	defaultRateLimit = 4
	defaultRateBurst = 2
)

// NewHTTPTransport creates an HTTP MCP transport.
func NewHTTPTransport(cfg HTTPConfig) (*HTTPTransport, error) {
	if cfg.URL == "" {
		return nil, &ProcessError{Code: ErrorCodeSpawnFailed, Server: cfg.ServerName, Message: "server url is required"}
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	rateLimit := cfg.RateLimit
	if rateLimit <= 0 {
		rateLimit = defaultRateLimit
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = defaultRateBurst
	}

	hcfg := httpclient.DefaultConfig()
	hcfg.Timeout = timeout
	hcfg.RetryAttempts = cfg.RetryAttempts
	hcfg.UserAgent = "ocx-mcp/1.0"
	hcfg.RateLimit = rateLimit
	hcfg.RateBurst = burst

	client, err := httpclient.New(hcfg)
	if err != nil {
		return nil, err
	}

	return &HTTPTransport{
		serverName: cfg.ServerName,
		url:        cfg.URL,
		client:     client,
		ids:        jsonrpc.NewIDGenerator(),
		logger:     logger.With("server", cfg.ServerName),
	}, nil
}

// Call posts a tools/call request and decodes the JSON-RPC response.
func (t *HTTPTransport) Call(ctx context.Context, tool string, args map[string]any) (*jsonrpc.Response, error) {
	id := t.ids.Next()
	rpcReq := jsonrpc.NewToolCall(id, tool, args)

	payload, err := json.Marshal(rpcReq)
	if err != nil {
		return nil, &ProcessError{Code: ErrorCodeTransport, Server: t.serverName, Message: "encoding request", Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(payload))
	if err != nil {
		return nil, &ProcessError{Code: ErrorCodeTransport, Server: t.serverName, Message: "building request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")

	t.logger.Debug("sent mcp request", "request_id", id, "tool", tool)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, &ProcessError{Code: ErrorCodeTransport, Server: t.serverName, Message: "posting request", Cause: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ProcessError{Code: ErrorCodeTransport, Server: t.serverName, Message: "reading response", Cause: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &ProcessError{
			Code:    ErrorCodeTransport,
			Server:  t.serverName,
			Message: fmt.Sprintf("server responded with status %d", resp.StatusCode),
		}
	}

	rpcResp, err := decodeResponseBody(body)
	if err != nil {
		return nil, &ProcessError{Code: ErrorCodeTransport, Server: t.serverName, Message: "decoding response", Cause: err}
	}

	if rpcResp.Error != nil {
		return nil, rpcResp.Error
	}
	return rpcResp, nil
}

// Close implements Client; HTTP transports hold no process resources.
func (t *HTTPTransport) Close() error {
	t.client.CloseIdleConnections()
	return nil
}

// decodeResponseBody extracts the JSON-RPC response from a body that may be
// prefixed with event-stream framing ("event: message\ndata: {...}").
func decodeResponseBody(body []byte) (*jsonrpc.Response, error) {
	start := bytes.IndexByte(body, '{')
	if start < 0 {
		return nil, fmt.Errorf("no JSON object in response body")
	}

	// A decoder stops after the first complete object, tolerating any
	// trailing event-stream framing.
	var resp jsonrpc.Response
	if err := json.NewDecoder(bytes.NewReader(body[start:])).Decode(&resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
