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
	"encoding/json"
	goerrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ocxlabs/ocx/internal/config"
	"github.com/ocxlabs/ocx/internal/jsonrpc"
)

func newHTTPTestTransport(t *testing.T, handler http.HandlerFunc) *HTTPTransport {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	transport, err := NewHTTPTransport(HTTPConfig{
		ServerName: "context7",
		URL:        srv.URL,
		Logger:     testLogger(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = transport.Close() })

	return transport
}

func TestHTTPTransportCall(t *testing.T) {
	transport := newHTTPTestTransport(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Contains(t, r.Header.Get("Accept"), "text/event-stream")

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		var req jsonrpc.Request
		require.NoError(t, json.Unmarshal(body, &req))
		assert.Equal(t, "2.0", req.JSONRPC)
		assert.Equal(t, "tools/call", req.Method)
		assert.Equal(t, "resolve-library-id", req.Params.Name)

		fmt.Fprintf(w, `{"id":%q,"result":{"content":[{"type":"text","text":"docs"}]}}`, req.ID)
	})

	resp, err := transport.Call(context.Background(), "resolve-library-id", map[string]any{"libraryName": "openshift"})
	require.NoError(t, err)
	assert.Contains(t, string(resp.Result), "docs")
}

func TestHTTPTransportEventStreamBody(t *testing.T) {
	transport := newHTTPTestTransport(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req jsonrpc.Request
		require.NoError(t, json.Unmarshal(body, &req))

		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprintf(w, "event: message\ndata: {\"id\":%q,\"result\":{\"ok\":true}}\n\n", req.ID)
	})

	resp, err := transport.Call(context.Background(), "get-library-docs", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(resp.Result))
}

func TestHTTPTransportRemoteError(t *testing.T) {
	transport := newHTTPTestTransport(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req jsonrpc.Request
		require.NoError(t, json.Unmarshal(body, &req))
		fmt.Fprintf(w, `{"id":%q,"error":{"code":-32602,"message":"invalid params"}}`, req.ID)
	})

	_, err := transport.Call(context.Background(), "get-library-docs", nil)
	require.Error(t, err)

	var rpcErr *jsonrpc.Error
	require.True(t, goerrors.As(err, &rpcErr))
	assert.Equal(t, -32602, rpcErr.Code)
}

func TestHTTPTransportServerError(t *testing.T) {
	transport := newHTTPTestTransport(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	})

	_, err := transport.Call(context.Background(), "get-library-docs", nil)
	require.Error(t, err)

	var perr *ProcessError
	require.True(t, goerrors.As(err, &perr))
	assert.Equal(t, ErrorCodeTransport, perr.Code)
}

func TestHTTPTransportNoJSONInBody(t *testing.T) {
	transport := newHTTPTestTransport(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "event: ping\n\n")
	})

	_, err := transport.Call(context.Background(), "get-library-docs", nil)
	require.Error(t, err)
}

func TestHTTPTransportPacesRequests(t *testing.T) {
	var calls []time.Time
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, time.Now())
		body, _ := io.ReadAll(r.Body)
		var req jsonrpc.Request
		require.NoError(t, json.Unmarshal(body, &req))
		fmt.Fprintf(w, `{"id":%q,"result":{"ok":true}}`, req.ID)
	}))
	t.Cleanup(srv.Close)

	transport, err := NewHTTPTransport(HTTPConfig{
		ServerName: "context7",
		URL:        srv.URL,
		RateLimit:  50,
		RateBurst:  1,
		Logger:     testLogger(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = transport.Close() })

	for range 3 {
		_, err := transport.Call(context.Background(), "get-library-docs", nil)
		require.NoError(t, err)
	}

	require.Len(t, calls, 3)
	assert.GreaterOrEqual(t, calls[2].Sub(calls[0]), 30*time.Millisecond,
		"third request should wait for limiter tokens")
}

func TestHTTPTransportRequiresURL(t *testing.T) {
	_, err := NewHTTPTransport(HTTPConfig{ServerName: "context7"})
	require.Error(t, err)
}

func TestNewClientDispatch(t *testing.T) {
	cfg := config.DefaultMCP()

	client, err := NewClient("context7", cfg.Servers[config.DocsServerName], cfg, testLogger())
	require.NoError(t, err)
	defer client.Close()
	_, ok := client.(*HTTPTransport)
	assert.True(t, ok)

	_, err = NewClient("bad", config.MCPServer{Type: "carrier-pigeon"}, cfg, testLogger())
	require.Error(t, err)
}
