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
	"log/slog"
	"time"

	"github.com/ocxlabs/ocx/internal/config"
	"github.com/ocxlabs/ocx/internal/jsonrpc"
)

// Client performs one tool call against an MCP server. A nil error means the
// response carries a result; remote error payloads surface as *jsonrpc.Error.
type Client interface {
	Call(ctx context.Context, tool string, args map[string]any) (*jsonrpc.Response, error)
	Close() error
}

// NewClient builds a Client for the given server descriptor: a Supervisor
// for stdio servers, an HTTPTransport for http ones.
func NewClient(name string, server config.MCPServer, cfg config.MCP, logger *slog.Logger) (Client, error) {
	timeout := time.Duration(cfg.DefaultTimeout) * time.Millisecond

	switch server.Type {
	case config.ServerTypeStdio:
		return NewSupervisor(SupervisorConfig{
			ServerName:     name,
			Command:        server.Command,
			Args:           server.Args,
			Env:            server.Env,
			RequestTimeout: timeout,
			Logger:         logger,
		})
	case config.ServerTypeHTTP:
		return NewHTTPTransport(HTTPConfig{
			ServerName:    name,
			URL:           server.URL,
			Timeout:       timeout,
			RetryAttempts: cfg.RetryAttempts,
			Logger:        logger,
		})
	default:
		return nil, &ProcessError{
			Code:    ErrorCodeSpawnFailed,
			Server:  name,
			Message: "unknown server type: " + server.Type,
			Suggestions: []string{
				`Set "type" to "stdio" or "http" in mcp.json.`,
			},
		}
	}
}
