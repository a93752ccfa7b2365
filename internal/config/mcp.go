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

package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// MCP server transport types.
const (
	ServerTypeStdio = "stdio"
	ServerTypeHTTP  = "http"
)

// MCPServer describes one MCP server endpoint.
type MCPServer struct {
	// URL is the JSON-RPC endpoint for http servers.
	URL string `json:"url,omitempty"`

	// Type is the transport: "stdio" or "http".
	Type string `json:"type"`

	// Command is the executable to spawn for stdio servers.
	Command string `json:"command,omitempty"`

	// Args are command-line arguments for stdio servers.
	Args []string `json:"args,omitempty"`

	// Env are extra environment variables for stdio servers.
	Env []string `json:"env,omitempty"`
}

// MCP is the mcp.json configuration shape.
type MCP struct {
	// Servers maps server names to their descriptors.
	Servers map[string]MCPServer `json:"mcpServers"`

	// DefaultTimeout is the per-request timeout in milliseconds.
	DefaultTimeout int `json:"defaultTimeout"`

	// RetryAttempts is the HTTP retry budget.
	RetryAttempts int `json:"retryAttempts"`
}

// DocsServerName is the server used for documentation lookups.
const DocsServerName = "context7"

// DefaultMCP returns the hardcoded fallback used when mcp.json is missing
// or malformed.
func DefaultMCP() MCP {
	return MCP{
		Servers: map[string]MCPServer{
			DocsServerName: {
				URL:  "https://mcp.context7.com/mcp",
				Type: ServerTypeHTTP,
			},
		},
		DefaultTimeout: 30000,
		RetryAttempts:  3,
	}
}

// LoadMCP reads the MCP configuration from path. When the file is absent or
// malformed it returns the hardcoded default alongside a non-nil error so the
// caller can surface a warning; the returned config is always usable.
func LoadMCP(path string) (MCP, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return DefaultMCP(), fmt.Errorf("reading %s: %w", path, err)
	}

	var cfg MCP
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return DefaultMCP(), fmt.Errorf("parsing %s: %w", path, err)
	}

	if len(cfg.Servers) == 0 {
		return DefaultMCP(), fmt.Errorf("%s defines no mcpServers", path)
	}

	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = 30000
	}
	if cfg.RetryAttempts < 0 {
		cfg.RetryAttempts = 0
	}

	return cfg, nil
}
