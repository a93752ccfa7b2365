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

// Package mcp provides clients for MCP documentation servers.
//
// Two deployment modes are supported. The stdio mode runs the server as a
// long-lived child process and speaks line-framed JSON-RPC over its standard
// streams; the Supervisor owns the process lifecycle and restarts it on
// unexpected exit. The HTTP mode posts each request to a configured endpoint.
// Both satisfy the Client interface consumed by the documentation resolver.
package mcp
