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
	"fmt"
	"strings"
)

// ErrorCode represents a category of MCP client error.
type ErrorCode string

const (
	// ErrorCodeUnavailable indicates no connected server can take the request.
	ErrorCodeUnavailable ErrorCode = "UNAVAILABLE"
	// ErrorCodeSpawnFailed indicates the server process could not start.
	ErrorCodeSpawnFailed ErrorCode = "SPAWN_FAILED"
	// ErrorCodeProcessExited indicates the server process died unexpectedly.
	ErrorCodeProcessExited ErrorCode = "PROCESS_EXITED"
	// ErrorCodeDisposed indicates the client was shut down.
	ErrorCodeDisposed ErrorCode = "DISPOSED"
	// ErrorCodeTransport indicates an I/O failure talking to the server.
	ErrorCodeTransport ErrorCode = "TRANSPORT"
)

// ProcessError is an error from the MCP process or transport layer.
// It carries suggestions for resolution and integrates with the
// pkg/errors user-visible formatting.
type ProcessError struct {
	// Code is the error category.
	Code ErrorCode
	// Server is the configured server name.
	Server string
	// Message is the primary error message.
	Message string
	// Suggestions are actionable steps to resolve the error.
	Suggestions []string
	// Cause is the underlying error, if any.
	Cause error
}

// Error implements the error interface.
func (e *ProcessError) Error() string {
	var sb strings.Builder

	if e.Server != "" {
		fmt.Fprintf(&sb, "mcp server %s: ", e.Server)
	}
	sb.WriteString(e.Message)

	if e.Cause != nil {
		fmt.Fprintf(&sb, ": %v", e.Cause)
	}

	return sb.String()
}

// Unwrap returns the underlying error.
func (e *ProcessError) Unwrap() error {
	return e.Cause
}

// IsUserVisible implements pkg/errors.UserVisibleError.
func (e *ProcessError) IsUserVisible() bool {
	return true
}

// UserMessage implements pkg/errors.UserVisibleError.
func (e *ProcessError) UserMessage() string {
	return e.Message
}

// Suggestion implements pkg/errors.UserVisibleError.
// Returns the first suggestion; the full list is in Error() output.
func (e *ProcessError) Suggestion() string {
	if len(e.Suggestions) == 0 {
		return ""
	}
	return e.Suggestions[0]
}

// ErrorType implements pkg/errors.ErrorClassifier.
func (e *ProcessError) ErrorType() string {
	return "mcp_" + strings.ToLower(string(e.Code))
}

// IsRetryable implements pkg/errors.ErrorClassifier.
// Exited processes restart after a backoff, so those requests may be retried;
// spawn failures are assumed persistent (e.g., missing executable).
func (e *ProcessError) IsRetryable() bool {
	switch e.Code {
	case ErrorCodeProcessExited, ErrorCodeUnavailable, ErrorCodeTransport:
		return true
	default:
		return false
	}
}
