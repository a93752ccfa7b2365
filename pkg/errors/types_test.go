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

package errors_test

import (
	stderrors "errors"
	"testing"
	"time"

	ocxerrors "github.com/ocxlabs/ocx/pkg/errors"
)

func TestValidationError_Error(t *testing.T) {
	tests := []struct {
		name    string
		err     *ocxerrors.ValidationError
		wantMsg string
	}{
		{
			name: "with field",
			err: &ocxerrors.ValidationError{
				Field:      "query",
				Message:    "required field is missing",
				Suggestion: "Provide a search query",
			},
			wantMsg: "validation failed on query: required field is missing",
		},
		{
			name: "without field",
			err: &ocxerrors.ValidationError{
				Message:    "invalid format",
				Suggestion: "Check the input format",
			},
			wantMsg: "validation failed: invalid format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("ValidationError.Error() = %q, want %q", got, tt.wantMsg)
			}
		})
	}
}

func TestNotFoundError_Error(t *testing.T) {
	err := &ocxerrors.NotFoundError{
		Resource: "library",
		ID:       "openshift",
	}
	if got, want := err.Error(), "library not found: openshift"; got != want {
		t.Errorf("NotFoundError.Error() = %q, want %q", got, want)
	}
}

func TestProviderError_Error(t *testing.T) {
	tests := []struct {
		name    string
		err     *ocxerrors.ProviderError
		wantMsg string
	}{
		{
			name: "minimal",
			err: &ocxerrors.ProviderError{
				Provider: "anthropic",
				Message:  "overloaded",
			},
			wantMsg: "provider anthropic error: overloaded",
		},
		{
			name: "with status and request id",
			err: &ocxerrors.ProviderError{
				Provider:   "openai",
				StatusCode: 500,
				Message:    "server error",
				RequestID:  "abc-123",
			},
			wantMsg: "provider openai error [HTTP 500]: server error (request-id: abc-123)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("ProviderError.Error() = %q, want %q", got, tt.wantMsg)
			}
		})
	}
}

func TestTimeoutError_Unwrap(t *testing.T) {
	cause := ocxerrors.New("deadline exceeded")
	err := &ocxerrors.TimeoutError{
		Operation: "documentation fetch",
		Duration:  30 * time.Second,
		Cause:     cause,
	}

	if !stderrors.Is(err, cause) {
		t.Error("TimeoutError should unwrap to its cause")
	}
	if got, want := err.Error(), "documentation fetch operation timed out after 30s"; got != want {
		t.Errorf("TimeoutError.Error() = %q, want %q", got, want)
	}
}

func TestRateLimitError(t *testing.T) {
	err := &ocxerrors.RateLimitError{Service: "stackexchange", RetryAfter: 2 * time.Second}
	if got, want := err.Error(), "stackexchange rate limit exceeded, retry after 2s"; got != want {
		t.Errorf("RateLimitError.Error() = %q, want %q", got, want)
	}
	if !err.IsUserVisible() {
		t.Error("rate limit errors should be user visible")
	}
	if err.Suggestion() == "" {
		t.Error("rate limit errors should carry a suggestion")
	}

	var uv ocxerrors.UserVisibleError
	if !ocxerrors.As(err, &uv) {
		t.Error("RateLimitError should satisfy UserVisibleError")
	}
}

func TestWrap(t *testing.T) {
	if ocxerrors.Wrap(nil, "context") != nil {
		t.Error("Wrap(nil) should return nil")
	}

	base := ocxerrors.New("boom")
	wrapped := ocxerrors.Wrapf(base, "loading file %s", "mcp.json")
	if !stderrors.Is(wrapped, base) {
		t.Error("wrapped error should match base via errors.Is")
	}
	if got, want := wrapped.Error(), "loading file mcp.json: boom"; got != want {
		t.Errorf("Wrapf() = %q, want %q", got, want)
	}
}
