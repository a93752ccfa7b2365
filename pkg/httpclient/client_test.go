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

package httpclient

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero timeout", func(c *Config) { c.Timeout = 0 }},
		{"negative retries", func(c *Config) { c.RetryAttempts = -1 }},
		{"empty user agent", func(c *Config) { c.UserAgent = "" }},
		{"max backoff below base", func(c *Config) { c.MaxBackoff = time.Millisecond }},
		{"negative rate limit", func(c *Config) { c.RateLimit = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			_, err := New(cfg)
			assert.Error(t, err)
		})
	}
}

func TestClient_SetsUserAgentAndCorrelationID(t *testing.T) {
	var gotUA, gotCorr string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotCorr = r.Header.Get("X-Correlation-ID")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.UserAgent = "ocx-test/1.0"
	cfg.RetryAttempts = 0
	client, err := New(cfg)
	require.NoError(t, err)

	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "ocx-test/1.0", gotUA)
	assert.NotEmpty(t, gotCorr)
}

func TestClient_RetriesOnServerError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.RetryAttempts = 3
	cfg.RetryBackoff = time.Millisecond
	cfg.MaxBackoff = 10 * time.Millisecond
	client, err := New(cfg)
	require.NoError(t, err)

	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_DoesNotRetryPOST(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.RetryAttempts = 3
	cfg.RetryBackoff = time.Millisecond
	client, err := New(cfg)
	require.NoError(t, err)

	resp, err := client.Post(srv.URL, "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, int32(1), calls.Load(), "POST should not be retried by default")
}

func TestRetryTransport_ShouldRetryStatus(t *testing.T) {
	rt := newRetryTransport(nil, DefaultConfig())

	assert.True(t, rt.shouldRetryStatus(http.StatusInternalServerError))
	assert.True(t, rt.shouldRetryStatus(http.StatusTooManyRequests))
	assert.True(t, rt.shouldRetryStatus(http.StatusRequestTimeout))
	assert.False(t, rt.shouldRetryStatus(http.StatusBadRequest))
	assert.False(t, rt.shouldRetryStatus(http.StatusNotFound))
	assert.False(t, rt.shouldRetryStatus(http.StatusOK))
}

func TestSanitizeURL(t *testing.T) {
	u, err := url.Parse("https://api.example.com/search?q=pods&api_key=supersecret&site=stackoverflow")
	require.NoError(t, err)

	got := sanitizeURL(u)
	assert.Contains(t, got, "q=pods")
	assert.Contains(t, got, "api_key=%5BREDACTED%5D")
	assert.NotContains(t, got, "supersecret")
}
