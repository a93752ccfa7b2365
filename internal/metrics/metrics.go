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

// Package metrics exposes the process-wide Prometheus collectors. Serve
// mode publishes them at /metrics; the CLI registers them but never
// scrapes.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ChatTurns counts completed chat turns by dispatched command.
	ChatTurns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ocx",
		Subsystem: "chat",
		Name:      "turns_total",
		Help:      "Completed chat turns by command.",
	}, []string{"command"})

	// ChatTurnDuration observes end-to-end turn latency.
	ChatTurnDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "ocx",
		Subsystem: "chat",
		Name:      "turn_duration_seconds",
		Help:      "End-to-end chat turn latency.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
	}, []string{"command"})

	// DocsLookups counts documentation lookups by outcome
	// (found, empty, error).
	DocsLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ocx",
		Subsystem: "docs",
		Name:      "lookups_total",
		Help:      "Documentation lookups by outcome.",
	}, []string{"outcome"})

	// SearchCalls counts community search calls by outcome.
	SearchCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ocx",
		Subsystem: "search",
		Name:      "calls_total",
		Help:      "Community search calls by outcome.",
	}, []string{"outcome"})

	// LLMStreams counts language model streaming completions by provider
	// and outcome.
	LLMStreams = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ocx",
		Subsystem: "llm",
		Name:      "streams_total",
		Help:      "Model streaming completions by provider and outcome.",
	}, []string{"provider", "outcome"})

	// MCPRestarts counts documentation backend process restarts.
	MCPRestarts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ocx",
		Subsystem: "mcp",
		Name:      "restarts_total",
		Help:      "Documentation backend process restarts.",
	})
)

// Outcome labels shared across the counter vecs.
const (
	OutcomeOK    = "ok"
	OutcomeEmpty = "empty"
	OutcomeError = "error"
)
