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

// Package docs resolves technology names to documentation via an MCP
// backend. Lookups are a two-call sequence: resolve-library-id turns a
// free-text name into a library identifier, get-library-docs fetches the
// documentation for that identifier and a topic.
package docs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/ocxlabs/ocx/internal/mcp"
	"github.com/ocxlabs/ocx/pkg/errors"
)

// genericTokens are technology names too vague to resolve directly.
var genericTokens = map[string]bool{
	"latest":  true,
	"version": true,
	"current": true,
}

// knownTechs are scanned, in order, when the stated technology is generic.
var knownTechs = []string{
	"openshift", "kubernetes", "python", "go", "rust", "react", "behat", "mongo", "next.js",
}

// resolveCacheTTL bounds how long a resolved library identifier is reused.
const resolveCacheTTL = 15 * time.Minute

// Resolver performs documentation lookups against one MCP server.
// Resolved library identifiers are cached; documentation content is not.
type Resolver struct {
	client mcp.Client
	logger *slog.Logger
	cache  *ttlcache.Cache[string, string]
}

// NewResolver creates a resolver on top of an MCP client. The resolver does
// not own the client; closing the resolver stops only its cache janitor.
func NewResolver(client mcp.Client, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}

	cache := ttlcache.New[string, string](
		ttlcache.WithTTL[string, string](resolveCacheTTL),
	)
	go cache.Start()

	return &Resolver{
		client: client,
		logger: logger,
		cache:  cache,
	}
}

// Close stops the resolver's cache maintenance.
func (r *Resolver) Close() error {
	r.cache.Stop()
	return nil
}

// toolResult is the common result envelope of both documentation tools.
type toolResult struct {
	Content json.RawMessage `json:"content"`
}

// contentBlock is one element of a resolve response's content list.
type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// ResolveLibraryID turns a library name into its documentation identifier.
// The response body is scanned for candidate title/identifier pairs; the
// first candidate whose title contains the name case-insensitively wins.
// Zero candidates, or none matching, is a NotFoundError.
func (r *Resolver) ResolveLibraryID(ctx context.Context, name string) (string, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if item := r.cache.Get(key); item != nil {
		r.logger.Debug("library id cache hit", "library", key, "id", item.Value())
		return item.Value(), nil
	}

	resp, err := r.client.Call(ctx, "resolve-library-id", map[string]any{
		"libraryName": name,
	})
	if err != nil {
		return "", err
	}

	var result toolResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return "", fmt.Errorf("decoding resolve result: %w", err)
	}

	var blocks []contentBlock
	if err := json.Unmarshal(result.Content, &blocks); err != nil || len(blocks) == 0 {
		return "", &errors.NotFoundError{Resource: "library", ID: name}
	}

	libraries := ParseLibraries(blocks[0].Text)
	if len(libraries) == 0 {
		return "", &errors.NotFoundError{Resource: "library", ID: name}
	}

	lower := strings.ToLower(name)
	for _, lib := range libraries {
		if strings.Contains(strings.ToLower(lib.Title), lower) {
			r.logger.Debug("resolved library id", "library", name, "id", lib.ID)
			r.cache.Set(key, lib.ID, ttlcache.DefaultTTL)
			return lib.ID, nil
		}
	}

	return "", &errors.NotFoundError{Resource: "library", ID: name}
}

// FetchDocs retrieves the raw documentation content for a resolved library
// identifier and topic. A nil payload means the server had nothing for the
// topic, which is not an error.
func (r *Resolver) FetchDocs(ctx context.Context, libraryID, topic string) (json.RawMessage, error) {
	resp, err := r.client.Call(ctx, "get-library-docs", map[string]any{
		"context7CompatibleLibraryID": libraryID,
		"topic":                       topic,
	})
	if err != nil {
		return nil, err
	}

	var result toolResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return nil, fmt.Errorf("decoding docs result: %w", err)
	}

	if len(result.Content) == 0 || string(result.Content) == "null" {
		r.logger.Debug("no documentation content", "library", libraryID, "topic", topic)
		return nil, nil
	}
	return result.Content, nil
}

// GetDocumentation orchestrates the full lookup for a technology and query.
// Failures propagate to the caller unrecovered; deciding whether a missing
// document warrants a fallback is the caller's business.
func (r *Resolver) GetDocumentation(ctx context.Context, technology, query string) ([]Result, error) {
	tech := effectiveTechnology(technology, query)
	if tech != technology {
		r.logger.Debug("corrected technology from query", "from", technology, "to", tech)
	}

	libraryID, err := r.ResolveLibraryID(ctx, tech)
	if err != nil {
		return nil, err
	}

	content, err := r.FetchDocs(ctx, libraryID, query)
	if err != nil {
		return nil, err
	}

	return normalizeDocs(content), nil
}

// effectiveTechnology substitutes a concrete technology for a generic token
// like "latest" by scanning the query words against the known set. The
// resolve tool performs poorly on generic tokens, so this rescue runs first.
func effectiveTechnology(technology, query string) string {
	if !genericTokens[strings.ToLower(technology)] {
		return technology
	}

	words := strings.Fields(strings.ToLower(query))
	for _, tech := range knownTechs {
		for _, w := range words {
			if w == tech {
				return tech
			}
		}
	}
	return technology
}
