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

package docs

import (
	"encoding/json"
	"regexp"
)

// Library is one candidate from a resolve-library-id response.
type Library struct {
	Title string
	ID    string
}

// libraryPattern matches the semi-structured candidate blocks the resolve
// tool emits. The grammar is repeated blocks of:
//
//	- Title: <title>
//	- Context7-compatible library ID: <id>
var libraryPattern = regexp.MustCompile(`- Title: (.*?)\n- Context7-compatible library ID: (.*?)\n`)

// ParseLibraries extracts every title/identifier pair from a resolve
// response body. An empty slice means no candidates parsed.
func ParseLibraries(text string) []Library {
	matches := libraryPattern.FindAllStringSubmatch(text, -1)

	libraries := make([]Library, 0, len(matches))
	for _, m := range matches {
		libraries = append(libraries, Library{Title: m[1], ID: m[2]})
	}
	return libraries
}

// Result is one normalized documentation entry.
type Result struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Source  string `json:"source"`
	Version string `json:"version"`
	URL     string `json:"url"`
}

// normalizeDocs maps the fetch tool's content payload to a flat list.
// The payload shape varies: a single object becomes a one-element list,
// a list is mapped element-wise, anything else yields an empty list.
func normalizeDocs(content json.RawMessage) []Result {
	if len(content) == 0 {
		return nil
	}

	var list []map[string]any
	if err := json.Unmarshal(content, &list); err == nil {
		results := make([]Result, 0, len(list))
		for _, entry := range list {
			results = append(results, toResult(entry))
		}
		return results
	}

	var single map[string]any
	if err := json.Unmarshal(content, &single); err == nil {
		return []Result{toResult(single)}
	}

	return nil
}

func toResult(entry map[string]any) Result {
	r := Result{
		Title:   stringField(entry, "title"),
		Content: stringField(entry, "text"),
		Source:  "Context7 MCP",
		Version: stringField(entry, "version"),
		URL:     stringField(entry, "url"),
	}
	if r.Title == "" {
		r.Title = "Documentation"
	}
	if r.Content == "" {
		r.Content = stringField(entry, "content")
	}
	if r.Version == "" {
		r.Version = "latest"
	}
	if r.URL == "" {
		r.URL = stringField(entry, "uri")
	}
	return r
}

func stringField(entry map[string]any, key string) string {
	s, _ := entry[key].(string)
	return s
}
