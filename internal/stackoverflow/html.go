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

package stackoverflow

import (
	"regexp"
	"strings"
)

var htmlTagPattern = regexp.MustCompile(`<[^>]*>`)

// entityReplacer decodes the named entities the StackExchange API emits in
// question and answer bodies. Replacement is single-pass, so "&amp;quot;"
// decodes to "&quot;" rather than a bare quote.
var entityReplacer = strings.NewReplacer(
	"&quot;", `"`,
	"&lt;", "<",
	"&gt;", ">",
	"&#39;", "'",
	"&nbsp;", " ",
	"&amp;", "&",
)

// CleanHTML strips markup from an HTML fragment and decodes its character
// entities, returning trimmed plain text.
func CleanHTML(html string) string {
	text := htmlTagPattern.ReplaceAllString(html, "")
	text = entityReplacer.Replace(text)
	return strings.TrimSpace(text)
}
