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

package chat

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

const (
	defaultWrapWidth = 100
	minWrapWidth     = 40
)

var progressStyle = lipgloss.NewStyle().Faint(true).Italic(true)

// TerminalStream collects a turn's markdown and renders it with ANSI
// styling when the output is a TTY. Glamour renders whole documents, so
// fragments are buffered and drawn on Flush.
type TerminalStream struct {
	out   io.Writer
	isTTY bool
	width int
	buf   strings.Builder
}

// NewTerminalStream returns a stream rendering to out. TTY detection and
// wrap width come from the file descriptor when out is a terminal.
func NewTerminalStream(out *os.File) *TerminalStream {
	width := defaultWrapWidth
	isTTY := term.IsTerminal(int(out.Fd()))
	if isTTY {
		if w, _, err := term.GetSize(int(out.Fd())); err == nil && w > 0 {
			width = w
			if width > defaultWrapWidth {
				width = defaultWrapWidth
			}
			if width < minWrapWidth {
				width = minWrapWidth
			}
		}
	}
	return &TerminalStream{out: out, isTTY: isTTY, width: width}
}

// Markdown implements ResponseStream.
func (s *TerminalStream) Markdown(text string) {
	s.buf.WriteString(text)
}

// Progress implements ResponseStream. Progress lines are transient, so
// they print immediately instead of joining the buffered document.
func (s *TerminalStream) Progress(message string) {
	if !s.isTTY {
		return
	}
	fmt.Fprintln(s.out, progressStyle.Render(message))
}

// Flush renders the buffered markdown and resets the buffer. Rendering
// failures fall back to the raw markdown.
func (s *TerminalStream) Flush() {
	content := s.buf.String()
	s.buf.Reset()
	if content == "" {
		return
	}

	if !s.isTTY {
		fmt.Fprintln(s.out, content)
		return
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(s.width),
	)
	if err != nil {
		fmt.Fprintln(s.out, content)
		return
	}
	rendered, err := renderer.Render(content)
	if err != nil {
		fmt.Fprintln(s.out, content)
		return
	}
	fmt.Fprint(s.out, rendered)
}
