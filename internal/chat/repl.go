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
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	bannerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("160"))
	promptStyle = lipgloss.NewStyle().Bold(true)
)

const replHelp = "Type a question, or use /docs <topic>, /search <query>, /explain <snippet>. " +
	"/clear wipes the saved history. Type exit to quit."

// HistoryClearer wipes the persisted chat transcript.
type HistoryClearer interface {
	Clear(ctx context.Context) error
}

// REPL is the interactive chat session.
type REPL struct {
	assistant *Assistant
	history   HistoryClearer
	in        io.Reader
	out       *os.File
}

// NewREPL returns a REPL reading prompts from in and rendering to out.
func NewREPL(assistant *Assistant, in io.Reader, out *os.File) *REPL {
	return &REPL{assistant: assistant, in: in, out: out}
}

// SetHistory enables the /clear builtin against h.
func (r *REPL) SetHistory(h HistoryClearer) {
	r.history = h
}

// Run loops until EOF, an exit command, or ctx cancellation.
func (r *REPL) Run(ctx context.Context) error {
	stream := NewTerminalStream(r.out)

	fmt.Fprintln(r.out, bannerStyle.Render("ocX OpenShift assistant"))
	fmt.Fprintln(r.out, replHelp)
	fmt.Fprintln(r.out)

	scanner := bufio.NewScanner(r.in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		fmt.Fprint(r.out, promptStyle.Render("> "))
		if !scanner.Scan() {
			fmt.Fprintln(r.out)
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		switch strings.ToLower(line) {
		case "exit", "quit":
			return nil
		case "/help":
			fmt.Fprintln(r.out, replHelp)
			continue
		case "/clear":
			r.clearHistory(ctx)
			continue
		}

		r.assistant.Handle(ctx, ParseLine(line), stream)
		stream.Flush()
	}
}

func (r *REPL) clearHistory(ctx context.Context) {
	if r.history == nil {
		fmt.Fprintln(r.out, "Chat history is not enabled.")
		return
	}
	if err := r.history.Clear(ctx); err != nil {
		fmt.Fprintf(r.out, "Could not clear history: %v\n", err)
		return
	}
	fmt.Fprintln(r.out, "Chat history cleared.")
}

// ParseLine splits a REPL line into a chat request. A leading slash
// dispatches a command; for /explain the remainder is the snippet to
// explain rather than a prompt.
func ParseLine(line string) Request {
	if !strings.HasPrefix(line, "/") {
		return Request{Prompt: line}
	}

	command, rest, _ := strings.Cut(strings.TrimPrefix(line, "/"), " ")
	rest = strings.TrimSpace(rest)

	if command == CommandExplain {
		return Request{Command: command, Selection: rest}
	}
	return Request{Command: command, Prompt: rest}
}
