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

// Package chat dispatches user prompts to the assistant's capabilities:
// documentation lookup, community search, code explanation, and plain
// language model passthrough. A turn never surfaces an unhandled error;
// each handler renders its own warnings and completes the response.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ocxlabs/ocx/internal/docs"
	"github.com/ocxlabs/ocx/internal/history"
	"github.com/ocxlabs/ocx/internal/log"
	"github.com/ocxlabs/ocx/internal/metrics"
	"github.com/ocxlabs/ocx/internal/stackoverflow"
	pkgerrors "github.com/ocxlabs/ocx/pkg/errors"
	"github.com/ocxlabs/ocx/pkg/llm"
)

// Commands recognized by the dispatcher.
const (
	CommandDocs    = "docs"
	CommandSearch  = "search"
	CommandExplain = "explain"
)

// systemPrompt is sent as the leading message of every model call.
const systemPrompt = "You are an expert software development assistant " +
	"specializing in a wide range of technologies. Provide clear, accurate, " +
	"and concise information. When asked for documentation, summarize the " +
	"key points and provide examples where possible."

const greeting = "Hello! I'm **ocX**, your specialized AI assistant for Red Hat OpenShift.\n\n" +
	"Here's how I can help:\n\n" +
	"* **Ask me anything** about OpenShift administration or development.\n" +
	"* **/docs [query]**: Fetch the latest official OpenShift documentation.\n" +
	"  *Example: `/docs create a route`*\n" +
	"* **/search [query]**: Search Stack Overflow for community solutions to errors or problems.\n" +
	"  *Example: `/search ImagePullBackOff`*\n" +
	"* **/explain**: Give me an OpenShift YAML or code snippet and I'll explain it.\n\n" +
	"How can I help you today?"

const (
	// docsSnippetLimit caps how much of each document is rendered inline.
	docsSnippetLimit = 2000
	// searchResultLimit caps rendered community search results.
	searchResultLimit = 5
	// historyContextTurns is how many prior turns seed model context.
	historyContextTurns = 6
)

// DocsProvider looks up official documentation.
type DocsProvider interface {
	GetDocumentation(ctx context.Context, technology, query string) ([]docs.Result, error)
}

// SearchProvider searches community questions.
type SearchProvider interface {
	Search(ctx context.Context, query string, limit int) ([]stackoverflow.Question, error)
}

// Transcript records and replays chat turns. Optional; a nil transcript
// disables context seeding.
type Transcript interface {
	Append(ctx context.Context, role, command, content string) error
	Recent(ctx context.Context, n int) ([]history.Turn, error)
}

// Request is one user turn.
type Request struct {
	// Prompt is the free-text portion of the turn.
	Prompt string
	// Command is the slash command, if any ("docs", "search", "explain").
	Command string
	// Selection is the code snippet accompanying an explain request.
	Selection string
}

// Result is the completed turn. ErrorMessage is set when the turn ended
// with a rendered error; the turn itself always completes.
type Result struct {
	ErrorMessage string
}

// Config wires an Assistant's collaborators.
type Config struct {
	Registry *llm.Registry
	Docs     DocsProvider
	Search   SearchProvider

	// Transcript is optional chat history for model context seeding.
	Transcript Transcript

	// PreferredModels are tried in order when picking a model.
	PreferredModels []string

	Logger *slog.Logger
}

// Assistant routes chat turns to the matching capability.
type Assistant struct {
	registry   *llm.Registry
	docs       DocsProvider
	search     SearchProvider
	transcript Transcript
	preferred  []string
	logger     *slog.Logger
	tracer     trace.Tracer
}

// NewAssistant builds an Assistant from cfg.
func NewAssistant(cfg Config) *Assistant {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Assistant{
		registry:   cfg.Registry,
		docs:       cfg.Docs,
		search:     cfg.Search,
		transcript: cfg.Transcript,
		preferred:  cfg.PreferredModels,
		logger:     logger,
		tracer:     otel.Tracer("ocx/chat"),
	}
}

// Handle processes one turn and writes the reply to stream. It never
// returns an unhandled error; failures are rendered into the stream and
// reported via Result.ErrorMessage.
func (a *Assistant) Handle(ctx context.Context, req Request, stream ResponseStream) Result {
	label := req.Command
	if label == "" {
		label = "prompt"
	}

	ctx, span := a.tracer.Start(ctx, "chat.turn",
		trace.WithAttributes(attribute.String("chat.command", label)))
	defer span.End()

	start := time.Now()
	defer func() {
		metrics.ChatTurns.WithLabelValues(label).Inc()
		metrics.ChatTurnDuration.WithLabelValues(label).Observe(time.Since(start).Seconds())
	}()

	prompt := strings.TrimSpace(req.Prompt)

	if req.Command != "" {
		a.logger.Debug("handling command", log.CommandKey, req.Command, "prompt", prompt)
		switch req.Command {
		case CommandDocs:
			return a.handleDocumentation(ctx, prompt, stream)
		case CommandSearch:
			return a.handleSearch(ctx, prompt, stream)
		case CommandExplain:
			return a.handleExplain(ctx, req.Selection, stream)
		default:
			stream.Markdown(fmt.Sprintf("Unknown command: `/%s`. Valid commands are /docs, /search, and /explain.", req.Command))
			return Result{}
		}
	}

	switch strings.ToLower(prompt) {
	case "hello", "hi":
		stream.Markdown(greeting)
		return Result{}
	}

	return a.handlePassthrough(ctx, prompt, "", stream)
}

// handleDocumentation fetches official documentation. Absent content
// renders a note and falls back to the model; hard failures render a
// warning and end the turn.
func (a *Assistant) handleDocumentation(ctx context.Context, prompt string, stream ResponseStream) Result {
	if prompt == "" {
		stream.Markdown("Please provide a topic for the `/docs` command.")
		return Result{}
	}

	stream.Progress(fmt.Sprintf("📚 Fetching official OpenShift documentation for %q...", prompt))

	results, err := a.docs.GetDocumentation(ctx, "openshift", prompt)
	if err != nil {
		var notFound *pkgerrors.NotFoundError
		if pkgerrors.As(err, &notFound) {
			metrics.DocsLookups.WithLabelValues(metrics.OutcomeEmpty).Inc()
			return a.docsFallback(ctx, prompt, stream)
		}
		metrics.DocsLookups.WithLabelValues(metrics.OutcomeError).Inc()
		a.logger.Error("documentation fetch failed", log.ErrorKey, err)
		stream.Markdown("⚠️ **Sorry, I couldn't fetch live documentation at this time.**")
		return Result{ErrorMessage: userMessage(err)}
	}
	if len(results) == 0 {
		metrics.DocsLookups.WithLabelValues(metrics.OutcomeEmpty).Inc()
		return a.docsFallback(ctx, prompt, stream)
	}

	metrics.DocsLookups.WithLabelValues(metrics.OutcomeOK).Inc()
	stream.Markdown(fmt.Sprintf("## 📖 OpenShift Documentation for %q\n\n", prompt))
	for _, doc := range results {
		stream.Markdown(fmt.Sprintf("### %s\n\n%s...\n\n", doc.Title, snippet(doc.Content, docsSnippetLimit)))
		if doc.URL != "" {
			stream.Markdown(fmt.Sprintf("[Read More](%s)\n\n---\n\n", doc.URL))
		}
	}
	return Result{}
}

// docsFallback notes the gap and answers from the model instead.
func (a *Assistant) docsFallback(ctx context.Context, prompt string, stream ResponseStream) Result {
	stream.Markdown(fmt.Sprintf("No specific documentation found for %q.\n\n", prompt))
	return a.handlePassthrough(ctx, prompt, CommandDocs, stream)
}

func (a *Assistant) handleSearch(ctx context.Context, prompt string, stream ResponseStream) Result {
	if prompt == "" {
		stream.Markdown("Please provide a query or error message for the `/search` command.")
		return Result{}
	}

	stream.Progress(fmt.Sprintf("🔍 Searching Stack Overflow for solutions to %q...", prompt))

	results, err := a.search.Search(ctx, stackoverflow.BuildQuery(prompt), searchResultLimit)
	if err != nil {
		metrics.SearchCalls.WithLabelValues(metrics.OutcomeError).Inc()
		a.logger.Error("community search failed", log.ErrorKey, err)
		stream.Markdown("⚠️ **Sorry, I was unable to search Stack Overflow at this time.**")
		return Result{ErrorMessage: userMessage(err)}
	}
	if len(results) == 0 {
		metrics.SearchCalls.WithLabelValues(metrics.OutcomeEmpty).Inc()
		stream.Markdown("No relevant questions found on Stack Overflow.")
		return Result{}
	}

	metrics.SearchCalls.WithLabelValues(metrics.OutcomeOK).Inc()
	stream.Markdown(fmt.Sprintf("## 🌐 Stack Overflow Results for %q\n\n", prompt))
	for _, q := range results {
		stream.Markdown(fmt.Sprintf("### [%s](%s)\n", q.Title, q.Link))
		stream.Markdown(fmt.Sprintf("**Score:** %d | **Answers:** %d\n\n---\n\n", q.Score, q.AnswerCount))
	}
	return Result{}
}

func (a *Assistant) handleExplain(ctx context.Context, selection string, stream ResponseStream) Result {
	if strings.TrimSpace(selection) == "" {
		stream.Markdown("Please provide an OpenShift YAML or code snippet with the `/explain` command.")
		return Result{}
	}

	stream.Progress("🧠 Explaining the selected OpenShift code...")
	prompt := fmt.Sprintf("Please explain the following OpenShift-related code snippet:\n\n```\n%s\n```", selection)
	return a.handlePassthrough(ctx, prompt, CommandExplain, stream)
}

// handlePassthrough streams a model completion for prompt.
func (a *Assistant) handlePassthrough(ctx context.Context, prompt, command string, stream ResponseStream) Result {
	if err := a.streamCompletion(ctx, prompt, command, stream); err != nil {
		a.logger.Error("model completion failed", log.ErrorKey, err)
		stream.Markdown(fmt.Sprintf("❌ **Error:** %s", userMessage(err)))
		return Result{ErrorMessage: userMessage(err)}
	}
	return Result{}
}

func (a *Assistant) streamCompletion(ctx context.Context, prompt, command string, stream ResponseStream) error {
	provider, model, err := a.pickModel(ctx)
	if err != nil {
		return err
	}

	messages := []llm.Message{{Role: llm.MessageRoleSystem, Content: systemPrompt}}
	messages = append(messages, a.contextMessages(ctx)...)
	messages = append(messages, llm.Message{Role: llm.MessageRoleUser, Content: prompt})

	chunks, err := provider.Stream(ctx, llm.CompletionRequest{
		Model:    model,
		Messages: messages,
	})
	if err != nil {
		metrics.LLMStreams.WithLabelValues(provider.Name(), metrics.OutcomeError).Inc()
		return err
	}

	var reply strings.Builder
	for chunk := range chunks {
		if chunk.Error != nil {
			metrics.LLMStreams.WithLabelValues(provider.Name(), metrics.OutcomeError).Inc()
			return chunk.Error
		}
		if chunk.Delta.Content != "" {
			stream.Markdown(chunk.Delta.Content)
			reply.WriteString(chunk.Delta.Content)
		}
	}

	metrics.LLMStreams.WithLabelValues(provider.Name(), metrics.OutcomeOK).Inc()
	a.record(ctx, command, prompt, reply.String())
	return nil
}

// pickModel tries the preferred models in order, then falls back to the
// default provider's first advertised model. Providers that publish an
// empty static catalog, such as a local Ollama daemon, are asked to
// discover their installed models at call time.
func (a *Assistant) pickModel(ctx context.Context) (llm.Provider, string, error) {
	for _, model := range a.preferred {
		if p, err := a.registry.ForModel(model); err == nil {
			return llm.NewRetryableProvider(p, llm.DefaultRetryConfig()), model, nil
		}
	}

	p, err := a.registry.GetDefault()
	if err != nil {
		return nil, "", err
	}
	models := p.Capabilities().Models
	if len(models) == 0 {
		if d, ok := p.(llm.ModelDiscoverer); ok {
			discovered, derr := d.DiscoverModels(ctx)
			if derr != nil {
				return nil, "", &pkgerrors.ProviderError{
					Provider:   p.Name(),
					Message:    fmt.Sprintf("model discovery failed: %v", derr),
					Suggestion: "Check that the provider is running and reachable",
				}
			}
			models = discovered
		}
	}
	if len(models) == 0 {
		return nil, "", &pkgerrors.ProviderError{
			Provider:   p.Name(),
			Message:    "provider advertises no models",
			Suggestion: "Configure a model preference or activate another provider",
		}
	}
	return llm.NewRetryableProvider(p, llm.DefaultRetryConfig()), models[0].ID, nil
}

// contextMessages replays recent transcript turns as model context.
func (a *Assistant) contextMessages(ctx context.Context) []llm.Message {
	if a.transcript == nil {
		return nil
	}

	turns, err := a.transcript.Recent(ctx, historyContextTurns)
	if err != nil {
		a.logger.Warn("could not load chat history", log.ErrorKey, err)
		return nil
	}

	messages := make([]llm.Message, 0, len(turns))
	for _, t := range turns {
		role := llm.MessageRole(t.Role)
		if role != llm.MessageRoleUser && role != llm.MessageRoleAssistant {
			continue
		}
		messages = append(messages, llm.Message{Role: role, Content: t.Content})
	}
	return messages
}

// record appends the exchange to the transcript, best effort.
func (a *Assistant) record(ctx context.Context, command, prompt, reply string) {
	if a.transcript == nil {
		return
	}
	if err := a.transcript.Append(ctx, string(llm.MessageRoleUser), command, prompt); err != nil {
		a.logger.Warn("could not record user turn", log.ErrorKey, err)
		return
	}
	if reply == "" {
		return
	}
	if err := a.transcript.Append(ctx, string(llm.MessageRoleAssistant), command, reply); err != nil {
		a.logger.Warn("could not record assistant turn", log.ErrorKey, err)
	}
}

// snippet truncates s to at most limit bytes on a rune boundary.
func snippet(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}

// userMessage prefers the error's user-facing text when it has one.
func userMessage(err error) string {
	var uv pkgerrors.UserVisibleError
	if pkgerrors.As(err, &uv) && uv.IsUserVisible() {
		return uv.UserMessage()
	}
	return err.Error()
}
