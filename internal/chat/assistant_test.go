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
	"context"
	goerrors "errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ocxlabs/ocx/internal/docs"
	"github.com/ocxlabs/ocx/internal/history"
	"github.com/ocxlabs/ocx/internal/stackoverflow"
	pkgerrors "github.com/ocxlabs/ocx/pkg/errors"
	"github.com/ocxlabs/ocx/pkg/llm"
)

type recordingStream struct {
	markdown []string
	progress []string
}

func (s *recordingStream) Markdown(text string)    { s.markdown = append(s.markdown, text) }
func (s *recordingStream) Progress(message string) { s.progress = append(s.progress, message) }
func (s *recordingStream) text() string            { return strings.Join(s.markdown, "") }

type fakeDocs struct {
	results []docs.Result
	err     error
	queries []string
}

func (f *fakeDocs) GetDocumentation(_ context.Context, technology, query string) ([]docs.Result, error) {
	f.queries = append(f.queries, technology+"|"+query)
	return f.results, f.err
}

type fakeSearch struct {
	questions []stackoverflow.Question
	err       error
	lastQuery string
	lastLimit int
}

func (f *fakeSearch) Search(_ context.Context, query string, limit int) ([]stackoverflow.Question, error) {
	f.lastQuery = query
	f.lastLimit = limit
	return f.questions, f.err
}

type fakeTranscript struct {
	turns []history.Turn
}

func (f *fakeTranscript) Append(_ context.Context, role, command, content string) error {
	f.turns = append(f.turns, history.Turn{Role: role, Command: command, Content: content})
	return nil
}

func (f *fakeTranscript) Recent(_ context.Context, n int) ([]history.Turn, error) {
	if len(f.turns) > n {
		return f.turns[len(f.turns)-n:], nil
	}
	return f.turns, nil
}

// scriptedProvider streams a fixed reply split into word fragments.
type scriptedProvider struct {
	name    string
	models  []llm.ModelInfo
	reply   string
	err     error
	lastReq llm.CompletionRequest
	calls   int
}

func (p *scriptedProvider) Name() string { return p.name }

func (p *scriptedProvider) Capabilities() llm.Capabilities {
	return llm.Capabilities{Streaming: true, Models: p.models}
}

func (p *scriptedProvider) Complete(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.lastReq = req
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return &llm.CompletionResponse{Content: p.reply, FinishReason: llm.FinishReasonStop}, nil
}

func (p *scriptedProvider) Stream(_ context.Context, req llm.CompletionRequest) (<-chan llm.StreamChunk, error) {
	p.lastReq = req
	p.calls++
	if p.err != nil {
		return nil, p.err
	}

	words := strings.SplitAfter(p.reply, " ")
	ch := make(chan llm.StreamChunk, len(words)+1)
	for _, w := range words {
		ch <- llm.StreamChunk{Delta: llm.StreamDelta{Content: w}}
	}
	ch <- llm.StreamChunk{FinishReason: llm.FinishReasonStop}
	close(ch)
	return ch, nil
}

func gptModel() []llm.ModelInfo {
	return []llm.ModelInfo{{ID: "gpt-4.1", Name: "GPT-4.1"}}
}

func newTestAssistant(t *testing.T, cfg Config) (*Assistant, *scriptedProvider) {
	t.Helper()

	provider := &scriptedProvider{name: "openai", models: gptModel(), reply: "Use oc expose to create a route."}
	registry := llm.NewRegistry()
	require.NoError(t, registry.Register(provider))

	cfg.Registry = registry
	if cfg.PreferredModels == nil {
		cfg.PreferredModels = []string{"gpt-4.1"}
	}
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewAssistant(cfg), provider
}

func TestGreeting(t *testing.T) {
	assistant, provider := newTestAssistant(t, Config{})
	stream := &recordingStream{}

	result := assistant.Handle(context.Background(), Request{Prompt: "Hello"}, stream)

	assert.Empty(t, result.ErrorMessage)
	assert.Contains(t, stream.text(), "I'm **ocX**")
	assert.Zero(t, provider.calls)
}

func TestUnknownCommand(t *testing.T) {
	assistant, provider := newTestAssistant(t, Config{})
	stream := &recordingStream{}

	result := assistant.Handle(context.Background(), Request{Command: "deploy", Prompt: "nginx"}, stream)

	assert.Empty(t, result.ErrorMessage)
	assert.Contains(t, stream.text(), "Unknown command: `/deploy`")
	assert.Contains(t, stream.text(), "/docs, /search, and /explain")
	assert.Zero(t, provider.calls)
}

func TestPassthroughStreamsModelReply(t *testing.T) {
	assistant, provider := newTestAssistant(t, Config{})
	stream := &recordingStream{}

	result := assistant.Handle(context.Background(), Request{Prompt: "how do I expose a service?"}, stream)

	assert.Empty(t, result.ErrorMessage)
	assert.Equal(t, "Use oc expose to create a route.", stream.text())
	assert.Greater(t, len(stream.markdown), 1, "reply should arrive in fragments")

	require.NotEmpty(t, provider.lastReq.Messages)
	assert.Equal(t, llm.MessageRoleSystem, provider.lastReq.Messages[0].Role)
	assert.Equal(t, "how do I expose a service?", provider.lastReq.Messages[len(provider.lastReq.Messages)-1].Content)
}

func TestPassthroughRendersModelFailure(t *testing.T) {
	assistant, provider := newTestAssistant(t, Config{})
	provider.err = &pkgerrors.ProviderError{Provider: "openai", StatusCode: 401, Message: "invalid api key"}
	stream := &recordingStream{}

	result := assistant.Handle(context.Background(), Request{Prompt: "anything"}, stream)

	assert.NotEmpty(t, result.ErrorMessage)
	assert.Contains(t, stream.text(), "❌ **Error:**")
}

func TestPassthroughSeedsAndRecordsTranscript(t *testing.T) {
	transcript := &fakeTranscript{turns: []history.Turn{
		{Role: "user", Content: "what is a route?"},
		{Role: "assistant", Content: "A route exposes a service."},
	}}
	assistant, provider := newTestAssistant(t, Config{Transcript: transcript})
	stream := &recordingStream{}

	assistant.Handle(context.Background(), Request{Prompt: "and with TLS?"}, stream)

	// system + 2 history turns + the new prompt
	require.Len(t, provider.lastReq.Messages, 4)
	assert.Equal(t, "what is a route?", provider.lastReq.Messages[1].Content)

	require.Len(t, transcript.turns, 4)
	assert.Equal(t, "and with TLS?", transcript.turns[2].Content)
	assert.Equal(t, "assistant", transcript.turns[3].Role)
}

func TestDocsRendersResults(t *testing.T) {
	docsProvider := &fakeDocs{results: []docs.Result{
		{Title: "Creating routes", Content: "Use oc expose.", URL: "https://docs.openshift.com/routes"},
	}}
	assistant, provider := newTestAssistant(t, Config{Docs: docsProvider})
	stream := &recordingStream{}

	result := assistant.Handle(context.Background(), Request{Command: CommandDocs, Prompt: "create a route"}, stream)

	assert.Empty(t, result.ErrorMessage)
	out := stream.text()
	assert.Contains(t, out, `## 📖 OpenShift Documentation for "create a route"`)
	assert.Contains(t, out, "### Creating routes")
	assert.Contains(t, out, "[Read More](https://docs.openshift.com/routes)")
	assert.Zero(t, provider.calls)
	assert.Equal(t, []string{"openshift|create a route"}, docsProvider.queries)
	require.NotEmpty(t, stream.progress)
}

func TestDocsEmptyFallsBackToModel(t *testing.T) {
	assistant, provider := newTestAssistant(t, Config{Docs: &fakeDocs{}})
	stream := &recordingStream{}

	result := assistant.Handle(context.Background(), Request{Command: CommandDocs, Prompt: "quantum routing"}, stream)

	assert.Empty(t, result.ErrorMessage)
	assert.Contains(t, stream.text(), `No specific documentation found for "quantum routing"`)
	assert.Contains(t, stream.text(), "Use oc expose")
	assert.Equal(t, 1, provider.calls)
}

func TestDocsNotFoundFallsBackToModel(t *testing.T) {
	docsProvider := &fakeDocs{err: &pkgerrors.NotFoundError{Resource: "library", ID: "quantum"}}
	assistant, provider := newTestAssistant(t, Config{Docs: docsProvider})
	stream := &recordingStream{}

	result := assistant.Handle(context.Background(), Request{Command: CommandDocs, Prompt: "quantum"}, stream)

	assert.Empty(t, result.ErrorMessage)
	assert.Contains(t, stream.text(), "No specific documentation found")
	assert.Equal(t, 1, provider.calls)
}

func TestDocsHardFailureWarnsWithoutFallback(t *testing.T) {
	docsProvider := &fakeDocs{err: goerrors.New("connection refused")}
	assistant, provider := newTestAssistant(t, Config{Docs: docsProvider})
	stream := &recordingStream{}

	result := assistant.Handle(context.Background(), Request{Command: CommandDocs, Prompt: "routes"}, stream)

	assert.NotEmpty(t, result.ErrorMessage)
	assert.Contains(t, stream.text(), "couldn't fetch live documentation")
	assert.Zero(t, provider.calls)
}

func TestDocsRequiresTopic(t *testing.T) {
	assistant, _ := newTestAssistant(t, Config{Docs: &fakeDocs{}})
	stream := &recordingStream{}

	assistant.Handle(context.Background(), Request{Command: CommandDocs}, stream)

	assert.Contains(t, stream.text(), "Please provide a topic")
}

func TestSearchRendersResults(t *testing.T) {
	search := &fakeSearch{questions: []stackoverflow.Question{
		{Title: "Fix ImagePullBackOff", Link: "https://stackoverflow.com/q/1", Score: 42, AnswerCount: 3},
	}}
	assistant, _ := newTestAssistant(t, Config{Search: search})
	stream := &recordingStream{}

	result := assistant.Handle(context.Background(), Request{Command: CommandSearch, Prompt: "ImagePullBackOff"}, stream)

	assert.Empty(t, result.ErrorMessage)
	out := stream.text()
	assert.Contains(t, out, "### [Fix ImagePullBackOff](https://stackoverflow.com/q/1)")
	assert.Contains(t, out, "**Score:** 42 | **Answers:** 3")
	// The outbound query carries the platform scope.
	assert.Contains(t, search.lastQuery, "openshift kubernetes")
	assert.Equal(t, searchResultLimit, search.lastLimit)
}

func TestSearchNoResults(t *testing.T) {
	assistant, _ := newTestAssistant(t, Config{Search: &fakeSearch{}})
	stream := &recordingStream{}

	result := assistant.Handle(context.Background(), Request{Command: CommandSearch, Prompt: "oddity"}, stream)

	assert.Empty(t, result.ErrorMessage)
	assert.Contains(t, stream.text(), "No relevant questions found")
}

func TestSearchFailureWarns(t *testing.T) {
	search := &fakeSearch{err: goerrors.New("boom")}
	assistant, _ := newTestAssistant(t, Config{Search: search})
	stream := &recordingStream{}

	result := assistant.Handle(context.Background(), Request{Command: CommandSearch, Prompt: "pods"}, stream)

	assert.NotEmpty(t, result.ErrorMessage)
	assert.Contains(t, stream.text(), "unable to search Stack Overflow")
}

func TestExplainRequiresSelection(t *testing.T) {
	assistant, provider := newTestAssistant(t, Config{})
	stream := &recordingStream{}

	assistant.Handle(context.Background(), Request{Command: CommandExplain}, stream)

	assert.Contains(t, stream.text(), "Please provide an OpenShift YAML or code snippet")
	assert.Zero(t, provider.calls)
}

func TestExplainWrapsSelection(t *testing.T) {
	assistant, provider := newTestAssistant(t, Config{})
	stream := &recordingStream{}

	assistant.Handle(context.Background(), Request{
		Command:   CommandExplain,
		Selection: "kind: Route\napiVersion: route.openshift.io/v1",
	}, stream)

	require.Equal(t, 1, provider.calls)
	last := provider.lastReq.Messages[len(provider.lastReq.Messages)-1].Content
	assert.Contains(t, last, "explain the following OpenShift-related code snippet")
	assert.Contains(t, last, "kind: Route")
}

func TestPickModelPrefersOrderedModels(t *testing.T) {
	anthropic := &scriptedProvider{name: "anthropic", reply: "from claude",
		models: []llm.ModelInfo{{ID: "claude-3-5-sonnet-latest"}}}
	openaiProvider := &scriptedProvider{name: "openai", reply: "from gpt", models: gptModel()}

	registry := llm.NewRegistry()
	require.NoError(t, registry.Register(anthropic))
	require.NoError(t, registry.Register(openaiProvider))

	assistant := NewAssistant(Config{
		Registry:        registry,
		PreferredModels: []string{"gpt-4.1", "claude-3-5-sonnet-latest"},
		Logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	stream := &recordingStream{}

	assistant.Handle(context.Background(), Request{Prompt: "which model answers?"}, stream)

	assert.Equal(t, "from gpt", stream.text())
	assert.Zero(t, anthropic.calls)
}

func TestPickModelFallsBackToSecondPreference(t *testing.T) {
	anthropic := &scriptedProvider{name: "anthropic", reply: "from claude",
		models: []llm.ModelInfo{{ID: "claude-3-5-sonnet-latest"}}}

	registry := llm.NewRegistry()
	require.NoError(t, registry.Register(anthropic))

	assistant := NewAssistant(Config{
		Registry:        registry,
		PreferredModels: []string{"gpt-4.1", "claude-3-5-sonnet-latest"},
		Logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	stream := &recordingStream{}

	assistant.Handle(context.Background(), Request{Prompt: "which model answers?"}, stream)

	assert.Equal(t, "from claude", stream.text())
	assert.Equal(t, "claude-3-5-sonnet-latest", anthropic.lastReq.Model)
}

// discoveringProvider mimics a local daemon whose static catalog is
// empty until the installed models are listed at call time.
type discoveringProvider struct {
	scriptedProvider
	discovered   []llm.ModelInfo
	discoveryErr error
}

func (p *discoveringProvider) DiscoverModels(_ context.Context) ([]llm.ModelInfo, error) {
	return p.discovered, p.discoveryErr
}

func TestPickModelDiscoversLocalModels(t *testing.T) {
	local := &discoveringProvider{
		scriptedProvider: scriptedProvider{name: "ollama", reply: "from llama"},
		discovered:       []llm.ModelInfo{{ID: "llama3.2", Name: "llama3.2"}},
	}

	registry := llm.NewRegistry()
	require.NoError(t, registry.Register(local))
	require.NoError(t, registry.SetDefault("ollama"))

	assistant := NewAssistant(Config{
		Registry:        registry,
		PreferredModels: []string{"gpt-4.1", "claude-3-5-sonnet-latest"},
		Logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	stream := &recordingStream{}

	result := assistant.Handle(context.Background(), Request{Prompt: "which model answers?"}, stream)

	assert.Empty(t, result.ErrorMessage)
	assert.Equal(t, "from llama", stream.text())
	assert.Equal(t, "llama3.2", local.lastReq.Model)
}

func TestPickModelFailsWhenDiscoveryFails(t *testing.T) {
	local := &discoveringProvider{
		scriptedProvider: scriptedProvider{name: "ollama"},
		discoveryErr:     goerrors.New("connection refused"),
	}

	registry := llm.NewRegistry()
	require.NoError(t, registry.Register(local))
	require.NoError(t, registry.SetDefault("ollama"))

	assistant := NewAssistant(Config{
		Registry:        registry,
		PreferredModels: []string{"gpt-4.1"},
		Logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	stream := &recordingStream{}

	result := assistant.Handle(context.Background(), Request{Prompt: "anything"}, stream)

	assert.NotEmpty(t, result.ErrorMessage)
	assert.Zero(t, local.calls)
}

func TestParseLine(t *testing.T) {
	tests := []struct {
		name string
		line string
		want Request
	}{
		{"plain prompt", "how do I scale?", Request{Prompt: "how do I scale?"}},
		{"docs command", "/docs create a route", Request{Command: "docs", Prompt: "create a route"}},
		{"search command", "/search ImagePullBackOff", Request{Command: "search", Prompt: "ImagePullBackOff"}},
		{"explain takes selection", "/explain kind: Route", Request{Command: "explain", Selection: "kind: Route"}},
		{"bare command", "/docs", Request{Command: "docs"}},
		{"unknown command", "/deploy nginx", Request{Command: "deploy", Prompt: "nginx"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLine(tt.line))
		})
	}
}

func TestSnippetCutsOnRuneBoundary(t *testing.T) {
	assert.Equal(t, "short", snippet("short", 10))

	long := strings.Repeat("a", 1999) + "é"
	got := snippet(long, 2000)
	assert.Equal(t, 1999, len(got), "multi-byte rune straddling the limit is dropped whole")
}
