// Package llm provides a provider-agnostic interface for Large Language
// Model completions, both streaming and non-streaming. Providers are
// registered as factories and activated with credentials at session start;
// there is no package-level mutable provider state.
package llm

import (
	"context"
	"time"
)

// Provider is the interface all LLM providers implement.
type Provider interface {
	// Name returns the unique identifier for this provider (e.g., "anthropic", "openai").
	Name() string

	// Capabilities returns the provider's supported features and model information.
	Capabilities() Capabilities

	// Complete sends a synchronous completion request and blocks until the
	// full response is available.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// Stream sends a streaming completion request and returns a channel of
	// chunks. The caller must consume the channel until it closes. Errors
	// during streaming arrive as a final StreamChunk with Error set.
	// Cancelling ctx stops the stream before the next fragment; fragments
	// already delivered are kept.
	Stream(ctx context.Context, req CompletionRequest) (<-chan StreamChunk, error)
}

// Capabilities describes what a provider supports.
type Capabilities struct {
	// Streaming indicates whether the provider supports streaming responses.
	Streaming bool

	// Models lists the models available from this provider.
	Models []ModelInfo
}

// CompletionRequest contains the parameters for one completion.
type CompletionRequest struct {
	// Messages is the conversation history including the current prompt.
	Messages []Message

	// Model is the provider-specific model identifier.
	Model string

	// Temperature controls randomness (0.0 = deterministic). Nil uses the
	// provider default.
	Temperature *float64

	// MaxTokens limits the response length. Nil uses the provider default.
	MaxTokens *int

	// StopSequences halt generation when encountered.
	StopSequences []string

	// Metadata carries request tracking information (correlation IDs).
	Metadata map[string]string
}

// Message is a single message in a conversation.
type Message struct {
	Role    MessageRole
	Content string
}

// MessageRole identifies the sender of a message.
type MessageRole string

const (
	// MessageRoleSystem carries context and instructions.
	MessageRoleSystem MessageRole = "system"

	// MessageRoleUser is a message from the user.
	MessageRoleUser MessageRole = "user"

	// MessageRoleAssistant is a message from the model.
	MessageRoleAssistant MessageRole = "assistant"
)

// CompletionResponse is the full response from a non-streaming completion.
type CompletionResponse struct {
	// Content is the generated text.
	Content string

	// FinishReason explains why generation stopped.
	FinishReason FinishReason

	// Usage contains token consumption information.
	Usage TokenUsage

	// Model is the model ID that actually handled the request.
	Model string

	// RequestID uniquely identifies this request for tracing.
	RequestID string

	// Created is when the response was generated.
	Created time.Time
}

// StreamChunk is one piece of a streaming response.
type StreamChunk struct {
	// Delta is the incremental content added in this chunk.
	Delta StreamDelta

	// FinishReason is set on the final chunk.
	FinishReason FinishReason

	// Usage is set on the final chunk when the provider reports it.
	Usage *TokenUsage

	// Error is set when streaming failed; the channel closes after it.
	Error error

	// RequestID uniquely identifies the streaming request.
	RequestID string
}

// StreamDelta is the incremental update in a stream chunk.
type StreamDelta struct {
	// Content is the text added in this chunk.
	Content string
}

// FinishReason indicates why generation stopped.
type FinishReason string

const (
	// FinishReasonStop indicates natural completion.
	FinishReasonStop FinishReason = "stop"

	// FinishReasonLength indicates the max-token limit was reached.
	FinishReasonLength FinishReason = "length"

	// FinishReasonContentFilter indicates a content policy stop.
	FinishReasonContentFilter FinishReason = "content_filter"

	// FinishReasonError indicates streaming ended on an error.
	FinishReasonError FinishReason = "error"
)

// TokenUsage tracks token consumption.
type TokenUsage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

// ModelDiscoverer is an optional interface for providers that can list
// their models dynamically (e.g., a local model server).
type ModelDiscoverer interface {
	DiscoverModels(ctx context.Context) ([]ModelInfo, error)
}
