package providers

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"

	pkgerrors "github.com/ocxlabs/ocx/pkg/errors"
	"github.com/ocxlabs/ocx/pkg/llm"
)

// OpenAIProvider implements Provider on top of the official chat
// completions API via the go-openai client.
type OpenAIProvider struct {
	client *openai.Client
}

// NewOpenAIProvider creates an OpenAI provider.
func NewOpenAIProvider(apiKey, baseURL string) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, &pkgerrors.ConfigError{
			Key:    "openai.api_key",
			Reason: "API key is required for OpenAI provider",
		}
	}

	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIProvider{client: openai.NewClientWithConfig(cfg)}, nil
}

// NewOpenAIWithCredentials is the factory registered with the registry.
func NewOpenAIWithCredentials(creds llm.Credentials) (llm.Provider, error) {
	apiCreds, ok := creds.(llm.APIKeyCredentials)
	if !ok {
		return nil, &pkgerrors.ConfigError{
			Key:    "openai.credentials",
			Reason: "OpenAI provider requires API key credentials",
		}
	}
	if err := apiCreds.Validate(); err != nil {
		return nil, err
	}
	return NewOpenAIProvider(apiCreds.APIKey, apiCreds.BaseURL)
}

// Name returns the provider identifier.
func (p *OpenAIProvider) Name() string { return "openai" }

// Capabilities returns the features supported by this provider.
func (p *OpenAIProvider) Capabilities() llm.Capabilities {
	return llm.Capabilities{
		Streaming: true,
		Models:    openAIModels,
	}
}

// Complete sends a synchronous chat completion request.
func (p *OpenAIProvider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	requestID := uuid.New().String()

	apiReq, err := buildOpenAIRequest(req)
	if err != nil {
		return nil, err
	}

	resp, err := p.client.CreateChatCompletion(ctx, apiReq)
	if err != nil {
		return nil, translateOpenAIError(err, requestID)
	}
	if len(resp.Choices) == 0 {
		return nil, &pkgerrors.ProviderError{
			Provider:  "openai",
			Message:   "completion returned no choices",
			RequestID: requestID,
		}
	}

	choice := resp.Choices[0]
	return &llm.CompletionResponse{
		Content:      choice.Message.Content,
		FinishReason: mapOpenAIFinishReason(choice.FinishReason),
		Usage: llm.TokenUsage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
			TotalTokens:  resp.Usage.TotalTokens,
		},
		Model:     resp.Model,
		RequestID: requestID,
		Created:   time.Now(),
	}, nil
}

// Stream sends a streaming chat completion request. The context is checked
// before each fragment is forwarded.
func (p *OpenAIProvider) Stream(ctx context.Context, req llm.CompletionRequest) (<-chan llm.StreamChunk, error) {
	requestID := uuid.New().String()

	apiReq, err := buildOpenAIRequest(req)
	if err != nil {
		return nil, err
	}
	apiReq.Stream = true

	stream, err := p.client.CreateChatCompletionStream(ctx, apiReq)
	if err != nil {
		return nil, translateOpenAIError(err, requestID)
	}

	chunks := make(chan llm.StreamChunk, 10)
	go func() {
		defer close(chunks)
		defer stream.Close()

		for {
			select {
			case <-ctx.Done():
				chunks <- llm.StreamChunk{
					RequestID:    requestID,
					Error:        ctx.Err(),
					FinishReason: llm.FinishReasonError,
				}
				return
			default:
			}

			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				chunks <- llm.StreamChunk{
					RequestID:    requestID,
					FinishReason: llm.FinishReasonStop,
				}
				return
			}
			if err != nil {
				chunks <- llm.StreamChunk{
					RequestID:    requestID,
					Error:        translateOpenAIError(err, requestID),
					FinishReason: llm.FinishReasonError,
				}
				return
			}

			if len(resp.Choices) == 0 {
				continue
			}
			if delta := resp.Choices[0].Delta.Content; delta != "" {
				chunks <- llm.StreamChunk{
					RequestID: requestID,
					Delta:     llm.StreamDelta{Content: delta},
				}
			}
		}
	}()

	return chunks, nil
}

func buildOpenAIRequest(req llm.CompletionRequest) (openai.ChatCompletionRequest, error) {
	if len(req.Messages) == 0 {
		return openai.ChatCompletionRequest{}, &pkgerrors.ValidationError{
			Field:      "messages",
			Message:    "completion request must have at least one message",
			Suggestion: "Add at least one message to the completion request",
		}
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, msg := range req.Messages {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}

	apiReq := openai.ChatCompletionRequest{
		Model:    req.Model,
		Messages: messages,
		Stop:     req.StopSequences,
	}
	if req.Temperature != nil {
		apiReq.Temperature = float32(*req.Temperature)
	}
	if req.MaxTokens != nil {
		apiReq.MaxTokens = *req.MaxTokens
	}
	return apiReq, nil
}

func mapOpenAIFinishReason(reason openai.FinishReason) llm.FinishReason {
	switch reason {
	case openai.FinishReasonLength:
		return llm.FinishReasonLength
	case openai.FinishReasonContentFilter:
		return llm.FinishReasonContentFilter
	default:
		return llm.FinishReasonStop
	}
}

func translateOpenAIError(err error, requestID string) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &pkgerrors.ProviderError{
			Provider:   "openai",
			StatusCode: apiErr.HTTPStatusCode,
			Message:    apiErr.Message,
			RequestID:  requestID,
			Cause:      err,
		}
	}
	return &pkgerrors.ProviderError{
		Provider:  "openai",
		Message:   err.Error(),
		RequestID: requestID,
		Cause:     err,
	}
}

// openAIModels lists the models this provider serves.
var openAIModels = []llm.ModelInfo{
	{
		ID:              "gpt-4.1",
		Name:            "GPT-4.1",
		MaxTokens:       1047576,
		MaxOutputTokens: 32768,
		Description:     "Most capable GPT model for complex tasks.",
	},
	{
		ID:              "gpt-4o",
		Name:            "GPT-4o",
		MaxTokens:       128000,
		MaxOutputTokens: 16384,
		Description:     "Balanced multimodal model for most tasks.",
	},
	{
		ID:              "gpt-4o-mini",
		Name:            "GPT-4o mini",
		MaxTokens:       128000,
		MaxOutputTokens: 16384,
		Description:     "Fast and cost-effective for simple tasks.",
	},
}
