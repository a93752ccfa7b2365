// Package providers contains concrete LLM provider implementations.
package providers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ocxlabs/ocx/pkg/errors"
	"github.com/ocxlabs/ocx/pkg/httpclient"
	"github.com/ocxlabs/ocx/pkg/llm"
)

const (
	anthropicAPIBaseURL = "https://api.anthropic.com/v1"
	anthropicAPIVersion = "2023-06-01"

	// anthropicDefaultMaxTokens applies when the request sets no limit.
	anthropicDefaultMaxTokens = 4096
)

// AnthropicProvider implements Provider for Anthropic's Messages API.
type AnthropicProvider struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewAnthropicProvider creates an Anthropic provider. The key should come
// from the keychain or the environment, never from config files.
func NewAnthropicProvider(apiKey, baseURL string) (*AnthropicProvider, error) {
	if apiKey == "" {
		return nil, &errors.ConfigError{
			Key:    "anthropic.api_key",
			Reason: "API key is required for Anthropic provider",
		}
	}
	if baseURL == "" {
		baseURL = anthropicAPIBaseURL
	}

	cfg := httpclient.DefaultConfig()
	cfg.Timeout = 120 * time.Second
	cfg.UserAgent = "ocx-anthropic/1.0"
	// Retries are handled by the llm retry wrapper, which knows which
	// provider errors are worth retrying.
	cfg.RetryAttempts = 0

	httpClient, err := httpclient.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}

	return &AnthropicProvider{
		apiKey:     apiKey,
		baseURL:    baseURL,
		httpClient: httpClient,
	}, nil
}

// NewAnthropicWithCredentials is the factory registered with the registry.
func NewAnthropicWithCredentials(creds llm.Credentials) (llm.Provider, error) {
	apiCreds, ok := creds.(llm.APIKeyCredentials)
	if !ok {
		return nil, &errors.ConfigError{
			Key:    "anthropic.credentials",
			Reason: "Anthropic provider requires API key credentials",
		}
	}
	if err := apiCreds.Validate(); err != nil {
		return nil, err
	}
	return NewAnthropicProvider(apiCreds.APIKey, apiCreds.BaseURL)
}

// Name returns the provider identifier.
func (p *AnthropicProvider) Name() string { return "anthropic" }

// Capabilities returns the features supported by this provider.
func (p *AnthropicProvider) Capabilities() llm.Capabilities {
	return llm.Capabilities{
		Streaming: true,
		Models:    anthropicModels,
	}
}

// Complete sends a synchronous completion request.
func (p *AnthropicProvider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	requestID := uuid.New().String()

	apiReq, err := buildAnthropicRequest(req, false)
	if err != nil {
		return nil, err
	}

	resp, err := p.send(ctx, apiReq, requestID)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, p.wireError(requestID, resp.StatusCode, "failed to read response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, p.apiError(requestID, resp.StatusCode, respBody)
	}

	var apiResp anthropicResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, p.wireError(requestID, resp.StatusCode, "failed to parse response", err)
	}

	var content strings.Builder
	for _, block := range apiResp.Content {
		if block.Type == "text" {
			if content.Len() > 0 {
				content.WriteString("\n")
			}
			content.WriteString(block.Text)
		}
	}

	usage := llm.TokenUsage{
		InputTokens:  apiResp.Usage.InputTokens,
		OutputTokens: apiResp.Usage.OutputTokens,
		TotalTokens:  apiResp.Usage.InputTokens + apiResp.Usage.OutputTokens,
	}

	return &llm.CompletionResponse{
		Content:      content.String(),
		FinishReason: mapAnthropicStopReason(apiResp.StopReason),
		Usage:        usage,
		Model:        apiResp.Model,
		RequestID:    requestID,
		Created:      time.Now(),
	}, nil
}

// Stream sends a streaming completion request and emits chunks as the SSE
// events arrive.
func (p *AnthropicProvider) Stream(ctx context.Context, req llm.CompletionRequest) (<-chan llm.StreamChunk, error) {
	requestID := uuid.New().String()

	apiReq, err := buildAnthropicRequest(req, true)
	if err != nil {
		return nil, err
	}

	resp, err := p.send(ctx, apiReq, requestID)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		respBody, _ := io.ReadAll(resp.Body)
		return nil, p.apiError(requestID, resp.StatusCode, respBody)
	}

	chunks := make(chan llm.StreamChunk, 10)
	go p.processStream(ctx, resp, chunks, requestID)
	return chunks, nil
}

// send posts one Messages API request.
func (p *AnthropicProvider) send(ctx context.Context, apiReq *anthropicRequest, requestID string) (*http.Response, error) {
	body, err := json.Marshal(apiReq)
	if err != nil {
		return nil, p.wireError(requestID, 0, "failed to marshal request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return nil, p.wireError(requestID, 0, "failed to create request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicAPIVersion)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, p.wireError(requestID, 0, "request failed", err)
	}
	return resp, nil
}

// processStream reads SSE events and forwards text deltas. The context is
// checked before each fragment is emitted, so a cancelled request stops
// promptly; fragments already sent stay sent.
func (p *AnthropicProvider) processStream(ctx context.Context, resp *http.Response, chunks chan<- llm.StreamChunk, requestID string) {
	defer close(chunks)
	defer resp.Body.Close()

	reader := bufio.NewReader(resp.Body)
	var usage *llm.TokenUsage

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

		line, err := reader.ReadString('\n')
		if err != nil {
			if err != io.EOF {
				chunks <- llm.StreamChunk{
					RequestID:    requestID,
					Error:        fmt.Errorf("stream read error: %w", err),
					FinishReason: llm.FinishReasonError,
				}
			}
			return
		}

		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" || data == "[DONE]" {
			continue
		}

		var event anthropicStreamEvent
		if err := json.Unmarshal([]byte(data), &event); err != nil {
			continue
		}

		switch event.Type {
		case "content_block_delta":
			if event.Delta.Type == "text_delta" && event.Delta.Text != "" {
				chunks <- llm.StreamChunk{
					RequestID: requestID,
					Delta:     llm.StreamDelta{Content: event.Delta.Text},
				}
			}

		case "message_delta":
			if event.Usage.OutputTokens > 0 {
				usage = &llm.TokenUsage{
					OutputTokens: event.Usage.OutputTokens,
					TotalTokens:  event.Usage.OutputTokens,
				}
			}

		case "message_stop":
			chunks <- llm.StreamChunk{
				RequestID:    requestID,
				FinishReason: llm.FinishReasonStop,
				Usage:        usage,
			}
			return

		case "error":
			chunks <- llm.StreamChunk{
				RequestID:    requestID,
				Error:        fmt.Errorf("anthropic stream error: %s", event.Error.Message),
				FinishReason: llm.FinishReasonError,
			}
			return
		}
	}
}

func (p *AnthropicProvider) wireError(requestID string, statusCode int, message string, cause error) error {
	return &errors.ProviderError{
		Provider:   "anthropic",
		StatusCode: statusCode,
		Message:    fmt.Sprintf("%s: %v", message, cause),
		RequestID:  requestID,
		Cause:      cause,
	}
}

func (p *AnthropicProvider) apiError(requestID string, statusCode int, body []byte) error {
	var errResp anthropicErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		return &errors.ProviderError{
			Provider:   "anthropic",
			StatusCode: statusCode,
			Message:    errResp.Error.Message,
			Suggestion: anthropicSuggestion(statusCode),
			RequestID:  requestID,
		}
	}
	return &errors.ProviderError{
		Provider:   "anthropic",
		StatusCode: statusCode,
		Message:    fmt.Sprintf("API request failed with status %d: %s", statusCode, string(body)),
		RequestID:  requestID,
	}
}

func anthropicSuggestion(statusCode int) string {
	switch statusCode {
	case http.StatusUnauthorized:
		return "Check that your API key is valid and correctly configured"
	case http.StatusForbidden:
		return "Your API key may not have access to this model"
	case http.StatusTooManyRequests:
		return "Rate limit exceeded. Retry after a short delay"
	case http.StatusBadRequest:
		return "Check the request parameters for errors"
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable:
		return "Anthropic API is experiencing issues. Retry after a short delay"
	default:
		return ""
	}
}

func buildAnthropicRequest(req llm.CompletionRequest, stream bool) (*anthropicRequest, error) {
	if len(req.Messages) == 0 {
		return nil, &errors.ValidationError{
			Field:      "messages",
			Message:    "completion request must have at least one message",
			Suggestion: "Add at least one message to the completion request",
		}
	}

	var systemPrompt string
	var apiMessages []anthropicMessage
	for _, msg := range req.Messages {
		switch msg.Role {
		case llm.MessageRoleSystem:
			// The Messages API takes system text as a separate field.
			if systemPrompt != "" {
				systemPrompt += "\n\n"
			}
			systemPrompt += msg.Content
		case llm.MessageRoleUser, llm.MessageRoleAssistant:
			apiMessages = append(apiMessages, anthropicMessage{
				Role:    string(msg.Role),
				Content: msg.Content,
			})
		}
	}

	maxTokens := anthropicDefaultMaxTokens
	if req.MaxTokens != nil {
		maxTokens = *req.MaxTokens
	}

	return &anthropicRequest{
		Model:         req.Model,
		Messages:      apiMessages,
		MaxTokens:     maxTokens,
		System:        systemPrompt,
		Temperature:   req.Temperature,
		StopSequences: req.StopSequences,
		Stream:        stream,
	}, nil
}

func mapAnthropicStopReason(stopReason string) llm.FinishReason {
	switch stopReason {
	case "max_tokens":
		return llm.FinishReasonLength
	case "content_filtered":
		return llm.FinishReasonContentFilter
	default:
		return llm.FinishReasonStop
	}
}

// anthropicModels lists the models this provider serves.
var anthropicModels = []llm.ModelInfo{
	{
		ID:              "claude-3-5-sonnet-latest",
		Name:            "Claude 3.5 Sonnet",
		MaxTokens:       200000,
		MaxOutputTokens: 8192,
		Description:     "Balanced model for most tasks.",
	},
	{
		ID:              "claude-3-5-haiku-latest",
		Name:            "Claude 3.5 Haiku",
		MaxTokens:       200000,
		MaxOutputTokens: 8192,
		Description:     "Fast and cost-effective for simple tasks.",
	},
	{
		ID:              "claude-3-opus-latest",
		Name:            "Claude 3 Opus",
		MaxTokens:       200000,
		MaxOutputTokens: 4096,
		Description:     "Most capable model for complex reasoning.",
	},
}

// Wire types for the Anthropic Messages API.

type anthropicRequest struct {
	Model         string             `json:"model"`
	Messages      []anthropicMessage `json:"messages"`
	MaxTokens     int                `json:"max_tokens"`
	System        string             `json:"system,omitempty"`
	Temperature   *float64           `json:"temperature,omitempty"`
	StopSequences []string           `json:"stop_sequences,omitempty"`
	Stream        bool               `json:"stream,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	ID         string                  `json:"id"`
	Model      string                  `json:"model"`
	StopReason string                  `json:"stop_reason"`
	Content    []anthropicContentBlock `json:"content"`
	Usage      anthropicUsage          `json:"usage"`
}

type anthropicContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type anthropicErrorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

type anthropicStreamEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
	Usage struct {
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}
