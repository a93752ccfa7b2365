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

package providers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ocxlabs/ocx/pkg/httpclient"
	"github.com/ocxlabs/ocx/pkg/llm"
)

// defaultOllamaURL is the default local Ollama endpoint.
const defaultOllamaURL = "http://localhost:11434"

// OllamaProvider serves completions from a local Ollama server. It is the
// offline fallback when no API-based provider is configured.
type OllamaProvider struct {
	baseURL    string
	httpClient *http.Client
}

// NewOllamaProvider creates an Ollama provider.
func NewOllamaProvider(baseURL string) (*OllamaProvider, error) {
	if baseURL == "" {
		baseURL = defaultOllamaURL
	}

	cfg := httpclient.DefaultConfig()
	// Local model inference is slow on first load.
	cfg.Timeout = 5 * time.Minute
	cfg.UserAgent = "ocx-ollama/1.0"
	cfg.RetryAttempts = 0

	httpClient, err := httpclient.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}

	return &OllamaProvider{baseURL: baseURL, httpClient: httpClient}, nil
}

// NewOllamaWithCredentials is the factory registered with the registry.
// Ollama needs no authentication, only an optional endpoint override.
func NewOllamaWithCredentials(creds llm.Credentials) (llm.Provider, error) {
	if local, ok := creds.(llm.LocalCredentials); ok {
		return NewOllamaProvider(local.BaseURL)
	}
	return NewOllamaProvider("")
}

// Name returns the provider identifier.
func (p *OllamaProvider) Name() string { return "ollama" }

// Capabilities returns an empty model list; discovery populates it from
// whatever is installed locally.
func (p *OllamaProvider) Capabilities() llm.Capabilities {
	return llm.Capabilities{
		Streaming: true,
		Models:    []llm.ModelInfo{},
	}
}

// DiscoverModels queries /api/tags for the locally installed models.
func (p *OllamaProvider) DiscoverModels(ctx context.Context) ([]llm.ModelInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to query Ollama API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ollama API returned status %d: %s", resp.StatusCode, string(body))
	}

	var tagsResp ollamaTagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tagsResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	models := make([]llm.ModelInfo, 0, len(tagsResp.Models))
	for _, model := range tagsResp.Models {
		models = append(models, llm.ModelInfo{
			ID:   model.Name,
			Name: model.Name,
		})
	}
	return models, nil
}

// Complete sends a non-streaming chat request.
func (p *OllamaProvider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	resp, err := p.send(ctx, req, false)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var chatResp ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return &llm.CompletionResponse{
		Content: chatResp.Message.Content,
		Model:   chatResp.Model,
		Usage: llm.TokenUsage{
			InputTokens:  chatResp.PromptEvalCount,
			OutputTokens: chatResp.EvalCount,
			TotalTokens:  chatResp.PromptEvalCount + chatResp.EvalCount,
		},
		FinishReason: llm.FinishReasonStop,
		Created:      time.Now(),
	}, nil
}

// Stream sends a streaming chat request. Ollama frames its stream as one
// JSON object per line.
func (p *OllamaProvider) Stream(ctx context.Context, req llm.CompletionRequest) (<-chan llm.StreamChunk, error) {
	resp, err := p.send(ctx, req, true)
	if err != nil {
		return nil, err
	}

	chunks := make(chan llm.StreamChunk, 10)
	go func() {
		defer close(chunks)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)

		for scanner.Scan() {
			select {
			case <-ctx.Done():
				chunks <- llm.StreamChunk{Error: ctx.Err(), FinishReason: llm.FinishReasonError}
				return
			default:
			}

			var chatResp ollamaChatResponse
			if err := json.Unmarshal(scanner.Bytes(), &chatResp); err != nil {
				continue
			}

			if chatResp.Message.Content != "" {
				chunks <- llm.StreamChunk{Delta: llm.StreamDelta{Content: chatResp.Message.Content}}
			}
			if chatResp.Done {
				chunks <- llm.StreamChunk{
					FinishReason: llm.FinishReasonStop,
					Usage: &llm.TokenUsage{
						InputTokens:  chatResp.PromptEvalCount,
						OutputTokens: chatResp.EvalCount,
						TotalTokens:  chatResp.PromptEvalCount + chatResp.EvalCount,
					},
				}
				return
			}
		}

		if err := scanner.Err(); err != nil {
			chunks <- llm.StreamChunk{Error: fmt.Errorf("stream read error: %w", err), FinishReason: llm.FinishReasonError}
		}
	}()

	return chunks, nil
}

func (p *OllamaProvider) send(ctx context.Context, req llm.CompletionRequest, stream bool) (*http.Response, error) {
	messages := make([]ollamaChatMessage, 0, len(req.Messages))
	for _, msg := range req.Messages {
		messages = append(messages, ollamaChatMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}

	body, err := json.Marshal(ollamaChatRequest{
		Model:    req.Model,
		Messages: messages,
		Stream:   stream,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ollama API returned status %d: %s", resp.StatusCode, string(respBody))
	}
	return resp, nil
}

type ollamaTagsResponse struct {
	Models []ollamaModel `json:"models"`
}

type ollamaModel struct {
	Name       string    `json:"name"`
	ModifiedAt time.Time `json:"modified_at"`
	Size       int64     `json:"size"`
	Digest     string    `json:"digest"`
}

type ollamaChatRequest struct {
	Model    string              `json:"model"`
	Messages []ollamaChatMessage `json:"messages"`
	Stream   bool                `json:"stream"`
}

type ollamaChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatResponse struct {
	Model           string            `json:"model"`
	Message         ollamaChatMessage `json:"message"`
	Done            bool              `json:"done"`
	PromptEvalCount int               `json:"prompt_eval_count"`
	EvalCount       int               `json:"eval_count"`
}
