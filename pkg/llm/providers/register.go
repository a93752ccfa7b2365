// Package providers registers the built-in LLM provider factories.
package providers

import (
	"github.com/ocxlabs/ocx/pkg/llm"
)

// RegisterAll registers every built-in provider factory with the given
// registry. Factories are registered but not instantiated; call
// Registry.Activate with credentials for whatever is configured.
func RegisterAll(reg *llm.Registry) {
	reg.RegisterFactory("anthropic", NewAnthropicWithCredentials)
	reg.RegisterFactory("openai", NewOpenAIWithCredentials)
	reg.RegisterFactory("ollama", NewOllamaWithCredentials)
}
