package llm

// ModelInfo describes a model's identity and limits.
type ModelInfo struct {
	// ID is the provider-specific model identifier (e.g., "claude-3-5-sonnet-latest").
	ID string

	// Name is the human-readable model name.
	Name string

	// MaxTokens is the context window size (0 when unknown).
	MaxTokens int

	// MaxOutputTokens is the output limit (0 when unknown).
	MaxOutputTokens int

	// Description summarizes what the model is good for.
	Description string
}

// HasModel reports whether the capabilities include the given model ID.
func (c Capabilities) HasModel(id string) bool {
	for _, m := range c.Models {
		if m.ID == id {
			return true
		}
	}
	return false
}
