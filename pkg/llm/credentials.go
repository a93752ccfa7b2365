package llm

import (
	"fmt"
	"os"
	"strings"

	"github.com/zalando/go-keyring"
)

// Credentials is implemented by all provider credential types.
type Credentials interface {
	// Validate checks that the credentials are present and well formed.
	Validate() error

	// Redacted returns a safe-to-log rendition with secrets masked.
	Redacted() string
}

// APIKeyCredentials authenticates API-based providers (Anthropic, OpenAI).
type APIKeyCredentials struct {
	// APIKey is the provider API token.
	APIKey string

	// BaseURL optionally overrides the API endpoint.
	BaseURL string
}

// Validate checks that the API key is present. Format validation is left to
// individual providers since key formats vary.
func (c APIKeyCredentials) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("API key is required")
	}
	return nil
}

// Redacted returns the credentials with the key masked.
func (c APIKeyCredentials) Redacted() string {
	masked := maskSecret(c.APIKey)
	if c.BaseURL != "" {
		return fmt.Sprintf("APIKey: %s, BaseURL: %s", masked, c.BaseURL)
	}
	return fmt.Sprintf("APIKey: %s", masked)
}

// LocalCredentials configures local model servers that need no key.
type LocalCredentials struct {
	// BaseURL is the server endpoint (provider default when empty).
	BaseURL string
}

// Validate always succeeds; local servers manage their own access.
func (c LocalCredentials) Validate() error { return nil }

// Redacted returns the endpoint, which carries no secrets.
func (c LocalCredentials) Redacted() string {
	if c.BaseURL != "" {
		return fmt.Sprintf("BaseURL: %s", c.BaseURL)
	}
	return "BaseURL: (default)"
}

// maskSecret shows the first and last 4 characters of a secret.
func maskSecret(secret string) string {
	if len(secret) <= 8 {
		return strings.Repeat("*", len(secret))
	}
	return secret[:4] + strings.Repeat("*", len(secret)-8) + secret[len(secret)-4:]
}

// keyringService is the OS keychain service name for stored API keys.
const keyringService = "ocx"

// envVarFor maps provider names to their conventional API key variables.
var envVarFor = map[string]string{
	"anthropic": "ANTHROPIC_API_KEY",
	"openai":    "OPENAI_API_KEY",
}

// ResolveAPIKey finds an API key for a provider: the conventional
// environment variable first, then the OS keychain. An empty string with a
// nil error means no key is configured anywhere.
func ResolveAPIKey(provider string) (string, error) {
	if envVar, ok := envVarFor[provider]; ok {
		if key := os.Getenv(envVar); key != "" {
			return key, nil
		}
	}

	key, err := keyring.Get(keyringService, provider)
	if err != nil {
		if err == keyring.ErrNotFound {
			return "", nil
		}
		return "", fmt.Errorf("reading %s key from keychain: %w", provider, err)
	}
	return key, nil
}

// StoreAPIKey saves a provider API key in the OS keychain.
func StoreAPIKey(provider, key string) error {
	if err := keyring.Set(keyringService, provider, key); err != nil {
		return fmt.Errorf("storing %s key in keychain: %w", provider, err)
	}
	return nil
}

// DeleteAPIKey removes a provider API key from the OS keychain.
func DeleteAPIKey(provider string) error {
	if err := keyring.Delete(keyringService, provider); err != nil && err != keyring.ErrNotFound {
		return fmt.Errorf("deleting %s key from keychain: %w", provider, err)
	}
	return nil
}

var (
	_ Credentials = APIKeyCredentials{}
	_ Credentials = LocalCredentials{}
)
