package providers

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// DefaultMaxTokens caps a single completion when the request leaves MaxTokens unset.
const DefaultMaxTokens = 16384

// Request is a single prompt sent to a model.
type Request struct {
	System    string
	Prompt    string
	MaxTokens int
}

// Response is the raw text a model produced for a Request.
type Response struct {
	Text       string
	TokensUsed int
}

// Model is the capability every reviewer and the coordinator depend on:
// given a prompt, return text.
type Model interface {
	Invoke(ctx context.Context, req Request) (Response, error)
	// Name is the provider identifier ("anthropic", "openai", ...).
	Name() string
	// ModelID is the concrete model the provider calls.
	ModelID() string
}

// ConfigError reports that no usable provider or credential is available.
type ConfigError struct {
	Provider string
	Reason   string
}

func (e *ConfigError) Error() string {
	if e.Provider == "" {
		return "configuration error: " + e.Reason
	}
	return fmt.Sprintf("configuration error (%s): %s", e.Provider, e.Reason)
}

// detectOrder is the credential auto-detection priority.
var detectOrder = []string{"anthropic", "openai", "openrouter"}

var keyEnv = map[string]string{
	"anthropic":  "ANTHROPIC_API_KEY",
	"openai":     "OPENAI_API_KEY",
	"openrouter": "OPENROUTER_API_KEY",
	"gemini":     "GEMINI_API_KEY",
}

var defaultModels = map[string]string{
	"anthropic":  "claude-sonnet-4-20250514",
	"openai":     "gpt-4o",
	"openrouter": "anthropic/claude-sonnet-4",
	"gemini":     "gemini-2.5-flash",
	"ollama":     "llama3.1",
}

// Known returns the provider names accepted by New, in display order.
func Known() []string {
	return []string{"anthropic", "openai", "openrouter", "gemini", "ollama"}
}

// DefaultModel returns the model used when none is configured for provider.
func DefaultModel(provider string) string {
	return defaultModels[normalize(provider)]
}

// KeyEnv returns the environment variable holding provider's API key, or ""
// for providers that need none.
func KeyEnv(provider string) string {
	return keyEnv[normalize(provider)]
}

// Detect resolves the provider to use. An explicit choice is validated;
// otherwise the first provider in priority order with a credential wins.
func Detect(explicit string) (string, error) {
	if explicit != "" {
		name := normalize(explicit)
		if _, ok := defaultModels[name]; !ok {
			return "", &ConfigError{Provider: explicit, Reason: fmt.Sprintf("unknown provider (choose one of %s)", strings.Join(Known(), ", "))}
		}
		if _, err := apiKey(name); err != nil {
			return "", err
		}
		return name, nil
	}
	for _, name := range detectOrder {
		if os.Getenv(keyEnv[name]) != "" {
			return name, nil
		}
	}
	vars := make([]string, 0, len(detectOrder))
	for _, name := range detectOrder {
		vars = append(vars, keyEnv[name])
	}
	return "", &ConfigError{Reason: "no API key found; set one of " + strings.Join(vars, ", ")}
}

// New creates a provider by name. An empty model selects the provider default.
func New(provider, model string) (Model, error) {
	name := normalize(provider)
	if model == "" {
		model = defaultModels[name]
	}
	switch name {
	case "anthropic":
		return NewAnthropic(model)
	case "openai":
		return NewOpenAI(model)
	case "openrouter":
		return NewOpenRouter(model)
	case "gemini":
		return NewGemini(model)
	case "ollama":
		return NewOllama(model)
	default:
		return nil, &ConfigError{Provider: provider, Reason: "unknown provider"}
	}
}

func normalize(provider string) string {
	p := strings.ToLower(strings.TrimSpace(provider))
	switch p {
	case "google":
		return "gemini"
	case "lmstudio":
		return "ollama"
	}
	return p
}

func apiKey(provider string) (string, error) {
	env, ok := keyEnv[provider]
	if !ok {
		return "", nil
	}
	if key := os.Getenv(env); key != "" {
		return key, nil
	}
	if provider == "gemini" {
		if key := os.Getenv("GOOGLE_API_KEY"); key != "" {
			return key, nil
		}
	}
	return "", &ConfigError{Provider: provider, Reason: env + " not set"}
}

func maxTokens(req Request) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	return DefaultMaxTokens
}
