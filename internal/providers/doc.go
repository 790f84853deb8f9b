// Package providers implements the Model capability for each supported LLM
// provider.
//
// Supported providers: Anthropic (Claude) through the official Anthropic SDK,
// OpenAI and OpenRouter through the OpenAI SDK, local Ollama / LM Studio
// servers through the same OpenAI-compatible client, and Google Gemini through
// the generative-ai-go client.
//
// When no provider is named, [Detect] picks the first provider whose API key
// is present in the environment, in the order anthropic, openai, openrouter.
// A missing credential is reported as a [ConfigError].
//
// All providers share a common retry helper with exponential back-off that
// retries only rate-limit responses. SDK clients accept request options so
// tests can point them at local httptest servers.
//
// Use [New] to obtain a Model by provider name and model string.
package providers
