// Package redact removes secrets from diffs and file contents before they are
// sent to any model.
//
// Detection uses regex heuristics covering common secret shapes: API keys,
// JWTs, private keys, AWS access key IDs and secret access keys, bearer
// tokens, connection strings with inline credentials, and provider-specific
// tokens (Anthropic, OpenAI, OpenRouter, Google, GitHub, Slack).
//
// Path-based redaction is also supported: files whose paths match configured
// glob patterns have their entire content withheld rather than being scanned.
package redact
