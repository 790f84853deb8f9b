// Package cache provides a file-based cache for reviewer responses.
//
// Entries are keyed by a SHA-256 hash of the provider, model, lens and the
// full prompt, and stored under one subdirectory per lens. Each entry keeps
// the raw model response with its creation time; entries older than the TTL
// are treated as misses and removed on read.
//
// The default cache directory is $XDG_CACHE_HOME/tribunal (or the
// OS-appropriate equivalent). Prompts are redacted before they are hashed or
// sent, so nothing stored here has bypassed secret redaction.
package cache
