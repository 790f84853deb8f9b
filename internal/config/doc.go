// Package config loads and merges tribunal configuration from multiple
// sources with viper.
//
// Precedence (highest to lowest):
//  1. CLI flags
//  2. Environment variables (TRIBUNAL_PROVIDER, TRIBUNAL_DEDUP_SIMILARITY, etc.)
//  3. Config file ($XDG_CONFIG_HOME/tribunal/config.yaml)
//  4. Built-in defaults
//
// Use [Load] to obtain a merged [Config], [Init] to write a default config
// file, [SetField] to update a single key in it and [Describe] to report
// where each effective value came from.
package config
