// Package config loads, normalizes, and validates mnemo configuration.
//
// Configuration lives in a TOML file resolved from --config, then
// ~/.config/mnemo/config.toml, then ./mnemo.toml. Defaults apply for any
// missing value, paths are tilde-expanded, and the summarization API key
// falls back to the OPENROUTER_API_KEY environment variable.
package config
