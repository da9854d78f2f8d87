// Package config loads, validates, and normalizes revoice configuration.
//
// Configuration is read from a TOML file (default ~/.config/revoice/config.toml)
// with repository defaults applied first. Credential fields may be supplied via
// environment variables so API keys never need to live on disk. All path fields
// are expanded and absolutized during load.
package config
