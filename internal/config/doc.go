// Package config loads and validates the TOML configuration consumed by every
// pipeline stage. The config is loaded once at startup and read-only after.
package config
