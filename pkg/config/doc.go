// Package config loads and validates application configuration from
// environment variables, with an optional YAML overlay file.
package config
