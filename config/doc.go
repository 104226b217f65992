// Package config handles loading and parsing of configuration from YAML files
// and environment variables. It defines the application configuration structure
// including server settings, logging, metrics, and the breaker declarations
// registered into each box at startup.
package config
