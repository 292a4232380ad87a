// Package config provides centralized configuration management for the
// Web3 agent runtime, supporting configuration files and environment variable
// overrides for provider endpoints and gateways. It offers typed accessors
// with sensible defaults for downstream services.
package config
