// Package config provides the rolloutkv server configuration.
//
//   - spec.go: ServerConfig struct definition
//   - default.go: Default configuration values
//   - verify.go: Validation (addresses, backend, admin key hash)
//   - sanitize.go: Log sanitization (hide sensitive values)
//   - storage.go: Mapping onto the storage layer configuration
//
// Configuration is loaded via internal/infra/confloader from a YAML file,
// ROLLOUTKV_ environment variables and flags.
package config
