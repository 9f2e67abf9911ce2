package config

import "github.com/yndnr/rolloutkv/internal/telemetry/logger"

// Sanitize returns a copy of cfg that is safe to log.
func Sanitize(cfg *ServerConfig) *ServerConfig {
	sanitized := *cfg
	sanitized.Security.AdminKeyHash = logger.Mask(cfg.Security.AdminKeyHash)
	return &sanitized
}
