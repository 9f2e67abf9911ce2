// Package logger builds the process's slog loggers.
//
// Loggers from New share one adjustable level, redact admin keys and their
// argon2id hashes, and pick up the request ID and engine instance stored in
// the context passed to InfoContext and friends.
package logger
