package logger

import (
	"log/slog"
	"strings"

	"github.com/yndnr/rolloutkv/pkg/token"
)

// secretPrefixes identify admin keys and their hashes by value, whatever
// attribute carries them.
var secretPrefixes = []string{token.AdminKeyPrefix, "$argon2id$"}

// secretNames are attribute name fragments whose values are never logged.
// Names are lowercased and '-' is read as '_', so X-Admin-Key matches.
// A bare "key" is absent: store keys are logged under "key".
var secretNames = []string{
	"admin_key",
	"key_hash",
	"password",
	"secret",
	"token",
	"authorization",
	"credential",
}

const redacted = "***REDACTED***"

func redact(a slog.Attr) slog.Attr {
	if a.Value.Kind() != slog.KindString {
		return a
	}
	v := a.Value.String()
	if v == "" {
		return a
	}
	if masked, ok := maskSecret(v); ok {
		return slog.String(a.Key, masked)
	}
	if isSecretName(a.Key) {
		return slog.String(a.Key, redacted)
	}
	return a
}

func isSecretName(name string) bool {
	n := strings.ToLower(strings.ReplaceAll(name, "-", "_"))
	for _, s := range secretNames {
		if strings.Contains(n, s) {
			return true
		}
	}
	return false
}

// maskSecret keeps the prefix and three characters at each end of a
// recognized secret.
func maskSecret(v string) (string, bool) {
	for _, p := range secretPrefixes {
		if !strings.HasPrefix(v, p) {
			continue
		}
		body := v[len(p):]
		if len(body) <= 6 {
			return p + "***", true
		}
		return p + body[:3] + "..." + body[len(body)-3:], true
	}
	return v, false
}

// Mask hides s for display. Admin keys and hashes keep their prefix and a
// short hint. Anything else non-empty becomes "***".
func Mask(s string) string {
	if s == "" {
		return ""
	}
	if masked, ok := maskSecret(s); ok {
		return masked
	}
	return "***"
}
