package domain

import (
	"encoding/binary"
	"encoding/hex"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/spaolacci/murmur3"
)

// MaxInstanceNameLength bounds the application-level instance name.
const MaxInstanceNameLength = 128

// RequestIDPrefix is the prefix for generated request IDs.
const RequestIDPrefix = "req-"

// ValidateInstanceName checks that name is usable as a stable instance address.
//
// Names are 1..128 characters drawn from letters, digits and "._:-".
func ValidateInstanceName(name string) error {
	if name == "" {
		return ErrInvalidInstanceName.WithDetails("name is empty")
	}
	if len(name) > MaxInstanceNameLength {
		return ErrInvalidInstanceName.WithDetails("name too long")
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '.', r == '_', r == ':', r == '-':
		default:
			return ErrInvalidInstanceName.WithDetails("invalid character " + string(r))
		}
	}
	return nil
}

// InstanceIDFromName derives the instance ID for a name.
//
// The mapping is deterministic across processes: the same name always
// addresses the same instance and the same data directory.
func InstanceIDFromName(name string) string {
	h1, h2 := murmur3.Sum128([]byte(name))
	var buf [16]byte
	binary.BigEndian.PutUint64(buf[:8], h1)
	binary.BigEndian.PutUint64(buf[8:], h2)
	return hex.EncodeToString(buf[:])
}

// NewRequestID returns a new request ID: req-{ulid_lowercase}.
func NewRequestID() string {
	return RequestIDPrefix + strings.ToLower(ulid.Make().String())
}
