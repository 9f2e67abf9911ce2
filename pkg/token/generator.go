package token

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// AdminKeyPrefix marks plaintext admin keys so log redaction can spot them.
const AdminKeyPrefix = "rkak_"

const adminKeyBytes = 32

// GenerateAdminKey returns a new plaintext admin key: rkak_ followed by
// 43 base64url characters.
func GenerateAdminKey() (string, error) {
	body, err := randomBytes(adminKeyBytes)
	if err != nil {
		return "", err
	}
	return AdminKeyPrefix + base64.RawURLEncoding.EncodeToString(body), nil
}

func randomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("token: read random: %w", err)
	}
	return b, nil
}
