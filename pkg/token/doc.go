// Package token provides admin key generation and hashing utilities.
//
// Admin Key Format:
//
//   - Prefix: rkak_ (5 characters)
//   - Body: 43 characters of Base64 RawURL encoded random bytes
//   - Total: 48 characters
//
// Admin Key Hash Format (PHC string, Argon2id):
//
//	$argon2id$v=19$m=16384,t=2,p=2$<salt>$<hash>
//
// Security:
//
//   - Uses crypto/rand for CSPRNG
//   - Argon2id hashing with constant-time comparison
//   - Servers keep only the hash; the plaintext key is shown once
package token
