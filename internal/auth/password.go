package auth

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashPassword is the entire client-side secret transform: a lowercase-hex
// SHA-256 digest of the raw secret, computed before any transmission so no
// remote ever observes the plaintext. There is no salt and no iteration;
// this matches the hashes already stored in every deployed sheet and
// database, so changing it would lock every existing account out. A real
// hardening pass needs a server-side KDF and a migration.
func HashPassword(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// demoPasswordDigest is HashPassword("password"): the hardcoded bypass
// credential for offline demos.
const demoPasswordDigest = "5e884898da28047151d0e56f8dc6292773603d0d6aabbdd62a11ef721d1542d8"

const demoEmail = "admin@teman.com"
