package directory

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// dummyHash is a pre-computed bcrypt hash compared against when the client
// does not exist or has no secret, so verification takes the same time
// either way. The timing defense comes from always running the bcrypt
// comparison, not from the hash value.
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// VerifySecretHash compares a presented secret against a stored bcrypt hash.
// A nil result means the secret matched; any mismatch is an error. When
// storedHash is empty the dummy hash is compared instead so callers stay
// timing-uniform for unknown clients.
func VerifySecretHash(storedHash, presented string) error {
	hash := storedHash
	exists := hash != ""
	if !exists {
		hash = dummyHash
	}

	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(presented))
	if err != nil || !exists {
		return fmt.Errorf("client secret mismatch")
	}
	return nil
}

// HashSecret produces a bcrypt hash for a client secret. Exposed for test
// fixtures and for client-management collaborators that share this module.
func HashSecret(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash client secret: %w", err)
	}
	return string(hash), nil
}
