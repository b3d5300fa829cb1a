package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"soulreflect/pkg/domain"
)

// ErrEmptySecret is returned when hashing a blank credential.
var ErrEmptySecret = errors.New("secret required")

// HashSecret returns a bcrypt hash of the credential.
// Secrets longer than bcrypt's 72 byte limit (biometric keys can be) are
// pre-hashed so the full value still counts.
func HashSecret(secret string) (string, error) {
	if secret == "" {
		return "", ErrEmptySecret
	}
	hash, err := bcrypt.GenerateFromPassword(bcryptInput(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckSecret validates a credential against a stored bcrypt hash.
func CheckSecret(secret, stored string) bool {
	if secret == "" || stored == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(stored), bcryptInput(secret)) == nil
}

func bcryptInput(secret string) []byte {
	if len(secret) <= 72 {
		return []byte(secret)
	}
	sum := sha256.Sum256([]byte(secret))
	return []byte(hex.EncodeToString(sum[:]))
}

// BiometricCredential derives the stand-in device key for biometric sign-in.
// The same email always yields the same key.
func BiometricCredential(email string) string {
	sum := sha256.Sum256([]byte("soul-biometric:" + domain.NormalizeEmail(email)))
	return "bio_" + hex.EncodeToString(sum[:16])
}

// SocialCredential is the credential stored for profiles created through a
// social provider; the provider has already vouched for the identity.
func SocialCredential(method domain.AuthMethod) string {
	return "social_" + strings.ToLower(string(method))
}
