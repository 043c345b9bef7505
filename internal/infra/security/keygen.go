package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/arklim/social-platform-chat/internal/core/port"
)

const (
	sessionKeyLength = 32
	sessionIVLength  = 16
)

// KeyGenerator produces session key material from the platform CSPRNG. The
// material is opaque to this service; clients drive the cipher.
type KeyGenerator struct{}

// NewKeyGenerator constructs a KeyGenerator.
func NewKeyGenerator() *KeyGenerator {
	return &KeyGenerator{}
}

// NewSessionKey returns a fresh 256-bit key and 128-bit IV.
func (g *KeyGenerator) NewSessionKey() ([]byte, []byte, error) {
	key := make([]byte, sessionKeyLength)
	if _, err := rand.Read(key); err != nil {
		return nil, nil, fmt.Errorf("generate session key: %w", err)
	}

	iv := make([]byte, sessionIVLength)
	if _, err := rand.Read(iv); err != nil {
		return nil, nil, fmt.Errorf("generate session iv: %w", err)
	}

	return key, iv, nil
}

// FingerprintHasher reduces raw device fingerprints to the stable SHA-256
// digest stored in user pattern history, so raw fingerprints never persist.
type FingerprintHasher struct{}

// NewFingerprintHasher constructs a FingerprintHasher.
func NewFingerprintHasher() *FingerprintHasher {
	return &FingerprintHasher{}
}

// HashFingerprint returns the hex digest of the normalized fingerprint.
func (FingerprintHasher) HashFingerprint(raw string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(raw)))
	return hex.EncodeToString(sum[:])
}

var (
	_ port.KeyMaterialGenerator = (*KeyGenerator)(nil)
	_ port.FingerprintHasher    = (*FingerprintHasher)(nil)
)
