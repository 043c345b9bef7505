package port

// KeyMaterialGenerator produces fresh symmetric session key material. The
// cipher itself is an external capability; this core only moves opaque blobs.
type KeyMaterialGenerator interface {
	// NewSessionKey returns a fresh key and IV pair.
	NewSessionKey() (key []byte, iv []byte, err error)
}

// FingerprintHasher reduces a raw device fingerprint to the stable hash kept
// in the user pattern history.
type FingerprintHasher interface {
	HashFingerprint(raw string) string
}
