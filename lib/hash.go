package lib

import (
	"crypto/sha256"
	"encoding/hex"
)

func HashBytes(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// HashString returns the SHA-256 hex digest of s. Raw cookie and storage
// values are never persisted, only their digest.
func HashString(s string) string {
	return HashBytes([]byte(s))
}
