package checksum

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Short returns the first 16 hex characters of the SHA-256 digest of data.
// Used as the digest half of document revision tokens.
func Short(data []byte) string {
	return Sum(data)[:16]
}
