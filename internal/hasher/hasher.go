// Package hasher provides the content digest used as the dedup key.
package hasher

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sum returns the SHA-256 digest of b as a lowercase hex string. Equal byte
// sequences always yield equal digests; this is the sole dedup mechanism,
// there is no byte-for-byte comparison fallback.
func Sum(b []byte) string {
	digest := sha256.Sum256(b)
	return hex.EncodeToString(digest[:])
}
