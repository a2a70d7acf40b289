package util

import (
	"crypto/sha256"
	"encoding/hex"
)

// ContentDigest returns a hex sha256 of data, used to derive stable storage
// keys for identical decks.
func ContentDigest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
