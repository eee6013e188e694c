package knol

import (
	"crypto/sha256"
	"fmt"
)

// Hash returns the SHA-256 hex digest of a cell's content. Content is
// compared byte for byte, so no normalization is applied.
func Hash(content string) string {
	return Checksum([]byte(content))
}

// Checksum returns the SHA-256 hex digest of a document's bytes.
func Checksum(data []byte) string {
	hashBytes := sha256.Sum256(data)
	return fmt.Sprintf("%x", hashBytes)
}
