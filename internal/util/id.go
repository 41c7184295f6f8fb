package util

import (
	"crypto/rand"
	"encoding/hex"
)

// NewID returns a short URL-safe hex string, used where a full UUID would be
// overkill (queue consumer names, request ids).
func NewID() string {
	b := make([]byte, 12)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
