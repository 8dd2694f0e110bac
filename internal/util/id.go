package util

import (
	"crypto/rand"
	"encoding/hex"
)

// NewToken returns a random hex string of 2n characters, used for refresh
// tokens and token identifiers.
func NewToken(n int) string {
	bytes := make([]byte, n)
	_, _ = rand.Read(bytes)
	return hex.EncodeToString(bytes)
}
