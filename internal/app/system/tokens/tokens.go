// internal/app/system/tokens/tokens.go

// Package tokens generates opaque security tokens for invitation links.
package tokens

import (
	"crypto/rand"
	"encoding/hex"
)

// Length is the byte length of generated tokens before hex encoding.
const Length = 32

// New returns a 64-character hex string from 32 bytes of crypto/rand.
// Panics if the system RNG is unavailable, which is unrecoverable.
func New() string {
	b := make([]byte, Length)
	if _, err := rand.Read(b); err != nil {
		panic("tokens: failed to read random bytes: " + err.Error())
	}
	return hex.EncodeToString(b)
}
