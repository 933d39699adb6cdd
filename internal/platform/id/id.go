// Package id generates opaque identifiers for aggregates and reprojection runs.
package id

import (
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"strings"
)

var encoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// NewID returns a random 128-bit identifier encoded as 26 lowercase
// base32 characters. The underlying bytes carry UUIDv4 version and
// variant bits so the value can be decoded back into a standard UUID.
func NewID() (string, error) {
	var raw [16]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	raw[6] = (raw[6] & 0x0f) | 0x40
	raw[8] = (raw[8] & 0x3f) | 0x80
	return strings.ToLower(encoding.EncodeToString(raw[:])), nil
}
