package deploy

import (
	"crypto/rand"
	"fmt"
	"io"
)

// KeyLength is the length of every deploy key
const KeyLength = 6

const keyAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// KeySource draws one candidate deploy key
type KeySource func() (string, error)

// RandomKey draws a key uniformly from keyAlphabet using crypto/rand
func RandomKey() (string, error) {
	return randomKeyFrom(rand.Reader)
}

func randomKeyFrom(r io.Reader) (string, error) {
	// 62 * 4 = 248; bytes at or above it are rejected to keep the draw uniform
	const limit = byte(len(keyAlphabet) * 4)

	key := make([]byte, 0, KeyLength)
	buf := make([]byte, KeyLength*2)
	for len(key) < KeyLength {
		if _, err := io.ReadFull(r, buf); err != nil {
			return "", fmt.Errorf("error reading random bytes: %w", err)
		}
		for _, b := range buf {
			if b >= limit {
				continue
			}
			key = append(key, keyAlphabet[int(b)%len(keyAlphabet)])
			if len(key) == KeyLength {
				break
			}
		}
	}
	return string(key), nil
}

// ValidKey reports whether s has the shape of a deploy key
func ValidKey(s string) bool {
	if len(s) != KeyLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !('a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || '0' <= c && c <= '9') {
			return false
		}
	}
	return true
}
