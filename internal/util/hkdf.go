package util

import (
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const HKDFKeyLength = 32

// DeriveKey expands an operator-supplied secret into a 32-byte key. The
// secret is NFKD-normalised first so that visually identical secrets typed
// on different keyboards derive the same key.
func DeriveKey(secret string, salt []byte, info []byte) ([]byte, error) {
	seed := []byte(Normalize(secret))
	defer WipeBytes(seed)
	h := hkdf.New(sha256.New, seed, salt, info)
	k := make([]byte, HKDFKeyLength)
	if _, err := io.ReadFull(h, k); err != nil {
		return nil, fmt.Errorf("reading from HKDF: %w", err)
	}
	return k, nil
}
