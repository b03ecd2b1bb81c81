// Copyright (c) 2026 PronounDB. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
)

// DeriveKey turns a configured secret into a fixed-size HMAC key.
func DeriveKey(secret string) []byte {
	sum := sha256.Sum256([]byte(secret))
	return sum[:]
}

// RandomBytes returns n bytes from the system CSPRNG.
func RandomBytes(n int) ([]byte, error) {
	buffer := make([]byte, n)
	if _, err := rand.Read(buffer); err != nil {
		return nil, fmt.Errorf("sec: failed to read random bytes: %w", err)
	}
	return buffer, nil
}

// RandomString returns n random bytes encoded as unpadded base64url.
func RandomString(n int) (string, error) {
	buffer, err := RandomBytes(n)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buffer), nil
}

// Equal compares two byte slices without leaking where they differ.
// Slices of different length are never equal and are not compared.
func Equal(expected, supplied []byte) bool {
	if len(expected) != len(supplied) {
		return false
	}
	return subtle.ConstantTimeCompare(expected, supplied) == 1
}
