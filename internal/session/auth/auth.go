// Package auth implements the optional password handshake of a session and
// the encrypted framing used after it.
package auth

import (
	"crypto/pbkdf2"
	"crypto/rand"
	"crypto/sha256"
	"errors"
)

const (
	// GeneratedKeyLength is the length of passwords made by GenerateKey.
	GeneratedKeyLength = 16
	keyAlphabet        = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
	keyIterations      = 100000
	keySalt            = "padbridge-key-v1"
	sessionContext     = "padbridge-session-v1"
)

// ErrEmptyPassword is returned by DeriveKey for an empty password.
var ErrEmptyPassword = errors.New("password cannot be empty")

// GenerateKey returns a random base62 password.
func GenerateKey() (string, error) {
	// 248 is the largest multiple of 62 that fits a byte; rejecting bytes at
	// or above it keeps every character equally likely.
	const limit = 248
	key := make([]byte, 0, GeneratedKeyLength)
	buf := make([]byte, GeneratedKeyLength)
	for len(key) < GeneratedKeyLength {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if b >= limit || len(key) == GeneratedKeyLength {
				continue
			}
			key = append(key, keyAlphabet[int(b)%len(keyAlphabet)])
		}
	}
	return string(key), nil
}

// DeriveKey stretches a password into a 32-byte key.
func DeriveKey(password string) ([]byte, error) {
	if password == "" {
		return nil, ErrEmptyPassword
	}
	return pbkdf2.Key(sha256.New, password, []byte(keySalt), keyIterations, 32)
}

// DeriveSessionKey mixes the long-term key with both handshake nonces.
func DeriveSessionKey(key, serverNonce, clientNonce []byte) []byte {
	h := sha256.New()
	h.Write(key)
	h.Write(serverNonce)
	h.Write(clientNonce)
	h.Write([]byte(sessionContext))
	return h.Sum(nil)
}
