// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package configstore is the Config Store: a typed key/value accessor over
// the persistence engine with a per-key encrypted flag, transparently
// encrypting and decrypting marked values with a key derived from a
// process-wide passphrase.
package configstore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// credentialEncryptionSalt is fixed so that the same passphrase always
	// derives the same key; it is not a secret, only a domain separator.
	credentialEncryptionSalt = "cartographus-config-store-v1"
	pbkdf2Iterations         = 100_000
	aesKeySize               = 32
	gcmNonceSize             = 12
)

// Sentinel errors for the Encryption Helper.
var (
	ErrEmptySecret   = errors.New("configstore: secret key must not be empty")
	ErrEmptyCiphertext = errors.New("configstore: ciphertext must not be empty")
	ErrCiphertextTooShort = errors.New("configstore: ciphertext too short")
)

// CredentialEncryptor implements the symmetric authenticated-encryption
// scheme required by the Config Store: AES-256-GCM keyed by a PBKDF2-SHA256
// derivation of the process secret key, fixed salt, >=100,000 iterations.
type CredentialEncryptor struct {
	aead cipher.AEAD
}

// NewCredentialEncryptor derives the AES-GCM key from secretKey.
func NewCredentialEncryptor(secretKey string) (*CredentialEncryptor, error) {
	if secretKey == "" {
		return nil, ErrEmptySecret
	}
	key := pbkdf2.Key([]byte(secretKey), []byte(credentialEncryptionSalt), pbkdf2Iterations, aesKeySize, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("configstore: build cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("configstore: build gcm: %w", err)
	}
	return &CredentialEncryptor{aead: aead}, nil
}

// Encrypt returns base64(nonce || ciphertext || tag). Empty input encrypts
// to empty output.
func (e *CredentialEncryptor) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	nonce := make([]byte, gcmNonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("configstore: generate nonce: %w", err)
	}
	sealed := e.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. Per the Config Store's contract, any failure to
// authenticate (wrong passphrase, corrupted/foreign ciphertext) returns an
// empty string rather than an error, so a passphrase change renders old
// secrets unreadable instead of crashing the caller.
func (e *CredentialEncryptor) Decrypt(encoded string) string {
	if encoded == "" {
		return ""
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return ""
	}
	if len(raw) < gcmNonceSize {
		return ""
	}
	nonce, ciphertext := raw[:gcmNonceSize], raw[gcmNonceSize:]
	plaintext, err := e.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return ""
	}
	return string(plaintext)
}

// MaskCredential returns a display-safe form of a secret value, showing
// only its last 4 characters.
func MaskCredential(value string) string {
	if len(value) <= 4 {
		return "****"
	}
	return "****" + value[len(value)-4:]
}
