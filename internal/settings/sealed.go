// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package settings

import (
	"bytes"
	"crypto/rand"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/crypto/nacl/secretbox"
	"golang.org/x/crypto/scrypt"
)

// SECURITY: API keys are encrypted at rest when a passphrase is configured.
//
// Sealed blob layout: magic | salt (16) | nonce (24) | secretbox ciphertext.

var sealMagic = []byte("CDSEAL1\x00")

const (
	saltSize  = 16
	nonceSize = 24
	keySize   = 32

	scryptN = 1 << 15
	scryptR = 8
	scryptP = 1
)

// ErrSealOpen is returned when a sealed blob cannot be decrypted, usually
// because the passphrase is wrong.
var ErrSealOpen = errors.New("cannot decrypt settings: wrong passphrase or corrupted data")

// SealedBackend encrypts blobs before handing them to Inner. Unsealed blobs
// read from Inner are returned as-is so existing plaintext settings are
// upgraded on the next write.
type SealedBackend struct {
	Inner      Backend
	passphrase []byte

	mu       sync.Mutex
	lastSalt []byte
	lastKey  *[keySize]byte
}

// NewSealedBackend wraps inner. The passphrase must not be empty.
func NewSealedBackend(inner Backend, passphrase string) (*SealedBackend, error) {
	if passphrase == "" {
		return nil, errors.New("sealed settings require a non-empty passphrase")
	}
	return &SealedBackend{Inner: inner, passphrase: []byte(passphrase)}, nil
}

// Read implements Backend.
func (b *SealedBackend) Read(key string) ([]byte, error) {
	data, err := b.Inner.Read(key)
	if err != nil {
		return nil, err
	}
	if !bytes.HasPrefix(data, sealMagic) {
		return data, nil
	}

	body := data[len(sealMagic):]
	if len(body) < saltSize+nonceSize+secretbox.Overhead {
		return nil, ErrSealOpen
	}
	salt := body[:saltSize]
	var nonce [nonceSize]byte
	copy(nonce[:], body[saltSize:saltSize+nonceSize])

	k, err := b.derive(salt)
	if err != nil {
		return nil, err
	}
	plain, ok := secretbox.Open(nil, body[saltSize+nonceSize:], &nonce, k)
	if !ok {
		return nil, ErrSealOpen
	}
	return plain, nil
}

// Write implements Backend.
func (b *SealedBackend) Write(key string, data []byte) error {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("generate salt: %w", err)
	}
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return fmt.Errorf("generate nonce: %w", err)
	}
	k, err := b.derive(salt)
	if err != nil {
		return err
	}

	out := make([]byte, 0, len(sealMagic)+saltSize+nonceSize+len(data)+secretbox.Overhead)
	out = append(out, sealMagic...)
	out = append(out, salt...)
	out = append(out, nonce[:]...)
	out = secretbox.Seal(out, data, &nonce, k)
	return b.Inner.Write(key, out)
}

// derive runs scrypt, caching the most recent salt since reads usually
// follow the write that chose it.
func (b *SealedBackend) derive(salt []byte) (*[keySize]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.lastKey != nil && bytes.Equal(b.lastSalt, salt) {
		return b.lastKey, nil
	}
	raw, err := scrypt.Key(b.passphrase, salt, scryptN, scryptR, scryptP, keySize)
	if err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	var k [keySize]byte
	copy(k[:], raw)
	b.lastSalt = append([]byte(nil), salt...)
	b.lastKey = &k
	return &k, nil
}
