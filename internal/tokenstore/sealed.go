package tokenstore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

const (
	sealSaltSize   = 16
	sealIterations = 100000
	sealKeySize    = 32
)

// SealedArea encrypts values with AES-GCM before handing them to an
// underlying area. Each value gets its own salt, so the key is derived from
// the passphrase with PBKDF2 on every access.
type SealedArea struct {
	inner      Area
	passphrase []byte
}

// NewSealedArea wraps inner. An empty passphrase is rejected.
func NewSealedArea(inner Area, passphrase string) (*SealedArea, error) {
	if passphrase == "" {
		return nil, fmt.Errorf("sealed storage requires a passphrase")
	}
	return &SealedArea{inner: inner, passphrase: []byte(passphrase)}, nil
}

func (s *SealedArea) Get(key string) (string, bool, error) {
	v, ok, err := s.inner.Get(key)
	if err != nil || !ok {
		return "", ok, err
	}
	plain, err := s.open(v)
	if err != nil {
		return "", false, fmt.Errorf("unseal %s: %w", key, err)
	}
	return plain, true, nil
}

func (s *SealedArea) Set(key, value string) error {
	sealed, err := s.seal(value)
	if err != nil {
		return fmt.Errorf("seal %s: %w", key, err)
	}
	return s.inner.Set(key, sealed)
}

func (s *SealedArea) Delete(key string) error {
	return s.inner.Delete(key)
}

func (s *SealedArea) aead(salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key(s.passphrase, salt, sealIterations, sealKeySize, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// seal returns base64(salt | nonce | ciphertext).
func (s *SealedArea) seal(plaintext string) (string, error) {
	salt := make([]byte, sealSaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}
	gcm, err := s.aead(salt)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	out := append(salt, nonce...)
	out = gcm.Seal(out, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(out), nil
}

func (s *SealedArea) open(sealed string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", err
	}
	if len(data) < sealSaltSize {
		return "", fmt.Errorf("ciphertext too short")
	}

	salt, rest := data[:sealSaltSize], data[sealSaltSize:]
	gcm, err := s.aead(salt)
	if err != nil {
		return "", err
	}

	nonceSize := gcm.NonceSize()
	if len(rest) < nonceSize {
		return "", fmt.Errorf("ciphertext too short")
	}
	plaintext, err := gcm.Open(nil, rest[:nonceSize], rest[nonceSize:], nil)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}
