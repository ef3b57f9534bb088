package prefs

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/nacl/secretbox"
	"golang.org/x/crypto/scrypt"
)

const (
	nonceSize = 24
	keySize   = 32
	saltSize  = 16
)

// ErrUnsealFailed is returned when a sealed value cannot be opened.
var ErrUnsealFailed = errors.New("prefs: unseal failed")

// Sealer protects secret values at rest.
type Sealer interface {
	Seal(plain []byte) ([]byte, error)
	Open(sealed []byte) ([]byte, error)
}

type plainSealer struct{}

func (plainSealer) Seal(plain []byte) ([]byte, error)  { return plain, nil }
func (plainSealer) Open(sealed []byte) ([]byte, error) { return sealed, nil }

// SecretBox seals with NaCl secretbox using an scrypt-derived key.
type SecretBox struct {
	key [keySize]byte
}

// NewSecretBox derives a key from passphrase and salt.
func NewSecretBox(passphrase string, salt []byte) (*SecretBox, error) {
	if passphrase == "" {
		return nil, errors.New("passphrase is required")
	}
	derived, err := scrypt.Key([]byte(passphrase), salt, 1<<15, 8, 1, keySize)
	if err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	box := &SecretBox{}
	copy(box.key[:], derived)
	return box, nil
}

// Seal prefixes the ciphertext with a random nonce.
func (s *SecretBox) Seal(plain []byte) ([]byte, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("read nonce: %w", err)
	}
	return secretbox.Seal(nonce[:], plain, &nonce, &s.key), nil
}

// Open reverses Seal.
func (s *SecretBox) Open(sealed []byte) ([]byte, error) {
	if len(sealed) < nonceSize+secretbox.Overhead {
		return nil, ErrUnsealFailed
	}
	var nonce [nonceSize]byte
	copy(nonce[:], sealed[:nonceSize])
	plain, ok := secretbox.Open(nil, sealed[nonceSize:], &nonce, &s.key)
	if !ok {
		return nil, ErrUnsealFailed
	}
	return plain, nil
}

func newSalt() ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("read salt: %w", err)
	}
	return salt, nil
}
