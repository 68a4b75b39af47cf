package keystore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"

	"golang.org/x/crypto/scrypt"
)

// scrypt parameters for at-rest key encryption.
const (
	scryptN       = 32768
	scryptR       = 8
	scryptP       = 1
	scryptKeyLen  = 32
	scryptSaltLen = 16
)

// sealValue encrypts plaintext with AES-256-GCM under a scrypt-derived key.
// Output layout: salt || nonce || ciphertext.
func sealValue(plaintext, passphrase []byte) ([]byte, error) {
	salt := make([]byte, scryptSaltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	aead, err := newAEAD(passphrase, salt)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	out := append(salt, nonce...)
	return aead.Seal(out, nonce, plaintext, nil), nil
}

// openValue reverses sealValue.
func openValue(sealed, passphrase []byte) ([]byte, error) {
	if len(sealed) < scryptSaltLen {
		return nil, fmt.Errorf("sealed value too short")
	}
	salt, rest := sealed[:scryptSaltLen], sealed[scryptSaltLen:]

	aead, err := newAEAD(passphrase, salt)
	if err != nil {
		return nil, err
	}

	if len(rest) < aead.NonceSize() {
		return nil, fmt.Errorf("sealed value too short")
	}
	nonce, ciphertext := rest[:aead.NonceSize()], rest[aead.NonceSize():]

	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt: %w", err)
	}
	return plaintext, nil
}

func newAEAD(passphrase, salt []byte) (cipher.AEAD, error) {
	key, err := scrypt.Key(passphrase, salt, scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	return cipher.NewGCM(block)
}
