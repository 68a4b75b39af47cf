package keystore

import (
	"context"
	"crypto"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FileStore implements KeyStore using the filesystem.
// Entry layout:
//
//	{basePath}/{alias}/
//	    certificate.pem    # certificate entry, or the chain of a key entry
//	    private-key.pem    # key entry only (encrypted when a passphrase is set)
type FileStore struct {
	basePath   string
	passphrase []byte
	mu         sync.RWMutex
}

var _ KeyStore = (*FileStore)(nil)

// NewFileStore creates a file-based key store rooted at basePath. When
// passphrase is non-empty, private keys are encrypted at rest.
func NewFileStore(basePath string, passphrase []byte) (*FileStore, error) {
	if basePath == "" {
		return nil, fmt.Errorf("base path is required")
	}
	if err := os.MkdirAll(basePath, 0700); err != nil {
		return nil, fmt.Errorf("failed to create key store directory: %w", err)
	}
	return &FileStore{basePath: basePath, passphrase: passphrase}, nil
}

// entryPath returns the directory holding one alias's files. Aliases are
// derived identity keys, but the mapping tolerates arbitrary strings.
func (s *FileStore) entryPath(alias string) string {
	name := alias
	if strings.ContainsAny(alias, "/\\:") || alias == "." || alias == ".." {
		sum := sha256.Sum256([]byte(alias))
		name = "x" + hex.EncodeToString(sum[:12])
	}
	return filepath.Join(s.basePath, name)
}

// SetKeyEntry stores a private key and chain under the alias.
func (s *FileStore) SetKeyEntry(ctx context.Context, alias string, key crypto.PrivateKey, chain []*x509.Certificate) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := s.entryPath(alias)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to clear entry %s: %w", alias, err)
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create entry directory: %w", err)
	}

	keyPEM, err := encodePrivateKeyPEM(key, s.passphrase)
	if err != nil {
		return fmt.Errorf("failed to encode private key for %s: %w", alias, err)
	}
	if err := os.WriteFile(filepath.Join(dir, "private-key.pem"), keyPEM, 0600); err != nil {
		return fmt.Errorf("failed to write private key: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "certificate.pem"), encodeCertificatesPEM(chain), 0644); err != nil {
		return fmt.Errorf("failed to write certificate chain: %w", err)
	}

	return nil
}

// SetCertificateEntry stores a single certificate under the alias.
func (s *FileStore) SetCertificateEntry(ctx context.Context, alias string, cert *x509.Certificate) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := s.entryPath(alias)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to clear entry %s: %w", alias, err)
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create entry directory: %w", err)
	}

	certPEM := encodeCertificatesPEM([]*x509.Certificate{cert})
	if err := os.WriteFile(filepath.Join(dir, "certificate.pem"), certPEM, 0644); err != nil {
		return fmt.Errorf("failed to write certificate: %w", err)
	}

	return nil
}

// DeleteEntry removes the alias's directory. Absent aliases are a no-op.
func (s *FileStore) DeleteEntry(ctx context.Context, alias string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.RemoveAll(s.entryPath(alias)); err != nil {
		return fmt.Errorf("failed to delete entry %s: %w", alias, err)
	}
	return nil
}

// GetCertificate returns the first certificate stored under the alias.
func (s *FileStore) GetCertificate(ctx context.Context, alias string) (*x509.Certificate, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(filepath.Join(s.entryPath(alias), "certificate.pem"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read certificate for %s: %w", alias, err)
	}

	certs, err := decodeCertificatesPEM(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode certificate for %s: %w", alias, err)
	}
	if len(certs) == 0 {
		return nil, ErrNotFound
	}
	return certs[0], nil
}

// GetPrivateKey returns the private key of a key entry. It exists for
// backends and tools that need to re-export material; the install/remove
// flow never reads keys back.
func (s *FileStore) GetPrivateKey(ctx context.Context, alias string) (crypto.PrivateKey, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(filepath.Join(s.entryPath(alias), "private-key.pem"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read private key for %s: %w", alias, err)
	}

	return decodePrivateKeyPEM(data, s.passphrase)
}

// BasePath returns the key store directory path.
func (s *FileStore) BasePath() string {
	return s.basePath
}
