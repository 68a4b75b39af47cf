package keystore

import (
	"context"
	"crypto"
	"crypto/x509"
	"sync"
)

// entry is one stored key-store record: either a key+chain pair or a single
// certificate.
type entry struct {
	key   crypto.PrivateKey
	chain []*x509.Certificate
	cert  *x509.Certificate
}

// MemoryStore is an in-process KeyStore. It backs tests and single-process
// deployments where durability is not required.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]entry
}

var _ KeyStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory key store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]entry)}
}

// SetKeyEntry stores a private key and chain under the alias.
func (s *MemoryStore) SetKeyEntry(ctx context.Context, alias string, key crypto.PrivateKey, chain []*x509.Certificate) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[alias] = entry{key: key, chain: chain}
	return nil
}

// SetCertificateEntry stores a single certificate under the alias.
func (s *MemoryStore) SetCertificateEntry(ctx context.Context, alias string, cert *x509.Certificate) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[alias] = entry{cert: cert}
	return nil
}

// DeleteEntry removes the entry under the alias, if any.
func (s *MemoryStore) DeleteEntry(ctx context.Context, alias string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, alias)
	return nil
}

// GetCertificate returns the certificate under the alias: the single
// certificate for a certificate entry, the chain leaf for a key entry.
func (s *MemoryStore) GetCertificate(ctx context.Context, alias string) (*x509.Certificate, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[alias]
	if !ok {
		return nil, ErrNotFound
	}
	if e.cert != nil {
		return e.cert, nil
	}
	if len(e.chain) > 0 {
		return e.chain[0], nil
	}
	return nil, ErrNotFound
}

// Len returns the number of stored entries.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
