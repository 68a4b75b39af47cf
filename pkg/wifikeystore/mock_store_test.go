package wifikeystore

import (
	"context"
	"crypto"
	"crypto/x509"
	"sync"
	"time"

	"github.com/nightshade-os/wifi-keystore/pkg/keystore"
)

// MockStore implements keystore.KeyStore for testing without a backend.
type MockStore struct {
	mu      sync.RWMutex
	callsMu sync.Mutex // Separate mutex for call recording

	// Storage
	Keys   map[string]crypto.PrivateKey   // alias -> private key
	Chains map[string][]*x509.Certificate // alias -> chain, leaf first
	Certs  map[string]*x509.Certificate   // alias -> single certificate

	// Error injection (global)
	SetKeyErr  error
	SetCertErr error
	DeleteErr  error
	GetCertErr error

	// Error injection (per-alias)
	SetCertErrors map[string]error // alias -> error
	DeleteErrors  map[string]error // alias -> error

	// Call tracking
	Calls []MockStoreCall
}

// MockStoreCall records a method call for verification.
type MockStoreCall struct {
	Method string
	Alias  string
	Time   time.Time
}

// Compile-time interface check.
var _ keystore.KeyStore = (*MockStore)(nil)

// NewMockStore creates a new mock key store with default values.
func NewMockStore() *MockStore {
	return &MockStore{
		Keys:          make(map[string]crypto.PrivateKey),
		Chains:        make(map[string][]*x509.Certificate),
		Certs:         make(map[string]*x509.Certificate),
		SetCertErrors: make(map[string]error),
		DeleteErrors:  make(map[string]error),
	}
}

// recordCall records a method call for later verification.
func (m *MockStore) recordCall(method, alias string) {
	m.callsMu.Lock()
	defer m.callsMu.Unlock()
	m.Calls = append(m.Calls, MockStoreCall{
		Method: method,
		Alias:  alias,
		Time:   time.Now(),
	})
}

// CallsTo returns the aliases passed to the given method, in call order.
func (m *MockStore) CallsTo(method string) []string {
	m.callsMu.Lock()
	defer m.callsMu.Unlock()
	var aliases []string
	for _, c := range m.Calls {
		if c.Method == method {
			aliases = append(aliases, c.Alias)
		}
	}
	return aliases
}

// Has reports whether any entry exists under the alias.
func (m *MockStore) Has(alias string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.Keys[alias]; ok {
		return true
	}
	_, ok := m.Certs[alias]
	return ok
}

// SetKeyEntry stores a private key and chain under the alias.
func (m *MockStore) SetKeyEntry(ctx context.Context, alias string, key crypto.PrivateKey, chain []*x509.Certificate) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	m.recordCall("SetKeyEntry", alias)

	if m.SetKeyErr != nil {
		return m.SetKeyErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Certs, alias)
	m.Keys[alias] = key
	m.Chains[alias] = chain
	return nil
}

// SetCertificateEntry stores a single certificate under the alias.
func (m *MockStore) SetCertificateEntry(ctx context.Context, alias string, cert *x509.Certificate) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	m.recordCall("SetCertificateEntry", alias)

	if m.SetCertErr != nil {
		return m.SetCertErr
	}
	if err := m.SetCertErrors[alias]; err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Keys, alias)
	delete(m.Chains, alias)
	m.Certs[alias] = cert
	return nil
}

// DeleteEntry removes the entry under the alias. Absent aliases are a no-op.
func (m *MockStore) DeleteEntry(ctx context.Context, alias string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	m.recordCall("DeleteEntry", alias)

	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	if err := m.DeleteErrors[alias]; err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Keys, alias)
	delete(m.Chains, alias)
	delete(m.Certs, alias)
	return nil
}

// GetCertificate returns the certificate under the alias, the chain leaf
// for key entries.
func (m *MockStore) GetCertificate(ctx context.Context, alias string) (*x509.Certificate, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	m.recordCall("GetCertificate", alias)

	if m.GetCertErr != nil {
		return nil, m.GetCertErr
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if cert, ok := m.Certs[alias]; ok {
		return cert, nil
	}
	if chain, ok := m.Chains[alias]; ok && len(chain) > 0 {
		return chain[0], nil
	}
	return nil, keystore.ErrNotFound
}
