//go:build cgo

package keystore

import (
	"context"
	"crypto"
	"crypto/x509"
	"fmt"
	"sync"

	"github.com/miekg/pkcs11"
)

// PKCS11Config holds PKCS#11 token configuration.
type PKCS11Config struct {
	// ModulePath is the path to the PKCS#11 module (.so/.dylib/.dll).
	ModulePath string

	// TokenLabel selects the token to use.
	TokenLabel string

	// PIN is the user PIN for the token.
	PIN string
}

// PKCS11Store keeps certificate entries on a PKCS#11 token, for deployments
// whose trust anchors live in an HSM. Private key import is not supported:
// token-resident client keys reach profiles through the key-grant broker as
// externally-issued key-pair aliases, never by material import.
type PKCS11Store struct {
	ctx     *pkcs11.Ctx
	session pkcs11.SessionHandle
	mu      sync.Mutex
}

var _ KeyStore = (*PKCS11Store)(nil)

// NewPKCS11Store opens the PKCS#11 module and logs into the configured token.
func NewPKCS11Store(cfg PKCS11Config) (*PKCS11Store, error) {
	if cfg.ModulePath == "" {
		return nil, fmt.Errorf("PKCS#11 module path is required")
	}

	p := pkcs11.New(cfg.ModulePath)
	if p == nil {
		return nil, fmt.Errorf("failed to load PKCS#11 module %s", cfg.ModulePath)
	}
	if err := p.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PKCS#11 module: %w", err)
	}

	slot, err := findSlot(p, cfg.TokenLabel)
	if err != nil {
		p.Finalize()
		return nil, err
	}

	session, err := p.OpenSession(slot, pkcs11.CKF_SERIAL_SESSION|pkcs11.CKF_RW_SESSION)
	if err != nil {
		p.Finalize()
		return nil, fmt.Errorf("failed to open session: %w", err)
	}

	if cfg.PIN != "" {
		if err := p.Login(session, pkcs11.CKU_USER, cfg.PIN); err != nil {
			p.CloseSession(session)
			p.Finalize()
			return nil, fmt.Errorf("failed to login: %w", err)
		}
	}

	return &PKCS11Store{ctx: p, session: session}, nil
}

// Close logs out and releases the PKCS#11 session.
func (s *PKCS11Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_ = s.ctx.Logout(s.session)
	_ = s.ctx.CloseSession(s.session)
	if err := s.ctx.Finalize(); err != nil {
		return fmt.Errorf("failed to finalize PKCS#11 module: %w", err)
	}
	s.ctx.Destroy()
	return nil
}

// SetKeyEntry is not supported on PKCS#11 tokens.
func (s *PKCS11Store) SetKeyEntry(ctx context.Context, alias string, key crypto.PrivateKey, chain []*x509.Certificate) error {
	return fmt.Errorf("alias %s: %w", alias, ErrKeyImportUnsupported)
}

// SetCertificateEntry stores a certificate object labeled with the alias,
// replacing any prior object under the same label.
func (s *PKCS11Store) SetCertificateEntry(ctx context.Context, alias string, cert *x509.Certificate) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.deleteByLabel(alias); err != nil {
		return err
	}

	template := []*pkcs11.Attribute{
		pkcs11.NewAttribute(pkcs11.CKA_CLASS, pkcs11.CKO_CERTIFICATE),
		pkcs11.NewAttribute(pkcs11.CKA_CERTIFICATE_TYPE, pkcs11.CKC_X_509),
		pkcs11.NewAttribute(pkcs11.CKA_TOKEN, true),
		pkcs11.NewAttribute(pkcs11.CKA_LABEL, alias),
		pkcs11.NewAttribute(pkcs11.CKA_SUBJECT, cert.RawSubject),
		pkcs11.NewAttribute(pkcs11.CKA_ISSUER, cert.RawIssuer),
		pkcs11.NewAttribute(pkcs11.CKA_VALUE, cert.Raw),
	}

	if _, err := s.ctx.CreateObject(s.session, template); err != nil {
		return fmt.Errorf("failed to store certificate %s: %w", alias, err)
	}
	return nil
}

// DeleteEntry removes all certificate objects under the alias label.
func (s *PKCS11Store) DeleteEntry(ctx context.Context, alias string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteByLabel(alias)
}

// GetCertificate returns the certificate object under the alias label.
func (s *PKCS11Store) GetCertificate(ctx context.Context, alias string) (*x509.Certificate, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	handles, err := s.findByLabel(alias)
	if err != nil {
		return nil, err
	}
	if len(handles) == 0 {
		return nil, ErrNotFound
	}

	attrs, err := s.ctx.GetAttributeValue(s.session, handles[0], []*pkcs11.Attribute{
		pkcs11.NewAttribute(pkcs11.CKA_VALUE, nil),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read certificate %s: %w", alias, err)
	}
	if len(attrs) == 0 || len(attrs[0].Value) == 0 {
		return nil, ErrNotFound
	}

	cert, err := x509.ParseCertificate(attrs[0].Value)
	if err != nil {
		return nil, fmt.Errorf("failed to parse certificate %s: %w", alias, err)
	}
	return cert, nil
}

// findByLabel returns all certificate object handles with the given label.
// Caller must hold s.mu.
func (s *PKCS11Store) findByLabel(label string) ([]pkcs11.ObjectHandle, error) {
	template := []*pkcs11.Attribute{
		pkcs11.NewAttribute(pkcs11.CKA_CLASS, pkcs11.CKO_CERTIFICATE),
		pkcs11.NewAttribute(pkcs11.CKA_LABEL, label),
	}

	if err := s.ctx.FindObjectsInit(s.session, template); err != nil {
		return nil, fmt.Errorf("failed to init object search: %w", err)
	}
	defer s.ctx.FindObjectsFinal(s.session)

	handles, _, err := s.ctx.FindObjects(s.session, 16)
	if err != nil {
		return nil, fmt.Errorf("failed to search objects: %w", err)
	}
	return handles, nil
}

// deleteByLabel destroys all certificate objects with the given label.
// Caller must hold s.mu.
func (s *PKCS11Store) deleteByLabel(label string) error {
	handles, err := s.findByLabel(label)
	if err != nil {
		return err
	}
	for _, h := range handles {
		if err := s.ctx.DestroyObject(s.session, h); err != nil {
			return fmt.Errorf("failed to delete object %s: %w", label, err)
		}
	}
	return nil
}

// findSlot locates the slot whose token matches label; with an empty label
// the first slot with a token present wins.
func findSlot(p *pkcs11.Ctx, label string) (uint, error) {
	slots, err := p.GetSlotList(true)
	if err != nil {
		return 0, fmt.Errorf("failed to list slots: %w", err)
	}
	if len(slots) == 0 {
		return 0, fmt.Errorf("no PKCS#11 slots with a token present")
	}
	if label == "" {
		return slots[0], nil
	}

	for _, slot := range slots {
		info, err := p.GetTokenInfo(slot)
		if err != nil {
			continue
		}
		if info.Label == label {
			return slot, nil
		}
	}
	return 0, fmt.Errorf("no token with label %q", label)
}
