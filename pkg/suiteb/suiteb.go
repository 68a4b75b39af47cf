// Package suiteb validates credential chains for WPA3-Enterprise 192-bit
// (Suite-B) operation.
//
// A chain qualifies for exactly one cipher family: ECDHE-RSA when every
// certificate carries an RSA key with a modulus of at least 3072 bits, or
// ECDHE-ECDSA when every certificate carries an EC key on a curve of at
// least 384 bits. Mixed chains and under-strength keys are rejected.
package suiteb

import (
	"context"
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/x509"
	"errors"
	"fmt"

	"github.com/cloudflare/circl/sign/ed448"

	"github.com/nightshade-os/wifi-keystore/pkg/keystore"
	"github.com/nightshade-os/wifi-keystore/pkg/netprofile"
)

// Key strength floors for 192-bit operation.
const (
	// MinRSAModulusBits is the minimum RSA modulus size.
	MinRSAModulusBits = 3072

	// MinECFieldBits is the minimum EC curve field size (P-384 class).
	MinECFieldBits = 384
)

// Validation errors.
var (
	// ErrUnsupportedAlgorithm means a certificate's public key is neither
	// RSA nor ECDSA.
	ErrUnsupportedAlgorithm = errors.New("suiteb: unsupported public key algorithm")

	// ErrInsufficientKeySize means a key is below its family's floor.
	ErrInsufficientKeySize = errors.New("suiteb: key below 192-bit strength floor")

	// ErrMixedChain means the chain mixes RSA and ECDSA certificates.
	ErrMixedChain = errors.New("suiteb: mixed RSA/ECDSA chain")

	// ErrNoCACertificates means no CA material is available and the
	// trust-on-first-use fallback does not apply.
	ErrNoCACertificates = errors.New("suiteb: no CA certificates to validate")

	// ErrNoClientCertificate means the client certificate could not be
	// resolved from the key store.
	ErrNoClientCertificate = errors.New("suiteb: no client certificate to validate")
)

// family is a cipher family under evaluation.
type family int

const (
	familyUnknown family = iota
	familyRSA
	familyECDSA
)

// CertificateSource resolves installed certificates by key-store alias.
// keystore.KeyStore satisfies this interface.
type CertificateSource interface {
	GetCertificate(ctx context.Context, alias string) (*x509.Certificate, error)
}

// Validator decides whether a credential set qualifies for Suite-B
// operation, reading the just-installed certificates back by alias.
type Validator struct {
	certs CertificateSource
}

// NewValidator creates a validator reading certificates from source.
func NewValidator(source CertificateSource) *Validator {
	return &Validator{certs: source}
}

// Validate classifies the credential set's installed chain and returns the
// qualifying cipher. On failure the credential set's cipher selection is
// left untouched. CA material resolution order: recorded CA aliases, then
// the in-memory CA certificates, then — only when trust-on-first-use is
// enabled and the EAP method consumes the server certificate — the client
// certificate stands in for CA strength, since no CA is pinned yet.
func (v *Validator) Validate(ctx context.Context, cs *netprofile.CredentialSet) (netprofile.SuiteBCipher, error) {
	clientCert, err := v.clientCertificate(ctx, cs)
	if err != nil {
		return 0, err
	}

	clientFam, err := classify(clientCert)
	if err != nil {
		return 0, fmt.Errorf("client certificate %q: %w", clientCert.Subject.CommonName, err)
	}

	caCerts, err := v.caCertificates(ctx, cs)
	if err != nil {
		return 0, err
	}
	if len(caCerts) == 0 {
		if !cs.TrustOnFirstUse || !cs.EAPMethodServerCertUsed {
			return 0, ErrNoCACertificates
		}
		// No CA pinned yet: the client certificate's own strength stands in
		// until the server chain is trusted at first association.
		caCerts = []*x509.Certificate{clientCert}
	}

	for _, ca := range caCerts {
		caFam, err := classify(ca)
		if err != nil {
			return 0, fmt.Errorf("CA certificate %q: %w", ca.Subject.CommonName, err)
		}
		if caFam != clientFam {
			return 0, fmt.Errorf("CA certificate %q: %w", ca.Subject.CommonName, ErrMixedChain)
		}
	}

	switch clientFam {
	case familyRSA:
		return netprofile.CipherECDHERSA, nil
	default:
		return netprofile.CipherECDHEECDSA, nil
	}
}

// clientCertificate resolves the client leaf, preferring the recorded
// key-store alias over the in-memory leaf.
func (v *Validator) clientCertificate(ctx context.Context, cs *netprofile.CredentialSet) (*x509.Certificate, error) {
	if cs.ClientCertificateAlias != "" && v.certs != nil {
		cert, err := v.certs.GetCertificate(ctx, cs.ClientCertificateAlias)
		if err == nil {
			return cert, nil
		}
		if !isNotFound(err) {
			return nil, fmt.Errorf("failed to read client certificate %s: %w", cs.ClientCertificateAlias, err)
		}
	}
	if cs.ClientCertificate != nil {
		return cs.ClientCertificate, nil
	}
	return nil, ErrNoClientCertificate
}

// caCertificates resolves the applicable CA material.
func (v *Validator) caCertificates(ctx context.Context, cs *netprofile.CredentialSet) ([]*x509.Certificate, error) {
	if len(cs.CACertificateAliases) > 0 && v.certs != nil {
		certs := make([]*x509.Certificate, 0, len(cs.CACertificateAliases))
		for _, alias := range cs.CACertificateAliases {
			cert, err := v.certs.GetCertificate(ctx, alias)
			if err != nil {
				if isNotFound(err) {
					continue
				}
				return nil, fmt.Errorf("failed to read CA certificate %s: %w", alias, err)
			}
			certs = append(certs, cert)
		}
		if len(certs) > 0 {
			return certs, nil
		}
	}
	return cs.EffectiveCACertificates(), nil
}

// classify maps a certificate's public key to its cipher family, enforcing
// the family's strength floor.
func classify(cert *x509.Certificate) (family, error) {
	switch pub := cert.PublicKey.(type) {
	case *rsa.PublicKey:
		if pub.N.BitLen() < MinRSAModulusBits {
			return familyUnknown, fmt.Errorf("RSA-%d: %w", pub.N.BitLen(), ErrInsufficientKeySize)
		}
		return familyRSA, nil

	case *ecdsa.PublicKey:
		bits := pub.Curve.Params().BitSize
		if bits < MinECFieldBits {
			return familyUnknown, fmt.Errorf("EC-%d: %w", bits, ErrInsufficientKeySize)
		}
		return familyECDSA, nil

	case ed448.PublicKey:
		// Ed448 clears 192-bit strength but has no Suite-B cipher mapping.
		return familyUnknown, fmt.Errorf("ed448: %w", ErrUnsupportedAlgorithm)

	default:
		return familyUnknown, fmt.Errorf("%T: %w", cert.PublicKey, ErrUnsupportedAlgorithm)
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, keystore.ErrNotFound)
}
