// Package keystore provides the secure key store backing Wi-Fi enterprise
// credentials: an opaque put/get/delete-by-alias store for private keys and
// certificates, with file, bbolt, PKCS#11 and HTTP-remote backends.
//
// An alias is unique within a store; writing an alias overwrites any prior
// entry under it. Deleting an absent alias is never an error.
package keystore

import (
	"context"
	"crypto"
	"crypto/x509"
	"errors"
)

// ErrNotFound is returned when no entry exists under an alias.
var ErrNotFound = errors.New("keystore: entry not found")

// ErrKeyImportUnsupported is returned by backends that cannot accept
// imported private key material (PKCS#11 tokens: token-resident keys reach
// profiles through the key-grant broker instead of being imported here).
var ErrKeyImportUnsupported = errors.New("keystore: backend does not support private key import")

// KeyStore is the secure key store collaborator. All entries are keyed by
// opaque alias strings; there is no enumeration API.
type KeyStore interface {
	// SetKeyEntry stores a private key with its certificate chain under the
	// alias, overwriting any prior entry.
	SetKeyEntry(ctx context.Context, alias string, key crypto.PrivateKey, chain []*x509.Certificate) error

	// SetCertificateEntry stores a single certificate under the alias,
	// overwriting any prior entry.
	SetCertificateEntry(ctx context.Context, alias string, cert *x509.Certificate) error

	// DeleteEntry removes the entry under the alias. Deleting an absent
	// alias returns nil.
	DeleteEntry(ctx context.Context, alias string) error

	// GetCertificate returns the certificate stored under the alias. For a
	// key entry this is the leaf of its chain. Returns ErrNotFound when the
	// alias is absent.
	GetCertificate(ctx context.Context, alias string) (*x509.Certificate, error)
}
