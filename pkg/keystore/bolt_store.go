package keystore

import (
	"context"
	"crypto"
	"crypto/x509"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	bolt "go.etcd.io/bbolt"
)

// bucketEntries holds all key-store records, keyed by alias.
var bucketEntries = []byte("entries")

// Entry kinds stored in boltEntry.Kind.
const (
	kindKey         = "key"
	kindCertificate = "certificate"
)

// boltEntry is the CBOR-encoded record for one alias.
type boltEntry struct {
	Kind   string   `cbor:"1,keyasint"`
	Key    []byte   `cbor:"2,keyasint,omitempty"` // PKCS#8 DER, sealed when Sealed
	Sealed bool     `cbor:"3,keyasint,omitempty"`
	Chain  [][]byte `cbor:"4,keyasint,omitempty"` // DER, leaf first
	Cert   []byte   `cbor:"5,keyasint,omitempty"` // DER
}

// BoltStore implements KeyStore over a bbolt database. Entries are encoded
// with CBOR; private keys are encrypted at rest when a passphrase is set.
type BoltStore struct {
	db         *bolt.DB
	passphrase []byte
}

var _ KeyStore = (*BoltStore)(nil)

// OpenBoltStore opens (creating if needed) a bbolt-backed key store at path.
func OpenBoltStore(path string, passphrase []byte) (*BoltStore, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open key store database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketEntries)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create entries bucket: %w", err)
	}

	return &BoltStore{db: db, passphrase: passphrase}, nil
}

// Close closes the underlying database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *BoltStore) Path() string {
	return s.db.Path()
}

// SetKeyEntry stores a private key and chain under the alias.
func (s *BoltStore) SetKeyEntry(ctx context.Context, alias string, key crypto.PrivateKey, chain []*x509.Certificate) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	keyDER, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return fmt.Errorf("failed to marshal private key for %s: %w", alias, err)
	}

	e := boltEntry{Kind: kindKey}
	if len(s.passphrase) > 0 {
		sealed, err := sealValue(keyDER, s.passphrase)
		if err != nil {
			return fmt.Errorf("failed to seal private key for %s: %w", alias, err)
		}
		e.Key = sealed
		e.Sealed = true
	} else {
		e.Key = keyDER
	}
	for _, cert := range chain {
		e.Chain = append(e.Chain, cert.Raw)
	}

	return s.put(alias, &e)
}

// SetCertificateEntry stores a single certificate under the alias.
func (s *BoltStore) SetCertificateEntry(ctx context.Context, alias string, cert *x509.Certificate) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	return s.put(alias, &boltEntry{Kind: kindCertificate, Cert: cert.Raw})
}

// DeleteEntry removes the entry under the alias, if any.
func (s *BoltStore) DeleteEntry(ctx context.Context, alias string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketEntries).Delete([]byte(alias))
	})
	if err != nil {
		return fmt.Errorf("failed to delete entry %s: %w", alias, err)
	}
	return nil
}

// GetCertificate returns the certificate stored under the alias.
func (s *BoltStore) GetCertificate(ctx context.Context, alias string) (*x509.Certificate, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	e, err := s.get(alias)
	if err != nil {
		return nil, err
	}

	var der []byte
	switch {
	case e.Cert != nil:
		der = e.Cert
	case len(e.Chain) > 0:
		der = e.Chain[0]
	default:
		return nil, ErrNotFound
	}

	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("failed to parse certificate for %s: %w", alias, err)
	}
	return cert, nil
}

// GetPrivateKey returns the private key of a key entry.
func (s *BoltStore) GetPrivateKey(ctx context.Context, alias string) (crypto.PrivateKey, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	e, err := s.get(alias)
	if err != nil {
		return nil, err
	}
	if e.Kind != kindKey || e.Key == nil {
		return nil, ErrNotFound
	}

	keyDER := e.Key
	if e.Sealed {
		if len(s.passphrase) == 0 {
			return nil, fmt.Errorf("key for %s is sealed but no passphrase configured", alias)
		}
		keyDER, err = openValue(e.Key, s.passphrase)
		if err != nil {
			return nil, fmt.Errorf("failed to unseal key for %s: %w", alias, err)
		}
	}

	key, err := x509.ParsePKCS8PrivateKey(keyDER)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key for %s: %w", alias, err)
	}
	return key, nil
}

func (s *BoltStore) put(alias string, e *boltEntry) error {
	data, err := cbor.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode entry %s: %w", alias, err)
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketEntries).Put([]byte(alias), data)
	})
	if err != nil {
		return fmt.Errorf("failed to write entry %s: %w", alias, err)
	}
	return nil
}

func (s *BoltStore) get(alias string) (*boltEntry, error) {
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketEntries).Get([]byte(alias))
		if v != nil {
			data = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read entry %s: %w", alias, err)
	}
	if data == nil {
		return nil, ErrNotFound
	}

	var e boltEntry
	if err := cbor.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("failed to decode entry %s: %w", alias, err)
	}
	return &e, nil
}
