package netprofile

import (
	"crypto"
	"crypto/x509"
)

// SuiteBCipher identifies one Suite-B 192-bit cipher selection.
type SuiteBCipher uint8

const (
	// CipherECDHERSA is Suite-B over RSA-3072 chains.
	CipherECDHERSA SuiteBCipher = 1 << iota

	// CipherECDHEECDSA is Suite-B over ECDSA P-384-class chains.
	CipherECDHEECDSA
)

// String returns the conventional cipher suite name.
func (c SuiteBCipher) String() string {
	switch c {
	case CipherECDHERSA:
		return "ECDHE-RSA"
	case CipherECDHEECDSA:
		return "ECDHE-ECDSA"
	default:
		return "unknown"
	}
}

// CipherMask is the profile's allowed Suite-B cipher bitmask.
type CipherMask uint8

// Has reports whether the cipher bit is set.
func (m CipherMask) Has(c SuiteBCipher) bool {
	return m&CipherMask(c) != 0
}

// Only returns a mask with exactly the given cipher set.
// Suite-B validation selects one family and clears all others.
func Only(c SuiteBCipher) CipherMask {
	return CipherMask(c)
}

// Ownership records who installed each credential artifact. The flags are
// immutable inputs for the duration of one install or remove call; they are
// never inferred from key-store contents.
type Ownership struct {
	// AppInstalledDeviceKeyAndCert is true when the client private key and
	// certificate were installed by the owning app rather than the user.
	AppInstalledDeviceKeyAndCert bool

	// AppInstalledCACert is true when the CA certificate(s) were installed
	// by the owning app. User-installed CA entries are never deleted
	// implicitly.
	AppInstalledCACert bool
}

// CredentialSet is the enterprise credential payload attached to a network
// profile. Input fields describe the material to install; the alias fields
// and cipher mask are outputs populated by a successful install.
type CredentialSet struct {
	// ClientPrivateKey is the client's private key. Mutually exclusive with
	// ClientKeyPairAlias.
	ClientPrivateKey crypto.PrivateKey

	// ClientCertificate is the client leaf certificate.
	ClientCertificate *x509.Certificate

	// ClientCertificateChain is the full client chain, leaf first. When
	// empty, the single ClientCertificate stands alone.
	ClientCertificateChain []*x509.Certificate

	// CACertificate is a single pinned CA certificate.
	CACertificate *x509.Certificate

	// CACertificates is the pinned CA list; it supersedes CACertificate
	// when non-empty. List order is part of the alias contract: entry i is
	// installed under alias "<base>_<i>".
	CACertificates []*x509.Certificate

	// ClientKeyPairAlias is an externally-issued key-pair handle resolved
	// through the key-grant broker. When set, no local key material is
	// installed. Mutually exclusive with ClientPrivateKey.
	ClientKeyPairAlias string

	// Ownership flags, immutable per call.
	Ownership Ownership

	// TrustOnFirstUse is true when the profile pins no CA and trusts the
	// server chain at first association.
	TrustOnFirstUse bool

	// EAPMethodServerCertUsed is true when the selected EAP method consumes
	// the server certificate directly.
	EAPMethodServerCertUsed bool

	// ClientCertificateAlias is the key-store alias of the installed client
	// entry. Output of a successful install.
	ClientCertificateAlias string

	// CACertificateAliases are the key-store aliases of the installed CA
	// entries, in CA list order. Output of a successful install.
	CACertificateAliases []string

	// AllowedSuiteBCiphers is the validated Suite-B cipher selection.
	// Output of a successful Suite-B validation; untouched on failure.
	AllowedSuiteBCiphers CipherMask
}

// HasClientCredentials reports whether local key material is present: both
// a private key and a client certificate.
func (cs *CredentialSet) HasClientCredentials() bool {
	return cs.ClientPrivateKey != nil && cs.ClientCertificate != nil
}

// ClientChain returns the chain to install under the client alias: the full
// chain when present, else the single leaf certificate.
func (cs *CredentialSet) ClientChain() []*x509.Certificate {
	if len(cs.ClientCertificateChain) > 0 {
		return cs.ClientCertificateChain
	}
	if cs.ClientCertificate != nil {
		return []*x509.Certificate{cs.ClientCertificate}
	}
	return nil
}

// EffectiveCACertificates returns the CA material to install: the CA list
// when non-empty, else the single CA certificate, else nil.
func (cs *CredentialSet) EffectiveCACertificates() []*x509.Certificate {
	if len(cs.CACertificates) > 0 {
		return cs.CACertificates
	}
	if cs.CACertificate != nil {
		return []*x509.Certificate{cs.CACertificate}
	}
	return nil
}

// HasRecordedAliases reports whether any install output aliases are present.
func (cs *CredentialSet) HasRecordedAliases() bool {
	return cs.ClientCertificateAlias != "" || len(cs.CACertificateAliases) > 0
}
