package netprofile

import (
	"fmt"
	"strings"

	"golang.org/x/net/idna"
)

// Profile is one network profile as seen by the key store: the owning
// identity, the enterprise credential set, and the structural expectations
// of the selected EAP method. This module never persists profiles.
type Profile struct {
	// Identity is the owning network's stable key.
	Identity NetworkIdentity

	// Credentials is the enterprise credential payload. Nil means the
	// profile carries no enterprise credentials.
	Credentials *CredentialSet

	// SuiteBSelected is true when the caller pre-selected 192-bit mode.
	// Suite-B validation runs only when set.
	SuiteBSelected bool

	// RequireClientCredentials is true when the EAP method structurally
	// demands a client key and certificate (EAP-TLS). Installing a profile
	// that demands credentials but carries none is a failure rather than a
	// no-op.
	RequireClientCredentials bool

	// DomainSuffixMatch constrains the server certificate domain during
	// authentication. Validated here for well-formedness only.
	DomainSuffixMatch string
}

// Validate checks the profile for structural consistency. It does not touch
// the key store and performs no cryptographic checks.
func (p *Profile) Validate() error {
	if p.Identity.SSID == "" {
		return fmt.Errorf("network identity: SSID is required")
	}
	if p.Identity.Security == "" {
		return fmt.Errorf("network identity: security type is required")
	}
	if p.Identity.FromSuggestion && p.Identity.CreatorName == "" {
		return fmt.Errorf("network identity: suggestion networks require a creator name")
	}

	if p.SuiteBSelected && p.Identity.Security != SecurityEAPSuiteB {
		return fmt.Errorf("suite-b selection requires security type %q", SecurityEAPSuiteB)
	}

	if cs := p.Credentials; cs != nil {
		if cs.ClientKeyPairAlias != "" && cs.ClientPrivateKey != nil {
			return fmt.Errorf("credentials: external key-pair alias and local private key are mutually exclusive")
		}
		if len(cs.ClientCertificateChain) > 0 && cs.ClientCertificate == nil {
			return fmt.Errorf("credentials: certificate chain present without a leaf certificate")
		}
	}

	if p.RequireClientCredentials && p.Credentials == nil {
		return fmt.Errorf("profile requires client credentials but carries none")
	}

	if p.DomainSuffixMatch != "" {
		if err := validateDomainSuffix(p.DomainSuffixMatch); err != nil {
			return fmt.Errorf("domain suffix match: %w", err)
		}
	}

	return nil
}

// validateDomainSuffix checks that a domain suffix constraint is a
// well-formed DNS name after IDNA normalization.
func validateDomainSuffix(suffix string) error {
	s := strings.TrimSuffix(suffix, ".")
	if s == "" {
		return fmt.Errorf("empty domain")
	}
	if _, err := idna.Lookup.ToASCII(s); err != nil {
		return fmt.Errorf("invalid domain %q: %w", suffix, err)
	}
	return nil
}
