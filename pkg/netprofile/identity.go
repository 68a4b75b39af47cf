// Package netprofile defines the network-profile object model consumed by
// the Wi-Fi key store: network identities, enterprise credential sets, and
// the alias namespace derived from them.
//
// A NetworkIdentity is the stable key of one logical network. The key-store
// alias namespace is a pure function of the identity: re-installing the same
// network always lands on the same aliases, and two distinct identities can
// never collide, even when their credential bytes are identical.
package netprofile

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// SecurityType identifies the security configuration of a network profile.
type SecurityType string

const (
	// SecurityEAP is WPA2/WPA3-Enterprise with standard ciphers.
	SecurityEAP SecurityType = "eap"

	// SecurityEAPSuiteB is WPA3-Enterprise in 192-bit (Suite-B) mode.
	SecurityEAPSuiteB SecurityType = "eap-suite-b"
)

// suggestionSuffix separates the alias namespace of suggestion-originated
// networks from saved networks with identical SSID and security type.
const suggestionSuffix = "suggestion"

// NetworkIdentity is the stable identity of one network profile. It is used
// only to derive the alias namespace and is never mutated by this module.
type NetworkIdentity struct {
	// SSID is the network name, raw bytes as configured.
	SSID string

	// Security is the profile's security type.
	Security SecurityType

	// FromSuggestion is true for ephemeral suggestion networks. A suggestion
	// and a saved network sharing the same SSID and security type get
	// disjoint alias namespaces.
	FromSuggestion bool

	// CreatorName identifies the package that created a suggestion network.
	CreatorName string

	// CreatorUID is the UID of the profile's creator, used to scope key
	// grant lookups. It does not contribute to the alias namespace.
	CreatorUID int
}

// KeyID derives the alias namespace key for this identity. The result is a
// pure function of SSID, security type, and the suggestion discriminator;
// it is stable across re-installs and distinct for distinct identities.
func (id NetworkIdentity) KeyID() string {
	parts := []string{sanitizeToken(id.SSID), string(id.Security)}
	if id.FromSuggestion {
		parts = append(parts, sanitizeToken(id.CreatorName), suggestionSuffix)
	}
	return strings.Join(parts, "-")
}

// CAAlias returns the indexed CA certificate alias for a namespace key.
// CA aliases are assigned by list position: reordering the CA list changes
// which certificate lives under which alias.
func CAAlias(base string, index int) string {
	return fmt.Sprintf("%s_%d", base, index)
}

// sanitizeToken maps an arbitrary string to a filesystem- and
// keystore-safe token. When sanitization loses information, a short digest
// of the raw value is appended so distinct inputs keep distinct tokens.
func sanitizeToken(s string) string {
	var b strings.Builder
	lossy := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
			lossy = true
		}
	}
	if !lossy && b.Len() > 0 {
		return b.String()
	}
	sum := sha256.Sum256([]byte(s))
	return b.String() + hex.EncodeToString(sum[:4])
}
