// Package wifikeystore manages the key store material backing
// WPA3-Enterprise and Suite-B network profiles.
//
// The Manager installs a profile's credentials under identity-derived
// aliases, validates Suite-B strength when the profile selects 192-bit
// operation, and removes aliases when ownership permits. It is invoked
// synchronously by the caller that owns the profile mutation; concurrent
// calls for the same network require an external mutex around the whole
// install or remove.
package wifikeystore

import (
	"context"
	"errors"
	"fmt"

	"github.com/nightshade-os/wifi-keystore/pkg/audit"
	"github.com/nightshade-os/wifi-keystore/pkg/grant"
	"github.com/nightshade-os/wifi-keystore/pkg/keystore"
	"github.com/nightshade-os/wifi-keystore/pkg/netprofile"
	"github.com/nightshade-os/wifi-keystore/pkg/suiteb"
)

var (
	// ErrGrantDenied means the profile references an external key pair
	// handle the calling user holds no grant for. Nothing was written.
	ErrGrantDenied = errors.New("wifikeystore: key pair grant denied")

	// ErrMissingCredentials means the profile structurally requires client
	// credentials but carries neither key material nor an external handle.
	ErrMissingCredentials = errors.New("wifikeystore: client credentials required")
)

// Manager installs and removes network credential material.
type Manager struct {
	store     keystore.KeyStore
	broker    grant.Broker
	validator *suiteb.Validator
}

// NewManager creates a manager over the given key store. A nil broker
// disables the external key pair path.
func NewManager(store keystore.KeyStore, broker grant.Broker) *Manager {
	if broker == nil {
		broker = grant.UnsupportedBroker{}
	}
	return &Manager{
		store:     store,
		broker:    broker,
		validator: suiteb.NewValidator(store),
	}
}

// InstallKeys installs the profile's credentials into the key store,
// records the resulting aliases on the credential set, and runs Suite-B
// validation when the profile selects it. existing is the profile being
// replaced, or nil for a fresh install; its stale app-installed aliases
// are deleted when the new alias set no longer covers them.
//
// Entries already written are not rolled back on a later failure. The
// caller discards the profile on error and may remove explicitly.
func (m *Manager) InstallKeys(ctx context.Context, profile, existing *netprofile.Profile) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if profile.RequireClientCredentials {
		cs := profile.Credentials
		if cs == nil || (!cs.HasClientCredentials() && cs.ClientKeyPairAlias == "") {
			return fmt.Errorf("network %q: %w", profile.Identity.SSID, ErrMissingCredentials)
		}
	}
	if err := profile.Validate(); err != nil {
		return fmt.Errorf("invalid profile: %w", err)
	}

	cs := profile.Credentials
	if cs == nil {
		return nil
	}

	network := profile.Identity.SSID
	baseAlias := profile.Identity.KeyID()
	grantPath := cs.ClientKeyPairAlias != ""
	installedAny := false

	switch {
	case grantPath:
		// The store already owns the material; only the grant is checked.
		if err := m.resolveKeyPairGrant(ctx, cs, profile); err != nil {
			return err
		}

	case cs.HasClientCredentials():
		if err := m.store.SetKeyEntry(ctx, baseAlias, cs.ClientPrivateKey, cs.ClientChain()); err != nil {
			_ = audit.LogKeyInstalled(network, baseAlias, nil, false, err.Error())
			return fmt.Errorf("failed to install client credentials for %q: %w", network, err)
		}
		cs.ClientCertificateAlias = baseAlias
		installedAny = true
	}

	if !grantPath {
		caCerts := cs.EffectiveCACertificates()
		if len(caCerts) > 0 {
			aliases := make([]string, 0, len(caCerts))
			for i, ca := range caCerts {
				alias := netprofile.CAAlias(baseAlias, i)
				if err := m.store.SetCertificateEntry(ctx, alias, ca); err != nil {
					_ = audit.LogKeyInstalled(network, cs.ClientCertificateAlias, aliases, false, err.Error())
					return fmt.Errorf("failed to install CA certificate %s for %q: %w", alias, network, err)
				}
				aliases = append(aliases, alias)
			}
			cs.CACertificateAliases = aliases
			installedAny = true
		}
	}

	if installedAny && existing != nil && existing.Credentials != nil {
		if err := m.removeStaleAliases(ctx, cs, existing); err != nil {
			return err
		}
	}

	if profile.SuiteBSelected {
		cipher, err := m.validator.Validate(ctx, cs)
		if err != nil {
			_ = audit.LogSuiteBValidated(network, "", false, err.Error())
			return fmt.Errorf("network %q does not qualify for 192-bit operation: %w", network, err)
		}
		cs.AllowedSuiteBCiphers = netprofile.Only(cipher)
		if err := audit.LogSuiteBValidated(network, cipher.String(), true, ""); err != nil {
			return err
		}
	}

	if installedAny {
		if err := audit.LogKeyInstalled(network, cs.ClientCertificateAlias, cs.CACertificateAliases, true, ""); err != nil {
			return err
		}
	}
	return nil
}

// resolveKeyPairGrant handles the external key pair path: the handle is
// resolved through the grant broker for the profile's creator and, when
// granted, recorded as the client certificate alias. No key store writes
// occur in this path.
func (m *Manager) resolveKeyPairGrant(ctx context.Context, cs *netprofile.CredentialSet, profile *netprofile.Profile) error {
	alias := cs.ClientKeyPairAlias
	user := grant.UserHandle(profile.Identity.CreatorUID)

	if !m.broker.Supported() {
		_ = audit.LogGrantResolved(alias, int32(user), false)
		return fmt.Errorf("no grant broker available for %q: %w", alias, ErrGrantDenied)
	}
	if err := m.broker.ResolveGrant(ctx, alias, user); err != nil {
		if errors.Is(err, grant.ErrNoGrant) {
			_ = audit.LogGrantResolved(alias, int32(user), false)
			return fmt.Errorf("key pair %q: %w", alias, ErrGrantDenied)
		}
		return fmt.Errorf("failed to resolve grant for %q: %w", alias, err)
	}
	if err := audit.LogGrantResolved(alias, int32(user), true); err != nil {
		return err
	}

	cs.ClientCertificateAlias = alias
	return nil
}

// removeStaleAliases deletes the replaced profile's recorded aliases that
// the new install no longer covers. Only app-installed artifacts are
// deleted; user-installed entries always survive a replacement.
func (m *Manager) removeStaleAliases(ctx context.Context, cs *netprofile.CredentialSet, existing *netprofile.Profile) error {
	old := existing.Credentials

	if old.Ownership.AppInstalledCACert {
		kept := make(map[string]struct{}, len(cs.CACertificateAliases))
		for _, alias := range cs.CACertificateAliases {
			kept[alias] = struct{}{}
		}
		for _, alias := range existingCAAliases(existing) {
			if alias == "" {
				continue
			}
			if _, ok := kept[alias]; ok {
				continue
			}
			if err := m.store.DeleteEntry(ctx, alias); err != nil {
				return fmt.Errorf("failed to remove stale CA alias %s: %w", alias, err)
			}
		}
	}

	if old.Ownership.AppInstalledDeviceKeyAndCert {
		oldClient := existingClientAlias(existing)
		if oldClient != "" && oldClient != cs.ClientCertificateAlias {
			if err := m.store.DeleteEntry(ctx, oldClient); err != nil {
				return fmt.Errorf("failed to remove stale client alias %s: %w", oldClient, err)
			}
		}
	}
	return nil
}

// existingClientAlias returns the replaced profile's client alias,
// preferring the recorded value over re-derivation.
func existingClientAlias(existing *netprofile.Profile) string {
	if existing.Credentials.ClientCertificateAlias != "" {
		return existing.Credentials.ClientCertificateAlias
	}
	if existing.Credentials.HasClientCredentials() {
		return existing.Identity.KeyID()
	}
	return ""
}

// existingCAAliases returns the replaced profile's CA aliases, preferring
// recorded values over re-derivation from its CA material.
func existingCAAliases(existing *netprofile.Profile) []string {
	if len(existing.Credentials.CACertificateAliases) > 0 {
		return existing.Credentials.CACertificateAliases
	}
	n := len(existing.Credentials.EffectiveCACertificates())
	if n == 0 {
		return nil
	}
	base := existing.Identity.KeyID()
	aliases := make([]string, n)
	for i := range aliases {
		aliases[i] = netprofile.CAAlias(base, i)
	}
	return aliases
}

// RemoveKeys deletes the credential set's recorded aliases. The client
// alias is deleted when force is set or the key and certificate were
// app-installed; CA aliases under the same rule with the CA ownership
// flag. Absent or empty aliases are skipped, never an error.
func (m *Manager) RemoveKeys(ctx context.Context, network string, cs *netprofile.CredentialSet, force bool) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if cs == nil || !cs.HasRecordedAliases() {
		return nil
	}

	var removed []string

	if force || cs.Ownership.AppInstalledDeviceKeyAndCert {
		if alias := cs.ClientCertificateAlias; alias != "" {
			if err := m.store.DeleteEntry(ctx, alias); err != nil {
				_ = audit.LogKeyRemoved(network, removed, force, false)
				return fmt.Errorf("failed to remove client alias %s: %w", alias, err)
			}
			removed = append(removed, alias)
			cs.ClientCertificateAlias = ""
		}
	}

	if force || cs.Ownership.AppInstalledCACert {
		for _, alias := range cs.CACertificateAliases {
			if alias == "" {
				continue
			}
			if err := m.store.DeleteEntry(ctx, alias); err != nil {
				_ = audit.LogKeyRemoved(network, removed, force, false)
				return fmt.Errorf("failed to remove CA alias %s: %w", alias, err)
			}
			removed = append(removed, alias)
		}
		cs.CACertificateAliases = nil
	}

	if len(removed) == 0 {
		return nil
	}
	return audit.LogKeyRemoved(network, removed, force, true)
}

// ValidateKeyPairAlias reports whether user may reference alias as an
// external key pair handle. An empty alias is never valid, granted or not.
func (m *Manager) ValidateKeyPairAlias(ctx context.Context, alias string, user grant.UserHandle) bool {
	select {
	case <-ctx.Done():
		return false
	default:
	}

	if alias == "" || !m.broker.Supported() {
		return false
	}
	return m.broker.HasGrant(alias, user)
}
