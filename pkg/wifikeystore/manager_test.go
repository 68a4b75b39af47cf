package wifikeystore

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/nightshade-os/wifi-keystore/pkg/grant"
	"github.com/nightshade-os/wifi-keystore/pkg/netprofile"
)

// =============================================================================
// Test Fixtures
// =============================================================================

func testCert(t *testing.T, cn string, curve elliptic.Curve) (*x509.Certificate, *ecdsa.PrivateKey) {
	t.Helper()

	key, err := ecdsa.GenerateKey(curve, rand.Reader)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: cn},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("failed to create certificate: %v", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("failed to parse certificate: %v", err)
	}
	return cert, key
}

// enterpriseProfile builds a saved EAP profile with a client key pair and
// two pinned CA certificates, all app-installed.
func enterpriseProfile(t *testing.T, ssid string) *netprofile.Profile {
	t.Helper()

	clientCert, clientKey := testCert(t, "client", elliptic.P256())
	ca0, _ := testCert(t, "ca0", elliptic.P256())
	ca1, _ := testCert(t, "ca1", elliptic.P256())

	return &netprofile.Profile{
		Identity: netprofile.NetworkIdentity{
			SSID:     ssid,
			Security: netprofile.SecurityEAP,
		},
		Credentials: &netprofile.CredentialSet{
			ClientPrivateKey:  clientKey,
			ClientCertificate: clientCert,
			CACertificates:    []*x509.Certificate{ca0, ca1},
			Ownership: netprofile.Ownership{
				AppInstalledDeviceKeyAndCert: true,
				AppInstalledCACert:           true,
			},
		},
	}
}

// suiteBProfile builds a 192-bit profile over a P-384 chain.
func suiteBProfile(t *testing.T, ssid string) *netprofile.Profile {
	t.Helper()

	clientCert, clientKey := testCert(t, "client", elliptic.P384())
	ca, _ := testCert(t, "ca", elliptic.P384())

	return &netprofile.Profile{
		Identity: netprofile.NetworkIdentity{
			SSID:     ssid,
			Security: netprofile.SecurityEAPSuiteB,
		},
		SuiteBSelected: true,
		Credentials: &netprofile.CredentialSet{
			ClientPrivateKey:  clientKey,
			ClientCertificate: clientCert,
			CACertificates:    []*x509.Certificate{ca},
			Ownership: netprofile.Ownership{
				AppInstalledDeviceKeyAndCert: true,
				AppInstalledCACert:           true,
			},
		},
	}
}

// =============================================================================
// InstallKeys
// =============================================================================

func TestU_InstallKeys_RecordsAliases(t *testing.T) {
	store := NewMockStore()
	mgr := NewManager(store, nil)

	profile := enterpriseProfile(t, "corp-net")
	if err := mgr.InstallKeys(context.Background(), profile, nil); err != nil {
		t.Fatalf("InstallKeys() error = %v", err)
	}

	base := profile.Identity.KeyID()
	cs := profile.Credentials
	if cs.ClientCertificateAlias != base {
		t.Errorf("ClientCertificateAlias = %q, want %q", cs.ClientCertificateAlias, base)
	}
	wantCAs := []string{base + "_0", base + "_1"}
	if len(cs.CACertificateAliases) != len(wantCAs) {
		t.Fatalf("CACertificateAliases = %v, want %v", cs.CACertificateAliases, wantCAs)
	}
	for i, want := range wantCAs {
		if cs.CACertificateAliases[i] != want {
			t.Errorf("CACertificateAliases[%d] = %q, want %q", i, cs.CACertificateAliases[i], want)
		}
	}

	if !store.Has(base) || !store.Has(base+"_0") || !store.Has(base+"_1") {
		t.Error("expected all three aliases present in the store")
	}
}

func TestU_InstallKeys_SingleCACertificate(t *testing.T) {
	store := NewMockStore()
	mgr := NewManager(store, nil)

	ca, _ := testCert(t, "ca", elliptic.P256())
	profile := &netprofile.Profile{
		Identity: netprofile.NetworkIdentity{
			SSID:     "corp-net",
			Security: netprofile.SecurityEAP,
		},
		Credentials: &netprofile.CredentialSet{
			CACertificate: ca,
			Ownership:     netprofile.Ownership{AppInstalledCACert: true},
		},
	}

	if err := mgr.InstallKeys(context.Background(), profile, nil); err != nil {
		t.Fatalf("InstallKeys() error = %v", err)
	}

	want := profile.Identity.KeyID() + "_0"
	if len(profile.Credentials.CACertificateAliases) != 1 ||
		profile.Credentials.CACertificateAliases[0] != want {
		t.Errorf("CACertificateAliases = %v, want [%s]", profile.Credentials.CACertificateAliases, want)
	}
	if profile.Credentials.ClientCertificateAlias != "" {
		t.Errorf("ClientCertificateAlias = %q, want empty for CA-only install", profile.Credentials.ClientCertificateAlias)
	}
}

func TestU_InstallKeys_SuggestionNamespaceDisjoint(t *testing.T) {
	store := NewMockStore()
	mgr := NewManager(store, nil)

	saved := enterpriseProfile(t, "corp-net")
	suggested := enterpriseProfile(t, "corp-net")
	suggested.Identity.FromSuggestion = true
	suggested.Identity.CreatorName = "com.example.app"

	if err := mgr.InstallKeys(context.Background(), saved, nil); err != nil {
		t.Fatalf("InstallKeys(saved) error = %v", err)
	}
	if err := mgr.InstallKeys(context.Background(), suggested, nil); err != nil {
		t.Fatalf("InstallKeys(suggested) error = %v", err)
	}

	savedAlias := saved.Credentials.ClientCertificateAlias
	suggestedAlias := suggested.Credentials.ClientCertificateAlias
	if savedAlias == suggestedAlias {
		t.Errorf("saved and suggestion profiles share alias %q", savedAlias)
	}
	// Both sets coexist in the store.
	if !store.Has(savedAlias) || !store.Has(suggestedAlias) {
		t.Error("expected both client aliases present in the store")
	}
}

func TestU_InstallKeys_NilCredentialsIsNoop(t *testing.T) {
	store := NewMockStore()
	mgr := NewManager(store, nil)

	profile := &netprofile.Profile{
		Identity: netprofile.NetworkIdentity{
			SSID:     "open-net",
			Security: netprofile.SecurityEAP,
		},
	}

	if err := mgr.InstallKeys(context.Background(), profile, nil); err != nil {
		t.Fatalf("InstallKeys() error = %v", err)
	}
	if len(store.Calls) != 0 {
		t.Errorf("expected no store calls, got %d", len(store.Calls))
	}
}

func TestU_InstallKeys_MissingRequiredCredentials(t *testing.T) {
	store := NewMockStore()
	mgr := NewManager(store, nil)

	tests := []struct {
		name        string
		credentials *netprofile.CredentialSet
	}{
		{"[Unit] InstallKeys: nil credential set", nil},
		{"[Unit] InstallKeys: empty credential set", &netprofile.CredentialSet{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			profile := &netprofile.Profile{
				Identity: netprofile.NetworkIdentity{
					SSID:     "corp-net",
					Security: netprofile.SecurityEAP,
				},
				RequireClientCredentials: true,
				Credentials:              tt.credentials,
			}

			err := mgr.InstallKeys(context.Background(), profile, nil)
			if !errors.Is(err, ErrMissingCredentials) {
				t.Errorf("InstallKeys() = %v, want ErrMissingCredentials", err)
			}
		})
	}
}

func TestU_InstallKeys_InvalidProfileRejected(t *testing.T) {
	store := NewMockStore()
	mgr := NewManager(store, nil)

	profile := enterpriseProfile(t, "corp-net")
	profile.Identity.Security = ""

	if err := mgr.InstallKeys(context.Background(), profile, nil); err == nil {
		t.Error("InstallKeys() accepted a profile without a security type")
	}
	if len(store.Calls) != 0 {
		t.Errorf("expected no store calls for invalid profile, got %d", len(store.Calls))
	}
}

func TestU_InstallKeys_StoreFailurePropagates(t *testing.T) {
	store := NewMockStore()
	store.SetKeyErr = fmt.Errorf("token unavailable")
	mgr := NewManager(store, nil)

	profile := enterpriseProfile(t, "corp-net")
	if err := mgr.InstallKeys(context.Background(), profile, nil); err == nil {
		t.Error("InstallKeys() did not surface the store failure")
	}
}

func TestU_InstallKeys_ReinstallLandsOnSameAliases(t *testing.T) {
	store := NewMockStore()
	mgr := NewManager(store, nil)

	first := enterpriseProfile(t, "corp-net")
	if err := mgr.InstallKeys(context.Background(), first, nil); err != nil {
		t.Fatalf("InstallKeys() error = %v", err)
	}

	second := enterpriseProfile(t, "corp-net")
	if err := mgr.InstallKeys(context.Background(), second, first); err != nil {
		t.Fatalf("InstallKeys() reinstall error = %v", err)
	}

	if second.Credentials.ClientCertificateAlias != first.Credentials.ClientCertificateAlias {
		t.Errorf("reinstall moved client alias %q -> %q",
			first.Credentials.ClientCertificateAlias, second.Credentials.ClientCertificateAlias)
	}
	// Same aliases are kept, so nothing is deleted.
	if deleted := store.CallsTo("DeleteEntry"); len(deleted) != 0 {
		t.Errorf("reinstall deleted aliases %v", deleted)
	}
}

// =============================================================================
// Stale Alias Cleanup
// =============================================================================

func TestU_InstallKeys_RemovesStaleCAAliases(t *testing.T) {
	store := NewMockStore()
	mgr := NewManager(store, nil)

	existing := enterpriseProfile(t, "corp-net")
	if err := mgr.InstallKeys(context.Background(), existing, nil); err != nil {
		t.Fatalf("InstallKeys(existing) error = %v", err)
	}

	// Replacement pins a single CA; the second old CA alias must go.
	replacement := enterpriseProfile(t, "corp-net")
	replacement.Credentials.CACertificates = replacement.Credentials.CACertificates[:1]

	if err := mgr.InstallKeys(context.Background(), replacement, existing); err != nil {
		t.Fatalf("InstallKeys(replacement) error = %v", err)
	}

	stale := existing.Identity.KeyID() + "_1"
	if store.Has(stale) {
		t.Errorf("stale CA alias %s still present", stale)
	}
	if !store.Has(existing.Identity.KeyID() + "_0") {
		t.Error("kept CA alias was deleted")
	}
}

func TestU_InstallKeys_UserInstalledCASurvivesReplacement(t *testing.T) {
	store := NewMockStore()
	mgr := NewManager(store, nil)

	existing := enterpriseProfile(t, "corp-net")
	existing.Credentials.Ownership.AppInstalledCACert = false
	if err := mgr.InstallKeys(context.Background(), existing, nil); err != nil {
		t.Fatalf("InstallKeys(existing) error = %v", err)
	}

	replacement := enterpriseProfile(t, "corp-net")
	replacement.Credentials.CACertificates = replacement.Credentials.CACertificates[:1]

	if err := mgr.InstallKeys(context.Background(), replacement, existing); err != nil {
		t.Fatalf("InstallKeys(replacement) error = %v", err)
	}

	// The dropped CA entry was user-installed; replacement must not touch it.
	if !store.Has(existing.Identity.KeyID() + "_1") {
		t.Error("user-installed CA alias was deleted during replacement")
	}
}

func TestU_InstallKeys_RemovesStaleClientAlias(t *testing.T) {
	store := NewMockStore()
	mgr := NewManager(store, nil)

	// The existing profile was saved; the replacement arrives as a
	// suggestion, so the client alias changes.
	existing := enterpriseProfile(t, "corp-net")
	if err := mgr.InstallKeys(context.Background(), existing, nil); err != nil {
		t.Fatalf("InstallKeys(existing) error = %v", err)
	}

	replacement := enterpriseProfile(t, "corp-net")
	replacement.Identity.FromSuggestion = true
	replacement.Identity.CreatorName = "com.example.app"

	if err := mgr.InstallKeys(context.Background(), replacement, existing); err != nil {
		t.Fatalf("InstallKeys(replacement) error = %v", err)
	}

	if store.Has(existing.Identity.KeyID()) {
		t.Error("stale client alias still present after replacement")
	}
	if !store.Has(replacement.Identity.KeyID()) {
		t.Error("replacement client alias missing")
	}
}

// =============================================================================
// External Key Pair Grants
// =============================================================================

func grantProfile(alias string, uid int) *netprofile.Profile {
	return &netprofile.Profile{
		Identity: netprofile.NetworkIdentity{
			SSID:       "corp-net",
			Security:   netprofile.SecurityEAP,
			CreatorUID: uid,
		},
		Credentials: &netprofile.CredentialSet{
			ClientKeyPairAlias: alias,
		},
	}
}

func TestU_InstallKeys_GrantedKeyPairAlias(t *testing.T) {
	store := NewMockStore()
	broker := grant.NewStaticBroker()
	broker.Grant("issued-key-1", 1000)
	mgr := NewManager(store, broker)

	profile := grantProfile("issued-key-1", 1000)
	if err := mgr.InstallKeys(context.Background(), profile, nil); err != nil {
		t.Fatalf("InstallKeys() error = %v", err)
	}

	if profile.Credentials.ClientCertificateAlias != "issued-key-1" {
		t.Errorf("ClientCertificateAlias = %q, want the granted handle", profile.Credentials.ClientCertificateAlias)
	}
	// The store already owns the material; the grant path writes nothing.
	if n := len(store.CallsTo("SetKeyEntry")) + len(store.CallsTo("SetCertificateEntry")); n != 0 {
		t.Errorf("grant path performed %d store writes", n)
	}
}

func TestU_InstallKeys_DeniedKeyPairAlias(t *testing.T) {
	store := NewMockStore()
	broker := grant.NewStaticBroker()
	broker.Grant("issued-key-1", 1000)
	mgr := NewManager(store, broker)

	// Same handle, different creator.
	profile := grantProfile("issued-key-1", 2000)
	err := mgr.InstallKeys(context.Background(), profile, nil)
	if !errors.Is(err, ErrGrantDenied) {
		t.Errorf("InstallKeys() = %v, want ErrGrantDenied", err)
	}
	if profile.Credentials.ClientCertificateAlias != "" {
		t.Error("denied grant still recorded a client alias")
	}
}

func TestU_InstallKeys_KeyPairAliasWithoutBroker(t *testing.T) {
	store := NewMockStore()
	mgr := NewManager(store, nil)

	profile := grantProfile("issued-key-1", 1000)
	err := mgr.InstallKeys(context.Background(), profile, nil)
	if !errors.Is(err, ErrGrantDenied) {
		t.Errorf("InstallKeys() = %v, want ErrGrantDenied", err)
	}
}

// =============================================================================
// Suite-B Integration
// =============================================================================

func TestU_InstallKeys_SuiteBSelectsCipher(t *testing.T) {
	store := NewMockStore()
	mgr := NewManager(store, nil)

	profile := suiteBProfile(t, "secure-net")
	if err := mgr.InstallKeys(context.Background(), profile, nil); err != nil {
		t.Fatalf("InstallKeys() error = %v", err)
	}

	mask := profile.Credentials.AllowedSuiteBCiphers
	if !mask.Has(netprofile.CipherECDHEECDSA) {
		t.Error("ECDHE-ECDSA not selected for a P-384 chain")
	}
	if mask.Has(netprofile.CipherECDHERSA) {
		t.Error("ECDHE-RSA selected alongside ECDHE-ECDSA")
	}
}

func TestU_InstallKeys_SuiteBRejectsWeakChain(t *testing.T) {
	store := NewMockStore()
	mgr := NewManager(store, nil)

	profile := suiteBProfile(t, "secure-net")
	weakCA, _ := testCert(t, "weak-ca", elliptic.P256())
	profile.Credentials.CACertificates = []*x509.Certificate{weakCA}

	err := mgr.InstallKeys(context.Background(), profile, nil)
	if err == nil {
		t.Fatal("InstallKeys() accepted an under-strength Suite-B chain")
	}
	// Cipher selection is untouched on failure.
	if profile.Credentials.AllowedSuiteBCiphers != 0 {
		t.Errorf("AllowedSuiteBCiphers = %v after failed validation, want 0", profile.Credentials.AllowedSuiteBCiphers)
	}
}

// =============================================================================
// RemoveKeys
// =============================================================================

// installedProfile installs a fresh profile and returns it.
func installedProfile(t *testing.T, mgr *Manager, ssid string) *netprofile.Profile {
	t.Helper()
	profile := enterpriseProfile(t, ssid)
	if err := mgr.InstallKeys(context.Background(), profile, nil); err != nil {
		t.Fatalf("InstallKeys() error = %v", err)
	}
	return profile
}

func TestU_RemoveKeys_AppInstalledRemovesAll(t *testing.T) {
	store := NewMockStore()
	mgr := NewManager(store, nil)
	profile := installedProfile(t, mgr, "corp-net")
	cs := profile.Credentials
	base := profile.Identity.KeyID()

	if err := mgr.RemoveKeys(context.Background(), "corp-net", cs, false); err != nil {
		t.Fatalf("RemoveKeys() error = %v", err)
	}

	for _, alias := range []string{base, base + "_0", base + "_1"} {
		if store.Has(alias) {
			t.Errorf("alias %s still present after removal", alias)
		}
	}
	if cs.ClientCertificateAlias != "" || len(cs.CACertificateAliases) != 0 {
		t.Error("alias fields not cleared after removal")
	}
}

func TestU_RemoveKeys_UserInstalledSurvives(t *testing.T) {
	store := NewMockStore()
	mgr := NewManager(store, nil)
	profile := installedProfile(t, mgr, "corp-net")
	cs := profile.Credentials
	cs.Ownership = netprofile.Ownership{}

	if err := mgr.RemoveKeys(context.Background(), "corp-net", cs, false); err != nil {
		t.Fatalf("RemoveKeys() error = %v", err)
	}

	if deleted := store.CallsTo("DeleteEntry"); len(deleted) != 0 {
		t.Errorf("user-installed entries deleted: %v", deleted)
	}
}

func TestU_RemoveKeys_ForceOverridesOwnership(t *testing.T) {
	store := NewMockStore()
	mgr := NewManager(store, nil)
	profile := installedProfile(t, mgr, "corp-net")
	cs := profile.Credentials
	cs.Ownership = netprofile.Ownership{}
	base := profile.Identity.KeyID()

	if err := mgr.RemoveKeys(context.Background(), "corp-net", cs, true); err != nil {
		t.Fatalf("RemoveKeys() error = %v", err)
	}

	for _, alias := range []string{base, base + "_0", base + "_1"} {
		if store.Has(alias) {
			t.Errorf("alias %s survived forced removal", alias)
		}
	}
}

func TestU_RemoveKeys_MixedOwnership(t *testing.T) {
	store := NewMockStore()
	mgr := NewManager(store, nil)
	profile := installedProfile(t, mgr, "corp-net")
	cs := profile.Credentials
	cs.Ownership.AppInstalledCACert = false
	base := profile.Identity.KeyID()

	if err := mgr.RemoveKeys(context.Background(), "corp-net", cs, false); err != nil {
		t.Fatalf("RemoveKeys() error = %v", err)
	}

	if store.Has(base) {
		t.Error("app-installed client alias survived removal")
	}
	if !store.Has(base+"_0") || !store.Has(base+"_1") {
		t.Error("user-installed CA aliases deleted")
	}
}

func TestU_RemoveKeys_NoRecordedAliasesIsNoop(t *testing.T) {
	store := NewMockStore()
	mgr := NewManager(store, nil)

	cs := &netprofile.CredentialSet{
		Ownership: netprofile.Ownership{
			AppInstalledDeviceKeyAndCert: true,
			AppInstalledCACert:           true,
		},
	}
	if err := mgr.RemoveKeys(context.Background(), "corp-net", cs, true); err != nil {
		t.Fatalf("RemoveKeys() error = %v", err)
	}
	if err := mgr.RemoveKeys(context.Background(), "corp-net", nil, true); err != nil {
		t.Fatalf("RemoveKeys(nil) error = %v", err)
	}
	if len(store.Calls) != 0 {
		t.Errorf("expected no store calls, got %d", len(store.Calls))
	}
}

func TestU_RemoveKeys_SkipsEmptyAliases(t *testing.T) {
	store := NewMockStore()
	mgr := NewManager(store, nil)

	cs := &netprofile.CredentialSet{
		CACertificateAliases: []string{"", "corp-net-eap_1", ""},
		Ownership:            netprofile.Ownership{AppInstalledCACert: true},
	}

	if err := mgr.RemoveKeys(context.Background(), "corp-net", cs, false); err != nil {
		t.Fatalf("RemoveKeys() error = %v", err)
	}

	deleted := store.CallsTo("DeleteEntry")
	if len(deleted) != 1 || deleted[0] != "corp-net-eap_1" {
		t.Errorf("DeleteEntry calls = %v, want only the non-empty alias", deleted)
	}
}

func TestU_RemoveKeys_StoreFailurePropagates(t *testing.T) {
	store := NewMockStore()
	mgr := NewManager(store, nil)
	profile := installedProfile(t, mgr, "corp-net")
	cs := profile.Credentials

	store.DeleteErrors[profile.Identity.KeyID()] = fmt.Errorf("token unavailable")
	if err := mgr.RemoveKeys(context.Background(), "corp-net", cs, false); err == nil {
		t.Error("RemoveKeys() did not surface the store failure")
	}
}

func TestU_RemoveKeys_CanceledContext(t *testing.T) {
	store := NewMockStore()
	mgr := NewManager(store, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cs := &netprofile.CredentialSet{ClientCertificateAlias: "corp-net-eap"}
	err := mgr.RemoveKeys(ctx, "corp-net", cs, true)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("RemoveKeys() = %v, want context.Canceled", err)
	}
}

// =============================================================================
// ValidateKeyPairAlias
// =============================================================================

func TestU_ValidateKeyPairAlias(t *testing.T) {
	broker := grant.NewStaticBroker()
	broker.Grant("issued-key-1", 1000)
	mgr := NewManager(NewMockStore(), broker)
	noBroker := NewManager(NewMockStore(), nil)

	canceled, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name  string
		mgr   *Manager
		ctx   context.Context
		alias string
		user  grant.UserHandle
		want  bool
	}{
		{"[Unit] ValidateKeyPairAlias: granted", mgr, context.Background(), "issued-key-1", 1000, true},
		{"[Unit] ValidateKeyPairAlias: wrong user", mgr, context.Background(), "issued-key-1", 2000, false},
		{"[Unit] ValidateKeyPairAlias: unknown alias", mgr, context.Background(), "other-key", 1000, false},
		{"[Unit] ValidateKeyPairAlias: empty alias", mgr, context.Background(), "", 1000, false},
		{"[Unit] ValidateKeyPairAlias: no broker", noBroker, context.Background(), "issued-key-1", 1000, false},
		{"[Unit] ValidateKeyPairAlias: canceled context", mgr, canceled, "issued-key-1", 1000, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.mgr.ValidateKeyPairAlias(tt.ctx, tt.alias, tt.user); got != tt.want {
				t.Errorf("ValidateKeyPairAlias() = %v, want %v", got, tt.want)
			}
		})
	}
}
