package netprofile

import (
	"strings"
	"testing"
)

func validProfile() *Profile {
	return &Profile{
		Identity: NetworkIdentity{SSID: "corp-net", Security: SecurityEAP},
	}
}

func TestU_ProfileValidate_Minimal(t *testing.T) {
	if err := validProfile().Validate(); err != nil {
		t.Errorf("valid profile rejected: %v", err)
	}
}

func TestU_ProfileValidate_MissingSSID(t *testing.T) {
	p := validProfile()
	p.Identity.SSID = ""

	if err := p.Validate(); err == nil {
		t.Error("expected error for missing SSID")
	}
}

func TestU_ProfileValidate_MissingSecurity(t *testing.T) {
	p := validProfile()
	p.Identity.Security = ""

	if err := p.Validate(); err == nil {
		t.Error("expected error for missing security type")
	}
}

func TestU_ProfileValidate_SuggestionNeedsCreator(t *testing.T) {
	p := validProfile()
	p.Identity.FromSuggestion = true

	if err := p.Validate(); err == nil {
		t.Error("expected error for suggestion without creator")
	}

	p.Identity.CreatorName = "com.example.app"
	if err := p.Validate(); err != nil {
		t.Errorf("suggestion with creator rejected: %v", err)
	}
}

func TestU_ProfileValidate_SuiteBRequiresSuiteBSecurity(t *testing.T) {
	p := validProfile()
	p.SuiteBSelected = true

	if err := p.Validate(); err == nil {
		t.Error("expected error for suite-b selection on plain EAP")
	}

	p.Identity.Security = SecurityEAPSuiteB
	if err := p.Validate(); err != nil {
		t.Errorf("suite-b profile rejected: %v", err)
	}
}

func TestU_ProfileValidate_ExclusiveKeySources(t *testing.T) {
	p := validProfile()
	p.Credentials = &CredentialSet{
		ClientPrivateKey:   struct{}{},
		ClientKeyPairAlias: "external-handle",
	}

	err := p.Validate()
	if err == nil {
		t.Fatal("expected error for both key sources")
	}
	if !strings.Contains(err.Error(), "mutually exclusive") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestU_ProfileValidate_ChainWithoutLeaf(t *testing.T) {
	p := validProfile()
	cs := &CredentialSet{}
	cs.ClientCertificateChain = append(cs.ClientCertificateChain, nil)
	p.Credentials = cs

	if err := p.Validate(); err == nil {
		t.Error("expected error for chain without leaf certificate")
	}
}

func TestU_ProfileValidate_RequireCredentialsWithoutAny(t *testing.T) {
	p := validProfile()
	p.RequireClientCredentials = true

	if err := p.Validate(); err == nil {
		t.Error("expected error for required credentials with none present")
	}
}

func TestU_ProfileValidate_DomainSuffix(t *testing.T) {
	p := validProfile()

	p.DomainSuffixMatch = "radius.example.com"
	if err := p.Validate(); err != nil {
		t.Errorf("valid domain suffix rejected: %v", err)
	}

	p.DomainSuffixMatch = "bad domain..example"
	if err := p.Validate(); err == nil {
		t.Error("expected error for malformed domain suffix")
	}
}
