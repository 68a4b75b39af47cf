package grant

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rsa"
	"fmt"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	gocose "github.com/veraison/go-cose"
)

// CWT claim keys (RFC 8392), plus private-use keys for grant fields.
const (
	claimIss int64 = 1
	claimExp int64 = 4
	claimIat int64 = 6

	claimAlias int64 = -1
	claimUser  int64 = -2
)

// tokenClaims is the CBOR payload of a grant token.
type tokenClaims struct {
	Issuer     string     `cbor:"1,keyasint,omitempty"`
	Expiration int64      `cbor:"4,keyasint,omitempty"`
	IssuedAt   int64      `cbor:"6,keyasint,omitempty"`
	Alias      string     `cbor:"-1,keyasint"`
	User       UserHandle `cbor:"-2,keyasint"`
}

// TokenBroker resolves grants presented as signed COSE_Sign1 tokens. A
// provisioning authority issues tokens binding (user, alias) pairs; the
// broker verifies each token against the authority's public key and
// records the grant until it expires.
type TokenBroker struct {
	verifier gocose.Verifier
	issuer   string
	now      func() time.Time

	mu     sync.RWMutex
	grants map[grantKey]time.Time
}

var _ Broker = (*TokenBroker)(nil)

// NewTokenBroker creates a broker trusting tokens signed by pub. When
// issuer is non-empty, tokens from any other issuer are rejected.
func NewTokenBroker(pub crypto.PublicKey, issuer string) (*TokenBroker, error) {
	alg, err := algorithmForKey(pub)
	if err != nil {
		return nil, err
	}
	verifier, err := gocose.NewVerifier(alg, pub)
	if err != nil {
		return nil, fmt.Errorf("failed to create token verifier: %w", err)
	}
	return &TokenBroker{
		verifier: verifier,
		issuer:   issuer,
		now:      time.Now,
		grants:   make(map[grantKey]time.Time),
	}, nil
}

// AddToken verifies a COSE_Sign1 grant token and records its grant.
func (b *TokenBroker) AddToken(token []byte) error {
	var msg gocose.Sign1Message
	if err := msg.UnmarshalCBOR(token); err != nil {
		return fmt.Errorf("failed to parse grant token: %w", err)
	}
	if err := msg.Verify(nil, b.verifier); err != nil {
		return fmt.Errorf("grant token signature invalid: %w", err)
	}

	var claims tokenClaims
	if err := cbor.Unmarshal(msg.Payload, &claims); err != nil {
		return fmt.Errorf("failed to decode grant token claims: %w", err)
	}
	if claims.Alias == "" {
		return fmt.Errorf("grant token has no alias")
	}
	if b.issuer != "" && claims.Issuer != b.issuer {
		return fmt.Errorf("grant token issuer %q not trusted", claims.Issuer)
	}

	expiry := time.Unix(claims.Expiration, 0).UTC()
	if claims.Expiration == 0 || b.now().After(expiry) {
		return fmt.Errorf("grant token for alias %q expired at %s", claims.Alias, expiry.Format(time.RFC3339))
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.grants[grantKey{alias: claims.Alias, user: claims.User}] = expiry
	return nil
}

// ResolveGrant implements Broker.
func (b *TokenBroker) ResolveGrant(ctx context.Context, alias string, user UserHandle) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if !b.HasGrant(alias, user) {
		return Denied(alias, user)
	}
	return nil
}

// HasGrant implements Broker. Expired grants are dropped lazily.
func (b *TokenBroker) HasGrant(alias string, user UserHandle) bool {
	key := grantKey{alias: alias, user: user}

	b.mu.RLock()
	expiry, ok := b.grants[key]
	b.mu.RUnlock()
	if !ok {
		return false
	}
	if b.now().After(expiry) {
		b.mu.Lock()
		delete(b.grants, key)
		b.mu.Unlock()
		return false
	}
	return true
}

// Supported implements Broker.
func (b *TokenBroker) Supported() bool {
	return true
}

// IssueToken signs a COSE_Sign1 grant token for (user, alias) valid for ttl.
// It is the authority-side counterpart of AddToken.
func IssueToken(signer crypto.Signer, issuer, alias string, user UserHandle, ttl time.Duration) ([]byte, error) {
	if alias == "" {
		return nil, fmt.Errorf("alias is required")
	}

	alg, err := algorithmForKey(signer.Public())
	if err != nil {
		return nil, err
	}
	coseSigner, err := gocose.NewSigner(alg, signer)
	if err != nil {
		return nil, fmt.Errorf("failed to create token signer: %w", err)
	}

	now := time.Now().UTC()
	payload, err := cbor.Marshal(tokenClaims{
		Issuer:     issuer,
		Expiration: now.Add(ttl).Unix(),
		IssuedAt:   now.Unix(),
		Alias:      alias,
		User:       user,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal token claims: %w", err)
	}

	msg := gocose.NewSign1Message()
	msg.Headers = gocose.Headers{
		Protected: gocose.ProtectedHeader{
			gocose.HeaderLabelAlgorithm:   alg,
			gocose.HeaderLabelContentType: "application/cwt",
		},
	}
	msg.Payload = payload

	if err := msg.Sign(rand.Reader, nil, coseSigner); err != nil {
		return nil, fmt.Errorf("failed to sign grant token: %w", err)
	}
	return msg.MarshalCBOR()
}

// algorithmForKey maps a public key to its COSE signature algorithm.
func algorithmForKey(pub crypto.PublicKey) (gocose.Algorithm, error) {
	switch key := pub.(type) {
	case *ecdsa.PublicKey:
		switch key.Curve {
		case elliptic.P256():
			return gocose.AlgorithmES256, nil
		case elliptic.P384():
			return gocose.AlgorithmES384, nil
		case elliptic.P521():
			return gocose.AlgorithmES512, nil
		default:
			return 0, fmt.Errorf("unsupported ECDSA curve %s", key.Curve.Params().Name)
		}
	case *rsa.PublicKey:
		return gocose.AlgorithmPS256, nil
	case ed25519.PublicKey:
		return gocose.AlgorithmEdDSA, nil
	default:
		return 0, fmt.Errorf("unsupported key type %T", pub)
	}
}
