package grant

import (
	"context"
	"sync"
)

// StaticBroker resolves grants from an in-memory table. It is the broker
// used when grants are provisioned out of band, for example by device
// policy at enrollment time.
type StaticBroker struct {
	mu     sync.RWMutex
	grants map[grantKey]struct{}
}

type grantKey struct {
	alias string
	user  UserHandle
}

// Interface check.
var _ Broker = (*StaticBroker)(nil)

// NewStaticBroker creates an empty static broker.
func NewStaticBroker() *StaticBroker {
	return &StaticBroker{
		grants: make(map[grantKey]struct{}),
	}
}

// Grant records a grant for user on alias.
func (b *StaticBroker) Grant(alias string, user UserHandle) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.grants[grantKey{alias: alias, user: user}] = struct{}{}
}

// Revoke removes a grant. Revoking an absent grant is a no-op.
func (b *StaticBroker) Revoke(alias string, user UserHandle) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.grants, grantKey{alias: alias, user: user})
}

// ResolveGrant implements Broker.
func (b *StaticBroker) ResolveGrant(ctx context.Context, alias string, user UserHandle) error {
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

// HasGrant implements Broker.
func (b *StaticBroker) HasGrant(alias string, user UserHandle) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.grants[grantKey{alias: alias, user: user}]
	return ok
}

// Supported implements Broker.
func (b *StaticBroker) Supported() bool {
	return true
}

// UnsupportedBroker is a Broker that can never resolve grants. It stands in
// where no grant authority is configured.
type UnsupportedBroker struct{}

var _ Broker = UnsupportedBroker{}

// ResolveGrant implements Broker.
func (UnsupportedBroker) ResolveGrant(ctx context.Context, alias string, user UserHandle) error {
	return Denied(alias, user)
}

// HasGrant implements Broker.
func (UnsupportedBroker) HasGrant(alias string, user UserHandle) bool {
	return false
}

// Supported implements Broker.
func (UnsupportedBroker) Supported() bool {
	return false
}
