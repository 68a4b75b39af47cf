// Package grant brokers per-user access to externally provisioned key pairs.
//
// A key pair installed by a provisioning authority is addressed by its
// key-store alias. Before a network profile may reference such an alias,
// the owning user must hold a grant for it. Brokers answer that question;
// they never touch the key store themselves.
package grant

import (
	"context"
	"errors"
	"fmt"
)

// UserHandle identifies the user a grant is resolved for.
type UserHandle int32

// ErrNoGrant means the user holds no grant for the requested alias.
var ErrNoGrant = errors.New("grant: no grant for alias")

// Broker resolves key pair grants for users.
type Broker interface {
	// ResolveGrant checks that user holds a grant for alias. It returns
	// ErrNoGrant when the grant is absent and nil when it is held.
	ResolveGrant(ctx context.Context, alias string, user UserHandle) error

	// HasGrant reports whether user currently holds a grant for alias
	// without consulting any external authority.
	HasGrant(alias string, user UserHandle) bool

	// Supported reports whether this broker can resolve grants at all.
	Supported() bool
}

// Denied is a convenience wrapper returning a descriptive ErrNoGrant.
func Denied(alias string, user UserHandle) error {
	return fmt.Errorf("user %d, alias %q: %w", user, alias, ErrNoGrant)
}
