package config

import (
	"fmt"

	"github.com/nightshade-os/wifi-keystore/pkg/audit"
	"github.com/nightshade-os/wifi-keystore/pkg/keystore"
)

// OpenStore constructs the configured key store backend. The returned
// close function releases backend resources and is never nil.
func (c *Config) OpenStore() (keystore.KeyStore, func() error, error) {
	noop := func() error { return nil }

	switch c.Store.Backend {
	case BackendMemory:
		return keystore.NewMemoryStore(), noop, nil

	case BackendFile:
		passphrase, err := c.Passphrase()
		if err != nil {
			_ = audit.LogAuthFailed(nil, "store passphrase unavailable")
			return nil, nil, err
		}
		store, err := keystore.NewFileStore(c.Store.Path, passphrase)
		if err != nil {
			return nil, nil, err
		}
		return store, noop, nil

	case BackendBolt:
		passphrase, err := c.Passphrase()
		if err != nil {
			_ = audit.LogAuthFailed(nil, "store passphrase unavailable")
			return nil, nil, err
		}
		store, err := keystore.OpenBoltStore(c.Store.Path, passphrase)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil

	case BackendPKCS11:
		return c.openPKCS11Store()

	case BackendRemote:
		store, err := keystore.NewRemoteStore(c.Store.URL, nil)
		if err != nil {
			return nil, nil, err
		}
		return store, noop, nil

	default:
		return nil, nil, fmt.Errorf("unsupported store backend: %q", c.Store.Backend)
	}
}
