//go:build cgo

package config

import (
	"fmt"
	"os"

	"github.com/nightshade-os/wifi-keystore/pkg/keystore"
)

// openPKCS11Store opens the configured PKCS#11 token.
func (c *Config) openPKCS11Store() (keystore.KeyStore, func() error, error) {
	pin := os.Getenv(c.Store.PKCS11.PinEnv)
	if pin == "" {
		return nil, nil, fmt.Errorf("environment variable %s is not set or empty", c.Store.PKCS11.PinEnv)
	}

	store, err := keystore.NewPKCS11Store(keystore.PKCS11Config{
		ModulePath: c.Store.PKCS11.Lib,
		TokenLabel: c.Store.PKCS11.Token,
		PIN:        pin,
	})
	if err != nil {
		return nil, nil, err
	}
	return store, store.Close, nil
}
