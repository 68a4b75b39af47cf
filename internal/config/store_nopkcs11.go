//go:build !cgo

package config

import (
	"fmt"

	"github.com/nightshade-os/wifi-keystore/pkg/keystore"
)

// openPKCS11Store fails: the pkcs11 backend requires cgo.
func (c *Config) openPKCS11Store() (keystore.KeyStore, func() error, error) {
	return nil, nil, fmt.Errorf("pkcs11 backend requires a cgo-enabled build")
}
