// Package config loads the key store service configuration from YAML.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Store backend names.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendBolt   = "bolt"
	BackendPKCS11 = "pkcs11"
	BackendRemote = "remote"
)

// Config is the top-level service configuration.
type Config struct {
	Store  StoreConfig  `yaml:"store"`
	Server ServerConfig `yaml:"server"`
	Audit  AuditConfig  `yaml:"audit"`
}

// StoreConfig selects and configures the key store backend.
type StoreConfig struct {
	// Backend is one of "memory", "file", "bolt", "pkcs11", "remote".
	Backend string `yaml:"backend"`

	// Path is the store location for the file and bolt backends.
	Path string `yaml:"path,omitempty"`

	// PassphraseEnv names the environment variable holding the at-rest
	// passphrase for the file and bolt backends. Empty disables sealing.
	PassphraseEnv string `yaml:"passphrase_env,omitempty"`

	// URL is the service base URL for the remote backend.
	URL string `yaml:"url,omitempty"`

	// PKCS11 configures the pkcs11 backend.
	PKCS11 PKCS11Settings `yaml:"pkcs11,omitempty"`
}

// PKCS11Settings holds PKCS#11 specific configuration.
type PKCS11Settings struct {
	// Lib is the path to the PKCS#11 library (.so/.dylib/.dll)
	Lib string `yaml:"lib"`

	// Token identifies the token by label
	Token string `yaml:"token"`

	// PinEnv is the name of the environment variable containing the PIN
	PinEnv string `yaml:"pin_env"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host    string `yaml:"host,omitempty"`
	Port    int    `yaml:"port,omitempty"`
	TLSCert string `yaml:"tls_cert,omitempty"`
	TLSKey  string `yaml:"tls_key,omitempty"`
}

// AuditConfig configures audit logging.
type AuditConfig struct {
	// Log is the JSONL audit log path. Empty disables audit logging.
	Log string `yaml:"log,omitempty"`
}

// Default returns a Config with an in-memory store and default listener.
func Default() *Config {
	return &Config{
		Store:  StoreConfig{Backend: BackendMemory},
		Server: ServerConfig{Port: 8690},
	}
}

// Load reads and validates a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendMemory:
	case BackendFile, BackendBolt:
		if c.Store.Path == "" {
			return fmt.Errorf("store.path is required for the %s backend", c.Store.Backend)
		}
	case BackendPKCS11:
		if c.Store.PKCS11.Lib == "" {
			return fmt.Errorf("store.pkcs11.lib is required")
		}
		if c.Store.PKCS11.Token == "" {
			return fmt.Errorf("store.pkcs11.token is required")
		}
		if c.Store.PKCS11.PinEnv == "" {
			return fmt.Errorf("store.pkcs11.pin_env is required (PIN must be provided via environment variable)")
		}
	case BackendRemote:
		if c.Store.URL == "" {
			return fmt.Errorf("store.url is required for the remote backend")
		}
	default:
		return fmt.Errorf("unsupported store backend: %q", c.Store.Backend)
	}

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if (c.Server.TLSCert == "") != (c.Server.TLSKey == "") {
		return fmt.Errorf("server.tls_cert and server.tls_key must be set together")
	}
	return nil
}

// Passphrase resolves the at-rest passphrase from the environment.
// Returns nil when no passphrase variable is configured.
func (c *Config) Passphrase() ([]byte, error) {
	if c.Store.PassphraseEnv == "" {
		return nil, nil
	}
	v := os.Getenv(c.Store.PassphraseEnv)
	if v == "" {
		return nil, fmt.Errorf("environment variable %s is not set or empty", c.Store.PassphraseEnv)
	}
	return []byte(v), nil
}
