// Command wifikeystore manages the key store material backing
// WPA3-Enterprise and Suite-B network profiles.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nightshade-os/wifi-keystore/internal/config"
	"github.com/nightshade-os/wifi-keystore/pkg/audit"
)

// Build-time variables (injected by GoReleaser)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Global flags
var (
	configPath   string
	auditLogPath string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "wifikeystore",
	Short: "WiFi key store - enterprise credential and alias management",
	Long: `wifikeystore manages the secure key store entries backing
WPA3-Enterprise network profiles: it installs client keys, certificate
chains and CA certificates under identity-derived aliases, enforces
Suite-B 192-bit key strength policy, and removes entries when ownership
permits.

Backends: in-memory, PEM file tree, bbolt database, PKCS#11 token, or a
remote wifikeystore server.

Examples:
  # Install credentials for a saved network
  wifikeystore install --ssid corp-net --security eap \
      --key client.key --cert client.pem --ca ca.pem

  # Install for a Suite-B network, enforcing 192-bit strength
  wifikeystore install --ssid corp-secure --security eap-suite-b --suite-b \
      --key client.key --cert client.pem --ca ca.pem

  # Remove app-installed entries
  wifikeystore remove --ssid corp-net --security eap --app-installed-key --app-installed-ca

  # Serve the key store over HTTP
  wifikeystore serve --config /etc/wifikeystore/config.yaml`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Check for audit log path from environment if not set via flag
		if auditLogPath == "" {
			auditLogPath = os.Getenv("WIFIKEYSTORE_AUDIT_LOG")
		}

		if auditLogPath != "" {
			if err := audit.InitFile(auditLogPath); err != nil {
				return fmt.Errorf("failed to initialize audit log: %w", err)
			}
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return audit.Close()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"Path to config file (default: in-memory store)")
	rootCmd.PersistentFlags().StringVar(&auditLogPath, "audit-log", "",
		"Path to audit log file (or set WIFIKEYSTORE_AUDIT_LOG env var)")

	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(grantCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(serveCmd)
}

// loadConfig loads the configured backend settings, falling back to the
// in-memory defaults when no config file is given.
func loadConfig() (*config.Config, error) {
	if configPath == "" {
		if env := os.Getenv("WIFIKEYSTORE_CONFIG"); env != "" {
			configPath = env
		}
	}
	if configPath == "" {
		return config.Default(), nil
	}
	return config.Load(configPath)
}
