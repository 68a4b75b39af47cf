package main

import (
	"github.com/spf13/cobra"

	"github.com/nightshade-os/wifi-keystore/internal/api/server"
	"github.com/nightshade-os/wifi-keystore/pkg/audit"
)

// Serve command flags
var (
	servePort    int
	serveHost    string
	serveTLSCert string
	serveTLSKey  string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the key store over HTTP",
	Long: `Start the key store HTTP service over the configured backend.

Remote wifikeystore clients (the "remote" store backend) talk to this
service.

Examples:
  # Serve the configured backend
  wifikeystore serve --config /etc/wifikeystore/config.yaml

  # Override the listen port
  wifikeystore serve --config config.yaml --port 9000

  # Serve with TLS
  wifikeystore serve --config config.yaml --tls-cert server.crt --tls-key server.key`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides config)")
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Host to bind to (overrides config)")
	serveCmd.Flags().StringVar(&serveTLSCert, "tls-cert", "", "TLS certificate file")
	serveCmd.Flags().StringVar(&serveTLSKey, "tls-key", "", "TLS private key file")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Config file may carry the audit log when no flag was given
	if !audit.Enabled() && cfg.Audit.Log != "" {
		if err := audit.InitFile(cfg.Audit.Log); err != nil {
			return err
		}
	}

	store, closeStore, err := cfg.OpenStore()
	if err != nil {
		return err
	}
	defer func() { _ = closeStore() }()

	srvCfg := server.DefaultConfig()
	if cfg.Server.Port != 0 {
		srvCfg.Port = cfg.Server.Port
	}
	srvCfg.Host = cfg.Server.Host
	srvCfg.TLSCert = cfg.Server.TLSCert
	srvCfg.TLSKey = cfg.Server.TLSKey

	// Flags override config
	if servePort != 0 {
		srvCfg.Port = servePort
	}
	if serveHost != "" {
		srvCfg.Host = serveHost
	}
	if serveTLSCert != "" {
		srvCfg.TLSCert = serveTLSCert
	}
	if serveTLSKey != "" {
		srvCfg.TLSKey = serveTLSKey
	}

	return server.New(srvCfg, store, cfg.Store.Backend, version).Start()
}
