package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nightshade-os/wifi-keystore/pkg/keystore"
	"github.com/nightshade-os/wifi-keystore/pkg/netprofile"
	"github.com/nightshade-os/wifi-keystore/pkg/suiteb"
)

// Validate command flags
var (
	validateCertFile string
	validateCAFiles  []string
	validateTOFU     bool
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check Suite-B 192-bit strength of a credential chain",
	Long: `Evaluate a client certificate and CA chain against the Suite-B
192-bit policy without touching the key store.

RSA chains require a modulus of at least 3072 bits throughout; ECDSA
chains a curve of at least 384 bits. Mixed RSA/ECDSA chains fail.

Examples:
  wifikeystore validate --cert client.pem --ca root.pem
  wifikeystore validate --cert client.pem --tofu`,
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().StringVar(&validateCertFile, "cert", "", "Client certificate PEM file (required)")
	validateCmd.Flags().StringArrayVar(&validateCAFiles, "ca", nil, "CA certificate PEM file (repeatable)")
	validateCmd.Flags().BoolVar(&validateTOFU, "tofu", false, "Evaluate as trust-on-first-use (no pinned CA)")
	_ = validateCmd.MarkFlagRequired("cert")
}

func runValidate(cmd *cobra.Command, args []string) error {
	certPEM, err := os.ReadFile(validateCertFile)
	if err != nil {
		return fmt.Errorf("failed to read certificate file: %w", err)
	}
	certs, err := keystore.ParseCertificatesPEM(certPEM)
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", validateCertFile, err)
	}
	if len(certs) == 0 {
		return fmt.Errorf("no certificates in %s", validateCertFile)
	}

	cs := &netprofile.CredentialSet{
		ClientCertificate:       certs[0],
		TrustOnFirstUse:         validateTOFU,
		EAPMethodServerCertUsed: validateTOFU,
	}

	for _, caFile := range validateCAFiles {
		caPEM, err := os.ReadFile(caFile)
		if err != nil {
			return fmt.Errorf("failed to read CA file: %w", err)
		}
		cas, err := keystore.ParseCertificatesPEM(caPEM)
		if err != nil {
			return fmt.Errorf("failed to parse %s: %w", caFile, err)
		}
		cs.CACertificates = append(cs.CACertificates, cas...)
	}

	validator := suiteb.NewValidator(nil)
	cipher, err := validator.Validate(cmd.Context(), cs)
	if err != nil {
		fmt.Println("FAILED")
		fmt.Printf("  %s\n", err)
		os.Exit(1)
	}

	fmt.Println("OK")
	fmt.Printf("  Cipher: %s\n", cipher)
	return nil
}
