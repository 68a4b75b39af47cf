package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nightshade-os/wifi-keystore/pkg/keystore"
	"github.com/nightshade-os/wifi-keystore/pkg/netprofile"
	"github.com/nightshade-os/wifi-keystore/pkg/wifikeystore"
)

// Install command flags
var (
	installSSID       string
	installSecurity   string
	installSuggestion bool
	installCreator    string
	installCreatorUID int32
	installKeyFile    string
	installCertFile   string
	installCAFiles    []string
	installSuiteB     bool
	installTOFU       bool
)

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Install network credentials into the key store",
	Long: `Install a network profile's client key, certificate chain and CA
certificates under identity-derived aliases.

The client chain file may contain multiple certificates, leaf first.
Each CA certificate is installed under an indexed alias in file order.

Examples:
  wifikeystore install --ssid corp-net --security eap \
      --key client.key --cert client.pem --ca ca.pem

  wifikeystore install --ssid corp-secure --security eap-suite-b --suite-b \
      --key client.key --cert client.pem --ca root.pem --ca intermediate.pem

  # Suggestion networks get their own alias namespace
  wifikeystore install --ssid corp-net --security eap --suggestion \
      --creator com.example.app --key client.key --cert client.pem --ca ca.pem`,
	RunE: runInstall,
}

func init() {
	installCmd.Flags().StringVar(&installSSID, "ssid", "", "Network SSID (required)")
	installCmd.Flags().StringVar(&installSecurity, "security", "eap", "Security type: eap or eap-suite-b")
	installCmd.Flags().BoolVar(&installSuggestion, "suggestion", false, "Profile originates from a suggestion")
	installCmd.Flags().StringVar(&installCreator, "creator", "", "Creator package name (required for suggestions)")
	installCmd.Flags().Int32Var(&installCreatorUID, "creator-uid", 0, "Creator UID")
	installCmd.Flags().StringVar(&installKeyFile, "key", "", "Client private key PEM file")
	installCmd.Flags().StringVar(&installCertFile, "cert", "", "Client certificate chain PEM file, leaf first")
	installCmd.Flags().StringArrayVar(&installCAFiles, "ca", nil, "CA certificate PEM file (repeatable, order is part of the alias contract)")
	installCmd.Flags().BoolVar(&installSuiteB, "suite-b", false, "Validate Suite-B 192-bit strength after install")
	installCmd.Flags().BoolVar(&installTOFU, "tofu", false, "Trust server chain on first use (no pinned CA)")
	_ = installCmd.MarkFlagRequired("ssid")

	// registered on rootCmd in main.go
}

func runInstall(cmd *cobra.Command, args []string) error {
	profile, err := buildProfile()
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, closeStore, err := cfg.OpenStore()
	if err != nil {
		return err
	}
	defer func() { _ = closeStore() }()

	mgr := wifikeystore.NewManager(store, nil)
	if err := mgr.InstallKeys(cmd.Context(), profile, nil); err != nil {
		return err
	}

	cs := profile.Credentials
	fmt.Printf("Installed credentials for %q\n", installSSID)
	if cs.ClientCertificateAlias != "" {
		fmt.Printf("  Client alias: %s\n", cs.ClientCertificateAlias)
	}
	for _, alias := range cs.CACertificateAliases {
		fmt.Printf("  CA alias:     %s\n", alias)
	}
	if installSuiteB {
		fmt.Printf("  Suite-B:      %s\n", suiteBCipherName(cs.AllowedSuiteBCiphers))
	}
	return nil
}

// buildProfile assembles a profile from the install flags.
func buildProfile() (*netprofile.Profile, error) {
	cs := &netprofile.CredentialSet{
		TrustOnFirstUse:         installTOFU,
		EAPMethodServerCertUsed: installTOFU,
	}

	if installKeyFile != "" {
		keyPEM, err := os.ReadFile(installKeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read key file: %w", err)
		}
		key, err := keystore.ParsePrivateKeyPEM(keyPEM, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", installKeyFile, err)
		}
		cs.ClientPrivateKey = key
	}

	if installCertFile != "" {
		certPEM, err := os.ReadFile(installCertFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read certificate file: %w", err)
		}
		chain, err := keystore.ParseCertificatesPEM(certPEM)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", installCertFile, err)
		}
		if len(chain) == 0 {
			return nil, fmt.Errorf("no certificates in %s", installCertFile)
		}
		cs.ClientCertificate = chain[0]
		cs.ClientCertificateChain = chain
	}

	for _, caFile := range installCAFiles {
		caPEM, err := os.ReadFile(caFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA file: %w", err)
		}
		cas, err := keystore.ParseCertificatesPEM(caPEM)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", caFile, err)
		}
		cs.CACertificates = append(cs.CACertificates, cas...)
	}

	return &netprofile.Profile{
		Identity: netprofile.NetworkIdentity{
			SSID:           installSSID,
			Security:       netprofile.SecurityType(installSecurity),
			FromSuggestion: installSuggestion,
			CreatorName:    installCreator,
			CreatorUID:     int(installCreatorUID),
		},
		Credentials:    cs,
		SuiteBSelected: installSuiteB,
	}, nil
}

// suiteBCipherName renders the validated cipher mask.
func suiteBCipherName(mask netprofile.CipherMask) string {
	switch {
	case mask.Has(netprofile.CipherECDHERSA):
		return netprofile.CipherECDHERSA.String()
	case mask.Has(netprofile.CipherECDHEECDSA):
		return netprofile.CipherECDHEECDSA.String()
	default:
		return "none"
	}
}
