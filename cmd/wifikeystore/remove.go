package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nightshade-os/wifi-keystore/pkg/netprofile"
	"github.com/nightshade-os/wifi-keystore/pkg/wifikeystore"
)

// Remove command flags
var (
	removeSSID       string
	removeSecurity   string
	removeSuggestion bool
	removeCreator    string
	removeCACount    int
	removeForce      bool
	removeAppKey     bool
	removeAppCA      bool
)

var removeCmd = &cobra.Command{
	Use:   "remove",
	Short: "Remove a network's credentials from the key store",
	Long: `Remove the key store entries recorded for a network.

The client entry is removed when --force is given or the key and
certificate were app-installed (--app-installed-key); CA entries under
the same rule with --app-installed-ca. Entries absent from the store are
skipped silently.

Examples:
  wifikeystore remove --ssid corp-net --security eap --app-installed-key --app-installed-ca --ca-count 2

  # Forced removal ignores ownership
  wifikeystore remove --ssid corp-net --security eap --force --ca-count 2`,
	RunE: runRemove,
}

func init() {
	removeCmd.Flags().StringVar(&removeSSID, "ssid", "", "Network SSID (required)")
	removeCmd.Flags().StringVar(&removeSecurity, "security", "eap", "Security type: eap or eap-suite-b")
	removeCmd.Flags().BoolVar(&removeSuggestion, "suggestion", false, "Profile originates from a suggestion")
	removeCmd.Flags().StringVar(&removeCreator, "creator", "", "Creator package name (required for suggestions)")
	removeCmd.Flags().IntVar(&removeCACount, "ca-count", 0, "Number of installed CA aliases")
	removeCmd.Flags().BoolVar(&removeForce, "force", false, "Remove regardless of ownership")
	removeCmd.Flags().BoolVar(&removeAppKey, "app-installed-key", false, "Client key and certificate were app-installed")
	removeCmd.Flags().BoolVar(&removeAppCA, "app-installed-ca", false, "CA certificates were app-installed")
	_ = removeCmd.MarkFlagRequired("ssid")
}

func runRemove(cmd *cobra.Command, args []string) error {
	identity := netprofile.NetworkIdentity{
		SSID:           removeSSID,
		Security:       netprofile.SecurityType(removeSecurity),
		FromSuggestion: removeSuggestion,
		CreatorName:    removeCreator,
	}

	// Re-derive the aliases the install recorded.
	base := identity.KeyID()
	cs := &netprofile.CredentialSet{
		ClientCertificateAlias: base,
		Ownership: netprofile.Ownership{
			AppInstalledDeviceKeyAndCert: removeAppKey,
			AppInstalledCACert:           removeAppCA,
		},
	}
	for i := 0; i < removeCACount; i++ {
		cs.CACertificateAliases = append(cs.CACertificateAliases, netprofile.CAAlias(base, i))
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
	if err := mgr.RemoveKeys(cmd.Context(), removeSSID, cs, removeForce); err != nil {
		return err
	}

	fmt.Printf("Removed credentials for %q\n", removeSSID)
	return nil
}
