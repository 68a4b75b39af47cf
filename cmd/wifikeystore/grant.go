package main

import (
	"crypto"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/nightshade-os/wifi-keystore/pkg/grant"
	"github.com/nightshade-os/wifi-keystore/pkg/keystore"
)

var grantCmd = &cobra.Command{
	Use:   "grant",
	Short: "Key pair grant token operations",
	Long: `Issue and inspect the COSE_Sign1 tokens a provisioning authority
uses to grant users access to externally provisioned key pairs.`,
}

// Grant issue flags
var (
	grantIssueKeyFile string
	grantIssueIssuer  string
	grantIssueAlias   string
	grantIssueUser    int32
	grantIssueTTL     time.Duration
	grantIssueOut     string
)

var grantIssueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Issue a signed grant token for a key pair alias",
	Long: `Sign a grant token binding a (user, alias) pair, valid for the
given duration.

Examples:
  wifikeystore grant issue --key authority.key --issuer provisioning \
      --alias corp-device-key --user 1000 --ttl 24h --out grant.cwt`,
	RunE: runGrantIssue,
}

func init() {
	grantIssueCmd.Flags().StringVar(&grantIssueKeyFile, "key", "", "Authority signing key PEM file (required)")
	grantIssueCmd.Flags().StringVar(&grantIssueIssuer, "issuer", "", "Issuer name embedded in the token")
	grantIssueCmd.Flags().StringVar(&grantIssueAlias, "alias", "", "Key pair alias to grant (required)")
	grantIssueCmd.Flags().Int32Var(&grantIssueUser, "user", 0, "User handle the grant is issued for")
	grantIssueCmd.Flags().DurationVar(&grantIssueTTL, "ttl", 24*time.Hour, "Grant validity duration")
	grantIssueCmd.Flags().StringVar(&grantIssueOut, "out", "", "Output file (default: stdout)")
	_ = grantIssueCmd.MarkFlagRequired("key")
	_ = grantIssueCmd.MarkFlagRequired("alias")

	grantCmd.AddCommand(grantIssueCmd)
}

func runGrantIssue(cmd *cobra.Command, args []string) error {
	keyPEM, err := os.ReadFile(grantIssueKeyFile)
	if err != nil {
		return fmt.Errorf("failed to read key file: %w", err)
	}
	key, err := keystore.ParsePrivateKeyPEM(keyPEM, nil)
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", grantIssueKeyFile, err)
	}
	signer, ok := key.(crypto.Signer)
	if !ok {
		return fmt.Errorf("key in %s cannot sign", grantIssueKeyFile)
	}

	token, err := grant.IssueToken(signer, grantIssueIssuer, grantIssueAlias,
		grant.UserHandle(grantIssueUser), grantIssueTTL)
	if err != nil {
		return err
	}

	if grantIssueOut == "" {
		_, err = os.Stdout.Write(token)
		return err
	}
	if err := os.WriteFile(grantIssueOut, token, 0600); err != nil {
		return fmt.Errorf("failed to write token: %w", err)
	}
	fmt.Printf("Grant token written to %s\n", grantIssueOut)
	fmt.Printf("  Alias: %s\n", grantIssueAlias)
	fmt.Printf("  User:  %d\n", grantIssueUser)
	fmt.Printf("  TTL:   %s\n", grantIssueTTL)
	return nil
}
