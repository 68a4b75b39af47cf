package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nightshade-os/wifi-keystore/pkg/audit"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Audit log management",
	Long: `Commands for managing and verifying audit logs.

The audit log provides a tamper-evident record of all key store
operations. Each event is cryptographically chained using SHA-256 hashes.

Examples:
  # Verify audit log integrity
  wifikeystore audit verify --log /var/log/wifikeystore/audit.jsonl

  # Show last 10 events
  wifikeystore audit tail --log /var/log/wifikeystore/audit.jsonl -n 10`,
}

var auditVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify audit log integrity",
	Long: `Verify the cryptographic hash chain of an audit log file.

Each event in the log contains:
  - hash_prev: SHA-256 hash of the previous event
  - hash: SHA-256 hash of the current event

The chain starts with hash_prev="sha256:genesis" for the first event.

If the chain is broken (events modified, deleted, or inserted),
this command will report the location and nature of the tampering.`,
	RunE: runAuditVerify,
}

var auditTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Show recent audit events",
	Long:  `Display the most recent audit events from the log file.`,
	RunE:  runAuditTail,
}

var (
	auditLogFile  string
	auditTailNum  int
	auditShowJSON bool
)

func init() {
	auditVerifyCmd.Flags().StringVar(&auditLogFile, "log", "", "Path to audit log file (required)")
	_ = auditVerifyCmd.MarkFlagRequired("log")

	auditTailCmd.Flags().StringVar(&auditLogFile, "log", "", "Path to audit log file (required)")
	_ = auditTailCmd.MarkFlagRequired("log")
	auditTailCmd.Flags().IntVarP(&auditTailNum, "num", "n", 10, "Number of events to show")
	auditTailCmd.Flags().BoolVar(&auditShowJSON, "json", false, "Output as JSON")

	auditCmd.AddCommand(auditVerifyCmd)
	auditCmd.AddCommand(auditTailCmd)
}

func runAuditVerify(cmd *cobra.Command, args []string) error {
	fmt.Printf("Verifying audit log: %s\n\n", auditLogFile)

	count, err := audit.VerifyChain(auditLogFile)
	if err != nil {
		fmt.Printf("VERIFICATION FAILED\n")
		fmt.Printf("  Valid events: %d\n", count)
		fmt.Printf("  Error: %s\n", err)
		os.Exit(1)
	}

	fmt.Printf("VERIFICATION PASSED\n")
	fmt.Printf("  Valid events: %d\n", count)
	return nil
}

func runAuditTail(cmd *cobra.Command, args []string) error {
	file, err := os.Open(auditLogFile)
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}
	defer func() { _ = file.Close() }()

	// Collect all lines, keep the last N
	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read audit log: %w", err)
	}

	start := 0
	if len(lines) > auditTailNum {
		start = len(lines) - auditTailNum
	}

	for _, line := range lines[start:] {
		if auditShowJSON {
			fmt.Println(line)
			continue
		}

		var event audit.Event
		if err := json.Unmarshal([]byte(line), &event); err != nil {
			fmt.Printf("  <unparseable event>\n")
			continue
		}
		fmt.Printf("%s  %-20s %-8s %s\n",
			event.Timestamp,
			event.EventType,
			event.Result,
			eventSummary(&event),
		)
	}
	return nil
}

// eventSummary renders a one-line description of the event object.
func eventSummary(e *audit.Event) string {
	var parts []string
	if e.Object.Network != "" {
		parts = append(parts, "network="+e.Object.Network)
	}
	if e.Object.Alias != "" {
		parts = append(parts, "alias="+e.Object.Alias)
	}
	if len(e.Object.Aliases) > 0 {
		parts = append(parts, "ca="+strings.Join(e.Object.Aliases, ","))
	}
	if e.Context.Cipher != "" {
		parts = append(parts, "cipher="+e.Context.Cipher)
	}
	if e.Context.Reason != "" {
		parts = append(parts, "reason="+e.Context.Reason)
	}
	return strings.Join(parts, " ")
}
