package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/affirmgate/internal/audit"
)

var (
	querySurface string
	queryKind    string
	querySince   time.Duration
	queryFormat  string
)

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditVerifyCmd)
	auditCmd.AddCommand(auditQueryCmd)
	auditQueryCmd.Flags().StringVar(&querySurface, "surface", "", "Only entries from this surface (cli, proxy, inbox, mcp)")
	auditQueryCmd.Flags().StringVar(&queryKind, "kind", "", "Only entries of this action kind")
	auditQueryCmd.Flags().DurationVar(&querySince, "since", 0, "Only entries newer than this (e.g. 24h)")
	auditQueryCmd.Flags().StringVarP(&queryFormat, "format", "f", "text", "Output format: text or json")
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Audit log operations",
	Long:  "Commands for verifying and inspecting the hash-chained decision log.",
}

var auditVerifyCmd = &cobra.Command{
	Use:   "verify [path]",
	Short: "Verify hash chain integrity of an audit log",
	Long:  "Walks the JSONL audit log and validates that every entry's prev_hash\nmatches the SHA-256 of the previous entry. Exits 0 if valid, 1 if tampered.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runAuditVerify,
}

var auditQueryCmd = &cobra.Command{
	Use:   "query [path]",
	Short: "Show recorded decisions",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runAuditQuery,
}

func auditPathArg(args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	if p := audit.DefaultPath(); p != "" {
		return p, nil
	}
	return "", fmt.Errorf("cannot determine home directory; pass the log path")
}

func runAuditVerify(cmd *cobra.Command, args []string) error {
	path, err := auditPathArg(args)
	if err != nil {
		return err
	}
	result := audit.Verify(path)
	if result.Valid {
		fmt.Printf("OK: %d entries verified\n", result.Lines)
		return nil
	}
	fmt.Fprintf(os.Stderr, "FAILED at line %d: %s\n", result.ErrorLine, result.Error)
	os.Exit(1)
	return nil
}

func runAuditQuery(cmd *cobra.Command, args []string) error {
	path, err := auditPathArg(args)
	if err != nil {
		return err
	}
	f := audit.Filter{Surface: querySurface, Kind: queryKind}
	if querySince > 0 {
		f.From = time.Now().UTC().Add(-querySince)
	}
	report, err := audit.Query(path, f)
	if err != nil {
		return err
	}

	switch queryFormat {
	case "json":
		out, err := audit.FormatJSON(report)
		if err != nil {
			return err
		}
		fmt.Println(out)
	case "text", "":
		fmt.Print(audit.FormatTimeline(report))
	default:
		return fmt.Errorf("unknown format %q: use text or json", queryFormat)
	}
	return nil
}
