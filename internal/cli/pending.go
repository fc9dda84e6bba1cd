package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ppiankov/affirmgate/internal/approval"
)

var pendingAll bool

func init() {
	pendingCmd.Flags().BoolVar(&pendingAll, "all", false, "Include resolved prompts")
	rootCmd.AddCommand(pendingCmd)
	rootCmd.AddCommand(affirmCmd)
	rootCmd.AddCommand(cancelCmd)
	rootCmd.AddCommand(cleanupCmd)
}

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List prompts waiting for an answer",
	Long:  "Shows policy prompts published by the MCP server and other detached surfaces.",
	RunE:  runPending,
}

var affirmCmd = &cobra.Command{
	Use:   "affirm <key> [token]",
	Short: "Affirm a pending prompt",
	Long: `Answers a pending prompt. Prompts that require a token need it as the
second argument; a wrong token is reported on the prompt and it stays open.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runAffirm,
}

var cancelCmd = &cobra.Command{
	Use:   "cancel <key>",
	Short: "Cancel a pending prompt",
	Args:  cobra.ExactArgs(1),
	RunE:  runCancel,
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove every prompt from the pending store",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openPending()
		if err != nil {
			return err
		}
		return store.Cleanup()
	},
}

func openPending() (*approval.Store, error) {
	store, err := approval.NewStore(approval.DefaultDir())
	if err != nil {
		return nil, fmt.Errorf("failed to open pending store: %w", err)
	}
	return store, nil
}

func runPending(cmd *cobra.Command, args []string) error {
	store, err := openPending()
	if err != nil {
		return err
	}
	list, err := store.List()
	if err != nil {
		return fmt.Errorf("failed to list prompts: %w", err)
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tSTATUS\tTITLE\tTOKEN\tCREATED")
	n := 0
	for _, e := range list {
		if e.Status.Final() && !pendingAll {
			continue
		}
		token := "-"
		if e.RequiresToken {
			token = "required"
		}
		status := string(e.Status)
		if e.Error != "" {
			status += " (" + e.Error + ")"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", e.Key, status, e.Title, token, e.CreatedAt.Format("15:04:05"))
		n++
	}
	if n == 0 {
		fmt.Println("No pending prompts.")
		return nil
	}
	return tw.Flush()
}

func runAffirm(cmd *cobra.Command, args []string) error {
	store, err := openPending()
	if err != nil {
		return err
	}
	token := ""
	if len(args) == 2 {
		token = args[1]
	}
	if err := store.Submit(args[0], token); err != nil {
		return fmt.Errorf("affirm %s: %w", args[0], err)
	}
	fmt.Printf("Submitted %s\n", args[0])
	return nil
}

func runCancel(cmd *cobra.Command, args []string) error {
	store, err := openPending()
	if err != nil {
		return err
	}
	if err := store.Cancel(args[0]); err != nil {
		return fmt.Errorf("cancel %s: %w", args[0], err)
	}
	fmt.Printf("Cancelled %s\n", args[0])
	return nil
}
