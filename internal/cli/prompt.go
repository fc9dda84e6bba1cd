package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ppiankov/affirmgate/internal/gate"
	"github.com/ppiankov/affirmgate/internal/intercept"
	"github.com/ppiankov/affirmgate/internal/model"
)

var (
	promptKind   string
	promptTarget string
	promptOpts   = gateOptions{Surface: "cli"}

	urlOpts = gateOptions{Surface: "cli"}
)

func init() {
	promptCmd.Flags().StringVar(&promptKind, "kind", "download", "Action kind: download or upload")
	promptCmd.Flags().StringVar(&promptTarget, "target", "", "File or URL the action applies to (recorded in the audit log)")
	addGateFlags(promptCmd, &promptOpts)
	rootCmd.AddCommand(promptCmd)

	addGateFlags(urlCmd, &urlOpts)
	rootCmd.AddCommand(urlCmd)
}

var promptCmd = &cobra.Command{
	Use:   "prompt",
	Short: "Ask the user to affirm the data use policy",
	Long: `Shows the policy dialog for one action kind and exits with the decision:
0 when affirmed, 1 when cancelled. Intended for shell hooks:

  affirmgate prompt --kind download && scp host:data.csv .`,
	RunE: runPrompt,
}

var urlCmd = &cobra.Command{
	Use:   "url <url>",
	Short: "Affirm a download and print its marked URL",
	Long:  "Asks for download affirmation and prints the URL with affirm=true appended.\nPrints nothing and exits 1 when cancelled.",
	Args:  cobra.ExactArgs(1),
	RunE:  runURL,
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runPrompt(cmd *cobra.Command, args []string) error {
	kind, err := model.ParseActionKind(promptKind)
	if err != nil {
		return err
	}
	a, err := newApp(promptOpts)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := signalContext()
	defer cancel()
	if promptTarget != "" {
		ctx = gate.WithTarget(ctx, promptTarget)
	}

	ok, err := a.Gate.Request(ctx, kind)
	if err != nil {
		return fmt.Errorf("prompt: %w", err)
	}
	if !ok {
		a.Close()
		os.Exit(1)
	}
	return nil
}

func runURL(cmd *cobra.Command, args []string) error {
	a, err := newApp(urlOpts)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := signalContext()
	defer cancel()
	ctx = gate.WithTarget(ctx, args[0])

	param := a.Gate.Config().AffirmParam
	mark := intercept.Guard(a.Gate, model.KindDownload, func(_ context.Context, u string) (string, error) {
		return intercept.AffirmURLParam(u, param), nil
	})
	marked, err := mark(ctx, args[0])
	if err != nil {
		return fmt.Errorf("url: %w", err)
	}
	if marked == "" {
		a.Close()
		os.Exit(1)
	}
	fmt.Println(marked)
	return nil
}
