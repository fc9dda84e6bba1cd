package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/affirmgate/internal/inbox"
	affirmmcp "github.com/ppiankov/affirmgate/internal/mcp"
	"github.com/ppiankov/affirmgate/internal/proxy"
)

var (
	proxyPort     int
	proxyUpstream string
	proxyOpts     = gateOptions{Surface: "proxy"}

	watchDest string
	watchPoll time.Duration
	watchOpts = gateOptions{Surface: "inbox"}

	mcpOpts = gateOptions{Surface: "mcp", Presenter: presenterPending}
)

func init() {
	proxyCmd.Flags().IntVar(&proxyPort, "port", 8889, "Listen port")
	proxyCmd.Flags().StringVar(&proxyUpstream, "upstream", "http://localhost:8888", "Upstream application URL")
	addGateFlags(proxyCmd, &proxyOpts)
	rootCmd.AddCommand(proxyCmd)

	watchCmd.Flags().StringVar(&watchDest, "dest", "", "Move affirmed files into this directory")
	watchCmd.Flags().DurationVar(&watchPoll, "poll", 0, "Poll at this interval instead of using change notifications")
	addGateFlags(watchCmd, &watchOpts)
	rootCmd.AddCommand(watchCmd)

	addGateFlags(mcpCmd, &mcpOpts)
	rootCmd.AddCommand(mcpCmd)
}

var proxyCmd = &cobra.Command{
	Use:   "proxy",
	Short: "Run a reverse proxy that gates file downloads and uploads",
	Long: `Forwards every request to the upstream application. File downloads and
uploads wait for the user to affirm the data use policy; cancelled transfers
get 403 with a JSON body naming the refusal.`,
	RunE: runProxy,
}

var watchCmd = &cobra.Command{
	Use:   "watch <dir>",
	Short: "Gate files dropped into an upload directory",
	Long: `Watches dir for new files. Each burst of files is one upload: the user
affirms or cancels once for the batch. Cancelled files are deleted.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP tool server for agent integration",
	Long: `Runs affirmgate as an MCP (Model Context Protocol) server over stdio.
Exposes affirm_download, affirm_upload and affirm_pending.

stdio carries the protocol, so prompts are answered from another terminal
with "affirmgate pending" and "affirmgate affirm <key>".`,
	RunE: runMCP,
}

func runProxy(cmd *cobra.Command, args []string) error {
	a, err := newApp(proxyOpts)
	if err != nil {
		return err
	}
	defer a.Close()

	srv, err := proxy.NewServer(proxy.Config{
		Port:        proxyPort,
		Upstream:    proxyUpstream,
		AffirmParam: a.Gate.Config().AffirmParam,
	}, a.Gate, slog.Default())
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	fmt.Fprintf(os.Stderr, "affirmgate proxy listening on :%d -> %s\n", proxyPort, proxyUpstream)
	return srv.Start(ctx)
}

func runWatch(cmd *cobra.Command, args []string) error {
	dir := args[0]
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create watch directory: %w", err)
	}
	if watchDest != "" {
		if err := os.MkdirAll(watchDest, 0o755); err != nil {
			return fmt.Errorf("create destination directory: %w", err)
		}
	}

	a, err := newApp(watchOpts)
	if err != nil {
		return err
	}
	defer a.Close()

	var accept inbox.AcceptFunc
	if watchDest != "" {
		accept = moveInto(watchDest)
	}
	keeper := inbox.NewGatekeeper(a.Gate, accept, slog.Default())

	ctx, cancel := signalContext()
	defer cancel()

	if err := inbox.ScanExisting(ctx, dir, keeper.Handle); err != nil {
		return fmt.Errorf("scan %s: %w", dir, err)
	}

	fmt.Fprintf(os.Stderr, "affirmgate watching %s\n", dir)
	if watchPoll > 0 {
		return inbox.NewPollWatcher(dir, keeper.Handle, watchPoll).Run(ctx)
	}
	return inbox.NewWatcher(dir, keeper.Handle, inbox.WithLogger(slog.Default())).Run(ctx)
}

func moveInto(dest string) inbox.AcceptFunc {
	return func(_ context.Context, files []string) error {
		for _, f := range files {
			if err := os.Rename(f, filepath.Join(dest, filepath.Base(f))); err != nil {
				return fmt.Errorf("move %s: %w", filepath.Base(f), err)
			}
		}
		return nil
	}
}

func runMCP(cmd *cobra.Command, args []string) error {
	a, err := newApp(mcpOpts)
	if err != nil {
		return err
	}
	defer a.Close()

	srv := affirmmcp.New(a.Gate, a.Pending, version)

	ctx, cancel := signalContext()
	defer cancel()

	fmt.Fprintln(os.Stderr, "affirmgate MCP server running on stdio")
	return srv.Run(ctx)
}
