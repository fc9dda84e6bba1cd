package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/ppiankov/affirmgate/internal/alert"
	"github.com/ppiankov/affirmgate/internal/approval"
	"github.com/ppiankov/affirmgate/internal/audit"
	"github.com/ppiankov/affirmgate/internal/dialog"
	"github.com/ppiankov/affirmgate/internal/gate"
	"github.com/ppiankov/affirmgate/internal/policy"
	"github.com/ppiankov/affirmgate/internal/tui"
)

// Presenter modes accepted by --presenter.
const (
	presenterAuto    = "auto"
	presenterTUI     = "tui"
	presenterLine    = "line"
	presenterPending = "pending"
)

// gateOptions selects how a command's gate is wired.
type gateOptions struct {
	Surface   string
	Presenter string
	AuditPath string
	NoAudit   bool
}

// app is a gate plus the resources it owns.
type app struct {
	Gate    *gate.Gate
	Pending *approval.Store

	closers []func() error
}

// Close releases resources in reverse order. Safe to call twice.
func (r *app) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		errs = append(errs, r.closers[i]())
	}
	r.closers = nil
	return errors.Join(errs...)
}

func interactive() bool {
	return isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd())
}

// newApp loads the policy and builds a gate with its presenter,
// notifier and observers.
func newApp(opts gateOptions) (*app, error) {
	cfg, hash, err := policy.LoadConfigWithHash(policyPath)
	if err != nil {
		return nil, err
	}
	logger := slog.Default().With("surface", opts.Surface)
	a := &app{}

	mode := opts.Presenter
	if mode == "" || mode == presenterAuto {
		mode = presenterLine
		if interactive() {
			mode = presenterTUI
		}
	}

	var p dialog.Presenter
	switch mode {
	case presenterTUI:
		p = tui.Presenter{In: os.Stdin, Out: os.Stderr}
	case presenterLine:
		p = &dialog.LinePresenter{In: os.Stdin, Out: os.Stderr}
	case presenterPending:
		store, err := approval.NewStore(approval.DefaultDir())
		if err != nil {
			return nil, fmt.Errorf("open pending store: %w", err)
		}
		a.Pending = store
		p = approval.NewPresenter(store, approval.WithLogger(logger))
	default:
		return nil, fmt.Errorf("unknown presenter %q: use auto, tui, line or pending", opts.Presenter)
	}

	observers := gate.Observers{gate.NewLogObserver(logger)}
	if !opts.NoAudit {
		path := opts.AuditPath
		if path == "" {
			path = audit.DefaultPath()
		}
		if path != "" {
			log, err := audit.Open(path)
			if err != nil {
				return nil, fmt.Errorf("open audit log: %w", err)
			}
			a.closers = append(a.closers, log.Close)
			observers = append(observers, gate.AuditObserver{Log: log, PolicyHash: hash})
		}
	}
	if len(cfg.Alerts) > 0 {
		observers = append(observers, gate.AlertObserver{
			Dispatcher: alert.NewDispatcher(cfg.Alerts),
			PolicyHash: hash,
		})
	}

	var notifier gate.Notifier = tui.Notifier{Out: os.Stderr}
	if mode == presenterPending {
		notifier = gate.NotifierFunc(func(_ context.Context, n policy.Notice) error {
			logger.Info("cancel notice", "title", n.Title, "body", n.Body)
			return nil
		})
	}

	a.Gate = gate.New(cfg, dialog.NewSurface(p, dialog.WithLogger(logger)),
		gate.WithSurface(opts.Surface),
		gate.WithObserver(observers),
		gate.WithNotifier(notifier),
		gate.WithLogger(logger),
	)
	return a, nil
}

// addGateFlags registers the gate flags on cmd. A preset opts.Presenter
// becomes the flag default.
func addGateFlags(cmd *cobra.Command, opts *gateOptions) {
	def := opts.Presenter
	if def == "" {
		def = presenterAuto
	}
	cmd.Flags().StringVar(&opts.Presenter, "presenter", def, "Dialog presenter: auto, tui, line or pending")
	cmd.Flags().StringVar(&opts.AuditPath, "audit-log", "", "Audit log path (default ~/.affirmgate/audit.jsonl)")
	cmd.Flags().BoolVar(&opts.NoAudit, "no-audit", false, "Do not record decisions in the audit log")
}
