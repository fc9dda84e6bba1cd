// Package gate implements the affirmation gate: the state machine that
// owns at most one pending confirmation per interception point, drives the
// dialog renderer, and reports a boolean result to its caller.
package gate

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/ppiankov/affirmgate/internal/dialog"
	"github.com/ppiankov/affirmgate/internal/model"
	"github.com/ppiankov/affirmgate/internal/policy"
)

// Notifier shows an informational message to the user. Implementations
// return model.ErrHostUnavailable when the host has no way to do so.
type Notifier interface {
	Notify(ctx context.Context, n policy.Notice) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n policy.Notice) error

// Notify calls f(ctx, n).
func (f NotifierFunc) Notify(ctx context.Context, n policy.Notice) error { return f(ctx, n) }

type targetKey struct{}

// WithTarget attaches a description of the gated object (a URL, a path) to
// ctx. It is reported with the decision.
func WithTarget(ctx context.Context, target string) context.Context {
	return context.WithValue(ctx, targetKey{}, target)
}

func targetFrom(ctx context.Context) string {
	s, _ := ctx.Value(targetKey{}).(string)
	return s
}

// Gate is an affirmation gate for one interception point.
type Gate struct {
	cfg      *policy.Config
	renderer dialog.Renderer
	surface  string
	observer Observer
	notifier Notifier
	logger   *slog.Logger

	// startMu serializes Start so the open-or-fold decision and the
	// dialog installation happen as one step.
	startMu sync.Mutex

	mu      sync.Mutex
	state   model.GateState
	current *Ticket
}

// Option configures a Gate.
type Option func(*Gate)

// WithSurface names the interception point in logs and audit entries.
func WithSurface(name string) Option {
	return func(g *Gate) { g.surface = name }
}

// WithObserver receives every gate decision.
func WithObserver(o Observer) Option {
	return func(g *Gate) { g.observer = o }
}

// WithNotifier shows the cancel notice after a declined request.
func WithNotifier(n Notifier) Option {
	return func(g *Gate) { g.notifier = n }
}

// WithLogger sets the gate's logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Gate) { g.logger = l }
}

// New creates a Gate rendering prompts from cfg through r.
func New(cfg *policy.Config, r dialog.Renderer, opts ...Option) *Gate {
	g := &Gate{
		cfg:      cfg,
		renderer: r,
		surface:  "default",
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Config returns the policy the gate renders.
func (g *Gate) Config() *policy.Config { return g.cfg }

// Surface returns the interception point name.
func (g *Gate) Surface() string { return g.surface }

// State reports whether a dialog is currently open.
func (g *Gate) State() model.GateState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Request asks the user to affirm an action of the given kind and reports
// whether they did. A request arriving while a dialog for the same kind is
// open is folded into it and returns false; the in-flight request carries
// the action.
func (g *Gate) Request(ctx context.Context, kind model.ActionKind) (bool, error) {
	t, err := g.Start(ctx, kind)
	if err != nil {
		return false, err
	}
	return t.Wait(ctx)
}

// Start performs the synchronous half of Request: it either opens a dialog
// or folds into the open one. Callers on an event loop use Start on the
// loop and Wait elsewhere.
//
// While a dialog is open, a request of the same kind presses the open
// dialog's affirm control (a repeated trigger means "yes, I meant it") and
// returns a folded ticket. A request of a different kind replaces the open
// dialog, whose requester then sees a declined outcome.
func (g *Gate) Start(ctx context.Context, kind model.ActionKind) (*Ticket, error) {
	prompt, err := g.cfg.Prompt(kind)
	if err != nil {
		return nil, err
	}

	g.startMu.Lock()
	defer g.startMu.Unlock()

	g.mu.Lock()
	if cur := g.current; g.state == model.StateDialogOpen && cur != nil {
		if cur.kind == kind {
			g.mu.Unlock()
			g.renderer.PressAffirm()
			g.logger.Debug("request folded into open dialog", "surface", g.surface, "kind", kind)
			g.observe(ctx, Event{Kind: kind, Decision: model.DecisionFolded, Target: targetFrom(ctx)})
			return &Ticket{gate: g, kind: kind, target: targetFrom(ctx), folded: true, primary: cur}, nil
		}
		cur.superseded = true
	}

	t := &Ticket{gate: g, kind: kind, target: targetFrom(ctx), prompt: prompt, started: time.Now()}
	g.state = model.StateDialogOpen
	g.current = t
	g.mu.Unlock()

	t.modal = g.renderer.Open(ctx, prompt, func(model.Outcome) { g.finish(t) })
	g.logger.Debug("dialog opened", "surface", g.surface, "kind", kind, "modal", t.modal.ID())
	return t, nil
}

// finish runs synchronously with the dialog's teardown, so the gate is
// idle again before any waiter observes the outcome.
func (g *Gate) finish(t *Ticket) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.current == t {
		g.current = nil
		g.state = model.StateIdle
	}
}

func (g *Gate) observe(ctx context.Context, ev Event) {
	if g.observer == nil {
		return
	}
	ev.Surface = g.surface
	if ev.Time.IsZero() {
		ev.Time = time.Now().UTC()
	}
	g.observer.ObserveDecision(ctx, ev)
}

func (g *Gate) notifyCancelled(ctx context.Context, p policy.Prompt) {
	if g.notifier == nil || p.CancelNotice.Empty() {
		return
	}
	if err := g.notifier.Notify(ctx, p.CancelNotice); err != nil {
		if errors.Is(err, model.ErrHostUnavailable) {
			g.logger.Debug("cancel notice skipped", "surface", g.surface, "error", err)
			return
		}
		g.logger.Warn("cancel notice failed", "surface", g.surface, "error", err)
	}
}

// Ticket is one gate invocation.
type Ticket struct {
	gate    *Gate
	kind    model.ActionKind
	target  string
	prompt  policy.Prompt
	modal   *dialog.Modal
	folded  bool
	primary *Ticket
	started time.Time

	// superseded is guarded by gate.mu.
	superseded bool

	once     sync.Once
	affirmed bool
	err      error
}

// Kind returns the action kind the ticket was issued for.
func (t *Ticket) Kind() model.ActionKind { return t.kind }

// Target returns the target attached with WithTarget, if any.
func (t *Ticket) Target() string { return t.target }

// Folded reports whether the request was folded into an open dialog.
func (t *Ticket) Folded() bool { return t.folded }

// Primary returns the in-flight ticket a folded ticket was folded into, or
// nil. Callers that must undo their own side effect when the open dialog
// is declined wait on it.
func (t *Ticket) Primary() *Ticket { return t.primary }

// Modal returns the dialog backing the ticket, or nil when folded.
func (t *Ticket) Modal() *dialog.Modal { return t.modal }

// Wait blocks until the dialog resolves and reports whether the user
// affirmed. Folded tickets return false immediately. If ctx ends first the
// dialog is dismissed. The result is computed once.
func (t *Ticket) Wait(ctx context.Context) (bool, error) {
	if t.folded {
		return false, nil
	}
	t.once.Do(func() {
		out, err := t.modal.Wait(ctx)
		t.affirmed, t.err = out.Affirmed && err == nil, err

		g := t.gate
		g.mu.Lock()
		superseded := t.superseded
		g.mu.Unlock()

		ev := Event{Kind: t.kind, Target: t.target, Duration: time.Since(t.started), Err: err}
		switch {
		case err != nil:
			ev.Decision = model.DecisionError
		case t.affirmed:
			ev.Decision = model.DecisionAffirmed
		case superseded:
			ev.Decision = model.DecisionSuperseded
		default:
			ev.Decision = model.DecisionCancelled
		}
		g.logger.Info("affirmation resolved", "surface", g.surface, "kind", t.kind, "decision", ev.Decision)
		g.observe(ctx, ev)

		if ev.Decision == model.DecisionCancelled {
			g.notifyCancelled(ctx, t.prompt)
		}
	})
	return t.affirmed, t.err
}
