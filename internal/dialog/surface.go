package dialog

import (
	"context"
	"log/slog"
	"sync"

	"github.com/ppiankov/affirmgate/internal/model"
	"github.com/ppiankov/affirmgate/internal/policy"
)

// Presenter drives user interaction for one modal until it resolves.
// Present runs in its own goroutine and should return once m.Done() closes
// or ctx ends.
type Presenter interface {
	Present(ctx context.Context, m *Modal)
}

// PresenterFunc adapts a function to Presenter.
type PresenterFunc func(ctx context.Context, m *Modal)

// Present calls f(ctx, m).
func (f PresenterFunc) Present(ctx context.Context, m *Modal) { f(ctx, m) }

// Renderer is the dialog contract the gate depends on.
type Renderer interface {
	// Open shows a new modal for p. onResolve, if set, runs synchronously
	// with the modal's teardown, before Done closes.
	Open(ctx context.Context, p policy.Prompt, onResolve func(model.Outcome)) *Modal

	// PressAffirm activates the affirm control of the open modal, if any.
	PressAffirm() bool
}

// Surface is the single modal layer of a UI. At most one modal is open on
// it at any time: opening a modal removes any prior one first.
type Surface struct {
	presenter Presenter
	logger    *slog.Logger

	mu      sync.Mutex
	current *Modal
}

// SurfaceOption configures a Surface.
type SurfaceOption func(*Surface)

// WithLogger sets the logger used for surface diagnostics.
func WithLogger(l *slog.Logger) SurfaceOption {
	return func(s *Surface) { s.logger = l }
}

// NewSurface creates a Surface that hands every modal to p.
func NewSurface(p Presenter, opts ...SurfaceOption) *Surface {
	s := &Surface{presenter: p, logger: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	return s
}

var _ Renderer = (*Surface)(nil)

// Open installs a new modal and starts presenting it.
func (s *Surface) Open(ctx context.Context, p policy.Prompt, onResolve func(model.Outcome)) *Modal {
	m := newModal(p, func(m *Modal) {
		s.remove(m)
		if onResolve != nil {
			onResolve(m.Outcome())
		}
	})

	s.mu.Lock()
	prev := s.current
	s.current = m
	s.mu.Unlock()

	if prev != nil {
		s.logger.Debug("removing prior modal", "modal", prev.ID())
		prev.Dismiss()
	}

	if s.presenter != nil {
		go s.presenter.Present(ctx, m)
	}
	return m
}

// Show opens a modal for p and waits for its outcome.
func (s *Surface) Show(ctx context.Context, p policy.Prompt) (model.Outcome, error) {
	return s.Open(ctx, p, nil).Wait(ctx)
}

// Current returns the open modal, or nil.
func (s *Surface) Current() *Modal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// OpenCount returns the number of modals on the surface (0 or 1).
func (s *Surface) OpenCount() int {
	if s.Current() == nil {
		return 0
	}
	return 1
}

// PressAffirm clicks the affirm control of the open modal.
func (s *Surface) PressAffirm() bool {
	m := s.Current()
	if m == nil {
		return false
	}
	m.Click()
	return true
}

func (s *Surface) remove(m *Modal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == m {
		s.current = nil
	}
}
