package approval

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ppiankov/affirmgate/internal/dialog"
)

const pollDefault = time.Second

// Presenter shows modals by publishing them to a Store and applying the
// answers written there.
type Presenter struct {
	store  *Store
	poll   time.Duration
	logger *slog.Logger
}

// PresenterOption configures a Presenter.
type PresenterOption func(*Presenter)

// WithPollInterval sets how often the store is re-read when no change
// notification arrives.
func WithPollInterval(d time.Duration) PresenterOption {
	return func(p *Presenter) { p.poll = d }
}

// WithLogger sets the presenter's logger.
func WithLogger(l *slog.Logger) PresenterOption {
	return func(p *Presenter) { p.logger = l }
}

// NewPresenter creates a presenter backed by store.
func NewPresenter(store *Store, opts ...PresenterOption) *Presenter {
	p := &Presenter{store: store, poll: pollDefault, logger: slog.Default()}
	for _, o := range opts {
		o(p)
	}
	return p
}

var _ dialog.Presenter = (*Presenter)(nil)

// Present publishes m under its ID and blocks until it resolves. The final
// outcome is recorded in the store.
func (p *Presenter) Present(ctx context.Context, m *dialog.Modal) {
	key := m.ID()
	if err := p.store.Request(key, m.Prompt()); err != nil {
		p.logger.Error("publish prompt failed", "key", key, "error", err)
		m.Dismiss()
		return
	}
	p.logger.Info("prompt pending", "key", key, "title", m.Prompt().Title)

	var events <-chan fsnotify.Event
	if w, err := fsnotify.NewWatcher(); err == nil {
		defer func() { _ = w.Close() }()
		if err := w.Add(p.store.Dir()); err == nil {
			events = w.Events
		} else {
			p.logger.Debug("watch pending dir failed, polling", "error", err)
		}
	}

	ticker := time.NewTicker(p.poll)
	defer ticker.Stop()

	file := key + ".json"
	stop := ctx.Done()
	for {
		select {
		case <-stop:
			stop = nil
			m.Dismiss()
		case <-m.Done():
			if err := p.store.Resolve(key, m.Outcome().Affirmed); err != nil {
				p.logger.Warn("record outcome failed", "key", key, "error", err)
			}
			return
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if filepath.Base(ev.Name) == file {
				p.apply(m, key)
			}
		case <-ticker.C:
			p.apply(m, key)
		}
	}
}

// apply feeds a submitted answer or a cancellation into m.
func (p *Presenter) apply(m *dialog.Modal, key string) {
	e, err := p.store.Get(key)
	if err != nil {
		return
	}
	switch e.Status {
	case StatusSubmitted:
		m.SetInput(e.Input)
		if m.Affirm() {
			return
		}
		if err := p.store.Reject(key, m.ValidationError()); err != nil {
			p.logger.Warn("reject answer failed", "key", key, "error", err)
		}
	case StatusCancelled:
		m.Cancel()
	}
}
