package capture

import (
	"context"
	"log/slog"

	"github.com/ppiankov/affirmgate/internal/gate"
	"github.com/ppiankov/affirmgate/internal/model"
)

// Interceptor holds download clicks and upload selections on a document
// until the gate affirms them.
type Interceptor struct {
	ctx     context.Context
	doc     *Document
	gate    *gate.Gate
	matcher Matcher
	replay  *ReplayController
	logger  *slog.Logger
	remove  []func()
}

// Option configures an Interceptor.
type Option func(*Interceptor)

// WithMatcher overrides the matcher derived from the gate's policy.
func WithMatcher(m Matcher) Option {
	return func(i *Interceptor) { i.matcher = m }
}

// WithLogger sets the interceptor's logger.
func WithLogger(l *slog.Logger) Option {
	return func(i *Interceptor) { i.logger = l }
}

// Attach installs capture listeners for clicks and file selections on doc.
func Attach(ctx context.Context, doc *Document, g *gate.Gate, opts ...Option) *Interceptor {
	cfg := g.Config()
	i := &Interceptor{
		ctx:     ctx,
		doc:     doc,
		gate:    g,
		matcher: NewMatcher(cfg.Capture),
		replay:  NewReplayController(doc, cfg.ReplayWindow),
		logger:  slog.Default(),
	}
	for _, o := range opts {
		o(i)
	}
	i.remove = append(i.remove,
		doc.AddEventListener("click", i.onClick, true),
		doc.AddEventListener("change", i.onChange, true),
	)
	return i
}

// Detach removes the interceptor's listeners.
func (i *Interceptor) Detach() {
	for _, rm := range i.remove {
		rm()
	}
	i.remove = nil
}

// Replayer returns the interceptor's replay controller.
func (i *Interceptor) Replayer() *ReplayController { return i.replay }

func (i *Interceptor) onClick(ev *Event) {
	target := ev.Target
	if !i.matcher.DownloadControl(target) {
		return
	}
	if i.replay.Armed(target) {
		return
	}
	ev.PreventDefault()
	ev.StopPropagation()

	t, err := i.gate.Start(gate.WithTarget(i.ctx, target.Text), model.KindDownload)
	if err != nil {
		i.logger.Error("download gate failed", "error", err)
		return
	}
	if t.Folded() {
		return
	}

	go func() {
		ok, err := t.Wait(i.ctx)
		if err != nil || !ok {
			return
		}
		i.doc.Loop().Post(func() { i.replay.Replay(target) })
	}()
}

func (i *Interceptor) onChange(ev *Event) {
	target := ev.Target
	if !i.matcher.UploadInput(target) || len(target.Files) == 0 {
		return
	}

	t, err := i.gate.Start(gate.WithTarget(i.ctx, target.Files[0]), model.KindUpload)
	if err != nil {
		i.logger.Error("upload gate failed", "error", err)
		target.ClearFiles()
		return
	}
	if t.Folded() {
		// The selection rides on the open dialog's decision.
		t = t.Primary()
		if t == nil {
			return
		}
	}

	go func() {
		ok, err := t.Wait(i.ctx)
		if ok && err == nil {
			return
		}
		i.doc.Loop().Post(target.ClearFiles)
	}()
}
