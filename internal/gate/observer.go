package gate

import (
	"context"
	"log/slog"
	"time"

	"github.com/ppiankov/affirmgate/internal/alert"
	"github.com/ppiankov/affirmgate/internal/audit"
	"github.com/ppiankov/affirmgate/internal/model"
)

// Event describes one gate decision.
type Event struct {
	Time     time.Time
	Surface  string
	Kind     model.ActionKind
	Decision model.Decision
	Target   string
	Duration time.Duration
	Err      error
}

// Observer receives gate decisions.
type Observer interface {
	ObserveDecision(ctx context.Context, ev Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, ev Event)

// ObserveDecision calls f(ctx, ev).
func (f ObserverFunc) ObserveDecision(ctx context.Context, ev Event) { f(ctx, ev) }

// Observers fans an event out to every non-nil observer in order.
type Observers []Observer

// ObserveDecision forwards ev to each observer.
func (os Observers) ObserveDecision(ctx context.Context, ev Event) {
	for _, o := range os {
		if o != nil {
			o.ObserveDecision(ctx, ev)
		}
	}
}

type logObserver struct {
	logger *slog.Logger
}

// NewLogObserver writes decisions as structured log records.
func NewLogObserver(l *slog.Logger) Observer {
	if l == nil {
		l = slog.Default()
	}
	return &logObserver{logger: l}
}

func (o *logObserver) ObserveDecision(ctx context.Context, ev Event) {
	attrs := []any{
		"surface", ev.Surface,
		"kind", string(ev.Kind),
		"decision", string(ev.Decision),
		"duration_ms", ev.Duration.Milliseconds(),
	}
	if ev.Target != "" {
		attrs = append(attrs, "target", ev.Target)
	}
	if ev.Err != nil {
		attrs = append(attrs, "error", ev.Err.Error())
		o.logger.ErrorContext(ctx, "gate_decision", attrs...)
		return
	}
	o.logger.InfoContext(ctx, "gate_decision", attrs...)
}

// AuditObserver appends decisions to a hash-chained audit log.
type AuditObserver struct {
	Log        *audit.Log
	PolicyHash string
}

// ObserveDecision records ev. Write failures are logged, not returned.
func (o AuditObserver) ObserveDecision(ctx context.Context, ev Event) {
	if o.Log == nil {
		return
	}
	err := o.Log.Record(audit.AuditEntry{
		Timestamp:  ev.Time.Format(audit.TimeFormat),
		Surface:    ev.Surface,
		Kind:       string(ev.Kind),
		Decision:   string(ev.Decision),
		Target:     ev.Target,
		PolicyHash: o.PolicyHash,
	})
	if err != nil {
		slog.Default().WarnContext(ctx, "audit record failed", "error", err)
	}
}

// AlertObserver forwards decisions to webhook alerts.
type AlertObserver struct {
	Dispatcher *alert.Dispatcher
	PolicyHash string
}

// ObserveDecision dispatches ev without blocking.
func (o AlertObserver) ObserveDecision(_ context.Context, ev Event) {
	o.Dispatcher.Dispatch(alert.AlertEvent{
		Timestamp:  ev.Time.Format(audit.TimeFormat),
		Surface:    ev.Surface,
		Kind:       string(ev.Kind),
		Decision:   string(ev.Decision),
		Target:     ev.Target,
		PolicyHash: o.PolicyHash,
	})
}
