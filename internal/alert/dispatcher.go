package alert

import (
	"context"
	"log/slog"
	"time"
)

// deliveryTimeout bounds one webhook delivery including retries.
const deliveryTimeout = 30 * time.Second

// Dispatcher fans out alert events to matching webhook configurations.
type Dispatcher struct {
	configs []AlertConfig
	logger  *slog.Logger
}

// NewDispatcher creates a Dispatcher from webhook configurations.
// Returns nil if configs is empty (callers should nil-check).
func NewDispatcher(configs []AlertConfig) *Dispatcher {
	if len(configs) == 0 {
		return nil
	}
	return &Dispatcher{configs: configs, logger: slog.Default()}
}

// Dispatch sends the event to all webhooks whose Events list contains the
// event's decision. Fires goroutines and does not block the caller.
func (d *Dispatcher) Dispatch(event AlertEvent) {
	if d == nil {
		return
	}
	for _, cfg := range d.configs {
		if matches(cfg.Events, event) {
			go func(cfg AlertConfig) {
				ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
				defer cancel()
				if err := Send(ctx, cfg, event); err != nil {
					d.logger.Warn("alert delivery failed", "url", cfg.URL, "decision", event.Decision, "error", err)
				}
			}(cfg)
		}
	}
}

func matches(events []string, event AlertEvent) bool {
	for _, e := range events {
		if e == event.Decision || e == "*" {
			return true
		}
	}
	return false
}
