package inbox

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ppiankov/affirmgate/internal/gate"
	"github.com/ppiankov/affirmgate/internal/intercept"
	"github.com/ppiankov/affirmgate/internal/model"
)

// AcceptFunc receives files the user affirmed.
type AcceptFunc func(ctx context.Context, files []string) error

// Gatekeeper asks for upload affirmation per batch. Declined batches are
// deleted so the transfer is undone.
type Gatekeeper struct {
	gate   intercept.Requester
	accept AcceptFunc
	logger *slog.Logger
}

// NewGatekeeper creates a gatekeeper. accept may be nil.
func NewGatekeeper(r intercept.Requester, accept AcceptFunc, logger *slog.Logger) *Gatekeeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gatekeeper{gate: r, accept: accept, logger: logger}
}

// Handle gates one batch. It satisfies BatchFunc.
func (k *Gatekeeper) Handle(ctx context.Context, batch []string) {
	if len(batch) == 0 {
		return
	}
	names := make([]string, len(batch))
	for i, p := range batch {
		names[i] = filepath.Base(p)
	}

	ok, err := k.gate.Request(gate.WithTarget(ctx, strings.Join(names, ",")), model.KindUpload)
	switch {
	case err != nil && ctx.Err() != nil:
		// Shutting down: leave the files for the next ScanExisting.
		return
	case err != nil:
		k.logger.Error("upload affirmation failed, removing files", "files", names, "error", err)
		k.remove(batch)
	case !ok:
		k.logger.Info("upload cancelled, removing files", "files", names)
		k.remove(batch)
	case k.accept != nil:
		if err := k.accept(ctx, batch); err != nil {
			k.logger.Warn("accept hook failed", "files", names, "error", err)
		}
	}
}

func (k *Gatekeeper) remove(batch []string) {
	for _, p := range batch {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			k.logger.Warn("remove declined upload", "path", p, "error", err)
		}
	}
}
