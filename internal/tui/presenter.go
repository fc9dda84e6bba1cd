package tui

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ppiankov/affirmgate/internal/dialog"
	"github.com/ppiankov/affirmgate/internal/model"
	"github.com/ppiankov/affirmgate/internal/policy"
)

// Presenter runs each modal as a bubbletea program.
type Presenter struct {
	In  io.Reader
	Out io.Writer
}

var _ dialog.Presenter = Presenter{}

// Present blocks until the program exits. A modal still open at that point
// is dismissed.
func (p Presenter) Present(ctx context.Context, m *dialog.Modal) {
	opts := []tea.ProgramOption{tea.WithContext(ctx)}
	if p.In != nil {
		opts = append(opts, tea.WithInput(p.In))
	}
	if p.Out != nil {
		opts = append(opts, tea.WithOutput(p.Out))
	}

	if _, err := tea.NewProgram(NewModel(m), opts...).Run(); err != nil {
		slog.Debug("dialog program exited", "modal", m.ID(), "error", err)
	}
	m.Dismiss()
}

// Notifier prints notices as a styled box.
type Notifier struct {
	Out io.Writer
}

// Notify writes n to the notifier's output. Without an output it reports
// model.ErrHostUnavailable.
func (n Notifier) Notify(_ context.Context, notice policy.Notice) error {
	if n.Out == nil {
		return model.ErrHostUnavailable
	}
	var b strings.Builder
	if notice.Title != "" {
		b.WriteString(styleTitle.Render(notice.Title))
	}
	if notice.Body != "" {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(styleBody.Width(defaultWidth).Render(notice.Body))
	}
	_, err := fmt.Fprintln(n.Out, styleBox.Render(b.String()))
	return err
}
