package dialog

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

// LinePresenter renders a modal as plain text and reads the answer line by
// line. It is the fallback when no terminal UI is available. One reader
// serves every modal, so a line not consumed by one modal is handed to the
// next. Use it by pointer.
type LinePresenter struct {
	In  io.Reader
	Out io.Writer

	once  sync.Once
	lines chan string
}

// readLines starts the shared reader on first use. The channel closes at
// EOF.
func (p *LinePresenter) readLines() <-chan string {
	p.once.Do(func() {
		p.lines = make(chan string)
		go func() {
			defer close(p.lines)
			if p.In == nil {
				return
			}
			sc := bufio.NewScanner(p.In)
			for sc.Scan() {
				p.lines <- strings.TrimRight(sc.Text(), "\r")
			}
		}()
	})
	return p.lines
}

// Present prints the prompt and reads lines until the modal resolves. For a
// token prompt each line is the typed token; a blank line or EOF cancels.
// For a plain prompt "y"/"yes" affirms and anything else cancels.
func (p *LinePresenter) Present(ctx context.Context, m *Modal) {
	prompt := m.Prompt()
	out := p.Out
	if out == nil {
		out = io.Discard
	}

	fmt.Fprintf(out, "\n%s\n\n", prompt.Title)
	for _, para := range prompt.Body {
		fmt.Fprintf(out, "%s\n\n", para)
	}

	lines := p.readLines()

	for {
		if prompt.RequiresToken() {
			label := prompt.Placeholder
			if label == "" {
				label = fmt.Sprintf("Type %q to continue", prompt.Token)
			}
			fmt.Fprintf(out, "%s (blank to cancel): ", label)
		} else {
			fmt.Fprintf(out, "%s? [y/N]: ", labelOr(prompt.AffirmLabel, "Continue"))
		}

		select {
		case <-ctx.Done():
			m.Dismiss()
			return
		case <-m.Done():
			fmt.Fprintln(out)
			return
		case line, ok := <-lines:
			if !ok {
				m.Cancel()
				return
			}
			if !prompt.RequiresToken() {
				answer := strings.ToLower(strings.TrimSpace(line))
				if answer == "y" || answer == "yes" {
					m.Affirm()
				} else {
					m.Cancel()
				}
				return
			}
			if line == "" {
				m.Cancel()
				return
			}
			m.SetInput(line)
			if m.Affirm() {
				return
			}
			fmt.Fprintf(out, "%s\n", m.ValidationError())
		}
	}
}

func labelOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
