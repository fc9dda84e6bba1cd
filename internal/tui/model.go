// Package tui renders affirmation dialogs in a terminal with bubbletea.
package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/ppiankov/affirmgate/internal/dialog"
)

const defaultWidth = 72

type focus int

const (
	focusInput focus = iota
	focusAffirm
	focusCancel
)

type keyMap struct {
	Submit key.Binding
	Next   key.Binding
	Prev   key.Binding
	Cancel key.Binding
	Yes    key.Binding
	No     key.Binding
}

var keys = keyMap{
	Submit: key.NewBinding(key.WithKeys("enter")),
	Next:   key.NewBinding(key.WithKeys("tab")),
	Prev:   key.NewBinding(key.WithKeys("shift+tab")),
	Cancel: key.NewBinding(key.WithKeys("esc", "ctrl+c")),
	Yes:    key.NewBinding(key.WithKeys("y")),
	No:     key.NewBinding(key.WithKeys("n", "q")),
}

// closedMsg reports that the modal resolved, possibly from outside the
// program.
type closedMsg struct{}

// Model is the bubbletea model for one modal.
type Model struct {
	modal *dialog.Modal
	input textinput.Model
	focus focus
	width int
}

// NewModel builds a model over m.
func NewModel(m *dialog.Modal) Model {
	p := m.Prompt()
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = p.Placeholder
	ti.CharLimit = 64
	ti.Width = 40

	f := focusAffirm
	if p.RequiresToken() {
		f = focusInput
		ti.Focus()
	}
	return Model{modal: m, input: ti, focus: f, width: defaultWidth}
}

func (m Model) Init() tea.Cmd {
	wait := waitClosed(m.modal)
	if m.focus == focusInput {
		return tea.Batch(textinput.Blink, wait)
	}
	return wait
}

func waitClosed(md *dialog.Modal) tea.Cmd {
	return func() tea.Msg {
		<-md.Done()
		return closedMsg{}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case closedMsg:
		return m, tea.Quit
	case tea.WindowSizeMsg:
		if msg.Width > 0 && msg.Width < defaultWidth+6 {
			m.width = msg.Width - 6
		}
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	if m.focus == focusInput {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Cancel):
		m.modal.Cancel()
		return m, tea.Quit
	case key.Matches(msg, keys.Next):
		m.setFocus(m.cycle(1))
		return m, nil
	case key.Matches(msg, keys.Prev):
		m.setFocus(m.cycle(-1))
		return m, nil
	case key.Matches(msg, keys.Submit):
		if m.focus == focusCancel {
			m.modal.Cancel()
			return m, tea.Quit
		}
		if m.modal.Enter() {
			return m, tea.Quit
		}
		return m, nil
	}

	if m.focus != focusInput {
		switch {
		case key.Matches(msg, keys.Yes):
			if m.modal.Click() {
				return m, tea.Quit
			}
		case key.Matches(msg, keys.No):
			m.modal.Cancel()
			return m, tea.Quit
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.modal.SetInput(m.input.Value())
	return m, cmd
}

func (m Model) controls() []focus {
	if m.modal.Prompt().RequiresToken() {
		return []focus{focusInput, focusAffirm, focusCancel}
	}
	return []focus{focusAffirm, focusCancel}
}

func (m Model) cycle(step int) focus {
	cs := m.controls()
	i := 0
	for j, c := range cs {
		if c == m.focus {
			i = j
		}
	}
	return cs[(i+step+len(cs))%len(cs)]
}

func (m *Model) setFocus(f focus) {
	m.focus = f
	if f == focusInput {
		m.input.Focus()
	} else {
		m.input.Blur()
	}
}

func (m Model) View() string {
	if m.modal.Closed() {
		return ""
	}
	p := m.modal.Prompt()
	body := styleBody.Width(m.width)

	var b strings.Builder
	b.WriteString(styleTitle.Render(p.Title))
	b.WriteString("\n\n")
	for _, para := range p.Body {
		b.WriteString(body.Render(para))
		b.WriteString("\n\n")
	}

	if p.RequiresToken() {
		b.WriteString(m.input.View())
		b.WriteString("\n")
		if msg := m.modal.ValidationError(); msg != "" {
			b.WriteString(styleError.Render(msg))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	b.WriteString(m.button(labelOr(p.CancelLabel, "Cancel"), focusCancel, true))
	b.WriteString(" ")
	b.WriteString(m.button(labelOr(p.AffirmLabel, "Continue"), focusAffirm, m.modal.AffirmEnabled()))
	b.WriteString("\n\n")
	b.WriteString(styleHint.Render(m.hint()))

	return styleBox.Render(b.String()) + "\n"
}

func (m Model) button(label string, f focus, enabled bool) string {
	switch {
	case !enabled:
		return styleOff.Render(label)
	case m.focus == f:
		return styleFocused.Render("[" + label + "]")
	default:
		return styleButton.Render(label)
	}
}

func (m Model) hint() string {
	if m.modal.Prompt().RequiresToken() {
		return "enter: submit • tab: switch • esc: cancel"
	}
	return "y/enter: continue • n/esc: cancel"
}

func labelOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
