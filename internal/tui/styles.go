package tui

import "github.com/charmbracelet/lipgloss"

var (
	colorFg     = lipgloss.Color("#ebdbb2")
	colorDim    = lipgloss.Color("#928374")
	colorRed    = lipgloss.Color("#fb4934")
	colorYellow = lipgloss.Color("#fabd2f")
	colorHeader = lipgloss.Color("#fe8019")
	colorBg     = lipgloss.Color("#3c3836")
)

var (
	styleBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorYellow).
			Padding(1, 2)
	styleTitle   = lipgloss.NewStyle().Foreground(colorHeader).Bold(true)
	styleBody    = lipgloss.NewStyle().Foreground(colorFg)
	styleError   = lipgloss.NewStyle().Foreground(colorRed)
	styleHint    = lipgloss.NewStyle().Foreground(colorDim)
	styleButton  = lipgloss.NewStyle().Foreground(colorFg).Padding(0, 2)
	styleFocused = styleButton.Background(colorBg).Bold(true)
	styleOff     = styleButton.Foreground(colorDim).Strikethrough(true)
)
