package cli

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
)

// Theme is the terminal color scheme.
type Theme struct {
	Primary   lipgloss.Color
	Assistant lipgloss.Color
	Dim       lipgloss.Color
	Error     lipgloss.Color
}

// DefaultTheme is bright green on the terminal default.
var DefaultTheme = Theme{
	Primary:   lipgloss.Color("#00ff9f"),
	Assistant: lipgloss.Color("#7aa2f7"),
	Dim:       lipgloss.Color("#6e7681"),
	Error:     lipgloss.Color("#ff5f5f"),
}

// Styles are the rendered styles of a Theme.
type Styles struct {
	Title     lipgloss.Style
	User      lipgloss.Style
	Assistant lipgloss.Style
	Tool      lipgloss.Style
	Dim       lipgloss.Style
	Error     lipgloss.Style
}

// NewStyles derives styles from t.
func NewStyles(t Theme) Styles {
	return Styles{
		Title:     lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		User:      lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		Assistant: lipgloss.NewStyle().Bold(true).Foreground(t.Assistant),
		Tool:      lipgloss.NewStyle().Italic(true).Foreground(t.Dim),
		Dim:       lipgloss.NewStyle().Foreground(t.Dim),
		Error:     lipgloss.NewStyle().Bold(true).Foreground(t.Error),
	}
}

// Default is NewStyles(DefaultTheme).
var Default = NewStyles(DefaultTheme)

// Speaker renders a role label such as "you>" or "assistant>".
func (s Styles) Speaker(role string) string {
	switch role {
	case "user":
		return s.User.Render("you>")
	case "assistant":
		return s.Assistant.Render("assistant>")
	default:
		return s.Tool.Render(role + ">")
	}
}

// PrintSuccess prints a check-marked message to stdout.
func PrintSuccess(format string, args ...any) {
	fmt.Println(Default.Title.Render("✓") + " " + fmt.Sprintf(format, args...))
}

// PrintInfo prints a dimmed message to stdout.
func PrintInfo(format string, args ...any) {
	fmt.Println(Default.Dim.Render(fmt.Sprintf(format, args...)))
}

// PrintError prints an error message to stderr.
func PrintError(format string, args ...any) {
	fmt.Fprintln(os.Stderr, Default.Error.Render("Error:")+" "+fmt.Sprintf(format, args...))
}
