// Package ui provides the small set of styles used by CLI output.
package ui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

var (
	accentStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func init() {
	// Respect NO_COLOR and non-terminal output.
	if os.Getenv("NO_COLOR") != "" {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
}

// RenderAccent styles headline text.
func RenderAccent(s string) string { return accentStyle.Render(s) }

// RenderSuccess styles good news.
func RenderSuccess(s string) string { return successStyle.Render(s) }

// RenderWarning styles warnings.
func RenderWarning(s string) string { return warningStyle.Render(s) }

// RenderError styles failures.
func RenderError(s string) string { return errorStyle.Render(s) }

// RenderMuted styles secondary detail.
func RenderMuted(s string) string { return mutedStyle.Render(s) }
