// Package cliui holds the terminal styles shared by the index tools.
package cliui

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
)

var (
	primaryColor   = lipgloss.AdaptiveColor{Light: "#5A56E0", Dark: "#7C79FF"}
	secondaryColor = lipgloss.AdaptiveColor{Light: "#EE6FF8", Dark: "#F780FF"}
	successColor   = lipgloss.AdaptiveColor{Light: "#02BA84", Dark: "#02D98E"}
	errorColor     = lipgloss.AdaptiveColor{Light: "#FF5F56", Dark: "#FF6B6B"}
	mutedColor     = lipgloss.AdaptiveColor{Light: "#9B9B9B", Dark: "#5C5C5C"}

	TitleStyle = lipgloss.NewStyle().
			Foreground(primaryColor).
			Bold(true).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(primaryColor).
			Padding(0, 1)

	LabelStyle = lipgloss.NewStyle().
			Foreground(secondaryColor).
			Bold(true).
			Width(14)

	OKStyle    = lipgloss.NewStyle().Foreground(successColor).Bold(true)
	FailStyle  = lipgloss.NewStyle().Foreground(errorColor).Bold(true)
	MutedStyle = lipgloss.NewStyle().Foreground(mutedColor)
)

// Field prints one "label  value" row.
func Field(w io.Writer, label string, value any) {
	fmt.Fprintf(w, "%s %v\n", LabelStyle.Render(label), value)
}
