package theme

import (
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/jira-import/internal/job"
)

// Adaptive color pairs (dark terminal value, light terminal value).
var (
	ColorBlue   = lipgloss.AdaptiveColor{Dark: "#5B9BD5", Light: "#2B6CB0"}
	ColorGreen  = lipgloss.AdaptiveColor{Dark: "#6BCB77", Light: "#2F855A"}
	ColorYellow = lipgloss.AdaptiveColor{Dark: "#FFD93D", Light: "#B7791F"}
	ColorRed    = lipgloss.AdaptiveColor{Dark: "#FF6B6B", Light: "#C53030"}
	ColorGray   = lipgloss.AdaptiveColor{Dark: "#868E96", Light: "#718096"}
	ColorWhite  = lipgloss.AdaptiveColor{Dark: "#F8F9FA", Light: "#1A202C"}
	ColorSubtle = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#CBD5E0"}
	ColorBorder = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#E2E8F0"}
)

// HeaderStyle is used for the project header and the progress title.
var HeaderStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite).
	Background(ColorBlue).
	Padding(0, 1)

// FolderStyle renders folder rows in the explorer.
var FolderStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorBlue)

// ListItemStyle is the base style for test case rows.
var ListItemStyle = lipgloss.NewStyle().
	PaddingLeft(2)

// SelectedItemStyle highlights test cases created by the last import.
var SelectedItemStyle = lipgloss.NewStyle().
	PaddingLeft(1).
	Bold(true).
	Foreground(ColorGreen).
	Border(lipgloss.NormalBorder(), false, false, false, true).
	BorderForeground(ColorGreen)

// LinkStyle renders the linked issue key next to a test case.
var LinkStyle = lipgloss.NewStyle().
	Foreground(ColorGray)

// HelpStyle is used for keyboard shortcut hints and help text.
var HelpStyle = lipgloss.NewStyle().
	Foreground(ColorGray).
	Italic(true)

// BorderStyle provides a standard rounded border for panels.
var BorderStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(ColorBorder).
	Padding(0, 1)

// StatusStyle returns a color-coded style for a job result.
func StatusStyle(code job.Code) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true)

	switch code {
	case job.OK:
		return base.Foreground(ColorGreen)
	case job.Canceled:
		return base.Foreground(ColorYellow)
	default:
		return base.Foreground(ColorRed)
	}
}

// Form returns the huh theme used by every dialog.
func Form() *huh.Theme {
	t := huh.ThemeCharm()
	t.Focused.Title = t.Focused.Title.Foreground(ColorBlue)
	t.Focused.NoteTitle = t.Focused.NoteTitle.Foreground(ColorBlue)
	t.Focused.ErrorMessage = t.Focused.ErrorMessage.Foreground(ColorRed)
	return t
}

// ErrorForm is Form with the note title in the error color.
func ErrorForm() *huh.Theme {
	t := Form()
	t.Focused.NoteTitle = t.Focused.NoteTitle.Foreground(ColorRed)
	return t
}
