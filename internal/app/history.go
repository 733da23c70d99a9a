package app

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/nhle/jira-import/internal/model"
	"github.com/nhle/jira-import/internal/theme"
)

const (
	historyTimeLayout = "2006-01-02 15:04"
	statusColumn      = 4
)

// renderHistory lays out import runs as a table, newest first.
func renderHistory(runs []model.ImportRun) string {
	if len(runs) == 0 {
		return theme.HelpStyle.Render("No imports yet.")
	}

	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		rows = append(rows, []string{
			r.StartedAt.Local().Format(historyTimeLayout),
			r.Filter,
			model.Folder{Path: r.Folder}.String(),
			fmt.Sprintf("%d/%d", r.CreatedCount, r.IssueCount),
			string(r.Status),
			r.Error,
		})
	}

	header := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorBlue).Padding(0, 1)
	cell := lipgloss.NewStyle().Padding(0, 1)

	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(theme.ColorBorder)).
		Headers("Started", "Filter", "Folder", "Created", "Status", "Error").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return header
			}
			if col == statusColumn && row >= 0 && row < len(runs) {
				return cell.Inherit(statusStyle(runs[row].Status))
			}
			return cell
		}).
		Render()
}

func statusStyle(s model.ImportStatus) lipgloss.Style {
	switch s {
	case model.ImportOK:
		return lipgloss.NewStyle().Foreground(theme.ColorGreen)
	case model.ImportCanceled, model.ImportRunning:
		return lipgloss.NewStyle().Foreground(theme.ColorYellow)
	default:
		return lipgloss.NewStyle().Foreground(theme.ColorRed)
	}
}
