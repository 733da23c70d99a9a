package ui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/huh"

	"github.com/nhle/jira-import/internal/model"
	"github.com/nhle/jira-import/internal/theme"
)

// issueListHeight is the number of rows shown by the issue dialog.
const issueListHeight = 15

// SelectIssues lets the user choose which issues to import into folder.
// An empty selection is a valid answer.
func (d *Dialogs) SelectIssues(ctx context.Context, folder model.Folder, issues []model.Issue) ([]model.Issue, error) {
	if len(issues) == 0 {
		d.log.Info("filter matched no issues")
		return nil, nil
	}

	var chosen []string
	err := d.run(ctx, theme.Form(),
		huh.NewGroup(
			huh.NewMultiSelect[string]().
				Title(fmt.Sprintf("Import into %s", folder)).
				Description(fmt.Sprintf("%d issues", len(issues))).
				Options(issueOptions(issues)...).
				Filterable(true).
				Height(issueListHeight).
				Value(&chosen),
		),
	)
	if err != nil {
		return nil, err
	}
	return pickIssues(issues, chosen), nil
}

// issueLabel renders an issue as "KEY - summary".
func issueLabel(issue model.Issue) string {
	if issue.Fields == nil || issue.Fields.Summary == "" {
		return issue.Key
	}
	return fmt.Sprintf("%s - %s", issue.Key, issue.Fields.Summary)
}

func issueOptions(issues []model.Issue) []huh.Option[string] {
	opts := make([]huh.Option[string], 0, len(issues))
	for _, issue := range issues {
		opts = append(opts, huh.NewOption(issueLabel(issue), issue.Key))
	}
	return opts
}

// pickIssues returns the issues whose keys are in keys, in filter order.
func pickIssues(issues []model.Issue, keys []string) []model.Issue {
	want := make(map[string]bool, len(keys))
	for _, k := range keys {
		want[k] = true
	}

	picked := make([]model.Issue, 0, len(keys))
	for _, issue := range issues {
		if want[issue.Key] {
			picked = append(picked, issue)
		}
	}
	return picked
}
