package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/nhle/jira-import/internal/model"
	"github.com/nhle/jira-import/internal/theme"
)

// customJQL is the filter choice that opens the JQL input.
const customJQL = -1

// customJQLName names filters typed in by the user.
const customJQLName = "Custom JQL"

// SelectFilter lets the user pick a favourite filter or type a JQL query,
// then fetches the filter's issues.
func (d *Dialogs) SelectFilter(ctx context.Context) (model.Filter, error) {
	var favourites []model.Filter
	err := runBusy(ctx, "Loading favourite filters", d.keys, func(ctx context.Context) error {
		var err error
		favourites, err = d.filters.FavouriteFilters(ctx)
		return err
	})
	if err != nil {
		return model.Filter{}, err
	}

	choice := customJQL
	if len(favourites) > 0 {
		choice = 0
	}
	err = d.run(ctx, theme.Form(),
		huh.NewGroup(
			huh.NewSelect[int]().
				Title("JIRA Filter").
				Description("Issues matching the filter can be imported as test cases").
				Options(filterOptions(favourites)...).
				Value(&choice),
		),
	)
	if err != nil {
		return model.Filter{}, err
	}

	filter, ok := pickFilter(favourites, choice)
	if !ok {
		var jql string
		err = d.run(ctx, theme.Form(),
			huh.NewGroup(
				huh.NewInput().
					Title("JQL").
					Placeholder("project = QA AND issuetype = Test").
					Validate(requireValue("JQL")).
					Value(&jql),
			),
		)
		if err != nil {
			return model.Filter{}, err
		}
		filter = model.Filter{Name: customJQLName, JQL: strings.TrimSpace(jql)}
	}

	var resolved model.Filter
	err = runBusy(ctx, fmt.Sprintf("Fetching issues for %s", filter.Name), d.keys, func(ctx context.Context) error {
		var err error
		resolved, err = d.filters.ResolveFilter(ctx, filter)
		return err
	})
	if err != nil {
		return model.Filter{}, err
	}
	d.log.Info("filter resolved", "filter", resolved.Name, "issues", len(resolved.Issues))
	return resolved, nil
}

// filterOptions lists favourites by index, followed by the custom JQL entry.
func filterOptions(favourites []model.Filter) []huh.Option[int] {
	opts := make([]huh.Option[int], 0, len(favourites)+1)
	for i, f := range favourites {
		opts = append(opts, huh.NewOption(f.Name, i))
	}
	return append(opts, huh.NewOption("Custom JQL…", customJQL))
}

// pickFilter returns the favourite at choice; ok is false for custom JQL.
func pickFilter(favourites []model.Filter, choice int) (model.Filter, bool) {
	if choice < 0 || choice >= len(favourites) {
		return model.Filter{}, false
	}
	return favourites[choice], true
}
