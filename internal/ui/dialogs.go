// Package ui holds the terminal dialogs, the progress view and the
// explorer used by the JIRA import.
package ui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/nhle/jira-import/internal/keys"
	"github.com/nhle/jira-import/internal/model"
	"github.com/nhle/jira-import/internal/platform"
	"github.com/nhle/jira-import/internal/theme"
)

// FilterSource supplies JIRA filters and their issues.
type FilterSource interface {
	FavouriteFilters(ctx context.Context) ([]model.Filter, error)
	ResolveFilter(ctx context.Context, filter model.Filter) (model.Filter, error)
}

// Dialogs implements the import dialogs as huh forms.
type Dialogs struct {
	filters FilterSource
	keys    *keys.KeyMap
	log     *slog.Logger

	// Overridable for tests.
	folders      func(project model.Project) ([]model.Folder, error)
	createFolder func(project model.Project, rel string) (model.Folder, error)
}

// NewDialogs creates the dialogs backed by filters.
func NewDialogs(filters FilterSource, k *keys.KeyMap) *Dialogs {
	return &Dialogs{
		filters:      filters,
		keys:         k,
		log:          slog.With("component", "ui"),
		folders:      platform.Folders,
		createFolder: platform.CreateFolder,
	}
}

// run shows a form built from groups. An aborted form yields
// model.ErrCanceled.
func (d *Dialogs) run(ctx context.Context, th *huh.Theme, groups ...*huh.Group) error {
	form := huh.NewForm(groups...).
		WithTheme(th).
		WithKeyMap(d.keys.Form())

	err := form.RunWithContext(ctx)
	if errors.Is(err, huh.ErrUserAborted) {
		return model.ErrCanceled
	}
	return err
}

// ShowError shows a modal note and waits for the user to dismiss it.
func (d *Dialogs) ShowError(title, message string) {
	err := d.run(context.Background(), theme.ErrorForm(),
		huh.NewGroup(
			huh.NewNote().
				Title(title).
				Description(message).
				Next(true).
				NextLabel("OK"),
		),
	)
	if err != nil && !errors.Is(err, model.ErrCanceled) {
		d.log.Error("showing error dialog failed", "title", title, "message", message, "error", err)
	}
}

// PromptToken asks for the API token used with baseURL.
func (d *Dialogs) PromptToken(ctx context.Context, baseURL string) (string, error) {
	var token string
	err := d.run(ctx, theme.Form(),
		huh.NewGroup(
			huh.NewInput().
				Title("API Token").
				Description(fmt.Sprintf("Personal access token for %s", baseURL)).
				EchoMode(huh.EchoModePassword).
				Validate(requireValue("token")).
				Value(&token),
		),
	)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(token), nil
}

// requireValue returns a validator rejecting blank input.
func requireValue(what string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", what)
		}
		return nil
	}
}
