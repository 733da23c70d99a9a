package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nhle/jira-import/internal/credential"
	"github.com/nhle/jira-import/internal/keys"
	"github.com/nhle/jira-import/internal/model"
	"github.com/nhle/jira-import/internal/source/jira"
	"github.com/nhle/jira-import/internal/store"
	"github.com/nhle/jira-import/internal/ui"
)

// newJiraService builds the JIRA service for the configured instance.
func newJiraService(cfg *model.AppConfig, cred credential.Jira) *jira.Service {
	return jira.NewService(jira.NewClient(cred), cfg.Jira.CommentField, cfg.Jira.PageSize)
}

// openStore opens the index database, creating its directory.
func openStore(path string) (*store.SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating store directory: %w", err)
		}
	}
	s, err := store.NewSQLiteStore(path)
	if err != nil {
		return nil, fmt.Errorf("opening store %s: %w", path, err)
	}
	return s, nil
}

// TokenPrompter asks the user for an API token.
type TokenPrompter interface {
	PromptToken(ctx context.Context, baseURL string) (string, error)
}

// Login prompts for a token, checks it against JIRA and stores it in
// creds. It returns the name of the authenticated user.
func Login(ctx context.Context, cfg *model.AppConfig, creds credential.Store, prompt TokenPrompter) (string, error) {
	if prompt == nil {
		prompt = ui.NewDialogs(nil, keys.DefaultKeyMap())
	}

	token, err := prompt.PromptToken(ctx, cfg.Jira.BaseURL)
	if err != nil {
		return "", err
	}

	cred := credential.Jira{BaseURL: cfg.Jira.BaseURL, Username: cfg.Jira.Username, Token: token}
	user, err := newJiraService(cfg, cred).CurrentUser(ctx)
	if err != nil {
		return "", err
	}

	if err := credential.SaveJira(creds, cfg.Jira.BaseURL, token); err != nil {
		return "", err
	}
	return user, nil
}
