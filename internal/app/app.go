// Package app assembles the importer from configuration: store, project,
// JIRA service, dialogs and the background job runner.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/nhle/jira-import/internal/credential"
	"github.com/nhle/jira-import/internal/importer"
	"github.com/nhle/jira-import/internal/job"
	"github.com/nhle/jira-import/internal/keys"
	"github.com/nhle/jira-import/internal/model"
	"github.com/nhle/jira-import/internal/platform"
	"github.com/nhle/jira-import/internal/source/jira"
	"github.com/nhle/jira-import/internal/store"
	"github.com/nhle/jira-import/internal/theme"
	"github.com/nhle/jira-import/internal/ui"
)

// App is one configured importer session.
type App struct {
	cfg     *model.AppConfig
	project model.Project
	store   *store.SQLiteStore
	service *jira.Service
	runner  *job.Runner

	dialogs  *ui.Dialogs
	explorer *ui.Explorer
	progress *ui.ProgressView
	handler  *importer.Handler

	out io.Writer
	log *slog.Logger
}

// New opens the store and the project named by cfg and wires the import
// handler. The JIRA token is loaded from creds.
func New(ctx context.Context, cfg *model.AppConfig, creds credential.Store, out io.Writer) (*App, error) {
	cred, err := credential.LoadJira(creds, cfg.Jira.BaseURL, cfg.Jira.Username)
	if errors.Is(err, credential.ErrNotFound) {
		return nil, fmt.Errorf("no JIRA token for %s: run with --login or set JIRA_IMPORT_TOKEN", cfg.Jira.BaseURL)
	}
	if err != nil {
		return nil, fmt.Errorf("loading JIRA credential: %w", err)
	}

	project, err := platform.OpenProject(cfg.Project.Dir)
	if err != nil {
		return nil, err
	}

	s, err := openStore(cfg.Store.Path)
	if err != nil {
		return nil, err
	}

	k := keys.DefaultKeyMap()
	controller := platform.NewController(s)
	service := newJiraService(cfg, cred)

	a := &App{
		cfg:      cfg,
		project:  project,
		store:    s,
		service:  service,
		runner:   job.NewRunner(ctx),
		dialogs:  ui.NewDialogs(service, k),
		explorer: ui.NewExplorer(controller),
		progress: ui.NewProgressView(k),
		out:      out,
		log:      slog.With("component", "app"),
	}

	a.handler = importer.NewHandler(importer.Options{
		Project:      project,
		Dialogs:      a.dialogs,
		Controller:   controller,
		Jira:         service,
		Explorer:     a.explorer,
		Sync:         a.progress,
		Scheduler:    a.runner,
		AppendScript: platform.AppendScript,
		Credential: func() (credential.Jira, error) {
			return credential.LoadJira(creds, cfg.Jira.BaseURL, cfg.Jira.Username)
		},
		History: s,
	})

	a.log.Info("session opened", "project", project.Dir, "jira", cfg.Jira.BaseURL)
	return a, nil
}

// Run performs one import and reports its outcome. A dialog failure the
// user has already seen comes back as a failed status and a nil error.
func (a *App) Run(ctx context.Context) (job.Status, error) {
	h, err := a.handler.Execute(ctx)
	if importer.Reported(err) {
		a.log.Error("import dialog failed", "error", err)
		return job.Failed(err), nil
	}
	if err != nil {
		return job.Failed(err), err
	}
	if h == nil {
		fmt.Fprintln(a.out, theme.HelpStyle.Render("Nothing to import."))
		return job.StatusCanceled, nil
	}

	st, err := a.await(ctx, h)
	a.runner.Wait()
	if err != nil {
		return st, err
	}

	a.report(st)
	return st, nil
}

// await shows user jobs in the progress view and waits on the others.
func (a *App) await(ctx context.Context, h *job.Handle) (job.Status, error) {
	if h.User() {
		return a.progress.Run(ctx, h)
	}
	return h.Wait(ctx)
}

func (a *App) report(st job.Status) {
	switch st.Code {
	case job.OK:
		fmt.Fprintln(a.out, theme.StatusStyle(st.Code).Render(
			fmt.Sprintf("Imported %d test cases.", a.explorer.SelectionSize()),
		))
		if view := a.explorer.View(); view != "" {
			fmt.Fprintln(a.out, view)
		}
	case job.Canceled:
		fmt.Fprintln(a.out, theme.StatusStyle(st.Code).Render("Import canceled; test cases created so far were kept."))
	default:
		fmt.Fprintln(a.out, theme.StatusStyle(st.Code).Render("Import failed: "+st.Err.Error()))
	}
}

// History prints the last limit import runs.
func (a *App) History(ctx context.Context, limit int) error {
	runs, err := a.store.GetImportRuns(ctx, limit)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, renderHistory(runs))
	return nil
}

// Close releases the store.
func (a *App) Close() error {
	return a.store.Close()
}
