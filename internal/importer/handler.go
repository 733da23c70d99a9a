// Package importer turns JIRA issues into test cases: it chains the
// filter, folder and issue dialogs and runs the import as a background job.
package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nhle/jira-import/internal/credential"
	"github.com/nhle/jira-import/internal/job"
	"github.com/nhle/jira-import/internal/model"
)

// Job and progress labels.
const (
	JobImportingIssues       = "Importing issues"
	SubTaskFetchingField     = "Fetching comment field"
	subTaskImportingIssueFmt = "Importing issue %s"
	TitleError               = "Error"
)

// Dialogs are the modal steps of the import. SelectFilter and
// SelectIssues return model.ErrCanceled when dismissed; SelectFolder
// returns a nil folder instead.
type Dialogs interface {
	SelectFilter(ctx context.Context) (model.Filter, error)
	SelectFolder(ctx context.Context, project model.Project) (*model.Folder, error)
	SelectIssues(ctx context.Context, folder model.Folder, issues []model.Issue) ([]model.Issue, error)
	ShowError(title, message string)
}

// TestCaseController creates test cases in the host project.
type TestCaseController interface {
	AvailableTestCaseName(ctx context.Context, project model.Project, folder model.Folder, seed string) (string, error)
	NewTestCase(ctx context.Context, project model.Project, folder model.Folder, desc model.NewDescription) (*model.TestCase, error)
	UpdateIntegration(ctx context.Context, project model.Project, tc *model.TestCase, integ model.Integration) (*model.TestCase, error)
}

// Jira is the JIRA side of the import: comment field lookup and the
// conversion of issues into test case links.
type Jira interface {
	CommentField(ctx context.Context, cred credential.Jira) (*model.Field, error)
	Integration(issue model.Issue) model.Integration
}

// Explorer is the host view that shows the project's test cases.
type Explorer interface {
	RefreshFolder(project model.Project, folder model.Folder) error
	SelectTestCases(project model.Project, testCases []model.TestCase) error
}

// Synchronizer runs fn on the UI thread and waits for it to return.
type Synchronizer interface {
	SyncExec(fn func())
}

// Scheduler starts background jobs.
type Scheduler interface {
	Schedule(j job.Job) *job.Handle
}

// History records import runs. It is optional.
type History interface {
	StartImport(ctx context.Context, run model.ImportRun) (string, error)
	FinishImport(ctx context.Context, id string, status model.ImportStatus, created int, errMsg string) error
}

// Options wires a Handler to its collaborators. History is optional;
// every other field is required.
type Options struct {
	Project      model.Project
	Dialogs      Dialogs
	Controller   TestCaseController
	Jira         Jira
	Explorer     Explorer
	Sync         Synchronizer
	Scheduler    Scheduler
	AppendScript func(tc *model.TestCase, text string) error
	Credential   func() (credential.Jira, error)
	History      History
}

// Handler runs the "import JIRA issues as test cases" action.
type Handler struct {
	opts Options
	log  *slog.Logger
}

// NewHandler creates a Handler.
func NewHandler(opts Options) *Handler {
	return &Handler{
		opts: opts,
		log:  slog.With("component", "importer"),
	}
}

// Execute walks the user through the filter, folder and issue dialogs and
// schedules the import. It returns the job handle, or nil when the user
// backed out or nothing was selected. Dialog failures are shown to the
// user and returned marked as reported.
func (h *Handler) Execute(ctx context.Context) (*job.Handle, error) {
	filter, err := h.opts.Dialogs.SelectFilter(ctx)
	if errors.Is(err, model.ErrCanceled) {
		return nil, nil
	}
	if err != nil {
		return nil, h.report(err)
	}

	folder, err := h.opts.Dialogs.SelectFolder(ctx, h.opts.Project)
	if err != nil {
		return nil, h.report(err)
	}
	if folder == nil {
		return nil, nil
	}

	selected, err := h.opts.Dialogs.SelectIssues(ctx, *folder, filter.Issues)
	if errors.Is(err, model.ErrCanceled) {
		return nil, nil
	}
	if err != nil {
		return nil, h.report(err)
	}

	return h.CreateTestCasesAsIssues(folder, filter, selected), nil
}

// reportedError marks an error the user has already seen in an error
// dialog.
type reportedError struct {
	err error
}

func (e *reportedError) Error() string { return e.err.Error() }

func (e *reportedError) Unwrap() error { return e.err }

// Reported reports whether err has already been shown to the user.
func Reported(err error) bool {
	var re *reportedError
	return errors.As(err, &re)
}

func (h *Handler) report(err error) error {
	h.opts.Dialogs.ShowError(TitleError, err.Error())
	return &reportedError{err: err}
}

// CreateTestCasesAsIssues schedules a job that creates one test case per
// issue in folder. With a nil folder or no issues nothing is scheduled and
// nil is returned.
func (h *Handler) CreateTestCasesAsIssues(folder *model.Folder, filter model.Filter, issues []model.Issue) *job.Handle {
	if folder == nil || len(issues) == 0 {
		return nil
	}

	dest := *folder
	batch := append([]model.Issue(nil), issues...)

	return h.opts.Scheduler.Schedule(job.Job{
		Name: JobImportingIssues,
		User: true,
		Run: func(ctx context.Context, monitor job.Monitor) job.Status {
			return h.run(ctx, monitor, dest, filter, batch)
		},
	})
}

func (h *Handler) run(
	ctx context.Context,
	monitor job.Monitor,
	folder model.Folder,
	filter model.Filter,
	issues []model.Issue,
) job.Status {
	monitor.BeginTask("", len(issues)+1)
	defer monitor.Done()

	runID := h.startHistory(ctx, folder, filter, len(issues))

	created, st := h.importIssues(ctx, monitor, folder, issues)
	if st.Code == job.Error {
		h.log.Error("import failed", "folder", folder.String(), "created", len(created), "error", st.Err)
		h.opts.Sync.SyncExec(func() {
			h.opts.Dialogs.ShowError(TitleError, st.Err.Error())
		})
	}

	h.finishHistory(runID, st, len(created))
	return st
}

// importIssues is the import loop. It stops at the first error or when
// cancellation is requested; test cases created so far are kept.
func (h *Handler) importIssues(
	ctx context.Context,
	monitor job.Monitor,
	folder model.Folder,
	issues []model.Issue,
) ([]model.TestCase, job.Status) {
	project := h.opts.Project

	// Cancellation is checked between issues; host writes for the issue in
	// flight must not be cut short by it.
	hostCtx := context.WithoutCancel(ctx)

	monitor.SetTaskName(SubTaskFetchingField)
	cred, err := h.opts.Credential()
	if err != nil {
		return nil, job.Failed(&model.IntegrationError{Op: "loading JIRA credential", Err: err})
	}
	commentField := h.commentField(ctx, cred)
	monitor.Worked(1)

	created := make([]model.TestCase, 0, len(issues))
	for _, issue := range issues {
		if monitor.IsCanceled() {
			h.log.Info("import canceled", "created", len(created), "remaining", len(issues)-len(created))
			return created, job.StatusCanceled
		}

		name, err := h.opts.Controller.AvailableTestCaseName(hostCtx, project, folder, issue.Key)
		if err != nil {
			return created, job.Failed(err)
		}
		monitor.SetTaskName(fmt.Sprintf(subTaskImportingIssueFmt, name))

		comment := Comment(commentField, issue)
		tc, err := h.opts.Controller.NewTestCase(hostCtx, project, folder, model.NewDescription{
			Name:        name,
			Description: Description(issue),
			Comment:     comment,
		})
		if err != nil {
			return created, job.Failed(err)
		}

		tc, err = h.opts.Controller.UpdateIntegration(hostCtx, project, tc, h.opts.Jira.Integration(issue))
		if err != nil {
			return created, job.Failed(err)
		}

		if err := h.opts.AppendScript(tc, ScriptAsComment(comment)); err != nil {
			return created, job.Failed(err)
		}

		created = append(created, *tc)
		monitor.Worked(1)
		h.log.Debug("imported issue", "issue", issue.Key, "test_case", tc.Name)
	}

	if err := h.opts.Explorer.RefreshFolder(project, folder); err != nil {
		return created, job.Failed(err)
	}
	if err := h.opts.Explorer.SelectTestCases(project, created); err != nil {
		return created, job.Failed(err)
	}
	return created, job.StatusOK
}

// commentField resolves the comment custom field once per run. A failed
// lookup means no comments for this run.
func (h *Handler) commentField(ctx context.Context, cred credential.Jira) *model.Field {
	field, err := h.opts.Jira.CommentField(ctx, cred)
	if err != nil {
		h.log.Warn("comment field lookup failed, importing without comments", "error", err)
		return nil
	}
	if field == nil {
		h.log.Info("no comment field configured in JIRA")
	}
	return field
}

func (h *Handler) startHistory(ctx context.Context, folder model.Folder, filter model.Filter, count int) string {
	if h.opts.History == nil {
		return ""
	}
	id, err := h.opts.History.StartImport(ctx, model.ImportRun{
		Project:    h.opts.Project.Dir,
		Folder:     folder.Path,
		Filter:     filter.Name,
		IssueCount: count,
	})
	if err != nil {
		h.log.Warn("recording import start failed", "error", err)
		return ""
	}
	return id
}

func (h *Handler) finishHistory(id string, st job.Status, created int) {
	if h.opts.History == nil || id == "" {
		return
	}

	status := model.ImportOK
	errMsg := ""
	switch st.Code {
	case job.Canceled:
		status = model.ImportCanceled
	case job.Error:
		status = model.ImportFailed
		errMsg = st.Err.Error()
	}

	// The run context may already be canceled; the record still has to land.
	if err := h.opts.History.FinishImport(context.Background(), id, status, created, errMsg); err != nil {
		h.log.Warn("recording import finish failed", "error", err)
	}
}
