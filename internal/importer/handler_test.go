package importer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/jira-import/internal/credential"
	"github.com/nhle/jira-import/internal/job"
	"github.com/nhle/jira-import/internal/model"
)

// fakeDialogs answers every dialog from canned values.
type fakeDialogs struct {
	filter    model.Filter
	filterErr error
	folder    *model.Folder
	folderErr error
	selected  []model.Issue
	issuesErr error

	mu     sync.Mutex
	errors []string
	shown  []model.Issue
}

func (d *fakeDialogs) SelectFilter(ctx context.Context) (model.Filter, error) {
	return d.filter, d.filterErr
}

func (d *fakeDialogs) SelectFolder(ctx context.Context, project model.Project) (*model.Folder, error) {
	return d.folder, d.folderErr
}

func (d *fakeDialogs) SelectIssues(ctx context.Context, folder model.Folder, issues []model.Issue) ([]model.Issue, error) {
	d.shown = issues
	return d.selected, d.issuesErr
}

func (d *fakeDialogs) ShowError(title, message string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.errors = append(d.errors, title+": "+message)
}

// fakeController records calls and keeps created test cases in memory.
type fakeController struct {
	failNewOn string
	created   []model.NewDescription
	updated   []model.Integration

	// onNew runs inside NewTestCase before the context is checked.
	onNew func()
}

func (c *fakeController) AvailableTestCaseName(ctx context.Context, project model.Project, folder model.Folder, seed string) (string, error) {
	return seed, nil
}

func (c *fakeController) NewTestCase(ctx context.Context, project model.Project, folder model.Folder, desc model.NewDescription) (*model.TestCase, error) {
	if desc.Name == c.failNewOn {
		return nil, &model.PlatformError{Op: "creating test case", Err: errors.New("disk full")}
	}
	if c.onNew != nil {
		c.onNew()
	}
	if err := ctx.Err(); err != nil {
		return nil, &model.PlatformError{Op: "indexing test case", Err: err}
	}
	c.created = append(c.created, desc)
	return &model.TestCase{
		ID:          fmt.Sprintf("tc-%d", len(c.created)),
		Name:        desc.Name,
		Folder:      folder.Path,
		Description: desc.Description,
		Comment:     desc.Comment,
		ScriptFile:  "/scripts/" + desc.Name,
	}, nil
}

func (c *fakeController) UpdateIntegration(ctx context.Context, project model.Project, tc *model.TestCase, integ model.Integration) (*model.TestCase, error) {
	if err := ctx.Err(); err != nil {
		return nil, &model.PlatformError{Op: "indexing test case", Err: err}
	}
	c.updated = append(c.updated, integ)
	out := *tc
	out.Integration = &integ
	return &out, nil
}

type fakeJira struct {
	field    *model.Field
	fieldErr error
	lookups  int
}

func (j *fakeJira) CommentField(ctx context.Context, cred credential.Jira) (*model.Field, error) {
	j.lookups++
	return j.field, j.fieldErr
}

func (j *fakeJira) Integration(issue model.Issue) model.Integration {
	return model.Integration{IssueKey: issue.Key, URL: "https://jira/browse/" + issue.Key}
}

type fakeExplorer struct {
	refreshed []model.Folder
	selected  []model.TestCase
}

func (e *fakeExplorer) RefreshFolder(project model.Project, folder model.Folder) error {
	e.refreshed = append(e.refreshed, folder)
	return nil
}

func (e *fakeExplorer) SelectTestCases(project model.Project, testCases []model.TestCase) error {
	e.selected = testCases
	return nil
}

// inlineSync runs fn on the caller and counts calls.
type inlineSync struct{ calls int }

func (s *inlineSync) SyncExec(fn func()) {
	s.calls++
	fn()
}

// countingScheduler wraps a runner and counts scheduled jobs.
type countingScheduler struct {
	runner    *job.Runner
	scheduled int
}

func (s *countingScheduler) Schedule(j job.Job) *job.Handle {
	s.scheduled++
	return s.runner.Schedule(j)
}

type fakeHistory struct {
	started  []model.ImportRun
	finished []model.ImportStatus
	created  []int
}

func (h *fakeHistory) StartImport(ctx context.Context, run model.ImportRun) (string, error) {
	h.started = append(h.started, run)
	return "run-1", nil
}

func (h *fakeHistory) FinishImport(ctx context.Context, id string, status model.ImportStatus, created int, errMsg string) error {
	h.finished = append(h.finished, status)
	h.created = append(h.created, created)
	return nil
}

type fixture struct {
	dialogs    *fakeDialogs
	controller *fakeController
	jira       *fakeJira
	explorer   *fakeExplorer
	sync       *inlineSync
	scheduler  *countingScheduler
	history    *fakeHistory
	scripts    map[string]string
	scriptErr  error
	handler    *Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		dialogs:    &fakeDialogs{},
		controller: &fakeController{},
		jira:       &fakeJira{field: &model.Field{ID: "customfield_100", Name: "Test Script", Custom: true}},
		explorer:   &fakeExplorer{},
		sync:       &inlineSync{},
		scheduler:  &countingScheduler{runner: job.NewRunner(context.Background())},
		history:    &fakeHistory{},
		scripts:    map[string]string{},
	}
	f.handler = NewHandler(Options{
		Project:    model.Project{Name: "demo", Dir: "/work/demo"},
		Dialogs:    f.dialogs,
		Controller: f.controller,
		Jira:       f.jira,
		Explorer:   f.explorer,
		Sync:       f.sync,
		Scheduler:  f.scheduler,
		AppendScript: func(tc *model.TestCase, text string) error {
			if f.scriptErr != nil {
				return f.scriptErr
			}
			f.scripts[tc.Name] += text
			return nil
		},
		Credential: func() (credential.Jira, error) {
			return credential.Jira{BaseURL: "https://jira", Token: "t"}, nil
		},
		History: f.history,
	})
	return f
}

func issue(key, summary, comment string) model.Issue {
	fields := &model.IssueFields{Summary: summary, CustomFields: map[string]any{}}
	if comment != "" {
		fields.CustomFields["customfield_100"] = comment
	}
	return model.Issue{ID: key, Key: key, Fields: fields}
}

func wait(t *testing.T, h *job.Handle) job.Status {
	t.Helper()
	require.NotNil(t, h)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	st, err := h.Wait(ctx)
	require.NoError(t, err)
	return st
}

func TestExecuteImportsSelectedIssues(t *testing.T) {
	f := newFixture(t)
	issues := []model.Issue{
		issue("QA-1", "Login", "open app\nlog in"),
		issue("QA-2", "Logout", ""),
		issue("QA-3", "Ignored", ""),
	}
	f.dialogs.filter = model.Filter{Name: "Regression", JQL: "project = QA", Issues: issues}
	f.dialogs.folder = &model.Folder{Path: "smoke"}
	f.dialogs.selected = issues[:2]

	h, err := f.handler.Execute(context.Background())
	require.NoError(t, err)
	st := wait(t, h)

	assert.Equal(t, job.OK, st.Code)
	assert.Equal(t, issues, f.dialogs.shown, "issue dialog is scoped to the filter's issues")
	assert.Equal(t, 1, f.jira.lookups, "comment field is resolved once per run")

	require.Len(t, f.controller.created, 2)
	assert.Equal(t, model.NewDescription{
		Name:        "QA-1",
		Description: "Summary: Login\nDescription: ",
		Comment:     "open app\nlog in",
	}, f.controller.created[0])
	assert.Equal(t, "QA-2", f.controller.created[1].Name)
	assert.Equal(t, "", f.controller.created[1].Comment)

	require.Len(t, f.controller.updated, 2)
	assert.Equal(t, "QA-1", f.controller.updated[0].IssueKey)

	assert.Equal(t, "WebUI.comment('open app')\nWebUI.comment('log in')\n", f.scripts["QA-1"])
	assert.Equal(t, "", f.scripts["QA-2"])

	assert.Equal(t, []model.Folder{{Path: "smoke"}}, f.explorer.refreshed)
	require.Len(t, f.explorer.selected, 2)
	assert.Equal(t, "QA-1", f.explorer.selected[0].Name)
	require.NotNil(t, f.explorer.selected[0].Integration)

	assert.Empty(t, f.dialogs.errors)
	require.Len(t, f.history.started, 1)
	assert.Equal(t, "Regression", f.history.started[0].Filter)
	assert.Equal(t, 2, f.history.started[0].IssueCount)
	assert.Equal(t, []model.ImportStatus{model.ImportOK}, f.history.finished)
	assert.Equal(t, []int{2}, f.history.created)
}

func TestExecuteStopsWhenFilterDialogCanceled(t *testing.T) {
	f := newFixture(t)
	f.dialogs.filterErr = model.ErrCanceled

	h, err := f.handler.Execute(context.Background())
	require.NoError(t, err)
	assert.Nil(t, h)
	assert.Zero(t, f.scheduler.scheduled)
	assert.Empty(t, f.dialogs.errors)
}

func TestExecuteStopsWhenFolderDialogCanceled(t *testing.T) {
	f := newFixture(t)
	f.dialogs.filter = model.Filter{Issues: []model.Issue{issue("QA-1", "", "")}}

	h, err := f.handler.Execute(context.Background())
	require.NoError(t, err)
	assert.Nil(t, h)
	assert.Zero(t, f.scheduler.scheduled)
}

func TestExecuteReportsFolderDialogError(t *testing.T) {
	f := newFixture(t)
	f.dialogs.folderErr = &model.PlatformError{Op: "listing folders", Err: errors.New("permission denied")}

	h, err := f.handler.Execute(context.Background())
	require.Error(t, err)
	assert.Nil(t, h)
	assert.Equal(t, []string{"Error: listing folders: permission denied"}, f.dialogs.errors)
	assert.True(t, Reported(err), "shown errors are marked so callers do not print them again")
	var pe *model.PlatformError
	assert.True(t, errors.As(err, &pe))
}

func TestExecuteReportsFilterDialogError(t *testing.T) {
	f := newFixture(t)
	f.dialogs.filterErr = &model.IntegrationError{Op: "fetching favourite filters", Err: errors.New("503")}

	_, err := f.handler.Execute(context.Background())
	require.Error(t, err)
	assert.True(t, Reported(err))
	assert.True(t, model.IsIntegrationError(err))
	assert.Len(t, f.dialogs.errors, 1)
}

func TestReported(t *testing.T) {
	assert.False(t, Reported(nil))
	assert.False(t, Reported(errors.New("plain")))
}

func TestExecuteStopsWhenIssueDialogCanceled(t *testing.T) {
	f := newFixture(t)
	f.dialogs.folder = &model.Folder{}
	f.dialogs.issuesErr = model.ErrCanceled

	h, err := f.handler.Execute(context.Background())
	require.NoError(t, err)
	assert.Nil(t, h)
	assert.Zero(t, f.scheduler.scheduled)
}

func TestNoIssuesSchedulesNothing(t *testing.T) {
	f := newFixture(t)

	assert.Nil(t, f.handler.CreateTestCasesAsIssues(&model.Folder{}, model.Filter{}, nil))
	assert.Nil(t, f.handler.CreateTestCasesAsIssues(nil, model.Filter{}, []model.Issue{issue("QA-1", "", "")}))

	assert.Zero(t, f.scheduler.scheduled)
	assert.Zero(t, f.jira.lookups)
	assert.Empty(t, f.controller.created)
	assert.Empty(t, f.explorer.refreshed)
	assert.Empty(t, f.history.started)
}

func TestFieldLookupFailureImportsWithoutComments(t *testing.T) {
	f := newFixture(t)
	f.jira.fieldErr = &model.IntegrationError{Op: "fetching fields", Err: errors.New("503")}

	h := f.handler.CreateTestCasesAsIssues(&model.Folder{}, model.Filter{}, []model.Issue{
		issue("QA-1", "Login", "should not appear"),
		issue("QA-2", "Logout", "nor this"),
	})
	st := wait(t, h)

	assert.Equal(t, job.OK, st.Code)
	require.Len(t, f.controller.created, 2)
	for _, desc := range f.controller.created {
		assert.Empty(t, desc.Comment)
	}
	assert.Empty(t, f.scripts["QA-1"])
	assert.Empty(t, f.dialogs.errors)
}

func TestCreationErrorAbortsAndReports(t *testing.T) {
	f := newFixture(t)
	f.controller.failNewOn = "QA-2"

	h := f.handler.CreateTestCasesAsIssues(&model.Folder{}, model.Filter{}, []model.Issue{
		issue("QA-1", "", ""),
		issue("QA-2", "", ""),
		issue("QA-3", "", ""),
	})
	st := wait(t, h)

	assert.Equal(t, job.Error, st.Code)
	var pe *model.PlatformError
	assert.True(t, errors.As(st.Err, &pe))

	require.Len(t, f.controller.created, 1, "QA-1 is kept, QA-3 is never attempted")
	assert.Equal(t, "QA-1", f.controller.created[0].Name)
	assert.Equal(t, 1, f.sync.calls, "error dialog is marshaled onto the UI thread")
	assert.Equal(t, []string{"Error: creating test case: disk full"}, f.dialogs.errors)
	assert.Empty(t, f.explorer.refreshed)
	assert.Equal(t, []model.ImportStatus{model.ImportFailed}, f.history.finished)
	assert.Equal(t, []int{1}, f.history.created)
}

func TestScriptWriteErrorAborts(t *testing.T) {
	f := newFixture(t)
	f.scriptErr = &model.IOError{Path: "/scripts/QA-1", Err: errors.New("read-only file system")}

	st := wait(t, f.handler.CreateTestCasesAsIssues(&model.Folder{}, model.Filter{}, []model.Issue{
		issue("QA-1", "", "a"),
		issue("QA-2", "", "b"),
	}))

	assert.Equal(t, job.Error, st.Code)
	assert.Len(t, f.controller.created, 1)
	assert.Len(t, f.dialogs.errors, 1)
}

func TestCredentialErrorAborts(t *testing.T) {
	f := newFixture(t)
	f.handler.opts.Credential = func() (credential.Jira, error) {
		return credential.Jira{}, credential.ErrNotFound
	}

	st := wait(t, f.handler.CreateTestCasesAsIssues(&model.Folder{}, model.Filter{}, []model.Issue{issue("QA-1", "", "")}))

	assert.Equal(t, job.Error, st.Code)
	assert.True(t, model.IsIntegrationError(st.Err))
	assert.Empty(t, f.controller.created)
	assert.Zero(t, f.jira.lookups)
}

// cancelingMonitor reports cancellation from the given IsCanceled call on.
type cancelingMonitor struct {
	cancelAt int
	checks   int
	names    []string
	worked   int
	total    int
	done     bool
}

func (m *cancelingMonitor) BeginTask(name string, total int) { m.total = total }
func (m *cancelingMonitor) SetTaskName(name string) { m.names = append(m.names, name) }
func (m *cancelingMonitor) Worked(units int) { m.worked += units }
func (m *cancelingMonitor) Done() { m.done = true }

func (m *cancelingMonitor) IsCanceled() bool {
	m.checks++
	return m.checks >= m.cancelAt
}

func TestCancelMidLoopKeepsCreatedTestCases(t *testing.T) {
	f := newFixture(t)
	monitor := &cancelingMonitor{cancelAt: 3}

	st := f.handler.run(context.Background(), monitor, model.Folder{}, model.Filter{}, []model.Issue{
		issue("QA-1", "", ""),
		issue("QA-2", "", ""),
		issue("QA-3", "", ""),
		issue("QA-4", "", ""),
	})

	assert.Equal(t, job.Canceled, st.Code)
	require.Len(t, f.controller.created, 2)
	assert.Equal(t, "QA-2", f.controller.created[1].Name)
	assert.Empty(t, f.explorer.refreshed, "no refresh after cancel")
	assert.Empty(t, f.dialogs.errors)
	assert.True(t, monitor.done)
	assert.Equal(t, 5, monitor.total)
	assert.Equal(t, 3, monitor.worked, "field lookup plus two issues")
	assert.Equal(t, []string{SubTaskFetchingField, "Importing issue QA-1", "Importing issue QA-2"}, monitor.names)
	assert.Equal(t, []model.ImportStatus{model.ImportCanceled}, f.history.finished)
}

func TestCancelViaHandle(t *testing.T) {
	f := newFixture(t)
	release := make(chan struct{})
	f.handler.opts.Credential = func() (credential.Jira, error) {
		<-release
		return credential.Jira{}, nil
	}

	h := f.handler.CreateTestCasesAsIssues(&model.Folder{}, model.Filter{}, []model.Issue{issue("QA-1", "", "")})
	h.Cancel()
	close(release)

	assert.Equal(t, job.Canceled, wait(t, h).Code)
	assert.Empty(t, f.controller.created)
}

func TestCancelDuringTestCaseCreationIsNotAnError(t *testing.T) {
	f := newFixture(t)
	parent, cancelParent := context.WithCancel(context.Background())
	defer cancelParent()
	f.scheduler.runner = job.NewRunner(parent)

	calls := 0
	f.controller.onNew = func() {
		calls++
		if calls == 1 {
			cancelParent()
		}
	}

	st := wait(t, f.handler.CreateTestCasesAsIssues(&model.Folder{Path: "smoke"}, model.Filter{}, []model.Issue{
		issue("QA-1", "Login", "open app"),
		issue("QA-2", "Logout", ""),
	}))

	assert.Equal(t, job.Canceled, st.Code)
	assert.NoError(t, st.Err)
	assert.Empty(t, f.dialogs.errors)
	assert.Zero(t, f.sync.calls)

	require.Len(t, f.controller.created, 1, "the issue in flight is completed")
	assert.Equal(t, "QA-1", f.controller.created[0].Name)
	require.Len(t, f.controller.updated, 1)
	assert.Equal(t, "WebUI.comment('open app')\n", f.scripts["QA-1"])
	assert.Empty(t, f.explorer.refreshed)
	assert.Equal(t, []model.ImportStatus{model.ImportCanceled}, f.history.finished)
	assert.Equal(t, []int{1}, f.history.created)
}
