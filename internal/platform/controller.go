package platform

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/nhle/jira-import/internal/model"
)

// defaultTestCaseName is used when the seed sanitizes to nothing.
const defaultTestCaseName = "New Test Case"

// invalidNameChars cannot appear in a test case name because the name is
// also a file name.
const invalidNameChars = `\/:*?"<>|`

// Index is the part of the store the controller keeps in sync with the
// entity files.
type Index interface {
	CreateTestCase(ctx context.Context, project string, tc model.TestCase) error
	UpdateTestCase(ctx context.Context, project string, tc model.TestCase) error
	TestCaseNameTaken(ctx context.Context, project, folder, name string) (bool, error)
}

// Controller creates and updates test cases in a project. Every error it
// returns is a *model.PlatformError, except AppendScript which returns a
// *model.IOError.
type Controller struct {
	index Index
	now   func() time.Time
	log   *slog.Logger
}

// NewController creates a Controller. index may be nil, in which case only
// the entity files are consulted and written.
func NewController(index Index) *Controller {
	return &Controller{
		index: index,
		now:   time.Now,
		log:   slog.With("component", "platform"),
	}
}

// SanitizeName replaces characters that are invalid in test case names
// and trims surrounding whitespace and dots.
func SanitizeName(seed string) string {
	name := strings.Map(func(r rune) rune {
		if strings.ContainsRune(invalidNameChars, r) || r < 0x20 {
			return '_'
		}
		return r
	}, seed)
	return strings.Trim(name, " .")
}

// AvailableTestCaseName returns a name derived from seed that is not yet
// used in folder. Names compare case-insensitively; on a clash the
// suffixes " (1)", " (2)", ... are tried in order.
func (c *Controller) AvailableTestCaseName(
	ctx context.Context,
	project model.Project,
	folder model.Folder,
	seed string,
) (string, error) {
	base := SanitizeName(seed)
	if base == "" {
		base = defaultTestCaseName
	}

	used, err := c.usedNames(project, folder)
	if err != nil {
		return "", err
	}

	for i := 0; ; i++ {
		candidate := base
		if i > 0 {
			candidate = fmt.Sprintf("%s (%d)", base, i)
		}
		if used[strings.ToLower(candidate)] {
			continue
		}
		taken, err := c.indexTaken(ctx, project, folder, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
	}
}

// usedNames collects the lower-cased names of entities and sub-folders
// directly inside folder.
func (c *Controller) usedNames(project model.Project, folder model.Folder) (map[string]bool, error) {
	entries, err := os.ReadDir(folderDir(project, folder))
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]bool{}, nil
	}
	if err != nil {
		return nil, platformError("reading folder "+folder.String(), err)
	}

	used := make(map[string]bool, len(entries))
	for _, e := range entries {
		name := e.Name()
		if !e.IsDir() {
			if !strings.HasSuffix(name, testCaseExt) {
				continue
			}
			name = strings.TrimSuffix(name, testCaseExt)
		}
		used[strings.ToLower(name)] = true
	}
	return used, nil
}

func (c *Controller) indexTaken(ctx context.Context, project model.Project, folder model.Folder, name string) (bool, error) {
	if c.index == nil {
		return false, nil
	}
	taken, err := c.index.TestCaseNameTaken(ctx, project.Dir, folder.Path, name)
	if err != nil {
		return false, platformError("checking test case name", err)
	}
	return taken, nil
}

// NewTestCase writes the entity file and the initial script for a new
// test case and indexes it.
func (c *Controller) NewTestCase(
	ctx context.Context,
	project model.Project,
	folder model.Folder,
	desc model.NewDescription,
) (*model.TestCase, error) {
	if SanitizeName(desc.Name) != desc.Name || desc.Name == "" {
		return nil, platformError("creating test case", fmt.Errorf("invalid test case name %q", desc.Name))
	}

	used, err := c.usedNames(project, folder)
	if err != nil {
		return nil, err
	}
	if used[strings.ToLower(desc.Name)] {
		return nil, platformError("creating test case", fmt.Errorf("%s/%s already exists", folder, desc.Name))
	}

	now := c.now().UTC()
	tc := &model.TestCase{
		ID:          uuid.New().String(),
		Name:        desc.Name,
		Folder:      folder.Path,
		Description: desc.Description,
		Comment:     desc.Comment,
		ScriptFile:  scriptPath(project, folder, desc.Name),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := os.MkdirAll(folderDir(project, folder), 0o755); err != nil {
		return nil, platformError("creating test case", err)
	}
	if err := c.writeEntity(project, folder, tc); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(tc.ScriptFile), 0o755); err != nil {
		return nil, platformError("creating test case script", err)
	}
	if err := os.WriteFile(tc.ScriptFile, []byte(scriptPreface), 0o644); err != nil {
		return nil, platformError("creating test case script", err)
	}

	if c.index != nil {
		if err := c.index.CreateTestCase(ctx, project.Dir, *tc); err != nil {
			return nil, platformError("indexing test case", err)
		}
	}

	c.log.Debug("created test case", "folder", folder.String(), "name", tc.Name)
	return tc, nil
}

// UpdateIntegration links tc to a JIRA issue and persists the change.
// It returns the updated test case.
func (c *Controller) UpdateIntegration(
	ctx context.Context,
	project model.Project,
	tc *model.TestCase,
	integ model.Integration,
) (*model.TestCase, error) {
	updated := *tc
	updated.Integration = &integ
	updated.UpdatedAt = c.now().UTC()

	folder := model.Folder{Path: tc.Folder}
	if err := c.writeEntity(project, folder, &updated); err != nil {
		return nil, err
	}
	if c.index != nil {
		if err := c.index.UpdateTestCase(ctx, project.Dir, updated); err != nil {
			return nil, platformError("indexing test case", err)
		}
	}
	return &updated, nil
}

// TestCases reads the test case entities stored directly in folder,
// sorted by name.
func (c *Controller) TestCases(project model.Project, folder model.Folder) ([]model.TestCase, error) {
	dir := folderDir(project, folder)
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, platformError("reading folder "+folder.String(), err)
	}

	var cases []model.TestCase
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), testCaseExt) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, platformError("reading test case", err)
		}
		var tc model.TestCase
		if err := yaml.Unmarshal(data, &tc); err != nil {
			return nil, platformError("parsing test case "+e.Name(), err)
		}
		tc.Folder = folder.Path
		tc.ScriptFile = scriptPath(project, folder, tc.Name)
		cases = append(cases, tc)
	}

	sort.Slice(cases, func(i, j int) bool {
		return strings.ToLower(cases[i].Name) < strings.ToLower(cases[j].Name)
	})
	return cases, nil
}

// AppendScript appends raw text to the script file of tc.
func AppendScript(tc *model.TestCase, text string) error {
	f, err := os.OpenFile(tc.ScriptFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return &model.IOError{Path: tc.ScriptFile, Err: err}
	}
	if _, err := f.WriteString(text); err != nil {
		f.Close()
		return &model.IOError{Path: tc.ScriptFile, Err: err}
	}
	if err := f.Close(); err != nil {
		return &model.IOError{Path: tc.ScriptFile, Err: err}
	}
	return nil
}

func (c *Controller) writeEntity(project model.Project, folder model.Folder, tc *model.TestCase) error {
	data, err := yaml.Marshal(tc)
	if err != nil {
		return platformError("encoding test case", err)
	}
	if err := os.WriteFile(entityPath(project, folder, tc.Name), data, 0o644); err != nil {
		return platformError("writing test case", err)
	}
	return nil
}
