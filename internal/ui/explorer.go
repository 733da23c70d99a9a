package ui

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/nhle/jira-import/internal/model"
	"github.com/nhle/jira-import/internal/theme"
)

// TestCaseLister reads the test cases stored in a folder.
type TestCaseLister interface {
	TestCases(project model.Project, folder model.Folder) ([]model.TestCase, error)
}

// Explorer keeps a view of the project's folders and the current test case
// selection.
type Explorer struct {
	lister TestCaseLister

	mu       sync.Mutex
	project  model.Project
	folders  map[string][]model.TestCase
	selected map[string]bool
}

// NewExplorer creates an Explorer that reads folders through lister.
func NewExplorer(lister TestCaseLister) *Explorer {
	return &Explorer{
		lister:   lister,
		folders:  make(map[string][]model.TestCase),
		selected: make(map[string]bool),
	}
}

// RefreshFolder reloads folder from disk.
func (e *Explorer) RefreshFolder(project model.Project, folder model.Folder) error {
	testCases, err := e.lister.TestCases(project, folder)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.project.Dir != project.Dir {
		e.folders = make(map[string][]model.TestCase)
		e.selected = make(map[string]bool)
	}
	e.project = project
	e.folders[folder.Path] = testCases
	return nil
}

// SelectTestCases replaces the selection with testCases.
func (e *Explorer) SelectTestCases(project model.Project, testCases []model.TestCase) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.project = project
	e.selected = make(map[string]bool, len(testCases))
	for _, tc := range testCases {
		e.selected[selectionKey(tc)] = true
	}
	return nil
}

// Selected reports whether tc is part of the current selection.
func (e *Explorer) Selected(tc model.TestCase) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.selected[selectionKey(tc)]
}

// SelectionSize returns the number of selected test cases.
func (e *Explorer) SelectionSize() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.selected)
}

func selectionKey(tc model.TestCase) string {
	if tc.ID != "" {
		return tc.ID
	}
	return tc.Folder + "/" + tc.Name
}

// View renders the refreshed folders, with the selection highlighted.
func (e *Explorer) View() string {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.folders) == 0 {
		return ""
	}

	paths := make([]string, 0, len(e.folders))
	for p := range e.folders {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var b strings.Builder
	b.WriteString(theme.HeaderStyle.Render(e.project.Name))
	b.WriteString("\n")

	for _, p := range paths {
		folder := model.Folder{Path: p}
		testCases := e.folders[p]
		fmt.Fprintf(&b, "%s (%d)\n", theme.FolderStyle.Render(folder.String()), len(testCases))

		for _, tc := range testCases {
			line := tc.Name
			if tc.Integration != nil && tc.Integration.IssueKey != "" {
				line += " " + theme.LinkStyle.Render("["+tc.Integration.IssueKey+"]")
			}
			if e.selected[selectionKey(tc)] {
				b.WriteString(theme.SelectedItemStyle.Render(line))
			} else {
				b.WriteString(theme.ListItemStyle.Render(line))
			}
			b.WriteString("\n")
		}
	}
	return theme.BorderStyle.Render(strings.TrimRight(b.String(), "\n"))
}
