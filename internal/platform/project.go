// Package platform implements the test project the importer writes into:
// test case entities under "Test Cases", their scripts under "Scripts",
// and an index of both kept in the store.
package platform

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/nhle/jira-import/internal/model"
)

const (
	testCaseDir   = "Test Cases"
	scriptDir     = "Scripts"
	testCaseExt   = ".tc"
	scriptFile    = "Script.groovy"
	scriptPreface = `import static com.kms.katalon.core.testcase.TestCaseFactory.findTestCase
import com.kms.katalon.core.webui.keyword.WebUiBuiltInKeywords as WebUI

`
)

// OpenProject opens the test project rooted at dir, creating the test case
// and script roots when missing.
func OpenProject(dir string) (model.Project, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return model.Project{}, platformError("opening project", err)
	}

	for _, sub := range []string{testCaseDir, scriptDir} {
		if err := os.MkdirAll(filepath.Join(abs, sub), 0o755); err != nil {
			return model.Project{}, platformError("opening project", err)
		}
	}

	return model.Project{Name: filepath.Base(abs), Dir: abs}, nil
}

// Folders lists every test case folder of the project, the root first and
// the rest sorted by path.
func Folders(project model.Project) ([]model.Folder, error) {
	root := filepath.Join(project.Dir, testCaseDir)

	var paths []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() || p == root {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		paths = append(paths, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, platformError("listing folders", err)
	}
	sort.Strings(paths)

	folders := make([]model.Folder, 0, len(paths)+1)
	folders = append(folders, model.Folder{})
	for _, p := range paths {
		folders = append(folders, model.Folder{Path: p})
	}
	return folders, nil
}

// CreateFolder creates a test case folder (and its parents) below the root.
func CreateFolder(project model.Project, rel string) (model.Folder, error) {
	clean, err := cleanFolderPath(rel)
	if err != nil {
		return model.Folder{}, err
	}
	if err := os.MkdirAll(folderDir(project, model.Folder{Path: clean}), 0o755); err != nil {
		return model.Folder{}, platformError("creating folder", err)
	}
	return model.Folder{Path: clean}, nil
}

func cleanFolderPath(rel string) (string, error) {
	rel = strings.Trim(filepath.ToSlash(rel), "/")
	if rel == "" {
		return "", nil
	}
	clean := path.Clean(rel)
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return "", platformError("creating folder", fmt.Errorf("%q escapes the test case root", rel))
	}
	return clean, nil
}

func folderDir(project model.Project, folder model.Folder) string {
	return filepath.Join(project.Dir, testCaseDir, filepath.FromSlash(folder.Path))
}

func entityPath(project model.Project, folder model.Folder, name string) string {
	return filepath.Join(folderDir(project, folder), name+testCaseExt)
}

func scriptPath(project model.Project, folder model.Folder, name string) string {
	return filepath.Join(project.Dir, scriptDir, filepath.FromSlash(folder.Path), name, scriptFile)
}

func platformError(op string, err error) error {
	return &model.PlatformError{Op: op, Err: err}
}
