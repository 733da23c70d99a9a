package store

import (
	"context"
	"errors"

	"github.com/nhle/jira-import/internal/model"
)

// ErrNotFound is returned when a lookup or update matches no row.
var ErrNotFound = errors.New("not found")

// Store defines the persistence interface for the test case index and
// the import history.
type Store interface {
	// === Test cases ===

	CreateTestCase(ctx context.Context, project string, tc model.TestCase) error
	UpdateTestCase(ctx context.Context, project string, tc model.TestCase) error
	GetTestCases(ctx context.Context, project, folder string) ([]model.TestCase, error)
	TestCaseNameTaken(ctx context.Context, project, folder, name string) (bool, error)

	// === Import history ===

	StartImport(ctx context.Context, run model.ImportRun) (string, error)
	FinishImport(ctx context.Context, id string, status model.ImportStatus, created int, errMsg string) error
	GetImportRuns(ctx context.Context, limit int) ([]model.ImportRun, error)
}
