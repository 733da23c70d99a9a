package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/jira-import/internal/model"
)

// testCaseRow mirrors the test_cases table.
type testCaseRow struct {
	ID          string    `db:"id"`
	Project     string    `db:"project"`
	Folder      string    `db:"folder"`
	Name        string    `db:"name"`
	Description string    `db:"description"`
	Comment     string    `db:"comment"`
	ScriptPath  string    `db:"script_path"`
	IssueKey    string    `db:"issue_key"`
	IssueURL    string    `db:"issue_url"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (r testCaseRow) toModel() model.TestCase {
	tc := model.TestCase{
		ID:          r.ID,
		Name:        r.Name,
		Folder:      r.Folder,
		Description: r.Description,
		Comment:     r.Comment,
		ScriptFile:  r.ScriptPath,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	if r.IssueKey != "" {
		tc.Integration = &model.Integration{IssueKey: r.IssueKey, URL: r.IssueURL}
	}
	return tc
}

func integrationColumns(tc model.TestCase) (key, url string) {
	if tc.Integration == nil {
		return "", ""
	}
	return tc.Integration.IssueKey, tc.Integration.URL
}

// CreateTestCase indexes a new test case. The name must be unique within
// the folder, ignoring case.
func (s *SQLiteStore) CreateTestCase(ctx context.Context, project string, tc model.TestCase) error {
	if strings.TrimSpace(tc.Name) == "" {
		return fmt.Errorf("test case name must not be empty")
	}
	if tc.ID == "" {
		tc.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if tc.CreatedAt.IsZero() {
		tc.CreatedAt = now
	}
	if tc.UpdatedAt.IsZero() {
		tc.UpdatedAt = now
	}
	issueKey, issueURL := integrationColumns(tc)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO test_cases (
			id, project, folder, name, description, comment,
			script_path, issue_key, issue_url, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tc.ID, project, tc.Folder, tc.Name, tc.Description, tc.Comment,
		tc.ScriptFile, issueKey, issueURL, tc.CreatedAt.UTC(), tc.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("creating test case %s: %w", tc.Name, err)
	}
	return nil
}

// UpdateTestCase rewrites the indexed attributes of an existing test case.
func (s *SQLiteStore) UpdateTestCase(ctx context.Context, project string, tc model.TestCase) error {
	issueKey, issueURL := integrationColumns(tc)

	result, err := s.db.ExecContext(ctx, `
		UPDATE test_cases SET
			description = ?, comment = ?, script_path = ?,
			issue_key = ?, issue_url = ?, updated_at = ?
		WHERE id = ? AND project = ?`,
		tc.Description, tc.Comment, tc.ScriptFile,
		issueKey, issueURL, time.Now().UTC(),
		tc.ID, project,
	)
	if err != nil {
		return fmt.Errorf("updating test case %s: %w", tc.ID, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("test case %s: %w", tc.ID, ErrNotFound)
	}
	return nil
}

// GetTestCases returns the test cases indexed in a folder, sorted by name.
func (s *SQLiteStore) GetTestCases(ctx context.Context, project, folder string) ([]model.TestCase, error) {
	var rows []testCaseRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, project, folder, name, description, comment,
			script_path, issue_key, issue_url, created_at, updated_at
		FROM test_cases
		WHERE project = ? AND folder = ?
		ORDER BY name COLLATE NOCASE`,
		project, folder,
	)
	if err != nil {
		return nil, fmt.Errorf("querying test cases in %q: %w", folder, err)
	}

	out := make([]model.TestCase, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

// TestCaseNameTaken reports whether name is already indexed in the folder,
// ignoring case.
func (s *SQLiteStore) TestCaseNameTaken(ctx context.Context, project, folder, name string) (bool, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM test_cases
		WHERE project = ? AND folder = ? AND name = ? COLLATE NOCASE`,
		project, folder, name,
	)
	if err != nil {
		return false, fmt.Errorf("checking test case name %q: %w", name, err)
	}
	return count > 0, nil
}
