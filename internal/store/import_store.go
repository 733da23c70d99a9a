package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/jira-import/internal/model"
)

// StartImport records a new running import and returns its id.
func (s *SQLiteStore) StartImport(ctx context.Context, run model.ImportRun) (string, error) {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO import_runs (id, project, folder, filter, issue_count, status, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Project, run.Folder, run.Filter, run.IssueCount,
		string(model.ImportRunning), run.StartedAt.UTC(),
	)
	if err != nil {
		return "", fmt.Errorf("recording import start: %w", err)
	}
	return run.ID, nil
}

// FinishImport stores the outcome of the import with the given id.
func (s *SQLiteStore) FinishImport(
	ctx context.Context,
	id string,
	status model.ImportStatus,
	created int,
	errMsg string,
) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE import_runs SET
			status = ?, created_count = ?, error = ?, finished_at = ?
		WHERE id = ?`,
		string(status), created, errMsg, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("recording import %s finish: %w", id, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("import %s: %w", id, ErrNotFound)
	}
	return nil
}

// GetImportRuns returns the most recent imports first. A non-positive
// limit returns all of them.
func (s *SQLiteStore) GetImportRuns(ctx context.Context, limit int) ([]model.ImportRun, error) {
	query := `
		SELECT id, project, folder, filter, issue_count, created_count,
			status, error, started_at, finished_at
		FROM import_runs
		ORDER BY started_at DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	var runs []model.ImportRun
	if err := s.db.SelectContext(ctx, &runs, query); err != nil {
		return nil, fmt.Errorf("querying import runs: %w", err)
	}
	return runs, nil
}
