package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS test_cases (
	id          TEXT PRIMARY KEY,
	project     TEXT NOT NULL,
	folder      TEXT NOT NULL DEFAULT '',
	name        TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	comment     TEXT NOT NULL DEFAULT '',
	script_path TEXT NOT NULL DEFAULT '',
	issue_key   TEXT NOT NULL DEFAULT '',
	issue_url   TEXT NOT NULL DEFAULT '',
	created_at  DATETIME NOT NULL,
	updated_at  DATETIME NOT NULL,
	UNIQUE(project, folder, name COLLATE NOCASE)
);

CREATE INDEX IF NOT EXISTS idx_test_cases_folder ON test_cases(project, folder);
CREATE INDEX IF NOT EXISTS idx_test_cases_issue_key ON test_cases(issue_key);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
CREATE TABLE IF NOT EXISTS import_runs (
	id            TEXT PRIMARY KEY,
	project       TEXT NOT NULL,
	folder        TEXT NOT NULL DEFAULT '',
	filter        TEXT NOT NULL DEFAULT '',
	issue_count   INTEGER NOT NULL DEFAULT 0,
	created_count INTEGER NOT NULL DEFAULT 0,
	status        TEXT NOT NULL DEFAULT 'running'
		CHECK(status IN ('running', 'ok', 'canceled', 'error')),
	error         TEXT NOT NULL DEFAULT '',
	started_at    DATETIME NOT NULL,
	finished_at   DATETIME
);

CREATE INDEX IF NOT EXISTS idx_import_runs_started ON import_runs(started_at);

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}
