package model

import (
	"path"
	"time"
)

// Project is a test project rooted at a directory on disk.
type Project struct {
	Name string
	Dir  string
}

// Folder is a test case folder inside a project. Path is slash-separated
// and relative to the project's test case root; the root itself is "".
type Folder struct {
	Path string
}

// Name returns the last element of the folder path, or RootFolderName
// for the root folder.
func (f Folder) Name() string {
	if f.Path == "" {
		return RootFolderName
	}
	return path.Base(f.Path)
}

// String returns the folder as displayed to the user.
func (f Folder) String() string {
	if f.Path == "" {
		return RootFolderName
	}
	return RootFolderName + "/" + f.Path
}

// RootFolderName is the display name of the test case root folder.
const RootFolderName = "Test Cases"

// NewDescription carries the attributes of a test case to be created.
type NewDescription struct {
	Name        string
	Description string
	Comment     string
}

// Integration links a test case back to the JIRA issue it came from.
type Integration struct {
	IssueID  string `yaml:"issue_id" json:"issue_id"`
	IssueKey string `yaml:"issue_key" json:"issue_key"`
	URL      string `yaml:"url" json:"url"`
	Summary  string `yaml:"summary" json:"summary"`
}

// TestCase is a unit of automated test content backed by a script file.
type TestCase struct {
	ID          string       `yaml:"id" db:"id"`
	Name        string       `yaml:"name" db:"name"`
	Folder      string       `yaml:"-" db:"folder"`
	Description string       `yaml:"description" db:"description"`
	Comment     string       `yaml:"comment" db:"comment"`
	ScriptFile  string       `yaml:"-" db:"script_path"`
	Integration *Integration `yaml:"integration,omitempty" db:"-"`
	CreatedAt   time.Time    `yaml:"created_at" db:"created_at"`
	UpdatedAt   time.Time    `yaml:"updated_at" db:"updated_at"`
}

// ImportStatus is the final outcome of an import run.
type ImportStatus string

const (
	ImportRunning  ImportStatus = "running"
	ImportOK       ImportStatus = "ok"
	ImportCanceled ImportStatus = "canceled"
	ImportFailed   ImportStatus = "error"
)

// ImportRun records one scheduled import.
type ImportRun struct {
	ID           string       `db:"id"`
	Project      string       `db:"project"`
	Folder       string       `db:"folder"`
	Filter       string       `db:"filter"`
	IssueCount   int          `db:"issue_count"`
	CreatedCount int          `db:"created_count"`
	Status       ImportStatus `db:"status"`
	Error        string       `db:"error"`
	StartedAt    time.Time    `db:"started_at"`
	FinishedAt   *time.Time   `db:"finished_at"`
}
