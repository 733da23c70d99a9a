package model

// Filter is a saved JIRA query together with the issues it resolved to.
type Filter struct {
	// ID is the JIRA filter id. Empty for an ad-hoc JQL query.
	ID string `json:"id"`

	// Name is the human-readable filter name.
	Name string `json:"name"`

	// JQL is the query the filter runs.
	JQL string `json:"jql"`

	// Issues holds the issues the query returned when it was resolved.
	Issues []Issue `json:"issues,omitempty"`
}

// Issue is a JIRA work item as seen by the importer.
type Issue struct {
	ID   string `json:"id"`
	Key  string `json:"key"`
	Self string `json:"self"`

	// Fields is nil when JIRA returned the issue without a fields block.
	Fields *IssueFields `json:"fields,omitempty"`
}

// IssueFields holds the issue fields the importer reads.
type IssueFields struct {
	Summary     string `json:"summary"`
	Description string `json:"description"`

	// CustomFields maps custom field ids (customfield_NNNNN) to their
	// decoded JSON values. A field present with a JSON null value maps
	// to nil.
	CustomFields map[string]any `json:"custom_fields,omitempty"`
}

// Field describes a JIRA field definition.
type Field struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Custom bool   `json:"custom"`
}
