package jira

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// customFieldPrefix marks the ids of JIRA custom fields.
const customFieldPrefix = "customfield_"

// SearchResponse is the response from POST /rest/api/2/search.
type SearchResponse struct {
	StartAt    int     `json:"startAt"`
	MaxResults int     `json:"maxResults"`
	Total      int     `json:"total"`
	Issues     []Issue `json:"issues"`
}

// Issue represents a single Jira issue from the REST API.
type Issue struct {
	ID     string       `json:"id"`
	Key    string       `json:"key"`
	Self   string       `json:"self"`
	Fields *IssueFields `json:"fields,omitempty"`
}

// IssueFields contains the standard fields of a Jira issue plus every
// custom field JIRA returned, keyed by field id.
type IssueFields struct {
	Summary      string
	Description  string
	CustomFields map[string]any
}

// UnmarshalJSON splits the fields object into the standard fields the
// importer reads and the customfield_* entries. Custom field values are
// decoded generically; JSON null stays nil.
func (f *IssueFields) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decoding issue fields: %w", err)
	}

	f.CustomFields = make(map[string]any)
	for name, value := range raw {
		switch {
		case name == "summary":
			if err := decodeText(value, &f.Summary); err != nil {
				return fmt.Errorf("decoding summary: %w", err)
			}
		case name == "description":
			if err := decodeText(value, &f.Description); err != nil {
				return fmt.Errorf("decoding description: %w", err)
			}
		case strings.HasPrefix(name, customFieldPrefix):
			var v any
			dec := json.NewDecoder(bytes.NewReader(value))
			dec.UseNumber()
			if err := dec.Decode(&v); err != nil {
				return fmt.Errorf("decoding %s: %w", name, err)
			}
			f.CustomFields[name] = v
		}
	}
	return nil
}

// MarshalJSON writes the fields back in the wire shape.
func (f IssueFields) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(f.CustomFields)+2)
	for k, v := range f.CustomFields {
		out[k] = v
	}
	out["summary"] = f.Summary
	out["description"] = f.Description
	return json.Marshal(out)
}

// decodeText accepts a JSON string or null.
func decodeText(value json.RawMessage, dst *string) error {
	if bytes.Equal(bytes.TrimSpace(value), []byte("null")) {
		*dst = ""
		return nil
	}
	return json.Unmarshal(value, dst)
}

// Filter is a saved JIRA filter.
type Filter struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	JQL         string `json:"jql"`
	ViewURL     string `json:"viewUrl"`
	Favourite   bool   `json:"favourite"`
}

// Field is one entry of GET /rest/api/2/field.
type Field struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Custom bool   `json:"custom"`
}

// ErrorResponse is the standard Jira error response format.
type ErrorResponse struct {
	ErrorMessages []string          `json:"errorMessages"`
	Errors        map[string]string `json:"errors"`
}

// User is the subset of /rest/api/2/myself used to verify a credential.
type User struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
}
