package importer

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf16"

	"github.com/nhle/jira-import/internal/model"
)

// Labels used in generated test case descriptions.
const (
	labelSummary     = "Summary"
	labelDescription = "Description"
)

// Description builds the test case description for issue.
func Description(issue model.Issue) string {
	var summary, description string
	if issue.Fields != nil {
		summary = issue.Fields.Summary
		description = issue.Fields.Description
	}
	return fmt.Sprintf("%s: %s\n%s: %s", labelSummary, summary, labelDescription, description)
}

// Comment returns the value issue holds for the comment field, or "" when
// there is no comment field, the issue has no fields, the field is missing
// or its value is null.
func Comment(field *model.Field, issue model.Issue) string {
	if field == nil || issue.Fields == nil {
		return ""
	}
	value, ok := issue.Fields.CustomFields[field.ID]
	if !ok || value == nil {
		return ""
	}
	return stringValue(value)
}

// stringValue renders a decoded JSON value. Strings are used as-is;
// structured values keep their JSON form.
func stringValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case bool, float64, int, int64:
		return fmt.Sprint(t)
	default:
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(data)
	}
}

// ScriptAsComment turns a comment into script statements: one
// WebUI.comment call per non-empty line, in order. Lines are split on
// both CR and LF.
func ScriptAsComment(comment string) string {
	lines := strings.FieldsFunc(comment, func(r rune) bool {
		return r == '\r' || r == '\n'
	})

	var b strings.Builder
	for _, line := range lines {
		fmt.Fprintf(&b, "WebUI.comment('%s')\n", Escape(line))
	}
	return b.String()
}

// Escape escapes s for use inside a quoted Java or Groovy string literal.
// Backslash, both quote characters and the named control characters get
// backslash escapes; other control characters and everything above
// U+007F become \uXXXX, using surrogate pairs outside the BMP.
func Escape(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		case '\'':
			b.WriteString(`\'`)
		case '\b':
			b.WriteString(`\b`)
		case '\t':
			b.WriteString(`\t`)
		case '\n':
			b.WriteString(`\n`)
		case '\f':
			b.WriteString(`\f`)
		case '\r':
			b.WriteString(`\r`)
		default:
			switch {
			case r < 0x20:
				fmt.Fprintf(&b, `\u%04X`, r)
			case r > 0xffff:
				hi, lo := utf16.EncodeRune(r)
				fmt.Fprintf(&b, `\u%04X\u%04X`, hi, lo)
			case r > 0x7f:
				fmt.Fprintf(&b, `\u%04X`, r)
			default:
				b.WriteRune(r)
			}
		}
	}
	return b.String()
}
