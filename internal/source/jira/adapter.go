package jira

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nhle/jira-import/internal/credential"
	"github.com/nhle/jira-import/internal/model"
)

// searchFields requests every field so custom fields come back too.
var searchFields = []string{"*all"}

// Service exposes the JIRA operations the importer needs and converts
// wire types into model types. Every failure it returns is a
// *model.IntegrationError.
type Service struct {
	client           *Client
	commentFieldName string
	pageSize         int
	newClient        func(credential.Jira) *Client
	log              *slog.Logger
}

// NewService creates a Service. commentFieldName is the display name of
// the custom field holding test script comments.
func NewService(client *Client, commentFieldName string, pageSize int) *Service {
	if pageSize < 1 {
		pageSize = 50
	}
	return &Service{
		client:           client,
		commentFieldName: commentFieldName,
		pageSize:         pageSize,
		newClient: func(cred credential.Jira) *Client {
			return NewClient(cred)
		},
		log: slog.With("component", "jira"),
	}
}

func integrationError(op string, err error) error {
	return &model.IntegrationError{
		Op:   op,
		Err:  err,
		Auth: errors.Is(err, ErrUnauthorized),
	}
}

// CurrentUser returns the display name of the authenticated user. It is
// used to check a credential before saving it.
func (s *Service) CurrentUser(ctx context.Context) (string, error) {
	var user User
	if err := s.client.Get(ctx, "/rest/api/2/myself", &user); err != nil {
		return "", integrationError("verifying credential", err)
	}
	if user.DisplayName != "" {
		return user.DisplayName, nil
	}
	return user.Name, nil
}

// FavouriteFilters returns the current user's favourite filters.
func (s *Service) FavouriteFilters(ctx context.Context) ([]model.Filter, error) {
	var filters []Filter
	if err := s.client.Get(ctx, "/rest/api/2/filter/favourite", &filters); err != nil {
		return nil, integrationError("fetching favourite filters", err)
	}

	out := make([]model.Filter, 0, len(filters))
	for _, f := range filters {
		out = append(out, model.Filter{ID: f.ID, Name: f.Name, JQL: f.JQL})
	}
	return out, nil
}

// ResolveFilter runs the filter's JQL and returns a copy of the filter
// with every matching issue attached.
func (s *Service) ResolveFilter(ctx context.Context, filter model.Filter) (model.Filter, error) {
	if strings.TrimSpace(filter.JQL) == "" {
		return filter, integrationError("resolving filter", fmt.Errorf("filter %q has no JQL", filter.Name))
	}

	var issues []model.Issue
	for startAt := 0; ; {
		body := map[string]any{
			"jql":        filter.JQL,
			"fields":     searchFields,
			"startAt":    startAt,
			"maxResults": s.pageSize,
		}

		var resp SearchResponse
		if err := s.client.Post(ctx, "/rest/api/2/search", body, &resp); err != nil {
			return filter, integrationError("searching issues", err)
		}

		for _, issue := range resp.Issues {
			issues = append(issues, toModelIssue(issue))
		}

		startAt += len(resp.Issues)
		if len(resp.Issues) == 0 || startAt >= resp.Total {
			break
		}
	}

	s.log.Debug("resolved filter", "filter", filter.Name, "issues", len(issues))
	filter.Issues = issues
	return filter, nil
}

// CommentField looks up the custom field that carries test script
// comments, authenticating with cred. It returns nil when no custom field
// with the configured name exists.
func (s *Service) CommentField(ctx context.Context, cred credential.Jira) (*model.Field, error) {
	client := s.client
	if cred.Token != "" {
		client = s.newClient(cred)
	}

	var fields []Field
	if err := client.Get(ctx, "/rest/api/2/field", &fields); err != nil {
		return nil, integrationError("fetching fields", err)
	}

	for _, f := range fields {
		if f.Custom && strings.EqualFold(f.Name, s.commentFieldName) {
			return &model.Field{ID: f.ID, Name: f.Name, Custom: true}, nil
		}
	}
	return nil, nil
}

// Integration converts issue into the link stored on the test case
// created from it.
func (s *Service) Integration(issue model.Issue) model.Integration {
	integ := model.Integration{
		IssueID:  issue.ID,
		IssueKey: issue.Key,
		URL:      s.client.BrowseURL(issue.Key),
	}
	if issue.Fields != nil {
		integ.Summary = issue.Fields.Summary
	}
	return integ
}

func toModelIssue(issue Issue) model.Issue {
	out := model.Issue{
		ID:   issue.ID,
		Key:  issue.Key,
		Self: issue.Self,
	}
	if issue.Fields != nil {
		out.Fields = &model.IssueFields{
			Summary:      issue.Fields.Summary,
			Description:  issue.Fields.Description,
			CustomFields: issue.Fields.CustomFields,
		}
	}
	return out
}
