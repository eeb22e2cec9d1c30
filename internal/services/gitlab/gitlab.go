// Package gitlab reads GitLab issue lists with the GitLab API client.
package gitlab

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	gogitlab "gitlab.com/gitlab-org/api/client-go"

	"github.com/randalmurphal/shelf/internal/services"
)

// Compile-time interface check.
var _ services.Source = (*Source)(nil)

// Source fetches issues of one project per list.
type Source struct {
	client *gogitlab.Client
}

// Register adds the GitLab constructor to reg.
func Register(reg *services.Registry) {
	reg.Register(services.KindGitLab, New)
}

// New creates a Source for acct. The token comes from acct's token env var,
// or GITLAB_TOKEN then GITLAB_PRIVATE_TOKEN.
func New(acct services.Account) (services.Source, error) {
	token, err := services.ResolveToken(acct.Config.TokenEnvVar, "GITLAB_TOKEN", "GITLAB_PRIVATE_TOKEN")
	if err != nil {
		return nil, err
	}

	var client *gogitlab.Client
	if acct.Config.BaseURL != "" {
		baseURL := strings.TrimSuffix(acct.Config.BaseURL, "/")
		client, err = gogitlab.NewClient(token, gogitlab.WithBaseURL(baseURL+"/api/v4"))
	} else {
		client, err = gogitlab.NewClient(token)
	}
	if err != nil {
		return nil, fmt.Errorf("create GitLab client: %w", err)
	}

	return &Source{client: client}, nil
}

// NewWithClient wraps an existing GitLab client.
func NewWithClient(client *gogitlab.Client) *Source {
	return &Source{client: client}
}

// Kind returns services.KindGitLab.
func (s *Source) Kind() services.Kind {
	return services.KindGitLab
}

// Fetch lists the project issues selected by ref's query.
func (s *Source) Fetch(ctx context.Context, ref services.ListRef) ([]services.RemoteItem, error) {
	q, err := services.ParseRepoQuery(ref)
	if err != nil {
		return nil, err
	}
	projectID := q.Owner + "/" + q.Repo

	opts := &gogitlab.ListProjectIssuesOptions{
		State:       gogitlab.Ptr(issueState(q.State)),
		ListOptions: gogitlab.ListOptions{PerPage: 100},
	}
	if len(q.Labels) > 0 {
		labels := gogitlab.LabelOptions(q.Labels)
		opts.Labels = &labels
	}

	var items []services.RemoteItem
	for {
		issues, resp, err := s.client.Issues.ListProjectIssues(projectID, opts, gogitlab.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("list issues of %s: %w", projectID, err)
		}
		for _, issue := range issues {
			item, err := mapIssue(projectID, issue)
			if err != nil {
				return nil, err
			}
			items = append(items, item)
		}
		if resp.NextPage == 0 {
			break
		}
		opts.ListOptions.Page = resp.NextPage
	}

	return services.FilterIncluded(items, q.Include), nil
}

// issueState maps the shared query state onto GitLab's names.
func issueState(state string) string {
	if state == "open" {
		return "opened"
	}
	return state
}

// mapIssue converts a GitLab issue. The issue due date is the due date;
// closing the issue marks it done.
func mapIssue(projectID string, issue *gogitlab.Issue) (services.RemoteItem, error) {
	fields, err := json.Marshal(issue)
	if err != nil {
		return services.RemoteItem{}, fmt.Errorf("encode issue %d: %w", issue.IID, err)
	}

	item := services.RemoteItem{
		Key:     projectID + "#" + strconv.FormatInt(int64(issue.IID), 10),
		Summary: issue.Title,
		URL:     issue.WebURL,
		Labels:  []string(issue.Labels),
		Fields:  fields,
	}
	if issue.DueDate != nil {
		t := time.Time(*issue.DueDate).UTC()
		item.Due = &t
	}
	if issue.State == "closed" {
		switch {
		case issue.ClosedAt != nil:
			t := issue.ClosedAt.UTC()
			item.Done = &t
		case issue.UpdatedAt != nil:
			t := issue.UpdatedAt.UTC()
			item.Done = &t
		default:
			t := time.Now().UTC()
			item.Done = &t
		}
	}
	return item, nil
}
