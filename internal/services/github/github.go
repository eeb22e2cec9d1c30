// Package github reads GitHub issue lists with go-github.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	gogithub "github.com/google/go-github/v82/github"

	"github.com/randalmurphal/shelf/internal/services"
)

// Compile-time interface check.
var _ services.Source = (*Source)(nil)

// Source fetches issues of one repository per list.
type Source struct {
	client *gogithub.Client
}

// Register adds the GitHub constructor to reg.
func Register(reg *services.Registry) {
	reg.Register(services.KindGitHub, New)
}

// New creates a Source for acct. The token comes from acct's token env var
// or GITHUB_TOKEN.
func New(acct services.Account) (services.Source, error) {
	token, err := services.ResolveToken(acct.Config.TokenEnvVar, "GITHUB_TOKEN")
	if err != nil {
		return nil, err
	}

	httpClient := &http.Client{
		Timeout:   30 * time.Second,
		Transport: &oauth2Transport{token: token},
	}
	client := gogithub.NewClient(httpClient)

	// GitHub Enterprise: override base URL.
	if acct.Config.BaseURL != "" {
		baseURL := strings.TrimSuffix(acct.Config.BaseURL, "/")
		var parseErr error
		client.BaseURL, parseErr = client.BaseURL.Parse(baseURL + "/api/v3/")
		if parseErr != nil {
			return nil, fmt.Errorf("parse base URL %q: %w", acct.Config.BaseURL, parseErr)
		}
	}

	return &Source{client: client}, nil
}

// NewWithClient wraps an existing go-github client.
func NewWithClient(client *gogithub.Client) *Source {
	return &Source{client: client}
}

// oauth2Transport adds an Authorization header to every request.
type oauth2Transport struct {
	token string
	base  http.RoundTripper
}

func (t *oauth2Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	req2 := req.Clone(req.Context())
	req2.Header.Set("Authorization", "Bearer "+t.token)
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(req2)
}

// Kind returns services.KindGitHub.
func (s *Source) Kind() services.Kind {
	return services.KindGitHub
}

// Fetch lists the repository issues selected by ref's query. Pull requests
// are skipped.
func (s *Source) Fetch(ctx context.Context, ref services.ListRef) ([]services.RemoteItem, error) {
	q, err := services.ParseRepoQuery(ref)
	if err != nil {
		return nil, err
	}

	opts := &gogithub.IssueListByRepoOptions{
		State:       q.State,
		Labels:      q.Labels,
		ListOptions: gogithub.ListOptions{PerPage: 100},
	}

	var items []services.RemoteItem
	for {
		issues, resp, err := s.client.Issues.ListByRepo(ctx, q.Owner, q.Repo, opts)
		if err != nil {
			return nil, fmt.Errorf("list issues of %s/%s: %w", q.Owner, q.Repo, err)
		}
		for _, issue := range issues {
			if issue.IsPullRequest() {
				continue
			}
			item, err := mapIssue(q.Owner, q.Repo, issue)
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

// mapIssue converts a go-github issue. The milestone due date is the due
// date; closing the issue marks it done.
func mapIssue(owner, repo string, issue *gogithub.Issue) (services.RemoteItem, error) {
	fields, err := json.Marshal(issue)
	if err != nil {
		return services.RemoteItem{}, fmt.Errorf("encode issue %d: %w", issue.GetNumber(), err)
	}

	var labels []string
	for _, l := range issue.Labels {
		if name := l.GetName(); name != "" {
			labels = append(labels, name)
		}
	}

	item := services.RemoteItem{
		Key:     owner + "/" + repo + "#" + strconv.Itoa(issue.GetNumber()),
		Summary: issue.GetTitle(),
		URL:     issue.GetHTMLURL(),
		Labels:  labels,
		Fields:  fields,
	}
	if due := issue.GetMilestone().GetDueOn(); !due.IsZero() {
		t := due.UTC()
		item.Due = &t
	}
	if issue.GetState() == "closed" {
		closed := issue.GetClosedAt()
		t := closed.UTC()
		if closed.IsZero() {
			t = issue.GetUpdatedAt().UTC()
		}
		item.Done = &t
	}
	return item, nil
}
