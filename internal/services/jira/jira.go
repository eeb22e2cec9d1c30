// Package jira reads Jira Cloud issue lists with go-atlassian. A list's
// query is a JQL expression.
package jira

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	v3 "github.com/ctreminiom/go-atlassian/v2/jira/v3"
	"github.com/tidwall/gjson"

	shelferrors "github.com/randalmurphal/shelf/internal/errors"
	"github.com/randalmurphal/shelf/internal/services"
)

// Compile-time interface check.
var _ services.Source = (*Source)(nil)

// searchFields are the Jira fields requested in search results.
var searchFields = []string{
	"summary",
	"status",
	"labels",
	"duedate",
	"resolutiondate",
	"issuetype",
	"priority",
	"assignee",
	"updated",
}

// searchFunc returns the raw JSON of every issue matching jql.
type searchFunc func(ctx context.Context, jql string) ([]json.RawMessage, error)

// Source runs one JQL search per list.
type Source struct {
	baseURL string
	search  searchFunc
}

// Register adds the Jira constructor to reg.
func Register(reg *services.Registry) {
	reg.Register(services.KindJira, New)
}

// New creates a Source for acct using basic auth with acct's email and the
// token from acct's token env var or JIRA_API_TOKEN.
func New(acct services.Account) (services.Source, error) {
	if acct.Config.BaseURL == "" {
		return nil, fmt.Errorf("jira base URL is required")
	}
	if acct.Config.Email == "" {
		return nil, fmt.Errorf("jira email is required")
	}
	token, err := services.ResolveToken(acct.Config.TokenEnvVar, "JIRA_API_TOKEN")
	if err != nil {
		return nil, err
	}

	baseURL := strings.TrimRight(acct.Config.BaseURL, "/")
	client, err := v3.New(&http.Client{Timeout: 30 * time.Second}, baseURL)
	if err != nil {
		return nil, fmt.Errorf("create jira client: %w", err)
	}
	client.Auth.SetBasicAuth(acct.Config.Email, token)
	client.Auth.SetUserAgent("shelf-sync/1.0")

	return &Source{baseURL: baseURL, search: searchAll(client)}, nil
}

// searchAll pages through a JQL search and re-encodes each issue.
func searchAll(client *v3.Client) searchFunc {
	return func(ctx context.Context, jql string) ([]json.RawMessage, error) {
		var all []json.RawMessage
		nextPageToken := ""

		for {
			result, resp, err := client.Issue.Search.SearchJQL(
				ctx,
				jql,
				searchFields,
				nil, // no expand
				50,  // maxResults per page
				nextPageToken,
			)
			if err != nil {
				if resp != nil {
					return nil, fmt.Errorf("jira search (status %d): %w", resp.StatusCode, err)
				}
				return nil, fmt.Errorf("jira search: %w", err)
			}

			for _, issue := range result.Issues {
				if issue == nil {
					continue
				}
				raw, err := json.Marshal(issue)
				if err != nil {
					return nil, fmt.Errorf("encode issue %s: %w", issue.Key, err)
				}
				all = append(all, raw)
			}

			if result.NextPageToken == "" || len(result.Issues) == 0 {
				break
			}
			nextPageToken = result.NextPageToken
		}
		return all, nil
	}
}

// Kind returns services.KindJira.
func (s *Source) Kind() services.Kind {
	return services.KindJira
}

// Fetch runs ref's JQL query.
func (s *Source) Fetch(ctx context.Context, ref services.ListRef) ([]services.RemoteItem, error) {
	jql := strings.TrimSpace(ref.Query)
	if jql == "" {
		return nil, shelferrors.Validation(
			fmt.Sprintf("list %s has no JQL query", ref.Name),
			"set the list query to a JQL expression like project = PROJ AND assignee = currentUser()",
		)
	}

	raws, err := s.search(ctx, jql)
	if err != nil {
		return nil, err
	}
	items := make([]services.RemoteItem, 0, len(raws))
	for _, raw := range raws {
		item, ok := mapIssue(s.baseURL, raw)
		if ok {
			items = append(items, item)
		}
	}
	return items, nil
}

// mapIssue converts an issue's JSON. The issue due date is the due date; an
// issue whose status category is done is done at its resolution date.
func mapIssue(baseURL string, raw json.RawMessage) (services.RemoteItem, bool) {
	doc := gjson.ParseBytes(raw)
	key := doc.Get("key").String()
	if key == "" {
		return services.RemoteItem{}, false
	}

	item := services.RemoteItem{
		Key:     key,
		Summary: doc.Get("fields.summary").String(),
		URL:     baseURL + "/browse/" + key,
		Fields:  raw,
	}
	for _, l := range doc.Get("fields.labels").Array() {
		item.Labels = append(item.Labels, l.String())
	}
	if due, ok := parseTime(doc.Get("fields.duedate").String()); ok {
		item.Due = &due
	}
	if doc.Get("fields.status.statusCategory.key").String() == "done" {
		done, ok := parseTime(doc.Get("fields.resolutiondate").String())
		if !ok {
			done, ok = parseTime(doc.Get("fields.updated").String())
		}
		if !ok {
			done = time.Now().UTC()
		}
		item.Done = &done
	}
	return item, true
}

var timeLayouts = []string{
	"2006-01-02T15:04:05.000-0700",
	time.RFC3339Nano,
	"2006-01-02",
}

func parseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
