package services

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	shelferrors "github.com/randalmurphal/shelf/internal/errors"
)

// RepoQuery is the list query of repository-based trackers, written as URL
// query parameters:
//
//	repo=owner/name&labels=bug,p1&state=all&include=area/**
//
// repo may be omitted when the list URL points at the repository.
type RepoQuery struct {
	Owner   string
	Repo    string
	Labels  []string
	State   string
	Include []string
}

// ParseRepoQuery parses ref.Query, falling back to ref.URL for the repository.
func ParseRepoQuery(ref ListRef) (RepoQuery, error) {
	vals, err := url.ParseQuery(ref.Query)
	if err != nil {
		return RepoQuery{}, shelferrors.Validation(
			fmt.Sprintf("invalid query for list %s", ref.Name),
			"expected key=value pairs like repo=owner/name&labels=bug",
		).WithCause(err)
	}

	q := RepoQuery{State: "open"}
	repoPath := vals.Get("repo")
	if repoPath == "" {
		repoPath = ref.URL
	}
	q.Owner, q.Repo = ParseOwnerRepo(repoPath)
	if q.Owner == "" || q.Repo == "" {
		return RepoQuery{}, shelferrors.Validation(
			fmt.Sprintf("list %s names no repository", ref.Name),
			"set repo=owner/name in the query or give the list a repository URL",
		)
	}

	if s := vals.Get("state"); s != "" {
		switch s {
		case "open", "closed", "all":
			q.State = s
		default:
			return RepoQuery{}, shelferrors.Validation(
				fmt.Sprintf("invalid state %q for list %s", s, ref.Name),
				"expected open, closed or all",
			)
		}
	}
	q.Labels = splitList(vals["labels"])
	q.Include = splitList(vals["include"])
	for _, p := range q.Include {
		if !doublestar.ValidatePattern(p) {
			return RepoQuery{}, shelferrors.Validation(
				fmt.Sprintf("invalid include pattern %q for list %s", p, ref.Name),
				"patterns use doublestar syntax, like area/** or team-*",
			)
		}
	}
	return q, nil
}

// FilterIncluded keeps items with at least one label matching a pattern.
// No patterns keeps everything.
func FilterIncluded(items []RemoteItem, patterns []string) []RemoteItem {
	if len(patterns) == 0 {
		return items
	}
	out := items[:0:0]
	for _, it := range items {
		if matchesAny(it.Labels, patterns) {
			out = append(out, it)
		}
	}
	return out
}

func matchesAny(labels, patterns []string) bool {
	for _, l := range labels {
		for _, p := range patterns {
			if ok, _ := doublestar.Match(p, l); ok {
				return true
			}
		}
	}
	return false
}

func splitList(vals []string) []string {
	var out []string
	for _, v := range vals {
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}
