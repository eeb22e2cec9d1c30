// Package services connects shelf lists to external issue trackers.
//
// A Source fetches the current members of one remote list for one account.
// Sources are built through an explicit Registry that the caller assembles
// once and passes down.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/randalmurphal/shelf/internal/db"
)

// Kind identifies an external service.
type Kind string

const (
	KindGitHub  Kind = "github"
	KindGitLab  Kind = "gitlab"
	KindJira    Kind = "jira"
	KindUnknown Kind = "unknown"
)

// AccountConfig holds connection settings for one account. Values stored on
// the service row override the defaults from the config file.
type AccountConfig struct {
	// BaseURL for self-hosted instances or the Jira site URL.
	BaseURL string `json:"base_url,omitempty" yaml:"base_url"`

	// TokenEnvVar names the environment variable holding the API token.
	TokenEnvVar string `json:"token_env_var,omitempty" yaml:"token_env_var"`

	// Email is the Jira basic-auth user.
	Email string `json:"email,omitempty" yaml:"email"`
}

// Account is a service row with its resolved connection settings.
type Account struct {
	ServiceID string
	UserID    string
	Kind      Kind
	Name      string
	Config    AccountConfig
}

// NewAccount overlays the JSON config stored on svc onto defaults.
func NewAccount(svc db.Service, defaults AccountConfig) (Account, error) {
	cfg := defaults
	if len(svc.Config) > 0 {
		var stored AccountConfig
		if err := json.Unmarshal(svc.Config, &stored); err != nil {
			return Account{}, fmt.Errorf("parse config of service %s: %w", svc.Name, err)
		}
		if stored.BaseURL != "" {
			cfg.BaseURL = stored.BaseURL
		}
		if stored.TokenEnvVar != "" {
			cfg.TokenEnvVar = stored.TokenEnvVar
		}
		if stored.Email != "" {
			cfg.Email = stored.Email
		}
	}
	return Account{
		ServiceID: svc.ID,
		UserID:    svc.UserID,
		Kind:      Kind(svc.Kind),
		Name:      svc.Name,
		Config:    cfg,
	}, nil
}

// ListRef identifies a remote list to fetch.
type ListRef struct {
	ID    string
	Name  string
	URL   string
	Query string
}

// RefFor builds the reference for a stored list.
func RefFor(l db.List) ListRef {
	return ListRef{ID: l.ID, Name: l.Name, URL: l.URL, Query: l.Query}
}

// RemoteItem is one member of a remote list.
type RemoteItem struct {
	// Key is unique per account, like "owner/repo#12" or "PROJ-7".
	Key     string
	Summary string
	URL     string
	Labels  []string

	// Fields is the provider's raw JSON for the item.
	Fields json.RawMessage

	Due  *time.Time
	Done *time.Time
}

// Field reads a value from the raw fields with a gjson path.
func (r RemoteItem) Field(path string) gjson.Result {
	return gjson.GetBytes(r.Fields, path)
}

// DetailField reads a value from a stored service detail with a gjson path.
func DetailField(d *db.ServiceDetail, path string) gjson.Result {
	if d == nil {
		return gjson.Result{}
	}
	return gjson.GetBytes(d.Fields, path)
}

// Source fetches list membership from one account.
type Source interface {
	Kind() Kind
	Fetch(ctx context.Context, ref ListRef) ([]RemoteItem, error)
}

var (
	githubPattern = regexp.MustCompile(`github\.(com|[a-z0-9-]+\.[a-z]+)[:/]`)
	gitlabPattern = regexp.MustCompile(`gitlab\.(com|[a-z0-9-]+\.[a-z]+)[:/]`)
	jiraPattern   = regexp.MustCompile(`(\.atlassian\.net|jira\.[a-z0-9-]+\.[a-z]+)([:/]|$)`)
)

// DetectKind guesses the service kind from a URL.
//
// Recognized forms:
//   - https://github.com/owner/repo, git@github.company.com:org/repo
//   - https://gitlab.com/group/sub/repo, https://gitlab.acme.com/...
//   - https://acme.atlassian.net/..., https://jira.acme.com/...
func DetectKind(rawURL string) Kind {
	u := strings.ToLower(strings.TrimSpace(rawURL))
	switch {
	case githubPattern.MatchString(u):
		return KindGitHub
	case gitlabPattern.MatchString(u):
		return KindGitLab
	case jiraPattern.MatchString(u):
		return KindJira
	default:
		return KindUnknown
	}
}

// ParseOwnerRepo extracts owner and repo from a repository URL.
//
// Handles:
//   - git@github.com:owner/repo.git → (owner, repo)
//   - https://github.com/owner/repo/issues → (owner, repo)
//   - ssh://git@github.com:22/owner/repo.git → (owner, repo)
//   - https://gitlab.com/group/subgroup/repo → (group/subgroup, repo)
//   - owner/repo → (owner, repo)
func ParseOwnerRepo(rawURL string) (owner, repo string) {
	raw := strings.TrimSpace(rawURL)
	raw = strings.TrimSuffix(raw, "/")
	raw = strings.TrimSuffix(raw, ".git")

	switch {
	case strings.HasPrefix(raw, "ssh://"):
		raw = strings.TrimPrefix(raw, "ssh://")
		if idx := strings.Index(raw, "/"); idx != -1 {
			raw = strings.TrimLeft(raw[idx+1:], "/")
		}
	case strings.HasPrefix(raw, "https://"), strings.HasPrefix(raw, "http://"):
		raw = strings.TrimPrefix(raw, "https://")
		raw = strings.TrimPrefix(raw, "http://")
		if idx := strings.Index(raw, "/"); idx != -1 {
			raw = raw[idx+1:]
		}
	default:
		if idx := strings.Index(raw, ":"); idx != -1 {
			raw = raw[idx+1:]
		}
	}

	// Web URLs carry trailing pages: /-/issues on GitLab, /issues on GitHub.
	if idx := strings.Index(raw, "/-/"); idx != -1 {
		raw = raw[:idx]
	}
	raw = strings.TrimSuffix(raw, "/issues")

	parts := strings.Split(raw, "/")
	if len(parts) < 2 {
		return raw, ""
	}
	repo = parts[len(parts)-1]
	owner = strings.Join(parts[:len(parts)-1], "/")
	return owner, repo
}
