package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, ShelfDir, ConfigFileName)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadWithSources_DefaultsOnly(t *testing.T) {
	tmpDir := t.TempDir()
	// Use empty home to avoid picking up real user config
	t.Setenv("HOME", filepath.Join(tmpDir, "nonexistent"))

	tc, err := LoadWithSourcesFrom(tmpDir)
	if err != nil {
		t.Fatalf("LoadWithSourcesFrom failed: %v", err)
	}

	if tc.Config.Sync.Interval != 15*time.Minute {
		t.Errorf("Sync.Interval = %v, want 15m", tc.Config.Sync.Interval)
	}
	for _, path := range AllConfigPaths() {
		if tc.GetSource(path) != SourceDefault {
			t.Errorf("%s source = %q, want default", path, tc.GetSource(path))
		}
	}
}

func TestLoadWithSources_Layering(t *testing.T) {
	tmpDir := t.TempDir()
	home := filepath.Join(tmpDir, "home")
	project := filepath.Join(tmpDir, "project")
	t.Setenv("HOME", home)

	userPath := writeConfig(t, home, `
user: ada
sync:
  interval: 30m
  concurrency: 2
`)
	projectPath := writeConfig(t, project, `
sync:
  interval: 5m
services:
  jira:
    base_url: https://acme.atlassian.net
`)
	t.Setenv("SHELF_SYNC_CONCURRENCY", "8")

	tc, err := LoadWithSourcesFrom(project)
	if err != nil {
		t.Fatalf("LoadWithSourcesFrom failed: %v", err)
	}
	cfg := tc.Config

	if cfg.User != "ada" {
		t.Errorf("User = %s, want ada", cfg.User)
	}
	if cfg.Sync.Interval != 5*time.Minute {
		t.Errorf("Sync.Interval = %v, want 5m from project", cfg.Sync.Interval)
	}
	if cfg.Sync.Concurrency != 8 {
		t.Errorf("Sync.Concurrency = %d, want 8 from env", cfg.Sync.Concurrency)
	}
	if cfg.Services.Jira.BaseURL != "https://acme.atlassian.net" {
		t.Errorf("Services.Jira.BaseURL = %s", cfg.Services.Jira.BaseURL)
	}
	if cfg.Services.Jira.TokenEnvVar != "JIRA_API_TOKEN" {
		t.Errorf("sibling key lost its default: %s", cfg.Services.Jira.TokenEnvVar)
	}

	wantSources := map[string]TrackedSource{
		"user":                   {Source: SourceUser, Path: userPath},
		"sync.interval":          {Source: SourceProject, Path: projectPath},
		"sync.concurrency":       {Source: SourceEnv, Path: "SHELF_SYNC_CONCURRENCY"},
		"services.jira.base_url": {Source: SourceProject, Path: projectPath},
		"services.jira.email":    {Source: SourceDefault},
		"database.driver":        {Source: SourceDefault},
	}
	for path, want := range wantSources {
		if got := tc.GetTrackedSource(path); got != want {
			t.Errorf("%s source = %s, want %s", path, got, want)
		}
	}
}

func TestLoadWithSources_BadProjectConfigIsFatal(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("HOME", filepath.Join(tmpDir, "nonexistent"))
	writeConfig(t, tmpDir, "sync: [not, a, map]\n")

	if _, err := LoadWithSourcesFrom(tmpDir); err == nil {
		t.Error("expected error for malformed project config")
	}
}

func TestApplyEnvVars_IgnoresBadValues(t *testing.T) {
	t.Setenv("SHELF_DB_PORT", "many")
	t.Setenv("SHELF_LOG_LEVEL", "debug")

	tc := NewTrackedConfig()
	overridden := ApplyEnvVars(tc)

	if len(overridden) != 1 || overridden[0] != "logging.level" {
		t.Errorf("overridden = %v, want [logging.level]", overridden)
	}
	if tc.Config.Database.Postgres.Port != 5432 {
		t.Errorf("Port = %d, want default kept", tc.Config.Database.Postgres.Port)
	}
	if tc.Config.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %s, want debug", tc.Config.Logging.Level)
	}
}

func TestTrackedSource_String(t *testing.T) {
	if s := (TrackedSource{Source: SourceDefault}).String(); s != "default" {
		t.Errorf("String() = %s", s)
	}
	if s := (TrackedSource{Source: SourceEnv, Path: "SHELF_USER"}).String(); s != "env: SHELF_USER" {
		t.Errorf("String() = %s", s)
	}
}
