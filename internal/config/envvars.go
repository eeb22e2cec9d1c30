package config

import (
	"log/slog"
	"os"
	"sort"
	"strings"
)

// EnvVarMapping defines the mapping between environment variables and config paths.
var EnvVarMapping = map[string]string{
	"SHELF_USER": "user",
	// Database settings
	"SHELF_DB_DRIVER":   "database.driver",
	"SHELF_DB_PATH":     "database.sqlite.path",
	"SHELF_DB_HOST":     "database.postgres.host",
	"SHELF_DB_PORT":     "database.postgres.port",
	"SHELF_DB_NAME":     "database.postgres.database",
	"SHELF_DB_USER":     "database.postgres.user",
	"SHELF_DB_PASSWORD": "database.postgres.password",
	"SHELF_DB_SSL_MODE": "database.postgres.ssl_mode",
	// Sync settings
	"SHELF_SYNC_ENABLED":     "sync.enabled",
	"SHELF_SYNC_INTERVAL":    "sync.interval",
	"SHELF_SYNC_CONCURRENCY": "sync.concurrency",
	// Service defaults
	"SHELF_GITHUB_URL": "services.github.base_url",
	"SHELF_GITLAB_URL": "services.gitlab.base_url",
	"SHELF_JIRA_URL":   "services.jira.base_url",
	"SHELF_JIRA_EMAIL": "services.jira.email",
	// Logging
	"SHELF_LOG_LEVEL":  "logging.level",
	"SHELF_LOG_FORMAT": "logging.format",
}

// ApplyEnvVars applies environment variable overrides to a TrackedConfig.
// Returns the overridden paths in sorted order.
func ApplyEnvVars(tc *TrackedConfig) []string {
	var overridden []string

	for envVar, configPath := range EnvVarMapping {
		value := os.Getenv(envVar)
		if value == "" {
			continue
		}

		if err := tc.Config.SetValue(configPath, value); err != nil {
			slog.Warn("ignoring environment override", "var", envVar, "error", err)
			continue
		}
		tc.SetSourceWithPath(configPath, SourceEnv, envVar)
		overridden = append(overridden, configPath)
	}

	sort.Strings(overridden)
	return overridden
}

// parseBool parses a boolean string (case-insensitive).
func parseBool(s string) bool {
	s = strings.ToLower(s)
	return s == "true" || s == "1" || s == "yes" || s == "on"
}
