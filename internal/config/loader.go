package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// LoadWithSources loads configuration with source tracking from the
// working directory.
func LoadWithSources() (*TrackedConfig, error) {
	return LoadWithSourcesFrom(".")
}

// LoadWithSourcesFrom loads configuration with source tracking.
// Load order (later sources override earlier):
//  1. Built-in defaults
//  2. User config (~/.shelf/config.yaml) - optional
//  3. Project config (projectDir/.shelf/config.yaml)
//  4. Environment variables (SHELF_*)
func LoadWithSourcesFrom(projectDir string) (*TrackedConfig, error) {
	tc := NewTrackedConfig()

	if home, err := os.UserHomeDir(); err == nil {
		userPath := filepath.Join(home, ShelfDir, ConfigFileName)
		if _, err := os.Stat(userPath); err == nil {
			if err := mergeFromFile(tc, userPath, SourceUser); err != nil {
				slog.Warn("failed to load user config", "path", userPath, "error", err)
			}
		}
	}

	projectPath := filepath.Join(projectDir, ShelfDir, ConfigFileName)
	if _, err := os.Stat(projectPath); err == nil {
		if err := mergeFromFile(tc, projectPath, SourceProject); err != nil {
			return nil, err // Project config errors are fatal
		}
	}

	ApplyEnvVars(tc)

	return tc, nil
}

// mergeFromFile decodes path over tc.Config and marks every key it sets.
// Decoding onto the existing struct leaves keys absent from the file alone.
func mergeFromFile(tc *TrackedConfig, path string, source ConfigSource) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, tc.Config); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	for _, key := range flattenKeys("", raw) {
		tc.SetSourceWithPath(key, source, path)
	}
	return nil
}

// flattenKeys returns the dotted paths of the leaves in raw.
func flattenKeys(prefix string, raw map[string]any) []string {
	var keys []string
	for k, v := range raw {
		path := k
		if prefix != "" {
			path = prefix + "." + k
		}
		if nested, ok := v.(map[string]any); ok {
			keys = append(keys, flattenKeys(path, nested)...)
			continue
		}
		keys = append(keys, path)
	}
	sort.Strings(keys)
	return keys
}
