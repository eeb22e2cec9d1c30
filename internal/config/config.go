// Package config provides configuration management for shelf.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/randalmurphal/shelf/internal/db/driver"
	shelferrors "github.com/randalmurphal/shelf/internal/errors"
	"github.com/randalmurphal/shelf/internal/services"
	"github.com/randalmurphal/shelf/internal/util"
)

const (
	// ConfigFileName is the default config file name
	ConfigFileName = "config.yaml"
	// ShelfDir is the shelf data directory
	ShelfDir = ".shelf"
	// DBFileName is the SQLite store inside ShelfDir
	DBFileName = "shelf.db"
)

// Config represents the shelf configuration.
type Config struct {
	// Version is the config file version
	Version int `yaml:"version"`

	// User is the default user name for CLI commands.
	User string `yaml:"user"`

	Database DatabaseConfig `yaml:"database"`
	Sync     SyncConfig     `yaml:"sync"`
	Services ServicesConfig `yaml:"services"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// DatabaseConfig selects and configures the store.
type DatabaseConfig struct {
	// Driver is the database type: "sqlite" or "postgres"
	Driver string `yaml:"driver"`

	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// SQLiteConfig defines SQLite-specific settings.
type SQLiteConfig struct {
	// Path of the database file, relative to the working directory
	Path string `yaml:"path"`
}

// PostgresConfig defines PostgreSQL-specific settings.
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"` // Use env SHELF_DB_PASSWORD
	SSLMode  string `yaml:"ssl_mode"`
}

// SyncConfig controls background synchronization of service lists.
type SyncConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Interval    time.Duration `yaml:"interval"`
	Concurrency int           `yaml:"concurrency"`
}

// ServicesConfig holds per-kind account defaults. Settings stored on a
// service account override these.
type ServicesConfig struct {
	GitHub services.AccountConfig `yaml:"github"`
	GitLab services.AccountConfig `yaml:"gitlab"`
	Jira   services.AccountConfig `yaml:"jira"`
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	// Level is debug, info, warn or error
	Level string `yaml:"level"`
	// Format is text or json
	Format string `yaml:"format"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Version: 1,
		Database: DatabaseConfig{
			Driver: "sqlite",
			SQLite: SQLiteConfig{Path: filepath.Join(ShelfDir, DBFileName)},
			Postgres: PostgresConfig{
				Host:     "localhost",
				Port:     5432,
				Database: "shelf",
				User:     "shelf",
				SSLMode:  "disable",
			},
		},
		Sync: SyncConfig{
			Enabled:     true,
			Interval:    15 * time.Minute,
			Concurrency: 4,
		},
		Services: ServicesConfig{
			GitHub: services.AccountConfig{TokenEnvVar: "GITHUB_TOKEN"},
			GitLab: services.AccountConfig{BaseURL: "https://gitlab.com", TokenEnvVar: "GITLAB_TOKEN"},
			Jira:   services.AccountConfig{TokenEnvVar: "JIRA_API_TOKEN"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Dialect returns the store dialect named by database.driver.
func (c *Config) Dialect() (driver.Dialect, error) {
	d, err := driver.ParseDialect(c.Database.Driver)
	if err != nil {
		return "", shelferrors.ErrConfigInvalid("database.driver", err.Error())
	}
	return d, nil
}

// DSN returns the connection string for the configured driver.
func (c *Config) DSN() string {
	if c.Database.Driver == "postgres" {
		pg := c.Database.Postgres
		u := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(pg.User, pg.Password),
			Host:     pg.Host + ":" + strconv.Itoa(pg.Port),
			Path:     "/" + pg.Database,
			RawQuery: "sslmode=" + url.QueryEscape(pg.SSLMode),
		}
		return u.String()
	}
	return c.Database.SQLite.Path
}

// AccountDefaults returns the service defaults keyed by kind.
func (c *Config) AccountDefaults() map[services.Kind]services.AccountConfig {
	return map[services.Kind]services.AccountConfig{
		services.KindGitHub: c.Services.GitHub,
		services.KindGitLab: c.Services.GitLab,
		services.KindJira:   c.Services.Jira,
	}
}

// Load loads the config from the default location.
func Load() (*Config, error) {
	return LoadFrom(filepath.Join(ShelfDir, ConfigFileName))
}

// LoadFrom loads the config from a specific path.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return cfg, nil
}

// Save saves the config to the default location.
func (c *Config) Save() error {
	return c.SaveTo(filepath.Join(ShelfDir, ConfigFileName))
}

// SaveTo saves the config to a specific path.
func (c *Config) SaveTo(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := util.WriteFileAtomic(path, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}

// Init initializes the shelf directory in the working directory.
func Init(force bool) error {
	return InitAt(".", force)
}

// InitAt creates root/.shelf with a default config.
func InitAt(root string, force bool) error {
	dir := filepath.Join(root, ShelfDir)
	if !force {
		if util.Exists(dir) {
			return shelferrors.ErrAlreadyInitialized(dir)
		}
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}

	if err := Default().SaveTo(filepath.Join(dir, ConfigFileName)); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}

// IsInitialized returns true if shelf is initialized in the current directory.
func IsInitialized() bool {
	return util.Exists(ShelfDir)
}

// RequireInit returns an error if shelf is not initialized.
func RequireInit() error {
	if !IsInitialized() {
		return shelferrors.ErrNotInitialized()
	}
	return nil
}
