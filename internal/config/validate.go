package config

import (
	"fmt"
	"time"

	shelferrors "github.com/randalmurphal/shelf/internal/errors"
)

// MinSyncInterval is the shortest accepted sync.interval.
const MinSyncInterval = time.Minute

// Validate checks the configuration and returns the first invalid field.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite":
		if c.Database.SQLite.Path == "" {
			return shelferrors.ErrConfigMissing("database.sqlite.path")
		}
	case "postgres":
		pg := c.Database.Postgres
		if pg.Host == "" {
			return shelferrors.ErrConfigMissing("database.postgres.host")
		}
		if pg.Database == "" {
			return shelferrors.ErrConfigMissing("database.postgres.database")
		}
		if pg.Port <= 0 || pg.Port > 65535 {
			return shelferrors.ErrConfigInvalid("database.postgres.port", fmt.Sprintf("%d is not a TCP port", pg.Port))
		}
	default:
		return shelferrors.ErrConfigInvalid("database.driver", fmt.Sprintf("%q is not sqlite or postgres", c.Database.Driver))
	}

	if c.Sync.Enabled && c.Sync.Interval < MinSyncInterval {
		return shelferrors.ErrConfigInvalid("sync.interval", fmt.Sprintf("must be at least %s", MinSyncInterval))
	}
	if c.Sync.Concurrency < 1 {
		return shelferrors.ErrConfigInvalid("sync.concurrency", "must be at least 1")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return shelferrors.ErrConfigInvalid("logging.level", fmt.Sprintf("%q is not debug, info, warn or error", c.Logging.Level))
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return shelferrors.ErrConfigInvalid("logging.format", fmt.Sprintf("%q is not text or json", c.Logging.Format))
	}

	return nil
}
