package config

import (
	"fmt"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"time"

	shelferrors "github.com/randalmurphal/shelf/internal/errors"
)

// configKeys lists every settable key in display order. A key is the
// dot-joined yaml names leading to one leaf field of Config; sections such
// as "sync" are not keys.
var configKeys = []string{
	"version",
	"user",
	"database.driver",
	"database.sqlite.path",
	"database.postgres.host",
	"database.postgres.port",
	"database.postgres.database",
	"database.postgres.user",
	"database.postgres.password",
	"database.postgres.ssl_mode",
	"sync.enabled",
	"sync.interval",
	"sync.concurrency",
	"services.github.base_url",
	"services.github.token_env_var",
	"services.gitlab.base_url",
	"services.gitlab.token_env_var",
	"services.jira.base_url",
	"services.jira.token_env_var",
	"services.jira.email",
	"logging.level",
	"logging.format",
}

var durationType = reflect.TypeFor[time.Duration]()

// AllConfigPaths returns every config key.
func AllConfigPaths() []string {
	return slices.Clone(configKeys)
}

// GetValue returns the value at key formatted the way 'config set' accepts
// it, e.g. "15m0s" for sync.interval.
func (c *Config) GetValue(key string) (string, error) {
	f, err := c.leaf(key)
	if err != nil {
		return "", err
	}
	return formatLeaf(f), nil
}

// SetValue parses value into the field at key. Durations use
// time.ParseDuration syntax; booleans accept true/1/yes/on.
func (c *Config) SetValue(key, value string) error {
	f, err := c.leaf(key)
	if err != nil {
		return err
	}
	if err := parseLeaf(f, value); err != nil {
		return shelferrors.ErrConfigInvalid(key, err.Error())
	}
	return nil
}

func (c *Config) leaf(key string) (reflect.Value, error) {
	if !slices.Contains(configKeys, key) {
		return reflect.Value{}, shelferrors.Validation(
			fmt.Sprintf("unknown config key %q", key),
			"run 'shelf config show --source' to list the keys",
		)
	}

	v := reflect.ValueOf(c).Elem()
	for _, name := range strings.Split(key, ".") {
		v = fieldByYAMLName(v, name)
		if !v.IsValid() {
			return reflect.Value{}, fmt.Errorf("config key %q has no matching field", key)
		}
	}
	return v, nil
}

func fieldByYAMLName(v reflect.Value, name string) reflect.Value {
	if v.Kind() != reflect.Struct {
		return reflect.Value{}
	}
	t := v.Type()
	for i := range t.NumField() {
		tag, _, _ := strings.Cut(t.Field(i).Tag.Get("yaml"), ",")
		if tag == name {
			return v.Field(i)
		}
	}
	return reflect.Value{}
}

func parseLeaf(f reflect.Value, s string) error {
	switch {
	case f.Type() == durationType:
		d, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("%q is not a duration like 15m", s)
		}
		f.SetInt(int64(d))
	case f.Kind() == reflect.String:
		f.SetString(s)
	case f.Kind() == reflect.Int:
		n, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("%q is not an integer", s)
		}
		f.SetInt(int64(n))
	case f.Kind() == reflect.Bool:
		f.SetBool(parseBool(s))
	default:
		return fmt.Errorf("cannot set a %s from the command line", f.Type())
	}
	return nil
}

func formatLeaf(f reflect.Value) string {
	switch {
	case f.Type() == durationType:
		return time.Duration(f.Int()).String()
	case f.Kind() == reflect.Int:
		return strconv.FormatInt(f.Int(), 10)
	case f.Kind() == reflect.Bool:
		return strconv.FormatBool(f.Bool())
	default:
		return f.String()
	}
}
