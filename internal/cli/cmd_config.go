package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/randalmurphal/shelf/internal/config"
)

// newConfigCmd creates the config command with subcommands.
func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View and manage configuration",
		Long: `View and manage shelf configuration.

Configuration is loaded from multiple sources with this priority:
  1. Environment variables (SHELF_*) and CLI flags
  2. Project: .shelf/config.yaml
  3. User: ~/.shelf/config.yaml
  4. Defaults: built-in values

Examples:
  shelf config show                  # Show merged config as YAML
  shelf config show --source         # Show with source annotations
  shelf config get sync.interval --source
  shelf config set sync.interval 30m # Set in project config
  shelf config set --global services.jira.email ada@acme.com`,
	}

	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigGetCmd())
	cmd.AddCommand(newConfigSetCmd())

	return cmd
}

// newConfigShowCmd creates the 'config show' subcommand.
func newConfigShowCmd() *cobra.Command {
	var showSource bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show merged configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			tc, err := config.LoadWithSources()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			out := cmd.OutOrStdout()
			if showSource {
				printConfigWithSources(out, tc)
				return nil
			}
			return printConfigAsYAML(out, tc.Config)
		},
	}

	cmd.Flags().BoolVar(&showSource, "source", false, "Show source for each value")

	return cmd
}

// newConfigGetCmd creates the 'config get' subcommand.
func newConfigGetCmd() *cobra.Command {
	var showSource bool

	cmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Get a specific config value",
		Long: `Get a specific configuration value by key.

Keys use dot notation for nested values (e.g., "services.jira.base_url").`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]

			tc, err := config.LoadWithSources()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			value, err := tc.Config.GetValue(key)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if showSource {
				_, _ = fmt.Fprintf(out, "%s (from %s)\n", value, tc.GetTrackedSource(key))
			} else {
				_, _ = fmt.Fprintln(out, value)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showSource, "source", false, "Show source of the value")

	return cmd
}

// newConfigSetCmd creates the 'config set' subcommand.
func newConfigSetCmd() *cobra.Command {
	var global bool

	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a config value",
		Long: `Set a configuration value in the project config (.shelf/config.yaml),
or with --global in the user config (~/.shelf/config.yaml).`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, value := args[0], args[1]

			targetPath := filepath.Join(config.ShelfDir, config.ConfigFileName)
			targetName := ".shelf/config.yaml"
			if global {
				home, err := os.UserHomeDir()
				if err != nil {
					return fmt.Errorf("get home directory: %w", err)
				}
				targetPath = filepath.Join(home, config.ShelfDir, config.ConfigFileName)
				targetName = "~/.shelf/config.yaml"
			}

			cfg, err := config.LoadFrom(targetPath)
			if err != nil {
				return fmt.Errorf("load config from %s: %w", targetPath, err)
			}
			if err := cfg.SetValue(key, value); err != nil {
				return fmt.Errorf("set %s: %w", key, err)
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := cfg.SaveTo(targetPath); err != nil {
				return fmt.Errorf("save config: %w", err)
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s in %s\n", key, value, targetName)
			return nil
		},
	}

	cmd.Flags().BoolVar(&global, "global", false, "Save to user config (~/.shelf/config.yaml)")

	return cmd
}

// printConfigAsYAML outputs the config as valid YAML.
func printConfigAsYAML(out io.Writer, cfg *config.Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	_, _ = fmt.Fprint(out, string(data))
	return nil
}

// printConfigWithSources outputs config values with source annotations.
func printConfigWithSources(out io.Writer, tc *config.TrackedConfig) {
	paths := config.AllConfigPaths()
	sort.Strings(paths)

	for _, path := range paths {
		value, err := tc.Config.GetValue(path)
		if err != nil {
			continue
		}
		_, _ = fmt.Fprintf(out, "%s = %s (%s)\n", path, value, tc.GetTrackedSource(path))
	}
}
