package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/shelf/internal/config"
	"github.com/randalmurphal/shelf/internal/core"
	"github.com/randalmurphal/shelf/internal/db"
)

// newInitCmd creates the init command
func newInitCmd() *cobra.Command {
	var (
		force bool
		user  string
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize shelf in the current directory",
		Long: `Initialize shelf in the current directory.

Creates .shelf/ with a default config.yaml and the SQLite store. With
--create-user, also creates that user (with a "personal" context) and makes it
the default user for later commands.

Examples:
  shelf init --create-user ada
  shelf init --force          # Rewrite config.yaml with defaults`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Init(force); err != nil {
				return err
			}
			cfg := config.Default()

			store, err := db.Open(config.ShelfDir)
			if err != nil {
				return fmt.Errorf("create store: %w", err)
			}
			defer func() { _ = store.Close() }()

			out := cmd.OutOrStdout()
			if user != "" {
				svc := core.New(store, newLogger(cmd.ErrOrStderr(), cfg.Logging, verbose))
				u, err := svc.CreateUser(cmd.Context(), user)
				if err != nil {
					return err
				}
				cfg.User = u.Name
				if err := cfg.Save(); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(out, "Created user %s (%s)\n", u.Name, u.ID)
			}

			_, _ = fmt.Fprintf(out, "Initialized shelf in %s\n", filepath.Join(".", config.ShelfDir))
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing configuration")
	cmd.Flags().StringVar(&user, "create-user", "", "Create this user and make it the default")

	return cmd
}
