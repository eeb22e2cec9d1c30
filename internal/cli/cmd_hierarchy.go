package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/shelf/internal/db"
)

// newUserCmd creates the user command with subcommands.
func newUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage users",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "add <name>",
		Short: "Create a user with a default context",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				u, err := a.svc.CreateUser(ctx, args[0])
				if err != nil {
					return err
				}
				return a.emit(u, func(w io.Writer) {
					_, _ = fmt.Fprintf(w, "Created user %s (%s)\n", u.Name, u.ID)
				})
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the acting user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				u, err := a.currentUser(ctx)
				if err != nil {
					return err
				}
				return a.emit(u, func(w io.Writer) {
					_, _ = fmt.Fprintf(w, "%s (%s)\n", u.Name, u.ID)
				})
			})
		},
	})

	return cmd
}

// newContextCmd creates the context command with subcommands.
func newContextCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "context",
		Short: "Manage contexts",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "add <name>",
		Short: "Create a context",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				u, err := a.currentUser(ctx)
				if err != nil {
					return err
				}
				c, err := a.svc.CreateContext(ctx, u.ID, args[0])
				if err != nil {
					return err
				}
				return a.emit(c, func(w io.Writer) {
					_, _ = fmt.Fprintf(w, "Created context %s (%s)\n", c.Name, c.ID)
				})
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "rm <context-id>",
		Short: "Delete a context; its items become unfiled",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				if err := a.svc.DeleteContext(ctx, args[0]); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(a.out, "Deleted context %s\n", args[0])
				return nil
			})
		},
	})

	return cmd
}

// newProjectCmd creates the project command with subcommands.
func newProjectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Manage projects",
	}

	var parent string
	add := &cobra.Command{
		Use:   "add <context-id> <name>",
		Short: "Create a project, optionally under a parent project",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				p, err := a.svc.CreateProject(ctx, args[0], parent, args[1])
				if err != nil {
					return err
				}
				return a.emit(p, func(w io.Writer) {
					_, _ = fmt.Fprintf(w, "Created project %s (%s)\n", p.Name, p.ID)
				})
			})
		},
	}
	add.Flags().StringVar(&parent, "parent", "", "parent project id")
	cmd.AddCommand(add)

	return cmd
}

// newSectionCmd creates the section command with subcommands.
func newSectionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "section",
		Short: "Manage sections",
	}

	var addBefore string
	add := &cobra.Command{
		Use:   "add <project-id> <name>",
		Short: "Create a section, last or before a sibling",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				s, err := a.svc.CreateSection(ctx, args[0], args[1], addBefore)
				if err != nil {
					return err
				}
				return a.emit(s, func(w io.Writer) {
					_, _ = fmt.Fprintf(w, "Created section %s (%s) at %d\n", s.Name, s.ID, s.Index)
				})
			})
		},
	}
	add.Flags().StringVar(&addBefore, "before", "", "sibling section id to insert before")
	cmd.AddCommand(add)

	var mvBefore string
	mv := &cobra.Command{
		Use:   "mv <section-id> <project-id>",
		Short: "Move a section into a project, last or before a sibling",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				if err := a.svc.MoveSection(ctx, args[0], args[1], mvBefore); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(a.out, "Moved section %s\n", args[0])
				return nil
			})
		},
	}
	mv.Flags().StringVar(&mvBefore, "before", "", "sibling section id to move before")
	cmd.AddCommand(mv)

	return cmd
}

// sectionLabel names a section for output; anonymous sections have no name.
func sectionLabel(s db.Section) string {
	if s.IsAnonymous() {
		return ""
	}
	return s.Name
}
