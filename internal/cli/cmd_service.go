package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/shelf/internal/core"
	"github.com/randalmurphal/shelf/internal/lists"
	"github.com/randalmurphal/shelf/internal/services"
)

// newServiceCmd creates the service command with subcommands.
func newServiceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Manage external service accounts",
	}

	var acct services.AccountConfig
	add := &cobra.Command{
		Use:   "add <github|gitlab|jira> <name>",
		Short: "Register an external service account",
		Long: `Register an external service account.

Settings not given here fall back to the services section of the config.
Tokens are never stored; --token-env names the variable holding one.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				u, err := a.currentUser(ctx)
				if err != nil {
					return err
				}
				svc, err := a.svc.CreateService(ctx, u.ID, services.Kind(strings.ToLower(args[0])), args[1], acct)
				if err != nil {
					return err
				}
				return a.emit(svc, func(w io.Writer) {
					_, _ = fmt.Fprintf(w, "Created %s service %s (%s)\n", svc.Kind, svc.Name, svc.ID)
				})
			})
		},
	}
	add.Flags().StringVar(&acct.BaseURL, "url", "", "base URL (self-hosted instance or Jira site)")
	add.Flags().StringVar(&acct.TokenEnvVar, "token-env", "", "environment variable holding the API token")
	add.Flags().StringVar(&acct.Email, "email", "", "Jira account email")
	cmd.AddCommand(add)

	cmd.AddCommand(&cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List service accounts with their lists and sync problems",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				u, err := a.currentUser(ctx)
				if err != nil {
					return err
				}
				overview, err := a.svc.Services(ctx, u.ID)
				if err != nil {
					return err
				}
				return a.emit(overview, func(w io.Writer) { printServices(w, overview) })
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear-problems <service-id>",
		Short: "Forget the recorded sync problems of a service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				n, err := a.svc.ClearProblems(ctx, args[0])
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(a.out, "Cleared %d problem(s)\n", n)
				return nil
			})
		},
	})

	return cmd
}

func printServices(w io.Writer, overview []core.ServiceOverview) {
	if len(overview) == 0 {
		_, _ = fmt.Fprintln(w, "No services. Add one with: shelf service add <kind> <name>")
		return
	}
	for _, o := range overview {
		_, _ = fmt.Fprintf(w, "%s  %-7s %s\n", o.Service.ID, o.Service.Kind, o.Service.Name)
		for _, l := range o.Lists {
			offset := ""
			if l.DueOffset != "" {
				offset = " due +" + l.DueOffset
			}
			_, _ = fmt.Fprintf(w, "  list %s  %s%s  %s\n", l.ID, l.Name, offset, truncate(l.Query, 60))
		}
		for _, p := range o.Problems {
			_, _ = fmt.Fprintf(w, "  ! %s  %s\n", formatWhen(&p.OccurredAt), truncate(p.Message, 100))
		}
	}
}

// newListCmd creates the list command with subcommands.
func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Manage service lists",
		Long: `Manage the remote lists of a service account.

A list's query is provider specific: a JQL query for Jira, and for GitHub
or GitLab URL query parameters like "repo=owner/name&labels=bug&state=open".
Members of a list with a due offset are due that long after they joined.`,
	}

	var (
		url, query, offset string
	)
	add := &cobra.Command{
		Use:   "add <service-id> <name>",
		Short: "Create a list",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				l, err := a.svc.CreateList(ctx, args[0], args[1], url, query, offset)
				if err != nil {
					return err
				}
				return a.emit(l, func(w io.Writer) {
					_, _ = fmt.Fprintf(w, "Created list %s (%s)\n", l.Name, l.ID)
				})
			})
		},
	}
	add.Flags().StringVar(&url, "url", "", "web URL of the list")
	add.Flags().StringVar(&query, "query", "", "provider query selecting the members")
	add.Flags().StringVar(&offset, "due-offset", "", "members are due this long after joining (e.g. 3d, 12h)")
	cmd.AddCommand(add)

	edit := &cobra.Command{
		Use:   "edit <list-id>",
		Short: "Change a list's name, URL, query or due offset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var c lists.Changes
			flags := cmd.Flags()
			if flags.Changed("name") {
				v, _ := flags.GetString("name")
				c.Name = &v
			}
			if flags.Changed("url") {
				v, _ := flags.GetString("url")
				c.URL = &v
			}
			if flags.Changed("query") {
				v, _ := flags.GetString("query")
				c.Query = &v
			}
			if flags.Changed("due-offset") {
				v, _ := flags.GetString("due-offset")
				c.DueOffset = &v
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				if err := a.svc.EditList(ctx, args[0], c); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(a.out, "Updated list %s\n", args[0])
				return nil
			})
		},
	}
	edit.Flags().String("name", "", "new name")
	edit.Flags().String("url", "", "new web URL")
	edit.Flags().String("query", "", "new provider query")
	edit.Flags().String("due-offset", "", "new due offset; empty removes it")
	cmd.AddCommand(edit)

	var setOffset string
	set := &cobra.Command{
		Use:   "set <list-id> [item-id...]",
		Short: "Set a list's members by hand",
		Long: `Set a list's members to exactly the given items. Items that left are
closed, items that stayed keep when they joined, and new items join now.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				res, err := a.svc.UpdateList(ctx, args[0], args[1:], setOffset)
				if err != nil {
					return err
				}
				return a.emit(res, func(w io.Writer) {
					_, _ = fmt.Fprintf(w, "List %s: %d added, %d kept, %d reopened, %d closed\n",
						args[0], len(res.Added), len(res.Kept), len(res.Reopened), len(res.Closed))
				})
			})
		},
	}
	set.Flags().StringVar(&setOffset, "due-offset", "", "re-anchor every member's due to this offset")
	cmd.AddCommand(set)

	cmd.AddCommand(&cobra.Command{
		Use:   "rm <list-id>",
		Short: "Delete a list and its placements",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				if err := a.svc.DeleteList(ctx, args[0]); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(a.out, "Deleted list %s\n", args[0])
				return nil
			})
		},
	})

	return cmd
}
