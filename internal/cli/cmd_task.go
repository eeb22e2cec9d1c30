package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/shelf/internal/db"
	shelferrors "github.com/randalmurphal/shelf/internal/errors"
)

// newTaskCmd creates the task command with subcommands.
func newTaskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Manage task state of items",
		Long: `Manage the due/done state of items.

An item's controller decides where its due and done come from:
  manual       the overrides set with 'task due' and 'task done'
  service      the mirrored service item (falls back to the overrides)
  servicelist  the item's list placements, combined across lists
  none         the item is not a task`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "controller <item-id> <manual|service|servicelist|none>",
		Short: "Set or remove an item's task controller",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var controller *db.Controller
			if args[1] != "none" {
				c, err := db.ParseController(args[1])
				if err != nil {
					return shelferrors.Validation(err.Error(), "expected manual, service, servicelist or none")
				}
				controller = &c
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				if err := a.svc.EditTaskController(ctx, args[0], controller); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(a.out, "Set controller of %s to %s\n", args[0], args[1])
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "due <item-id> <when|none>",
		Short: "Set or clear the manual due override",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			due, err := parseWhen(args[1], db.Now())
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				if err := a.svc.MarkItemDue(ctx, args[0], due); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(a.out, "Due of %s: %s\n", args[0], formatWhen(due))
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "done <item-id> [when|none]",
		Short: "Set or clear the manual done override (default now)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			when := "now"
			if len(args) == 2 {
				when = args[1]
			}
			done, err := parseWhen(when, db.Now())
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				if err := a.svc.MarkItemDone(ctx, args[0], done); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(a.out, "Done of %s: %s\n", args[0], formatWhen(done))
				return nil
			})
		},
	})

	return cmd
}
