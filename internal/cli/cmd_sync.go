package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/shelf/internal/config"
	"github.com/randalmurphal/shelf/internal/lock"
	"github.com/randalmurphal/shelf/internal/services"
	"github.com/randalmurphal/shelf/internal/services/github"
	"github.com/randalmurphal/shelf/internal/services/gitlab"
	"github.com/randalmurphal/shelf/internal/services/jira"
	"github.com/randalmurphal/shelf/internal/syncer"
)

// newRegistry returns a registry with every supported provider.
func newRegistry() *services.Registry {
	reg := services.NewRegistry()
	github.Register(reg)
	gitlab.Register(reg)
	jira.Register(reg)
	return reg
}

// newSyncCmd creates the sync command.
func newSyncCmd() *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Pull list membership from external services",
		Long: `Fetch every service list and mirror its members as items.

Members that joined are placed on the list, members that left are closed,
and task state follows. A failing account is recorded as a sync problem
(see 'shelf service ls') and does not stop the others.

With --watch, sync runs every sync.interval until interrupted. Only one
watcher runs per workspace.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				s := syncer.New(a.store, newRegistry(), syncer.Config{
					Interval:    a.cfg.Sync.Interval,
					Concurrency: a.cfg.Sync.Concurrency,
					Defaults:    a.cfg.AccountDefaults(),
				}, a.logger)

				if !watch {
					report, err := s.RunOnce(ctx)
					if err != nil {
						return err
					}
					return a.emit(report, func(w io.Writer) { printReport(w, report) })
				}

				if !a.cfg.Sync.Enabled {
					a.logger.Warn("sync.enabled is false; watching anyway")
				}
				guard := lock.NewPIDGuard(config.ShelfDir)
				if err := guard.Acquire(); err != nil {
					return err
				}
				defer guard.Release()

				ctx, cancel := SetupSignalHandler(ctx, cmd.ErrOrStderr())
				defer cancel()

				_, _ = fmt.Fprintf(a.out, "Syncing every %s, Ctrl-C to stop\n", a.cfg.Sync.Interval)
				s.Start(ctx)
				select {
				case <-ctx.Done():
				case <-s.Done():
				}
				s.Stop()
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "keep syncing every sync.interval")

	return cmd
}

func printReport(w io.Writer, r *syncer.Report) {
	_, _ = fmt.Fprintf(w, "Synced %d account(s), %d list(s)\n", r.Accounts, r.Lists)
	_, _ = fmt.Fprintf(w, "  %d item(s) created, %d placement(s) added, %d closed, %d pruned\n",
		r.Created, r.Added, r.Closed, r.Pruned)
	for _, p := range r.Problems {
		_, _ = fmt.Fprintf(w, "  ! service %s: %s\n", p.ServiceID, p.Message)
	}
}
