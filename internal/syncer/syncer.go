// Package syncer periodically pulls list membership from external services.
//
// A pass fetches every account's lists with bounded parallelism and then
// applies each account in its own transaction. A failure for one account is
// recorded as a sync problem and never stops the others.
package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/randalmurphal/shelf/internal/db"
	"github.com/randalmurphal/shelf/internal/inbox"
	"github.com/randalmurphal/shelf/internal/services"
)

// DefaultInterval is the time between background passes.
const DefaultInterval = 15 * time.Minute

// DefaultConcurrency bounds the number of accounts fetched at once.
const DefaultConcurrency = 4

// Config controls a Syncer.
type Config struct {
	Interval    time.Duration
	Concurrency int

	// Defaults are per-kind connection settings from the config file.
	Defaults map[services.Kind]services.AccountConfig
}

// Report summarizes one pass.
type Report struct {
	Accounts int
	Lists    int
	Created  int
	Added    int
	Closed   int
	Pruned   int
	Problems []db.SyncProblem
}

// Syncer runs sync passes against the store.
type Syncer struct {
	store    *db.DB
	registry *services.Registry
	cfg      Config
	logger   *slog.Logger

	stopCh chan struct{}
	doneCh chan struct{}
}

// New creates a Syncer. Zero config values take the defaults.
func New(store *db.DB, registry *services.Registry, cfg Config, logger *slog.Logger) *Syncer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	return &Syncer{
		store:    store,
		registry: registry,
		cfg:      cfg,
		logger:   logger,
	}
}

// accountWork is one account's fetched lists, or the error that stopped it.
type accountWork struct {
	account services.Account
	lists   []db.List
	fetched map[string][]services.RemoteItem
	err     error
}

// RunOnce runs a single pass over every account. Per-account failures are
// reported, not returned; the error is for failures to read the store or a
// canceled context.
func (s *Syncer) RunOnce(ctx context.Context) (*Report, error) {
	work, err := s.loadAccounts(ctx)
	if err != nil {
		return nil, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for _, w := range work {
		if w.err != nil {
			continue
		}
		g.Go(func() error {
			w.fetched, w.err = s.fetch(gctx, w.account, w.lists)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report := &Report{Accounts: len(work)}
	for _, w := range work {
		if w.err == nil {
			w.err = s.apply(ctx, w, report)
		}
		if w.err != nil {
			p, err := s.recordProblem(ctx, w.account, w.err)
			if err != nil {
				return report, err
			}
			report.Problems = append(report.Problems, *p)
		}
	}

	s.logger.Info("sync pass complete",
		"accounts", report.Accounts,
		"lists", report.Lists,
		"created", report.Created,
		"added", report.Added,
		"closed", report.Closed,
		"pruned", report.Pruned,
		"problems", len(report.Problems),
	)
	return report, nil
}

// loadAccounts reads every service with its lists in one transaction.
func (s *Syncer) loadAccounts(ctx context.Context) ([]*accountWork, error) {
	var work []*accountWork
	err := s.store.RunInTx(ctx, func(tx *db.TxOps) error {
		svcs, err := db.FindServicesTx(tx)
		if err != nil {
			return err
		}
		for _, svc := range svcs {
			w := &accountWork{}
			w.account, w.err = services.NewAccount(svc, s.cfg.Defaults[services.Kind(svc.Kind)])
			if w.err != nil {
				w.account = services.Account{ServiceID: svc.ID, Kind: services.Kind(svc.Kind), Name: svc.Name}
			}
			if w.lists, err = db.FindListsTx(tx, db.Eq("service_id", svc.ID)); err != nil {
				return err
			}
			work = append(work, w)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load accounts: %w", err)
	}
	return work, nil
}

// fetch reads every list of one account.
func (s *Syncer) fetch(ctx context.Context, acct services.Account, ls []db.List) (map[string][]services.RemoteItem, error) {
	if len(ls) == 0 {
		return nil, nil
	}
	src, err := s.registry.Open(acct)
	if err != nil {
		return nil, err
	}

	out := make(map[string][]services.RemoteItem, len(ls))
	for _, l := range ls {
		items, err := src.Fetch(ctx, services.RefFor(l))
		if err != nil {
			return nil, fmt.Errorf("fetch list %s: %w", l.Name, err)
		}
		out[l.ID] = items
		s.logger.Debug("fetched list", "service", acct.Name, "list", l.Name, "items", len(items))
	}
	return out, nil
}

// apply writes one account's fetched lists in a single transaction, then
// prunes the inbox.
func (s *Syncer) apply(ctx context.Context, w *accountWork, report *Report) error {
	var listCount, created, added, closed, pruned int
	err := s.store.RunInTx(ctx, func(tx *db.TxOps) error {
		for _, l := range w.lists {
			out, err := applyList(tx, w.account, l, w.fetched[l.ID])
			if err != nil {
				return err
			}
			listCount++
			created += len(out.created)
			added += len(out.result.Added)
			closed += len(out.result.Closed)
		}
		ids, err := inbox.Prune(tx)
		pruned = len(ids)
		return err
	})
	if err != nil {
		return err
	}

	report.Lists += listCount
	report.Created += created
	report.Added += added
	report.Closed += closed
	report.Pruned += pruned
	return nil
}

// recordProblem stores err against acct and logs it.
func (s *Syncer) recordProblem(ctx context.Context, acct services.Account, cause error) (*db.SyncProblem, error) {
	s.logger.Warn("sync failed for account",
		"service", acct.Name,
		"kind", acct.Kind,
		"error", cause,
	)
	p := &db.SyncProblem{ServiceID: acct.ServiceID, Message: cause.Error()}
	if err := s.store.RunInTx(ctx, func(tx *db.TxOps) error {
		return db.CreateSyncProblemTx(tx, p)
	}); err != nil {
		return nil, fmt.Errorf("record sync problem for %s: %w", acct.Name, err)
	}
	return p, nil
}

// Start runs a pass immediately and then every interval until Stop is
// called or ctx is canceled.
func (s *Syncer) Start(ctx context.Context) {
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	go s.run(ctx)
}

// Stop signals the loop to stop and waits for the current pass to finish.
func (s *Syncer) Stop() {
	close(s.stopCh)
	<-s.doneCh
}

// Done is closed when the loop exits.
func (s *Syncer) Done() <-chan struct{} {
	return s.doneCh
}

func (s *Syncer) run(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.pass(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("sync stopping due to context cancellation")
			return
		case <-s.stopCh:
			s.logger.Debug("sync stopping due to stop signal")
			return
		case <-ticker.C:
			s.pass(ctx)
		}
	}
}

// pass runs RunOnce for the loop; a failed pass is logged and the loop
// keeps going.
func (s *Syncer) pass(ctx context.Context) {
	if _, err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
		s.logger.Warn("sync pass failed", "error", err)
	}
}
