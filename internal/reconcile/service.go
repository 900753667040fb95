package reconcile

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// RepositoryPort abstracts balance storage.
type RepositoryPort interface {
	AccountBalances(ctx context.Context) ([]Balance, error)
	CustomerBalances(ctx context.Context) ([]Balance, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// Service runs reconciliations.
type Service struct {
	repo   RepositoryPort
	logger *slog.Logger
	now    func() time.Time
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Run scans both caches concurrently and reports every drift. With
// opts.Repair the drifted rows are locked, recomputed and overwritten in one
// transaction; rows that converged meanwhile are left alone.
func (s *Service) Run(ctx context.Context, opts Options) (Report, error) {
	report := Report{StartedAt: s.now().UTC()}

	var accounts, customers []Balance
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		accounts, err = s.repo.AccountBalances(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		customers, err = s.repo.CustomerBalances(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return Report{}, err
	}
	report.CheckedAccounts = len(accounts)
	report.CheckedCustomers = len(customers)
	report.Drifts = append(drifts(KindAccount, accounts), drifts(KindCustomer, customers)...)

	for _, d := range report.Drifts {
		s.logger.WarnContext(ctx, "balance drift",
			slog.String("kind", string(d.Kind)),
			slog.Int64("id", d.ID),
			slog.String("label", d.Label),
			slog.String("cached", d.Cached.StringFixed(2)),
			slog.String("computed", d.Computed.StringFixed(2)),
		)
	}

	if opts.Repair && !report.Clean() {
		repaired, err := s.repair(ctx, report.Drifts)
		if err != nil {
			return Report{}, err
		}
		report.Repaired = repaired
	}

	report.FinishedAt = s.now().UTC()
	s.logger.InfoContext(ctx, "reconciliation finished",
		slog.Int("accounts", report.CheckedAccounts),
		slog.Int("customers", report.CheckedCustomers),
		slog.Int("drifts", len(report.Drifts)),
		slog.Int("repaired", report.Repaired),
	)
	return report, nil
}

func (s *Service) repair(ctx context.Context, found []Drift) (int, error) {
	var accountIDs, customerIDs []int64
	for _, d := range found {
		switch d.Kind {
		case KindAccount:
			accountIDs = append(accountIDs, d.ID)
		case KindCustomer:
			customerIDs = append(customerIDs, d.ID)
		}
	}
	repaired := 0
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		repaired = 0
		if len(accountIDs) > 0 {
			locked, err := tx.LockAccountBalances(ctx, accountIDs)
			if err != nil {
				return err
			}
			for _, d := range drifts(KindAccount, locked) {
				if err := tx.SetAccountBalance(ctx, d.ID, d.Computed); err != nil {
					return err
				}
				repaired++
			}
		}
		if len(customerIDs) > 0 {
			locked, err := tx.LockCustomerBalances(ctx, customerIDs)
			if err != nil {
				return err
			}
			for _, d := range drifts(KindCustomer, locked) {
				if err := tx.SetCustomerOutstanding(ctx, d.ID, d.Computed); err != nil {
					return err
				}
				repaired++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return repaired, nil
}
