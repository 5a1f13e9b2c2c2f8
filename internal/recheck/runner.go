// Package recheck periodically re-scans stored wallets so eligibility
// follows on-chain state.
package recheck

import (
	"context"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"clmm-eligibility/internal/domain"
	"clmm-eligibility/internal/eligibility"
	"clmm-eligibility/internal/observability"
	"clmm-eligibility/internal/storage"
)

// Scanner produces a fresh ScanResult for one wallet.
type Scanner interface {
	Scan(ctx context.Context, wallet string) (*domain.ScanResult, error)
}

// Runner drives the scheduled batch recheck. Each run re-scans every
// wallet whose last check is older than the interval; per-wallet
// failures are logged and skipped so one unreachable wallet never stalls
// the batch, and the stored record stays untouched for a later cycle.
type Runner struct {
	scanner     Scanner
	criteria    eligibility.Criteria
	wallets     storage.WalletStore
	history     storage.ScanHistoryStore // optional
	interval    time.Duration
	maxInFlight int
	trigger     <-chan struct{} // optional early-run nudge
	logger      *log.Logger
	metrics     *observability.Metrics
}

// RunnerOptions contains configuration for creating a Runner.
type RunnerOptions struct {
	Scanner     Scanner
	Criteria    eligibility.Criteria
	WalletStore storage.WalletStore
	History     storage.ScanHistoryStore
	Interval    time.Duration
	MaxInFlight int
	Trigger     <-chan struct{}
	Logger      *log.Logger
	Metrics     *observability.Metrics
}

// NewRunner creates a new recheck runner.
func NewRunner(opts RunnerOptions) *Runner {
	interval := opts.Interval
	if interval == 0 {
		interval = 1 * time.Hour
	}
	maxInFlight := opts.MaxInFlight
	if maxInFlight <= 0 {
		maxInFlight = 4
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.Writer(), "[recheck] ", log.LstdFlags)
	}

	return &Runner{
		scanner:     opts.Scanner,
		criteria:    opts.Criteria,
		wallets:     opts.WalletStore,
		history:     opts.History,
		interval:    interval,
		maxInFlight: maxInFlight,
		trigger:     opts.Trigger,
		logger:      logger,
		metrics:     opts.Metrics,
	}
}

// Run blocks until ctx is cancelled, rechecking on every interval tick
// and on every trigger nudge (e.g. the watched pool account changed).
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Printf("starting recheck runner, interval %s", r.interval)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		case <-r.trigger:
			r.logger.Println("early recheck triggered by pool account change")
		}

		if err := r.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.logger.Printf("recheck run failed: %v", err)
		}
	}
}

// RunOnce re-scans all wallets due for a recheck. Only listing failures
// are returned; individual wallet failures are logged and skipped.
func (r *Runner) RunOnce(ctx context.Context) error {
	started := time.Now()
	cutoff := started.Add(-r.interval).UnixMilli()

	due, err := r.wallets.ListCheckedBefore(ctx, cutoff)
	if err != nil {
		return err
	}
	if len(due) == 0 {
		return nil
	}
	r.logger.Printf("rechecking %d wallets", len(due))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.maxInFlight)

	for _, record := range due {
		record := record
		g.Go(func() error {
			if err := r.recheckWallet(gctx, record.Address); err != nil {
				// ExhaustedError and friends: leave the stored record as
				// is, the next cycle retries the whole scan.
				r.logger.Printf("recheck %s: %v", record.Address, err)
				if r.metrics != nil {
					r.metrics.RecheckWalletErrors.Inc()
				}
			}
			return gctx.Err()
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	if r.metrics != nil {
		r.metrics.RecheckRuns.Inc()
		r.metrics.RecheckDuration.Observe(time.Since(started).Seconds())
		r.metrics.LastSuccessfulRecheck.SetToCurrentTime()
	}
	return nil
}

// recheckWallet scans one wallet and persists the outcome.
func (r *Runner) recheckWallet(ctx context.Context, address string) error {
	res, err := r.scanner.Scan(ctx, address)
	if err != nil {
		return err
	}

	status := r.criteria.Evaluate(res)
	now := time.Now().UnixMilli()

	record := &domain.WalletRecord{
		Address:        address,
		Eligible:       status.Eligible,
		TokenBalance:   res.TokenBalance,
		TotalLiquidity: res.TotalLiquidity,
		PositionCount:  len(res.Positions),
		Reasons:        status.Reasons,
		CheckedAt:      res.CheckedAt,
		UpdatedAt:      now,
	}
	if err := r.wallets.Upsert(ctx, record); err != nil {
		return err
	}

	if r.history != nil {
		snap := &domain.ScanSnapshot{
			Wallet:         address,
			TokenBalance:   res.TokenBalance,
			TotalLiquidity: res.TotalLiquidity,
			PositionCount:  len(res.Positions),
			Eligible:       status.Eligible,
			CheckedAt:      res.CheckedAt,
		}
		if err := r.history.Insert(ctx, snap); err != nil {
			// History is advisory; the authoritative record is saved.
			r.logger.Printf("record history %s: %v", address, err)
		}
	}
	return nil
}
