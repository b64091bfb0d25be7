// Package reconcile periodically reports ledger entries stuck in Pending.
//
// An entry stays Pending only when a compensation or a finalisation failed, so every hit needs an operator.
// Entries are reported, never rewritten.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"funds_tracker/internal/usecase"
)

const (
	defaultSchedule   = "@every 1m"
	defaultStaleAfter = 5 * time.Minute
)

// Gauge receives the number of stale entries found by the last pass
type Gauge interface {
	SetStalePending(n int)
}

type nopGauge struct{}

func (nopGauge) SetStalePending(int) {}

type Reconciler struct {
	txs        usecase.TransactionRepository
	log        *slog.Logger
	gauge      Gauge
	schedule   string
	staleAfter time.Duration
	now        func() time.Time
}

func New(txs usecase.TransactionRepository, log *slog.Logger, options ...func(*Reconciler)) *Reconciler {
	r := &Reconciler{
		txs:        txs,
		log:        log,
		gauge:      nopGauge{},
		schedule:   defaultSchedule,
		staleAfter: defaultStaleAfter,
		now:        time.Now,
	}
	for _, o := range options {
		o(r)
	}
	return r
}

// WithSchedule sets the cron spec, e.g. "@every 1m" or "*/5 * * * *"
func WithSchedule(spec string) func(*Reconciler) {
	return func(r *Reconciler) {
		if spec != "" {
			r.schedule = spec
		}
	}
}

// WithStaleAfter sets how old a Pending entry must be before it is reported
func WithStaleAfter(d time.Duration) func(*Reconciler) {
	return func(r *Reconciler) {
		if d > 0 {
			r.staleAfter = d
		}
	}
}

func WithGauge(g Gauge) func(*Reconciler) {
	return func(r *Reconciler) {
		if g != nil {
			r.gauge = g
		}
	}
}

// Check runs one pass and returns the number of stale entries
func (r *Reconciler) Check(ctx context.Context) (int, error) {
	cutoff := r.now().Add(-r.staleAfter)
	stale, err := r.txs.ListPendingBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("list pending before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	for _, tx := range stale {
		r.log.Warn("stale pending ledger entry",
			slog.String("transaction_id", tx.ID.String()),
			slog.String("customer_id", tx.CustomerID),
			slog.String("fund_id", tx.FundID),
			slog.String("type", string(tx.Type)),
			slog.String("amount", tx.Amount.String()),
			slog.Time("timestamp", tx.Timestamp),
		)
	}
	r.gauge.SetStalePending(len(stale))
	return len(stale), nil
}

// Run schedules Check and blocks until ctx is done, then waits for a running pass to finish
func (r *Reconciler) Run(ctx context.Context) error {
	logger := cronLogger{log: r.log}
	c := cron.New(cron.WithLogger(logger), cron.WithChain(cron.SkipIfStillRunning(logger)))
	_, err := c.AddFunc(r.schedule, func() {
		passCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if _, err := r.Check(passCtx); err != nil {
			r.log.Error("reconcile pass", slog.String("error", err.Error()))
		}
	})
	if err != nil {
		return fmt.Errorf("schedule reconciler %q: %w", r.schedule, err)
	}
	c.Start()
	r.log.Info("reconciler started", slog.String("schedule", r.schedule), slog.Duration("stale_after", r.staleAfter))

	<-ctx.Done()
	<-c.Stop().Done()
	r.log.Info("reconciler stopped")
	return nil
}

// cronLogger adapts slog to cron.Logger
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error(msg, append(keysAndValues, "error", err.Error())...)
}
