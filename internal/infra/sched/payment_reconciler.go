package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"imepay-gateway/internal/domain/model"
	"imepay-gateway/internal/infra/metrics"
	"imepay-gateway/internal/infra/worker"
	"imepay-gateway/internal/usecase"
)

// PaymentReconciler periodically rechecks pending payments whose callback never
// arrived or whose confirm call failed, so they do not stay pending forever.
type PaymentReconciler struct {
	uc         usecase.PaymentUseCase
	pool       *worker.Pool  // optional; rechecks run inline without it
	interval   time.Duration // how often to scan
	staleAfter time.Duration // how old a pending payment must be to retry
	batch      int
	log        *zerolog.Logger
	now        func() time.Time
}

func NewPaymentReconciler(uc usecase.PaymentUseCase, pool *worker.Pool, interval, staleAfter time.Duration, batch int, logger *zerolog.Logger) *PaymentReconciler {
	if interval <= 0 {
		interval = time.Minute
	}
	if staleAfter <= 0 {
		staleAfter = 10 * time.Minute
	}
	if batch <= 0 {
		batch = 100
	}
	l := logger.With().Str("component", "PaymentReconciler").Logger()
	return &PaymentReconciler{uc: uc, pool: pool, interval: interval, staleAfter: staleAfter, batch: batch, log: &l, now: time.Now}
}

func (w *PaymentReconciler) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Dur("stale_after", w.staleAfter).Msg("Starting payment reconciler")
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping payment reconciler")
			return ctx.Err()
		case <-t.C:
			w.Tick(ctx)
		}
	}
}

// Tick runs one reconciliation pass and returns how many payments were settled.
func (w *PaymentReconciler) Tick(ctx context.Context) int {
	cutoff := w.now().Add(-w.staleAfter)
	pending, err := w.uc.ListStale(ctx, cutoff, w.batch)
	if err != nil {
		w.log.Error().Err(err).Msg("list stale payments failed")
		return 0
	}
	var (
		settled   int
		submitted int
	)
	// Buffered so a task finishing after Tick returned never blocks its worker.
	results := make(chan bool, len(pending))
	for _, p := range pending {
		if ctx.Err() != nil {
			break
		}
		refID := p.RefID
		if w.pool == nil {
			if w.recheck(ctx, refID) {
				settled++
			}
			continue
		}
		err := w.pool.Submit(ctx, func(ctx context.Context) error {
			results <- w.recheck(ctx, refID)
			return nil
		})
		if err != nil {
			w.log.Warn().Err(err).Str("ref_id", refID).Msg("recheck not scheduled")
			continue
		}
		submitted++
	}
	if submitted == 0 {
		return settled
	}

	// Queued tasks are dropped when ctx ends or the pool stops, so stop counting then.
	for ; submitted > 0; submitted-- {
		select {
		case ok := <-results:
			if ok {
				settled++
			}
		case <-ctx.Done():
			return settled
		case <-w.pool.Done():
			w.log.Warn().Int("outstanding", submitted).Msg("worker pool stopped during reconciliation")
			return settled
		}
	}
	return settled
}

// recheck reports whether refID reached a final status.
func (w *PaymentReconciler) recheck(ctx context.Context, refID string) bool {
	got, _, err := w.uc.Recheck(ctx, refID)
	if err != nil {
		w.log.Warn().Err(err).Str("ref_id", refID).Msg("recheck failed")
		return false
	}
	metrics.IncReconciled(string(got.Status))
	if got.Status == model.PaymentStatusPending {
		return false
	}
	w.log.Info().Str("ref_id", refID).Str("status", string(got.Status)).Msg("payment reconciled")
	return true
}
