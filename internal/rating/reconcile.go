package rating

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Clark-Hu/media-catalog/internal/domain"
	"github.com/Clark-Hu/media-catalog/internal/repository"
)

var (
	reconcileRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_rating_reconcile_runs_total",
		Help: "Completed rating reconciliation passes",
	})
	reconcileFixedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_rating_reconcile_fixed_total",
		Help: "Item aggregates rewritten from the ratings collection",
	})
)

// ItemLister enumerates items for reconciliation.
type ItemLister interface {
	ItemReader
	ListIDs(ctx context.Context) ([]string, error)
}

// Reconciler periodically recomputes each item aggregate from its ratings and
// rewrites it when the stored total or count drifted.
type Reconciler struct {
	items    ItemLister
	ratings  repository.RatingStore
	interval time.Duration
	logger   *slog.Logger
	onFixed  func(ctx context.Context, itemID string)

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewReconciler creates a Reconciler; it does nothing until Start or RunOnce.
func NewReconciler(items ItemLister, ratings repository.RatingStore, interval time.Duration, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		items:    items,
		ratings:  ratings,
		interval: interval,
		logger:   logger.With(slog.String("component", "rating-reconcile")),
	}
}

// OnCorrected registers fn to run after an item aggregate is rewritten.
// Must be called before Start.
func (r *Reconciler) OnCorrected(fn func(ctx context.Context, itemID string)) {
	r.onFixed = fn
}

// Start launches the ticker loop.
func (r *Reconciler) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})

	go r.run(runCtx)

	r.logger.Info("rating reconciliation started", slog.String("interval", r.interval.String()))
}

// Stop cancels the loop and waits for an in-flight pass to return.
func (r *Reconciler) Stop() {
	if r.cancel == nil {
		return
	}
	r.cancel()
	<-r.done
	r.logger.Info("rating reconciliation stopped")
}

func (r *Reconciler) run(ctx context.Context) {
	defer close(r.done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.RunOnce(ctx); err != nil && ctx.Err() == nil {
				r.logger.Error("rating reconciliation failed", slog.String("error", err.Error()))
			}
		}
	}
}

// RunOnce performs one pass and reports how many aggregates were rewritten.
// A concurrent call returns immediately with zero.
func (r *Reconciler) RunOnce(ctx context.Context) (int, error) {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		r.logger.Warn("rating reconciliation already running, skipping")
		return 0, nil
	}
	r.running = true
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	startedAt := time.Now()
	ids, err := r.items.ListIDs(ctx)
	if err != nil {
		return 0, err
	}

	fixed := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return fixed, err
		}
		changed, err := r.reconcileItem(ctx, id)
		if err != nil {
			r.logger.Warn("reconcile item failed",
				slog.String("item_id", id),
				slog.String("error", err.Error()),
			)
			continue
		}
		if changed {
			fixed++
		}
	}

	reconcileRunsTotal.Inc()
	reconcileFixedTotal.Add(float64(fixed))
	r.logger.Info("rating reconciliation finished",
		slog.Int("items", len(ids)),
		slog.Int("fixed", fixed),
		slog.Duration("duration", time.Since(startedAt)),
	)
	return fixed, nil
}

func (r *Reconciler) reconcileItem(ctx context.Context, id string) (bool, error) {
	item, err := r.items.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	total, count, err := r.ratings.Totals(ctx, id)
	if err != nil {
		return false, err
	}
	want := domain.NewRatingAggregate(total, count)
	if item.Rating == want {
		return false, nil
	}

	err = r.ratings.CommitAggregate(ctx, id, item.Version, want)
	if errors.Is(err, repository.ErrVersionConflict) {
		// A concurrent rating committed; the next pass re-checks this item.
		return false, nil
	}
	if err != nil {
		return false, err
	}
	r.logger.Info("rating aggregate corrected",
		slog.String("item_id", id),
		slog.Int64("total", total),
		slog.Int64("count", count),
	)
	if r.onFixed != nil {
		r.onFixed(ctx, id)
	}
	return true, nil
}
