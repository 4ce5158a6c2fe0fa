// Package rating maintains the per-item rating aggregate with optimistic
// concurrency against the authoritative store.
package rating

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Clark-Hu/media-catalog/internal/domain"
	"github.com/Clark-Hu/media-catalog/internal/repository"
)

// DefaultMaxAttempts bounds read-modify-write retries for one rating.
const DefaultMaxAttempts = 3

var (
	conflictsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_rating_conflicts_total",
		Help: "Rating commits that lost an optimistic-concurrency race",
	})
	exhaustedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_rating_exhausted_total",
		Help: "Rating updates rejected after exhausting retries",
	})
)

// ItemReader loads the current item state, including its version.
type ItemReader interface {
	GetByID(ctx context.Context, id string) (domain.Item, error)
}

// Aggregator applies rating submissions to the item aggregate.
type Aggregator struct {
	items       ItemReader
	ratings     repository.RatingStore
	maxAttempts int
	logger      *slog.Logger
}

// NewAggregator builds an Aggregator. maxAttempts <= 0 selects DefaultMaxAttempts.
func NewAggregator(items ItemReader, ratings repository.RatingStore, maxAttempts int, logger *slog.Logger) *Aggregator {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{
		items:       items,
		ratings:     ratings,
		maxAttempts: maxAttempts,
		logger:      logger.With(slog.String("component", "rating")),
	}
}

// Apply records score from userID on itemID and returns the item carrying the
// new aggregate. A repeat rating by the same user replaces the old score
// instead of adding a sample. Scores outside [1,5] are clamped.
//
// Errors: domain.ErrNotFound when the item is absent, domain.ErrConflict when
// every attempt lost a race. Store failures are returned as-is.
func (a *Aggregator) Apply(ctx context.Context, itemID, userID string, score int) (domain.Item, error) {
	score = domain.ClampScore(score)

	for attempt := 1; attempt <= a.maxAttempts; attempt++ {
		item, err := a.items.GetByID(ctx, itemID)
		if err != nil {
			return domain.Item{}, err
		}

		commit := repository.RatingCommit{
			ItemID:          itemID,
			ExpectedVersion: item.Version,
			Rating:          domain.Rating{ItemID: itemID, UserID: userID, Score: score},
		}
		total, count := item.Rating.Total, item.Rating.Count

		existing, err := a.ratings.Get(ctx, itemID, userID)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			commit.Insert = true
			total += int64(score)
			count++
		case err != nil:
			return domain.Item{}, err
		default:
			commit.PreviousScore = existing.Score
			total += int64(score - existing.Score)
		}
		commit.Aggregate = domain.NewRatingAggregate(total, count)

		err = a.ratings.CommitRating(ctx, commit)
		if err == nil {
			item.Rating = commit.Aggregate
			item.Version++
			return item, nil
		}
		if !errors.Is(err, repository.ErrVersionConflict) {
			return domain.Item{}, err
		}

		conflictsTotal.Inc()
		a.logger.Debug("rating commit conflict",
			slog.String("item_id", itemID),
			slog.Int("attempt", attempt),
		)
	}

	exhaustedTotal.Inc()
	a.logger.Warn("rating retries exhausted",
		slog.String("item_id", itemID),
		slog.Int("attempts", a.maxAttempts),
	)
	return domain.Item{}, fmt.Errorf("rate item %s: %w", itemID, domain.ErrConflict)
}
