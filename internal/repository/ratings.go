package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Clark-Hu/media-catalog/internal/domain"
)

// RatingsRepository provides helpers for item ratings.
type RatingsRepository struct {
	pool *pgxpool.Pool
}

// Get retrieves the rating a user gave an item.
func (r *RatingsRepository) Get(ctx context.Context, itemID, userID string) (domain.Rating, error) {
	const query = `
        SELECT item_id, user_id, score, created_at, updated_at
        FROM ratings
        WHERE item_id = $1 AND user_id = $2
    `
	var rating domain.Rating
	err := r.pool.QueryRow(ctx, query, itemID, userID).Scan(
		&rating.ItemID,
		&rating.UserID,
		&rating.Score,
		&rating.CreatedAt,
		&rating.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Rating{}, ErrNotFound
		}
		return domain.Rating{}, fmt.Errorf("get rating: %w", err)
	}
	return rating, nil
}

// CommitRating writes the item aggregate and the rating row in one transaction.
// It returns ErrVersionConflict when the item version moved, when a rating
// appeared for an expected insert, or when the stored score changed since it was read.
func (r *RatingsRepository) CommitRating(ctx context.Context, commit RatingCommit) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := commitAggregate(ctx, tx, commit.ItemID, commit.ExpectedVersion, commit.Aggregate); err != nil {
			return err
		}

		if commit.Insert {
			tag, err := tx.Exec(ctx, `
                INSERT INTO ratings (item_id, user_id, score)
                VALUES ($1,$2,$3)
                ON CONFLICT (item_id, user_id) DO NOTHING
            `, commit.ItemID, commit.Rating.UserID, commit.Rating.Score)
			if err != nil {
				return fmt.Errorf("insert rating: %w", err)
			}
			if tag.RowsAffected() == 0 {
				return ErrVersionConflict
			}
			return nil
		}

		tag, err := tx.Exec(ctx, `
            UPDATE ratings
            SET score = $3, updated_at = now()
            WHERE item_id = $1 AND user_id = $2 AND score = $4
        `, commit.ItemID, commit.Rating.UserID, commit.Rating.Score, commit.PreviousScore)
		if err != nil {
			return fmt.Errorf("update rating: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrVersionConflict
		}
		return nil
	})
}

// Totals recomputes the rating total and count for an item from the ratings table.
func (r *RatingsRepository) Totals(ctx context.Context, itemID string) (int64, int64, error) {
	const query = `
        SELECT COALESCE(SUM(score), 0)::int8 AS total,
               COUNT(*)::int8 AS count
        FROM ratings
        WHERE item_id = $1
    `
	var total, count int64
	if err := r.pool.QueryRow(ctx, query, itemID).Scan(&total, &count); err != nil {
		return 0, 0, fmt.Errorf("rating totals: %w", err)
	}
	return total, count, nil
}

// CommitAggregate overwrites the item aggregate when expectedVersion is still current.
func (r *RatingsRepository) CommitAggregate(ctx context.Context, itemID string, expectedVersion int64, agg domain.RatingAggregate) error {
	return commitAggregate(ctx, r.pool, itemID, expectedVersion, agg)
}

func commitAggregate(ctx context.Context, db DBTX, itemID string, expectedVersion int64, agg domain.RatingAggregate) error {
	tag, err := db.Exec(ctx, `
        UPDATE items
        SET rating_total = $2,
            rating_count = $3,
            rating_avg = $4,
            version = version + 1,
            updated_at = now()
        WHERE id = $1 AND version = $5
    `, itemID, agg.Total, agg.Count, agg.Average, expectedVersion)
	if err != nil {
		return fmt.Errorf("update item aggregate: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrVersionConflict
	}
	return nil
}
