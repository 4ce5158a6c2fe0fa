package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Clark-Hu/media-catalog/internal/domain"
)

// DefaultCommentLimit bounds how many comments accompany an item detail.
const DefaultCommentLimit = 100

// CommentsRepository persists item comments.
type CommentsRepository struct {
	db DBTX
}

const commentColumns = `id, item_id, user_id, username, body, sentiment, created_at`

// Create stores a comment. A missing item surfaces as ErrNotFound.
func (r *CommentsRepository) Create(ctx context.Context, comment domain.Comment) (domain.Comment, error) {
	query := fmt.Sprintf(`
        INSERT INTO comments (id, item_id, user_id, username, body, sentiment)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING %s
    `, commentColumns)

	created, err := scanComment(r.db.QueryRow(ctx, query,
		comment.ID, comment.ItemID, comment.UserID, comment.Username, comment.Text, comment.Sentiment,
	))
	if err != nil {
		if isForeignKeyViolation(err) {
			return domain.Comment{}, ErrNotFound
		}
		return domain.Comment{}, fmt.Errorf("create comment: %w", err)
	}
	return created, nil
}

// ListByItem returns the newest comments for an item.
func (r *CommentsRepository) ListByItem(ctx context.Context, itemID string, limit int) ([]domain.Comment, error) {
	if limit <= 0 {
		limit = DefaultCommentLimit
	}
	query := fmt.Sprintf(`
        SELECT %s FROM comments
        WHERE item_id = $1
        ORDER BY created_at DESC, id DESC
        LIMIT $2
    `, commentColumns)

	rows, err := r.db.Query(ctx, query, itemID, limit)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	comments := make([]domain.Comment, 0)
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	return comments, nil
}

func scanComment(row pgx.Row) (domain.Comment, error) {
	var c domain.Comment
	err := row.Scan(&c.ID, &c.ItemID, &c.UserID, &c.Username, &c.Text, &c.Sentiment, &c.CreatedAt)
	return c, err
}
