package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/Clark-Hu/media-catalog/internal/domain"
)

// ItemsRepository provides persistence helpers for catalog items.
type ItemsRepository struct {
	db DBTX
}

const itemColumns = `
    id,
    title,
    description,
    publisher,
    producer,
    genre,
    age_rating,
    object_name,
    status,
    owner_id,
    rating_total,
    rating_count,
    rating_avg::float8,
    version,
    created_at,
    updated_at
`

// Create inserts a new item row and returns the stored entity.
func (r *ItemsRepository) Create(ctx context.Context, item domain.Item) (domain.Item, error) {
	query := fmt.Sprintf(`
        INSERT INTO items (id, title, description, publisher, producer, genre, age_rating, object_name, status, owner_id)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
        RETURNING %s
    `, itemColumns)

	row := r.db.QueryRow(ctx, query,
		item.ID, item.Title, item.Description, item.Publisher, item.Producer,
		item.Genre, item.AgeRating, item.ObjectName, string(item.Status), item.OwnerID,
	)
	created, err := scanItem(row)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Item{}, ErrDuplicate
		}
		return domain.Item{}, fmt.Errorf("create item: %w", err)
	}
	return created, nil
}

// GetByID fetches an item by its identifier.
func (r *ItemsRepository) GetByID(ctx context.Context, id string) (domain.Item, error) {
	query := fmt.Sprintf(`SELECT %s FROM items WHERE id = $1`, itemColumns)
	item, err := scanItem(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Item{}, ErrNotFound
		}
		return domain.Item{}, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

// List returns items that match the provided filters, newest first.
func (r *ItemsRepository) List(ctx context.Context, filter ItemFilter) ([]domain.Item, error) {
	where := make([]string, 0, 4)
	args := make([]any, 0, 4)
	arg := func(value any) string {
		args = append(args, value)
		return fmt.Sprintf("$%d", len(args))
	}

	if q := strings.TrimSpace(filter.Search); q != "" {
		where = append(where, fmt.Sprintf(`title ILIKE %s ESCAPE '\'`, arg("%"+escapeLike(q)+"%")))
	}
	if g := strings.TrimSpace(filter.Genre); g != "" {
		where = append(where, fmt.Sprintf("lower(genre) = lower(%s)", arg(g)))
	}
	if filter.OwnerID != "" {
		where = append(where, fmt.Sprintf("owner_id = %s", arg(filter.OwnerID)))
	}
	if filter.Status != "" {
		where = append(where, fmt.Sprintf("status = %s", arg(string(filter.Status))))
	}

	queryBuilder := strings.Builder{}
	queryBuilder.WriteString("SELECT ")
	queryBuilder.WriteString(itemColumns)
	queryBuilder.WriteString(" FROM items")
	if len(where) > 0 {
		queryBuilder.WriteString(" WHERE ")
		queryBuilder.WriteString(strings.Join(where, " AND "))
	}
	queryBuilder.WriteString(" ORDER BY created_at DESC, id DESC")
	queryBuilder.WriteString(fmt.Sprintf(" LIMIT %d", filter.NormalizedLimit()))

	rows, err := r.db.Query(ctx, queryBuilder.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	items := make([]domain.Item, 0)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	return items, nil
}

// Update overwrites metadata and status when the stored version still equals item.Version.
// Ownership, object reference and the rating aggregate are never touched here.
func (r *ItemsRepository) Update(ctx context.Context, item domain.Item) (domain.Item, error) {
	query := fmt.Sprintf(`
        UPDATE items
        SET title = $2,
            description = $3,
            publisher = $4,
            producer = $5,
            genre = $6,
            age_rating = $7,
            status = $8,
            version = version + 1,
            updated_at = now()
        WHERE id = $1 AND version = $9
        RETURNING %s
    `, itemColumns)

	row := r.db.QueryRow(ctx, query,
		item.ID, item.Title, item.Description, item.Publisher, item.Producer,
		item.Genre, item.AgeRating, string(item.Status), item.Version,
	)
	updated, err := scanItem(row)
	if err == nil {
		return updated, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.Item{}, fmt.Errorf("update item: %w", err)
	}
	if _, getErr := r.GetByID(ctx, item.ID); getErr != nil {
		return domain.Item{}, getErr
	}
	return domain.Item{}, ErrVersionConflict
}

// Delete removes the item; comments and ratings cascade.
func (r *ItemsRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM items WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListIDs returns every item id, oldest first.
func (r *ItemsRepository) ListIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT id FROM items ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list item ids: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("list item ids: %w", err)
	}
	return ids, nil
}

func scanItem(row pgx.Row) (domain.Item, error) {
	var (
		item   domain.Item
		status string
	)
	err := row.Scan(
		&item.ID,
		&item.Title,
		&item.Description,
		&item.Publisher,
		&item.Producer,
		&item.Genre,
		&item.AgeRating,
		&item.ObjectName,
		&status,
		&item.OwnerID,
		&item.Rating.Total,
		&item.Rating.Count,
		&item.Rating.Average,
		&item.Version,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return domain.Item{}, err
	}
	item.Status = domain.ItemStatus(status)
	return item, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
