package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Clark-Hu/media-catalog/internal/domain"
	"github.com/Clark-Hu/media-catalog/internal/store"
)

var (
	// ErrNotFound indicates the requested entity does not exist. It matches domain.ErrNotFound.
	ErrNotFound = fmt.Errorf("repository: %w", domain.ErrNotFound)
	// ErrVersionConflict indicates a conditional write lost a race with another writer.
	ErrVersionConflict = errors.New("repository: version conflict")
	// ErrDuplicate indicates a unique key is already taken.
	ErrDuplicate = errors.New("repository: duplicate key")
)

const (
	DefaultListLimit = 200
	MaxListLimit     = 500
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ItemFilter composes list predicates with AND. Empty fields are not applied.
type ItemFilter struct {
	// Search matches a case-insensitive substring of the title.
	Search string
	// Genre matches the genre case-insensitively.
	Genre   string
	OwnerID string
	Status  domain.ItemStatus
	Limit   int
}

// NormalizedLimit clamps Limit into (0, MaxListLimit].
func (f ItemFilter) NormalizedLimit() int {
	if f.Limit <= 0 {
		return DefaultListLimit
	}
	if f.Limit > MaxListLimit {
		return MaxListLimit
	}
	return f.Limit
}

// RatingCommit is the unit of work persisted by a rating update: the item's new
// aggregate, guarded by ExpectedVersion, and the rating row itself.
type RatingCommit struct {
	ItemID          string
	ExpectedVersion int64
	Aggregate       domain.RatingAggregate
	Rating          domain.Rating
	// Insert is true when no rating existed for (ItemID, Rating.UserID) at read time.
	Insert bool
	// PreviousScore is the score observed at read time when Insert is false.
	PreviousScore int
}

// ItemStore is the Items collection.
type ItemStore interface {
	Create(ctx context.Context, item domain.Item) (domain.Item, error)
	GetByID(ctx context.Context, id string) (domain.Item, error)
	List(ctx context.Context, filter ItemFilter) ([]domain.Item, error)
	// Update writes metadata and status only if item.Version is still current.
	Update(ctx context.Context, item domain.Item) (domain.Item, error)
	Delete(ctx context.Context, id string) error
	ListIDs(ctx context.Context) ([]string, error)
}

// CommentStore is the Comments collection.
type CommentStore interface {
	Create(ctx context.Context, comment domain.Comment) (domain.Comment, error)
	ListByItem(ctx context.Context, itemID string, limit int) ([]domain.Comment, error)
}

// RatingStore is the Ratings collection plus the aggregate fields it drives on Items.
type RatingStore interface {
	Get(ctx context.Context, itemID, userID string) (domain.Rating, error)
	CommitRating(ctx context.Context, commit RatingCommit) error
	Totals(ctx context.Context, itemID string) (total, count int64, err error)
	CommitAggregate(ctx context.Context, itemID string, expectedVersion int64, agg domain.RatingAggregate) error
}

// UserStore is the Users collection.
type UserStore interface {
	Create(ctx context.Context, user domain.User) (domain.User, error)
	GetByID(ctx context.Context, id string) (domain.User, error)
	GetByEmail(ctx context.Context, email string) (domain.User, error)
}

// Stores bundles every collection behind its interface.
type Stores struct {
	Items    ItemStore
	Comments CommentStore
	Ratings  RatingStore
	Users    UserStore
}

// Repository aggregates all Postgres-backed repositories.
type Repository struct {
	Items    *ItemsRepository
	Comments *CommentsRepository
	Ratings  *RatingsRepository
	Users    *UsersRepository
}

// New constructs a Repository backed by the provided store.
func New(st *store.Store) *Repository {
	return NewWithPool(st.Pool())
}

// NewWithPool allows constructing repositories directly from a pgx pool.
func NewWithPool(pool *pgxpool.Pool) *Repository {
	return &Repository{
		Items:    &ItemsRepository{db: pool},
		Comments: &CommentsRepository{db: pool},
		Ratings:  &RatingsRepository{pool: pool},
		Users:    &UsersRepository{db: pool},
	}
}

// Stores exposes the repositories through their collection interfaces.
func (r *Repository) Stores() Stores {
	return Stores{Items: r.Items, Comments: r.Comments, Ratings: r.Ratings, Users: r.Users}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}
