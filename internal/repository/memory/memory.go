// Package memory keeps every collection in process memory. It backs the
// STORE_DRIVER=memory mode and the service tests.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/Clark-Hu/media-catalog/internal/domain"
	"github.com/Clark-Hu/media-catalog/internal/repository"
)

type ratingKey struct {
	itemID string
	userID string
}

type state struct {
	mu        sync.RWMutex
	now       func() time.Time
	items     map[string]domain.Item
	itemOrder []string
	comments  map[string][]domain.Comment
	ratings   map[ratingKey]domain.Rating
	users     map[string]domain.User
	emails    map[string]string
}

// Repository exposes the in-memory collections. All of them share one lock.
type Repository struct {
	Items    *Items
	Comments *Comments
	Ratings  *Ratings
	Users    *Users
}

// New creates an empty in-memory repository.
func New() *Repository {
	s := &state{
		now:      func() time.Time { return time.Now().UTC() },
		items:    make(map[string]domain.Item),
		comments: make(map[string][]domain.Comment),
		ratings:  make(map[ratingKey]domain.Rating),
		users:    make(map[string]domain.User),
		emails:   make(map[string]string),
	}
	return &Repository{
		Items:    &Items{s: s},
		Comments: &Comments{s: s},
		Ratings:  &Ratings{s: s},
		Users:    &Users{s: s},
	}
}

// Stores exposes the collections through the repository interfaces.
func (r *Repository) Stores() repository.Stores {
	return repository.Stores{Items: r.Items, Comments: r.Comments, Ratings: r.Ratings, Users: r.Users}
}

// Items is the in-memory item collection.
type Items struct {
	s *state
}

func (r *Items) Create(_ context.Context, item domain.Item) (domain.Item, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.items[item.ID]; ok {
		return domain.Item{}, repository.ErrDuplicate
	}
	now := r.s.now()
	item.Version = 1
	item.Rating = domain.RatingAggregate{}
	item.CreatedAt = now
	item.UpdatedAt = now
	r.s.items[item.ID] = item
	r.s.itemOrder = append(r.s.itemOrder, item.ID)
	return item, nil
}

func (r *Items) GetByID(_ context.Context, id string) (domain.Item, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	item, ok := r.s.items[id]
	if !ok {
		return domain.Item{}, repository.ErrNotFound
	}
	return item, nil
}

// List walks items newest first, applying the same predicates as the SQL store.
func (r *Items) List(_ context.Context, filter repository.ItemFilter) ([]domain.Item, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	search := strings.ToLower(strings.TrimSpace(filter.Search))
	genre := strings.TrimSpace(filter.Genre)
	limit := filter.NormalizedLimit()

	out := make([]domain.Item, 0)
	for i := len(r.s.itemOrder) - 1; i >= 0 && len(out) < limit; i-- {
		item := r.s.items[r.s.itemOrder[i]]
		if search != "" && !strings.Contains(strings.ToLower(item.Title), search) {
			continue
		}
		if genre != "" && !strings.EqualFold(item.Genre, genre) {
			continue
		}
		if filter.OwnerID != "" && item.OwnerID != filter.OwnerID {
			continue
		}
		if filter.Status != "" && item.Status != filter.Status {
			continue
		}
		out = append(out, item)
	}
	return out, nil
}

func (r *Items) Update(_ context.Context, item domain.Item) (domain.Item, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	current, ok := r.s.items[item.ID]
	if !ok {
		return domain.Item{}, repository.ErrNotFound
	}
	if current.Version != item.Version {
		return domain.Item{}, repository.ErrVersionConflict
	}
	current.Title = item.Title
	current.Description = item.Description
	current.Publisher = item.Publisher
	current.Producer = item.Producer
	current.Genre = item.Genre
	current.AgeRating = item.AgeRating
	current.Status = item.Status
	current.Version++
	current.UpdatedAt = r.s.now()
	r.s.items[item.ID] = current
	return current, nil
}

func (r *Items) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.items[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.items, id)
	delete(r.s.comments, id)
	for key := range r.s.ratings {
		if key.itemID == id {
			delete(r.s.ratings, key)
		}
	}
	for i, existing := range r.s.itemOrder {
		if existing == id {
			r.s.itemOrder = append(r.s.itemOrder[:i], r.s.itemOrder[i+1:]...)
			break
		}
	}
	return nil
}

func (r *Items) ListIDs(_ context.Context) ([]string, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	return append([]string(nil), r.s.itemOrder...), nil
}

// Comments is the in-memory comment collection.
type Comments struct {
	s *state
}

func (r *Comments) Create(_ context.Context, comment domain.Comment) (domain.Comment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.items[comment.ItemID]; !ok {
		return domain.Comment{}, repository.ErrNotFound
	}
	comment.CreatedAt = r.s.now()
	r.s.comments[comment.ItemID] = append(r.s.comments[comment.ItemID], comment)
	return comment, nil
}

func (r *Comments) ListByItem(_ context.Context, itemID string, limit int) ([]domain.Comment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	if limit <= 0 {
		limit = repository.DefaultCommentLimit
	}
	stored := r.s.comments[itemID]
	out := make([]domain.Comment, 0, min(limit, len(stored)))
	for i := len(stored) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, stored[i])
	}
	return out, nil
}

// Ratings is the in-memory rating collection.
type Ratings struct {
	s *state
}

func (r *Ratings) Get(_ context.Context, itemID, userID string) (domain.Rating, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	rating, ok := r.s.ratings[ratingKey{itemID: itemID, userID: userID}]
	if !ok {
		return domain.Rating{}, repository.ErrNotFound
	}
	return rating, nil
}

// CommitRating applies the same guards as the SQL transaction under the write lock.
func (r *Ratings) CommitRating(_ context.Context, commit repository.RatingCommit) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	item, ok := r.s.items[commit.ItemID]
	if !ok || item.Version != commit.ExpectedVersion {
		return repository.ErrVersionConflict
	}
	key := ratingKey{itemID: commit.ItemID, userID: commit.Rating.UserID}
	existing, exists := r.s.ratings[key]
	if commit.Insert == exists {
		return repository.ErrVersionConflict
	}
	if exists && existing.Score != commit.PreviousScore {
		return repository.ErrVersionConflict
	}

	now := r.s.now()
	rating := commit.Rating
	rating.ItemID = commit.ItemID
	rating.UpdatedAt = now
	if exists {
		rating.CreatedAt = existing.CreatedAt
	} else {
		rating.CreatedAt = now
	}
	r.s.ratings[key] = rating

	item.Rating = commit.Aggregate
	item.Version++
	item.UpdatedAt = now
	r.s.items[item.ID] = item
	return nil
}

func (r *Ratings) Totals(_ context.Context, itemID string) (int64, int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var total, count int64
	for key, rating := range r.s.ratings {
		if key.itemID == itemID {
			total += int64(rating.Score)
			count++
		}
	}
	return total, count, nil
}

func (r *Ratings) CommitAggregate(_ context.Context, itemID string, expectedVersion int64, agg domain.RatingAggregate) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	item, ok := r.s.items[itemID]
	if !ok || item.Version != expectedVersion {
		return repository.ErrVersionConflict
	}
	item.Rating = agg
	item.Version++
	item.UpdatedAt = r.s.now()
	r.s.items[itemID] = item
	return nil
}

// Users is the in-memory account collection.
type Users struct {
	s *state
}

func (r *Users) Create(_ context.Context, user domain.User) (domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	user.Email = strings.ToLower(user.Email)
	if _, taken := r.s.emails[user.Email]; taken {
		return domain.User{}, repository.ErrDuplicate
	}
	if _, taken := r.s.users[user.ID]; taken {
		return domain.User{}, repository.ErrDuplicate
	}
	user.CreatedAt = r.s.now()
	r.s.users[user.ID] = user
	r.s.emails[user.Email] = user.ID
	return user, nil
}

func (r *Users) GetByID(_ context.Context, id string) (domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	user, ok := r.s.users[id]
	if !ok {
		return domain.User{}, repository.ErrNotFound
	}
	return user, nil
}

func (r *Users) GetByEmail(_ context.Context, email string) (domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	id, ok := r.s.emails[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return domain.User{}, repository.ErrNotFound
	}
	return r.s.users[id], nil
}

