package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Clark-Hu/media-catalog/internal/domain"
	"github.com/Clark-Hu/media-catalog/internal/repository"
)

func newItem(t *testing.T, repo *Repository, id, title, genre, owner string) domain.Item {
	t.Helper()
	item, err := repo.Items.Create(context.Background(), domain.Item{
		ID:         id,
		Title:      title,
		Genre:      genre,
		ObjectName: id + ".mp4",
		Status:     domain.StatusUploading,
		OwnerID:    owner,
	})
	require.NoError(t, err)
	return item
}

func sortedIDs(items []domain.Item) []string {
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}
	sort.Strings(ids)
	return ids
}

func TestItems_ListFilters(t *testing.T) {
	repo := New()
	ctx := context.Background()
	newItem(t, repo, "a", "Ocean Blue", "Nature", "u1")
	newItem(t, repo, "b", "Deep Ocean", "nature", "u2")
	newItem(t, repo, "c", "City", "Drama", "u1")

	all, err := repo.Items.List(ctx, repository.ItemFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c", all[0].ID, "newest first")

	got, err := repo.Items.List(ctx, repository.ItemFilter{Search: " OCEAN ", Genre: "NATURE"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, sortedIDs(got))

	got, err = repo.Items.List(ctx, repository.ItemFilter{OwnerID: "u1", Genre: "drama"})
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, sortedIDs(got))

	got, err = repo.Items.List(ctx, repository.ItemFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestItems_UpdateDelete(t *testing.T) {
	repo := New()
	ctx := context.Background()
	item := newItem(t, repo, "a", "Draft", "Drama", "u1")

	item.Title = "Final"
	updated, err := repo.Items.Update(ctx, item)
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated.Version)
	assert.Equal(t, "a.mp4", updated.ObjectName)

	_, err = repo.Items.Update(ctx, item)
	assert.ErrorIs(t, err, repository.ErrVersionConflict)

	_, err = repo.Comments.Create(ctx, domain.Comment{ID: "c1", ItemID: "a", Text: "hi"})
	require.NoError(t, err)

	require.NoError(t, repo.Items.Delete(ctx, "a"))
	assert.ErrorIs(t, repo.Items.Delete(ctx, "a"), repository.ErrNotFound)
	_, err = repo.Items.GetByID(ctx, "a")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	comments, err := repo.Comments.ListByItem(ctx, "a", 0)
	require.NoError(t, err)
	assert.Empty(t, comments)
	ids, err := repo.Items.ListIDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestComments_NewestFirst(t *testing.T) {
	repo := New()
	ctx := context.Background()
	newItem(t, repo, "a", "Item", "Drama", "u1")

	for i := 0; i < 3; i++ {
		_, err := repo.Comments.Create(ctx, domain.Comment{ID: fmt.Sprintf("c%d", i), ItemID: "a", Text: "x"})
		require.NoError(t, err)
	}
	comments, err := repo.Comments.ListByItem(ctx, "a", 2)
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, "c2", comments[0].ID)

	_, err = repo.Comments.Create(ctx, domain.Comment{ID: "x", ItemID: "missing"})
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestRatings_CommitGuards(t *testing.T) {
	repo := New()
	ctx := context.Background()
	item := newItem(t, repo, "a", "Item", "Drama", "u1")

	insert := repository.RatingCommit{
		ItemID:          "a",
		ExpectedVersion: item.Version,
		Aggregate:       domain.NewRatingAggregate(3, 1),
		Rating:          domain.Rating{UserID: "u2", Score: 3},
		Insert:          true,
	}
	require.NoError(t, repo.Ratings.CommitRating(ctx, insert))
	assert.ErrorIs(t, repo.Ratings.CommitRating(ctx, insert), repository.ErrVersionConflict)

	current, err := repo.Items.GetByID(ctx, "a")
	require.NoError(t, err)
	insert.ExpectedVersion = current.Version
	assert.ErrorIs(t, repo.Ratings.CommitRating(ctx, insert), repository.ErrVersionConflict, "rating already exists")

	update := repository.RatingCommit{
		ItemID:          "a",
		ExpectedVersion: current.Version,
		Aggregate:       domain.NewRatingAggregate(5, 1),
		Rating:          domain.Rating{UserID: "u2", Score: 5},
		PreviousScore:   4,
	}
	assert.ErrorIs(t, repo.Ratings.CommitRating(ctx, update), repository.ErrVersionConflict, "stale previous score")
	update.PreviousScore = 3
	require.NoError(t, repo.Ratings.CommitRating(ctx, update))

	total, count, err := repo.Ratings.Totals(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	assert.Equal(t, int64(1), count)

	final, err := repo.Items.GetByID(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, domain.NewRatingAggregate(5, 1), final.Rating)
}

func TestRatings_ConcurrentCommitsOnlyOneWins(t *testing.T) {
	repo := New()
	ctx := context.Background()
	item := newItem(t, repo, "a", "Item", "Drama", "u1")

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(user string) {
			defer wg.Done()
			err := repo.Ratings.CommitRating(ctx, repository.RatingCommit{
				ItemID:          "a",
				ExpectedVersion: item.Version,
				Aggregate:       domain.NewRatingAggregate(4, 1),
				Rating:          domain.Rating{UserID: user, Score: 4},
				Insert:          true,
			})
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(fmt.Sprintf("user-%d", i))
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestUsers_UniqueEmail(t *testing.T) {
	repo := New()
	ctx := context.Background()

	_, err := repo.Users.Create(ctx, domain.User{ID: "u1", Email: "Bob@Example.com", Role: domain.RoleConsumer})
	require.NoError(t, err)
	_, err = repo.Users.Create(ctx, domain.User{ID: "u2", Email: "bob@example.com"})
	assert.ErrorIs(t, err, repository.ErrDuplicate)

	user, err := repo.Users.GetByEmail(ctx, "BOB@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)

	_, err = repo.Users.GetByID(ctx, "nobody")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
