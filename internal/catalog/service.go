// Package catalog orchestrates reads and writes of catalog items across the
// authoritative store, the read cache, blob access tokens, comment sentiment
// and the rating aggregate.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/Clark-Hu/media-catalog/internal/cache"
	"github.com/Clark-Hu/media-catalog/internal/domain"
	"github.com/Clark-Hu/media-catalog/internal/rating"
	"github.com/Clark-Hu/media-catalog/internal/repository"
	"github.com/Clark-Hu/media-catalog/internal/sentiment"
)

const (
	DefaultListTTL          = 120 * time.Second
	DefaultItemTTL          = 300 * time.Second
	DefaultReadTokenMinutes = 120
	DefaultContentType      = "video/mp4"
	DefaultTitle            = "Untitled"

	maxTitleLength = 200
	maxFieldLength = 500
	maxDescLength  = 5000
)

// TokenIssuer signs object-scoped blob URLs.
type TokenIssuer interface {
	IssueReadToken(objectName string, validMinutes int) (string, error)
	IssueWriteToken(objectName, contentType string) (string, error)
}

// Options tunes cache lifetimes, token validity and retry bounds.
type Options struct {
	ListTTL          time.Duration
	ItemTTL          time.Duration
	ReadTokenMinutes int
	MaxAttempts      int
	CommentLimit     int
}

func (o Options) withDefaults() Options {
	if o.ListTTL <= 0 {
		o.ListTTL = DefaultListTTL
	}
	if o.ItemTTL <= 0 {
		o.ItemTTL = DefaultItemTTL
	}
	if o.ReadTokenMinutes <= 0 {
		o.ReadTokenMinutes = DefaultReadTokenMinutes
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = rating.DefaultMaxAttempts
	}
	if o.CommentLimit <= 0 {
		o.CommentLimit = repository.DefaultCommentLimit
	}
	return o
}

// Deps are the collaborators of a Service.
type Deps struct {
	Items       repository.ItemStore
	Comments    repository.CommentStore
	Aggregator  *rating.Aggregator
	Cache       *cache.Layer
	Invalidator *cache.Invalidator
	Tokens      TokenIssuer
	Sentiment   sentiment.Annotator
	Logger      *slog.Logger
}

// Service implements the catalog operations.
type Service struct {
	items      repository.ItemStore
	comments   repository.CommentStore
	aggregator *rating.Aggregator
	cache      *cache.Layer
	inv        *cache.Invalidator
	tokens     TokenIssuer
	sentiment  sentiment.Annotator
	opts       Options
	logger     *slog.Logger
}

// New wires a Service. A nil Cache or Sentiment degrades to pass-through and neutral scores.
func New(deps Deps, opts Options) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	layer := deps.Cache
	if layer == nil {
		layer = cache.New(nil, logger)
	}
	inv := deps.Invalidator
	if inv == nil {
		inv = cache.NewInvalidator(layer, 0, 0, logger)
	}
	annotator := deps.Sentiment
	if annotator == nil {
		annotator = sentiment.Noop{}
	}
	return &Service{
		items:      deps.Items,
		comments:   deps.Comments,
		aggregator: deps.Aggregator,
		cache:      layer,
		inv:        inv,
		tokens:     deps.Tokens,
		sentiment:  annotator,
		opts:       opts.withDefaults(),
		logger:     logger.With(slog.String("component", "catalog")),
	}
}

// ListParams filters the public listing.
type ListParams struct {
	Search string
	Genre  string
}

// ListItems returns the JSON-encoded listing for params and whether it came from cache.
func (s *Service) ListItems(ctx context.Context, params ListParams) ([]byte, bool, error) {
	key := cache.ListKey(params.Search, params.Genre)
	return s.cache.GetOrCompute(ctx, key, s.opts.ListTTL, func(ctx context.Context) ([]byte, error) {
		items, err := s.items.List(ctx, repository.ItemFilter{Search: params.Search, Genre: params.Genre})
		if err != nil {
			return nil, s.storeFailure("items", "list", "", err)
		}
		return json.Marshal(s.itemViews(items))
	})
}

// GetItem returns the JSON-encoded detail payload for id and whether it came from cache.
func (s *Service) GetItem(ctx context.Context, id string) ([]byte, bool, error) {
	return s.cache.GetOrCompute(ctx, cache.ItemKey(id), s.opts.ItemTTL, func(ctx context.Context) ([]byte, error) {
		item, err := s.items.GetByID(ctx, id)
		if err != nil {
			return nil, s.storeFailure("items", "get", id, err)
		}
		comments, err := s.comments.ListByItem(ctx, id, s.opts.CommentLimit)
		if err != nil {
			return nil, s.storeFailure("comments", "list", id, err)
		}
		detail := DetailView{
			Item:     toItemView(item, s.streamURL(item)),
			Comments: make([]CommentView, 0, len(comments)),
		}
		for _, c := range comments {
			detail.Comments = append(detail.Comments, toCommentView(c))
		}
		return json.Marshal(detail)
	})
}

// ListOwned returns the actor's own items, bypassing the cache.
func (s *Service) ListOwned(ctx context.Context, actor domain.Actor) ([]ItemView, error) {
	items, err := s.items.List(ctx, repository.ItemFilter{OwnerID: actor.UserID})
	if err != nil {
		return nil, s.storeFailure("items", "list_owned", actor.UserID, err)
	}
	return s.itemViews(items), nil
}

// CreateParams is the input to CreateItem. Empty title becomes DefaultTitle
// and empty content type becomes DefaultContentType.
type CreateParams struct {
	Title       string
	Description string
	Publisher   string
	Producer    string
	Genre       string
	AgeRating   string
	ContentType string
}

// CreateItem registers an item in the uploading state and returns a write URL
// scoped to its object.
func (s *Service) CreateItem(ctx context.Context, actor domain.Actor, params CreateParams) (CreateResult, error) {
	if !actor.IsCreator() {
		return CreateResult{}, domain.ErrForbidden
	}
	title := strings.TrimSpace(params.Title)
	if title == "" {
		title = DefaultTitle
	}
	contentType := strings.TrimSpace(params.ContentType)
	if contentType == "" {
		contentType = DefaultContentType
	}
	item := domain.Item{
		ID:          uuid.NewString(),
		Title:       title,
		Description: strings.TrimSpace(params.Description),
		Publisher:   strings.TrimSpace(params.Publisher),
		Producer:    strings.TrimSpace(params.Producer),
		Genre:       strings.TrimSpace(params.Genre),
		AgeRating:   strings.TrimSpace(params.AgeRating),
		Status:      domain.StatusUploading,
		OwnerID:     actor.UserID,
	}
	item.ObjectName = item.ID + ".mp4"
	if err := validateMetadata(item); err != nil {
		return CreateResult{}, err
	}

	uploadURL, err := s.tokens.IssueWriteToken(item.ObjectName, contentType)
	if err != nil {
		return CreateResult{}, fmt.Errorf("issue upload url: %w", err)
	}

	created, err := s.items.Create(ctx, item)
	if err != nil {
		return CreateResult{}, s.storeFailure("items", "create", item.ID, err)
	}
	s.inv.ItemChanged(ctx, created.ID)

	s.logger.Info("item created",
		slog.String("item_id", created.ID),
		slog.String("owner_id", created.OwnerID),
	)
	return CreateResult{
		ID:        created.ID,
		UploadURL: uploadURL,
		Item:      toItemView(created, nil),
	}, nil
}

// FinalizeItem marks the owner's item ready after its upload completes.
func (s *Service) FinalizeItem(ctx context.Context, actor domain.Actor, id string) (ItemView, error) {
	item, err := s.mutate(ctx, actor, id, "finalize", func(item *domain.Item) error {
		item.Status = domain.StatusReady
		return nil
	})
	if err != nil {
		return ItemView{}, err
	}
	return toItemView(item, s.streamURL(item)), nil
}

// UpdateParams is a partial metadata update; nil fields are left unchanged.
type UpdateParams struct {
	Title       *string
	Description *string
	Publisher   *string
	Producer    *string
	Genre       *string
	AgeRating   *string
}

// UpdateItem edits the owner's item metadata. Ownership, object reference,
// status and rating aggregate are not editable.
func (s *Service) UpdateItem(ctx context.Context, actor domain.Actor, id string, params UpdateParams) (ItemView, error) {
	item, err := s.mutate(ctx, actor, id, "update", func(item *domain.Item) error {
		applyString(&item.Title, params.Title)
		applyString(&item.Description, params.Description)
		applyString(&item.Publisher, params.Publisher)
		applyString(&item.Producer, params.Producer)
		applyString(&item.Genre, params.Genre)
		applyString(&item.AgeRating, params.AgeRating)
		if item.Title == "" {
			return domain.Invalid("title", "must not be empty")
		}
		return validateMetadata(*item)
	})
	if err != nil {
		return ItemView{}, err
	}
	return toItemView(item, s.streamURL(item)), nil
}

// DeleteItem removes the owner's item with its comments and ratings. The
// stored object is left in place.
func (s *Service) DeleteItem(ctx context.Context, actor domain.Actor, id string) error {
	item, err := s.items.GetByID(ctx, id)
	if err != nil {
		return s.storeFailure("items", "get", id, err)
	}
	if err := authorize(actor, item); err != nil {
		return err
	}
	if err := s.items.Delete(ctx, id); err != nil {
		return s.storeFailure("items", "delete", id, err)
	}
	s.inv.ItemChanged(ctx, id)
	s.logger.Info("item deleted", slog.String("item_id", id), slog.String("owner_id", actor.UserID))
	return nil
}

// AddComment stores a sentiment-annotated comment. Only the item's detail
// entry is invalidated; listings carry no comments.
func (s *Service) AddComment(ctx context.Context, actor domain.Actor, itemID, text string) (CommentView, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return CommentView{}, domain.Invalid("text", "required")
	}
	if utf8.RuneCountInString(text) > domain.MaxCommentLength {
		return CommentView{}, domain.Invalid("text", fmt.Sprintf("must be at most %d characters", domain.MaxCommentLength))
	}
	if _, err := s.items.GetByID(ctx, itemID); err != nil {
		return CommentView{}, s.storeFailure("items", "get", itemID, err)
	}

	comment, err := s.comments.Create(ctx, domain.Comment{
		ID:        uuid.NewString(),
		ItemID:    itemID,
		UserID:    actor.UserID,
		Username:  actor.Username,
		Text:      text,
		Sentiment: s.sentiment.Score(ctx, text),
	})
	if err != nil {
		return CommentView{}, s.storeFailure("comments", "create", itemID, err)
	}
	s.inv.CommentAdded(ctx, itemID)
	return toCommentView(comment), nil
}

// RateItem records the actor's score for the item.
func (s *Service) RateItem(ctx context.Context, actor domain.Actor, itemID string, score int) (RatingResult, error) {
	item, err := s.aggregator.Apply(ctx, itemID, actor.UserID, score)
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return RatingResult{}, err
		}
		return RatingResult{}, s.storeFailure("ratings", "commit", itemID, err)
	}
	s.inv.ItemChanged(ctx, itemID)
	return RatingResult{RatingAvg: item.Rating.Average, RatingCount: item.Rating.Count}, nil
}

// InvalidateItem drops the cached listing and detail for an item whose
// aggregate changed outside a request.
func (s *Service) InvalidateItem(ctx context.Context, itemID string) {
	s.inv.ItemChanged(ctx, itemID)
}

// mutate runs a read-modify-write on an owned item with version-conditional
// retries and invalidates the item on success.
func (s *Service) mutate(ctx context.Context, actor domain.Actor, id, op string, apply func(*domain.Item) error) (domain.Item, error) {
	for attempt := 1; attempt <= s.opts.MaxAttempts; attempt++ {
		item, err := s.items.GetByID(ctx, id)
		if err != nil {
			return domain.Item{}, s.storeFailure("items", "get", id, err)
		}
		if err := authorize(actor, item); err != nil {
			return domain.Item{}, err
		}
		if err := apply(&item); err != nil {
			return domain.Item{}, err
		}

		updated, err := s.items.Update(ctx, item)
		if err == nil {
			s.inv.ItemChanged(ctx, id)
			s.logger.Info("item "+op, slog.String("item_id", id), slog.Int64("version", updated.Version))
			return updated, nil
		}
		if !errors.Is(err, repository.ErrVersionConflict) {
			return domain.Item{}, s.storeFailure("items", op, id, err)
		}
		s.logger.Debug("item update conflict", slog.String("item_id", id), slog.Int("attempt", attempt))
	}
	return domain.Item{}, fmt.Errorf("%s item %s: %w", op, id, domain.ErrConflict)
}

func authorize(actor domain.Actor, item domain.Item) error {
	if !actor.IsCreator() || !item.OwnedBy(actor.UserID) {
		return domain.ErrForbidden
	}
	return nil
}

func (s *Service) itemViews(items []domain.Item) []ItemView {
	views := make([]ItemView, 0, len(items))
	for _, item := range items {
		views = append(views, toItemView(item, s.streamURL(item)))
	}
	return views
}

func (s *Service) streamURL(item domain.Item) *string {
	if item.ObjectName == "" {
		return nil
	}
	u, err := s.tokens.IssueReadToken(item.ObjectName, s.opts.ReadTokenMinutes)
	if err != nil {
		s.logger.Warn("issue stream url failed", slog.String("item_id", item.ID), slog.String("error", err.Error()))
		return nil
	}
	return &u
}

// storeFailure passes not-found through and converts everything else into
// ErrUpstreamUnavailable after logging where it happened.
func (s *Service) storeFailure(collection, op, id string, err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return err
	}
	if errors.Is(err, domain.ErrUpstreamUnavailable) {
		return err
	}
	s.logger.Error("store failure",
		slog.String("collection", collection),
		slog.String("op", op),
		slog.String("id", id),
		slog.String("error", err.Error()),
	)
	return fmt.Errorf("%s %s: %w", collection, op, domain.ErrUpstreamUnavailable)
}

func applyString(dst *string, src *string) {
	if src != nil {
		*dst = strings.TrimSpace(*src)
	}
}

func validateMetadata(item domain.Item) error {
	if utf8.RuneCountInString(item.Title) > maxTitleLength {
		return domain.Invalid("title", fmt.Sprintf("must be at most %d characters", maxTitleLength))
	}
	if utf8.RuneCountInString(item.Description) > maxDescLength {
		return domain.Invalid("description", fmt.Sprintf("must be at most %d characters", maxDescLength))
	}
	fields := []struct {
		name  string
		value string
	}{
		{"publisher", item.Publisher},
		{"producer", item.Producer},
		{"genre", item.Genre},
		{"ageRating", item.AgeRating},
	}
	for _, f := range fields {
		if utf8.RuneCountInString(f.value) > maxFieldLength {
			return domain.Invalid(f.name, fmt.Sprintf("must be at most %d characters", maxFieldLength))
		}
	}
	return nil
}
