package catalog

import (
	"time"

	"github.com/Clark-Hu/media-catalog/internal/domain"
)

// ItemView is the reader-facing item. The storage object name is replaced
// by a short-lived StreamURL.
type ItemView struct {
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Publisher   string            `json:"publisher"`
	Producer    string            `json:"producer"`
	Genre       string            `json:"genre"`
	AgeRating   string            `json:"ageRating"`
	Status      domain.ItemStatus `json:"status"`
	OwnerID     string            `json:"ownerId"`
	RatingTotal int64             `json:"ratingTotal"`
	RatingCount int64             `json:"ratingCount"`
	RatingAvg   float64           `json:"ratingAvg"`
	StreamURL   *string           `json:"streamUrl"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
}

// CommentView is the reader-facing comment.
type CommentView struct {
	ID        string    `json:"id"`
	ItemID    string    `json:"itemId"`
	UserID    string    `json:"userId"`
	Username  string    `json:"username"`
	Text      string    `json:"text"`
	Sentiment float64   `json:"sentimentScore"`
	CreatedAt time.Time `json:"createdAt"`
}

// DetailView is the cached single-item payload.
type DetailView struct {
	Item     ItemView      `json:"video"`
	Comments []CommentView `json:"comments"`
}

// CreateResult carries the new item and its upload URL.
type CreateResult struct {
	ID        string   `json:"id"`
	UploadURL string   `json:"uploadUrl"`
	Item      ItemView `json:"video"`
}

// RatingResult is the aggregate after a rating.
type RatingResult struct {
	RatingAvg   float64 `json:"ratingAvg"`
	RatingCount int64   `json:"ratingCount"`
}

func toItemView(item domain.Item, streamURL *string) ItemView {
	return ItemView{
		ID:          item.ID,
		Title:       item.Title,
		Description: item.Description,
		Publisher:   item.Publisher,
		Producer:    item.Producer,
		Genre:       item.Genre,
		AgeRating:   item.AgeRating,
		Status:      item.Status,
		OwnerID:     item.OwnerID,
		RatingTotal: item.Rating.Total,
		RatingCount: item.Rating.Count,
		RatingAvg:   item.Rating.Average,
		StreamURL:   streamURL,
		CreatedAt:   item.CreatedAt,
		UpdatedAt:   item.UpdatedAt,
	}
}

func toCommentView(c domain.Comment) CommentView {
	return CommentView{
		ID:        c.ID,
		ItemID:    c.ItemID,
		UserID:    c.UserID,
		Username:  c.Username,
		Text:      c.Text,
		Sentiment: c.Sentiment,
		CreatedAt: c.CreatedAt,
	}
}
