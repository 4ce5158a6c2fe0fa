package domain

import (
	"math"
	"time"
)

// ItemStatus tracks the upload lifecycle of an item's binary object.
type ItemStatus string

const (
	StatusUploading ItemStatus = "uploading"
	StatusReady     ItemStatus = "ready"
)

// Valid reports whether s is a known lifecycle status.
func (s ItemStatus) Valid() bool {
	return s == StatusUploading || s == StatusReady
}

// Item is the canonical catalog entry as held by the authoritative store.
// ObjectName references the blob in external storage and is never handed
// to readers directly.
type Item struct {
	ID          string
	Title       string
	Description string
	Publisher   string
	Producer    string
	Genre       string
	AgeRating   string
	ObjectName  string
	Status      ItemStatus
	OwnerID     string
	Rating      RatingAggregate
	Version     int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// OwnedBy reports whether userID may mutate the item.
func (i Item) OwnedBy(userID string) bool {
	return userID != "" && i.OwnerID == userID
}

// RatingAggregate is the denormalized rating summary stored on an Item.
type RatingAggregate struct {
	Total   int64
	Count   int64
	Average float64
}

// NewRatingAggregate derives the average from total and count.
func NewRatingAggregate(total, count int64) RatingAggregate {
	return RatingAggregate{Total: total, Count: count, Average: AverageOf(total, count)}
}

// AverageOf returns total/count rounded to two decimals, or 0 when count is 0.
func AverageOf(total, count int64) float64 {
	if count <= 0 {
		return 0
	}
	return math.Round(float64(total)/float64(count)*100) / 100
}
