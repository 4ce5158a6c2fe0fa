package domain

import "time"

const (
	MinScore = 1
	MaxScore = 5
)

// Rating is a single user's score for an item. (ItemID, UserID) is its identity.
type Rating struct {
	ItemID    string
	UserID    string
	Score     int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ClampScore forces score into [MinScore, MaxScore].
func ClampScore(score int) int {
	if score < MinScore {
		return MinScore
	}
	if score > MaxScore {
		return MaxScore
	}
	return score
}
