package domain

import "time"

// MaxCommentLength bounds comment text in characters.
const MaxCommentLength = 2000

// Comment is an immutable remark on an item annotated with a sentiment score in [-1, 1].
type Comment struct {
	ID        string
	ItemID    string
	UserID    string
	Username  string
	Text      string
	Sentiment float64
	CreatedAt time.Time
}
