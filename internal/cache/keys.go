package cache

import (
	"net/url"
	"strings"
)

const (
	// ListPrefix is shared by every list key.
	ListPrefix = "items:list:"
	itemPrefix = "items:byid:"
)

// ListKey derives the list key for a filter pair. Search is case-insensitive,
// so it is lower-cased; both parts are trimmed and query-escaped so distinct
// filters never share a key.
func ListKey(search, genre string) string {
	search = strings.ToLower(strings.TrimSpace(search))
	genre = strings.TrimSpace(genre)
	return ListPrefix + "search=" + url.QueryEscape(search) + "&genre=" + url.QueryEscape(genre)
}

// ItemKey is the detail key for one item.
func ItemKey(id string) string {
	return itemPrefix + id
}
