package source

import (
	"context"
	"strconv"
)

// Post represents a single item fetched from the account's timeline.
type Post struct {
	ID   string   // decimal post id, compared numerically
	Text string   // raw post text
	URLs []string // expanded URLs of embedded link entities, in order
}

// NumericID parses the post id as an unsigned integer.
func (p Post) NumericID() (uint64, error) {
	return strconv.ParseUint(p.ID, 10, 64)
}

// Fetcher returns the most recent posts of an account, newest first.
type Fetcher interface {
	FetchRecent(ctx context.Context, userID string) ([]Post, error)
}
