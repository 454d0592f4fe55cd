// Package notify formats matched posts and delivers them to a chat webhook.
package notify

import (
	"context"
	"unicode/utf8"

	"github.com/ppiankov/postwatch/internal/source"
)

// Notifier delivers a single formatted message.
type Notifier interface {
	Deliver(ctx context.Context, message string) error
}

// Formatter turns posts into message bodies.
type Formatter struct {
	maxRunes int
}

// NewFormatter creates a formatter that truncates messages to maxRunes.
// Zero disables truncation.
func NewFormatter(maxRunes int) *Formatter {
	return &Formatter{maxRunes: maxRunes}
}

// Format returns the first expanded URL of the post if it has one, or the
// raw post text otherwise.
func (f *Formatter) Format(post source.Post) string {
	msg := post.Text
	if len(post.URLs) > 0 {
		msg = post.URLs[0]
	}
	return truncateRunes(msg, f.maxRunes)
}

// truncateRunes cuts s to at most n runes, ending in an ellipsis when it
// had to cut.
func truncateRunes(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-1]) + "…"
}
