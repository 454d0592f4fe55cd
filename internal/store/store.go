// Package store persists the watermark: the id of the most recently notified
// post.
package store

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ppiankov/postwatch/internal/config"
)

// Store reads and writes a single watermark value.
type Store interface {
	// Read returns the persisted watermark. ok is false when no watermark
	// exists or the persisted content is not a valid id.
	Read(ctx context.Context) (id uint64, ok bool, err error)
	// Write replaces the persisted watermark.
	Write(ctx context.Context, id uint64) error
	// Reset removes the watermark so the next Read reports it absent.
	Reset(ctx context.Context) error
	Close() error
}

const (
	StatusDelivered = "delivered"
	StatusFailed    = "failed"
)

// Delivery is one webhook delivery attempt.
type Delivery struct {
	PostID      string
	Keyword     string
	Message     string
	Status      string // "delivered" or "failed"
	Error       string
	AttemptedAt time.Time
}

// Recorder is implemented by stores that keep a delivery audit log.
type Recorder interface {
	RecordDelivery(ctx context.Context, d Delivery) error
	RecentDeliveries(ctx context.Context, limit int) ([]Delivery, error)
}

// Open returns the backend selected by cfg.State.
func Open(cfg *config.Config, log zerolog.Logger) (Store, error) {
	path := cfg.StatePath()
	switch cfg.State.Backend {
	case config.BackendFile, "":
		return NewFile(path, log)
	case config.BackendSQLite:
		return OpenSQLite(path, log)
	default:
		return nil, fmt.Errorf("unknown state backend %q", cfg.State.Backend)
	}
}

// parseWatermark interprets raw persisted content. Empty content is absent;
// unparseable content is logged and treated as absent. A decimal value too
// large for uint64 is clamped to the maximum, so it still bounds every post.
func parseWatermark(raw string, log zerolog.Logger) (uint64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	switch {
	case errors.Is(err, strconv.ErrRange):
		log.Warn().Str("content", raw).Msg("watermark out of range, clamping to max id")
		return math.MaxUint64, true
	case err != nil:
		log.Warn().Str("content", raw).Err(err).Msg("ignoring malformed watermark")
		return 0, false
	}
	return id, true
}

func formatWatermark(id uint64) string {
	return strconv.FormatUint(id, 10)
}
