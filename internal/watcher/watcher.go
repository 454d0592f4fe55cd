// Package watcher runs one pass of fetch, filter, notify and watermark
// advance.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/rs/zerolog"

	"github.com/ppiankov/postwatch/internal/notify"
	"github.com/ppiankov/postwatch/internal/source"
	"github.com/ppiankov/postwatch/internal/store"
)

// Filter selects posts worth forwarding.
type Filter interface {
	Match(text string) (keyword string, ok bool)
}

// Formatter turns a post into a message body.
type Formatter interface {
	Format(post source.Post) string
}

// Deps wires a Watcher.
type Deps struct {
	Store     store.Store
	Fetcher   source.Fetcher
	Notifier  notify.Notifier
	Filter    Filter
	Formatter Formatter
	UserID    string

	// AdvanceOnFailure moves the watermark past a post even when its
	// delivery failed, so the post is never retried.
	AdvanceOnFailure bool
	// DryRun reports what would be delivered without delivering or
	// writing the watermark.
	DryRun bool

	Log zerolog.Logger
	Now func() time.Time
}

// Outcome describes what happened to one fetched post.
type Outcome struct {
	PostID  string
	Action  string // see Action* constants
	Keyword string
	Message string
	Err     error
}

const (
	ActionSkippedSeen    = "seen"
	ActionSkippedNoMatch = "no_match"
	ActionSkippedBadID   = "bad_id"
	ActionDelivered      = "delivered"
	ActionDeliveryFailed = "failed"
	ActionWouldDeliver   = "would_deliver"
)

// Result summarizes a run.
type Result struct {
	Fetched      int
	Delivered    int
	Failed       int
	Watermark    uint64
	HasWatermark bool
	Outcomes     []Outcome
}

// Watcher is the single-pass orchestrator.
type Watcher struct {
	deps Deps
}

// New validates deps and returns a Watcher.
func New(deps Deps) (*Watcher, error) {
	if deps.Store == nil {
		return nil, errors.New("watcher: store is required")
	}
	if deps.Fetcher == nil {
		return nil, errors.New("watcher: fetcher is required")
	}
	if deps.Notifier == nil && !deps.DryRun {
		return nil, errors.New("watcher: notifier is required")
	}
	if deps.Filter == nil {
		return nil, errors.New("watcher: filter is required")
	}
	if deps.Formatter == nil {
		deps.Formatter = notify.NewFormatter(0)
	}
	if deps.UserID == "" {
		return nil, errors.New("watcher: user id is required")
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Watcher{deps: deps}, nil
}

// Run performs one pass. The watermark is written after every post that
// is delivered (or fails with AdvanceOnFailure set), before the next post
// is processed. A fetch error aborts the run before any write.
func (w *Watcher) Run(ctx context.Context) (Result, error) {
	d := w.deps
	log := d.Log

	watermark, hasWatermark, err := d.Store.Read(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("read watermark: %w", err)
	}
	if hasWatermark {
		log.Debug().Uint64("watermark", watermark).Msg("loaded watermark")
	} else {
		log.Info().Msg("no watermark, every fetched match will be delivered")
	}

	posts, err := d.Fetcher.FetchRecent(ctx, d.UserID)
	if err != nil {
		return Result{}, fmt.Errorf("fetch posts: %w", err)
	}

	// The API returns newest first; walk oldest first so the watermark
	// only ever moves forward.
	posts = slices.Clone(posts)
	slices.Reverse(posts)

	res := Result{Fetched: len(posts)}
	recorder, _ := d.Store.(store.Recorder)

	for _, p := range posts {
		plog := log.With().Str("post_id", p.ID).Logger()

		id, err := p.NumericID()
		if err != nil {
			plog.Warn().Err(err).Msg("skipping post with non-numeric id")
			res.Outcomes = append(res.Outcomes, Outcome{PostID: p.ID, Action: ActionSkippedBadID, Err: err})
			continue
		}

		if hasWatermark && id <= watermark {
			res.Outcomes = append(res.Outcomes, Outcome{PostID: p.ID, Action: ActionSkippedSeen})
			continue
		}

		keyword, ok := d.Filter.Match(p.Text)
		if !ok {
			plog.Debug().Msg("no keyword match")
			res.Outcomes = append(res.Outcomes, Outcome{PostID: p.ID, Action: ActionSkippedNoMatch})
			continue
		}

		msg := d.Formatter.Format(p)
		out := Outcome{PostID: p.ID, Keyword: keyword, Message: msg}

		if d.DryRun {
			out.Action = ActionWouldDeliver
			res.Outcomes = append(res.Outcomes, out)
			continue
		}

		deliverErr := d.Notifier.Deliver(ctx, msg)
		if deliverErr != nil {
			plog.Error().Err(deliverErr).Str("keyword", keyword).Msg("delivery failed")
			out.Action = ActionDeliveryFailed
			out.Err = deliverErr
			res.Failed++
		} else {
			plog.Info().Str("keyword", keyword).Msg("delivered")
			out.Action = ActionDelivered
			res.Delivered++
		}
		res.Outcomes = append(res.Outcomes, out)

		if recorder != nil {
			if err := recorder.RecordDelivery(ctx, deliveryRecord(out, d.Now())); err != nil {
				plog.Warn().Err(err).Msg("could not record delivery")
			}
		}

		if deliverErr != nil && !d.AdvanceOnFailure {
			continue
		}

		if err := d.Store.Write(ctx, id); err != nil {
			return res, fmt.Errorf("write watermark %d: %w", id, err)
		}
		watermark, hasWatermark = id, true
	}

	res.Watermark, res.HasWatermark = watermark, hasWatermark
	return res, nil
}

func deliveryRecord(out Outcome, at time.Time) store.Delivery {
	rec := store.Delivery{
		PostID:      out.PostID,
		Keyword:     out.Keyword,
		Message:     out.Message,
		Status:      store.StatusDelivered,
		AttemptedAt: at,
	}
	if out.Err != nil {
		rec.Status = store.StatusFailed
		rec.Error = out.Err.Error()
	}
	return rec
}
