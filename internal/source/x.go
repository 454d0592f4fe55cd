package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ppiankov/postwatch/internal/config"
)

const (
	xTimeout   = 30 * time.Second
	xUserAgent = "postwatch/1.0"

	// PageSize is the number of posts requested per run. It also bounds how
	// many missed posts can be recovered after downtime.
	PageSize = 5
)

// ErrRateLimited is returned by a single request that got HTTP 429.
var ErrRateLimited = errors.New("x: rate limited")

// StatusError is a non-success response from the posts endpoint.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("x: status %d", e.StatusCode)
	}
	return fmt.Sprintf("x: status %d: %s", e.StatusCode, e.Body)
}

// XSource fetches an account's recent posts from the X API v2.
type XSource struct {
	client   *http.Client
	baseURL  string
	token    string
	cooldown time.Duration
	sleep    func(ctx context.Context, d time.Duration) error
	log      zerolog.Logger
}

// NewX creates an X source from the resolved configuration.
func NewX(cfg config.XConfig, log zerolog.Logger) (*XSource, error) {
	if strings.TrimSpace(cfg.BearerToken) == "" {
		return nil, config.ErrMissingBearerToken
	}
	return &XSource{
		client:   &http.Client{Timeout: xTimeout},
		baseURL:  strings.TrimRight(cfg.APIBaseURL, "/"),
		token:    cfg.BearerToken,
		cooldown: cfg.RateLimitCooldown.Duration,
		sleep:    sleepContext,
		log:      log.With().Str("source", "x").Logger(),
	}, nil
}

// FetchRecent returns up to PageSize most recent posts of userID, newest
// first. A 429 response triggers one cooldown and one retry; if the retry is
// also rate limited, FetchRecent returns no posts and no error.
func (xs *XSource) FetchRecent(ctx context.Context, userID string) ([]Post, error) {
	posts, err := xs.fetchPage(ctx, userID)
	if !errors.Is(err, ErrRateLimited) {
		return posts, err
	}

	xs.log.Warn().Dur("cooldown", xs.cooldown).Msg("rate limit hit, waiting before retrying once")
	if err := xs.sleep(ctx, xs.cooldown); err != nil {
		return nil, fmt.Errorf("rate limit cooldown: %w", err)
	}

	posts, err = xs.fetchPage(ctx, userID)
	if errors.Is(err, ErrRateLimited) {
		xs.log.Warn().Msg("still rate limited after retry, skipping this run")
		return []Post{}, nil
	}
	return posts, err
}

func (xs *XSource) fetchPage(ctx context.Context, userID string) ([]Post, error) {
	ctx, cancel := context.WithTimeout(ctx, xTimeout)
	defer cancel()

	q := url.Values{}
	q.Set("max_results", strconv.Itoa(PageSize))
	q.Set("tweet.fields", "entities")
	endpoint := fmt.Sprintf("%s/2/users/%s/tweets?%s", xs.baseURL, url.PathEscape(userID), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+xs.token)
	req.Header.Set("User-Agent", xUserAgent)

	resp, err := xs.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch posts of %s: %w", userID, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusTooManyRequests {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var page xTimeline
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("decode posts of %s: %w", userID, err)
	}

	return postsFromTimeline(page), nil
}

func postsFromTimeline(page xTimeline) []Post {
	posts := make([]Post, 0, len(page.Data))
	for _, tw := range page.Data {
		p := Post{ID: tw.ID, Text: tw.Text}
		if tw.Entities != nil {
			for _, u := range tw.Entities.URLs {
				if u.ExpandedURL != "" {
					p.URLs = append(p.URLs, u.ExpandedURL)
				}
			}
		}
		posts = append(posts, p)
	}
	return posts
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type xTimeline struct {
	Data []xPost `json:"data"`
}

type xPost struct {
	ID       string     `json:"id"`
	Text     string     `json:"text"`
	Entities *xEntities `json:"entities,omitempty"`
}

type xEntities struct {
	URLs []xURL `json:"urls"`
}

type xURL struct {
	ExpandedURL string `json:"expanded_url"`
}
