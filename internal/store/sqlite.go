package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

const watermarkKey = "last_seen_id"

// SQLite keeps the watermark in a state table and logs every delivery
// attempt. The log is informational only; nothing is ever replayed from it.
type SQLite struct {
	db  *sql.DB
	log zerolog.Logger
}

func OpenSQLite(path string, log zerolog.Logger) (*SQLite, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("path is required")
	}

	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := migrate(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQLite{db: db, log: log.With().Str("state", path).Logger()}, nil
}

func (s *SQLite) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLite) Read(ctx context.Context) (uint64, bool, error) {
	if s == nil || s.db == nil {
		return 0, false, errors.New("store is not initialized")
	}

	var raw string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM state WHERE key = ?", watermarkKey).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read watermark: %w", err)
	}

	id, ok := parseWatermark(raw, s.log)
	return id, ok, nil
}

func (s *SQLite) Write(ctx context.Context, id uint64) error {
	if s == nil || s.db == nil {
		return errors.New("store is not initialized")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO state (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`, watermarkKey, formatWatermark(id), formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("write watermark: %w", err)
	}
	return nil
}

func (s *SQLite) Reset(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errors.New("store is not initialized")
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM state WHERE key = ?", watermarkKey); err != nil {
		return fmt.Errorf("reset watermark: %w", err)
	}
	return nil
}

func (s *SQLite) RecordDelivery(ctx context.Context, d Delivery) error {
	if s == nil || s.db == nil {
		return errors.New("store is not initialized")
	}
	if strings.TrimSpace(d.PostID) == "" {
		return errors.New("post_id is required")
	}
	switch d.Status {
	case StatusDelivered, StatusFailed:
	default:
		return fmt.Errorf("unknown delivery status %q", d.Status)
	}
	if d.AttemptedAt.IsZero() {
		d.AttemptedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO deliveries (post_id, keyword, message, status, error, attempted_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		d.PostID,
		nullString(d.Keyword),
		d.Message,
		d.Status,
		nullString(d.Error),
		formatTime(d.AttemptedAt),
	)
	if err != nil {
		return fmt.Errorf("record delivery: %w", err)
	}
	return nil
}

// RecentDeliveries returns up to limit attempts, newest first.
func (s *SQLite) RecentDeliveries(ctx context.Context, limit int) ([]Delivery, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store is not initialized")
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT post_id, keyword, message, status, error, attempted_at
		FROM deliveries
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("get deliveries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Delivery
	for rows.Next() {
		var (
			d         Delivery
			keyword   sql.NullString
			errText   sql.NullString
			attempted string
		)
		if err := rows.Scan(&d.PostID, &keyword, &d.Message, &d.Status, &errText, &attempted); err != nil {
			return nil, fmt.Errorf("scan delivery: %w", err)
		}
		d.Keyword = keyword.String
		d.Error = errText.String
		d.AttemptedAt, err = parseTime(attempted)
		if err != nil {
			return nil, fmt.Errorf("parse attempted_at: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate deliveries: %w", err)
	}
	return out, nil
}

func nullString(s string) sql.NullString {
	if strings.TrimSpace(s) == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts, nil
	}
	return time.Parse(time.RFC3339, value)
}
