package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// File keeps the watermark as a single line of decimal text.
type File struct {
	path string
	log  zerolog.Logger
}

// NewFile returns a file-backed store. The file is created on first Write.
func NewFile(path string, log zerolog.Logger) (*File, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("path is required")
	}
	return &File{
		path: path,
		log:  log.With().Str("state", path).Logger(),
	}, nil
}

func (f *File) Read(_ context.Context) (uint64, bool, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read watermark: %w", err)
	}
	id, ok := parseWatermark(string(data), f.log)
	return id, ok, nil
}

// Write replaces the file contents through a temp file and rename so a crash
// never leaves a half-written id behind.
func (f *File) Write(_ context.Context, id uint64) (err error) {
	dir := filepath.Dir(f.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create state dir: %w", err)
		}
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.path)+".tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err := tmp.WriteString(formatWatermark(id) + "\n"); err != nil {
		return fmt.Errorf("write watermark: %w", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		return fmt.Errorf("chmod watermark: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close watermark: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("replace watermark: %w", err)
	}
	return nil
}

func (f *File) Reset(_ context.Context) error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove watermark: %w", err)
	}
	return nil
}

func (f *File) Close() error { return nil }
