package store

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// Mem is an in-memory store. Raw holds the persisted text exactly as a file
// backend would see it, so tests can seed malformed content.
type Mem struct {
	mu     sync.Mutex
	raw    string
	writes []uint64
	log    zerolog.Logger
}

// NewMem returns an in-memory store seeded with raw content. Empty raw means
// no watermark.
func NewMem(raw string) *Mem {
	return &Mem{raw: raw, log: zerolog.Nop()}
}

func (m *Mem) Read(_ context.Context) (uint64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := parseWatermark(m.raw, m.log)
	return id, ok, nil
}

func (m *Mem) Write(_ context.Context, id uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.raw = formatWatermark(id)
	m.writes = append(m.writes, id)
	return nil
}

func (m *Mem) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.raw = ""
	return nil
}

func (m *Mem) Close() error { return nil }

// Raw returns the current persisted text.
func (m *Mem) Raw() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.raw
}

// Writes returns every id written, in order.
func (m *Mem) Writes() []uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]uint64(nil), m.writes...)
}
