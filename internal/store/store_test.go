package store

import (
	"bytes"
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"

	"github.com/ppiankov/postwatch/internal/config"
)

func openTestSQLite(t *testing.T) (*SQLite, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state", "postwatch.db")
	st, err := OpenSQLite(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	return st, path
}

// backends returns a fresh instance of every Store implementation.
func backends(t *testing.T) map[string]Store {
	t.Helper()
	f, err := NewFile(filepath.Join(t.TempDir(), "last_seen.txt"), zerolog.Nop())
	if err != nil {
		t.Fatalf("new file: %v", err)
	}
	sq, _ := openTestSQLite(t)
	return map[string]Store{
		"file":   f,
		"mem":    NewMem(""),
		"sqlite": sq,
	}
}

func TestStore_Contract(t *testing.T) {
	ctx := context.Background()
	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if _, ok, err := st.Read(ctx); err != nil || ok {
				t.Fatalf("fresh store: ok=%v err=%v, want absent", ok, err)
			}

			if err := st.Write(ctx, 101); err != nil {
				t.Fatalf("write: %v", err)
			}
			id, ok, err := st.Read(ctx)
			if err != nil || !ok || id != 101 {
				t.Fatalf("read = %d,%v,%v, want 101", id, ok, err)
			}

			if err := st.Write(ctx, 1790000000000000001); err != nil {
				t.Fatalf("overwrite: %v", err)
			}
			id, _, _ = st.Read(ctx)
			if id != 1790000000000000001 {
				t.Fatalf("last write should win, got %d", id)
			}

			if err := st.Reset(ctx); err != nil {
				t.Fatalf("reset: %v", err)
			}
			if _, ok, _ := st.Read(ctx); ok {
				t.Fatal("watermark should be absent after reset")
			}
			if err := st.Reset(ctx); err != nil {
				t.Fatalf("second reset: %v", err)
			}

			if err := st.Close(); err != nil {
				t.Fatalf("close: %v", err)
			}
		})
	}
}

func TestFile_PlainTextFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "last_seen.txt")
	st, _ := NewFile(path, zerolog.Nop())

	if err := st.Write(context.Background(), 101); err != nil {
		t.Fatalf("write: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	if strings.TrimSpace(string(data)) != "101" {
		t.Errorf("file content = %q, want 101", data)
	}

	matches, _ := filepath.Glob(filepath.Join(filepath.Dir(path), ".*.tmp*"))
	if len(matches) != 0 {
		t.Errorf("temp files left behind: %v", matches)
	}
}

func TestFile_ReadsHandWrittenValue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "last_seen.txt")
	if err := os.WriteFile(path, []byte("  1234\n\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	st, _ := NewFile(path, zerolog.Nop())

	id, ok, err := st.Read(context.Background())
	if err != nil || !ok || id != 1234 {
		t.Fatalf("read = %d,%v,%v, want 1234", id, ok, err)
	}
}

func TestFile_MalformedIsAbsentAndLogged(t *testing.T) {
	path := filepath.Join(t.TempDir(), "last_seen.txt")
	if err := os.WriteFile(path, []byte("abc"), 0o644); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	st, _ := NewFile(path, zerolog.New(&buf))

	id, ok, err := st.Read(context.Background())
	if err != nil {
		t.Fatalf("malformed content must not fail: %v", err)
	}
	if ok || id != 0 {
		t.Fatalf("read = %d,%v, want absent", id, ok)
	}
	if !strings.Contains(buf.String(), "malformed watermark") {
		t.Errorf("expected a warning, log = %q", buf.String())
	}
}

func TestFile_EmptyPath(t *testing.T) {
	if _, err := NewFile("", zerolog.Nop()); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestFile_ReadError(t *testing.T) {
	// A directory where the file should be cannot be read as a watermark.
	dir := t.TempDir()
	st, _ := NewFile(dir, zerolog.Nop())
	if _, _, err := st.Read(context.Background()); err == nil {
		t.Fatal("expected error reading a directory")
	}
}

func TestMem_SeededContent(t *testing.T) {
	tests := []struct {
		raw    string
		wantID uint64
		wantOK bool
	}{
		{"", 0, false},
		{"abc", 0, false},
		{"-5", 0, false},
		{"42", 42, true},
		{" 42 \n", 42, true},
		{"99999999999999999999999", math.MaxUint64, true},
	}

	for _, tt := range tests {
		id, ok, err := NewMem(tt.raw).Read(context.Background())
		if err != nil {
			t.Fatalf("%q: unexpected error: %v", tt.raw, err)
		}
		if id != tt.wantID || ok != tt.wantOK {
			t.Errorf("%q: read = %d,%v, want %d,%v", tt.raw, id, ok, tt.wantID, tt.wantOK)
		}
	}
}

func TestFile_OutOfRangeIsClampedAndLogged(t *testing.T) {
	path := filepath.Join(t.TempDir(), "last_seen.txt")
	if err := os.WriteFile(path, []byte("18446744073709551616\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	st, _ := NewFile(path, zerolog.New(&buf))

	id, ok, err := st.Read(context.Background())
	if err != nil || !ok || id != math.MaxUint64 {
		t.Fatalf("read = %d,%v,%v, want max uint64", id, ok, err)
	}
	if !strings.Contains(buf.String(), "out of range") {
		t.Errorf("expected an out-of-range warning, log = %q", buf.String())
	}
	if strings.Contains(buf.String(), "malformed") {
		t.Errorf("out-of-range value should not be reported as malformed, log = %q", buf.String())
	}
}

func TestMem_Writes(t *testing.T) {
	m := NewMem("")
	ctx := context.Background()
	_ = m.Write(ctx, 100)
	_ = m.Write(ctx, 102)

	if diff := cmp.Diff([]uint64{100, 102}, m.Writes()); diff != "" {
		t.Errorf("writes mismatch (-want +got):\n%s", diff)
	}
	if m.Raw() != "102" {
		t.Errorf("raw = %q, want 102", m.Raw())
	}
}

func TestOpenSQLite_Migrates(t *testing.T) {
	st, path := openTestSQLite(t)

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("db file not created: %v", err)
	}

	var version string
	if err := st.db.QueryRow("SELECT value FROM metadata WHERE key = 'schema_version'").Scan(&version); err != nil {
		t.Fatalf("read schema version: %v", err)
	}
	if version != "1" {
		t.Fatalf("unexpected schema version: %s", version)
	}

	// Reopening an existing database is a no-op migration.
	_ = st.Close()
	st2, err := OpenSQLite(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	_ = st2.Close()
}

func TestOpenSQLite_NewerSchemaRefused(t *testing.T) {
	st, path := openTestSQLite(t)
	if _, err := st.db.Exec("UPDATE metadata SET value = '99' WHERE key = 'schema_version'"); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	_ = st.Close()

	if _, err := OpenSQLite(path, zerolog.Nop()); err == nil {
		t.Fatal("expected error for newer schema")
	}
}

func TestSQLite_MalformedIsAbsent(t *testing.T) {
	st, _ := openTestSQLite(t)
	if _, err := st.db.Exec("INSERT INTO state (key, value, updated_at) VALUES (?, 'abc', '')", watermarkKey); err != nil {
		t.Fatalf("seed: %v", err)
	}

	_, ok, err := st.Read(context.Background())
	if err != nil || ok {
		t.Fatalf("read: ok=%v err=%v, want absent without error", ok, err)
	}
}

func TestSQLite_Deliveries(t *testing.T) {
	st, _ := openTestSQLite(t)
	ctx := context.Background()
	at := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)

	inputs := []Delivery{
		{PostID: "100", Keyword: "leaf", Message: "leaf pickup", Status: StatusDelivered, AttemptedAt: at},
		{PostID: "101", Message: "https://example.com/a", Status: StatusFailed, Error: "webhook: status 500", AttemptedAt: at.Add(time.Minute)},
		{PostID: "102", Keyword: "garbage", Message: "garbage day", Status: StatusDelivered, AttemptedAt: at.Add(2 * time.Minute)},
	}
	for _, d := range inputs {
		if err := st.RecordDelivery(ctx, d); err != nil {
			t.Fatalf("record %s: %v", d.PostID, err)
		}
	}

	got, err := st.RecentDeliveries(ctx, 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	want := []Delivery{inputs[2], inputs[1]}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("deliveries mismatch (-want +got):\n%s", diff)
	}
}

func TestSQLite_RecordDeliveryValidation(t *testing.T) {
	st, _ := openTestSQLite(t)
	ctx := context.Background()

	if err := st.RecordDelivery(ctx, Delivery{Status: StatusDelivered}); err == nil {
		t.Error("expected error for missing post id")
	}
	if err := st.RecordDelivery(ctx, Delivery{PostID: "1", Status: "queued"}); err == nil {
		t.Error("expected error for unknown status")
	}
	if err := st.RecordDelivery(ctx, Delivery{PostID: "1", Status: StatusDelivered}); err != nil {
		t.Errorf("zero time should default to now: %v", err)
	}
}

func TestOpen_SQLiteDefaultPathSkipsTextWatermark(t *testing.T) {
	dir := t.TempDir()
	// Left behind by the file backend before switching to sqlite.
	if err := os.WriteFile(filepath.Join(dir, config.DefaultStatePath), []byte("123\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, config.DefaultConfigFile), []byte("state:\n  backend: sqlite\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := config.LoadFile(dir)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	st, err := Open(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer func() { _ = st.Close() }()

	if _, ok, err := st.Read(context.Background()); err != nil || ok {
		t.Fatalf("read: ok=%v err=%v, want absent", ok, err)
	}
	if _, err := os.Stat(filepath.Join(dir, config.DefaultSQLitePath)); err != nil {
		t.Errorf("sqlite database not created at default path: %v", err)
	}
}

func TestOpen_SelectsBackend(t *testing.T) {
	dir := t.TempDir()

	st, err := Open(&config.Config{Dir: dir, State: config.StateConfig{Backend: config.BackendFile, Path: "last_seen.txt"}}, zerolog.Nop())
	if err != nil {
		t.Fatalf("open file: %v", err)
	}
	if _, ok := st.(*File); !ok {
		t.Errorf("backend = %T, want *File", st)
	}
	if _, ok := st.(Recorder); ok {
		t.Error("file backend should not record deliveries")
	}

	st, err = Open(&config.Config{Dir: dir, State: config.StateConfig{Backend: config.BackendSQLite, Path: "state.db"}}, zerolog.Nop())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer func() { _ = st.Close() }()
	if _, ok := st.(Recorder); !ok {
		t.Errorf("backend = %T, want Recorder", st)
	}
	if _, err := os.Stat(filepath.Join(dir, "state.db")); err != nil {
		t.Errorf("sqlite path should resolve against config dir: %v", err)
	}

	if _, err := Open(&config.Config{Dir: dir, State: config.StateConfig{Backend: "etcd", Path: "x"}}, zerolog.Nop()); err == nil {
		t.Error("expected error for unknown backend")
	}
}
