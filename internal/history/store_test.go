package history

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"voxbridge/internal/pipeline"
)

func openTestStore(t *testing.T, maxEntries int) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "data", "history.db"), maxEntries)
	if err != nil {
		t.Fatalf("open history: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestAppendAndList(t *testing.T) {
	s := openTestStore(t, 0)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	s.clock = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	ctx := context.Background()
	if _, err := s.Append(ctx, Entry{Seconds: 2, Success: true, Text: "move left", Language: "en", ElapsedMS: 2100}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := s.Append(ctx, Entry{Seconds: 3, Error: "arecord not found", Kind: "tool_unavailable"}); err != nil {
		t.Fatalf("append: %v", err)
	}

	entries, err := s.List(ctx, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Seconds != 3 || entries[0].Success || entries[0].Kind != "tool_unavailable" {
		t.Fatalf("expected newest failure first, got %+v", entries[0])
	}
	if entries[1].Text != "move left" || !entries[1].Success || entries[1].ElapsedMS != 2100 {
		t.Fatalf("unexpected second entry %+v", entries[1])
	}
	if !entries[1].CreatedAt.Equal(base.Add(time.Second)) {
		t.Fatalf("created_at = %s", entries[1].CreatedAt)
	}
}

func TestListEmpty(t *testing.T) {
	s := openTestStore(t, 0)
	entries, err := s.List(context.Background(), 5)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if entries == nil || len(entries) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", entries)
	}
}

func TestAppendPrunesToMaxEntries(t *testing.T) {
	s := openTestStore(t, 3)
	ctx := context.Background()
	for i := 1; i <= 5; i++ {
		if _, err := s.Append(ctx, Entry{Seconds: i, Success: true}); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	entries, err := s.List(ctx, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 3 || entries[0].Seconds != 5 || entries[2].Seconds != 3 {
		t.Fatalf("expected newest three entries, got %+v", entries)
	}
}

func TestObserveJournalsReport(t *testing.T) {
	s := openTestStore(t, 0)
	started := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

	s.Observe(context.Background(), pipeline.Report{
		Seconds:   4,
		Result:    pipeline.Result{Success: true, Text: "reload", Language: "en", Confidence: 0.82},
		StartedAt: started,
		Elapsed:   4200 * time.Millisecond,
	})

	entries, err := s.List(context.Background(), 1)
	if err != nil || len(entries) != 1 {
		t.Fatalf("list: %v %+v", err, entries)
	}
	e := entries[0]
	if e.Text != "reload" || e.Seconds != 4 || e.ElapsedMS != 4200 || !e.CreatedAt.Equal(started) || e.Confidence != 0.82 {
		t.Fatalf("unexpected entry %+v", e)
	}
}

func TestReopenKeepsEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	s, err := Open(context.Background(), path, 0)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := s.Append(context.Background(), Entry{Seconds: 1, Text: "persist"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	s.Close()

	s, err = Open(context.Background(), path, 0)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	entries, err := s.List(context.Background(), 10)
	if err != nil || len(entries) != 1 || entries[0].Text != "persist" {
		t.Fatalf("expected persisted entry, got %+v %v", entries, err)
	}
}

func TestOpenUpgradesSchemaWithoutConfidence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	db, err := sql.Open("sqlite", "file:"+path)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	_, err = db.Exec(`
CREATE TABLE transcriptions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    created_at TEXT NOT NULL,
    seconds INTEGER NOT NULL,
    success INTEGER NOT NULL,
    text TEXT NOT NULL,
    error TEXT NOT NULL DEFAULT '',
    language TEXT NOT NULL DEFAULT '',
    kind TEXT NOT NULL DEFAULT '',
    elapsed_ms INTEGER NOT NULL
);
INSERT INTO transcriptions(created_at, seconds, success, text, elapsed_ms)
VALUES('2026-03-01T09:00:00Z', 2, 1, 'old', 2000);`)
	db.Close()
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	s, err := Open(context.Background(), path, 0)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()
	if _, err := s.Append(context.Background(), Entry{Seconds: 1, Success: true, Text: "new", Confidence: 0.5}); err != nil {
		t.Fatalf("append: %v", err)
	}
	entries, err := s.List(context.Background(), 10)
	if err != nil || len(entries) != 2 {
		t.Fatalf("list: %v %+v", err, entries)
	}
	if entries[0].Confidence != 0.5 || entries[1].Text != "old" || entries[1].Confidence != 0 {
		t.Fatalf("unexpected entries %+v", entries)
	}
}
