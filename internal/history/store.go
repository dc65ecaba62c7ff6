// Package history keeps a local SQLite journal of transcription results.
package history

import (
	"context"
	"database/sql"
	"fmt"
	log "log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"voxbridge/internal/pipeline"
)

type Entry struct {
	ID         int64     `json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	Seconds    int       `json:"duration"`
	Success    bool      `json:"success"`
	Text       string    `json:"text"`
	Error      string    `json:"error,omitempty"`
	Language   string    `json:"language,omitempty"`
	Confidence float64   `json:"confidence,omitempty"`
	Kind       string    `json:"kind,omitempty"`
	ElapsedMS  int64     `json:"elapsed_ms"`
}

type Store struct {
	db         *sql.DB
	maxEntries int
	clock      func() time.Time
}

// Open creates the database at path if needed. maxEntries <= 0 disables
// pruning.
func Open(ctx context.Context, path string, maxEntries int) (*Store, error) {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &Store{db: db, maxEntries: maxEntries, clock: time.Now}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	if err := s.Prune(ctx); err != nil {
		log.Warn("History prune on start failed", "err", err)
	}
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS transcriptions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    created_at TEXT NOT NULL,
    seconds INTEGER NOT NULL,
    success INTEGER NOT NULL,
    text TEXT NOT NULL,
    error TEXT NOT NULL DEFAULT '',
    language TEXT NOT NULL DEFAULT '',
    confidence REAL NOT NULL DEFAULT 0,
    kind TEXT NOT NULL DEFAULT '',
    elapsed_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_transcriptions_created ON transcriptions(created_at);
`)
	if err != nil {
		return err
	}
	return s.addColumn(ctx, "confidence", "REAL NOT NULL DEFAULT 0")
}

// addColumn upgrades databases created before column existed.
func (s *Store) addColumn(ctx context.Context, column, decl string) error {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pragma_table_info('transcriptions') WHERE name = ?`, column).Scan(&n)
	if err != nil || n > 0 {
		return err
	}
	_, err = s.db.ExecContext(ctx, fmt.Sprintf("ALTER TABLE transcriptions ADD COLUMN %s %s", column, decl))
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Append stores e and prunes old rows. A zero CreatedAt is set from the clock.
func (s *Store) Append(ctx context.Context, e Entry) (int64, error) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO transcriptions(created_at, seconds, success, text, error, language, confidence, kind, elapsed_ms)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.CreatedAt.UTC().Format(time.RFC3339Nano), e.Seconds, e.Success, e.Text, e.Error, e.Language, e.Confidence, e.Kind, e.ElapsedMS)
	if err != nil {
		return 0, fmt.Errorf("insert entry: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	if err := s.Prune(ctx); err != nil {
		return id, fmt.Errorf("prune: %w", err)
	}
	return id, nil
}

// List returns up to limit entries, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, seconds, success, text, error, language, confidence, kind, elapsed_ms
		 FROM transcriptions ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var (
			e       Entry
			created string
		)
		if err := rows.Scan(&e.ID, &created, &e.Seconds, &e.Success, &e.Text, &e.Error, &e.Language, &e.Confidence, &e.Kind, &e.ElapsedMS); err != nil {
			return nil, err
		}
		if ts, err := time.Parse(time.RFC3339Nano, created); err == nil {
			e.CreatedAt = ts
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Prune keeps only the newest maxEntries rows.
func (s *Store) Prune(ctx context.Context) error {
	if s.maxEntries <= 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM transcriptions WHERE id NOT IN (
		    SELECT id FROM transcriptions ORDER BY id DESC LIMIT ?
		 )`, s.maxEntries)
	return err
}

// Observe journals a finished pipeline run.
func (s *Store) Observe(ctx context.Context, r pipeline.Report) {
	_, err := s.Append(context.WithoutCancel(ctx), Entry{
		CreatedAt:  r.StartedAt,
		Seconds:    r.Seconds,
		Success:    r.Result.Success,
		Text:       r.Result.Text,
		Error:      r.Result.Error,
		Language:   r.Result.Language,
		Confidence: r.Result.Confidence,
		Kind:       string(r.Kind),
		ElapsedMS:  r.Elapsed.Milliseconds(),
	})
	if err != nil {
		log.Warn("Failed to journal transcription", "err", err)
	}
}
