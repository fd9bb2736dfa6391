package memstore

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"

	"mnemo/internal/summarize"
)

// ErrLocked indicates another process currently holds the store open for
// writing.
var ErrLocked = errors.New("memory store is locked by another process")

const schema = `
CREATE TABLE IF NOT EXISTS memories (
	id            TEXT PRIMARY KEY,
	transcript_id TEXT NOT NULL,
	type          TEXT NOT NULL,
	content       TEXT NOT NULL,
	tags          TEXT NOT NULL DEFAULT '[]',
	importance    REAL NOT NULL DEFAULT 0,
	content_hash  TEXT NOT NULL,
	created_at    TEXT NOT NULL,
	UNIQUE (transcript_id, content_hash)
);
CREATE INDEX IF NOT EXISTS idx_memories_transcript ON memories(transcript_id);
`

// Store manages memory persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	lock *flock.Flock
	path string
}

// Open initializes or connects to the memory database at path. The advisory
// lock next to the database is acquired without blocking; a held lock means
// another extraction process is active.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure directory: %w", err)
	}

	lock := flock.New(path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire store lock: %w", err)
	}
	if !locked {
		return nil, ErrLocked
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			_ = lock.Unlock()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		_ = lock.Unlock()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &Store{db: db, lock: lock, path: path}, nil
}

// Close closes the database and releases the advisory lock.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	var firstErr error
	if s.db != nil {
		firstErr = s.db.Close()
	}
	if s.lock != nil {
		if err := s.lock.Unlock(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Save persists memories, silently skipping records whose (transcript,
// content) pair is already stored. It returns the number of new rows.
func (s *Store) Save(ctx context.Context, memories []summarize.Memory) (int, error) {
	if len(memories) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const insert = `
INSERT INTO memories (id, transcript_id, type, content, tags, importance, content_hash, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (transcript_id, content_hash) DO NOTHING`

	inserted := 0
	for _, memory := range memories {
		tags, err := json.Marshal(memory.Tags)
		if err != nil {
			return inserted, fmt.Errorf("marshal tags: %w", err)
		}
		res, err := tx.ExecContext(ctx, insert,
			memory.ID,
			memory.TranscriptID,
			memory.Type,
			memory.Content,
			string(tags),
			memory.Importance,
			contentHash(memory),
			memory.CreatedAt.UTC().Format(time.RFC3339Nano),
		)
		if err != nil {
			return inserted, fmt.Errorf("insert memory: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return inserted, fmt.Errorf("commit: %w", err)
	}
	return inserted, nil
}

// List returns all memories, optionally filtered by transcript id, newest
// first.
func (s *Store) List(ctx context.Context, transcriptID string) ([]summarize.Memory, error) {
	query := `SELECT id, transcript_id, type, content, tags, importance, created_at
FROM memories`
	args := []any{}
	if transcriptID != "" {
		query += ` WHERE transcript_id = ?`
		args = append(args, transcriptID)
	}
	query += ` ORDER BY created_at DESC, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query memories: %w", err)
	}
	defer rows.Close()

	var memories []summarize.Memory
	for rows.Next() {
		var memory summarize.Memory
		var tags, createdAt string
		if err := rows.Scan(&memory.ID, &memory.TranscriptID, &memory.Type,
			&memory.Content, &tags, &memory.Importance, &createdAt); err != nil {
			return nil, fmt.Errorf("scan memory: %w", err)
		}
		if err := json.Unmarshal([]byte(tags), &memory.Tags); err != nil {
			memory.Tags = nil
		}
		if parsed, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			memory.CreatedAt = parsed
		}
		memories = append(memories, memory)
	}
	return memories, rows.Err()
}

// CountByTranscript returns the number of stored memories for a transcript.
func (s *Store) CountByTranscript(ctx context.Context, transcriptID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM memories WHERE transcript_id = ?`, transcriptID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count memories: %w", err)
	}
	return count, nil
}

func contentHash(memory summarize.Memory) string {
	sum := sha256.Sum256([]byte(memory.Type + "\x00" + memory.Content))
	return hex.EncodeToString(sum[:])
}
