package checkpoint

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps one record per key in a SQLite database, so several
// sweeps can share a checkpoint file.
type SQLiteStore struct {
	path string
	key  string

	mu sync.Mutex
	db *sql.DB
}

func NewSQLiteStore(path, key string) *SQLiteStore {
	if key == "" {
		key = "default"
	}
	return &SQLiteStore{path: path, key: key}
}

func (s *SQLiteStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return errors.New("sqlite path is required")
	}
	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return err
	}

	_, err = db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS checkpoints (
			key          TEXT PRIMARY KEY,
			step_counter INTEGER NOT NULL,
			polarity     INTEGER NOT NULL,
			field        INTEGER NOT NULL,
			resume       INTEGER NOT NULL,
			spins        BLOB,
			saved_at     TEXT NOT NULL
		)
	`)
	if err != nil {
		_ = db.Close()
		return err
	}

	s.db = db
	return nil
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLiteStore) getDB(ctx context.Context) (*sql.DB, error) {
	if err := s.Init(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db, nil
}

func (s *SQLiteStore) LoadResumeState(ctx context.Context) (Record, bool, error) {
	db, err := s.getDB(ctx)
	if err != nil {
		return Record{}, false, err
	}

	var (
		step    int64
		rec     Record
		resume  int64
		spins   []byte
		savedAt string
	)
	err = db.QueryRowContext(ctx, `
		SELECT step_counter, polarity, field, resume, spins, saved_at
		FROM checkpoints WHERE key = ?
	`, s.key).Scan(&step, &rec.Polarity, &rec.Field, &resume, &spins, &savedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, false, nil
		}
		return Record{}, false, err
	}

	if step < 0 {
		return Record{}, false, Inconsistent(fmt.Sprintf("negative step counter %d", step), nil)
	}
	rec.StepCounter = uint64(step)
	rec.Resume = resume != 0
	if len(spins) > 0 {
		if err := json.Unmarshal(spins, &rec.Spins); err != nil {
			return Record{}, false, Inconsistent(fmt.Sprintf("decode spins for %s: %v", s.key, err), &rec)
		}
	}
	if t, err := time.Parse(time.RFC3339Nano, savedAt); err == nil {
		rec.SavedAt = t
	}

	if err := rec.Validate(); err != nil {
		return Record{}, false, err
	}
	return rec, true, nil
}

func (s *SQLiteStore) SaveState(ctx context.Context, rec Record) error {
	db, err := s.getDB(ctx)
	if err != nil {
		return err
	}

	var spins []byte
	if len(rec.Spins) > 0 {
		if spins, err = json.Marshal(rec.Spins); err != nil {
			return err
		}
	}
	resume := 0
	if rec.Resume {
		resume = 1
	}
	if rec.SavedAt.IsZero() {
		rec.SavedAt = time.Now().UTC()
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO checkpoints (key, step_counter, polarity, field, resume, spins, saved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			step_counter = excluded.step_counter,
			polarity = excluded.polarity,
			field = excluded.field,
			resume = excluded.resume,
			spins = excluded.spins,
			saved_at = excluded.saved_at
	`, s.key, int64(rec.StepCounter), rec.Polarity, rec.Field, resume, spins, rec.SavedAt.Format(time.RFC3339Nano))
	return err
}
