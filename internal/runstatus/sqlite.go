package runstatus

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/forPelevin/podclips/internal/types"
)

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id          TEXT PRIMARY KEY,
    state       TEXT NOT NULL,
    phase       TEXT,
    progress    INTEGER NOT NULL DEFAULT 0,
    message     TEXT,
    error_kind  TEXT,
    input       TEXT NOT NULL,
    out_dir     TEXT,
    clips_json  TEXT,
    created_at  TEXT NOT NULL,
    updated_at  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
`

// SQLiteStore persists snapshots so status survives restarts and is shared
// between the API process and queue workers.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

func OpenSQLite(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create status db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &SQLiteStore{db: db, path: path}, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) Save(ctx context.Context, snap Snapshot) error {
	var clips any
	if snap.Clips != nil {
		b, err := json.Marshal(snap.Clips)
		if err != nil {
			return fmt.Errorf("marshal clips: %w", err)
		}
		clips = string(b)
	}
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `
INSERT INTO runs (id, state, phase, progress, message, error_kind, input, out_dir, clips_json, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    state = excluded.state,
    phase = excluded.phase,
    progress = excluded.progress,
    message = excluded.message,
    error_kind = excluded.error_kind,
    out_dir = excluded.out_dir,
    clips_json = excluded.clips_json,
    updated_at = excluded.updated_at`,
			snap.ID,
			string(snap.State),
			nullableString(snap.Phase),
			snap.Progress,
			nullableString(snap.Message),
			nullableString(snap.ErrorKind),
			snap.Input,
			nullableString(snap.OutDir),
			clips,
			snap.CreatedAt.UTC().Format(timeLayout),
			snap.UpdatedAt.UTC().Format(timeLayout),
		)
		return err
	})
}

const runColumns = `id, state, phase, progress, message, error_kind, input, out_dir, clips_json, created_at, updated_at`

func (s *SQLiteStore) Get(ctx context.Context, id string) (Snapshot, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	snap, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, ErrNotFound
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("get run: %w", err)
	}
	return snap, nil
}

func (s *SQLiteStore) List(ctx context.Context, limit int) ([]Snapshot, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY created_at DESC, id ASC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		snap, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Snapshot, error) {
	var (
		snap                                     Snapshot
		state                                    string
		phase, message, errKind, outDir, clipsJS sql.NullString
		created, updated                         string
	)
	if err := sc.Scan(&snap.ID, &state, &phase, &snap.Progress, &message, &errKind, &snap.Input, &outDir, &clipsJS, &created, &updated); err != nil {
		return Snapshot{}, err
	}
	snap.State = State(state)
	snap.Phase = phase.String
	snap.Message = message.String
	snap.ErrorKind = errKind.String
	snap.OutDir = outDir.String
	if clipsJS.Valid && clipsJS.String != "" {
		var clips []types.ManifestClip
		if err := json.Unmarshal([]byte(clipsJS.String), &clips); err != nil {
			return Snapshot{}, fmt.Errorf("decode clips: %w", err)
		}
		snap.Clips = clips
	}
	snap.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	snap.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
	return snap, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code()&0xff == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}
