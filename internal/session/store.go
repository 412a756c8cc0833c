package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when no live row matches the requested id.
var ErrNotFound = errors.New("session not found")

// Store is the process-wide handle to the session database. Open it
// once at startup and pass it into whatever needs it.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the session database at path and
// brings its schema up to date.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("session db path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open session db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to exec %q: %w", p, err)
		}
	}

	store := &Store{db: db}
	if err := store.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

const createSessions = `CREATE TABLE IF NOT EXISTS sessions (
	id             TEXT PRIMARY KEY,
	provider       TEXT NOT NULL,
	name           TEXT NOT NULL DEFAULT '',
	branch         TEXT NOT NULL DEFAULT '',
	agent          TEXT NOT NULL DEFAULT '',
	model          TEXT NOT NULL DEFAULT '',
	prompt         TEXT NOT NULL DEFAULT '',
	repo           TEXT NOT NULL DEFAULT '',
	created        TEXT NOT NULL,
	status         TEXT NOT NULL DEFAULT 'running',
	exit_code      INTEGER,
	interactive    INTEGER NOT NULL DEFAULT 0,
	exec_type      TEXT NOT NULL DEFAULT 'tmux',
	resumed_from   TEXT NOT NULL DEFAULT '',
	region         TEXT NOT NULL DEFAULT '',
	mount_dir      TEXT NOT NULL DEFAULT '',
	container_name TEXT NOT NULL DEFAULT '',
	volume_slug    TEXT NOT NULL DEFAULT '',
	snapshot_slug  TEXT NOT NULL DEFAULT '',
	started_at     TEXT NOT NULL DEFAULT '',
	finished_at    TEXT NOT NULL DEFAULT '',
	deleted_at     TEXT NOT NULL DEFAULT ''
);`

// Columns added after the first release. Every ALTER is attempted on
// each open; "duplicate column name" means the column is already there.
var alterSessions = []string{
	`ALTER TABLE sessions ADD COLUMN exec_type TEXT NOT NULL DEFAULT 'tmux'`,
	`ALTER TABLE sessions ADD COLUMN resumed_from TEXT NOT NULL DEFAULT ''`,
	`ALTER TABLE sessions ADD COLUMN mount_dir TEXT NOT NULL DEFAULT ''`,
}

func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createSessions); err != nil {
		return fmt.Errorf("failed to create sessions table: %w", err)
	}
	for _, stmt := range alterSessions {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			if strings.Contains(strings.ToLower(err.Error()), "duplicate column name") {
				continue
			}
			return fmt.Errorf("failed to migrate sessions table: %w", err)
		}
	}
	return nil
}

const sessionColumns = `id, provider, name, branch, agent, model, prompt, repo, created,
	status, exit_code, interactive, exec_type, resumed_from, region, mount_dir,
	container_name, volume_slug, snapshot_slug, started_at, finished_at, deleted_at`

// Upsert inserts the session or, if the id already exists, overwrites
// every column except deleted_at. A soft-delete marker set by an
// earlier remove survives any later upsert.
func (s *Store) Upsert(ctx context.Context, sess *Session) error {
	if sess.ID == "" {
		return fmt.Errorf("session id is empty")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (`+sessionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			provider = excluded.provider,
			name = excluded.name,
			branch = excluded.branch,
			agent = excluded.agent,
			model = excluded.model,
			prompt = excluded.prompt,
			repo = excluded.repo,
			created = excluded.created,
			status = excluded.status,
			exit_code = excluded.exit_code,
			interactive = excluded.interactive,
			exec_type = excluded.exec_type,
			resumed_from = excluded.resumed_from,
			region = excluded.region,
			mount_dir = excluded.mount_dir,
			container_name = excluded.container_name,
			volume_slug = excluded.volume_slug,
			snapshot_slug = excluded.snapshot_slug,
			started_at = excluded.started_at,
			finished_at = excluded.finished_at
	`,
		sess.ID,
		sess.Provider,
		sess.Name,
		sess.Branch,
		sess.Agent,
		sess.Model,
		sess.Prompt,
		sess.Repo,
		formatTime(sess.Created),
		sess.Status,
		nullableInt(sess.ExitCode),
		boolInt(sess.Interactive),
		sess.ExecType,
		sess.ResumedFrom,
		sess.Region,
		sess.MountDir,
		sess.ContainerName,
		sess.VolumeSlug,
		sess.SnapshotSlug,
		formatTime(sess.StartedAt),
		formatTime(sess.FinishedAt),
		formatTime(sess.DeletedAt),
	)
	return err
}

// Get returns the session with the given id, excluding soft-deleted
// rows. Missing rows yield ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (*Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+sessionColumns+`
		FROM sessions
		WHERE id = ? AND deleted_at = ''
	`, id)
	sess, err := scanSession(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return sess, nil
}

// Filter narrows List results. Zero fields match everything.
type Filter struct {
	Provider string
	Status   string
}

// List returns live (non-deleted) sessions matching the filter, newest
// first.
func (s *Store) List(ctx context.Context, filter Filter) ([]*Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE deleted_at = ''`
	args := []any{}
	if filter.Provider != "" {
		query += ` AND provider = ?`
		args = append(args, filter.Provider)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, filter.Status)
	}
	query += ` ORDER BY created DESC`
	return s.queryList(ctx, query, args...)
}

// ListIncludingDeleted returns every session ever recorded, deleted or
// not. Resource classification needs the deleted ones to tell "old"
// apart from "orphaned".
func (s *Store) ListIncludingDeleted(ctx context.Context) ([]*Session, error) {
	return s.queryList(ctx, `
		SELECT `+sessionColumns+`
		FROM sessions
		ORDER BY created DESC
	`)
}

func (s *Store) queryList(ctx context.Context, query string, args ...any) ([]*Session, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Session
	for rows.Next() {
		sess, err := scanSession(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// SoftDelete stamps deleted_at on the session. Rows are never
// physically removed; deleting an already-deleted session is a no-op
// that keeps the original timestamp.
func (s *Store) SoftDelete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET deleted_at = ? WHERE id = ? AND deleted_at = ''
	`, formatTime(time.Now()), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var count int
		row := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions WHERE id = ?`, id)
		if err := row.Scan(&count); err != nil {
			return err
		}
		if count == 0 {
			return ErrNotFound
		}
	}
	return nil
}

// UpdateStatus records a status transition. The first terminal
// transition stamps finished_at; moving back to running clears it.
func (s *Store) UpdateStatus(ctx context.Context, id, status string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE sessions
		SET status = ?,
			finished_at = CASE
				WHEN ? = 'running' THEN ''
				WHEN finished_at = '' THEN ?
				ELSE finished_at
			END
		WHERE id = ?
	`, status, status, formatTime(time.Now()), id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// UpdateExit marks the session exited with the engine-reported exit
// code.
func (s *Store) UpdateExit(ctx context.Context, id string, exitCode int) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE sessions
		SET status = ?,
			exit_code = ?,
			finished_at = CASE WHEN finished_at = '' THEN ? ELSE finished_at END
		WHERE id = ?
	`, StatusExited, exitCode, formatTime(time.Now()), id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// UpdateSnapshot records the snapshot handle taken on stop, making the
// session resumable from it.
func (s *Store) UpdateSnapshot(ctx context.Context, id, snapshotSlug string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET snapshot_slug = ? WHERE id = ?
	`, snapshotSlug, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanSession(scan func(dest ...any) error) (*Session, error) {
	var (
		sess        Session
		created     string
		exitCode    sql.NullInt64
		interactive int
		startedAt   string
		finishedAt  string
		deletedAt   string
	)
	err := scan(
		&sess.ID,
		&sess.Provider,
		&sess.Name,
		&sess.Branch,
		&sess.Agent,
		&sess.Model,
		&sess.Prompt,
		&sess.Repo,
		&created,
		&sess.Status,
		&exitCode,
		&interactive,
		&sess.ExecType,
		&sess.ResumedFrom,
		&sess.Region,
		&sess.MountDir,
		&sess.ContainerName,
		&sess.VolumeSlug,
		&sess.SnapshotSlug,
		&startedAt,
		&finishedAt,
		&deletedAt,
	)
	if err != nil {
		return nil, err
	}
	if exitCode.Valid {
		code := int(exitCode.Int64)
		sess.ExitCode = &code
	}
	sess.Interactive = interactive == 1
	sess.Created = parseTime(created)
	sess.StartedAt = parseTime(startedAt)
	sess.FinishedAt = parseTime(finishedAt)
	sess.DeletedAt = parseTime(deletedAt)
	return &sess, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullableInt(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}
