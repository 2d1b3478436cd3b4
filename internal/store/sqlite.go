package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"

	"github.com/joss/taskagent/internal/agent"
	"github.com/joss/taskagent/internal/domain"
)

// SQLite stores runs and messages in a single database file.
type SQLite struct {
	db     *sql.DB
	path   string
	closed atomic.Bool
}

var (
	_ Store          = (*SQLite)(nil)
	_ agent.Recorder = (*SQLite)(nil)
)

// Open opens or creates the database at path, creating parent dirs.
func Open(path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal=WAL&_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &SQLite{db: db, path: path}
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

//go:embed migrations/*.sql
var migrations embed.FS

func (s *SQLite) migrator() (*goose.Provider, error) {
	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return nil, err
	}
	return goose.NewProvider(goose.DialectSQLite3, s.db, fsys)
}

// migrate applies pending schema migrations
func (s *SQLite) migrate(ctx context.Context) error {
	provider, err := s.migrator()
	if err != nil {
		return fmt.Errorf("goose provider: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// Version returns the applied schema version
func (s *SQLite) Version(ctx context.Context) (int64, error) {
	provider, err := s.migrator()
	if err != nil {
		return 0, err
	}
	return provider.GetDBVersion(ctx)
}

// Path returns the database file path
func (s *SQLite) Path() string { return s.path }

func (s *SQLite) Ping(ctx context.Context) error {
	if s.closed.Load() {
		return ErrClosed
	}
	return s.db.PingContext(ctx)
}

func (s *SQLite) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}

func (s *SQLite) check(id string) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if strings.TrimSpace(id) == "" {
		return ErrInvalidID
	}
	return nil
}

// RunStarted inserts a new run row
func (s *SQLite) RunStarted(ctx context.Context, run agent.RunRecord) error {
	if err := s.check(run.ID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, prompt, model, state, message, steps, error, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.Prompt, run.Model, run.State.String(), run.Message, run.Steps, run.Error, run.StartedAt.UTC())
	return wrapConstraint(err, "run", run.ID)
}

// MessageAppended stores one transcript message in append order
func (s *SQLite) MessageAppended(ctx context.Context, msg domain.Message) error {
	if err := s.check(msg.ID); err != nil {
		return err
	}
	partsJSON, err := domain.MarshalParts(msg.Parts)
	if err != nil {
		return fmt.Errorf("marshal parts: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO messages (id, run_id, role, parts_json, timestamp)
		VALUES (?, ?, ?, ?, ?)
	`, msg.ID, msg.RunID, string(msg.Role), string(partsJSON), msg.Timestamp.UTC())
	return wrapConstraint(err, "message", msg.ID)
}

// RunFinished records the final state of a run
func (s *SQLite) RunFinished(ctx context.Context, run agent.RunRecord) error {
	if err := s.check(run.ID); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE runs SET state = ?, message = ?, steps = ?, error = ?, ended_at = ? WHERE id = ?
	`, run.State.String(), run.Message, run.Steps, run.Error, run.EndedAt.UTC(), run.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return NewNotFoundError("run", run.ID)
	}
	return nil
}

const runColumns = `id, prompt, model, state, message, steps, error, started_at, ended_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (agent.RunRecord, error) {
	var (
		rec     agent.RunRecord
		state   string
		endedAt sql.NullTime
	)
	if err := row.Scan(&rec.ID, &rec.Prompt, &rec.Model, &state, &rec.Message, &rec.Steps, &rec.Error, &rec.StartedAt, &endedAt); err != nil {
		return rec, err
	}
	if st, ok := agent.ParseState(state); ok {
		rec.State = st
	}
	if endedAt.Valid {
		rec.EndedAt = endedAt.Time
	}
	return rec, nil
}

// GetRun loads a single run by ID
func (s *SQLite) GetRun(ctx context.Context, id string) (*agent.RunRecord, error) {
	if err := s.check(id); err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	rec, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NewNotFoundError("run", id)
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// FindRun resolves a run by full ID or unique ID prefix
func (s *SQLite) FindRun(ctx context.Context, prefix string) (*agent.RunRecord, error) {
	if err := s.check(prefix); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE id = ? OR id LIKE ? ESCAPE '\' ORDER BY id LIMIT 2`,
		prefix, escapeLike(prefix)+"%")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var found []agent.RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		if rec.ID == prefix {
			return &rec, nil
		}
		found = append(found, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	switch len(found) {
	case 0:
		return nil, NewNotFoundError("run", prefix)
	case 1:
		return &found[0], nil
	default:
		return nil, fmt.Errorf("run id prefix %q is ambiguous", prefix)
	}
}

// ListRuns returns runs newest first
func (s *SQLite) ListRuns(ctx context.Context, filter Filter) ([]agent.RunRecord, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}

	query := `SELECT ` + runColumns + ` FROM runs`
	var args []any
	if filter.State != "" {
		query += ` WHERE state = ?`
		args = append(args, filter.State)
	}
	query += ` ORDER BY started_at DESC, id`
	if filter.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, filter.Limit, filter.Offset)
	} else if filter.Offset > 0 {
		query += ` LIMIT -1 OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []agent.RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, rec)
	}
	return runs, rows.Err()
}

// Messages returns a run's transcript in append order
func (s *SQLite) Messages(ctx context.Context, runID string) ([]domain.Message, error) {
	if err := s.check(runID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, role, parts_json, timestamp
		FROM messages WHERE run_id = ? ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []domain.Message
	for rows.Next() {
		var (
			msg       domain.Message
			role      string
			partsJSON string
			ts        time.Time
		)
		if err := rows.Scan(&msg.ID, &msg.RunID, &role, &partsJSON, &ts); err != nil {
			return nil, err
		}
		parts, err := domain.UnmarshalParts([]byte(partsJSON))
		if err != nil {
			return nil, fmt.Errorf("message %s: %w", msg.ID, err)
		}
		msg.Role = domain.Role(role)
		msg.Parts = parts
		msg.Timestamp = ts
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}

// DeleteRun removes a run and, through the foreign key, its messages
func (s *SQLite) DeleteRun(ctx context.Context, id string) error {
	if err := s.check(id); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return NewNotFoundError("run", id)
	}
	return nil
}

// wrapConstraint maps sqlite constraint failures to ErrAlreadyExists, or to
// ErrNotFound when the parent run is missing
func wrapConstraint(err error, entity, id string) error {
	if err == nil {
		return nil
	}
	var se sqlite3.Error
	if errors.As(err, &se) && se.Code == sqlite3.ErrConstraint {
		if se.ExtendedCode == sqlite3.ErrConstraintForeignKey {
			return fmt.Errorf("%s %s references a missing run: %w", entity, id, ErrNotFound)
		}
		return fmt.Errorf("%s %s: %w", entity, id, ErrAlreadyExists)
	}
	return err
}

func escapeLike(s string) string {
	return strings.NewReplacer(`%`, `\%`, `_`, `\_`).Replace(s)
}
