package journal

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// Outcome values stored for launches that have not finished.
const OutcomeRunning = "running"

// Launch is one row of the launch history.
type Launch struct {
	ID        string         `db:"id"`
	Root      string         `db:"root"`
	Host      string         `db:"host"`
	Port      int            `db:"port"`
	PID       int            `db:"pid"`
	Command   string         `db:"command"`
	StartedAt int64          `db:"started_at"`
	Ready     bool           `db:"ready"`
	EndedAt   sql.NullInt64  `db:"ended_at"`
	ExitCode  sql.NullInt64  `db:"exit_code"`
	Outcome   string         `db:"outcome"`
	Error     sql.NullString `db:"error"`
}

// Duration returns how long the served process ran, or zero while it is still running.
func (l Launch) Duration() time.Duration {
	if !l.EndedAt.Valid {
		return 0
	}
	return time.Duration(l.EndedAt.Int64-l.StartedAt) * time.Second
}

// Journal records launches in a SQLite database.
type Journal struct {
	db *sqlx.DB
}

// Open connects to the SQLite file at path, creating its directory and schema as needed.
func Open(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}
	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}
	j, err := New(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return j, nil
}

// New wraps an existing connection and initializes the schema.
func New(db *sqlx.DB) (*Journal, error) {
	if err := DBInit(db); err != nil {
		return nil, fmt.Errorf("initialize journal: %w", err)
	}
	return &Journal{db: db}, nil
}

// DBInit initializes the launches table.
func DBInit(db *sqlx.DB) error {
	_, err := db.Exec(`
	CREATE TABLE IF NOT EXISTS launches (
		id TEXT PRIMARY KEY,
		root TEXT NOT NULL,
		host TEXT NOT NULL,
		port INTEGER NOT NULL,
		pid INTEGER NOT NULL,
		command TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		ready BOOLEAN NOT NULL DEFAULT 0,
		ended_at INTEGER,
		exit_code INTEGER,
		outcome TEXT NOT NULL,
		error TEXT
	)
	`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_launches_started_at ON launches(started_at)`)
	return err
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// RecordStart inserts a launch whose served process has just been spawned.
func (j *Journal) RecordStart(l Launch) error {
	if l.StartedAt == 0 {
		l.StartedAt = time.Now().UTC().Unix()
	}
	if l.Outcome == "" {
		l.Outcome = OutcomeRunning
	}
	_, err := j.db.NamedExec(`
		INSERT INTO launches (id, root, host, port, pid, command, started_at, ready, outcome)
		VALUES (:id, :root, :host, :port, :pid, :command, :started_at, :ready, :outcome)`, l)
	return err
}

// RecordReady stores the readiness probe result.
func (j *Journal) RecordReady(id string, ready bool) error {
	return j.update(`UPDATE launches SET ready = $1 WHERE id = $2`, ready, id)
}

// RecordExit stores how the served process ended.
func (j *Journal) RecordExit(id string, exitCode int, outcome string, exitErr error) error {
	var errText sql.NullString
	if exitErr != nil {
		errText = sql.NullString{String: exitErr.Error(), Valid: true}
	}
	return j.update(`UPDATE launches SET ended_at = $1, exit_code = $2, outcome = $3, error = $4 WHERE id = $5`,
		time.Now().UTC().Unix(), exitCode, outcome, errText, id)
}

func (j *Journal) update(query string, args ...any) error {
	result, err := j.db.Exec(query, args...)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Get returns one launch by id.
func (j *Journal) Get(id string) (*Launch, error) {
	var l Launch
	if err := j.db.Get(&l, "SELECT * FROM launches WHERE id = $1", id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("launch %s not found: %w", id, err)
		}
		return nil, err
	}
	return &l, nil
}

// Recent returns the most recent launches, newest first.
func (j *Journal) Recent(limit int) ([]Launch, error) {
	var launches []Launch
	err := j.db.Select(&launches,
		"SELECT * FROM launches ORDER BY started_at DESC, rowid DESC LIMIT $1",
		limit)
	return launches, err
}

// DeleteOlderThan removes launches started before now minus olderThan.
func (j *Journal) DeleteOlderThan(olderThan time.Duration) (int64, error) {
	threshold := time.Now().UTC().Add(-olderThan).Unix()
	result, err := j.db.Exec("DELETE FROM launches WHERE started_at < $1", threshold)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
