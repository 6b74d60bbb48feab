package store

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

	"github.com/google/uuid"

	_ "modernc.org/sqlite"
)

type EntryStatus string

const (
	StatusSent   EntryStatus = "sent"
	StatusOK     EntryStatus = "ok"
	StatusFailed EntryStatus = "failed"
)

var ErrEntryNotFound = errors.New("journal entry not found")

// Entry is one submitted command. Payload is kept as JSON for inspection.
type Entry struct {
	ID           string          `json:"id"`
	TournamentID int64           `json:"tournamentId"`
	Command      string          `json:"command"`
	Payload      json.RawMessage `json:"payload,omitempty"`
	Status       EntryStatus     `json:"status"`
	Error        string          `json:"error,omitempty"`
	SentAt       time.Time       `json:"sentAt"`
	FinishedAt   *time.Time      `json:"finishedAt,omitempty"`
}

// Journal is a local, append-mostly record of submissions. Nothing is read
// back into the UI from it.
type Journal struct {
	db  *sql.DB
	now func() time.Time
}

func OpenJournal(ctx context.Context, path string) (*Journal, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		p, err := DefaultJournalPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create journal dir: %w", err)
		}
	}
	// modernc.org/sqlite driver name is "sqlite".
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	if err := migrateJournal(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Journal{db: db, now: time.Now}, nil
}

func migrateJournal(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS submissions (
			id TEXT PRIMARY KEY,
			tournament_id INTEGER NOT NULL,
			command TEXT NOT NULL,
			payload_json TEXT NOT NULL,
			status TEXT NOT NULL,
			error TEXT,
			sent_at_unixms INTEGER NOT NULL,
			finished_at_unixms INTEGER
		);`,
		`CREATE INDEX IF NOT EXISTS idx_submissions_sent ON submissions(sent_at_unixms);`,
	}
	for _, st := range stmts {
		if _, err := db.ExecContext(ctx, st); err != nil {
			return err
		}
	}
	return nil
}

func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

// Begin records e as sent and returns its id.
func (j *Journal) Begin(ctx context.Context, e Entry) (string, error) {
	if strings.TrimSpace(e.Command) == "" {
		return "", errors.New("journal: empty command")
	}
	id := uuid.NewString()
	payload := "null"
	if len(e.Payload) > 0 {
		payload = string(e.Payload)
	}
	_, err := j.db.ExecContext(ctx, `INSERT INTO submissions(id, tournament_id, command, payload_json, status, sent_at_unixms)
		VALUES(?, ?, ?, ?, ?, ?)`, id, e.TournamentID, e.Command, payload, string(StatusSent), j.now().UnixMilli())
	if err != nil {
		return "", fmt.Errorf("journal begin: %w", err)
	}
	return id, nil
}

// Finish marks the entry ok, or failed with cause.
func (j *Journal) Finish(ctx context.Context, id string, cause error) error {
	status := StatusOK
	var msg sql.NullString
	if cause != nil {
		status = StatusFailed
		msg = sql.NullString{String: cause.Error(), Valid: true}
	}
	res, err := j.db.ExecContext(ctx, `UPDATE submissions SET status = ?, error = ?, finished_at_unixms = ? WHERE id = ?`,
		string(status), msg, j.now().UnixMilli(), id)
	if err != nil {
		return fmt.Errorf("journal finish: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrEntryNotFound, id)
	}
	return nil
}

// List returns the newest entries first. limit <= 0 means all.
func (j *Journal) List(ctx context.Context, limit int) ([]Entry, error) {
	q := `SELECT id, tournament_id, command, payload_json, status, error, sent_at_unixms, finished_at_unixms
		FROM submissions ORDER BY sent_at_unixms DESC, rowid DESC`
	var args []any
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := j.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e        Entry
			payload  string
			status   string
			errText  sql.NullString
			sentMS   int64
			finished sql.NullInt64
		)
		if err := rows.Scan(&e.ID, &e.TournamentID, &e.Command, &payload, &status, &errText, &sentMS, &finished); err != nil {
			return nil, err
		}
		if payload != "null" {
			e.Payload = json.RawMessage(payload)
		}
		e.Status = EntryStatus(status)
		e.Error = errText.String
		e.SentAt = time.UnixMilli(sentMS).UTC()
		if finished.Valid {
			t := time.UnixMilli(finished.Int64).UTC()
			e.FinishedAt = &t
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
