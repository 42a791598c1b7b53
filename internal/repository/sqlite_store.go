package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"assessd/internal/assessment"
	"assessd/internal/model"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// SQLiteStore keeps sessions and responses in a single SQLite file. It
// implements SessionRepo and ResponseRepo.
type SQLiteStore struct {
	db *sql.DB
}

var (
	_ SessionRepo  = (*SQLiteStore)(nil)
	_ ResponseRepo = (*SQLiteStore)(nil)
)

// NewSQLiteStore opens (or creates) the database at path and migrates it
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("sqlite: create data dir: %w", err)
		}
	}
	db, err := openDB("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite: pragma %q: %w", p, err)
		}
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: migration: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS sessions (
			id           TEXT PRIMARY KEY,
			instrument   TEXT NOT NULL,
			subject_ref  TEXT NOT NULL,
			status       TEXT NOT NULL,
			sequence     TEXT NOT NULL,
			result       TEXT,
			created_at   TEXT NOT NULL,
			completed_at TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_sessions_subject
			ON sessions(subject_ref, instrument, created_at DESC);

		CREATE TABLE IF NOT EXISTS responses (
			session_id  TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			phase       TEXT NOT NULL,
			block       TEXT NOT NULL,
			item_id     TEXT NOT NULL,
			trait       TEXT NOT NULL DEFAULT '',
			axis        TEXT NOT NULL DEFAULT '',
			answered_at TEXT NOT NULL,
			PRIMARY KEY (session_id, phase, block, item_id)
		);
	`
	_, err := s.db.Exec(schema)
	return err
}

// timeLayout has fixed width so stored timestamps sort as text
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(v string) (time.Time, error) {
	return time.Parse(timeLayout, v)
}

func (s *SQLiteStore) Create(ctx context.Context, session *model.Session) error {
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}
	seq, err := json.Marshal(session.Sequence)
	if err != nil {
		return err
	}
	var result, completedAt sql.NullString
	if session.Result != nil {
		data, err := json.Marshal(session.Result)
		if err != nil {
			return err
		}
		result = sql.NullString{String: string(data), Valid: true}
	}
	if session.CompletedAt != nil {
		completedAt = sql.NullString{String: formatTime(*session.CompletedAt), Valid: true}
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, instrument, subject_ref, status, sequence, result, created_at, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		session.ID, session.Instrument, session.SubjectRef, session.Status, string(seq),
		result, formatTime(session.CreatedAt), completedAt,
	)
	return err
}

const sessionColumns = `id, instrument, subject_ref, status, sequence, result, created_at, completed_at`

func scanSession(row *sql.Row) (*model.Session, error) {
	var (
		ms                  model.Session
		seq, created        string
		result, completedAt sql.NullString
	)
	err := row.Scan(&ms.ID, &ms.Instrument, &ms.SubjectRef, &ms.Status, &seq, &result, &created, &completedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if err := json.Unmarshal([]byte(seq), &ms.Sequence); err != nil {
		return nil, fmt.Errorf("decode sequence of %s: %w", ms.ID, err)
	}
	if result.Valid {
		ms.Result = &model.ScoreResult{}
		if err := json.Unmarshal([]byte(result.String), ms.Result); err != nil {
			return nil, fmt.Errorf("decode result of %s: %w", ms.ID, err)
		}
	}
	if ms.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if completedAt.Valid {
		t, err := parseTime(completedAt.String)
		if err != nil {
			return nil, err
		}
		ms.CompletedAt = &t
	}
	return &ms, nil
}

func (s *SQLiteStore) GetByID(ctx context.Context, id string) (*model.Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	return scanSession(row)
}

func (s *SQLiteStore) LatestBySubject(ctx context.Context, subjectRef string, instrument model.InstrumentType) (*model.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions
		 WHERE subject_ref = ? AND (? = '' OR instrument = ?)
		 ORDER BY created_at DESC, rowid DESC LIMIT 1`,
		subjectRef, instrument, instrument,
	)
	return scanSession(row)
}

func (s *SQLiteStore) Complete(ctx context.Context, id string, result *model.ScoreResult) (*model.ScoreResult, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET status = ?, result = ?, completed_at = ?
		 WHERE id = ? AND status = ?`,
		model.SessionCompleted, string(data), formatTime(result.ComputedAt), id, model.SessionInProgress,
	)
	if err != nil {
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 1 {
		return result, nil
	}

	existing, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, assessment.ErrSessionNotFound
	}
	return existing.Result, assessment.ErrAlreadyCompleted
}

// Upsert refuses writes to sessions that are unknown or no longer in progress
func (s *SQLiteStore) Upsert(ctx context.Context, sessionID string, r model.Response) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO responses (session_id, phase, block, item_id, trait, axis, answered_at)
		 SELECT ?, ?, ?, ?, ?, ?, ?
		 WHERE EXISTS (SELECT 1 FROM sessions WHERE id = ? AND status = ?)
		 ON CONFLICT (session_id, phase, block, item_id) DO UPDATE SET
			trait = excluded.trait,
			axis = excluded.axis,
			answered_at = excluded.answered_at`,
		sessionID, r.Phase, r.Block, r.ItemID, r.Trait, r.Axis, formatTime(r.AnsweredAt),
		sessionID, model.SessionInProgress,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return s.closedOrMissing(ctx, sessionID)
	}
	return nil
}

// Delete of an absent key is a no-op while the session is in progress
func (s *SQLiteStore) Delete(ctx context.Context, sessionID string, key model.ResponseKey) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM responses WHERE session_id = ? AND phase = ? AND block = ? AND item_id = ?
		 AND EXISTS (SELECT 1 FROM sessions WHERE id = ? AND status = ?)`,
		sessionID, key.Phase, key.Block, key.ItemID, sessionID, model.SessionInProgress,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil || n > 0 {
		return err
	}
	ms, err := s.GetByID(ctx, sessionID)
	switch {
	case err != nil:
		return err
	case ms == nil:
		return assessment.ErrSessionNotFound
	case ms.Status != model.SessionInProgress:
		return assessment.ErrSessionClosed
	}
	return nil
}

func (s *SQLiteStore) ListBySession(ctx context.Context, sessionID string) ([]model.Response, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT phase, block, item_id, trait, axis, answered_at FROM responses
		 WHERE session_id = ? ORDER BY phase, block, item_id`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Response
	for rows.Next() {
		var (
			r        model.Response
			answered string
		)
		if err := rows.Scan(&r.Phase, &r.Block, &r.ItemID, &r.Trait, &r.Axis, &answered); err != nil {
			return nil, err
		}
		if r.AnsweredAt, err = parseTime(answered); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) closedOrMissing(ctx context.Context, sessionID string) error {
	ms, err := s.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if ms == nil {
		return assessment.ErrSessionNotFound
	}
	return assessment.ErrSessionClosed
}
