// Package sqlite persists sessions and insights in a local SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"ai-session-insights-service/internal/models"
)

// DefaultListLimit is the history page size.
const DefaultListLimit = 50

// ErrNotFound is returned when a session does not exist.
var ErrNotFound = errors.New("session not found")

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id           TEXT PRIMARY KEY,
	started_at   INTEGER NOT NULL,
	ended_at     INTEGER,
	transcript   TEXT,
	summary      TEXT,
	key_points   TEXT,
	action_items TEXT,
	end_reason   TEXT
);

CREATE TABLE IF NOT EXISTS insights (
	id              TEXT PRIMARY KEY,
	session_id      TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	sequence        INTEGER NOT NULL,
	timestamp       INTEGER NOT NULL,
	text            TEXT NOT NULL,
	sentiment       TEXT,
	sentiment_score REAL,
	advice          TEXT,
	UNIQUE(session_id, sequence)
);

CREATE INDEX IF NOT EXISTS idx_sessions_started ON sessions(started_at);
`

// Store implements the session persistence collaborator.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path and applies the schema.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// CreateSession inserts a new session and returns its id.
func (s *Store) CreateSession(ctx context.Context, startedAt time.Time) (string, error) {
	id := uuid.NewString()
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, started_at) VALUES (?, ?)`,
		id, startedAt.UnixMilli(),
	); err != nil {
		return "", fmt.Errorf("insert session: %w", err)
	}
	return id, nil
}

// AppendInsight stores one released insight.
func (s *Store) AppendInsight(ctx context.Context, in models.Insight) error {
	id := in.ID
	if id == "" {
		id = uuid.NewString()
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO insights (id, session_id, sequence, timestamp, text, sentiment, sentiment_score, advice)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, in.SessionID, in.Sequence, in.Timestamp.UnixMilli(), in.Text,
		in.Sentiment.Label, in.Sentiment.Score, in.Advice,
	); err != nil {
		return fmt.Errorf("insert insight: %w", err)
	}
	return nil
}

// CloseSession records the end of a session. Content columns are written
// only when the record carries a summary.
func (s *Store) CloseSession(ctx context.Context, rec models.SessionRecord) error {
	ended := time.Now()
	if rec.EndedAt != nil {
		ended = *rec.EndedAt
	}

	var res sql.Result
	var err error
	if rec.Summary == nil {
		res, err = s.db.ExecContext(ctx,
			`UPDATE sessions SET ended_at = ?, end_reason = ? WHERE id = ?`,
			ended.UnixMilli(), rec.EndReason, rec.ID,
		)
	} else {
		keyPoints, _ := json.Marshal(nonNil(rec.Summary.KeyPoints))
		actionItems, _ := json.Marshal(nonNil(rec.Summary.ActionItems))
		res, err = s.db.ExecContext(ctx, `
			UPDATE sessions
			SET ended_at = ?, transcript = ?, summary = ?, key_points = ?, action_items = ?, end_reason = ?
			WHERE id = ?`,
			ended.UnixMilli(), rec.Transcript, rec.Summary.Summary,
			string(keyPoints), string(actionItems), rec.EndReason, rec.ID,
		)
	}
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("close %s: %w", rec.ID, ErrNotFound)
	}
	return nil
}

const sessionColumns = `
	s.id, s.started_at, s.ended_at, s.transcript, s.summary, s.key_points, s.action_items, s.end_reason,
	(SELECT COUNT(*) FROM insights i WHERE i.session_id = s.id)`

// ListSessions returns the most recent sessions first. A limit of zero or
// less uses DefaultListLimit.
func (s *Store) ListSessions(ctx context.Context, limit int) ([]models.SessionRecord, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions s ORDER BY s.started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var out []models.SessionRecord
	for rows.Next() {
		rec, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// GetSession returns one session.
func (s *Store) GetSession(ctx context.Context, id string) (models.SessionRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions s WHERE s.id = ?`, id)
	rec, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.SessionRecord{}, ErrNotFound
	}
	return rec, err
}

// SessionInsights returns a session's insights in sequence order.
func (s *Store) SessionInsights(ctx context.Context, sessionID string) ([]models.Insight, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, sequence, timestamp, text, sentiment, sentiment_score, advice
		FROM insights
		WHERE session_id = ?
		ORDER BY sequence ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query insights: %w", err)
	}
	defer rows.Close()

	var out []models.Insight
	for rows.Next() {
		var in models.Insight
		var ts int64
		var label, advice sql.NullString
		var score sql.NullFloat64
		if err := rows.Scan(&in.ID, &in.SessionID, &in.Sequence, &ts, &in.Text, &label, &score, &advice); err != nil {
			return nil, fmt.Errorf("scan insight: %w", err)
		}
		in.Timestamp = time.UnixMilli(ts)
		in.Sentiment = models.Sentiment{Label: label.String, Score: score.Float64}
		in.Advice = advice.String
		out = append(out, in)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (models.SessionRecord, error) {
	var rec models.SessionRecord
	var started int64
	var ended sql.NullInt64
	var transcript, summary, keyPoints, actionItems, reason sql.NullString

	if err := row.Scan(&rec.ID, &started, &ended, &transcript, &summary,
		&keyPoints, &actionItems, &reason, &rec.Insights); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rec, err
		}
		return rec, fmt.Errorf("scan session: %w", err)
	}

	rec.StartedAt = time.UnixMilli(started)
	if ended.Valid {
		t := time.UnixMilli(ended.Int64)
		rec.EndedAt = &t
	}
	rec.Transcript = transcript.String
	rec.EndReason = reason.String
	if summary.Valid {
		sum := models.Summary{Summary: summary.String}
		if err := decodeList(keyPoints, &sum.KeyPoints); err != nil {
			return rec, err
		}
		if err := decodeList(actionItems, &sum.ActionItems); err != nil {
			return rec, err
		}
		rec.Summary = &sum
	}
	return rec, nil
}

func decodeList(v sql.NullString, dst *[]string) error {
	*dst = []string{}
	if !v.Valid || v.String == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(v.String), dst); err != nil {
		return fmt.Errorf("decode list: %w", err)
	}
	return nil
}

func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
