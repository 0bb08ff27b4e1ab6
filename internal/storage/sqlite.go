//go:build sqlite

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"peira/internal/model"

	_ "modernc.org/sqlite"
)

type SQLiteStore struct {
	path string

	mu sync.RWMutex
	db *sql.DB
}

func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
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

	if err := createTables(ctx, db); err != nil {
		_ = db.Close()
		return err
	}

	s.db = db
	return nil
}

func (s *SQLiteStore) SaveSession(ctx context.Context, session model.SessionRecord) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	payload, err := EncodeSession(session)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO sessions (id, started_at_utc, schema_version, codec_version, payload)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			started_at_utc = excluded.started_at_utc,
			schema_version = excluded.schema_version,
			codec_version = excluded.codec_version,
			payload = excluded.payload
	`, session.ID, session.StartedAtUTC, session.SchemaVersion, session.CodecVersion, payload)
	return err
}

func (s *SQLiteStore) GetSession(ctx context.Context, id string) (model.SessionRecord, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return model.SessionRecord{}, false, err
	}

	var payload []byte
	err = db.QueryRowContext(ctx, `SELECT payload FROM sessions WHERE id = ?`, id).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.SessionRecord{}, false, nil
		}
		return model.SessionRecord{}, false, err
	}

	session, err := DecodeSession(payload)
	if err != nil {
		return model.SessionRecord{}, false, fmt.Errorf("decode session %s: %w", id, err)
	}
	return session, true, nil
}

func (s *SQLiteStore) ListSessions(ctx context.Context) ([]model.SessionRecord, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `SELECT payload FROM sessions ORDER BY started_at_utc DESC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := make([]model.SessionRecord, 0)
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		session, err := DecodeSession(payload)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

func (s *SQLiteStore) SaveTrial(ctx context.Context, trial model.TrialRecord) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	payload, err := EncodeTrials([]model.TrialRecord{trial})
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO trials (session_id, idx, payload)
		VALUES (?, ?, ?)
		ON CONFLICT(session_id, idx) DO UPDATE SET
			payload = excluded.payload
	`, trial.SessionID, trial.Index, payload)
	return err
}

func (s *SQLiteStore) GetTrials(ctx context.Context, sessionID string) ([]model.TrialRecord, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, false, err
	}

	rows, err := db.QueryContext(ctx, `SELECT payload FROM trials WHERE session_id = ? ORDER BY idx ASC`, sessionID)
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()

	trials := make([]model.TrialRecord, 0)
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, false, err
		}
		decoded, err := DecodeTrials(payload)
		if err != nil {
			return nil, false, fmt.Errorf("decode trials %s: %w", sessionID, err)
		}
		trials = append(trials, decoded...)
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}
	if len(trials) == 0 {
		return nil, false, nil
	}
	return trials, true, nil
}

func (s *SQLiteStore) SaveResponse(ctx context.Context, response model.ResponseRecord) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	payload, err := EncodeResponses([]model.ResponseRecord{response})
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO responses (session_id, trial, payload)
		VALUES (?, ?, ?)
		ON CONFLICT(session_id, trial) DO UPDATE SET
			payload = excluded.payload
	`, response.SessionID, response.Trial, payload)
	return err
}

func (s *SQLiteStore) GetResponses(ctx context.Context, sessionID string) ([]model.ResponseRecord, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, false, err
	}

	rows, err := db.QueryContext(ctx, `SELECT payload FROM responses WHERE session_id = ? ORDER BY trial ASC`, sessionID)
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()

	responses := make([]model.ResponseRecord, 0)
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, false, err
		}
		decoded, err := DecodeResponses(payload)
		if err != nil {
			return nil, false, fmt.Errorf("decode responses %s: %w", sessionID, err)
		}
		responses = append(responses, decoded...)
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}
	if len(responses) == 0 {
		return nil, false, nil
	}
	return responses, true, nil
}

func (s *SQLiteStore) SaveJitterPlan(ctx context.Context, plan model.JitterPlanRecord) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	payload, err := EncodeJitterPlan(plan)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO jitter_plans (id, payload)
		VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET
			payload = excluded.payload
	`, plan.ID, payload)
	return err
}

func (s *SQLiteStore) GetJitterPlan(ctx context.Context, id string) (model.JitterPlanRecord, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return model.JitterPlanRecord{}, false, err
	}

	var payload []byte
	err = db.QueryRowContext(ctx, `SELECT payload FROM jitter_plans WHERE id = ?`, id).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.JitterPlanRecord{}, false, nil
		}
		return model.JitterPlanRecord{}, false, err
	}

	plan, err := DecodeJitterPlan(payload)
	if err != nil {
		return model.JitterPlanRecord{}, false, fmt.Errorf("decode jitter plan %s: %w", id, err)
	}
	return plan, true, nil
}

func (s *SQLiteStore) SaveRunSummary(ctx context.Context, summary model.RunSummary) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	payload, err := EncodeRunSummary(summary)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO run_summaries (session_id, payload)
		VALUES (?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			payload = excluded.payload
	`, summary.SessionID, payload)
	return err
}

func (s *SQLiteStore) GetRunSummary(ctx context.Context, sessionID string) (model.RunSummary, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return model.RunSummary{}, false, err
	}

	var payload []byte
	err = db.QueryRowContext(ctx, `SELECT payload FROM run_summaries WHERE session_id = ?`, sessionID).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.RunSummary{}, false, nil
		}
		return model.RunSummary{}, false, err
	}

	summary, err := DecodeRunSummary(payload)
	if err != nil {
		return model.RunSummary{}, false, fmt.Errorf("decode run summary %s: %w", sessionID, err)
	}
	return summary, true, nil
}

func (s *SQLiteStore) Reset(ctx context.Context) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
		DELETE FROM sessions;
		DELETE FROM trials;
		DELETE FROM responses;
		DELETE FROM jitter_plans;
		DELETE FROM run_summaries;
	`)
	return err
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

func (s *SQLiteStore) getDB() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, errors.New("store is not initialized")
	}
	return s.db, nil
}

func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			started_at_utc TEXT NOT NULL,
			schema_version INTEGER NOT NULL,
			codec_version INTEGER NOT NULL,
			payload BLOB NOT NULL
		);
		CREATE TABLE IF NOT EXISTS trials (
			session_id TEXT NOT NULL,
			idx INTEGER NOT NULL,
			payload BLOB NOT NULL,
			PRIMARY KEY (session_id, idx)
		);
		CREATE TABLE IF NOT EXISTS responses (
			session_id TEXT NOT NULL,
			trial INTEGER NOT NULL,
			payload BLOB NOT NULL,
			PRIMARY KEY (session_id, trial)
		);
		CREATE TABLE IF NOT EXISTS jitter_plans (
			id TEXT PRIMARY KEY,
			payload BLOB NOT NULL
		);
		CREATE TABLE IF NOT EXISTS run_summaries (
			session_id TEXT PRIMARY KEY,
			payload BLOB NOT NULL
		);
	`)
	return err
}
