package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"parkscan/internal/model"
)

// ErrSessionNotFound is returned by updates that match no row.
var ErrSessionNotFound = errors.New("session not found")

// SessionRepository implements repository.SessionRepository for SQLite.
type SessionRepository struct {
	db *DB
}

func NewSessionRepository(db *DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Insert adds a new session record.
func (r *SessionRepository) Insert(s *model.Session) error {
	r.db.Lock()
	defer r.db.Unlock()

	_, err := r.db.Conn().Exec(`
		INSERT INTO sessions (id, started_at, ended_at, outcome, dispatch_status, decode_attempts)
		VALUES (?, ?, ?, ?, ?, ?)
	`, s.ID, s.StartedAt.UTC(), nullTime(s.EndedAt), string(s.Outcome), string(s.DispatchStatus), s.DecodeAttempts)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

// Finish records how a session ended.
func (r *SessionRepository) Finish(id string, outcome model.Outcome, attempts int, endedAt time.Time) error {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(`
		UPDATE sessions SET outcome = ?, decode_attempts = ?, ended_at = ?
		WHERE id = ?
	`, string(outcome), attempts, endedAt.UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to finish session: %w", err)
	}
	return expectOneRow(result, id)
}

// SetDispatchStatus records the verification hand-off state.
func (r *SessionRepository) SetDispatchStatus(id string, status model.DispatchStatus) error {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(`UPDATE sessions SET dispatch_status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return fmt.Errorf("failed to update dispatch status: %w", err)
	}
	return expectOneRow(result, id)
}

// GetByID returns nil, nil when no session matches.
func (r *SessionRepository) GetByID(id string) (*model.Session, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	row := r.db.Conn().QueryRow(`
		SELECT id, started_at, ended_at, outcome, dispatch_status, decode_attempts
		FROM sessions WHERE id = ?
	`, id)

	s, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return s, nil
}

// GetRecent returns up to limit sessions, newest first.
func (r *SessionRepository) GetRecent(limit int) ([]model.Session, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	query := `
		SELECT id, started_at, ended_at, outcome, dispatch_status, decode_attempts
		FROM sessions ORDER BY started_at DESC, rowid DESC
	`
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []model.Session{}
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

// GetStats counts sessions per outcome and dispatch status.
func (r *SessionRepository) GetStats() (*model.SessionStats, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	stats := &model.SessionStats{
		ByOutcome:  make(map[model.Outcome]int),
		ByDispatch: make(map[model.DispatchStatus]int),
	}

	if err := r.db.Conn().QueryRow(`SELECT COUNT(*) FROM sessions`).Scan(&stats.TotalSessions); err != nil {
		return nil, fmt.Errorf("failed to count sessions: %w", err)
	}

	rows, err := r.db.Conn().Query(`SELECT outcome, COUNT(*) FROM sessions GROUP BY outcome`)
	if err != nil {
		return nil, fmt.Errorf("failed to count outcomes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var outcome string
		var count int
		if err := rows.Scan(&outcome, &count); err != nil {
			return nil, fmt.Errorf("failed to scan outcome count: %w", err)
		}
		stats.ByOutcome[model.Outcome(outcome)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to count outcomes: %w", err)
	}

	dispatchRows, err := r.db.Conn().Query(`SELECT dispatch_status, COUNT(*) FROM sessions GROUP BY dispatch_status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count dispatch statuses: %w", err)
	}
	defer dispatchRows.Close()

	for dispatchRows.Next() {
		var status string
		var count int
		if err := dispatchRows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan dispatch count: %w", err)
		}
		stats.ByDispatch[model.DispatchStatus(status)] = count
	}
	if err := dispatchRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to count dispatch statuses: %w", err)
	}

	return stats, nil
}

// DeleteBefore prunes sessions started before t and reports how many went.
func (r *SessionRepository) DeleteBefore(t time.Time) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(`DELETE FROM sessions WHERE started_at < ?`, t.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete sessions: %w", err)
	}
	return result.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSession(row rowScanner) (*model.Session, error) {
	var s model.Session
	var endedAt sql.NullTime
	var outcome, status string

	if err := row.Scan(&s.ID, &s.StartedAt, &endedAt, &outcome, &status, &s.DecodeAttempts); err != nil {
		return nil, err
	}
	if endedAt.Valid {
		t := endedAt.Time
		s.EndedAt = &t
	}
	s.Outcome = model.Outcome(outcome)
	s.DispatchStatus = model.DispatchStatus(status)
	return &s, nil
}

func nullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func expectOneRow(result sql.Result, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return nil
}
