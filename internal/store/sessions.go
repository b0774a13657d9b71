package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Session is one logged practice attempt. The session log backs history and
// best-score lookups; the raw audio is never stored.
type Session struct {
	ID              string    `json:"id"`
	UserID          string    `json:"userId"`
	PhraseID        string    `json:"phraseId"`
	ClarityScore    int       `json:"clarityScore"`
	DurationSeconds int       `json:"durationSeconds"`
	CreatedAt       time.Time `json:"createdAt"`
}

// InsertSession logs a scored practice attempt. A missing ID is filled with
// a fresh UUID.
func (s *Store) InsertSession(ctx context.Context, sess *Session) error {
	if sess.ID == "" {
		sess.ID = uuid.NewString()
	}

	const query = `
		INSERT INTO practice_sessions (id, user_id, phrase_id, clarity_score, duration_seconds)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`

	err := s.db.QueryRow(ctx, query,
		sess.ID, sess.UserID, sess.PhraseID, sess.ClarityScore, sess.DurationSeconds,
	).Scan(&sess.CreatedAt)
	if err != nil {
		return fmt.Errorf("store: insert session: %w", err)
	}
	return nil
}

// RecentSessions returns the user's most recent sessions, newest first,
// capped at limit. A non-positive limit defaults to 20.
func (s *Store) RecentSessions(ctx context.Context, userID string, limit int) ([]Session, error) {
	if limit <= 0 {
		limit = 20
	}

	const query = `
		SELECT id, user_id, phrase_id, clarity_score, duration_seconds, created_at
		FROM practice_sessions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := s.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("store: recent sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var sess Session
		if err := rows.Scan(&sess.ID, &sess.UserID, &sess.PhraseID,
			&sess.ClarityScore, &sess.DurationSeconds, &sess.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: recent sessions scan: %w", err)
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: recent sessions: %w", err)
	}
	return sessions, nil
}
