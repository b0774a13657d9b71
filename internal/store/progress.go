package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/zzatang/tongue-twisters-challenge/internal/progress"
)

const progressColumns = `user_id, practice_streak, total_practice_time, total_sessions,
	clarity_score, best_clarity_score, frequency`

// GetProgress retrieves a user's progress row. It returns (nil, nil) if the
// user has never practiced.
func (s *Store) GetProgress(ctx context.Context, userID string) (*progress.Progress, error) {
	query := `SELECT ` + progressColumns + ` FROM user_progress WHERE user_id = $1`
	p, err := scanProgress(s.db.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("store: get progress %q: %w", userID, err)
	}
	return p, nil
}

// UpdateProgress applies a mutation to a user's progress row atomically.
//
// The row is loaded under a row lock inside a transaction (created lazily if
// the user has never practiced), mutated by apply, and written back with
// upsert semantics. Concurrent sessions from the same user serialise on the
// row lock, so no increment is lost. The updated state is returned.
func (s *Store) UpdateProgress(ctx context.Context, userID string, apply func(*progress.Progress)) (*progress.Progress, error) {
	if s.tx == nil {
		return nil, errors.New("store: transactions unavailable")
	}

	tx, err := s.tx.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: begin progress update: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `SELECT ` + progressColumns + ` FROM user_progress WHERE user_id = $1 FOR UPDATE`
	p, err := scanProgress(tx.QueryRow(ctx, query, userID))
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("store: load progress %q: %w", userID, err)
		}
		p = progress.New(userID)
	}

	apply(p)

	freqJSON, err := json.Marshal(p.Frequency)
	if err != nil {
		return nil, fmt.Errorf("store: marshal frequency: %w", err)
	}

	const upsert = `
		INSERT INTO user_progress (
			user_id, practice_streak, total_practice_time, total_sessions,
			clarity_score, best_clarity_score, frequency, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		ON CONFLICT (user_id) DO UPDATE SET
			practice_streak = EXCLUDED.practice_streak,
			total_practice_time = EXCLUDED.total_practice_time,
			total_sessions = EXCLUDED.total_sessions,
			clarity_score = EXCLUDED.clarity_score,
			best_clarity_score = EXCLUDED.best_clarity_score,
			frequency = EXCLUDED.frequency,
			updated_at = now()`

	if _, err := tx.Exec(ctx, upsert,
		p.UserID, p.PracticeStreak, p.TotalPracticeTime, p.TotalSessions,
		p.ClarityScore, p.BestClarityScore, freqJSON,
	); err != nil {
		return nil, fmt.Errorf("store: upsert progress %q: %w", userID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("store: commit progress update: %w", err)
	}
	return p, nil
}

// StaleProgressUserIDs returns users whose progress rows have not been
// written since updatedBefore. The maintenance job prunes their frequency
// buckets.
func (s *Store) StaleProgressUserIDs(ctx context.Context, updatedBefore time.Time) ([]string, error) {
	rows, err := s.db.Query(ctx,
		`SELECT user_id FROM user_progress WHERE updated_at < $1`, updatedBefore)
	if err != nil {
		return nil, fmt.Errorf("store: stale progress users: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("store: stale progress users scan: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: stale progress users: %w", err)
	}
	return ids, nil
}

func scanProgress(row pgx.Row) (*progress.Progress, error) {
	var p progress.Progress
	var freqJSON []byte
	if err := row.Scan(
		&p.UserID, &p.PracticeStreak, &p.TotalPracticeTime, &p.TotalSessions,
		&p.ClarityScore, &p.BestClarityScore, &freqJSON,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(freqJSON, &p.Frequency); err != nil {
		return nil, fmt.Errorf("unmarshal frequency: %w", err)
	}
	return &p, nil
}
