package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Difficulty tiers for practice phrases.
const (
	DifficultyEasy         = "Easy"
	DifficultyIntermediate = "Intermediate"
	DifficultyAdvanced     = "Advanced"
)

// Phrase is one tongue twister from the practice catalog. Phrases are
// admin-managed and immutable from the end user's point of view.
type Phrase struct {
	ID         string    `json:"id"`
	Text       string    `json:"text"`
	Difficulty string    `json:"difficulty"`
	Category   string    `json:"category"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Validate checks a phrase for admin-facing creation or update.
func (p *Phrase) Validate() error {
	if p.Text == "" {
		return errors.New("store: phrase text must not be empty")
	}
	switch p.Difficulty {
	case DifficultyEasy, DifficultyIntermediate, DifficultyAdvanced:
	default:
		return fmt.Errorf("store: unknown difficulty %q", p.Difficulty)
	}
	return nil
}

// phraseColumns is the SELECT list shared by phrase queries.
const phraseColumns = `id, text, difficulty, category, created_at, updated_at`

// difficultyOrder sorts tiers Easy < Intermediate < Advanced, which is not
// alphabetical.
const difficultyOrder = `
	CASE difficulty
		WHEN 'Easy' THEN 1
		WHEN 'Intermediate' THEN 2
		WHEN 'Advanced' THEN 3
		ELSE 4
	END`

// ListPhrases returns the full catalog ordered by difficulty tier, then text.
func (s *Store) ListPhrases(ctx context.Context) ([]Phrase, error) {
	query := `SELECT ` + phraseColumns + ` FROM tongue_twisters ORDER BY ` + difficultyOrder + `, text`
	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("store: list phrases: %w", err)
	}
	defer rows.Close()

	var phrases []Phrase
	for rows.Next() {
		var p Phrase
		if err := rows.Scan(&p.ID, &p.Text, &p.Difficulty, &p.Category, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("store: list phrases scan: %w", err)
		}
		phrases = append(phrases, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list phrases: %w", err)
	}
	return phrases, nil
}

// GetPhrase retrieves a phrase by ID. It returns (nil, nil) if no phrase with
// the given ID exists.
func (s *Store) GetPhrase(ctx context.Context, id string) (*Phrase, error) {
	query := `SELECT ` + phraseColumns + ` FROM tongue_twisters WHERE id = $1`

	var p Phrase
	err := s.db.QueryRow(ctx, query, id).Scan(&p.ID, &p.Text, &p.Difficulty, &p.Category, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("store: get phrase %q: %w", id, err)
	}
	return &p, nil
}

// CreatePhrase inserts a new phrase. A missing ID is filled with a fresh
// UUID. Returns an error if a phrase with the same ID already exists.
func (s *Store) CreatePhrase(ctx context.Context, p *Phrase) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}

	const query = `
		INSERT INTO tongue_twisters (id, text, difficulty, category)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at`

	err := s.db.QueryRow(ctx, query, p.ID, p.Text, p.Difficulty, p.Category).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return fmt.Errorf("store: phrase with id %q already exists", p.ID)
		}
		return fmt.Errorf("store: create phrase: %w", err)
	}
	return nil
}

// UpdatePhrase replaces an existing phrase. Returns an error if the phrase is
// not found.
func (s *Store) UpdatePhrase(ctx context.Context, p *Phrase) error {
	if err := p.Validate(); err != nil {
		return err
	}

	const query = `
		UPDATE tongue_twisters SET
			text = $2, difficulty = $3, category = $4, updated_at = now()
		WHERE id = $1
		RETURNING updated_at`

	err := s.db.QueryRow(ctx, query, p.ID, p.Text, p.Difficulty, p.Category).Scan(&p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("store: phrase with id %q not found", p.ID)
		}
		return fmt.Errorf("store: update phrase: %w", err)
	}
	return nil
}

// DeletePhrase removes a phrase by ID. Deleting a non-existent phrase is not
// an error.
func (s *Store) DeletePhrase(ctx context.Context, id string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM tongue_twisters WHERE id = $1`, id); err != nil {
		return fmt.Errorf("store: delete phrase %q: %w", id, err)
	}
	return nil
}
