package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/zzatang/tongue-twisters-challenge/internal/badges"
)

const badgeColumns = `id, name, description, icon_url, criteria_type, criteria_value`

// ListBadges returns the full badge catalog ordered by name.
func (s *Store) ListBadges(ctx context.Context) ([]badges.Badge, error) {
	query := `SELECT ` + badgeColumns + ` FROM badges ORDER BY name`
	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("store: list badges: %w", err)
	}
	defer rows.Close()

	var catalog []badges.Badge
	for rows.Next() {
		var b badges.Badge
		if err := rows.Scan(&b.ID, &b.Name, &b.Description, &b.IconURL, &b.CriteriaType, &b.CriteriaValue); err != nil {
			return nil, fmt.Errorf("store: list badges scan: %w", err)
		}
		catalog = append(catalog, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list badges: %w", err)
	}
	return catalog, nil
}

// CreateBadge inserts a new catalog entry. A missing ID is filled with a
// fresh UUID.
func (s *Store) CreateBadge(ctx context.Context, b *badges.Badge) error {
	if err := b.Validate(); err != nil {
		return err
	}
	if b.ID == "" {
		b.ID = uuid.NewString()
	}

	const query = `
		INSERT INTO badges (id, name, description, icon_url, criteria_type, criteria_value)
		VALUES ($1, $2, $3, $4, $5, $6)`

	if _, err := s.db.Exec(ctx, query,
		b.ID, b.Name, b.Description, b.IconURL, b.CriteriaType, b.CriteriaValue,
	); err != nil {
		if isDuplicateKeyError(err) {
			return fmt.Errorf("store: badge with id %q already exists", b.ID)
		}
		return fmt.Errorf("store: create badge: %w", err)
	}
	return nil
}

// EarnedBadgeIDs returns the IDs of badges the user already holds.
func (s *Store) EarnedBadgeIDs(ctx context.Context, userID string) (map[string]struct{}, error) {
	rows, err := s.db.Query(ctx,
		`SELECT badge_id FROM user_badges WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("store: earned badge ids: %w", err)
	}
	defer rows.Close()

	earned := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("store: earned badge ids scan: %w", err)
		}
		earned[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: earned badge ids: %w", err)
	}
	return earned, nil
}

// EarnedBadges returns the user's badges with catalog details and award
// times, most recent first.
func (s *Store) EarnedBadges(ctx context.Context, userID string) ([]badges.Earned, error) {
	query := `
		SELECT b.id, b.name, b.description, b.icon_url, b.criteria_type, b.criteria_value, ub.awarded_at
		FROM user_badges ub
		JOIN badges b ON b.id = ub.badge_id
		WHERE ub.user_id = $1
		ORDER BY ub.awarded_at DESC`

	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("store: earned badges: %w", err)
	}
	defer rows.Close()

	var earned []badges.Earned
	for rows.Next() {
		var e badges.Earned
		if err := rows.Scan(&e.ID, &e.Name, &e.Description, &e.IconURL,
			&e.CriteriaType, &e.CriteriaValue, &e.AwardedAt); err != nil {
			return nil, fmt.Errorf("store: earned badges scan: %w", err)
		}
		earned = append(earned, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: earned badges: %w", err)
	}
	return earned, nil
}

// Award inserts a (user, badge) record. A pair that already exists, for
// example because a concurrent session awarded it first, reports
// awarded=false with a nil error.
func (s *Store) Award(ctx context.Context, userID, badgeID string) (bool, error) {
	const query = `
		INSERT INTO user_badges (user_id, badge_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id, badge_id) DO NOTHING`

	tag, err := s.db.Exec(ctx, query, userID, badgeID)
	if err != nil {
		// Belt and braces: DO NOTHING swallows the conflict, but a direct
		// unique violation can still surface from older schema variants.
		if isDuplicateKeyError(err) {
			return false, nil
		}
		return false, fmt.Errorf("store: award badge %q to %q: %w", badgeID, userID, err)
	}
	return tag.RowsAffected() > 0, nil
}

// Compile-time check that Store satisfies the badge engine's persistence
// surface.
var _ interface {
	ListBadges(ctx context.Context) ([]badges.Badge, error)
	EarnedBadgeIDs(ctx context.Context, userID string) (map[string]struct{}, error)
	Award(ctx context.Context, userID, badgeID string) (bool, error)
} = (*Store)(nil)
