package badges

import (
	"context"
	"fmt"
	"log/slog"
)

// Store is the persistence surface the engine needs.
type Store interface {
	// ListBadges returns the full badge catalog.
	ListBadges(ctx context.Context) ([]Badge, error)

	// EarnedBadgeIDs returns the IDs of badges the user already holds.
	EarnedBadgeIDs(ctx context.Context, userID string) (map[string]struct{}, error)

	// Award inserts a (user, badge) record. Returns awarded=false with a nil
	// error when the pair already exists: a concurrent session got there
	// first, which is a no-op rather than a failure.
	Award(ctx context.Context, userID, badgeID string) (awarded bool, err error)
}

// Engine evaluates badge criteria against updated user statistics.
type Engine struct {
	store  Store
	logger *slog.Logger
}

// NewEngine returns an Engine backed by store. logger may be nil.
func NewEngine(store Store, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{store: store, logger: logger}
}

// CheckAndAward evaluates every unearned badge against snap and awards the
// ones whose criteria are now met. It returns the newly awarded badges.
//
// Individual award failures are logged and skipped so one bad insert does
// not abort the rest of the evaluation. A badge already earned, including
// one claimed by a concurrent session mid-evaluation, is never returned.
func (e *Engine) CheckAndAward(ctx context.Context, userID string, snap Snapshot) ([]Badge, error) {
	catalog, err := e.store.ListBadges(ctx)
	if err != nil {
		return nil, fmt.Errorf("badges: list catalog: %w", err)
	}
	earned, err := e.store.EarnedBadgeIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("badges: list earned: %w", err)
	}

	var awarded []Badge
	for _, b := range catalog {
		if _, has := earned[b.ID]; has {
			continue
		}
		if !snap.Qualifies(b) {
			continue
		}
		ok, err := e.store.Award(ctx, userID, b.ID)
		if err != nil {
			e.logger.Warn("badge award failed",
				"user_id", userID, "badge_id", b.ID, "error", err)
			continue
		}
		if !ok {
			continue
		}
		e.logger.Info("badge awarded",
			"user_id", userID, "badge_id", b.ID, "badge", b.Name)
		awarded = append(awarded, b)
	}
	return awarded, nil
}
