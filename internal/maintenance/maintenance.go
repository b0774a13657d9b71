// Package maintenance runs the background housekeeping job that evicts
// expired frequency buckets from progress rows of users who have not
// practiced recently. Active users are pruned inline when their sessions are
// recorded; this job covers the rows nobody touches anymore.
package maintenance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/zzatang/tongue-twisters-challenge/internal/progress"
)

// retentionWindow is how far back frequency buckets are kept.
const retentionWindow = 90 * 24 * time.Hour

// ProgressStore is the storage surface the pruner needs.
type ProgressStore interface {
	// StaleProgressUserIDs lists users whose progress row has not been
	// updated since updatedBefore.
	StaleProgressUserIDs(ctx context.Context, updatedBefore time.Time) ([]string, error)

	// UpdateProgress applies an atomic mutation to one user's progress row.
	UpdateProgress(ctx context.Context, userID string, apply func(*progress.Progress)) (*progress.Progress, error)
}

// Pruner schedules and runs the daily frequency-bucket prune.
type Pruner struct {
	store     ProgressStore
	logger    *slog.Logger
	scheduler *gocron.Scheduler
	clock     func() time.Time
}

// NewPruner builds a pruner. logger may be nil.
func NewPruner(store ProgressStore, logger *slog.Logger) *Pruner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pruner{
		store:     store,
		logger:    logger,
		scheduler: gocron.NewScheduler(time.UTC),
		clock:     time.Now,
	}
}

// Start schedules the prune to run daily at the given local time ("HH:MM")
// and begins the scheduler in the background.
func (p *Pruner) Start(at string) error {
	if _, err := p.scheduler.Every(1).Day().At(at).Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if err := p.RunOnce(ctx); err != nil {
			p.logger.Error("progress prune failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("maintenance: schedule prune at %q: %w", at, err)
	}
	p.scheduler.StartAsync()
	p.logger.Info("progress prune scheduled", "at", at)
	return nil
}

// Stop halts the scheduler. Safe to call before Start.
func (p *Pruner) Stop() {
	p.scheduler.Stop()
}

// RunOnce prunes expired frequency buckets for every stale user. Per-user
// failures are logged and skipped so one bad row cannot stall the sweep.
func (p *Pruner) RunOnce(ctx context.Context) error {
	now := p.clock()
	cutoff := now.Add(-retentionWindow)

	userIDs, err := p.store.StaleProgressUserIDs(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("maintenance: list stale users: %w", err)
	}

	pruned := 0
	for _, id := range userIDs {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("maintenance: prune interrupted: %w", err)
		}
		_, err := p.store.UpdateProgress(ctx, id, func(pr *progress.Progress) {
			pr.Prune(now)
		})
		if err != nil {
			p.logger.Warn("prune skipped user", "user_id", id, "error", err)
			continue
		}
		pruned++
	}

	p.logger.Info("progress prune complete", "stale_users", len(userIDs), "pruned", pruned)
	return nil
}
