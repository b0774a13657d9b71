package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/zzatang/tongue-twisters-challenge/pkg/provider/stt"
)

// guardedEntry pairs an STT backend with its breaker.
type guardedEntry struct {
	name     string
	provider stt.Provider
	breaker  *CircuitBreaker
}

// GuardedSTT implements [stt.Provider] with per-backend circuit breakers and
// automatic failover. Transcription requests go to the primary while its
// breaker allows; on failure or an open breaker, fallbacks are tried in
// registration order.
type GuardedSTT struct {
	cfg CircuitBreakerConfig

	mu      sync.RWMutex
	entries []*guardedEntry
}

// Compile-time interface assertion.
var _ stt.Provider = (*GuardedSTT)(nil)

// NewGuardedSTT creates a [GuardedSTT] with primary as the preferred backend.
// cfg tunes the breaker attached to each backend; the Name field is replaced
// per backend.
func NewGuardedSTT(primary stt.Provider, primaryName string, cfg CircuitBreakerConfig) *GuardedSTT {
	g := &GuardedSTT{cfg: cfg}
	g.add(primaryName, primary)
	return g
}

// AddFallback registers an additional STT backend, tried after all earlier
// entries have failed.
func (g *GuardedSTT) AddFallback(name string, provider stt.Provider) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.addLocked(name, provider)
}

func (g *GuardedSTT) add(name string, provider stt.Provider) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.addLocked(name, provider)
}

func (g *GuardedSTT) addLocked(name string, provider stt.Provider) {
	cfg := g.cfg
	cfg.Name = name
	g.entries = append(g.entries, &guardedEntry{
		name:     name,
		provider: provider,
		breaker:  NewCircuitBreaker(cfg),
	})
}

// Recognize transcribes via the first healthy backend. When every backend is
// down or failing, the joined per-backend errors are returned.
func (g *GuardedSTT) Recognize(ctx context.Context, audio []byte, cfg stt.RecognizeConfig) (stt.Result, error) {
	g.mu.RLock()
	entries := make([]*guardedEntry, len(g.entries))
	copy(entries, g.entries)
	g.mu.RUnlock()

	var errs []error
	for i, e := range entries {
		var res stt.Result
		err := e.breaker.Execute(func() error {
			var rerr error
			res, rerr = e.provider.Recognize(ctx, audio, cfg)
			return rerr
		})
		if err == nil {
			return res, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", e.name, err))
		if i < len(entries)-1 {
			slog.Warn("stt backend failed, trying fallback",
				"backend", e.name, "error", err)
		}
	}

	return stt.Result{}, fmt.Errorf("resilience: all stt backends failed: %w", errors.Join(errs...))
}
