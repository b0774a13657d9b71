// Package practice orchestrates the scoring pipeline for one recording
// attempt: transcribe the clip, score it against the expected phrase, fold
// the result into the user's progress, and evaluate badge criteria.
//
// Data flows one way: audio → transcript → score and tips → updated
// statistics → badge grants → response payload. The transcription call is
// the only stage that can fail the request; everything after it is
// best-effort bookkeeping, because the user-visible scoring feedback takes
// priority over aggregate consistency.
package practice

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zzatang/tongue-twisters-challenge/internal/badges"
	"github.com/zzatang/tongue-twisters-challenge/internal/observe"
	"github.com/zzatang/tongue-twisters-challenge/internal/progress"
	"github.com/zzatang/tongue-twisters-challenge/internal/scoring"
	"github.com/zzatang/tongue-twisters-challenge/internal/store"
	"github.com/zzatang/tongue-twisters-challenge/pkg/provider/stt"
)

// PhraseStore looks up practice targets.
type PhraseStore interface {
	GetPhrase(ctx context.Context, id string) (*store.Phrase, error)
}

// ProgressStore applies an atomic mutation to a user's progress row.
type ProgressStore interface {
	UpdateProgress(ctx context.Context, userID string, apply func(*progress.Progress)) (*progress.Progress, error)
}

// SessionStore logs scored attempts.
type SessionStore interface {
	InsertSession(ctx context.Context, sess *store.Session) error
}

// BadgeEngine evaluates badge criteria against updated statistics.
type BadgeEngine interface {
	CheckAndAward(ctx context.Context, userID string, snap badges.Snapshot) ([]badges.Badge, error)
}

// Config holds the audio and recognition settings the pipeline passes to the
// STT provider.
type Config struct {
	// ProviderName labels the STT backend in logs and metrics.
	ProviderName string

	// Language is the BCP-47 recognition language. Default "en-US".
	Language string

	// Encoding is the audio container/codec clients record in.
	// Default "webm-opus".
	Encoding string

	// SampleRate in Hz. Default 48000 (browser Opus capture).
	SampleRate int

	// TranscribeTimeout bounds the STT call. Default 30s.
	TranscribeTimeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.Language == "" {
		c.Language = "en-US"
	}
	if c.Encoding == "" {
		c.Encoding = "webm-opus"
	}
	if c.SampleRate <= 0 {
		c.SampleRate = 48000
	}
	if c.TranscribeTimeout <= 0 {
		c.TranscribeTimeout = 30 * time.Second
	}
}

// Service runs the analysis pipeline.
type Service struct {
	cfg      Config
	provider stt.Provider
	scorer   *scoring.Scorer
	phrases  PhraseStore
	progress ProgressStore
	sessions SessionStore
	engine   BadgeEngine
	metrics  *observe.Metrics
	logger   *slog.Logger
	clock    func() time.Time
}

// NewService wires the pipeline. sessions and engine may be nil, which
// disables session logging and badge evaluation respectively (useful in
// tests); the other dependencies are required.
func NewService(cfg Config, provider stt.Provider, phrases PhraseStore, prog ProgressStore,
	sessions SessionStore, engine BadgeEngine, metrics *observe.Metrics, logger *slog.Logger) *Service {
	cfg.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	return &Service{
		cfg:      cfg,
		provider: provider,
		scorer:   scoring.New(),
		phrases:  phrases,
		progress: prog,
		sessions: sessions,
		engine:   engine,
		metrics:  metrics,
		logger:   logger,
		clock:    time.Now,
	}
}

// AnalyzeRequest is one recording attempt submitted for scoring.
type AnalyzeRequest struct {
	// AudioData is the base64-encoded recording. Required.
	AudioData string `json:"audioData"`

	// PhraseID identifies the practiced tongue twister. Required.
	PhraseID string `json:"phraseId"`

	// DurationSeconds is the client-measured recording length. Optional.
	DurationSeconds int `json:"duration,omitempty"`
}

// WordTiming is the per-word detail in the response, with offsets in seconds.
type WordTiming struct {
	Word       string  `json:"word"`
	StartTime  float64 `json:"startTime"`
	EndTime    float64 `json:"endTime"`
	Confidence float64 `json:"confidence"`
}

// AnalysisResult is the scoring outcome returned to the client.
type AnalysisResult struct {
	Text          string       `json:"text"`
	Confidence    float64      `json:"confidence"`
	Score         int          `json:"score"`
	Feedback      []string     `json:"feedback"`
	Mispronounced []string     `json:"mispronouncedWords"`
	WordTimings   []WordTiming `json:"wordTimings,omitempty"`
}

// AnalyzeResponse is the full response payload. NoSpeech distinguishes a
// valid-but-silent attempt from a genuine low score so the client can render
// guidance instead of a score.
type AnalyzeResponse struct {
	Success   bool            `json:"success"`
	Result    *AnalysisResult `json:"result,omitempty"`
	NewBadges []badges.Badge  `json:"newBadges,omitempty"`
	NoSpeech  bool            `json:"noSpeech,omitempty"`
}

// Analyze runs the full pipeline for one attempt by userID.
//
// Validation and phrase lookup happen before any external call. A clip with
// no recognisable speech returns a success-shaped zero-score response and
// writes nothing. Progress, session log, and badge bookkeeping failures are
// logged and do not fail the request.
func (s *Service) Analyze(ctx context.Context, userID string, req AnalyzeRequest) (*AnalyzeResponse, error) {
	start := s.clock()
	defer func() {
		s.metrics.AnalyzeDuration.Record(ctx, time.Since(start).Seconds())
	}()

	if req.AudioData == "" {
		return nil, ErrMissingAudio
	}
	if req.PhraseID == "" {
		return nil, ErrMissingPhrase
	}

	phrase, err := s.phrases.GetPhrase(ctx, req.PhraseID)
	if err != nil {
		return nil, fmt.Errorf("practice: load phrase: %w", err)
	}
	if phrase == nil {
		return nil, ErrPhraseNotFound
	}

	audio, err := base64.StdEncoding.DecodeString(req.AudioData)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAudio, err)
	}

	res, err := s.transcribe(ctx, audio)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTranscription, err)
	}

	scored, err := s.scorer.Score(res, phrase.Text)
	if err != nil {
		return nil, fmt.Errorf("practice: score: %w", err)
	}

	resp := &AnalyzeResponse{
		Success: true,
		Result: &AnalysisResult{
			Text:          res.Text,
			Confidence:    res.Confidence,
			Score:         scored.Clarity,
			Feedback:      scored.Tips,
			Mispronounced: scored.Mispronounced,
			WordTimings:   wordTimings(res.Words),
		},
		NoSpeech: scored.NoSpeech,
	}

	// Silence records nothing: no progress, no session, no badges.
	if scored.NoSpeech {
		s.metrics.NoSpeechResults.Add(ctx, 1)
		return resp, nil
	}

	durationSec := req.DurationSeconds
	if durationSec <= 0 && res.Duration > 0 {
		durationSec = int(math.Floor(res.Duration.Seconds() + 0.5))
	}
	durationMin := int(math.Floor(float64(durationSec)/60 + 0.5))

	now := s.clock()
	updated, err := s.progress.UpdateProgress(ctx, userID, func(p *progress.Progress) {
		p.ApplySession(now, durationMin, scored.Clarity)
	})
	if err != nil {
		// Best-effort policy: the user still gets their score.
		s.logger.Warn("progress update failed",
			"user_id", userID, "phrase_id", req.PhraseID, "error", err)
	}

	s.metrics.RecordSessionScored(ctx, phrase.Difficulty, scored.Clarity)

	var g errgroup.Group

	if s.sessions != nil {
		g.Go(func() error {
			sess := &store.Session{
				UserID:          userID,
				PhraseID:        req.PhraseID,
				ClarityScore:    scored.Clarity,
				DurationSeconds: durationSec,
			}
			if err := s.sessions.InsertSession(ctx, sess); err != nil {
				s.logger.Warn("session log failed",
					"user_id", userID, "phrase_id", req.PhraseID, "error", err)
			}
			return nil
		})
	}

	if s.engine != nil && updated != nil {
		g.Go(func() error {
			snap := badges.Snapshot{
				PracticeStreak:    updated.PracticeStreak,
				ClarityScore:      updated.ClarityScore,
				TotalSessions:     updated.TotalSessions,
				TotalPracticeTime: updated.TotalPracticeTime,
				SessionClarity:    scored.Clarity,
				SessionDuration:   durationSec,
			}
			newBadges, err := s.engine.CheckAndAward(ctx, userID, snap)
			if err != nil {
				s.logger.Warn("badge evaluation failed",
					"user_id", userID, "error", err)
				return nil
			}
			for _, b := range newBadges {
				s.metrics.RecordBadgeAwarded(ctx, string(b.CriteriaType))
			}
			resp.NewBadges = newBadges
			return nil
		})
	}

	g.Wait()

	return resp, nil
}

// transcribe runs the STT call under the configured timeout and records
// provider metrics.
func (s *Service) transcribe(ctx context.Context, audio []byte) (stt.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.TranscribeTimeout)
	defer cancel()

	cfg := stt.RecognizeConfig{
		Encoding:    s.cfg.Encoding,
		SampleRate:  s.cfg.SampleRate,
		Channels:    1,
		Language:    s.cfg.Language,
		WordTimings: true,
	}

	start := time.Now()
	res, err := s.provider.Recognize(ctx, audio, cfg)
	s.metrics.STTDuration.Record(ctx, time.Since(start).Seconds())

	if err != nil {
		s.metrics.RecordProviderRequest(ctx, s.cfg.ProviderName, "error")
		s.metrics.RecordProviderError(ctx, s.cfg.ProviderName)
		return stt.Result{}, err
	}
	s.metrics.RecordProviderRequest(ctx, s.cfg.ProviderName, "ok")
	return res, nil
}

func wordTimings(words []stt.WordTiming) []WordTiming {
	if len(words) == 0 {
		return nil
	}
	out := make([]WordTiming, 0, len(words))
	for _, w := range words {
		out = append(out, WordTiming{
			Word:       w.Word,
			StartTime:  w.Start.Seconds(),
			EndTime:    w.End.Seconds(),
			Confidence: w.Confidence,
		})
	}
	return out
}
