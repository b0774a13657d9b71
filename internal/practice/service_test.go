package practice

import (
	"context"
	"encoding/base64"
	"errors"
	"sync"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/zzatang/tongue-twisters-challenge/internal/badges"
	"github.com/zzatang/tongue-twisters-challenge/internal/observe"
	"github.com/zzatang/tongue-twisters-challenge/internal/progress"
	"github.com/zzatang/tongue-twisters-challenge/internal/store"
	"github.com/zzatang/tongue-twisters-challenge/pkg/provider/stt"
	sttmock "github.com/zzatang/tongue-twisters-challenge/pkg/provider/stt/mock"
)

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

type fakePhrases struct {
	phrases map[string]*store.Phrase
	err     error
}

func (f *fakePhrases) GetPhrase(_ context.Context, id string) (*store.Phrase, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.phrases[id], nil
}

type fakeProgress struct {
	mu    sync.Mutex
	rows  map[string]*progress.Progress
	err   error
	calls int
}

func (f *fakeProgress) UpdateProgress(_ context.Context, userID string, apply func(*progress.Progress)) (*progress.Progress, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.rows == nil {
		f.rows = make(map[string]*progress.Progress)
	}
	p, ok := f.rows[userID]
	if !ok {
		p = progress.New(userID)
		f.rows[userID] = p
	}
	apply(p)
	cp := *p
	return &cp, nil
}

type fakeSessions struct {
	mu       sync.Mutex
	inserted []*store.Session
	err      error
}

func (f *fakeSessions) InsertSession(_ context.Context, sess *store.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.inserted = append(f.inserted, sess)
	return nil
}

type fakeEngine struct {
	mu    sync.Mutex
	award []badges.Badge
	snaps []badges.Snapshot
	err   error
}

func (f *fakeEngine) CheckAndAward(_ context.Context, _ string, snap badges.Snapshot) ([]badges.Badge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snaps = append(f.snaps, snap)
	return f.award, f.err
}

func testMetrics(t *testing.T) *observe.Metrics {
	t.Helper()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewManualReader()))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m
}

func newTestService(t *testing.T, provider stt.Provider, phrases *fakePhrases,
	prog *fakeProgress, sessions *fakeSessions, engine *fakeEngine) *Service {
	t.Helper()
	var sess SessionStore
	if sessions != nil {
		sess = sessions
	}
	var eng BadgeEngine
	if engine != nil {
		eng = engine
	}
	return NewService(Config{ProviderName: "mock"}, provider, phrases, prog, sess, eng, testMetrics(t), nil)
}

func audioB64() string {
	return base64.StdEncoding.EncodeToString([]byte("opus-frames"))
}

func phraseCatalog() *fakePhrases {
	return &fakePhrases{phrases: map[string]*store.Phrase{
		"p1": {ID: "p1", Text: "She sells seashells", Difficulty: store.DifficultyEasy},
	}}
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestAnalyze_Validation(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, sttmock.New(), phraseCatalog(), &fakeProgress{}, nil, nil)

	if _, err := svc.Analyze(context.Background(), "u1", AnalyzeRequest{PhraseID: "p1"}); !errors.Is(err, ErrMissingAudio) {
		t.Errorf("missing audio: err = %v, want ErrMissingAudio", err)
	}
	if _, err := svc.Analyze(context.Background(), "u1", AnalyzeRequest{AudioData: audioB64()}); !errors.Is(err, ErrMissingPhrase) {
		t.Errorf("missing phrase: err = %v, want ErrMissingPhrase", err)
	}
	if _, err := svc.Analyze(context.Background(), "u1", AnalyzeRequest{AudioData: "!!!not-base64", PhraseID: "p1"}); !errors.Is(err, ErrInvalidAudio) {
		t.Errorf("bad base64: err = %v, want ErrInvalidAudio", err)
	}
}

func TestAnalyze_PhraseNotFound(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, sttmock.New(), phraseCatalog(), &fakeProgress{}, nil, nil)
	_, err := svc.Analyze(context.Background(), "u1", AnalyzeRequest{AudioData: audioB64(), PhraseID: "nope"})
	if !errors.Is(err, ErrPhraseNotFound) {
		t.Errorf("err = %v, want ErrPhraseNotFound", err)
	}
}

func TestAnalyze_TranscriptionFailure(t *testing.T) {
	t.Parallel()

	prog := &fakeProgress{}
	svc := newTestService(t, sttmock.NewError(errors.New("service unreachable")), phraseCatalog(), prog, nil, nil)

	_, err := svc.Analyze(context.Background(), "u1", AnalyzeRequest{AudioData: audioB64(), PhraseID: "p1"})
	if !errors.Is(err, ErrTranscription) {
		t.Fatalf("err = %v, want ErrTranscription", err)
	}
	if prog.calls != 0 {
		t.Errorf("progress touched %d times on transcription failure, want 0", prog.calls)
	}
}

func TestAnalyze_Success(t *testing.T) {
	t.Parallel()

	provider := sttmock.New(stt.Result{
		Text:       "She sells seashells",
		Confidence: 0.9,
		Duration:   3 * time.Second,
		Words: []stt.WordTiming{
			{Word: "she", Start: 100 * time.Millisecond, End: 400 * time.Millisecond, Confidence: 0.95},
			{Word: "sells", Start: 500 * time.Millisecond, End: 900 * time.Millisecond, Confidence: 0.91},
			{Word: "seashells", Start: time.Second, End: 1800 * time.Millisecond, Confidence: 0.89},
		},
	})
	prog := &fakeProgress{}
	sessions := &fakeSessions{}
	engine := &fakeEngine{award: []badges.Badge{{ID: "b1", Name: "First Steps", CriteriaType: badges.CriteriaSessions, CriteriaValue: 1}}}

	svc := newTestService(t, provider, phraseCatalog(), prog, sessions, engine)

	resp, err := svc.Analyze(context.Background(), "u1", AnalyzeRequest{
		AudioData: audioB64(), PhraseID: "p1", DurationSeconds: 90,
	})
	if err != nil {
		t.Fatalf("Analyze() unexpected error: %v", err)
	}
	if !resp.Success {
		t.Error("Success = false")
	}
	if resp.Result.Score != 97 {
		t.Errorf("Score = %d, want 97", resp.Result.Score)
	}
	if len(resp.Result.WordTimings) != 3 {
		t.Errorf("WordTimings = %v, want 3 entries", resp.Result.WordTimings)
	}
	if resp.Result.WordTimings[0].StartTime != 0.1 {
		t.Errorf("WordTimings[0].StartTime = %v, want 0.1", resp.Result.WordTimings[0].StartTime)
	}
	if len(resp.NewBadges) != 1 || resp.NewBadges[0].ID != "b1" {
		t.Errorf("NewBadges = %v, want [b1]", resp.NewBadges)
	}

	// 90 s rounds to 2 minutes.
	p := prog.rows["u1"]
	if p.TotalSessions != 1 || p.TotalPracticeTime != 2 {
		t.Errorf("progress = %+v, want 1 session / 2 minutes", p)
	}

	if len(sessions.inserted) != 1 {
		t.Fatalf("sessions logged = %d, want 1", len(sessions.inserted))
	}
	if sessions.inserted[0].ClarityScore != 97 || sessions.inserted[0].DurationSeconds != 90 {
		t.Errorf("session = %+v", sessions.inserted[0])
	}

	if len(engine.snaps) != 1 {
		t.Fatalf("badge snapshots = %d, want 1", len(engine.snaps))
	}
	snap := engine.snaps[0]
	if snap.SessionClarity != 97 || snap.SessionDuration != 90 || snap.TotalSessions != 1 {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestAnalyze_NoSpeechWritesNothing(t *testing.T) {
	t.Parallel()

	prog := &fakeProgress{}
	sessions := &fakeSessions{}
	engine := &fakeEngine{}

	svc := newTestService(t, sttmock.New(stt.Result{}), phraseCatalog(), prog, sessions, engine)

	resp, err := svc.Analyze(context.Background(), "u1", AnalyzeRequest{AudioData: audioB64(), PhraseID: "p1"})
	if err != nil {
		t.Fatalf("Analyze() unexpected error: %v", err)
	}
	if !resp.Success || !resp.NoSpeech {
		t.Errorf("resp = %+v, want success-shaped no-speech", resp)
	}
	if resp.Result.Score != 0 {
		t.Errorf("Score = %d, want 0", resp.Result.Score)
	}
	if len(resp.Result.Feedback) == 0 {
		t.Error("Feedback empty, want no-speech tips")
	}
	if prog.calls != 0 || len(sessions.inserted) != 0 || len(engine.snaps) != 0 {
		t.Error("no-speech attempt must not write progress, sessions, or badges")
	}
}

func TestAnalyze_ProgressFailureStillReturnsScore(t *testing.T) {
	t.Parallel()

	prog := &fakeProgress{err: errors.New("db down")}
	sessions := &fakeSessions{}
	engine := &fakeEngine{}

	svc := newTestService(t, sttmock.New(stt.Result{Text: "She sells seashells", Confidence: 0.9}),
		phraseCatalog(), prog, sessions, engine)

	resp, err := svc.Analyze(context.Background(), "u1", AnalyzeRequest{AudioData: audioB64(), PhraseID: "p1"})
	if err != nil {
		t.Fatalf("Analyze() error = %v, want nil (progress failures are best-effort)", err)
	}
	if resp.Result.Score != 97 {
		t.Errorf("Score = %d, want 97", resp.Result.Score)
	}
	// Badge evaluation needs the updated snapshot, so it is skipped.
	if len(engine.snaps) != 0 {
		t.Errorf("badge evaluation ran without updated progress")
	}
	// The session log is independent of the progress row.
	if len(sessions.inserted) != 1 {
		t.Errorf("sessions logged = %d, want 1", len(sessions.inserted))
	}
}

func TestAnalyze_DurationFallsBackToSTT(t *testing.T) {
	t.Parallel()

	provider := sttmock.New(stt.Result{Text: "She sells seashells", Confidence: 1.0, Duration: 150 * time.Second})
	prog := &fakeProgress{}
	sessions := &fakeSessions{}

	svc := newTestService(t, provider, phraseCatalog(), prog, sessions, nil)

	_, err := svc.Analyze(context.Background(), "u1", AnalyzeRequest{AudioData: audioB64(), PhraseID: "p1"})
	if err != nil {
		t.Fatalf("Analyze() unexpected error: %v", err)
	}
	if sessions.inserted[0].DurationSeconds != 150 {
		t.Errorf("session duration = %d, want 150 from STT metadata", sessions.inserted[0].DurationSeconds)
	}
	// 150 s rounds to 3 minutes.
	if got := prog.rows["u1"].TotalPracticeTime; got != 3 {
		t.Errorf("TotalPracticeTime = %d, want 3", got)
	}
}
