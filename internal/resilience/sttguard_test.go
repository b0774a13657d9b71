package resilience

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/zzatang/tongue-twisters-challenge/pkg/provider/stt"
	sttmock "github.com/zzatang/tongue-twisters-challenge/pkg/provider/stt/mock"
)

func TestGuardedSTT_PrimaryHealthy(t *testing.T) {
	t.Parallel()

	primary := sttmock.New(stt.Result{Text: "she sells seashells", Confidence: 0.9})
	g := NewGuardedSTT(primary, "primary", CircuitBreakerConfig{})

	res, err := g.Recognize(context.Background(), []byte("audio"), stt.RecognizeConfig{})
	if err != nil {
		t.Fatalf("Recognize() unexpected error: %v", err)
	}
	if res.Text != "she sells seashells" {
		t.Errorf("Text = %q", res.Text)
	}
}

func TestGuardedSTT_FailsOverToFallback(t *testing.T) {
	t.Parallel()

	primary := sttmock.NewError(errors.New("deepgram down"))
	fallback := sttmock.New(stt.Result{Text: "peter piper", Confidence: 0.8})

	g := NewGuardedSTT(primary, "primary", CircuitBreakerConfig{MaxFailures: 1})
	g.AddFallback("fallback", fallback)

	res, err := g.Recognize(context.Background(), []byte("audio"), stt.RecognizeConfig{})
	if err != nil {
		t.Fatalf("Recognize() unexpected error: %v", err)
	}
	if res.Text != "peter piper" {
		t.Errorf("Text = %q, want fallback result", res.Text)
	}
}

func TestGuardedSTT_AllBackendsFail(t *testing.T) {
	t.Parallel()

	g := NewGuardedSTT(sttmock.NewError(errors.New("a down")), "a", CircuitBreakerConfig{})
	g.AddFallback("b", sttmock.NewError(errors.New("b down")))

	_, err := g.Recognize(context.Background(), []byte("audio"), stt.RecognizeConfig{})
	if err == nil {
		t.Fatal("Recognize() expected error when all backends fail")
	}
	if !strings.Contains(err.Error(), "a down") || !strings.Contains(err.Error(), "b down") {
		t.Errorf("error = %q, want both backend errors joined", err.Error())
	}
}

func TestGuardedSTT_OpenBreakerSkipsPrimary(t *testing.T) {
	t.Parallel()

	primary := sttmock.NewError(errors.New("primary down"))
	fallback := sttmock.New(stt.Result{Text: "ok"})

	g := NewGuardedSTT(primary, "primary", CircuitBreakerConfig{
		MaxFailures:  1,
		ResetTimeout: time.Hour,
	})
	g.AddFallback("fallback", fallback)

	// First call trips the primary's breaker, second is served by fallback
	// without touching the primary again.
	g.Recognize(context.Background(), []byte("x"), stt.RecognizeConfig{})
	callsBefore := len(primary.Calls())

	res, err := g.Recognize(context.Background(), []byte("y"), stt.RecognizeConfig{})
	if err != nil {
		t.Fatalf("Recognize() unexpected error: %v", err)
	}
	if res.Text != "ok" {
		t.Errorf("Text = %q, want fallback result", res.Text)
	}
	if got := len(primary.Calls()); got != callsBefore {
		t.Errorf("primary calls = %d, want %d (breaker should short-circuit)", got, callsBefore)
	}
}
