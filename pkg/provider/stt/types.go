package stt

import (
	"strings"
	"time"
)

// Result represents a speech-to-text result for one audio clip.
type Result struct {
	// Text is the transcribed speech content.
	Text string

	// Confidence is the overall confidence score (0.0–1.0). May be zero if
	// the provider does not report confidence.
	Confidence float64

	// Duration is the length of recognised speech, when the provider reports
	// it (Deepgram metadata, whisper segment extents). Zero otherwise.
	Duration time.Duration

	// Words contains per-word detail when available. Nil for providers that
	// don't support word-level output or when WordTimings was not requested.
	Words []WordTiming
}

// WordTiming holds per-word metadata from STT providers that support it.
type WordTiming struct {
	Word       string
	Start      time.Duration
	End        time.Duration
	Confidence float64
}

// NoSpeech reports whether the result contains no recognised speech.
// Silence and microphone failure are expected user scenarios, not errors.
func (r Result) NoSpeech() bool {
	return strings.TrimSpace(r.Text) == ""
}
