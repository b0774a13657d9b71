// Package stt defines the Provider interface for Speech-to-Text backends.
//
// An STT provider wraps a transcription service (e.g., Deepgram, or a local
// whisper.cpp server) and exposes a uniform batch interface: one finished
// audio clip in, one [Result] out. Practice recordings are short bounded
// clips, so there is no streaming session to manage — each call is a single
// request/response exchange.
//
// Implementations must be safe for concurrent use: multiple practice
// submissions may be in flight simultaneously.
package stt

import "context"

// RecognizeConfig describes the audio format and recognition hints for a
// transcription request. All fields must be compatible with what the
// underlying provider supports; see each provider's documentation.
type RecognizeConfig struct {
	// Encoding identifies the audio container/codec of the clip. Common
	// values: "webm-opus" (browser MediaRecorder output), "linear16" (raw
	// 16-bit signed little-endian PCM).
	Encoding string

	// SampleRate is the audio sample rate in Hz. Common values: 48000
	// (browser Opus capture), 16000 (STT-optimised mono).
	SampleRate int

	// Channels is the number of audio channels. 1 = mono. Zero means the
	// provider default applies.
	Channels int

	// Language is the BCP-47 language tag for recognition (e.g., "en-US").
	// An empty string uses the provider default.
	Language string

	// WordTimings requests per-word start/end offsets and confidences in the
	// result. Providers that cannot produce word detail return Words == nil.
	WordTimings bool
}

// Provider is the abstraction over any STT backend.
//
// Recognize transcribes a complete audio clip. A clip in which the provider
// detects no speech is NOT an error: implementations must return a zero
// [Result] (empty Text, zero Confidence, nil Words) with a nil error, so
// that callers can distinguish "user was silent" from "service failed".
//
// Returns an error only when the provider itself fails (unreachable,
// authentication rejected, malformed response, ctx cancelled or expired).
type Provider interface {
	Recognize(ctx context.Context, audio []byte, cfg RecognizeConfig) (Result, error)
}
