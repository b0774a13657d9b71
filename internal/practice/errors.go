package practice

import "errors"

// Error taxonomy for the analysis pipeline. Validation and not-found errors
// carry specific messages back to the caller; transcription failures are
// logged with full context and surfaced as a generic failure.
var (
	// ErrMissingAudio means the request carried no audio payload.
	ErrMissingAudio = errors.New("practice: audioData is required")

	// ErrInvalidAudio means the audio payload could not be decoded.
	ErrInvalidAudio = errors.New("practice: audioData is not valid base64")

	// ErrMissingPhrase means the request carried no phrase ID.
	ErrMissingPhrase = errors.New("practice: phraseId is required")

	// ErrPhraseNotFound means the referenced phrase does not exist.
	ErrPhraseNotFound = errors.New("practice: tongue twister not found")

	// ErrTranscription wraps STT provider failures. No state has been
	// written when this surfaces; the request fails cleanly.
	ErrTranscription = errors.New("practice: transcription failed")
)

// IsValidationError reports whether err is a caller-correctable input error.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrMissingAudio) ||
		errors.Is(err, ErrInvalidAudio) ||
		errors.Is(err, ErrMissingPhrase)
}
