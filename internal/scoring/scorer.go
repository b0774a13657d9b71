// Package scoring turns a speech-to-text result into a clarity score with
// actionable feedback.
//
// The score is a weighted blend of two signals: how many of the expected
// phrase's words appear in the transcript, and the recogniser's overall
// confidence. Words the user likely mispronounced are identified from
// per-word confidence when the provider reports it, and surfaced in the tips.
package scoring

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/zzatang/tongue-twisters-challenge/pkg/provider/stt"
)

const (
	// wordMatchWeight and confidenceWeight blend the two sub-scores into the
	// final clarity value. They must sum to 1.
	wordMatchWeight  = 0.7
	confidenceWeight = 0.3

	// wordConfidenceThreshold is the minimum per-word confidence for an
	// expected word to count as well pronounced.
	wordConfidenceThreshold = 0.7

	// maxTips bounds the feedback list returned to the client.
	maxTips = 3
)

// ErrEmptyPhrase is returned when the expected phrase contains no words.
var ErrEmptyPhrase = errors.New("scoring: expected phrase has no words")

// Fixed guidance shown when the clip contained no recognisable speech.
var noSpeechTips = []string{
	"No speech detected. Please speak clearly into your microphone.",
	"Make sure your microphone is working properly.",
	"Try speaking louder or closer to your microphone.",
}

// Result is the outcome of scoring one practice attempt.
type Result struct {
	// Clarity is the overall pronunciation score, an integer in [0, 100].
	Clarity int

	// Mispronounced lists expected-phrase words the user likely got wrong,
	// in phrase order, deduplicated.
	Mispronounced []string

	// Tips holds up to three feedback strings, most relevant first.
	Tips []string

	// NoSpeech is true when the transcript was empty. Clarity is 0 and Tips
	// carry the fixed no-speech guidance.
	NoSpeech bool
}

// Scorer scores transcription results against expected phrases. The zero
// value is not usable; construct with New. Safe for concurrent use.
type Scorer struct {
	ranker *attemptRanker
}

// New returns a ready-to-use Scorer.
func New() *Scorer {
	return &Scorer{ranker: newAttemptRanker()}
}

// Score compares a transcription result against the expected phrase text and
// produces a clarity score with feedback.
//
// An empty transcript is a valid attempt (silence, mic failure): it yields
// clarity 0 with the fixed no-speech tips and NoSpeech set. An expected
// phrase with no words is invalid input and returns ErrEmptyPhrase.
func (s *Scorer) Score(res stt.Result, expected string) (Result, error) {
	expectedWords := tokenize(expected)
	if len(expectedWords) == 0 {
		return Result{}, ErrEmptyPhrase
	}

	if res.NoSpeech() {
		return Result{
			Clarity:       0,
			Mispronounced: []string{},
			Tips:          append([]string(nil), noSpeechTips...),
			NoSpeech:      true,
		}, nil
	}

	transcriptWords := tokenize(res.Text)

	clarity := clarityScore(expectedWords, transcriptWords, res.Confidence)
	missed := mispronounced(expectedWords, transcriptWords, res.Words)

	return Result{
		Clarity:       clarity,
		Mispronounced: missed,
		Tips:          s.buildTips(clarity, missed, transcriptWords),
	}, nil
}

// clarityScore blends the word-match ratio and recogniser confidence into an
// integer score in [0, 100].
func clarityScore(expected, transcript []string, confidence float64) int {
	expectedSet := make(map[string]struct{}, len(expected))
	for _, w := range expected {
		expectedSet[w] = struct{}{}
	}

	matched := 0
	for _, w := range transcript {
		if _, ok := expectedSet[w]; ok {
			matched++
		}
	}

	wordMatch := float64(matched) / float64(len(expected)) * 100
	confScore := confidence * 100

	score := int(math.Floor(wordMatch*wordMatchWeight + confScore*confidenceWeight + 0.5))
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score
}

// mispronounced returns the expected words the user likely got wrong, in
// phrase order with duplicates removed.
//
// When per-word detail is available, an expected word counts as pronounced
// if some timing entry matches it case-insensitively with confidence at or
// above the threshold. Without word detail the check degrades to transcript
// membership.
func mispronounced(expected, transcript []string, words []stt.WordTiming) []string {
	spoken := make(map[string]bool, len(expected))
	if len(words) > 0 {
		for _, wt := range words {
			if wt.Confidence >= wordConfidenceThreshold {
				spoken[normalize(wt.Word)] = true
			}
		}
	} else {
		for _, w := range transcript {
			spoken[w] = true
		}
	}

	missed := []string{}
	seen := make(map[string]struct{}, len(expected))
	for _, w := range expected {
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		if !spoken[w] {
			missed = append(missed, w)
		}
	}
	return missed
}

// buildTips assembles the feedback list: score-band guidance first, then a
// callout of the words to work on, capped at maxTips entries.
func (s *Scorer) buildTips(clarity int, missed, transcript []string) []string {
	var tips []string
	switch {
	case clarity < 30:
		tips = append(tips,
			"Try speaking more slowly and clearly.",
			"Focus on pronouncing each word distinctly.")
	case clarity < 60:
		tips = append(tips, "Good effort! Try to enunciate each syllable more clearly.")
	case clarity < 80:
		tips = append(tips, "Very good! Keep practicing to perfect your pronunciation.")
	default:
		tips = append(tips, "Excellent pronunciation! Try increasing your speed.")
	}

	if len(missed) > 0 && len(tips) < maxTips {
		ranked := s.ranker.rank(missed, transcript)
		if len(ranked) > maxTips {
			ranked = ranked[:maxTips]
		}
		tips = append(tips, fmt.Sprintf("Focus on pronouncing: %s", strings.Join(ranked, ", ")))
	}

	if len(tips) > maxTips {
		tips = tips[:maxTips]
	}
	return tips
}

// tokenize lower-cases text and splits it on whitespace, stripping leading
// and trailing punctuation from each word. Words that are pure punctuation
// are dropped.
func tokenize(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	words := make([]string, 0, len(fields))
	for _, f := range fields {
		if w := normalize(f); w != "" {
			words = append(words, w)
		}
	}
	return words
}

// normalize lower-cases a single word and trims surrounding punctuation.
func normalize(word string) string {
	return strings.Trim(strings.ToLower(word), ".,!?;:\"'()[]")
}
