package scoring

import (
	"sort"

	"github.com/antzucaro/matchr"
)

// attemptRanker orders mispronounced words by how far the user's attempt was
// from the target, worst attempt first, so the most useful words lead the
// feedback callout.
//
// For each missed word it finds the closest transcript word: Double Metaphone
// codes pick out words that were at least attempted, and Jaro-Winkler
// similarity on the raw strings scores how close the attempt came. A missed
// word with no phonetic relative anywhere in the transcript was likely
// skipped entirely and ranks first.
type attemptRanker struct{}

func newAttemptRanker() *attemptRanker {
	return &attemptRanker{}
}

// rank returns missed reordered worst-attempt-first. The sort is stable, so
// words with equal attempt scores keep their phrase order.
func (r *attemptRanker) rank(missed, transcript []string) []string {
	if len(missed) <= 1 || len(transcript) == 0 {
		return missed
	}

	scores := make(map[string]float64, len(missed))
	for _, w := range missed {
		scores[w] = bestAttemptScore(w, transcript)
	}

	ranked := append([]string(nil), missed...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return scores[ranked[i]] < scores[ranked[j]]
	})
	return ranked
}

// bestAttemptScore returns the highest similarity between target and any
// transcript word. Phonetically related words are scored by Jaro-Winkler;
// unrelated words contribute nothing.
func bestAttemptScore(target string, transcript []string) float64 {
	tp, ts := matchr.DoubleMetaphone(target)

	var best float64
	for _, w := range transcript {
		wp, ws := matchr.DoubleMetaphone(w)
		if !codesMatch(tp, ts, wp, ws) {
			continue
		}
		if s := matchr.JaroWinkler(target, w, false); s > best {
			best = s
		}
	}
	return best
}

// codesMatch reports whether any non-empty Double Metaphone code is shared
// between the two words.
func codesMatch(ap, as, bp, bs string) bool {
	for _, a := range [2]string{ap, as} {
		if a == "" {
			continue
		}
		if a == bp || (bs != "" && a == bs) {
			return true
		}
	}
	return false
}
