// Package badges implements the achievement rule engine. Each badge carries
// one threshold criterion; after every scored session the engine compares
// the user's updated statistics against the criteria of badges not yet
// earned and awards the ones that now qualify.
package badges

import (
	"fmt"
	"time"
)

// CriteriaType identifies which statistic a badge's threshold applies to.
type CriteriaType string

const (
	// CriteriaStreak compares against the consecutive-day practice streak.
	CriteriaStreak CriteriaType = "streak"
	// CriteriaClarity compares against the running average clarity score.
	CriteriaClarity CriteriaType = "clarity"
	// CriteriaSessions compares against the lifetime session count.
	CriteriaSessions CriteriaType = "sessions"
	// CriteriaSpeed compares against the just-scored session's duration in
	// seconds. Shorter is not better here: the badge fires once a user has
	// sustained speech for at least the threshold.
	CriteriaSpeed CriteriaType = "speed"
	// CriteriaAccuracy compares against the just-scored session's clarity.
	CriteriaAccuracy CriteriaType = "accuracy"
	// CriteriaTime compares against total practice time in minutes.
	CriteriaTime CriteriaType = "time"
)

// IsValid reports whether c is one of the known criteria types.
func (c CriteriaType) IsValid() bool {
	switch c {
	case CriteriaStreak, CriteriaClarity, CriteriaSessions, CriteriaSpeed, CriteriaAccuracy, CriteriaTime:
		return true
	}
	return false
}

// Badge is one entry of the achievement catalog.
type Badge struct {
	ID            string       `json:"id"`
	Name          string       `json:"name"`
	Description   string       `json:"description"`
	IconURL       string       `json:"iconUrl,omitempty"`
	CriteriaType  CriteriaType `json:"criteriaType"`
	CriteriaValue int          `json:"criteriaValue"`
}

// Validate checks a catalog entry for admin-facing creation.
func (b Badge) Validate() error {
	if b.Name == "" {
		return fmt.Errorf("badges: name must not be empty")
	}
	if !b.CriteriaType.IsValid() {
		return fmt.Errorf("badges: unknown criteria type %q", b.CriteriaType)
	}
	if b.CriteriaValue <= 0 {
		return fmt.Errorf("badges: criteria value must be positive, got %d", b.CriteriaValue)
	}
	return nil
}

// Earned is a badge the user holds, with its award time.
type Earned struct {
	Badge
	AwardedAt time.Time `json:"awardedAt"`
}

// Snapshot carries the statistics a criterion can be evaluated against:
// the user's updated aggregate state plus the values of the session that
// triggered the evaluation.
type Snapshot struct {
	PracticeStreak    int
	ClarityScore      int
	TotalSessions     int
	TotalPracticeTime int

	SessionClarity  int
	SessionDuration int // seconds
}

// Value returns the snapshot field a criteria type maps to. ok is false for
// unknown types, which the engine skips rather than failing the evaluation.
func (s Snapshot) Value(c CriteriaType) (int, bool) {
	switch c {
	case CriteriaStreak:
		return s.PracticeStreak, true
	case CriteriaClarity:
		return s.ClarityScore, true
	case CriteriaSessions:
		return s.TotalSessions, true
	case CriteriaSpeed:
		return s.SessionDuration, true
	case CriteriaAccuracy:
		return s.SessionClarity, true
	case CriteriaTime:
		return s.TotalPracticeTime, true
	}
	return 0, false
}

// Qualifies reports whether the snapshot meets the badge's criterion.
func (s Snapshot) Qualifies(b Badge) bool {
	v, ok := s.Value(b.CriteriaType)
	return ok && v >= b.CriteriaValue
}
