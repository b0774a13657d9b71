// Package progress maintains per-user cumulative practice statistics: the
// consecutive-day streak, total practice time, session count, running and
// best clarity scores, and date-bucketed frequency counters.
//
// The package is pure computation over the Progress value. Loading, locking,
// and persisting rows is the storage layer's job; it passes the loaded value
// through ApplySession (or Prune) and writes back the result inside one
// transaction.
package progress

import (
	"math"
	"time"
)

// retentionDays is the rolling window for frequency bucket entries. Buckets
// whose period started more than this many days ago are evicted.
const retentionDays = 90

// Frequency holds the three date-keyed session counters.
//
// Keys: Daily "2006-01-02", Weekly the Monday of the week as "2006-01-02",
// Monthly "2006-01". All three key formats sort chronologically as strings.
type Frequency struct {
	Daily   map[string]int `json:"daily"`
	Weekly  map[string]int `json:"weekly"`
	Monthly map[string]int `json:"monthly"`
}

// Progress is one user's aggregate practice state.
type Progress struct {
	UserID            string
	PracticeStreak    int
	TotalPracticeTime int // minutes
	TotalSessions     int
	ClarityScore      int // running average, rounded
	BestClarityScore  int
	Frequency         Frequency
}

// New returns an empty Progress for userID with initialised frequency maps.
func New(userID string) *Progress {
	return &Progress{
		UserID: userID,
		Frequency: Frequency{
			Daily:   make(map[string]int),
			Weekly:  make(map[string]int),
			Monthly: make(map[string]int),
		},
	}
}

// ApplySession folds one completed practice session into the progress state:
// bumps the frequency buckets for now, evicts buckets outside the retention
// window, recomputes the streak, and updates the time, session, and clarity
// aggregates.
func (p *Progress) ApplySession(now time.Time, durationMinutes, clarityScore int) {
	p.ensureMaps()

	p.Frequency.Daily[DayKey(now)]++
	p.Frequency.Weekly[WeekKey(now)]++
	p.Frequency.Monthly[MonthKey(now)]++
	p.pruneLocked(now)

	p.PracticeStreak = p.streak(now)

	if durationMinutes > 0 {
		p.TotalPracticeTime += durationMinutes
	}
	p.TotalSessions++

	// Running average over all sessions, rounded half-up.
	prev := float64(p.ClarityScore) * float64(p.TotalSessions-1)
	p.ClarityScore = int(math.Floor((prev+float64(clarityScore))/float64(p.TotalSessions) + 0.5))

	if clarityScore > p.BestClarityScore {
		p.BestClarityScore = clarityScore
	}
}

// Prune evicts frequency buckets outside the retention window and recomputes
// the streak without recording a session. Used by the maintenance job to keep
// idle users' rows bounded.
func (p *Progress) Prune(now time.Time) {
	p.ensureMaps()
	p.pruneLocked(now)
	p.PracticeStreak = p.streak(now)
}

func (p *Progress) pruneLocked(now time.Time) {
	cutoff := now.AddDate(0, 0, -retentionDays)

	dayCut := DayKey(cutoff)
	for k := range p.Frequency.Daily {
		if k < dayCut {
			delete(p.Frequency.Daily, k)
		}
	}
	weekCut := WeekKey(cutoff)
	for k := range p.Frequency.Weekly {
		if k < weekCut {
			delete(p.Frequency.Weekly, k)
		}
	}
	monthCut := MonthKey(cutoff)
	for k := range p.Frequency.Monthly {
		if k < monthCut {
			delete(p.Frequency.Monthly, k)
		}
	}
}

// streak walks backward day by day from now and counts consecutive days with
// at least one session. A full recompute self-corrects after gaps, unlike a
// stored increment.
func (p *Progress) streak(now time.Time) int {
	count := 0
	day := now
	for {
		if p.Frequency.Daily[DayKey(day)] == 0 {
			break
		}
		count++
		day = day.AddDate(0, 0, -1)
	}
	return count
}

func (p *Progress) ensureMaps() {
	if p.Frequency.Daily == nil {
		p.Frequency.Daily = make(map[string]int)
	}
	if p.Frequency.Weekly == nil {
		p.Frequency.Weekly = make(map[string]int)
	}
	if p.Frequency.Monthly == nil {
		p.Frequency.Monthly = make(map[string]int)
	}
}

// DayKey returns t's daily bucket key, "2006-01-02".
func DayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// WeekKey returns t's weekly bucket key: the Monday of t's week as
// "2006-01-02".
func WeekKey(t time.Time) string {
	offset := (int(t.Weekday()) + 6) % 7 // Monday=0 .. Sunday=6
	return t.AddDate(0, 0, -offset).Format("2006-01-02")
}

// MonthKey returns t's monthly bucket key, "2006-01".
func MonthKey(t time.Time) string {
	return t.Format("2006-01")
}
