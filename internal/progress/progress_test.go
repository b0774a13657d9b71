package progress

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

func TestApplySessionFirstSession(t *testing.T) {
	t.Parallel()

	now := date(2026, time.March, 10)
	p := New("user-1")
	p.ApplySession(now, 5, 80)

	if p.TotalSessions != 1 {
		t.Errorf("TotalSessions = %d, want 1", p.TotalSessions)
	}
	if p.TotalPracticeTime != 5 {
		t.Errorf("TotalPracticeTime = %d, want 5", p.TotalPracticeTime)
	}
	if p.ClarityScore != 80 {
		t.Errorf("ClarityScore = %d, want 80", p.ClarityScore)
	}
	if p.BestClarityScore != 80 {
		t.Errorf("BestClarityScore = %d, want 80", p.BestClarityScore)
	}
	if p.PracticeStreak != 1 {
		t.Errorf("PracticeStreak = %d, want 1", p.PracticeStreak)
	}
	if got := p.Frequency.Daily["2026-03-10"]; got != 1 {
		t.Errorf("Daily[2026-03-10] = %d, want 1", got)
	}
	if got := p.Frequency.Weekly["2026-03-09"]; got != 1 {
		t.Errorf("Weekly[2026-03-09] = %d, want 1 (Monday of the week)", got)
	}
	if got := p.Frequency.Monthly["2026-03"]; got != 1 {
		t.Errorf("Monthly[2026-03] = %d, want 1", got)
	}
}

func TestApplySessionSequence(t *testing.T) {
	t.Parallel()

	now := date(2026, time.March, 10)
	p := New("user-1")
	p.ApplySession(now, 5, 80)
	p.ApplySession(now, 7, 91)

	if p.TotalSessions != 2 {
		t.Errorf("TotalSessions = %d, want 2", p.TotalSessions)
	}
	if p.TotalPracticeTime != 12 {
		t.Errorf("TotalPracticeTime = %d, want 12", p.TotalPracticeTime)
	}
	// round((80+91)/2) = round(85.5) = 86
	if p.ClarityScore != 86 {
		t.Errorf("ClarityScore = %d, want 86", p.ClarityScore)
	}
	if p.BestClarityScore != 91 {
		t.Errorf("BestClarityScore = %d, want 91", p.BestClarityScore)
	}
	if p.BestClarityScore < p.ClarityScore {
		t.Errorf("BestClarityScore %d < ClarityScore %d", p.BestClarityScore, p.ClarityScore)
	}
}

func TestStreakConsecutiveDays(t *testing.T) {
	t.Parallel()

	p := New("user-1")
	p.ApplySession(date(2026, time.March, 8), 3, 70)
	p.ApplySession(date(2026, time.March, 9), 3, 70)
	p.ApplySession(date(2026, time.March, 10), 3, 70)

	if p.PracticeStreak != 3 {
		t.Errorf("PracticeStreak = %d, want 3", p.PracticeStreak)
	}
}

func TestStreakResetsAfterGap(t *testing.T) {
	t.Parallel()

	p := New("user-1")
	p.ApplySession(date(2026, time.March, 5), 3, 70)
	p.ApplySession(date(2026, time.March, 6), 3, 70)
	// Two-day gap, then a new session.
	p.ApplySession(date(2026, time.March, 9), 3, 70)

	if p.PracticeStreak != 1 {
		t.Errorf("PracticeStreak = %d, want 1 after a gap", p.PracticeStreak)
	}
}

func TestPruneEvictsOldBuckets(t *testing.T) {
	t.Parallel()

	p := New("user-1")
	old := date(2025, time.November, 1) // >90 days before now
	p.ApplySession(old, 3, 70)
	now := date(2026, time.March, 10)
	p.ApplySession(now, 3, 70)

	if _, ok := p.Frequency.Daily[DayKey(old)]; ok {
		t.Errorf("Daily still holds %s, want evicted", DayKey(old))
	}
	if _, ok := p.Frequency.Monthly["2025-11"]; ok {
		t.Error("Monthly still holds 2025-11, want evicted")
	}
	if _, ok := p.Frequency.Daily[DayKey(now)]; !ok {
		t.Error("Daily lost the current bucket")
	}
	// Totals are unaffected by bucket eviction.
	if p.TotalSessions != 2 {
		t.Errorf("TotalSessions = %d, want 2", p.TotalSessions)
	}
}

func TestPruneWithoutSession(t *testing.T) {
	t.Parallel()

	p := New("user-1")
	p.ApplySession(date(2025, time.December, 1), 3, 70)
	p.Prune(date(2026, time.March, 10))

	if len(p.Frequency.Daily) != 0 {
		t.Errorf("Daily = %v, want empty after prune", p.Frequency.Daily)
	}
	if p.PracticeStreak != 0 {
		t.Errorf("PracticeStreak = %d, want 0", p.PracticeStreak)
	}
	if p.TotalSessions != 1 {
		t.Errorf("TotalSessions = %d, want untouched", p.TotalSessions)
	}
}

func TestApplySessionNilMaps(t *testing.T) {
	t.Parallel()

	// A row loaded from storage may carry nil maps.
	p := &Progress{UserID: "user-1"}
	p.ApplySession(date(2026, time.March, 10), 2, 50)
	if p.TotalSessions != 1 {
		t.Errorf("TotalSessions = %d, want 1", p.TotalSessions)
	}
}

func TestWeekKeyMondayStart(t *testing.T) {
	t.Parallel()

	cases := []struct {
		day  time.Time
		want string
	}{
		{date(2026, time.March, 9), "2026-03-09"},  // Monday
		{date(2026, time.March, 11), "2026-03-09"}, // Wednesday
		{date(2026, time.March, 15), "2026-03-09"}, // Sunday
		{date(2026, time.March, 16), "2026-03-16"}, // next Monday
	}
	for _, tc := range cases {
		if got := WeekKey(tc.day); got != tc.want {
			t.Errorf("WeekKey(%s) = %q, want %q", tc.day.Format("2006-01-02"), got, tc.want)
		}
	}
}
