package leave_test

import (
	"testing"
	"time"

	"github.com/campus/leave-engine/leave"
)

func TestDateRange_Days_Inclusive(t *testing.T) {
	// GIVEN: A range covering March 10-12
	// WHEN: Counting days
	// THEN: Both endpoints count, so 3 days

	r := leave.DateRange{
		From: leave.NewDate(2026, time.March, 10),
		To:   leave.NewDate(2026, time.March, 12),
	}
	if got := r.Days(); got != 3 {
		t.Errorf("Days() = %d, want 3", got)
	}

	// A single-day leave is 1 day, not 0
	single := leave.DateRange{
		From: leave.NewDate(2026, time.March, 10),
		To:   leave.NewDate(2026, time.March, 10),
	}
	if got := single.Days(); got != 1 {
		t.Errorf("single-day Days() = %d, want 1", got)
	}
}

func TestDateRange_Valid(t *testing.T) {
	mar10 := leave.NewDate(2026, time.March, 10)
	mar12 := leave.NewDate(2026, time.March, 12)

	if !(leave.DateRange{From: mar10, To: mar12}).Valid() {
		t.Error("forward range should be valid")
	}
	if !(leave.DateRange{From: mar10, To: mar10}).Valid() {
		t.Error("single-day range should be valid")
	}
	if (leave.DateRange{From: mar12, To: mar10}).Valid() {
		t.Error("reversed range should be invalid")
	}
	if (leave.DateRange{To: mar10}).Valid() {
		t.Error("range with zero From should be invalid")
	}
}

func TestDateRange_WorkingDays_SkipsWeekends(t *testing.T) {
	// GIVEN: March 6-10 2026 (Friday through Tuesday)
	// WHEN: Listing working days
	// THEN: Saturday 7th and Sunday 8th are excluded

	r := leave.DateRange{
		From: leave.NewDate(2026, time.March, 6),
		To:   leave.NewDate(2026, time.March, 10),
	}
	days := r.WorkingDays()
	if len(days) != 3 {
		t.Fatalf("WorkingDays() returned %d days, want 3", len(days))
	}
	want := []string{"2026-03-06", "2026-03-09", "2026-03-10"}
	for i, d := range days {
		if d.String() != want[i] {
			t.Errorf("working day %d = %s, want %s", i, d, want[i])
		}
	}
}

func TestDateRange_Overlaps(t *testing.T) {
	base := leave.DateRange{
		From: leave.NewDate(2026, time.March, 10),
		To:   leave.NewDate(2026, time.March, 14),
	}

	cases := []struct {
		name  string
		other leave.DateRange
		want  bool
	}{
		{"identical", base, true},
		{"shares one endpoint day", leave.DateRange{From: leave.NewDate(2026, time.March, 14), To: leave.NewDate(2026, time.March, 20)}, true},
		{"contained", leave.DateRange{From: leave.NewDate(2026, time.March, 11), To: leave.NewDate(2026, time.March, 12)}, true},
		{"adjacent before", leave.DateRange{From: leave.NewDate(2026, time.March, 5), To: leave.NewDate(2026, time.March, 9)}, false},
		{"adjacent after", leave.DateRange{From: leave.NewDate(2026, time.March, 15), To: leave.NewDate(2026, time.March, 18)}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := base.Overlaps(tc.other); got != tc.want {
				t.Errorf("Overlaps(%s) = %v, want %v", tc.other, got, tc.want)
			}
			// Overlap is symmetric
			if got := tc.other.Overlaps(base); got != tc.want {
				t.Errorf("reverse Overlaps = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestParseDate(t *testing.T) {
	d, err := leave.ParseDate("2026-03-10")
	if err != nil {
		t.Fatalf("ParseDate failed: %v", err)
	}
	if d.String() != "2026-03-10" {
		t.Errorf("round trip = %s, want 2026-03-10", d)
	}

	if _, err := leave.ParseDate("10/03/2026"); err == nil {
		t.Error("expected error for non-ISO format")
	}
	if _, err := leave.ParseDate(""); err == nil {
		t.Error("expected error for empty string")
	}
}

func TestFixedClock(t *testing.T) {
	day := leave.NewDate(2026, time.March, 2)
	clock := leave.FixedClock{Day: day}
	if !clock.Today().Equal(day) {
		t.Errorf("FixedClock.Today() = %s, want %s", clock.Today(), day)
	}
}
