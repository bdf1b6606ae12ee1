package leave

import (
	"fmt"
	"time"
)

// =============================================================================
// DATE - Day-granularity calendar date (leave is booked in whole days)
// =============================================================================

// Date is a calendar day, normalized to UTC midnight.
type Date struct {
	t time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

// ParseDate parses a date in "2006-01-02" form.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return DateOf(t), nil
}

// Comparison
func (d Date) Before(o Date) bool        { return d.t.Before(o.t) }
func (d Date) After(o Date) bool         { return d.t.After(o.t) }
func (d Date) Equal(o Date) bool         { return d.t.Equal(o.t) }
func (d Date) BeforeOrEqual(o Date) bool { return !d.After(o) }
func (d Date) AfterOrEqual(o Date) bool  { return !d.Before(o) }

// Arithmetic and properties
func (d Date) AddDays(n int) Date       { return Date{t: d.t.AddDate(0, 0, n)} }
func (d Date) Year() int                { return d.t.Year() }
func (d Date) Weekday() time.Weekday    { return d.t.Weekday() }
func (d Date) IsZero() bool             { return d.t.IsZero() }
func (d Date) Time() time.Time          { return d.t }
func (d Date) String() string           { return d.t.Format("2006-01-02") }

func (d Date) IsWeekend() bool {
	wd := d.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

func (d Date) IsWorkday() bool { return !d.IsWeekend() }

// =============================================================================
// DATE RANGE - Inclusive [From, To]
// =============================================================================

type DateRange struct {
	From Date
	To   Date
}

func NewDateRange(from, to Date) DateRange {
	return DateRange{From: from, To: to}
}

// Valid reports whether the range is well-formed (From <= To, both set).
func (r DateRange) Valid() bool {
	return !r.From.IsZero() && !r.To.IsZero() && r.From.BeforeOrEqual(r.To)
}

// Days returns the inclusive day count. A one-day leave has Days() == 1.
func (r DateRange) Days() int {
	return int(r.To.t.Sub(r.From.t).Hours()/24) + 1
}

// Each returns every day in the range, in order.
func (r DateRange) Each() []Date {
	var days []Date
	for d := r.From; d.BeforeOrEqual(r.To); d = d.AddDays(1) {
		days = append(days, d)
	}
	return days
}

// WorkingDays returns the weekdays in the range, in order.
func (r DateRange) WorkingDays() []Date {
	var days []Date
	for d := r.From; d.BeforeOrEqual(r.To); d = d.AddDays(1) {
		if d.IsWorkday() {
			days = append(days, d)
		}
	}
	return days
}

func (r DateRange) Contains(d Date) bool {
	return d.AfterOrEqual(r.From) && d.BeforeOrEqual(r.To)
}

// Overlaps reports whether two inclusive ranges share at least one day.
func (r DateRange) Overlaps(o DateRange) bool {
	return r.From.BeforeOrEqual(o.To) && o.From.BeforeOrEqual(r.To)
}

func (r DateRange) String() string {
	return "[" + r.From.String() + ", " + r.To.String() + "]"
}

// =============================================================================
// CLOCK - "Today" provider for date-range validation
// =============================================================================

// Clock supplies the today boundary: no new submission may start before
// Today(). A fixed clock keeps tests deterministic.
type Clock interface {
	Today() Date
}

type SystemClock struct{}

func (SystemClock) Today() Date { return DateOf(time.Now()) }

type FixedClock struct {
	Day Date
}

func (c FixedClock) Today() Date { return c.Day }
