/*
Package roster tracks instructor period bookings and finds substitute
instructors for approved teaching-staff leave.

PURPOSE:
  Two concerns live here:
  1. The schedule: append-only (instructor, day, period) booking facts
     consulted for conflict detection.
  2. The substitute matcher: scores candidate replacements against a
     request and books the best conflict-free one, escalating to a human
     when every pool is exhausted.

CONFLICT MODEL:
  A slot is (instructor, day, period). The schedule store's append is an
  atomic check-then-insert: either every entry of an assignment lands or
  none do, so two concurrent matches can never double-book a candidate.

SEE ALSO:
  - matcher.go: scoring and fallback
  - assignment.go: the assignment record
  - store/memory, store/sqlite: ScheduleStore implementations
*/
package roster

import (
	"context"

	"github.com/campus/leave-engine/leave"
)

// =============================================================================
// SCHEDULE ENTRY - Append-only booking fact
// =============================================================================

type ScheduleEntry struct {
	InstructorID leave.RequesterID
	Day          leave.Date
	Period       int
	Section      leave.Section
	Subject      leave.Subject
}

// Slot is the coverage a leave creates: one period of one section on one
// day, with the subject taught there.
type Slot struct {
	Day     leave.Date
	Period  int
	Section leave.Section
	Subject leave.Subject
}

// =============================================================================
// SCHEDULE STORE - Read view plus atomic append
// =============================================================================

type ScheduleStore interface {
	// ByInstructor returns the instructor's entries within the range.
	ByInstructor(ctx context.Context, id leave.RequesterID, r leave.DateRange) ([]ScheduleEntry, error)

	// InRange returns every entry within the range, across instructors.
	// Used to build the busy index and candidate workloads.
	InRange(ctx context.Context, r leave.DateRange) ([]ScheduleEntry, error)

	// AppendIfFree inserts all entries atomically. If any (instructor,
	// day, period) already exists, nothing is inserted and the error
	// wraps leave.ErrScheduleConflict.
	AppendIfFree(ctx context.Context, entries []ScheduleEntry) error
}

// =============================================================================
// BUSY INDEX - Immutable snapshot for pure conflict checks
// =============================================================================

type busyKey struct {
	id     leave.RequesterID
	day    string
	period int
}

// BusyIndex answers "is this instructor booked at this slot" without
// touching a store, so the matcher stays a pure function over it.
type BusyIndex struct {
	slots map[busyKey]bool
	loads map[leave.RequesterID]int
}

func NewBusyIndex(entries []ScheduleEntry) *BusyIndex {
	idx := &BusyIndex{
		slots: make(map[busyKey]bool),
		loads: make(map[leave.RequesterID]int),
	}
	for _, e := range entries {
		idx.slots[busyKey{id: e.InstructorID, day: e.Day.String(), period: e.Period}] = true
		idx.loads[e.InstructorID]++
	}
	return idx
}

func (b *BusyIndex) Busy(id leave.RequesterID, day leave.Date, period int) bool {
	return b.slots[busyKey{id: id, day: day.String(), period: period}]
}

// Workload returns the instructor's booked period count in the snapshot
// range.
func (b *BusyIndex) Workload(id leave.RequesterID) int {
	return b.loads[id]
}

// FirstConflict returns the first slot the instructor cannot cover, in
// slot order, or nil when all are free.
func (b *BusyIndex) FirstConflict(id leave.RequesterID, slots []Slot) *leave.ScheduleConflictError {
	for _, s := range slots {
		if b.Busy(id, s.Day, s.Period) {
			return &leave.ScheduleConflictError{InstructorID: id, Day: s.Day, Period: s.Period}
		}
	}
	return nil
}

// CoverageSlots derives the slots a leave leaves uncovered: the original
// instructor's own bookings on working days within the leave range.
func CoverageSlots(original []ScheduleEntry, dates leave.DateRange) []Slot {
	var slots []Slot
	for _, e := range original {
		if !dates.Contains(e.Day) || !e.Day.IsWorkday() {
			continue
		}
		slots = append(slots, Slot{Day: e.Day, Period: e.Period, Section: e.Section, Subject: e.Subject})
	}
	return slots
}

// SubjectsOf returns the distinct subjects across the slots, in first-seen
// order.
func SubjectsOf(slots []Slot) []leave.Subject {
	seen := make(map[leave.Subject]bool)
	var subjects []leave.Subject
	for _, s := range slots {
		if s.Subject == "" || seen[s.Subject] {
			continue
		}
		seen[s.Subject] = true
		subjects = append(subjects, s.Subject)
	}
	return subjects
}
