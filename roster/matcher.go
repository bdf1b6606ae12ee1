/*
matcher.go - Substitute scoring, fallback and booking

PURPOSE:
  Given an approved instructor leave, find the replacement instructor who
  can cover the vacated slots without a timetable conflict.

MATCHING PIPELINE:
  1. Filter: same-department active instructors not on overlapping leave
  2. Score each survivor:
       30 * (department match)
     + 40 * (covered subjects / required subjects)
     + 20 * min(experienceYears / 10, 1)
     + 10 * (1 - workload / max workload in pool)
  3. Walk candidates in strict descending score; ties break by lower
     workload, then lower candidate ID, so a rerun over the same snapshot
     always picks the same substitute
  4. First candidate free at every coverage slot wins
  5. If the same-department pool is exhausted, retry the cross-department
     pool as general coverage: the subject term is disregarded and only a
     conflict-free placement is required
  6. If still nobody validates, the outcome is an escalation - the leave
     approval stands, coverage goes to a human

PURITY:
  Match() is a pure function over an immutable snapshot (request,
  candidates, busy index, coverage slots). The Matcher service wraps it
  with store reads and the atomic booking append; a lost race on the
  append simply falls through to the next candidate.

SEE ALSO:
  - schedule.go: BusyIndex and CoverageSlots
  - workflow/: invokes Assign on final approval
*/
package roster

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/campus/leave-engine/leave"
)

// =============================================================================
// CANDIDATE - Immutable matching input
// =============================================================================

// Candidate is a potential substitute plus the request-time facts the
// scorer needs. OnLeave carries the spans of the candidate's own active
// (pending or approved) leave requests.
type Candidate struct {
	Requester leave.Requester
	Workload  int
	OnLeave   []leave.DateRange
}

func (c Candidate) availableFor(dates leave.DateRange) bool {
	if !c.Requester.Active || c.Requester.Role != leave.RoleInstructor {
		return false
	}
	for _, span := range c.OnLeave {
		if span.Overlaps(dates) {
			return false
		}
	}
	return true
}

// =============================================================================
// SNAPSHOT AND OUTCOME
// =============================================================================

// Snapshot is everything Match needs, captured once. Matching the same
// snapshot twice yields the same outcome.
type Snapshot struct {
	Request    leave.LeaveRequest
	Original   leave.Requester
	Candidates []Candidate
	Slots      []Slot
	Busy       *BusyIndex
}

// Outcome is the matcher's decision value. Escalation is a value, not an
// error: callers distinguish "needs human attention" from "bug".
type Outcome struct {
	Substitute      *Candidate
	Entries         []ScheduleEntry
	CrossDepartment bool
	Escalated       bool
}

// =============================================================================
// SCORING
// =============================================================================

const (
	weightDepartment = 30.0
	weightSubjects   = 40.0
	weightExperience = 20.0
	weightWorkload   = 10.0
)

type scoredCandidate struct {
	Candidate Candidate
	Score     float64
}

func score(c Candidate, target leave.Department, required []leave.Subject, maxWorkload int, general bool) float64 {
	s := 0.0
	if !general {
		if c.Requester.Department == target {
			s += weightDepartment
		}
		if len(required) > 0 {
			s += weightSubjects * float64(c.Requester.SubjectOverlap(required)) / float64(len(required))
		}
	}

	exp := float64(c.Requester.ExperienceYears) / 10.0
	if exp > 1 {
		exp = 1
	}
	s += weightExperience * exp

	if maxWorkload > 0 {
		s += weightWorkload * (1 - float64(c.Workload)/float64(maxWorkload))
	} else {
		s += weightWorkload
	}
	return s
}

// rank orders a pool by descending score; ties break by lower workload,
// then lower candidate ID for determinism.
func rank(pool []Candidate, target leave.Department, required []leave.Subject, general bool) []scoredCandidate {
	maxWorkload := 0
	for _, c := range pool {
		if c.Workload > maxWorkload {
			maxWorkload = c.Workload
		}
	}

	ranked := make([]scoredCandidate, 0, len(pool))
	for _, c := range pool {
		ranked = append(ranked, scoredCandidate{
			Candidate: c,
			Score:     score(c, target, required, maxWorkload, general),
		})
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		if ranked[i].Candidate.Workload != ranked[j].Candidate.Workload {
			return ranked[i].Candidate.Workload < ranked[j].Candidate.Workload
		}
		return ranked[i].Candidate.Requester.ID < ranked[j].Candidate.Requester.ID
	})
	return ranked
}

// =============================================================================
// MATCH - Pure decision over a snapshot
// =============================================================================

// Match runs the full pipeline against the snapshot. It never touches a
// store: conflicts are judged against the snapshot's busy index.
func Match(snap Snapshot) Outcome {
	required := SubjectsOf(snap.Slots)
	if len(required) == 0 {
		required = snap.Original.Subjects
	}

	var sameDept, crossDept []Candidate
	for _, c := range snap.Candidates {
		if c.Requester.ID == snap.Original.ID || !c.availableFor(snap.Request.Dates) {
			continue
		}
		if c.Requester.Department == snap.Original.Department {
			sameDept = append(sameDept, c)
		} else {
			crossDept = append(crossDept, c)
		}
	}

	if out, ok := tryPool(snap, rank(sameDept, snap.Original.Department, required, false), false); ok {
		return out
	}
	if out, ok := tryPool(snap, rank(crossDept, snap.Original.Department, nil, true), true); ok {
		return out
	}
	return Outcome{Escalated: true}
}

func tryPool(snap Snapshot, ranked []scoredCandidate, cross bool) (Outcome, bool) {
	for _, sc := range ranked {
		id := sc.Candidate.Requester.ID
		if snap.Busy.FirstConflict(id, snap.Slots) != nil {
			continue
		}
		c := sc.Candidate
		return Outcome{
			Substitute:      &c,
			Entries:         entriesFor(id, snap.Slots),
			CrossDepartment: cross,
		}, true
	}
	return Outcome{}, false
}

func entriesFor(id leave.RequesterID, slots []Slot) []ScheduleEntry {
	entries := make([]ScheduleEntry, 0, len(slots))
	for _, s := range slots {
		entries = append(entries, ScheduleEntry{
			InstructorID: id,
			Day:          s.Day,
			Period:       s.Period,
			Section:      s.Section,
			Subject:      s.Subject,
		})
	}
	return entries
}

// =============================================================================
// MATCHER SERVICE - Snapshot capture plus atomic booking
// =============================================================================

type Matcher struct {
	Schedule    ScheduleStore
	Assignments AssignmentStore
}

func NewMatcher(schedule ScheduleStore, assignments AssignmentStore) *Matcher {
	return &Matcher{Schedule: schedule, Assignments: assignments}
}

// Assign finds and books a substitute for the approved request. The
// returned assignment is Escalated (empty SubstituteID) when no candidate
// validates; that is not an error. Only store failures are.
//
// Booking races are handled by the schedule store's atomic append: when a
// concurrent match takes a candidate's slots first, the append conflicts
// and the next candidate is tried against a refreshed snapshot.
func (m *Matcher) Assign(ctx context.Context, request leave.LeaveRequest, original leave.Requester, candidates []Candidate) (Assignment, error) {
	originalEntries, err := m.Schedule.ByInstructor(ctx, original.ID, request.Dates)
	if err != nil {
		return Assignment{}, fmt.Errorf("load original schedule: %w", err)
	}
	slots := CoverageSlots(originalEntries, request.Dates)

	excluded := make(map[leave.RequesterID]bool)
	for {
		all, err := m.Schedule.InRange(ctx, request.Dates)
		if err != nil {
			return Assignment{}, fmt.Errorf("load schedule snapshot: %w", err)
		}
		busy := NewBusyIndex(all)

		pool := make([]Candidate, 0, len(candidates))
		for _, c := range candidates {
			if excluded[c.Requester.ID] {
				continue
			}
			c.Workload = busy.Workload(c.Requester.ID)
			pool = append(pool, c)
		}

		outcome := Match(Snapshot{
			Request:    request,
			Original:   original,
			Candidates: pool,
			Slots:      slots,
			Busy:       busy,
		})

		if outcome.Escalated {
			a := m.newAssignment(request, original, slots)
			a.Status = AssignmentEscalated
			if err := m.Assignments.Save(ctx, a); err != nil {
				return Assignment{}, fmt.Errorf("save escalated assignment: %w", err)
			}
			return a, nil
		}

		if err := m.Schedule.AppendIfFree(ctx, outcome.Entries); err != nil {
			if errors.Is(err, leave.ErrScheduleConflict) {
				// Lost a concurrent booking race. Drop this candidate and
				// rematch against fresh schedule state.
				excluded[outcome.Substitute.Requester.ID] = true
				continue
			}
			return Assignment{}, fmt.Errorf("book substitute: %w", err)
		}

		a := m.newAssignment(request, original, slots)
		a.SubstituteID = outcome.Substitute.Requester.ID
		a.Status = AssignmentAssigned
		if err := m.Assignments.Save(ctx, a); err != nil {
			return Assignment{}, fmt.Errorf("save assignment: %w", err)
		}
		return a, nil
	}
}

func (m *Matcher) newAssignment(request leave.LeaveRequest, original leave.Requester, slots []Slot) Assignment {
	first, last := 0, 0
	for i, s := range slots {
		if i == 0 || s.Period < first {
			first = s.Period
		}
		if s.Period > last {
			last = s.Period
		}
	}
	return Assignment{
		ID:          uuid.NewString(),
		RequestID:   request.ID,
		OriginalID:  original.ID,
		Subjects:    SubjectsOf(slots),
		Section:     original.Section,
		Dates:       request.Dates,
		FirstPeriod: first,
		LastPeriod:  last,
		Status:      AssignmentAssigned,
		CreatedAt:   time.Now().UTC(),
	}
}
