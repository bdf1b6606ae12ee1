/*
Package memory provides in-memory implementations of every persistence
boundary. Used by tests and the dev server; the SQLite package mirrors
the same contracts.

All stores copy on read and guard state with a mutex. AppendIfFree on the
schedule is a check-then-insert under one lock, honoring the all-or-
nothing contract the matcher relies on.
*/
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/campus/leave-engine/leave"
	"github.com/campus/leave-engine/ledger"
	"github.com/campus/leave-engine/roster"
)

// =============================================================================
// DIRECTORY
// =============================================================================

type Directory struct {
	mu         sync.RWMutex
	requesters map[leave.RequesterID]leave.Requester
}

func NewDirectory() *Directory {
	return &Directory{requesters: make(map[leave.RequesterID]leave.Requester)}
}

func (d *Directory) Save(_ context.Context, r leave.Requester) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.requesters[r.ID] = r
	return nil
}

func (d *Directory) Get(_ context.Context, id leave.RequesterID) (leave.Requester, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	r, ok := d.requesters[id]
	if !ok {
		return leave.Requester{}, fmt.Errorf("%w: requester %s", leave.ErrNotFound, id)
	}
	return r, nil
}

func (d *Directory) Instructors(_ context.Context) ([]leave.Requester, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []leave.Requester
	for _, r := range d.requesters {
		if r.Role == leave.RoleInstructor {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (d *Directory) List(_ context.Context) ([]leave.Requester, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]leave.Requester, 0, len(d.requesters))
	for _, r := range d.requesters {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// =============================================================================
// REQUESTS
// =============================================================================

type Requests struct {
	mu       sync.RWMutex
	requests map[leave.RequestID]leave.LeaveRequest
}

func NewRequests() *Requests {
	return &Requests{requests: make(map[leave.RequestID]leave.LeaveRequest)}
}

func (s *Requests) Save(_ context.Context, r leave.LeaveRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[r.ID] = cloneRequest(r)
	return nil
}

func (s *Requests) Get(_ context.Context, id leave.RequestID) (leave.LeaveRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.requests[id]
	if !ok {
		return leave.LeaveRequest{}, fmt.Errorf("%w: request %s", leave.ErrNotFound, id)
	}
	return cloneRequest(r), nil
}

func (s *Requests) ByRequester(_ context.Context, id leave.RequesterID) ([]leave.LeaveRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []leave.LeaveRequest
	for _, r := range s.requests {
		if r.RequesterID == id {
			out = append(out, cloneRequest(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Requests) PendingFor(_ context.Context, reviewerID leave.RequesterID) ([]leave.LeaveRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []leave.LeaveRequest
	for _, r := range s.requests {
		if r.Terminal() {
			continue
		}
		if _, step := r.CurrentStep(); step.ReviewerID == reviewerID {
			out = append(out, cloneRequest(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Requests) ActiveInRange(_ context.Context, dates leave.DateRange) ([]leave.LeaveRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []leave.LeaveRequest
	for _, r := range s.requests {
		if r.Active() && r.Dates.Overlaps(dates) {
			out = append(out, cloneRequest(r))
		}
	}
	return out, nil
}

func cloneRequest(r leave.LeaveRequest) leave.LeaveRequest {
	chain := make([]leave.ReviewStep, len(r.Chain))
	copy(chain, r.Chain)
	r.Chain = chain
	return r
}

// =============================================================================
// ACCOUNTS
// =============================================================================

type Accounts struct {
	mu       sync.RWMutex
	accounts map[string]ledger.Account
}

func NewAccounts() *Accounts {
	return &Accounts{accounts: make(map[string]ledger.Account)}
}

func accountKey(id leave.RequesterID, year int) string {
	return fmt.Sprintf("%s/%d", id, year)
}

func (s *Accounts) Get(_ context.Context, id leave.RequesterID, year int) (ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[accountKey(id, year)]
	if !ok {
		return ledger.Account{}, fmt.Errorf("%w: account %s/%d", leave.ErrNotFound, id, year)
	}
	return a, nil
}

func (s *Accounts) Put(_ context.Context, a ledger.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[accountKey(a.RequesterID, a.Year)] = a
	return nil
}

func (s *Accounts) ByRequester(_ context.Context, id leave.RequesterID) ([]ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []ledger.Account
	for _, a := range s.accounts {
		if a.RequesterID == id {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Year < out[j].Year })
	return out, nil
}

// =============================================================================
// SCHEDULE
// =============================================================================

type slotKey struct {
	id     leave.RequesterID
	day    string
	period int
}

type Schedule struct {
	mu      sync.RWMutex
	entries []roster.ScheduleEntry
	slots   map[slotKey]bool
}

func NewSchedule() *Schedule {
	return &Schedule{slots: make(map[slotKey]bool)}
}

func (s *Schedule) ByInstructor(_ context.Context, id leave.RequesterID, r leave.DateRange) ([]roster.ScheduleEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []roster.ScheduleEntry
	for _, e := range s.entries {
		if e.InstructorID == id && r.Contains(e.Day) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *Schedule) InRange(_ context.Context, r leave.DateRange) ([]roster.ScheduleEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []roster.ScheduleEntry
	for _, e := range s.entries {
		if r.Contains(e.Day) {
			out = append(out, e)
		}
	}
	return out, nil
}

// AppendIfFree checks every slot before inserting any: either the whole
// batch lands or none of it does.
func (s *Schedule) AppendIfFree(_ context.Context, entries []roster.ScheduleEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range entries {
		k := slotKey{id: e.InstructorID, day: e.Day.String(), period: e.Period}
		if s.slots[k] {
			return &leave.ScheduleConflictError{InstructorID: e.InstructorID, Day: e.Day, Period: e.Period}
		}
	}
	for _, e := range entries {
		s.entries = append(s.entries, e)
		s.slots[slotKey{id: e.InstructorID, day: e.Day.String(), period: e.Period}] = true
	}
	return nil
}

// =============================================================================
// ASSIGNMENTS
// =============================================================================

type Assignments struct {
	mu          sync.RWMutex
	assignments map[string]roster.Assignment
}

func NewAssignments() *Assignments {
	return &Assignments{assignments: make(map[string]roster.Assignment)}
}

func (s *Assignments) Save(_ context.Context, a roster.Assignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assignments[a.ID] = a
	return nil
}

func (s *Assignments) ByRequest(_ context.Context, id leave.RequestID) (roster.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.assignments {
		if a.RequestID == id {
			return a, nil
		}
	}
	return roster.Assignment{}, fmt.Errorf("%w: assignment for request %s", leave.ErrNotFound, id)
}

func (s *Assignments) Escalated(_ context.Context) ([]roster.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []roster.Assignment
	for _, a := range s.assignments {
		if a.Status == roster.AssignmentEscalated {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
