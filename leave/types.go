/*
Package leave provides the shared data model for the leave engine.

PURPOSE:
  This package contains the domain types every other package speaks:
  requesters and their roles, calendar dates and inclusive date ranges,
  the leave request entity with its closed status machine, and the
  error taxonomy.

KEY CONCEPTS IN THIS FILE (types.go):
  - Requester: A person who can submit leave (learner or instructor)
  - Role: Closed set of requester roles
  - LeaveKind: What kind of absence is being requested
  - Priority: Derived urgency, used for inbox ordering

DESIGN PRINCIPLES:
  1. Closed variants: roles, kinds and statuses are typed constants,
     never free-form strings checked at runtime
  2. Type safety: strong ID types prevent mixing requester/request IDs
  3. Immutability: Requester is owned externally and never mutated here

SEE ALSO:
  - request.go: LeaveRequest entity and status machine
  - date.go: Date and DateRange
  - errors.go: Error taxonomy
*/
package leave

// =============================================================================
// IDENTIFIERS
// =============================================================================

type RequesterID string
type RequestID string
type Department string
type Section string
type Subject string

// =============================================================================
// ROLES
// =============================================================================

type Role string

const (
	RoleLearner    Role = "learner"
	RoleInstructor Role = "instructor"
)

// =============================================================================
// REQUESTER - Owned externally, read-only for the core
// =============================================================================

// Requester is the person submitting leave. For learners, Section is the
// home section; for instructors it is the teaching section assignment and
// Subjects is the capability set.
type Requester struct {
	ID              RequesterID
	Name            string
	Role            Role
	Department      Department
	Section         Section
	Subjects        []Subject
	ExperienceYears int
	Active          bool
}

// Teaches reports whether the requester can cover the given subject.
func (r Requester) Teaches(s Subject) bool {
	for _, sub := range r.Subjects {
		if sub == s {
			return true
		}
	}
	return false
}

// SubjectOverlap returns how many of the required subjects the requester
// can cover.
func (r Requester) SubjectOverlap(required []Subject) int {
	n := 0
	for _, s := range required {
		if r.Teaches(s) {
			n++
		}
	}
	return n
}

// =============================================================================
// LEAVE KIND AND PRIORITY
// =============================================================================

type LeaveKind string

const (
	KindSick      LeaveKind = "sick"
	KindPersonal  LeaveKind = "personal"
	KindAnnual    LeaveKind = "annual"
	KindEmergency LeaveKind = "emergency"
	KindStudy     LeaveKind = "study"
)

func (k LeaveKind) Valid() bool {
	switch k {
	case KindSick, KindPersonal, KindAnnual, KindEmergency, KindStudy:
		return true
	}
	return false
}

type Priority int

const (
	PriorityNormal Priority = iota
	PriorityHigh
)

func (p Priority) String() string {
	if p == PriorityHigh {
		return "high"
	}
	return "normal"
}

// PriorityFor derives inbox priority from the leave kind. Unplanned
// absences need reviewer attention before planned ones.
func PriorityFor(kind LeaveKind) Priority {
	switch kind {
	case KindSick, KindEmergency:
		return PriorityHigh
	default:
		return PriorityNormal
	}
}
