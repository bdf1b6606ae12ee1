/*
request.go - LeaveRequest entity and its status machine

PURPOSE:
  The request entity, its closed status type and the explicit transition
  table, and the precomputed reviewer chain.

REQUEST FLOW:
  Pending ──approve──▶ IntermediateApproved ──approve──▶ Approved
     │                        │
     ├──reject/cancel──▶ Rejected / Cancelled ◀──reject──┘

  Single-reviewer chains skip IntermediateApproved. Rejected and
  Cancelled are terminal from any non-terminal state. No state is ever
  revisited; terminal requests are retained for history.

REVIEWER CHAIN:
  The chain is computed by the approval router at submission time and
  stored on the request. Later routing-configuration changes never
  retroactively alter an in-flight request. Each step records exactly one
  decision (idempotent-once).

SEE ALSO:
  - approval/: computes the chain
  - workflow/: drives transitions
*/
package leave

import "time"

// =============================================================================
// STATUS - Closed variant with explicit transition table
// =============================================================================

type Status string

const (
	StatusPending              Status = "pending"
	StatusIntermediateApproved Status = "intermediate_approved"
	StatusApproved             Status = "approved"
	StatusRejected             Status = "rejected"
	StatusCancelled            Status = "cancelled"
)

// transitions is the full set of legal state changes. Anything absent
// here is structurally impossible.
var transitions = map[Status][]Status{
	StatusPending:              {StatusIntermediateApproved, StatusApproved, StatusRejected, StatusCancelled},
	StatusIntermediateApproved: {StatusApproved, StatusRejected},
	StatusApproved:             {},
	StatusRejected:             {},
	StatusCancelled:            {},
}

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

// CanTransition reports whether s -> to is a legal state change.
func (s Status) CanTransition(to Status) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// =============================================================================
// DECISIONS AND REVIEWER CHAIN
// =============================================================================

type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// ReviewerRole names a chain position. The concrete reviewer is resolved
// from routing configuration when the chain is captured.
type ReviewerRole string

const (
	ReviewerSection     ReviewerRole = "section_reviewer"
	ReviewerDeptHead    ReviewerRole = "department_head"
	ReviewerSeniorAdmin ReviewerRole = "senior_administrator"
)

// ReviewStep is one position in the precomputed reviewer chain. Decision
// stays empty until the step is decided; a decided step is never decided
// again.
type ReviewStep struct {
	Role       ReviewerRole
	ReviewerID RequesterID
	Decision   Decision
	Comment    string
	DecidedAt  *time.Time
}

func (s ReviewStep) Decided() bool { return s.Decision != "" }

// =============================================================================
// LEAVE REQUEST
// =============================================================================

// LeaveRequest is born Pending with its chain captured, mutated only
// through workflow transitions, and never deleted.
type LeaveRequest struct {
	ID          RequestID
	RequesterID RequesterID
	Kind        LeaveKind
	Dates       DateRange
	DayCount    int
	Reason      string
	Status      Status
	Priority    Priority
	Chain       []ReviewStep
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CurrentStep returns the index and a copy of the first undecided chain
// step, or (-1, zero) when every step is decided.
func (r *LeaveRequest) CurrentStep() (int, ReviewStep) {
	for i, step := range r.Chain {
		if !step.Decided() {
			return i, step
		}
	}
	return -1, ReviewStep{}
}

// RemainingSteps counts undecided chain positions.
func (r *LeaveRequest) RemainingSteps() int {
	n := 0
	for _, step := range r.Chain {
		if !step.Decided() {
			n++
		}
	}
	return n
}

func (r *LeaveRequest) Terminal() bool { return r.Status.Terminal() }

// Active reports whether the request still holds or consumes balance:
// pending, intermediate or approved. Used for leave-overlap checks when
// filtering substitute candidates.
func (r *LeaveRequest) Active() bool {
	switch r.Status {
	case StatusPending, StatusIntermediateApproved, StatusApproved:
		return true
	}
	return false
}
