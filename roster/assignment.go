package roster

import (
	"context"
	"time"

	"github.com/campus/leave-engine/leave"
)

// =============================================================================
// SUBSTITUTE ASSIGNMENT
// =============================================================================

type AssignmentStatus string

const (
	// AssignmentAssigned: a substitute was booked for every coverage slot.
	AssignmentAssigned AssignmentStatus = "assigned"

	// AssignmentEscalated: no candidate validated; a human must arrange
	// coverage. SubstituteID is empty.
	AssignmentEscalated AssignmentStatus = "escalated"
)

// Assignment is created only as a side effect of a leave request reaching
// final approval for an instructor requester.
type Assignment struct {
	ID           string
	RequestID    leave.RequestID
	OriginalID   leave.RequesterID
	SubstituteID leave.RequesterID // empty when escalated
	Subjects     []leave.Subject
	Section      leave.Section
	Dates        leave.DateRange
	FirstPeriod  int
	LastPeriod   int
	Status       AssignmentStatus
	CreatedAt    time.Time
}

type AssignmentStore interface {
	Save(ctx context.Context, a Assignment) error

	// ByRequest returns the assignment created for a request.
	// leave.ErrNotFound when none exists.
	ByRequest(ctx context.Context, id leave.RequestID) (Assignment, error)

	// Escalated returns assignments still waiting for human coverage.
	Escalated(ctx context.Context) ([]Assignment, error)
}
