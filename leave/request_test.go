package leave_test

import (
	"testing"
	"time"

	"github.com/campus/leave-engine/leave"
)

func TestStatus_TransitionTable(t *testing.T) {
	cases := []struct {
		from leave.Status
		to   leave.Status
		want bool
	}{
		{leave.StatusPending, leave.StatusIntermediateApproved, true},
		{leave.StatusPending, leave.StatusApproved, true},
		{leave.StatusPending, leave.StatusRejected, true},
		{leave.StatusPending, leave.StatusCancelled, true},
		{leave.StatusIntermediateApproved, leave.StatusApproved, true},
		{leave.StatusIntermediateApproved, leave.StatusRejected, true},

		// Cancellation is only possible while fully pending
		{leave.StatusIntermediateApproved, leave.StatusCancelled, false},

		// Terminal states admit nothing
		{leave.StatusApproved, leave.StatusPending, false},
		{leave.StatusApproved, leave.StatusRejected, false},
		{leave.StatusRejected, leave.StatusPending, false},
		{leave.StatusCancelled, leave.StatusApproved, false},

		// No state is ever revisited
		{leave.StatusIntermediateApproved, leave.StatusPending, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransition(tc.to); got != tc.want {
			t.Errorf("CanTransition(%s -> %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestStatus_Terminal(t *testing.T) {
	terminal := []leave.Status{leave.StatusApproved, leave.StatusRejected, leave.StatusCancelled}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	open := []leave.Status{leave.StatusPending, leave.StatusIntermediateApproved}
	for _, s := range open {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func TestLeaveRequest_CurrentStep(t *testing.T) {
	// GIVEN: A two-step chain with the first step decided
	// WHEN: Asking for the current step
	// THEN: The second (undecided) step is current

	now := time.Now()
	r := leave.LeaveRequest{
		Status: leave.StatusIntermediateApproved,
		Chain: []leave.ReviewStep{
			{Role: leave.ReviewerSection, ReviewerID: "rev-1", Decision: leave.DecisionApprove, DecidedAt: &now},
			{Role: leave.ReviewerDeptHead, ReviewerID: "head-1"},
		},
	}

	idx, step := r.CurrentStep()
	if idx != 1 {
		t.Fatalf("CurrentStep index = %d, want 1", idx)
	}
	if step.ReviewerID != "head-1" {
		t.Errorf("current reviewer = %s, want head-1", step.ReviewerID)
	}
	if r.RemainingSteps() != 1 {
		t.Errorf("RemainingSteps = %d, want 1", r.RemainingSteps())
	}
}

func TestLeaveRequest_CurrentStep_AllDecided(t *testing.T) {
	now := time.Now()
	r := leave.LeaveRequest{
		Status: leave.StatusApproved,
		Chain: []leave.ReviewStep{
			{Role: leave.ReviewerDeptHead, ReviewerID: "head-1", Decision: leave.DecisionApprove, DecidedAt: &now},
		},
	}

	idx, _ := r.CurrentStep()
	if idx != -1 {
		t.Errorf("CurrentStep index = %d, want -1 for fully decided chain", idx)
	}
	if r.RemainingSteps() != 0 {
		t.Errorf("RemainingSteps = %d, want 0", r.RemainingSteps())
	}
}

func TestPriorityFor(t *testing.T) {
	high := []leave.LeaveKind{leave.KindSick, leave.KindEmergency}
	for _, k := range high {
		if leave.PriorityFor(k) != leave.PriorityHigh {
			t.Errorf("PriorityFor(%s) should be high", k)
		}
	}
	normal := []leave.LeaveKind{leave.KindPersonal, leave.KindAnnual, leave.KindStudy}
	for _, k := range normal {
		if leave.PriorityFor(k) != leave.PriorityNormal {
			t.Errorf("PriorityFor(%s) should be normal", k)
		}
	}
}
