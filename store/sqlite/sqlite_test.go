package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus/leave-engine/leave"
	"github.com/campus/leave-engine/ledger"
	"github.com/campus/leave-engine/roster"
	"github.com/campus/leave-engine/store/sqlite"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestDirectory_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	d := store.Directory()

	r := leave.Requester{
		ID: "inst-1", Name: "Instructor One", Role: leave.RoleInstructor,
		Department: "science", Section: "sec-a",
		Subjects: []leave.Subject{"math", "physics"}, ExperienceYears: 8, Active: true,
	}
	require.NoError(t, d.Save(ctx, r))

	got, err := d.Get(ctx, "inst-1")
	require.NoError(t, err)
	assert.Equal(t, r, got)

	_, err = d.Get(ctx, "ghost")
	assert.ErrorIs(t, err, leave.ErrNotFound)

	// Upsert replaces in place
	r.Active = false
	require.NoError(t, d.Save(ctx, r))
	got, err = d.Get(ctx, "inst-1")
	require.NoError(t, err)
	assert.False(t, got.Active)

	learner := leave.Requester{ID: "lrn-1", Name: "L", Role: leave.RoleLearner, Department: "science", Section: "sec-a", Active: true}
	require.NoError(t, d.Save(ctx, learner))

	instructors, err := d.Instructors(ctx)
	require.NoError(t, err)
	require.Len(t, instructors, 1)
	assert.Equal(t, leave.RequesterID("inst-1"), instructors[0].ID)
}

func TestRequests_RoundTripAndPendingFor(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	q := store.Requests()

	now := time.Now().UTC().Truncate(time.Second)
	r := leave.LeaveRequest{
		ID:          "req-1",
		RequesterID: "lrn-1",
		Kind:        leave.KindPersonal,
		Dates: leave.DateRange{
			From: leave.NewDate(2026, time.March, 4),
			To:   leave.NewDate(2026, time.March, 5),
		},
		DayCount: 2,
		Reason:   "family",
		Status:   leave.StatusPending,
		Priority: leave.PriorityNormal,
		Chain: []leave.ReviewStep{
			{Role: leave.ReviewerSection, ReviewerID: "reviewer-a"},
			{Role: leave.ReviewerDeptHead, ReviewerID: "head-sci"},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, q.Save(ctx, r))

	got, err := q.Get(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, r.Dates, got.Dates)
	assert.Equal(t, r.Chain, got.Chain)
	assert.Equal(t, r.Status, got.Status)

	// Step 0 reviewer sees it, step 1 reviewer does not yet
	pending, err := q.PendingFor(ctx, "reviewer-a")
	require.NoError(t, err)
	assert.Len(t, pending, 1)
	pending, err = q.PendingFor(ctx, "head-sci")
	require.NoError(t, err)
	assert.Empty(t, pending)

	// Decide step 0; the request moves to the head's inbox
	decidedAt := now
	got.Chain[0].Decision = leave.DecisionApprove
	got.Chain[0].DecidedAt = &decidedAt
	got.Status = leave.StatusIntermediateApproved
	require.NoError(t, q.Save(ctx, got))

	pending, err = q.PendingFor(ctx, "head-sci")
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	active, err := q.ActiveInRange(ctx, leave.DateRange{
		From: leave.NewDate(2026, time.March, 5),
		To:   leave.NewDate(2026, time.March, 9),
	})
	require.NoError(t, err)
	assert.Len(t, active, 1, "overlap on a single shared day counts")
}

func TestAccounts_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	l := ledger.New(store.Accounts())
	require.NoError(t, l.Open(ctx, "inst-1", 2026, decimal.NewFromInt(30)))
	require.NoError(t, l.Reserve(ctx, "inst-1", 2026, decimal.NewFromInt(3)))
	require.NoError(t, l.Commit(ctx, "inst-1", 2026, decimal.NewFromInt(3)))

	a, err := l.Balance(ctx, "inst-1", 2026)
	require.NoError(t, err)
	assert.True(t, a.Used.Equal(decimal.NewFromInt(3)))
	assert.True(t, a.Available().Equal(decimal.NewFromInt(27)))
}

func TestSchedule_AppendIfFree_UniqueSlotIndex(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	s := store.Schedule()

	monday := leave.NewDate(2026, time.March, 9)
	require.NoError(t, s.AppendIfFree(ctx, []roster.ScheduleEntry{
		{InstructorID: "inst-1", Day: monday, Period: 1, Section: "sec-a", Subject: "math"},
	}))

	// Colliding batch rolls back whole
	err := s.AppendIfFree(ctx, []roster.ScheduleEntry{
		{InstructorID: "inst-1", Day: monday, Period: 2, Section: "sec-a", Subject: "math"},
		{InstructorID: "inst-1", Day: monday, Period: 1, Section: "sec-b", Subject: "math"},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, leave.ErrScheduleConflict))

	entries, err := s.ByInstructor(ctx, "inst-1", leave.DateRange{From: monday, To: monday})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestAssignments_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	s := store.Assignments()

	a := roster.Assignment{
		ID:         "asg-1",
		RequestID:  "req-1",
		OriginalID: "inst-1",
		Subjects:   []leave.Subject{"math"},
		Section:    "sec-a",
		Dates: leave.DateRange{
			From: leave.NewDate(2026, time.March, 9),
			To:   leave.NewDate(2026, time.March, 10),
		},
		FirstPeriod: 1,
		LastPeriod:  4,
		Status:      roster.AssignmentEscalated,
		CreatedAt:   time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, s.Save(ctx, a))

	escalated, err := s.Escalated(ctx)
	require.NoError(t, err)
	require.Len(t, escalated, 1)
	assert.Empty(t, escalated[0].SubstituteID)

	// Resolving the escalation updates in place
	a.SubstituteID = "inst-2"
	a.Status = roster.AssignmentAssigned
	require.NoError(t, s.Save(ctx, a))

	got, err := s.ByRequest(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, roster.AssignmentAssigned, got.Status)
	assert.Equal(t, leave.RequesterID("inst-2"), got.SubstituteID)

	escalated, err = s.Escalated(ctx)
	require.NoError(t, err)
	assert.Empty(t, escalated)
}
