/*
handlers_test.go - HTTP-level tests for the API surface

Exercises the routes end to end against in-memory stores: directory
admin, account opening, the submit/approve/reject/cancel lifecycle, and
the error-to-status mapping.
*/
package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campus/leave-engine/api"
	"github.com/campus/leave-engine/approval"
	"github.com/campus/leave-engine/leave"
	"github.com/campus/leave-engine/ledger"
	"github.com/campus/leave-engine/notify"
	"github.com/campus/leave-engine/roster"
	"github.com/campus/leave-engine/store/memory"
	"github.com/campus/leave-engine/workflow"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type env struct {
	router http.Handler
}

func newEnv(t *testing.T) *env {
	t.Helper()

	directory := memory.NewDirectory()
	requests := memory.NewRequests()
	schedule := memory.NewSchedule()
	assignments := memory.NewAssignments()
	balances := ledger.New(memory.NewAccounts())

	router := approval.NewRouter(approval.Config{
		LongLeaveThreshold: 10,
		SectionReviewers: map[leave.Section]leave.RequesterID{
			"sec-a": "reviewer-a",
		},
		DepartmentHeads: map[leave.Department]leave.RequesterID{
			"science": "head-sci",
		},
		SeniorAdministrator: "senior-1",
	})

	service := workflow.NewService(
		leave.FixedClock{Day: leave.NewDate(2026, time.March, 2)},
		requests,
		directory,
		balances,
		router,
		roster.NewMatcher(schedule, assignments),
		notify.NewCapture(),
		zap.NewNop(),
	)

	h := api.NewHandler(service, balances, directory, assignments, schedule, api.Defaults{
		Allotment:     decimal.NewFromInt(25),
		PeriodsPerDay: 8,
	})
	return &env{router: api.NewRouter(h, []string{"*"})}
}

func (e *env) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}

func (e *env) seedLearner(t *testing.T) {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/requesters", map[string]any{
		"id": "lrn-1", "name": "Learner One", "role": "learner",
		"department": "science", "section": "sec-a",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = e.do(t, http.MethodPost, "/api/requesters/lrn-1/accounts", map[string]any{
		"year": 2026, "total": "30",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

// =============================================================================
// DIRECTORY
// =============================================================================

func TestAPI_RequesterLifecycle(t *testing.T) {
	e := newEnv(t)
	e.seedLearner(t)

	rec := e.do(t, http.MethodGet, "/api/requesters/lrn-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[api.RequesterDTO](t, rec)
	assert.Equal(t, "lrn-1", got.ID)
	assert.Equal(t, "learner", got.Role)
	assert.True(t, got.Active)

	rec = e.do(t, http.MethodGet, "/api/requesters/ghost", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/requesters", map[string]any{
		"id": "x", "name": "X", "role": "wizard",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_Balances(t *testing.T) {
	e := newEnv(t)
	e.seedLearner(t)

	rec := e.do(t, http.MethodGet, "/api/requesters/lrn-1/balances", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	balances := decode[[]api.BalanceDTO](t, rec)
	require.Len(t, balances, 1)
	assert.Equal(t, 2026, balances[0].Year)
	assert.Equal(t, "30", balances[0].Total)
	assert.Equal(t, "30", balances[0].Available)

	rec = e.do(t, http.MethodPost, "/api/requesters/lrn-1/accounts", map[string]any{
		"year": 2026, "total": "not-a-number",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_OpenAccount_OmittedTotalUsesDefaultAllotment(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodPost, "/api/requesters", map[string]any{
		"id": "lrn-9", "name": "Learner Nine", "role": "learner",
		"department": "science", "section": "sec-a",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/requesters/lrn-9/accounts", map[string]any{
		"year": 2026,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	got := decode[api.BalanceDTO](t, rec)
	assert.Equal(t, "25", got.Total)
	assert.Equal(t, "25", got.Available)
}

// =============================================================================
// SCHEDULE
// =============================================================================

func TestAPI_ScheduleEndpoints(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodPost, "/api/requesters", map[string]any{
		"id": "inst-1", "name": "Instructor One", "role": "instructor",
		"department": "science", "section": "sec-a", "subjects": []string{"math"},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	// A period outside 1..periods-per-day is refused
	rec = e.do(t, http.MethodPost, "/api/requesters/inst-1/schedule", map[string]any{
		"entries": []map[string]any{{"day": "2026-03-04", "period": 9}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	rec = e.do(t, http.MethodPost, "/api/requesters/inst-1/schedule", map[string]any{
		"entries": []map[string]any{{"day": "2026-03-04", "period": 0}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Valid batch lands
	rec = e.do(t, http.MethodPost, "/api/requesters/inst-1/schedule", map[string]any{
		"entries": []map[string]any{
			{"day": "2026-03-04", "period": 1, "section": "sec-a", "subject": "math"},
			{"day": "2026-03-04", "period": 2, "section": "sec-a", "subject": "math"},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// Re-booking an occupied slot conflicts
	rec = e.do(t, http.MethodPost, "/api/requesters/inst-1/schedule", map[string]any{
		"entries": []map[string]any{{"day": "2026-03-04", "period": 1}},
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = e.do(t, http.MethodGet, "/api/requesters/inst-1/schedule?from=2026-03-02&to=2026-03-06", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	entries := decode[[]api.ScheduleEntryDTO](t, rec)
	assert.Len(t, entries, 2)
}

// =============================================================================
// REQUEST LIFECYCLE
// =============================================================================

func TestAPI_SubmitApproveFlow(t *testing.T) {
	e := newEnv(t)
	e.seedLearner(t)

	rec := e.do(t, http.MethodPost, "/api/requesters/lrn-1/requests", map[string]any{
		"kind": "personal", "from": "2026-03-04", "to": "2026-03-05", "reason": "family",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	submitted := decode[api.RequestDTO](t, rec)
	assert.Equal(t, "pending", submitted.Status)
	assert.Equal(t, 2, submitted.DayCount)
	require.Len(t, submitted.Chain, 2)

	// Wrong reviewer: forbidden
	rec = e.do(t, http.MethodPost, "/api/requests/"+submitted.ID+"/approve", map[string]any{
		"reviewer_id": "head-sci",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Reject without a comment: bad request
	rec = e.do(t, http.MethodPost, "/api/requests/"+submitted.ID+"/reject", map[string]any{
		"reviewer_id": "reviewer-a",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Walk the chain
	rec = e.do(t, http.MethodPost, "/api/requests/"+submitted.ID+"/approve", map[string]any{
		"reviewer_id": "reviewer-a", "comment": "ok",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "intermediate_approved", decode[api.RequestDTO](t, rec).Status)

	rec = e.do(t, http.MethodPost, "/api/requests/"+submitted.ID+"/approve", map[string]any{
		"reviewer_id": "head-sci",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "approved", decode[api.RequestDTO](t, rec).Status)

	// A second decision on a settled request conflicts
	rec = e.do(t, http.MethodPost, "/api/requests/"+submitted.ID+"/approve", map[string]any{
		"reviewer_id": "head-sci",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Balance reflects the commit
	rec = e.do(t, http.MethodGet, "/api/requesters/lrn-1/balances", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	balances := decode[[]api.BalanceDTO](t, rec)
	require.Len(t, balances, 1)
	assert.Equal(t, "2", balances[0].Used)
	assert.Equal(t, "28", balances[0].Available)
}

func TestAPI_InsufficientBalance_Conflict(t *testing.T) {
	e := newEnv(t)
	e.seedLearner(t)

	rec := e.do(t, http.MethodPost, "/api/requesters/lrn-1/requests", map[string]any{
		"kind": "annual", "from": "2026-03-04", "to": "2026-05-29",
	})
	assert.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
}

func TestAPI_CancelAndInbox(t *testing.T) {
	e := newEnv(t)
	e.seedLearner(t)

	rec := e.do(t, http.MethodPost, "/api/requesters/lrn-1/requests", map[string]any{
		"kind": "sick", "from": "2026-03-04", "to": "2026-03-04", "reason": "flu",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	submitted := decode[api.RequestDTO](t, rec)
	assert.Equal(t, "high", submitted.Priority)

	rec = e.do(t, http.MethodGet, "/api/requesters/reviewer-a/inbox", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	inbox := decode[[]api.RequestDTO](t, rec)
	require.Len(t, inbox, 1)
	assert.Equal(t, submitted.ID, inbox[0].ID)

	// Only the requester may cancel
	rec = e.do(t, http.MethodPost, "/api/requests/"+submitted.ID+"/cancel", map[string]any{
		"requester_id": "reviewer-a",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/requests/"+submitted.ID+"/cancel", map[string]any{
		"requester_id": "lrn-1",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "cancelled", decode[api.RequestDTO](t, rec).Status)
}

func TestAPI_AssignmentEndpoints(t *testing.T) {
	e := newEnv(t)

	// Two instructors; the colleague is free to cover
	for _, body := range []map[string]any{
		{"id": "inst-1", "name": "Instructor One", "role": "instructor",
			"department": "science", "section": "sec-a",
			"subjects": []string{"math"}, "experience_years": 8},
		{"id": "inst-2", "name": "Instructor Two", "role": "instructor",
			"department": "science", "section": "sec-a",
			"subjects": []string{"math"}, "experience_years": 5},
	} {
		rec := e.do(t, http.MethodPost, "/api/requesters", body)
		require.Equal(t, http.StatusCreated, rec.Code)
	}
	rec := e.do(t, http.MethodPost, "/api/requesters/inst-1/accounts", map[string]any{
		"year": 2026, "total": "30",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/requesters/inst-1/requests", map[string]any{
		"kind": "annual", "from": "2026-03-04", "to": "2026-03-05",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	submitted := decode[api.RequestDTO](t, rec)

	rec = e.do(t, http.MethodPost, "/api/requests/"+submitted.ID+"/approve", map[string]any{
		"reviewer_id": "head-sci",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = e.do(t, http.MethodGet, "/api/requests/"+submitted.ID+"/assignment", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[api.AssignmentDTO](t, rec)
	assert.Equal(t, submitted.ID, got.RequestID)

	rec = e.do(t, http.MethodGet, "/api/admin/escalations", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(t, http.MethodGet, "/api/requests/no-such/assignment", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
