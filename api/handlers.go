/*
handlers.go - HTTP API handlers for the leave engine

PURPOSE:
  Exposes the leave engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Requesters:
    GET    /api/requesters                 List directory
    POST   /api/requesters                 Create or update a requester
    GET    /api/requesters/{id}            Get requester details
    GET    /api/requesters/{id}/requests   Leave history
    GET    /api/requesters/{id}/balances   All yearly balances
    POST   /api/requesters/{id}/accounts   Open a yearly account
    GET    /api/requesters/{id}/inbox      Requests awaiting this reviewer
    GET    /api/requesters/{id}/schedule   Timetable entries in a range
    POST   /api/requesters/{id}/schedule   Book timetable entries

  Requests:
    POST   /api/requesters/{id}/requests   Submit leave
    GET    /api/requests/{id}              Get a request
    POST   /api/requests/{id}/approve      Approve current step
    POST   /api/requests/{id}/reject       Reject (comment mandatory)
    POST   /api/requests/{id}/cancel       Cancel (requester only)
    GET    /api/requests/{id}/assignment   Substitute assignment, if any

  Admin:
    GET    /api/admin/escalations          Unresolved coverage escalations

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input
  3. Call domain logic (workflow service, ledger)
  4. Serialize response
  5. Map errors to status codes

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 403: Actor is not the expected reviewer or owner
  - 404: Resource not found
  - 409: Conflict (already decided, insufficient balance)
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication. Actor identity comes from request bodies,
  which is only acceptable behind a trusted gateway.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/campus/leave-engine/leave"
	"github.com/campus/leave-engine/ledger"
	"github.com/campus/leave-engine/roster"
	"github.com/campus/leave-engine/workflow"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// DirectoryAdmin extends the read-side directory with the write
// operations the admin endpoints need.
type DirectoryAdmin interface {
	workflow.Directory
	Save(ctx context.Context, r leave.Requester) error
	List(ctx context.Context) ([]leave.Requester, error)
}

// Defaults carries the provisioning knobs handlers apply when a request
// omits a field.
type Defaults struct {
	// Allotment is the yearly day total used when an account is opened
	// without an explicit total.
	Allotment decimal.Decimal

	// PeriodsPerDay bounds the valid period index on schedule entries.
	PeriodsPerDay int
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Requests    *workflow.Service
	Balances    *ledger.Ledger
	Directory   DirectoryAdmin
	Assignments roster.AssignmentStore
	Schedule    roster.ScheduleStore
	Defaults    Defaults
}

// NewHandler creates a handler backed by the given components.
func NewHandler(service *workflow.Service, balances *ledger.Ledger, directory DirectoryAdmin, assignments roster.AssignmentStore, schedule roster.ScheduleStore, defaults Defaults) *Handler {
	return &Handler{
		Requests:    service,
		Balances:    balances,
		Directory:   directory,
		Assignments: assignments,
		Schedule:    schedule,
		Defaults:    defaults,
	}
}

// =============================================================================
// REQUESTER HANDLERS
// =============================================================================

// ListRequesters returns the whole directory.
func (h *Handler) ListRequesters(w http.ResponseWriter, r *http.Request) {
	requesters, err := h.Directory.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list requesters", err)
		return
	}

	dtos := make([]RequesterDTO, len(requesters))
	for i, req := range requesters {
		dtos[i] = toRequesterDTO(req)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// UpsertRequester creates or updates a directory record.
func (h *Handler) UpsertRequester(w http.ResponseWriter, r *http.Request) {
	var body UpsertRequesterRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if body.ID == "" || body.Name == "" {
		writeError(w, http.StatusBadRequest, "id and name are required", nil)
		return
	}
	role := leave.Role(body.Role)
	if role != leave.RoleLearner && role != leave.RoleInstructor {
		writeError(w, http.StatusBadRequest, "role must be learner or instructor", nil)
		return
	}

	subjects := make([]leave.Subject, len(body.Subjects))
	for i, s := range body.Subjects {
		subjects[i] = leave.Subject(s)
	}
	active := true
	if body.Active != nil {
		active = *body.Active
	}

	requester := leave.Requester{
		ID:              leave.RequesterID(body.ID),
		Name:            body.Name,
		Role:            role,
		Department:      leave.Department(body.Department),
		Section:         leave.Section(body.Section),
		Subjects:        subjects,
		ExperienceYears: body.ExperienceYears,
		Active:          active,
	}
	if err := h.Directory.Save(r.Context(), requester); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save requester", err)
		return
	}
	writeJSON(w, http.StatusCreated, toRequesterDTO(requester))
}

// GetRequester returns a single directory record.
func (h *Handler) GetRequester(w http.ResponseWriter, r *http.Request) {
	id := leave.RequesterID(chi.URLParam(r, "id"))
	requester, err := h.Directory.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get requester", err)
		return
	}
	writeJSON(w, http.StatusOK, toRequesterDTO(requester))
}

// =============================================================================
// BALANCE HANDLERS
// =============================================================================

// OpenAccount opens (or tops up) a yearly balance account. An omitted
// total falls back to the configured default allotment.
func (h *Handler) OpenAccount(w http.ResponseWriter, r *http.Request) {
	id := leave.RequesterID(chi.URLParam(r, "id"))

	var body OpenAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	total := h.Defaults.Allotment
	if body.Total != "" {
		var err error
		total, err = decimal.NewFromString(body.Total)
		if err != nil {
			writeError(w, http.StatusBadRequest, "total must be a decimal number", err)
			return
		}
	}

	if err := h.Balances.Open(r.Context(), id, body.Year, total); err != nil {
		writeDomainError(w, "Failed to open account", err)
		return
	}
	account, err := h.Balances.Balance(r.Context(), id, body.Year)
	if err != nil {
		writeDomainError(w, "Failed to read account", err)
		return
	}
	writeJSON(w, http.StatusCreated, toBalanceDTO(account))
}

// GetBalances returns every yearly account of a requester.
func (h *Handler) GetBalances(w http.ResponseWriter, r *http.Request) {
	id := leave.RequesterID(chi.URLParam(r, "id"))
	accounts, err := h.Balances.Accounts(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to list balances", err)
		return
	}

	dtos := make([]BalanceDTO, len(accounts))
	for i, a := range accounts {
		dtos[i] = toBalanceDTO(a)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// LEAVE REQUEST HANDLERS
// =============================================================================

// SubmitRequest submits a leave request for the requester in the path.
func (h *Handler) SubmitRequest(w http.ResponseWriter, r *http.Request) {
	id := leave.RequesterID(chi.URLParam(r, "id"))

	var body SubmitRequestRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	dates, err := parseRange(body.From, body.To)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date range", err)
		return
	}

	request, err := h.Requests.Submit(r.Context(), id, leave.LeaveKind(body.Kind), dates, body.Reason)
	if err != nil {
		writeDomainError(w, "Failed to submit request", err)
		return
	}
	writeJSON(w, http.StatusCreated, toRequestDTO(request))
}

// GetRequest returns a single leave request with its reviewer chain.
func (h *Handler) GetRequest(w http.ResponseWriter, r *http.Request) {
	id := leave.RequestID(chi.URLParam(r, "id"))
	request, err := h.Requests.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get request", err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(request))
}

// ListRequests returns a requester's leave history, newest first.
func (h *Handler) ListRequests(w http.ResponseWriter, r *http.Request) {
	id := leave.RequesterID(chi.URLParam(r, "id"))
	requests, err := h.Requests.ByRequester(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to list requests", err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTOs(requests))
}

// Inbox returns requests waiting on the given reviewer, high priority
// first.
func (h *Handler) Inbox(w http.ResponseWriter, r *http.Request) {
	id := leave.RequesterID(chi.URLParam(r, "id"))
	requests, err := h.Requests.Inbox(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to load inbox", err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTOs(requests))
}

// ApproveRequest records an approval by the current reviewer.
func (h *Handler) ApproveRequest(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, leave.DecisionApprove)
}

// RejectRequest records a rejection. The comment is mandatory and the
// domain layer enforces that.
func (h *Handler) RejectRequest(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, leave.DecisionReject)
}

func (h *Handler) decide(w http.ResponseWriter, r *http.Request, decision leave.Decision) {
	id := leave.RequestID(chi.URLParam(r, "id"))

	var body DecideRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if body.ReviewerID == "" {
		writeError(w, http.StatusBadRequest, "reviewer_id is required", nil)
		return
	}

	request, err := h.Requests.Transition(r.Context(), id, leave.RequesterID(body.ReviewerID), decision, body.Comment)
	if err != nil {
		writeDomainError(w, "Failed to record decision", err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(request))
}

// CancelRequest cancels a still-pending request on behalf of its owner.
func (h *Handler) CancelRequest(w http.ResponseWriter, r *http.Request) {
	id := leave.RequestID(chi.URLParam(r, "id"))

	var body CancelRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if body.RequesterID == "" {
		writeError(w, http.StatusBadRequest, "requester_id is required", nil)
		return
	}

	request, err := h.Requests.Cancel(r.Context(), id, leave.RequesterID(body.RequesterID))
	if err != nil {
		writeDomainError(w, "Failed to cancel request", err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(request))
}

// =============================================================================
// SCHEDULE HANDLERS
// =============================================================================

// GetSchedule lists an instructor's bookings between ?from and ?to.
func (h *Handler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	id := leave.RequesterID(chi.URLParam(r, "id"))
	dates, err := parseRange(r.URL.Query().Get("from"), r.URL.Query().Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date range", err)
		return
	}

	entries, err := h.Schedule.ByInstructor(r.Context(), id, dates)
	if err != nil {
		writeDomainError(w, "Failed to load schedule", err)
		return
	}

	dtos := make([]ScheduleEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toScheduleEntryDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// AddSchedule books timetable entries for the instructor in the path.
// The whole batch lands atomically or not at all.
func (h *Handler) AddSchedule(w http.ResponseWriter, r *http.Request) {
	id := leave.RequesterID(chi.URLParam(r, "id"))

	var body AddScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if len(body.Entries) == 0 {
		writeError(w, http.StatusBadRequest, "entries are required", nil)
		return
	}

	entries := make([]roster.ScheduleEntry, len(body.Entries))
	for i, e := range body.Entries {
		day, err := leave.ParseDate(e.Day)
		if err != nil {
			writeError(w, http.StatusBadRequest, "day must be YYYY-MM-DD", err)
			return
		}
		if e.Period < 1 || e.Period > h.Defaults.PeriodsPerDay {
			writeError(w, http.StatusBadRequest,
				fmt.Sprintf("period must be between 1 and %d", h.Defaults.PeriodsPerDay), nil)
			return
		}
		entries[i] = roster.ScheduleEntry{
			InstructorID: id,
			Day:          day,
			Period:       e.Period,
			Section:      leave.Section(e.Section),
			Subject:      leave.Subject(e.Subject),
		}
	}

	if err := h.Schedule.AppendIfFree(r.Context(), entries); err != nil {
		writeDomainError(w, "Failed to book schedule", err)
		return
	}

	dtos := make([]ScheduleEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toScheduleEntryDTO(e)
	}
	writeJSON(w, http.StatusCreated, dtos)
}

// =============================================================================
// ASSIGNMENT HANDLERS
// =============================================================================

// GetAssignment returns the substitute assignment tied to a request.
func (h *Handler) GetAssignment(w http.ResponseWriter, r *http.Request) {
	id := leave.RequestID(chi.URLParam(r, "id"))
	assignment, err := h.Assignments.ByRequest(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get assignment", err)
		return
	}
	writeJSON(w, http.StatusOK, toAssignmentDTO(assignment))
}

// ListEscalations returns coverage gaps no substitute could fill.
func (h *Handler) ListEscalations(w http.ResponseWriter, r *http.Request) {
	assignments, err := h.Assignments.Escalated(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list escalations", err)
		return
	}

	dtos := make([]AssignmentDTO, len(assignments))
	for i, a := range assignments {
		dtos[i] = toAssignmentDTO(a)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// HELPERS
// =============================================================================

func parseRange(from, to string) (leave.DateRange, error) {
	f, err := leave.ParseDate(from)
	if err != nil {
		return leave.DateRange{}, err
	}
	t, err := leave.ParseDate(to)
	if err != nil {
		return leave.DateRange{}, err
	}
	return leave.DateRange{From: f, To: t}, nil
}

// writeDomainError maps domain errors onto HTTP status codes. Anything
// unrecognized is a 500.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case leave.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case errors.Is(err, leave.ErrValidation):
		writeError(w, http.StatusBadRequest, message, err)
	case errors.Is(err, leave.ErrUnauthorizedTransition):
		writeError(w, http.StatusForbidden, message, err)
	case errors.Is(err, leave.ErrInsufficientBalance),
		errors.Is(err, leave.ErrConflict),
		errors.Is(err, leave.ErrScheduleConflict):
		writeError(w, http.StatusConflict, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
