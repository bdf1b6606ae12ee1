/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

TYPES:
  Requester:
    RequesterDTO, UpsertRequesterRequest

  Leave request:
    RequestDTO, ReviewStepDTO, SubmitRequestRequest, DecideRequest,
    CancelRequest

  Balance:
    BalanceDTO, OpenAccountRequest

  Schedule:
    ScheduleEntryDTO, AddScheduleRequest

  Assignment:
    AssignmentDTO

VALIDATION:
  Validation is done in handlers and the domain layer, not in DTOs.
  DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/campus/leave-engine/leave"
	"github.com/campus/leave-engine/ledger"
	"github.com/campus/leave-engine/roster"
)

// =============================================================================
// REQUESTER TYPES
// =============================================================================

// RequesterDTO represents a directory record in API responses.
type RequesterDTO struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Role            string   `json:"role"`
	Department      string   `json:"department"`
	Section         string   `json:"section"`
	Subjects        []string `json:"subjects,omitempty"`
	ExperienceYears int      `json:"experience_years"`
	Active          bool     `json:"active"`
}

// UpsertRequesterRequest is the request to create or update a requester.
type UpsertRequesterRequest struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Role            string   `json:"role"`
	Department      string   `json:"department"`
	Section         string   `json:"section"`
	Subjects        []string `json:"subjects"`
	ExperienceYears int      `json:"experience_years"`
	Active          *bool    `json:"active"`
}

// =============================================================================
// LEAVE REQUEST TYPES
// =============================================================================

// ReviewStepDTO represents one entry of the reviewer chain.
type ReviewStepDTO struct {
	Role       string `json:"role"`
	ReviewerID string `json:"reviewer_id"`
	Decision   string `json:"decision,omitempty"`
	Comment    string `json:"comment,omitempty"`
	DecidedAt  string `json:"decided_at,omitempty"`
}

// RequestDTO represents a leave request in API responses.
type RequestDTO struct {
	ID          string          `json:"id"`
	RequesterID string          `json:"requester_id"`
	Kind        string          `json:"kind"`
	From        string          `json:"from"`
	To          string          `json:"to"`
	DayCount    int             `json:"day_count"`
	Reason      string          `json:"reason,omitempty"`
	Status      string          `json:"status"`
	Priority    string          `json:"priority"`
	Chain       []ReviewStepDTO `json:"chain"`
	CreatedAt   string          `json:"created_at,omitempty"`
	UpdatedAt   string          `json:"updated_at,omitempty"`
}

// SubmitRequestRequest is the request body for submitting leave.
type SubmitRequestRequest struct {
	Kind   string `json:"kind"`
	From   string `json:"from"`
	To     string `json:"to"`
	Reason string `json:"reason"`
}

// DecideRequest carries an approve or reject decision.
type DecideRequest struct {
	ReviewerID string `json:"reviewer_id"`
	Comment    string `json:"comment"`
}

// CancelRequest identifies the actor cancelling a request.
type CancelRequest struct {
	RequesterID string `json:"requester_id"`
}

// =============================================================================
// BALANCE TYPES
// =============================================================================

// BalanceDTO represents one balance account in API responses.
type BalanceDTO struct {
	RequesterID string `json:"requester_id"`
	Year        int    `json:"year"`
	Total       string `json:"total"`
	Used        string `json:"used"`
	Pending     string `json:"pending"`
	Available   string `json:"available"`
}

// OpenAccountRequest opens (or tops up) a yearly account. An empty Total
// means the server's default allotment.
type OpenAccountRequest struct {
	Year  int    `json:"year"`
	Total string `json:"total"`
}

// =============================================================================
// SCHEDULE TYPES
// =============================================================================

// ScheduleEntryDTO represents one (day, period) timetable booking.
type ScheduleEntryDTO struct {
	InstructorID string `json:"instructor_id,omitempty"`
	Day          string `json:"day"`
	Period       int    `json:"period"`
	Section      string `json:"section,omitempty"`
	Subject      string `json:"subject,omitempty"`
}

// AddScheduleRequest books entries for the instructor in the path.
type AddScheduleRequest struct {
	Entries []ScheduleEntryDTO `json:"entries"`
}

// =============================================================================
// ASSIGNMENT TYPES
// =============================================================================

// AssignmentDTO represents a substitute assignment.
type AssignmentDTO struct {
	ID           string   `json:"id"`
	RequestID    string   `json:"request_id"`
	OriginalID   string   `json:"original_id"`
	SubstituteID string   `json:"substitute_id,omitempty"`
	Subjects     []string `json:"subjects,omitempty"`
	Section      string   `json:"section,omitempty"`
	From         string   `json:"from"`
	To           string   `json:"to"`
	FirstPeriod  int      `json:"first_period"`
	LastPeriod   int      `json:"last_period"`
	Status       string   `json:"status"`
	CreatedAt    string   `json:"created_at,omitempty"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toRequesterDTO(r leave.Requester) RequesterDTO {
	subjects := make([]string, len(r.Subjects))
	for i, s := range r.Subjects {
		subjects[i] = string(s)
	}
	return RequesterDTO{
		ID:              string(r.ID),
		Name:            r.Name,
		Role:            string(r.Role),
		Department:      string(r.Department),
		Section:         string(r.Section),
		Subjects:        subjects,
		ExperienceYears: r.ExperienceYears,
		Active:          r.Active,
	}
}

func toRequestDTO(r leave.LeaveRequest) RequestDTO {
	chain := make([]ReviewStepDTO, len(r.Chain))
	for i, step := range r.Chain {
		dto := ReviewStepDTO{
			Role:       string(step.Role),
			ReviewerID: string(step.ReviewerID),
			Decision:   string(step.Decision),
			Comment:    step.Comment,
		}
		if step.DecidedAt != nil {
			dto.DecidedAt = step.DecidedAt.Format(time.RFC3339)
		}
		chain[i] = dto
	}
	return RequestDTO{
		ID:          string(r.ID),
		RequesterID: string(r.RequesterID),
		Kind:        string(r.Kind),
		From:        r.Dates.From.String(),
		To:          r.Dates.To.String(),
		DayCount:    r.DayCount,
		Reason:      r.Reason,
		Status:      string(r.Status),
		Priority:    r.Priority.String(),
		Chain:       chain,
		CreatedAt:   r.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   r.UpdatedAt.Format(time.RFC3339),
	}
}

func toRequestDTOs(requests []leave.LeaveRequest) []RequestDTO {
	dtos := make([]RequestDTO, len(requests))
	for i, r := range requests {
		dtos[i] = toRequestDTO(r)
	}
	return dtos
}

func toBalanceDTO(a ledger.Account) BalanceDTO {
	return BalanceDTO{
		RequesterID: string(a.RequesterID),
		Year:        a.Year,
		Total:       a.Total.String(),
		Used:        a.Used.String(),
		Pending:     a.Pending.String(),
		Available:   a.Available().String(),
	}
}

func toScheduleEntryDTO(e roster.ScheduleEntry) ScheduleEntryDTO {
	return ScheduleEntryDTO{
		InstructorID: string(e.InstructorID),
		Day:          e.Day.String(),
		Period:       e.Period,
		Section:      string(e.Section),
		Subject:      string(e.Subject),
	}
}

func toAssignmentDTO(a roster.Assignment) AssignmentDTO {
	subjects := make([]string, len(a.Subjects))
	for i, s := range a.Subjects {
		subjects[i] = string(s)
	}
	return AssignmentDTO{
		ID:           a.ID,
		RequestID:    string(a.RequestID),
		OriginalID:   string(a.OriginalID),
		SubstituteID: string(a.SubstituteID),
		Subjects:     subjects,
		Section:      string(a.Section),
		From:         a.Dates.From.String(),
		To:           a.Dates.To.String(),
		FirstPeriod:  a.FirstPeriod,
		LastPeriod:   a.LastPeriod,
		Status:       string(a.Status),
		CreatedAt:    a.CreatedAt.Format(time.RFC3339),
	}
}
