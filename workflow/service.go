/*
Package workflow drives the leave-request lifecycle.

PURPOSE:
  Orchestrates the pieces: submission reserves balance and captures the
  reviewer chain, reviewer decisions walk the chain, terminal transitions
  settle the ledger (commit or release, exactly once), and final approval
  of an instructor request books a substitute.

REQUEST FLOW:
  Submit        route chain ──▶ reserve days ──▶ save Pending
  Transition    authorize step ──▶ decide ──▶
                  reject:  release + Rejected
                  approve: advance or commit + Approved (+ substitute)
  Cancel        requester only, Pending only ──▶ release + Cancelled

ATOMICITY:
  Validation, authorization and balance errors abort with no partial
  state. When persisting a terminal transition fails after the ledger
  settled, the settlement is compensated (uncommit or re-reserve) so the
  stored request and the account stay paired and the transition can be
  retried. At most one transition is in flight per request (per-request
  mutex). Notifications are dispatched strictly after the mutation
  commits and the request lock is released; they are fire-and-forget and
  can never fail a transition. Substitute matching failures never revert
  the approval - they degrade to an escalated assignment.

SEE ALSO:
  - ledger/: balance operations
  - approval/: chain routing
  - roster/: substitute matching
*/
package workflow

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/campus/leave-engine/approval"
	"github.com/campus/leave-engine/leave"
	"github.com/campus/leave-engine/ledger"
	"github.com/campus/leave-engine/notify"
	"github.com/campus/leave-engine/roster"
)

// =============================================================================
// PERSISTENCE BOUNDARIES
// =============================================================================

type RequestStore interface {
	// Save upserts the request.
	Save(ctx context.Context, r leave.LeaveRequest) error

	// Get returns a request. leave.ErrNotFound when absent.
	Get(ctx context.Context, id leave.RequestID) (leave.LeaveRequest, error)

	// ByRequester returns all requests of one requester, newest first.
	ByRequester(ctx context.Context, id leave.RequesterID) ([]leave.LeaveRequest, error)

	// PendingFor returns non-terminal requests whose current chain step
	// is assigned to the reviewer.
	PendingFor(ctx context.Context, reviewerID leave.RequesterID) ([]leave.LeaveRequest, error)

	// ActiveInRange returns pending, intermediate and approved requests
	// overlapping the range. Used for substitute-candidate filtering.
	ActiveInRange(ctx context.Context, r leave.DateRange) ([]leave.LeaveRequest, error)
}

// Directory is the read-only view of requesters, owned externally.
type Directory interface {
	Get(ctx context.Context, id leave.RequesterID) (leave.Requester, error)
	Instructors(ctx context.Context) ([]leave.Requester, error)
}

// =============================================================================
// SERVICE
// =============================================================================

type Service struct {
	clock      leave.Clock
	requests   RequestStore
	directory  Directory
	balances   *ledger.Ledger
	router     *approval.Router
	matcher    *roster.Matcher
	dispatcher notify.Dispatcher
	log        *zap.Logger

	mu    sync.Mutex
	locks map[leave.RequestID]*sync.Mutex
}

func NewService(
	clock leave.Clock,
	requests RequestStore,
	directory Directory,
	balances *ledger.Ledger,
	router *approval.Router,
	matcher *roster.Matcher,
	dispatcher notify.Dispatcher,
	log *zap.Logger,
) *Service {
	return &Service{
		clock:      clock,
		requests:   requests,
		directory:  directory,
		balances:   balances,
		router:     router,
		matcher:    matcher,
		dispatcher: dispatcher,
		log:        log,
		locks:      make(map[leave.RequestID]*sync.Mutex),
	}
}

// lockFor returns the per-request mutex, creating it on first use. At
// most one transition is in flight per request.
func (s *Service) lockFor(id leave.RequestID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.locks[id]; !ok {
		s.locks[id] = &sync.Mutex{}
	}
	return s.locks[id]
}

// =============================================================================
// SUBMIT
// =============================================================================

func (s *Service) Submit(ctx context.Context, requesterID leave.RequesterID, kind leave.LeaveKind, dates leave.DateRange, reason string) (leave.LeaveRequest, error) {
	if !kind.Valid() {
		return leave.LeaveRequest{}, &leave.ValidationError{Field: "kind", Reason: "unknown leave kind"}
	}
	if !dates.Valid() {
		return leave.LeaveRequest{}, &leave.ValidationError{Field: "dates", Reason: "end before start or missing"}
	}
	if dates.From.Before(s.clock.Today()) {
		return leave.LeaveRequest{}, &leave.ValidationError{Field: "from", Reason: "leave cannot start in the past"}
	}

	requester, err := s.directory.Get(ctx, requesterID)
	if err != nil {
		return leave.LeaveRequest{}, err
	}
	if !requester.Active {
		return leave.LeaveRequest{}, &leave.ValidationError{Field: "requester", Reason: "requester is inactive"}
	}

	dayCount := dates.Days()

	// Routing runs before the reservation so an unassigned section or
	// department surfaces without touching the ledger.
	chain, err := s.router.Route(requester, dayCount)
	if err != nil {
		return leave.LeaveRequest{}, err
	}

	year := dates.From.Year()
	days := decimal.NewFromInt(int64(dayCount))
	if err := s.balances.Reserve(ctx, requesterID, year, days); err != nil {
		return leave.LeaveRequest{}, err
	}

	now := time.Now().UTC()
	request := leave.LeaveRequest{
		ID:          leave.RequestID(uuid.NewString()),
		RequesterID: requesterID,
		Kind:        kind,
		Dates:       dates,
		DayCount:    dayCount,
		Reason:      reason,
		Status:      leave.StatusPending,
		Priority:    leave.PriorityFor(kind),
		Chain:       chain,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.requests.Save(ctx, request); err != nil {
		// Undo the reservation so the failed submission leaves no trace.
		if relErr := s.balances.Release(ctx, requesterID, year, days); relErr != nil {
			s.log.Error("failed to release reservation after save failure",
				zap.String("request_id", string(request.ID)), zap.Error(relErr))
		}
		return leave.LeaveRequest{}, fmt.Errorf("save request: %w", err)
	}

	s.dispatcher.Dispatch(notify.EventSubmitted, s.payload(request))
	return request, nil
}

// =============================================================================
// TRANSITION
// =============================================================================

func (s *Service) Transition(ctx context.Context, requestID leave.RequestID, actorID leave.RequesterID, decision leave.Decision, comment string) (leave.LeaveRequest, error) {
	lock := s.lockFor(requestID)
	lock.Lock()

	request, events, err := s.transitionLocked(ctx, requestID, actorID, decision, comment)

	// The request lock is released before any dispatch; notifications
	// happen strictly after the mutation has committed.
	lock.Unlock()

	for _, ev := range events {
		s.dispatcher.Dispatch(ev.event, ev.payload)
	}
	return request, err
}

type pendingEvent struct {
	event   notify.Event
	payload notify.Payload
}

func (s *Service) transitionLocked(ctx context.Context, requestID leave.RequestID, actorID leave.RequesterID, decision leave.Decision, comment string) (leave.LeaveRequest, []pendingEvent, error) {
	request, err := s.requests.Get(ctx, requestID)
	if err != nil {
		return leave.LeaveRequest{}, nil, err
	}

	if request.Terminal() {
		return leave.LeaveRequest{}, nil, fmt.Errorf("%w: request %s is already %s", leave.ErrConflict, requestID, request.Status)
	}

	idx, step := request.CurrentStep()
	if idx < 0 {
		return leave.LeaveRequest{}, nil, fmt.Errorf("%w: no undecided step on request %s", leave.ErrConflict, requestID)
	}
	if step.ReviewerID != actorID {
		return leave.LeaveRequest{}, nil, fmt.Errorf("%w: %s is not the reviewer for the current step", leave.ErrUnauthorizedTransition, actorID)
	}

	now := time.Now().UTC()
	year := request.Dates.From.Year()
	days := decimal.NewFromInt(int64(request.DayCount))

	switch decision {
	case leave.DecisionReject:
		if comment == "" {
			return leave.LeaveRequest{}, nil, &leave.ValidationError{Field: "comment", Reason: "rejection requires a comment"}
		}
		if err := s.balances.Release(ctx, request.RequesterID, year, days); err != nil {
			return leave.LeaveRequest{}, nil, err
		}
		request.Chain[idx].Decision = leave.DecisionReject
		request.Chain[idx].Comment = comment
		request.Chain[idx].DecidedAt = &now
		request.Status = leave.StatusRejected
		request.UpdatedAt = now
		if err := s.requests.Save(ctx, request); err != nil {
			// Restore the hold so the stored request stays paired with the
			// ledger and the rejection can be retried.
			if resErr := s.balances.Reserve(ctx, request.RequesterID, year, days); resErr != nil {
				s.log.Error("failed to restore reservation after save failure",
					zap.String("request_id", string(request.ID)), zap.Error(resErr))
			}
			return leave.LeaveRequest{}, nil, fmt.Errorf("save request: %w", err)
		}
		return request, []pendingEvent{{notify.EventRejected, s.payload(request)}}, nil

	case leave.DecisionApprove:
		request.Chain[idx].Decision = leave.DecisionApprove
		request.Chain[idx].Comment = comment
		request.Chain[idx].DecidedAt = &now
		request.UpdatedAt = now

		if request.RemainingSteps() > 0 {
			request.Status = leave.StatusIntermediateApproved
			if err := s.requests.Save(ctx, request); err != nil {
				return leave.LeaveRequest{}, nil, fmt.Errorf("save request: %w", err)
			}
			return request, []pendingEvent{{notify.EventIntermediateApproved, s.payload(request)}}, nil
		}

		if err := s.balances.Commit(ctx, request.RequesterID, year, days); err != nil {
			return leave.LeaveRequest{}, nil, err
		}
		request.Status = leave.StatusApproved
		if err := s.requests.Save(ctx, request); err != nil {
			// Move the days back to pending: the stored request is still
			// undecided, so the commit must not stand.
			if uncErr := s.balances.Uncommit(ctx, request.RequesterID, year, days); uncErr != nil {
				s.log.Error("failed to uncommit after save failure",
					zap.String("request_id", string(request.ID)), zap.Error(uncErr))
			}
			return leave.LeaveRequest{}, nil, fmt.Errorf("save request: %w", err)
		}

		events := []pendingEvent{{notify.EventApproved, s.payload(request)}}
		events = append(events, s.coverApprovedLeave(ctx, request)...)
		return request, events, nil

	default:
		return leave.LeaveRequest{}, nil, &leave.ValidationError{Field: "decision", Reason: "unknown decision"}
	}
}

// coverApprovedLeave books a substitute for an approved instructor
// request. It runs inside the same transition but its failure never
// reverts the approval: infrastructure errors degrade to the same
// out-of-band alert an exhausted candidate pool raises.
func (s *Service) coverApprovedLeave(ctx context.Context, request leave.LeaveRequest) []pendingEvent {
	requester, err := s.directory.Get(ctx, request.RequesterID)
	if err != nil {
		s.log.Error("requester lookup failed during coverage",
			zap.String("request_id", string(request.ID)), zap.Error(err))
		return []pendingEvent{{notify.EventNoSubstitute, s.payload(request)}}
	}
	if requester.Role != leave.RoleInstructor {
		return nil
	}

	candidates, err := s.candidates(ctx, request)
	if err != nil {
		s.log.Error("substitute candidate lookup failed",
			zap.String("request_id", string(request.ID)), zap.Error(err))
		// Matching an empty pool escalates, so the coverage gap lands in
		// the escalation queue instead of living only in the logs.
		candidates = nil
	}

	assignment, err := s.matcher.Assign(ctx, request, requester, candidates)
	if err != nil {
		s.log.Error("substitute matching failed",
			zap.String("request_id", string(request.ID)), zap.Error(err))
		return []pendingEvent{{notify.EventNoSubstitute, s.payload(request)}}
	}

	payload := s.payload(request)
	payload["assignment_id"] = assignment.ID
	if assignment.Status == roster.AssignmentEscalated {
		return []pendingEvent{{notify.EventNoSubstitute, payload}}
	}
	payload["substitute_id"] = string(assignment.SubstituteID)
	return []pendingEvent{{notify.EventSubstituteAssigned, payload}}
}

// candidates assembles the matcher's immutable input: every instructor
// except the requester, with the spans of their own active leave.
func (s *Service) candidates(ctx context.Context, request leave.LeaveRequest) ([]roster.Candidate, error) {
	instructors, err := s.directory.Instructors(ctx)
	if err != nil {
		return nil, err
	}

	active, err := s.requests.ActiveInRange(ctx, request.Dates)
	if err != nil {
		return nil, err
	}
	onLeave := make(map[leave.RequesterID][]leave.DateRange)
	for _, r := range active {
		onLeave[r.RequesterID] = append(onLeave[r.RequesterID], r.Dates)
	}

	var candidates []roster.Candidate
	for _, inst := range instructors {
		if inst.ID == request.RequesterID {
			continue
		}
		candidates = append(candidates, roster.Candidate{
			Requester: inst,
			OnLeave:   onLeave[inst.ID],
		})
	}
	return candidates, nil
}

// =============================================================================
// CANCEL
// =============================================================================

// Cancel withdraws a request. Only the original requester may cancel,
// and only while Pending: once any reviewer has acted, cancellation is
// disallowed.
func (s *Service) Cancel(ctx context.Context, requestID leave.RequestID, actorID leave.RequesterID) (leave.LeaveRequest, error) {
	lock := s.lockFor(requestID)
	lock.Lock()

	request, err := s.cancelLocked(ctx, requestID, actorID)
	lock.Unlock()

	if err != nil {
		return leave.LeaveRequest{}, err
	}
	s.dispatcher.Dispatch(notify.EventCancelled, s.payload(request))
	return request, nil
}

func (s *Service) cancelLocked(ctx context.Context, requestID leave.RequestID, actorID leave.RequesterID) (leave.LeaveRequest, error) {
	request, err := s.requests.Get(ctx, requestID)
	if err != nil {
		return leave.LeaveRequest{}, err
	}
	if request.Status != leave.StatusPending {
		return leave.LeaveRequest{}, fmt.Errorf("%w: only pending requests can be cancelled, status is %s", leave.ErrConflict, request.Status)
	}
	if request.RequesterID != actorID {
		return leave.LeaveRequest{}, fmt.Errorf("%w: only the requester may cancel", leave.ErrUnauthorizedTransition)
	}

	year := request.Dates.From.Year()
	days := decimal.NewFromInt(int64(request.DayCount))
	if err := s.balances.Release(ctx, request.RequesterID, year, days); err != nil {
		return leave.LeaveRequest{}, err
	}

	now := time.Now().UTC()
	request.Status = leave.StatusCancelled
	request.UpdatedAt = now
	if err := s.requests.Save(ctx, request); err != nil {
		if resErr := s.balances.Reserve(ctx, request.RequesterID, year, days); resErr != nil {
			s.log.Error("failed to restore reservation after save failure",
				zap.String("request_id", string(request.ID)), zap.Error(resErr))
		}
		return leave.LeaveRequest{}, fmt.Errorf("save request: %w", err)
	}
	return request, nil
}

// =============================================================================
// QUERIES
// =============================================================================

func (s *Service) Get(ctx context.Context, id leave.RequestID) (leave.LeaveRequest, error) {
	return s.requests.Get(ctx, id)
}

func (s *Service) ByRequester(ctx context.Context, id leave.RequesterID) ([]leave.LeaveRequest, error) {
	return s.requests.ByRequester(ctx, id)
}

// Inbox returns the requests awaiting the reviewer, high priority first,
// then oldest first.
func (s *Service) Inbox(ctx context.Context, reviewerID leave.RequesterID) ([]leave.LeaveRequest, error) {
	pending, err := s.requests.PendingFor(ctx, reviewerID)
	if err != nil {
		return nil, err
	}
	sort.Slice(pending, func(i, j int) bool {
		if pending[i].Priority != pending[j].Priority {
			return pending[i].Priority > pending[j].Priority
		}
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})
	return pending, nil
}

func (s *Service) payload(r leave.LeaveRequest) notify.Payload {
	return notify.Payload{
		"request_id":   string(r.ID),
		"requester_id": string(r.RequesterID),
		"status":       string(r.Status),
		"kind":         string(r.Kind),
		"from":         r.Dates.From.String(),
		"to":           r.Dates.To.String(),
		"days":         fmt.Sprintf("%d", r.DayCount),
	}
}
