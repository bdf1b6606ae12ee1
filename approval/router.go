/*
Package approval computes the reviewer chain for a leave request.

PURPOSE:
  Routing is a pure function of the requester's role, section, department
  and the requested duration. The chain is captured on the request at
  submission time: later changes to the routing tables never re-route an
  in-flight request.

ROUTING RULES:
  Learner:     [section's designated reviewer, department head]
  Instructor:  [department head]
               [department head, senior administrator]  when the duration
               exceeds the long-leave threshold

  The section-to-reviewer and department-to-head mappings are static
  configuration. A requester whose section or department has no
  configured reviewer surfaces a validation error - routing never
  silently defaults.

SEE ALSO:
  - config/: loads the routing tables
  - workflow/: captures the chain at submission
*/
package approval

import (
	"github.com/campus/leave-engine/leave"
)

// =============================================================================
// CONFIG - Static routing tables
// =============================================================================

type Config struct {
	// LongLeaveThreshold: instructor requests strictly longer than this
	// many days escalate to the senior administrator.
	LongLeaveThreshold int

	// SectionReviewers maps a learner section to its designated reviewer.
	SectionReviewers map[leave.Section]leave.RequesterID

	// DepartmentHeads maps a department to its head.
	DepartmentHeads map[leave.Department]leave.RequesterID

	// SeniorAdministrator reviews long instructor leaves.
	SeniorAdministrator leave.RequesterID
}

// =============================================================================
// ROUTER
// =============================================================================

type Router struct {
	cfg Config
}

func NewRouter(cfg Config) *Router {
	return &Router{cfg: cfg}
}

// Route returns the ordered reviewer chain for the requester and
// duration. Pure: no stores, no clock.
func (r *Router) Route(requester leave.Requester, dayCount int) ([]leave.ReviewStep, error) {
	head, ok := r.cfg.DepartmentHeads[requester.Department]
	if !ok || head == "" {
		return nil, &leave.ValidationError{
			Field:  "department",
			Reason: "no department head configured for " + string(requester.Department),
		}
	}

	switch requester.Role {
	case leave.RoleLearner:
		reviewer, ok := r.cfg.SectionReviewers[requester.Section]
		if !ok || reviewer == "" {
			return nil, &leave.ValidationError{
				Field:  "section",
				Reason: "no reviewer configured for section " + string(requester.Section),
			}
		}
		return []leave.ReviewStep{
			{Role: leave.ReviewerSection, ReviewerID: reviewer},
			{Role: leave.ReviewerDeptHead, ReviewerID: head},
		}, nil

	case leave.RoleInstructor:
		chain := []leave.ReviewStep{
			{Role: leave.ReviewerDeptHead, ReviewerID: head},
		}
		if dayCount > r.cfg.LongLeaveThreshold {
			if r.cfg.SeniorAdministrator == "" {
				return nil, &leave.ValidationError{
					Field:  "senior_administrator",
					Reason: "no senior administrator configured for long-leave escalation",
				}
			}
			chain = append(chain, leave.ReviewStep{
				Role:       leave.ReviewerSeniorAdmin,
				ReviewerID: r.cfg.SeniorAdministrator,
			})
		}
		return chain, nil

	default:
		return nil, &leave.ValidationError{Field: "role", Reason: "unknown requester role"}
	}
}
