package workflow

import (
	"errors"
	"fmt"

	"github.com/civicworks/roadops/pkg/rbac"
)

// Machine-readable transition error codes.
const (
	CodeInvalidTransition       = "INVALID_TRANSITION"
	CodeStaleState              = "STALE_STATE"
	CodeUnauthorized            = "UNAUTHORIZED"
	CodeDecisionRequired        = "DECISION_REQUIRED"
	CodeEvidenceSignOffRequired = "EVIDENCE_SIGNOFF_REQUIRED"
	CodeNotFound                = "NOT_FOUND"
)

// TransitionError is a structured error for rejected transitions.
type TransitionError struct {
	Code    string `json:"code"`
	Entity  string `json:"entity,omitempty"`
	From    string `json:"from,omitempty"`
	To      string `json:"to,omitempty"`
	Message string `json:"message"`
}

func (e *TransitionError) Error() string {
	return e.Message
}

// IsCode reports whether err is a TransitionError with the given code.
func IsCode(err error, code string) bool {
	var te *TransitionError
	return errors.As(err, &te) && te.Code == code
}

func invalidTransition(entity string, from, to string) *TransitionError {
	return &TransitionError{
		Code:    CodeInvalidTransition,
		Entity:  entity,
		From:    from,
		To:      to,
		Message: fmt.Sprintf("no %s transition defined from %s to %s", entity, from, to),
	}
}

// EventRule defines one allowed construction-event transition and the
// capability the actor must hold to take it.
type EventRule struct {
	From       EventStatus
	To         EventStatus
	Capability rbac.Capability
}

// EventTransitions is the full construction-event transition table.
// Cancellation is only legal from planned; active work must go through
// end-then-review so the audit trail survives.
var EventTransitions = []EventRule{
	{From: EventPlanned, To: EventActive, Capability: rbac.CapTransitionEvent},
	{From: EventPlanned, To: EventCancelled, Capability: rbac.CapTransitionEvent},
	{From: EventActive, To: EventPendingReview, Capability: rbac.CapTransitionEvent},
	{From: EventPendingReview, To: EventClosed, Capability: rbac.CapCloseEvent},
	{From: EventClosed, To: EventArchived, Capability: rbac.CapTransitionEvent},
	{From: EventArchived, To: EventClosed, Capability: rbac.CapTransitionEvent},
}

// EventRuleFor returns the rule for a transition, or nil when the edge is
// not in the table.
func EventRuleFor(from, to EventStatus) *EventRule {
	for i := range EventTransitions {
		if EventTransitions[i].From == from && EventTransitions[i].To == to {
			return &EventTransitions[i]
		}
	}
	return nil
}

// ValidateEventTransition checks a construction-event transition against the
// table. Role is deliberately not consulted here; the guard is pure.
func ValidateEventTransition(from, to EventStatus) error {
	if EventRuleFor(from, to) == nil {
		return invalidTransition("event", string(from), string(to))
	}
	return nil
}

// AllowedEventTransitions returns all valid target states from the given state.
func AllowedEventTransitions(from EventStatus) []EventStatus {
	var allowed []EventStatus
	for _, r := range EventTransitions {
		if r.From == from {
			allowed = append(allowed, r.To)
		}
	}
	return allowed
}

// WorkOrderRule defines one allowed work-order transition.
type WorkOrderRule struct {
	From       WorkOrderStatus
	To         WorkOrderStatus
	Capability rbac.Capability
}

// WorkOrderTransitions is the work-order transition table.
// completed and cancelled are terminal.
var WorkOrderTransitions = []WorkOrderRule{
	{From: WorkOrderDraft, To: WorkOrderAssigned, Capability: rbac.CapTransitionWorkOrder},
	{From: WorkOrderDraft, To: WorkOrderCancelled, Capability: rbac.CapTransitionWorkOrder},
	{From: WorkOrderAssigned, To: WorkOrderInProgress, Capability: rbac.CapTransitionWorkOrder},
	{From: WorkOrderAssigned, To: WorkOrderCancelled, Capability: rbac.CapTransitionWorkOrder},
	{From: WorkOrderInProgress, To: WorkOrderCompleted, Capability: rbac.CapTransitionWorkOrder},
	{From: WorkOrderInProgress, To: WorkOrderCancelled, Capability: rbac.CapTransitionWorkOrder},
}

// WorkOrderRuleFor returns the rule for a transition, or nil.
func WorkOrderRuleFor(from, to WorkOrderStatus) *WorkOrderRule {
	for i := range WorkOrderTransitions {
		if WorkOrderTransitions[i].From == from && WorkOrderTransitions[i].To == to {
			return &WorkOrderTransitions[i]
		}
	}
	return nil
}

// ValidateWorkOrderTransition checks a work-order transition against the table.
func ValidateWorkOrderTransition(from, to WorkOrderStatus) error {
	if WorkOrderRuleFor(from, to) == nil {
		return invalidTransition("workorder", string(from), string(to))
	}
	return nil
}

// EvidenceRule defines one allowed evidence review transition.
type EvidenceRule struct {
	From       ReviewStatus
	To         ReviewStatus
	Capability rbac.Capability
}

// EvidenceTransitions is the evidence review transition table. The authority
// acts only on peer-approved items, never directly on pending ones;
// rejected and accepted_by_authority are terminal.
var EvidenceTransitions = []EvidenceRule{
	{From: ReviewPending, To: ReviewApproved, Capability: rbac.CapPeerReview},
	{From: ReviewPending, To: ReviewRejected, Capability: rbac.CapPeerReview},
	{From: ReviewApproved, To: ReviewAcceptedByAuthority, Capability: rbac.CapAuthorityDecision},
	{From: ReviewApproved, To: ReviewRejected, Capability: rbac.CapAuthorityDecision},
}

// EvidenceRuleFor returns the rule for a review transition, or nil.
func EvidenceRuleFor(from, to ReviewStatus) *EvidenceRule {
	for i := range EvidenceTransitions {
		if EvidenceTransitions[i].From == from && EvidenceTransitions[i].To == to {
			return &EvidenceTransitions[i]
		}
	}
	return nil
}

// ValidateEvidenceTransition checks an evidence review transition.
func ValidateEvidenceTransition(from, to ReviewStatus) error {
	if EvidenceRuleFor(from, to) == nil {
		return invalidTransition("evidence", string(from), string(to))
	}
	return nil
}
