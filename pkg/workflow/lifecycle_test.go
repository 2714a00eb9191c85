package workflow

import (
	"testing"

	"github.com/civicworks/roadops/pkg/rbac"
)

func TestValidateEventTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    EventStatus
		to      EventStatus
		wantErr bool
	}{
		{"planned to active", EventPlanned, EventActive, false},
		{"planned to cancelled", EventPlanned, EventCancelled, false},
		{"active to pending_review", EventActive, EventPendingReview, false},
		{"pending_review to closed", EventPendingReview, EventClosed, false},
		{"closed to archived", EventClosed, EventArchived, false},
		{"archived to closed", EventArchived, EventClosed, false},
		{"planned to closed skips work", EventPlanned, EventClosed, true},
		{"active to cancelled", EventActive, EventCancelled, true},
		{"active to closed skips review", EventActive, EventClosed, true},
		{"pending_review to active", EventPendingReview, EventActive, true},
		{"closed to active", EventClosed, EventActive, true},
		{"cancelled is terminal", EventCancelled, EventPlanned, true},
		{"archived to planned", EventArchived, EventPlanned, true},
		{"self transition", EventActive, EventActive, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEventTransition(tt.from, tt.to)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateEventTransition(%s, %s) error = %v, wantErr %v", tt.from, tt.to, err, tt.wantErr)
			}
			if err != nil && !IsCode(err, CodeInvalidTransition) {
				t.Errorf("expected INVALID_TRANSITION code, got %v", err)
			}
		})
	}
}

func TestValidateWorkOrderTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    WorkOrderStatus
		to      WorkOrderStatus
		wantErr bool
	}{
		{"draft to assigned", WorkOrderDraft, WorkOrderAssigned, false},
		{"draft to cancelled", WorkOrderDraft, WorkOrderCancelled, false},
		{"assigned to in_progress", WorkOrderAssigned, WorkOrderInProgress, false},
		{"assigned to cancelled", WorkOrderAssigned, WorkOrderCancelled, false},
		{"in_progress to completed", WorkOrderInProgress, WorkOrderCompleted, false},
		{"in_progress to cancelled", WorkOrderInProgress, WorkOrderCancelled, false},
		{"draft to completed skips work", WorkOrderDraft, WorkOrderCompleted, true},
		{"draft to in_progress skips assignment", WorkOrderDraft, WorkOrderInProgress, true},
		{"completed is terminal", WorkOrderCompleted, WorkOrderInProgress, true},
		{"cancelled is terminal", WorkOrderCancelled, WorkOrderAssigned, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateWorkOrderTransition(tt.from, tt.to)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateWorkOrderTransition(%s, %s) error = %v, wantErr %v", tt.from, tt.to, err, tt.wantErr)
			}
		})
	}
}

func TestValidateEvidenceTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    ReviewStatus
		to      ReviewStatus
		wantErr bool
	}{
		{"pending peer-approved", ReviewPending, ReviewApproved, false},
		{"pending peer-rejected", ReviewPending, ReviewRejected, false},
		{"approved accepted by authority", ReviewApproved, ReviewAcceptedByAuthority, false},
		{"approved rejected by authority", ReviewApproved, ReviewRejected, false},
		{"authority cannot skip peer review", ReviewPending, ReviewAcceptedByAuthority, true},
		{"rejected is terminal", ReviewRejected, ReviewApproved, true},
		{"accepted is terminal", ReviewAcceptedByAuthority, ReviewRejected, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEvidenceTransition(tt.from, tt.to)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateEvidenceTransition(%s, %s) error = %v, wantErr %v", tt.from, tt.to, err, tt.wantErr)
			}
		})
	}
}

func TestEventRuleCapabilities(t *testing.T) {
	// Closing requires the dedicated close capability, not the generic one.
	rule := EventRuleFor(EventPendingReview, EventClosed)
	if rule == nil {
		t.Fatal("expected a rule for pending_review -> closed")
	}
	if rule.Capability != rbac.CapCloseEvent {
		t.Errorf("closing should require %s, got %s", rbac.CapCloseEvent, rule.Capability)
	}

	// Authority edges on evidence carry the authority capability.
	erule := EvidenceRuleFor(ReviewApproved, ReviewAcceptedByAuthority)
	if erule == nil {
		t.Fatal("expected a rule for approved -> accepted_by_authority")
	}
	if erule.Capability != rbac.CapAuthorityDecision {
		t.Errorf("authority acceptance should require %s, got %s", rbac.CapAuthorityDecision, erule.Capability)
	}
}

func TestAllowedEventTransitions(t *testing.T) {
	got := AllowedEventTransitions(EventPlanned)
	if len(got) != 2 {
		t.Fatalf("expected 2 targets from planned, got %v", got)
	}

	if got := AllowedEventTransitions(EventCancelled); got != nil {
		t.Errorf("cancelled should have no targets, got %v", got)
	}
}
