package workflow

import "time"

// EventStatus represents construction event lifecycle states.
type EventStatus string

const (
	EventPlanned       EventStatus = "planned"
	EventActive        EventStatus = "active"
	EventPendingReview EventStatus = "pending_review"
	EventClosed        EventStatus = "closed"
	EventArchived      EventStatus = "archived"
	EventCancelled     EventStatus = "cancelled"
)

// PostEndDecision records what happens to the road after an event ends.
type PostEndDecision string

const (
	DecisionPending         PostEndDecision = "pending"
	DecisionNoChange        PostEndDecision = "no-change"
	DecisionPermanentChange PostEndDecision = "permanent-change"
)

// WorkOrderStatus represents work order states.
type WorkOrderStatus string

const (
	WorkOrderDraft      WorkOrderStatus = "draft"
	WorkOrderAssigned   WorkOrderStatus = "assigned"
	WorkOrderInProgress WorkOrderStatus = "in_progress"
	WorkOrderCompleted  WorkOrderStatus = "completed"
	WorkOrderCancelled  WorkOrderStatus = "cancelled"
)

// ReviewStatus represents evidence review states.
type ReviewStatus string

const (
	ReviewPending             ReviewStatus = "pending"
	ReviewApproved            ReviewStatus = "approved"
	ReviewRejected            ReviewStatus = "rejected"
	ReviewAcceptedByAuthority ReviewStatus = "accepted_by_authority"
)

// Change kinds emitted on the workflow audit channel.
const (
	KindEventStatusChanged     = "EventStatusChanged"
	KindWorkOrderStatusChanged = "WorkOrderStatusChanged"
	KindEvidenceDecisionMade   = "EvidenceDecisionMade"
	KindEventDecisionRecorded  = "EventDecisionRecorded"
)

// TransitionResult is the API response for a successful transition.
type TransitionResult struct {
	ID               string `json:"id"`
	From             string `json:"from"`
	To               string `json:"to"`
	DecisionRequired bool   `json:"decisionRequired,omitempty"`
	Retried          bool   `json:"retried,omitempty"`
}

// CreateEventRequest is the payload for creating a construction event.
type CreateEventRequest struct {
	Name                    string     `json:"name"`
	RestrictionType         string     `json:"restrictionType"`
	Ward                    string     `json:"ward"`
	Department              string     `json:"department"`
	StartDate               *time.Time `json:"startDate,omitempty"`
	EndDate                 *time.Time `json:"endDate,omitempty"`
	RefAssetID              string     `json:"refAssetId,omitempty"`
	RefAssetType            string     `json:"refAssetType,omitempty"`
	RequiresEvidenceSignOff *bool      `json:"requiresEvidenceSignOff,omitempty"`
}

// CreateWorkOrderRequest is the payload for creating a work order under an event.
type CreateWorkOrderRequest struct {
	Title        string     `json:"title"`
	Type         string     `json:"type"`
	AssignedDept string     `json:"assignedDept"`
	DueDate      *time.Time `json:"dueDate,omitempty"`
}

// SubmitEvidenceRequest is the payload for attaching evidence to a work order.
type SubmitEvidenceRequest struct {
	FileRef     string `json:"fileRef"`
	Type        string `json:"type"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// ChangePublisher receives domain events after a transition commits.
// Satisfied by notify.Bus; delivery failures never affect the commit.
type ChangePublisher interface {
	PublishStatusChange(kind, entityID, from, to, actor string, at time.Time)
}
