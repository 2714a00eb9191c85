package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/civicworks/roadops/pkg/rbac"
)

// Engine orchestrates guarded transitions on events, work orders, and
// evidence. All status writes flow through here: the guard check and the
// store write happen under one compare-and-swap, a lost race is retried
// once against fresh state, and domain events are published only after
// the write commits.
type Engine struct {
	store   *EventStore
	changes *StatusChangeStore
	caps    rbac.CapabilityChecker
	policy  *ClosurePolicy
	bus     ChangePublisher
	logger  *slog.Logger
}

// EngineConfig bundles the engine's dependencies. Store is required;
// everything else has a working default.
type EngineConfig struct {
	Store        *EventStore
	Changes      *StatusChangeStore
	Capabilities rbac.CapabilityChecker
	Policy       *ClosurePolicy
	Publisher    ChangePublisher
	Logger       *slog.Logger
}

// NewEngine creates a lifecycle engine.
func NewEngine(cfg EngineConfig) *Engine {
	if cfg.Capabilities == nil {
		cfg.Capabilities = rbac.DefaultChecker
	}
	if cfg.Policy == nil {
		cfg.Policy = DefaultClosurePolicy()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Engine{
		store:   cfg.Store,
		changes: cfg.Changes,
		caps:    cfg.Capabilities,
		policy:  cfg.Policy,
		bus:     cfg.Publisher,
		logger:  cfg.Logger,
	}
}

func unauthorized(entity string, role rbac.Role, cap rbac.Capability) *TransitionError {
	return &TransitionError{
		Code:    CodeUnauthorized,
		Entity:  entity,
		Message: fmt.Sprintf("role %s lacks capability %s", role, cap),
	}
}

// CreateEvent creates a new construction event in planned state. The
// evidence sign-off policy flag defaults from the closure policy unless the
// request pins it explicitly.
func (e *Engine) CreateEvent(ctx context.Context, req CreateEventRequest, actor string, role rbac.Role) (*ConstructionEventRecord, error) {
	if !e.caps(role, rbac.CapTransitionEvent) {
		return nil, unauthorized("event", role, rbac.CapTransitionEvent)
	}
	if req.Name == "" {
		return nil, fmt.Errorf("event name is required")
	}

	signOff := e.policy.RequiresSignOff(req.Department, req.RestrictionType)
	if req.RequiresEvidenceSignOff != nil {
		signOff = *req.RequiresEvidenceSignOff
	}

	rec := &ConstructionEventRecord{
		ID:                      uuid.New().String(),
		Name:                    req.Name,
		RestrictionType:         req.RestrictionType,
		Ward:                    req.Ward,
		Department:              req.Department,
		CreatedBy:               actor,
		Status:                  string(EventPlanned),
		RequiresEvidenceSignOff: signOff,
		StartDate:               req.StartDate,
		EndDate:                 req.EndDate,
		RefAssetID:              req.RefAssetID,
		RefAssetType:            req.RefAssetType,
	}
	if err := e.store.CreateEvent(rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// TransitionEvent moves an event to a new status. A lost CAS race is retried
// once transparently; the second loss surfaces StaleState to the caller.
func (e *Engine) TransitionEvent(ctx context.Context, id string, to EventStatus, actor string, role rbac.Role) (*TransitionResult, error) {
	var result *TransitionResult
	var err error
	for attempt := 0; attempt < 2; attempt++ {
		result, err = e.transitionEventOnce(ctx, id, to, actor, role)
		if IsCode(err, CodeStaleState) && attempt == 0 {
			e.logger.Debug("event transition lost CAS race, retrying", "event", id, "to", to)
			continue
		}
		if result != nil && attempt > 0 {
			result.Retried = true
		}
		return result, err
	}
	return result, err
}

func (e *Engine) transitionEventOnce(ctx context.Context, id string, to EventStatus, actor string, role rbac.Role) (*TransitionResult, error) {
	rec, err := e.store.GetEvent(id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, notFound("event", id)
	}

	from := EventStatus(rec.Status)
	rule := EventRuleFor(from, to)
	if rule == nil {
		return nil, invalidTransition("event", string(from), string(to))
	}
	if !e.caps(role, rule.Capability) {
		return nil, unauthorized("event", role, rule.Capability)
	}

	result := &TransitionResult{ID: id, From: string(from), To: string(to)}
	extra := map[string]any{}
	now := time.Now()

	switch {
	case from == EventActive && to == EventPendingReview:
		// Ending work opens the post-end decision workflow.
		if rec.PostEndDecision == "" {
			extra["post_end_decision"] = string(DecisionPending)
		}
		result.DecisionRequired = true
	case from == EventPendingReview && to == EventClosed:
		if rec.PostEndDecision == "" || rec.PostEndDecision == string(DecisionPending) {
			// Make sure the decision workflow is open, then block the close.
			if rec.PostEndDecision == "" {
				if derr := e.store.SetPostEndDecision(id, DecisionPending); derr != nil {
					e.logger.Error("failed to open decision workflow", "event", id, "error", derr)
				}
			}
			return nil, &TransitionError{
				Code:    CodeDecisionRequired,
				Entity:  "event",
				From:    string(from),
				To:      string(to),
				Message: "a post-end decision must be recorded before closing",
			}
		}
	case from == EventClosed && to == EventArchived:
		extra["archived_at"] = now
	case from == EventArchived && to == EventClosed:
		extra["archived_at"] = nil
	}

	if err := e.store.casEventStatus(id, from, to, extra); err != nil {
		return nil, err
	}

	e.emit(KindEventStatusChanged, "event", id, string(from), string(to), actor, role, "")
	return result, nil
}

// RecordDecision records the post-end decision for an event. Only a concrete
// value may be recorded; the decision cannot be reset to pending. Legal once
// the event has left active work (pending_review, closed, archived).
func (e *Engine) RecordDecision(ctx context.Context, id string, decision PostEndDecision, notes, actor string, role rbac.Role) error {
	if !e.caps(role, rbac.CapRecordDecision) {
		return unauthorized("event", role, rbac.CapRecordDecision)
	}
	if decision != DecisionNoChange && decision != DecisionPermanentChange {
		return &TransitionError{
			Code:    CodeInvalidTransition,
			Entity:  "event",
			Message: fmt.Sprintf("invalid post-end decision %q", decision),
		}
	}

	rec, err := e.store.GetEvent(id)
	if err != nil {
		return err
	}
	if rec == nil {
		return notFound("event", id)
	}
	switch EventStatus(rec.Status) {
	case EventPendingReview, EventClosed, EventArchived:
	default:
		return &TransitionError{
			Code:    CodeInvalidTransition,
			Entity:  "event",
			From:    rec.Status,
			Message: fmt.Sprintf("post-end decision not applicable while event is %s", rec.Status),
		}
	}

	if err := e.store.SetPostEndDecision(id, decision); err != nil {
		return err
	}
	e.emit(KindEventDecisionRecorded, "event", id, rec.PostEndDecision, string(decision), actor, role, notes)
	return nil
}

// DuplicateEvent spawns a new planned event prefilled from a closed one,
// copying the descriptive fields and asset links but not work orders or
// evidence. Returns the new record.
func (e *Engine) DuplicateEvent(ctx context.Context, id, actor string, role rbac.Role) (*ConstructionEventRecord, error) {
	if !e.caps(role, rbac.CapTransitionEvent) {
		return nil, unauthorized("event", role, rbac.CapTransitionEvent)
	}

	src, err := e.store.GetEvent(id)
	if err != nil {
		return nil, err
	}
	if src == nil {
		return nil, notFound("event", id)
	}
	if EventStatus(src.Status) != EventClosed {
		return nil, &TransitionError{
			Code:    CodeInvalidTransition,
			Entity:  "event",
			From:    src.Status,
			Message: "only closed events can be duplicated",
		}
	}

	dup := &ConstructionEventRecord{
		ID:                      uuid.New().String(),
		Name:                    src.Name,
		RestrictionType:         src.RestrictionType,
		Ward:                    src.Ward,
		Department:              src.Department,
		CreatedBy:               actor,
		Status:                  string(EventPlanned),
		RequiresEvidenceSignOff: src.RequiresEvidenceSignOff,
		RefAssetID:              src.RefAssetID,
		RefAssetType:            src.RefAssetType,
	}
	if err := e.store.CreateEvent(dup); err != nil {
		return nil, err
	}

	links, err := e.store.ListAssetLinks(id)
	if err != nil {
		return nil, err
	}
	for _, l := range links {
		if err := e.store.LinkAsset(dup.ID, l.AssetID, l.AssetType); err != nil {
			return nil, err
		}
	}

	return dup, nil
}

// CreateWorkOrder creates a work order under an event. Work orders may only
// be opened while the event is planned or active.
func (e *Engine) CreateWorkOrder(ctx context.Context, eventID string, req CreateWorkOrderRequest, actor string, role rbac.Role) (*WorkOrderRecord, error) {
	if !e.caps(role, rbac.CapTransitionWorkOrder) {
		return nil, unauthorized("workorder", role, rbac.CapTransitionWorkOrder)
	}
	ev, err := e.store.GetEvent(eventID)
	if err != nil {
		return nil, err
	}
	if ev == nil {
		return nil, notFound("event", eventID)
	}
	switch EventStatus(ev.Status) {
	case EventPlanned, EventActive:
	default:
		return nil, &TransitionError{
			Code:    CodeInvalidTransition,
			Entity:  "workorder",
			Message: fmt.Sprintf("cannot open work orders while event is %s", ev.Status),
		}
	}

	rec := &WorkOrderRecord{
		ID:           uuid.New().String(),
		EventID:      eventID,
		Title:        req.Title,
		WorkType:     req.Type,
		AssignedDept: req.AssignedDept,
		Status:       string(WorkOrderDraft),
		DueDate:      req.DueDate,
	}
	if err := e.store.CreateWorkOrder(rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// TransitionWorkOrder moves a work order to a new status. Completion checks
// the evidence sign-off precondition against the evidence table inside the
// same transaction as the status write.
func (e *Engine) TransitionWorkOrder(ctx context.Context, id string, to WorkOrderStatus, actor string, role rbac.Role) (*TransitionResult, error) {
	var result *TransitionResult
	var err error
	for attempt := 0; attempt < 2; attempt++ {
		result, err = e.transitionWorkOrderOnce(ctx, id, to, actor, role)
		if IsCode(err, CodeStaleState) && attempt == 0 {
			continue
		}
		if result != nil && attempt > 0 {
			result.Retried = true
		}
		return result, err
	}
	return result, err
}

func (e *Engine) transitionWorkOrderOnce(ctx context.Context, id string, to WorkOrderStatus, actor string, role rbac.Role) (*TransitionResult, error) {
	wo, err := e.store.GetWorkOrder(id)
	if err != nil {
		return nil, err
	}
	if wo == nil {
		return nil, notFound("workorder", id)
	}

	from := WorkOrderStatus(wo.Status)
	rule := WorkOrderRuleFor(from, to)
	if rule == nil {
		return nil, invalidTransition("workorder", string(from), string(to))
	}
	if !e.caps(role, rule.Capability) {
		return nil, unauthorized("workorder", role, rule.Capability)
	}

	if to == WorkOrderCompleted {
		err = e.store.Transaction(func(tx *EventStore) error {
			ev, terr := tx.GetEvent(wo.EventID)
			if terr != nil {
				return terr
			}
			if ev == nil {
				return notFound("event", wo.EventID)
			}
			if ev.RequiresEvidenceSignOff {
				accepted, terr := tx.CountAcceptedEvidence(id)
				if terr != nil {
					return terr
				}
				if accepted == 0 {
					return &TransitionError{
						Code:    CodeEvidenceSignOffRequired,
						Entity:  "workorder",
						From:    string(from),
						To:      string(to),
						Message: "completion requires at least one evidence item accepted by the authority",
					}
				}
			}
			return tx.casWorkOrderStatus(id, from, to, map[string]any{"completed_at": time.Now()})
		})
	} else {
		err = e.store.casWorkOrderStatus(id, from, to, nil)
	}
	if err != nil {
		return nil, err
	}

	e.emit(KindWorkOrderStatusChanged, "workorder", id, string(from), string(to), actor, role, "")
	return &TransitionResult{ID: id, From: string(from), To: string(to)}, nil
}

// SubmitEvidence attaches a new pending evidence item to a work order.
func (e *Engine) SubmitEvidence(ctx context.Context, workOrderID string, req SubmitEvidenceRequest, actor string, role rbac.Role) (*EvidenceRecord, error) {
	if !e.caps(role, rbac.CapTransitionWorkOrder) {
		return nil, unauthorized("evidence", role, rbac.CapTransitionWorkOrder)
	}
	wo, err := e.store.GetWorkOrder(workOrderID)
	if err != nil {
		return nil, err
	}
	if wo == nil {
		return nil, notFound("workorder", workOrderID)
	}
	if req.FileRef == "" {
		return nil, fmt.Errorf("evidence fileRef is required")
	}

	rec := &EvidenceRecord{
		ID:           uuid.New().String(),
		WorkOrderID:  workOrderID,
		FileRef:      req.FileRef,
		EvidenceType: req.Type,
		Title:        req.Title,
		Description:  req.Description,
		SubmittedBy:  actor,
		SubmittedAt:  time.Now(),
		ReviewStatus: string(ReviewPending),
	}
	if err := e.store.CreateEvidence(rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// MakeEvidenceDecision records a review decision on an evidence item. The
// role check happens here, not in the UI: a non-authority caller cannot take
// an authority edge no matter what the client sends.
func (e *Engine) MakeEvidenceDecision(ctx context.Context, evidenceID string, decision ReviewStatus, actor string, role rbac.Role) (*TransitionResult, error) {
	rec, err := e.store.GetEvidence(evidenceID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, notFound("evidence", evidenceID)
	}

	from := ReviewStatus(rec.ReviewStatus)
	rule := EvidenceRuleFor(from, decision)
	if rule == nil {
		return nil, invalidTransition("evidence", string(from), string(decision))
	}
	if !e.caps(role, rule.Capability) {
		return nil, unauthorized("evidence", role, rule.Capability)
	}

	now := time.Now()
	err = e.store.casEvidenceStatus(evidenceID, from, decision, map[string]any{
		"reviewed_by": actor,
		"reviewed_at": now,
	})
	if err != nil {
		return nil, err
	}

	e.emit(KindEvidenceDecisionMade, "evidence", evidenceID, string(from), string(decision), actor, role, "")
	return &TransitionResult{ID: evidenceID, From: string(from), To: string(decision)}, nil
}

// emit appends the durable status change record and publishes to the bus's
// workflow channel. Both happen after the store write committed; a failure
// here is logged, never surfaced to the caller.
func (e *Engine) emit(kind, entityType, entityID, from, to, actor string, role rbac.Role, notes string) {
	now := time.Now()
	if e.changes != nil {
		err := e.changes.Append(&StatusChangeRecord{
			ID:         uuid.New().String(),
			Kind:       kind,
			EntityType: entityType,
			EntityID:   entityID,
			FromStatus: from,
			ToStatus:   to,
			Actor:      actor,
			ActorRole:  string(role),
			Notes:      notes,
		})
		if err != nil {
			e.logger.Error("failed to append status change", "entity", entityID, "error", err)
		}
	}
	if e.bus != nil {
		e.bus.PublishStatusChange(kind, entityID, from, to, actor, now)
	}
}
