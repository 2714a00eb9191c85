package workflow

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// EventStore provides persistence for construction events, work orders,
// evidence, and event/asset links. Status writes go through unexported
// compare-and-swap helpers so they are only reachable via the Engine.
type EventStore struct {
	db *gorm.DB
}

// NewEventStore creates a new EventStore.
func NewEventStore(db *gorm.DB) *EventStore {
	return &EventStore{db: db}
}

// AutoMigrate creates or updates the workflow tables.
func (s *EventStore) AutoMigrate() error {
	for _, model := range []any{
		&ConstructionEventRecord{},
		&WorkOrderRecord{},
		&EvidenceRecord{},
		&EventAssetLinkRecord{},
		&StatusChangeRecord{},
	} {
		if err := s.db.AutoMigrate(model); err != nil {
			return fmt.Errorf("auto-migrate workflow tables: %w", err)
		}
	}
	return nil
}

// Transaction runs fn against a transactional view of the store.
func (s *EventStore) Transaction(fn func(tx *EventStore) error) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		return fn(&EventStore{db: tx})
	})
}

func notFound(entity, id string) *TransitionError {
	return &TransitionError{
		Code:    CodeNotFound,
		Entity:  entity,
		Message: fmt.Sprintf("%s %s not found", entity, id),
	}
}

func staleState(entity, id, from, to string) *TransitionError {
	return &TransitionError{
		Code:    CodeStaleState,
		Entity:  entity,
		From:    from,
		To:      to,
		Message: fmt.Sprintf("%s %s changed concurrently, retry against fresh state", entity, id),
	}
}

// CreateEvent inserts a new construction event.
func (s *EventStore) CreateEvent(rec *ConstructionEventRecord) error {
	if err := s.db.Create(rec).Error; err != nil {
		return fmt.Errorf("create event: %w", err)
	}
	return nil
}

// GetEvent retrieves an event by ID. Returns nil, nil if no record exists.
func (s *EventStore) GetEvent(id string) (*ConstructionEventRecord, error) {
	var rec ConstructionEventRecord
	err := s.db.Where("id = ?", id).First(&rec).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return &rec, nil
}

// ListEvents returns paginated events, newest first, optionally filtered by
// status and ward. Archived events are hidden unless explicitly requested.
// pageToken is an RFC3339Nano timestamp from a previous page.
func (s *EventStore) ListEvents(status, ward string, pageSize int, pageToken string) ([]ConstructionEventRecord, string, error) {
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}

	query := s.db.Order("created_at DESC").Limit(pageSize + 1)
	if status != "" {
		query = query.Where("status = ?", status)
	} else {
		query = query.Where("status <> ?", string(EventArchived))
	}
	if ward != "" {
		query = query.Where("ward = ?", ward)
	}
	if pageToken != "" {
		t, err := time.Parse(time.RFC3339Nano, pageToken)
		if err != nil {
			return nil, "", fmt.Errorf("invalid page token: %w", err)
		}
		query = query.Where("created_at < ?", t)
	}

	var records []ConstructionEventRecord
	if err := query.Find(&records).Error; err != nil {
		return nil, "", fmt.Errorf("list events: %w", err)
	}

	var nextToken string
	if len(records) > pageSize {
		nextToken = records[pageSize-1].CreatedAt.Format(time.RFC3339Nano)
		records = records[:pageSize]
	}

	return records, nextToken, nil
}

// casEventStatus performs the atomic compare-and-swap on an event's status.
// The WHERE clause carries the expected current status; zero rows affected
// means either the event is gone or another transition won the race.
func (s *EventStore) casEventStatus(id string, from, to EventStatus, extra map[string]any) error {
	updates := map[string]any{"status": string(to)}
	for k, v := range extra {
		updates[k] = v
	}
	result := s.db.Model(&ConstructionEventRecord{}).
		Where("id = ? AND status = ?", id, string(from)).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("update event status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := s.db.Model(&ConstructionEventRecord{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return fmt.Errorf("check event existence: %w", err)
		}
		if count == 0 {
			return notFound("event", id)
		}
		return staleState("event", id, string(from), string(to))
	}
	return nil
}

// SetPostEndDecision records the post-end decision for an event.
func (s *EventStore) SetPostEndDecision(id string, decision PostEndDecision) error {
	result := s.db.Model(&ConstructionEventRecord{}).
		Where("id = ?", id).
		Update("post_end_decision", string(decision))
	if result.Error != nil {
		return fmt.Errorf("set post-end decision: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return notFound("event", id)
	}
	return nil
}

// CreateWorkOrder inserts a new work order.
func (s *EventStore) CreateWorkOrder(rec *WorkOrderRecord) error {
	if err := s.db.Create(rec).Error; err != nil {
		return fmt.Errorf("create work order: %w", err)
	}
	return nil
}

// GetWorkOrder retrieves a work order by ID. Returns nil, nil if missing.
func (s *EventStore) GetWorkOrder(id string) (*WorkOrderRecord, error) {
	var rec WorkOrderRecord
	err := s.db.Where("id = ?", id).First(&rec).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("get work order: %w", err)
	}
	return &rec, nil
}

// ListWorkOrdersByEvent returns all work orders under an event, oldest first.
func (s *EventStore) ListWorkOrdersByEvent(eventID string) ([]WorkOrderRecord, error) {
	var records []WorkOrderRecord
	if err := s.db.Where("event_id = ?", eventID).Order("created_at ASC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list work orders: %w", err)
	}
	return records, nil
}

// casWorkOrderStatus performs the atomic compare-and-swap on a work order's status.
func (s *EventStore) casWorkOrderStatus(id string, from, to WorkOrderStatus, extra map[string]any) error {
	updates := map[string]any{"status": string(to)}
	for k, v := range extra {
		updates[k] = v
	}
	result := s.db.Model(&WorkOrderRecord{}).
		Where("id = ? AND status = ?", id, string(from)).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("update work order status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := s.db.Model(&WorkOrderRecord{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return fmt.Errorf("check work order existence: %w", err)
		}
		if count == 0 {
			return notFound("workorder", id)
		}
		return staleState("workorder", id, string(from), string(to))
	}
	return nil
}

// DeleteWorkOrderCascade removes a work order and all evidence under it.
// Not exposed through the normal API flow; evidence is otherwise immutable.
func (s *EventStore) DeleteWorkOrderCascade(id string) error {
	return s.Transaction(func(tx *EventStore) error {
		if err := tx.db.Where("work_order_id = ?", id).Delete(&EvidenceRecord{}).Error; err != nil {
			return fmt.Errorf("delete evidence for work order: %w", err)
		}
		if err := tx.db.Where("id = ?", id).Delete(&WorkOrderRecord{}).Error; err != nil {
			return fmt.Errorf("delete work order: %w", err)
		}
		return nil
	})
}

// CreateEvidence inserts a new evidence record.
func (s *EventStore) CreateEvidence(rec *EvidenceRecord) error {
	if err := s.db.Create(rec).Error; err != nil {
		return fmt.Errorf("create evidence: %w", err)
	}
	return nil
}

// GetEvidence retrieves an evidence record by ID. Returns nil, nil if missing.
func (s *EventStore) GetEvidence(id string) (*EvidenceRecord, error) {
	var rec EvidenceRecord
	err := s.db.Where("id = ?", id).First(&rec).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("get evidence: %w", err)
	}
	return &rec, nil
}

// ListEvidenceByWorkOrder returns all evidence under a work order, oldest first.
func (s *EventStore) ListEvidenceByWorkOrder(workOrderID string) ([]EvidenceRecord, error) {
	var records []EvidenceRecord
	if err := s.db.Where("work_order_id = ?", workOrderID).Order("submitted_at ASC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list evidence: %w", err)
	}
	return records, nil
}

// CountAcceptedEvidence counts evidence in accepted_by_authority under a
// work order. Called inside the completion transaction, never from a cache.
func (s *EventStore) CountAcceptedEvidence(workOrderID string) (int64, error) {
	var count int64
	err := s.db.Model(&EvidenceRecord{}).
		Where("work_order_id = ? AND review_status = ?", workOrderID, string(ReviewAcceptedByAuthority)).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("count accepted evidence: %w", err)
	}
	return count, nil
}

// casEvidenceStatus performs the atomic compare-and-swap on an evidence
// record's review status.
func (s *EventStore) casEvidenceStatus(id string, from, to ReviewStatus, extra map[string]any) error {
	updates := map[string]any{"review_status": string(to)}
	for k, v := range extra {
		updates[k] = v
	}
	result := s.db.Model(&EvidenceRecord{}).
		Where("id = ? AND review_status = ?", id, string(from)).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("update evidence status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := s.db.Model(&EvidenceRecord{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return fmt.Errorf("check evidence existence: %w", err)
		}
		if count == 0 {
			return notFound("evidence", id)
		}
		return staleState("evidence", id, string(from), string(to))
	}
	return nil
}

// LinkAsset links an event to a road/park asset. Linking twice is a no-op.
func (s *EventStore) LinkAsset(eventID, assetID, assetType string) error {
	link := &EventAssetLinkRecord{EventID: eventID, AssetID: assetID, AssetType: assetType}
	err := s.db.Where("event_id = ? AND asset_id = ?", eventID, assetID).
		FirstOrCreate(link).Error
	if err != nil {
		return fmt.Errorf("link asset: %w", err)
	}
	return nil
}

// UnlinkAsset removes an event/asset link.
func (s *EventStore) UnlinkAsset(eventID, assetID string) error {
	if err := s.db.Where("event_id = ? AND asset_id = ?", eventID, assetID).Delete(&EventAssetLinkRecord{}).Error; err != nil {
		return fmt.Errorf("unlink asset: %w", err)
	}
	return nil
}

// ListAssetLinks returns the assets linked to an event.
func (s *EventStore) ListAssetLinks(eventID string) ([]EventAssetLinkRecord, error) {
	var links []EventAssetLinkRecord
	if err := s.db.Where("event_id = ?", eventID).Order("created_at ASC").Find(&links).Error; err != nil {
		return nil, fmt.Errorf("list asset links: %w", err)
	}
	return links, nil
}

// ListEventsForAsset returns events linked to the given asset.
func (s *EventStore) ListEventsForAsset(assetID string) ([]ConstructionEventRecord, error) {
	var records []ConstructionEventRecord
	err := s.db.
		Joins("JOIN event_asset_links ON event_asset_links.event_id = construction_events.id").
		Where("event_asset_links.asset_id = ?", assetID).
		Order("construction_events.created_at DESC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("list events for asset: %w", err)
	}
	return records, nil
}
