package workflow

import (
	"fmt"

	"gorm.io/gorm"
)

// Views builds UI-facing read models from the event store. Read-only; no
// invariants of its own.
type Views struct {
	db *gorm.DB
}

// NewViews creates a read model over the given database.
func NewViews(db *gorm.DB) *Views {
	return &Views{db: db}
}

type statusCountRow struct {
	Status string
	Count  int64
}

// StatusCounts returns the number of events per status.
func (v *Views) StatusCounts() (map[string]int64, error) {
	var rows []statusCountRow
	err := v.db.Model(&ConstructionEventRecord{}).
		Select("status, COUNT(*) as count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count events by status: %w", err)
	}
	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Count
	}
	return counts, nil
}

type wardCountRow struct {
	Ward  string
	Count int64
}

// ActiveCountsByWard returns the number of non-terminal events per ward.
func (v *Views) ActiveCountsByWard() (map[string]int64, error) {
	var rows []wardCountRow
	err := v.db.Model(&ConstructionEventRecord{}).
		Select("ward, COUNT(*) as count").
		Where("status IN ?", []string{string(EventPlanned), string(EventActive), string(EventPendingReview)}).
		Group("ward").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count events by ward: %w", err)
	}
	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.Ward] = r.Count
	}
	return counts, nil
}

// WorkOrderProgress summarizes work order completion under an event.
type WorkOrderProgress struct {
	EventID   string `json:"eventId"`
	Total     int64  `json:"total"`
	Completed int64  `json:"completed"`
	Cancelled int64  `json:"cancelled"`
	Open      int64  `json:"open"`
}

// ProgressForEvent returns the work order progress for an event.
func (v *Views) ProgressForEvent(eventID string) (*WorkOrderProgress, error) {
	p := &WorkOrderProgress{EventID: eventID}
	count := func(dest *int64, status ...string) error {
		q := v.db.Model(&WorkOrderRecord{}).Where("event_id = ?", eventID)
		if len(status) > 0 {
			q = q.Where("status IN ?", status)
		}
		return q.Count(dest).Error
	}
	if err := count(&p.Total); err != nil {
		return nil, fmt.Errorf("count work orders: %w", err)
	}
	if err := count(&p.Completed, string(WorkOrderCompleted)); err != nil {
		return nil, fmt.Errorf("count completed work orders: %w", err)
	}
	if err := count(&p.Cancelled, string(WorkOrderCancelled)); err != nil {
		return nil, fmt.Errorf("count cancelled work orders: %w", err)
	}
	p.Open = p.Total - p.Completed - p.Cancelled
	return p, nil
}

// EventOverview joins an event with its work orders, evidence counts, and
// linked assets for the detail view.
type EventOverview struct {
	Event      ConstructionEventRecord `json:"event"`
	WorkOrders []WorkOrderRecord       `json:"workOrders"`
	Evidence   map[string]int64        `json:"evidenceByStatus"`
	Assets     []EventAssetLinkRecord  `json:"assets"`
}

// Overview builds the detail view for one event. Returns nil, nil when the
// event does not exist.
func (v *Views) Overview(eventID string) (*EventOverview, error) {
	var ev ConstructionEventRecord
	err := v.db.Where("id = ?", eventID).First(&ev).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("get event: %w", err)
	}

	overview := &EventOverview{Event: ev, Evidence: map[string]int64{}}

	if err := v.db.Where("event_id = ?", eventID).Order("created_at ASC").Find(&overview.WorkOrders).Error; err != nil {
		return nil, fmt.Errorf("list work orders: %w", err)
	}

	var evidenceRows []statusCountRow
	err = v.db.Model(&EvidenceRecord{}).
		Select("evidence.review_status as status, COUNT(*) as count").
		Joins("JOIN work_orders ON work_orders.id = evidence.work_order_id").
		Where("work_orders.event_id = ?", eventID).
		Group("evidence.review_status").
		Scan(&evidenceRows).Error
	if err != nil {
		return nil, fmt.Errorf("count evidence: %w", err)
	}
	for _, r := range evidenceRows {
		overview.Evidence[r.Status] = r.Count
	}

	if err := v.db.Where("event_id = ?", eventID).Order("created_at ASC").Find(&overview.Assets).Error; err != nil {
		return nil, fmt.Errorf("list asset links: %w", err)
	}

	return overview, nil
}
