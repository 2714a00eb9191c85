package workflow

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// StatusChangeStore provides append-only operations for the workflow audit
// trail. Records are immutable once written.
type StatusChangeStore struct {
	db *gorm.DB
}

// NewStatusChangeStore creates a new StatusChangeStore.
func NewStatusChangeStore(db *gorm.DB) *StatusChangeStore {
	return &StatusChangeStore{db: db}
}

// Append creates a new immutable status change record.
func (s *StatusChangeStore) Append(rec *StatusChangeRecord) error {
	if err := s.db.Create(rec).Error; err != nil {
		return fmt.Errorf("append status change: %w", err)
	}
	return nil
}

// ListByEntity returns paginated status changes for an entity, newest first.
// pageToken is an RFC3339Nano timestamp from a previous page.
func (s *StatusChangeStore) ListByEntity(entityID string, pageSize int, pageToken string) ([]StatusChangeRecord, string, error) {
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}

	query := s.db.Where("entity_id = ?", entityID).Order("created_at DESC").Limit(pageSize + 1)
	if pageToken != "" {
		t, err := time.Parse(time.RFC3339Nano, pageToken)
		if err != nil {
			return nil, "", fmt.Errorf("invalid page token: %w", err)
		}
		query = query.Where("created_at < ?", t)
	}

	var records []StatusChangeRecord
	if err := query.Find(&records).Error; err != nil {
		return nil, "", fmt.Errorf("list status changes: %w", err)
	}

	var nextToken string
	if len(records) > pageSize {
		nextToken = records[pageSize-1].CreatedAt.Format(time.RFC3339Nano)
		records = records[:pageSize]
	}

	return records, nextToken, nil
}
