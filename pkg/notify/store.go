package notify

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// EditLog is the durable append-only store behind the notification bus.
type EditLog struct {
	db *gorm.DB
}

// NewEditLog creates a new EditLog.
func NewEditLog(db *gorm.DB) *EditLog {
	return &EditLog{db: db}
}

// AutoMigrate creates or updates the recent_edits table.
func (l *EditLog) AutoMigrate() error {
	if err := l.db.AutoMigrate(&RecentEditRecord{}); err != nil {
		return fmt.Errorf("auto-migrate recent_edits: %w", err)
	}
	return nil
}

// Append writes a new edit record in its own transaction.
func (l *EditLog) Append(rec *RecentEditRecord) error {
	return l.AppendTx(l.db, rec)
}

// AppendTx writes a new edit record using the caller's transaction handle,
// so an asset mutation and its notification record commit together.
func (l *EditLog) AppendTx(tx *gorm.DB, rec *RecentEditRecord) error {
	if rec.EditedAt.IsZero() {
		rec.EditedAt = time.Now()
	}
	if err := tx.Create(rec).Error; err != nil {
		return fmt.Errorf("append recent edit: %w", err)
	}
	return nil
}

// ListRecent returns up to limit edits, newest first. A non-zero before
// cursor restricts the page to edits older than that sequence number.
func (l *EditLog) ListRecent(limit int, before int64) ([]RecentEditRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}
	query := l.db.Order("edited_at DESC, seq DESC").Limit(limit)
	if before > 0 {
		query = query.Where("seq < ?", before)
	}
	var records []RecentEditRecord
	if err := query.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list recent edits: %w", err)
	}
	return records, nil
}

// Since returns up to limit edits with seq greater than cursor, oldest
// first. Used for gap replay on reconnect.
func (l *EditLog) Since(cursor int64, limit int) ([]RecentEditRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 500
	}
	var records []RecentEditRecord
	err := l.db.Where("seq > ?", cursor).
		Order("edited_at ASC, seq ASC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("replay recent edits: %w", err)
	}
	return records, nil
}

// MaxSeq returns the highest sequence number in the log, or 0 when empty.
func (l *EditLog) MaxSeq() (int64, error) {
	var seq *int64
	if err := l.db.Model(&RecentEditRecord{}).Select("MAX(seq)").Scan(&seq).Error; err != nil {
		return 0, fmt.Errorf("max seq: %w", err)
	}
	if seq == nil {
		return 0, nil
	}
	return *seq, nil
}

// DeleteOlderThan deletes edits recorded before the cutoff. Returns the
// number of deleted records.
func (l *EditLog) DeleteOlderThan(cutoff time.Time) (int64, error) {
	result := l.db.Where("edited_at < ?", cutoff).Delete(&RecentEditRecord{})
	if result.Error != nil {
		return 0, fmt.Errorf("delete old edits: %w", result.Error)
	}
	return result.RowsAffected, nil
}
