package workflow

import "time"

// ConstructionEventRecord stores a restriction event. Events are never
// physically deleted; cancelled and archived are terminal soft states
// retained for audit.
type ConstructionEventRecord struct {
	ID                      string     `gorm:"primaryKey;column:id;type:varchar(36)" json:"id"`
	Name                    string     `gorm:"column:name;not null" json:"name"`
	RestrictionType         string     `gorm:"column:restriction_type;index" json:"restrictionType"`
	Ward                    string     `gorm:"column:ward;index" json:"ward"`
	Department              string     `gorm:"column:department" json:"department"`
	CreatedBy               string     `gorm:"column:created_by;not null" json:"createdBy"`
	Status                  string     `gorm:"column:status;index;default:planned;not null" json:"status"`
	PostEndDecision         string     `gorm:"column:post_end_decision" json:"postEndDecision,omitempty"`
	RequiresEvidenceSignOff bool       `gorm:"column:requires_evidence_sign_off" json:"requiresEvidenceSignOff"`
	StartDate               *time.Time `gorm:"column:start_date" json:"startDate,omitempty"`
	EndDate                 *time.Time `gorm:"column:end_date" json:"endDate,omitempty"`
	ArchivedAt              *time.Time `gorm:"column:archived_at" json:"archivedAt,omitempty"`
	RefAssetID              string     `gorm:"column:ref_asset_id" json:"refAssetId,omitempty"`
	RefAssetType            string     `gorm:"column:ref_asset_type" json:"refAssetType,omitempty"`
	CreatedAt               time.Time  `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt               time.Time  `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

// TableName returns the GORM table name.
func (ConstructionEventRecord) TableName() string { return "construction_events" }

// WorkOrderRecord stores a unit of assigned work under an event.
type WorkOrderRecord struct {
	ID           string     `gorm:"primaryKey;column:id;type:varchar(36)" json:"id"`
	EventID      string     `gorm:"column:event_id;index;not null" json:"eventId"`
	Title        string     `gorm:"column:title;not null" json:"title"`
	WorkType     string     `gorm:"column:work_type" json:"type"`
	AssignedDept string     `gorm:"column:assigned_dept" json:"assignedDept"`
	Status       string     `gorm:"column:status;index;default:draft;not null" json:"status"`
	DueDate      *time.Time `gorm:"column:due_date" json:"dueDate,omitempty"`
	CompletedAt  *time.Time `gorm:"column:completed_at" json:"completedAt,omitempty"`
	CreatedAt    time.Time  `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt    time.Time  `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

// TableName returns the GORM table name.
func (WorkOrderRecord) TableName() string { return "work_orders" }

// EvidenceRecord stores a submitted artifact under a work order. Evidence is
// exclusively owned by its work order and only removed by cascading work
// order deletion.
type EvidenceRecord struct {
	ID           string     `gorm:"primaryKey;column:id;type:varchar(36)" json:"id"`
	WorkOrderID  string     `gorm:"column:work_order_id;index;not null" json:"workOrderId"`
	FileRef      string     `gorm:"column:file_ref;not null" json:"fileRef"`
	EvidenceType string     `gorm:"column:evidence_type" json:"type"`
	Title        string     `gorm:"column:title" json:"title"`
	Description  string     `gorm:"column:description" json:"description,omitempty"`
	SubmittedBy  string     `gorm:"column:submitted_by;not null" json:"submittedBy"`
	SubmittedAt  time.Time  `gorm:"column:submitted_at" json:"submittedAt"`
	ReviewStatus string     `gorm:"column:review_status;index;default:pending;not null" json:"reviewStatus"`
	ReviewedBy   string     `gorm:"column:reviewed_by" json:"reviewedBy,omitempty"`
	ReviewedAt   *time.Time `gorm:"column:reviewed_at" json:"reviewedAt,omitempty"`
	CreatedAt    time.Time  `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt    time.Time  `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

// TableName returns the GORM table name.
func (EvidenceRecord) TableName() string { return "evidence" }

// EventAssetLinkRecord links an event to a road/park asset (N to M).
type EventAssetLinkRecord struct {
	ID        int64     `gorm:"primaryKey;column:id;autoIncrement" json:"-"`
	EventID   string    `gorm:"column:event_id;uniqueIndex:idx_event_asset,priority:1;not null" json:"eventId"`
	AssetID   string    `gorm:"column:asset_id;uniqueIndex:idx_event_asset,priority:2;index;not null" json:"assetId"`
	AssetType string    `gorm:"column:asset_type" json:"assetType"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
}

// TableName returns the GORM table name.
func (EventAssetLinkRecord) TableName() string { return "event_asset_links" }

// StatusChangeRecord is an immutable workflow audit entry, one per
// successful transition or decision. This is the durable side of the
// workflow audit channel, distinct from the road-edit notification log.
type StatusChangeRecord struct {
	ID         string    `gorm:"primaryKey;column:id;type:varchar(36)" json:"id"`
	Kind       string    `gorm:"column:kind;index;not null" json:"kind"`
	EntityType string    `gorm:"column:entity_type;not null" json:"entityType"`
	EntityID   string    `gorm:"column:entity_id;index:idx_change_entity_time,priority:1;not null" json:"entityId"`
	FromStatus string    `gorm:"column:from_status" json:"from"`
	ToStatus   string    `gorm:"column:to_status" json:"to"`
	Actor      string    `gorm:"column:actor;not null" json:"actor"`
	ActorRole  string    `gorm:"column:actor_role" json:"actorRole"`
	Notes      string    `gorm:"column:notes" json:"notes,omitempty"`
	CreatedAt  time.Time `gorm:"column:created_at;index:idx_change_entity_time,priority:2;autoCreateTime" json:"createdAt"`
}

// TableName returns the GORM table name.
func (StatusChangeRecord) TableName() string { return "status_changes" }
