package notify

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// JSONBBox is a custom GORM type for a bounding box stored as JSON
// ([minX, minY, maxX, maxY]).
type JSONBBox []float64

// Scan implements the sql.Scanner interface for JSONBBox.
func (b *JSONBBox) Scan(value any) error {
	if value == nil {
		*b = nil
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case string:
		bytes = []byte(v)
	case []byte:
		bytes = v
	default:
		return fmt.Errorf("unsupported type for JSONBBox: %T", value)
	}
	return json.Unmarshal(bytes, b)
}

// Value implements the driver.Valuer interface for JSONBBox.
func (b JSONBBox) Value() (driver.Value, error) {
	if b == nil {
		return nil, nil
	}
	data, err := json.Marshal(b)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// RecentEditRecord is an immutable, append-only log entry documenting a
// create/update/delete on a road/park asset. Seq is the insertion sequence
// and the replay cursor; the log's total order is (edited_at, seq).
type RecentEditRecord struct {
	Seq         int64     `gorm:"primaryKey;column:seq;autoIncrement" json:"seq"`
	ID          string    `gorm:"column:id;type:varchar(36);uniqueIndex;not null" json:"id"`
	RoadAssetID string    `gorm:"column:road_asset_id;index;not null" json:"roadAssetId"`
	EditType    string    `gorm:"column:edit_type;not null" json:"editType"`
	BBox        JSONBBox  `gorm:"column:bbox;type:text" json:"bbox,omitempty"`
	RoadName    string    `gorm:"column:road_name" json:"roadName,omitempty"`
	Ward        string    `gorm:"column:ward" json:"ward,omitempty"`
	EditedAt    time.Time `gorm:"column:edited_at;index" json:"editedAt"`
}

// TableName returns the GORM table name.
func (RecentEditRecord) TableName() string { return "recent_edits" }

// Edit types recorded in the log.
const (
	EditCreate = "create"
	EditUpdate = "update"
	EditDelete = "delete"
)

// StatusEvent is a workflow audit event carried on the bus's internal
// channel, distinct from the user-facing road-edit channel.
type StatusEvent struct {
	Kind     string    `json:"kind"`
	EntityID string    `json:"entityId"`
	From     string    `json:"from"`
	To       string    `json:"to"`
	Actor    string    `json:"actor"`
	At       time.Time `json:"at"`
}
