package assets

import (
	"time"

	"gorm.io/gorm"

	"github.com/civicworks/roadops/pkg/notify"
)

// RoadAssetRecord is the database model for a managed road or park asset.
// Assets are soft-deleted so historical construction events keep resolving
// their references.
type RoadAssetRecord struct {
	ID         string          `gorm:"column:id;type:varchar(36);primaryKey" json:"id"`
	AssetType  string          `gorm:"column:asset_type;not null;index" json:"assetType"`
	Name       string          `gorm:"column:name;not null" json:"name"`
	Ward       string          `gorm:"column:ward;index" json:"ward,omitempty"`
	BBox       notify.JSONBBox `gorm:"column:bbox;type:text" json:"bbox,omitempty"`
	Surface    string          `gorm:"column:surface" json:"surface,omitempty"`
	LengthM    float64         `gorm:"column:length_m" json:"lengthM,omitempty"`
	Notes      string          `gorm:"column:notes;type:text" json:"notes,omitempty"`
	CreateTime time.Time       `gorm:"column:create_time;autoCreateTime" json:"createTime"`
	UpdateTime time.Time       `gorm:"column:update_time;autoUpdateTime" json:"updateTime"`
	DeletedAt  gorm.DeletedAt  `gorm:"column:deleted_at;index" json:"-"`
}

// TableName returns the GORM table name.
func (RoadAssetRecord) TableName() string { return "road_assets" }

// Asset types managed by the service.
const (
	AssetRoad     = "road"
	AssetPark     = "park"
	AssetBridge   = "bridge"
	AssetPathway  = "pathway"
	AssetDrainage = "drainage"
)

// CreateAssetRequest is the request body for creating an asset.
type CreateAssetRequest struct {
	AssetType string    `json:"assetType"`
	Name      string    `json:"name"`
	Ward      string    `json:"ward"`
	BBox      []float64 `json:"bbox"`
	Surface   string    `json:"surface"`
	LengthM   float64   `json:"lengthM"`
	Notes     string    `json:"notes"`
}

// UpdateAssetRequest is the request body for updating an asset. Nil fields
// are left unchanged.
type UpdateAssetRequest struct {
	Name    *string    `json:"name"`
	Ward    *string    `json:"ward"`
	BBox    *[]float64 `json:"bbox"`
	Surface *string    `json:"surface"`
	LengthM *float64   `json:"lengthM"`
	Notes   *string    `json:"notes"`
}
