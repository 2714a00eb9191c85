package assets

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/civicworks/roadops/pkg/notify"
)

// Store provides database operations for road/park assets. Every mutation
// appends a notify.RecentEditRecord in the same transaction as the asset
// row, and broadcasts it to live subscribers only after the commit.
type Store struct {
	db    *gorm.DB
	edits *notify.EditLog
	bus   *notify.Bus
}

// NewStore creates a new asset Store. bus may be nil, in which case edits
// are still logged durably but not pushed to live subscribers.
func NewStore(db *gorm.DB, edits *notify.EditLog, bus *notify.Bus) *Store {
	return &Store{db: db, edits: edits, bus: bus}
}

// AutoMigrate creates or updates the road_assets table.
func (s *Store) AutoMigrate() error {
	if err := s.db.AutoMigrate(&RoadAssetRecord{}); err != nil {
		return fmt.Errorf("auto-migrate road_assets: %w", err)
	}
	return nil
}

// Create inserts a new asset and records a create edit.
func (s *Store) Create(req CreateAssetRequest) (*RoadAssetRecord, error) {
	if req.AssetType == "" || req.Name == "" {
		return nil, fmt.Errorf("assetType and name are required")
	}
	rec := &RoadAssetRecord{
		ID:        uuid.New().String(),
		AssetType: req.AssetType,
		Name:      req.Name,
		Ward:      req.Ward,
		BBox:      notify.JSONBBox(req.BBox),
		Surface:   req.Surface,
		LengthM:   req.LengthM,
		Notes:     req.Notes,
	}
	edit := s.editFor(rec, notify.EditCreate)
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(rec).Error; err != nil {
			return fmt.Errorf("create asset: %w", err)
		}
		return s.edits.AppendTx(tx, edit)
	})
	if err != nil {
		return nil, err
	}
	s.broadcast(edit)
	return rec, nil
}

// Get returns an asset by ID, or nil if not found.
func (s *Store) Get(id string) (*RoadAssetRecord, error) {
	return getAsset(s.db, id)
}

func getAsset(db *gorm.DB, id string) (*RoadAssetRecord, error) {
	var rec RoadAssetRecord
	if err := db.Where("id = ?", id).First(&rec).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("get asset: %w", err)
	}
	return &rec, nil
}

// List returns assets filtered by type and ward, using keyset pagination
// on create time. Returns the page and the next page token ("" when done).
func (s *Store) List(assetType, ward string, pageSize int, pageToken string) ([]RoadAssetRecord, string, error) {
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	query := s.db.Order("create_time ASC, id ASC")
	if assetType != "" {
		query = query.Where("asset_type = ?", assetType)
	}
	if ward != "" {
		query = query.Where("ward = ?", ward)
	}
	if pageToken != "" {
		cursor, err := time.Parse(time.RFC3339Nano, pageToken)
		if err != nil {
			return nil, "", fmt.Errorf("invalid page token: %w", err)
		}
		query = query.Where("create_time > ?", cursor)
	}

	var records []RoadAssetRecord
	if err := query.Limit(pageSize + 1).Find(&records).Error; err != nil {
		return nil, "", fmt.Errorf("list assets: %w", err)
	}
	nextToken := ""
	if len(records) > pageSize {
		records = records[:pageSize]
		nextToken = records[len(records)-1].CreateTime.Format(time.RFC3339Nano)
	}
	return records, nextToken, nil
}

// Update applies the non-nil fields of req and records an update edit.
// Returns nil if the asset does not exist. The base row is read inside the
// transaction that writes it, so concurrent updates serialize against the
// committed state and the edit record always matches the row it describes.
func (s *Store) Update(id string, req UpdateAssetRequest) (*RoadAssetRecord, error) {
	var rec *RoadAssetRecord
	var edit *notify.RecentEditRecord
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		rec, err = getAsset(tx, id)
		if err != nil || rec == nil {
			return err
		}
		if req.Name != nil {
			rec.Name = *req.Name
		}
		if req.Ward != nil {
			rec.Ward = *req.Ward
		}
		if req.BBox != nil {
			rec.BBox = notify.JSONBBox(*req.BBox)
		}
		if req.Surface != nil {
			rec.Surface = *req.Surface
		}
		if req.LengthM != nil {
			rec.LengthM = *req.LengthM
		}
		if req.Notes != nil {
			rec.Notes = *req.Notes
		}
		edit = s.editFor(rec, notify.EditUpdate)
		if err := tx.Save(rec).Error; err != nil {
			return fmt.Errorf("update asset: %w", err)
		}
		return s.edits.AppendTx(tx, edit)
	})
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, nil
	}
	s.broadcast(edit)
	return rec, nil
}

// Delete soft-deletes an asset and records a delete edit. Returns false if
// the asset does not exist. The snapshot for the edit record is taken inside
// the deleting transaction.
func (s *Store) Delete(id string) (bool, error) {
	var found bool
	var edit *notify.RecentEditRecord
	err := s.db.Transaction(func(tx *gorm.DB) error {
		rec, err := getAsset(tx, id)
		if err != nil || rec == nil {
			return err
		}
		found = true
		edit = s.editFor(rec, notify.EditDelete)
		if err := tx.Delete(&RoadAssetRecord{}, "id = ?", id).Error; err != nil {
			return fmt.Errorf("delete asset: %w", err)
		}
		return s.edits.AppendTx(tx, edit)
	})
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}
	s.broadcast(edit)
	return true, nil
}

func (s *Store) editFor(rec *RoadAssetRecord, editType string) *notify.RecentEditRecord {
	return &notify.RecentEditRecord{
		ID:          uuid.New().String(),
		RoadAssetID: rec.ID,
		EditType:    editType,
		BBox:        rec.BBox,
		RoadName:    rec.Name,
		Ward:        rec.Ward,
		EditedAt:    time.Now(),
	}
}

// broadcast pushes a committed edit to live subscribers. The Seq field is
// populated by the insert, so subscribers see the durable cursor.
func (s *Store) broadcast(edit *notify.RecentEditRecord) {
	if s.bus != nil {
		s.bus.Broadcast(*edit)
	}
}
