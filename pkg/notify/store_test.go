package notify

import (
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestLog creates an EditLog over an in-memory SQLite DB.
func newTestLog(t *testing.T) *EditLog {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	log := NewEditLog(db)
	require.NoError(t, log.AutoMigrate())
	return log
}

func appendEdit(t *testing.T, log *EditLog, assetID string, at time.Time) *RecentEditRecord {
	t.Helper()
	rec := &RecentEditRecord{
		ID:          fmt.Sprintf("edit-%s-%d", assetID, at.UnixNano()),
		RoadAssetID: assetID,
		EditType:    EditUpdate,
		RoadName:    "Main St",
		Ward:        "north",
		EditedAt:    at,
	}
	require.NoError(t, log.Append(rec))
	return rec
}

func TestEditLog_AppendAssignsSeq(t *testing.T) {
	log := newTestLog(t)
	now := time.Now()

	first := appendEdit(t, log, "road-1", now)
	second := appendEdit(t, log, "road-2", now.Add(time.Second))

	assert.Greater(t, first.Seq, int64(0))
	assert.Greater(t, second.Seq, first.Seq)

	max, err := log.MaxSeq()
	require.NoError(t, err)
	assert.Equal(t, second.Seq, max)
}

func TestEditLog_MaxSeqEmpty(t *testing.T) {
	log := newTestLog(t)
	max, err := log.MaxSeq()
	require.NoError(t, err)
	assert.Equal(t, int64(0), max)
}

func TestEditLog_ListRecentNewestFirst(t *testing.T) {
	log := newTestLog(t)
	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		appendEdit(t, log, fmt.Sprintf("road-%d", i), base.Add(time.Duration(i)*time.Minute))
	}

	records, err := log.ListRecent(3, 0)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "road-4", records[0].RoadAssetID)
	assert.Equal(t, "road-2", records[2].RoadAssetID)

	// Paginate older than the last seq of the first page.
	older, err := log.ListRecent(3, records[2].Seq)
	require.NoError(t, err)
	require.Len(t, older, 2)
	assert.Equal(t, "road-1", older[0].RoadAssetID)
}

func TestEditLog_SinceReplaysOldestFirst(t *testing.T) {
	log := newTestLog(t)
	base := time.Now().Add(-time.Hour)
	var seqs []int64
	for i := 0; i < 4; i++ {
		rec := appendEdit(t, log, fmt.Sprintf("road-%d", i), base.Add(time.Duration(i)*time.Minute))
		seqs = append(seqs, rec.Seq)
	}

	records, err := log.Since(seqs[1], 10)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, seqs[2], records[0].Seq)
	assert.Equal(t, seqs[3], records[1].Seq)

	// Cursor at the head replays nothing.
	records, err = log.Since(seqs[3], 10)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestEditLog_SinceCapsLimit(t *testing.T) {
	log := newTestLog(t)
	base := time.Now().Add(-time.Hour)
	for i := 0; i < 510; i++ {
		appendEdit(t, log, fmt.Sprintf("road-%d", i), base.Add(time.Duration(i)*time.Second))
	}

	// A client-supplied limit cannot pull the whole log in one page.
	records, err := log.Since(0, 1_000_000)
	require.NoError(t, err)
	require.Len(t, records, 500)
	assert.Equal(t, "road-0", records[0].RoadAssetID)
}

func TestEditLog_DeleteOlderThan(t *testing.T) {
	log := newTestLog(t)
	now := time.Now()
	appendEdit(t, log, "road-old", now.Add(-48*time.Hour))
	appendEdit(t, log, "road-new", now)

	deleted, err := log.DeleteOlderThan(now.Add(-24 * time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	records, err := log.ListRecent(10, 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "road-new", records[0].RoadAssetID)
}

func TestEditLog_BBoxRoundTrip(t *testing.T) {
	log := newTestLog(t)
	rec := &RecentEditRecord{
		ID:          "edit-bbox",
		RoadAssetID: "road-1",
		EditType:    EditCreate,
		BBox:        JSONBBox{139.6, 35.6, 139.7, 35.7},
		EditedAt:    time.Now(),
	}
	require.NoError(t, log.Append(rec))

	records, err := log.ListRecent(1, 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, JSONBBox{139.6, 35.6, 139.7, 35.7}, records[0].BBox)
}
