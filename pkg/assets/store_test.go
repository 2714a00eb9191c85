package assets

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/civicworks/roadops/pkg/notify"
)

func newTestStore(t *testing.T) (*Store, *notify.EditLog, *notify.Bus) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	log := notify.NewEditLog(db)
	require.NoError(t, log.AutoMigrate())
	bus := notify.NewBus(log, nil, nil)
	store := NewStore(db, log, bus)
	require.NoError(t, store.AutoMigrate())
	return store, log, bus
}

func TestStore_CreateLogsEdit(t *testing.T) {
	store, log, _ := newTestStore(t)

	rec, err := store.Create(CreateAssetRequest{
		AssetType: AssetRoad,
		Name:      "Main St",
		Ward:      "north",
		BBox:      []float64{139.6, 35.6, 139.7, 35.7},
	})
	require.NoError(t, err)
	require.NotEmpty(t, rec.ID)

	edits, err := log.ListRecent(10, 0)
	require.NoError(t, err)
	require.Len(t, edits, 1)
	assert.Equal(t, notify.EditCreate, edits[0].EditType)
	assert.Equal(t, rec.ID, edits[0].RoadAssetID)
	assert.Equal(t, "Main St", edits[0].RoadName)
	assert.Equal(t, notify.JSONBBox{139.6, 35.6, 139.7, 35.7}, edits[0].BBox)
}

func TestStore_CreateValidation(t *testing.T) {
	store, log, _ := newTestStore(t)

	_, err := store.Create(CreateAssetRequest{Name: "no type"})
	require.Error(t, err)
	_, err = store.Create(CreateAssetRequest{AssetType: AssetRoad})
	require.Error(t, err)

	// Rejected writes leave no edit record behind.
	edits, err := log.ListRecent(10, 0)
	require.NoError(t, err)
	assert.Empty(t, edits)
}

func TestStore_UpdateLogsEdit(t *testing.T) {
	store, log, _ := newTestStore(t)

	rec, err := store.Create(CreateAssetRequest{AssetType: AssetPark, Name: "Riverside Park", Ward: "east"})
	require.NoError(t, err)

	newName := "Riverside Commons"
	updated, err := store.Update(rec.ID, UpdateAssetRequest{Name: &newName})
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, "Riverside Commons", updated.Name)
	assert.Equal(t, "east", updated.Ward)

	edits, err := log.ListRecent(10, 0)
	require.NoError(t, err)
	require.Len(t, edits, 2)
	assert.Equal(t, notify.EditUpdate, edits[0].EditType)
	assert.Equal(t, "Riverside Commons", edits[0].RoadName)

	// Missing asset updates are nil, nil.
	missing, err := store.Update("nonexistent", UpdateAssetRequest{Name: &newName})
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestStore_DeleteSoftDeletesAndLogs(t *testing.T) {
	store, log, _ := newTestStore(t)

	rec, err := store.Create(CreateAssetRequest{AssetType: AssetRoad, Name: "Old Lane"})
	require.NoError(t, err)

	ok, err := store.Delete(rec.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := store.Get(rec.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	edits, err := log.ListRecent(10, 0)
	require.NoError(t, err)
	require.Len(t, edits, 2)
	assert.Equal(t, notify.EditDelete, edits[0].EditType)

	// Deleting again reports not found.
	ok, err = store.Delete(rec.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_ListFiltersAndPaginates(t *testing.T) {
	store, _, _ := newTestStore(t)

	for i, req := range []CreateAssetRequest{
		{AssetType: AssetRoad, Name: "Road A", Ward: "north"},
		{AssetType: AssetRoad, Name: "Road B", Ward: "south"},
		{AssetType: AssetPark, Name: "Park C", Ward: "north"},
	} {
		_, err := store.Create(req)
		require.NoError(t, err)
		// Distinct create times keep the keyset cursor unambiguous.
		time.Sleep(time.Duration(i+1) * time.Millisecond)
	}

	roads, _, err := store.List(AssetRoad, "", 10, "")
	require.NoError(t, err)
	assert.Len(t, roads, 2)

	north, _, err := store.List("", "north", 10, "")
	require.NoError(t, err)
	assert.Len(t, north, 2)

	page1, token, err := store.List("", "", 2, "")
	require.NoError(t, err)
	require.Len(t, page1, 2)
	require.NotEmpty(t, token)

	page2, token2, err := store.List("", "", 2, token)
	require.NoError(t, err)
	require.Len(t, page2, 1)
	assert.Empty(t, token2)
}

func TestStore_ConcurrentUpdatesMergeFields(t *testing.T) {
	store, log, _ := newTestStore(t)

	// A single pooled connection: each in-memory SQLite connection is its
	// own database, and one connection serializes the two transactions.
	sqlDB, err := store.db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	rec, err := store.Create(CreateAssetRequest{AssetType: AssetRoad, Name: "Main St", Ward: "north"})
	require.NoError(t, err)

	newName := "Main Street"
	newWard := "central"
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, err := store.Update(rec.ID, UpdateAssetRequest{Name: &newName})
		assert.NoError(t, err)
	}()
	go func() {
		defer wg.Done()
		_, err := store.Update(rec.ID, UpdateAssetRequest{Ward: &newWard})
		assert.NoError(t, err)
	}()
	wg.Wait()

	// Each update read the other's committed state, so neither field is lost.
	got, err := store.Get(rec.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Main Street", got.Name)
	assert.Equal(t, "central", got.Ward)

	// The newest edit snapshot matches the committed row.
	edits, err := log.ListRecent(1, 0)
	require.NoError(t, err)
	require.Len(t, edits, 1)
	assert.Equal(t, "Main Street", edits[0].RoadName)
	assert.Equal(t, "central", edits[0].Ward)
}

func TestStore_MutationsBroadcast(t *testing.T) {
	store, _, bus := newTestStore(t)

	sub, err := bus.Subscribe(context.Background(), "watcher", 0)
	require.NoError(t, err)
	defer sub.Close()

	rec, err := store.Create(CreateAssetRequest{AssetType: AssetRoad, Name: "Broadcast Rd"})
	require.NoError(t, err)

	select {
	case edit := <-sub.C:
		assert.Equal(t, notify.EditCreate, edit.EditType)
		assert.Equal(t, rec.ID, edit.RoadAssetID)
		assert.Greater(t, edit.Seq, int64(0))
	case <-time.After(time.Second):
		t.Fatal("no edit broadcast after create")
	}
}
