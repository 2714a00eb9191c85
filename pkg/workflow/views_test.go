package workflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestViews_StatusCounts(t *testing.T) {
	db := newTestDB(t)
	store := NewEventStore(db)
	views := NewViews(db)

	seedEvent(t, store, "ev-1", EventPlanned)
	seedEvent(t, store, "ev-2", EventPlanned)
	seedEvent(t, store, "ev-3", EventActive)
	seedEvent(t, store, "ev-4", EventClosed)

	counts, err := views.StatusCounts()
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts["planned"])
	assert.Equal(t, int64(1), counts["active"])
	assert.Equal(t, int64(1), counts["closed"])
	assert.Zero(t, counts["archived"])
}

func TestViews_ActiveCountsByWard(t *testing.T) {
	db := newTestDB(t)
	store := NewEventStore(db)
	views := NewViews(db)

	mk := func(id, ward string, status EventStatus) {
		require.NoError(t, store.CreateEvent(&ConstructionEventRecord{
			ID: id, Name: id, Ward: ward, CreatedBy: "alice", Status: string(status),
		}))
	}
	mk("ev-1", "north", EventActive)
	mk("ev-2", "north", EventPlanned)
	mk("ev-3", "south", EventPendingReview)
	// Terminal states do not count.
	mk("ev-4", "north", EventClosed)
	mk("ev-5", "south", EventCancelled)

	counts, err := views.ActiveCountsByWard()
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts["north"])
	assert.Equal(t, int64(1), counts["south"])
}

func TestViews_ProgressForEvent(t *testing.T) {
	db := newTestDB(t)
	store := NewEventStore(db)
	views := NewViews(db)

	seedEvent(t, store, "ev-1", EventActive)
	mk := func(id string, status WorkOrderStatus) {
		require.NoError(t, store.CreateWorkOrder(&WorkOrderRecord{
			ID: id, EventID: "ev-1", Title: id, Status: string(status),
		}))
	}
	mk("wo-1", WorkOrderCompleted)
	mk("wo-2", WorkOrderInProgress)
	mk("wo-3", WorkOrderCancelled)
	mk("wo-4", WorkOrderDraft)

	progress, err := views.ProgressForEvent("ev-1")
	require.NoError(t, err)
	assert.Equal(t, int64(4), progress.Total)
	assert.Equal(t, int64(1), progress.Completed)
	assert.Equal(t, int64(1), progress.Cancelled)
	assert.Equal(t, int64(2), progress.Open)
}

func TestViews_Overview(t *testing.T) {
	db := newTestDB(t)
	store := NewEventStore(db)
	views := NewViews(db)

	seedEvent(t, store, "ev-1", EventActive)
	require.NoError(t, store.CreateWorkOrder(&WorkOrderRecord{ID: "wo-1", EventID: "ev-1", Title: "repave", Status: string(WorkOrderInProgress)}))
	require.NoError(t, store.CreateEvidence(&EvidenceRecord{
		ID: "e-1", WorkOrderID: "wo-1", FileRef: "s3://e/1", SubmittedBy: "bob", SubmittedAt: time.Now(), ReviewStatus: string(ReviewApproved),
	}))
	require.NoError(t, store.LinkAsset("ev-1", "road-7", "road"))

	overview, err := views.Overview("ev-1")
	require.NoError(t, err)
	require.NotNil(t, overview)
	assert.Len(t, overview.WorkOrders, 1)
	assert.Equal(t, int64(1), overview.Evidence[string(ReviewApproved)])
	assert.Len(t, overview.Assets, 1)

	missing, err := views.Overview("nonexistent")
	require.NoError(t, err)
	assert.Nil(t, missing)
}
