package workflow

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicworks/roadops/pkg/rbac"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	db := newTestDB(t)
	store := NewEventStore(db)
	changes := NewStatusChangeStore(db)
	views := NewViews(db)
	engine := NewEngine(EngineConfig{Store: store, Changes: changes})
	srv := httptest.NewServer(NewRouter(engine, store, changes, views, nil, nil))
	t.Cleanup(srv.Close)
	return srv
}

// do performs a request with the given role and decodes the JSON response.
func do(t *testing.T, srv *httptest.Server, method, path, role string, payload any) (*http.Response, []byte) {
	t.Helper()
	var body bytes.Buffer
	if payload != nil {
		require.NoError(t, json.NewEncoder(&body).Encode(payload))
	}
	req, err := http.NewRequest(method, srv.URL+path, &body)
	require.NoError(t, err)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if role != "" {
		req.Header.Set(rbac.RoleHeader, role)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, buf.Bytes()
}

func createEventHTTP(t *testing.T, srv *httptest.Server, name string) string {
	t.Helper()
	resp, body := do(t, srv, "POST", "/events", "operator", map[string]any{"name": name})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var rec ConstructionEventRecord
	require.NoError(t, json.Unmarshal(body, &rec))
	return rec.ID
}

func TestHandlers_CreateAndGetEvent(t *testing.T) {
	srv := newTestServer(t)

	id := createEventHTTP(t, srv, "Main St resurfacing")

	resp, body := do(t, srv, "GET", "/events/"+id, "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var rec ConstructionEventRecord
	require.NoError(t, json.Unmarshal(body, &rec))
	assert.Equal(t, "Main St resurfacing", rec.Name)
	assert.Equal(t, string(EventPlanned), rec.Status)

	resp, _ = do(t, srv, "GET", "/events/nonexistent", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandlers_TransitionStatusMapping(t *testing.T) {
	srv := newTestServer(t)
	id := createEventHTTP(t, srv, "Lane closure")

	// Viewer is forbidden.
	resp, body := do(t, srv, "POST", "/events/"+id+"/transition", "viewer", map[string]string{"to": "active"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	var te TransitionError
	require.NoError(t, json.Unmarshal(body, &te))
	assert.Equal(t, CodeUnauthorized, te.Code)

	// Invalid edge is a conflict.
	resp, body = do(t, srv, "POST", "/events/"+id+"/transition", "operator", map[string]string{"to": "closed"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &te))
	assert.Equal(t, CodeInvalidTransition, te.Code)

	// Unknown event is 404.
	resp, _ = do(t, srv, "POST", "/events/nonexistent/transition", "operator", map[string]string{"to": "active"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// Legal transition succeeds.
	resp, body = do(t, srv, "POST", "/events/"+id+"/transition", "operator", map[string]string{"to": "active"})
	assert.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var result TransitionResult
	require.NoError(t, json.Unmarshal(body, &result))
	assert.Equal(t, "active", result.To)
}

func TestHandlers_DecisionRequiredConflict(t *testing.T) {
	srv := newTestServer(t)
	id := createEventHTTP(t, srv, "Crosswalk rebuild")

	do(t, srv, "POST", "/events/"+id+"/transition", "operator", map[string]string{"to": "active"})
	do(t, srv, "POST", "/events/"+id+"/transition", "operator", map[string]string{"to": "pending_review"})

	resp, body := do(t, srv, "POST", "/events/"+id+"/transition", "authority", map[string]string{"to": "closed"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	var te TransitionError
	require.NoError(t, json.Unmarshal(body, &te))
	assert.Equal(t, CodeDecisionRequired, te.Code)

	resp, _ = do(t, srv, "POST", "/events/"+id+"/decision", "operator", map[string]string{"postEndDecision": "no-change"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = do(t, srv, "POST", "/events/"+id+"/transition", "authority", map[string]string{"to": "closed"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHandlers_ListHidesArchived(t *testing.T) {
	srv := newTestServer(t)

	id := createEventHTTP(t, srv, "Archive me")
	for _, to := range []string{"active", "pending_review"} {
		resp, body := do(t, srv, "POST", "/events/"+id+"/transition", "operator", map[string]string{"to": to})
		require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	}
	do(t, srv, "POST", "/events/"+id+"/decision", "operator", map[string]string{"postEndDecision": "no-change"})
	resp, body := do(t, srv, "POST", "/events/"+id+"/transition", "authority", map[string]string{"to": "closed"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	resp, body = do(t, srv, "POST", "/events/"+id+"/transition", "operator", map[string]string{"to": "archived"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	createEventHTTP(t, srv, "Still visible")

	resp, body = do(t, srv, "GET", "/events", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list struct {
		Events []ConstructionEventRecord `json:"events"`
	}
	require.NoError(t, json.Unmarshal(body, &list))
	require.Len(t, list.Events, 1)
	assert.Equal(t, "Still visible", list.Events[0].Name)

	resp, body = do(t, srv, "GET", "/events?status=archived", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &list))
	require.Len(t, list.Events, 1)
	assert.Equal(t, "Archive me", list.Events[0].Name)
}

func TestHandlers_WorkOrderAndEvidenceFlow(t *testing.T) {
	srv := newTestServer(t)
	id := createEventHTTP(t, srv, "Paving with sign-off")
	do(t, srv, "POST", "/events/"+id+"/transition", "operator", map[string]string{"to": "active"})

	resp, body := do(t, srv, "POST", "/events/"+id+"/workorders", "operator", map[string]string{"title": "north lane"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var wo WorkOrderRecord
	require.NoError(t, json.Unmarshal(body, &wo))

	for _, to := range []string{"assigned", "in_progress"} {
		resp, body = do(t, srv, "POST", "/workorders/"+wo.ID+"/transition", "operator", map[string]string{"to": to})
		require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	}

	// Completion blocked without accepted evidence.
	resp, body = do(t, srv, "POST", "/workorders/"+wo.ID+"/transition", "operator", map[string]string{"to": "completed"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	var te TransitionError
	require.NoError(t, json.Unmarshal(body, &te))
	assert.Equal(t, CodeEvidenceSignOffRequired, te.Code)

	resp, body = do(t, srv, "POST", "/workorders/"+wo.ID+"/evidence", "operator", map[string]string{"fileRef": "s3://e/1.jpg"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var evd EvidenceRecord
	require.NoError(t, json.Unmarshal(body, &evd))

	resp, _ = do(t, srv, "POST", "/evidence/"+evd.ID+"/decision", "operator", map[string]string{"decision": "approved"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// The operator cannot take the authority edge.
	resp, body = do(t, srv, "POST", "/evidence/"+evd.ID+"/decision", "operator", map[string]string{"decision": "accepted_by_authority"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode, string(body))

	resp, _ = do(t, srv, "POST", "/evidence/"+evd.ID+"/decision", "authority", map[string]string{"decision": "accepted_by_authority"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = do(t, srv, "POST", "/workorders/"+wo.ID+"/transition", "operator", map[string]string{"to": "completed"})
	assert.Equal(t, http.StatusOK, resp.StatusCode, string(body))
}

func TestHandlers_HistoryAndViews(t *testing.T) {
	srv := newTestServer(t)
	id := createEventHTTP(t, srv, "History check")
	do(t, srv, "POST", "/events/"+id+"/transition", "operator", map[string]string{"to": "active"})

	resp, body := do(t, srv, "GET", "/events/"+id+"/history", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var history struct {
		Changes []StatusChangeRecord `json:"changes"`
	}
	require.NoError(t, json.Unmarshal(body, &history))
	require.Len(t, history.Changes, 1)
	assert.Equal(t, KindEventStatusChanged, history.Changes[0].Kind)
	assert.Equal(t, "planned", history.Changes[0].FromStatus)

	resp, body = do(t, srv, "GET", "/views/status-counts", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var counts map[string]int64
	require.NoError(t, json.Unmarshal(body, &counts))
	assert.Equal(t, int64(1), counts["active"])

	resp, body = do(t, srv, "GET", "/events/"+id+"/overview", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var overview EventOverview
	require.NoError(t, json.Unmarshal(body, &overview))
	assert.Equal(t, id, overview.Event.ID)
}

func TestHandlers_BadRequestBody(t *testing.T) {
	srv := newTestServer(t)

	req, err := http.NewRequest("POST", srv.URL+"/events", bytes.NewBufferString("{not json"))
	require.NoError(t, err)
	req.Header.Set(rbac.RoleHeader, "operator")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandlers_DuplicateEvent(t *testing.T) {
	srv := newTestServer(t)
	id := createEventHTTP(t, srv, "To duplicate")

	// Not closed yet: conflict.
	resp, _ := do(t, srv, "POST", "/events/"+id+"/duplicate", "operator", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	for _, step := range []struct{ to, role string }{
		{"active", "operator"}, {"pending_review", "operator"},
	} {
		resp, body := do(t, srv, "POST", fmt.Sprintf("/events/%s/transition", id), step.role, map[string]string{"to": step.to})
		require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	}
	do(t, srv, "POST", "/events/"+id+"/decision", "operator", map[string]string{"postEndDecision": "permanent-change"})
	resp, _ = do(t, srv, "POST", "/events/"+id+"/transition", "authority", map[string]string{"to": "closed"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := do(t, srv, "POST", "/events/"+id+"/duplicate", "operator", nil)
	assert.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var dup ConstructionEventRecord
	require.NoError(t, json.Unmarshal(body, &dup))
	assert.NotEqual(t, id, dup.ID)
	assert.Equal(t, string(EventPlanned), dup.Status)
}
