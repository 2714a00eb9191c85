package workflow

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/civicworks/roadops/pkg/rbac"
)

// statusForCode maps transition error codes to HTTP status codes.
func statusForCode(code string) int {
	switch code {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeUnauthorized:
		return http.StatusForbidden
	case CodeInvalidTransition, CodeStaleState, CodeDecisionRequired, CodeEvidenceSignOffRequired:
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

// writeTransitionErr writes a TransitionError as a JSON body with its mapped
// status, or a generic 500 for unexpected errors.
func writeTransitionErr(w http.ResponseWriter, err error) {
	var te *TransitionError
	if errors.As(err, &te) {
		writeJSON(w, statusForCode(te.Code), te)
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

func createEventHandler(engine *Engine, extractor rbac.RoleExtractor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateEventRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}
		rec, err := engine.CreateEvent(r.Context(), req, rbac.Actor(r), extractor(r))
		if err != nil {
			writeTransitionErr(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, rec)
	}
}

func getEventHandler(store *EventStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, err := store.GetEvent(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if rec == nil {
			writeError(w, http.StatusNotFound, "event not found")
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}

func listEventsHandler(store *EventStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		pageSize := 20
		if ps := q.Get("pageSize"); ps != "" {
			if v, err := strconv.Atoi(ps); err == nil && v > 0 {
				pageSize = v
			}
		}
		records, nextToken, err := store.ListEvents(q.Get("status"), q.Get("ward"), pageSize, q.Get("pageToken"))
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"events":        records,
			"nextPageToken": nextToken,
		})
	}
}

func transitionEventHandler(engine *Engine, extractor rbac.RoleExtractor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			To string `json:"to"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}
		result, err := engine.TransitionEvent(r.Context(), chi.URLParam(r, "id"), EventStatus(req.To), rbac.Actor(r), extractor(r))
		if err != nil {
			writeTransitionErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func recordDecisionHandler(engine *Engine, extractor rbac.RoleExtractor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			PostEndDecision string `json:"postEndDecision"`
			Notes           string `json:"notes"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}
		err := engine.RecordDecision(r.Context(), chi.URLParam(r, "id"), PostEndDecision(req.PostEndDecision), req.Notes, rbac.Actor(r), extractor(r))
		if err != nil {
			writeTransitionErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"id":              chi.URLParam(r, "id"),
			"postEndDecision": req.PostEndDecision,
		})
	}
}

func duplicateEventHandler(engine *Engine, extractor rbac.RoleExtractor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, err := engine.DuplicateEvent(r.Context(), chi.URLParam(r, "id"), rbac.Actor(r), extractor(r))
		if err != nil {
			writeTransitionErr(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, rec)
	}
}

func eventHistoryHandler(changes *StatusChangeStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		pageSize := 20
		if ps := q.Get("pageSize"); ps != "" {
			if v, err := strconv.Atoi(ps); err == nil && v > 0 {
				pageSize = v
			}
		}
		records, nextToken, err := changes.ListByEntity(chi.URLParam(r, "id"), pageSize, q.Get("pageToken"))
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"changes":       records,
			"nextPageToken": nextToken,
		})
	}
}

func createWorkOrderHandler(engine *Engine, extractor rbac.RoleExtractor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateWorkOrderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}
		rec, err := engine.CreateWorkOrder(r.Context(), chi.URLParam(r, "id"), req, rbac.Actor(r), extractor(r))
		if err != nil {
			writeTransitionErr(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, rec)
	}
}

func listWorkOrdersHandler(store *EventStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		records, err := store.ListWorkOrdersByEvent(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"workOrders": records})
	}
}

func getWorkOrderHandler(store *EventStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, err := store.GetWorkOrder(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if rec == nil {
			writeError(w, http.StatusNotFound, "work order not found")
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}

func transitionWorkOrderHandler(engine *Engine, extractor rbac.RoleExtractor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			To string `json:"to"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}
		result, err := engine.TransitionWorkOrder(r.Context(), chi.URLParam(r, "id"), WorkOrderStatus(req.To), rbac.Actor(r), extractor(r))
		if err != nil {
			writeTransitionErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func submitEvidenceHandler(engine *Engine, extractor rbac.RoleExtractor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SubmitEvidenceRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}
		rec, err := engine.SubmitEvidence(r.Context(), chi.URLParam(r, "id"), req, rbac.Actor(r), extractor(r))
		if err != nil {
			writeTransitionErr(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, rec)
	}
}

func listEvidenceHandler(store *EventStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		records, err := store.ListEvidenceByWorkOrder(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"evidence": records})
	}
}

func evidenceDecisionHandler(engine *Engine, extractor rbac.RoleExtractor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Decision string `json:"decision"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}
		result, err := engine.MakeEvidenceDecision(r.Context(), chi.URLParam(r, "id"), ReviewStatus(req.Decision), rbac.Actor(r), extractor(r))
		if err != nil {
			writeTransitionErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func linkAssetHandler(store *EventStore, extractor rbac.RoleExtractor, checker rbac.CapabilityChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !checker(extractor(r), rbac.CapTransitionEvent) {
			writeError(w, http.StatusForbidden, "insufficient permissions")
			return
		}
		var req struct {
			AssetID   string `json:"assetId"`
			AssetType string `json:"assetType"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AssetID == "" {
			writeError(w, http.StatusBadRequest, "assetId is required")
			return
		}
		if err := store.LinkAsset(chi.URLParam(r, "id"), req.AssetID, req.AssetType); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"eventId": chi.URLParam(r, "id"), "assetId": req.AssetID})
	}
}

func statusCountsHandler(views *Views) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		counts, err := views.StatusCounts()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, counts)
	}
}

func wardCountsHandler(views *Views) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		counts, err := views.ActiveCountsByWard()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, counts)
	}
}

func eventOverviewHandler(views *Views) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		overview, err := views.Overview(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if overview == nil {
			writeError(w, http.StatusNotFound, "event not found")
			return
		}
		writeJSON(w, http.StatusOK, overview)
	}
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
