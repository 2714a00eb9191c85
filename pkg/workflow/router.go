package workflow

import (
	"github.com/go-chi/chi/v5"

	"github.com/civicworks/roadops/pkg/rbac"
)

// NewRouter creates a chi router with the lifecycle API routes.
// extractor resolves the actor's role per request; checker is the capability
// matrix handed to the engine's guards. Both default when nil.
func NewRouter(engine *Engine, store *EventStore, changes *StatusChangeStore, views *Views, extractor rbac.RoleExtractor, checker rbac.CapabilityChecker) chi.Router {
	if extractor == nil {
		extractor = rbac.DefaultRoleExtractor
	}
	if checker == nil {
		checker = rbac.DefaultChecker
	}

	r := chi.NewRouter()

	r.Route("/events", func(r chi.Router) {
		r.Post("/", createEventHandler(engine, extractor))
		r.Get("/", listEventsHandler(store))
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", getEventHandler(store))
			r.Post("/transition", transitionEventHandler(engine, extractor))
			r.Post("/decision", recordDecisionHandler(engine, extractor))
			r.Post("/duplicate", duplicateEventHandler(engine, extractor))
			r.Get("/history", eventHistoryHandler(changes))
			r.Get("/overview", eventOverviewHandler(views))
			r.Get("/workorders", listWorkOrdersHandler(store))
			r.Post("/workorders", createWorkOrderHandler(engine, extractor))
			r.Post("/assets", linkAssetHandler(store, extractor, checker))
		})
	})

	r.Route("/workorders/{id}", func(r chi.Router) {
		r.Get("/", getWorkOrderHandler(store))
		r.Post("/transition", transitionWorkOrderHandler(engine, extractor))
		r.Get("/evidence", listEvidenceHandler(store))
		r.Post("/evidence", submitEvidenceHandler(engine, extractor))
	})

	r.Post("/evidence/{id}/decision", evidenceDecisionHandler(engine, extractor))

	r.Route("/views", func(r chi.Router) {
		r.Get("/status-counts", statusCountsHandler(views))
		r.Get("/wards", wardCountsHandler(views))
	})

	return r
}
