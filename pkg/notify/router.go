package notify

import (
	"github.com/go-chi/chi/v5"
)

// NewRouter creates a chi router with the recent-edits API routes.
func NewRouter(log *EditLog, bus *Bus) chi.Router {
	r := chi.NewRouter()
	r.Get("/recent-edits", listRecentEditsHandler(log))
	r.Get("/recent-edits/stream", streamEditsHandler(bus))
	return r
}
