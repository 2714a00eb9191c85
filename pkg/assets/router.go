package assets

import (
	"github.com/go-chi/chi/v5"

	"github.com/civicworks/roadops/pkg/rbac"
)

// NewRouter creates a chi router with the asset API routes. Reads are open;
// mutations require the manage-assets capability.
func NewRouter(store *Store, extractor rbac.RoleExtractor, checker rbac.CapabilityChecker) chi.Router {
	if extractor == nil {
		extractor = rbac.DefaultRoleExtractor
	}
	if checker == nil {
		checker = rbac.DefaultChecker
	}

	r := chi.NewRouter()
	r.Get("/", listAssetsHandler(store))
	r.Get("/{id}", getAssetHandler(store))

	r.Group(func(r chi.Router) {
		r.Use(rbac.RequireCapability(rbac.CapManageAssets, extractor, checker))
		r.Post("/", createAssetHandler(store))
		r.Put("/{id}", updateAssetHandler(store))
		r.Delete("/{id}", deleteAssetHandler(store))
	})

	return r
}
