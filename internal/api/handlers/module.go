package handlers

import (
	"net/http"

	"github.com/mnemohq/mnemo/internal/api/middleware"
	"github.com/mnemohq/mnemo/internal/service"
)

type ModuleHandler struct {
	registry *service.ModuleRegistry
	pipeline *service.Pipeline
}

func NewModuleHandler(registry *service.ModuleRegistry, pipeline *service.Pipeline) *ModuleHandler {
	return &ModuleHandler{registry: registry, pipeline: pipeline}
}

// List describes the available modules.
func (h *ModuleHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"modules": h.registry.Configs()})
}

// Stats aggregates per-module counters for the tenant.
func (h *ModuleHandler) Stats(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.TenantFromContext(r.Context())
	if tenant == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	stats, err := h.registry.StatsAll(r.Context(), tenant.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stats": stats})
}

// Purge erases all of the tenant's data across every module.
func (h *ModuleHandler) Purge(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.TenantFromContext(r.Context())
	if tenant == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	deleted, err := h.pipeline.PurgeTenant(r.Context(), tenant.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": deleted})
}
