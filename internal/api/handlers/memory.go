package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/mnemohq/mnemo/internal/api/middleware"
	"github.com/mnemohq/mnemo/internal/domain"
	"github.com/mnemohq/mnemo/internal/service"
)

type MemoryHandler struct {
	pipeline *service.Pipeline
	router   *service.Router
}

func NewMemoryHandler(pipeline *service.Pipeline, router *service.Router) *MemoryHandler {
	return &MemoryHandler{pipeline: pipeline, router: router}
}

type storeMemoryRequest struct {
	Content  string         `json:"content"`
	Module   string         `json:"module,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

func (h *MemoryHandler) Store(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.TenantFromContext(r.Context())
	if tenant == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req storeMemoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.pipeline.Store(r.Context(), tenant.ID, req.Module, req.Content, req.Metadata)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

type searchRequest struct {
	Query    string         `json:"query"`
	Limit    int            `json:"limit,omitempty"`
	MinScore float32        `json:"minScore,omitempty"`
	Modules  []string       `json:"modules,omitempty"`
	Filters  map[string]any `json:"filters,omitempty"`
}

func (h *MemoryHandler) Search(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.TenantFromContext(r.Context())
	if tenant == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := h.pipeline.Search(r.Context(), tenant.ID, req.Query, service.SearchOptions{
		Limit:    req.Limit,
		MinScore: req.MinScore,
		Modules:  req.Modules,
		Filters:  req.Filters,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Route exposes the routing decision without running the search, mostly for
// debugging which modules a query would hit.
func (h *MemoryHandler) Route(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.TenantFromContext(r.Context())
	if tenant == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	query := r.URL.Query().Get("q")
	matches, err := h.router.RouteQuery(r.Context(), tenant.ID, query, queryInt(r, "top_k", 0))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"matches": matches})
}

func (h *MemoryHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	tenant, moduleID, id, ok := memoryParams(w, r)
	if !ok {
		return
	}

	memory, err := h.pipeline.Retrieve(r.Context(), tenant.ID, moduleID, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, memory)
}

type updateMemoryRequest struct {
	Content  *string        `json:"content,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

func (h *MemoryHandler) Update(w http.ResponseWriter, r *http.Request) {
	tenant, moduleID, id, ok := memoryParams(w, r)
	if !ok {
		return
	}

	var req updateMemoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	memory, err := h.pipeline.Update(r.Context(), tenant.ID, moduleID, id, service.UpdateInput{
		Content:  req.Content,
		Metadata: req.Metadata,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, memory)
}

func (h *MemoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	tenant, moduleID, id, ok := memoryParams(w, r)
	if !ok {
		return
	}

	if err := h.pipeline.Delete(r.Context(), tenant.ID, moduleID, id); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// memoryParams extracts the tenant and the {module}/{id} pair shared by the
// per-memory routes. A false return means the response is already written.
func memoryParams(w http.ResponseWriter, r *http.Request) (*domain.Tenant, string, uuid.UUID, bool) {
	tenant := middleware.TenantFromContext(r.Context())
	if tenant == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return nil, "", uuid.Nil, false
	}

	moduleID := chi.URLParam(r, "module")
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid memory id")
		return nil, "", uuid.Nil, false
	}
	return tenant, moduleID, id, true
}
