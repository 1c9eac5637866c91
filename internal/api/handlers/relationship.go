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

type RelationshipHandler struct {
	cmi *service.CMI
}

func NewRelationshipHandler(cmi *service.CMI) *RelationshipHandler {
	return &RelationshipHandler{cmi: cmi}
}

type createRelationshipRequest struct {
	Source   domain.MemoryRef `json:"source"`
	Target   domain.MemoryRef `json:"target"`
	Kind     string           `json:"kind"`
	Strength float32          `json:"strength,omitempty"`
	Metadata map[string]any   `json:"metadata,omitempty"`
}

func (h *RelationshipHandler) Create(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.TenantFromContext(r.Context())
	if tenant == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req createRelationshipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Strength == 0 {
		req.Strength = 0.5
	}

	rel, err := h.cmi.CreateRelationship(r.Context(), tenant.ID, req.Source, req.Target, req.Kind, req.Strength, req.Metadata)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rel)
}

// Related lists edges touching one memory, strongest first.
func (h *RelationshipHandler) Related(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.TenantFromContext(r.Context())
	if tenant == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	memoryID, err := uuid.Parse(r.URL.Query().Get("memory_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid memory_id")
		return
	}
	ref := domain.MemoryRef{
		ModuleID: r.URL.Query().Get("module"),
		MemoryID: memoryID,
	}
	if ref.ModuleID == "" {
		writeError(w, http.StatusBadRequest, "module is required")
		return
	}

	rels, err := h.cmi.GetRelatedMemories(r.Context(), tenant.ID, ref, r.URL.Query().Get("kind"), queryInt(r, "limit", 0))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"relationships": rels})
}

func (h *RelationshipHandler) Delete(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.TenantFromContext(r.Context())
	if tenant == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid relationship id")
		return
	}

	if err := h.cmi.DeleteRelationship(r.Context(), tenant.ID, id); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
