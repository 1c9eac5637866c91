package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/mnemohq/mnemo/internal/api/middleware"
	"github.com/mnemohq/mnemo/internal/domain"
	"github.com/mnemohq/mnemo/internal/service"
)

type CustomFieldHandler struct {
	svc *service.CustomFields
}

func NewCustomFieldHandler(svc *service.CustomFields) *CustomFieldHandler {
	return &CustomFieldHandler{svc: svc}
}

func (h *CustomFieldHandler) Define(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.TenantFromContext(r.Context())
	if tenant == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var def domain.CustomFieldDef
	if err := json.NewDecoder(r.Body).Decode(&def); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	created, err := h.svc.Define(r.Context(), tenant.ID, chi.URLParam(r, "module"), def)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *CustomFieldHandler) List(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.TenantFromContext(r.Context())
	if tenant == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	defs, err := h.svc.List(r.Context(), tenant.ID, chi.URLParam(r, "module"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if defs == nil {
		defs = []domain.CustomFieldDef{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"fields": defs})
}

func (h *CustomFieldHandler) Remove(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.TenantFromContext(r.Context())
	if tenant == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := h.svc.Remove(r.Context(), tenant.ID, chi.URLParam(r, "module"), chi.URLParam(r, "key")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
