package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"

	"github.com/google/uuid"
	"github.com/mnemohq/mnemo/internal/api/middleware"
	"github.com/mnemohq/mnemo/internal/domain"
	"github.com/mnemohq/mnemo/internal/service"
)

// toolFunc executes one named tool for a tenant. Arguments arrive as raw
// JSON so each tool decodes its own shape.
type toolFunc func(ctx context.Context, tenantID uuid.UUID, args json.RawMessage) (any, error)

// ToolHandler exposes the call-by-name surface agents use instead of the
// REST routes. Every tool delegates to the same services as its REST twin.
type ToolHandler struct {
	tools map[string]toolFunc
}

func NewToolHandler(pipeline *service.Pipeline, registry *service.ModuleRegistry, cmi *service.CMI, projects *service.Projects, people *service.People) *ToolHandler {
	h := &ToolHandler{tools: make(map[string]toolFunc)}

	h.register("memory/store", func(ctx context.Context, tenantID uuid.UUID, args json.RawMessage) (any, error) {
		var in struct {
			Content  string         `json:"content"`
			Module   string         `json:"module,omitempty"`
			Metadata map[string]any `json:"metadata,omitempty"`
		}
		if err := decodeArgs(args, &in); err != nil {
			return nil, err
		}
		return pipeline.Store(ctx, tenantID, in.Module, in.Content, in.Metadata)
	})

	h.register("memory/search", func(ctx context.Context, tenantID uuid.UUID, args json.RawMessage) (any, error) {
		var in struct {
			Query    string         `json:"query"`
			Limit    int            `json:"limit,omitempty"`
			MinScore float32        `json:"minScore,omitempty"`
			Modules  []string       `json:"modules,omitempty"`
			Filters  map[string]any `json:"filters,omitempty"`
		}
		if err := decodeArgs(args, &in); err != nil {
			return nil, err
		}
		return pipeline.Search(ctx, tenantID, in.Query, service.SearchOptions{
			Limit:    in.Limit,
			MinScore: in.MinScore,
			Modules:  in.Modules,
			Filters:  in.Filters,
		})
	})

	h.register("memory/retrieve", func(ctx context.Context, tenantID uuid.UUID, args json.RawMessage) (any, error) {
		in, err := decodeRef(args)
		if err != nil {
			return nil, err
		}
		return pipeline.Retrieve(ctx, tenantID, in.ModuleID, in.MemoryID)
	})

	h.register("memory/update", func(ctx context.Context, tenantID uuid.UUID, args json.RawMessage) (any, error) {
		var in struct {
			Module   string         `json:"module"`
			MemoryID uuid.UUID      `json:"memoryId"`
			Content  *string        `json:"content,omitempty"`
			Metadata map[string]any `json:"metadata,omitempty"`
		}
		if err := decodeArgs(args, &in); err != nil {
			return nil, err
		}
		return pipeline.Update(ctx, tenantID, in.Module, in.MemoryID, service.UpdateInput{
			Content:  in.Content,
			Metadata: in.Metadata,
		})
	})

	h.register("memory/delete", func(ctx context.Context, tenantID uuid.UUID, args json.RawMessage) (any, error) {
		in, err := decodeRef(args)
		if err != nil {
			return nil, err
		}
		if err := pipeline.Delete(ctx, tenantID, in.ModuleID, in.MemoryID); err != nil {
			return nil, err
		}
		return map[string]bool{"deleted": true}, nil
	})

	h.register("memory/modules", func(ctx context.Context, tenantID uuid.UUID, args json.RawMessage) (any, error) {
		return map[string]any{"modules": registry.Configs()}, nil
	})

	h.register("memory/related", func(ctx context.Context, tenantID uuid.UUID, args json.RawMessage) (any, error) {
		var in struct {
			Module   string    `json:"module"`
			MemoryID uuid.UUID `json:"memoryId"`
			Kind     string    `json:"kind,omitempty"`
			Limit    int       `json:"limit,omitempty"`
		}
		if err := decodeArgs(args, &in); err != nil {
			return nil, err
		}
		ref := domain.MemoryRef{ModuleID: in.Module, MemoryID: in.MemoryID}
		return cmi.GetRelatedMemories(ctx, tenantID, ref, in.Kind, in.Limit)
	})

	h.register("project/create", func(ctx context.Context, tenantID uuid.UUID, args json.RawMessage) (any, error) {
		var p domain.Project
		if err := decodeArgs(args, &p); err != nil {
			return nil, err
		}
		return projects.CreateProject(ctx, tenantID, p)
	})

	h.register("project/list", func(ctx context.Context, tenantID uuid.UUID, args json.RawMessage) (any, error) {
		var in struct {
			Status string `json:"status,omitempty"`
			Limit  int    `json:"limit,omitempty"`
		}
		if err := decodeArgs(args, &in); err != nil {
			return nil, err
		}
		return projects.ListProjects(ctx, tenantID, in.Status, in.Limit)
	})

	h.register("project/get", func(ctx context.Context, tenantID uuid.UUID, args json.RawMessage) (any, error) {
		id, err := decodeID(args)
		if err != nil {
			return nil, err
		}
		return projects.GetProject(ctx, tenantID, id)
	})

	h.register("project/update", func(ctx context.Context, tenantID uuid.UUID, args json.RawMessage) (any, error) {
		var p domain.Project
		if err := decodeArgs(args, &p); err != nil {
			return nil, err
		}
		return projects.UpdateProject(ctx, tenantID, p.ID, p)
	})

	h.register("project/delete", func(ctx context.Context, tenantID uuid.UUID, args json.RawMessage) (any, error) {
		id, err := decodeID(args)
		if err != nil {
			return nil, err
		}
		if err := projects.DeleteProject(ctx, tenantID, id); err != nil {
			return nil, err
		}
		return map[string]bool{"deleted": true}, nil
	})

	h.register("task/create", func(ctx context.Context, tenantID uuid.UUID, args json.RawMessage) (any, error) {
		var t domain.Task
		if err := decodeArgs(args, &t); err != nil {
			return nil, err
		}
		return projects.CreateTask(ctx, tenantID, t)
	})

	h.register("task/list", func(ctx context.Context, tenantID uuid.UUID, args json.RawMessage) (any, error) {
		var in struct {
			ProjectID string `json:"projectId,omitempty"`
			Status    string `json:"status,omitempty"`
			Limit     int    `json:"limit,omitempty"`
		}
		if err := decodeArgs(args, &in); err != nil {
			return nil, err
		}
		return projects.ListTasks(ctx, tenantID, in.ProjectID, in.Status, in.Limit)
	})

	h.register("task/get", func(ctx context.Context, tenantID uuid.UUID, args json.RawMessage) (any, error) {
		id, err := decodeID(args)
		if err != nil {
			return nil, err
		}
		return projects.GetTask(ctx, tenantID, id)
	})

	h.register("task/update", func(ctx context.Context, tenantID uuid.UUID, args json.RawMessage) (any, error) {
		var t domain.Task
		if err := decodeArgs(args, &t); err != nil {
			return nil, err
		}
		return projects.UpdateTask(ctx, tenantID, t.ID, t)
	})

	h.register("task/delete", func(ctx context.Context, tenantID uuid.UUID, args json.RawMessage) (any, error) {
		id, err := decodeID(args)
		if err != nil {
			return nil, err
		}
		if err := projects.DeleteTask(ctx, tenantID, id); err != nil {
			return nil, err
		}
		return map[string]bool{"deleted": true}, nil
	})

	h.register("person/create", func(ctx context.Context, tenantID uuid.UUID, args json.RawMessage) (any, error) {
		var p domain.Person
		if err := decodeArgs(args, &p); err != nil {
			return nil, err
		}
		return people.CreatePerson(ctx, tenantID, p)
	})

	h.register("person/list", func(ctx context.Context, tenantID uuid.UUID, args json.RawMessage) (any, error) {
		var in struct {
			HouseholdID string `json:"householdId,omitempty"`
			Limit       int    `json:"limit,omitempty"`
		}
		if err := decodeArgs(args, &in); err != nil {
			return nil, err
		}
		return people.ListPeople(ctx, tenantID, in.HouseholdID, in.Limit)
	})

	h.register("person/get", func(ctx context.Context, tenantID uuid.UUID, args json.RawMessage) (any, error) {
		id, err := decodeID(args)
		if err != nil {
			return nil, err
		}
		return people.GetPerson(ctx, tenantID, id)
	})

	h.register("person/update", func(ctx context.Context, tenantID uuid.UUID, args json.RawMessage) (any, error) {
		var p domain.Person
		if err := decodeArgs(args, &p); err != nil {
			return nil, err
		}
		return people.UpdatePerson(ctx, tenantID, p.ID, p)
	})

	h.register("person/delete", func(ctx context.Context, tenantID uuid.UUID, args json.RawMessage) (any, error) {
		id, err := decodeID(args)
		if err != nil {
			return nil, err
		}
		if err := people.DeletePerson(ctx, tenantID, id); err != nil {
			return nil, err
		}
		return map[string]bool{"deleted": true}, nil
	})

	h.register("relationship/create", func(ctx context.Context, tenantID uuid.UUID, args json.RawMessage) (any, error) {
		var in struct {
			Source   domain.MemoryRef `json:"source"`
			Target   domain.MemoryRef `json:"target"`
			Kind     string           `json:"kind"`
			Strength float32          `json:"strength,omitempty"`
			Metadata map[string]any   `json:"metadata,omitempty"`
		}
		if err := decodeArgs(args, &in); err != nil {
			return nil, err
		}
		if in.Strength == 0 {
			in.Strength = 0.5
		}
		return cmi.CreateRelationship(ctx, tenantID, in.Source, in.Target, in.Kind, in.Strength, in.Metadata)
	})

	h.register("relationship/delete", func(ctx context.Context, tenantID uuid.UUID, args json.RawMessage) (any, error) {
		var in struct {
			ID uuid.UUID `json:"id"`
		}
		if err := decodeArgs(args, &in); err != nil {
			return nil, err
		}
		if in.ID == uuid.Nil {
			return nil, fmt.Errorf("%w: id is required", domain.ErrInvalid)
		}
		if err := cmi.DeleteRelationship(ctx, tenantID, in.ID); err != nil {
			return nil, err
		}
		return map[string]bool{"deleted": true}, nil
	})

	return h
}

func (h *ToolHandler) register(name string, fn toolFunc) {
	h.tools[name] = fn
}

// List enumerates tool names.
func (h *ToolHandler) List(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(h.tools))
	for name := range h.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	writeJSON(w, http.StatusOK, map[string]any{"tools": names})
}

type callToolRequest struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// Call dispatches one tool invocation by name.
func (h *ToolHandler) Call(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.TenantFromContext(r.Context())
	if tenant == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req callToolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	fn, ok := h.tools[req.Name]
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown tool %q", req.Name))
		return
	}

	result, err := fn(r.Context(), tenant.ID, req.Arguments)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"result": result})
}

func decodeArgs(args json.RawMessage, v any) error {
	if len(args) == 0 {
		return nil
	}
	if err := json.Unmarshal(args, v); err != nil {
		return fmt.Errorf("%w: invalid arguments: %v", domain.ErrInvalid, err)
	}
	return nil
}

func decodeID(args json.RawMessage) (string, error) {
	var in struct {
		ID string `json:"id"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return "", err
	}
	if in.ID == "" {
		return "", fmt.Errorf("%w: id is required", domain.ErrInvalid)
	}
	return in.ID, nil
}

type refArgs struct {
	ModuleID string    `json:"module"`
	MemoryID uuid.UUID `json:"memoryId"`
}

func decodeRef(args json.RawMessage) (refArgs, error) {
	var in refArgs
	if err := decodeArgs(args, &in); err != nil {
		return in, err
	}
	if in.ModuleID == "" || in.MemoryID == uuid.Nil {
		return in, fmt.Errorf("%w: module and memoryId are required", domain.ErrInvalid)
	}
	return in, nil
}
