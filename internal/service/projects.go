package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/mnemohq/mnemo/internal/domain"
	"go.uber.org/zap"
)

// Projects manages project and task entities. Entities are ordinary work-
// module memories tagged by type; this service is a typed facade over the
// write pipeline, so every mutation flows through indexing like any other
// memory.
type Projects struct {
	pipeline *Pipeline
	registry *ModuleRegistry
	logger   *zap.Logger
}

func NewProjects(pipeline *Pipeline, registry *ModuleRegistry, logger *zap.Logger) *Projects {
	return &Projects{pipeline: pipeline, registry: registry, logger: logger}
}

func (s *Projects) CreateProject(ctx context.Context, tenantID uuid.UUID, p domain.Project) (*domain.Project, error) {
	if strings.TrimSpace(p.Name) == "" {
		return nil, fmt.Errorf("%w: project name is required", domain.ErrInvalid)
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if existing, _ := s.findByKind(ctx, tenantID, domain.KindProject, p.ID); existing != nil {
		return nil, fmt.Errorf("%w: project %s already exists", domain.ErrConflict, p.ID)
	}

	result, err := s.pipeline.Store(ctx, tenantID, domain.ModuleWork, projectContent(p), p.ToMetadata())
	if err != nil {
		return nil, err
	}
	out := domain.ProjectFromMemory(result.Memory)
	return &out, nil
}

func (s *Projects) GetProject(ctx context.Context, tenantID uuid.UUID, id string) (*domain.Project, error) {
	memory, err := s.findByKind(ctx, tenantID, domain.KindProject, id)
	if err != nil {
		return nil, err
	}
	out := domain.ProjectFromMemory(memory)
	return &out, nil
}

func (s *Projects) ListProjects(ctx context.Context, tenantID uuid.UUID, status string, limit int) ([]domain.Project, error) {
	criteria := map[string]any{"type": domain.KindProject}
	if status != "" {
		criteria["status"] = status
	}
	memories, err := s.searchWork(ctx, tenantID, criteria, limit)
	if err != nil {
		return nil, err
	}
	projects := make([]domain.Project, 0, len(memories))
	for i := range memories {
		projects = append(projects, domain.ProjectFromMemory(&memories[i]))
	}
	return projects, nil
}

// UpdateProject replaces the stored fields with p; the logical id is fixed.
func (s *Projects) UpdateProject(ctx context.Context, tenantID uuid.UUID, id string, p domain.Project) (*domain.Project, error) {
	memory, err := s.findByKind(ctx, tenantID, domain.KindProject, id)
	if err != nil {
		return nil, err
	}
	p.ID = id
	if p.Name == "" {
		p.Name = memory.Metadata.String("name")
	}

	content := projectContent(p)
	updated, err := s.pipeline.Update(ctx, tenantID, domain.ModuleWork, memory.ID, UpdateInput{
		Content:  &content,
		Metadata: p.ToMetadata(),
	})
	if err != nil {
		return nil, err
	}
	out := domain.ProjectFromMemory(updated)
	return &out, nil
}

func (s *Projects) DeleteProject(ctx context.Context, tenantID uuid.UUID, id string) error {
	memory, err := s.findByKind(ctx, tenantID, domain.KindProject, id)
	if err != nil {
		return err
	}
	return s.pipeline.Delete(ctx, tenantID, domain.ModuleWork, memory.ID)
}

func (s *Projects) CreateTask(ctx context.Context, tenantID uuid.UUID, t domain.Task) (*domain.Task, error) {
	if strings.TrimSpace(t.Title) == "" {
		return nil, fmt.Errorf("%w: task title is required", domain.ErrInvalid)
	}
	if t.ProjectID != "" {
		if _, err := s.findByKind(ctx, tenantID, domain.KindProject, t.ProjectID); err != nil {
			return nil, err
		}
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}

	result, err := s.pipeline.Store(ctx, tenantID, domain.ModuleWork, taskContent(t), t.ToMetadata())
	if err != nil {
		return nil, err
	}
	out := domain.TaskFromMemory(result.Memory)
	return &out, nil
}

func (s *Projects) GetTask(ctx context.Context, tenantID uuid.UUID, id string) (*domain.Task, error) {
	memory, err := s.findByKind(ctx, tenantID, domain.KindTask, id)
	if err != nil {
		return nil, err
	}
	out := domain.TaskFromMemory(memory)
	return &out, nil
}

// ListTasks filters by project and status; empty values match everything.
func (s *Projects) ListTasks(ctx context.Context, tenantID uuid.UUID, projectID, status string, limit int) ([]domain.Task, error) {
	criteria := map[string]any{"type": domain.KindTask}
	if projectID != "" {
		criteria["projectId"] = projectID
	}
	if status != "" {
		criteria["status"] = status
	}
	memories, err := s.searchWork(ctx, tenantID, criteria, limit)
	if err != nil {
		return nil, err
	}
	tasks := make([]domain.Task, 0, len(memories))
	for i := range memories {
		tasks = append(tasks, domain.TaskFromMemory(&memories[i]))
	}
	return tasks, nil
}

func (s *Projects) UpdateTask(ctx context.Context, tenantID uuid.UUID, id string, t domain.Task) (*domain.Task, error) {
	memory, err := s.findByKind(ctx, tenantID, domain.KindTask, id)
	if err != nil {
		return nil, err
	}
	t.ID = id
	if t.Title == "" {
		t.Title = memory.Metadata.String("title")
	}

	content := taskContent(t)
	updated, err := s.pipeline.Update(ctx, tenantID, domain.ModuleWork, memory.ID, UpdateInput{
		Content:  &content,
		Metadata: t.ToMetadata(),
	})
	if err != nil {
		return nil, err
	}
	out := domain.TaskFromMemory(updated)
	return &out, nil
}

func (s *Projects) DeleteTask(ctx context.Context, tenantID uuid.UUID, id string) error {
	memory, err := s.findByKind(ctx, tenantID, domain.KindTask, id)
	if err != nil {
		return err
	}
	return s.pipeline.Delete(ctx, tenantID, domain.ModuleWork, memory.ID)
}

// findByKind resolves a logical entity id to its backing memory.
func (s *Projects) findByKind(ctx context.Context, tenantID uuid.UUID, kind, id string) (*domain.Memory, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: id is required", domain.ErrInvalid)
	}
	memories, err := s.searchWork(ctx, tenantID, map[string]any{"type": kind, "id": id}, 1)
	if err != nil {
		return nil, err
	}
	if len(memories) == 0 {
		return nil, fmt.Errorf("%w: %s %s", domain.ErrNotFound, kind, id)
	}
	return &memories[0], nil
}

func (s *Projects) searchWork(ctx context.Context, tenantID uuid.UUID, criteria map[string]any, limit int) ([]domain.Memory, error) {
	if limit <= 0 {
		limit = maxSearchLimit
	}
	mod, err := s.registry.Get(domain.ModuleWork)
	if err != nil {
		return nil, err
	}
	memories, err := mod.SearchByMetadata(ctx, tenantID, criteria, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return memories, nil
}

// projectContent renders the entity as prose so embeddings and keyword
// extraction have real text to work with.
func projectContent(p domain.Project) string {
	var b strings.Builder
	b.WriteString("Project: ")
	b.WriteString(p.Name)
	if p.Status != "" {
		b.WriteString(" (")
		b.WriteString(p.Status)
		b.WriteString(")")
	}
	if p.Description != "" {
		b.WriteString("\n")
		b.WriteString(p.Description)
	}
	if len(p.Tags) > 0 {
		b.WriteString("\nTags: ")
		b.WriteString(strings.Join(p.Tags, ", "))
	}
	return b.String()
}

func taskContent(t domain.Task) string {
	var b strings.Builder
	b.WriteString("Task: ")
	b.WriteString(t.Title)
	if t.Status != "" {
		b.WriteString(" (")
		b.WriteString(t.Status)
		b.WriteString(")")
	}
	if t.Description != "" {
		b.WriteString("\n")
		b.WriteString(t.Description)
	}
	if t.DueDate != "" {
		b.WriteString("\nDue: ")
		b.WriteString(t.DueDate)
	}
	for _, st := range t.Subtasks {
		b.WriteString("\n- ")
		b.WriteString(st.Title)
	}
	for _, todo := range t.Todos {
		b.WriteString("\n- ")
		b.WriteString(todo)
	}
	return b.String()
}
