package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/mnemohq/mnemo/internal/domain"
	"go.uber.org/zap"
)

// People manages person, household and attendance entities inside the
// personal module, the same way Projects fronts the work module.
type People struct {
	pipeline *Pipeline
	registry *ModuleRegistry
	fields   *CustomFields
	logger   *zap.Logger
}

func NewPeople(pipeline *Pipeline, registry *ModuleRegistry, fields *CustomFields, logger *zap.Logger) *People {
	return &People{pipeline: pipeline, registry: registry, fields: fields, logger: logger}
}

func (s *People) CreatePerson(ctx context.Context, tenantID uuid.UUID, p domain.Person) (*domain.Person, error) {
	if strings.TrimSpace(p.FirstName) == "" {
		return nil, fmt.Errorf("%w: first name is required", domain.ErrInvalid)
	}
	if p.HouseholdID != "" {
		if _, err := s.findByKind(ctx, tenantID, domain.KindHousehold, p.HouseholdID); err != nil {
			return nil, err
		}
	}
	if err := s.fields.ValidateValues(ctx, tenantID, domain.ModulePersonal, p.CustomFields); err != nil {
		return nil, err
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}

	result, err := s.pipeline.Store(ctx, tenantID, domain.ModulePersonal, personContent(p), p.ToMetadata())
	if err != nil {
		return nil, err
	}
	out := domain.PersonFromMemory(result.Memory)
	return &out, nil
}

func (s *People) GetPerson(ctx context.Context, tenantID uuid.UUID, id string) (*domain.Person, error) {
	memory, err := s.findByKind(ctx, tenantID, domain.KindPerson, id)
	if err != nil {
		return nil, err
	}
	out := domain.PersonFromMemory(memory)
	return &out, nil
}

// ListPeople filters by household when householdID is non-empty.
func (s *People) ListPeople(ctx context.Context, tenantID uuid.UUID, householdID string, limit int) ([]domain.Person, error) {
	criteria := map[string]any{"type": domain.KindPerson}
	if householdID != "" {
		criteria["householdId"] = householdID
	}
	memories, err := s.searchPersonal(ctx, tenantID, criteria, limit)
	if err != nil {
		return nil, err
	}
	people := make([]domain.Person, 0, len(memories))
	for i := range memories {
		people = append(people, domain.PersonFromMemory(&memories[i]))
	}
	return people, nil
}

func (s *People) UpdatePerson(ctx context.Context, tenantID uuid.UUID, id string, p domain.Person) (*domain.Person, error) {
	memory, err := s.findByKind(ctx, tenantID, domain.KindPerson, id)
	if err != nil {
		return nil, err
	}
	if err := s.fields.ValidateValues(ctx, tenantID, domain.ModulePersonal, p.CustomFields); err != nil {
		return nil, err
	}
	p.ID = id
	if p.FirstName == "" {
		p.FirstName = memory.Metadata.String("firstName")
	}

	content := personContent(p)
	updated, err := s.pipeline.Update(ctx, tenantID, domain.ModulePersonal, memory.ID, UpdateInput{
		Content:  &content,
		Metadata: p.ToMetadata(),
	})
	if err != nil {
		return nil, err
	}
	out := domain.PersonFromMemory(updated)
	return &out, nil
}

func (s *People) DeletePerson(ctx context.Context, tenantID uuid.UUID, id string) error {
	memory, err := s.findByKind(ctx, tenantID, domain.KindPerson, id)
	if err != nil {
		return err
	}
	return s.pipeline.Delete(ctx, tenantID, domain.ModulePersonal, memory.ID)
}

func (s *People) CreateHousehold(ctx context.Context, tenantID uuid.UUID, h domain.Household) (*domain.Household, error) {
	if strings.TrimSpace(h.Name) == "" {
		return nil, fmt.Errorf("%w: household name is required", domain.ErrInvalid)
	}
	if h.ID == "" {
		h.ID = uuid.NewString()
	}

	content := "Household: " + h.Name
	if h.Address != "" {
		content += "\n" + h.Address
	}
	result, err := s.pipeline.Store(ctx, tenantID, domain.ModulePersonal, content, h.ToMetadata())
	if err != nil {
		return nil, err
	}
	out := domain.HouseholdFromMemory(result.Memory)
	return &out, nil
}

func (s *People) ListHouseholds(ctx context.Context, tenantID uuid.UUID, limit int) ([]domain.Household, error) {
	memories, err := s.searchPersonal(ctx, tenantID, map[string]any{"type": domain.KindHousehold}, limit)
	if err != nil {
		return nil, err
	}
	households := make([]domain.Household, 0, len(memories))
	for i := range memories {
		households = append(households, domain.HouseholdFromMemory(&memories[i]))
	}
	return households, nil
}

// RecordAttendance writes one attendance mark. The person must exist.
func (s *People) RecordAttendance(ctx context.Context, tenantID uuid.UUID, a domain.Attendance) (*domain.Attendance, error) {
	if a.PersonID == "" || a.Event == "" || a.Date == "" {
		return nil, fmt.Errorf("%w: personId, event and date are required", domain.ErrInvalid)
	}
	if _, err := s.findByKind(ctx, tenantID, domain.KindPerson, a.PersonID); err != nil {
		return nil, err
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}

	state := "absent from"
	if a.Present {
		state = "present at"
	}
	content := fmt.Sprintf("Attendance: %s %s %s on %s", a.PersonID, state, a.Event, a.Date)
	result, err := s.pipeline.Store(ctx, tenantID, domain.ModulePersonal, content, a.ToMetadata())
	if err != nil {
		return nil, err
	}
	out := domain.AttendanceFromMemory(result.Memory)
	return &out, nil
}

// ListAttendance filters by person and event; empty values match everything.
func (s *People) ListAttendance(ctx context.Context, tenantID uuid.UUID, personID, event string, limit int) ([]domain.Attendance, error) {
	criteria := map[string]any{"type": domain.KindAttendance}
	if personID != "" {
		criteria["personId"] = personID
	}
	if event != "" {
		criteria["event"] = event
	}
	memories, err := s.searchPersonal(ctx, tenantID, criteria, limit)
	if err != nil {
		return nil, err
	}
	marks := make([]domain.Attendance, 0, len(memories))
	for i := range memories {
		marks = append(marks, domain.AttendanceFromMemory(&memories[i]))
	}
	return marks, nil
}

func (s *People) findByKind(ctx context.Context, tenantID uuid.UUID, kind, id string) (*domain.Memory, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: id is required", domain.ErrInvalid)
	}
	memories, err := s.searchPersonal(ctx, tenantID, map[string]any{"type": kind, "id": id}, 1)
	if err != nil {
		return nil, err
	}
	if len(memories) == 0 {
		return nil, fmt.Errorf("%w: %s %s", domain.ErrNotFound, kind, id)
	}
	return &memories[0], nil
}

func (s *People) searchPersonal(ctx context.Context, tenantID uuid.UUID, criteria map[string]any, limit int) ([]domain.Memory, error) {
	if limit <= 0 {
		limit = maxSearchLimit
	}
	mod, err := s.registry.Get(domain.ModulePersonal)
	if err != nil {
		return nil, err
	}
	memories, err := mod.SearchByMetadata(ctx, tenantID, criteria, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return memories, nil
}

func personContent(p domain.Person) string {
	var b strings.Builder
	b.WriteString("Person: ")
	b.WriteString(strings.TrimSpace(p.FirstName + " " + p.LastName))
	if p.Email != "" {
		b.WriteString("\nEmail: ")
		b.WriteString(p.Email)
	}
	if p.Phone != "" {
		b.WriteString("\nPhone: ")
		b.WriteString(p.Phone)
	}
	if len(p.Roles) > 0 {
		b.WriteString("\nRoles: ")
		b.WriteString(strings.Join(p.Roles, ", "))
	}
	return b.String()
}
