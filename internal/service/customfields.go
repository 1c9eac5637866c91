package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/mnemohq/mnemo/internal/domain"
	"go.uber.org/zap"
)

var dateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// CustomFields manages per-module field definitions. Definitions live in a
// registry memory per module; values on entities are namespaced
// "<module>.<fieldKey>" so they can never collide with typed fields.
type CustomFields struct {
	pipeline *Pipeline
	registry *ModuleRegistry
	logger   *zap.Logger
}

func NewCustomFields(pipeline *Pipeline, registry *ModuleRegistry, logger *zap.Logger) *CustomFields {
	return &CustomFields{pipeline: pipeline, registry: registry, logger: logger}
}

// Define adds a field definition, creating the module's registry memory on
// first use. A duplicate key is a conflict.
func (s *CustomFields) Define(ctx context.Context, tenantID uuid.UUID, moduleID string, def domain.CustomFieldDef) (*domain.CustomFieldDef, error) {
	if err := validateFieldDef(def); err != nil {
		return nil, err
	}
	if _, err := s.registry.Get(moduleID); err != nil {
		return nil, err
	}

	memory, defs, err := s.load(ctx, tenantID, moduleID)
	if err != nil {
		return nil, err
	}
	for _, existing := range defs {
		if existing.Key == def.Key {
			return nil, fmt.Errorf("%w: field %q already defined for module %s", domain.ErrConflict, def.Key, moduleID)
		}
	}
	defs = append(defs, def)

	if err := s.save(ctx, tenantID, moduleID, memory, defs); err != nil {
		return nil, err
	}
	return &def, nil
}

// List returns the module's field definitions, empty when none are defined.
func (s *CustomFields) List(ctx context.Context, tenantID uuid.UUID, moduleID string) ([]domain.CustomFieldDef, error) {
	if _, err := s.registry.Get(moduleID); err != nil {
		return nil, err
	}
	_, defs, err := s.load(ctx, tenantID, moduleID)
	if err != nil {
		return nil, err
	}
	return defs, nil
}

// Remove drops a field definition. Stored values under the key are left in
// place; they simply stop validating.
func (s *CustomFields) Remove(ctx context.Context, tenantID uuid.UUID, moduleID, key string) error {
	memory, defs, err := s.load(ctx, tenantID, moduleID)
	if err != nil {
		return err
	}

	kept := defs[:0]
	found := false
	for _, def := range defs {
		if def.Key == key {
			found = true
			continue
		}
		kept = append(kept, def)
	}
	if !found {
		return fmt.Errorf("%w: field %q in module %s", domain.ErrNotFound, key, moduleID)
	}
	return s.save(ctx, tenantID, moduleID, memory, kept)
}

// ValidateValues checks a namespaced value map against the module's
// definitions: every key must be defined, every required field present, and
// every value must satisfy its type and constraints.
func (s *CustomFields) ValidateValues(ctx context.Context, tenantID uuid.UUID, moduleID string, values map[string]any) error {
	_, defs, err := s.load(ctx, tenantID, moduleID)
	if err != nil {
		return err
	}
	if len(defs) == 0 && len(values) == 0 {
		return nil
	}

	prefix := moduleID + "."
	byKey := make(map[string]domain.CustomFieldDef, len(defs))
	for _, def := range defs {
		byKey[def.Key] = def
	}

	for name, value := range values {
		if !strings.HasPrefix(name, prefix) {
			return fmt.Errorf("%w: custom field %q must be namespaced %q", domain.ErrInvalid, name, prefix+"<key>")
		}
		def, ok := byKey[strings.TrimPrefix(name, prefix)]
		if !ok {
			return fmt.Errorf("%w: unknown custom field %q", domain.ErrInvalid, name)
		}
		if err := validateFieldValue(def, value); err != nil {
			return err
		}
	}

	for _, def := range defs {
		if !def.Required {
			continue
		}
		if _, ok := values[prefix+def.Key]; !ok {
			return fmt.Errorf("%w: custom field %q is required", domain.ErrInvalid, def.Key)
		}
	}
	return nil
}

// load finds the module's registry memory, returning a nil memory when none
// exists yet.
func (s *CustomFields) load(ctx context.Context, tenantID uuid.UUID, moduleID string) (*domain.Memory, []domain.CustomFieldDef, error) {
	mod, err := s.registry.Get(moduleID)
	if err != nil {
		return nil, nil, err
	}
	memories, err := mod.SearchByMetadata(ctx, tenantID, map[string]any{
		"type": domain.KindList,
		"name": domain.CustomFieldRegistryName(moduleID),
	}, 1)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	if len(memories) == 0 {
		return nil, nil, nil
	}

	memory := &memories[0]
	var defs []domain.CustomFieldDef
	if items, ok := memory.Metadata["items"].([]any); ok {
		for _, item := range items {
			if m, ok := item.(map[string]any); ok {
				defs = append(defs, fieldDefFromMap(m))
			}
		}
	}
	return memory, defs, nil
}

func (s *CustomFields) save(ctx context.Context, tenantID uuid.UUID, moduleID string, memory *domain.Memory, defs []domain.CustomFieldDef) error {
	items := make([]any, 0, len(defs))
	keys := make([]string, 0, len(defs))
	for _, def := range defs {
		items = append(items, fieldDefToMap(def))
		keys = append(keys, def.Key)
	}
	name := domain.CustomFieldRegistryName(moduleID)
	metadata := domain.RegistryMetadata(name, items)
	content := fmt.Sprintf("Custom fields for the %s module: %s", moduleID, strings.Join(keys, ", "))

	if memory == nil {
		_, err := s.pipeline.Store(ctx, tenantID, moduleID, content, metadata)
		return err
	}
	_, err := s.pipeline.Update(ctx, tenantID, moduleID, memory.ID, UpdateInput{
		Content:  &content,
		Metadata: metadata,
	})
	return err
}

func validateFieldDef(def domain.CustomFieldDef) error {
	if def.Key == "" {
		return fmt.Errorf("%w: field key is required", domain.ErrInvalid)
	}
	if strings.ContainsAny(def.Key, ". ") {
		return fmt.Errorf("%w: field key %q may not contain dots or spaces", domain.ErrInvalid, def.Key)
	}
	if !domain.ValidFieldType(def.Type) {
		return fmt.Errorf("%w: unknown field type %q", domain.ErrInvalid, def.Type)
	}
	if def.Type == domain.FieldTypeSelect && len(def.Options) == 0 {
		return fmt.Errorf("%w: select field %q needs options", domain.ErrInvalid, def.Key)
	}
	if def.Min != nil && def.Max != nil && *def.Min > *def.Max {
		return fmt.Errorf("%w: field %q min exceeds max", domain.ErrInvalid, def.Key)
	}
	if def.Pattern != "" {
		if _, err := regexp.Compile(def.Pattern); err != nil {
			return fmt.Errorf("%w: field %q pattern: %v", domain.ErrInvalid, def.Key, err)
		}
	}
	return nil
}

func validateFieldValue(def domain.CustomFieldDef, value any) error {
	switch def.Type {
	case domain.FieldTypeText:
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("%w: field %q expects text", domain.ErrInvalid, def.Key)
		}
		if def.Pattern != "" {
			re, err := regexp.Compile(def.Pattern)
			if err != nil {
				return fmt.Errorf("%w: field %q pattern: %v", domain.ErrInvalid, def.Key, err)
			}
			if !re.MatchString(s) {
				return fmt.Errorf("%w: field %q does not match pattern", domain.ErrInvalid, def.Key)
			}
		}
	case domain.FieldTypeNumber:
		n, ok := floatValue(value)
		if !ok {
			return fmt.Errorf("%w: field %q expects a number", domain.ErrInvalid, def.Key)
		}
		if def.Min != nil && n < *def.Min {
			return fmt.Errorf("%w: field %q below minimum %v", domain.ErrInvalid, def.Key, *def.Min)
		}
		if def.Max != nil && n > *def.Max {
			return fmt.Errorf("%w: field %q above maximum %v", domain.ErrInvalid, def.Key, *def.Max)
		}
	case domain.FieldTypeBool:
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("%w: field %q expects a boolean", domain.ErrInvalid, def.Key)
		}
	case domain.FieldTypeDate:
		s, ok := value.(string)
		if !ok || !dateRe.MatchString(s) {
			return fmt.Errorf("%w: field %q expects a YYYY-MM-DD date", domain.ErrInvalid, def.Key)
		}
	case domain.FieldTypeSelect:
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("%w: field %q expects one of its options", domain.ErrInvalid, def.Key)
		}
		for _, opt := range def.Options {
			if s == opt {
				return nil
			}
		}
		return fmt.Errorf("%w: field %q value %q is not an option", domain.ErrInvalid, def.Key, s)
	}
	return nil
}

func floatValue(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	}
	return 0, false
}

func fieldDefToMap(def domain.CustomFieldDef) map[string]any {
	m := map[string]any{
		"key":       def.Key,
		"fieldType": def.Type,
	}
	if def.Label != "" {
		m["label"] = def.Label
	}
	if def.Required {
		m["required"] = true
	}
	if len(def.Options) > 0 {
		opts := make([]any, len(def.Options))
		for i, o := range def.Options {
			opts[i] = o
		}
		m["options"] = opts
	}
	if def.Min != nil {
		m["min"] = *def.Min
	}
	if def.Max != nil {
		m["max"] = *def.Max
	}
	if def.Pattern != "" {
		m["pattern"] = def.Pattern
	}
	return m
}

func fieldDefFromMap(m map[string]any) domain.CustomFieldDef {
	md := domain.Metadata(m)
	def := domain.CustomFieldDef{
		Key:     md.String("key"),
		Label:   md.String("label"),
		Type:    md.String("fieldType"),
		Options: md.StringSlice("options"),
		Pattern: md.String("pattern"),
	}
	if required, ok := m["required"].(bool); ok {
		def.Required = required
	}
	if min, ok := md.Float("min"); ok {
		def.Min = &min
	}
	if max, ok := md.Float("max"); ok {
		def.Max = &max
	}
	return def
}
