package domain

import "fmt"

// Custom field value types.
const (
	FieldTypeText   = "text"
	FieldTypeNumber = "number"
	FieldTypeBool   = "boolean"
	FieldTypeDate   = "date"
	FieldTypeSelect = "select"
)

// CustomFieldDef defines one module-scoped custom field. Definitions live
// inside a registry memory named "custom_fields_<module>"; stored values are
// keyed "<module>.<fieldKey>" on the owning entity.
type CustomFieldDef struct {
	Key      string   `json:"key"`
	Label    string   `json:"label,omitempty"`
	Type     string   `json:"fieldType"`
	Required bool     `json:"required,omitempty"`
	Options  []string `json:"options,omitempty"`
	Min      *float64 `json:"min,omitempty"`
	Max      *float64 `json:"max,omitempty"`
	Pattern  string   `json:"pattern,omitempty"`
}

// CustomFieldRegistryName returns the name of the registry memory holding a
// module's custom field definitions.
func CustomFieldRegistryName(moduleID string) string {
	return fmt.Sprintf("custom_fields_%s", moduleID)
}

// RegistryMetadata builds the metadata shell of a registry memory: a memory
// whose type=list and whose items enumerate something for one namespace.
func RegistryMetadata(name string, items []any) Metadata {
	return Metadata{
		"type":  KindList,
		"name":  name,
		"items": items,
	}
}

func ValidFieldType(t string) bool {
	switch t {
	case FieldTypeText, FieldTypeNumber, FieldTypeBool, FieldTypeDate, FieldTypeSelect:
		return true
	}
	return false
}
