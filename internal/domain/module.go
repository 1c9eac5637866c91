package domain

// Module ids are stable strings; each maps to its own memory table.
const (
	ModuleTechnical     = "technical"
	ModulePersonal      = "personal"
	ModuleWork          = "work"
	ModuleLearning      = "learning"
	ModuleCommunication = "communication"
	ModuleCreative      = "creative"
)

// MetadataPolicy names a composable post-processing step a module applies
// to incoming memories.
type MetadataPolicy string

const (
	PolicyAutoCategorize   MetadataPolicy = "auto_categorize"
	PolicyEntityExtraction MetadataPolicy = "entity_extraction"
	PolicySignalAnalysis   MetadataPolicy = "signal_analysis"
	PolicyImportance       MetadataPolicy = "importance"
)

// ModuleConfig parameterizes the shared module contract.
type ModuleConfig struct {
	ID               string
	Name             string
	Description      string
	Table            string
	Policies         []MetadataPolicy
	Categories       []string
	SearchableFields []string
}

func (c ModuleConfig) HasPolicy(p MetadataPolicy) bool {
	for _, have := range c.Policies {
		if have == p {
			return true
		}
	}
	return false
}

// BuiltinModules returns the configuration for every module the service
// hosts by default, keyed in a stable order.
func BuiltinModules() []ModuleConfig {
	return []ModuleConfig{
		{
			ID:               ModuleTechnical,
			Name:             "Technical",
			Description:      "Code, architecture, debugging notes, and tooling knowledge",
			Table:            "memories_technical",
			Policies:         []MetadataPolicy{PolicyAutoCategorize, PolicyImportance},
			Categories:       []string{"code", "architecture", "debugging", "tooling", "infrastructure"},
			SearchableFields: []string{"type", "categories", "language", "projects"},
		},
		{
			ID:               ModulePersonal,
			Name:             "Personal",
			Description:      "Preferences, habits, goals, and life events",
			Table:            "memories_personal",
			Policies:         []MetadataPolicy{PolicyAutoCategorize, PolicySignalAnalysis},
			Categories:       []string{"preference", "habit", "goal", "event", "health"},
			SearchableFields: []string{"type", "categories", "people"},
		},
		{
			ID:               ModuleWork,
			Name:             "Work",
			Description:      "Projects, tasks, meetings, and decisions",
			Table:            "memories_work",
			Policies:         []MetadataPolicy{PolicyAutoCategorize, PolicyEntityExtraction, PolicyImportance},
			Categories:       []string{"project", "task", "meeting", "decision", "planning"},
			SearchableFields: []string{"type", "categories", "projectId", "participants", "deadlines"},
		},
		{
			ID:               ModuleLearning,
			Name:             "Learning",
			Description:      "Courses, readings, concepts, and study notes",
			Table:            "memories_learning",
			Policies:         []MetadataPolicy{PolicyAutoCategorize, PolicyImportance},
			Categories:       []string{"course", "reading", "concept", "practice", "reference"},
			SearchableFields: []string{"type", "categories", "topics"},
		},
		{
			ID:               ModuleCommunication,
			Name:             "Communication",
			Description:      "Conversations, emails, and messages",
			Table:            "memories_communication",
			Policies:         []MetadataPolicy{PolicyAutoCategorize, PolicyEntityExtraction, PolicySignalAnalysis, PolicyImportance},
			Categories:       []string{"conversation", "email", "message", "call", "announcement"},
			SearchableFields: []string{"type", "categories", "participants", "action_items"},
		},
		{
			ID:               ModuleCreative,
			Name:             "Creative",
			Description:      "Ideas, drafts, designs, and inspiration",
			Table:            "memories_creative",
			Policies:         []MetadataPolicy{PolicyAutoCategorize},
			Categories:       []string{"idea", "draft", "design", "inspiration", "writing"},
			SearchableFields: []string{"type", "categories"},
		},
	}
}

// ModuleIDs returns the builtin module ids in registration order.
func ModuleIDs() []string {
	configs := BuiltinModules()
	ids := make([]string, len(configs))
	for i, c := range configs {
		ids[i] = c.ID
	}
	return ids
}

// ValidModuleID reports whether id names a builtin module.
func ValidModuleID(id string) bool {
	for _, known := range ModuleIDs() {
		if known == id {
			return true
		}
	}
	return false
}
