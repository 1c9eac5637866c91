package domain

import (
	"time"

	"github.com/google/uuid"
)

// Relationship kinds form an open taxonomy; these are the common ones.
const (
	RelationSimilar     = "similar"
	RelationDependsOn   = "depends_on"
	RelationRefines     = "refines"
	RelationContradicts = "contradicts"
	RelationBelongsTo   = "belongs_to"
)

// MemoryRef addresses a memory across modules.
type MemoryRef struct {
	ModuleID string    `json:"module_id"`
	MemoryID uuid.UUID `json:"memory_id"`
}

// Relationship is a typed, weighted edge between two memories, possibly in
// different modules. Unique on (source, target, kind); source != target.
type Relationship struct {
	ID        uuid.UUID `json:"id"`
	TenantID  uuid.UUID `json:"tenant_id"`
	Source    MemoryRef `json:"source"`
	Target    MemoryRef `json:"target"`
	Kind      string    `json:"kind"`
	Strength  float32   `json:"strength"`
	Metadata  Metadata  `json:"metadata,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
