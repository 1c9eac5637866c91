package domain

import (
	"context"

	"github.com/google/uuid"
)

type TenantStore interface {
	Create(ctx context.Context, t *Tenant) error
	GetByTokenHash(ctx context.Context, tokenHash string) (*Tenant, error)
	ListIDs(ctx context.Context) ([]uuid.UUID, error)
}

// MemoryStore owns one module's table. All operations are tenant-scoped.
type MemoryStore interface {
	Create(ctx context.Context, m *Memory) error
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*Memory, error)
	// Update rewrites content/metadata, and the vector when embedding is
	// non-nil, in one statement.
	Update(ctx context.Context, tenantID, id uuid.UUID, content string, embedding []float32, metadata Metadata) error
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
	SearchByEmbedding(ctx context.Context, tenantID uuid.UUID, embedding []float32, opts SearchOpts) ([]MemoryWithScore, error)
	SearchByMetadata(ctx context.Context, tenantID uuid.UUID, criteria map[string]any, limit int) ([]Memory, error)
	Stats(ctx context.Context, tenantID uuid.UUID) (*ModuleStats, error)
	// TouchAccess bumps access counters for the given rows. Best-effort.
	TouchAccess(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) error
	ListIDs(ctx context.Context, tenantID uuid.UUID) ([]uuid.UUID, error)
	DeleteByTenant(ctx context.Context, tenantID uuid.UUID) (int64, error)
}

// IndexStore owns the central memory index table.
type IndexStore interface {
	Upsert(ctx context.Context, e *IndexEntry) error
	Get(ctx context.Context, tenantID uuid.UUID, moduleID string, memoryID uuid.UUID) (*IndexEntry, error)
	Delete(ctx context.Context, tenantID uuid.UUID, moduleID string, memoryID uuid.UUID) error
	// RoutingRows computes, in one aggregation, the cosine similarity of
	// every indexed row of the tenant against the routing embedding,
	// returning each row's module and keywords.
	RoutingRows(ctx context.Context, tenantID uuid.UUID, embedding []float32) ([]RoutingRow, error)
	TouchAccess(ctx context.Context, tenantID uuid.UUID, refs []MemoryRef) error
	ListRefs(ctx context.Context, tenantID uuid.UUID, moduleID string) ([]MemoryRef, error)
	ListTenants(ctx context.Context) ([]uuid.UUID, error)
	DeleteByTenant(ctx context.Context, tenantID uuid.UUID) (int64, error)
}

type RelationshipStore interface {
	Create(ctx context.Context, r *Relationship) error
	// GetRelated matches rows whether ref is source or target, strength
	// descending, stable by id.
	GetRelated(ctx context.Context, tenantID uuid.UUID, ref MemoryRef, kind string, limit int) ([]Relationship, error)
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
	DeleteByMemory(ctx context.Context, tenantID uuid.UUID, ref MemoryRef) (int64, error)
	DeleteByTenant(ctx context.Context, tenantID uuid.UUID) (int64, error)
}

// EmbeddingProvider turns text into a unit-norm vector of the requested
// dimension (RoutingDim or FullDim). Deterministic for same text + dim.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string, dim int) ([]float32, error)
}

// Publisher fans a change event out to live subscribers of its tenant.
// Publish never blocks on slow subscribers.
type Publisher interface {
	Publish(event ChangeEvent)
}
