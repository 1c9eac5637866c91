package domain

import (
	"time"

	"github.com/google/uuid"
)

// IndexEntry is one row of the central memory index. (ModuleID, MemoryID) is
// globally unique; exactly one entry exists per live memory.
type IndexEntry struct {
	ID             uuid.UUID  `json:"id"`
	TenantID       uuid.UUID  `json:"tenant_id"`
	ModuleID       string     `json:"module_id"`
	MemoryID       uuid.UUID  `json:"memory_id"`
	RoutingVector  []float32  `json:"-"`
	Title          string     `json:"title"`
	Summary        string     `json:"summary,omitempty"`
	Keywords       []string   `json:"keywords,omitempty"`
	Categories     []string   `json:"categories,omitempty"`
	Importance     float32    `json:"importance"`
	AccessCount    int        `json:"access_count"`
	LastAccessedAt *time.Time `json:"last_accessed_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// RouteMatch is one module's aggregate in a routing decision.
type RouteMatch struct {
	ModuleID        string   `json:"module_id"`
	Confidence      float32  `json:"confidence"`
	MatchedKeywords []string `json:"matched_keywords,omitempty"`
}

// RoutingDecision is the (cacheable) outcome of routing one query.
type RoutingDecision struct {
	Matches    []RouteMatch `json:"matches"`
	ComputedAt time.Time    `json:"computed_at"`
}

// RoutingRow is the per-index-row aggregation input for routeQuery: cosine
// similarity against the routing embedding plus the row's keyword list.
type RoutingRow struct {
	ModuleID   string
	Similarity float32
	Keywords   []string
}

// SearchResult is one row of a federated search response.
type SearchResult struct {
	ModuleID       string     `json:"module_id"`
	MemoryID       uuid.UUID  `json:"memory_id"`
	Similarity     float32    `json:"similarity"`
	Title          string     `json:"title,omitempty"`
	Summary        string     `json:"summary,omitempty"`
	Content        string     `json:"content,omitempty"`
	Metadata       Metadata   `json:"metadata,omitempty"`
	Importance     float32    `json:"importance"`
	LastAccessedAt *time.Time `json:"last_accessed_at,omitempty"`
}
