package domain

import (
	"time"

	"github.com/google/uuid"
)

// Embedding dimensions. Routing embeddings are compressed and used only by
// the central index; full embeddings drive in-module semantic search.
const (
	RoutingDim = 512
	FullDim    = 1536
)

// MaxContentBytes bounds the size of a single memory's content.
const MaxContentBytes = 64 * 1024

// Metadata is the free-form tree attached to every memory. Modules guarantee
// a "type" tag and a "categories" list after post-processing.
type Metadata map[string]any

// Memory is one stored unit of text owned by a tenant inside a module table.
type Memory struct {
	ID             uuid.UUID  `json:"id"`
	TenantID       uuid.UUID  `json:"tenant_id"`
	Content        string     `json:"content"`
	Embedding      []float32  `json:"-"`
	Metadata       Metadata   `json:"metadata,omitempty"`
	AccessCount    int        `json:"access_count"`
	LastAccessedAt *time.Time `json:"last_accessed_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Title returns the metadata title, or empty.
func (m *Memory) Title() string { return m.Metadata.String("title") }

// Summary returns the metadata summary, or empty.
func (m *Memory) Summary() string { return m.Metadata.String("summary") }

// MemoryWithScore carries a memory plus its cosine similarity to a query.
type MemoryWithScore struct {
	Memory
	Score float32 `json:"score"`
}

// SearchOpts bounds an in-module vector search.
type SearchOpts struct {
	Limit    int
	MinScore float32
	// Filters are equality/containment predicates against metadata paths,
	// e.g. {"type": "task", "projectId": "..."}.
	Filters map[string]any
}

// ModuleStats summarizes one module's rows for a tenant.
type ModuleStats struct {
	ModuleID       string         `json:"module_id"`
	Total          int            `json:"total"`
	TotalBytes     int64          `json:"total_bytes"`
	LastAccess     *time.Time     `json:"last_access,omitempty"`
	TopCategories  map[string]int `json:"top_categories,omitempty"`
	AvgAccessCount float64        `json:"avg_access_count"`
}

// String reads a string value at a top-level metadata key.
func (md Metadata) String(key string) string {
	if md == nil {
		return ""
	}
	s, _ := md[key].(string)
	return s
}

// StringSlice reads a list of strings at a top-level metadata key, accepting
// both []string and []any (the shape JSON decoding produces).
func (md Metadata) StringSlice(key string) []string {
	if md == nil {
		return nil
	}
	switch v := md[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Float reads a numeric value at a top-level metadata key.
func (md Metadata) Float(key string) (float64, bool) {
	if md == nil {
		return 0, false
	}
	switch v := md[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	}
	return 0, false
}

// Clone returns a shallow copy so post-processing never mutates caller maps.
func (md Metadata) Clone() Metadata {
	out := make(Metadata, len(md))
	for k, v := range md {
		out[k] = v
	}
	return out
}
