package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mnemohq/mnemo/internal/domain"
	"github.com/mnemohq/mnemo/internal/store"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultSearchLimit = 10
	maxSearchLimit     = 100
)

// CMI is the central memory index: the cross-module routing and federated
// search layer. Module tables stay authoritative for content; the index
// carries routing vectors and lightweight summaries only.
type CMI struct {
	registry      *ModuleRegistry
	index         domain.IndexStore
	relationships domain.RelationshipStore
	embedder      domain.EmbeddingProvider
	router        *Router
	logger        *zap.Logger
}

func NewCMI(registry *ModuleRegistry, index domain.IndexStore, relationships domain.RelationshipStore, embedder domain.EmbeddingProvider, router *Router, logger *zap.Logger) *CMI {
	return &CMI{
		registry:      registry,
		index:         index,
		relationships: relationships,
		embedder:      embedder,
		router:        router,
		logger:        logger,
	}
}

// IndexMemory writes or refreshes the index entry for a module row. The
// upsert keys on (module_id, memory_id), so replays are idempotent.
func (c *CMI) IndexMemory(ctx context.Context, moduleID string, memory *domain.Memory) error {
	routing, err := c.embedder.Embed(ctx, EmbeddingInput(memory.Metadata, memory.Content), domain.RoutingDim)
	if err != nil {
		return err
	}
	return c.IndexMemoryWithVector(ctx, moduleID, memory, routing)
}

// IndexMemoryWithVector upserts using a routing vector the caller already
// computed, so the write pipeline can embed in parallel with the row insert.
func (c *CMI) IndexMemoryWithVector(ctx context.Context, moduleID string, memory *domain.Memory, routing []float32) error {
	entry := &domain.IndexEntry{
		TenantID:       memory.TenantID,
		ModuleID:       moduleID,
		MemoryID:       memory.ID,
		RoutingVector:  routing,
		Title:          memory.Metadata.String("title"),
		Summary:        memory.Metadata.String("summary"),
		Keywords:       memory.Metadata.StringSlice("keywords"),
		Categories:     memory.Metadata.StringSlice("categories"),
		Importance:     importanceOf(memory.Metadata),
		AccessCount:    memory.AccessCount,
		LastAccessedAt: memory.LastAccessedAt,
	}
	if err := c.index.Upsert(ctx, entry); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	c.router.InvalidateTenant(memory.TenantID)
	return nil
}

// RemoveFromIndex deletes the index entry and any relationships touching the
// memory. Both steps are idempotent; the module row is untouched.
func (c *CMI) RemoveFromIndex(ctx context.Context, tenantID uuid.UUID, ref domain.MemoryRef) error {
	if _, err := c.relationships.DeleteByMemory(ctx, tenantID, ref); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	if err := c.index.Delete(ctx, tenantID, ref.ModuleID, ref.MemoryID); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	c.router.InvalidateTenant(tenantID)
	return nil
}

// SearchOptions narrows a federated search. Modules, when set, pins the
// fan-out and skips routing.
type SearchOptions struct {
	Limit    int
	MinScore float32
	Modules  []string
	Filters  map[string]any
}

// SearchResponse carries the merged results plus the routing decision that
// produced them, so callers can see which modules were consulted.
type SearchResponse struct {
	Results []domain.SearchResult `json:"results"`
	Routing []domain.RouteMatch   `json:"routing,omitempty"`
}

// SearchMemories routes the query, fans out to the chosen modules in
// parallel, and merges by similarity weighted with stored importance. A
// failing module contributes nothing rather than failing the search.
func (c *CMI) SearchMemories(ctx context.Context, tenantID uuid.UUID, query string, opts SearchOptions) (*SearchResponse, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: query is required", domain.ErrInvalid)
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}

	moduleIDs, routing, err := c.resolveModules(ctx, tenantID, query, opts.Modules)
	if err != nil {
		return nil, err
	}
	if len(moduleIDs) == 0 {
		return &SearchResponse{Results: []domain.SearchResult{}, Routing: routing}, nil
	}

	embedding, err := c.embedder.Embed(ctx, query, domain.FullDim)
	if err != nil {
		return nil, err
	}

	// Over-fetch per module so the merged cut still fills the limit when one
	// module dominates.
	perModule := (limit+len(moduleIDs)-1)/len(moduleIDs) + 2

	results := make([][]domain.SearchResult, len(moduleIDs))
	g, gctx := errgroup.WithContext(ctx)
	for i, moduleID := range moduleIDs {
		i, moduleID := i, moduleID
		g.Go(func() error {
			rows, err := c.searchModule(gctx, tenantID, moduleID, embedding, domain.SearchOpts{
				Limit:    perModule,
				MinScore: opts.MinScore,
				Filters:  opts.Filters,
			})
			if err != nil {
				c.logger.Warn("module search failed",
					zap.String("module", moduleID),
					zap.String("tenant_id", tenantID.String()),
					zap.Error(err))
				return nil
			}
			results[i] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := mergeResults(results, limit)
	c.recordAccess(tenantID, merged)
	return &SearchResponse{Results: merged, Routing: routing}, nil
}

// resolveModules pins explicit modules when given, otherwise routes. When
// routing returns nothing or cannot run, the search degrades to all modules.
func (c *CMI) resolveModules(ctx context.Context, tenantID uuid.UUID, query string, pinned []string) ([]string, []domain.RouteMatch, error) {
	if len(pinned) > 0 {
		for _, id := range pinned {
			if _, err := c.registry.Get(id); err != nil {
				return nil, nil, err
			}
		}
		return pinned, nil, nil
	}

	matches, err := c.router.RouteQuery(ctx, tenantID, query, defaultRouteTopK)
	if err != nil {
		c.logger.Warn("routing unavailable, searching all modules",
			zap.String("tenant_id", tenantID.String()),
			zap.Error(err))
		return c.registry.IDs(), nil, nil
	}
	if len(matches) == 0 {
		return c.registry.IDs(), matches, nil
	}

	ids := make([]string, len(matches))
	for i, m := range matches {
		ids[i] = m.ModuleID
	}
	return ids, matches, nil
}

func (c *CMI) searchModule(ctx context.Context, tenantID uuid.UUID, moduleID string, embedding []float32, opts domain.SearchOpts) ([]domain.SearchResult, error) {
	mod, err := c.registry.Get(moduleID)
	if err != nil {
		return nil, err
	}
	scored, err := mod.SearchByEmbedding(ctx, tenantID, embedding, opts)
	if err != nil {
		return nil, err
	}

	rows := make([]domain.SearchResult, 0, len(scored))
	for _, s := range scored {
		rows = append(rows, domain.SearchResult{
			ModuleID:       moduleID,
			MemoryID:       s.Memory.ID,
			Similarity:     s.Score,
			Title:          s.Memory.Metadata.String("title"),
			Summary:        s.Memory.Metadata.String("summary"),
			Content:        s.Memory.Content,
			Metadata:       s.Memory.Metadata,
			Importance:     importanceOf(s.Memory.Metadata),
			LastAccessedAt: s.Memory.LastAccessedAt,
		})
	}
	return rows, nil
}

// mergeResults flattens per-module slices, dedupes by (module, memory) and
// orders by similarity x importance. Ties resolve by importance, then
// recency, then (module_id, memory_id) so output is deterministic.
func mergeResults(perModule [][]domain.SearchResult, limit int) []domain.SearchResult {
	seen := make(map[domain.MemoryRef]struct{})
	merged := make([]domain.SearchResult, 0, limit)
	for _, rows := range perModule {
		for _, row := range rows {
			ref := domain.MemoryRef{ModuleID: row.ModuleID, MemoryID: row.MemoryID}
			if _, dup := seen[ref]; dup {
				continue
			}
			seen[ref] = struct{}{}
			merged = append(merged, row)
		}
	}

	sort.Slice(merged, func(i, j int) bool {
		a, b := merged[i], merged[j]
		ca, cb := a.Similarity*a.Importance, b.Similarity*b.Importance
		if ca != cb {
			return ca > cb
		}
		if a.Importance != b.Importance {
			return a.Importance > b.Importance
		}
		at, bt := accessTime(a), accessTime(b)
		if !at.Equal(bt) {
			return at.After(bt)
		}
		if a.ModuleID != b.ModuleID {
			return a.ModuleID < b.ModuleID
		}
		return a.MemoryID.String() < b.MemoryID.String()
	})

	if len(merged) > limit {
		merged = merged[:limit]
	}
	return merged
}

func accessTime(r domain.SearchResult) time.Time {
	if r.LastAccessedAt == nil {
		return time.Time{}
	}
	return *r.LastAccessedAt
}

// recordAccess bumps access counters for returned results, batched per
// module. Fire-and-forget; a miss only skews future ranking slightly.
func (c *CMI) recordAccess(tenantID uuid.UUID, results []domain.SearchResult) {
	if len(results) == 0 {
		return
	}
	byModule := make(map[string][]uuid.UUID)
	refs := make([]domain.MemoryRef, 0, len(results))
	for _, r := range results {
		byModule[r.ModuleID] = append(byModule[r.ModuleID], r.MemoryID)
		refs = append(refs, domain.MemoryRef{ModuleID: r.ModuleID, MemoryID: r.MemoryID})
	}

	go func() {
		ctx := context.Background()
		for moduleID, ids := range byModule {
			mod, err := c.registry.Get(moduleID)
			if err != nil {
				continue
			}
			if err := mod.TouchAccess(ctx, tenantID, ids); err != nil {
				c.logger.Debug("failed to record result access",
					zap.String("module", moduleID), zap.Error(err))
			}
		}
		if err := c.index.TouchAccess(ctx, tenantID, refs); err != nil {
			c.logger.Debug("failed to record index access", zap.Error(err))
		}
	}()
}

// CreateRelationship links two memories. Endpoints must exist in the index
// and must differ.
func (c *CMI) CreateRelationship(ctx context.Context, tenantID uuid.UUID, source, target domain.MemoryRef, kind string, strength float32, metadata domain.Metadata) (*domain.Relationship, error) {
	if kind == "" {
		return nil, fmt.Errorf("%w: relationship kind is required", domain.ErrInvalid)
	}
	if source == target {
		return nil, fmt.Errorf("%w: relationship endpoints must differ", domain.ErrInvalid)
	}
	if strength < 0 || strength > 1 {
		return nil, fmt.Errorf("%w: strength must be in [0, 1]", domain.ErrInvalid)
	}
	for _, ref := range []domain.MemoryRef{source, target} {
		if _, err := c.registry.Get(ref.ModuleID); err != nil {
			return nil, err
		}
		if _, err := c.index.Get(ctx, tenantID, ref.ModuleID, ref.MemoryID); err != nil {
			return nil, fmt.Errorf("%w: memory %s/%s", domain.ErrNotFound, ref.ModuleID, ref.MemoryID)
		}
	}

	rel := &domain.Relationship{
		TenantID: tenantID,
		Source:   source,
		Target:   target,
		Kind:     kind,
		Strength: strength,
		Metadata: metadata,
	}
	if err := c.relationships.Create(ctx, rel); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return rel, nil
}

// GetRelatedMemories returns edges touching ref, strongest first. Kind
// filters when non-empty.
func (c *CMI) GetRelatedMemories(ctx context.Context, tenantID uuid.UUID, ref domain.MemoryRef, kind string, limit int) ([]domain.Relationship, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	rels, err := c.relationships.GetRelated(ctx, tenantID, ref, kind, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return rels, nil
}

func (c *CMI) DeleteRelationship(ctx context.Context, tenantID, id uuid.UUID) error {
	if err := c.relationships.Delete(ctx, tenantID, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: relationship %s", domain.ErrNotFound, id)
		}
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}
