package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mnemohq/mnemo/internal/domain"
	"github.com/mnemohq/mnemo/internal/store"
	"go.uber.org/zap"
)

// mockMemoryStore implements domain.MemoryStore over a map.
type mockMemoryStore struct {
	mu       sync.Mutex
	memories map[uuid.UUID]*domain.Memory
	failing  bool
}

func newMockMemoryStore() *mockMemoryStore {
	return &mockMemoryStore{memories: make(map[uuid.UUID]*domain.Memory)}
}

var errStoreDown = errors.New("store down")

func (m *mockMemoryStore) Create(ctx context.Context, mem *domain.Memory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return errStoreDown
	}
	mem.ID = uuid.New()
	mem.CreatedAt = time.Now()
	mem.UpdatedAt = mem.CreatedAt
	m.memories[mem.ID] = mem
	return nil
}

func (m *mockMemoryStore) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*domain.Memory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return nil, errStoreDown
	}
	mem, ok := m.memories[id]
	if !ok || mem.TenantID != tenantID {
		return nil, store.ErrNotFound
	}
	cp := *mem
	return &cp, nil
}

func (m *mockMemoryStore) Update(ctx context.Context, tenantID, id uuid.UUID, content string, embedding []float32, metadata domain.Metadata) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	mem, ok := m.memories[id]
	if !ok || mem.TenantID != tenantID {
		return store.ErrNotFound
	}
	mem.Content = content
	if embedding != nil {
		mem.Embedding = embedding
	}
	mem.Metadata = metadata
	mem.UpdatedAt = time.Now()
	return nil
}

func (m *mockMemoryStore) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	mem, ok := m.memories[id]
	if !ok || mem.TenantID != tenantID {
		return store.ErrNotFound
	}
	delete(m.memories, id)
	return nil
}

func (m *mockMemoryStore) SearchByEmbedding(ctx context.Context, tenantID uuid.UUID, embedding []float32, opts domain.SearchOpts) ([]domain.MemoryWithScore, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return nil, errStoreDown
	}
	var results []domain.MemoryWithScore
	for _, mem := range m.memories {
		if mem.TenantID != tenantID {
			continue
		}
		if !matchesCriteriaAny(mem.Metadata, opts.Filters) {
			continue
		}
		score := cosine(embedding, mem.Embedding)
		if score < opts.MinScore {
			continue
		}
		results = append(results, domain.MemoryWithScore{Memory: *mem, Score: score})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if opts.Limit > 0 && len(results) > opts.Limit {
		results = results[:opts.Limit]
	}
	return results, nil
}

func (m *mockMemoryStore) SearchByMetadata(ctx context.Context, tenantID uuid.UUID, criteria map[string]any, limit int) ([]domain.Memory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return nil, errStoreDown
	}
	var results []domain.Memory
	for _, mem := range m.memories {
		if mem.TenantID != tenantID {
			continue
		}
		if !matchesCriteriaAny(mem.Metadata, criteria) {
			continue
		}
		results = append(results, *mem)
		if limit > 0 && len(results) >= limit {
			break
		}
	}
	return results, nil
}

func (m *mockMemoryStore) Stats(ctx context.Context, tenantID uuid.UUID) (*domain.ModuleStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := &domain.ModuleStats{}
	for _, mem := range m.memories {
		if mem.TenantID == tenantID {
			stats.Total++
			stats.TotalBytes += int64(len(mem.Content))
		}
	}
	return stats, nil
}

func (m *mockMemoryStore) TouchAccess(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	for _, id := range ids {
		if mem, ok := m.memories[id]; ok && mem.TenantID == tenantID {
			mem.AccessCount++
			mem.LastAccessedAt = &now
		}
	}
	return nil
}

func (m *mockMemoryStore) ListIDs(ctx context.Context, tenantID uuid.UUID) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []uuid.UUID
	for id, mem := range m.memories {
		if mem.TenantID == tenantID {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (m *mockMemoryStore) DeleteByTenant(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, mem := range m.memories {
		if mem.TenantID == tenantID {
			delete(m.memories, id)
			n++
		}
	}
	return n, nil
}

func matchesCriteriaAny(md domain.Metadata, criteria map[string]any) bool {
	for key, want := range criteria {
		wantStr, _ := want.(string)
		switch v := md[key].(type) {
		case string:
			if v != wantStr {
				return false
			}
		case []string:
			found := false
			for _, e := range v {
				if e == wantStr {
					found = true
				}
			}
			if !found {
				return false
			}
		default:
			if md[key] != want {
				return false
			}
		}
	}
	return true
}

func cosine(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return float32(dot)
}

// mockIndexStore implements domain.IndexStore over a map keyed by
// (module, memory).
type mockIndexStore struct {
	mu      sync.Mutex
	entries map[domain.MemoryRef]*domain.IndexEntry
	failing bool
}

func newMockIndexStore() *mockIndexStore {
	return &mockIndexStore{entries: make(map[domain.MemoryRef]*domain.IndexEntry)}
}

func (m *mockIndexStore) Upsert(ctx context.Context, e *domain.IndexEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return errStoreDown
	}
	key := domain.MemoryRef{ModuleID: e.ModuleID, MemoryID: e.MemoryID}
	if existing, ok := m.entries[key]; ok {
		e.ID = existing.ID
		e.CreatedAt = existing.CreatedAt
	} else {
		e.ID = uuid.New()
		e.CreatedAt = time.Now()
	}
	e.UpdatedAt = time.Now()
	m.entries[key] = e
	return nil
}

func (m *mockIndexStore) Get(ctx context.Context, tenantID uuid.UUID, moduleID string, memoryID uuid.UUID) (*domain.IndexEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[domain.MemoryRef{ModuleID: moduleID, MemoryID: memoryID}]
	if !ok || e.TenantID != tenantID {
		return nil, store.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (m *mockIndexStore) Delete(ctx context.Context, tenantID uuid.UUID, moduleID string, memoryID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return errStoreDown
	}
	key := domain.MemoryRef{ModuleID: moduleID, MemoryID: memoryID}
	if e, ok := m.entries[key]; ok && e.TenantID == tenantID {
		delete(m.entries, key)
	}
	return nil
}

func (m *mockIndexStore) RoutingRows(ctx context.Context, tenantID uuid.UUID, embedding []float32) ([]domain.RoutingRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return nil, errStoreDown
	}
	var rows []domain.RoutingRow
	for _, e := range m.entries {
		if e.TenantID != tenantID {
			continue
		}
		rows = append(rows, domain.RoutingRow{
			ModuleID:   e.ModuleID,
			Similarity: cosine(embedding, e.RoutingVector),
			Keywords:   e.Keywords,
		})
	}
	return rows, nil
}

func (m *mockIndexStore) TouchAccess(ctx context.Context, tenantID uuid.UUID, refs []domain.MemoryRef) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	for _, ref := range refs {
		if e, ok := m.entries[ref]; ok && e.TenantID == tenantID {
			e.AccessCount++
			e.LastAccessedAt = &now
		}
	}
	return nil
}

func (m *mockIndexStore) ListRefs(ctx context.Context, tenantID uuid.UUID, moduleID string) ([]domain.MemoryRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var refs []domain.MemoryRef
	for key, e := range m.entries {
		if e.TenantID == tenantID && e.ModuleID == moduleID {
			refs = append(refs, key)
		}
	}
	return refs, nil
}

func (m *mockIndexStore) ListTenants(ctx context.Context) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[uuid.UUID]bool)
	var ids []uuid.UUID
	for _, e := range m.entries {
		if !seen[e.TenantID] {
			seen[e.TenantID] = true
			ids = append(ids, e.TenantID)
		}
	}
	return ids, nil
}

func (m *mockIndexStore) DeleteByTenant(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for key, e := range m.entries {
		if e.TenantID == tenantID {
			delete(m.entries, key)
			n++
		}
	}
	return n, nil
}

// mockRelationshipStore implements domain.RelationshipStore over a slice.
type mockRelationshipStore struct {
	mu   sync.Mutex
	rels []*domain.Relationship
}

func newMockRelationshipStore() *mockRelationshipStore {
	return &mockRelationshipStore{}
}

func (m *mockRelationshipStore) Create(ctx context.Context, r *domain.Relationship) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.rels {
		if existing.Source == r.Source && existing.Target == r.Target && existing.Kind == r.Kind {
			if r.Strength > existing.Strength {
				existing.Strength = r.Strength
			}
			r.ID = existing.ID
			return nil
		}
	}
	r.ID = uuid.New()
	r.CreatedAt = time.Now()
	m.rels = append(m.rels, r)
	return nil
}

func (m *mockRelationshipStore) GetRelated(ctx context.Context, tenantID uuid.UUID, ref domain.MemoryRef, kind string, limit int) ([]domain.Relationship, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Relationship
	for _, r := range m.rels {
		if r.TenantID != tenantID {
			continue
		}
		if r.Source != ref && r.Target != ref {
			continue
		}
		if kind != "" && r.Kind != kind {
			continue
		}
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Strength > out[j].Strength })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockRelationshipStore) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, r := range m.rels {
		if r.ID == id && r.TenantID == tenantID {
			m.rels = append(m.rels[:i], m.rels[i+1:]...)
			return nil
		}
	}
	return store.ErrNotFound
}

func (m *mockRelationshipStore) DeleteByMemory(ctx context.Context, tenantID uuid.UUID, ref domain.MemoryRef) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var kept []*domain.Relationship
	var n int64
	for _, r := range m.rels {
		if r.TenantID == tenantID && (r.Source == ref || r.Target == ref) {
			n++
			continue
		}
		kept = append(kept, r)
	}
	m.rels = kept
	return n, nil
}

func (m *mockRelationshipStore) DeleteByTenant(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var kept []*domain.Relationship
	var n int64
	for _, r := range m.rels {
		if r.TenantID == tenantID {
			n++
			continue
		}
		kept = append(kept, r)
	}
	m.rels = kept
	return n, nil
}

// mockTenantStore implements domain.TenantStore over a map.
type mockTenantStore struct {
	tenants map[uuid.UUID]*domain.Tenant
}

func newMockTenantStore() *mockTenantStore {
	return &mockTenantStore{tenants: make(map[uuid.UUID]*domain.Tenant)}
}

func (m *mockTenantStore) Create(ctx context.Context, t *domain.Tenant) error {
	t.ID = uuid.New()
	t.CreatedAt = time.Now()
	m.tenants[t.ID] = t
	return nil
}

func (m *mockTenantStore) GetByTokenHash(ctx context.Context, tokenHash string) (*domain.Tenant, error) {
	for _, t := range m.tenants {
		if t.TokenHash == tokenHash {
			return t, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *mockTenantStore) ListIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for id := range m.tenants {
		ids = append(ids, id)
	}
	return ids, nil
}

// mockEmbedder returns deterministic unit vectors. The first component
// encodes a hash of the text so different texts stay distinguishable.
type mockEmbedder struct {
	mu      sync.Mutex
	failing bool
	calls   int
}

func (m *mockEmbedder) Embed(ctx context.Context, text string, dim int) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.failing {
		return nil, domain.ErrEmbeddingUnavailable
	}
	v := make([]float32, dim)
	var h uint32
	for _, r := range text {
		h = h*31 + uint32(r)
	}
	v[h%uint32(dim)] = 1
	return v, nil
}

func testLogger() *zap.Logger {
	logger, _ := zap.NewDevelopment()
	return logger
}

// testRegistry wires a registry whose builtin modules are all backed by mock
// stores, returning the per-module stores for assertions.
func testRegistry(embedder domain.EmbeddingProvider) (*ModuleRegistry, map[string]*mockMemoryStore) {
	registry := NewModuleRegistry(nil, embedder, testLogger())
	stores := make(map[string]*mockMemoryStore)
	for _, config := range domain.BuiltinModules() {
		ms := newMockMemoryStore()
		stores[config.ID] = ms
		registry.Register(config, ms)
	}
	return registry, stores
}
