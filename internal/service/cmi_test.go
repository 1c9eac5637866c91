package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mnemohq/mnemo/internal/domain"
)

type cmiFixture struct {
	cmi      *CMI
	registry *ModuleRegistry
	stores   map[string]*mockMemoryStore
	index    *mockIndexStore
	rels     *mockRelationshipStore
	embedder *mockEmbedder
	tenantID uuid.UUID
}

func setupCMITest(t *testing.T) *cmiFixture {
	t.Helper()
	embedder := &mockEmbedder{}
	registry, stores := testRegistry(embedder)
	index := newMockIndexStore()
	rels := newMockRelationshipStore()
	router := NewRouter(index, embedder, time.Minute, testLogger())
	return &cmiFixture{
		cmi:      NewCMI(registry, index, rels, embedder, router, testLogger()),
		registry: registry,
		stores:   stores,
		index:    index,
		rels:     rels,
		embedder: embedder,
		tenantID: uuid.New(),
	}
}

// storeAndIndex writes one memory through its module and indexes it, the way
// the pipeline does.
func (f *cmiFixture) storeAndIndex(t *testing.T, moduleID, content string) *domain.Memory {
	t.Helper()
	ctx := context.Background()
	mod, err := f.registry.Get(moduleID)
	if err != nil {
		t.Fatalf("get module: %v", err)
	}
	memory, err := mod.Store(ctx, f.tenantID, content, nil)
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	if err := f.cmi.IndexMemory(ctx, moduleID, memory); err != nil {
		t.Fatalf("index: %v", err)
	}
	return memory
}

func TestCMI_IndexMemory(t *testing.T) {
	f := setupCMITest(t)
	memory := f.storeAndIndex(t, domain.ModuleTechnical, "Fixed the flaky migration test")

	entry, err := f.index.Get(context.Background(), f.tenantID, domain.ModuleTechnical, memory.ID)
	if err != nil {
		t.Fatalf("expected index entry, got %v", err)
	}
	if entry.Title != memory.Metadata.String("title") {
		t.Fatalf("entry title = %q", entry.Title)
	}
	if len(entry.RoutingVector) != domain.RoutingDim {
		t.Fatalf("routing vector length = %d", len(entry.RoutingVector))
	}
	if entry.Importance != importanceOf(memory.Metadata) {
		t.Fatalf("entry importance = %v", entry.Importance)
	}
}

func TestCMI_IndexMemory_UpsertKeepsIdentity(t *testing.T) {
	f := setupCMITest(t)
	ctx := context.Background()
	memory := f.storeAndIndex(t, domain.ModuleTechnical, "original content")

	first, err := f.index.Get(ctx, f.tenantID, domain.ModuleTechnical, memory.ID)
	if err != nil {
		t.Fatalf("get entry: %v", err)
	}

	if err := f.cmi.IndexMemory(ctx, domain.ModuleTechnical, memory); err != nil {
		t.Fatalf("reindex: %v", err)
	}
	second, err := f.index.Get(ctx, f.tenantID, domain.ModuleTechnical, memory.ID)
	if err != nil {
		t.Fatalf("get entry again: %v", err)
	}
	if second.ID != first.ID {
		t.Fatal("expected upsert to keep the entry id")
	}
}

func TestCMI_RemoveFromIndex(t *testing.T) {
	f := setupCMITest(t)
	ctx := context.Background()
	a := f.storeAndIndex(t, domain.ModuleTechnical, "memory a")
	b := f.storeAndIndex(t, domain.ModuleWork, "memory b about the deploy meeting")

	refA := domain.MemoryRef{ModuleID: domain.ModuleTechnical, MemoryID: a.ID}
	refB := domain.MemoryRef{ModuleID: domain.ModuleWork, MemoryID: b.ID}
	if _, err := f.cmi.CreateRelationship(ctx, f.tenantID, refA, refB, "related_to", 0.6, nil); err != nil {
		t.Fatalf("create relationship: %v", err)
	}

	if err := f.cmi.RemoveFromIndex(ctx, f.tenantID, refA); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := f.index.Get(ctx, f.tenantID, domain.ModuleTechnical, a.ID); err == nil {
		t.Fatal("expected index entry to be gone")
	}
	rels, err := f.cmi.GetRelatedMemories(ctx, f.tenantID, refB, "", 10)
	if err != nil {
		t.Fatalf("get related: %v", err)
	}
	if len(rels) != 0 {
		t.Fatalf("expected relationships to be removed, got %d", len(rels))
	}

	// Removal is idempotent.
	if err := f.cmi.RemoveFromIndex(ctx, f.tenantID, refA); err != nil {
		t.Fatalf("second remove: %v", err)
	}
}

func TestCMI_SearchMemories_EmptyQuery(t *testing.T) {
	f := setupCMITest(t)

	_, err := f.cmi.SearchMemories(context.Background(), f.tenantID, "  ", SearchOptions{})
	if !errors.Is(err, domain.ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}

func TestCMI_SearchMemories_PinnedModules(t *testing.T) {
	f := setupCMITest(t)
	f.storeAndIndex(t, domain.ModuleTechnical, "technical row")
	f.storeAndIndex(t, domain.ModulePersonal, "personal row")

	resp, err := f.cmi.SearchMemories(context.Background(), f.tenantID, "row", SearchOptions{
		Modules: []string{domain.ModuleTechnical},
	})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(resp.Results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(resp.Results))
	}
	if resp.Results[0].ModuleID != domain.ModuleTechnical {
		t.Fatalf("expected technical result, got %q", resp.Results[0].ModuleID)
	}
	// Pinning skips routing.
	if resp.Routing != nil {
		t.Fatalf("expected no routing decision, got %v", resp.Routing)
	}
}

func TestCMI_SearchMemories_UnknownPinnedModule(t *testing.T) {
	f := setupCMITest(t)

	_, err := f.cmi.SearchMemories(context.Background(), f.tenantID, "query", SearchOptions{
		Modules: []string{"no-such-module"},
	})
	if !errors.Is(err, ErrUnknownModule) {
		t.Fatalf("expected ErrUnknownModule, got %v", err)
	}
}

func TestCMI_SearchMemories_EmptyRoutingSearchesAllModules(t *testing.T) {
	f := setupCMITest(t)
	f.storeAndIndex(t, domain.ModuleTechnical, "technical row")
	f.storeAndIndex(t, domain.ModulePersonal, "personal row")

	// The query matches no routing vectors or keywords, so routing returns
	// nothing and the search degrades to every module.
	resp, err := f.cmi.SearchMemories(context.Background(), f.tenantID, "zzzz qqqq", SearchOptions{})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	modules := make(map[string]bool)
	for _, r := range resp.Results {
		modules[r.ModuleID] = true
	}
	if !modules[domain.ModuleTechnical] || !modules[domain.ModulePersonal] {
		t.Fatalf("expected results from both modules, got %v", modules)
	}
}

func TestCMI_SearchMemories_FailingModuleContributesNothing(t *testing.T) {
	f := setupCMITest(t)
	f.storeAndIndex(t, domain.ModuleTechnical, "technical row")
	f.storeAndIndex(t, domain.ModulePersonal, "personal row")
	f.stores[domain.ModulePersonal].failing = true

	resp, err := f.cmi.SearchMemories(context.Background(), f.tenantID, "row", SearchOptions{
		Modules: []string{domain.ModuleTechnical, domain.ModulePersonal},
	})
	if err != nil {
		t.Fatalf("expected degraded search to succeed, got %v", err)
	}
	if len(resp.Results) != 1 {
		t.Fatalf("expected 1 result from the healthy module, got %d", len(resp.Results))
	}
	if resp.Results[0].ModuleID != domain.ModuleTechnical {
		t.Fatalf("unexpected module %q", resp.Results[0].ModuleID)
	}
}

func TestMergeResults(t *testing.T) {
	idA, idB, idC := uuid.New(), uuid.New(), uuid.New()
	now := time.Now()

	perModule := [][]domain.SearchResult{
		{
			{ModuleID: "technical", MemoryID: idA, Similarity: 0.5, Importance: 1},
			{ModuleID: "technical", MemoryID: idB, Similarity: 1, Importance: 0.25},
		},
		{
			// Duplicate of idA, dropped.
			{ModuleID: "technical", MemoryID: idA, Similarity: 0.5, Importance: 1},
			{ModuleID: "work", MemoryID: idC, Similarity: 0.5, Importance: 0.5, LastAccessedAt: &now},
		},
	}

	merged := mergeResults(perModule, 10)

	if len(merged) != 3 {
		t.Fatalf("expected 3 merged results, got %d", len(merged))
	}
	// 0.5x1 > 1x0.25 = 0.5x0.5; the 0.25 tie resolves by importance.
	if merged[0].MemoryID != idA {
		t.Fatalf("expected idA first, got %v", merged[0].MemoryID)
	}
	if merged[1].MemoryID != idC {
		t.Fatalf("expected idC second, got %v", merged[1].MemoryID)
	}
	if merged[2].MemoryID != idB {
		t.Fatalf("expected idB third, got %v", merged[2].MemoryID)
	}
}

func TestMergeResults_RecencyBreaksTies(t *testing.T) {
	idOld, idNew := uuid.New(), uuid.New()
	old := time.Now().Add(-time.Hour)
	recent := time.Now()

	perModule := [][]domain.SearchResult{{
		{ModuleID: "work", MemoryID: idOld, Similarity: 0.5, Importance: 0.5, LastAccessedAt: &old},
		{ModuleID: "work", MemoryID: idNew, Similarity: 0.5, Importance: 0.5, LastAccessedAt: &recent},
	}}

	merged := mergeResults(perModule, 10)
	if merged[0].MemoryID != idNew {
		t.Fatal("expected the more recently accessed memory first")
	}
}

func TestMergeResults_Limit(t *testing.T) {
	var perModule [][]domain.SearchResult
	for i := 0; i < 5; i++ {
		perModule = append(perModule, []domain.SearchResult{
			{ModuleID: "work", MemoryID: uuid.New(), Similarity: 0.5, Importance: 0.5},
		})
	}

	if got := len(mergeResults(perModule, 3)); got != 3 {
		t.Fatalf("expected limit to cap results at 3, got %d", got)
	}
}

func TestCMI_CreateRelationship_Validation(t *testing.T) {
	f := setupCMITest(t)
	ctx := context.Background()
	a := f.storeAndIndex(t, domain.ModuleTechnical, "memory a")
	refA := domain.MemoryRef{ModuleID: domain.ModuleTechnical, MemoryID: a.ID}
	refMissing := domain.MemoryRef{ModuleID: domain.ModuleWork, MemoryID: uuid.New()}

	tests := []struct {
		name     string
		source   domain.MemoryRef
		target   domain.MemoryRef
		kind     string
		strength float32
		wantErr  error
	}{
		{"missing kind", refA, refMissing, "", 0.5, domain.ErrInvalid},
		{"same endpoints", refA, refA, "related_to", 0.5, domain.ErrInvalid},
		{"strength out of range", refA, refMissing, "related_to", 1.5, domain.ErrInvalid},
		{"unindexed target", refA, refMissing, "related_to", 0.5, domain.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.cmi.CreateRelationship(ctx, f.tenantID, tt.source, tt.target, tt.kind, tt.strength, nil)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestCMI_Relationships_RoundTrip(t *testing.T) {
	f := setupCMITest(t)
	ctx := context.Background()
	a := f.storeAndIndex(t, domain.ModuleTechnical, "memory a")
	b := f.storeAndIndex(t, domain.ModuleWork, "memory b about the meeting")
	refA := domain.MemoryRef{ModuleID: domain.ModuleTechnical, MemoryID: a.ID}
	refB := domain.MemoryRef{ModuleID: domain.ModuleWork, MemoryID: b.ID}

	rel, err := f.cmi.CreateRelationship(ctx, f.tenantID, refA, refB, "derived_from", 0.8, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if rel.ID == uuid.Nil {
		t.Fatal("expected relationship id to be set")
	}

	// Edges are visible from both endpoints.
	for _, ref := range []domain.MemoryRef{refA, refB} {
		rels, err := f.cmi.GetRelatedMemories(ctx, f.tenantID, ref, "", 10)
		if err != nil {
			t.Fatalf("get related: %v", err)
		}
		if len(rels) != 1 || rels[0].Kind != "derived_from" {
			t.Fatalf("unexpected edges from %v: %v", ref, rels)
		}
	}

	if err := f.cmi.DeleteRelationship(ctx, f.tenantID, rel.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := f.cmi.DeleteRelationship(ctx, f.tenantID, rel.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}
