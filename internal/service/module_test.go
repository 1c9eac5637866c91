package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/mnemohq/mnemo/internal/domain"
)

func setupModuleTest(t *testing.T, moduleID string) (*Module, *mockMemoryStore, uuid.UUID) {
	t.Helper()
	registry, stores := testRegistry(&mockEmbedder{})
	mod, err := registry.Get(moduleID)
	if err != nil {
		t.Fatalf("get module: %v", err)
	}
	return mod, stores[moduleID], uuid.New()
}

func TestModule_Store(t *testing.T) {
	mod, ms, tenantID := setupModuleTest(t, domain.ModuleTechnical)
	ctx := context.Background()

	memory, err := mod.Store(ctx, tenantID, "Fixed the race condition in the pool reaper", nil)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if memory.ID == uuid.Nil {
		t.Fatal("expected memory ID to be set")
	}
	if len(memory.Embedding) != domain.FullDim {
		t.Fatalf("expected embedding of length %d, got %d", domain.FullDim, len(memory.Embedding))
	}
	if memory.Metadata.String("type") != domain.ModuleTechnical {
		t.Fatalf("expected type tag %q, got %q", domain.ModuleTechnical, memory.Metadata.String("type"))
	}
	if memory.Metadata.String("title") == "" {
		t.Fatal("expected derived title")
	}
	if _, ok := ms.memories[memory.ID]; !ok {
		t.Fatal("expected memory persisted in store")
	}
}

func TestModule_Store_CallerMetadataWins(t *testing.T) {
	mod, _, tenantID := setupModuleTest(t, domain.ModuleTechnical)

	memory, err := mod.Store(context.Background(), tenantID, "some content", domain.Metadata{
		"title":    "Custom Title",
		"category": "custom",
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got := memory.Metadata.String("title"); got != "Custom Title" {
		t.Fatalf("expected caller title to win, got %q", got)
	}
	if got := memory.Metadata.String("category"); got != "custom" {
		t.Fatalf("expected caller category to win, got %q", got)
	}
}

func TestModule_Store_EmptyContent(t *testing.T) {
	mod, _, tenantID := setupModuleTest(t, domain.ModuleTechnical)

	_, err := mod.Store(context.Background(), tenantID, "", nil)
	if !errors.Is(err, ErrContentEmpty) {
		t.Fatalf("expected ErrContentEmpty, got %v", err)
	}
	if !errors.Is(err, domain.ErrInvalid) {
		t.Fatal("expected error to classify as invalid")
	}
}

func TestModule_Store_ContentTooLarge(t *testing.T) {
	mod, _, tenantID := setupModuleTest(t, domain.ModuleTechnical)

	_, err := mod.Store(context.Background(), tenantID, strings.Repeat("x", domain.MaxContentBytes+1), nil)
	if !errors.Is(err, ErrContentTooLarge) {
		t.Fatalf("expected ErrContentTooLarge, got %v", err)
	}
}

func TestModule_Peek_NotFound(t *testing.T) {
	mod, _, tenantID := setupModuleTest(t, domain.ModuleTechnical)

	_, err := mod.Peek(context.Background(), tenantID, uuid.New())
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestModule_Peek_TenantIsolation(t *testing.T) {
	mod, _, tenantID := setupModuleTest(t, domain.ModuleTechnical)
	ctx := context.Background()

	memory, err := mod.Store(ctx, tenantID, "isolated content", nil)
	if err != nil {
		t.Fatalf("store: %v", err)
	}

	_, err = mod.Peek(ctx, uuid.New(), memory.ID)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for wrong tenant, got %v", err)
	}
}

func TestModule_Update_ContentReembeds(t *testing.T) {
	mod, ms, tenantID := setupModuleTest(t, domain.ModuleTechnical)
	ctx := context.Background()

	memory, err := mod.Store(ctx, tenantID, "original content", nil)
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	before := ms.memories[memory.ID].Embedding

	newContent := "completely different content"
	updated, err := mod.Update(ctx, tenantID, memory.ID, UpdateInput{Content: &newContent})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Content != newContent {
		t.Fatalf("expected updated content, got %q", updated.Content)
	}
	after := ms.memories[memory.ID].Embedding
	if cosine(before, after) > 0.99 {
		t.Fatal("expected embedding to change with content")
	}
}

func TestModule_Update_MetadataOnlyKeepsEmbedding(t *testing.T) {
	mod, ms, tenantID := setupModuleTest(t, domain.ModuleTechnical)
	ctx := context.Background()

	memory, err := mod.Store(ctx, tenantID, "stable content", nil)
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	before := ms.memories[memory.ID].Embedding

	updated, err := mod.Update(ctx, tenantID, memory.ID, UpdateInput{
		Metadata: domain.Metadata{"title": "New Title"},
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got := updated.Metadata.String("title"); got != "New Title" {
		t.Fatalf("expected new title, got %q", got)
	}
	after := ms.memories[memory.ID].Embedding
	if cosine(before, after) < 0.99 {
		t.Fatal("expected embedding unchanged for metadata-only update")
	}
}

func TestModule_Delete(t *testing.T) {
	mod, ms, tenantID := setupModuleTest(t, domain.ModuleTechnical)
	ctx := context.Background()

	memory, err := mod.Store(ctx, tenantID, "to be deleted", nil)
	if err != nil {
		t.Fatalf("store: %v", err)
	}

	if err := mod.Delete(ctx, tenantID, memory.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok := ms.memories[memory.ID]; ok {
		t.Fatal("expected memory removed from store")
	}

	if err := mod.Delete(ctx, tenantID, memory.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestModuleRegistry_UnknownModule(t *testing.T) {
	registry, _ := testRegistry(&mockEmbedder{})

	_, err := registry.Get("nonexistent")
	if !errors.Is(err, ErrUnknownModule) {
		t.Fatalf("expected ErrUnknownModule, got %v", err)
	}
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatal("expected error to classify as not found")
	}
}

func TestModuleRegistry_BuiltinOrder(t *testing.T) {
	registry, _ := testRegistry(&mockEmbedder{})

	ids := registry.IDs()
	want := domain.ModuleIDs()
	if len(ids) != len(want) {
		t.Fatalf("expected %d modules, got %d", len(want), len(ids))
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("expected module %q at position %d, got %q", want[i], i, ids[i])
		}
	}
}

func TestModuleRegistry_ConcurrentRegisterAndRead(t *testing.T) {
	registry, _ := testRegistry(&mockEmbedder{})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			config := domain.ModuleConfig{
				ID:    fmt.Sprintf("ext-%d", n),
				Name:  fmt.Sprintf("Extension %d", n),
				Table: fmt.Sprintf("memories_ext_%d", n),
			}
			registry.Register(config, newMockMemoryStore())
			_ = registry.IDs()
			_ = registry.Configs()
		}(i)
	}
	wg.Wait()

	want := len(domain.ModuleIDs()) + 8
	if got := len(registry.IDs()); got != want {
		t.Fatalf("expected %d modules, got %d", want, got)
	}
	if got := len(registry.Configs()); got != want {
		t.Fatalf("expected %d configs, got %d", want, got)
	}
}
