package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/mnemohq/mnemo/internal/domain"
	"go.uber.org/zap"
)

// Pipeline is the write path: it keeps module tables and the central index
// consistent. The module row is always written first; an index failure
// degrades to a queued repair instead of failing the write.
type Pipeline struct {
	registry  *ModuleRegistry
	cmi       *CMI
	embedder  domain.EmbeddingProvider
	reindexer *Reindexer
	logger    *zap.Logger
}

func NewPipeline(registry *ModuleRegistry, cmi *CMI, embedder domain.EmbeddingProvider, reindexer *Reindexer, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		registry:  registry,
		cmi:       cmi,
		embedder:  embedder,
		reindexer: reindexer,
		logger:    logger,
	}
}

// StoreResult reports where a write landed and whether the index entry is
// already live or queued for repair.
type StoreResult struct {
	Memory   *domain.Memory `json:"memory"`
	ModuleID string         `json:"module_id"`
	Indexed  bool           `json:"indexed"`
}

// Store persists content into moduleID, classifying from content when the
// module is unspecified. The routing embedding is computed concurrently with
// the row insert since the two share no data.
func (p *Pipeline) Store(ctx context.Context, tenantID uuid.UUID, moduleID, content string, userMetadata domain.Metadata) (*StoreResult, error) {
	if moduleID == "" {
		moduleID = ClassifyModule(content)
	}
	mod, err := p.registry.Get(moduleID)
	if err != nil {
		return nil, err
	}

	// Processing up front pins the metadata both branches see. Running it
	// through the module again inside Store is a no-op since every derived
	// key is already present.
	metadata := mod.ProcessMetadata(content, userMetadata)

	var (
		wg         sync.WaitGroup
		routing    []float32
		routingErr error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		routing, routingErr = p.embedder.Embed(ctx, EmbeddingInput(metadata, content), domain.RoutingDim)
	}()

	memory, err := mod.Store(ctx, tenantID, content, metadata)
	wg.Wait()
	if err != nil {
		return nil, err
	}

	result := &StoreResult{Memory: memory, ModuleID: moduleID}
	ref := domain.MemoryRef{ModuleID: moduleID, MemoryID: memory.ID}

	if routingErr != nil {
		p.logger.Warn("routing embedding failed, queueing reindex",
			zap.String("module", moduleID),
			zap.String("memory_id", memory.ID.String()),
			zap.Error(routingErr))
		p.reindexer.Enqueue(tenantID, ref)
		return result, nil
	}
	if err := p.cmi.IndexMemoryWithVector(ctx, moduleID, memory, routing); err != nil {
		p.logger.Warn("index write failed, queueing reindex",
			zap.String("module", moduleID),
			zap.String("memory_id", memory.ID.String()),
			zap.Error(err))
		p.reindexer.Enqueue(tenantID, ref)
		return result, nil
	}
	result.Indexed = true
	return result, nil
}

// Retrieve reads one memory and records the access.
func (p *Pipeline) Retrieve(ctx context.Context, tenantID uuid.UUID, moduleID string, id uuid.UUID) (*domain.Memory, error) {
	mod, err := p.registry.Get(moduleID)
	if err != nil {
		return nil, err
	}
	return mod.Get(ctx, tenantID, id)
}

// Update rewrites a memory and refreshes its index entry. An index failure
// leaves the stale entry in place and queues a repair.
func (p *Pipeline) Update(ctx context.Context, tenantID uuid.UUID, moduleID string, id uuid.UUID, in UpdateInput) (*domain.Memory, error) {
	mod, err := p.registry.Get(moduleID)
	if err != nil {
		return nil, err
	}
	memory, err := mod.Update(ctx, tenantID, id, in)
	if err != nil {
		return nil, err
	}

	if err := p.cmi.IndexMemory(ctx, moduleID, memory); err != nil {
		p.logger.Warn("index refresh failed, queueing reindex",
			zap.String("module", moduleID),
			zap.String("memory_id", id.String()),
			zap.Error(err))
		p.reindexer.Enqueue(tenantID, domain.MemoryRef{ModuleID: moduleID, MemoryID: id})
	}
	return memory, nil
}

// Delete removes a memory everywhere. Relationships and the index entry go
// first so a partial failure can never leave an index row pointing at a
// deleted memory.
func (p *Pipeline) Delete(ctx context.Context, tenantID uuid.UUID, moduleID string, id uuid.UUID) error {
	mod, err := p.registry.Get(moduleID)
	if err != nil {
		return err
	}
	if _, err := mod.Peek(ctx, tenantID, id); err != nil {
		return err
	}

	ref := domain.MemoryRef{ModuleID: moduleID, MemoryID: id}
	if err := p.cmi.RemoveFromIndex(ctx, tenantID, ref); err != nil {
		return err
	}
	return mod.Delete(ctx, tenantID, id)
}

// Search runs a federated search across modules.
func (p *Pipeline) Search(ctx context.Context, tenantID uuid.UUID, query string, opts SearchOptions) (*SearchResponse, error) {
	return p.cmi.SearchMemories(ctx, tenantID, query, opts)
}

// PurgeTenant erases every trace of a tenant: relationships, index rows,
// then every module table.
func (p *Pipeline) PurgeTenant(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	if _, err := p.cmi.relationships.DeleteByTenant(ctx, tenantID); err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	if _, err := p.cmi.index.DeleteByTenant(ctx, tenantID); err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}

	var total int64
	for _, id := range p.registry.IDs() {
		mod, err := p.registry.Get(id)
		if err != nil {
			return total, err
		}
		n, err := mod.DeleteByTenant(ctx, tenantID)
		if err != nil {
			return total, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
		}
		total += n
	}
	p.cmi.router.InvalidateTenant(tenantID)
	p.logger.Info("tenant purged",
		zap.String("tenant_id", tenantID.String()),
		zap.Int64("memories_deleted", total))
	return total, nil
}
