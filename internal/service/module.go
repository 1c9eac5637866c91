package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mnemohq/mnemo/internal/domain"
	"github.com/mnemohq/mnemo/internal/store"
	"go.uber.org/zap"
)

var (
	ErrContentEmpty    = fmt.Errorf("%w: content is required", domain.ErrInvalid)
	ErrContentTooLarge = fmt.Errorf("%w: content exceeds maximum size", domain.ErrInvalid)
	ErrUnknownModule   = fmt.Errorf("%w: unknown module", domain.ErrNotFound)
)

// Module owns one memory table and the transforms that turn free text plus
// caller metadata into persisted rows. Every module is the same contract
// parameterized by its configuration.
type Module struct {
	config   domain.ModuleConfig
	memories domain.MemoryStore
	embedder domain.EmbeddingProvider
	logger   *zap.Logger
}

func NewModule(config domain.ModuleConfig, memories domain.MemoryStore, embedder domain.EmbeddingProvider, logger *zap.Logger) *Module {
	return &Module{
		config:   config,
		memories: memories,
		embedder: embedder,
		logger:   logger,
	}
}

func (m *Module) ID() string                  { return m.config.ID }
func (m *Module) Config() domain.ModuleConfig { return m.config }

// Store persists one memory: post-process metadata, embed, insert.
// The caller's metadata always wins over auto-computed values.
func (m *Module) Store(ctx context.Context, tenantID uuid.UUID, content string, userMetadata domain.Metadata) (*domain.Memory, error) {
	if content == "" {
		return nil, ErrContentEmpty
	}
	if len(content) > domain.MaxContentBytes {
		return nil, ErrContentTooLarge
	}

	metadata := m.ProcessMetadata(content, userMetadata)

	embedding, err := m.embedder.Embed(ctx, EmbeddingInput(metadata, content), domain.FullDim)
	if err != nil {
		return nil, err
	}

	memory := &domain.Memory{
		TenantID:  tenantID,
		Content:   content,
		Embedding: embedding,
		Metadata:  metadata,
	}
	if err := m.memories.Create(ctx, memory); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return memory, nil
}

// Get returns the memory and bumps its access counter. The bump is
// fire-and-forget.
func (m *Module) Get(ctx context.Context, tenantID, id uuid.UUID) (*domain.Memory, error) {
	memory, err := m.memories.GetByID(ctx, tenantID, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: memory %s", domain.ErrNotFound, id)
		}
		return nil, err
	}

	go func() {
		if err := m.memories.TouchAccess(context.Background(), tenantID, []uuid.UUID{id}); err != nil {
			m.logger.Debug("failed to record memory access",
				zap.String("module", m.config.ID),
				zap.String("memory_id", id.String()),
				zap.Error(err))
		}
	}()

	return memory, nil
}

// Peek reads without touching access counters. Used by internal callers
// (pipeline, reconciler) that are not user-visible reads.
func (m *Module) Peek(ctx context.Context, tenantID, id uuid.UUID) (*domain.Memory, error) {
	memory, err := m.memories.GetByID(ctx, tenantID, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: memory %s", domain.ErrNotFound, id)
		}
		return nil, err
	}
	return memory, nil
}

// UpdateInput carries the optional fields of an update. Metadata, when
// provided, replaces the stored tree (after post-processing fills gaps).
type UpdateInput struct {
	Content  *string
	Metadata domain.Metadata
}

// Update rewrites content and/or metadata. A content change re-embeds and
// rewrites the vector atomically with the row. Returns the updated memory.
func (m *Module) Update(ctx context.Context, tenantID, id uuid.UUID, in UpdateInput) (*domain.Memory, error) {
	current, err := m.Peek(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	content := current.Content
	if in.Content != nil {
		if *in.Content == "" {
			return nil, ErrContentEmpty
		}
		if len(*in.Content) > domain.MaxContentBytes {
			return nil, ErrContentTooLarge
		}
		content = *in.Content
	}

	metadata := current.Metadata
	if in.Metadata != nil {
		metadata = m.ProcessMetadata(content, in.Metadata)
	} else if in.Content != nil {
		// Re-run content-derived enrichment against the new text, keeping
		// previously stored values as the caller layer.
		metadata = m.ProcessMetadata(content, current.Metadata)
	}

	var embedding []float32
	if in.Content != nil && *in.Content != current.Content {
		embedding, err = m.embedder.Embed(ctx, EmbeddingInput(metadata, content), domain.FullDim)
		if err != nil {
			return nil, err
		}
	}

	if err := m.memories.Update(ctx, tenantID, id, content, embedding, metadata); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: memory %s", domain.ErrNotFound, id)
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}

	return m.Peek(ctx, tenantID, id)
}

// Delete removes the module row only; the central index cleanup belongs to
// the write pipeline.
func (m *Module) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	if err := m.memories.Delete(ctx, tenantID, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: memory %s", domain.ErrNotFound, id)
		}
		return err
	}
	return nil
}

func (m *Module) SearchByEmbedding(ctx context.Context, tenantID uuid.UUID, embedding []float32, opts domain.SearchOpts) ([]domain.MemoryWithScore, error) {
	return m.memories.SearchByEmbedding(ctx, tenantID, embedding, opts)
}

func (m *Module) SearchByMetadata(ctx context.Context, tenantID uuid.UUID, criteria map[string]any, limit int) ([]domain.Memory, error) {
	return m.memories.SearchByMetadata(ctx, tenantID, criteria, limit)
}

func (m *Module) Stats(ctx context.Context, tenantID uuid.UUID) (*domain.ModuleStats, error) {
	stats, err := m.memories.Stats(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	stats.ModuleID = m.config.ID
	return stats, nil
}

func (m *Module) TouchAccess(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) error {
	return m.memories.TouchAccess(ctx, tenantID, ids)
}

func (m *Module) ListIDs(ctx context.Context, tenantID uuid.UUID) ([]uuid.UUID, error) {
	return m.memories.ListIDs(ctx, tenantID)
}

func (m *Module) DeleteByTenant(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	return m.memories.DeleteByTenant(ctx, tenantID)
}

// ModuleRegistry resolves modules by id, creating them on demand. Module
// instances are process state only; the database is the durable side.
type ModuleRegistry struct {
	mu       sync.RWMutex
	modules  map[string]*Module
	configs  map[string]domain.ModuleConfig
	order    []string
	db       *pgxpool.Pool
	embedder domain.EmbeddingProvider
	logger   *zap.Logger
}

func NewModuleRegistry(db *pgxpool.Pool, embedder domain.EmbeddingProvider, logger *zap.Logger) *ModuleRegistry {
	r := &ModuleRegistry{
		modules:  make(map[string]*Module),
		configs:  make(map[string]domain.ModuleConfig),
		db:       db,
		embedder: embedder,
		logger:   logger,
	}
	for _, config := range domain.BuiltinModules() {
		r.configs[config.ID] = config
		r.order = append(r.order, config.ID)
	}
	return r
}

// Register installs a module with an explicit store, used for
// domain-specific extension modules beyond the builtin set.
func (r *ModuleRegistry) Register(config domain.ModuleConfig, memories domain.MemoryStore) *Module {
	r.mu.Lock()
	defer r.mu.Unlock()
	mod := NewModule(config, memories, r.embedder, r.logger)
	if _, known := r.configs[config.ID]; !known {
		r.order = append(r.order, config.ID)
	}
	r.configs[config.ID] = config
	r.modules[config.ID] = mod
	return mod
}

// Get loads the module on first use.
func (r *ModuleRegistry) Get(id string) (*Module, error) {
	r.mu.RLock()
	if mod, ok := r.modules[id]; ok {
		r.mu.RUnlock()
		return mod, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if mod, ok := r.modules[id]; ok {
		return mod, nil
	}

	config, ok := r.configs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownModule, id)
	}

	mod := NewModule(config, store.NewMemoryStore(r.db, config.Table), r.embedder, r.logger)
	r.modules[id] = mod
	r.logger.Info("module loaded", zap.String("module", id))
	return mod, nil
}

// IDs returns all registered module ids in registration order.
func (r *ModuleRegistry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, len(r.order))
	copy(ids, r.order)
	return ids
}

// Configs returns all module configurations in registration order.
func (r *ModuleRegistry) Configs() []domain.ModuleConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	configs := make([]domain.ModuleConfig, 0, len(r.order))
	for _, id := range r.order {
		configs = append(configs, r.configs[id])
	}
	return configs
}

// StatsAll aggregates per-module stats for a tenant; modules that fail are
// skipped with a warning.
func (r *ModuleRegistry) StatsAll(ctx context.Context, tenantID uuid.UUID) ([]domain.ModuleStats, error) {
	var all []domain.ModuleStats
	for _, id := range r.IDs() {
		mod, err := r.Get(id)
		if err != nil {
			return nil, err
		}
		stats, err := mod.Stats(ctx, tenantID)
		if err != nil {
			r.logger.Warn("module stats failed", zap.String("module", id), zap.Error(err))
			continue
		}
		all = append(all, *stats)
	}
	return all, nil
}
