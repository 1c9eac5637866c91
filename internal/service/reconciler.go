package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mnemohq/mnemo/internal/domain"
	"go.uber.org/zap"
)

// Reconciler periodically compares module tables against the central index
// and repairs drift in both directions: missing index entries are rebuilt
// and orphaned entries are removed. One sweep also runs at startup so
// repairs lost to a crash are not deferred a full interval.
type Reconciler struct {
	registry *ModuleRegistry
	cmi      *CMI
	tenants  domain.TenantStore
	index    domain.IndexStore
	interval time.Duration
	stopCh   chan struct{}
	wg       sync.WaitGroup
	logger   *zap.Logger
}

func NewReconciler(registry *ModuleRegistry, cmi *CMI, tenants domain.TenantStore, index domain.IndexStore, interval time.Duration, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		registry: registry,
		cmi:      cmi,
		tenants:  tenants,
		index:    index,
		interval: interval,
		stopCh:   make(chan struct{}),
		logger:   logger,
	}
}

func (r *Reconciler) Start() {
	r.wg.Add(1)
	go r.run()
	r.logger.Info("reconciler started", zap.Duration("interval", r.interval))
}

func (r *Reconciler) Stop() {
	close(r.stopCh)
	r.wg.Wait()
	r.logger.Info("reconciler stopped")
}

func (r *Reconciler) run() {
	defer r.wg.Done()

	r.sweep()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.sweep()
		}
	}
}

func (r *Reconciler) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), r.interval)
	defer cancel()

	tenantIDs, err := r.tenants.ListIDs(ctx)
	if err != nil {
		r.logger.Error("reconciler could not list tenants", zap.Error(err))
		return
	}

	var backfilled, purged int
	for _, tenantID := range tenantIDs {
		for _, moduleID := range r.registry.IDs() {
			b, p, err := r.reconcileModule(ctx, tenantID, moduleID)
			if err != nil {
				r.logger.Warn("module reconciliation failed",
					zap.String("tenant_id", tenantID.String()),
					zap.String("module", moduleID),
					zap.Error(err))
				continue
			}
			backfilled += b
			purged += p
		}
	}
	purged += r.purgeStaleTenants(ctx, tenantIDs)

	if backfilled > 0 || purged > 0 {
		r.logger.Info("index reconciled",
			zap.Int("backfilled", backfilled),
			zap.Int("purged", purged))
	}
}

// purgeStaleTenants drops index entries whose tenant row no longer exists.
func (r *Reconciler) purgeStaleTenants(ctx context.Context, tenantIDs []uuid.UUID) int {
	indexed, err := r.index.ListTenants(ctx)
	if err != nil {
		r.logger.Warn("reconciler could not list indexed tenants", zap.Error(err))
		return 0
	}

	known := make(map[uuid.UUID]struct{}, len(tenantIDs))
	for _, id := range tenantIDs {
		known[id] = struct{}{}
	}

	var purged int
	for _, id := range indexed {
		if _, ok := known[id]; ok {
			continue
		}
		n, err := r.index.DeleteByTenant(ctx, id)
		if err != nil {
			r.logger.Warn("stale tenant purge failed",
				zap.String("tenant_id", id.String()),
				zap.Error(err))
			continue
		}
		purged += int(n)
	}
	return purged
}

// reconcileModule diffs one (tenant, module) pair. Module rows missing from
// the index are re-indexed; index entries without a backing row are removed
// along with their relationships.
func (r *Reconciler) reconcileModule(ctx context.Context, tenantID uuid.UUID, moduleID string) (backfilled, purged int, err error) {
	mod, err := r.registry.Get(moduleID)
	if err != nil {
		return 0, 0, err
	}

	ids, err := mod.ListIDs(ctx, tenantID)
	if err != nil {
		return 0, 0, err
	}
	refs, err := r.index.ListRefs(ctx, tenantID, moduleID)
	if err != nil {
		return 0, 0, err
	}

	indexed := make(map[uuid.UUID]struct{}, len(refs))
	for _, ref := range refs {
		indexed[ref.MemoryID] = struct{}{}
	}
	live := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		live[id] = struct{}{}
	}

	for _, id := range ids {
		if _, ok := indexed[id]; ok {
			continue
		}
		memory, err := mod.Peek(ctx, tenantID, id)
		if err != nil {
			r.logger.Warn("backfill read failed",
				zap.String("module", moduleID),
				zap.String("memory_id", id.String()),
				zap.Error(err))
			continue
		}
		if err := r.cmi.IndexMemory(ctx, moduleID, memory); err != nil {
			r.logger.Warn("backfill index write failed",
				zap.String("module", moduleID),
				zap.String("memory_id", id.String()),
				zap.Error(err))
			continue
		}
		backfilled++
	}

	for _, ref := range refs {
		if _, ok := live[ref.MemoryID]; ok {
			continue
		}
		if err := r.cmi.RemoveFromIndex(ctx, tenantID, ref); err != nil {
			r.logger.Warn("orphan purge failed",
				zap.String("module", moduleID),
				zap.String("memory_id", ref.MemoryID.String()),
				zap.Error(err))
			continue
		}
		purged++
	}

	return backfilled, purged, nil
}
