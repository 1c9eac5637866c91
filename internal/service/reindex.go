package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/mnemohq/mnemo/internal/domain"
	"go.uber.org/zap"
)

const reindexQueueSize = 1024

type reindexJob struct {
	tenantID uuid.UUID
	ref      domain.MemoryRef
}

// Reindexer repairs index entries that failed to write inline. Each job is
// retried with exponential backoff up to the horizon; anything that still
// fails is left for the reconciler.
type Reindexer struct {
	cmi      *CMI
	registry *ModuleRegistry
	horizon  time.Duration
	jobs     chan reindexJob
	stopCh   chan struct{}
	wg       sync.WaitGroup
	logger   *zap.Logger
}

func NewReindexer(cmi *CMI, registry *ModuleRegistry, horizon time.Duration, logger *zap.Logger) *Reindexer {
	return &Reindexer{
		cmi:      cmi,
		registry: registry,
		horizon:  horizon,
		jobs:     make(chan reindexJob, reindexQueueSize),
		stopCh:   make(chan struct{}),
		logger:   logger,
	}
}

func (r *Reindexer) Start() {
	r.wg.Add(1)
	go r.run()
	r.logger.Info("reindexer started", zap.Duration("horizon", r.horizon))
}

func (r *Reindexer) Stop() {
	close(r.stopCh)
	r.wg.Wait()
	r.logger.Info("reindexer stopped")
}

// Enqueue schedules an index repair. Never blocks; a full queue drops the
// job and the reconciler picks the row up on its next sweep.
func (r *Reindexer) Enqueue(tenantID uuid.UUID, ref domain.MemoryRef) {
	select {
	case r.jobs <- reindexJob{tenantID: tenantID, ref: ref}:
	default:
		r.logger.Warn("reindex queue full, dropping job",
			zap.String("module", ref.ModuleID),
			zap.String("memory_id", ref.MemoryID.String()))
	}
}

func (r *Reindexer) run() {
	defer r.wg.Done()
	for {
		select {
		case <-r.stopCh:
			return
		case job := <-r.jobs:
			r.process(job)
		}
	}
}

func (r *Reindexer) process(job reindexJob) {
	ctx, cancel := context.WithTimeout(context.Background(), r.horizon)
	defer cancel()

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = r.horizon

	err := backoff.Retry(func() error {
		select {
		case <-r.stopCh:
			return backoff.Permanent(errors.New("reindexer stopping"))
		default:
		}

		mod, err := r.registry.Get(job.ref.ModuleID)
		if err != nil {
			return backoff.Permanent(err)
		}
		memory, err := mod.Peek(ctx, job.tenantID, job.ref.MemoryID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				// Row deleted while queued; nothing to index.
				return nil
			}
			return err
		}
		return r.cmi.IndexMemory(ctx, job.ref.ModuleID, memory)
	}, backoff.WithContext(bo, ctx))

	if err != nil {
		r.logger.Warn("reindex gave up, reconciler will repair",
			zap.String("module", job.ref.ModuleID),
			zap.String("memory_id", job.ref.MemoryID.String()),
			zap.Error(err))
	}
}
