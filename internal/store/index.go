package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mnemohq/mnemo/internal/domain"
	pgvector "github.com/pgvector/pgvector-go"
)

// IndexStore owns the central memory index table.
type IndexStore struct {
	db *pgxpool.Pool
}

func NewIndexStore(db *pgxpool.Pool) *IndexStore {
	return &IndexStore{db: db}
}

// Upsert is keyed on (module_id, memory_id) so duplicate index writes on
// retry are idempotent.
func (s *IndexStore) Upsert(ctx context.Context, e *domain.IndexEntry) error {
	var vec *pgvector.Vector
	if len(e.RoutingVector) > 0 {
		v := pgvector.NewVector(e.RoutingVector)
		vec = &v
	}

	return s.db.QueryRow(ctx,
		`INSERT INTO memory_index (tenant_id, module_id, memory_id, routing_vector, title, summary, keywords, categories, importance, access_count)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 0)
		 ON CONFLICT (module_id, memory_id) DO UPDATE
		 SET routing_vector = EXCLUDED.routing_vector,
		     title = EXCLUDED.title,
		     summary = EXCLUDED.summary,
		     keywords = EXCLUDED.keywords,
		     categories = EXCLUDED.categories,
		     importance = EXCLUDED.importance,
		     updated_at = NOW()
		 RETURNING id, created_at, updated_at`,
		e.TenantID, e.ModuleID, e.MemoryID, vec, e.Title, e.Summary, e.Keywords, e.Categories, e.Importance,
	).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
}

func (s *IndexStore) Get(ctx context.Context, tenantID uuid.UUID, moduleID string, memoryID uuid.UUID) (*domain.IndexEntry, error) {
	e := &domain.IndexEntry{}
	err := s.db.QueryRow(ctx,
		`SELECT id, tenant_id, module_id, memory_id, title, summary, keywords, categories, importance, access_count, last_accessed_at, created_at, updated_at
		 FROM memory_index
		 WHERE tenant_id = $1 AND module_id = $2 AND memory_id = $3`,
		tenantID, moduleID, memoryID,
	).Scan(&e.ID, &e.TenantID, &e.ModuleID, &e.MemoryID, &e.Title, &e.Summary, &e.Keywords, &e.Categories, &e.Importance, &e.AccessCount, &e.LastAccessedAt, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return e, nil
}

// Delete is idempotent: removing an absent entry is not an error.
func (s *IndexStore) Delete(ctx context.Context, tenantID uuid.UUID, moduleID string, memoryID uuid.UUID) error {
	_, err := s.db.Exec(ctx,
		`DELETE FROM memory_index WHERE tenant_id = $1 AND module_id = $2 AND memory_id = $3`,
		tenantID, moduleID, memoryID,
	)
	return err
}

func (s *IndexStore) RoutingRows(ctx context.Context, tenantID uuid.UUID, embedding []float32) ([]domain.RoutingRow, error) {
	vec := pgvector.NewVector(embedding)

	rows, err := s.db.Query(ctx,
		`SELECT module_id, 1 - (routing_vector <=> $2) AS similarity, keywords
		 FROM memory_index
		 WHERE tenant_id = $1 AND routing_vector IS NOT NULL`,
		tenantID, vec,
	)
	if err != nil {
		return nil, fmt.Errorf("routing rows query: %w", err)
	}
	defer rows.Close()

	var results []domain.RoutingRow
	for rows.Next() {
		var r domain.RoutingRow
		if err := rows.Scan(&r.ModuleID, &r.Similarity, &r.Keywords); err != nil {
			return nil, fmt.Errorf("scan routing row: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

func (s *IndexStore) TouchAccess(ctx context.Context, tenantID uuid.UUID, refs []domain.MemoryRef) error {
	for _, ref := range refs {
		_, err := s.db.Exec(ctx,
			`UPDATE memory_index SET access_count = access_count + 1, last_accessed_at = NOW()
			 WHERE tenant_id = $1 AND module_id = $2 AND memory_id = $3`,
			tenantID, ref.ModuleID, ref.MemoryID,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *IndexStore) ListRefs(ctx context.Context, tenantID uuid.UUID, moduleID string) ([]domain.MemoryRef, error) {
	rows, err := s.db.Query(ctx,
		`SELECT module_id, memory_id FROM memory_index WHERE tenant_id = $1 AND module_id = $2`,
		tenantID, moduleID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var refs []domain.MemoryRef
	for rows.Next() {
		var ref domain.MemoryRef
		if err := rows.Scan(&ref.ModuleID, &ref.MemoryID); err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

func (s *IndexStore) ListTenants(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := s.db.Query(ctx, `SELECT DISTINCT tenant_id FROM memory_index`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tenants []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		tenants = append(tenants, id)
	}
	return tenants, rows.Err()
}

func (s *IndexStore) DeleteByTenant(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM memory_index WHERE tenant_id = $1`, tenantID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
