package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mnemohq/mnemo/internal/domain"
)

type RelationshipStore struct {
	db *pgxpool.Pool
}

func NewRelationshipStore(db *pgxpool.Pool) *RelationshipStore {
	return &RelationshipStore{db: db}
}

// Create upserts on (source, target, kind), keeping the stronger edge.
func (s *RelationshipStore) Create(ctx context.Context, r *domain.Relationship) error {
	return s.db.QueryRow(ctx,
		`INSERT INTO memory_relationships (tenant_id, source_module, source_memory_id, target_module, target_memory_id, kind, strength, metadata)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (source_module, source_memory_id, target_module, target_memory_id, kind) DO UPDATE
		 SET strength = GREATEST(memory_relationships.strength, EXCLUDED.strength),
		     metadata = EXCLUDED.metadata
		 RETURNING id, created_at`,
		r.TenantID, r.Source.ModuleID, r.Source.MemoryID, r.Target.ModuleID, r.Target.MemoryID, r.Kind, r.Strength, r.Metadata,
	).Scan(&r.ID, &r.CreatedAt)
}

// GetRelated matches edges in either direction. Strength descending, stable
// by id for equal strengths.
func (s *RelationshipStore) GetRelated(ctx context.Context, tenantID uuid.UUID, ref domain.MemoryRef, kind string, limit int) ([]domain.Relationship, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT id, tenant_id, source_module, source_memory_id, target_module, target_memory_id, kind, strength, metadata, created_at
		 FROM memory_relationships
		 WHERE tenant_id = $1
		   AND ((source_module = $2 AND source_memory_id = $3) OR (target_module = $2 AND target_memory_id = $3))`
	args := []any{tenantID, ref.ModuleID, ref.MemoryID}

	if kind != "" {
		query += fmt.Sprintf(" AND kind = $%d", len(args)+1)
		args = append(args, kind)
	}

	query += fmt.Sprintf(" ORDER BY strength DESC, id LIMIT $%d", len(args)+1)
	args = append(args, limit)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("related query: %w", err)
	}
	defer rows.Close()

	var results []domain.Relationship
	for rows.Next() {
		var r domain.Relationship
		if err := rows.Scan(&r.ID, &r.TenantID, &r.Source.ModuleID, &r.Source.MemoryID, &r.Target.ModuleID, &r.Target.MemoryID, &r.Kind, &r.Strength, &r.Metadata, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan relationship row: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

func (s *RelationshipStore) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM memory_relationships WHERE id = $1 AND tenant_id = $2`,
		id, tenantID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteByMemory cascades on either endpoint.
func (s *RelationshipStore) DeleteByMemory(ctx context.Context, tenantID uuid.UUID, ref domain.MemoryRef) (int64, error) {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM memory_relationships
		 WHERE tenant_id = $1
		   AND ((source_module = $2 AND source_memory_id = $3) OR (target_module = $2 AND target_memory_id = $3))`,
		tenantID, ref.ModuleID, ref.MemoryID,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *RelationshipStore) DeleteByTenant(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM memory_relationships WHERE tenant_id = $1`, tenantID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
