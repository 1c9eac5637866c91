package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mnemohq/mnemo/internal/domain"
	pgvector "github.com/pgvector/pgvector-go"
)

// MemoryStore owns one module's table. The table name comes from the module
// configuration, never from request input.
type MemoryStore struct {
	db    *pgxpool.Pool
	table string
}

func NewMemoryStore(db *pgxpool.Pool, table string) *MemoryStore {
	return &MemoryStore{db: db, table: table}
}

func (s *MemoryStore) Create(ctx context.Context, m *domain.Memory) error {
	var embedding *pgvector.Vector
	if len(m.Embedding) > 0 {
		v := pgvector.NewVector(m.Embedding)
		embedding = &v
	}

	return s.db.QueryRow(ctx,
		fmt.Sprintf(`INSERT INTO %s (tenant_id, content, embedding, metadata, access_count)
		 VALUES ($1, $2, $3, $4, 0)
		 RETURNING id, created_at, updated_at`, s.table),
		m.TenantID, m.Content, embedding, m.Metadata,
	).Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
}

func (s *MemoryStore) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*domain.Memory, error) {
	m := &domain.Memory{}
	err := s.db.QueryRow(ctx,
		fmt.Sprintf(`SELECT id, tenant_id, content, metadata, access_count, last_accessed_at, created_at, updated_at
		 FROM %s WHERE id = $1 AND tenant_id = $2`, s.table),
		id, tenantID,
	).Scan(&m.ID, &m.TenantID, &m.Content, &m.Metadata, &m.AccessCount, &m.LastAccessedAt, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return m, nil
}

// Update rewrites content and metadata; when embedding is non-nil, the vector
// is rewritten in the same statement so content and vector never diverge.
func (s *MemoryStore) Update(ctx context.Context, tenantID, id uuid.UUID, content string, embedding []float32, metadata domain.Metadata) error {
	var tag pgconn.CommandTag
	var err error
	if embedding != nil {
		vec := pgvector.NewVector(embedding)
		tag, err = s.db.Exec(ctx,
			fmt.Sprintf(`UPDATE %s SET content = $1, embedding = $2, metadata = $3, updated_at = NOW()
			 WHERE id = $4 AND tenant_id = $5`, s.table),
			content, vec, metadata, id, tenantID,
		)
	} else {
		tag, err = s.db.Exec(ctx,
			fmt.Sprintf(`UPDATE %s SET content = $1, metadata = $2, updated_at = NOW()
			 WHERE id = $3 AND tenant_id = $4`, s.table),
			content, metadata, id, tenantID,
		)
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE id = $1 AND tenant_id = $2`, s.table),
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

func (s *MemoryStore) SearchByEmbedding(ctx context.Context, tenantID uuid.UUID, embedding []float32, opts domain.SearchOpts) ([]domain.MemoryWithScore, error) {
	if opts.Limit <= 0 {
		opts.Limit = 10
	}

	vec := pgvector.NewVector(embedding)

	conditions := []string{"tenant_id = $1", "embedding IS NOT NULL"}
	args := []any{tenantID, vec}

	// $2 is the query vector; similarity references it in both the
	// projection and the threshold condition.
	if opts.MinScore > 0 {
		conditions = append(conditions, fmt.Sprintf("1 - (embedding <=> $2) >= $%d", len(args)+1))
		args = append(args, opts.MinScore)
	}

	for key, value := range opts.Filters {
		keyParam := len(args) + 1
		valParam := len(args) + 2
		// Equality against scalar paths, containment against list paths.
		conditions = append(conditions, fmt.Sprintf(
			`(metadata ->> $%d::text = $%d OR (jsonb_typeof(metadata -> $%d::text) = 'array' AND metadata -> $%d::text ? $%d))`,
			keyParam, valParam, keyParam, keyParam, valParam,
		))
		args = append(args, key, fmt.Sprintf("%v", value))
	}

	limitParam := len(args) + 1
	args = append(args, opts.Limit)

	query := fmt.Sprintf(
		`SELECT id, tenant_id, content, metadata, access_count, last_accessed_at, created_at, updated_at,
		        1 - (embedding <=> $2) AS score
		 FROM %s
		 WHERE %s
		 ORDER BY score DESC, access_count DESC, last_accessed_at DESC NULLS LAST
		 LIMIT $%d`,
		s.table,
		strings.Join(conditions, " AND "),
		limitParam,
	)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("embedding search query: %w", err)
	}
	defer rows.Close()

	var results []domain.MemoryWithScore
	for rows.Next() {
		var ms domain.MemoryWithScore
		if err := rows.Scan(&ms.ID, &ms.TenantID, &ms.Content, &ms.Metadata, &ms.AccessCount, &ms.LastAccessedAt, &ms.CreatedAt, &ms.UpdatedAt, &ms.Score); err != nil {
			return nil, fmt.Errorf("scan search row: %w", err)
		}
		results = append(results, ms)
	}
	return results, rows.Err()
}

func (s *MemoryStore) SearchByMetadata(ctx context.Context, tenantID uuid.UUID, criteria map[string]any, limit int) ([]domain.Memory, error) {
	if limit <= 0 {
		limit = 100
	}

	conditions := []string{"tenant_id = $1"}
	args := []any{tenantID}

	for key, value := range criteria {
		keyParam := len(args) + 1
		valParam := len(args) + 2
		conditions = append(conditions, fmt.Sprintf("metadata ->> $%d::text = $%d", keyParam, valParam))
		args = append(args, key, fmt.Sprintf("%v", value))
	}

	limitParam := len(args) + 1
	args = append(args, limit)

	query := fmt.Sprintf(
		`SELECT id, tenant_id, content, metadata, access_count, last_accessed_at, created_at, updated_at
		 FROM %s
		 WHERE %s
		 ORDER BY created_at DESC
		 LIMIT $%d`,
		s.table,
		strings.Join(conditions, " AND "),
		limitParam,
	)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("metadata search query: %w", err)
	}
	defer rows.Close()

	var results []domain.Memory
	for rows.Next() {
		var m domain.Memory
		if err := rows.Scan(&m.ID, &m.TenantID, &m.Content, &m.Metadata, &m.AccessCount, &m.LastAccessedAt, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan metadata row: %w", err)
		}
		results = append(results, m)
	}
	return results, rows.Err()
}

func (s *MemoryStore) Stats(ctx context.Context, tenantID uuid.UUID) (*domain.ModuleStats, error) {
	stats := &domain.ModuleStats{}
	err := s.db.QueryRow(ctx,
		fmt.Sprintf(`SELECT COUNT(*), COALESCE(SUM(octet_length(content)), 0), MAX(last_accessed_at), COALESCE(AVG(access_count), 0)
		 FROM %s WHERE tenant_id = $1`, s.table),
		tenantID,
	).Scan(&stats.Total, &stats.TotalBytes, &stats.LastAccess, &stats.AvgAccessCount)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx,
		fmt.Sprintf(`SELECT c, COUNT(*)
		 FROM %s, jsonb_array_elements_text(metadata -> 'categories') AS c
		 WHERE tenant_id = $1
		 GROUP BY c
		 ORDER BY COUNT(*) DESC, c
		 LIMIT 5`, s.table),
		tenantID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats.TopCategories = make(map[string]int)
	for rows.Next() {
		var category string
		var count int
		if err := rows.Scan(&category, &count); err != nil {
			return nil, err
		}
		stats.TopCategories[category] = count
	}
	return stats, rows.Err()
}

func (s *MemoryStore) TouchAccess(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.db.Exec(ctx,
		fmt.Sprintf(`UPDATE %s SET access_count = access_count + 1, last_accessed_at = NOW()
		 WHERE tenant_id = $1 AND id = ANY($2)`, s.table),
		tenantID, ids,
	)
	return err
}

func (s *MemoryStore) ListIDs(ctx context.Context, tenantID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := s.db.Query(ctx,
		fmt.Sprintf(`SELECT id FROM %s WHERE tenant_id = $1`, s.table),
		tenantID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *MemoryStore) DeleteByTenant(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	tag, err := s.db.Exec(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE tenant_id = $1`, s.table),
		tenantID,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
