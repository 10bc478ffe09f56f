package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/assetdesk/assetdesk/internal/domain"
)

// lookupRepository implements LookupRepository over Postgres. All kinds
// share the {id, name} shape; locations additionally carry a site id.
type lookupRepository struct {
	pool *pgxpool.Pool
}

// NewLookupRepository creates a new lookup repository.
func NewLookupRepository(pool *pgxpool.Pool) LookupRepository {
	return &lookupRepository{pool: pool}
}

func (r *lookupRepository) ListAll(ctx context.Context, kind domain.LookupKind) ([]domain.LookupEntity, error) {
	table := kind.TableName()
	if table == "" {
		return nil, fmt.Errorf("unknown lookup kind %q", kind)
	}

	query := fmt.Sprintf(`SELECT id, name, created_at FROM %s ORDER BY name`, table)
	if kind == domain.LookupLocation {
		query = `SELECT id, name, site_id, created_at FROM locations ORDER BY name`
	}

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", table, err)
	}
	defer rows.Close()

	var entities []domain.LookupEntity
	for rows.Next() {
		var entity domain.LookupEntity
		if kind == domain.LookupLocation {
			err = rows.Scan(&entity.ID, &entity.Name, &entity.SiteID, &entity.CreatedAt)
		} else {
			err = rows.Scan(&entity.ID, &entity.Name, &entity.CreatedAt)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", table, err)
		}
		entities = append(entities, entity)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s rows: %w", table, err)
	}
	return entities, nil
}

func (r *lookupRepository) Insert(ctx context.Context, kind domain.LookupKind, entity domain.LookupEntity) (domain.LookupEntity, error) {
	table := kind.TableName()
	if table == "" {
		return domain.LookupEntity{}, fmt.Errorf("unknown lookup kind %q", kind)
	}

	if kind == domain.LookupLocation {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO locations (id, name, site_id, created_at) VALUES ($1, $2, $3, $4)`,
			entity.ID, entity.Name, entity.SiteID, entity.CreatedAt,
		)
		if err != nil {
			return domain.LookupEntity{}, fmt.Errorf("failed to insert location %q: %w", entity.Name, err)
		}
		return entity, nil
	}

	query := fmt.Sprintf(`INSERT INTO %s (id, name, created_at) VALUES ($1, $2, $3)`, table)
	if _, err := r.pool.Exec(ctx, query, entity.ID, entity.Name, entity.CreatedAt); err != nil {
		return domain.LookupEntity{}, fmt.Errorf("failed to insert %s %q: %w", kind, entity.Name, err)
	}
	return entity, nil
}
