package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/assetdesk/assetdesk/internal/domain"
)

// importLogRepository stores row level import errors.
type importLogRepository struct {
	pool *pgxpool.Pool
}

// NewImportLogRepository creates a new import log repository.
func NewImportLogRepository(pool *pgxpool.Pool) ImportLogRepository {
	return &importLogRepository{pool: pool}
}

func (r *importLogRepository) Record(ctx context.Context, entry domain.ImportLogEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO import_logs (id, file_name, row_number, error_message) VALUES ($1, $2, $3, $4)`,
		entry.ID, entry.FileName, entry.RowNumber, entry.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("failed to record import log entry: %w", err)
	}
	return nil
}

func (r *importLogRepository) List(ctx context.Context, fileName string, limit, offset int) ([]domain.ImportLogEntry, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT id, file_name, row_number, error_message, created_at
		FROM import_logs`
	args := []any{}
	if fileName != "" {
		query += ` WHERE file_name = $1`
		args = append(args, fileName)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT %d OFFSET %d`, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list import logs: %w", err)
	}
	defer rows.Close()

	var entries []domain.ImportLogEntry
	for rows.Next() {
		var entry domain.ImportLogEntry
		if err := rows.Scan(&entry.ID, &entry.FileName, &entry.RowNumber, &entry.ErrorMessage, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan import log entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read import logs: %w", err)
	}
	return entries, nil
}
