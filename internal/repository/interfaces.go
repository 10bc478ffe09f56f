package repository

import (
	"context"

	"github.com/assetdesk/assetdesk/internal/domain"
)

// AssetRepository defines the record-store operations the import/export
// pipeline needs for assets.
type AssetRepository interface {
	// ListTags returns every existing asset tag, for the one-shot
	// existence pre-fetch that classifies rows as new or update.
	ListTags(ctx context.Context) ([]string, error)
	GetByTag(ctx context.Context, tag string) (domain.Asset, error)
	// InsertMany inserts a batch atomically; on failure callers degrade
	// to InsertOne per row to isolate the offending rows.
	InsertMany(ctx context.Context, assets []domain.Asset) error
	InsertOne(ctx context.Context, asset domain.Asset) (domain.Asset, error)
	UpdateByTag(ctx context.Context, tag string, patch domain.AssetPatch) error
	// ListForExport returns assets with reference names joined in,
	// most-recent-first, capped at limit. The second return value is the
	// total number of stored assets so callers can detect truncation.
	ListForExport(ctx context.Context, limit int) ([]domain.AssetExportRecord, int, error)
	Count(ctx context.Context) (int64, error)
}

// LookupRepository manages the reference tables import rows point at by
// name (category, make, site, location, department, vendor).
type LookupRepository interface {
	ListAll(ctx context.Context, kind domain.LookupKind) ([]domain.LookupEntity, error)
	Insert(ctx context.Context, kind domain.LookupKind, entity domain.LookupEntity) (domain.LookupEntity, error)
}

// ImportLogRepository stores row level import errors for observability.
type ImportLogRepository interface {
	Record(ctx context.Context, entry domain.ImportLogEntry) error
	List(ctx context.Context, fileName string, limit, offset int) ([]domain.ImportLogEntry, error)
}
