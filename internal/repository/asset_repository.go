package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/assetdesk/assetdesk/internal/domain"
)

// assetRepository implements AssetRepository over Postgres.
type assetRepository struct {
	pool *pgxpool.Pool
}

// NewAssetRepository creates a new asset repository.
func NewAssetRepository(pool *pgxpool.Pool) AssetRepository {
	return &assetRepository{pool: pool}
}

const insertAssetSQL = `
	INSERT INTO assets (
		id, asset_tag, name, description, model, serial_number, notes,
		purchase_price, purchase_date, warranty_expiry, status,
		make_id, category_id, site_id, location_id, department_id, vendor_id,
		assigned_to, checkout_date, created_at, updated_at
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11,
		$12, $13, $14, $15, $16, $17, $18, $19, $20, $21
	)`

func insertAssetArgs(asset domain.Asset) []any {
	return []any{
		asset.ID,
		asset.AssetTag,
		asset.Name,
		asset.Description,
		asset.Model,
		asset.SerialNumber,
		asset.Notes,
		priceArg(asset.PurchasePrice),
		asset.PurchaseDate,
		asset.WarrantyExpiry,
		string(asset.Status),
		asset.MakeID,
		asset.CategoryID,
		asset.SiteID,
		asset.LocationID,
		asset.DepartmentID,
		asset.VendorID,
		asset.AssignedTo,
		asset.CheckoutDate,
		asset.CreatedAt,
		asset.UpdatedAt,
	}
}

// priceArg passes the price as text so Postgres NUMERIC keeps exact
// decimal semantics.
func priceArg(price *decimal.Decimal) any {
	if price == nil {
		return nil
	}
	return price.String()
}

func (r *assetRepository) ListTags(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT asset_tag FROM assets`)
	if err != nil {
		return nil, fmt.Errorf("failed to list asset tags: %w", err)
	}
	defer rows.Close()

	var tags []string
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, fmt.Errorf("failed to scan asset tag: %w", err)
		}
		tags = append(tags, tag)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read asset tags: %w", err)
	}
	return tags, nil
}

const assetColumns = `
	id, asset_tag, name, description, model, serial_number, notes,
	purchase_price::text, purchase_date, warranty_expiry, status,
	make_id, category_id, site_id, location_id, department_id, vendor_id,
	assigned_to, checkout_date, created_at, updated_at`

func scanAsset(row pgx.Row) (domain.Asset, error) {
	var asset domain.Asset
	var price *string
	var status string
	if err := row.Scan(
		&asset.ID,
		&asset.AssetTag,
		&asset.Name,
		&asset.Description,
		&asset.Model,
		&asset.SerialNumber,
		&asset.Notes,
		&price,
		&asset.PurchaseDate,
		&asset.WarrantyExpiry,
		&status,
		&asset.MakeID,
		&asset.CategoryID,
		&asset.SiteID,
		&asset.LocationID,
		&asset.DepartmentID,
		&asset.VendorID,
		&asset.AssignedTo,
		&asset.CheckoutDate,
		&asset.CreatedAt,
		&asset.UpdatedAt,
	); err != nil {
		return domain.Asset{}, err
	}
	asset.Status = domain.AssetStatus(status)
	if price != nil {
		parsed, err := decimal.NewFromString(*price)
		if err != nil {
			return domain.Asset{}, fmt.Errorf("failed to parse stored price: %w", err)
		}
		asset.PurchasePrice = &parsed
	}
	return asset, nil
}

func (r *assetRepository) GetByTag(ctx context.Context, tag string) (domain.Asset, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+assetColumns+` FROM assets WHERE asset_tag = $1`, tag)
	asset, err := scanAsset(row)
	if err != nil {
		return domain.Asset{}, fmt.Errorf("failed to get asset %s: %w", tag, err)
	}
	return asset, nil
}

// InsertMany inserts the batch inside one transaction: all rows land or
// none do, which lets callers retry per row to isolate failures.
func (r *assetRepository) InsertMany(ctx context.Context, assets []domain.Asset) error {
	if len(assets) == 0 {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin batch insert: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	batch := &pgx.Batch{}
	for _, asset := range assets {
		batch.Queue(insertAssetSQL, insertAssetArgs(asset)...)
	}

	results := tx.SendBatch(ctx, batch)
	for range assets {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return fmt.Errorf("batch insert failed: %w", err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("batch insert failed: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit batch insert: %w", err)
	}
	return nil
}

func (r *assetRepository) InsertOne(ctx context.Context, asset domain.Asset) (domain.Asset, error) {
	if _, err := r.pool.Exec(ctx, insertAssetSQL, insertAssetArgs(asset)...); err != nil {
		return domain.Asset{}, fmt.Errorf("failed to insert asset %s: %w", asset.AssetTag, err)
	}
	return asset, nil
}

// UpdateByTag applies only the fields the patch carries.
func (r *assetRepository) UpdateByTag(ctx context.Context, tag string, patch domain.AssetPatch) error {
	sets := []string{"updated_at = now()"}
	args := []any{tag}

	addSet := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.Name != nil {
		addSet("name", *patch.Name)
	}
	if patch.Description != nil {
		addSet("description", *patch.Description)
	}
	if patch.Model != nil {
		addSet("model", *patch.Model)
	}
	if patch.SerialNumber != nil {
		addSet("serial_number", *patch.SerialNumber)
	}
	if patch.Notes != nil {
		addSet("notes", *patch.Notes)
	}
	if patch.PurchasePrice != nil {
		addSet("purchase_price", patch.PurchasePrice.String())
	}
	if patch.PurchaseDate != nil {
		addSet("purchase_date", *patch.PurchaseDate)
	}
	if patch.WarrantyExpiry != nil {
		addSet("warranty_expiry", *patch.WarrantyExpiry)
	}
	if patch.Status != nil {
		addSet("status", string(*patch.Status))
	}
	if patch.MakeID != nil {
		addSet("make_id", *patch.MakeID)
	}
	if patch.CategoryID != nil {
		addSet("category_id", *patch.CategoryID)
	}
	if patch.SiteID != nil {
		addSet("site_id", *patch.SiteID)
	}
	if patch.LocationID != nil {
		addSet("location_id", *patch.LocationID)
	}
	if patch.DepartmentID != nil {
		addSet("department_id", *patch.DepartmentID)
	}
	if patch.VendorID != nil {
		addSet("vendor_id", *patch.VendorID)
	}

	query := fmt.Sprintf("UPDATE assets SET %s WHERE asset_tag = $1", strings.Join(sets, ", "))
	result, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update asset %s: %w", tag, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("asset %s not found", tag)
	}
	return nil
}

const exportJoins = `
	LEFT JOIN makes mk ON mk.id = a.make_id
	LEFT JOIN categories c ON c.id = a.category_id
	LEFT JOIN sites st ON st.id = a.site_id
	LEFT JOIN locations l ON l.id = a.location_id
	LEFT JOIN departments d ON d.id = a.department_id
	LEFT JOIN vendors v ON v.id = a.vendor_id`

func (r *assetRepository) ListForExport(ctx context.Context, limit int) ([]domain.AssetExportRecord, int, error) {
	total, err := r.Count(ctx)
	if err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + qualifyAssetColumns() + `,
		mk.name, c.name, st.name, l.name, d.name, v.name
		FROM assets a` + exportJoins + `
		ORDER BY a.updated_at DESC
		LIMIT $1`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list assets for export: %w", err)
	}
	defer rows.Close()

	var records []domain.AssetExportRecord
	for rows.Next() {
		var record domain.AssetExportRecord
		var price *string
		var status string
		if err := rows.Scan(
			&record.ID,
			&record.AssetTag,
			&record.Name,
			&record.Description,
			&record.Model,
			&record.SerialNumber,
			&record.Notes,
			&price,
			&record.PurchaseDate,
			&record.WarrantyExpiry,
			&status,
			&record.MakeID,
			&record.CategoryID,
			&record.SiteID,
			&record.LocationID,
			&record.DepartmentID,
			&record.VendorID,
			&record.AssignedTo,
			&record.CheckoutDate,
			&record.CreatedAt,
			&record.UpdatedAt,
			&record.MakeName,
			&record.CategoryName,
			&record.SiteName,
			&record.LocationName,
			&record.DepartmentName,
			&record.VendorName,
		); err != nil {
			return nil, 0, fmt.Errorf("failed to scan export record: %w", err)
		}
		record.Status = domain.AssetStatus(status)
		if price != nil {
			parsed, err := decimal.NewFromString(*price)
			if err != nil {
				return nil, 0, fmt.Errorf("failed to parse stored price: %w", err)
			}
			record.PurchasePrice = &parsed
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to read export records: %w", err)
	}

	return records, int(total), nil
}

// qualifyAssetColumns prefixes the shared column list with the assets
// alias used by the export join.
func qualifyAssetColumns() string {
	columns := strings.Split(assetColumns, ",")
	for i, column := range columns {
		columns[i] = "a." + strings.TrimSpace(column)
	}
	return strings.Join(columns, ", ")
}

func (r *assetRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM assets`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count assets: %w", err)
	}
	return count, nil
}
