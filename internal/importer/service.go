package importer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/assetdesk/assetdesk/internal/domain"
	"github.com/assetdesk/assetdesk/internal/repository"
)

// requiredTagMessage is the fixed error attached to rows missing the
// natural key.
const requiredTagMessage = "Asset Tag ID is required"

// RowStatus classifies a parsed row ahead of commit.
type RowStatus string

const (
	RowStatusNew    RowStatus = "new"
	RowStatusUpdate RowStatus = "update"
	RowStatusError  RowStatus = "error"
)

// ValidatedRow is one row of the dry-run report shown before commit.
type ValidatedRow struct {
	RowNum          int               `json:"rowNum"`
	Raw             Row               `json:"-"`
	Values          map[string]string `json:"values"`
	Status          RowStatus         `json:"status"`
	Error           string            `json:"error,omitempty"`
	Warnings        []string          `json:"warnings,omitempty"`
	MappedColumns   []string          `json:"mappedColumns"`
	UnmappedColumns []string          `json:"unmappedColumns"`
}

// ImportError is a row-local failure surfaced in the final result.
type ImportError struct {
	Row   int    `json:"row"`
	Error string `json:"error"`
}

// Options tunes per-run import behavior.
type Options struct {
	// MonthFirst flips the ambiguous-date policy from the day-first
	// default to month-first.
	MonthFirst bool
}

// ProgressFunc observes commit progress after each chunk.
type ProgressFunc func(done, total int)

// CommitRequest describes one confirmed import run.
type CommitRequest struct {
	FileName string
	Rows     []Row
	Options  Options
	Progress ProgressFunc
}

// CommitResult is the outcome of a commit. Partial success is a normal
// outcome: Errors lists every row that did not make it.
type CommitResult struct {
	Success int           `json:"success"`
	Errors  []ImportError `json:"errors"`
}

// Service runs the asset import pipeline: preview (dry run) and commit.
type Service struct {
	assets  repository.AssetRepository
	lookups repository.LookupRepository
	logs    repository.ImportLogRepository

	chunkSize int
	log       *logrus.Entry
}

// Option customizes a Service.
type Option func(*Service)

// WithChunkSize overrides the batch write chunk size.
func WithChunkSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.chunkSize = size
		}
	}
}

// WithLogger attaches a structured logger.
func WithLogger(log *logrus.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log.WithField("component", "importer")
		}
	}
}

// NewService creates an import service.
func NewService(
	assets repository.AssetRepository,
	lookups repository.LookupRepository,
	logs repository.ImportLogRepository,
	opts ...Option,
) *Service {
	service := &Service{
		assets:    assets,
		lookups:   lookups,
		logs:      logs,
		chunkSize: defaultChunkSize,
		log:       logrus.StandardLogger().WithField("component", "importer"),
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

// Preview classifies every row as new, update, or error without touching
// storage. The existing-tag universe is fetched once, not per row.
func (s *Service) Preview(ctx context.Context, rows []Row) ([]ValidatedRow, error) {
	existing, err := s.existingTags(ctx)
	if err != nil {
		return nil, err
	}
	return validateRows(rows, existing), nil
}

// Commit persists validated rows. Row-local failures are collected, never
// raised; the only errors returned are run-level ones (snapshot fetch
// failure, cancellation).
func (s *Service) Commit(ctx context.Context, req CommitRequest) (CommitResult, error) {
	result := CommitResult{Errors: []ImportError{}}
	if len(req.Rows) == 0 {
		return result, nil
	}

	existing, err := s.existingTags(ctx)
	if err != nil {
		return result, err
	}
	validated := validateRows(req.Rows, existing)

	resolver, err := newLookupResolver(ctx, s.lookups, s.log)
	if err != nil {
		return result, err
	}

	inserts, updates, rowErrors := s.buildCandidates(ctx, validated, resolver, req.Options)

	writer := &batchWriter{
		assets:    s.assets,
		log:       s.log,
		chunkSize: s.chunkSize,
		progress:  req.Progress,
	}
	result, err = writer.run(ctx, inserts, updates, rowErrors)

	s.log.WithFields(logrus.Fields{
		"file":    req.FileName,
		"success": result.Success,
		"errors":  len(result.Errors),
	}).Info("import commit finished")

	s.recordErrors(ctx, req.FileName, result.Errors)
	return result, err
}

func (s *Service) existingTags(ctx context.Context) (map[string]struct{}, error) {
	tags, err := s.assets.ListTags(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch existing asset tags: %w", err)
	}
	existing := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		existing[tag] = struct{}{}
	}
	return existing, nil
}

// validateRows produces the dry-run classification. Row numbering starts
// at 2 (row 1 is the header); column classification is computed once from
// the first row's headers and attached to every row.
func validateRows(rows []Row, existing map[string]struct{}) []ValidatedRow {
	if len(rows) == 0 {
		return []ValidatedRow{}
	}

	mapped, unmapped := ClassifyColumns(rows[0].Headers())

	validated := make([]ValidatedRow, 0, len(rows))
	for i, row := range rows {
		vr := ValidatedRow{
			RowNum:          i + 2,
			Raw:             row,
			Values:          rowValues(row),
			MappedColumns:   mapped,
			UnmappedColumns: unmapped,
		}

		tag := assetTag(row)
		switch {
		case tag == "":
			vr.Status = RowStatusError
			vr.Error = requiredTagMessage
		default:
			if _, ok := existing[tag]; ok {
				vr.Status = RowStatusUpdate
			} else {
				vr.Status = RowStatusNew
			}
			if raw := statusText(row); raw != "" {
				if _, known := MapStatus(raw); !known {
					vr.Warnings = append(vr.Warnings,
						fmt.Sprintf("unrecognized status %q will default to %s", raw, domain.StatusAvailable))
				}
			}
		}

		validated = append(validated, vr)
	}
	return validated
}

func rowValues(row Row) map[string]string {
	values := make(map[string]string, len(row.Headers()))
	for _, header := range row.Headers() {
		values[header] = row.Get(header)
	}
	return values
}

// insertItem and updateItem tie a fully-typed candidate back to its
// 1-based source row for error reporting.
type insertItem struct {
	rowNum int
	asset  domain.Asset
}

type updateItem struct {
	rowNum int
	tag    string
	patch  domain.AssetPatch
}

// buildCandidates runs normalizers and lookup resolution for every
// classified row, partitioning the outcome into insert and update batches.
// A row that fails resolution lands in the error list and in neither
// batch; it is never partially written.
func (s *Service) buildCandidates(
	ctx context.Context,
	validated []ValidatedRow,
	resolver *lookupResolver,
	opts Options,
) (inserts []insertItem, updates []updateItem, rowErrors []ImportError) {
	for _, vr := range validated {
		if vr.Status == RowStatusError {
			rowErrors = append(rowErrors, ImportError{Row: vr.RowNum, Error: vr.Error})
			continue
		}

		if vr.Status == RowStatusUpdate {
			patch, err := s.buildPatch(ctx, vr.Raw, resolver, opts)
			if err != nil {
				rowErrors = append(rowErrors, ImportError{Row: vr.RowNum, Error: err.Error()})
				continue
			}
			updates = append(updates, updateItem{rowNum: vr.RowNum, tag: assetTag(vr.Raw), patch: patch})
			continue
		}

		asset, err := s.buildAsset(ctx, vr.Raw, resolver, opts)
		if err != nil {
			rowErrors = append(rowErrors, ImportError{Row: vr.RowNum, Error: err.Error()})
			continue
		}
		inserts = append(inserts, insertItem{rowNum: vr.RowNum, asset: asset})
	}
	return inserts, updates, rowErrors
}

func (s *Service) buildAsset(ctx context.Context, row Row, resolver *lookupResolver, opts Options) (asset domain.Asset, err error) {
	defer recoverRowFailure(&err)

	asset = domain.NewAsset(assetTag(row))

	asset.Name = optionalString(row.Col("name", "asset name"))
	asset.Description = optionalString(row.Col("description"))
	asset.Model = optionalString(row.Col("model", "model number", "model no"))
	asset.SerialNumber = optionalString(row.Col("serial number", "serial", "serial no"))
	asset.Notes = optionalString(row.Col("notes", "comments", "remarks"))
	asset.PurchasePrice = ParseNumeric(row.Col("cost", "purchase price", "price", "value"))
	asset.PurchaseDate = optionalDate(ParseFlexDate(row.Col("purchase date", "date purchased", "purchased"), opts.MonthFirst))
	asset.WarrantyExpiry = optionalDate(ParseFlexDate(row.Col("warranty expiry", "warranty expiration", "warranty end", "warranty"), opts.MonthFirst))

	status, _ := MapStatus(statusText(row))
	asset.Status = status

	asset.MakeID = resolver.Resolve(ctx, domain.LookupMake, row.Col("brand", "make", "manufacturer"))
	asset.CategoryID = resolver.Resolve(ctx, domain.LookupCategory, row.Col("category"))
	asset.DepartmentID = resolver.Resolve(ctx, domain.LookupDepartment, row.Col("department"))
	asset.VendorID = resolver.Resolve(ctx, domain.LookupVendor, row.Col("vendor", "supplier", "purchased from"))
	asset.SiteID = resolver.Resolve(ctx, domain.LookupSite, row.Col("site"))
	asset.LocationID = resolver.ResolveLocation(ctx, row.Col("location"), asset.SiteID)

	return asset, nil
}

func (s *Service) buildPatch(ctx context.Context, row Row, resolver *lookupResolver, opts Options) (patch domain.AssetPatch, err error) {
	defer recoverRowFailure(&err)

	patch.Name = optionalString(row.Col("name", "asset name"))
	patch.Description = optionalString(row.Col("description"))
	patch.Model = optionalString(row.Col("model", "model number", "model no"))
	patch.SerialNumber = optionalString(row.Col("serial number", "serial", "serial no"))
	patch.Notes = optionalString(row.Col("notes", "comments", "remarks"))
	patch.PurchasePrice = ParseNumeric(row.Col("cost", "purchase price", "price", "value"))
	patch.PurchaseDate = optionalDate(ParseFlexDate(row.Col("purchase date", "date purchased", "purchased"), opts.MonthFirst))
	patch.WarrantyExpiry = optionalDate(ParseFlexDate(row.Col("warranty expiry", "warranty expiration", "warranty end", "warranty"), opts.MonthFirst))

	if raw := statusText(row); raw != "" {
		status, _ := MapStatus(raw)
		patch.Status = &status
	}

	patch.MakeID = resolver.Resolve(ctx, domain.LookupMake, row.Col("brand", "make", "manufacturer"))
	patch.CategoryID = resolver.Resolve(ctx, domain.LookupCategory, row.Col("category"))
	patch.DepartmentID = resolver.Resolve(ctx, domain.LookupDepartment, row.Col("department"))
	patch.VendorID = resolver.Resolve(ctx, domain.LookupVendor, row.Col("vendor", "supplier", "purchased from"))
	patch.SiteID = resolver.Resolve(ctx, domain.LookupSite, row.Col("site"))
	patch.LocationID = resolver.ResolveLocation(ctx, row.Col("location"), patch.SiteID)

	return patch, nil
}

// recoverRowFailure converts a panic during row resolution into a
// row-local error so one bad row cannot take down the run.
func recoverRowFailure(err *error) {
	if rec := recover(); rec != nil {
		*err = fmt.Errorf("failed to resolve row: %v", rec)
	}
}

func assetTag(row Row) string {
	return strings.TrimSpace(row.Col("asset tag id", "asset tag", "tag id", "asset id", "tag"))
}

func statusText(row Row) string {
	return row.Col("status", "condition")
}

func optionalString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func optionalDate(iso string) *time.Time {
	if iso == "" {
		return nil
	}
	ts, err := time.Parse(dateLayout, iso)
	if err != nil {
		return nil
	}
	return &ts
}

func (s *Service) recordErrors(ctx context.Context, fileName string, errors []ImportError) {
	if s.logs == nil {
		return
	}
	for _, importErr := range errors {
		rowNumber := importErr.Row
		entry := domain.ImportLogEntry{
			FileName:     fileName,
			RowNumber:    &rowNumber,
			ErrorMessage: importErr.Error,
		}
		if err := s.logs.Record(ctx, entry); err != nil {
			s.log.WithError(err).Warn("failed to record import log entry")
		}
	}
}

// Logs exposes persisted row errors for a file.
func (s *Service) Logs(ctx context.Context, fileName string, limit, offset int) ([]domain.ImportLogEntry, error) {
	if s.logs == nil {
		return []domain.ImportLogEntry{}, nil
	}
	return s.logs.List(ctx, fileName, limit, offset)
}
