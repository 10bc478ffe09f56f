package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"

	"github.com/assetdesk/assetdesk/internal/domain"
	"github.com/assetdesk/assetdesk/internal/importer"
	"github.com/assetdesk/assetdesk/internal/repository"
)

// defaultRowLimit caps export size. Exceeding it is not an error: the
// export truncates to the most recent rows and flags it in the result.
const defaultRowLimit = 10000

var (
	// ErrEmptySelection is returned when no fields are selected.
	ErrEmptySelection = errors.New("no export fields selected")

	// ErrUnknownField is returned when the selection names a field
	// outside the catalog.
	ErrUnknownField = errors.New("unknown export field")

	byteOrderMark = []byte{0xEF, 0xBB, 0xBF}
)

// Format selects the serialization target.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat validates a format string, defaulting to CSV when empty.
func ParseFormat(raw string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "csv":
		return FormatCSV, nil
	case "xlsx":
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", raw)
	}
}

// Field is one entry of the export catalog.
type Field struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Group string `json:"group"`
}

// Catalog groups.
const (
	GroupAsset     = "asset"
	GroupLinking   = "linking"
	GroupStatus    = "status"
	GroupEvents    = "events"
	GroupFinancial = "financial"
)

// catalog is the fixed, ordered export field catalog. Selections are
// subsets of it; output columns always follow this order.
var catalog = []Field{
	{Key: "asset_tag", Label: "Asset Tag ID", Group: GroupAsset},
	{Key: "name", Label: "Name", Group: GroupAsset},
	{Key: "description", Label: "Description", Group: GroupAsset},
	{Key: "make", Label: "Brand", Group: GroupAsset},
	{Key: "model", Label: "Model", Group: GroupAsset},
	{Key: "serial_number", Label: "Serial Number", Group: GroupAsset},
	{Key: "notes", Label: "Notes", Group: GroupAsset},
	{Key: "category", Label: "Category", Group: GroupLinking},
	{Key: "department", Label: "Department", Group: GroupLinking},
	{Key: "location", Label: "Location", Group: GroupLinking},
	{Key: "site", Label: "Site", Group: GroupLinking},
	{Key: "vendor", Label: "Vendor", Group: GroupLinking},
	{Key: "status", Label: "Status", Group: GroupStatus},
	{Key: "assigned_to", Label: "Assigned To", Group: GroupStatus},
	{Key: "checkout_date", Label: "Checkout Date", Group: GroupEvents},
	{Key: "created_at", Label: "Created At", Group: GroupEvents},
	{Key: "updated_at", Label: "Updated At", Group: GroupEvents},
	{Key: "purchase_price", Label: "Cost", Group: GroupFinancial},
	{Key: "purchase_date", Label: "Purchase Date", Group: GroupFinancial},
	{Key: "warranty_expiry", Label: "Warranty Expiry", Group: GroupFinancial},
}

// Catalog returns the export field catalog in declared order.
func Catalog() []Field {
	fields := make([]Field, len(catalog))
	copy(fields, catalog)
	return fields
}

// Request selects fields and a format for an asset export.
type Request struct {
	Fields []string
	Format Format
}

// Result carries a serialized export ready for download.
type Result struct {
	FileName       string `json:"fileName"`
	ContentType    string `json:"contentType"`
	Data           []byte `json:"-"`
	Rows           int    `json:"rows"`
	Truncated      bool   `json:"truncated"`
	TotalAvailable int    `json:"totalAvailable"`
}

// Service projects stored asset records into flat rows and serializes
// them for download.
type Service struct {
	assets   repository.AssetRepository
	rowLimit int
	now      func() time.Time
	log      *logrus.Entry
}

// Option customizes a Service.
type Option func(*Service)

// WithRowLimit overrides the export row ceiling.
func WithRowLimit(limit int) Option {
	return func(s *Service) {
		if limit > 0 {
			s.rowLimit = limit
		}
	}
}

// WithClock fixes the timestamp source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger attaches a structured logger.
func WithLogger(log *logrus.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log.WithField("component", "export")
		}
	}
}

// NewService creates an export service.
func NewService(assets repository.AssetRepository, opts ...Option) *Service {
	service := &Service{
		assets:   assets,
		rowLimit: defaultRowLimit,
		now:      time.Now,
		log:      logrus.StandardLogger().WithField("component", "export"),
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

// ExportAssets projects stored assets through the field selection and
// serializes the result. Joined reference fields come out as display
// names; internal ids never leak.
func (s *Service) ExportAssets(ctx context.Context, req Request) (Result, error) {
	fields, err := resolveSelection(req.Fields)
	if err != nil {
		return Result{}, err
	}

	records, total, err := s.assets.ListForExport(ctx, s.rowLimit)
	if err != nil {
		return Result{}, fmt.Errorf("failed to load assets for export: %w", err)
	}

	rows := make([][]string, 0, len(records)+1)
	rows = append(rows, headerRow(fields))
	for _, record := range records {
		rows = append(rows, projectRecord(record, fields))
	}

	data, contentType, err := serialize(rows, req.Format)
	if err != nil {
		return Result{}, err
	}

	result := Result{
		FileName:       s.exportFileName(req.Format),
		ContentType:    contentType,
		Data:           data,
		Rows:           len(records),
		Truncated:      total > len(records),
		TotalAvailable: total,
	}

	s.log.WithFields(logrus.Fields{
		"rows":      result.Rows,
		"truncated": result.Truncated,
		"format":    req.Format,
	}).Info("asset export produced")

	return result, nil
}

// Template produces a headers-plus-example import template in the
// requested format.
func (s *Service) Template(format Format) (Result, error) {
	rows := [][]string{
		importer.TemplateColumns(),
		{
			"AST-001", "MacBook Pro 14", "Developer laptop", "Apple", "A2779",
			"C02XL0AAJGH5", "1,999.00", "2024-02-01", "2027-02-01",
			"Shipped with charger", "Laptops", "Engineering", "Floor 2",
			"Lisbon HQ", "TechSupply Ltd", "available",
		},
	}

	data, contentType, err := serialize(rows, format)
	if err != nil {
		return Result{}, err
	}

	return Result{
		FileName:    fmt.Sprintf("assets-import-template.%s", format),
		ContentType: contentType,
		Data:        data,
		Rows:        1,
	}, nil
}

func (s *Service) exportFileName(format Format) string {
	return fmt.Sprintf("assets-export-%s.%s", s.now().Format("2006-01-02-1504"), format)
}

// resolveSelection validates the requested keys and returns the matching
// catalog fields in catalog order, regardless of selection order.
func resolveSelection(keys []string) ([]Field, error) {
	if len(keys) == 0 {
		return nil, ErrEmptySelection
	}

	selected := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		known := false
		for _, field := range catalog {
			if field.Key == key {
				known = true
				break
			}
		}
		if !known {
			return nil, fmt.Errorf("%w: %s", ErrUnknownField, key)
		}
		selected[key] = struct{}{}
	}
	if len(selected) == 0 {
		return nil, ErrEmptySelection
	}

	var fields []Field
	for _, field := range catalog {
		if _, ok := selected[field.Key]; ok {
			fields = append(fields, field)
		}
	}
	return fields, nil
}

func headerRow(fields []Field) []string {
	headers := make([]string, len(fields))
	for i, field := range fields {
		headers[i] = field.Label
	}
	return headers
}

func projectRecord(record domain.AssetExportRecord, fields []Field) []string {
	row := make([]string, len(fields))
	for i, field := range fields {
		row[i] = fieldValue(record, field.Key)
	}
	return row
}

func fieldValue(record domain.AssetExportRecord, key string) string {
	switch key {
	case "asset_tag":
		return record.AssetTag
	case "name":
		return stringOrEmpty(record.Name)
	case "description":
		return stringOrEmpty(record.Description)
	case "make":
		return stringOrEmpty(record.MakeName)
	case "model":
		return stringOrEmpty(record.Model)
	case "serial_number":
		return stringOrEmpty(record.SerialNumber)
	case "notes":
		return stringOrEmpty(record.Notes)
	case "category":
		return stringOrEmpty(record.CategoryName)
	case "department":
		return stringOrEmpty(record.DepartmentName)
	case "location":
		return stringOrEmpty(record.LocationName)
	case "site":
		return stringOrEmpty(record.SiteName)
	case "vendor":
		return stringOrEmpty(record.VendorName)
	case "status":
		return string(record.Status)
	case "assigned_to":
		return stringOrEmpty(record.AssignedTo)
	case "checkout_date":
		return dateOrEmpty(record.CheckoutDate)
	case "created_at":
		return record.CreatedAt.Format("2006-01-02")
	case "updated_at":
		return record.UpdatedAt.Format("2006-01-02")
	case "purchase_price":
		if record.PurchasePrice == nil {
			return ""
		}
		return importer.FormatCurrency(*record.PurchasePrice)
	case "purchase_date":
		return dateOrEmpty(record.PurchaseDate)
	case "warranty_expiry":
		return dateOrEmpty(record.WarrantyExpiry)
	}
	return ""
}

func stringOrEmpty(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func dateOrEmpty(value *time.Time) string {
	if value == nil {
		return ""
	}
	return value.Format("2006-01-02")
}

func serialize(rows [][]string, format Format) (data []byte, contentType string, err error) {
	switch format {
	case FormatXLSX:
		data, err = serializeXLSX(rows)
		return data, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", err
	case FormatCSV, "":
		data, err = serializeCSV(rows)
		return data, "text/csv; charset=utf-8", err
	default:
		return nil, "", fmt.Errorf("unsupported export format %q", format)
	}
}

// serializeCSV writes BOM-prefixed, comma-delimited output. csv.Writer
// quotes fields containing the delimiter, quotes, or newlines and doubles
// embedded quotes.
func serializeCSV(rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(byteOrderMark)

	writer := csv.NewWriter(&buf)
	for _, row := range rows {
		if err := writer.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

func serializeXLSX(rows [][]string) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cells := make([]interface{}, len(row))
		for j, value := range row {
			cells[j] = value
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return nil, fmt.Errorf("failed to address row %d: %w", i+1, err)
		}
		if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
			return nil, fmt.Errorf("failed to write sheet row %d: %w", i+1, err)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to serialize workbook: %w", err)
	}
	return buf.Bytes(), nil
}
