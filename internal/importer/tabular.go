package importer

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

var (
	// ErrUnsupportedFormat is returned when an uploaded file is not supported.
	ErrUnsupportedFormat = errors.New("unsupported file format")

	// ErrEmptyFile is returned when the upload carries no bytes.
	ErrEmptyFile = errors.New("file is empty")

	byteOrderMark = []byte{0xEF, 0xBB, 0xBF}
)

// Row is one data line of an uploaded file: an order-preserving mapping
// from trimmed header name to trimmed raw cell value. Values stay strings
// until the normalization boundary.
type Row struct {
	headers []string
	values  map[string]string
	byNorm  map[string]string
}

// NewRow builds a row from parallel header and value slices. Missing cells
// become empty strings; extra cells are dropped.
func NewRow(headers, cells []string) Row {
	values := make(map[string]string, len(headers))
	byNorm := make(map[string]string, len(headers))
	for i, header := range headers {
		value := ""
		if i < len(cells) {
			value = strings.TrimSpace(cells[i])
		}
		values[header] = value
		norm := normalizeHeader(header)
		if _, taken := byNorm[norm]; !taken {
			byNorm[norm] = value
		}
	}
	return Row{headers: headers, values: values, byNorm: byNorm}
}

// Headers returns the header names in source order.
func (r Row) Headers() []string {
	return r.headers
}

// Get returns the raw value under an exact header name.
func (r Row) Get(header string) string {
	return r.values[header]
}

// Col tries each candidate header name against the normalized header set
// and returns the first non-empty match. This lets several synonym
// spellings resolve to one canonical field without a fixed schema mapping.
func (r Row) Col(candidates ...string) string {
	for _, candidate := range candidates {
		if value := r.byNorm[normalizeHeader(candidate)]; value != "" {
			return value
		}
	}
	return ""
}

// ParseFile decodes an uploaded spreadsheet-like file into header-keyed
// rows. The extension allow-list is checked before any parsing happens.
func ParseFile(fileName string, payload []byte) ([]Row, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	switch ext {
	case ".csv":
		// allowed
	case ".xls", ".xlsx":
		// allowed
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}

	if len(payload) == 0 {
		return nil, ErrEmptyFile
	}

	switch ext {
	case ".csv":
		return parseCSV(payload)
	default:
		return parseExcel(payload)
	}
}

func parseCSV(payload []byte) ([]Row, error) {
	payload = bytes.TrimPrefix(payload, byteOrderMark)

	delimiter := detectDelimiter(payload)

	reader := csv.NewReader(bufio.NewReader(bytes.NewReader(payload)))
	reader.Comma = delimiter
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var records [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv: %w", err)
		}
		records = append(records, record)
	}

	return buildRows(records), nil
}

func parseExcel(payload []byte) ([]Row, error) {
	f, err := excelize.OpenReader(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to open spreadsheet: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("spreadsheet has no sheets")
	}

	// First sheet only; raw cell text so downstream normalizers keep full
	// control over numbers and dates.
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read rows from spreadsheet: %w", err)
	}

	return buildRows(rows), nil
}

// buildRows drops whitespace-only lines, takes the first remaining line as
// the header, and maps every later line onto it. Fewer than two non-blank
// lines yields an empty row set.
func buildRows(records [][]string) []Row {
	var headers []string
	var rows []Row

	for _, record := range records {
		if isBlankRow(record) {
			continue
		}
		if headers == nil {
			headers = make([]string, len(record))
			for i, cell := range record {
				headers[i] = strings.TrimSpace(cell)
			}
			continue
		}
		rows = append(rows, NewRow(headers, record))
	}

	return rows
}

func isBlankRow(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// detectDelimiter samples the first 5 non-blank lines and counts comma,
// semicolon, and tab occurrences. A delimiter wins when its count is
// identical across every sampled line and greater than zero; comma is the
// fallback when nothing is consistent.
func detectDelimiter(payload []byte) rune {
	var samples []string
	scanner := bufio.NewScanner(bytes.NewReader(payload))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() && len(samples) < 5 {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		samples = append(samples, line)
	}
	if len(samples) == 0 {
		return ','
	}

	for _, candidate := range []rune{',', ';', '\t'} {
		first := strings.Count(samples[0], string(candidate))
		if first == 0 {
			continue
		}
		consistent := true
		for _, line := range samples[1:] {
			if strings.Count(line, string(candidate)) != first {
				consistent = false
				break
			}
		}
		if consistent {
			return candidate
		}
	}
	return ','
}
