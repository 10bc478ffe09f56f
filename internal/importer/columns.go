package importer

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// canonicalColumns are the import column labels, in template order.
// "Asset Tag ID" is the only functionally required column.
var canonicalColumns = []string{
	"Asset Tag ID",
	"Name",
	"Description",
	"Brand",
	"Model",
	"Serial Number",
	"Cost",
	"Purchase Date",
	"Warranty Expiry",
	"Notes",
	"Category",
	"Department",
	"Location",
	"Site",
	"Vendor",
	"Status",
}

// columnKeywords catch synonym spellings that do not match a canonical
// label outright ("serial no", "purchased from", ...). Matching is by
// substring over the normalized header.
var columnKeywords = []string{
	"asset tag",
	"asset id",
	"tag id",
	"serial",
	"serial no",
	"brand",
	"make",
	"model",
	"cost",
	"price",
	"purchase price",
	"purchase date",
	"purchased from",
	"warranty",
	"expiry",
	"category",
	"department",
	"location",
	"site",
	"vendor",
	"supplier",
	"status",
	"condition",
	"notes",
	"description",
}

var headerSeparators = regexp.MustCompile(`[_\-\s]+`)

var diacriticStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// normalizeHeader canonicalizes a header name: trim, lowercase, NFD
// decomposition with diacritics stripped, and runs of underscore, hyphen,
// or whitespace collapsed to a single space.
func normalizeHeader(header string) string {
	header = strings.ToLower(strings.TrimSpace(header))
	if stripped, _, err := transform.String(diacriticStripper, header); err == nil {
		header = stripped
	}
	header = headerSeparators.ReplaceAllString(header, " ")
	return strings.TrimSpace(header)
}

var normalizedCanonical = func() map[string]struct{} {
	set := make(map[string]struct{}, len(canonicalColumns))
	for _, label := range canonicalColumns {
		set[normalizeHeader(label)] = struct{}{}
	}
	return set
}()

// ClassifyColumns splits headers into recognized and unmapped sets. The
// split is advisory: unmapped columns are ignored during import, never a
// reason to reject the file.
func ClassifyColumns(headers []string) (mapped, unmapped []string) {
	for _, header := range headers {
		if header == "" {
			continue
		}
		if headerRecognized(header) {
			mapped = append(mapped, header)
		} else {
			unmapped = append(unmapped, header)
		}
	}
	return mapped, unmapped
}

func headerRecognized(header string) bool {
	normalized := normalizeHeader(header)
	if normalized == "" {
		return false
	}
	if _, ok := normalizedCanonical[normalized]; ok {
		return true
	}
	for _, keyword := range columnKeywords {
		if strings.Contains(normalized, keyword) {
			return true
		}
	}
	return false
}

// TemplateColumns returns the canonical import column labels in order.
func TemplateColumns() []string {
	columns := make([]string, len(canonicalColumns))
	copy(columns, canonicalColumns)
	return columns
}
