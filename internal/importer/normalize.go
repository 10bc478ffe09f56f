package importer

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/assetdesk/assetdesk/internal/domain"
)

// dateLayout is the canonical wire format every date path normalizes to.
const dateLayout = "2006-01-02"

var (
	// serialEpoch anchors Excel/Lotus serial dates (day 1 = 1899-12-31,
	// with the historical leap-year bug folded in by using Dec 30).
	serialEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

	numericJunk    = regexp.MustCompile(`[^0-9,.\-]`)
	isoDatePattern = regexp.MustCompile(`^(\d{4})[-/](\d{1,2})[-/](\d{1,2})$`)
	dmyDatePattern = regexp.MustCompile(`^(\d{1,2})[-/.](\d{1,2})[-/.](\d{2,4})$`)

	fallbackDateLayouts = []string{
		time.RFC3339,
		"2006-01-02 15:04:05",
		"Jan 2, 2006",
		"2 Jan 2006",
		"January 2, 2006",
		"02-Jan-2006",
	}

	titleCaser = cases.Title(language.English)
)

// ParseNumeric coerces a raw cell into a decimal, resolving the European
// versus US separator ambiguity by position: whichever of comma or dot
// appears last is the decimal separator. With commas only, a trailing
// two-digit group reads as decimals, anything else as thousands grouping.
// Returns nil on empty or unparsable input; never fails.
func ParseNumeric(raw string) *decimal.Decimal {
	cleaned := numericJunk.ReplaceAllString(raw, "")
	if cleaned == "" || cleaned == "-" {
		return nil
	}

	lastComma := strings.LastIndex(cleaned, ",")
	lastDot := strings.LastIndex(cleaned, ".")

	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			cleaned = strings.ReplaceAll(cleaned, ".", "")
			cleaned = commaToDecimalPoint(cleaned)
		} else {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		}
	case lastComma >= 0:
		if len(cleaned)-lastComma-1 == 2 {
			cleaned = commaToDecimalPoint(cleaned)
		} else {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		}
	}

	value, err := decimal.NewFromString(cleaned)
	if err != nil {
		return nil
	}
	return &value
}

// commaToDecimalPoint keeps the last comma as the decimal point and strips
// any earlier ones as thousands separators.
func commaToDecimalPoint(s string) string {
	last := strings.LastIndex(s, ",")
	head := strings.ReplaceAll(s[:last], ",", "")
	return head + "." + s[last+1:]
}

// ParseFlexDate normalizes loosely formatted dates to yyyy-MM-dd. It
// accepts spreadsheet serial dates, ISO dates, and ambiguous D/M/Y forms;
// when both numeric fields could be the day, monthFirst decides. Two-digit
// years below 50 land in the 2000s. Returns "" when nothing matches.
func ParseFlexDate(raw string, monthFirst bool) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	if serial, err := strconv.Atoi(raw); err == nil && serial >= 1 && serial <= 60000 {
		return serialEpoch.AddDate(0, 0, serial).Format(dateLayout)
	}

	if m := isoDatePattern.FindStringSubmatch(raw); m != nil {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		day, _ := strconv.Atoi(m[3])
		return formatValidDate(year, month, day)
	}

	if m := dmyDatePattern.FindStringSubmatch(raw); m != nil {
		first, _ := strconv.Atoi(m[1])
		second, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		if year < 100 {
			if year < 50 {
				year += 2000
			} else {
				year += 1900
			}
		}

		day, month := first, second
		switch {
		case first > 12:
			day, month = first, second
		case second > 12:
			day, month = second, first
		case monthFirst:
			day, month = second, first
		}
		return formatValidDate(year, month, day)
	}

	for _, layout := range fallbackDateLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts.Format(dateLayout)
		}
	}
	return ""
}

func formatValidDate(year, month, day int) string {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return ""
	}
	ts := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if ts.Day() != day || ts.Month() != time.Month(month) || ts.Year() != year {
		return ""
	}
	return ts.Format(dateLayout)
}

// statusSynonyms collapses free-text status words onto the closed
// vocabulary. Keys are pre-normalized (lowercase, single spaces).
var statusSynonyms = map[string]domain.AssetStatus{
	"available":       domain.StatusAvailable,
	"in stock":        domain.StatusAvailable,
	"instock":         domain.StatusAvailable,
	"ready":           domain.StatusAvailable,
	"ready to deploy": domain.StatusAvailable,
	"spare":           domain.StatusAvailable,

	"in use":      domain.StatusInUse,
	"inuse":       domain.StatusInUse,
	"checked out": domain.StatusInUse,
	"checkedout":  domain.StatusInUse,
	"deployed":    domain.StatusInUse,
	"assigned":    domain.StatusInUse,
	"active":      domain.StatusInUse,
	"reserved":    domain.StatusInUse,

	"maintenance":  domain.StatusMaintenance,
	"under repair": domain.StatusMaintenance,
	"in repair":    domain.StatusMaintenance,
	"repair":       domain.StatusMaintenance,
	"broken":       domain.StatusMaintenance,
	"faulty":       domain.StatusMaintenance,
	"servicing":    domain.StatusMaintenance,

	"disposed": domain.StatusDisposed,
	"recycled": domain.StatusDisposed,
	"scrapped": domain.StatusDisposed,
	"sold":     domain.StatusDisposed,
	"donated":  domain.StatusDisposed,

	"retired":        domain.StatusRetired,
	"decommissioned": domain.StatusRetired,
	"end of life":    domain.StatusRetired,
	"eol":            domain.StatusRetired,
	"archived":       domain.StatusRetired,

	"lost":    domain.StatusLost,
	"stolen":  domain.StatusLost,
	"missing": domain.StatusLost,
}

// MapStatus collapses free-text status onto the closed vocabulary. The
// mapping is total: unrecognized text falls back to available, with ok set
// false so callers can surface the unrecognized value as a warning.
func MapStatus(raw string) (status domain.AssetStatus, ok bool) {
	normalized := normalizeHeader(raw)
	if normalized == "" {
		return domain.StatusAvailable, false
	}
	if mapped, found := statusSynonyms[normalized]; found {
		return mapped, true
	}
	return domain.StatusAvailable, false
}

// FormatCurrency renders a decimal with two decimal places and thousands
// grouping. Output round-trips through ParseNumeric.
func FormatCurrency(value decimal.Decimal) string {
	fixed := value.StringFixed(2)

	sign := ""
	if strings.HasPrefix(fixed, "-") {
		sign = "-"
		fixed = fixed[1:]
	}

	intPart, fracPart, _ := strings.Cut(fixed, ".")
	var groups []string
	for len(intPart) > 3 {
		groups = append([]string{intPart[len(intPart)-3:]}, groups...)
		intPart = intPart[:len(intPart)-3]
	}
	groups = append([]string{intPart}, groups...)

	return sign + strings.Join(groups, ",") + "." + fracPart
}

// FormatLabel turns a snake_case value into a display label:
// "under_review" becomes "Under Review".
func FormatLabel(value string) string {
	value = strings.ReplaceAll(value, "_", " ")
	return titleCaser.String(strings.TrimSpace(value))
}

// FormatDate renders a yyyy-MM-dd value for display. Output round-trips
// through ParseFlexDate; anything unparsable passes through unchanged.
func FormatDate(iso string) string {
	if iso == "" {
		return ""
	}
	ts, err := time.Parse(dateLayout, iso)
	if err != nil {
		return iso
	}
	return ts.Format("Jan 2, 2006")
}
