package validation

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/luigidoria/Generative-AI-Data-Refiner/internal/schema"
	"github.com/luigidoria/Generative-AI-Data-Refiner/internal/table"
)

// ISODate is the only date format accepted for storage.
const ISODate = "YYYY-MM-DD"

// Value formats reported by ValidateValueFormat.
const (
	FormatDecimal       = "decimal"
	FormatBRLCurrency   = "brasileiro (R$)"
	FormatBRLDecimalSep = "brasileiro (virgula)"
)

// dateFormats are tried in order. DD/MM/YYYY and MM/DD/YYYY share a pattern,
// so a slash-separated column is always reported as day-first.
var dateFormats = []struct {
	label   string
	pattern *regexp.Regexp
}{
	{ISODate, regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)},
	{"DD/MM/YYYY", regexp.MustCompile(`^\d{2}/\d{2}/\d{4}$`)},
	{"DD-MM-YYYY", regexp.MustCompile(`^\d{2}-\d{2}-\d{4}$`)},
	{"MM/DD/YYYY", regexp.MustCompile(`^\d{2}/\d{2}/\d{4}$`)},
}

var (
	currencyPattern     = regexp.MustCompile(`R\$`)
	commaDecimalPattern = regexp.MustCompile(`\d,\d`)
)

// DateCheck is the result of ValidateDateFormat. InvalidRows are row
// indexes that do not match the detected format.
type DateCheck struct {
	OK             bool
	DetectedFormat string
	InvalidRows    []int
}

// ValidateDateFormat detects the date format of a column: the first format
// matching more than half of the non-null values. Only ISO dates pass. A
// column with no values fails with no detected format.
func ValidateDateFormat(values []string) DateCheck {
	idx, vals := nonNullIndexed(values)
	if len(vals) == 0 {
		return DateCheck{}
	}

	for _, f := range dateFormats {
		var invalid []int
		for i, v := range vals {
			if !f.pattern.MatchString(v) {
				invalid = append(invalid, idx[i])
			}
		}
		if matched := len(vals) - len(invalid); matched*2 > len(vals) {
			return DateCheck{OK: f.label == ISODate, DetectedFormat: f.label, InvalidRows: invalid}
		}
	}
	return DateCheck{}
}

// ValueCheck is the result of ValidateValueFormat.
type ValueCheck struct {
	OK             bool
	DetectedFormat string
	InvalidRows    []int
}

// ValidateValueFormat classifies a monetary column as decimal or one of the
// Brazilian notations and collects rows that stay non-numeric even after
// the Brazilian notation is normalised.
func ValidateValueFormat(values []string) ValueCheck {
	idx, vals := nonNullIndexed(values)

	format := FormatDecimal
	for _, v := range vals {
		if currencyPattern.MatchString(v) {
			format = FormatBRLCurrency
			break
		}
	}
	if format == FormatDecimal {
		for _, v := range vals {
			if commaDecimalPattern.MatchString(v) {
				format = FormatBRLDecimalSep
				break
			}
		}
	}

	var invalid []int
	for i, v := range vals {
		if _, ok := ParseAmount(v); !ok {
			invalid = append(invalid, idx[i])
		}
	}
	return ValueCheck{
		OK:             format == FormatDecimal && len(invalid) == 0,
		DetectedFormat: format,
		InvalidRows:    invalid,
	}
}

// ParseAmount reads a decimal amount. Plain decimals ("1234.56") parse as
// is; Brazilian notation ("R$ 1.234,56") has the currency sign, spaces and
// thousands dots removed and the decimal comma turned into a dot.
func ParseAmount(v string) (float64, bool) {
	v = strings.TrimSpace(v)
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f, true
	}
	return ParseBRLAmount(v)
}

// ParseBRLAmount reads v in Brazilian notation only: dots are always
// thousands separators and the comma is the decimal mark, so "1.500" is
// fifteen hundred.
func ParseBRLAmount(v string) (float64, bool) {
	cleaned := strings.NewReplacer("R$", "", " ", "", "\u00a0", "", ".", "").Replace(strings.TrimSpace(v))
	cleaned = strings.Replace(cleaned, ",", ".", 1)
	f, err := strconv.ParseFloat(cleaned, 64)
	return f, err == nil
}

// EnumCheck is the result of ValidateEnum.
type EnumCheck struct {
	OK               bool
	InvalidValues    []string
	SuggestedMapping map[string]string
}

// ValidateEnum checks the distinct non-null values of a column against an
// enum rule. Each value is resolved by the first tier that applies:
//
//  1. the value is permitted as is
//  2. the rule maps the value
//  3. the upper-cased value is permitted
//  4. the rule maps the lower-cased value
//
// Values resolved by tiers 2 to 4 are suggested mappings; the rest are
// invalid. The column passes only when both lists are empty.
func ValidateEnum(values []string, rule *schema.EnumRule) EnumCheck {
	check := EnumCheck{SuggestedMapping: map[string]string{}}
	if rule == nil {
		check.OK = true
		return check
	}

	seen := make(map[string]bool)
	for _, v := range table.NonNull(values) {
		if seen[v] {
			continue
		}
		seen[v] = true

		if rule.Permits(v) {
			continue
		}
		if to, ok := rule.Mapping[v]; ok {
			check.SuggestedMapping[v] = to
			continue
		}
		if up := strings.ToUpper(v); rule.Permits(up) {
			check.SuggestedMapping[v] = up
			continue
		}
		if to, ok := rule.Mapping[strings.ToLower(v)]; ok {
			check.SuggestedMapping[v] = to
			continue
		}
		check.InvalidValues = append(check.InvalidValues, v)
	}

	check.OK = len(check.InvalidValues) == 0 && len(check.SuggestedMapping) == 0
	return check
}

func nonNullIndexed(values []string) ([]int, []string) {
	idx := make([]int, 0, len(values))
	vals := make([]string, 0, len(values))
	for i, v := range values {
		if table.IsNull(v) {
			continue
		}
		idx = append(idx, i)
		vals = append(vals, strings.TrimSpace(v))
	}
	return idx, vals
}
