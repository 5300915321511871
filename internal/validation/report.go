package validation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jinzhu/inflection"
)

// NoDivergences is the report text for a valid file.
const NoDivergences = "No divergences found. The file conforms to the template."

// Title is a short human label for a record kind.
func Title(rec ErrorRecord) string {
	switch e := rec.(type) {
	case MissingColumns:
		return "Missing required columns"
	case ColumnNameMismatch:
		return "Column names differ from the template"
	case DuplicateColumnConflict:
		return "Several columns map to the same field"
	case DateFormatError:
		return fmt.Sprintf("Wrong date format in %s", e.Column)
	case ValueFormatError:
		return fmt.Sprintf("Wrong value format in %s", e.Column)
	case InvalidEnumValues:
		return fmt.Sprintf("Invalid values in %s", e.Column)
	case ReadError:
		return "File could not be read"
	}
	return "Unknown problem"
}

// Report renders a plain-text divergence report for r.
func Report(r *Result) string {
	if r.Valid {
		return NoDivergences
	}

	var b strings.Builder
	b.WriteString("=== DIVERGENCE REPORT ===\n\n")

	for _, rec := range r.Errors {
		switch e := rec.(type) {
		case MissingColumns:
			fmt.Fprintf(&b, "MISSING REQUIRED COLUMNS (%s):\n", count(len(e.Columns), "column"))
			for _, c := range e.Columns {
				fmt.Fprintf(&b, "  - %s\n", c)
			}
		case ColumnNameMismatch:
			fmt.Fprintf(&b, "COLUMNS WITH DIFFERENT NAMES (%s):\n", count(len(e.RenameMap), "column"))
			for _, from := range sortedKeys(e.RenameMap) {
				fmt.Fprintf(&b, "  - '%s' -> '%s'\n", from, e.RenameMap[from])
			}
		case DuplicateColumnConflict:
			fmt.Fprintf(&b, "DUPLICATE TARGET COLUMNS (%s):\n", count(len(e.Conflicts), "field"))
			for _, dest := range sortedKeys(e.Conflicts) {
				fmt.Fprintf(&b, "  - %s <- %s\n", dest, strings.Join(e.Conflicts[dest], ", "))
			}
		case DateFormatError:
			fmt.Fprintf(&b, "WRONG DATE FORMAT (%s):\n", e.Column)
			fmt.Fprintf(&b, "  Detected: %s\n", orUnknown(e.DetectedFormat))
			fmt.Fprintf(&b, "  Expected: %s\n", ISODate)
		case ValueFormatError:
			fmt.Fprintf(&b, "WRONG VALUE FORMAT (%s):\n", e.Column)
			fmt.Fprintf(&b, "  Detected: %s\n", orUnknown(e.DetectedFormat))
			b.WriteString("  Expected: decimal (e.g. 1234.56)\n")
		case InvalidEnumValues:
			fmt.Fprintf(&b, "INVALID VALUES (%s):\n", e.Column)
			for _, from := range sortedKeys(e.SuggestedMapping) {
				fmt.Fprintf(&b, "  - '%s' -> '%s'\n", from, e.SuggestedMapping[from])
			}
			if len(e.InvalidValues) > 0 {
				fmt.Fprintf(&b, "  Unknown %s: %s\n",
					inflection.Plural("value"), strings.Join(e.InvalidValues, ", "))
			}
			fmt.Fprintf(&b, "  Permitted: %s\n", strings.Join(e.PermittedValues, ", "))
		case ReadError:
			b.WriteString("ERROR READING FILE:\n")
			fmt.Fprintf(&b, "  %s\n", e.Message)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Total problems: %d", r.ErrorCount)
	return b.String()
}

// count formats n with the singular or plural form of noun.
func count(n int, noun string) string {
	if n != 1 {
		noun = inflection.Plural(noun)
	}
	return fmt.Sprintf("%d %s", n, noun)
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
