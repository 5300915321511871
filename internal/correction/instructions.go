package correction

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/luigidoria/Generative-AI-Data-Refiner/internal/schema"
	"github.com/luigidoria/Generative-AI-Data-Refiner/internal/validation"
)

// FallbackInstruction is used when the result carries no actionable record.
const FallbackInstruction = "Inspect the data and apply whatever corrections make it conform to the template."

// BuildInstructions turns validation errors into the ordered task list sent
// to the model. Structural tasks (creating, renaming and merging columns)
// come before data tasks (formats and enums). A rename whose destination is
// contested by a duplicate conflict is left to the coalesce task.
func BuildInstructions(result *validation.Result, tpl *schema.Template) []string {
	var structure, data []string

	contested := make(map[string]bool)
	for _, rec := range result.Errors {
		if c, ok := rec.(validation.DuplicateColumnConflict); ok {
			for dest := range c.Conflicts {
				contested[dest] = true
			}
		}
	}

	for _, rec := range result.Errors {
		switch e := rec.(type) {
		case validation.MissingColumns:
			structure = append(structure, fmt.Sprintf(
				"MISSING COLUMNS: the table lacks the required columns [%s]. Create each one with add_column and an empty value.",
				quoteList(e.Columns)))

		case validation.ColumnNameMismatch:
			safe := make(map[string]string, len(e.RenameMap))
			for from, to := range e.RenameMap {
				if !contested[to] {
					safe[from] = to
				}
			}
			if len(safe) > 0 {
				b, _ := json.Marshal(safe)
				structure = append(structure, fmt.Sprintf(
					"RENAME: use exactly this mapping with rename ops: %s. Renaming onto an existing column replaces it.", b))
			}

		case validation.DuplicateColumnConflict:
			parts := make([]string, 0, len(e.Conflicts))
			for _, dest := range sortedKeys(e.Conflicts) {
				parts = append(parts, fmt.Sprintf("[%s] > '%s'", quoteList(e.Conflicts[dest]), dest))
			}
			structure = append(structure, fmt.Sprintf(
				"COLUMN CONFLICT: several columns map onto the same destination: %s. Resolve each with one coalesce op: "+
					"the destination keeps priority and the sources only fill its empty cells. Do not drop the sources "+
					"before the coalesce; the coalesce removes them.", strings.Join(parts, "; ")))

		case validation.ValueFormatError:
			data = append(data, fmt.Sprintf(
				"VALUE FORMAT: column '%s' is in %s notation. Use cast to decimal with format \"brasileiro\", which "+
					"removes 'R$' and every thousands dot (\"1.500\" becomes 1500) and turns the decimal comma into a dot.",
				e.Column, e.DetectedFormat))

		case validation.DateFormatError:
			data = append(data, fmt.Sprintf(
				"DATE FORMAT: column '%s' is in %s. Use cast to date, which reads day-first dates and writes YYYY-MM-DD.",
				e.Column, e.DetectedFormat))

		case validation.InvalidEnumValues:
			data = append(data, enumInstruction(e, tpl))

		case validation.ReadError:
			// A file that could not be read has no table to correct.
		}
	}

	out := append(structure, data...)
	if len(out) == 0 {
		out = append(out, FallbackInstruction)
	}
	return out
}

func enumInstruction(e validation.InvalidEnumValues, tpl *schema.Template) string {
	var b strings.Builder
	fmt.Fprintf(&b, "INVALID VALUES: column '%s' only accepts [%s].", e.Column, quoteList(e.PermittedValues))
	if len(e.SuggestedMapping) > 0 {
		m, _ := json.Marshal(e.SuggestedMapping)
		fmt.Fprintf(&b, " Apply map_values with this mapping: %s.", m)
	}
	if len(e.InvalidValues) > 0 {
		fmt.Fprintf(&b, " These values have no known mapping: [%s].", quoteList(e.InvalidValues))
		def := e.Default
		if def == "" && tpl != nil {
			if col, ok := tpl.Column(e.Column); ok && col.Validation != nil {
				def = col.Validation.Default
			}
		}
		if def != "" {
			fmt.Fprintf(&b, " Replace them with the default '%s'.", def)
		} else {
			b.WriteString(" Map each one to the closest permitted value.")
		}
	}
	return b.String()
}

// NumberInstructions formats tasks as a numbered list.
func NumberInstructions(in []string) string {
	lines := make([]string, len(in))
	for i, s := range in {
		lines[i] = fmt.Sprintf("%d. %s", i+1, s)
	}
	return strings.Join(lines, "\n")
}

func quoteList(items []string) string {
	q := make([]string, len(items))
	for i, s := range items {
		q[i] = "'" + s + "'"
	}
	return strings.Join(q, ", ")
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
