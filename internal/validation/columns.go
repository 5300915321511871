package validation

import "github.com/luigidoria/Generative-AI-Data-Refiner/internal/schema"

// RequiredCheck is the result of CheckRequiredColumns.
type RequiredCheck struct {
	OK      bool
	Missing []string
}

// CheckRequiredColumns lists required canonical columns that are absent
// both under their own name and under every alias, in template order.
func CheckRequiredColumns(columns []string, tpl *schema.Template) RequiredCheck {
	present := toSet(columns)
	var missing []string
	for _, name := range tpl.Required() {
		if _, ok := tpl.Resolve(name, present); !ok {
			missing = append(missing, name)
		}
	}
	return RequiredCheck{OK: len(missing) == 0, Missing: missing}
}

// RenameSuggestion is the result of SuggestRenames.
type RenameSuggestion struct {
	OK        bool
	RenameMap map[string]string
	Unknown   []string
}

// SuggestRenames maps every non-canonical column that matches an alias to
// its canonical column. Aliases are searched in template declaration order
// and the first match wins. Columns that match nothing are returned in
// input order as Unknown.
func SuggestRenames(columns []string, tpl *schema.Template) RenameSuggestion {
	renames := make(map[string]string)
	var unknown []string

	for _, col := range columns {
		if tpl.IsCanonical(col) {
			continue
		}
		if target, ok := findAlias(col, tpl); ok {
			renames[col] = target
			continue
		}
		unknown = append(unknown, col)
	}
	return RenameSuggestion{OK: len(renames) == 0, RenameMap: renames, Unknown: unknown}
}

func findAlias(col string, tpl *schema.Template) (string, bool) {
	for _, c := range tpl.Columns() {
		for _, a := range c.Aliases {
			if a == col {
				return c.Name, true
			}
		}
	}
	return "", false
}

// DetectDuplicateTargets returns, for each canonical column that more than
// one column would end up as after renaming, the contending columns in input
// order. A column already carrying the canonical name is a contender.
func DetectDuplicateTargets(renameMap map[string]string, columns []string) map[string][]string {
	targets := make(map[string]bool, len(renameMap))
	for _, dest := range renameMap {
		targets[dest] = true
	}

	contenders := make(map[string][]string)
	for _, col := range columns {
		if dest, ok := renameMap[col]; ok {
			contenders[dest] = append(contenders[dest], col)
		} else if targets[col] {
			contenders[col] = append(contenders[col], col)
		}
	}

	conflicts := make(map[string][]string)
	for dest, cols := range contenders {
		if len(cols) > 1 {
			conflicts[dest] = cols
		}
	}
	return conflicts
}

func toSet(columns []string) map[string]bool {
	set := make(map[string]bool, len(columns))
	for _, c := range columns {
		set[c] = true
	}
	return set
}
