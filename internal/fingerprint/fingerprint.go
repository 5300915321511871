// Package fingerprint derives the cache key for correction scripts from the
// shape of a file's validation errors.
//
// Two files share a fingerprint when they have the same set of columns and
// the same structural problems: the same missing columns, the same rename
// map, the same conflicts, formats and enum rules. Row values never take
// part, so the enum InvalidValues list is left out.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"

	"github.com/luigidoria/Generative-AI-Data-Refiner/internal/validation"
)

// Compute returns the hex SHA-256 of the canonical JSON form of columns and
// errs. The result does not depend on the order of either list.
func Compute(columns []string, errs []validation.ErrorRecord) string {
	cols := append([]string(nil), columns...)
	sort.Strings(cols)

	descriptors := make([]string, 0, len(errs))
	for _, e := range errs {
		descriptors = append(descriptors, encode(describe(e)))
	}
	sort.Strings(descriptors)

	raw := make([]json.RawMessage, len(descriptors))
	for i, d := range descriptors {
		raw[i] = json.RawMessage(d)
	}

	// encoding/json writes map keys sorted, which keeps the document canonical.
	doc := encode(map[string]any{
		"columns": cols,
		"errors":  raw,
	})
	sum := sha256.Sum256([]byte(doc))
	return hex.EncodeToString(sum[:])
}

func describe(rec validation.ErrorRecord) map[string]any {
	d := map[string]any{"type": rec.Kind()}

	switch e := rec.(type) {
	case validation.MissingColumns:
		d["columns"] = sorted(e.Columns)
	case validation.ColumnNameMismatch:
		d["rename_map"] = nonNilMap(e.RenameMap)
	case validation.DuplicateColumnConflict:
		conflicts := make(map[string][]string, len(e.Conflicts))
		for dest, cols := range e.Conflicts {
			conflicts[dest] = sorted(cols)
		}
		d["conflicts"] = conflicts
	case validation.DateFormatError:
		d["column"] = e.Column
		d["detected_format"] = e.DetectedFormat
	case validation.ValueFormatError:
		d["column"] = e.Column
		d["detected_format"] = e.DetectedFormat
	case validation.InvalidEnumValues:
		d["column"] = e.Column
		d["suggested_mapping"] = nonNilMap(e.SuggestedMapping)
		d["permitted_values"] = sorted(e.PermittedValues)
		d["default"] = e.Default
	case validation.ReadError:
		d["message"] = e.Message
	}
	return d
}

func encode(v any) string {
	// Only strings, string slices and string maps reach here.
	b, err := json.Marshal(v)
	if err != nil {
		panic("fingerprint: " + err.Error())
	}
	return string(b)
}

func sorted(in []string) []string {
	out := append([]string{}, in...)
	sort.Strings(out)
	return out
}

func nonNilMap(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
