// Package validation checks a parsed transaction file against a template.
//
// The checks run in a fixed order (missing columns, name mismatches,
// duplicate-target conflicts, date format, value format, enum values) and
// never stop early, so a Result always lists every problem found. Data
// problems are reported as ErrorRecords, never as Go errors.
package validation

import (
	"log/slog"

	"github.com/luigidoria/Generative-AI-Data-Refiner/internal/schema"
	"github.com/luigidoria/Generative-AI-Data-Refiner/internal/table"
)

// Validator runs the full check sequence for one template.
type Validator struct {
	tpl *schema.Template
}

// NewValidator returns a validator for tpl.
func NewValidator(tpl *schema.Template) *Validator {
	return &Validator{tpl: tpl}
}

// Template returns the template the validator checks against.
func (v *Validator) Template() *schema.Template {
	return v.tpl
}

// Validate runs every check against t.
func (v *Validator) Validate(t *table.Table) *Result {
	columns := t.Columns()
	present := t.Present()
	var errs []ErrorRecord

	if req := CheckRequiredColumns(columns, v.tpl); !req.OK {
		errs = append(errs, MissingColumns{Columns: req.Missing})
	}

	renames := SuggestRenames(columns, v.tpl)
	if !renames.OK {
		errs = append(errs, ColumnNameMismatch{RenameMap: renames.RenameMap})
	}

	if conflicts := DetectDuplicateTargets(renames.RenameMap, columns); len(conflicts) > 0 {
		errs = append(errs, DuplicateColumnConflict{Conflicts: conflicts})
	}

	for _, name := range v.tpl.OfType(schema.TypeDate) {
		src, ok := v.tpl.Resolve(name, present)
		if !ok {
			continue
		}
		if check := ValidateDateFormat(t.Values(src)); !check.OK {
			errs = append(errs, DateFormatError{Column: name, DetectedFormat: check.DetectedFormat})
		}
	}

	for _, name := range v.tpl.OfType(schema.TypeDecimal) {
		src, ok := v.tpl.Resolve(name, present)
		if !ok {
			continue
		}
		if check := ValidateValueFormat(t.Values(src)); !check.OK {
			errs = append(errs, ValueFormatError{Column: name, DetectedFormat: check.DetectedFormat})
		}
	}

	for _, name := range v.tpl.Enums() {
		src, ok := v.tpl.Resolve(name, present)
		if !ok {
			continue
		}
		col, _ := v.tpl.Column(name)
		check := ValidateEnum(t.Values(src), col.Validation)
		if check.OK {
			continue
		}
		errs = append(errs, InvalidEnumValues{
			Column:           name,
			InvalidValues:    check.InvalidValues,
			SuggestedMapping: check.SuggestedMapping,
			PermittedValues:  append([]string(nil), col.Validation.PermittedValues...),
			Default:          col.Validation.Default,
		})
	}

	res := newResult(errs)
	slog.Debug("validation finished",
		"stage", res.Stage,
		"rows", t.Len(),
		"columns", len(columns),
		"errors", res.ErrorCount,
	)
	return res
}

// FileResult is the outcome of validating raw file bytes. Table is nil
// when the file could not be read.
type FileResult struct {
	*Loaded
	Result *Result
}

// ValidateBytes loads data and validates it. A decode or parse failure is
// reported as a single ReadError.
func (v *Validator) ValidateBytes(data []byte) *FileResult {
	loaded, err := LoadTable(data)
	if err != nil {
		slog.Debug("file could not be read", "encoding", loaded.Encoding, "error", err)
		return &FileResult{Loaded: loaded, Result: ReadFailure(err)}
	}
	return &FileResult{Loaded: loaded, Result: v.Validate(loaded.Table)}
}
