package validation

import "encoding/json"

// ErrorKind tags each variant of ErrorRecord.
type ErrorKind string

const (
	KindMissingColumns          ErrorKind = "missing_columns"
	KindColumnNameMismatch      ErrorKind = "column_name_mismatch"
	KindDuplicateColumnConflict ErrorKind = "duplicate_column_conflict"
	KindDateFormat              ErrorKind = "date_format"
	KindValueFormat             ErrorKind = "value_format"
	KindInvalidEnumValues       ErrorKind = "invalid_enum_values"
	KindReadError               ErrorKind = "read_error"
)

// ErrorRecord is a closed set of validation findings. The unexported marker
// method keeps other packages from adding variants, so a type switch over
// the seven concrete types below is exhaustive.
type ErrorRecord interface {
	Kind() ErrorKind
	isErrorRecord()
}

// MissingColumns lists required canonical columns with no source column.
type MissingColumns struct {
	Columns []string `json:"columns"`
}

// ColumnNameMismatch maps present source columns to the canonical column
// whose alias they match.
type ColumnNameMismatch struct {
	RenameMap map[string]string `json:"rename_map"`
}

// DuplicateColumnConflict maps a canonical column to every source column
// that would land on it, in input order.
type DuplicateColumnConflict struct {
	Conflicts map[string][]string `json:"conflicts"`
}

// DateFormatError reports a date column not in YYYY-MM-DD. DetectedFormat
// is empty when no known format matched most values.
type DateFormatError struct {
	Column         string `json:"column"`
	DetectedFormat string `json:"detected_format"`
}

// ValueFormatError reports a monetary column that is not plain decimal.
type ValueFormatError struct {
	Column         string `json:"column"`
	DetectedFormat string `json:"detected_format"`
}

// InvalidEnumValues reports values outside an enum column's permitted set.
// SuggestedMapping holds the values that a mapping or case fold resolves.
type InvalidEnumValues struct {
	Column           string            `json:"column"`
	InvalidValues    []string          `json:"invalid_values"`
	SuggestedMapping map[string]string `json:"suggested_mapping"`
	PermittedValues  []string          `json:"permitted_values"`
	Default          string            `json:"default,omitempty"`
}

// ReadError is produced when the file could not be decoded or parsed.
type ReadError struct {
	Message string `json:"message"`
}

func (MissingColumns) Kind() ErrorKind          { return KindMissingColumns }
func (ColumnNameMismatch) Kind() ErrorKind      { return KindColumnNameMismatch }
func (DuplicateColumnConflict) Kind() ErrorKind { return KindDuplicateColumnConflict }
func (DateFormatError) Kind() ErrorKind         { return KindDateFormat }
func (ValueFormatError) Kind() ErrorKind        { return KindValueFormat }
func (InvalidEnumValues) Kind() ErrorKind       { return KindInvalidEnumValues }
func (ReadError) Kind() ErrorKind               { return KindReadError }

func (MissingColumns) isErrorRecord()          {}
func (ColumnNameMismatch) isErrorRecord()      {}
func (DuplicateColumnConflict) isErrorRecord() {}
func (DateFormatError) isErrorRecord()         {}
func (ValueFormatError) isErrorRecord()        {}
func (InvalidEnumValues) isErrorRecord()       {}
func (ReadError) isErrorRecord()               {}

// tagged adds the "type" discriminator when a record is encoded.
func tagged(kind ErrorKind, v any) ([]byte, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	fields["type"], _ = json.Marshal(kind)
	return json.Marshal(fields)
}

func (e MissingColumns) MarshalJSON() ([]byte, error) {
	type plain MissingColumns
	return tagged(e.Kind(), plain(e))
}

func (e ColumnNameMismatch) MarshalJSON() ([]byte, error) {
	type plain ColumnNameMismatch
	return tagged(e.Kind(), plain(e))
}

func (e DuplicateColumnConflict) MarshalJSON() ([]byte, error) {
	type plain DuplicateColumnConflict
	return tagged(e.Kind(), plain(e))
}

func (e DateFormatError) MarshalJSON() ([]byte, error) {
	type plain DateFormatError
	return tagged(e.Kind(), plain(e))
}

func (e ValueFormatError) MarshalJSON() ([]byte, error) {
	type plain ValueFormatError
	return tagged(e.Kind(), plain(e))
}

func (e InvalidEnumValues) MarshalJSON() ([]byte, error) {
	type plain InvalidEnumValues
	return tagged(e.Kind(), plain(e))
}

func (e ReadError) MarshalJSON() ([]byte, error) {
	type plain ReadError
	return tagged(e.Kind(), plain(e))
}

// Stage is the position of a file in the validation pass.
type Stage string

const (
	StageValid   Stage = "VALID"
	StageInvalid Stage = "INVALID"
)

// Result is the outcome of one validation pass. Build it with newResult so
// that Valid and ErrorCount always agree with Errors.
type Result struct {
	Valid      bool          `json:"valid"`
	ErrorCount int           `json:"error_count"`
	Errors     []ErrorRecord `json:"errors"`
	Stage      Stage         `json:"stage"`
}

func newResult(errs []ErrorRecord) *Result {
	if errs == nil {
		errs = []ErrorRecord{}
	}
	r := &Result{
		Valid:      len(errs) == 0,
		ErrorCount: len(errs),
		Errors:     errs,
		Stage:      StageValid,
	}
	if !r.Valid {
		r.Stage = StageInvalid
	}
	return r
}

// ReadFailure wraps err as a single-record result.
func ReadFailure(err error) *Result {
	return newResult([]ErrorRecord{ReadError{Message: err.Error()}})
}

// Has reports whether the result carries a record of kind.
func (r *Result) Has(kind ErrorKind) bool {
	for _, e := range r.Errors {
		if e.Kind() == kind {
			return true
		}
	}
	return false
}

// Kinds returns the record kinds in detection order.
func (r *Result) Kinds() []ErrorKind {
	out := make([]ErrorKind, len(r.Errors))
	for i, e := range r.Errors {
		out[i] = e.Kind()
	}
	return out
}
