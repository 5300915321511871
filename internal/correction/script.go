// Package correction turns a failed validation into a fix.
//
// A correction script is a JSON list of operations over the table: renames,
// drops, merges, casts, value mappings. Scripts come from a Planner (a
// language model or the built-in rules), are cached by structural
// fingerprint, and are run by the Executor, which only knows the fixed set
// of operations below. Nothing in a script is ever evaluated as code.
package correction

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	libinjection "github.com/corazawaf/libinjection-go"
)

// ScriptVersion is the op-list format version written by this package.
const ScriptVersion = 1

var (
	// ErrInvalidScript reports a script that does not decode or names an
	// unknown operation.
	ErrInvalidScript = errors.New("invalid correction script")

	// ErrUnsafeScript reports a script carrying a literal that looks like
	// an injection payload.
	ErrUnsafeScript = errors.New("unsafe correction script")

	// ErrExecution reports a script that failed while being applied.
	ErrExecution = errors.New("correction script failed")
)

// ScriptError points at the op that made a script unusable.
type ScriptError struct {
	Op     int // zero-based index, -1 for the script as a whole
	Kind   OpKind
	Reason string
	Err    error // one of the sentinels above
}

func (e *ScriptError) Error() string {
	if e.Op < 0 {
		return fmt.Sprintf("%v: %s", e.Err, e.Reason)
	}
	return fmt.Sprintf("%v: op %d (%s): %s", e.Err, e.Op+1, e.Kind, e.Reason)
}

func (e *ScriptError) Unwrap() error { return e.Err }

// OpKind names an operation.
type OpKind string

const (
	OpRename        OpKind = "rename"
	OpDrop          OpKind = "drop"
	OpCoalesce      OpKind = "coalesce"
	OpAddColumn     OpKind = "add_column"
	OpFillDefault   OpKind = "fill_default"
	OpCast          OpKind = "cast"
	OpRegexReplace  OpKind = "regex_replace"
	OpMapValues     OpKind = "map_values"
	OpDropUnknown   OpKind = "drop_unknown"
	OpDedupeColumns OpKind = "dedupe_columns"
)

// Cast targets.
const (
	CastDecimal = "decimal"
	CastDate    = "date"
)

// NotationBRL is the cast format for Brazilian amounts, where every dot is a
// thousands separator and the comma is the decimal mark.
const NotationBRL = "brasileiro"

// Op is one step of a script. Which fields apply depends on Op:
//
//	rename          from, to
//	drop            column
//	coalesce        target, sources
//	add_column      column, value
//	fill_default    column, value
//	cast            column, to (decimal|date), format (brasileiro)
//	regex_replace   column, pattern, replacement
//	map_values      column, mapping, default, keep
//	drop_unknown    keep
//	dedupe_columns  -
type Op struct {
	Op          OpKind            `json:"op"`
	From        string            `json:"from,omitempty"`
	To          string            `json:"to,omitempty"`
	Column      string            `json:"column,omitempty"`
	Target      string            `json:"target,omitempty"`
	Sources     []string          `json:"sources,omitempty"`
	Value       string            `json:"value,omitempty"`
	Pattern     string            `json:"pattern,omitempty"`
	Replacement string            `json:"replacement,omitempty"`
	Mapping     map[string]string `json:"mapping,omitempty"`
	Default     string            `json:"default,omitempty"`
	Keep        []string          `json:"keep,omitempty"`
	Format      string            `json:"format,omitempty"`
}

// Script is an ordered list of operations.
type Script struct {
	Version     int    `json:"version"`
	Description string `json:"description"`
	Ops         []Op   `json:"ops"`
}

// String returns the indented JSON form stored in the cache.
func (s *Script) String() string {
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return ""
	}
	return string(b)
}

var fencePattern = regexp.MustCompile("(?s)^\\s*```[a-zA-Z]*\\s*\n?(.*?)\\s*```\\s*$")

// stripFences removes a surrounding Markdown code fence, which models add
// even when told not to.
func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if m := fencePattern.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return text
}

// ParseScript decodes and checks a script. Unknown fields, unknown ops,
// missing arguments, bad regular expressions and injection-looking literals
// are all rejected.
func ParseScript(text string) (*Script, error) {
	body := stripFences(text)
	if body == "" {
		return nil, &ScriptError{Op: -1, Reason: "empty script", Err: ErrInvalidScript}
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(body)))
	dec.DisallowUnknownFields()

	var s Script
	if err := dec.Decode(&s); err != nil {
		return nil, &ScriptError{Op: -1, Reason: err.Error(), Err: ErrInvalidScript}
	}
	if dec.More() {
		return nil, &ScriptError{Op: -1, Reason: "trailing data after script", Err: ErrInvalidScript}
	}
	if s.Version == 0 {
		s.Version = ScriptVersion
	}
	if s.Version != ScriptVersion {
		return nil, &ScriptError{Op: -1, Reason: fmt.Sprintf("unsupported version %d", s.Version), Err: ErrInvalidScript}
	}

	for i, op := range s.Ops {
		if err := checkOp(op); err != nil {
			err.Op, err.Kind = i, op.Op
			return nil, err
		}
	}
	return &s, nil
}

func checkOp(op Op) *ScriptError {
	invalid := func(format string, args ...any) *ScriptError {
		return &ScriptError{Reason: fmt.Sprintf(format, args...), Err: ErrInvalidScript}
	}

	switch op.Op {
	case OpRename:
		if op.From == "" || op.To == "" {
			return invalid("from and to are required")
		}
	case OpDrop, OpFillDefault:
		if op.Column == "" {
			return invalid("column is required")
		}
	case OpAddColumn:
		if op.Column == "" {
			return invalid("column is required")
		}
	case OpCoalesce:
		if op.Target == "" || len(op.Sources) == 0 {
			return invalid("target and sources are required")
		}
	case OpCast:
		if op.Column == "" {
			return invalid("column is required")
		}
		if op.To != CastDecimal && op.To != CastDate {
			return invalid("cannot cast to %q", op.To)
		}
		if op.Format != "" && (op.Format != NotationBRL || op.To != CastDecimal) {
			return invalid("unsupported format %q for %s", op.Format, op.To)
		}
	case OpRegexReplace:
		if op.Column == "" || op.Pattern == "" {
			return invalid("column and pattern are required")
		}
		if len(op.Pattern) > MaxPatternLength {
			return invalid("pattern longer than %d bytes", MaxPatternLength)
		}
		if _, err := regexp.Compile(op.Pattern); err != nil {
			return invalid("pattern: %v", err)
		}
	case OpMapValues:
		if op.Column == "" || (len(op.Mapping) == 0 && op.Default == "") {
			return invalid("column and a mapping or default are required")
		}
	case OpDropUnknown:
		if len(op.Keep) == 0 {
			return invalid("keep is required")
		}
	case OpDedupeColumns:
	default:
		return invalid("unknown op %q", op.Op)
	}

	for _, lit := range literals(op) {
		if sqli, fp := libinjection.IsSQLi(lit); sqli {
			return &ScriptError{Reason: fmt.Sprintf("literal %q matches injection pattern %s", lit, fp), Err: ErrUnsafeScript}
		}
		if libinjection.IsXSS(lit) {
			return &ScriptError{Reason: fmt.Sprintf("literal %q looks like markup injection", lit), Err: ErrUnsafeScript}
		}
	}
	return nil
}

// literals are the values a script writes into cells.
func literals(op Op) []string {
	var out []string
	add := func(s string) {
		if s != "" {
			out = append(out, s)
		}
	}
	add(op.Value)
	add(op.Replacement)
	add(op.Default)
	for _, v := range op.Mapping {
		add(v)
	}
	return out
}
