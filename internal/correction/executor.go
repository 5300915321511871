package correction

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/luigidoria/Generative-AI-Data-Refiner/internal/table"
	"github.com/luigidoria/Generative-AI-Data-Refiner/internal/validation"
)

// Executor limits.
const (
	DefaultMaxOps    = 200
	DefaultMaxRows   = 500_000
	MaxPatternLength = 512
)

// Executor applies scripts. It is stateless and safe for concurrent use.
type Executor struct {
	MaxOps  int
	MaxRows int
}

// NewExecutor returns an executor that refuses tables above maxRows.
// Zero selects the default.
func NewExecutor(maxRows int) *Executor {
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}
	return &Executor{MaxOps: DefaultMaxOps, MaxRows: maxRows}
}

// Apply runs script against a copy of t. The input is never modified. Any
// failure is wrapped in ErrExecution and names the failing op.
func (e *Executor) Apply(t *table.Table, script *Script) (*table.Table, error) {
	if script == nil {
		return nil, &ScriptError{Op: -1, Reason: "no script", Err: ErrExecution}
	}
	if e.MaxOps > 0 && len(script.Ops) > e.MaxOps {
		return nil, &ScriptError{Op: -1, Reason: fmt.Sprintf("%d ops exceed the limit of %d", len(script.Ops), e.MaxOps), Err: ErrExecution}
	}
	if e.MaxRows > 0 && t.Len() > e.MaxRows {
		return nil, &ScriptError{Op: -1, Reason: fmt.Sprintf("%d rows exceed the limit of %d", t.Len(), e.MaxRows), Err: ErrExecution}
	}

	out := t.Clone()
	for i, op := range script.Ops {
		if err := applyOp(out, op); err != nil {
			return nil, &ScriptError{Op: i, Kind: op.Op, Reason: err.Error(), Err: ErrExecution}
		}
	}
	return out, nil
}

func applyOp(t *table.Table, op Op) error {
	switch op.Op {
	case OpRename:
		// A missing source is skipped. Renaming onto an existing column
		// replaces it.
		if op.From == op.To || !t.Has(op.From) {
			return nil
		}
		t.Drop(op.To)
		return t.Rename(op.From, op.To)

	case OpDrop:
		t.Drop(op.Column)
		return nil

	case OpCoalesce:
		sources := make([]string, 0, len(op.Sources))
		for _, s := range op.Sources {
			if s != op.Target && t.Has(s) {
				sources = append(sources, s)
			}
		}
		if !t.Has(op.Target) {
			if len(sources) == 0 {
				return fmt.Errorf("none of %v present", append([]string{op.Target}, op.Sources...))
			}
			if err := t.Rename(sources[0], op.Target); err != nil {
				return err
			}
			sources = sources[1:]
		}
		if err := t.Coalesce(op.Target, sources); err != nil {
			return err
		}
		for _, s := range sources {
			t.Drop(s)
		}
		return nil

	case OpAddColumn:
		if t.Has(op.Column) {
			return nil
		}
		return t.AddColumn(op.Column, op.Value)

	case OpFillDefault:
		return t.Apply(op.Column, func(v string) string {
			if table.IsNull(v) {
				return op.Value
			}
			return v
		})

	case OpCast:
		switch op.To {
		case CastDecimal:
			if op.Format == NotationBRL {
				return t.Apply(op.Column, castBRLDecimal)
			}
			return t.Apply(op.Column, castDecimal)
		case CastDate:
			return t.Apply(op.Column, castDate)
		}
		return fmt.Errorf("cannot cast to %q", op.To)

	case OpRegexReplace:
		re, err := regexp.Compile(op.Pattern)
		if err != nil {
			return err
		}
		return t.Apply(op.Column, func(v string) string {
			return re.ReplaceAllString(v, op.Replacement)
		})

	case OpMapValues:
		keep := make(map[string]bool, len(op.Keep))
		for _, k := range op.Keep {
			keep[k] = true
		}
		return t.Apply(op.Column, func(v string) string {
			trimmed := strings.TrimSpace(v)
			if to, ok := op.Mapping[trimmed]; ok {
				return to
			}
			if op.Default != "" && !table.IsNull(v) && !keep[trimmed] {
				return op.Default
			}
			return v
		})

	case OpDropUnknown:
		keep := make(map[string]bool, len(op.Keep))
		for _, k := range op.Keep {
			keep[k] = true
		}
		t.Keep(keep)
		return nil

	case OpDedupeColumns:
		t.DedupeColumns()
		return nil
	}
	return fmt.Errorf("unknown op %q", op.Op)
}

func castDecimal(v string) string {
	if table.IsNull(v) {
		return ""
	}
	f, ok := validation.ParseAmount(v)
	if !ok {
		return ""
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func castBRLDecimal(v string) string {
	if table.IsNull(v) {
		return ""
	}
	f, ok := validation.ParseBRLAmount(v)
	if !ok {
		return ""
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// dateLayouts are tried in order; day-first wins for ambiguous slashes.
var dateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"02-01-2006",
	"02.01.2006",
	"2/1/2006",
	"2006/01/02",
	"02/01/06",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
}

func castDate(v string) string {
	v = strings.TrimSpace(v)
	if table.IsNull(v) {
		return ""
	}
	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, v); err == nil {
			return d.Format("2006-01-02")
		}
	}
	return ""
}
