// Package schema describes the declarative template that incoming
// transaction files are validated against.
//
// A template lists canonical columns in declaration order. Each column may
// accept aliases (alternate header names), carry a value type used by the
// date and decimal checks, and declare enum rules (permitted values, an
// alias mapping and a default). Templates are loaded once at startup and are
// read-only afterwards.
package schema

// ColumnType is the value type a column is checked against.
type ColumnType string

const (
	TypeText    ColumnType = "text"
	TypeDate    ColumnType = "date"
	TypeDecimal ColumnType = "decimal"
)

// EnumRule restricts a column to a closed set of values.
type EnumRule struct {
	PermittedValues []string          `json:"permitted_values"`
	Mapping         map[string]string `json:"mapping,omitempty"`
	Default         string            `json:"default,omitempty"`
}

// Permits reports whether v is one of the permitted values.
func (r *EnumRule) Permits(v string) bool {
	for _, p := range r.PermittedValues {
		if p == v {
			return true
		}
	}
	return false
}

// Column is a canonical template column.
type Column struct {
	Name       string     `json:"name"`
	Required   bool       `json:"required"`
	Aliases    []string   `json:"aliases"`
	Type       ColumnType `json:"type"`
	Validation *EnumRule  `json:"validation,omitempty"`
}

// Template is an immutable, ordered set of canonical columns.
type Template struct {
	columns []Column
	byName  map[string]int
	byAlias map[string]string
}

// New builds a template from columns in declaration order and checks its
// invariants.
func New(columns []Column) (*Template, error) {
	t := &Template{
		columns: make([]Column, len(columns)),
		byName:  make(map[string]int, len(columns)),
		byAlias: make(map[string]string),
	}
	copy(t.columns, columns)

	for i := range t.columns {
		if t.columns[i].Type == "" {
			t.columns[i].Type = inferType(t.columns[i].Name)
		}
	}

	if err := t.validate(); err != nil {
		return nil, err
	}

	for i, c := range t.columns {
		t.byName[c.Name] = i
		for _, a := range c.Aliases {
			t.byAlias[a] = c.Name
		}
	}
	return t, nil
}

// inferredTypes covers templates written before columns carried a type.
var inferredTypes = map[string]ColumnType{
	"data_transacao": TypeDate,
	"valor":          TypeDecimal,
}

func inferType(name string) ColumnType {
	if t, ok := inferredTypes[name]; ok {
		return t
	}
	return TypeText
}

// Columns returns the columns in declaration order.
func (t *Template) Columns() []Column {
	out := make([]Column, len(t.columns))
	copy(out, t.columns)
	return out
}

// Names returns canonical column names in declaration order.
func (t *Template) Names() []string {
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.Name
	}
	return names
}

// Column returns the canonical column called name.
func (t *Template) Column(name string) (Column, bool) {
	i, ok := t.byName[name]
	if !ok {
		return Column{}, false
	}
	return t.columns[i], true
}

// IsCanonical reports whether name is a canonical column name.
func (t *Template) IsCanonical(name string) bool {
	_, ok := t.byName[name]
	return ok
}

// AliasTarget returns the canonical column that declares alias.
func (t *Template) AliasTarget(alias string) (string, bool) {
	c, ok := t.byAlias[alias]
	return c, ok
}

// Required returns the names of required columns in declaration order.
func (t *Template) Required() []string {
	var out []string
	for _, c := range t.columns {
		if c.Required {
			out = append(out, c.Name)
		}
	}
	return out
}

// Resolve returns the source column that currently satisfies the canonical
// slot name: the canonical column itself when present, otherwise the first
// declared alias that is present.
func (t *Template) Resolve(name string, present map[string]bool) (string, bool) {
	c, ok := t.Column(name)
	if !ok {
		return "", false
	}
	if present[name] {
		return name, true
	}
	for _, a := range c.Aliases {
		if present[a] {
			return a, true
		}
	}
	return "", false
}

// OfType returns canonical names of columns with the given type.
func (t *Template) OfType(ct ColumnType) []string {
	var out []string
	for _, c := range t.columns {
		if c.Type == ct {
			out = append(out, c.Name)
		}
	}
	return out
}

// Enums returns canonical names of columns that declare permitted values.
func (t *Template) Enums() []string {
	var out []string
	for _, c := range t.columns {
		if c.Validation != nil && len(c.Validation.PermittedValues) > 0 {
			out = append(out, c.Name)
		}
	}
	return out
}
