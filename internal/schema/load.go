package schema

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default_template.json
var defaultTemplate []byte

// ErrInvalidTemplate is returned when a template violates its invariants.
var ErrInvalidTemplate = errors.New("invalid template")

// Default returns the embedded transaction template.
func Default() *Template {
	t, err := ParseJSON(defaultTemplate)
	if err != nil {
		panic(fmt.Sprintf("embedded template: %v", err))
	}
	return t
}

// Load reads a template from path. Files ending in .yaml or .yml are parsed
// as YAML, everything else as JSON. An empty path returns the default
// template.
func Load(path string) (*Template, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read template: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseYAML(data)
	default:
		return ParseJSON(data)
	}
}

// rawValidation accepts both the English keys and the Portuguese keys used by
// the first generation of template files.
type rawValidation struct {
	PermittedValues   []string          `json:"permitted_values" yaml:"permitted_values"`
	ValoresPermitidos []string          `json:"valores_permitidos" yaml:"valores_permitidos"`
	Mapping           map[string]string `json:"mapping" yaml:"mapping"`
	Mapeamento        map[string]string `json:"mapeamento" yaml:"mapeamento"`
	Default           string            `json:"default" yaml:"default"`
	Padrao            string            `json:"padrao" yaml:"padrao"`
}

type rawColumn struct {
	Required    *bool          `json:"required" yaml:"required"`
	Obrigatorio *bool          `json:"obrigatorio" yaml:"obrigatorio"`
	Aliases     []string       `json:"aliases" yaml:"aliases"`
	Type        string         `json:"type" yaml:"type"`
	Validation  *rawValidation `json:"validation" yaml:"validation"`
	Validacao   *rawValidation `json:"validacao" yaml:"validacao"`
}

func (rc rawColumn) toColumn(name string) Column {
	c := Column{
		Name:    name,
		Aliases: rc.Aliases,
		Type:    ColumnType(strings.ToLower(rc.Type)),
	}
	switch {
	case rc.Required != nil:
		c.Required = *rc.Required
	case rc.Obrigatorio != nil:
		c.Required = *rc.Obrigatorio
	}

	rv := rc.Validation
	if rv == nil {
		rv = rc.Validacao
	}
	if rv != nil {
		rule := &EnumRule{
			PermittedValues: firstNonEmpty(rv.PermittedValues, rv.ValoresPermitidos),
			Mapping:         rv.Mapping,
			Default:         rv.Default,
		}
		if rule.Mapping == nil {
			rule.Mapping = rv.Mapeamento
		}
		if rule.Default == "" {
			rule.Default = rv.Padrao
		}
		c.Validation = rule
	}
	return c
}

func firstNonEmpty(a, b []string) []string {
	if len(a) > 0 {
		return a
	}
	return b
}

// orderedColumns decodes a JSON object while keeping its key order.
type orderedColumns []Column

func (oc *orderedColumns) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("%w: columns must be an object", ErrInvalidTemplate)
	}

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("%w: unexpected token %v", ErrInvalidTemplate, tok)
		}

		var rc rawColumn
		if err := dec.Decode(&rc); err != nil {
			return fmt.Errorf("column %q: %w", name, err)
		}
		*oc = append(*oc, rc.toColumn(name))
	}

	_, err = dec.Token()
	return err
}

// ParseJSON parses a JSON template document.
func ParseJSON(data []byte) (*Template, error) {
	var doc struct {
		Columns orderedColumns `json:"columns"`
		Colunas orderedColumns `json:"colunas"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse template: %w", err)
	}

	cols := doc.Columns
	if len(cols) == 0 {
		cols = doc.Colunas
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("%w: no columns declared", ErrInvalidTemplate)
	}
	return New(cols)
}

// ParseYAML parses a YAML template document. Column order follows the
// document.
func ParseYAML(data []byte) (*Template, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parse template: %w", err)
	}
	if len(root.Content) == 0 || root.Content[0].Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: document must be a mapping", ErrInvalidTemplate)
	}

	var colsNode *yaml.Node
	top := root.Content[0]
	for i := 0; i+1 < len(top.Content); i += 2 {
		key := top.Content[i].Value
		if key == "columns" || key == "colunas" {
			colsNode = top.Content[i+1]
			break
		}
	}
	if colsNode == nil || colsNode.Kind != yaml.MappingNode || len(colsNode.Content) == 0 {
		return nil, fmt.Errorf("%w: no columns declared", ErrInvalidTemplate)
	}

	cols := make([]Column, 0, len(colsNode.Content)/2)
	for i := 0; i+1 < len(colsNode.Content); i += 2 {
		name := colsNode.Content[i].Value
		var rc rawColumn
		if err := colsNode.Content[i+1].Decode(&rc); err != nil {
			return nil, fmt.Errorf("column %q: %w", name, err)
		}
		cols = append(cols, rc.toColumn(name))
	}
	return New(cols)
}

// validate checks name uniqueness, alias collisions and rule consistency.
// All problems are reported together.
func (t *Template) validate() error {
	var errs []string

	names := make(map[string]bool, len(t.columns))
	for _, c := range t.columns {
		if c.Name == "" {
			errs = append(errs, "column with empty name")
			continue
		}
		if names[c.Name] {
			errs = append(errs, fmt.Sprintf("duplicate column %q", c.Name))
		}
		names[c.Name] = true
	}

	owner := make(map[string]string)
	for _, c := range t.columns {
		switch c.Type {
		case TypeText, TypeDate, TypeDecimal:
		default:
			errs = append(errs, fmt.Sprintf("column %q: unknown type %q", c.Name, c.Type))
		}

		for _, a := range c.Aliases {
			if a == c.Name {
				continue
			}
			if names[a] {
				errs = append(errs, fmt.Sprintf("alias %q of %q is itself a canonical column", a, c.Name))
			}
			if prev, ok := owner[a]; ok && prev != c.Name {
				errs = append(errs, fmt.Sprintf("alias %q claimed by both %q and %q", a, prev, c.Name))
			}
			owner[a] = c.Name
		}

		if r := c.Validation; r != nil && r.Default != "" && len(r.PermittedValues) > 0 && !r.Permits(r.Default) {
			errs = append(errs, fmt.Sprintf("column %q: default %q is not a permitted value", c.Name, r.Default))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w:\n  - %s", ErrInvalidTemplate, strings.Join(errs, "\n  - "))
	}
	return nil
}
