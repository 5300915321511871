// Package table holds the in-memory representation of a parsed CSV file:
// an ordered header and string cells, addressed by column name.
//
// Every mutating method works in place. Callers that must keep the original
// (the correction executor, for instance) work on a Clone.
package table

import (
	"fmt"
	"strings"
)

// Table is a rectangular grid of string cells with named columns.
// Every row has exactly len(Columns()) cells.
type Table struct {
	columns []string
	rows    [][]string
}

// New builds a table, padding short rows with empty cells and truncating
// long ones.
func New(columns []string, rows [][]string) *Table {
	t := &Table{
		columns: append([]string(nil), columns...),
		rows:    make([][]string, len(rows)),
	}
	for i, r := range rows {
		t.rows[i] = fit(r, len(columns))
	}
	return t
}

func fit(row []string, n int) []string {
	out := make([]string, n)
	copy(out, row)
	return out
}

// Columns returns a copy of the header.
func (t *Table) Columns() []string {
	return append([]string(nil), t.columns...)
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	return len(t.rows)
}

// Index returns the position of the first column called name, or -1.
func (t *Table) Index(name string) int {
	for i, c := range t.columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Has reports whether a column called name exists.
func (t *Table) Has(name string) bool {
	return t.Index(name) >= 0
}

// Present returns the header as a set.
func (t *Table) Present() map[string]bool {
	set := make(map[string]bool, len(t.columns))
	for _, c := range t.columns {
		set[c] = true
	}
	return set
}

// Row returns a copy of row i.
func (t *Table) Row(i int) []string {
	return append([]string(nil), t.rows[i]...)
}

// Cell returns the value at row i of column name, or "" when the column
// does not exist.
func (t *Table) Cell(i int, name string) string {
	j := t.Index(name)
	if j < 0 {
		return ""
	}
	return t.rows[i][j]
}

// Values returns the cells of column name, or nil when absent.
func (t *Table) Values(name string) []string {
	j := t.Index(name)
	if j < 0 {
		return nil
	}
	out := make([]string, len(t.rows))
	for i, r := range t.rows {
		out[i] = r[j]
	}
	return out
}

// Clone returns a deep copy.
func (t *Table) Clone() *Table {
	return New(t.columns, t.rows)
}

// Head returns a copy of the first n rows.
func (t *Table) Head(n int) *Table {
	if n > len(t.rows) {
		n = len(t.rows)
	}
	return New(t.columns, t.rows[:n])
}

// Records returns the first n rows as column→value maps.
func (t *Table) Records(n int) []map[string]string {
	if n > len(t.rows) || n < 0 {
		n = len(t.rows)
	}
	out := make([]map[string]string, n)
	for i := 0; i < n; i++ {
		rec := make(map[string]string, len(t.columns))
		for j, c := range t.columns {
			rec[c] = t.rows[i][j]
		}
		out[i] = rec
	}
	return out
}

// Rename changes the name of column from to to. Renaming onto an existing
// column is refused; the caller decides how to merge first.
func (t *Table) Rename(from, to string) error {
	j := t.Index(from)
	if j < 0 {
		return fmt.Errorf("rename %q: column not found", from)
	}
	if from == to {
		return nil
	}
	if t.Has(to) {
		return fmt.Errorf("rename %q: column %q already exists", from, to)
	}
	t.columns[j] = to
	return nil
}

// Drop removes every column called name. Dropping a missing column is a
// no-op.
func (t *Table) Drop(name string) {
	keep := make([]int, 0, len(t.columns))
	for j, c := range t.columns {
		if c != name {
			keep = append(keep, j)
		}
	}
	if len(keep) == len(t.columns) {
		return
	}
	t.project(keep)
}

// Keep removes every column not in names.
func (t *Table) Keep(names map[string]bool) {
	keep := make([]int, 0, len(t.columns))
	for j, c := range t.columns {
		if names[c] {
			keep = append(keep, j)
		}
	}
	t.project(keep)
}

// DedupeColumns keeps only the first occurrence of each column name.
func (t *Table) DedupeColumns() {
	seen := make(map[string]bool, len(t.columns))
	keep := make([]int, 0, len(t.columns))
	for j, c := range t.columns {
		if !seen[c] {
			seen[c] = true
			keep = append(keep, j)
		}
	}
	t.project(keep)
}

func (t *Table) project(keep []int) {
	cols := make([]string, len(keep))
	for k, j := range keep {
		cols[k] = t.columns[j]
	}
	for i, r := range t.rows {
		nr := make([]string, len(keep))
		for k, j := range keep {
			nr[k] = r[j]
		}
		t.rows[i] = nr
	}
	t.columns = cols
}

// AddColumn appends a column filled with value. It fails when the column
// already exists.
func (t *Table) AddColumn(name, value string) error {
	if t.Has(name) {
		return fmt.Errorf("add %q: column already exists", name)
	}
	t.columns = append(t.columns, name)
	for i := range t.rows {
		t.rows[i] = append(t.rows[i], value)
	}
	return nil
}

// Apply replaces every cell of column name with fn(cell).
func (t *Table) Apply(name string, fn func(string) string) error {
	j := t.Index(name)
	if j < 0 {
		return fmt.Errorf("column %q not found", name)
	}
	for _, r := range t.rows {
		r[j] = fn(r[j])
	}
	return nil
}

// Coalesce fills empty cells of target from the sources, in order. The
// target keeps priority: a non-empty target cell is never overwritten.
func (t *Table) Coalesce(target string, sources []string) error {
	tj := t.Index(target)
	if tj < 0 {
		return fmt.Errorf("coalesce: column %q not found", target)
	}
	idx := make([]int, 0, len(sources))
	for _, s := range sources {
		j := t.Index(s)
		if j < 0 {
			return fmt.Errorf("coalesce: column %q not found", s)
		}
		idx = append(idx, j)
	}
	for _, r := range t.rows {
		if !IsNull(r[tj]) {
			continue
		}
		for _, j := range idx {
			if !IsNull(r[j]) {
				r[tj] = r[j]
				break
			}
		}
	}
	return nil
}

// IsNull reports whether a cell counts as missing. Besides empty strings
// this covers the textual nulls spreadsheet and dataframe exports write.
func IsNull(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "nan", "null", "none", "na", "n/a", "<na>":
		return true
	}
	return false
}

// NonNull returns the trimmed non-null values of vs.
func NonNull(vs []string) []string {
	out := make([]string, 0, len(vs))
	for _, v := range vs {
		if !IsNull(v) {
			out = append(out, strings.TrimSpace(v))
		}
	}
	return out
}
