// Package table implements the in-memory record table shared by every
// pipeline stage: ordered rows of typed scalar cells. Column types are fixed
// when the table is built and enforced on every write.
package table

import (
	"fmt"
	"sort"
	"strings"
)

// Column describes one table column.
type Column struct {
	Name string
	Type Type
}

// Table is an ordered sequence of rows over a fixed set of typed columns.
// A Table is local to one pipeline invocation and is not safe for
// concurrent mutation.
type Table struct {
	cols  []Column
	index map[string]int
	rows  [][]Value

	// notes carries per-row annotations (e.g. validation findings kept by a
	// best-effort transform). Keyed by row index.
	notes map[int][]string
}

// New builds an empty table with the given column set.
func New(cols []Column) (*Table, error) {
	index := make(map[string]int, len(cols))
	for i, c := range cols {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return nil, fmt.Errorf("column %d: name is required", i)
		}
		if _, dup := index[name]; dup {
			return nil, fmt.Errorf("duplicate column %q", name)
		}
		cols[i].Name = name
		index[name] = i
	}
	return &Table{cols: cols, index: index}, nil
}

// FromRecords builds a table from loosely-typed records (decoded JSON
// objects or API response items). Columns appear in first-seen order and
// each column takes the narrowest type shared by its non-null values.
func FromRecords(records []map[string]any) (*Table, error) {
	var order []string
	seen := map[string]bool{}
	for _, rec := range records {
		keys := make([]string, 0, len(rec))
		for k := range rec {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if !seen[k] {
				seen[k] = true
				order = append(order, k)
			}
		}
	}

	raw := make([][]string, len(records))
	for i, rec := range records {
		row := make([]string, len(order))
		for j, k := range order {
			row[j] = formatAny(rec[k])
		}
		raw[i] = row
	}
	return FromRaw(order, raw)
}

// FromRaw builds a table from a header and raw string rows, inferring each
// column type from its non-empty cells.
func FromRaw(header []string, rows [][]string) (*Table, error) {
	cols := make([]Column, len(header))
	for j, name := range header {
		samples := make([]string, 0, len(rows))
		for _, row := range rows {
			if j < len(row) {
				samples = append(samples, row[j])
			}
		}
		cols[j] = Column{Name: name, Type: InferType(samples)}
	}

	t, err := New(cols)
	if err != nil {
		return nil, err
	}
	for i, row := range rows {
		vals := make([]Value, len(cols))
		for j := range cols {
			raw := ""
			if j < len(row) {
				raw = row[j]
			}
			v, err := Parse(raw, cols[j].Type)
			if err != nil {
				return nil, fmt.Errorf("row %d column %q: %w", i, cols[j].Name, err)
			}
			vals[j] = v
		}
		if err := t.AppendRow(vals); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func formatAny(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		if x {
			return "true"
		}
		return "false"
	case float64:
		return Number(x).Format()
	default:
		return fmt.Sprintf("%v", x)
	}
}

// Columns returns the column set in order.
func (t *Table) Columns() []Column {
	out := make([]Column, len(t.cols))
	copy(out, t.cols)
	return out
}

// ColumnNames returns the column names in order.
func (t *Table) ColumnNames() []string {
	out := make([]string, len(t.cols))
	for i, c := range t.cols {
		out[i] = c.Name
	}
	return out
}

// ColumnIndex reports the position of a named column.
func (t *Table) ColumnIndex(name string) (int, bool) {
	i, ok := t.index[name]
	return i, ok
}

func (t *Table) NumRows() int { return len(t.rows) }
func (t *Table) NumCols() int { return len(t.cols) }

// AppendRow adds one row. Cell types must match column types; null cells of
// any type are accepted and normalized to the column type.
func (t *Table) AppendRow(vals []Value) error {
	if len(vals) != len(t.cols) {
		return fmt.Errorf("row has %d cells, want %d", len(vals), len(t.cols))
	}
	row := make([]Value, len(vals))
	for j, v := range vals {
		if v.IsNull() {
			row[j] = Null(t.cols[j].Type)
			continue
		}
		if v.Type() != t.cols[j].Type {
			return fmt.Errorf("column %q: cell type %s, want %s", t.cols[j].Name, v.Type(), t.cols[j].Type)
		}
		row[j] = v
	}
	t.rows = append(t.rows, row)
	return nil
}

// Value returns the cell at (row, column name).
func (t *Table) Value(row int, col string) (Value, bool) {
	j, ok := t.index[col]
	if !ok || row < 0 || row >= len(t.rows) {
		return Value{}, false
	}
	return t.rows[row][j], true
}

// Number returns the numeric cell at (row, col); ok=false for null,
// out-of-range, or non-numeric cells.
func (t *Table) Number(row int, col string) (float64, bool) {
	v, ok := t.Value(row, col)
	if !ok {
		return 0, false
	}
	return v.NumberValue()
}

// String returns the string rendering of the cell at (row, col).
func (t *Table) String(row int, col string) (string, bool) {
	v, ok := t.Value(row, col)
	if !ok {
		return "", false
	}
	return v.StringValue()
}

// Row returns a copy of one row.
func (t *Table) Row(i int) []Value {
	if i < 0 || i >= len(t.rows) {
		return nil
	}
	out := make([]Value, len(t.rows[i]))
	copy(out, t.rows[i])
	return out
}

// SetValue replaces one cell. The new value must be null or match the
// column type.
func (t *Table) SetValue(row int, col string, v Value) error {
	j, ok := t.index[col]
	if !ok {
		return fmt.Errorf("unknown column %q", col)
	}
	if row < 0 || row >= len(t.rows) {
		return fmt.Errorf("row %d out of range", row)
	}
	if v.IsNull() {
		t.rows[row][j] = Null(t.cols[j].Type)
		return nil
	}
	if v.Type() != t.cols[j].Type {
		return fmt.Errorf("column %q: cell type %s, want %s", col, v.Type(), t.cols[j].Type)
	}
	t.rows[row][j] = v
	return nil
}

// AddColumn appends a new column with the given cells (one per existing row).
func (t *Table) AddColumn(col Column, vals []Value) error {
	name := strings.TrimSpace(col.Name)
	if name == "" {
		return fmt.Errorf("column name is required")
	}
	if _, dup := t.index[name]; dup {
		return fmt.Errorf("duplicate column %q", name)
	}
	if len(vals) != len(t.rows) {
		return fmt.Errorf("column %q has %d cells, want %d", name, len(vals), len(t.rows))
	}
	for i, v := range vals {
		if !v.IsNull() && v.Type() != col.Type {
			return fmt.Errorf("column %q row %d: cell type %s, want %s", name, i, v.Type(), col.Type)
		}
	}
	t.index[name] = len(t.cols)
	t.cols = append(t.cols, Column{Name: name, Type: col.Type})
	for i := range t.rows {
		v := vals[i]
		if v.IsNull() {
			v = Null(col.Type)
		}
		t.rows[i] = append(t.rows[i], v)
	}
	return nil
}

// RenameColumns rewrites every column name through fn. Renames that collide
// fail without modifying the table.
func (t *Table) RenameColumns(fn func(string) string) error {
	next := make([]Column, len(t.cols))
	index := make(map[string]int, len(t.cols))
	for i, c := range t.cols {
		name := strings.TrimSpace(fn(c.Name))
		if name == "" {
			return fmt.Errorf("column %q: renamed to empty name", c.Name)
		}
		if _, dup := index[name]; dup {
			return fmt.Errorf("column rename collision on %q", name)
		}
		next[i] = Column{Name: name, Type: c.Type}
		index[name] = i
	}
	t.cols = next
	t.index = index
	return nil
}

// Clone returns a deep copy, including row annotations.
func (t *Table) Clone() *Table {
	cols := make([]Column, len(t.cols))
	copy(cols, t.cols)
	out, _ := New(cols)
	out.rows = make([][]Value, len(t.rows))
	for i, row := range t.rows {
		r := make([]Value, len(row))
		copy(r, row)
		out.rows[i] = r
	}
	if len(t.notes) > 0 {
		out.notes = make(map[int][]string, len(t.notes))
		for i, ns := range t.notes {
			out.notes[i] = append([]string(nil), ns...)
		}
	}
	return out
}

// AnnotateRow attaches a note to a row (e.g. a preserved warning finding).
func (t *Table) AnnotateRow(row int, note string) {
	if row < 0 || row >= len(t.rows) {
		return
	}
	if t.notes == nil {
		t.notes = make(map[int][]string)
	}
	t.notes[row] = append(t.notes[row], note)
}

// RowNotes returns the annotations attached to a row.
func (t *Table) RowNotes(row int) []string {
	if t.notes == nil {
		return nil
	}
	return append([]string(nil), t.notes[row]...)
}

// Equal reports structural equality: same columns in the same order with the
// same typed cell values. Annotations are ignored.
func (t *Table) Equal(o *Table) bool {
	if t.NumCols() != o.NumCols() || t.NumRows() != o.NumRows() {
		return false
	}
	for i := range t.cols {
		if t.cols[i] != o.cols[i] {
			return false
		}
	}
	for i := range t.rows {
		for j := range t.rows[i] {
			if !t.rows[i][j].Equal(o.rows[i][j]) {
				return false
			}
		}
	}
	return true
}

// SumColumn computes the null-safe sum of a numeric column: null cells count
// as zero, and ok=false only when every cell is null (or the column has no
// rows). A missing or non-numeric column reports ok=false.
func (t *Table) SumColumn(col string) (float64, bool) {
	j, ok := t.index[col]
	if !ok || t.cols[j].Type != TypeNumber {
		return 0, false
	}
	total := 0.0
	any := false
	for _, row := range t.rows {
		if n, set := row[j].NumberValue(); set {
			total += n
			any = true
		}
	}
	return total, any
}
