package table

import (
	"errors"
	"fmt"
	"strings"
)

// NotAvailable is stored in place of any value missing from a source record.
const NotAvailable = "N/A"

// ErrNoColumns is returned by Project when the selection is empty. It marks
// the "nothing selected" state rather than a failure.
var ErrNoColumns = errors.New("no columns selected")

// SchemaError reports a table whose shape does not fit the operation, such
// as an uploaded supplement without a join column.
type SchemaError struct {
	Column string
	Reason string
	Err    error
}

func (e *SchemaError) Error() string {
	msg := "schema error"
	if e.Column != "" {
		msg += fmt.Sprintf(" (column %q)", e.Column)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SchemaError) Unwrap() error { return e.Err }

// UnknownColumnError lists selected columns the table does not have.
type UnknownColumnError struct {
	Columns []string
}

func (e *UnknownColumnError) Error() string {
	return fmt.Sprintf("unknown columns: %s", strings.Join(e.Columns, ", "))
}

// Table is an ordered set of string rows sharing one column list.
// Row order is insertion order and duplicate rows are kept.
type Table struct {
	columns []string
	index   map[string]int
	rows    [][]string
}

// New creates an empty table with the given columns. Column names must be
// unique and non-empty.
func New(columns ...string) (*Table, error) {
	t := &Table{
		columns: make([]string, len(columns)),
		index:   make(map[string]int, len(columns)),
	}
	copy(t.columns, columns)

	for i, c := range columns {
		if c == "" {
			return nil, &SchemaError{Reason: fmt.Sprintf("column %d has an empty name", i+1)}
		}
		if _, dup := t.index[c]; dup {
			return nil, &SchemaError{Column: c, Reason: "duplicate column name"}
		}
		t.index[c] = i
	}
	return t, nil
}

// MustNew is like New but panics on invalid columns. Meant for fixed schemas.
func MustNew(columns ...string) *Table {
	t, err := New(columns...)
	if err != nil {
		panic(err)
	}
	return t
}

// Columns returns a copy of the column names in table order.
func (t *Table) Columns() []string {
	out := make([]string, len(t.columns))
	copy(out, t.columns)
	return out
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.rows) }

// HasColumn reports whether name is one of the table's columns.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.index[name]
	return ok
}

// ColumnIndex returns the position of name, or -1.
func (t *Table) ColumnIndex(name string) int {
	if i, ok := t.index[name]; ok {
		return i
	}
	return -1
}

// Append adds a row. The number of values must match the column count.
func (t *Table) Append(values ...string) error {
	if len(values) != len(t.columns) {
		return fmt.Errorf("row has %d values, table has %d columns", len(values), len(t.columns))
	}
	row := make([]string, len(values))
	copy(row, values)
	t.rows = append(t.rows, row)
	return nil
}

// Row returns a copy of row i.
func (t *Table) Row(i int) []string {
	out := make([]string, len(t.rows[i]))
	copy(out, t.rows[i])
	return out
}

// Rows returns a copy of every row.
func (t *Table) Rows() [][]string {
	out := make([][]string, len(t.rows))
	for i := range t.rows {
		out[i] = t.Row(i)
	}
	return out
}

// Value returns the cell at row i under column name.
func (t *Table) Value(i int, name string) (string, bool) {
	c, ok := t.index[name]
	if !ok || i < 0 || i >= len(t.rows) {
		return "", false
	}
	return t.rows[i][c], true
}

// Record returns row i keyed by column name.
func (t *Table) Record(i int) map[string]string {
	rec := make(map[string]string, len(t.columns))
	for c, name := range t.columns {
		rec[name] = t.rows[i][c]
	}
	return rec
}

// Project restricts the table to the selected columns. The result keeps the
// table's own column order regardless of selection order.
func (t *Table) Project(columns []string) (*Table, error) {
	if len(columns) == 0 {
		return nil, ErrNoColumns
	}

	want := make(map[string]struct{}, len(columns))
	var unknown []string
	for _, c := range columns {
		if _, ok := t.index[c]; !ok {
			unknown = append(unknown, c)
			continue
		}
		want[c] = struct{}{}
	}
	if len(unknown) > 0 {
		return nil, &UnknownColumnError{Columns: unknown}
	}

	var keep []int
	var names []string
	for i, c := range t.columns {
		if _, ok := want[c]; ok {
			keep = append(keep, i)
			names = append(names, c)
		}
	}

	out := MustNew(names...)
	out.rows = make([][]string, 0, len(t.rows))
	for _, r := range t.rows {
		row := make([]string, len(keep))
		for j, i := range keep {
			row[j] = r[i]
		}
		out.rows = append(out.rows, row)
	}
	return out, nil
}

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	out := MustNew(t.columns...)
	out.rows = t.Rows()
	return out
}
