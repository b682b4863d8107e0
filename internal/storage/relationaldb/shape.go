package relationaldb

import (
	"fmt"
	"strconv"
	"strings"
)

// ColumnKind is the Go-side type of a column's bound values.
type ColumnKind uint8

const (
	// Text columns bind string values.
	Text ColumnKind = iota
	// Int columns bind int64 values.
	Int
	// NullInt columns bind int64 values or nil.
	NullInt
)

func (k ColumnKind) String() string {
	switch k {
	case Text:
		return "text"
	case Int:
		return "int"
	case NullInt:
		return "nullint"
	default:
		return fmt.Sprintf("ColumnKind(%d)", uint8(k))
	}
}

// Column is one column of a Shape.
type Column struct {
	Name string
	Kind ColumnKind
}

// Shape is a statement shape: a table and its ordered column list. The first
// KeyColumns columns form the primary key. Every statement an entry type
// issues is derived from its Shape, so the SQL text for a shape never
// changes at run time.
type Shape struct {
	Table      string
	Columns    []Column
	KeyColumns int
}

// Keys returns the primary key columns.
func (s *Shape) Keys() []Column {
	return s.Columns[:s.KeyColumns]
}

// Values returns the non-key columns.
func (s *Shape) Values() []Column {
	return s.Columns[s.KeyColumns:]
}

// Names returns the column names joined with sep.
func (s *Shape) Names(cols []Column, sep string) string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return strings.Join(names, sep)
}

// Staging returns the shape of the table's bulk staging twin, which has the
// same columns under the name "<table>_bulk".
func (s *Shape) Staging() *Shape {
	return &Shape{Table: s.Table + "_bulk", Columns: s.Columns, KeyColumns: s.KeyColumns}
}

// Row is one row of bound values, in Shape column order. Values are string,
// int64, or nil for a NULL in a NullInt column.
type Row []any

// Key returns the primary key prefix of a full row.
func (s *Shape) Key(row Row) Row {
	return row[:s.KeyColumns]
}

// Check verifies that row carries one correctly typed value per column.
func (s *Shape) Check(row Row) error {
	return checkRow(s.Columns, row)
}

// CheckKey verifies a key-only row.
func (s *Shape) CheckKey(key Row) error {
	return checkRow(s.Keys(), key)
}

func checkRow(cols []Column, row Row) error {
	if len(row) != len(cols) {
		return fmt.Errorf("%w: %d values for %d columns", ErrBatchShapeMismatch, len(row), len(cols))
	}
	for i, c := range cols {
		switch v := row[i].(type) {
		case string:
			if c.Kind == Text {
				continue
			}
		case int64:
			if c.Kind == Int || c.Kind == NullInt {
				continue
			}
		case nil:
			if c.Kind == NullInt {
				continue
			}
		default:
			return fmt.Errorf("%w: column %s: unsupported value type %T", ErrBatchShapeMismatch, c.Name, v)
		}
		return fmt.Errorf("%w: column %s (%s) bound to %T", ErrBatchShapeMismatch, c.Name, c.Kind, row[i])
	}
	return nil
}

// Vectors transposes rows into one argument vector per column. Every row must
// match cols; a mismatch fails the whole batch.
func Vectors(cols []Column, rows []Row) ([][]any, error) {
	vecs := make([][]any, len(cols))
	for i := range vecs {
		vecs[i] = make([]any, 0, len(rows))
	}
	for n, row := range rows {
		if err := checkRow(cols, row); err != nil {
			return nil, fmt.Errorf("row %d: %w", n, err)
		}
		for i, v := range row {
			vecs[i] = append(vecs[i], v)
		}
	}
	return vecs, nil
}

// KeyString renders key values into a comparable map key. Values must be
// string or int64, as produced by Shape.Key or scanned from key columns.
func KeyString(key Row) string {
	var b strings.Builder
	for i, v := range key {
		if i > 0 {
			b.WriteByte(0)
		}
		switch v := v.(type) {
		case string:
			b.WriteString(v)
		case int64:
			b.WriteString(strconv.FormatInt(v, 10))
		default:
			fmt.Fprint(&b, v)
		}
	}
	return b.String()
}
