package relationaldb

import (
	"fmt"
	"strings"
)

// Statement is a rendered query and its bound arguments. Returning
// statements are run with Query and yield one row per written row: the key
// columns followed by a boolean that is true when the row was inserted.
type Statement struct {
	Query     string
	Args      []any
	Returning bool
}

// Dialect abstracts the SQL differences between backends. Callers write SQL
// with PostgreSQL-style $N placeholders; sessions rebind them.
type Dialect interface {
	// Name is the driver name the dialect was built for.
	Name() string

	// BulkCapable reports support for atomic upsert with inserted-vs-updated
	// feedback and for array-bound vector statements. Callers branch on it
	// only to choose between upsert-with-feedback and probe-then-write.
	BulkCapable() bool

	// Rebind rewrites $N placeholders into the backend's form.
	Rebind(query string) string

	// MaxBatchRows bounds how many rows of s one vector statement may bind.
	MaxBatchRows(s *Shape) int

	// UpsertInserted returns a single-row upsert yielding one boolean that is
	// true when the row was inserted. Only bulk-capable dialects support it.
	UpsertInserted(s *Shape) (string, error)

	// UpsertMany binds rows to one insert-or-update statement.
	UpsertMany(s *Shape, rows []Row) (Statement, error)

	// InsertMany binds rows to one plain insert statement.
	InsertMany(s *Shape, rows []Row) (Statement, error)

	// DeleteMany deletes every row whose key is in keys.
	DeleteMany(s *Shape, keys []Row) (Statement, error)

	// SelectKeys selects the key columns of every stored row whose key is
	// in keys.
	SelectKeys(s *Shape, keys []Row) (Statement, error)
}

// SelectSQL selects every column of the row matching the key ($1..$k).
func SelectSQL(s *Shape) string {
	return fmt.Sprintf("SELECT %s FROM %s WHERE %s",
		s.Names(s.Columns, ", "), s.Table, keyPredicate(s, 1))
}

// ExistsSQL probes for the row matching the key.
func ExistsSQL(s *Shape) string {
	return fmt.Sprintf("SELECT 1 FROM %s WHERE %s LIMIT 1", s.Table, keyPredicate(s, 1))
}

// InsertSQL inserts one full row.
func InsertSQL(s *Shape) string {
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		s.Table, s.Names(s.Columns, ", "), placeholders(1, len(s.Columns)))
}

// UpdateSQL updates the non-key columns of one row. Arguments are the full
// row, key columns first.
func UpdateSQL(s *Shape) string {
	sets := make([]string, 0, len(s.Columns)-s.KeyColumns)
	for i, c := range s.Values() {
		sets = append(sets, fmt.Sprintf("%s = $%d", c.Name, s.KeyColumns+i+1))
	}
	return fmt.Sprintf("UPDATE %s SET %s WHERE %s",
		s.Table, strings.Join(sets, ", "), keyPredicate(s, 1))
}

// UpsertSQL inserts one full row or updates the stored row with the same key.
func UpsertSQL(s *Shape) string {
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) %s",
		s.Table, s.Names(s.Columns, ", "), placeholders(1, len(s.Columns)), onConflictUpdate(s))
}

// DeleteSQL deletes the row matching the key.
func DeleteSQL(s *Shape) string {
	return fmt.Sprintf("DELETE FROM %s WHERE %s", s.Table, keyPredicate(s, 1))
}

// MergeStagingSQL merges the staging twin of s into s: stored rows are
// updated first, then absent rows are inserted, then staging is cleared.
func MergeStagingSQL(s *Shape) []string {
	st := s.Staging()
	sets := make([]string, 0, len(s.Columns)-s.KeyColumns)
	for _, c := range s.Values() {
		sets = append(sets, fmt.Sprintf("%s = b.%s", c.Name, c.Name))
	}
	join := make([]string, 0, s.KeyColumns)
	for _, c := range s.Keys() {
		join = append(join, fmt.Sprintf("%s.%s = b.%s", s.Table, c.Name, c.Name))
	}
	cols := s.Names(s.Columns, ", ")
	return []string{
		fmt.Sprintf("UPDATE %s SET %s FROM %s AS b WHERE %s",
			s.Table, strings.Join(sets, ", "), st.Table, strings.Join(join, " AND ")),
		fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s WHERE true ON CONFLICT DO NOTHING",
			s.Table, cols, cols, st.Table),
		fmt.Sprintf("DELETE FROM %s", st.Table),
	}
}

// RebindQuestion rewrites $N placeholders as ?N.
func RebindQuestion(query string) string {
	if !strings.Contains(query, "$") {
		return query
	}
	b := []byte(query)
	for i := 0; i+1 < len(b); i++ {
		if b[i] == '$' && b[i+1] >= '0' && b[i+1] <= '9' {
			b[i] = '?'
		}
	}
	return string(b)
}

func keyPredicate(s *Shape, first int) string {
	parts := make([]string, 0, s.KeyColumns)
	for i, c := range s.Keys() {
		parts = append(parts, fmt.Sprintf("%s = $%d", c.Name, first+i))
	}
	return strings.Join(parts, " AND ")
}

func onConflictUpdate(s *Shape) string {
	sets := make([]string, 0, len(s.Columns)-s.KeyColumns)
	for _, c := range s.Values() {
		sets = append(sets, fmt.Sprintf("%s = excluded.%s", c.Name, c.Name))
	}
	return fmt.Sprintf("ON CONFLICT (%s) DO UPDATE SET %s",
		s.Names(s.Keys(), ", "), strings.Join(sets, ", "))
}

// OnConflictUpdate renders the upsert clause for s, for dialects building
// their own vector statements.
func OnConflictUpdate(s *Shape) string {
	return onConflictUpdate(s)
}

func placeholders(first, n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("$%d", first+i)
	}
	return strings.Join(parts, ", ")
}

// ValuesList renders n rows of width placeholders: ($1, $2), ($3, $4), ...
func ValuesList(n, width int) string {
	rows := make([]string, n)
	for i := range rows {
		rows[i] = "(" + placeholders(i*width+1, width) + ")"
	}
	return strings.Join(rows, ", ")
}
