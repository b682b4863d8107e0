// Package sqlite is the SQLite backend of the relational ledger store. It
// has no upsert feedback, so writers probe for existence before choosing
// between insert and update, and vector statements bind multi-row VALUES
// lists.
package sqlite

import (
	"errors"
	"fmt"

	"github.com/LeJamon/goLedgerApply/internal/storage/relationaldb"
)

// maxVariables is SQLITE_MAX_VARIABLE_NUMBER for SQLite 3.32 and later.
const maxVariables = 32766

// Dialect renders SQLite statements.
type Dialect struct{}

func (Dialect) Name() string { return relationaldb.DriverSQLite }

func (Dialect) BulkCapable() bool { return false }

// Rebind rewrites $N as ?N, SQLite's numbered positional form.
func (Dialect) Rebind(query string) string { return relationaldb.RebindQuestion(query) }

// MaxBatchRows keeps one VALUES list under the bound parameter limit.
func (Dialect) MaxBatchRows(s *relationaldb.Shape) int {
	return maxVariables / len(s.Columns)
}

func (Dialect) UpsertInserted(*relationaldb.Shape) (string, error) {
	return "", errors.New("sqlite: upsert with inserted feedback is not supported")
}

func (d Dialect) UpsertMany(s *relationaldb.Shape, rows []relationaldb.Row) (relationaldb.Statement, error) {
	values, args, err := d.values(s, s.Columns, rows)
	if err != nil {
		return relationaldb.Statement{}, err
	}
	return relationaldb.Statement{
		Query: fmt.Sprintf("INSERT INTO %s (%s) VALUES %s %s",
			s.Table, s.Names(s.Columns, ", "), values, relationaldb.OnConflictUpdate(s)),
		Args: args,
	}, nil
}

func (d Dialect) InsertMany(s *relationaldb.Shape, rows []relationaldb.Row) (relationaldb.Statement, error) {
	values, args, err := d.values(s, s.Columns, rows)
	if err != nil {
		return relationaldb.Statement{}, err
	}
	return relationaldb.Statement{
		Query: fmt.Sprintf("INSERT INTO %s (%s) VALUES %s", s.Table, s.Names(s.Columns, ", "), values),
		Args:  args,
	}, nil
}

func (d Dialect) DeleteMany(s *relationaldb.Shape, keys []relationaldb.Row) (relationaldb.Statement, error) {
	values, args, err := d.values(s, s.Keys(), keys)
	if err != nil {
		return relationaldb.Statement{}, err
	}
	return relationaldb.Statement{
		Query: fmt.Sprintf("DELETE FROM %s WHERE (%s) IN (VALUES %s)", s.Table, s.Names(s.Keys(), ", "), values),
		Args:  args,
	}, nil
}

func (d Dialect) SelectKeys(s *relationaldb.Shape, keys []relationaldb.Row) (relationaldb.Statement, error) {
	values, args, err := d.values(s, s.Keys(), keys)
	if err != nil {
		return relationaldb.Statement{}, err
	}
	names := s.Names(s.Keys(), ", ")
	return relationaldb.Statement{
		Query: fmt.Sprintf("SELECT %s FROM %s WHERE (%s) IN (VALUES %s)", names, s.Table, names, values),
		Args:  args,
	}, nil
}

// values renders a VALUES list with the rows' arguments flattened row-major.
func (d Dialect) values(s *relationaldb.Shape, cols []relationaldb.Column, rows []relationaldb.Row) (string, []any, error) {
	if len(rows) == 0 {
		return "", nil, fmt.Errorf("%w: empty batch", relationaldb.ErrBatchShapeMismatch)
	}
	if len(rows) > d.MaxBatchRows(s) {
		return "", nil, fmt.Errorf("sqlite: %d rows exceed the %d row batch limit", len(rows), d.MaxBatchRows(s))
	}
	vecs, err := relationaldb.Vectors(cols, rows)
	if err != nil {
		return "", nil, err
	}
	args := make([]any, 0, len(rows)*len(cols))
	for r := range rows {
		for c := range cols {
			args = append(args, vecs[c][r])
		}
	}
	return relationaldb.ValuesList(len(rows), len(cols)), args, nil
}
