package postgres

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/LeJamon/goLedgerApply/internal/storage/relationaldb"
	"github.com/lib/pq"
)

// maxBatchRows bounds one UNNEST statement. Arrays carry no parameter limit;
// this only keeps single statements reasonably sized.
const maxBatchRows = 50000

// Dialect renders vector statements by binding one array per column and
// expanding them with UNNEST.
type Dialect struct {
	driver string
}

// NewDialect returns the dialect for a PostgreSQL driver name.
func NewDialect(driver string) Dialect {
	return Dialect{driver: driver}
}

func (d Dialect) Name() string { return d.driver }

// BulkCapable is always true: upserts report inserted-vs-updated through
// the xmax system column.
func (d Dialect) BulkCapable() bool { return true }

func (d Dialect) Rebind(query string) string { return query }

func (d Dialect) MaxBatchRows(*relationaldb.Shape) int { return maxBatchRows }

// UpsertInserted appends RETURNING (xmax = 0): xmax is zero only for a
// freshly inserted tuple.
func (d Dialect) UpsertInserted(s *relationaldb.Shape) (string, error) {
	return relationaldb.UpsertSQL(s) + " RETURNING (xmax = 0)", nil
}

func (d Dialect) UpsertMany(s *relationaldb.Shape, rows []relationaldb.Row) (relationaldb.Statement, error) {
	src, args, err := d.unnest(s.Columns, rows)
	if err != nil {
		return relationaldb.Statement{}, err
	}
	return relationaldb.Statement{
		Query: fmt.Sprintf("INSERT INTO %s (%s) %s %s RETURNING %s, (xmax = 0)",
			s.Table, s.Names(s.Columns, ", "), src, relationaldb.OnConflictUpdate(s), s.Names(s.Keys(), ", ")),
		Args:      args,
		Returning: true,
	}, nil
}

func (d Dialect) InsertMany(s *relationaldb.Shape, rows []relationaldb.Row) (relationaldb.Statement, error) {
	src, args, err := d.unnest(s.Columns, rows)
	if err != nil {
		return relationaldb.Statement{}, err
	}
	return relationaldb.Statement{
		Query: fmt.Sprintf("INSERT INTO %s (%s) %s", s.Table, s.Names(s.Columns, ", "), src),
		Args:  args,
	}, nil
}

func (d Dialect) DeleteMany(s *relationaldb.Shape, keys []relationaldb.Row) (relationaldb.Statement, error) {
	src, args, err := d.unnest(s.Keys(), keys)
	if err != nil {
		return relationaldb.Statement{}, err
	}
	return relationaldb.Statement{
		Query: fmt.Sprintf("DELETE FROM %s WHERE (%s) IN (%s)", s.Table, s.Names(s.Keys(), ", "), src),
		Args:  args,
	}, nil
}

func (d Dialect) SelectKeys(s *relationaldb.Shape, keys []relationaldb.Row) (relationaldb.Statement, error) {
	src, args, err := d.unnest(s.Keys(), keys)
	if err != nil {
		return relationaldb.Statement{}, err
	}
	names := s.Names(s.Keys(), ", ")
	return relationaldb.Statement{
		Query: fmt.Sprintf("SELECT %s FROM %s WHERE (%s) IN (%s)", names, s.Table, names, src),
		Args:  args,
	}, nil
}

// unnest renders "SELECT * FROM UNNEST($1::text[], ...)" with one array
// argument per column. The text depends only on the columns, never on the
// row count.
func (d Dialect) unnest(cols []relationaldb.Column, rows []relationaldb.Row) (string, []any, error) {
	vecs, err := relationaldb.Vectors(cols, rows)
	if err != nil {
		return "", nil, err
	}
	casts := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, c := range cols {
		casts[i] = fmt.Sprintf("$%d::%s", i+1, arrayType(c.Kind))
		args[i] = d.array(c.Kind, vecs[i])
	}
	return "SELECT * FROM UNNEST(" + strings.Join(casts, ", ") + ")", args, nil
}

func arrayType(k relationaldb.ColumnKind) string {
	if k == relationaldb.Text {
		return "text[]"
	}
	return "bigint[]"
}

// array converts a column vector into the driver's array binding: lib/pq
// array wrappers, or plain slices for pgx which encodes them natively.
func (d Dialect) array(kind relationaldb.ColumnKind, vals []any) any {
	switch kind {
	case relationaldb.Text:
		out := make([]string, len(vals))
		for i, v := range vals {
			out[i] = v.(string)
		}
		if d.driver == relationaldb.DriverPGX {
			return out
		}
		return pq.StringArray(out)
	case relationaldb.Int:
		out := make([]int64, len(vals))
		for i, v := range vals {
			out[i] = v.(int64)
		}
		if d.driver == relationaldb.DriverPGX {
			return out
		}
		return pq.Int64Array(out)
	default:
		if d.driver == relationaldb.DriverPGX {
			out := make([]*int64, len(vals))
			for i, v := range vals {
				if n, ok := v.(int64); ok {
					out[i] = &n
				}
			}
			return out
		}
		out := make([]sql.NullInt64, len(vals))
		for i, v := range vals {
			if n, ok := v.(int64); ok {
				out[i] = sql.NullInt64{Int64: n, Valid: true}
			}
		}
		return pq.Array(out)
	}
}
