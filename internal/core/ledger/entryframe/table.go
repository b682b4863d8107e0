package entryframe

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/LeJamon/goLedgerApply/internal/core/ledger/entry"
	"github.com/LeJamon/goLedgerApply/internal/storage/relationaldb"
)

var (
	// ErrIssuerTrustLine is returned when an issuer's own trust line is used
	// as a storage key. Issuer lines are synthetic and never persisted.
	ErrIssuerTrustLine = errors.New("issuer trust line is never stored")

	// ErrNativeTrustLine is returned when a trust line is requested for the
	// native asset.
	ErrNativeTrustLine = errors.New("no trust line exists for the native asset")
)

// scanner is satisfied by *sql.Rows and *sql.Row.
type scanner interface {
	Scan(dest ...any) error
}

// table binds an entry type to its relational layout. Rows are built in
// shape column order.
type table struct {
	typ   entry.Type
	shape *relationaldb.Shape

	// columns is the column list of the CREATE TABLE statement, formatted
	// with the table name.
	columns string

	row  func(e *entry.LedgerEntry) (relationaldb.Row, error)
	key  func(k entry.LedgerKey) (relationaldb.Row, error)
	scan func(sc scanner) (*entry.LedgerEntry, error)
}

var tables = []*table{accountsTable, trustLinesTable, offersTable, dataTable}

func tableFor(t entry.Type) (*table, error) {
	for _, tb := range tables {
		if tb.typ == t {
			return tb, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", entry.ErrUnknownEntryType, t)
}

// Shape returns the statement shape entries of type t are written with.
func Shape(t entry.Type) (*relationaldb.Shape, error) {
	tb, err := tableFor(t)
	if err != nil {
		return nil, err
	}
	return tb.shape, nil
}

// Types lists the stored entry types in schema order.
func Types() []entry.Type {
	out := make([]entry.Type, len(tables))
	for i, tb := range tables {
		out[i] = tb.typ
	}
	return out
}

// keyRow derives the storage key columns of k.
func keyRow(k entry.LedgerKey) (*table, relationaldb.Row, error) {
	tb, err := tableFor(k.Type)
	if err != nil {
		return nil, nil, err
	}
	key, err := tb.key(k)
	if err != nil {
		return nil, nil, err
	}
	return tb, key, nil
}

func liabilityColumns(l *entry.Liabilities) (any, any) {
	if l == nil {
		return nil, nil
	}
	return l.Buying, l.Selling
}

// liabilitiesFrom rebuilds the optional extension. Both columns are NULL or
// both are set; anything else is corrupt data.
func liabilitiesFrom(op string, buying, selling sql.NullInt64) (*entry.Liabilities, error) {
	switch {
	case !buying.Valid && !selling.Valid:
		return nil, nil
	case buying.Valid && selling.Valid:
		return &entry.Liabilities{Buying: buying.Int64, Selling: selling.Int64}, nil
	default:
		return nil, relationaldb.NewDataError(op, "liabilities columns must be both NULL or both set",
			relationaldb.ErrDataCorruption)
	}
}
