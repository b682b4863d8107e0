package entryframe

import (
	"context"
	"fmt"

	"github.com/LeJamon/goLedgerApply/internal/core/ledger/entry"
	"github.com/LeJamon/goLedgerApply/internal/storage/relationaldb"
)

// CreateSchema creates every entry table, its bulk staging twin and its
// lastmodified index when they do not exist yet.
func CreateSchema(ctx context.Context, sess relationaldb.Session) error {
	for _, tb := range tables {
		for _, name := range []string{tb.shape.Table, tb.shape.Staging().Table} {
			ddl := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t\t%s\n\t)", name, tb.columns)
			if _, err := sess.Exec(ctx, ddl); err != nil {
				return relationaldb.NewSchemaError("create_schema", "create table "+name, err)
			}
		}
		idx := fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_lastmodified ON %s (lastmodified)",
			tb.shape.Table, tb.shape.Table)
		if _, err := sess.Exec(ctx, idx); err != nil {
			return relationaldb.NewSchemaError("create_schema", "create index on "+tb.shape.Table, err)
		}
	}
	return nil
}

// DropAll drops and recreates every entry table.
func DropAll(ctx context.Context, sess relationaldb.Session) error {
	for _, tb := range tables {
		for _, name := range []string{tb.shape.Table, tb.shape.Staging().Table} {
			if _, err := sess.Exec(ctx, "DROP TABLE IF EXISTS "+name); err != nil {
				return relationaldb.NewSchemaError("drop_all", "drop table "+name, err)
			}
		}
	}
	return CreateSchema(ctx, sess)
}

// CountObjects counts the stored entries of type t.
func CountObjects(ctx context.Context, sess relationaldb.Session, t entry.Type) (uint64, error) {
	tb, err := tableFor(t)
	if err != nil {
		return 0, err
	}
	return count(ctx, sess, "SELECT COUNT(*) FROM "+tb.shape.Table)
}

// CountObjectsInRange counts the entries of type t last modified within
// [first, last].
func CountObjectsInRange(ctx context.Context, sess relationaldb.Session, t entry.Type, first, last uint32) (uint64, error) {
	tb, err := tableFor(t)
	if err != nil {
		return 0, err
	}
	return count(ctx, sess,
		fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE lastmodified >= $1 AND lastmodified <= $2", tb.shape.Table),
		int64(first), int64(last))
}

func count(ctx context.Context, sess relationaldb.Session, query string, args ...any) (uint64, error) {
	rows, err := sess.Query(ctx, query, args...)
	if err != nil {
		return 0, relationaldb.NewQueryError("count_objects", "count failed", err)
	}
	defer rows.Close()

	var n int64
	if rows.Next() {
		if err := rows.Scan(&n); err != nil {
			return 0, relationaldb.NewQueryError("count_objects", "scan count", err)
		}
	}
	if err := rows.Err(); err != nil {
		return 0, relationaldb.NewQueryError("count_objects", "count failed", err)
	}
	return uint64(n), nil
}
