package accumulator

import (
	"database/sql"

	"github.com/LeJamon/goLedgerApply/internal/storage/relationaldb"
)

// scanKeys reads rows of key columns, followed by an inserted flag when
// withFlag is set, and closes rows.
func scanKeys(rows *sql.Rows, shape *relationaldb.Shape, fn func(key relationaldb.Row, inserted bool), withFlag bool) error {
	defer rows.Close()

	cols := shape.Keys()
	for rows.Next() {
		dest := make([]any, 0, len(cols)+1)
		for _, c := range cols {
			if c.Kind == relationaldb.Text {
				dest = append(dest, new(string))
			} else {
				dest = append(dest, new(int64))
			}
		}
		var inserted bool
		if withFlag {
			dest = append(dest, &inserted)
		}
		if err := rows.Scan(dest...); err != nil {
			return relationaldb.NewQueryError("flush_scan", "scan keys", err)
		}

		key := make(relationaldb.Row, len(cols))
		for i := range cols {
			switch v := dest[i].(type) {
			case *string:
				key[i] = *v
			case *int64:
				key[i] = *v
			}
		}
		fn(key, inserted)
	}
	if err := rows.Err(); err != nil {
		return relationaldb.NewQueryError("flush_scan", "read keys", err)
	}
	return nil
}
