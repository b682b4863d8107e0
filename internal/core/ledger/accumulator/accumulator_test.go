package accumulator

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/LeJamon/goLedgerApply/internal/core/ledger/delta"
	"github.com/LeJamon/goLedgerApply/internal/core/ledger/entry"
	"github.com/LeJamon/goLedgerApply/internal/core/ledger/entrycache"
	"github.com/LeJamon/goLedgerApply/internal/core/ledger/entryframe"
	"github.com/LeJamon/goLedgerApply/internal/metrics"
	"github.com/LeJamon/goLedgerApply/internal/storage/relationaldb"
	"github.com/LeJamon/goLedgerApply/internal/storage/relationaldb/sqlite"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const issuer = entry.AccountID("GISSUER")

var usd = entry.CreditAsset("USD", issuer)

// op is one write: a put of e, or a delete of k.
type op struct {
	e *entry.LedgerEntry
	k entry.LedgerKey
}

func put(e *entry.LedgerEntry) op { return op{e: e} }

func del(k entry.LedgerKey) op { return op{k: k} }

func account(i int) entry.AccountID { return entry.AccountID(fmt.Sprintf("GACC%04d", i)) }

func line(i int, balance int64) *entry.LedgerEntry {
	return entry.New(&entry.TrustLineEntry{
		AccountID: account(i),
		Asset:     usd,
		Balance:   balance,
		Limit:     1000,
		Flags:     entry.TrustLineAuthorized,
	}, uint32(i+1))
}

func data(i int, value string) *entry.LedgerEntry {
	return entry.New(&entry.DataEntry{AccountID: account(i), Name: "note", Value: []byte(value)}, 3)
}

func openDB(t *testing.T) *relationaldb.SQLDatabase {
	t.Helper()
	ctx := context.Background()
	db, err := sqlite.NewDatabase(relationaldb.SQLiteConfig(filepath.Join(t.TempDir(), "ledger.db")), nil)
	require.NoError(t, err)
	require.NoError(t, db.Open(ctx))
	t.Cleanup(func() { db.Close(ctx) })
	require.NoError(t, entryframe.CreateSchema(ctx, db))
	return db
}

func newStore(t *testing.T) *entryframe.Store {
	t.Helper()
	cache, err := entrycache.New(entrycache.Config{Size: 128})
	require.NoError(t, err)
	return entryframe.NewStore(cache)
}

// apply seeds storage directly, then runs ops in one transaction through
// acc, or directly when acc is nil. It returns the delta and a dump of
// every table.
func apply(t *testing.T, acc *Accumulator, seed []*entry.LedgerEntry, ops []op) (delta.Changes, []string) {
	t.Helper()
	ctx := context.Background()
	db := openDB(t)
	store := newStore(t)

	for _, e := range seed {
		require.NoError(t, store.StoreAddOrChange(ctx, delta.New(0), db, e.Clone()))
	}

	if acc != nil {
		store = store.Using(acc)
	}
	tx, err := db.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback(ctx)

	d := delta.New(0)
	for _, o := range ops {
		child := d.Child()
		if o.e != nil {
			require.NoError(t, store.StoreAddOrChange(ctx, child, tx, o.e.Clone()))
		} else {
			require.NoError(t, store.StoreDelete(ctx, child, tx, o.k))
		}
		child.Commit()
	}
	if acc != nil {
		require.NoError(t, acc.Flush(ctx, tx))
		assert.Zero(t, acc.Len())
	}
	require.NoError(t, tx.Commit(ctx))

	return d.Changes(), dump(t, db)
}

func dump(t *testing.T, s relationaldb.Session) []string {
	t.Helper()
	var out []string
	for _, typ := range entryframe.Types() {
		shape, err := entryframe.Shape(typ)
		require.NoError(t, err)
		rows, err := s.Query(context.Background(), fmt.Sprintf("SELECT %s FROM %s ORDER BY %s",
			shape.Names(shape.Columns, ", "), shape.Table, shape.Names(shape.Keys(), ", ")))
		require.NoError(t, err)
		for rows.Next() {
			vals := make([]sql.NullString, len(shape.Columns))
			dest := make([]any, len(vals))
			for i := range vals {
				dest[i] = &vals[i]
			}
			require.NoError(t, rows.Scan(dest...))
			parts := make([]string, len(vals))
			for i, v := range vals {
				parts[i] = "NULL"
				if v.Valid {
					parts[i] = v.String
				}
			}
			out = append(out, shape.Table+":"+strings.Join(parts, "|"))
		}
		require.NoError(t, rows.Err())
		require.NoError(t, rows.Close())
	}
	return out
}

func assertEquivalent(t *testing.T, seed []*entry.LedgerEntry, ops []op) {
	t.Helper()
	wantChanges, wantRows := apply(t, nil, seed, ops)

	for _, mode := range []Mode{ModeVector, ModeStaging} {
		t.Run(mode.String(), func(t *testing.T) {
			changes, rows := apply(t, New(WithMode(mode)), seed, ops)
			assert.Equal(t, wantChanges, changes)
			assert.Equal(t, wantRows, rows)
		})
	}
}

func TestAccumulator_BatchEquivalence(t *testing.T) {
	for _, n := range []int{0, 1, 7, 300} {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			var seed []*entry.LedgerEntry
			for i := 0; i < n; i += 2 {
				seed = append(seed, line(i, 1))
			}
			seed = append(seed, data(n+1, "old"))

			var ops []op
			for i := 0; i < n; i++ {
				switch i % 5 {
				case 3:
					ops = append(ops, del(entry.TrustLineKey(account(i), usd)))
				case 4:
					ops = append(ops, put(data(i, "v")))
				default:
					ops = append(ops, put(line(i, int64(i))))
				}
			}
			ops = append(ops, del(entry.DataKey(account(n+1), "note")))
			assertEquivalent(t, seed, ops)
		})
	}
}

func TestAccumulator_SameKeySequences(t *testing.T) {
	existing := []*entry.LedgerEntry{line(1, 5)}
	k1, k2 := entry.TrustLineKey(account(1), usd), entry.TrustLineKey(account(2), usd)

	tests := []struct {
		name string
		ops  []op
	}{
		{"put put existing", []op{put(line(1, 6)), put(line(1, 7))}},
		{"put put new", []op{put(line(2, 6)), put(line(2, 7))}},
		{"put delete existing", []op{put(line(1, 6)), del(k1)}},
		{"put delete new", []op{put(line(2, 6)), del(k2)}},
		{"delete put existing", []op{del(k1), put(line(1, 9))}},
		{"delete put new", []op{del(k2), put(line(2, 9))}},
		{"delete put delete", []op{del(k1), put(line(1, 9)), del(k1)}},
		{"put delete put new", []op{put(line(2, 1)), del(k2), put(line(2, 2))}},
		{"delete delete", []op{del(k1), del(k1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertEquivalent(t, existing, tt.ops)
		})
	}
}

func TestAccumulator_GroupsIntoVectorStatements(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)
	m := metrics.NewMetrics(prometheus.NewRegistry())
	acc := New(WithMetrics(m))
	store := newStore(t).Using(acc)

	d := delta.New(0)
	for i := 0; i < 300; i++ {
		require.NoError(t, store.StoreAddOrChange(ctx, d, db, line(i, 1)))
	}
	for i := 300; i < 310; i++ {
		require.NoError(t, store.StoreDelete(ctx, d, db, entry.TrustLineKey(account(i), usd)))
	}
	assert.Equal(t, 310, acc.Len())
	require.NoError(t, acc.Flush(ctx, db))

	assert.Equal(t, float64(1), testutil.ToFloat64(m.FlushStatements.WithLabelValues("trustlines", "upsert")))
	assert.Equal(t, float64(300), testutil.ToFloat64(m.FlushRows.WithLabelValues("trustlines", "upsert")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.FlushStatements.WithLabelValues("trustlines", "delete")))
	assert.Len(t, d.Changes().Added, 300)
	assert.Len(t, d.Changes().Deleted, 10)

	n, err := entryframe.CountObjects(ctx, db, entry.TypeTrustLine)
	require.NoError(t, err)
	assert.Equal(t, uint64(300), n)
}

func TestAccumulator_ReadsSeePendingWrites(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)
	direct := newStore(t)
	require.NoError(t, direct.StoreAdd(ctx, delta.New(0), db, line(1, 5)))

	acc := New()
	store := direct.Using(acc)
	d := delta.New(0)

	// Warm the cache with the stored value.
	before, err := store.Load(ctx, db, entry.TrustLineKey(account(1), usd))
	require.NoError(t, err)
	require.NotNil(t, before)

	require.NoError(t, store.StoreAddOrChange(ctx, d, db, line(1, 50)))
	got, err := store.Load(ctx, db, entry.TrustLineKey(account(1), usd))
	require.NoError(t, err)
	assert.Equal(t, int64(50), got.Data.(*entry.TrustLineEntry).Balance)

	require.NoError(t, store.StoreDelete(ctx, d, db, entry.TrustLineKey(account(1), usd)))
	found, err := store.Exists(ctx, db, entry.TrustLineKey(account(1), usd))
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, acc.Flush(ctx, db))
	gone, err := direct.Load(ctx, db, entry.TrustLineKey(account(1), usd))
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestAccumulator_ModeViolations(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)
	direct := newStore(t)
	require.NoError(t, direct.StoreAdd(ctx, delta.New(0), db, line(1, 5)))

	t.Run("insert over staged put", func(t *testing.T) {
		store := direct.Using(New())
		require.NoError(t, store.StoreAddOrChange(ctx, delta.New(0), db, line(2, 1)))
		err := store.StoreAdd(ctx, delta.New(0), db, line(2, 2))
		assert.ErrorIs(t, err, relationaldb.ErrAffectedRows)
	})

	t.Run("update over staged delete", func(t *testing.T) {
		store := direct.Using(New())
		require.NoError(t, store.StoreDelete(ctx, delta.New(0), db, entry.TrustLineKey(account(1), usd)))
		err := store.StoreChange(ctx, delta.New(0), db, line(1, 2))
		assert.ErrorIs(t, err, relationaldb.ErrAffectedRows)
	})

	for _, mode := range []Mode{ModeVector, ModeStaging} {
		t.Run("insert of stored row fails at flush/"+mode.String(), func(t *testing.T) {
			acc := New(WithMode(mode))
			require.NoError(t, direct.Using(acc).StoreAdd(ctx, delta.New(0), db, line(1, 7)))

			tx, err := db.Begin(ctx)
			require.NoError(t, err)
			defer tx.Rollback(ctx)
			err = acc.Flush(ctx, tx)
			assert.ErrorIs(t, err, relationaldb.ErrAffectedRows)
			assert.True(t, relationaldb.IsFatal(err))
		})

		t.Run("update of missing row fails at flush/"+mode.String(), func(t *testing.T) {
			acc := New(WithMode(mode))
			require.NoError(t, direct.Using(acc).StoreChange(ctx, delta.New(0), db, line(9, 7)))

			tx, err := db.Begin(ctx)
			require.NoError(t, err)
			defer tx.Rollback(ctx)
			assert.ErrorIs(t, acc.Flush(ctx, tx), relationaldb.ErrAffectedRows)
		})
	}
}

func TestAccumulator_RejectsMalformedRows(t *testing.T) {
	shape, err := entryframe.Shape(entry.TypeTrustLine)
	require.NoError(t, err)

	err = New().Put(context.Background(), nil, delta.New(0), entryframe.Write{
		Shape: shape,
		Mode:  entryframe.ModeUpsert,
		Entry: line(1, 1),
		Row:   relationaldb.Row{"GA", "GI"},
	})
	assert.ErrorIs(t, err, relationaldb.ErrBatchShapeMismatch)
}

func TestAccumulator_Discard(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)
	acc := New()
	store := newStore(t).Using(acc)

	require.NoError(t, store.StoreAddOrChange(ctx, delta.New(0), db, line(1, 1)))
	assert.Equal(t, 1, acc.Len())
	acc.Discard()
	assert.Zero(t, acc.Len())
	require.NoError(t, acc.Flush(ctx, db))

	n, err := entryframe.CountObjects(ctx, db, entry.TypeTrustLine)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestChunks(t *testing.T) {
	assert.Nil(t, chunks([]int(nil), 3))
	assert.Equal(t, [][]int{{1, 2}, {3, 4}, {5}}, chunks([]int{1, 2, 3, 4, 5}, 2))
	assert.Equal(t, [][]int{{1, 2, 3}}, chunks([]int{1, 2, 3}, 0))
}
