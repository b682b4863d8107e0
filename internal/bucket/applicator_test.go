package bucket

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/LeJamon/goLedgerApply/internal/core/ledger/entry"
	"github.com/LeJamon/goLedgerApply/internal/core/ledger/entrycache"
	"github.com/LeJamon/goLedgerApply/internal/core/ledger/entryframe"
	"github.com/LeJamon/goLedgerApply/internal/storage/relationaldb"
	"github.com/LeJamon/goLedgerApply/internal/storage/relationaldb/mock"
	"github.com/LeJamon/goLedgerApply/internal/storage/relationaldb/sqlite"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

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
	cache, err := entrycache.New(entrycache.Config{Size: 256})
	require.NoError(t, err)
	return entryframe.NewStore(cache)
}

func runAll(t *testing.T, app *Applicator) int {
	t.Helper()
	calls := 0
	for app.HasMore() {
		require.NoError(t, app.Advance(context.Background()))
		calls++
	}
	return calls
}

func TestApplicator_Chunking(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)

	entries := make([]Entry, 1000)
	for i := range entries {
		entries[i] = Live(account(i, int64(i)))
	}
	b := New(entries)

	app := NewApplicator(db, b.Iterator(), newStore(t), DefaultConfig())
	assert.Equal(t, 4, runAll(t, app))
	assert.False(t, app.HasMore())
	assert.Equal(t, uint64(1000), app.Applied())
	assert.Len(t, app.LastChanges().Added, 1000-3*DefaultChunkSize)

	n, err := entryframe.CountObjects(ctx, db, entry.TypeAccount)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), n)

	// Exhausted applicators do nothing.
	require.NoError(t, app.Advance(ctx))
	assert.Equal(t, uint64(1000), app.Applied())
}

func TestApplicator_ReportsProgress(t *testing.T) {
	tests := []struct {
		name       string
		instrument bool
		debug      int
	}{
		{"coarse", false, 0},
		{"instrumented", true, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.DebugLevel)

			entries := make([]Entry, 1000)
			for i := range entries {
				entries[i] = Live(account(i, int64(i)))
			}
			config := DefaultConfig()
			config.ProgressInterval = 512
			config.Instrument = tt.instrument

			app := NewApplicator(openDB(t), New(entries).Iterator(), newStore(t), config, WithLogger(zap.New(core)))
			runAll(t, app)

			// 512 is reached by the 2nd chunk, then exhaustion.
			progress := logs.FilterMessage("Applying bucket").All()
			require.Len(t, progress, 1)
			assert.Equal(t, uint64(512), progress[0].ContextMap()["entries"])

			done := logs.FilterMessage("Bucket applied").All()
			require.Len(t, done, 1)
			assert.Equal(t, uint64(1000), done[0].ContextMap()["entries"])

			assert.Equal(t, tt.debug, logs.FilterMessage("Advanced bucket applicator").Len())
		})
	}
}

func TestApplicator_BatchingModes(t *testing.T) {
	for _, mode := range []Batching{BatchDirect, BatchAccumulate, BatchStaging} {
		t.Run(mode.String(), func(t *testing.T) {
			ctx := context.Background()
			db := openDB(t)
			store := newStore(t)
			config := DefaultConfig()
			config.Batching = mode

			seed := New([]Entry{Live(account(1, 10)), Live(account(2, 20)), Live(account(3, 30))})
			runAll(t, NewApplicator(db, seed.Iterator(), store, config))

			// Prime the cache with the pre-write value of account 1.
			loaded, err := store.Load(ctx, db, account(1, 0).Key())
			require.NoError(t, err)
			require.NotNil(t, loaded)

			config.LedgerSeq = 9
			diff := New([]Entry{
				Live(account(1, 11)),
				Dead(account(2, 0).Key()),
				Dead(account(7, 0).Key()),
				Live(account(4, 40)),
			})
			app := NewApplicator(db, diff.Iterator(), store, config)
			assert.Equal(t, 1, runAll(t, app))

			changes := app.LastChanges()
			assert.Equal(t, []entry.LedgerKey{account(4, 0).Key()}, changes.Added)
			assert.Equal(t, []entry.LedgerKey{account(1, 0).Key()}, changes.Modified)
			assert.Equal(t, []entry.LedgerKey{account(2, 0).Key(), account(7, 0).Key()}, changes.Deleted)

			got, err := store.Load(ctx, db, account(1, 0).Key())
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, int64(11), got.Data.(*entry.AccountEntry).Balance)
			assert.Equal(t, uint32(9), got.LastModifiedLedgerSeq)

			gone, err := store.Exists(ctx, db, account(2, 0).Key())
			require.NoError(t, err)
			assert.False(t, gone)

			n, err := entryframe.CountObjects(ctx, db, entry.TypeAccount)
			require.NoError(t, err)
			assert.Equal(t, uint64(3), n)

			// The bucket itself is never stamped.
			assert.Equal(t, uint32(1), diff.Entries()[0].Live.LastModifiedLedgerSeq)
		})
	}
}

func TestApplicator_FailedChunkLeavesStorageUnchanged(t *testing.T) {
	for _, mode := range []Batching{BatchDirect, BatchAccumulate, BatchStaging} {
		t.Run(mode.String(), func(t *testing.T) {
			ctx := context.Background()
			db := openDB(t)
			config := DefaultConfig()
			config.Batching = mode

			b := New([]Entry{
				Live(account(1, 10)),
				Live(account(2, 20)),
				{Kind: DeadEntry, Dead: entry.LedgerKey{Type: entry.TypeData, Account: "GACC00003"}},
			})
			app := NewApplicator(db, b.Iterator(), newStore(t), config)

			require.Error(t, app.Advance(ctx))
			assert.True(t, app.HasMore())
			assert.Zero(t, app.Applied())

			n, err := entryframe.CountObjects(ctx, db, entry.TypeAccount)
			require.NoError(t, err)
			assert.Zero(t, n)

			// The retry starts again from the first entry of the chunk.
			require.Error(t, app.Advance(ctx))
			assert.True(t, app.HasMore())
		})
	}
}

func TestApplicator_CanceledContext(t *testing.T) {
	ctrl := gomock.NewController(t)
	db := mock.NewMockDatabase(ctrl)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	b := New([]Entry{Live(account(1, 1))})
	app := NewApplicator(db, b.Iterator(), newStore(t), DefaultConfig())
	assert.ErrorIs(t, app.Advance(ctx), context.Canceled)
	assert.True(t, app.HasMore())
}

func TestApplicator_BeginFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	db := mock.NewMockDatabase(ctrl)
	boom := errors.New("connection refused")
	db.EXPECT().Begin(gomock.Any()).Return(nil, boom)

	b := New([]Entry{Live(account(1, 1))})
	app := NewApplicator(db, b.Iterator(), newStore(t), DefaultConfig())
	assert.ErrorIs(t, app.Advance(context.Background()), boom)
	assert.True(t, app.HasMore())
}

func TestApplicator_WriteFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	db := mock.NewMockDatabase(ctrl)
	store := newStore(t)

	first, second := account(1, 0).Key(), account(2, 0).Key()
	store.PutCachedEntry(second, account(2, 20))

	boom := errors.New("disk I/O error")
	failing := mock.NewMockTx(ctrl)
	gomock.InOrder(
		db.EXPECT().Begin(gomock.Any()).Return(failing, nil),
		failing.EXPECT().Exec(gomock.Any(), gomock.Any(), gomock.Any()).Return(int64(1), nil),
		failing.EXPECT().Exec(gomock.Any(), gomock.Any(), gomock.Any()).Return(int64(0), boom),
		failing.EXPECT().Rollback(gomock.Any()).Return(nil),
	)

	b := New([]Entry{Dead(first), Dead(second)})
	app := NewApplicator(db, b.Iterator(), store, DefaultConfig())

	err := app.Advance(ctx)
	require.ErrorIs(t, err, boom)
	assert.True(t, app.HasMore())
	assert.Zero(t, app.Applied())
	_, known := store.GetCachedEntry(second)
	assert.False(t, known)

	ok := mock.NewMockTx(ctrl)
	gomock.InOrder(
		db.EXPECT().Begin(gomock.Any()).Return(ok, nil),
		ok.EXPECT().Exec(gomock.Any(), gomock.Any(), gomock.Any()).Return(int64(1), nil).Times(2),
		ok.EXPECT().Commit(gomock.Any()).Return(nil),
		db.EXPECT().ClearStatementCache().Return(nil),
	)

	require.NoError(t, app.Advance(ctx))
	assert.False(t, app.HasMore())
	assert.Equal(t, uint64(2), app.Applied())
	assert.Equal(t, []entry.LedgerKey{first, second}, app.LastChanges().Deleted)
}

func TestApplicator_CommitFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	db := mock.NewMockDatabase(ctrl)
	tx := mock.NewMockTx(ctrl)

	boom := errors.New("database is locked")
	gomock.InOrder(
		db.EXPECT().Begin(gomock.Any()).Return(tx, nil),
		tx.EXPECT().Exec(gomock.Any(), gomock.Any(), gomock.Any()).Return(int64(1), nil),
		tx.EXPECT().Commit(gomock.Any()).Return(boom),
		tx.EXPECT().Rollback(gomock.Any()).Return(nil),
	)

	b := New([]Entry{Dead(account(1, 0).Key())})
	app := NewApplicator(db, b.Iterator(), newStore(t), DefaultConfig())
	require.ErrorIs(t, app.Advance(context.Background()), boom)
	assert.True(t, app.HasMore())
	assert.Empty(t, app.LastChanges().Deleted)
}
