package bucket

import (
	"fmt"
	"io"
	"testing"

	"github.com/LeJamon/goLedgerApply/internal/core/ledger/entry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func account(i int, balance int64) *entry.LedgerEntry {
	return entry.New(&entry.AccountEntry{
		AccountID: entry.AccountID(fmt.Sprintf("GACC%05d", i)),
		Balance:   balance,
		SeqNum:    1,
	}, 1)
}

func TestNew_SortsAndKeepsLastPerKey(t *testing.T) {
	b := New([]Entry{
		Live(account(3, 30)),
		Live(account(1, 10)),
		Dead(account(2, 0).Key()),
		Live(account(1, 11)),
		Live(account(2, 20)),
	})

	require.Equal(t, 3, b.Len())
	got := b.Entries()
	assert.Equal(t, account(1, 0).Key(), got[0].Key())
	assert.Equal(t, int64(11), got[0].Live.Data.(*entry.AccountEntry).Balance)
	assert.Equal(t, LiveEntry, got[1].Kind)
	assert.Equal(t, int64(20), got[1].Live.Data.(*entry.AccountEntry).Balance)
	assert.Equal(t, account(3, 0).Key(), got[2].Key())
}

func TestNew_OrdersAcrossTypes(t *testing.T) {
	data := entry.New(&entry.DataEntry{AccountID: "GACC00000", Name: "n", Value: []byte("v")}, 1)
	b := New([]Entry{Live(data), Live(account(9, 1))})
	assert.Equal(t, entry.TypeAccount, b.Entries()[0].Key().Type)
	assert.Equal(t, entry.TypeData, b.Entries()[1].Key().Type)
}

func TestIterator_CheckpointRewind(t *testing.T) {
	b := New([]Entry{Live(account(1, 1)), Live(account(2, 2)), Live(account(3, 3))})
	it := b.Iterator()
	defer it.Close()

	_, err := it.Next()
	require.NoError(t, err)
	it.Checkpoint()

	e, err := it.Next()
	require.NoError(t, err)
	assert.Equal(t, account(2, 0).Key(), e.Key())
	_, err = it.Next()
	require.NoError(t, err)
	assert.False(t, it.HasNext())

	_, err = it.Next()
	assert.ErrorIs(t, err, io.EOF)

	require.NoError(t, it.Rewind())
	assert.True(t, it.HasNext())
	e, err = it.Next()
	require.NoError(t, err)
	assert.Equal(t, account(2, 0).Key(), e.Key())
}

func TestEntry_Validate(t *testing.T) {
	assert.NoError(t, Live(account(1, 1)).Validate())
	assert.NoError(t, Dead(account(1, 1).Key()).Validate())
	assert.ErrorIs(t, Entry{Kind: LiveEntry}.Validate(), ErrEmptyEntry)
	assert.Error(t, Dead(entry.LedgerKey{Type: entry.TypeAccount}).Validate())
	assert.Error(t, Entry{Kind: 7}.Validate())
}

func TestParseBatching(t *testing.T) {
	for _, b := range []Batching{BatchDirect, BatchAccumulate, BatchStaging} {
		got, err := ParseBatching(b.String())
		require.NoError(t, err)
		assert.Equal(t, b, got)
	}
	_, err := ParseBatching("bulk")
	assert.Error(t, err)
}
