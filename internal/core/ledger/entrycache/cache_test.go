package entrycache

import (
	"testing"

	"github.com/LeJamon/goLedgerApply/internal/core/ledger/entry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func trustLine(account entry.AccountID, balance int64, lastModified uint32) *entry.LedgerEntry {
	return entry.New(&entry.TrustLineEntry{
		AccountID: account,
		Asset:     entry.CreditAsset("USD", "GI"),
		Balance:   balance,
		Limit:     1000,
	}, lastModified)
}

func TestCache_PositiveAndNegative(t *testing.T) {
	c, err := New(Config{Size: 16})
	require.NoError(t, err)

	present := trustLine("GA", 10, 1)
	absent := entry.TrustLineKey("GB", entry.CreditAsset("USD", "GI"))

	_, known := c.Get(present.Key())
	assert.False(t, known)

	c.Put(present.Key(), present)
	c.Put(absent, nil)

	got, known := c.Get(present.Key())
	require.True(t, known)
	assert.Equal(t, present, got)

	got, known = c.Get(absent)
	assert.True(t, known)
	assert.Nil(t, got)
	assert.True(t, c.Exists(absent))

	stats := c.Stats()
	assert.Equal(t, uint64(2), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
	assert.Equal(t, 2, stats.Len)
}

func TestCache_SnapshotsAreCopies(t *testing.T) {
	c, err := New(Config{})
	require.NoError(t, err)

	e := trustLine("GA", 10, 1)
	c.Put(e.Key(), e)
	e.Data.(*entry.TrustLineEntry).Balance = 99

	got, _ := c.Get(e.Key())
	assert.Equal(t, int64(10), got.Data.(*entry.TrustLineEntry).Balance)

	got.Data.(*entry.TrustLineEntry).Balance = 50
	again, _ := c.Get(e.Key())
	assert.Equal(t, int64(10), again.Data.(*entry.TrustLineEntry).Balance)
}

func TestCache_Flush(t *testing.T) {
	c, err := New(Config{})
	require.NoError(t, err)

	e := trustLine("GA", 10, 1)
	c.Put(e.Key(), e)
	c.Flush(e.Key())

	_, known := c.Get(e.Key())
	assert.False(t, known)
}

func TestCache_EraseIf(t *testing.T) {
	c, err := New(Config{})
	require.NoError(t, err)

	old := trustLine("GA", 1, 5)
	recent := trustLine("GB", 1, 20)
	missing := entry.AccountKey("GC")
	c.Put(old.Key(), old)
	c.Put(recent.Key(), recent)
	c.Put(missing, nil)

	n := c.EraseIf(func(_ entry.LedgerKey, e *entry.LedgerEntry) bool {
		return e != nil && e.LastModifiedLedgerSeq >= 10
	})

	assert.Equal(t, 1, n)
	assert.True(t, c.Exists(old.Key()))
	assert.False(t, c.Exists(recent.Key()))
	assert.True(t, c.Exists(missing))
}

func TestCache_Eviction(t *testing.T) {
	c, err := New(Config{Size: 2})
	require.NoError(t, err)

	for _, a := range []entry.AccountID{"GA", "GB", "GC"} {
		c.Put(entry.AccountKey(a), nil)
	}

	assert.Equal(t, 2, c.Len())
	assert.False(t, c.Exists(entry.AccountKey("GA")))
}
