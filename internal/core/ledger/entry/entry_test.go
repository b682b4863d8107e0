package entry

import (
	"bytes"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestType_String(t *testing.T) {
	assert.Equal(t, "TrustLine", TypeTrustLine.String())
	assert.Equal(t, "Data", TypeData.String())
	assert.Equal(t, "Unknown(0x9)", Type(9).String())
	assert.False(t, Type(9).Valid())
}

func TestLedgerKey_BytesOrdering(t *testing.T) {
	usd := CreditAsset("USD", "GISSUER")
	keys := []LedgerKey{
		AccountKey("GA"),
		AccountKey("GB"),
		TrustLineKey("GA", usd),
		TrustLineKey("GA", CreditAsset("USDX", "GISSUER")),
		OfferKey("GA", -5),
		OfferKey("GA", 3),
		OfferKey("GA", 40),
		DataKey("GA", "alpha"),
		DataKey("GA", "alphb"),
	}

	for i := 1; i < len(keys); i++ {
		assert.Negative(t, bytes.Compare(keys[i-1].Bytes(), keys[i].Bytes()),
			"%s should sort before %s", keys[i-1], keys[i])
	}
}

func TestLedgerKey_BytesFollowNaturalOrder(t *testing.T) {
	keys := []LedgerKey{
		AccountKey("GBOB"),
		AccountKey("GALICE"),
		AccountKey("GAL"),
		TrustLineKey("GBOB", CreditAsset("USD", "GI")),
		TrustLineKey("GALICE", CreditAsset("USD", "GISSUER")),
		TrustLineKey("GALICE", CreditAsset("EUR", "GISSUER")),
		TrustLineKey("GALICE", CreditAsset("ZAR", "GI")),
		TrustLineKey("GALICE", CreditAsset("EURO1", "GISSUER")),
		TrustLineKey("GAL", CreditAsset("A", "GI")),
		DataKey("GA", "b"),
		DataKey("GA", "a\x00"),
		DataKey("GA", "a"),
	}
	want := []string{
		"Account/GAL",
		"Account/GALICE",
		"Account/GBOB",
		"TrustLine/GAL/A:GI",
		"TrustLine/GALICE/ZAR:GI",
		"TrustLine/GALICE/EUR:GISSUER",
		"TrustLine/GALICE/EURO1:GISSUER",
		"TrustLine/GALICE/USD:GISSUER",
		"TrustLine/GBOB/USD:GI",
		"Data/GA/a",
		"Data/GA/a\x00",
		"Data/GA/b",
	}

	sort.Slice(keys, func(i, j int) bool {
		return bytes.Compare(keys[i].Bytes(), keys[j].Bytes()) < 0
	})
	got := make([]string, len(keys))
	for i, k := range keys {
		got[i] = k.String()
	}
	assert.Equal(t, want, got)
}

func TestLedgerKey_Comparable(t *testing.T) {
	m := map[LedgerKey]int{}
	m[TrustLineKey("GA", CreditAsset("EUR", "GI"))] = 1
	m[TrustLineKey("GA", CreditAsset("EUR", "GI"))] = 2

	assert.Len(t, m, 1)
	assert.Equal(t, 2, m[TrustLineKey("GA", CreditAsset("EUR", "GI"))])
}

func TestLedgerKey_Validate(t *testing.T) {
	assert.NoError(t, TrustLineKey("GA", CreditAsset("EUR", "GI")).Validate())
	assert.Error(t, TrustLineKey("GA", NativeAsset()).Validate())
	assert.Error(t, DataKey("GA", "").Validate())
	assert.ErrorIs(t, LedgerKey{Type: 7, Account: "GA"}.Validate(), ErrUnknownEntryType)
}

func TestCreditAsset_Width(t *testing.T) {
	assert.Equal(t, AssetTypeCreditAlphanum4, CreditAsset("USD", "GI").Type)
	assert.Equal(t, AssetTypeCreditAlphanum12, CreditAsset("LONGCODE", "GI").Type)
	assert.Error(t, Asset{Type: AssetTypeCreditAlphanum4, Code: "TOOLONG", Issuer: "GI"}.Validate())
}

func TestTrustLineEntry_Validate(t *testing.T) {
	usd := CreditAsset("USD", "GI")

	t.Run("valid", func(t *testing.T) {
		tl := &TrustLineEntry{AccountID: "GA", Asset: usd, Balance: 10, Limit: 100}
		assert.NoError(t, tl.Validate())
	})

	t.Run("zero limit", func(t *testing.T) {
		tl := &TrustLineEntry{AccountID: "GA", Asset: usd, Limit: 0}
		assert.Error(t, tl.Validate())
	})

	t.Run("balance above limit", func(t *testing.T) {
		tl := &TrustLineEntry{AccountID: "GA", Asset: usd, Balance: 101, Limit: 100}
		assert.Error(t, tl.Validate())
	})

	t.Run("native asset", func(t *testing.T) {
		tl := &TrustLineEntry{AccountID: "GA", Asset: NativeAsset(), Limit: 100}
		assert.Error(t, tl.Validate())
	})
}

func TestLedgerEntry_CloneIsDeep(t *testing.T) {
	orig := New(&TrustLineEntry{
		AccountID:   "GA",
		Asset:       CreditAsset("USD", "GI"),
		Balance:     5,
		Limit:       10,
		Liabilities: &Liabilities{Buying: 1, Selling: 2},
	}, 7)

	cp := orig.Clone()
	cp.Data.(*TrustLineEntry).Balance = 9
	cp.Data.(*TrustLineEntry).Liabilities.Selling = 4

	tl := orig.Data.(*TrustLineEntry)
	assert.Equal(t, int64(5), tl.Balance)
	assert.Equal(t, int64(2), tl.Liabilities.Selling)
	assert.Equal(t, uint32(7), cp.LastModifiedLedgerSeq)

	data := New(&DataEntry{AccountID: "GA", Name: "n", Value: []byte{1, 2}}, 0)
	dcp := data.Clone()
	dcp.Data.(*DataEntry).Value[0] = 9
	assert.Equal(t, byte(1), data.Data.(*DataEntry).Value[0])
}

func TestWire(t *testing.T) {
	e := New(&DataEntry{AccountID: "GA", Name: "n", Value: []byte("v")}, 3)

	w, err := ToWire(e)
	require.NoError(t, err)
	assert.NotNil(t, w.Data)
	assert.Nil(t, w.TrustLine)

	back, err := FromWire(w)
	require.NoError(t, err)
	assert.Equal(t, e, back)

	_, err = FromWire(Wire{})
	assert.Error(t, err)

	_, err = FromWire(Wire{Data: &DataEntry{}, Account: &AccountEntry{}})
	assert.Error(t, err)
}
