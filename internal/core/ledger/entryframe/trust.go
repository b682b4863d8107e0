package entryframe

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/LeJamon/goLedgerApply/internal/core/ledger/entry"
	"github.com/LeJamon/goLedgerApply/internal/core/protocol"
	"github.com/LeJamon/goLedgerApply/internal/storage/relationaldb"
)

// ErrLiabilitiesUnsupported is the panic value of liability accessors called
// below protocol.VersionLiabilities.
var ErrLiabilitiesUnsupported = errors.New("liabilities require a liabilities-aware protocol version")

// TrustFrame wraps a trust line entry with its mutation rules. Mutators
// return false and leave the line untouched when a bound would be broken.
//
// The issuer frame is a synthetic line an issuer holds in its own asset:
// always authorized, balance and limit at math.MaxInt64, no liabilities. It
// accepts every mutation as a no-op and is never stored.
type TrustFrame struct {
	entry  *entry.LedgerEntry
	line   *entry.TrustLineEntry
	issuer bool
}

// NewTrustFrame wraps a loaded trust line entry.
func NewTrustFrame(e *entry.LedgerEntry) (*TrustFrame, error) {
	tl, ok := e.Data.(*entry.TrustLineEntry)
	if !ok {
		return nil, fmt.Errorf("not a trust line: %s", e.Type())
	}
	return &TrustFrame{entry: e, line: tl}, nil
}

// NewTrustLine creates an unauthorized, empty line of account in asset.
func NewTrustLine(account entry.AccountID, asset entry.Asset, limit int64) *TrustFrame {
	tl := &entry.TrustLineEntry{AccountID: account, Asset: asset, Limit: limit}
	return &TrustFrame{entry: entry.New(tl, 0), line: tl}
}

// IssuerTrustFrame returns the synthetic line of asset's issuer. It never
// touches storage.
func IssuerTrustFrame(asset entry.Asset) *TrustFrame {
	tl := &entry.TrustLineEntry{
		AccountID: asset.Issuer,
		Asset:     asset,
		Balance:   math.MaxInt64,
		Limit:     math.MaxInt64,
		Flags:     entry.TrustLineAuthorized,
	}
	return &TrustFrame{entry: entry.New(tl, 0), line: tl, issuer: true}
}

// Entry returns the wrapped entry, for passing to the Store.
func (f *TrustFrame) Entry() *entry.LedgerEntry { return f.entry }

// Line returns the trust line payload.
func (f *TrustFrame) Line() *entry.TrustLineEntry { return f.line }

func (f *TrustFrame) Key() entry.LedgerKey { return f.line.Key() }

func (f *TrustFrame) IsIssuer() bool { return f.issuer }

func (f *TrustFrame) Balance() int64 { return f.line.Balance }

func (f *TrustFrame) Limit() int64 { return f.line.Limit }

func (f *TrustFrame) IsAuthorized() bool {
	return f.line.Flags&entry.TrustLineAuthorized != 0
}

// SetAuthorized sets or clears the authorized flag without checking the
// balance.
func (f *TrustFrame) SetAuthorized(authorized bool) {
	if authorized {
		f.line.Flags |= entry.TrustLineAuthorized
	} else {
		f.line.Flags &^= entry.TrustLineAuthorized
	}
}

// BuyingLiabilities panics below the liabilities protocol version.
func (f *TrustFrame) BuyingLiabilities(v protocol.Version) int64 {
	mustSupportLiabilities(v)
	if f.line.Liabilities == nil {
		return 0
	}
	return f.line.Liabilities.Buying
}

// SellingLiabilities panics below the liabilities protocol version.
func (f *TrustFrame) SellingLiabilities(v protocol.Version) int64 {
	mustSupportLiabilities(v)
	if f.line.Liabilities == nil {
		return 0
	}
	return f.line.Liabilities.Selling
}

// AddBalance adds delta to the balance if the result stays within
// [0, limit] and, from the liabilities version on, within
// [selling liabilities, limit - buying liabilities].
func (f *TrustFrame) AddBalance(delta int64, v protocol.Version) bool {
	if f.issuer || delta == 0 {
		return true
	}
	if !f.IsAuthorized() {
		return false
	}

	balance, ok := addBounded(f.line.Balance, delta, f.line.Limit)
	if !ok {
		return false
	}
	if v.SupportsLiabilities() {
		if balance < f.SellingLiabilities(v) {
			return false
		}
		if balance > f.line.Limit-f.BuyingLiabilities(v) {
			return false
		}
	}
	f.line.Balance = balance
	return true
}

// AddBuyingLiabilities keeps buying liabilities within [0, limit - balance].
func (f *TrustFrame) AddBuyingLiabilities(delta int64, v protocol.Version) bool {
	mustSupportLiabilities(v)
	if f.issuer || delta == 0 {
		return true
	}
	if !f.IsAuthorized() {
		return false
	}
	buying, ok := addBounded(f.BuyingLiabilities(v), delta, f.line.Limit-f.line.Balance)
	if !ok {
		return false
	}
	f.liabilities().Buying = buying
	return true
}

// AddSellingLiabilities keeps selling liabilities within [0, balance].
func (f *TrustFrame) AddSellingLiabilities(delta int64, v protocol.Version) bool {
	mustSupportLiabilities(v)
	if f.issuer || delta == 0 {
		return true
	}
	if !f.IsAuthorized() {
		return false
	}
	selling, ok := addBounded(f.SellingLiabilities(v), delta, f.line.Balance)
	if !ok {
		return false
	}
	f.liabilities().Selling = selling
	return true
}

// AvailableBalance is the balance not reserved by selling liabilities.
func (f *TrustFrame) AvailableBalance(v protocol.Version) int64 {
	if v.SupportsLiabilities() {
		return f.line.Balance - f.SellingLiabilities(v)
	}
	return f.line.Balance
}

// MinimumLimit is the lowest limit the line can be changed to.
func (f *TrustFrame) MinimumLimit(v protocol.Version) int64 {
	if v.SupportsLiabilities() {
		return f.line.Balance + f.BuyingLiabilities(v)
	}
	return f.line.Balance
}

// MaxAmountReceive is how much more the line can take in.
func (f *TrustFrame) MaxAmountReceive(v protocol.Version) int64 {
	if f.issuer {
		return math.MaxInt64
	}
	if !f.IsAuthorized() {
		return 0
	}
	amount := f.line.Limit - f.line.Balance
	if v.SupportsLiabilities() {
		amount -= f.BuyingLiabilities(v)
	}
	return amount
}

// liabilities initializes the extension to zero on first use.
func (f *TrustFrame) liabilities() *entry.Liabilities {
	if f.line.Liabilities == nil {
		f.line.Liabilities = &entry.Liabilities{}
	}
	return f.line.Liabilities
}

func mustSupportLiabilities(v protocol.Version) {
	if !v.SupportsLiabilities() {
		panic(fmt.Errorf("%w: version %d", ErrLiabilitiesUnsupported, v))
	}
}

// addBounded returns cur + delta when the sum lies in [0, upper].
func addBounded(cur, delta, upper int64) (int64, bool) {
	if delta > 0 && cur > math.MaxInt64-delta {
		return cur, false
	}
	if delta < 0 && cur < math.MinInt64-delta {
		return cur, false
	}
	next := cur + delta
	if next < 0 || next > upper {
		return cur, false
	}
	return next, true
}

// LoadTrustLine loads account's line in asset. The issuer's own line is
// the synthetic issuer frame; a missing line is (nil, nil).
func (s *Store) LoadTrustLine(ctx context.Context, sess relationaldb.Session, account entry.AccountID, asset entry.Asset) (*TrustFrame, error) {
	if asset.IsNative() {
		return nil, ErrNativeTrustLine
	}
	if account == asset.Issuer {
		return IssuerTrustFrame(asset), nil
	}
	e, err := s.Load(ctx, sess, entry.TrustLineKey(account, asset))
	if err != nil || e == nil {
		return nil, err
	}
	return NewTrustFrame(e)
}

// LoadLines loads every stored line of account. Range loads read storage
// directly and do not see writes still pending in an accumulator.
func LoadLines(ctx context.Context, sess relationaldb.Session, account entry.AccountID) ([]*TrustFrame, error) {
	return loadLines(ctx, sess,
		fmt.Sprintf("SELECT %s FROM trustlines WHERE accountid = $1 ORDER BY issuer, assetcode",
			trustLinesTable.shape.Names(trustLinesTable.shape.Columns, ", ")),
		string(account))
}

// LoadAllLines loads every stored trust line in key order.
func LoadAllLines(ctx context.Context, sess relationaldb.Session) ([]*TrustFrame, error) {
	return loadLines(ctx, sess,
		fmt.Sprintf("SELECT %s FROM trustlines ORDER BY accountid, issuer, assetcode",
			trustLinesTable.shape.Names(trustLinesTable.shape.Columns, ", ")))
}

func loadLines(ctx context.Context, sess relationaldb.Session, query string, args ...any) ([]*TrustFrame, error) {
	entries, err := queryEntries(ctx, sess, trustLinesTable, query, args...)
	if err != nil {
		return nil, err
	}
	out := make([]*TrustFrame, 0, len(entries))
	for _, e := range entries {
		f, err := NewTrustFrame(e)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}
