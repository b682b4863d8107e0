package entry

import (
	"errors"
	"fmt"
)

// Type represents a ledger entry type
type Type uint8

// All ledger entry types stored by this node. The numeric values are part of
// the persisted key encoding and must never be reordered.
const (
	TypeAccount   Type = 0
	TypeTrustLine Type = 1
	TypeOffer     Type = 2
	TypeData      Type = 3
)

// ErrUnknownEntryType is returned when a key or entry carries a type outside
// the closed set above.
var ErrUnknownEntryType = errors.New("unknown ledger entry type")

// String returns the string representation of the Type
func (t Type) String() string {
	switch t {
	case TypeAccount:
		return "Account"
	case TypeTrustLine:
		return "TrustLine"
	case TypeOffer:
		return "Offer"
	case TypeData:
		return "Data"
	default:
		return fmt.Sprintf("Unknown(%#x)", uint8(t))
	}
}

// Valid reports whether t is one of the known entry types.
func (t Type) Valid() bool {
	return t <= TypeData
}

// Data is the type-specific payload of a LedgerEntry. The set of
// implementations is closed: AccountEntry, TrustLineEntry, OfferEntry and
// DataEntry. Callers dispatch with a type switch.
type Data interface {
	Type() Type
	Key() LedgerKey
	Validate() error

	clone() Data
}

// LedgerEntry is one row of ledger state.
type LedgerEntry struct {
	LastModifiedLedgerSeq uint32
	Data                  Data
}

// New wraps a payload into a LedgerEntry.
func New(data Data, lastModified uint32) *LedgerEntry {
	return &LedgerEntry{LastModifiedLedgerSeq: lastModified, Data: data}
}

// Type returns the entry's type.
func (e *LedgerEntry) Type() Type {
	return e.Data.Type()
}

// Key derives the entry's LedgerKey.
func (e *LedgerEntry) Key() LedgerKey {
	return e.Data.Key()
}

// Validate checks the payload's invariants.
func (e *LedgerEntry) Validate() error {
	if e == nil || e.Data == nil {
		return errors.New("ledger entry has no data")
	}
	return e.Data.Validate()
}

// Clone returns a deep copy. Cached snapshots are clones so that callers
// mutating a loaded entry never alter the cache.
func (e *LedgerEntry) Clone() *LedgerEntry {
	if e == nil {
		return nil
	}
	out := &LedgerEntry{LastModifiedLedgerSeq: e.LastModifiedLedgerSeq}
	if e.Data != nil {
		out.Data = e.Data.clone()
	}
	return out
}

// Liabilities are amounts reserved against a balance or limit by
// outstanding offers.
type Liabilities struct {
	Buying  int64 `json:"buying"`
	Selling int64 `json:"selling"`
}

// AccountEntry is a native account root.
type AccountEntry struct {
	AccountID     AccountID    `json:"accountId"`
	Balance       int64        `json:"balance"`
	SeqNum        int64        `json:"seqNum"`
	NumSubEntries uint32       `json:"numSubEntries"`
	Flags         uint32       `json:"flags"`
	HomeDomain    string       `json:"homeDomain,omitempty"`
	Liabilities   *Liabilities `json:"liabilities,omitempty"`
}

func (a *AccountEntry) Type() Type     { return TypeAccount }
func (a *AccountEntry) Key() LedgerKey { return AccountKey(a.AccountID) }

func (a *AccountEntry) Validate() error {
	if err := a.AccountID.Validate(); err != nil {
		return err
	}
	if a.Balance < 0 {
		return fmt.Errorf("account balance must be non-negative, got %d", a.Balance)
	}
	if len(a.HomeDomain) > 32 {
		return errors.New("home domain longer than 32 bytes")
	}
	return nil
}

func (a *AccountEntry) clone() Data {
	c := *a
	if a.Liabilities != nil {
		l := *a.Liabilities
		c.Liabilities = &l
	}
	return &c
}

// TrustLineEntry is an account's holding of a credit asset.
type TrustLineEntry struct {
	AccountID   AccountID    `json:"accountId"`
	Asset       Asset        `json:"asset"`
	Balance     int64        `json:"balance"`
	Limit       int64        `json:"limit"`
	Flags       uint32       `json:"flags"`
	Liabilities *Liabilities `json:"liabilities,omitempty"`
}

func (t *TrustLineEntry) Type() Type     { return TypeTrustLine }
func (t *TrustLineEntry) Key() LedgerKey { return TrustLineKey(t.AccountID, t.Asset) }

func (t *TrustLineEntry) Validate() error {
	if err := t.AccountID.Validate(); err != nil {
		return err
	}
	if err := t.Asset.Validate(); err != nil {
		return err
	}
	if t.Asset.IsNative() {
		return errors.New("trust line cannot hold the native asset")
	}
	if t.Limit <= 0 {
		return fmt.Errorf("trust line limit must be positive, got %d", t.Limit)
	}
	if t.Balance < 0 || t.Balance > t.Limit {
		return fmt.Errorf("trust line balance %d outside [0, %d]", t.Balance, t.Limit)
	}
	return nil
}

func (t *TrustLineEntry) clone() Data {
	c := *t
	if t.Liabilities != nil {
		l := *t.Liabilities
		c.Liabilities = &l
	}
	return &c
}

// OfferEntry is a standing order on the exchange.
type OfferEntry struct {
	SellerID AccountID `json:"sellerId"`
	OfferID  int64     `json:"offerId"`
	Selling  Asset     `json:"selling"`
	Buying   Asset     `json:"buying"`
	Amount   int64     `json:"amount"`
	PriceN   int32     `json:"priceN"`
	PriceD   int32     `json:"priceD"`
	Flags    uint32    `json:"flags"`
}

func (o *OfferEntry) Type() Type     { return TypeOffer }
func (o *OfferEntry) Key() LedgerKey { return OfferKey(o.SellerID, o.OfferID) }

func (o *OfferEntry) Validate() error {
	if err := o.SellerID.Validate(); err != nil {
		return err
	}
	if err := o.Selling.Validate(); err != nil {
		return err
	}
	if err := o.Buying.Validate(); err != nil {
		return err
	}
	if o.Amount <= 0 {
		return fmt.Errorf("offer amount must be positive, got %d", o.Amount)
	}
	if o.PriceN <= 0 || o.PriceD <= 0 {
		return errors.New("offer price must be positive")
	}
	return nil
}

func (o *OfferEntry) clone() Data {
	c := *o
	return &c
}

// DataEntry is a named blob attached to an account.
type DataEntry struct {
	AccountID AccountID `json:"accountId"`
	Name      string    `json:"name"`
	Value     []byte    `json:"value"`
}

// MaxDataValueLen bounds DataEntry.Value.
const MaxDataValueLen = 64

func (d *DataEntry) Type() Type     { return TypeData }
func (d *DataEntry) Key() LedgerKey { return DataKey(d.AccountID, d.Name) }

func (d *DataEntry) Validate() error {
	if err := d.AccountID.Validate(); err != nil {
		return err
	}
	if len(d.Name) == 0 || len(d.Name) > 64 {
		return fmt.Errorf("data name length must be in [1, 64], got %d", len(d.Name))
	}
	if len(d.Value) > MaxDataValueLen {
		return fmt.Errorf("data value longer than %d bytes", MaxDataValueLen)
	}
	return nil
}

func (d *DataEntry) clone() Data {
	c := *d
	c.Value = append([]byte(nil), d.Value...)
	return &c
}
