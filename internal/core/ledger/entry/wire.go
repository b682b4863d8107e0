package entry

import (
	"errors"
	"fmt"
)

// Wire is the flat, codec-friendly form of a LedgerEntry: exactly one of the
// payload pointers is set.
type Wire struct {
	LastModified uint32          `json:"lastModified" codec:"lastModified"`
	Account      *AccountEntry   `json:"account,omitempty" codec:"account,omitempty"`
	TrustLine    *TrustLineEntry `json:"trustLine,omitempty" codec:"trustLine,omitempty"`
	Offer        *OfferEntry     `json:"offer,omitempty" codec:"offer,omitempty"`
	Data         *DataEntry      `json:"data,omitempty" codec:"data,omitempty"`
}

// ToWire flattens e.
func ToWire(e *LedgerEntry) (Wire, error) {
	w := Wire{LastModified: e.LastModifiedLedgerSeq}
	switch d := e.Data.(type) {
	case *AccountEntry:
		w.Account = d
	case *TrustLineEntry:
		w.TrustLine = d
	case *OfferEntry:
		w.Offer = d
	case *DataEntry:
		w.Data = d
	default:
		return Wire{}, fmt.Errorf("%w: %T", ErrUnknownEntryType, e.Data)
	}
	return w, nil
}

// FromWire rebuilds a LedgerEntry, rejecting envelopes that carry zero or
// several payloads.
func FromWire(w Wire) (*LedgerEntry, error) {
	var data Data
	n := 0
	if w.Account != nil {
		data = w.Account
		n++
	}
	if w.TrustLine != nil {
		data = w.TrustLine
		n++
	}
	if w.Offer != nil {
		data = w.Offer
		n++
	}
	if w.Data != nil {
		data = w.Data
		n++
	}
	switch n {
	case 0:
		return nil, errors.New("ledger entry envelope has no payload")
	case 1:
		return New(data, w.LastModified), nil
	default:
		return nil, fmt.Errorf("ledger entry envelope has %d payloads", n)
	}
}
