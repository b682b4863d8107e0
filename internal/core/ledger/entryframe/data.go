package entryframe

import (
	"context"
	"fmt"

	"github.com/LeJamon/goLedgerApply/internal/core/ledger/entry"
	"github.com/LeJamon/goLedgerApply/internal/storage/relationaldb"
)

// DataFrame wraps an account data entry.
type DataFrame struct {
	entry *entry.LedgerEntry
	data  *entry.DataEntry
}

// NewDataFrame creates a data entry of account under name.
func NewDataFrame(account entry.AccountID, name string, value []byte) *DataFrame {
	d := &entry.DataEntry{AccountID: account, Name: name, Value: value}
	return &DataFrame{entry: entry.New(d, 0), data: d}
}

func (f *DataFrame) Entry() *entry.LedgerEntry { return f.entry }

func (f *DataFrame) Data() *entry.DataEntry { return f.data }

// SetValue replaces the stored value.
func (f *DataFrame) SetValue(value []byte) error {
	if len(value) > entry.MaxDataValueLen {
		return fmt.Errorf("data value longer than %d bytes", entry.MaxDataValueLen)
	}
	f.data.Value = append([]byte(nil), value...)
	return nil
}

// LoadData loads account's data entry named name, or (nil, nil).
func (s *Store) LoadData(ctx context.Context, sess relationaldb.Session, account entry.AccountID, name string) (*DataFrame, error) {
	e, err := s.Load(ctx, sess, entry.DataKey(account, name))
	if err != nil || e == nil {
		return nil, err
	}
	d, ok := e.Data.(*entry.DataEntry)
	if !ok {
		return nil, fmt.Errorf("not a data entry: %s", e.Type())
	}
	return &DataFrame{entry: e, data: d}, nil
}
