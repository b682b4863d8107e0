// Package bucket applies ordered snapshots of ledger entry changes to the
// relational ledger state in bounded, transactional chunks.
package bucket

import (
	"errors"
	"fmt"

	"github.com/LeJamon/goLedgerApply/internal/core/ledger/entry"
)

// Kind discriminates live entries from tombstones.
type Kind uint8

const (
	// LiveEntry carries an entry to add or update.
	LiveEntry Kind = iota
	// DeadEntry carries the key of an entry to delete.
	DeadEntry
)

func (k Kind) String() string {
	switch k {
	case LiveEntry:
		return "live"
	case DeadEntry:
		return "dead"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// ErrEmptyEntry is returned for a live entry without a ledger entry.
var ErrEmptyEntry = errors.New("live bucket entry has no ledger entry")

// Entry is one bucket element. Live is set for LiveEntry, Dead for
// DeadEntry.
type Entry struct {
	Kind Kind
	Live *entry.LedgerEntry
	Dead entry.LedgerKey
}

// Live wraps e as a live bucket entry.
func Live(e *entry.LedgerEntry) Entry {
	return Entry{Kind: LiveEntry, Live: e}
}

// Dead returns a tombstone for k.
func Dead(k entry.LedgerKey) Entry {
	return Entry{Kind: DeadEntry, Dead: k}
}

// Key returns the ledger key the entry applies to.
func (e Entry) Key() entry.LedgerKey {
	if e.Kind == LiveEntry && e.Live != nil {
		return e.Live.Key()
	}
	return e.Dead
}

// Validate checks the entry's payload.
func (e Entry) Validate() error {
	switch e.Kind {
	case LiveEntry:
		if e.Live == nil {
			return ErrEmptyEntry
		}
		return e.Live.Validate()
	case DeadEntry:
		return e.Dead.Validate()
	default:
		return fmt.Errorf("unknown bucket entry %s", e.Kind)
	}
}
