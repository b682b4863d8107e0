// Package delta records the net effect of applying changes to ledger state:
// which keys were added, modified and deleted. Entry frames write into a
// delta; the owner commits it into its parent or discards it.
package delta

import (
	"errors"
	"sort"

	"github.com/LeJamon/goLedgerApply/internal/core/ledger/entry"
)

// ErrDeltaClosed is returned when a delta is used after Commit or Rollback.
var ErrDeltaClosed = errors.New("ledger delta already committed or rolled back")

// LedgerDelta is the per-unit change record. It is not safe for concurrent
// use; one applicator owns it at a time.
type LedgerDelta struct {
	parent    *LedgerDelta
	ledgerSeq uint32

	added    map[entry.LedgerKey]*entry.LedgerEntry
	modified map[entry.LedgerKey]*entry.LedgerEntry
	deleted  map[entry.LedgerKey]struct{}

	closed bool
}

// New creates a root delta. ledgerSeq is the sequence stamped into
// lastModified on write; 0 means bucket import and leaves entries untouched.
func New(ledgerSeq uint32) *LedgerDelta {
	return &LedgerDelta{
		ledgerSeq: ledgerSeq,
		added:     make(map[entry.LedgerKey]*entry.LedgerEntry),
		modified:  make(map[entry.LedgerKey]*entry.LedgerEntry),
		deleted:   make(map[entry.LedgerKey]struct{}),
	}
}

// Child creates a nested delta whose Commit merges into d.
func (d *LedgerDelta) Child() *LedgerDelta {
	c := New(d.ledgerSeq)
	c.parent = d
	return c
}

// LedgerSeq returns the sequence entries written under this delta are
// stamped with.
func (d *LedgerDelta) LedgerSeq() uint32 {
	return d.ledgerSeq
}

// Root returns the outermost delta.
func (d *LedgerDelta) Root() *LedgerDelta {
	for d.parent != nil {
		d = d.parent
	}
	return d
}

// AddEntry records e as newly created. Re-creating a key deleted earlier in
// the same delta nets out to a modification.
func (d *LedgerDelta) AddEntry(e *entry.LedgerEntry) {
	d.mustOpen()
	k := e.Key()
	snap := e.Clone()
	if _, ok := d.deleted[k]; ok {
		delete(d.deleted, k)
		d.modified[k] = snap
		return
	}
	d.added[k] = snap
}

// ModEntry records e as modified. A key added earlier in the same delta
// stays added, carrying the newer value.
func (d *LedgerDelta) ModEntry(e *entry.LedgerEntry) {
	d.mustOpen()
	k := e.Key()
	snap := e.Clone()
	if _, ok := d.added[k]; ok {
		d.added[k] = snap
		return
	}
	d.modified[k] = snap
}

// DeleteEntry records k as deleted. Deleting a key added in the same delta
// cancels the add.
func (d *LedgerDelta) DeleteEntry(k entry.LedgerKey) {
	d.mustOpen()
	if _, ok := d.added[k]; ok {
		delete(d.added, k)
		return
	}
	delete(d.modified, k)
	d.deleted[k] = struct{}{}
}

// Commit merges d into its parent, replaying the same net rules, and closes
// d. Committing a root delta only closes it.
func (d *LedgerDelta) Commit() {
	d.mustOpen()
	if p := d.parent; p != nil {
		for _, k := range sortedKeys(d.deleted) {
			p.DeleteEntry(k)
		}
		for _, k := range sortedEntryKeys(d.added) {
			p.AddEntry(d.added[k])
		}
		for _, k := range sortedEntryKeys(d.modified) {
			p.ModEntry(d.modified[k])
		}
	}
	d.closed = true
}

// Rollback discards d.
func (d *LedgerDelta) Rollback() {
	d.closed = true
	d.added = nil
	d.modified = nil
	d.deleted = nil
}

// Closed reports whether d was committed or rolled back.
func (d *LedgerDelta) Closed() bool {
	return d.closed
}

// IsAdded, IsModified and IsDeleted query the net state of a key.
func (d *LedgerDelta) IsAdded(k entry.LedgerKey) bool {
	_, ok := d.added[k]
	return ok
}

func (d *LedgerDelta) IsModified(k entry.LedgerKey) bool {
	_, ok := d.modified[k]
	return ok
}

func (d *LedgerDelta) IsDeleted(k entry.LedgerKey) bool {
	_, ok := d.deleted[k]
	return ok
}

// Len returns the number of keys touched.
func (d *LedgerDelta) Len() int {
	return len(d.added) + len(d.modified) + len(d.deleted)
}

// Changes is a sorted snapshot of a delta, suitable for comparison.
type Changes struct {
	Added    []entry.LedgerKey
	Modified []entry.LedgerKey
	Deleted  []entry.LedgerKey
}

// Changes returns the touched keys in key-byte order.
func (d *LedgerDelta) Changes() Changes {
	return Changes{
		Added:    sortedEntryKeys(d.added),
		Modified: sortedEntryKeys(d.modified),
		Deleted:  sortedKeys(d.deleted),
	}
}

// TouchedKeys returns every key the delta touched; the applicator uses it to
// decide which cache entries to invalidate.
func (d *LedgerDelta) TouchedKeys() []entry.LedgerKey {
	c := d.Changes()
	out := make([]entry.LedgerKey, 0, d.Len())
	out = append(out, c.Added...)
	out = append(out, c.Modified...)
	return append(out, c.Deleted...)
}

// Entry returns the recorded value of an added or modified key.
func (d *LedgerDelta) Entry(k entry.LedgerKey) (*entry.LedgerEntry, bool) {
	if e, ok := d.added[k]; ok {
		return e, true
	}
	e, ok := d.modified[k]
	return e, ok
}

func (d *LedgerDelta) mustOpen() {
	if d.closed {
		panic(ErrDeltaClosed)
	}
}

func sortedEntryKeys(m map[entry.LedgerKey]*entry.LedgerEntry) []entry.LedgerKey {
	keys := make([]entry.LedgerKey, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sortKeys(keys)
	return keys
}

func sortedKeys(m map[entry.LedgerKey]struct{}) []entry.LedgerKey {
	keys := make([]entry.LedgerKey, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sortKeys(keys)
	return keys
}

func sortKeys(keys []entry.LedgerKey) {
	sort.Slice(keys, func(i, j int) bool {
		return string(keys[i].Bytes()) < string(keys[j].Bytes())
	})
}
