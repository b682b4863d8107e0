package bucket

import (
	"bytes"
	"sort"
)

// Bucket is an immutable, key-ordered sequence of entries with at most one
// entry per key.
type Bucket struct {
	entries []Entry
}

// New builds a bucket from entries in any order. When a key appears more
// than once the last occurrence wins.
func New(entries []Entry) *Bucket {
	type keyed struct {
		key []byte
		e   Entry
	}
	sorted := make([]keyed, len(entries))
	for i, e := range entries {
		sorted[i] = keyed{key: e.Key().Bytes(), e: e}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i].key, sorted[j].key) < 0
	})

	out := make([]Entry, 0, len(sorted))
	for i, k := range sorted {
		if i+1 < len(sorted) && bytes.Equal(k.key, sorted[i+1].key) {
			continue
		}
		out = append(out, k.e)
	}
	return &Bucket{entries: out}
}

// Len returns the number of entries.
func (b *Bucket) Len() int {
	return len(b.entries)
}

// Entries returns the entries in key order. The slice must not be modified.
func (b *Bucket) Entries() []Entry {
	return b.entries
}

// Iterator returns a fresh iterator positioned at the first entry.
func (b *Bucket) Iterator() Iterator {
	return &sliceIterator{entries: b.entries}
}
