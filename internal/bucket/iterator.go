package bucket

import "io"

// Iterator walks a bucket in key order. Checkpoint remembers the current
// position and Rewind returns to it, so a failed chunk can be retried from
// its first entry.
type Iterator interface {
	HasNext() bool
	// Next returns the entry at the current position and advances. It
	// returns io.EOF when the bucket is exhausted.
	Next() (Entry, error)
	Checkpoint()
	Rewind() error
	Close() error
}

type sliceIterator struct {
	entries []Entry
	pos     int
	mark    int
}

func (it *sliceIterator) HasNext() bool {
	return it.pos < len(it.entries)
}

func (it *sliceIterator) Next() (Entry, error) {
	if !it.HasNext() {
		return Entry{}, io.EOF
	}
	e := it.entries[it.pos]
	it.pos++
	return e, nil
}

func (it *sliceIterator) Checkpoint() {
	it.mark = it.pos
}

func (it *sliceIterator) Rewind() error {
	it.pos = it.mark
	return nil
}

func (it *sliceIterator) Close() error {
	return nil
}
