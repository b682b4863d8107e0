package store

import (
	"fmt"
	"os"

	"github.com/cockroachdb/pebble"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"go.uber.org/zap"
)

// Backend names.
const (
	BackendPebble  = "pebble"
	BackendLevelDB = "leveldb"
)

// backend is the ordered key-value store holding one bucket.
type backend interface {
	newBatch() batch
	newIterator() (cursor, error)
	close() error
}

type batch interface {
	set(key, value []byte) error
	len() int
	commit() error
	reset()
}

// cursor walks keys in byte order. Key and Value are valid until the next
// move.
type cursor interface {
	First() bool
	SeekGE(key []byte) bool
	Next() bool
	Valid() bool
	Key() []byte
	Value() []byte
	Error() error
	Close() error
}

func openBackend(name, path string, logger *zap.Logger) (backend, error) {
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", path, err)
	}
	switch name {
	case BackendPebble:
		db, err := pebble.Open(path, &pebble.Options{Logger: pebbleLogger{logger.Sugar().With("component", "pebble")}})
		if err != nil {
			return nil, fmt.Errorf("failed to open PebbleDB at %s: %w", path, err)
		}
		return &pebbleBackend{db: db}, nil
	case BackendLevelDB:
		db, err := leveldb.OpenFile(path, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to open LevelDB at %s: %w", path, err)
		}
		return &levelBackend{db: db}, nil
	default:
		return nil, fmt.Errorf("unknown bucket backend: %s", name)
	}
}

// Pebble

// pebbleLogger routes pebble's internal logging to zap.
type pebbleLogger struct {
	l *zap.SugaredLogger
}

func (p pebbleLogger) Infof(format string, args ...interface{}) {
	p.l.Infof(format, args...)
}

func (p pebbleLogger) Fatalf(format string, args ...interface{}) {
	p.l.Fatalf(format, args...)
}

type pebbleBackend struct {
	db *pebble.DB
}

func (p *pebbleBackend) newBatch() batch {
	return &pebbleBatch{db: p.db, b: p.db.NewBatch()}
}

func (p *pebbleBackend) newIterator() (cursor, error) {
	it, err := p.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	return it, nil
}

func (p *pebbleBackend) close() error {
	return p.db.Close()
}

type pebbleBatch struct {
	db *pebble.DB
	b  *pebble.Batch
}

func (b *pebbleBatch) set(key, value []byte) error {
	return b.b.Set(key, value, nil)
}

func (b *pebbleBatch) len() int {
	return int(b.b.Count())
}

func (b *pebbleBatch) commit() error {
	return b.b.Commit(pebble.Sync)
}

func (b *pebbleBatch) reset() {
	b.b.Close()
	b.b = b.db.NewBatch()
}

// LevelDB

type levelBackend struct {
	db *leveldb.DB
}

func (l *levelBackend) newBatch() batch {
	return &levelBatch{db: l.db, b: new(leveldb.Batch)}
}

func (l *levelBackend) newIterator() (cursor, error) {
	return &levelCursor{it: l.db.NewIterator(nil, nil)}, nil
}

func (l *levelBackend) close() error {
	return l.db.Close()
}

type levelBatch struct {
	db *leveldb.DB
	b  *leveldb.Batch
}

func (b *levelBatch) set(key, value []byte) error {
	b.b.Put(key, value)
	return nil
}

func (b *levelBatch) len() int {
	return b.b.Len()
}

func (b *levelBatch) commit() error {
	return b.db.Write(b.b, &opt.WriteOptions{Sync: true})
}

func (b *levelBatch) reset() {
	b.b.Reset()
}

type levelCursor struct {
	it iterator.Iterator
}

func (c *levelCursor) First() bool            { return c.it.First() }
func (c *levelCursor) SeekGE(key []byte) bool { return c.it.Seek(key) }
func (c *levelCursor) Next() bool             { return c.it.Next() }
func (c *levelCursor) Valid() bool            { return c.it.Valid() }
func (c *levelCursor) Key() []byte            { return c.it.Key() }
func (c *levelCursor) Value() []byte          { return c.it.Value() }
func (c *levelCursor) Error() error           { return c.it.Error() }

func (c *levelCursor) Close() error {
	c.it.Release()
	return nil
}
