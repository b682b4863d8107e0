// Package store persists buckets in an ordered key-value store so that
// large snapshots can be applied without holding them in memory. Keys are
// encoded ledger keys, so the store's byte order is bucket order.
package store

import (
	"fmt"
	"io"

	"github.com/LeJamon/goLedgerApply/internal/bucket"
	"go.uber.org/zap"
)

const defaultBatchSize = 1000

// Config holds configuration for a bucket store
type Config struct {
	// Path is the directory holding the store.
	Path string

	// Backend is "pebble" or "leveldb".
	Backend string

	// Compressor is "lz4" or "none".
	Compressor string

	// BatchSize is the number of entries per write batch.
	BatchSize int
}

// DefaultConfig returns the default bucket store configuration
func DefaultConfig() Config {
	return Config{
		Backend:    BackendPebble,
		Compressor: "lz4",
		BatchSize:  defaultBatchSize,
	}
}

// DB is one persisted bucket.
type DB struct {
	backend    backend
	compressor Compressor
	config     Config
	logger     *zap.Logger
}

// Option configures a DB.
type Option func(*DB)

// WithLogger sets the logger. A nil logger is ignored.
func WithLogger(logger *zap.Logger) Option {
	return func(db *DB) {
		if logger != nil {
			db.logger = logger
		}
	}
}

// Open opens or creates the bucket store at config.Path.
func Open(config Config, opts ...Option) (*DB, error) {
	if config.Path == "" {
		return nil, fmt.Errorf("bucket store path is required")
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaultBatchSize
	}
	c, err := GetCompressor(config.Compressor)
	if err != nil {
		return nil, err
	}
	db := &DB{compressor: c, config: config, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(db)
	}
	b, err := openBackend(config.Backend, config.Path, db.logger)
	if err != nil {
		return nil, err
	}
	db.backend = b
	db.logger.Debug("Opened bucket store",
		zap.String("path", config.Path),
		zap.String("backend", config.Backend),
		zap.String("compressor", c.Name()))
	return db, nil
}

// Close closes the underlying store.
func (db *DB) Close() error {
	return db.backend.close()
}

// NewWriter returns a writer adding entries to the store.
func (db *DB) NewWriter() *Writer {
	return &Writer{db: db, batch: db.backend.newBatch()}
}

// WriteBucket stores every entry of b.
func (db *DB) WriteBucket(b *bucket.Bucket) error {
	w := db.NewWriter()
	for _, e := range b.Entries() {
		if err := w.Add(e); err != nil {
			return err
		}
	}
	return w.Close()
}

// Count returns the number of stored entries.
func (db *DB) Count() (int, error) {
	c, err := db.backend.newIterator()
	if err != nil {
		return 0, err
	}
	defer c.Close()

	n := 0
	for ok := c.First(); ok; ok = c.Next() {
		n++
	}
	return n, c.Error()
}

// Iterator returns a bucket iterator over the store in key order.
func (db *DB) Iterator() (bucket.Iterator, error) {
	c, err := db.backend.newIterator()
	if err != nil {
		return nil, fmt.Errorf("open bucket iterator: %w", err)
	}
	c.First()
	return &Iterator{cursor: c}, nil
}

// Writer adds entries to a store in batches. Adding a key that is already
// stored replaces its entry.
type Writer struct {
	db      *DB
	batch   batch
	written int
}

// Add stages e, committing the batch when it is full.
func (w *Writer) Add(e bucket.Entry) error {
	if err := e.Validate(); err != nil {
		return fmt.Errorf("bucket entry %s: %w", e.Key(), err)
	}
	value, err := encodeValue(e, w.db.compressor)
	if err != nil {
		return err
	}
	if err := w.batch.set(e.Key().Bytes(), value); err != nil {
		return fmt.Errorf("stage bucket entry: %w", err)
	}
	if w.batch.len() >= w.db.config.BatchSize {
		return w.Flush()
	}
	return nil
}

// Flush commits the staged entries.
func (w *Writer) Flush() error {
	n := w.batch.len()
	if n == 0 {
		return nil
	}
	if err := w.batch.commit(); err != nil {
		return fmt.Errorf("commit bucket batch: %w", err)
	}
	w.batch.reset()
	w.written += n
	return nil
}

// Written returns the number of entries committed so far.
func (w *Writer) Written() int {
	return w.written
}

// Close flushes the writer.
func (w *Writer) Close() error {
	if err := w.Flush(); err != nil {
		return err
	}
	w.db.logger.Debug("Wrote bucket entries", zap.Int("entries", w.written))
	return nil
}

// Iterator reads a stored bucket. Checkpoint records the key of the next
// entry and Rewind seeks back to it.
type Iterator struct {
	cursor cursor

	mark    []byte
	markEnd bool
	done    bool
}

var _ bucket.Iterator = (*Iterator)(nil)

func (it *Iterator) HasNext() bool {
	return !it.done && it.cursor.Valid()
}

func (it *Iterator) Next() (bucket.Entry, error) {
	if !it.HasNext() {
		if err := it.cursor.Error(); err != nil {
			return bucket.Entry{}, err
		}
		return bucket.Entry{}, io.EOF
	}
	e, err := decodeValue(it.cursor.Key(), it.cursor.Value())
	if err != nil {
		return bucket.Entry{}, err
	}
	it.cursor.Next()
	return e, nil
}

func (it *Iterator) Checkpoint() {
	if !it.HasNext() {
		it.mark, it.markEnd = nil, true
		return
	}
	it.mark = append(it.mark[:0], it.cursor.Key()...)
	it.markEnd = false
}

func (it *Iterator) Rewind() error {
	if it.markEnd {
		it.done = true
		return nil
	}
	it.done = false
	if it.mark == nil {
		it.cursor.First()
	} else {
		it.cursor.SeekGE(it.mark)
	}
	return it.cursor.Error()
}

func (it *Iterator) Close() error {
	return it.cursor.Close()
}
