// Package entryframe implements the per-type storage contract for ledger
// entries: typed row builders for every entry table, insert/update/delete
// with delta recording, cached loads, and the trust line domain rules.
//
// Every write flushes the cached copy of its key before it is issued, and
// every read that misses the cache populates it, including confirmed
// absences.
package entryframe

import (
	"context"
	"fmt"

	"github.com/LeJamon/goLedgerApply/internal/core/ledger/delta"
	"github.com/LeJamon/goLedgerApply/internal/core/ledger/entry"
	"github.com/LeJamon/goLedgerApply/internal/core/ledger/entrycache"
	"github.com/LeJamon/goLedgerApply/internal/storage/relationaldb"
	"go.uber.org/zap"
)

// Store is the entry frame contract bound to a cache handle and a writer.
// It is not safe for concurrent use; the cache it shares is.
type Store struct {
	cache  *entrycache.Cache
	writer Writer
	logger *zap.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger. A nil logger is ignored.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithWriter sets the initial writer. The default is DirectWriter.
func WithWriter(w Writer) Option {
	return func(s *Store) {
		if w != nil {
			s.writer = w
		}
	}
}

// NewStore creates a Store over cache.
func NewStore(cache *entrycache.Cache, opts ...Option) *Store {
	s := &Store{
		cache:  cache,
		writer: DirectWriter{},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Using returns a Store sharing s's cache that writes through w.
func (s *Store) Using(w Writer) *Store {
	c := *s
	c.writer = w
	return &c
}

// Writer returns the active writer.
func (s *Store) Writer() Writer {
	return s.writer
}

// Cache returns the shared cache handle.
func (s *Store) Cache() *entrycache.Cache {
	return s.cache
}

// StoreAdd inserts e. The row must not exist.
func (s *Store) StoreAdd(ctx context.Context, d *delta.LedgerDelta, sess relationaldb.Session, e *entry.LedgerEntry) error {
	return s.put(ctx, d, sess, e, ModeInsert)
}

// StoreChange updates e. The row must exist.
func (s *Store) StoreChange(ctx context.Context, d *delta.LedgerDelta, sess relationaldb.Session, e *entry.LedgerEntry) error {
	return s.put(ctx, d, sess, e, ModeUpdate)
}

// StoreAddOrChange inserts or updates e and records it in d as added or
// modified, matching what storage did.
func (s *Store) StoreAddOrChange(ctx context.Context, d *delta.LedgerDelta, sess relationaldb.Session, e *entry.LedgerEntry) error {
	return s.put(ctx, d, sess, e, ModeUpsert)
}

// StoreDelete removes the row keyed by k and records k as deleted. Deleting
// an absent key succeeds.
func (s *Store) StoreDelete(ctx context.Context, d *delta.LedgerDelta, sess relationaldb.Session, k entry.LedgerKey) error {
	tb, key, err := keyRow(k)
	if err != nil {
		return fmt.Errorf("store_delete %s: %w", k, err)
	}
	s.cache.Flush(k)
	return s.writer.Remove(ctx, sess, d, tb.shape, k, key)
}

func (s *Store) put(ctx context.Context, d *delta.LedgerDelta, sess relationaldb.Session, e *entry.LedgerEntry, mode WriteMode) error {
	if err := e.Validate(); err != nil {
		return fmt.Errorf("%s: %w", mode, err)
	}
	tb, err := tableFor(e.Type())
	if err != nil {
		return fmt.Errorf("%s: %w", mode, err)
	}

	touch(e, d)
	row, err := tb.row(e)
	if err != nil {
		return fmt.Errorf("%s %s: %w", mode, e.Key(), err)
	}

	s.cache.Flush(e.Key())
	return s.writer.Put(ctx, sess, d, Write{Shape: tb.shape, Mode: mode, Entry: e, Row: row})
}

// touch stamps e with the delta's ledger. Sequence 0 is a bucket import,
// which keeps the entry's own lastModified.
func touch(e *entry.LedgerEntry, d *delta.LedgerDelta) {
	if seq := d.LedgerSeq(); seq != 0 {
		e.LastModifiedLedgerSeq = seq
	}
}

// Exists reports whether k is stored. A cached absence answers false
// without a storage round trip; a probe that finds nothing is cached as one.
func (s *Store) Exists(ctx context.Context, sess relationaldb.Session, k entry.LedgerKey) (bool, error) {
	if e, staged := s.writer.Staged(k); staged {
		return e != nil, nil
	}
	if e, known := s.cache.Get(k); known {
		return e != nil, nil
	}
	tb, key, err := keyRow(k)
	if err != nil {
		return false, err
	}
	found, err := probe(ctx, sess, tb.shape, key)
	if err != nil {
		return false, relationaldb.NewQueryError("exists", "existence probe failed", err)
	}
	if !found {
		s.cache.Put(k, nil)
	}
	return found, nil
}

// Load returns the entry stored under k, or nil when there is none. Pending
// writes of the active writer take precedence over storage.
func (s *Store) Load(ctx context.Context, sess relationaldb.Session, k entry.LedgerKey) (*entry.LedgerEntry, error) {
	if e, staged := s.writer.Staged(k); staged {
		return e, nil
	}
	if e, known := s.cache.Get(k); known {
		return e, nil
	}

	tb, key, err := keyRow(k)
	if err != nil {
		return nil, err
	}
	found, err := queryEntries(ctx, sess, tb, relationaldb.SelectSQL(tb.shape), key...)
	if err != nil {
		return nil, err
	}

	var e *entry.LedgerEntry
	if len(found) > 0 {
		e = found[0]
	}
	s.cache.Put(k, e)
	return e, nil
}

// GetCachedEntry returns the cached snapshot of k. known is false when the
// cache holds nothing for k; a nil entry with known set is a cached absence.
func (s *Store) GetCachedEntry(k entry.LedgerKey) (e *entry.LedgerEntry, known bool) {
	return s.cache.Get(k)
}

// PutCachedEntry caches e under k. A nil e records k as absent.
func (s *Store) PutCachedEntry(k entry.LedgerKey, e *entry.LedgerEntry) {
	s.cache.Put(k, e)
}

// FlushCachedEntry drops any cached copy of k.
func (s *Store) FlushCachedEntry(k entry.LedgerKey) {
	s.cache.Flush(k)
}

// DeleteModifiedOnOrAfterLedger removes every entry of type t last modified
// at or after seq, evicting their cached copies first. Cached absences stay
// valid and are kept.
func (s *Store) DeleteModifiedOnOrAfterLedger(ctx context.Context, sess relationaldb.Session, t entry.Type, seq uint32) (int64, error) {
	tb, err := tableFor(t)
	if err != nil {
		return 0, err
	}
	evicted := s.cache.EraseIf(func(k entry.LedgerKey, e *entry.LedgerEntry) bool {
		return e != nil && k.Type == t && e.LastModifiedLedgerSeq >= seq
	})
	n, err := sess.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE lastmodified >= $1", tb.shape.Table), int64(seq))
	if err != nil {
		return 0, relationaldb.NewQueryError("delete_modified", "delete failed", err)
	}
	s.logger.Info("Deleted entries modified on or after ledger",
		zap.Stringer("type", t),
		zap.Uint32("ledger", seq),
		zap.Int64("rows", n),
		zap.Int("evicted", evicted))
	return n, nil
}

func queryEntries(ctx context.Context, sess relationaldb.Session, tb *table, query string, args ...any) ([]*entry.LedgerEntry, error) {
	op := "load_" + tb.shape.Table
	rows, err := sess.Query(ctx, query, args...)
	if err != nil {
		return nil, relationaldb.NewQueryError(op, "query failed", err)
	}
	defer rows.Close()

	var out []*entry.LedgerEntry
	for rows.Next() {
		e, err := tb.scan(rows)
		if err != nil {
			if relationaldb.IsDataError(err) {
				return nil, err
			}
			return nil, relationaldb.NewQueryError(op, "scan failed", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, relationaldb.NewQueryError(op, "query failed", err)
	}
	return out, nil
}
