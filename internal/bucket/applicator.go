package bucket

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/LeJamon/goLedgerApply/internal/core/ledger/accumulator"
	"github.com/LeJamon/goLedgerApply/internal/core/ledger/delta"
	"github.com/LeJamon/goLedgerApply/internal/core/ledger/entry"
	"github.com/LeJamon/goLedgerApply/internal/core/ledger/entryframe"
	"github.com/LeJamon/goLedgerApply/internal/metrics"
	"github.com/LeJamon/goLedgerApply/internal/storage/relationaldb"
	"go.uber.org/zap"
)

const (
	// DefaultChunkSize is the number of entries applied per transaction.
	DefaultChunkSize = 256

	// DefaultProgressInterval is the number of committed entries between
	// progress log lines.
	DefaultProgressInterval = 4096
)

// Batching selects how entry writes reach storage.
type Batching uint8

const (
	// BatchDirect issues one statement per entry.
	BatchDirect Batching = iota
	// BatchAccumulate stages writes and flushes them as vector statements.
	BatchAccumulate
	// BatchStaging stages writes, bulk-inserts them into the staging tables
	// and merges those into the primary tables.
	BatchStaging
)

func (b Batching) String() string {
	switch b {
	case BatchDirect:
		return "direct"
	case BatchAccumulate:
		return "accumulate"
	case BatchStaging:
		return "staging"
	default:
		return fmt.Sprintf("batching(%d)", uint8(b))
	}
}

// ParseBatching parses a batching name as produced by Batching.String.
func ParseBatching(s string) (Batching, error) {
	for _, b := range []Batching{BatchDirect, BatchAccumulate, BatchStaging} {
		if b.String() == s {
			return b, nil
		}
	}
	return 0, fmt.Errorf("unknown batching mode %q", s)
}

// Config holds configuration for the Applicator
type Config struct {
	// ChunkSize is the maximum number of entries committed per Advance.
	ChunkSize int

	// ProgressInterval is the number of entries between Info progress lines.
	ProgressInterval int

	// Batching selects direct or accumulated writes.
	Batching Batching

	// Instrument enables a Debug line per Advance.
	Instrument bool

	// LedgerSeq stamps lastModified on every written entry. 0 keeps the
	// entries' own values.
	LedgerSeq uint32
}

// DefaultConfig returns the default applicator configuration
func DefaultConfig() Config {
	return Config{
		ChunkSize:        DefaultChunkSize,
		ProgressInterval: DefaultProgressInterval,
		Batching:         BatchDirect,
	}
}

// Option configures an Applicator.
type Option func(*Applicator)

// WithLogger sets the logger. A nil logger is ignored.
func WithLogger(logger *zap.Logger) Option {
	return func(a *Applicator) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Applicator) {
		a.metrics = m
	}
}

// Applicator applies a bucket to storage one chunk per Advance call. The
// caller owns the loop:
//
//	for app.HasMore() {
//		if err := app.Advance(ctx); err != nil {
//			return err
//		}
//	}
//
// An Applicator is not safe for concurrent use.
type Applicator struct {
	db      relationaldb.Database
	it      Iterator
	store   *entryframe.Store
	config  Config
	logger  *zap.Logger
	metrics *metrics.Metrics

	applied  uint64
	reported uint64
	calls    int
	elapsed  time.Duration
	last     delta.Changes
}

// NewApplicator creates an applicator reading it and writing through store
// into db.
func NewApplicator(db relationaldb.Database, it Iterator, store *entryframe.Store, config Config, opts ...Option) *Applicator {
	if config.ChunkSize <= 0 {
		config.ChunkSize = DefaultChunkSize
	}
	if config.ProgressInterval <= 0 {
		config.ProgressInterval = DefaultProgressInterval
	}
	a := &Applicator{
		db:     db,
		it:     it,
		store:  store,
		config: config,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// HasMore reports whether entries remain to be applied.
func (a *Applicator) HasMore() bool {
	return a.it.HasNext()
}

// Applied returns the number of entries committed so far.
func (a *Applicator) Applied() uint64 {
	return a.applied
}

// LastChanges returns the net effect of the last committed chunk.
func (a *Applicator) LastChanges() delta.Changes {
	return a.last
}

// Advance applies up to ChunkSize entries in one transaction. On failure
// the transaction is rolled back, cached copies of the chunk's keys are
// flushed and the iterator is rewound to the chunk's first entry, so the
// call can be retried once the fault is resolved.
func (a *Applicator) Advance(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !a.it.HasNext() {
		return nil
	}

	start := time.Now()
	counts, changes, err := a.applyChunk(ctx)
	took := time.Since(start)
	a.metrics.ObserveChunk(took, err)
	if err != nil {
		a.logger.Error("Failed to apply chunk",
			zap.Error(err),
			zap.Uint64("applied", a.applied),
			zap.Bool("retryable", relationaldb.IsRetryable(err)),
			zap.Bool("constraint", relationaldb.IsConstraintError(err)),
			zap.Bool("fatal", relationaldb.IsFatal(err)))
		return err
	}

	if err := a.db.ClearStatementCache(); err != nil {
		a.logger.Warn("Failed to clear statement cache", zap.Error(err))
	}

	n := 0
	for kind, c := range counts {
		a.metrics.ObserveEntries(Kind(kind).String(), c)
		n += c
	}
	a.applied += uint64(n)
	a.last = changes
	a.calls++
	a.elapsed += took

	if a.config.Instrument {
		a.logger.Debug("Advanced bucket applicator",
			zap.Int("calls", a.calls),
			zap.Int("entries", n),
			zap.Float64("seconds", a.elapsed.Seconds()))
	}
	a.reportProgress()
	return nil
}

func (a *Applicator) reportProgress() {
	interval := uint64(a.config.ProgressInterval)
	done := !a.it.HasNext()
	if !done && a.applied/interval == a.reported/interval {
		return
	}
	a.reported = a.applied

	if done {
		a.logger.Info("Bucket applied",
			zap.Uint64("entries", a.applied),
			zap.Int("chunks", a.calls))
		return
	}
	a.logger.Info("Applying bucket", zap.Uint64("entries", a.applied))
}

// applyChunk runs one transaction and returns the per-kind entry counts and
// the chunk's net changes.
func (a *Applicator) applyChunk(ctx context.Context) (counts [2]int, changes delta.Changes, err error) {
	a.it.Checkpoint()

	tx, err := a.db.Begin(ctx)
	if err != nil {
		return counts, changes, fmt.Errorf("begin chunk: %w", err)
	}

	chunk := delta.New(a.config.LedgerSeq)
	store := a.store
	var acc *accumulator.Accumulator
	if a.config.Batching != BatchDirect {
		mode := accumulator.ModeVector
		if a.config.Batching == BatchStaging {
			mode = accumulator.ModeStaging
		}
		acc = accumulator.New(
			accumulator.WithMode(mode),
			accumulator.WithLogger(a.logger),
			accumulator.WithMetrics(a.metrics))
		store = a.store.Using(acc)
	}

	keys := make([]entry.LedgerKey, 0, a.config.ChunkSize)
	defer func() {
		if err == nil {
			return
		}
		if rerr := tx.Rollback(ctx); rerr != nil {
			a.logger.Error("Failed to roll back chunk", zap.Error(rerr))
		}
		if acc != nil {
			acc.Discard()
		}
		for _, k := range keys {
			a.store.FlushCachedEntry(k)
		}
		chunk.Rollback()
		if rerr := a.it.Rewind(); rerr != nil {
			err = errors.Join(err, fmt.Errorf("rewind bucket: %w", rerr))
		}
	}()

	for i := 0; i < a.config.ChunkSize && a.it.HasNext(); i++ {
		e, err := a.it.Next()
		if err != nil {
			return counts, changes, fmt.Errorf("read bucket: %w", err)
		}
		if err := e.Validate(); err != nil {
			return counts, changes, fmt.Errorf("bucket entry %s: %w", e.Key(), err)
		}
		k := e.Key()
		keys = append(keys, k)

		if err := a.applyEntry(ctx, chunk, store, tx, e); err != nil {
			return counts, changes, fmt.Errorf("apply %s entry %s: %w", e.Kind, k, err)
		}
		counts[e.Kind]++
	}

	if acc != nil {
		if err := acc.Flush(ctx, tx); err != nil {
			return counts, changes, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return counts, changes, fmt.Errorf("commit chunk: %w", err)
	}

	changes = chunk.Changes()
	chunk.Commit()
	return counts, changes, nil
}

// applyEntry writes e under a fresh child of chunk, committed as soon as the
// write succeeds.
func (a *Applicator) applyEntry(ctx context.Context, chunk *delta.LedgerDelta, store *entryframe.Store, tx relationaldb.Tx, e Entry) error {
	d := chunk.Child()

	var err error
	switch e.Kind {
	case LiveEntry:
		err = store.StoreAddOrChange(ctx, d, tx, e.Live.Clone())
	case DeadEntry:
		err = store.StoreDelete(ctx, d, tx, e.Dead)
	}
	if err != nil {
		d.Rollback()
		return err
	}
	d.Commit()
	return nil
}
