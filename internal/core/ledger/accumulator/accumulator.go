// Package accumulator batches entry writes into set-oriented statements.
//
// An Accumulator is an entryframe.Writer that stages rows in a per-table
// map keyed by ledger key instead of writing them. A key staged twice keeps
// only the last write. Flush writes every staged row with one vector
// statement per table and operation, chunked by the dialect's batch limit,
// and records the writes in the ledger delta exactly as the direct writer
// would have.
package accumulator

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/LeJamon/goLedgerApply/internal/core/ledger/delta"
	"github.com/LeJamon/goLedgerApply/internal/core/ledger/entry"
	"github.com/LeJamon/goLedgerApply/internal/core/ledger/entryframe"
	"github.com/LeJamon/goLedgerApply/internal/metrics"
	"github.com/LeJamon/goLedgerApply/internal/storage/relationaldb"
	"go.uber.org/zap"
)

// Mode selects how staged upserts reach their table.
type Mode uint8

const (
	// ModeVector writes staged rows with multi-row upsert statements.
	ModeVector Mode = iota
	// ModeStaging inserts staged rows into the table's bulk twin and merges
	// the twin into the table.
	ModeStaging
)

func (m Mode) String() string {
	switch m {
	case ModeVector:
		return "vector"
	case ModeStaging:
		return "staging"
	default:
		return fmt.Sprintf("Mode(%d)", uint8(m))
	}
}

// pending is one staged write. A nil row is a delete.
type pending struct {
	key    entry.LedgerKey
	keyRow relationaldb.Row
	row    relationaldb.Row
	entry  *entry.LedgerEntry
	mode   entryframe.WriteMode
	root   *delta.LedgerDelta

	// afterDelete marks a put that replaced a staged delete already
	// recorded in the delta; the row is known absent when it applies.
	afterDelete bool
	// deferred marks a delete that replaced a staged put. Whether the put
	// was an add or a change is only known at flush, so the delete is
	// recorded then.
	deferred bool
}

type group struct {
	shape *relationaldb.Shape
	items map[entry.LedgerKey]*pending
}

// Accumulator stages writes until Flush. It is not safe for concurrent use.
type Accumulator struct {
	mode    Mode
	logger  *zap.Logger
	metrics *metrics.Metrics

	groups map[*relationaldb.Shape]*group
	order  []*relationaldb.Shape
}

var _ entryframe.Writer = (*Accumulator)(nil)

// Option configures an Accumulator.
type Option func(*Accumulator)

// WithMode sets the flush mode. The default is ModeVector.
func WithMode(mode Mode) Option {
	return func(a *Accumulator) {
		a.mode = mode
	}
}

// WithLogger sets the logger. A nil logger is ignored.
func WithLogger(logger *zap.Logger) Option {
	return func(a *Accumulator) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithMetrics sets the flush metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Accumulator) {
		a.metrics = m
	}
}

// New creates an empty Accumulator.
func New(opts ...Option) *Accumulator {
	a := &Accumulator{
		logger: zap.NewNop(),
		groups: make(map[*relationaldb.Shape]*group),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Mode returns the flush mode.
func (a *Accumulator) Mode() Mode {
	return a.mode
}

// Len returns the number of staged writes.
func (a *Accumulator) Len() int {
	n := 0
	for _, g := range a.groups {
		n += len(g.items)
	}
	return n
}

func (a *Accumulator) group(shape *relationaldb.Shape) *group {
	g, ok := a.groups[shape]
	if !ok {
		g = &group{shape: shape, items: make(map[entry.LedgerKey]*pending)}
		a.groups[shape] = g
		a.order = append(a.order, shape)
	}
	return g
}

// Put stages w. Its delta record is made at flush, once storage tells
// whether the row was added or changed.
func (a *Accumulator) Put(_ context.Context, _ relationaldb.Session, d *delta.LedgerDelta, w entryframe.Write) error {
	if err := w.Shape.Check(w.Row); err != nil {
		return fmt.Errorf("%s %s: %w", w.Mode, w.Entry.Key(), err)
	}

	g := a.group(w.Shape)
	k := w.Entry.Key()
	p := &pending{
		key:    k,
		keyRow: w.Shape.Key(w.Row),
		row:    w.Row,
		entry:  w.Entry.Clone(),
		mode:   w.Mode,
		root:   d.Root(),
	}

	if prev, ok := g.items[k]; ok {
		switch {
		case prev.row != nil && w.Mode == entryframe.ModeInsert:
			return relationaldb.NewAffectedRowsError(w.Mode.String(), 1, 0)
		case prev.row == nil && w.Mode == entryframe.ModeUpdate:
			return relationaldb.NewAffectedRowsError(w.Mode.String(), 1, 0)
		case prev.row != nil || prev.deferred:
			// Same net effect as the first staged put.
			p.mode = prev.mode
			p.afterDelete = prev.afterDelete
		default:
			p.mode = entryframe.ModeUpsert
			p.afterDelete = true
		}
	}
	g.items[k] = p
	return nil
}

// Remove stages the delete of k and records it in d.
func (a *Accumulator) Remove(_ context.Context, _ relationaldb.Session, d *delta.LedgerDelta,
	shape *relationaldb.Shape, k entry.LedgerKey, key relationaldb.Row) error {
	if err := shape.CheckKey(key); err != nil {
		return fmt.Errorf("store_delete %s: %w", k, err)
	}

	g := a.group(shape)
	prev, ok := g.items[k]
	switch {
	case !ok:
		g.items[k] = &pending{key: k, keyRow: key, root: d.Root()}
		d.DeleteEntry(k)
	case prev.row != nil:
		g.items[k] = &pending{
			key:         k,
			keyRow:      key,
			mode:        prev.mode,
			root:        prev.root,
			afterDelete: prev.afterDelete,
			deferred:    true,
		}
	case !prev.deferred:
		d.DeleteEntry(k)
	}
	return nil
}

// Staged returns the pending write of k, if any.
func (a *Accumulator) Staged(k entry.LedgerKey) (*entry.LedgerEntry, bool) {
	for _, g := range a.groups {
		if p, ok := g.items[k]; ok {
			return p.entry.Clone(), true
		}
	}
	return nil, false
}

// Discard drops every staged write without touching storage.
func (a *Accumulator) Discard() {
	a.groups = make(map[*relationaldb.Shape]*group)
	a.order = nil
}

// Flush writes every staged row through sess and records the staged puts in
// their deltas. On error nothing is cleared; the caller rolls back the
// transaction and discards the accumulator.
func (a *Accumulator) Flush(ctx context.Context, sess relationaldb.Session) error {
	if len(a.order) == 0 {
		return nil
	}
	start := time.Now()

	rows := 0
	for _, shape := range a.order {
		g := a.groups[shape]
		if len(g.items) == 0 {
			continue
		}
		if err := a.flushGroup(ctx, sess, g); err != nil {
			return fmt.Errorf("flush %s: %w", shape.Table, err)
		}
		rows += len(g.items)
	}

	a.metrics.ObserveFlush(time.Since(start))
	a.logger.Debug("Flushed accumulator",
		zap.Stringer("mode", a.mode),
		zap.Int("tables", len(a.order)),
		zap.Int("rows", rows),
		zap.Duration("elapsed", time.Since(start)))

	a.Discard()
	return nil
}

func (a *Accumulator) flushGroup(ctx context.Context, sess relationaldb.Session, g *group) error {
	items := make([]*pending, 0, len(g.items))
	for _, p := range g.items {
		items = append(items, p)
	}
	sort.Slice(items, func(i, j int) bool {
		return bytes.Compare(items[i].key.Bytes(), items[j].key.Bytes()) < 0
	})

	var puts, dels []*pending
	for _, p := range items {
		if p.row != nil {
			puts = append(puts, p)
		} else {
			dels = append(dels, p)
		}
	}

	dialect := sess.Dialect()
	feedback := a.mode == ModeVector && dialect.BulkCapable()

	// Existence before the batch, for every write whose delta record
	// depends on it.
	var probe []relationaldb.Row
	for _, p := range items {
		if p.afterDelete || (p.row != nil && feedback) || (p.row == nil && !p.deferred) {
			continue
		}
		probe = append(probe, p.keyRow)
	}
	existed, err := a.selectKeys(ctx, sess, g.shape, probe)
	if err != nil {
		return err
	}

	if err := a.deleteRows(ctx, sess, g.shape, dels); err != nil {
		return err
	}

	var inserted map[string]bool
	if a.mode == ModeStaging {
		err = a.mergeRows(ctx, sess, g.shape, puts)
	} else {
		inserted, err = a.upsertRows(ctx, sess, g.shape, puts, feedback)
	}
	if err != nil {
		return err
	}

	for _, p := range items {
		if err := a.record(p, existed, inserted, feedback); err != nil {
			return err
		}
	}
	return nil
}

// record validates p's write mode against the pre-batch state and records
// it in its delta.
func (a *Accumulator) record(p *pending, existed, inserted map[string]bool, feedback bool) error {
	if p.row == nil && !p.deferred {
		return nil
	}

	var found bool
	switch {
	case p.afterDelete:
	case p.row != nil && feedback:
		ins, ok := inserted[relationaldb.KeyString(p.keyRow)]
		if !ok {
			return relationaldb.NewAffectedRowsError(p.mode.String(), 1, 0)
		}
		found = !ins
	default:
		found = existed[relationaldb.KeyString(p.keyRow)]
	}

	if !p.afterDelete {
		switch {
		case p.mode == entryframe.ModeInsert && found:
			return relationaldb.NewAffectedRowsError(p.mode.String(), 1, 0).
				WithDetail("key", p.key.String())
		case p.mode == entryframe.ModeUpdate && !found:
			return relationaldb.NewAffectedRowsError(p.mode.String(), 1, 0).
				WithDetail("key", p.key.String())
		}
	}

	switch {
	case p.deferred:
		if p.afterDelete || found {
			p.root.DeleteEntry(p.key)
		}
	case p.afterDelete || !found:
		p.root.AddEntry(p.entry)
	default:
		p.root.ModEntry(p.entry)
	}
	return nil
}

// chunks splits rows by the dialect's batch limit.
func chunks[T any](rows []T, limit int) [][]T {
	if limit <= 0 {
		limit = len(rows)
	}
	var out [][]T
	for len(rows) > 0 {
		n := min(limit, len(rows))
		out = append(out, rows[:n])
		rows = rows[n:]
	}
	return out
}

func (a *Accumulator) selectKeys(ctx context.Context, sess relationaldb.Session, shape *relationaldb.Shape,
	keys []relationaldb.Row) (map[string]bool, error) {
	found := make(map[string]bool, len(keys))
	for _, chunk := range chunks(keys, sess.Dialect().MaxBatchRows(shape)) {
		st, err := sess.Dialect().SelectKeys(shape, chunk)
		if err != nil {
			return nil, err
		}
		rows, err := sess.Query(ctx, st.Query, st.Args...)
		if err != nil {
			return nil, relationaldb.NewQueryError("flush_probe", "select keys failed", err)
		}
		err = scanKeys(rows, shape, func(key relationaldb.Row, _ bool) {
			found[relationaldb.KeyString(key)] = true
		}, false)
		if err != nil {
			return nil, err
		}
		a.metrics.ObserveStatement(shape.Table, "probe", len(chunk))
	}
	return found, nil
}

func (a *Accumulator) deleteRows(ctx context.Context, sess relationaldb.Session, shape *relationaldb.Shape,
	dels []*pending) error {
	for _, chunk := range chunks(dels, sess.Dialect().MaxBatchRows(shape)) {
		keys := make([]relationaldb.Row, len(chunk))
		for i, p := range chunk {
			keys[i] = p.keyRow
		}
		st, err := sess.Dialect().DeleteMany(shape, keys)
		if err != nil {
			return err
		}
		if _, err := sess.Exec(ctx, st.Query, st.Args...); err != nil {
			return relationaldb.NewQueryError("flush_delete", "delete failed", err)
		}
		a.metrics.ObserveStatement(shape.Table, "delete", len(chunk))
	}
	return nil
}

// upsertRows writes puts with vector upserts. With feedback it returns, per
// key, whether the row was inserted.
func (a *Accumulator) upsertRows(ctx context.Context, sess relationaldb.Session, shape *relationaldb.Shape,
	puts []*pending, feedback bool) (map[string]bool, error) {
	inserted := make(map[string]bool, len(puts))
	for _, chunk := range chunks(puts, sess.Dialect().MaxBatchRows(shape)) {
		st, err := sess.Dialect().UpsertMany(shape, rowsOf(chunk))
		if err != nil {
			return nil, err
		}

		if st.Returning {
			rows, err := sess.Query(ctx, st.Query, st.Args...)
			if err != nil {
				return nil, relationaldb.NewQueryError("flush_upsert", "upsert failed", err)
			}
			n := 0
			err = scanKeys(rows, shape, func(key relationaldb.Row, ins bool) {
				inserted[relationaldb.KeyString(key)] = ins
				n++
			}, true)
			if err != nil {
				return nil, err
			}
			if n != len(chunk) {
				return nil, relationaldb.NewAffectedRowsError("flush_upsert", int64(len(chunk)), int64(n))
			}
		} else {
			n, err := sess.Exec(ctx, st.Query, st.Args...)
			if err != nil {
				return nil, relationaldb.NewQueryError("flush_upsert", "upsert failed", err)
			}
			if n != int64(len(chunk)) {
				return nil, relationaldb.NewAffectedRowsError("flush_upsert", int64(len(chunk)), n)
			}
		}
		a.metrics.ObserveStatement(shape.Table, "upsert", len(chunk))
	}
	if !feedback {
		return nil, nil
	}
	return inserted, nil
}

// mergeRows loads puts into the bulk twin of shape and merges the twin
// into shape.
func (a *Accumulator) mergeRows(ctx context.Context, sess relationaldb.Session, shape *relationaldb.Shape,
	puts []*pending) error {
	if len(puts) == 0 {
		return nil
	}
	staging := shape.Staging()
	for _, chunk := range chunks(puts, sess.Dialect().MaxBatchRows(staging)) {
		st, err := sess.Dialect().InsertMany(staging, rowsOf(chunk))
		if err != nil {
			return err
		}
		n, err := sess.Exec(ctx, st.Query, st.Args...)
		if err != nil {
			return relationaldb.NewQueryError("flush_stage", "staging insert failed", err)
		}
		if n != int64(len(chunk)) {
			return relationaldb.NewAffectedRowsError("flush_stage", int64(len(chunk)), n)
		}
		a.metrics.ObserveStatement(staging.Table, "stage", len(chunk))
	}

	for _, q := range relationaldb.MergeStagingSQL(shape) {
		if _, err := sess.Exec(ctx, q); err != nil {
			return relationaldb.NewQueryError("flush_merge", "merge failed", err)
		}
	}
	a.metrics.ObserveStatement(shape.Table, "merge", len(puts))
	return nil
}

func rowsOf(items []*pending) []relationaldb.Row {
	out := make([]relationaldb.Row, len(items))
	for i, p := range items {
		out[i] = p.row
	}
	return out
}
