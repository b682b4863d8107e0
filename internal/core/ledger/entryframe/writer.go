package entryframe

import (
	"context"
	"fmt"

	"github.com/LeJamon/goLedgerApply/internal/core/ledger/delta"
	"github.com/LeJamon/goLedgerApply/internal/core/ledger/entry"
	"github.com/LeJamon/goLedgerApply/internal/storage/relationaldb"
)

// WriteMode selects the statement a Put issues.
type WriteMode uint8

const (
	// ModeInsert requires the row to be absent.
	ModeInsert WriteMode = iota
	// ModeUpdate requires the row to be present.
	ModeUpdate
	// ModeUpsert inserts or updates, recording which one happened.
	ModeUpsert
)

func (m WriteMode) String() string {
	switch m {
	case ModeInsert:
		return "store_add"
	case ModeUpdate:
		return "store_change"
	case ModeUpsert:
		return "store_add_or_change"
	default:
		return fmt.Sprintf("WriteMode(%d)", uint8(m))
	}
}

// Write is one row-level write: an entry, its row in Shape order and the
// statement mode.
type Write struct {
	Shape *relationaldb.Shape
	Mode  WriteMode
	Entry *entry.LedgerEntry
	Row   relationaldb.Row
}

// Writer decides where and when a row write is issued. The direct writer
// executes immediately; an accumulator stages the row until flush. Both
// leave the same rows in storage and the same records in the delta.
type Writer interface {
	// Put writes w and records the entry in d as added or modified.
	Put(ctx context.Context, sess relationaldb.Session, d *delta.LedgerDelta, w Write) error

	// Remove deletes the row keyed by key and records k as deleted in d.
	Remove(ctx context.Context, sess relationaldb.Session, d *delta.LedgerDelta,
		shape *relationaldb.Shape, k entry.LedgerKey, key relationaldb.Row) error

	// Staged reports a pending write of k not yet visible in storage. A nil
	// entry with staged set is a pending delete.
	Staged(k entry.LedgerKey) (e *entry.LedgerEntry, staged bool)
}

// DirectWriter issues every write as it is requested.
type DirectWriter struct{}

var _ Writer = DirectWriter{}

func (DirectWriter) Put(ctx context.Context, sess relationaldb.Session, d *delta.LedgerDelta, w Write) error {
	switch w.Mode {
	case ModeInsert:
		return insertRow(ctx, sess, d, w)
	case ModeUpdate:
		return updateRow(ctx, sess, d, w)
	}

	dialect := sess.Dialect()
	if !dialect.BulkCapable() {
		found, err := probe(ctx, sess, w.Shape, w.Shape.Key(w.Row))
		if err != nil {
			return relationaldb.NewQueryError(w.Mode.String(), "existence probe failed", err)
		}
		if found {
			return updateRow(ctx, sess, d, w)
		}
		return insertRow(ctx, sess, d, w)
	}

	query, err := dialect.UpsertInserted(w.Shape)
	if err != nil {
		return err
	}
	rows, err := sess.Query(ctx, query, w.Row...)
	if err != nil {
		return relationaldb.NewQueryError(w.Mode.String(), "upsert failed", err)
	}
	defer rows.Close()

	var (
		n        int64
		inserted bool
	)
	for rows.Next() {
		if err := rows.Scan(&inserted); err != nil {
			return relationaldb.NewQueryError(w.Mode.String(), "scan upsert result", err)
		}
		n++
	}
	if err := rows.Err(); err != nil {
		return relationaldb.NewQueryError(w.Mode.String(), "upsert failed", err)
	}
	if n != 1 {
		return relationaldb.NewAffectedRowsError(w.Mode.String(), 1, n)
	}
	if inserted {
		d.AddEntry(w.Entry)
	} else {
		d.ModEntry(w.Entry)
	}
	return nil
}

func (DirectWriter) Remove(ctx context.Context, sess relationaldb.Session, d *delta.LedgerDelta,
	shape *relationaldb.Shape, k entry.LedgerKey, key relationaldb.Row) error {
	if _, err := sess.Exec(ctx, relationaldb.DeleteSQL(shape), key...); err != nil {
		return relationaldb.NewQueryError("store_delete", "delete failed", err)
	}
	d.DeleteEntry(k)
	return nil
}

func (DirectWriter) Staged(entry.LedgerKey) (*entry.LedgerEntry, bool) {
	return nil, false
}

func insertRow(ctx context.Context, sess relationaldb.Session, d *delta.LedgerDelta, w Write) error {
	n, err := sess.Exec(ctx, relationaldb.InsertSQL(w.Shape), w.Row...)
	if err != nil {
		return relationaldb.NewQueryError(w.Mode.String(), "insert failed", err)
	}
	if n != 1 {
		return relationaldb.NewAffectedRowsError(w.Mode.String(), 1, n)
	}
	d.AddEntry(w.Entry)
	return nil
}

func updateRow(ctx context.Context, sess relationaldb.Session, d *delta.LedgerDelta, w Write) error {
	n, err := sess.Exec(ctx, relationaldb.UpdateSQL(w.Shape), w.Row...)
	if err != nil {
		return relationaldb.NewQueryError(w.Mode.String(), "update failed", err)
	}
	if n != 1 {
		return relationaldb.NewAffectedRowsError(w.Mode.String(), 1, n)
	}
	d.ModEntry(w.Entry)
	return nil
}

func probe(ctx context.Context, sess relationaldb.Session, shape *relationaldb.Shape, key relationaldb.Row) (bool, error) {
	rows, err := sess.Query(ctx, relationaldb.ExistsSQL(shape), key...)
	if err != nil {
		return false, err
	}
	defer rows.Close()
	found := rows.Next()
	return found, rows.Err()
}
