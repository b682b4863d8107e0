package store

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/LeJamon/goLedgerApply/internal/bucket"
	"github.com/LeJamon/goLedgerApply/internal/core/ledger/entry"
	"github.com/ugorji/go/codec"
)

// ErrCorruptValue is returned when a stored value cannot be decoded or does
// not belong to its key.
var ErrCorruptValue = errors.New("corrupt bucket value")

var msgpack = &codec.MsgpackHandle{}

// record is the msgpack form of a bucket entry.
type record struct {
	Kind  uint8            `codec:"kind"`
	Entry *entry.Wire      `codec:"entry,omitempty"`
	Key   *entry.LedgerKey `codec:"key,omitempty"`
}

// encodeValue renders e as a compressor tag followed by the compressed
// msgpack record.
func encodeValue(e bucket.Entry, c Compressor) ([]byte, error) {
	rec := record{Kind: uint8(e.Kind)}
	switch e.Kind {
	case bucket.LiveEntry:
		w, err := entry.ToWire(e.Live)
		if err != nil {
			return nil, err
		}
		rec.Entry = &w
	case bucket.DeadEntry:
		k := e.Dead
		rec.Key = &k
	default:
		return nil, fmt.Errorf("unknown bucket entry %s", e.Kind)
	}

	var raw []byte
	if err := codec.NewEncoderBytes(&raw, msgpack).Encode(&rec); err != nil {
		return nil, fmt.Errorf("encode bucket entry: %w", err)
	}

	body, err := c.Compress(raw)
	if errors.Is(err, errIncompressible) {
		c, body, err = NoCompressor{}, raw, nil
	}
	if err != nil {
		return nil, err
	}
	return append([]byte{c.Tag()}, body...), nil
}

// decodeValue reverses encodeValue and checks the entry against key.
func decodeValue(key, value []byte) (bucket.Entry, error) {
	if len(value) == 0 {
		return bucket.Entry{}, fmt.Errorf("%w: empty value", ErrCorruptValue)
	}
	c, err := compressorForTag(value[0])
	if err != nil {
		return bucket.Entry{}, fmt.Errorf("%w: %v", ErrCorruptValue, err)
	}
	raw, err := c.Decompress(value[1:])
	if err != nil {
		return bucket.Entry{}, fmt.Errorf("%w: %v", ErrCorruptValue, err)
	}

	var rec record
	if err := codec.NewDecoderBytes(raw, msgpack).Decode(&rec); err != nil {
		return bucket.Entry{}, fmt.Errorf("%w: %v", ErrCorruptValue, err)
	}

	var e bucket.Entry
	switch {
	case bucket.Kind(rec.Kind) == bucket.LiveEntry && rec.Entry != nil:
		le, err := entry.FromWire(*rec.Entry)
		if err != nil {
			return bucket.Entry{}, fmt.Errorf("%w: %v", ErrCorruptValue, err)
		}
		e = bucket.Live(le)
	case bucket.Kind(rec.Kind) == bucket.DeadEntry && rec.Key != nil:
		e = bucket.Dead(*rec.Key)
	default:
		return bucket.Entry{}, fmt.Errorf("%w: kind %d without payload", ErrCorruptValue, rec.Kind)
	}

	if !bytes.Equal(e.Key().Bytes(), key) {
		return bucket.Entry{}, fmt.Errorf("%w: entry %s stored under another key", ErrCorruptValue, e.Key())
	}
	return e, nil
}
