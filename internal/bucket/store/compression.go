package store

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sort"

	"github.com/pierrec/lz4"
)

// Compressor compresses encoded bucket values. Tag is persisted as the first
// byte of every value and selects the decompressor on read.
type Compressor interface {
	Name() string
	Tag() byte
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
}

const (
	tagNone byte = 0
	tagLZ4  byte = 1
)

var compressors = map[string]Compressor{
	"none": NoCompressor{},
	"lz4":  LZ4Compressor{},
}

// GetCompressor returns the compressor registered under name.
func GetCompressor(name string) (Compressor, error) {
	c, ok := compressors[name]
	if !ok {
		return nil, fmt.Errorf("unknown compressor: %s", name)
	}
	return c, nil
}

// Compressors returns the registered compressor names.
func Compressors() []string {
	names := make([]string, 0, len(compressors))
	for name := range compressors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func compressorForTag(tag byte) (Compressor, error) {
	for _, c := range compressors {
		if c.Tag() == tag {
			return c, nil
		}
	}
	return nil, fmt.Errorf("unknown compressor tag %#x", tag)
}

// NoCompressor stores values as is.
type NoCompressor struct{}

func (NoCompressor) Name() string { return "none" }
func (NoCompressor) Tag() byte    { return tagNone }

func (NoCompressor) Compress(data []byte) ([]byte, error) {
	return data, nil
}

func (NoCompressor) Decompress(data []byte) ([]byte, error) {
	return data, nil
}

// LZ4Compressor stores values as an uvarint length followed by one LZ4 block.
type LZ4Compressor struct{}

func (LZ4Compressor) Name() string { return "lz4" }
func (LZ4Compressor) Tag() byte    { return tagLZ4 }

// lz4MaxRatio bounds the decompressed size: one input byte of a block never
// expands to more than 255 bytes.
const lz4MaxRatio = 255

// errIncompressible makes the encoder fall back to NoCompressor.
var errIncompressible = errors.New("lz4: data is incompressible")

func (LZ4Compressor) Compress(data []byte) ([]byte, error) {
	out := make([]byte, binary.MaxVarintLen64+lz4.CompressBlockBound(len(data)))
	n := binary.PutUvarint(out, uint64(len(data)))

	size, err := lz4.CompressBlock(data, out[n:], nil)
	if err != nil {
		return nil, fmt.Errorf("lz4 compression failed: %w", err)
	}
	if size == 0 {
		return nil, errIncompressible
	}
	return out[:n+size], nil
}

func (LZ4Compressor) Decompress(data []byte) ([]byte, error) {
	raw, n := binary.Uvarint(data)
	if n <= 0 {
		return nil, errors.New("lz4: bad length prefix")
	}
	if raw > uint64(len(data)-n)*lz4MaxRatio {
		return nil, fmt.Errorf("lz4: length prefix %d exceeds block bound", raw)
	}
	out := make([]byte, raw)
	size, err := lz4.UncompressBlock(data[n:], out)
	if err != nil {
		return nil, fmt.Errorf("lz4 decompression failed: %w", err)
	}
	if uint64(size) != raw {
		return nil, fmt.Errorf("lz4: decompressed %d bytes, want %d", size, raw)
	}
	return out, nil
}
