// Package compression implements the value codecs a column family can be
// configured with.
//
// Every encoded value is self-describing at the envelope level (see the
// engine package); this package only knows how to turn bytes into fewer
// bytes and back for a given Type.
package compression

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Type identifies a compression algorithm. The numeric values are persisted
// in value envelopes and in the column family catalog; do not renumber.
type Type uint8

const (
	// NoCompression stores values verbatim.
	NoCompression Type = 0x0
	// SnappyCompression uses Google Snappy.
	SnappyCompression Type = 0x1
	// ZlibCompression uses zlib (stdlib).
	ZlibCompression Type = 0x2
	// LZ4Compression uses LZ4 at the fast level.
	LZ4Compression Type = 0x4
	// LZ4HCCompression uses LZ4 at level 9.
	LZ4HCCompression Type = 0x5
	// ZstdCompression uses Zstandard.
	ZstdCompression Type = 0x7
)

var typeNames = map[Type]string{
	NoCompression:     "none",
	SnappyCompression: "snappy",
	ZlibCompression:   "zlib",
	LZ4Compression:    "lz4",
	LZ4HCCompression:  "lz4hc",
	ZstdCompression:   "zstd",
}

// String returns the lower-case name used in options files.
func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", uint8(t))
}

// IsSupported reports whether Encode and Decode accept t.
func (t Type) IsSupported() bool {
	_, ok := typeNames[t]
	return ok
}

// ParseType is the inverse of Type.String. It also accepts the RocksDB
// spellings (kSnappyCompression, kZSTD, ...).
func ParseType(s string) (Type, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	name = strings.TrimPrefix(name, "k")
	name = strings.TrimSuffix(name, "compression")
	if name == "no" || name == "" {
		return NoCompression, nil
	}
	for t, n := range typeNames {
		if n == name {
			return t, nil
		}
	}
	return NoCompression, fmt.Errorf("compression: unknown type %q", s)
}

// zstd encoders and decoders are safe for concurrent EncodeAll/DecodeAll and
// expensive to build, so one of each is shared.
var (
	zstdOnce    sync.Once
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
	zstdInitErr error
)

func zstdCodecs() (*zstd.Encoder, *zstd.Decoder, error) {
	zstdOnce.Do(func() {
		zstdEncoder, zstdInitErr = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if zstdInitErr != nil {
			return
		}
		zstdDecoder, zstdInitErr = zstd.NewReader(nil)
	})
	return zstdEncoder, zstdDecoder, zstdInitErr
}

// Encode compresses data with t. The result never aliases data unless t is
// NoCompression.
func Encode(t Type, data []byte) ([]byte, error) {
	switch t {
	case NoCompression:
		return data, nil
	case SnappyCompression:
		return snappy.Encode(nil, data), nil
	case ZlibCompression:
		var buf bytes.Buffer
		w := zlib.NewWriter(&buf)
		if _, err := w.Write(data); err != nil {
			return nil, fmt.Errorf("zlib write: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("zlib close: %w", err)
		}
		return buf.Bytes(), nil
	case LZ4Compression:
		return encodeLZ4(data, lz4.Fast)
	case LZ4HCCompression:
		return encodeLZ4(data, lz4.Level9)
	case ZstdCompression:
		enc, _, err := zstdCodecs()
		if err != nil {
			return nil, fmt.Errorf("zstd init: %w", err)
		}
		return enc.EncodeAll(data, nil), nil
	default:
		return nil, fmt.Errorf("compression: unsupported type %s", t)
	}
}

func encodeLZ4(data []byte, level lz4.CompressionLevel) ([]byte, error) {
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if err := w.Apply(lz4.CompressionLevelOption(level)); err != nil {
		return nil, fmt.Errorf("lz4 level: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("lz4 write: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("lz4 close: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode reverses Encode.
func Decode(t Type, data []byte) ([]byte, error) {
	switch t {
	case NoCompression:
		return data, nil
	case SnappyCompression:
		return snappy.Decode(nil, data)
	case ZlibCompression:
		r, err := zlib.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("zlib header: %w", err)
		}
		defer func() { _ = r.Close() }()
		return io.ReadAll(r)
	case LZ4Compression, LZ4HCCompression:
		return io.ReadAll(lz4.NewReader(bytes.NewReader(data)))
	case ZstdCompression:
		_, dec, err := zstdCodecs()
		if err != nil {
			return nil, fmt.Errorf("zstd init: %w", err)
		}
		return dec.DecodeAll(data, nil)
	default:
		return nil, fmt.Errorf("compression: unsupported type %s", t)
	}
}
