package engine

import (
	"encoding/binary"

	"github.com/cockroachdb/errors"
	"github.com/zeebo/xxh3"

	"github.com/aalhour/rockguard/internal/compression"
)

// Value envelope: codec (1) | xxh3-64 of payload (8, big endian) | payload.
const envelopeHeaderLen = 9

// errCorruption marks errors caused by damaged stored data.
var errCorruption = errors.New("corruption")

func corruptf(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), errCorruption)
}

// encodeValue compresses v with t when that makes it smaller and wraps the
// result in an envelope.
func encodeValue(t compression.Type, v []byte) ([]byte, error) {
	payload, codec := v, compression.NoCompression
	if t != compression.NoCompression && len(v) > 0 {
		c, err := compression.Encode(t, v)
		if err != nil {
			return nil, errors.Wrapf(err, "compress value with %s", t)
		}
		if len(c) < len(v) {
			payload, codec = c, t
		}
	}

	out := make([]byte, envelopeHeaderLen+len(payload))
	out[0] = byte(codec)
	binary.BigEndian.PutUint64(out[1:], xxh3.Hash(payload))
	copy(out[envelopeHeaderLen:], payload)
	return out, nil
}

// decodeValue unwraps an envelope. When the payload is stored uncompressed
// the result aliases raw.
func decodeValue(raw []byte, verify bool) ([]byte, error) {
	if len(raw) < envelopeHeaderLen {
		return nil, corruptf("value envelope truncated (%d bytes)", len(raw))
	}
	codec := compression.Type(raw[0])
	payload := raw[envelopeHeaderLen:]
	if verify {
		want := binary.BigEndian.Uint64(raw[1:])
		if got := xxh3.Hash(payload); got != want {
			return nil, corruptf("value checksum mismatch: expected %016x, got %016x", want, got)
		}
	}
	if codec == compression.NoCompression {
		return payload, nil
	}
	if !codec.IsSupported() {
		return nil, corruptf("unknown value codec %d", uint8(codec))
	}
	v, err := compression.Decode(codec, payload)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "decode %s value", codec), errCorruption)
	}
	return v, nil
}
