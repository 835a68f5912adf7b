package engine

import (
	"encoding/binary"

	"github.com/aalhour/rockguard/internal/compression"
)

// Catalog records live under the reserved catalog prefix:
//
//	cf/<id be32> -> compression (1) | uvarint write buffer size | name
//	next         -> next ID to assign (be32)
//
// Records are keyed by ID so a drop followed by a create of the same name
// never touches the same key.
var (
	catalogCFPrefix = encodeKey(catalogID, []byte("cf/"))
	catalogNextKey  = encodeKey(catalogID, []byte("next"))
)

func catalogKey(id uint32) []byte {
	k := make([]byte, len(catalogCFPrefix)+4)
	copy(k, catalogCFPrefix)
	binary.BigEndian.PutUint32(k[len(catalogCFPrefix):], id)
	return k
}

func encodeDescriptor(cf ColumnFamily) []byte {
	buf := make([]byte, 0, 1+binary.MaxVarintLen64+len(cf.Name))
	buf = append(buf, byte(cf.Options.Compression))
	buf = binary.AppendUvarint(buf, uint64(cf.Options.WriteBufferSize))
	return append(buf, cf.Name...)
}

func decodeDescriptor(key, value []byte) (ColumnFamily, error) {
	if len(key) != len(catalogCFPrefix)+4 {
		return ColumnFamily{}, corruptf("catalog key has length %d", len(key))
	}
	id := binary.BigEndian.Uint32(key[len(catalogCFPrefix):])
	if len(value) < 2 {
		return ColumnFamily{}, corruptf("catalog record %d truncated", id)
	}
	t := compression.Type(value[0])
	if !t.IsSupported() {
		return ColumnFamily{}, corruptf("catalog record %d: unknown compression %d", id, value[0])
	}
	wbs, n := binary.Uvarint(value[1:])
	if n <= 0 {
		return ColumnFamily{}, corruptf("catalog record %d: bad write buffer size", id)
	}
	name := string(value[1+n:])
	if name == "" {
		return ColumnFamily{}, corruptf("catalog record %d: empty name", id)
	}
	return ColumnFamily{
		ID:   id,
		Name: name,
		Options: ColumnFamilyOptions{
			WriteBufferSize: int64(wbs),
			Compression:     t,
		},
	}, nil
}

func encodeNextID(id uint32) []byte {
	return binary.BigEndian.AppendUint32(nil, id)
}

func decodeNextID(v []byte) (uint32, error) {
	if len(v) != 4 {
		return 0, corruptf("catalog next-id record has length %d", len(v))
	}
	return binary.BigEndian.Uint32(v), nil
}
