package engine

import "encoding/binary"

// catalogID is the reserved prefix holding column family metadata. It is
// the largest ID, so user column families always sort before it.
const catalogID uint32 = 0xFFFFFFFF

// maxUserID is the largest ID a user column family can be assigned.
const maxUserID = catalogID - 1

const prefixLen = 4

func cfPrefix(id uint32) []byte {
	var p [prefixLen]byte
	binary.BigEndian.PutUint32(p[:], id)
	return p[:]
}

// encodeKey returns prefix(id) || key.
func encodeKey(id uint32, key []byte) []byte {
	out := make([]byte, prefixLen+len(key))
	binary.BigEndian.PutUint32(out, id)
	copy(out[prefixLen:], key)
	return out
}

// decodeKey strips the column family prefix. The returned slice aliases k.
func decodeKey(k []byte) (uint32, []byte, bool) {
	if len(k) < prefixLen {
		return 0, nil, false
	}
	return binary.BigEndian.Uint32(k), k[prefixLen:], true
}

// cfBounds returns the [lower, upper) engine key range of a column family.
func cfBounds(id uint32) (lower, upper []byte) {
	return cfPrefix(id), cfPrefix(id + 1)
}
