package engine

import "github.com/cockroachdb/pebble"

// pebbleIterator adapts a bounded pebble.Iterator to Iterator, stripping
// the column family prefix and unwrapping value envelopes.
type pebbleIterator struct {
	it     *pebble.Iterator
	cf     uint32
	verify bool
	value  []byte
	err    error
}

func (i *pebbleIterator) settle(ok bool) bool {
	i.value = nil
	if i.err != nil || !ok {
		return false
	}
	raw, err := i.it.ValueAndErr()
	if err != nil {
		i.err = Classify(err)
		return false
	}
	v, err := decodeValue(raw, i.verify)
	if err != nil {
		i.err = Classify(err)
		return false
	}
	i.value = v
	return true
}

func (i *pebbleIterator) SeekToFirst() bool {
	if i.err != nil {
		return false
	}
	return i.settle(i.it.First())
}

func (i *pebbleIterator) SeekToLast() bool {
	if i.err != nil {
		return false
	}
	return i.settle(i.it.Last())
}

func (i *pebbleIterator) Seek(key []byte) bool {
	if i.err != nil {
		return false
	}
	return i.settle(i.it.SeekGE(encodeKey(i.cf, key)))
}

func (i *pebbleIterator) Next() bool {
	if i.err != nil || !i.it.Valid() {
		return false
	}
	return i.settle(i.it.Next())
}

func (i *pebbleIterator) Prev() bool {
	if i.err != nil || !i.it.Valid() {
		return false
	}
	return i.settle(i.it.Prev())
}

func (i *pebbleIterator) Valid() bool {
	return i.err == nil && i.it.Valid()
}

func (i *pebbleIterator) Key() []byte {
	if !i.Valid() {
		return nil
	}
	_, k, _ := decodeKey(i.it.Key())
	return k
}

func (i *pebbleIterator) Value() []byte {
	if !i.Valid() {
		return nil
	}
	return i.value
}

func (i *pebbleIterator) Error() error {
	if i.err != nil {
		return i.err
	}
	if err := i.it.Error(); err != nil {
		return Classify(err)
	}
	return nil
}

func (i *pebbleIterator) Close() error {
	err := i.it.Close()
	if i.err == nil && err != nil {
		return Classify(err)
	}
	return nil
}
