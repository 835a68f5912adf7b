package rockguard

// iterator.go implements Iterator and the per-DB registry of live
// iterators.
//
// An iterator holds no lock between calls. Every call takes the DB's
// registry lock shared, then the iterator's own mutex, checks the validity
// token and only then touches the engine iterator. Close and DropColumnFamily
// take the registry lock exclusively, flip the token and close the engine
// iterator, so a call either finishes before that or sees the handle dead.
//
// Reference: RocksDB include/rocksdb/iterator.h

import (
	"sync"

	"github.com/aalhour/rockguard/internal/engine"
	"github.com/aalhour/rockguard/internal/logging"
)

type cursorState uint8

const (
	cursorUnpositioned cursorState = iota
	cursorPositioned
	cursorExhausted
	cursorError
)

// Iterator walks one column family in ascending bytewise key order.
//
// Positioning methods only fail when the iterator itself is unusable
// (closed DB, dropped column family, closed iterator). Errors met while
// scanning, such as a corrupt value, end the scan and are reported by
// CheckStatus. An Iterator is safe for concurrent use, though interleaved
// cursor moves from several goroutines are rarely useful.
type Iterator struct {
	validity

	db *DB
	id uint64
	cf *ColumnFamilyHandle

	mu     sync.Mutex
	it     engine.Iterator
	state  cursorState
	status error
}

// access runs fn with the iterator checked and locked.
func (it *Iterator) access(fn func() error) error {
	it.db.mu.RLock()
	defer it.db.mu.RUnlock()
	it.mu.Lock()
	defer it.mu.Unlock()

	if err := it.check(); err != nil {
		return err
	}
	return fn()
}

// settle records where a positioning call left the engine iterator.
func (it *Iterator) settle(ok bool, miss cursorState) {
	switch {
	case ok:
		it.state = cursorPositioned
	case it.it.Error() != nil:
		it.state = cursorError
		if it.status == nil {
			it.status = translate(it.it.Error())
		}
	default:
		it.state = miss
	}
}

// SeekToFirst positions at the first key.
func (it *Iterator) SeekToFirst() error {
	return it.access(func() error {
		it.settle(it.it.SeekToFirst(), cursorExhausted)
		return nil
	})
}

// SeekToLast positions at the last key.
func (it *Iterator) SeekToLast() error {
	return it.access(func() error {
		it.settle(it.it.SeekToLast(), cursorExhausted)
		return nil
	})
}

// Seek positions at the first key >= key.
func (it *Iterator) Seek(key []byte) error {
	return it.access(func() error {
		it.settle(it.it.Seek(key), cursorExhausted)
		return nil
	})
}

// Next moves to the following key. Past the last key the iterator is no
// longer valid. Calling Next on an unpositioned iterator does nothing.
func (it *Iterator) Next() error {
	return it.access(func() error {
		if it.state == cursorPositioned {
			it.settle(it.it.Next(), cursorExhausted)
		}
		return nil
	})
}

// Prev moves to the preceding key. Before the first key the iterator
// becomes unpositioned.
func (it *Iterator) Prev() error {
	return it.access(func() error {
		if it.state == cursorPositioned {
			it.settle(it.it.Prev(), cursorUnpositioned)
		}
		return nil
	})
}

// Valid reports whether the iterator is positioned at an entry.
func (it *Iterator) Valid() (bool, error) {
	var ok bool
	err := it.access(func() error {
		ok = it.state == cursorPositioned
		return nil
	})
	return ok, err
}

// Key returns a copy of the current key, or nil when not positioned.
func (it *Iterator) Key() ([]byte, error) {
	var k []byte
	err := it.access(func() error {
		if it.state == cursorPositioned {
			k = append([]byte{}, it.it.Key()...)
		}
		return nil
	})
	return k, err
}

// Value returns a copy of the current value, or nil when not positioned.
func (it *Iterator) Value() ([]byte, error) {
	var v []byte
	err := it.access(func() error {
		if it.state == cursorPositioned {
			v = append([]byte{}, it.it.Value()...)
		}
		return nil
	})
	return v, err
}

// CheckStatus returns the first error met while scanning, if any.
func (it *Iterator) CheckStatus() error {
	return it.access(func() error {
		return it.status
	})
}

// ColumnFamily returns the handle the iterator was created on.
func (it *Iterator) ColumnFamily() *ColumnFamilyHandle { return it.cf }

// Close releases the iterator. It never fails after invalidation: closing
// an iterator that DB.Close or DropColumnFamily already invalidated returns
// nil, as does closing it twice. Every other method of an invalidated
// iterator returns a KindInvalidHandle error.
func (it *Iterator) Close() error {
	db := it.db
	db.mu.Lock()
	defer db.mu.Unlock()
	it.mu.Lock()
	defer it.mu.Unlock()

	if !it.invalidate(stateReleased) {
		return nil
	}
	err := it.release()
	db.iters.unregister(it.id)
	db.metrics.IteratorsReleased(1)
	return err
}

// release closes the engine iterator. Callers hold it.mu and have already
// flipped the token.
func (it *Iterator) release() error {
	if it.it == nil {
		return nil
	}
	err := it.it.Close()
	it.it = nil
	it.state = cursorUnpositioned
	return translate(err)
}

// iteratorSet tracks live iterators. Every method must be called with the
// owning DB's registry lock held exclusively.
type iteratorSet struct {
	live   map[uint64]*Iterator
	nextID uint64
	log    logging.Logger
}

func newIteratorSet(log logging.Logger) *iteratorSet {
	return &iteratorSet{live: make(map[uint64]*Iterator), log: log}
}

func (s *iteratorSet) register(it *Iterator) {
	s.nextID++
	it.id = s.nextID
	s.live[it.id] = it
}

func (s *iteratorSet) unregister(id uint64) {
	delete(s.live, id)
}

func (s *iteratorSet) len() int { return len(s.live) }

// invalidateCF kills every iterator bound to cf and returns how many.
func (s *iteratorSet) invalidateCF(cf *ColumnFamilyHandle) int {
	n := 0
	for id, it := range s.live {
		if it.cf != cf {
			continue
		}
		s.kill(it, stateCFDropped)
		delete(s.live, id)
		n++
	}
	return n
}

// invalidateAll kills every iterator. Called once, from DB.Close, before
// the engine is closed.
func (s *iteratorSet) invalidateAll() int {
	n := 0
	for id, it := range s.live {
		s.kill(it, stateDBClosed)
		delete(s.live, id)
		n++
	}
	return n
}

func (s *iteratorSet) kill(it *Iterator, why handleState) {
	it.mu.Lock()
	defer it.mu.Unlock()
	it.invalidate(why)
	if err := it.release(); err != nil {
		s.log.Warnf(logging.NSIter+"closing iterator %d: %v", it.id, err)
	}
}
