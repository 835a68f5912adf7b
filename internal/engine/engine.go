// Package engine is the storage contract rockguard's handle layer is
// written against, and its Pebble implementation.
//
// The contract assumes nothing about handle lifetimes: callers guarantee
// that no method runs concurrently with Close and that every Iterator is
// closed before the Engine is. Everything else is safe for concurrent use.
//
// Column families are emulated on a single Pebble keyspace. Each user key
// is stored under a 4-byte big-endian column family ID prefix, and each
// value is wrapped in an envelope carrying the column family's codec and
// an xxh3 checksum of the stored payload.
package engine

import "github.com/aalhour/rockguard/internal/compression"

// DefaultID is the ID of the default column family.
const DefaultID uint32 = 0

// DefaultColumnFamilyName is the name of the column family every database has.
const DefaultColumnFamilyName = "default"

// ColumnFamilyOptions are the per column family settings the engine honors.
type ColumnFamilyOptions struct {
	// WriteBufferSize is recorded in the catalog. All column families share
	// one memtable sized by the database's WriteBufferSize.
	WriteBufferSize int64

	// Compression is the value codec for new writes.
	Compression compression.Type
}

// ColumnFamily describes one column family known to the engine.
type ColumnFamily struct {
	ID      uint32
	Name    string
	Options ColumnFamilyOptions
}

// ReadOptions control a single read or iterator.
type ReadOptions struct {
	// VerifyChecksums checks each value's envelope checksum.
	VerifyChecksums bool

	// FillCache is accepted for compatibility. Pebble has no per-read
	// cache bypass.
	FillCache bool
}

// WriteOptions control a single write.
type WriteOptions struct {
	Sync bool

	// DisableWAL cannot be honored per write; it forces an unsynced commit.
	DisableWAL bool
}

// OpKind is the kind of a batch operation.
type OpKind uint8

const (
	// OpPut stores Value under Key.
	OpPut OpKind = iota
	// OpDelete removes Key.
	OpDelete
)

// Op is one batch operation.
type Op struct {
	Kind  OpKind
	CF    uint32
	Key   []byte
	Value []byte
}

// Batch is an ordered list of operations applied atomically by Write.
type Batch struct {
	Ops []Op
}

// Put appends a put.
func (b *Batch) Put(cf uint32, key, value []byte) {
	b.Ops = append(b.Ops, Op{Kind: OpPut, CF: cf, Key: key, Value: value})
}

// Delete appends a delete.
func (b *Batch) Delete(cf uint32, key []byte) {
	b.Ops = append(b.Ops, Op{Kind: OpDelete, CF: cf, Key: key})
}

// Len returns the number of operations.
func (b *Batch) Len() int { return len(b.Ops) }

// Engine is the storage contract. Errors returned by every method are
// *Status values (see Classify).
type Engine interface {
	// Get returns the value stored under key, or a CodeNotFound status.
	// The returned slice is owned by the caller.
	Get(cf uint32, key []byte, opts ReadOptions) ([]byte, error)
	Put(cf uint32, key, value []byte, opts WriteOptions) error
	Delete(cf uint32, key []byte, opts WriteOptions) error

	// Write applies every operation in b or none of them.
	Write(b *Batch, opts WriteOptions) error

	CreateColumnFamily(name string, opts ColumnFamilyOptions) (ColumnFamily, error)
	DropColumnFamily(id uint32) error

	// ColumnFamilies lists every column family, default first, then by ID.
	ColumnFamilies() []ColumnFamily

	NewIterator(cf uint32, opts ReadOptions) (Iterator, error)

	// CompactRange compacts [start, end) of one column family. Nil bounds
	// extend to the edge of the column family.
	CompactRange(cf uint32, start, end []byte) error
	Flush() error
	Close() error
}

// Iterator walks one column family in ascending bytewise key order.
//
// Positioning methods report whether the iterator landed on an entry. Once
// an error occurs it is sticky: the iterator stays invalid and Error keeps
// returning it.
type Iterator interface {
	SeekToFirst() bool
	SeekToLast() bool
	Seek(key []byte) bool
	Next() bool
	Prev() bool
	Valid() bool

	// Key and Value are only valid until the next positioning call.
	Key() []byte
	Value() []byte

	Error() error
	Close() error
}
