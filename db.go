package rockguard

// db.go implements DB, the handle that exclusively owns the storage engine.
//
// Locking. db.mu is the registry lock. It is held exclusively by Close,
// CreateColumnFamily, DropColumnFamily, NewIterator and Iterator.Close,
// the calls that change which handles are alive. Every other call holds it
// shared from its validity check until its engine call returns, so Close
// and DropColumnFamily can never release engine state under a running
// call while independent reads and writes still proceed in parallel.
// Nothing takes db.mu twice on one path. The only nested lock is an
// iterator's own mutex, always taken after db.mu.
//
// Reference: RocksDB include/rocksdb/db.h

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sync"
	"sync/atomic"
	"time"

	pvfs "github.com/cockroachdb/pebble/vfs"

	"github.com/aalhour/rockguard/internal/engine"
	"github.com/aalhour/rockguard/internal/logging"
	"github.com/aalhour/rockguard/internal/metrics"
	"github.com/aalhour/rockguard/internal/vfs"
)

// DB is an open database. It is safe for concurrent use.
type DB struct {
	path      string
	readOnly  bool
	opts      *Options
	log       logging.Logger
	metrics   *metrics.Metrics
	defaultCF *ColumnFamilyHandle

	mu     sync.RWMutex
	closed atomic.Bool
	eng    engine.Engine
	lock   io.Closer
	cfs    *columnFamilySet
	iters  *iteratorSet

	defaultRO atomic.Pointer[ReadOptions]
	defaultWO atomic.Pointer[WriteOptions]
}

// Open opens the database at path, creating it if opts.CreateIfMissing is
// set. A nil opts means DefaultOptions with CreateIfMissing enabled.
//
// Open fails with KindLockHeld if another handle, in this process or
// another, has the database open; the message names the LOCK file.
func Open(path string, opts *Options) (*DB, error) {
	return open(path, opts, false)
}

func open(path string, opts *Options, readOnly bool) (*DB, error) {
	if opts == nil {
		opts = DefaultOptions()
		opts.CreateIfMissing = true
	}
	o := opts.Clone()
	if path == "" {
		return nil, newError(KindInvalidArgument, "Invalid argument: empty database path")
	}
	if err := o.validate(); err != nil {
		return nil, err
	}
	log := logging.OrDefault(o.Logger)

	var lock io.Closer
	if !readOnly {
		if o.CreateIfMissing {
			if err := os.MkdirAll(path, 0o755); err != nil {
				return nil, openError(path, err)
			}
		}
		l, err := vfs.Lock(vfs.LockPath(path))
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errorf(KindNotFound, "Database not found at %s and create_if_missing is false.", path)
		}
		if err != nil {
			return nil, translate(err)
		}
		lock = l
	}

	p, err := engine.Open(engine.Config{
		Dir:                   path,
		FS:                    vfs.NewExternalLockFS(pvfs.Default, path),
		ReadOnly:              readOnly,
		CreateIfMissing:       o.CreateIfMissing,
		ErrorIfExists:         o.ErrorIfExists,
		MaxOpenFiles:          o.MaxOpenFiles,
		WriteBufferSize:       o.WriteBufferSize,
		MaxBackgroundJobs:     o.MaxBackgroundJobs,
		BloomFilterBitsPerKey: o.BloomFilterBitsPerKey,
		DefaultColumnFamily: engine.ColumnFamilyOptions{
			WriteBufferSize: o.WriteBufferSize,
			Compression:     o.Compression,
		},
		Logger: log,
	})
	if err != nil {
		if lock != nil {
			_ = lock.Close()
		}
		return nil, openError(path, err)
	}
	var eng engine.Engine = p
	if o.wrapEngine != nil {
		eng = o.wrapEngine(eng)
	}

	db := &DB{
		path:     path,
		readOnly: readOnly,
		opts:     o,
		log:      log,
		metrics:  o.Metrics,
		eng:      eng,
		lock:     lock,
		cfs:      newColumnFamilySet(),
		iters:    newIteratorSet(log),
	}
	db.defaultRO.Store(DefaultReadOptions())
	db.defaultWO.Store(DefaultWriteOptions())
	for _, cf := range eng.ColumnFamilies() {
		db.cfs.add(cf)
	}
	db.defaultCF = db.cfs.defaultCF
	db.persistOptions()

	db.metrics.DBOpened()
	db.metrics.ColumnFamiliesRegistered(db.cfs.len())
	log.Infof(logging.NSDB+"opened %s (read-only=%t, column families=%d)", path, readOnly, db.cfs.len())
	return db, nil
}

func openError(path string, err error) error {
	var e *Error
	errors.As(translate(err), &e)
	return &Error{Kind: e.Kind, msg: fmt.Sprintf("Failed to open database at %s: %s", path, e.msg), cause: e.cause}
}

// shared runs fn with the registry lock held shared and the DB open.
func (db *DB) shared(fn func() error) error {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if db.closed.Load() {
		return ErrDBClosed
	}
	return fn()
}

func (db *DB) readOptions(ro *ReadOptions) engine.ReadOptions {
	if ro == nil {
		ro = db.defaultRO.Load()
	}
	return engine.ReadOptions{VerifyChecksums: ro.VerifyChecksums, FillCache: ro.FillCache}
}

func (db *DB) writeOptions(wo *WriteOptions) engine.WriteOptions {
	if wo == nil {
		wo = db.defaultWO.Load()
	}
	return engine.WriteOptions{Sync: wo.Sync, DisableWAL: wo.DisableWAL}
}

// Get returns the value of key in the default column family. A missing key
// yields a nil slice and no error; an empty stored value yields an empty,
// non-nil slice. A nil ro means the DB's default read options.
func (db *DB) Get(ro *ReadOptions, key []byte) ([]byte, error) {
	return db.GetCF(ro, nil, key)
}

// GetCF is Get on cf. A nil cf means the default column family.
func (db *DB) GetCF(ro *ReadOptions, cf *ColumnFamilyHandle, key []byte) ([]byte, error) {
	start := time.Now()
	var value []byte
	err := db.shared(func() error {
		h, err := db.cfs.resolve(cf)
		if err != nil {
			return err
		}
		v, err := db.eng.Get(h.id, key, db.readOptions(ro))
		if engine.CodeOf(err) == engine.CodeNotFound {
			return nil
		}
		if err != nil {
			return translate(err)
		}
		value = v
		return nil
	})
	db.metrics.Observe("get", start, err)
	return value, err
}

// Put stores value under key in the default column family.
func (db *DB) Put(wo *WriteOptions, key, value []byte) error {
	return db.PutCF(wo, nil, key, value)
}

// PutCF is Put on cf. A nil cf means the default column family.
func (db *DB) PutCF(wo *WriteOptions, cf *ColumnFamilyHandle, key, value []byte) error {
	start := time.Now()
	err := db.checkWritable()
	if err == nil {
		err = db.shared(func() error {
			h, err := db.cfs.resolve(cf)
			if err != nil {
				return err
			}
			return translate(db.eng.Put(h.id, key, value, db.writeOptions(wo)))
		})
	}
	db.metrics.Observe("put", start, err)
	return err
}

// Delete removes key from the default column family. Deleting a missing
// key is not an error.
func (db *DB) Delete(wo *WriteOptions, key []byte) error {
	return db.DeleteCF(wo, nil, key)
}

// DeleteCF is Delete on cf. A nil cf means the default column family.
func (db *DB) DeleteCF(wo *WriteOptions, cf *ColumnFamilyHandle, key []byte) error {
	start := time.Now()
	err := db.checkWritable()
	if err == nil {
		err = db.shared(func() error {
			h, err := db.cfs.resolve(cf)
			if err != nil {
				return err
			}
			return translate(db.eng.Delete(h.id, key, db.writeOptions(wo)))
		})
	}
	db.metrics.Observe("delete", start, err)
	return err
}

// Write applies every operation staged in wb, in order, atomically. Every
// column family the batch names is checked first; if any of them was
// dropped or belongs to another DB nothing is applied.
func (db *DB) Write(wo *WriteOptions, wb *WriteBatch) error {
	start := time.Now()
	err := db.write(wo, wb)
	db.metrics.Observe("write", start, err)
	return err
}

func (db *DB) write(wo *WriteOptions, wb *WriteBatch) error {
	if err := db.checkWritable(); err != nil {
		return err
	}
	if wb == nil {
		return newError(KindInvalidArgument, "Invalid argument: nil write batch")
	}
	ops := wb.snapshot()
	return db.shared(func() error {
		b := &engine.Batch{Ops: make([]engine.Op, 0, len(ops))}
		for _, op := range ops {
			h, err := db.cfs.resolve(op.cf)
			if err != nil {
				return err
			}
			b.Ops = append(b.Ops, engine.Op{Kind: op.kind, CF: h.id, Key: op.key, Value: op.value})
		}
		return translate(db.eng.Write(b, db.writeOptions(wo)))
	})
}

// CreateColumnFamily creates a column family. A nil opts means
// Options.ColumnFamilyOptions of the DB.
func (db *DB) CreateColumnFamily(name string, opts *ColumnFamilyOptions) (*ColumnFamilyHandle, error) {
	if err := db.checkWritable(); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, newError(KindInvalidArgument, "Invalid argument: column family name is empty")
	}
	o := db.opts.ColumnFamilyOptions
	if opts != nil {
		o = *opts
	}
	if err := o.validate(); err != nil {
		return nil, err
	}

	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed.Load() {
		return nil, ErrDBClosed
	}
	if _, ok := db.cfs.get(name); ok {
		return nil, errorf(KindAlreadyExists, "Column family '%s' already exists.", name)
	}
	cf, err := db.eng.CreateColumnFamily(name, engine.ColumnFamilyOptions{
		WriteBufferSize: o.WriteBufferSize,
		Compression:     o.Compression,
	})
	if err != nil {
		return nil, translate(err)
	}
	h := db.cfs.add(cf)
	db.persistOptions()

	db.metrics.ColumnFamiliesRegistered(1)
	db.log.Infof(logging.NSCF+"created %q (id=%d, gen=%d)", name, h.id, h.gen)
	return h, nil
}

// DropColumnFamily drops cf and its data. cf and every iterator open on it
// become invalid immediately. The default column family cannot be dropped.
func (db *DB) DropColumnFamily(cf *ColumnFamilyHandle) error {
	if err := db.checkWritable(); err != nil {
		return err
	}
	if cf == nil {
		return ErrInvalidColumnFamilyHandle
	}

	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed.Load() {
		return ErrDBClosed
	}
	h, err := db.cfs.resolve(cf)
	if err != nil {
		return err
	}
	if h.id == engine.DefaultID {
		return ErrCannotDropDefaultCF
	}
	if err := db.eng.DropColumnFamily(h.id); err != nil {
		return translate(err)
	}
	n := db.iters.invalidateCF(h)
	db.cfs.remove(h)
	db.persistOptions()

	db.metrics.IteratorsReleased(n)
	db.metrics.Invalidated("iterator", metrics.CauseCFDropped, n)
	db.metrics.Invalidated("column_family", metrics.CauseCFDropped, 1)
	db.metrics.ColumnFamiliesReleased(1)
	db.log.Infof(logging.NSCF+"dropped %q (id=%d, gen=%d, iterators invalidated=%d)", h.name, h.id, h.gen, n)
	return nil
}

// GetColumnFamily returns the handle of the named column family, or nil if
// there is none. The only error is ErrDBClosed.
func (db *DB) GetColumnFamily(name string) (*ColumnFamilyHandle, error) {
	var h *ColumnFamilyHandle
	err := db.shared(func() error {
		h, _ = db.cfs.get(name)
		return nil
	})
	return h, err
}

// ListColumnFamilies returns the names of all column families, "default"
// first and the rest in byte order.
func (db *DB) ListColumnFamilies() ([]string, error) {
	var names []string
	err := db.shared(func() error {
		names = db.cfs.names()
		return nil
	})
	return names, err
}

// DefaultColumnFamily returns the handle of the default column family. It
// becomes invalid when the DB is closed.
func (db *DB) DefaultColumnFamily() *ColumnFamilyHandle {
	return db.defaultCF
}

// NewIterator returns an iterator over the default column family. It is
// unpositioned; call one of the Seek methods first.
func (db *DB) NewIterator(ro *ReadOptions) (*Iterator, error) {
	return db.NewIteratorCF(ro, nil)
}

// NewIteratorCF returns an iterator over cf. A nil cf means the default
// column family.
func (db *DB) NewIteratorCF(ro *ReadOptions, cf *ColumnFamilyHandle) (*Iterator, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed.Load() {
		return nil, ErrDBClosed
	}
	h, err := db.cfs.resolve(cf)
	if err != nil {
		return nil, err
	}
	eit, err := db.eng.NewIterator(h.id, db.readOptions(ro))
	if err != nil {
		return nil, translate(err)
	}
	it := &Iterator{db: db, cf: h, it: eit}
	db.iters.register(it)
	db.metrics.IteratorRegistered()
	return it, nil
}

// CompactRange compacts the keys of cf in [start, end). Nil bounds extend
// to the first or last key; a nil cf means the default column family.
func (db *DB) CompactRange(cf *ColumnFamilyHandle, start, end []byte) error {
	if err := db.checkWritable(); err != nil {
		return err
	}
	return db.shared(func() error {
		h, err := db.cfs.resolve(cf)
		if err != nil {
			return err
		}
		return translate(db.eng.CompactRange(h.id, start, end))
	})
}

// Flush writes the memtable to disk.
func (db *DB) Flush() error {
	if err := db.checkWritable(); err != nil {
		return err
	}
	return db.shared(func() error {
		return translate(db.eng.Flush())
	})
}

// Options returns a copy of the options the DB was opened with.
func (db *DB) Options() *Options {
	return db.opts.Clone()
}

// DefaultReadOptions returns a copy of the read options used when a call
// passes nil.
func (db *DB) DefaultReadOptions() *ReadOptions {
	ro := *db.defaultRO.Load()
	return &ro
}

// SetDefaultReadOptions replaces the read options used when a call passes nil.
func (db *DB) SetDefaultReadOptions(ro *ReadOptions) error {
	if ro == nil {
		return newError(KindInvalidArgument, "Invalid argument: nil read options")
	}
	c := *ro
	db.defaultRO.Store(&c)
	return nil
}

// DefaultWriteOptions returns a copy of the write options used when a call
// passes nil.
func (db *DB) DefaultWriteOptions() *WriteOptions {
	wo := *db.defaultWO.Load()
	return &wo
}

// SetDefaultWriteOptions replaces the write options used when a call passes nil.
func (db *DB) SetDefaultWriteOptions(wo *WriteOptions) error {
	if wo == nil {
		return newError(KindInvalidArgument, "Invalid argument: nil write options")
	}
	c := *wo
	db.defaultWO.Store(&c)
	return nil
}

// Path returns the directory the DB was opened on.
func (db *DB) Path() string { return db.path }

// IsReadOnly reports whether the DB was opened with OpenForReadOnly.
func (db *DB) IsReadOnly() bool { return db.readOnly }

// IsClosed reports whether Close has been called.
func (db *DB) IsClosed() bool { return db.closed.Load() }

// Close invalidates every iterator and column family handle, closes the
// engine and releases the LOCK file. A second Close returns ErrDBClosed.
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if !db.closed.CompareAndSwap(false, true) {
		return ErrDBClosed
	}

	nIters := db.iters.invalidateAll()
	nCFs := db.cfs.len()
	db.cfs.invalidateAll()

	err := db.eng.Close()
	if db.lock != nil {
		if lerr := db.lock.Close(); err == nil {
			err = lerr
		}
	}

	db.metrics.IteratorsReleased(nIters)
	db.metrics.Invalidated("iterator", metrics.CauseDBClosed, nIters)
	db.metrics.Invalidated("column_family", metrics.CauseDBClosed, nCFs)
	db.metrics.ColumnFamiliesReleased(nCFs)
	db.metrics.DBClosed()
	if err != nil {
		db.log.Errorf(logging.NSDB+"closing %s: %v", db.path, err)
		return translate(err)
	}
	db.log.Infof(logging.NSDB+"closed %s (iterators invalidated=%d)", db.path, nIters)
	return nil
}
