package engine

import (
	"cmp"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/errors/oserror"
	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/bloom"
	pvfs "github.com/cockroachdb/pebble/vfs"

	"github.com/aalhour/rockguard/internal/logging"
)

const numLevels = 7

// Config is everything Open needs.
type Config struct {
	Dir string

	// FS defaults to the OS filesystem.
	FS pvfs.FS

	ReadOnly        bool
	CreateIfMissing bool
	ErrorIfExists   bool

	MaxOpenFiles          int
	WriteBufferSize       int64
	MaxBackgroundJobs     int
	BloomFilterBitsPerKey int

	// DefaultColumnFamily configures the default column family.
	DefaultColumnFamily ColumnFamilyOptions

	Logger logging.Logger
}

// Pebble implements Engine on a single Pebble instance.
type Pebble struct {
	db     *pebble.DB
	log    logging.Logger
	closed atomic.Bool
	failed atomic.Pointer[string]

	// logger is handed to Pebble; its Fatalf sets failed.
	logger pebbleLogger

	// mu guards the column family map and serializes catalog writes.
	mu     sync.RWMutex
	cfs    map[uint32]ColumnFamily
	nextID uint32
}

var _ Engine = (*Pebble)(nil)

// Open opens or creates the Pebble store described by cfg and loads its
// column family catalog.
func Open(cfg Config) (*Pebble, error) {
	log := logging.OrDefault(cfg.Logger)
	e := &Pebble{
		log:    log,
		cfs:    make(map[uint32]ColumnFamily),
		nextID: DefaultID + 1,
	}

	opts := &pebble.Options{
		FS:               cfg.FS,
		ReadOnly:         cfg.ReadOnly,
		ErrorIfExists:    cfg.ErrorIfExists,
		ErrorIfNotExists: cfg.ReadOnly || !cfg.CreateIfMissing,
	}
	e.logger = pebbleLogger{log: log, onFatal: func(msg string) {
		e.failed.CompareAndSwap(nil, &msg)
	}}
	opts.Logger = e.logger
	if cfg.MaxOpenFiles > 0 {
		opts.MaxOpenFiles = cfg.MaxOpenFiles
	}
	if cfg.WriteBufferSize > 0 {
		opts.MemTableSize = uint64(cfg.WriteBufferSize)
	}
	if jobs := cfg.MaxBackgroundJobs; jobs > 0 {
		opts.MaxConcurrentCompactions = func() int { return jobs }
	}
	// Values are compressed per column family before they reach Pebble.
	opts.Levels = make([]pebble.LevelOptions, numLevels)
	for i := range opts.Levels {
		opts.Levels[i].Compression = pebble.NoCompression
		if cfg.BloomFilterBitsPerKey > 0 {
			opts.Levels[i].FilterPolicy = bloom.FilterPolicy(cfg.BloomFilterBitsPerKey)
			opts.Levels[i].FilterType = pebble.TableFilter
		}
	}
	if opts.FS == nil {
		opts.FS = pvfs.Default
	}

	exists, err := manifestExists(opts.FS, cfg.Dir)
	if err != nil {
		return nil, Classify(err)
	}
	switch {
	case exists && cfg.ErrorIfExists:
		return nil, newStatus(CodeAlreadyExists, "%s: database already exists", cfg.Dir)
	case !exists && (cfg.ReadOnly || !cfg.CreateIfMissing):
		return nil, newStatus(CodeNotFound, "%s: database does not exist", cfg.Dir)
	}

	db, err := pebble.Open(cfg.Dir, opts)
	if err != nil {
		return nil, Classify(errors.Wrapf(err, "open %s", cfg.Dir))
	}
	e.db = db

	e.cfs[DefaultID] = ColumnFamily{ID: DefaultID, Name: DefaultColumnFamilyName, Options: cfg.DefaultColumnFamily}
	if err := e.loadCatalog(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return e, nil
}

func manifestExists(fs pvfs.FS, dir string) (bool, error) {
	names, err := fs.List(dir)
	if oserror.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	for _, name := range names {
		if strings.HasPrefix(name, "MANIFEST-") {
			return true, nil
		}
	}
	return false, nil
}

func (e *Pebble) loadCatalog() error {
	it, err := e.db.NewIter(&pebble.IterOptions{LowerBound: cfPrefix(catalogID)})
	if err != nil {
		return Classify(err)
	}
	for valid := it.First(); valid; valid = it.Next() {
		key := it.Key()
		val, err := it.ValueAndErr()
		if err != nil {
			_ = it.Close()
			return Classify(err)
		}
		switch {
		case slices.Equal(key, catalogNextKey):
			next, err := decodeNextID(val)
			if err != nil {
				_ = it.Close()
				return Classify(err)
			}
			e.nextID = max(e.nextID, next)
		case len(key) > len(catalogCFPrefix) && slices.Equal(key[:len(catalogCFPrefix)], catalogCFPrefix):
			cf, err := decodeDescriptor(key, val)
			if err != nil {
				_ = it.Close()
				return Classify(err)
			}
			e.cfs[cf.ID] = cf
			e.nextID = max(e.nextID, cf.ID+1)
		}
	}
	if err := it.Close(); err != nil {
		return Classify(err)
	}
	return nil
}

func (e *Pebble) usable() error {
	if e.closed.Load() {
		return newStatus(CodeClosed, "engine is closed")
	}
	if msg := e.failed.Load(); msg != nil {
		return &Status{Code: CodeIOError, Msg: "engine stopped after fatal error: " + *msg, cause: logging.ErrFatal}
	}
	return nil
}

func (e *Pebble) columnFamily(id uint32) (ColumnFamily, error) {
	e.mu.RLock()
	cf, ok := e.cfs[id]
	e.mu.RUnlock()
	if !ok {
		return ColumnFamily{}, newStatus(CodeInvalidArgument, "column family %d does not exist", id)
	}
	return cf, nil
}

func pebbleWriteOptions(opts WriteOptions) *pebble.WriteOptions {
	if opts.Sync && !opts.DisableWAL {
		return pebble.Sync
	}
	return pebble.NoSync
}

// Get implements Engine.
func (e *Pebble) Get(cf uint32, key []byte, opts ReadOptions) ([]byte, error) {
	if err := e.usable(); err != nil {
		return nil, err
	}
	if _, err := e.columnFamily(cf); err != nil {
		return nil, err
	}
	raw, closer, err := e.db.Get(encodeKey(cf, key))
	if err != nil {
		return nil, Classify(err)
	}
	defer func() { _ = closer.Close() }()

	v, err := decodeValue(raw, opts.VerifyChecksums)
	if err != nil {
		return nil, Classify(err)
	}
	return append(make([]byte, 0, len(v)), v...), nil
}

// Put implements Engine.
func (e *Pebble) Put(cf uint32, key, value []byte, opts WriteOptions) error {
	b := &Batch{}
	b.Put(cf, key, value)
	return e.Write(b, opts)
}

// Delete implements Engine.
func (e *Pebble) Delete(cf uint32, key []byte, opts WriteOptions) error {
	b := &Batch{}
	b.Delete(cf, key)
	return e.Write(b, opts)
}

// Write implements Engine.
func (e *Pebble) Write(b *Batch, opts WriteOptions) error {
	if err := e.usable(); err != nil {
		return err
	}
	if b.Len() == 0 {
		return nil
	}
	pb := e.db.NewBatch()
	defer func() { _ = pb.Close() }()

	for _, op := range b.Ops {
		cf, err := e.columnFamily(op.CF)
		if err != nil {
			return err
		}
		k := encodeKey(op.CF, op.Key)
		switch op.Kind {
		case OpPut:
			v, err := encodeValue(cf.Options.Compression, op.Value)
			if err != nil {
				return Classify(err)
			}
			if err := pb.Set(k, v, nil); err != nil {
				return Classify(err)
			}
		case OpDelete:
			if err := pb.Delete(k, nil); err != nil {
				return Classify(err)
			}
		default:
			return newStatus(CodeInvalidArgument, "unknown batch operation %d", op.Kind)
		}
	}
	if err := pb.Commit(pebbleWriteOptions(opts)); err != nil {
		return Classify(err)
	}
	return nil
}

// CreateColumnFamily implements Engine.
func (e *Pebble) CreateColumnFamily(name string, opts ColumnFamilyOptions) (ColumnFamily, error) {
	if err := e.usable(); err != nil {
		return ColumnFamily{}, err
	}
	if name == "" {
		return ColumnFamily{}, newStatus(CodeInvalidArgument, "column family name is empty")
	}
	if !opts.Compression.IsSupported() {
		return ColumnFamily{}, newStatus(CodeInvalidArgument, "unsupported compression %s", opts.Compression)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for _, cf := range e.cfs {
		if cf.Name == name {
			return ColumnFamily{}, newStatus(CodeAlreadyExists, "column family %q already exists", name)
		}
	}
	if e.nextID > maxUserID {
		return ColumnFamily{}, newStatus(CodeNotSupported, "column family IDs exhausted")
	}

	cf := ColumnFamily{ID: e.nextID, Name: name, Options: opts}
	pb := e.db.NewBatch()
	defer func() { _ = pb.Close() }()
	if err := pb.Set(catalogKey(cf.ID), encodeDescriptor(cf), nil); err != nil {
		return ColumnFamily{}, Classify(err)
	}
	if err := pb.Set(catalogNextKey, encodeNextID(cf.ID+1), nil); err != nil {
		return ColumnFamily{}, Classify(err)
	}
	if err := pb.Commit(pebble.Sync); err != nil {
		return ColumnFamily{}, Classify(errors.Wrapf(err, "create column family %q", name))
	}

	e.cfs[cf.ID] = cf
	e.nextID = cf.ID + 1
	return cf, nil
}

// DropColumnFamily implements Engine. The catalog record and every key of
// the column family are removed in one batch.
func (e *Pebble) DropColumnFamily(id uint32) error {
	if err := e.usable(); err != nil {
		return err
	}
	if id == DefaultID {
		return newStatus(CodeInvalidArgument, "cannot drop the default column family")
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	cf, ok := e.cfs[id]
	if !ok {
		return newStatus(CodeInvalidArgument, "column family %d does not exist", id)
	}

	lower, upper := cfBounds(id)
	pb := e.db.NewBatch()
	defer func() { _ = pb.Close() }()
	if err := pb.Delete(catalogKey(id), nil); err != nil {
		return Classify(err)
	}
	if err := pb.DeleteRange(lower, upper, nil); err != nil {
		return Classify(err)
	}
	if err := pb.Commit(pebble.Sync); err != nil {
		return Classify(errors.Wrapf(err, "drop column family %q", cf.Name))
	}
	delete(e.cfs, id)
	return nil
}

// ColumnFamilies implements Engine.
func (e *Pebble) ColumnFamilies() []ColumnFamily {
	e.mu.RLock()
	out := make([]ColumnFamily, 0, len(e.cfs))
	for _, cf := range e.cfs {
		out = append(out, cf)
	}
	e.mu.RUnlock()
	slices.SortFunc(out, func(a, b ColumnFamily) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

// NewIterator implements Engine.
func (e *Pebble) NewIterator(cf uint32, opts ReadOptions) (Iterator, error) {
	if err := e.usable(); err != nil {
		return nil, err
	}
	if _, err := e.columnFamily(cf); err != nil {
		return nil, err
	}
	lower, upper := cfBounds(cf)
	it, err := e.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return nil, Classify(err)
	}
	return &pebbleIterator{it: it, cf: cf, verify: opts.VerifyChecksums}, nil
}

// CompactRange implements Engine.
func (e *Pebble) CompactRange(cf uint32, start, end []byte) error {
	if err := e.usable(); err != nil {
		return err
	}
	if _, err := e.columnFamily(cf); err != nil {
		return err
	}
	lower, upper := cfBounds(cf)
	if start != nil {
		lower = encodeKey(cf, start)
	}
	if end != nil {
		upper = encodeKey(cf, end)
	}
	if string(lower) >= string(upper) {
		return nil
	}
	if err := e.db.Compact(lower, upper, true); err != nil {
		return Classify(err)
	}
	return nil
}

// Flush implements Engine.
func (e *Pebble) Flush() error {
	if err := e.usable(); err != nil {
		return err
	}
	if err := e.db.Flush(); err != nil {
		return Classify(err)
	}
	return nil
}

// Close implements Engine. Closing twice returns a CodeClosed status.
func (e *Pebble) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return newStatus(CodeClosed, "engine is closed")
	}
	if err := e.db.Close(); err != nil {
		return Classify(err)
	}
	return nil
}
