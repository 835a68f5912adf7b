package rockguard

// options.go defines the configuration records accepted by Open and by
// individual reads and writes.
//
// Reference: RocksDB include/rocksdb/options.h

import (
	"github.com/rs/zerolog"

	"github.com/aalhour/rockguard/internal/compression"
	"github.com/aalhour/rockguard/internal/engine"
	"github.com/aalhour/rockguard/internal/logging"
)

// Logger is the logging interface. See NewLogger and NewZerologLogger.
type Logger = logging.Logger

// CompressionType is the value codec of a column family.
type CompressionType = compression.Type

// Compression type constants.
const (
	NoCompression     = compression.NoCompression
	SnappyCompression = compression.SnappyCompression
	ZlibCompression   = compression.ZlibCompression
	LZ4Compression    = compression.LZ4Compression
	LZ4HCCompression  = compression.LZ4HCCompression
	ZstdCompression   = compression.ZstdCompression
)

// ParseCompressionType accepts the names written to the options file
// ("none", "snappy", ...) and the RocksDB spellings ("kZSTD", ...).
func ParseCompressionType(s string) (CompressionType, error) {
	t, err := compression.ParseType(s)
	if err != nil {
		return NoCompression, newError(KindInvalidArgument, err.Error())
	}
	return t, nil
}

// Options contains all configuration options for opening a database.
//
// The preset methods never modify their receiver; they return an adjusted
// copy, so successive presets compose and the last one to touch a field wins.
type Options struct {
	// CreateIfMissing causes Open to create the database if it does not exist.
	CreateIfMissing bool

	// ErrorIfExists causes Open to fail if the database already exists.
	ErrorIfExists bool

	// MaxOpenFiles is the number of table files the engine keeps open.
	// Default: 1000
	MaxOpenFiles int

	// WriteBufferSize is the memtable size shared by every column family.
	// Default: 64MB
	WriteBufferSize int64

	// Compression is the value codec of the default column family.
	// Default: SnappyCompression
	Compression CompressionType

	// MaxBackgroundJobs bounds concurrent compactions.
	// Default: 2
	MaxBackgroundJobs int

	// BloomFilterBitsPerKey enables table bloom filters. 0 disables them.
	BloomFilterBitsPerKey int

	// ColumnFamilyOptions is used by CreateColumnFamily when no options
	// are passed.
	ColumnFamilyOptions ColumnFamilyOptions

	// Logger receives database and engine log output.
	// If nil, a WARN-level logger writing to stderr is used.
	Logger Logger

	// Metrics, if set, receives handle lifecycle and operation metrics.
	Metrics *Metrics

	// wrapEngine, if set, wraps the opened engine. Tests use it to inject
	// engine failures.
	wrapEngine func(engine.Engine) engine.Engine
}

// DefaultOptions returns a new Options with default values.
func DefaultOptions() *Options {
	return &Options{
		CreateIfMissing:     false,
		ErrorIfExists:       false,
		MaxOpenFiles:        1000,
		WriteBufferSize:     64 * 1024 * 1024, // 64MB
		Compression:         SnappyCompression,
		MaxBackgroundJobs:   2,
		ColumnFamilyOptions: DefaultColumnFamilyOptions(),
	}
}

// Clone returns a copy of o.
func (o *Options) Clone() *Options {
	c := *o
	return &c
}

// IncreaseParallelism returns a copy of o with MaxBackgroundJobs set to n.
func (o *Options) IncreaseParallelism(n int) *Options {
	c := o.Clone()
	c.MaxBackgroundJobs = n
	return c
}

// OptimizeForSmallDB returns a copy of o tuned for small databases:
// MaxOpenFiles = 5000 and WriteBufferSize = 2MB.
func (o *Options) OptimizeForSmallDB() *Options {
	c := o.Clone()
	c.MaxOpenFiles = 5000
	c.WriteBufferSize = 2 * 1024 * 1024
	return c
}

// UseBloomFilter returns a copy of o with table bloom filters of the given
// density enabled.
func (o *Options) UseBloomFilter(bitsPerKey int) *Options {
	c := o.Clone()
	c.BloomFilterBitsPerKey = bitsPerKey
	return c
}

func (o *Options) validate() error {
	switch {
	case o.MaxOpenFiles < 0:
		return errorf(KindInvalidArgument, "Invalid argument: max_open_files %d is negative", o.MaxOpenFiles)
	case o.WriteBufferSize < 0:
		return errorf(KindInvalidArgument, "Invalid argument: write_buffer_size %d is negative", o.WriteBufferSize)
	case o.MaxBackgroundJobs < 0:
		return errorf(KindInvalidArgument, "Invalid argument: max_background_jobs %d is negative", o.MaxBackgroundJobs)
	case o.BloomFilterBitsPerKey < 0:
		return errorf(KindInvalidArgument, "Invalid argument: bloom_filter_bits_per_key %d is negative", o.BloomFilterBitsPerKey)
	case !o.Compression.IsSupported():
		return errorf(KindInvalidArgument, "Invalid argument: unsupported compression %s", o.Compression)
	}
	return o.ColumnFamilyOptions.validate()
}

// ColumnFamilyOptions contains options for creating a column family.
type ColumnFamilyOptions struct {
	// WriteBufferSize is recorded with the column family. The engine sizes
	// one memtable for all column families from Options.WriteBufferSize.
	WriteBufferSize int64

	// Compression is the value codec for the column family.
	Compression CompressionType
}

// DefaultColumnFamilyOptions returns default options for a column family.
func DefaultColumnFamilyOptions() ColumnFamilyOptions {
	return ColumnFamilyOptions{
		WriteBufferSize: 64 * 1024 * 1024, // 64MB
		Compression:     SnappyCompression,
	}
}

func (o ColumnFamilyOptions) validate() error {
	if o.WriteBufferSize < 0 {
		return errorf(KindInvalidArgument, "Invalid argument: write_buffer_size %d is negative", o.WriteBufferSize)
	}
	if !o.Compression.IsSupported() {
		return errorf(KindInvalidArgument, "Invalid argument: unsupported compression %s", o.Compression)
	}
	return nil
}

// ReadOptions contains options for read operations.
type ReadOptions struct {
	// VerifyChecksums checks every value's stored checksum. A mismatch is
	// reported as KindCorruption.
	VerifyChecksums bool

	// FillCache is accepted for compatibility and currently has no effect.
	FillCache bool
}

// DefaultReadOptions returns ReadOptions with default values.
func DefaultReadOptions() *ReadOptions {
	return &ReadOptions{
		VerifyChecksums: true,
		FillCache:       true,
	}
}

// WriteOptions contains options for write operations.
type WriteOptions struct {
	// Sync causes writes to be fsynced to the WAL before returning.
	Sync bool

	// DisableWAL skips the fsync even when Sync is set. The engine always
	// appends to its WAL, so unsynced writes may still survive a crash.
	DisableWAL bool
}

// DefaultWriteOptions returns WriteOptions with default values.
func DefaultWriteOptions() *WriteOptions {
	return &WriteOptions{
		Sync:       false,
		DisableWAL: false,
	}
}

// NewLogger returns the default text logger writing to stderr at level.
func NewLogger(level logging.Level) Logger {
	return logging.NewDefaultLogger(level)
}

// NewZerologLogger adapts zl. Component prefixes such as "[db] " become a
// "component" field.
func NewZerologLogger(zl zerolog.Logger) Logger {
	return logging.NewZerolog(zl)
}

// Log levels for NewLogger.
const (
	LogLevelError = logging.LevelError
	LogLevelWarn  = logging.LevelWarn
	LogLevelInfo  = logging.LevelInfo
	LogLevelDebug = logging.LevelDebug
)
