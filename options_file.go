package rockguard

// options_file.go persists the options a database was opened with.
//
// Every read-write Open, CreateColumnFamily and DropColumnFamily rewrites
// <path>/rockguard-options.ini. The file is informational: Open never reads
// it, but LoadOptionsFile turns it back into Options.

import (
	"errors"
	"io/fs"

	"github.com/aalhour/rockguard/internal/logging"
	"github.com/aalhour/rockguard/internal/options"
)

// OptionsFileName is the name of the options file inside a database directory.
const OptionsFileName = options.FileName

// LoadOptionsFile reads the options file of the database at path. It
// returns the database options and the options of every column family
// recorded in the file, keyed by name.
func LoadOptionsFile(path string) (*Options, map[string]ColumnFamilyOptions, error) {
	f, err := options.Read(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil, errorf(KindNotFound, "NotFound: no options file in %s", path)
	}
	if err != nil {
		return nil, nil, errorf(KindInvalidArgument, "Invalid argument: %v", err)
	}

	opts := DefaultOptions()
	opts.CreateIfMissing = f.DB.CreateIfMissing
	opts.ErrorIfExists = f.DB.ErrorIfExists
	opts.MaxOpenFiles = f.DB.MaxOpenFiles
	opts.WriteBufferSize = f.DB.WriteBufferSize
	opts.Compression = f.DB.Compression
	opts.MaxBackgroundJobs = f.DB.MaxBackgroundJobs
	opts.BloomFilterBitsPerKey = f.DB.BloomFilterBitsPerKey

	cfs := make(map[string]ColumnFamilyOptions, len(f.ColumnFamilies))
	for _, cf := range f.ColumnFamilies {
		cfs[cf.Name] = ColumnFamilyOptions{
			WriteBufferSize: cf.WriteBufferSize,
			Compression:     cf.Compression,
		}
	}
	return opts, cfs, nil
}

// optionsFile builds the file contents. Callers hold the registry lock.
func (db *DB) optionsFile() *options.File {
	f := &options.File{
		DB: options.DBOptions{
			CreateIfMissing:       db.opts.CreateIfMissing,
			ErrorIfExists:         db.opts.ErrorIfExists,
			MaxOpenFiles:          db.opts.MaxOpenFiles,
			WriteBufferSize:       db.opts.WriteBufferSize,
			Compression:           db.opts.Compression,
			MaxBackgroundJobs:     db.opts.MaxBackgroundJobs,
			BloomFilterBitsPerKey: db.opts.BloomFilterBitsPerKey,
		},
	}
	for _, name := range db.cfs.names() {
		h, _ := db.cfs.get(name)
		f.ColumnFamilies = append(f.ColumnFamilies, options.CFOptions{
			Name:            name,
			WriteBufferSize: h.opts.WriteBufferSize,
			Compression:     h.opts.Compression,
		})
	}
	return f
}

// persistOptions rewrites the options file. Failures are logged, not
// returned: the file does not affect how the database opens.
func (db *DB) persistOptions() {
	if db.readOnly {
		return
	}
	if err := options.Write(db.path, db.optionsFile()); err != nil {
		db.log.Warnf(logging.NSOptions+"writing %s: %v", OptionsFileName, err)
	}
}
