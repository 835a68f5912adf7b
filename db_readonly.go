package rockguard

// db_readonly.go implements read-only mode.
//
// A read-only DB never creates a database, takes no LOCK, and rejects every
// mutating call with ErrReadOnly before any engine state is touched. Reads,
// iterators and column family lookups behave as in read-write mode.
//
// Reference: RocksDB
//   - db/db_impl/db_impl_readonly.cc
//   - include/rocksdb/db.h (OpenForReadOnly)

// OpenForReadOnly opens an existing database in read-only mode. It fails
// with KindNotFound if path holds no database.
func OpenForReadOnly(path string, opts *Options) (*DB, error) {
	return open(path, opts, true)
}

// checkWritable is consulted by every mutating entry point.
func (db *DB) checkWritable() error {
	if db.readOnly {
		return ErrReadOnly
	}
	return nil
}
