/*
Package rockguard provides an embedded key/value store with a handle-safety
layer: every handle it gives out (database, column family, iterator) can be
used concurrently with Close and DropColumnFamily without ever reaching
engine state that has been released.

Storage is provided by Pebble. Column families are emulated on one Pebble
instance and keep their own value compression.

# Handles

A closed DB, a dropped column family, and the iterators bound to either
fail with a KindInvalidHandle error instead of crashing. Invalidation is
immediate: DropColumnFamily closes every iterator open on the column
family before it returns.

# Errors

Every error returned by this package is an *Error. Use KindOf or IsKind
to classify it. A missing key is not an error: Get returns a nil value.

# Read-only mode

OpenForReadOnly opens an existing database without taking its LOCK file.
Every mutating call fails with ErrReadOnly before touching the engine.

# Concurrency

DB, WriteBatch and Iterator are safe for concurrent use by multiple
goroutines.

Reference: RocksDB include/rocksdb/db.h
*/
package rockguard
