// write_batch.go implements WriteBatch, the staging area for atomic writes.
//
// Reference: RocksDB include/rocksdb/write_batch.h
package rockguard

import (
	"sync"

	"github.com/aalhour/rockguard/internal/engine"
)

type batchOp struct {
	kind  engine.OpKind
	cf    *ColumnFamilyHandle // nil: default column family of the target DB
	key   []byte
	value []byte
}

// WriteBatch holds a collection of writes to be applied atomically by
// DB.Write. Keys and values are copied, so callers may reuse their buffers.
// A batch is not bound to a DB until it is written, and it can be written
// again or reused after Clear. It is safe for concurrent use.
//
// Example:
//
//	wb := rockguard.NewWriteBatch()
//	wb.Put([]byte("key1"), []byte("value1"))
//	if err := wb.PutCF(users, []byte("u1"), []byte("alice")); err != nil {
//		return err
//	}
//	wb.Delete([]byte("key3"))
//	err := db.Write(nil, wb)
type WriteBatch struct {
	mu  sync.Mutex
	ops []batchOp
}

// NewWriteBatch creates a new empty WriteBatch.
func NewWriteBatch() *WriteBatch {
	return &WriteBatch{}
}

func (wb *WriteBatch) append(op batchOp) {
	wb.mu.Lock()
	wb.ops = append(wb.ops, op)
	wb.mu.Unlock()
}

// Put stages a put into the default column family.
func (wb *WriteBatch) Put(key, value []byte) {
	wb.append(batchOp{kind: engine.OpPut, key: clone(key), value: clone(value)})
}

// PutCF stages a put into cf. It fails without staging anything if cf is
// no longer valid.
func (wb *WriteBatch) PutCF(cf *ColumnFamilyHandle, key, value []byte) error {
	if err := checkBatchCF(cf); err != nil {
		return err
	}
	wb.append(batchOp{kind: engine.OpPut, cf: cf, key: clone(key), value: clone(value)})
	return nil
}

// Delete stages a delete from the default column family.
func (wb *WriteBatch) Delete(key []byte) {
	wb.append(batchOp{kind: engine.OpDelete, key: clone(key)})
}

// DeleteCF stages a delete from cf. It fails without staging anything if
// cf is no longer valid.
func (wb *WriteBatch) DeleteCF(cf *ColumnFamilyHandle, key []byte) error {
	if err := checkBatchCF(cf); err != nil {
		return err
	}
	wb.append(batchOp{kind: engine.OpDelete, cf: cf, key: clone(key)})
	return nil
}

// Clear removes every staged operation.
func (wb *WriteBatch) Clear() {
	wb.mu.Lock()
	wb.ops = nil
	wb.mu.Unlock()
}

// Count returns the number of staged operations.
func (wb *WriteBatch) Count() int {
	wb.mu.Lock()
	defer wb.mu.Unlock()
	return len(wb.ops)
}

// snapshot returns the staged operations. Their byte slices are never
// mutated, so sharing them is safe.
func (wb *WriteBatch) snapshot() []batchOp {
	wb.mu.Lock()
	defer wb.mu.Unlock()
	return append([]batchOp(nil), wb.ops...)
}

func checkBatchCF(cf *ColumnFamilyHandle) error {
	if cf == nil {
		return ErrInvalidColumnFamilyHandle
	}
	return cf.check()
}

// clone copies b, keeping nil and empty distinct.
func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append(make([]byte, 0, len(b)), b...)
}
