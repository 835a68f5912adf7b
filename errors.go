package rockguard

// errors.go defines the error type every public API returns and the single
// point where storage engine statuses are translated into it.
//
// Reference: RocksDB include/rocksdb/status.h

import (
	"errors"
	"fmt"

	"github.com/aalhour/rockguard/internal/engine"
	"github.com/aalhour/rockguard/internal/vfs"
)

// Kind classifies an Error.
type Kind int

const (
	// KindUnknown is reported by KindOf for errors that did not come from rockguard.
	KindUnknown Kind = iota
	// KindNotFound is never returned by Get; a missing key is a nil value.
	KindNotFound
	KindInvalidArgument
	KindIOError
	KindCorruption
	KindLockHeld
	KindAlreadyExists
	// KindInvalidHandle covers closed databases, dropped column families
	// and closed iterators.
	KindInvalidHandle
	KindReadOnlyViolation
)

var kindNames = [...]string{
	KindUnknown:           "Unknown",
	KindNotFound:          "NotFound",
	KindInvalidArgument:   "InvalidArgument",
	KindIOError:           "IOError",
	KindCorruption:        "Corruption",
	KindLockHeld:          "LockHeld",
	KindAlreadyExists:     "AlreadyExists",
	KindInvalidHandle:     "InvalidHandle",
	KindReadOnlyViolation: "ReadOnlyViolation",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Error is a classified failure. The message of an engine failure is the
// engine's own status text.
type Error struct {
	Kind  Kind
	msg   string
	cause error
}

func (e *Error) Error() string { return e.msg }

// Unwrap returns the engine or filesystem error this Error was translated
// from, if any.
func (e *Error) Unwrap() error { return e.cause }

func newError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, msg: msg}
}

func errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, msg: fmt.Sprintf(format, args...)}
}

var (
	// ErrDBClosed is returned by every operation on a closed DB and by
	// iterators and column family handles invalidated by Close.
	ErrDBClosed = newError(KindInvalidHandle, "Database is closed.")

	// ErrInvalidColumnFamilyHandle is returned when a column family handle
	// was dropped, or belongs to another DB.
	ErrInvalidColumnFamilyHandle = newError(KindInvalidHandle, "ColumnFamilyHandle is invalid.")

	// ErrIteratorClosed is returned by an iterator after its own Close.
	ErrIteratorClosed = newError(KindInvalidHandle, "Iterator is closed.")

	// ErrCannotDropDefaultCF is returned by DropColumnFamily for "default".
	ErrCannotDropDefaultCF = newError(KindInvalidArgument, "Cannot drop the default column family.")

	// ErrReadOnly is returned by every mutating call on a read-only DB.
	ErrReadOnly = newError(KindReadOnlyViolation,
		"Cannot perform put/write/delete operation: Database opened in read-only mode.")
)

// KindOf returns the Kind of err, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind reports whether err is an *Error of kind k.
func IsKind(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}

// translate converts an error from the engine or the lock layer. It is
// applied exactly once, where a call leaves internal code.
func translate(err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}

	var lockErr *vfs.LockError
	if errors.As(err, &lockErr) {
		kind := KindIOError
		if errors.Is(err, vfs.ErrLocked) {
			kind = KindLockHeld
		}
		return &Error{
			Kind:  kind,
			msg:   fmt.Sprintf("IO error: While lock file: %s: %v", lockErr.Path, lockErr.Err),
			cause: err,
		}
	}

	st := engine.Classify(err)
	var kind Kind
	switch st.Code {
	case engine.CodeNotFound:
		kind = KindNotFound
	case engine.CodeCorruption:
		kind = KindCorruption
	case engine.CodeInvalidArgument, engine.CodeNotSupported:
		kind = KindInvalidArgument
	case engine.CodeAlreadyExists:
		kind = KindAlreadyExists
	case engine.CodeReadOnly:
		return &Error{Kind: KindReadOnlyViolation, msg: ErrReadOnly.msg, cause: st}
	case engine.CodeClosed:
		return &Error{Kind: KindInvalidHandle, msg: ErrDBClosed.msg, cause: st}
	default:
		kind = KindIOError
	}
	return &Error{Kind: kind, msg: engine.StatusToString(st), cause: st}
}
