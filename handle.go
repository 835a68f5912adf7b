package rockguard

// handle.go implements the validity token embedded in every handle the DB
// hands out.

import "sync/atomic"

type handleState uint32

const (
	stateAlive handleState = iota
	stateDBClosed
	stateCFDropped
	stateReleased
)

// validity is flipped exactly once, from alive to the reason the handle
// died. Readers that observe alive under the DB's registry lock may use the
// engine object behind the handle until they release that lock.
type validity struct {
	state atomic.Uint32
}

func (v *validity) valid() bool {
	return handleState(v.state.Load()) == stateAlive
}

// invalidate records why the handle died. It reports false if the handle
// was already invalid, in which case the first reason is kept.
func (v *validity) invalidate(why handleState) bool {
	return v.state.CompareAndSwap(uint32(stateAlive), uint32(why))
}

func (v *validity) check() error {
	switch handleState(v.state.Load()) {
	case stateAlive:
		return nil
	case stateDBClosed:
		return ErrDBClosed
	case stateCFDropped:
		return ErrInvalidColumnFamilyHandle
	default:
		return ErrIteratorClosed
	}
}
