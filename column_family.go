package rockguard

// column_family.go implements column family handles and the per-DB
// registry that owns them.
//
// Reference: RocksDB include/rocksdb/db.h (ColumnFamilyHandle)

import (
	"slices"

	"github.com/aalhour/rockguard/internal/engine"
)

// DefaultColumnFamilyName is the name of the default column family.
const DefaultColumnFamilyName = engine.DefaultColumnFamilyName

// ColumnFamilyHandle refers to one column family of one DB. It does not
// keep the DB alive. Once the column family is dropped or the DB is closed
// every operation through the handle fails with a KindInvalidHandle error.
type ColumnFamilyHandle struct {
	validity

	name  string
	id    uint32
	gen   uint64
	opts  ColumnFamilyOptions
	owner *columnFamilySet
}

// Name returns the column family name.
func (h *ColumnFamilyHandle) Name() string { return h.name }

// ID returns the engine's column family ID.
func (h *ColumnFamilyHandle) ID() uint32 { return h.id }

// Options returns the options the column family was created with.
func (h *ColumnFamilyHandle) Options() ColumnFamilyOptions { return h.opts }

// IsValid reports whether the handle can still be used.
func (h *ColumnFamilyHandle) IsValid() bool { return h.valid() }

// columnFamilySet maps names to live handles. Every method must be called
// with the owning DB's registry lock held, exclusively for the mutating ones.
type columnFamilySet struct {
	byName    map[string]*ColumnFamilyHandle
	defaultCF *ColumnFamilyHandle
	nextGen   uint64
}

func newColumnFamilySet() *columnFamilySet {
	return &columnFamilySet{byName: make(map[string]*ColumnFamilyHandle)}
}

func (s *columnFamilySet) add(cf engine.ColumnFamily) *ColumnFamilyHandle {
	s.nextGen++
	h := &ColumnFamilyHandle{
		name: cf.Name,
		id:   cf.ID,
		gen:  s.nextGen,
		opts: ColumnFamilyOptions{
			WriteBufferSize: cf.Options.WriteBufferSize,
			Compression:     cf.Options.Compression,
		},
		owner: s,
	}
	s.byName[cf.Name] = h
	if cf.ID == engine.DefaultID {
		s.defaultCF = h
	}
	return h
}

// resolve validates h for use against this set. A nil handle means the
// default column family.
func (s *columnFamilySet) resolve(h *ColumnFamilyHandle) (*ColumnFamilyHandle, error) {
	if h == nil {
		return s.defaultCF, nil
	}
	if err := h.check(); err != nil {
		return nil, err
	}
	if h.owner != s || s.byName[h.name] != h {
		return nil, ErrInvalidColumnFamilyHandle
	}
	return h, nil
}

func (s *columnFamilySet) get(name string) (*ColumnFamilyHandle, bool) {
	h, ok := s.byName[name]
	return h, ok
}

// remove unmaps h and marks it dropped.
func (s *columnFamilySet) remove(h *ColumnFamilyHandle) {
	delete(s.byName, h.name)
	h.invalidate(stateCFDropped)
}

// names lists column family names, "default" first, the rest sorted.
func (s *columnFamilySet) names() []string {
	out := make([]string, 0, len(s.byName))
	for name := range s.byName {
		if name != DefaultColumnFamilyName {
			out = append(out, name)
		}
	}
	slices.Sort(out)
	return append([]string{DefaultColumnFamilyName}, out...)
}

func (s *columnFamilySet) len() int { return len(s.byName) }

// invalidateAll marks every handle closed and empties the set.
func (s *columnFamilySet) invalidateAll() int {
	n := 0
	for name, h := range s.byName {
		if h.invalidate(stateDBClosed) {
			n++
		}
		delete(s.byName, name)
	}
	return n
}
