package metaindex

import (
	"sync"

	"github.com/tidwall/btree"

	"github.com/nodeshard/containerstore/internal/bloom"
	"github.com/nodeshard/containerstore/internal/haystack"
)

const (
	bloomExpectedEntries = 1 << 16
	bloomFalsePositive   = 0.01
)

// Index is the metadata index: an ordered, composite-key-sorted map from
// (addr_id, key) to haystack.Meta, with a bloom pre-check ahead of every
// lookup and a two-phase compact mode. Satisfies haystack.MetaIndex.
type Index struct {
	mu     sync.RWMutex
	dir    string
	tree   *btree.BTreeG[entry]
	filter *bloom.Filter

	compacting bool
	shadow     *btree.BTreeG[entry]
	shadowF    *bloom.Filter
}

// New creates an empty index that persists under dir (see Save/Load).
func New(dir string) *Index {
	return &Index{
		dir:    dir,
		tree:   btree.NewBTreeG(entryLess),
		filter: bloom.New(bloomExpectedEntries, bloomFalsePositive),
	}
}

// Get implements haystack.MetaIndex.
func (x *Index) Get(addrID uint32, key string) (haystack.Meta, bool, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	k := EncodeKey(addrID, key)
	if !x.filter.MaybeContains(k) {
		return haystack.Meta{}, false, nil
	}

	e, ok := x.tree.Get(entry{key: k})
	if !ok {
		return haystack.Meta{}, false, nil
	}
	return e.meta, true, nil
}

// Put implements haystack.MetaIndex.
func (x *Index) Put(m haystack.Meta) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	k := EncodeKey(m.AddrID, m.Key)
	x.tree.Set(entry{key: k, meta: m})
	x.filter.Add(k)
	return nil
}

// Fetch implements haystack.MetaIndex: an ordered scan over addrID's
// entries starting at keyPrefix, stopping once keys no longer share it or
// visit returns false.
func (x *Index) Fetch(addrID uint32, keyPrefix string, visit func(haystack.Meta) bool) ([]haystack.Meta, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	var out []haystack.Meta
	pivot := entry{key: EncodeKey(addrID, keyPrefix)}

	x.tree.Ascend(pivot, func(e entry) bool {
		if !sameAddr(e.key, addrID) {
			return false
		}
		if !hasAddrPrefix(e.key, addrID, keyPrefix) {
			return false
		}
		out = append(out, e.meta)
		if visit != nil {
			return visit(e.meta)
		}
		return true
	})

	return out, nil
}

// CompactStart implements the metadata-index side of spec.md §4.6 Phase B:
// subsequent CompactPut calls land in a shadow tree, leaving the live tree
// (and its Get/Fetch results) untouched until CompactEnd.
func (x *Index) CompactStart() error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if x.compacting {
		return ErrReentrantCompact
	}
	x.shadow = btree.NewBTreeG(entryLess)
	x.shadowF = bloom.New(bloomExpectedEntries, bloomFalsePositive)
	x.compacting = true
	return nil
}

// CompactPut writes an entry into the shadow tree built up during
// compaction.
func (x *Index) CompactPut(m haystack.Meta) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if !x.compacting {
		return ErrNotCompacting
	}
	k := EncodeKey(m.AddrID, m.Key)
	x.shadow.Set(entry{key: k, meta: m})
	x.shadowF.Add(k)
	return nil
}

// CompactEnd commits the shadow tree as the live tree (committed == true)
// or discards it (committed == false), per spec.md §4.6 Phase C.
func (x *Index) CompactEnd(committed bool) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if !x.compacting {
		return nil
	}
	if committed {
		x.tree = x.shadow
		x.filter = x.shadowF
	}
	x.shadow = nil
	x.shadowF = nil
	x.compacting = false
	return nil
}

// GetDBRawFilepath implements spec.md §6's get_db_raw_filepath(db) contract:
// the path this index persists its snapshot under.
func (x *Index) GetDBRawFilepath() (string, error) {
	return snapshotPath(x.dir), nil
}
