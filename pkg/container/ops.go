package container

import (
	"github.com/nodeshard/containerstore/internal/haystack"
)

// probe implements spec.md §4.5 step 1: look up the current metadata entry
// for K, used by both put and delete to compute their stat deltas.
func (c *Container) probe(addrID uint32, key string) (present bool, meta haystack.Meta, err error) {
	meta, present, err = c.metaIdx.Get(addrID, key)
	return present, meta, err
}

// Put implements spec.md §4.5's put(obj).
func (c *Container) Put(obj haystack.Object) error {
	_, err := c.submit(func() (any, error) {
		return nil, c.put(obj)
	}, c.opts.requestTimeout)
	return err
}

func (c *Container) put(obj haystack.Object) error {
	present, meta, probeErr := c.probe(obj.AddrID, obj.Key)

	var diffRec int64
	var oldSize int64
	switch {
	case probeErr != nil:
		diffRec, oldSize = 1, 0 // "on any other error" (spec.md §4.5 step 1).
	case present:
		diffRec, oldSize = 0, meta.Size
	default:
		diffRec, oldSize = 1, 0
	}

	newSize := haystack.CalcObjSize(obj, c.opts.compress)

	err := haystack.Put(c.metaIdx, c.backend.h, obj, c.opts.compress)
	err = c.reopenIfClosed(err)

	if err == nil {
		c.stats.TotalSizes += newSize
		c.stats.ActiveSizes += newSize - oldSize
		c.stats.TotalNum++
		c.stats.ActiveNum += diffRec

		if c.opts.alwaysFSync {
			if serr := c.backend.h.Sync(); serr != nil {
				c.lo.Error("fsync after put", "error", serr)
			}
		}
	}

	return err
}

// Get implements spec.md §4.5's get(key, start, end).
func (c *Container) Get(addrID uint32, key string, start, end int64) (haystack.Object, error) {
	v, err := c.submit(func() (any, error) {
		obj, _, err := haystack.Get(c.metaIdx, c.backend.h, addrID, key, start, end)
		err = c.reopenIfClosed(err)
		return obj, err
	}, c.opts.requestTimeout)

	obj, _ := v.(haystack.Object)
	return obj, err
}

// Delete implements spec.md §4.5's delete(obj).
//
// The accounting here intentionally follows spec.md §4.5/§9's observed (not
// "fixed") arithmetic: active_sizes -= (new_size + old_size), i.e. a delete
// both removes the superseded live record's bytes from the active count AND
// subtracts the tombstone's own size again, rather than simply
// active_sizes -= old_size. spec.md documents this as a likely source bug
// that the spec nonetheless codifies; see DESIGN.md's Open Question note.
func (c *Container) Delete(obj haystack.Object) error {
	_, err := c.submit(func() (any, error) {
		return nil, c.delete(obj)
	}, c.opts.requestTimeout)
	return err
}

func (c *Container) delete(obj haystack.Object) error {
	present, meta, probeErr := c.probe(obj.AddrID, obj.Key)

	var diffRec int64
	var oldSize int64
	switch {
	case probeErr != nil:
		diffRec, oldSize = 0, 0
	case present:
		diffRec, oldSize = -1, meta.Size
	default:
		diffRec, oldSize = 0, 0
	}

	newSize := haystack.CalcObjSize(haystack.Object{AddrID: obj.AddrID, Key: obj.Key}, false)

	err := haystack.Delete(c.metaIdx, c.backend.h, obj)
	err = c.reopenIfClosed(err)

	if err == nil {
		c.stats.TotalSizes += newSize
		c.stats.ActiveSizes += -newSize - oldSize
		c.stats.TotalNum++
		c.stats.ActiveNum += diffRec

		if c.opts.alwaysFSync {
			if serr := c.backend.h.Sync(); serr != nil {
				c.lo.Error("fsync after delete", "error", serr)
			}
		}
	}

	return err
}

// Head implements spec.md §4.5's head(key). No stats change; no file I/O
// is involved so there is no reopen surface here.
func (c *Container) Head(addrID uint32, key string) (haystack.Meta, error) {
	v, err := c.submit(func() (any, error) {
		return haystack.Head(c.metaIdx, addrID, key)
	}, c.opts.requestTimeout)

	meta, _ := v.(haystack.Meta)
	return meta, err
}

// Visitor decides whether Fetch should continue scanning past the entry it
// was just given (spec.md §9: "a small object/closure with a well-typed
// single method").
type Visitor interface {
	Visit(m haystack.Meta) (cont bool)
}

// VisitorFunc adapts a plain function to the Visitor interface.
type VisitorFunc func(haystack.Meta) bool

func (f VisitorFunc) Visit(m haystack.Meta) bool { return f(m) }

// Fetch implements spec.md §4.5's fetch(key_prefix, visitor).
func (c *Container) Fetch(addrID uint32, keyPrefix string, visitor Visitor) ([]haystack.Meta, error) {
	v, err := c.submit(func() (any, error) {
		var visit func(haystack.Meta) bool
		if visitor != nil {
			visit = visitor.Visit
		}
		return haystack.Fetch(c.metaIdx, addrID, keyPrefix, visit)
	}, c.opts.requestTimeout)

	metas, _ := v.([]haystack.Meta)
	return metas, err
}

// Store implements spec.md §4.5's store(meta, body): like put, but the
// caller supplies an already-built metadata and raw body. spec.md §9 notes
// the source does not apply the handle-reopen policy here — parity is kept
// intentionally (see DESIGN.md).
func (c *Container) Store(meta haystack.Meta, body []byte) error {
	_, err := c.submit(func() (any, error) {
		return nil, c.store(meta, body)
	}, c.opts.requestTimeout)
	return err
}

func (c *Container) store(meta haystack.Meta, body []byte) error {
	present, old, probeErr := c.probe(meta.AddrID, meta.Key)

	var diffRec int64
	var oldSize int64
	switch {
	case probeErr != nil:
		diffRec, oldSize = 1, 0
	case present:
		diffRec, oldSize = 0, old.Size
	default:
		diffRec, oldSize = 1, 0
	}

	newSize := haystack.CalcObjSize(haystack.Object{AddrID: meta.AddrID, Key: meta.Key, Body: body}, c.opts.compress)

	err := haystack.Store(c.metaIdx, c.backend.h, meta, body, c.opts.compress)
	// No reopenIfClosed call here — intentional, see doc comment above.

	if err == nil {
		c.stats.TotalSizes += newSize
		c.stats.ActiveSizes += newSize - oldSize
		c.stats.TotalNum++
		c.stats.ActiveNum += diffRec

		if c.opts.alwaysFSync {
			if serr := c.backend.h.Sync(); serr != nil {
				c.lo.Error("fsync after store", "error", serr)
			}
		}
	}

	return err
}

// Stats implements spec.md §4.5's stats(): a copy of the current counters.
func (c *Container) Stats() (StorageStats, error) {
	v, err := c.submit(func() (any, error) {
		cp := *c.stats
		cp.CompactionHistories = append([]CompactionRecord(nil), c.stats.CompactionHistories...)
		return cp, nil
	}, c.opts.requestTimeout)

	stats, _ := v.(StorageStats)
	return stats, err
}
