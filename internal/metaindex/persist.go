package metaindex

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tidwall/btree"

	"github.com/nodeshard/containerstore/internal/bloom"
	"github.com/nodeshard/containerstore/internal/haystack"
)

const snapshotFile = "index.gob"

func snapshotPath(dir string) string {
	return filepath.Join(dir, snapshotFile)
}

// Save persists a full snapshot of the live tree to disk via a temp-file +
// rename, matching the teacher's keydir.go gob-based hints file.
func (x *Index) Save() error {
	x.mu.RLock()
	metas := make([]haystack.Meta, 0, x.tree.Len())
	x.tree.Scan(func(e entry) bool {
		metas = append(metas, e.meta)
		return true
	})
	x.mu.RUnlock()

	if err := os.MkdirAll(x.dir, 0o755); err != nil {
		return fmt.Errorf("metaindex: creating %q: %w", x.dir, err)
	}

	path := snapshotPath(x.dir)
	tmp := path + ".tmp"

	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("metaindex: creating snapshot: %w", err)
	}
	if err := gob.NewEncoder(f).Encode(metas); err != nil {
		f.Close()
		return fmt.Errorf("metaindex: encoding snapshot: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("metaindex: closing snapshot: %w", err)
	}

	return os.Rename(tmp, path)
}

// Load repopulates the index from a prior Save, if one exists. A missing or
// unreadable snapshot is not an error — the index just starts empty, same
// as the stats store's tolerance for a missing property file (spec.md §4.2).
func (x *Index) Load() error {
	path := snapshotPath(x.dir)

	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var metas []haystack.Meta
	if err := gob.NewDecoder(f).Decode(&metas); err != nil {
		return nil
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	x.tree = btreeFromMetas(metas)
	x.filter = filterFromMetas(metas)
	return nil
}

func btreeFromMetas(metas []haystack.Meta) *btree.BTreeG[entry] {
	tree := btree.NewBTreeG(entryLess)
	for _, m := range metas {
		tree.Set(entry{key: EncodeKey(m.AddrID, m.Key), meta: m})
	}
	return tree
}

func filterFromMetas(metas []haystack.Meta) *bloom.Filter {
	f := bloom.New(bloomExpectedEntries, bloomFalsePositive)
	for _, m := range metas {
		f.Add(EncodeKey(m.AddrID, m.Key))
	}
	return f
}
