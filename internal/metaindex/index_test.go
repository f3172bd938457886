package metaindex

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nodeshard/containerstore/internal/haystack"
)

func TestGetPutRoundTrip(t *testing.T) {
	assert := assert.New(t)
	idx := New(t.TempDir())

	assert.NoError(idx.Put(haystack.Meta{AddrID: 1, Key: "k", Offset: 10, Size: 20}))

	m, ok, err := idx.Get(1, "k")
	assert.NoError(err)
	assert.True(ok)
	assert.Equal(int64(10), m.Offset)

	_, ok, err = idx.Get(1, "missing")
	assert.NoError(err)
	assert.False(ok)
}

func TestFetchOrderedPrefixScan(t *testing.T) {
	assert := assert.New(t)
	idx := New(t.TempDir())

	assert.NoError(idx.Put(haystack.Meta{AddrID: 1, Key: "user:1"}))
	assert.NoError(idx.Put(haystack.Meta{AddrID: 1, Key: "user:2"}))
	assert.NoError(idx.Put(haystack.Meta{AddrID: 1, Key: "zzz"}))
	assert.NoError(idx.Put(haystack.Meta{AddrID: 2, Key: "user:1"}))

	metas, err := idx.Fetch(1, "user:", nil)
	assert.NoError(err)
	assert.Len(metas, 2)
	assert.Equal("user:1", metas[0].Key)
	assert.Equal("user:2", metas[1].Key)
}

func TestFetchVisitorStopsEarly(t *testing.T) {
	assert := assert.New(t)
	idx := New(t.TempDir())

	assert.NoError(idx.Put(haystack.Meta{AddrID: 1, Key: "a"}))
	assert.NoError(idx.Put(haystack.Meta{AddrID: 1, Key: "b"}))
	assert.NoError(idx.Put(haystack.Meta{AddrID: 1, Key: "c"}))

	seen := 0
	_, err := idx.Fetch(1, "", func(haystack.Meta) bool {
		seen++
		return seen < 2
	})
	assert.NoError(err)
	assert.Equal(2, seen)
}

func TestCompactLifecycleCommit(t *testing.T) {
	assert := assert.New(t)
	idx := New(t.TempDir())

	assert.NoError(idx.Put(haystack.Meta{AddrID: 1, Key: "old"}))

	assert.NoError(idx.CompactStart())
	assert.NoError(idx.CompactPut(haystack.Meta{AddrID: 1, Key: "new"}))

	// The shadow tree is invisible to Get until commit.
	_, ok, err := idx.Get(1, "new")
	assert.NoError(err)
	assert.False(ok)

	assert.NoError(idx.CompactEnd(true))

	_, ok, err = idx.Get(1, "new")
	assert.NoError(err)
	assert.True(ok)

	// The pre-compaction entry did not survive the commit (it was not copied
	// into the shadow tree).
	_, ok, err = idx.Get(1, "old")
	assert.NoError(err)
	assert.False(ok)
}

func TestCompactLifecycleRollback(t *testing.T) {
	assert := assert.New(t)
	idx := New(t.TempDir())

	assert.NoError(idx.Put(haystack.Meta{AddrID: 1, Key: "kept"}))

	assert.NoError(idx.CompactStart())
	assert.NoError(idx.CompactPut(haystack.Meta{AddrID: 1, Key: "discarded"}))
	assert.NoError(idx.CompactEnd(false))

	_, ok, err := idx.Get(1, "kept")
	assert.NoError(err)
	assert.True(ok)

	_, ok, err = idx.Get(1, "discarded")
	assert.NoError(err)
	assert.False(ok)
}

func TestReentrantCompactRejected(t *testing.T) {
	assert := assert.New(t)
	idx := New(t.TempDir())

	assert.NoError(idx.CompactStart())
	assert.ErrorIs(idx.CompactStart(), ErrReentrantCompact)
	assert.NoError(idx.CompactEnd(false))
}

func TestCompactPutWithoutStart(t *testing.T) {
	assert := assert.New(t)
	idx := New(t.TempDir())

	err := idx.CompactPut(haystack.Meta{AddrID: 1, Key: "k"})
	assert.ErrorIs(err, ErrNotCompacting)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	assert := assert.New(t)
	dir := t.TempDir()

	idx := New(dir)
	assert.NoError(idx.Put(haystack.Meta{AddrID: 1, Key: "a", Offset: 1, Size: 2}))
	assert.NoError(idx.Put(haystack.Meta{AddrID: 2, Key: "b", Offset: 3, Size: 4}))
	assert.NoError(idx.Save())

	idx2 := New(dir)
	assert.NoError(idx2.Load())

	m, ok, err := idx2.Get(1, "a")
	assert.NoError(err)
	assert.True(ok)
	assert.Equal(int64(1), m.Offset)

	m, ok, err = idx2.Get(2, "b")
	assert.NoError(err)
	assert.True(ok)
	assert.Equal(int64(3), m.Offset)
}

func TestLoadMissingSnapshotStartsEmpty(t *testing.T) {
	assert := assert.New(t)
	idx := New(t.TempDir())
	assert.NoError(idx.Load())

	_, ok, err := idx.Get(1, "anything")
	assert.NoError(err)
	assert.False(ok)
}
