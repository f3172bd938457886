package container

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nodeshard/containerstore/internal/haystack"
)

func TestCompact(t *testing.T) {
	assert := assert.New(t)

	tmpDir, err := os.MkdirTemp("", "containerstore")
	defer os.RemoveAll(tmpDir)
	assert.NoError(err)

	c, err := Init("c0", 0, "meta0", tmpDir)
	assert.NoError(err)

	assert.NoError(c.Put(haystack.Object{AddrID: 1, Key: "k1", Body: []byte("v1")}))
	assert.NoError(c.Put(haystack.Object{AddrID: 1, Key: "k1", Body: []byte("v1-updated")}))
	assert.NoError(c.Put(haystack.Object{AddrID: 1, Key: "k2", Body: []byte("v2")}))
	assert.NoError(c.Delete(haystack.Object{AddrID: 1, Key: "k2"}))

	before, err := c.Stats()
	assert.NoError(err)
	assert.Equal(int64(4), before.TotalNum)

	t.Run("Compact", func(t *testing.T) {
		assert.NoError(c.Compact(nil))
	})

	t.Run("Data_Survives", func(t *testing.T) {
		obj, err := c.Get(1, "k1", 0, -1)
		assert.NoError(err)
		assert.Equal("v1-updated", string(obj.Body))

		_, err = c.Get(1, "k2", 0, -1)
		assert.ErrorIs(err, haystack.ErrNotFound)
	})

	t.Run("History_Recorded", func(t *testing.T) {
		stats, err := c.Stats()
		assert.NoError(err)
		assert.Len(stats.CompactionHistories, 1)
		assert.NotZero(stats.CompactionHistories[0].Start)
		assert.NotZero(stats.CompactionHistories[0].End)
		assert.False(stats.HasError)
	})

	t.Run("Dead_Bytes_Dropped", func(t *testing.T) {
		stats, err := c.Stats()
		assert.NoError(err)
		// The superseded k1 write, the superseded k2 write, and the k2
		// tombstone itself are all dropped — only the k1 update survives.
		assert.Equal(int64(1), stats.TotalNum)
		assert.Equal(int64(1), stats.ActiveNum)
	})

	t.Run("Reentrant_Compact_Rejected", func(t *testing.T) {
		block := make(chan struct{})
		started := make(chan struct{})
		go func() {
			c.state.Store(int32(stateCompacting))
			close(started)
			<-block
			c.state.Store(int32(stateReady))
		}()
		<-started

		err := c.Compact(nil)
		assert.ErrorIs(err, ErrReentrantCompact)
		close(block)
	})

	t.Run("Stop", func(t *testing.T) {
		assert.NoError(c.Stop())
	})
}

func TestCompactDropsOrphansByOwnership(t *testing.T) {
	assert := assert.New(t)

	tmpDir, err := os.MkdirTemp("", "containerstore")
	defer os.RemoveAll(tmpDir)
	assert.NoError(err)

	c, err := Init("c0", 0, "meta0", tmpDir)
	assert.NoError(err)

	assert.NoError(c.Put(haystack.Object{AddrID: 1, Key: "a", Body: []byte("va")}))
	assert.NoError(c.Put(haystack.Object{AddrID: 1, Key: "b", Body: []byte("vb")}))
	assert.NoError(c.Put(haystack.Object{AddrID: 1, Key: "c", Body: []byte("vc")}))

	keepOnlyA := OwnershipFunc(func(keyBin []byte) bool {
		return string(keyBin) == "a"
	})
	assert.NoError(c.Compact(keepOnlyA))

	obj, err := c.Get(1, "a", 0, -1)
	assert.NoError(err)
	assert.Equal("va", string(obj.Body))

	_, err = c.Get(1, "b", 0, -1)
	assert.ErrorIs(err, haystack.ErrNotFound)
	_, err = c.Get(1, "c", 0, -1)
	assert.ErrorIs(err, haystack.ErrNotFound)

	stats, err := c.Stats()
	assert.NoError(err)
	assert.Equal(int64(1), stats.TotalNum)
	assert.Equal(int64(1), stats.ActiveNum)

	assert.NoError(c.Stop())
}

func TestDirSizeSumsRegularFiles(t *testing.T) {
	assert := assert.New(t)
	dir := t.TempDir()

	assert.NoError(os.WriteFile(dir+"/a", make([]byte, 100), 0o644))
	assert.NoError(os.WriteFile(dir+"/b", make([]byte, 50), 0o644))

	size, err := dirSize(dir)
	assert.NoError(err)
	assert.Equal(int64(150), size)
}

func TestDirSizeMissingDirIsZero(t *testing.T) {
	assert := assert.New(t)
	size, err := dirSize("/no/such/path/at/all")
	assert.NoError(err)
	assert.Zero(size)
}

func TestCheckFreeSpacePassesUnderNormalConditions(t *testing.T) {
	assert := assert.New(t)

	tmpDir, err := os.MkdirTemp("", "containerstore")
	defer os.RemoveAll(tmpDir)
	assert.NoError(err)

	c, err := Init("c0", 0, "meta0", tmpDir)
	assert.NoError(err)
	assert.NoError(c.Put(haystack.Object{AddrID: 1, Key: "k", Body: []byte("v")}))

	assert.NoError(c.checkFreeSpace())
	assert.NoError(c.Stop())
}

func TestCompactPreservesAcrossRestart(t *testing.T) {
	assert := assert.New(t)

	tmpDir, err := os.MkdirTemp("", "containerstore")
	defer os.RemoveAll(tmpDir)
	assert.NoError(err)

	c, err := Init("c0", 0, "meta0", tmpDir)
	assert.NoError(err)
	assert.NoError(c.Put(haystack.Object{AddrID: 1, Key: "k", Body: []byte("v")}))
	assert.NoError(c.Compact(nil))
	assert.NoError(c.Stop())

	c2, err := Init("c0", 0, "meta0", tmpDir)
	assert.NoError(err)

	obj, err := c2.Get(1, "k", 0, -1)
	assert.NoError(err)
	assert.Equal("v", string(obj.Body))

	assert.NoError(c2.Stop())
}
