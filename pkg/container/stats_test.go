package container

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPushHistoryEvictsTail(t *testing.T) {
	assert := assert.New(t)
	s := &StorageStats{}

	for i := int64(1); i <= maxCompactionHistory+3; i++ {
		s.pushHistory(i)
		s.closeHistory(i + 100)
	}

	assert.Len(s.CompactionHistories, maxCompactionHistory)
	// Newest push is always at index 0.
	assert.Equal(int64(maxCompactionHistory+3), s.CompactionHistories[0].Start)
	// The three oldest pushes (1, 2, 3) were evicted from the tail.
	assert.Equal(int64(4), s.CompactionHistories[maxCompactionHistory-1].Start)
}

func TestCloseHistorySetsMostRecentEnd(t *testing.T) {
	assert := assert.New(t)
	s := &StorageStats{}

	s.pushHistory(10)
	assert.Zero(s.CompactionHistories[0].End)

	s.closeHistory(20)
	assert.Equal(int64(20), s.CompactionHistories[0].End)
}

func TestSaveLoadStatsRoundTrip(t *testing.T) {
	assert := assert.New(t)

	tmpDir := t.TempDir()
	s := &StorageStats{
		FilePath:    statePath(tmpDir, "c0"),
		TotalSizes:  100,
		ActiveSizes: 80,
		TotalNum:    5,
		ActiveNum:   4,
		HasError:    true,
	}
	s.pushHistory(1)
	s.closeHistory(2)
	s.pushHistory(3)

	assert.NoError(saveStats(s))

	loaded := loadStats(tmpDir, "c0")
	assert.Equal(s.TotalSizes, loaded.TotalSizes)
	assert.Equal(s.ActiveSizes, loaded.ActiveSizes)
	assert.Equal(s.TotalNum, loaded.TotalNum)
	assert.Equal(s.ActiveNum, loaded.ActiveNum)
	assert.Equal(s.HasError, loaded.HasError)
	assert.Equal(s.CompactionHistories, loaded.CompactionHistories)
}

func TestLoadStatsMissingFileStartsZero(t *testing.T) {
	assert := assert.New(t)

	tmpDir := t.TempDir()
	s := loadStats(tmpDir, "never-written")
	assert.Zero(s.TotalSizes)
	assert.Zero(s.ActiveNum)
	assert.Empty(s.CompactionHistories)
	assert.Equal(filepath.Join(tmpDir, stateDirName, "never-written"), s.FilePath)
}

func TestSaveStatsCreatesStateDir(t *testing.T) {
	assert := assert.New(t)

	tmpDir := t.TempDir()
	s := &StorageStats{FilePath: statePath(tmpDir, "c1")}
	assert.NoError(saveStats(s))

	_, err := os.Stat(filepath.Join(tmpDir, stateDirName))
	assert.NoError(err)
}
