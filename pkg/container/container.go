package container

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/zerodha/logf"

	"github.com/nodeshard/containerstore/internal/haystack"
	"github.com/nodeshard/containerstore/internal/metaindex"
)

// lifecycleState is spec.md §3's per-container state machine:
// Init -> Ready -> Compacting -> Ready, Ready -> Terminating.
type lifecycleState int32

const (
	stateInit lifecycleState = iota
	stateReady
	stateCompacting
	stateTerminating
)

// Container is the worker spec.md describes: it owns one AVS file (behind a
// stable symlink) and one metadata index, and serializes every operation
// against that pair through a single dispatcher goroutine.
//
// Adapted from the teacher's pkg/barrel.Barrel: the mutex-per-call model is
// replaced with the explicit mailbox dispatcher.go implements, and the
// flat KeyDir is replaced with internal/metaindex.Index.
type Container struct {
	id       string
	seqNo    int
	metaDBID string
	root     string

	opts *Opts
	lo   logf.Logger

	mbox chan job
	done chan struct{}
	wg   sync.WaitGroup

	state atomic.Int32

	backend *backend
	metaIdx *metaindex.Index
	stats   *StorageStats
	flock   *os.File
}

// Init brings a container from Init to Ready: resolves its AVS path
// (minting a fresh raw file and symlink on first boot), opens the handle
// pair, loads the metadata index snapshot and persisted stats, and starts
// the dispatcher. Implements spec.md §6's start_link(id, seq_no,
// meta_db_id, root_path).
func Init(id string, seqNo int, metaDBID, root string, cfgs ...Config) (*Container, error) {
	opts := newOpts(id, seqNo, metaDBID, root, cfgs...)
	lo := initLogger(opts.debug)

	raw, err := resolvePath(root, seqNo)
	if err != nil {
		return nil, fmt.Errorf("container: init: %w", err)
	}

	h, err := haystack.Open(raw)
	if err != nil {
		return nil, fmt.Errorf("container: init: %w", err)
	}

	lf, err := acquireFlock(lockPath(root, id))
	if err != nil {
		_ = h.Close()
		return nil, fmt.Errorf("container: init: %w", err)
	}

	metaDir := filepath.Join(root, stateDirName, metaDBID)
	idx := metaindex.New(metaDir)
	_ = idx.Load() // missing/unreadable snapshot just means starting empty.

	c := &Container{
		id:       id,
		seqNo:    seqNo,
		metaDBID: metaDBID,
		root:     root,
		opts:     opts,
		lo:       lo,
		mbox:     make(chan job),
		done:     make(chan struct{}),
		backend: &backend{
			filePath:    stablePath(root, seqNo),
			filePathRaw: raw,
			h:           h,
		},
		metaIdx: idx,
		stats:   loadStats(root, id),
		flock:   lf,
	}
	c.state.Store(int32(stateReady))

	c.wg.Add(1)
	go c.run()

	return c, nil
}

// Stop implements spec.md §6's stop(id): transitions Ready -> Terminating,
// drains the dispatcher, then closes handles and persists the metadata
// index and stats on a best-effort basis — every step is attempted even if
// an earlier one failed (spec.md §7: "Terminate always persists stats on a
// best-effort basis even if close fails").
func (c *Container) Stop() error {
	_, _ = c.submit(func() (any, error) {
		c.state.Store(int32(stateTerminating))
		return nil, nil
	}, 0)

	close(c.done)
	c.wg.Wait()

	var errs []error

	if err := c.backend.h.Close(); err != nil {
		c.lo.Error("closing handles", "error", err)
		errs = append(errs, err)
	}
	if err := c.metaIdx.Save(); err != nil {
		c.lo.Error("saving metadata index", "error", err)
		errs = append(errs, err)
	}
	if err := saveStats(c.stats); err != nil {
		c.lo.Error("saving stats", "error", err)
		errs = append(errs, err)
	}
	if err := releaseFlock(c.flock); err != nil {
		c.lo.Error("releasing lock", "error", err)
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// initLogger mirrors the teacher's pkg/barrel.initLogger.
func initLogger(debug bool) logf.Logger {
	opts := logf.Opts{EnableCaller: true}
	if debug {
		opts.Level = logf.DebugLevel
	}
	return logf.New(opts)
}
