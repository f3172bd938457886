package container

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"

	"github.com/nodeshard/containerstore/internal/haystack"
)

// diskFreeFactor is Phase A's precheck multiplier (spec.md §4.6 Phase A):
// remain = disk_free(mount) - 1.5 * (size_of(stable_file) + size_of(meta_db_dir)).
const diskFreeFactor = 1.5

// Ownership is the caller-supplied node-ownership predicate spec.md §4.6
// Phase B names fun_has_charge_of_node(key_bin): a record survives
// compaction only if it is both still live (not superseded, not a
// tombstone) and currently assigned to this node. Modeled as a small
// single-method interface per spec.md §9's "well-typed single method" note,
// the same shape as Visitor.
type Ownership interface {
	HasCharge(keyBin []byte) bool
}

// OwnershipFunc adapts a plain function to the Ownership interface.
type OwnershipFunc func(keyBin []byte) bool

func (f OwnershipFunc) HasCharge(keyBin []byte) bool { return f(keyBin) }

// Compact runs spec.md §4.6's three-phase online compaction: build a fresh
// raw file containing only live, owned records, then atomically swap the
// stable symlink onto it. It has no request deadline — submit is called
// with a timeout of 0, per spec.md §5. fun may be nil, meaning every
// non-deleted, non-superseded record is kept (no node-ownership filtering).
func (c *Container) Compact(fun Ownership) error {
	_, err := c.submit(func() (any, error) {
		return nil, c.compact(fun)
	}, 0)
	return err
}

func (c *Container) compact(fun Ownership) (err error) {
	if !c.state.CompareAndSwap(int32(stateReady), int32(stateCompacting)) {
		return ErrReentrantCompact
	}
	defer c.state.Store(int32(stateReady))

	start := time.Now().Unix()
	c.stats.pushHistory(start)

	ok := false
	defer func() {
		c.stats.closeHistory(time.Now().Unix())
		if !ok {
			c.stats.HasError = true
		}
	}()

	// Phase A — Prepare.
	if err := c.checkFreeSpace(); err != nil {
		return err
	}

	newRaw := mintRaw(c.backend.filePath)
	tmpH, err := haystack.Open(newRaw)
	if err != nil {
		return fmt.Errorf("container: compact: opening tmp file %q: %w", newRaw, err)
	}
	c.backend.tmpFilePathRaw = newRaw
	c.backend.tmpH = tmpH

	if err := c.metaIdx.CompactStart(); err != nil {
		_ = tmpH.Close()
		_ = os.Remove(newRaw)
		c.backend.tmpFilePathRaw = ""
		c.backend.tmpH = nil
		return err
	}

	// Phase B — Scan and copy.
	var activeSizes, activeNum, totalSizes, totalNum int64
	var offset int64
	for {
		meta, hdr, keyBin, bodyBin, next, gerr := haystack.CompactGet(c.backend.h, offset)
		if gerr == haystack.ErrEOF {
			break
		}
		if gerr != nil {
			_ = c.rollbackCompact()
			return fmt.Errorf("container: compact: scanning source: %w", gerr)
		}
		offset = next

		if c.isDeleted(meta) || !c.hasChargeOfNode(meta, keyBin, fun) {
			continue
		}

		newOffset, perr := haystack.CompactPut(tmpH, hdr, keyBin, bodyBin)
		if perr != nil {
			_ = c.rollbackCompact()
			return fmt.Errorf("container: compact: writing tmp file: %w", perr)
		}
		meta.Offset = newOffset
		if err := c.metaIdx.CompactPut(meta); err != nil {
			_ = c.rollbackCompact()
			return fmt.Errorf("container: compact: %w", err)
		}
		totalSizes += meta.Size
		totalNum++
		activeSizes += meta.Size
		activeNum++
	}

	if err := tmpH.Sync(); err != nil {
		_ = c.rollbackCompact()
		return fmt.Errorf("container: compact: fsync tmp file: %w", err)
	}

	// Phase C — Commit or rollback.
	oldRaw := c.backend.filePathRaw
	oldH := c.backend.h

	if err := swapSymlink(c.backend.filePath, newRaw); err != nil {
		_ = c.rollbackCompact()
		return fmt.Errorf("container: compact: swapping symlink: %w", err)
	}

	if err := c.metaIdx.CompactEnd(true); err != nil {
		_ = c.rollbackCompact()
		return fmt.Errorf("container: compact: committing index: %w", err)
	}

	c.backend.filePathRaw = newRaw
	c.backend.h = tmpH
	c.backend.tmpFilePathRaw = ""
	c.backend.tmpH = nil

	if err := oldH.Close(); err != nil {
		c.lo.Error("closing superseded raw file", "error", err)
	}
	if err := os.Remove(oldRaw); err != nil && !os.IsNotExist(err) {
		c.lo.Error("removing superseded raw file", "path", oldRaw, "error", err)
	}

	c.stats.TotalSizes = totalSizes
	c.stats.TotalNum = totalNum
	c.stats.ActiveSizes = activeSizes
	c.stats.ActiveNum = activeNum

	ok = true
	return nil
}

// isDeleted implements spec.md §4.6 Phase B's is_deleted(meta_db, meta):
// tombstones are dropped during compaction rather than carried forward —
// a deleted key has nothing worth copying, and its index entry simply
// disappears along with the record (a later Get already treats a missing
// entry and a Del=true entry identically).
func (c *Container) isDeleted(meta haystack.Meta) bool {
	return meta.Del
}

// hasChargeOfNode implements the rest of spec.md §4.6 Phase B's
// drop = is_deleted(meta_db, meta) ∨ ¬fun_has_charge_of_node(key_bin): a
// scanned record is kept only if the index's current entry for
// (addr_id, key) still points at this exact offset (otherwise it has been
// superseded by a later put/store and is an orphan) and, when a node-
// ownership predicate was supplied, fun reports this node still owns
// key_bin. A nil fun means no node-ownership filtering is in effect.
func (c *Container) hasChargeOfNode(meta haystack.Meta, keyBin []byte, fun Ownership) bool {
	cur, ok, err := c.metaIdx.Get(meta.AddrID, meta.Key)
	if err != nil || !ok || cur.Offset != meta.Offset {
		return false
	}
	if fun == nil {
		return true
	}
	return fun.HasCharge(keyBin)
}

// rollbackCompact discards the shadow index and the tmp file built so far,
// leaving the live file and index exactly as they were before compact began.
func (c *Container) rollbackCompact() error {
	var errs []error
	if err := c.metaIdx.CompactEnd(false); err != nil {
		errs = append(errs, err)
	}
	if c.backend.tmpH != nil {
		if err := c.backend.tmpH.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if c.backend.tmpFilePathRaw != "" {
		if err := os.Remove(c.backend.tmpFilePathRaw); err != nil && !os.IsNotExist(err) {
			errs = append(errs, err)
		}
	}
	c.backend.tmpFilePathRaw = ""
	c.backend.tmpH = nil

	if len(errs) == 0 {
		return nil
	}
	return errs[0]
}

// checkFreeSpace implements Phase A's precheck exactly per spec.md §4.6:
// refuse to start compaction unless disk_free(mount) - 1.5 * (size_of the
// live stable file + size_of the metadata index directory) is non-negative.
func (c *Container) checkFreeSpace() error {
	var st unix.Statfs_t
	if err := unix.Statfs(c.root, &st); err != nil {
		return fmt.Errorf("container: compact: statfs %q: %w", c.root, err)
	}
	free := int64(st.Bavail) * int64(st.Bsize)

	metaPath, err := c.metaIdx.GetDBRawFilepath()
	if err != nil {
		return fmt.Errorf("container: compact: %w", err)
	}
	metaSize, err := dirSize(filepath.Dir(metaPath))
	if err != nil {
		return fmt.Errorf("container: compact: sizing metadata index dir: %w", err)
	}

	need := int64(diskFreeFactor * float64(c.backend.h.Offset()+metaSize))
	remain := free - need

	if remain < 0 {
		return ErrSystemLimit
	}
	return nil
}

// dirSize sums the size of every regular file under dir. A missing dir
// (e.g. the metadata index has never been saved) sizes as zero rather than
// failing the precheck.
func dirSize(dir string) (int64, error) {
	var total int64
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return 0, err
	}
	return total, nil
}
