package container

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/nodeshard/containerstore/internal/haystack"
)

// backend mirrors spec.md §3's "Backend info" struct: the stable/raw paths
// and handle pairs for the live file and, during compaction, the tmp file.
type backend struct {
	filePath    string // stable symlink path.
	filePathRaw string // current raw target.
	h           *haystack.Handles

	tmpFilePathRaw string
	tmpH           *haystack.Handles
}

// lockFileName is the advisory flock taken by every Init and held for the
// container's lifetime, grounded on the teacher's flock.go/utils.go (CreateFlockFile/
// DestroyFlockFile), preventing two processes from attaching to the same
// container concurrently. This is an ambient safety net alongside, not a
// substitute for, the dispatcher's single-actor serialization (spec.md §5).
const lockFileName = "lock"

func lockPath(root, id string) string {
	return root + "/" + stateDirName + "/" + id + "." + lockFileName
}

func acquireFlock(path string) (*os.File, error) {
	if err := os.MkdirAll(dirOf(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("container: creating lock file %q: %w", path, err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		return nil, fmt.Errorf("container: acquiring lock on %q: %w", path, err)
	}
	return f, nil
}

func releaseFlock(f *os.File) error {
	if f == nil {
		return nil
	}
	path := f.Name()
	if err := unix.Flock(int(f.Fd()), unix.LOCK_UN); err != nil {
		return fmt.Errorf("container: unlocking %q: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("container: closing lock file %q: %w", path, err)
	}
	return os.Remove(path)
}

func dirOf(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i]
		}
	}
	return "."
}

// reopenIfClosed implements spec.md §4.3's reopen_if_closed: if err signals
// a closed descriptor, reopen against the stable path (which resolves
// through the symlink to whatever raw file is currently live) and swap it
// into the backend; any other error leaves the handles untouched. The
// original err is always returned unchanged — retrying is left to the
// caller (spec.md §4.5).
func (c *Container) reopenIfClosed(err error) error {
	if err == nil || !errors.Is(err, haystack.ErrClosed) {
		return err
	}

	fresh, openErr := haystack.Open(c.backend.filePath)
	if openErr != nil {
		c.lo.Error("reopen failed", "error", openErr)
		return err
	}

	_ = c.backend.h.Close() // best-effort; it was already broken.
	c.backend.h = fresh
	c.lo.Debug("reopened handles after closed descriptor")
	return err
}
