package container

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const objectDirName = "objects"

// stablePath returns the public symlink path for a container (spec.md §4.1,
// §6: "<root>/<object_dir>/<seq_no>.avs").
func stablePath(root string, seqNo int) string {
	return filepath.Join(root, objectDirName, fmt.Sprintf("%d.avs", seqNo))
}

// mintRaw mints a fresh raw AVS filename from a stable path. Names have
// one-second granularity, so a raw file created earlier in the same second
// (e.g. on first boot, just before a compaction) would otherwise get the
// same name; the seconds value is advanced past any existing file so the
// returned name never refers to a file already on disk. A collision between
// workers racing on the same stable path is not guarded against here.
func mintRaw(stable string) string {
	now := time.Now().Unix()
	for {
		raw := fmt.Sprintf("%s_%d", stable, now)
		if _, err := os.Lstat(raw); os.IsNotExist(err) {
			return raw
		}
		now++
	}
}

// resolvePath implements spec.md §4.1's resolution algorithm: read the
// stable symlink, minting a fresh raw file and symlink on first boot.
func resolvePath(root string, seqNo int) (raw string, err error) {
	dir := filepath.Join(root, objectDirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("container: creating object dir %q: %w", dir, err)
	}

	stable := stablePath(root, seqNo)

	target, err := os.Readlink(stable)
	switch {
	case err == nil:
		if filepath.IsAbs(target) {
			return target, nil
		}
		return filepath.Join(dir, target), nil

	case os.IsNotExist(err):
		rawPath := mintRaw(stable)
		f, ferr := os.OpenFile(rawPath, os.O_CREATE|os.O_WRONLY, 0o644)
		if ferr != nil {
			return "", fmt.Errorf("container: creating raw file %q: %w", rawPath, ferr)
		}
		if cerr := f.Close(); cerr != nil {
			return "", fmt.Errorf("container: closing raw file %q: %w", rawPath, cerr)
		}
		if serr := os.Symlink(filepath.Base(rawPath), stable); serr != nil {
			return "", fmt.Errorf("container: creating symlink %q: %w", stable, serr)
		}
		return rawPath, nil

	default:
		return "", fmt.Errorf("container: reading symlink %q: %w", stable, err)
	}
}

// swapSymlink atomically repoints the stable path at newRaw (spec.md §4.6
// Phase C: "the symlink swap must precede deletion of the old raw file").
func swapSymlink(stable, newRaw string) error {
	_ = os.Remove(stable) // best-effort; Not-Exist is fine.
	return os.Symlink(filepath.Base(newRaw), stable)
}
