package container

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// maxCompactionHistory bounds compaction_histories at 7 entries (spec.md I5).
const maxCompactionHistory = 7

const stateDirName = "state"

// CompactionRecord is one (start_time, end_time) pair in compaction_histories.
// end == 0 denotes an in-flight compaction (spec.md §3).
type CompactionRecord struct {
	Start int64
	End   int64
}

// StorageStats is the in-memory accumulator persisted on shutdown
// (spec.md §3's "Storage stats"). Every field is read/written only from
// inside the container's dispatcher goroutine, so it needs no locking of
// its own.
type StorageStats struct {
	FilePath            string
	TotalSizes          int64
	ActiveSizes         int64
	TotalNum            int64
	ActiveNum           int64
	CompactionHistories []CompactionRecord
	HasError            bool
}

// pushHistory prepends a new (start, 0) entry, evicting the oldest entry
// (index maxCompactionHistory-1) if the list would otherwise exceed 7 —
// spec.md §9 is explicit that eviction is from the tail by index, not by
// recency of use, and that the newest entry is always at index 0.
func (s *StorageStats) pushHistory(start int64) {
	hist := append([]CompactionRecord{{Start: start}}, s.CompactionHistories...)
	if len(hist) > maxCompactionHistory {
		hist = hist[:maxCompactionHistory]
	}
	s.CompactionHistories = hist
}

// closeHistory sets the end time on the most recent (in-flight) entry.
func (s *StorageStats) closeHistory(end int64) {
	if len(s.CompactionHistories) == 0 {
		return
	}
	s.CompactionHistories[0].End = end
}

func statePath(root, id string) string {
	return filepath.Join(root, stateDirName, id)
}

// loadStats implements spec.md §4.2: parse the seven-key property file if
// present and readable; otherwise start from zero. Never fails init.
func loadStats(root, id string) *StorageStats {
	stats := &StorageStats{FilePath: statePath(root, id)}

	f, err := os.Open(stats.FilePath)
	if err != nil {
		return stats
	}
	defer f.Close()

	kv := map[string]string{}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		kv[parts[0]] = parts[1]
	}

	stats.TotalSizes = parseInt64(kv["total_sizes"])
	stats.ActiveSizes = parseInt64(kv["active_sizes"])
	stats.TotalNum = parseInt64(kv["total_num"])
	stats.ActiveNum = parseInt64(kv["active_num"])
	stats.HasError = kv["has_error"] == "true"
	stats.CompactionHistories = parseHistories(kv["compaction_histories"])

	return stats
}

// saveStats implements spec.md §4.2's terminate-time persistence: ensure the
// parent directory exists, then write atomically (temp file + rename).
func saveStats(s *StorageStats) error {
	dir := filepath.Dir(s.FilePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("container: creating state dir %q: %w", dir, err)
	}

	tmp := s.FilePath + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("container: creating state file: %w", err)
	}

	w := bufio.NewWriter(f)
	fmt.Fprintf(w, "id=%s\n", filepath.Base(s.FilePath))
	fmt.Fprintf(w, "total_sizes=%d\n", s.TotalSizes)
	fmt.Fprintf(w, "active_sizes=%d\n", s.ActiveSizes)
	fmt.Fprintf(w, "total_num=%d\n", s.TotalNum)
	fmt.Fprintf(w, "active_num=%d\n", s.ActiveNum)
	fmt.Fprintf(w, "has_error=%t\n", s.HasError)
	fmt.Fprintf(w, "compaction_histories=%s\n", formatHistories(s.CompactionHistories))

	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("container: writing state file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("container: closing state file: %w", err)
	}

	return os.Rename(tmp, s.FilePath)
}

func parseInt64(s string) int64 {
	if s == "" {
		return 0
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func formatHistories(hist []CompactionRecord) string {
	parts := make([]string, len(hist))
	for i, h := range hist {
		parts[i] = fmt.Sprintf("%d:%d", h.Start, h.End)
	}
	return strings.Join(parts, ",")
}

func parseHistories(s string) []CompactionRecord {
	if s == "" {
		return nil
	}
	fields := strings.Split(s, ",")
	out := make([]CompactionRecord, 0, len(fields))
	for _, f := range fields {
		se := strings.SplitN(f, ":", 2)
		if len(se) != 2 {
			continue
		}
		out = append(out, CompactionRecord{Start: parseInt64(se[0]), End: parseInt64(se[1])})
	}
	if len(out) > maxCompactionHistory {
		out = out[:maxCompactionHistory]
	}
	return out
}
