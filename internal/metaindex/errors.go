package metaindex

import "errors"

var (
	// ErrReentrantCompact is returned by CompactStart if a compact is
	// already in flight — the compactor (pkg/container) is itself
	// reentry-forbidden, but the index enforces it too as a last line of
	// defense (spec.md §3 lifecycle: "Compacting ... reentry forbidden").
	ErrReentrantCompact = errors.New("metaindex: compact already in progress")
	// ErrNotCompacting is returned by CompactPut if called outside a
	// CompactStart/CompactEnd window.
	ErrNotCompacting = errors.New("metaindex: compact_put outside compact_start/compact_end")
)
