package container

import "time"

// defaultRequestTimeout is the dispatcher's request deadline for every
// operation except compact (spec.md §4.4).
const defaultRequestTimeout = 30 * time.Second

// Opts holds a container's tunables. ID, SeqNo, MetaDBID and Root are
// required constructor arguments (spec.md §6's start_link(id, seq_no,
// meta_db_id, root_path)); everything else is an optional Config.
//
// Adapted from the teacher's root-level config.go functional-options
// pattern (Options/Config), trimmed of the CLI/config-loading-era fields
// (ReadOnly, background sync/rotation intervals) that spec.md §1 places out
// of scope for this module.
type Opts struct {
	ID       string
	SeqNo    int
	MetaDBID string
	Root     string

	debug          bool
	alwaysFSync    bool
	compress       bool
	requestTimeout time.Duration
}

// Config configures an Opts in place.
type Config func(*Opts)

func newOpts(id string, seqNo int, metaDBID, root string, cfgs ...Config) *Opts {
	o := &Opts{
		ID:             id,
		SeqNo:          seqNo,
		MetaDBID:       metaDBID,
		Root:           root,
		requestTimeout: defaultRequestTimeout,
	}
	for _, c := range cfgs {
		c(o)
	}
	return o
}

// WithDebug enables debug-level logging.
func WithDebug() Config {
	return func(o *Opts) { o.debug = true }
}

// WithAlwaysFSync fsyncs the write handle after every put/delete/store.
func WithAlwaysFSync() Config {
	return func(o *Opts) { o.alwaysFSync = true }
}

// WithCompression transparently compresses object bodies (internal/haystack,
// via klauspost/compress/s2) before framing them on disk.
func WithCompression() Config {
	return func(o *Opts) { o.compress = true }
}

// WithRequestTimeout overrides the default 30s non-compact request deadline.
func WithRequestTimeout(d time.Duration) Config {
	return func(o *Opts) { o.requestTimeout = d }
}
