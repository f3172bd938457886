// Package container implements the single-container object-store worker:
// the per-container state machine, record handle lifecycle, write/delete
// accounting, and online compactor described in spec.md. It delegates
// record framing to internal/haystack and metadata lookups to
// internal/metaindex, treating both strictly through the interfaces spec.md
// §6 names.
//
// Adapted from the teacher's pkg/barrel package: Container plays the role
// of Barrel, Opts/Config mirror the teacher's functional-options config.go,
// and the dispatcher/compactor are generalized from the teacher's
// mutex-guarded Barrel methods and compact.go/merge.go into an explicit
// single-consumer mailbox actor, matching spec.md §4.4/§5's "one logical
// mailbox per container" requirement (the teacher instead takes a mutex per
// call, which does not give the same ordered-timeout semantics spec.md
// needs).
package container

import (
	"errors"

	"github.com/nodeshard/containerstore/internal/haystack"
)

var (
	// ErrNotFound is returned by the Registry for an id with no running
	// container. A missing key is reported by the object operations as
	// haystack.ErrNotFound.
	ErrNotFound = errors.New("container: not found")
	// ErrInvalidRecord surfaces a short, truncated, or otherwise malformed
	// on-disk record (spec.md §7). Re-exported from internal/haystack so
	// callers can errors.Is against either package's name for the same
	// underlying sentinel.
	ErrInvalidRecord = haystack.ErrInvalidRecord
	// ErrTimeout is returned to a caller when its request deadline elapses
	// before the dispatcher replies (spec.md §5). An operation the
	// dispatcher had already taken is not cancelled and runs to completion;
	// one whose deadline passed before the dispatcher took it is not run.
	ErrTimeout = errors.New("container: request timed out")
	// ErrTerminating is returned by any op submitted after Stop has been
	// called.
	ErrTerminating = errors.New("container: terminating")
	// ErrReentrantCompact is returned if compact is invoked while one is
	// already running (spec.md §3: "Compacting ... reentry forbidden").
	ErrReentrantCompact = errors.New("container: compaction already in progress")
	// ErrSystemLimit is returned by compact's Phase A precheck when there
	// is not enough free disk space to safely run (spec.md §4.6 Phase A).
	ErrSystemLimit = errors.New("container: insufficient disk space for compaction")
)
