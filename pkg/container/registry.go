package container

import (
	"fmt"

	"github.com/alphadose/haxmap"

	"github.com/nodeshard/containerstore/internal/haystack"
)

// Registry is the id-keyed lookup spec.md §6 assumes sits in front of every
// public operation ("start_link(id, ...)", "put(id, obj)", ...): a
// concurrent map from container id to its running *Container, so a caller
// never has to hold its own reference once a container has been started.
//
// Grounded on pschou-go-wormdb's cache.go CacheMap, which wraps the same
// alphadose/haxmap.Map for a concurrent string-keyed lookup; Registry
// generalizes that to hold *Container and to own the start/stop lifecycle
// rather than just caching lookups.
type Registry struct {
	containers *haxmap.Map[string, *Container]
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{containers: haxmap.New[string, *Container]()}
}

// StartLink implements spec.md §6's start_link(id, seq_no, meta_db_id,
// root_path): initializes a container and registers it under id. Returns an
// error if id is already registered — callers that want idempotent restart
// semantics should Stop the old container first.
func (r *Registry) StartLink(id string, seqNo int, metaDBID, root string, cfgs ...Config) (*Container, error) {
	if _, ok := r.containers.Get(id); ok {
		return nil, fmt.Errorf("container: registry: %q already started", id)
	}

	c, err := Init(id, seqNo, metaDBID, root, cfgs...)
	if err != nil {
		return nil, err
	}

	r.containers.Set(id, c)
	return c, nil
}

// Stop implements spec.md §6's stop(id): drains and tears down the
// container registered under id, then removes it from the registry.
func (r *Registry) Stop(id string) error {
	c, ok := r.containers.Get(id)
	if !ok {
		return ErrNotFound
	}
	err := c.Stop()
	r.containers.Del(id)
	return err
}

func (r *Registry) lookup(id string) (*Container, error) {
	c, ok := r.containers.Get(id)
	if !ok {
		return nil, ErrNotFound
	}
	return c, nil
}

// Put implements spec.md §6's put(id, obj).
func (r *Registry) Put(id string, obj haystack.Object) error {
	c, err := r.lookup(id)
	if err != nil {
		return err
	}
	return c.Put(obj)
}

// Get implements spec.md §6's get(id, key, start, end).
func (r *Registry) Get(id string, addrID uint32, key string, start, end int64) (haystack.Object, error) {
	c, err := r.lookup(id)
	if err != nil {
		return haystack.Object{}, err
	}
	return c.Get(addrID, key, start, end)
}

// Delete implements spec.md §6's delete(id, obj).
func (r *Registry) Delete(id string, obj haystack.Object) error {
	c, err := r.lookup(id)
	if err != nil {
		return err
	}
	return c.Delete(obj)
}

// Head implements spec.md §6's head(id, key).
func (r *Registry) Head(id string, addrID uint32, key string) (haystack.Meta, error) {
	c, err := r.lookup(id)
	if err != nil {
		return haystack.Meta{}, err
	}
	return c.Head(addrID, key)
}

// Fetch implements spec.md §6's fetch(id, key_prefix, visitor).
func (r *Registry) Fetch(id string, addrID uint32, keyPrefix string, visitor Visitor) ([]haystack.Meta, error) {
	c, err := r.lookup(id)
	if err != nil {
		return nil, err
	}
	return c.Fetch(addrID, keyPrefix, visitor)
}

// Store implements spec.md §6's store(id, meta, body).
func (r *Registry) Store(id string, meta haystack.Meta, body []byte) error {
	c, err := r.lookup(id)
	if err != nil {
		return err
	}
	return c.Store(meta, body)
}

// Compact implements spec.md §6's compact(id, fun).
func (r *Registry) Compact(id string, fun Ownership) error {
	c, err := r.lookup(id)
	if err != nil {
		return err
	}
	return c.Compact(fun)
}

// Stats implements spec.md §6's stats(id).
func (r *Registry) Stats(id string) (StorageStats, error) {
	c, err := r.lookup(id)
	if err != nil {
		return StorageStats{}, err
	}
	return c.Stats()
}

// GetDBRawFilepath implements spec.md §6's get_db_raw_filepath(id): the path
// a container's metadata index persists its snapshot under.
func (r *Registry) GetDBRawFilepath(id string) (string, error) {
	c, err := r.lookup(id)
	if err != nil {
		return "", err
	}
	return c.metaIdx.GetDBRawFilepath()
}
