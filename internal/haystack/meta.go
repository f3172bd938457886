package haystack

import "time"

// Object is the caller-supplied value for a put/delete/store operation.
type Object struct {
	AddrID uint32
	Key    string
	Body   []byte
}

// Meta is the logical metadata entry spec.md §3 describes: enough to locate
// and validate the record that backs a key without re-reading its body.
type Meta struct {
	AddrID    uint32
	Key       string
	Offset    int64 // absolute byte offset of the record's header in the AVS file.
	Del       bool
	Size      int64 // total framed record size on disk (header+key+body+padding).
	Timestamp uint32
}

// CalcObjSize implements the codec.calc_obj_size(obj) contract of spec.md §6
// for a not-yet-written object: the framed size it would occupy on disk.
func CalcObjSize(obj Object, compressed bool) int64 {
	bodyLen := len(obj.Body)
	if compressed && len(obj.Body) > 0 {
		bodyLen = len(compressBody(obj.Body))
	}
	return RecordSize(len(obj.Key), bodyLen)
}

// CalcMetaSize implements the codec.calc_obj_size(meta) contract for an
// already-written record: its size is already known and stored on the entry.
func CalcMetaSize(m Meta) int64 {
	return m.Size
}

func nowUnix() uint32 {
	return uint32(time.Now().Unix())
}

// MetaIndex is the subset of the metadata-index interface (spec.md §6) the
// codec needs for non-compaction operations. internal/metaindex.Index
// satisfies this without either package importing the other's concrete
// types beyond Meta.
type MetaIndex interface {
	// Get returns the current entry for (addrID, key). Deletes are not
	// removed from the index — a tombstone is a live Get result with
	// Del == true (spec.md I2 only binds non-tombstoned entries).
	Get(addrID uint32, key string) (Meta, bool, error)
	// Put inserts or overwrites the entry for (m.AddrID, m.Key).
	Put(m Meta) error
	// Fetch scans entries for addrID ordered by key starting at keyPrefix,
	// invoking visit for each; visit returning false stops the scan early.
	Fetch(addrID uint32, keyPrefix string, visit func(Meta) bool) ([]Meta, error)
}
