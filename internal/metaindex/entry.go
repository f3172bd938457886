// Package metaindex implements the metadata index spec.md §1 and §6 treat as
// an external collaborator: a keyed binary → metadata binary store with
// ordered range scan and a two-phase compact mode.
//
// Adapted from the teacher's pkg/barrel/keydir.go (an in-memory map of key
// to offset/size metadata, persisted via gob as a "hints" file),
// generalized to an ordered structure (tidwall/btree) so fetch() can do a
// real prefix scan instead of a linear walk of a Go map.
package metaindex

import (
	"encoding/binary"

	"github.com/nodeshard/containerstore/internal/haystack"
)

// EncodeKey implements spec.md §3's composite key
// encode(addr_id, key) = addr_id (big-endian, 4 bytes) ++ key bytes.
// Big-endian addr_id ensures entries sort first by addr_id, then lexically
// by key, which is what Fetch's ordered prefix scan relies on.
func EncodeKey(addrID uint32, key string) []byte {
	out := make([]byte, 4+len(key))
	binary.BigEndian.PutUint32(out[:4], addrID)
	copy(out[4:], key)
	return out
}

// hasAddrPrefix reports whether k was encoded for addrID and its key part
// starts with prefix.
func hasAddrPrefix(k []byte, addrID uint32, prefix string) bool {
	if len(k) < 4 {
		return false
	}
	if binary.BigEndian.Uint32(k[:4]) != addrID {
		return false
	}
	rest := k[4:]
	if len(rest) < len(prefix) {
		return false
	}
	return string(rest[:len(prefix)]) == prefix
}

func sameAddr(k []byte, addrID uint32) bool {
	return len(k) >= 4 && binary.BigEndian.Uint32(k[:4]) == addrID
}

// entry is the value type stored in the B-tree: the composite key bytes
// (for ordering) alongside the decoded metadata.
type entry struct {
	key  []byte
	meta haystack.Meta
}

func entryLess(a, b entry) bool {
	return lessBytes(a.key, b.key)
}

func lessBytes(a, b []byte) bool {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}
