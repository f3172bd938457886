package haystack

import (
	"bytes"
	"fmt"
)

// Put appends a live record for obj and updates the metadata index to point
// at it. Implements the codec.put(meta_db, backend, obj) contract of
// spec.md §6.
func Put(idx MetaIndex, h *Handles, obj Object, compress bool) error {
	record, hdr := buildRecord(obj.AddrID, obj.Key, obj.Body, false, compress)

	offset, err := h.write(record)
	if err != nil {
		return err
	}

	return idx.Put(Meta{
		AddrID:    obj.AddrID,
		Key:       obj.Key,
		Offset:    offset,
		Del:       false,
		Size:      int64(len(record)),
		Timestamp: hdr.Timestamp,
	})
}

// Store writes body under the given (already constructed) meta, exactly as
// Put does but with caller-supplied identity — implements spec.md §6's
// store(meta_db, backend, meta, body) contract.
func Store(idx MetaIndex, h *Handles, m Meta, body []byte, compress bool) error {
	record, hdr := buildRecord(m.AddrID, m.Key, body, m.Del, compress)

	offset, err := h.write(record)
	if err != nil {
		return err
	}

	m.Offset = offset
	m.Size = int64(len(record))
	m.Timestamp = hdr.Timestamp
	return idx.Put(m)
}

// Delete appends a tombstone record for obj and marks the metadata entry
// deleted. Implements spec.md §6's delete(meta_db, backend, obj) contract.
func Delete(idx MetaIndex, h *Handles, obj Object) error {
	record, hdr := buildRecord(obj.AddrID, obj.Key, nil, true, false)

	offset, err := h.write(record)
	if err != nil {
		return err
	}

	return idx.Put(Meta{
		AddrID:    obj.AddrID,
		Key:       obj.Key,
		Offset:    offset,
		Del:       true,
		Size:      int64(len(record)),
		Timestamp: hdr.Timestamp,
	})
}

// Get reads the live value for key and slices its body to [start:end)
// (end < 0 means "to the end of the body"). Implements spec.md §6's
// get(meta_db, backend, key, start, end) contract.
func Get(idx MetaIndex, h *Handles, addrID uint32, key string, start, end int64) (Object, Meta, error) {
	meta, ok, err := idx.Get(addrID, key)
	if err != nil {
		return Object{}, Meta{}, err
	}
	if !ok || meta.Del {
		return Object{}, Meta{}, ErrNotFound
	}

	body, err := readBody(h, meta)
	if err != nil {
		return Object{}, meta, err
	}

	body, err = sliceRange(body, start, end)
	if err != nil {
		return Object{}, meta, err
	}

	return Object{AddrID: meta.AddrID, Key: meta.Key, Body: body}, meta, nil
}

// Head returns the metadata entry for key without reading its body.
// Implements spec.md §6's head(meta_db, key) contract.
func Head(idx MetaIndex, addrID uint32, key string) (Meta, error) {
	meta, ok, err := idx.Get(addrID, key)
	if err != nil {
		return Meta{}, err
	}
	if !ok {
		return Meta{}, ErrNotFound
	}
	return meta, nil
}

// Fetch scans the metadata index ordered by key starting at keyPrefix.
// Implements spec.md §6's fetch(meta_db, key_prefix, visitor) contract.
func Fetch(idx MetaIndex, addrID uint32, keyPrefix string, visit func(Meta) bool) ([]Meta, error) {
	return idx.Fetch(addrID, keyPrefix, visit)
}

// readBody reads and decodes the full record at meta.Offset, validating its
// checksum and addr_id/key against meta (I2 in spec.md §3), and returns the
// (decompressed, if needed) body bytes.
func readBody(h *Handles, meta Meta) ([]byte, error) {
	raw, err := h.readAt(meta.Offset, meta.Size)
	if err != nil {
		return nil, err
	}

	var hdr Header
	if err := hdr.decode(raw); err != nil {
		return nil, err
	}

	keyStart := HeaderSize
	keyEnd := keyStart + int(hdr.KeySize)
	bodyEnd := keyEnd + int(hdr.BodySize)
	if bodyEnd > len(raw) {
		return nil, fmt.Errorf("%w: record at offset %d truncated", ErrInvalidRecord, meta.Offset)
	}

	keyBin := raw[keyStart:keyEnd]
	bodyBin := raw[keyEnd:bodyEnd]

	if checksum(keyBin, bodyBin) != hdr.Checksum {
		return nil, ErrChecksumMismatch
	}
	if hdr.AddrID != meta.AddrID || string(keyBin) != meta.Key {
		return nil, ErrRecordMismatch
	}

	if hdr.IsCompressed() {
		return decompressBody(bodyBin)
	}
	return bytes.Clone(bodyBin), nil
}

// sliceRange applies the [start:end) window a caller requested to body,
// where end < 0 means "through the end".
func sliceRange(body []byte, start, end int64) ([]byte, error) {
	if start < 0 {
		start = 0
	}
	if start > int64(len(body)) {
		start = int64(len(body))
	}
	if end < 0 || end > int64(len(body)) {
		end = int64(len(body))
	}
	if end < start {
		return nil, fmt.Errorf("haystack: invalid range [%d:%d)", start, end)
	}
	return body[start:end], nil
}

// buildRecord frames addrID/key/body into the on-disk record layout
// (header+key+body+padding), optionally compressing the body first.
func buildRecord(addrID uint32, key string, body []byte, del bool, compress bool) ([]byte, Header) {
	keyBin := []byte(key)
	bodyBin := body

	var flags uint8
	if del {
		flags |= FlagDel
	}
	if compress && !del && len(body) > 0 {
		bodyBin = compressBody(body)
		flags |= FlagCompressed
	}

	raw := HeaderSize + len(keyBin) + len(bodyBin)
	pad := padLen(raw)

	hdr := Header{
		Checksum:  checksum(keyBin, bodyBin),
		Timestamp: nowUnix(),
		AddrID:    addrID,
		Flags:     flags,
		PadSize:   uint8(pad),
		KeySize:   uint32(len(keyBin)),
		BodySize:  uint32(len(bodyBin)),
	}

	buf := bytes.NewBuffer(make([]byte, 0, raw+pad))
	_ = hdr.encode(buf)
	buf.Write(keyBin)
	buf.Write(bodyBin)
	if pad > 0 {
		buf.Write(make([]byte, pad))
	}

	return buf.Bytes(), hdr
}
