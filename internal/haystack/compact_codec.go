package haystack

import "bytes"

// CompactGet reads the record at offset and returns its metadata, raw
// header, raw key/body bytes (untouched — not decompressed, so CompactPut
// can write them through verbatim), and the offset of the next record.
// Returns ErrEOF once offset reaches the end of the live file. Implements
// spec.md §6's compact_get(read_h) / compact_get(read_h, offset) contract —
// the zero-value offset is the "no offset given" first call.
func CompactGet(h *Handles, offset int64) (Meta, Header, []byte, []byte, int64, error) {
	if offset >= h.offset {
		return Meta{}, Header{}, nil, nil, 0, ErrEOF
	}

	hdrBytes, err := h.readAt(offset, HeaderSize)
	if err != nil {
		return Meta{}, Header{}, nil, nil, 0, err
	}

	var hdr Header
	if err := hdr.decode(hdrBytes); err != nil {
		return Meta{}, Header{}, nil, nil, 0, err
	}

	total := HeaderSize + int(hdr.KeySize) + int(hdr.BodySize) + int(hdr.PadSize)
	rest, err := h.readAt(offset+HeaderSize, int64(total-HeaderSize))
	if err != nil {
		return Meta{}, Header{}, nil, nil, 0, err
	}

	keyBin := rest[:hdr.KeySize]
	bodyBin := rest[hdr.KeySize : hdr.KeySize+hdr.BodySize]

	if checksum(keyBin, bodyBin) != hdr.Checksum {
		return Meta{}, Header{}, nil, nil, 0, ErrChecksumMismatch
	}

	meta := Meta{
		AddrID:    hdr.AddrID,
		Key:       string(keyBin),
		Offset:    offset,
		Del:       hdr.IsDel(),
		Size:      int64(total),
		Timestamp: hdr.Timestamp,
	}

	return meta, hdr, keyBin, bodyBin, offset + int64(total), nil
}

// CompactPut appends a record's raw header/key/body to the tmp write
// handle, unchanged from how it read off the source file, and returns the
// new offset. Implements spec.md §6's compact_put(tmp_w, meta, key_bin,
// body_bin) contract (the header is threaded through alongside meta here so
// flags/padding survive the copy exactly).
func CompactPut(tmpH *Handles, hdr Header, keyBin, bodyBin []byte) (int64, error) {
	total := HeaderSize + len(keyBin) + len(bodyBin) + int(hdr.PadSize)
	buf := bytes.NewBuffer(make([]byte, 0, total))
	_ = hdr.encode(buf)
	buf.Write(keyBin)
	buf.Write(bodyBin)
	if hdr.PadSize > 0 {
		buf.Write(make([]byte, hdr.PadSize))
	}
	return tmpH.write(buf.Bytes())
}
