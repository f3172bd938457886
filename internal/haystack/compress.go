package haystack

import "github.com/klauspost/compress/s2"

// compressBody and decompressBody wrap the optional body compression layer.
//
// Adapted from the teacher's sibling repo pattern of s2.Encode/s2.Decode
// bracketing each on-disk block (AmrMurad1/Go-Store sstable/writer.go and
// sstable/compactor.go), applied here to a single record's body instead of
// a whole block.
func compressBody(body []byte) []byte {
	return s2.Encode(nil, body)
}

func decompressBody(compressed []byte) ([]byte, error) {
	return s2.Decode(nil, compressed)
}
