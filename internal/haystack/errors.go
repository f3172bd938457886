package haystack

import "errors"

var (
	// ErrNotFound is the normal "no such key" control signal (spec.md §7).
	ErrNotFound = errors.New("haystack: not found")
	// ErrClosed is the sentinel "fd closed" signal the handle manager
	// recognizes to trigger a one-shot reopen (spec.md §4.3).
	ErrClosed = errors.New("haystack: fd closed")
	// ErrChecksumMismatch means a record's stored checksum does not match
	// its key+body bytes as read from disk.
	ErrChecksumMismatch = errors.New("haystack: checksum mismatch")
	// ErrRecordMismatch means a record read via an offset does not carry the
	// addr_id/key the caller expected (I2 in spec.md §3).
	ErrRecordMismatch = errors.New("haystack: record addr_id/key mismatch")
	// ErrEOF signals compact_get has reached the end of the live file.
	ErrEOF = errors.New("haystack: eof")
	// ErrInvalidRecord means a record read off disk is short, truncated, or
	// otherwise malformed independent of its checksum (a checksum mismatch
	// gets the more specific ErrChecksumMismatch).
	ErrInvalidRecord = errors.New("haystack: invalid or truncated record")
)
