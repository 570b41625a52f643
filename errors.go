package blockkv

import "errors"

// Sentinel errors returned by the page allocator, chain reader/writer and
// the record layer. Bounds/programmer errors (InvalidPageIndex,
// InvalidBlockIndex, RangeOverflow) are fatal: they indicate a caller bug
// rather than a recoverable I/O condition, so the accessors that can hit
// them panic instead of threading the error through every call site.
var (
	// ErrSkipOverflow is returned when a chain reader is asked to skip
	// past the end of its chain.
	ErrSkipOverflow = errors.New("blockkv: skip past end of chain")
	// ErrNoFreeSpace is returned when the allocator exhausts the page
	// index space without finding a page with a free block.
	ErrNoFreeSpace = errors.New("blockkv: no free space")
	// ErrShortBuffer is returned by GetInto when the caller's buffer is
	// smaller than the stored value.
	ErrShortBuffer = errors.New("blockkv: buffer shorter than stored value")
)
