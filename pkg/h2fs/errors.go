package h2fs

import "errors"

// Error taxonomy for H2FS protocol violations (spec.md §7). Every
// error aborts the direction; none of them touch global state or
// terminate the process.
var (
	ErrFrameSequence          = errors.New("h2fs: frame sequence violation")
	ErrMissingContinuation    = errors.New("h2fs: missing continuation")
	ErrUnexpectedContinuation = errors.New("h2fs: unexpected continuation")
	ErrPrefaceMatchFailure    = errors.New("h2fs: preface match failure")
	ErrFrameTooLarge          = errors.New("h2fs: frame exceeds max octets")
)
