package h2fs

import "golang.org/x/net/http2"

// DirectionState holds everything the scanner and reassembler for one
// direction of one session need to carry across chunk boundaries
// (spec.md §3). It is created with the session and destroyed with it;
// the reassembly buffers it owns live only from the first reassembly
// call for a PDU to its tail.
type DirectionState struct {
	// Preface is true until the 24-byte connection preface has been
	// matched; only ever true for the client→server direction.
	Preface bool

	// OctetsSeen counts bytes accumulated toward the current frame
	// header (0 ≤ v < 9) or, during the preface phase, toward the
	// 24-byte preface.
	OctetsSeen uint32

	// FrameHeader buffers a frame header across chunk boundaries;
	// valid up to FrameHeader[:OctetsSeen].
	FrameHeader [frameHeaderLen]byte

	// RemainingFrameOctets is the payload bytes still to consume in
	// scan for a non-DATA frame; zero between frames.
	RemainingFrameOctets uint32

	// ContinuationExpected is set when the last HEADERS (or
	// CONTINUATION) frame lacked END_HEADERS.
	ContinuationExpected bool

	// MidDataFrame is true while a DATA payload is still being
	// chunked; mutually exclusive with ContinuationExpected.
	MidDataFrame bool

	// CurrentStream is the 31-bit stream id of the frame under scan.
	CurrentStream uint32

	// NumFrameHeaders counts headers accumulated between flushes; it
	// sizes the reassembler's frame-header buffer on PDU start.
	NumFrameHeaders uint32

	// TotalBytesInSplit counts bytes promised to the reassembler;
	// reset at the PDU tail.
	TotalBytesInSplit uint32

	// FrameType is the last frame type seen by the scanner; the
	// reassembler reads it to decide DATA vs non-DATA mode.
	FrameType http2.FrameType

	// FrameHeaderBuf and FrameDataBuf are the two owned reassembly
	// buffers for the PDU currently being reassembled. Both are
	// allocated on the first Reassemble call for a PDU.
	FrameHeaderBuf []byte
	FrameDataBuf   []byte
}

// NewDirectionState returns a fresh per-direction state. Only the
// client→server direction begins in the preface phase.
func NewDirectionState(dir Direction) *DirectionState {
	return &DirectionState{
		Preface: dir == ClientToServer,
	}
}

// Reset clears the reassembly buffers; callers may invoke this after
// consuming a PDU's buffers to release them early instead of waiting
// for the next PDU's first Reassemble call to reallocate over them.
func (s *DirectionState) Reset() {
	s.FrameHeaderBuf = nil
	s.FrameDataBuf = nil
}
