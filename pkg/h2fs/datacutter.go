package h2fs

// DataCutter is the one external collaborator this package requires
// (spec.md §6): for DATA frames, the Scanner delegates payload cutting
// to it and the Reassembler delegates payload assembly to it. The core
// only requires that the cutter is deterministic and returns a single
// buffer per completed frame; everything about HTTP/1-over-HTTP/2 body
// framing (chunked transfer, content-length accounting) lives on the
// caller's side.
type DataCutter interface {
	// Scan begins (or resumes, after the frame header has just been
	// parsed) scanning a DATA frame's payload starting at dataOffset
	// in chunk. It returns Search while more of the frame's payload is
	// still arriving, Flush once a deliverable unit is ready at
	// flushOffset, with newDataOffset left at the position the next
	// Scan/Continue call should resume from.
	Scan(chunk []byte, dataOffset int, frameLength uint32, frameFlags uint8) (status Status, newDataOffset int, flushOffset int)

	// Continue resumes scanning a DATA frame payload across a chunk
	// boundary. The cutter is expected to remember frameLength and
	// frameFlags from the preceding Scan call itself, the same way the
	// per-stream external collaborator in the source tracks its own
	// frame bookkeeping between splitter re-entries.
	Continue(chunk []byte, dataOffset int) (status Status, newDataOffset int, flushOffset int)

	// Reassemble is called once per contiguous segment the Reassembler
	// hands it while in DATA mode; it returns the assembled HTTP
	// payload buffer once ready (a nil Data means "not yet").
	Reassemble(chunk []byte) StreamBuffer
}

// StreamBodyValidator is an optional external collaborator used by the
// DATA-frame path to confirm a half-open HTTP/1.x-over-HTTP/2 body is
// actually expected on the given stream and direction before handing
// it to the DataCutter (spec.md §4.1). Full body-tracking is part of
// the HTTP/1 subsystem, explicitly out of scope (spec.md §1); when no
// validator is supplied, every stream is treated as expected.
type StreamBodyValidator interface {
	ExpectsBody(streamID uint32, dir Direction) bool
}
