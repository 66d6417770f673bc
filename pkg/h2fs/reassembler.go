package h2fs

import (
	"go.uber.org/zap"
	"golang.org/x/net/http2"
)

// StreamBuffer is the unit the Reassembler hands back to the caller.
// A nil Data means nothing is ready yet; a non-nil, zero-length Data
// on the PDU tail is the sentinel meaning "detection required, no
// pkt_data" (spec.md §4.2).
type StreamBuffer struct {
	Data []byte
	Tail bool
}

// ReassembleFlags carries out-of-band bits about the current
// reassembly call; only the PDU tail bit is defined.
type ReassembleFlags uint8

const PDUTail ReassembleFlags = 1 << 0

// Reassembler is fed the bytes the Scanner chose to flush plus the
// same chunk boundaries; it writes frame headers into one buffer and
// frame payloads (padding stripped) into another, signalling
// completion on the segment carrying the PDU tail (spec.md §4.2).
type Reassembler struct {
	state  *DirectionState
	cutter DataCutter
	logger *zap.Logger

	headerOffset   uint32
	dataOffset     uint32
	remaining      uint32
	padding        uint32
	needPaddingLen bool
}

// NewReassembler builds a Reassembler sharing state with the Scanner
// for the same direction; NumFrameHeaders and FrameType are read from
// that shared state exactly as the source's flow_data does.
func NewReassembler(state *DirectionState, cutter DataCutter, logger *zap.Logger) *Reassembler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reassembler{state: state, cutter: cutter, logger: logger}
}

// Reassemble implements spec.md §4.2: reassemble(total, offset, chunk,
// flags) → StreamBuffer. offset == 0 on the first call for a PDU;
// offset + len(chunk) ≤ total; flags carries PDUTail on the final call.
func (r *Reassembler) Reassemble(total, offset uint32, chunk []byte, flags ReassembleFlags) StreamBuffer {
	if offset == 0 {
		r.state.FrameHeaderBuf = make([]byte, frameHeaderLen*r.state.NumFrameHeaders)
		r.headerOffset = 0
	}

	if r.state.FrameType == http2.FrameData {
		r.reassembleData(chunk)
	} else {
		r.reassembleNonData(total, offset, chunk)
	}

	if flags&PDUTail != 0 {
		r.state.TotalBytesInSplit = 0
		r.state.NumFrameHeaders = 0
		r.state.OctetsSeen = 0
		return StreamBuffer{Data: []byte{}, Tail: true}
	}

	return StreamBuffer{}
}

func (r *Reassembler) reassembleData(chunk []byte) {
	buf := r.cutter.Reassemble(chunk)
	if buf.Data != nil {
		r.state.FrameDataBuf = buf.Data
	}
}

// reassembleNonData round-robin-copies into frame_header (9 bytes at a
// time) then into frame_data (payload bytes), skipping padding when
// the most recent header's PADDED flag is set. Grounded on the
// original's implement_reassemble non-DATA branch.
func (r *Reassembler) reassembleNonData(total, offset uint32, chunk []byte) {
	if offset == 0 {
		dataSize := total - uint32(len(r.state.FrameHeaderBuf))
		r.state.FrameDataBuf = make([]byte, dataSize)
		r.dataOffset = 0
		r.remaining = 0
		r.padding = 0
		r.needPaddingLen = false
	}

	pos := 0
	for pos < len(chunk) {
		if r.needPaddingLen {
			r.needPaddingLen = false
			r.padding = uint32(chunk[pos])
			pos++
			r.remaining--
			// pre-adjust the data size: the pad length byte and the
			// pad bytes themselves never land in frame_data.
			shrink := int(r.padding) + 1
			if shrink > len(r.state.FrameDataBuf) {
				shrink = len(r.state.FrameDataBuf)
			}
			r.state.FrameDataBuf = r.state.FrameDataBuf[:len(r.state.FrameDataBuf)-shrink]
		}

		payloadRemaining := int(r.remaining) - int(r.padding)
		toCopy := payloadRemaining
		if rem := len(chunk) - pos; toCopy > rem {
			toCopy = rem
		}
		if toCopy > 0 {
			copy(r.state.FrameDataBuf[r.dataOffset:], chunk[pos:pos+toCopy])
			r.dataOffset += uint32(toCopy)
			r.remaining -= uint32(toCopy)
			pos += toCopy
		}

		if pos == len(chunk) {
			break
		}

		skip := int(r.padding)
		if rem := len(chunk) - pos; skip > rem {
			skip = rem
		}
		r.remaining -= uint32(skip)
		pos += skip

		if pos == len(chunk) {
			break
		}

		remHeader := frameHeaderLen - int(r.headerOffset%frameHeaderLen)
		toCopy = remHeader
		if rem := len(chunk) - pos; toCopy > rem {
			toCopy = rem
		}
		copy(r.state.FrameHeaderBuf[r.headerOffset:], chunk[pos:pos+toCopy])
		r.headerOffset += uint32(toCopy)
		pos += toCopy

		if r.headerOffset%frameHeaderLen != 0 {
			break
		}

		hdr := r.state.FrameHeaderBuf[r.headerOffset-frameHeaderLen : r.headerOffset]
		r.remaining = uint32(hdr[0])<<16 | uint32(hdr[1])<<8 | uint32(hdr[2])
		if hdr[4]&FlagPadded != 0 {
			r.needPaddingLen = true
		}
	}

	// Only trust FrameHeaderBuf[3] once the first header in this PDU
	// is fully assembled; a call that ends mid-header must not clobber
	// FrameType with a zero byte (which aliases http2.FrameData).
	if r.headerOffset >= frameHeaderLen {
		r.state.FrameType = http2.FrameType(r.state.FrameHeaderBuf[3])
	}
}
