package h2fs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/http2"
)

// paddedHeadersFrame builds a single HEADERS frame carrying the exact
// byte layout from spec.md §8 scenario 4 (PADDED, length 10, pad
// length 3, six payload bytes): the same pad-length/payload/padding
// arithmetic applies to any frame type that sets the PADDED flag, so
// this exercises the reassembler's one generic padding-elision path.
func paddedHeadersFrame() []byte {
	hdr := []byte{0x00, 0x00, 0x0a, 0x01, FlagPadded, 0x00, 0x00, 0x00, 0x01}
	payload := []byte{0x03, 1, 2, 3, 4, 5, 6, 0xaa, 0xaa, 0xaa} // pad_len=3, 6 bytes, 3 pad bytes
	return append(hdr, payload...)
}

func TestReassembler_PaddedFrame_StripsPadding(t *testing.T) {
	state := NewDirectionState(ServerToClient)
	state.NumFrameHeaders = 1
	state.FrameType = http2.FrameHeaders

	r := NewReassembler(state, &fakeCutter{}, nil)

	frame := paddedHeadersFrame()
	buf := r.Reassemble(uint32(len(frame)), 0, frame, PDUTail)

	assert.True(t, buf.Tail)
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6}, state.FrameDataBuf)
}

func TestReassembler_PaddedFrame_SplitAcrossCalls(t *testing.T) {
	state := NewDirectionState(ServerToClient)
	state.NumFrameHeaders = 1
	state.FrameType = http2.FrameHeaders

	frame := paddedHeadersFrame()
	total := uint32(len(frame))

	for split := 1; split < len(frame); split++ {
		state := NewDirectionState(ServerToClient)
		state.NumFrameHeaders = 1
		state.FrameType = http2.FrameHeaders
		r := NewReassembler(state, &fakeCutter{}, nil)

		r.Reassemble(total, 0, frame[:split], 0)
		buf := r.Reassemble(total, uint32(split), frame[split:], PDUTail)

		require.True(t, buf.Tail)
		assert.Equal(t, []byte{1, 2, 3, 4, 5, 6}, state.FrameDataBuf, "split at byte %d", split)
	}
}

func TestReassembler_DataMode_DelegatesToCutter(t *testing.T) {
	state := NewDirectionState(ServerToClient)
	state.NumFrameHeaders = 1
	state.FrameType = http2.FrameData

	cutter := &fakeCutter{}
	r := NewReassembler(state, cutter, nil)

	payload := []byte{9, 9, 9}
	buf := r.Reassemble(uint32(len(payload)), 0, payload, PDUTail)

	assert.True(t, buf.Tail)
	assert.Equal(t, payload, cutter.reassembleBuf)
}

func TestReassembler_UnpaddedFrame_NoPaddingStripped(t *testing.T) {
	state := NewDirectionState(ServerToClient)
	state.NumFrameHeaders = 1
	state.FrameType = http2.FrameSettings

	r := NewReassembler(state, &fakeCutter{}, nil)

	hdr := []byte{0x00, 0x00, 0x04, 0x04, 0x00, 0x00, 0x00, 0x00, 0x00}
	payload := []byte{0xde, 0xad, 0xbe, 0xef}
	frame := append(hdr, payload...)

	buf := r.Reassemble(uint32(len(frame)), 0, frame, PDUTail)

	assert.True(t, buf.Tail)
	assert.Equal(t, payload, state.FrameDataBuf)
}
