package h2fs_test

import (
	"testing"

	"github.com/qpoint-io/h2pdfinspect/pkg/h2fs"
	"github.com/qpoint-io/h2pdfinspect/pkg/h2fs/mocks"
	"github.com/qpoint-io/h2pdfinspect/pkg/limits"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"
)

// nopCutter satisfies DataCutter for tests that never reach a DATA
// frame.
type nopCutter struct{}

func (nopCutter) Scan(chunk []byte, dataOffset int, frameLength uint32, frameFlags uint8) (h2fs.Status, int, int) {
	return h2fs.Flush, dataOffset, dataOffset
}

func (nopCutter) Continue(chunk []byte, dataOffset int) (h2fs.Status, int, int) {
	return h2fs.Flush, dataOffset, dataOffset
}

func (nopCutter) Reassemble(chunk []byte) h2fs.StreamBuffer {
	return h2fs.StreamBuffer{Data: chunk, Tail: true}
}

func mockContinuationFrame(flags uint8, payloadLen int) []byte {
	hdr := []byte{
		byte(payloadLen >> 16), byte(payloadLen >> 8), byte(payloadLen),
		0x09, flags, // CONTINUATION
		0x00, 0x00, 0x00, 0x01,
	}
	return append(hdr, make([]byte, payloadLen)...)
}

// A CONTINUATION frame with no prior HEADERS must both abort the scan
// and report the violation to the EventSink exactly once, via the same
// InfractionID/EventID pairing scanner.go uses for the unexpected-
// continuation path.
func TestScanner_UnexpectedContinuationAborts_RecordsEvent(t *testing.T) {
	ctrl := gomock.NewController(t)
	sink := mocks.NewMockEventSink(ctrl)
	sink.EXPECT().AccumulateInfraction(h2fs.InfUnexpectedContinuation).Times(1)
	sink.EXPECT().RecordEvent(h2fs.EventUnexpectedContinuation).Times(1)

	state := h2fs.NewDirectionState(h2fs.ServerToClient)
	s := h2fs.NewScanner(state, h2fs.ServerToClient, sink, nopCutter{}, limits.Default())

	st, _, _, err := s.Scan(mockContinuationFrame(h2fs.FlagEndHeaders, 0))
	assert.Equal(t, h2fs.Abort, st)
	assert.ErrorIs(t, err, h2fs.ErrUnexpectedContinuation)
}

// A preface mismatch reports EventPrefaceMatchFailure and nothing else.
func TestScanner_PrefaceMismatchAborts_RecordsEvent(t *testing.T) {
	ctrl := gomock.NewController(t)
	sink := mocks.NewMockEventSink(ctrl)
	sink.EXPECT().RecordEvent(h2fs.EventPrefaceMatchFailure).Times(1)

	state := h2fs.NewDirectionState(h2fs.ClientToServer)
	s := h2fs.NewScanner(state, h2fs.ClientToServer, sink, nopCutter{}, limits.Default())

	st, _, _, err := s.Scan([]byte("GET / HTTP/1.1"))
	assert.Equal(t, h2fs.Abort, st)
	assert.ErrorIs(t, err, h2fs.ErrPrefaceMatchFailure)
}
