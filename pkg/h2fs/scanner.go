package h2fs

import (
	"bytes"

	"github.com/qpoint-io/h2pdfinspect/pkg/limits"
	"go.uber.org/zap"
	"golang.org/x/net/http2"
)

// Scanner is the single-directional state machine described in
// spec.md §4.1. It consumes raw chunks, maintains per-direction carry
// state, and returns a verdict plus a flush offset. It never reads
// beyond the chunk it is given and is idempotent on zero-length input.
type Scanner struct {
	state     *DirectionState
	dir       Direction
	sink      EventSink
	cutter    DataCutter
	validator StreamBodyValidator
	limits    limits.Limits
	logger    *zap.Logger
}

// ScannerOpt configures optional collaborators on a Scanner.
type ScannerOpt func(*Scanner)

// WithStreamBodyValidator wires an optional DATA-frame stream
// validator (spec.md §4.1 DATA clause).
func WithStreamBodyValidator(v StreamBodyValidator) ScannerOpt {
	return func(s *Scanner) { s.validator = v }
}

// WithLogger overrides the no-op default logger.
func WithLogger(logger *zap.Logger) ScannerOpt {
	return func(s *Scanner) { s.logger = logger }
}

// NewScanner builds a Scanner over the given per-direction state,
// event sink, and DATA-frame cutter.
func NewScanner(state *DirectionState, dir Direction, sink EventSink, cutter DataCutter, lim limits.Limits, opts ...ScannerOpt) *Scanner {
	s := &Scanner{
		state:  state,
		dir:    dir,
		sink:   sink,
		cutter: cutter,
		limits: lim,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan implements the contract in spec.md §4.1: scan(chunk,
// &flush_offset) → Status. discard reports whether the flushed bytes
// are the connection preface and should be dropped rather than
// forwarded to detection.
func (s *Scanner) Scan(chunk []byte) (status Status, flushOffset int, discard bool, err error) {
	if len(chunk) == 0 {
		return Search, 0, false, nil
	}

	if s.state.Preface {
		return s.scanPreface(chunk)
	}

	offset := 0
	for {
		var (
			st     Status
			flush  int
			stepOK bool
		)

		if s.state.MidDataFrame {
			st, offset, flush = s.dataContinue(chunk, offset)
			stepOK = true
		} else {
			st, offset, flush, err = s.scanFrame(chunk, offset)
			stepOK = err == nil
		}

		if !stepOK {
			return Abort, 0, false, err
		}

		switch st {
		case Flush:
			return Flush, flush, false, nil
		case Abort:
			return Abort, 0, false, nil
		default: // Search
			if offset >= len(chunk) {
				return Search, 0, false, nil
			}
			// more frames may be complete within this same chunk
		}
	}
}

// scanPreface implements spec.md §4.1 step 1, grounded on the
// original's validate_preface: compare up to 24 bytes of the fixed
// preface across chunk boundaries via OctetsSeen.
func (s *Scanner) scanPreface(chunk []byte) (Status, int, bool, error) {
	seen := int(s.state.OctetsSeen)
	count := len(chunk)
	if seen+count > prefaceLen {
		count = prefaceLen - seen
	}

	if !bytes.Equal(chunk[:count], clientPreface[seen:seen+count]) {
		s.sink.RecordEvent(EventPrefaceMatchFailure)
		s.logger.Debug("h2fs preface mismatch", zap.Int("octets_seen", seen))
		return Abort, 0, false, ErrPrefaceMatchFailure
	}

	if seen+count < prefaceLen {
		s.state.OctetsSeen += uint32(count)
		return Search, 0, false, nil
	}

	flushOffset := prefaceLen - seen
	s.state.Preface = false
	s.state.OctetsSeen = 0
	return Flush, flushOffset, true, nil
}

// scanFrame implements spec.md §4.1 step 2 (frame header assembly)
// and dispatches per step 3.
func (s *Scanner) scanFrame(chunk []byte, offset int) (status Status, newOffset int, flushOffset int, err error) {
	if s.state.OctetsSeen == 0 {
		s.state.NumFrameHeaders++
	}

	remaining := frameHeaderLen - int(s.state.OctetsSeen)
	avail := len(chunk) - offset
	n := remaining
	if avail < n {
		n = avail
	}
	copy(s.state.FrameHeader[s.state.OctetsSeen:], chunk[offset:offset+n])
	s.state.OctetsSeen += uint32(n)
	offset += n

	if s.state.OctetsSeen < frameHeaderLen {
		return Search, offset, 0, nil
	}

	frameLength := uint32(s.state.FrameHeader[0])<<16 | uint32(s.state.FrameHeader[1])<<8 | uint32(s.state.FrameHeader[2])
	frameType := http2.FrameType(s.state.FrameHeader[3])
	frameFlags := s.state.FrameHeader[4]
	streamID := (uint32(s.state.FrameHeader[5])<<24 | uint32(s.state.FrameHeader[6])<<16 |
		uint32(s.state.FrameHeader[7])<<8 | uint32(s.state.FrameHeader[8])) & 0x7fffffff

	s.state.CurrentStream = streamID
	s.state.FrameType = frameType

	if frameType == http2.FrameData {
		return s.dataScan(chunk, offset, frameLength, frameFlags)
	}
	return s.nonDataScan(chunk, offset, frameLength, frameType, frameFlags)
}

// dataScan implements the DATA clause of spec.md §4.1 step 3.
func (s *Scanner) dataScan(chunk []byte, offset int, frameLength uint32, frameFlags uint8) (status Status, newOffset int, flushOffset int, err error) {
	if s.validator != nil && !s.validator.ExpectsBody(s.state.CurrentStream, s.dir) {
		s.sink.AccumulateInfraction(InfFrameSequence)
		s.sink.RecordEvent(EventFrameSequence)
		return Abort, offset, 0, ErrFrameSequence
	}

	if frameLength == 0 || frameLength > s.limits.MaxDataFrameOctets {
		s.sink.AccumulateInfraction(InfFrameSequence)
		s.sink.RecordEvent(EventFrameSequence)
		return Abort, offset, 0, ErrFrameSequence
	}

	s.state.OctetsSeen = 0
	st, newOff, flush := s.cutter.Scan(chunk, offset, frameLength, frameFlags)
	s.state.MidDataFrame = st == Search
	return st, newOff, flush, nil
}

// dataContinue resumes a DATA payload scan that spans a chunk boundary.
func (s *Scanner) dataContinue(chunk []byte, offset int) (Status, int, int) {
	st, newOff, flush := s.cutter.Continue(chunk, offset)
	s.state.MidDataFrame = st == Search
	return st, newOff, flush
}

// nonDataScan implements the non-DATA clause of spec.md §4.1 step 3,
// grounded on the original's non_data_scan.
func (s *Scanner) nonDataScan(chunk []byte, offset int, frameLength uint32, frameType http2.FrameType, frameFlags uint8) (status Status, newOffset int, flushOffset int, err error) {
	if s.state.RemainingFrameOctets == 0 {
		if s.state.ContinuationExpected && frameType != http2.FrameContinuation {
			s.sink.AccumulateInfraction(InfMissingContinuation)
			s.sink.RecordEvent(EventMissingContinuation)
			return Abort, offset, 0, ErrMissingContinuation
		}

		if uint32(frameHeaderLen)+frameLength > s.limits.MaxNonDataFrameOctets {
			return Abort, offset, 0, ErrFrameTooLarge
		}

		s.state.RemainingFrameOctets = frameLength
		s.state.TotalBytesInSplit += uint32(frameHeaderLen) + frameLength
	}

	avail := uint32(len(chunk) - offset)
	if avail < s.state.RemainingFrameOctets {
		s.state.RemainingFrameOctets -= avail
		return Search, len(chunk), 0, nil
	}

	status = Flush
	switch frameType {
	case http2.FrameHeaders:
		if frameFlags&FlagEndHeaders == 0 {
			s.state.ContinuationExpected = true
			status = Search
		}
	case http2.FrameContinuation:
		if !s.state.ContinuationExpected {
			s.sink.AccumulateInfraction(InfUnexpectedContinuation)
			s.sink.RecordEvent(EventUnexpectedContinuation)
			return Abort, offset, 0, ErrUnexpectedContinuation
		}
		if frameFlags&FlagEndHeaders == 0 {
			status = Search
		} else {
			s.state.ContinuationExpected = false
		}
	case http2.FramePushPromise:
		// Open question in spec.md §9: PUSH_PROMISE and its
		// CONTINUATION chain are not yet supported; surface with the
		// same taxonomy as an unexpected CONTINUATION.
		s.sink.AccumulateInfraction(InfUnexpectedContinuation)
		s.sink.RecordEvent(EventUnexpectedContinuation)
		return Abort, offset, 0, ErrUnexpectedContinuation
	}

	newOffset = offset + int(s.state.RemainingFrameOctets)
	flushOffset = newOffset
	s.state.OctetsSeen = 0
	s.state.RemainingFrameOctets = 0
	return status, newOffset, flushOffset, nil
}
