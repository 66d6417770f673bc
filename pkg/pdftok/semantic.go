package pdftok

import (
	"bytes"

	"github.com/qpoint-io/h2pdfinspect/pkg/limits"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

// dictFrame is one nested dictionary's key/value parity and the
// array-nesting level observed when the dictionary was opened
// (spec.md §3, §4.4 h_dict_close).
type dictFrame struct {
	keyValue   bool // false: next token is a key; true: next token is a value
	arrayLevel int
}

// Semantic holds everything PDFTok.Lexer needs beyond pure syntax:
// dictionary context, the /JS cross-reference set, the current
// stream's remaining length, and the UTF-16 decode automaton
// (spec.md §3, §4.4).
type Semantic struct {
	limits limits.Limits
	sink   OutputSink
	logger *zap.Logger

	jsRefs *lru.Cache[ObjectID, struct{}]

	dictStack    []dictFrame
	arrayNesting int
	pendingKey   []byte

	currentObj      ObjectID
	isJS            bool
	streamRemLength int64
	lastLength      int64

	u16 U16Decoder
}

// SemanticOpt configures optional collaborators on a Semantic.
type SemanticOpt func(*Semantic)

// WithLogger overrides the no-op default logger.
func WithLogger(logger *zap.Logger) SemanticOpt {
	return func(s *Semantic) { s.logger = logger }
}

// NewSemantic builds a Semantic with a bounded /JS reference set sized
// by lim.MaxJSRefs (spec.md §9 treats process-wide accounting as out
// of scope, but a single document's cross-reference set still needs a
// cap to keep a malicious document from growing it unboundedly).
func NewSemantic(sink OutputSink, lim limits.Limits, opts ...SemanticOpt) (*Semantic, error) {
	refs, err := lru.New[ObjectID, struct{}](lim.MaxJSRefs)
	if err != nil {
		return nil, err
	}
	s := &Semantic{
		limits:          lim,
		sink:            sink,
		logger:          zap.NewNop(),
		jsRefs:          refs,
		streamRemLength: -1,
		lastLength:      -1,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// EnterObject records the id of the indirect object now being
// lexed and resolves its JS flag from prior /JS references
// (spec.md §4.3 indirect-object tracking rule 2).
func (s *Semantic) EnterObject(id ObjectID) {
	s.currentObj = id
	_, s.isJS = s.jsRefs.Peek(id)
	s.streamRemLength = -1
	s.lastLength = -1
}

// ExitObject clears per-object scratch at endobj.
func (s *Semantic) ExitObject() {
	s.isJS = false
	s.streamRemLength = -1
}

// IsJS reports whether the object currently being lexed was
// previously referenced by a /JS key.
func (s *Semantic) IsJS() bool {
	return s.isJS
}

// EnterDict pushes a new dictionary frame on `<<`.
func (s *Semantic) EnterDict() {
	s.dictStack = append(s.dictStack, dictFrame{arrayLevel: s.arrayNesting})
}

// ExitDict pops the current dictionary frame on `>>`, implementing
// h_dict_close (spec.md §4.4): the array nesting level must match what
// it was when this dictionary opened.
func (s *Semantic) ExitDict() error {
	if len(s.dictStack) == 0 {
		return nil
	}
	top := s.dictStack[len(s.dictStack)-1]
	s.dictStack = s.dictStack[:len(s.dictStack)-1]
	if top.arrayLevel != s.arrayNesting {
		return ErrIncompleteArrayInDictionary
	}
	return nil
}

// EnterArray / ExitArray track `[` / `]` nesting independent of
// dictionary depth.
func (s *Semantic) EnterArray() { s.arrayNesting++ }
func (s *Semantic) ExitArray() {
	if s.arrayNesting > 0 {
		s.arrayNesting--
	}
}

// ExpectingKey reports whether the next dictionary token at the
// current nesting level should be a name used as a key.
func (s *Semantic) ExpectingKey() bool {
	if len(s.dictStack) == 0 {
		return false
	}
	return !s.dictStack[len(s.dictStack)-1].keyValue
}

// InArrayValue reports whether the current position is inside an
// array that is itself the innermost dictionary's value: array
// elements are not individually subject to the key/value parity check
// h_dict_name/h_dict_other enforce (spec.md §4.4).
func (s *Semantic) InArrayValue() bool {
	if len(s.dictStack) == 0 {
		return false
	}
	return s.arrayNesting > s.dictStack[len(s.dictStack)-1].arrayLevel
}

// SetKey implements h_dict_name: records the key name (truncated to
// the configured bound) and flips the key/value parity.
func (s *Semantic) SetKey(name []byte) {
	if len(name) > s.limits.MaxDictKeyLength {
		name = name[:s.limits.MaxDictKeyLength]
	}
	s.pendingKey = append(s.pendingKey[:0], name...)
	if len(s.dictStack) > 0 {
		s.dictStack[len(s.dictStack)-1].keyValue = true
	}
}

// ConsumeValue implements h_dict_other for the value side: flips the
// parity back to expect a key next.
func (s *Semantic) ConsumeValue() {
	if len(s.dictStack) > 0 {
		s.dictStack[len(s.dictStack)-1].keyValue = false
	}
}

// ConsumeIntValue is ConsumeValue for a plain (non-reference) integer
// value; when the pending key was "/Length" the value is remembered
// for the stream that may follow this object.
func (s *Semantic) ConsumeIntValue(v int64) {
	if bytes.Equal(s.pendingKey, []byte("Length")) {
		s.lastLength = v
	}
	s.ConsumeValue()
}

// TakeLength returns the most recently recorded /Length value, or -1
// if none was seen for the current object.
func (s *Semantic) TakeLength() int64 {
	return s.lastLength
}

// pendingKeyIsJS reports whether the most recently recorded key was
// literally "JS".
func (s *Semantic) pendingKeyIsJS() bool {
	return bytes.Equal(s.pendingKey, []byte("JS"))
}

// MarkJSReference implements indirect-object tracking rule 1
// (spec.md §4.3): a `/JS <id> R` value under the most recent `/JS`
// key inserts id into the cross-reference set.
func (s *Semantic) MarkJSReference(id ObjectID) {
	if s.pendingKeyIsJS() {
		s.jsRefs.Add(id, struct{}{})
	}
	s.ConsumeValue()
}

// OpenStream implements h_stream_open (spec.md §4.4): length must be
// non-negative.
func (s *Semantic) OpenStream(length int64) error {
	if length < 0 {
		return ErrStreamNoLength
	}
	s.streamRemLength = length
	s.u16.Reset()
	return nil
}

// StreamRemaining reports the bytes still owed to the open stream.
func (s *Semantic) StreamRemaining() int64 {
	return s.streamRemLength
}

// ConsumeStream subtracts n bytes from the open stream's remaining
// length.
func (s *Semantic) ConsumeStream(n int) {
	s.streamRemLength -= int64(n)
}

// ResetU16 clears the UTF-16 decode accumulator, used whenever a new
// JS string or stream body begins.
func (s *Semantic) ResetU16() {
	s.u16.Reset()
}

// WriteRaw forwards undecoded bytes (already UTF-8, or to be treated
// as opaque 8-bit JS text) straight to the output sink.
func (s *Semantic) WriteRaw(p []byte) error {
	_, err := s.sink.Write(p)
	return err
}

// FeedU16 decodes one byte of UTF-16BE JS text through the shared
// automaton, writing any completed code point to the sink as UTF-8.
func (s *Semantic) FeedU16(b byte) error {
	var encodeErr error
	err := s.u16.Feed(b, func(cp uint32) {
		buf := EncodeUTF8(nil, cp)
		if _, werr := s.sink.Write(buf); werr != nil {
			encodeErr = werr
		}
	})
	if err != nil {
		return err
	}
	return encodeErr
}

// EndJSStream writes the single trailing newline spec.md §6 requires
// after each JS stream.
func (s *Semantic) EndJSStream() error {
	_, err := s.sink.Write([]byte{'\n'})
	return err
}
