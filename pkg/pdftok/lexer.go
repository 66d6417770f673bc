package pdftok

import (
	"github.com/qpoint-io/h2pdfinspect/pkg/bytecursor"
	"github.com/qpoint-io/h2pdfinspect/pkg/limits"
	"go.uber.org/zap"
)

// escapeTable implements the literal-string escape table from
// spec.md §4.3: n→LF, r→CR, t→TAB, b→BS, f→FF; anything else escaped
// passes through literally (octal escapes are handled separately).
var escapeTable = map[byte]byte{
	'n': '\n',
	'r': '\r',
	't': '\t',
	'b': '\b',
	'f': '\f',
}

// Lexer is a push-driven PDF tokenizer: Process is fed chunks of
// arbitrary size and drives a stack of start conditions (spec.md
// §4.3), invoking Semantic to track dictionary/stream/JS-reference
// context and emitting decoded JS text to an OutputSink.
type Lexer struct {
	sem    *Semantic
	limits limits.Limits
	logger *zap.Logger

	stack []startCondition

	// Initial-state object-header matcher: "int int obj".
	initNums   [2]int64
	initCount  int
	numAccum   int64
	inNumber   bool
	kwBuf      []byte
	matchKwFor string // which keyword initNums/kwBuf are building toward

	// generic small token scratch shared by DictNr/IndObj dispatch.
	nameBuf   []byte
	inName    bool
	refNums   [2]int64
	refState  int // 0 idle, 1 capturing num1, 2 ws after num1, 3 capturing num2, 4 ws after num2
	pendingLT bool // saw one '<', waiting to see if the next byte is also '<'
	pendingGT bool // saw one '>', waiting to see if the next byte is also '>'

	// true between a completed "stream" keyword match and the EOL
	// that precedes the stream body; the body's Length count starts
	// only after this EOL (an optional CR followed by a required LF).
	awaitingStreamEOL bool

	// literal-string state
	parenDepth   int
	escapeNext   bool
	escapeOctal  []byte
	litBuf       []byte

	// hex-string state
	hexHigh    byte
	hexHaveHi  bool
	hexBuf     []byte

	// one-shot UTF-16 BOM probe, shared by JsLstr/JsHstr (JS stream
	// bodies are not probed and are always written as 8-bit bytes)
	probeBuf    []byte
	probeTarget startCondition // state to resume in (8-bit) if the BOM doesn't match
	probeU16    startCondition // state to switch to (UTF-16) if the BOM matches

	// "stream\r?\n" / "endstream" keyword matchers
	kwBuf2 []byte
}

// NewLexer builds a Lexer writing decoded JS text to sink.
func NewLexer(sink OutputSink, lim limits.Limits, logger *zap.Logger) (*Lexer, error) {
	sem, err := NewSemantic(sink, lim)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Lexer{
		sem:    sem,
		limits: lim,
		logger: logger,
		stack:  []startCondition{scInitial},
	}, nil
}

func (l *Lexer) top() startCondition {
	return l.stack[len(l.stack)-1]
}

func (l *Lexer) push(sc startCondition) error {
	if len(l.stack) >= l.limits.LexerStackDepth {
		return ErrConditionStackOverflow
	}
	l.stack = append(l.stack, sc)
	return nil
}

func (l *Lexer) pop() {
	if len(l.stack) > 1 {
		l.stack = l.stack[:len(l.stack)-1]
	}
}

// Process feeds chunk into the lexer. It always returns Continue (with
// a non-nil error on a grammar violation); end of input is signalled
// separately by Close. Reads are taken through a bytecursor.Cursor
// rather than indexing chunk directly.
func (l *Lexer) Process(chunk []byte) (Ret, error) {
	cur := bytecursor.New(chunk)
	for {
		b, ok := cur.Byte()
		if !ok {
			break
		}
		cur.SkipByte()
		if err := l.step(b); err != nil {
			return Continue, err
		}
	}
	return Continue, nil
}

// Close signals end of input; it is only ever valid between objects.
func (l *Lexer) Close() (Ret, error) {
	return Eos, nil
}

func (l *Lexer) step(b byte) error {
	switch l.top() {
	case scInitial:
		return l.stepInitial(b)
	case scIndObj:
		return l.stepIndObj(b)
	case scDictNr:
		return l.stepDictNr(b)
	case scLitStr, scJsLstr, scJsLstrU16:
		return l.stepLitStr(b)
	case scHexStr, scJsHstr, scJsHstrU16:
		return l.stepHexStr(b)
	case scStream, scJsStream:
		return l.stepStream(b)
	case scU16, scU16Hex:
		return l.stepU16Probe(b)
	case scComment:
		return l.stepComment(b)
	}
	return nil
}

// stepComment implements the "% ... EOL" recognition rule (spec.md
// §4.3): everything from % to the next CR or LF is skipped, then the
// interrupted state resumes exactly where it left off.
func (l *Lexer) stepComment(b byte) error {
	if b == '\r' || b == '\n' {
		l.pop()
	}
	return nil
}

// stepInitial looks for "int int obj", skipping everything else
// (spec.md §4.3 Initial).
func (l *Lexer) stepInitial(b byte) error {
	if isDigit(b) {
		if !l.inNumber {
			l.numAccum = 0 // the dictionary ref matcher may have left a value here
		}
		l.numAccum = l.numAccum*10 + int64(b-'0')
		l.inNumber = true
		return nil
	}
	if l.inNumber {
		l.initNums[l.initCount] = l.numAccum
		l.initCount++
		l.numAccum = 0
		l.inNumber = false
		if l.initCount == 2 {
			l.kwBuf = l.kwBuf[:0]
		}
	}
	if b == '%' {
		return l.push(scComment)
	}
	if isWhitespace(b) {
		return nil
	}
	if l.initCount == 2 {
		l.kwBuf = append(l.kwBuf, b)
		if !matchesPrefix(l.kwBuf, "obj") {
			l.initCount = 0
			l.kwBuf = l.kwBuf[:0]
			return nil
		}
		if len(l.kwBuf) == len("obj") {
			id := ObjectID{Num: l.initNums[0], Gen: l.initNums[1]}
			l.sem.EnterObject(id)
			l.initCount = 0
			return l.push(scIndObj)
		}
		return nil
	}
	l.initCount = 0
	return nil
}

func matchesPrefix(buf []byte, word string) bool {
	if len(buf) > len(word) {
		return false
	}
	return string(buf) == word[:len(buf)]
}

// stepIndObj recognises dictionaries, strings, and streams inside
// obj...endobj (spec.md §4.3 IndObj).
func (l *Lexer) stepIndObj(b byte) error {
	if l.awaitingStreamEOL {
		if b == '\r' {
			return nil
		}
		l.awaitingStreamEOL = false
		if b == '\n' {
			return l.openStream()
		}
		// malformed: "stream" not followed by an EOL. Open anyway and
		// replay b as the first body byte, rather than silently
		// dropping it.
		if err := l.openStream(); err != nil {
			return err
		}
		return l.step(b)
	}
	if l.pendingLT {
		l.pendingLT = false
		if b == '<' {
			l.sem.EnterDict()
			return l.push(scDictNr)
		}
		return l.openHexString(b)
	}
	if l.inKeywordMatch() {
		return l.continueKeywordMatch(b)
	}

	switch {
	case b == '%':
		return l.push(scComment)
	case b == '<':
		l.pendingLT = true
		return nil
	case b == '(':
		return l.openLiteralString()
	case isAlphaLower(b):
		l.kwBuf2 = append(l.kwBuf2[:0], b)
		l.matchKwFor = "indobj"
		return nil
	}
	return nil
}

func (l *Lexer) inKeywordMatch() bool {
	return l.matchKwFor != "" && len(l.kwBuf2) > 0
}

// continueKeywordMatch accumulates bare lowercase keywords inside an
// object and dispatches "endobj" or "stream" once a full match (or
// mismatch) is known; "endstream" is matched by stepStream and "R" by
// stepDictNrRefBoundary.
func (l *Lexer) continueKeywordMatch(b byte) error {
	if isAlphaLower(b) {
		l.kwBuf2 = append(l.kwBuf2, b)
		word := string(l.kwBuf2)
		switch l.matchKwFor {
		case "indobj":
			if matchesPrefix(l.kwBuf2, "endobj") && word == "endobj" {
				l.matchKwFor = ""
				l.sem.ExitObject()
				l.pop()
				return nil
			}
			if matchesPrefix(l.kwBuf2, "stream") && word == "stream" {
				l.matchKwFor = ""
				l.awaitingStreamEOL = true
				return nil
			}
			if !matchesPrefix(l.kwBuf2, "endobj") && !matchesPrefix(l.kwBuf2, "stream") {
				l.matchKwFor = ""
			}
		}
		return nil
	}
	// non-lowercase byte ends the keyword attempt; re-dispatch it.
	l.matchKwFor = ""
	return l.stepIndObj(b)
}

func isAlphaLower(b byte) bool {
	return b >= 'a' && b <= 'z'
}

func (l *Lexer) openLiteralString() error {
	l.parenDepth = 1
	l.litBuf = l.litBuf[:0]
	l.escapeNext = false
	l.escapeOctal = l.escapeOctal[:0]
	if l.sem.IsJS() {
		return l.startU16Probe(scJsLstr, scJsLstrU16, scU16)
	}
	return l.push(scLitStr)
}

func (l *Lexer) openHexString(first byte) error {
	l.hexHaveHi = false
	l.hexBuf = l.hexBuf[:0]
	if l.sem.IsJS() {
		if err := l.startU16Probe(scJsHstr, scJsHstrU16, scU16Hex); err != nil {
			return err
		}
		return l.stepU16Probe(first)
	}
	if err := l.push(scHexStr); err != nil {
		return err
	}
	return l.stepHexStr(first)
}

func (l *Lexer) openStream() error {
	length := l.sem.TakeLength()
	if err := l.sem.OpenStream(length); err != nil {
		return err
	}
	l.kwBuf2 = l.kwBuf2[:0]
	if l.sem.IsJS() {
		return l.push(scJsStream)
	}
	return l.push(scStream)
}

// startU16Probe arms the one-shot BOM probe shared by JS literal and
// hex strings (spec.md §4.3 U16/U16Hex). JS streams are not probed:
// openStream pushes scJsStream directly, so a stream body is always
// written as 8-bit bytes.
func (l *Lexer) startU16Probe(eightBit, u16, probeState startCondition) error {
	l.probeBuf = l.probeBuf[:0]
	l.probeTarget = eightBit
	l.probeU16 = u16
	return l.push(probeState)
}

// stepU16Probe inspects the first two decoded bytes for FE FF; on
// match it switches to UTF-16BE decoding, otherwise it replays the
// probed bytes through the 8-bit path (spec.md §4.3 U16/U16Hex).
func (l *Lexer) stepU16Probe(b byte) error {
	// a hex string is probed on its decoded bytes: FE FF is four hex
	// digits, and a '>' before the fourth digit ends the probe early.
	hex := l.top() == scU16Hex
	if !hex || isHexDigit(b) {
		l.probeBuf = append(l.probeBuf, b)
	}
	if (!hex && len(l.probeBuf) < 2) || (hex && len(l.probeBuf) < 4 && b != '>') {
		return nil
	}
	l.pop() // leave scU16/scU16Hex, exposing the frame beneath unchanged

	p := l.probeBuf
	isBOM := !hex && p[0] == 0xfe && p[1] == 0xff
	if hex && len(p) == 4 {
		isBOM = hexValue(p[0])<<4|hexValue(p[1]) == 0xfe && hexValue(p[2])<<4|hexValue(p[3]) == 0xff
	}
	resolved := l.probeTarget
	if isBOM {
		resolved = l.probeU16
		l.sem.ResetU16()
	}
	if err := l.push(resolved); err != nil {
		return err
	}
	if !isBOM {
		for _, pb := range l.probeBuf {
			if err := l.step(pb); err != nil {
				return err
			}
		}
		if hex && b == '>' {
			return l.step(b)
		}
	}
	return nil
}

// stepDictNr alternates key/value inside `<< ... >>`, tracking array
// nesting and /JS references (spec.md §4.3 DictNr, §4.4).
func (l *Lexer) stepDictNr(b byte) error {
	if l.pendingGT {
		l.pendingGT = false
		if b == '>' {
			if err := l.sem.ExitDict(); err != nil {
				return err
			}
			l.pop()
			return nil
		}
		// a lone '>' inside a dict is not meaningful grammar here; ignore.
		return nil
	}
	if l.pendingLT {
		l.pendingLT = false
		if b == '<' {
			l.sem.EnterDict()
			return l.push(scDictNr)
		}
		return l.openHexStringValue(b)
	}
	if l.inName {
		if isRegularNameChar(b) {
			if len(l.nameBuf) < l.limits.MaxNameLength {
				l.nameBuf = append(l.nameBuf, b)
			}
			return nil
		}
		l.inName = false
		if l.sem.ExpectingKey() {
			l.sem.SetKey(l.nameBuf)
		} else {
			l.sem.ConsumeValue()
		}
		return l.stepDictNr(b)
	}
	if isDigit(b) {
		if l.refState == 0 && l.keyExpectedViolation() {
			return ErrNotNameInDictionaryKey
		}
		return l.stepDictNrDigit(b)
	}
	if b == '%' {
		// checked before the ref boundary so a pending "n g R" capture
		// resumes after the comment
		return l.push(scComment)
	}
	if l.refState != 0 {
		return l.stepDictNrRefBoundary(b)
	}

	switch {
	case b == '/':
		l.inName = true
		l.nameBuf = l.nameBuf[:0]
		return nil
	case b == '<':
		if l.keyExpectedViolation() {
			return ErrNotNameInDictionaryKey
		}
		l.pendingLT = true
		return nil
	case b == '>':
		l.pendingGT = true
		return nil
	case b == '[':
		if l.keyExpectedViolation() {
			return ErrNotNameInDictionaryKey
		}
		l.sem.EnterArray()
		return nil
	case b == ']':
		l.sem.ExitArray()
		if !l.sem.ExpectingKey() {
			l.sem.ConsumeValue()
		}
		return nil
	case b == '(':
		if l.keyExpectedViolation() {
			return ErrNotNameInDictionaryKey
		}
		return l.openLiteralStringValue()
	}
	return nil
}

// keyExpectedViolation implements h_dict_other (spec.md §4.4): a
// non-name token starting where the current dictionary expects a key
// is a grammar violation, unless it's an element inside an array that
// is itself the dictionary's value.
func (l *Lexer) keyExpectedViolation() bool {
	return !l.sem.InArrayValue() && l.sem.ExpectingKey()
}

// stepDictNrDigit accumulates the two integers of a candidate
// "n g R" indirect reference (spec.md §4.3 indirect-object tracking
// rule 1). Plain integer values (array elements, /Length) fall out of
// this same state machine whenever the "R" never materialises.
func (l *Lexer) stepDictNrDigit(b byte) error {
	switch l.refState {
	case 0, 1:
		if l.refState == 0 {
			l.numAccum = 0
		}
		l.numAccum = l.numAccum*10 + int64(b-'0')
		l.refState = 1
	case 2:
		l.refNums[0] = l.numAccum
		l.numAccum = int64(b - '0')
		l.refState = 3
	case 3:
		l.numAccum = l.numAccum*10 + int64(b-'0')
	case 4:
		// a third integer follows a resolved "n g" pair with no R;
		// treat the pair as a plain value and start fresh.
		l.sem.ConsumeIntValue(l.refNums[0])
		l.numAccum = int64(b - '0')
		l.refState = 1
	}
	return nil
}

// stepDictNrRefBoundary handles the first non-digit byte after one or
// two captured integers: whitespace keeps waiting, 'R' resolves a
// reference, anything else means this was an ordinary integer value.
func (l *Lexer) stepDictNrRefBoundary(b byte) error {
	switch l.refState {
	case 1:
		if isWhitespace(b) {
			l.refState = 2
			return nil
		}
		l.refState = 0
		l.sem.ConsumeIntValue(l.numAccum)
		return l.stepDictNr(b)
	case 2:
		if isWhitespace(b) {
			return nil
		}
		l.refState = 0
		l.sem.ConsumeIntValue(l.numAccum)
		return l.stepDictNr(b)
	case 3:
		l.refNums[1] = l.numAccum
		if isWhitespace(b) {
			l.refState = 4
			return nil
		}
		if b == 'R' {
			l.sem.MarkJSReference(ObjectID{Num: l.refNums[0], Gen: l.refNums[1]})
			l.refState = 0
			return nil
		}
		l.refState = 0
		l.sem.ConsumeIntValue(l.refNums[0])
		return l.stepDictNr(b)
	case 4:
		if isWhitespace(b) {
			return nil
		}
		if b == 'R' {
			l.sem.MarkJSReference(ObjectID{Num: l.refNums[0], Gen: l.refNums[1]})
			l.refState = 0
			return nil
		}
		l.refState = 0
		l.sem.ConsumeIntValue(l.refNums[0])
		return l.stepDictNr(b)
	}
	return nil
}

func (l *Lexer) openHexStringValue(first byte) error {
	l.hexHaveHi = false
	l.hexBuf = l.hexBuf[:0]
	if l.sem.IsJS() {
		if err := l.startU16Probe(scJsHstr, scJsHstrU16, scU16Hex); err != nil {
			return err
		}
		return l.stepU16Probe(first)
	}
	if err := l.push(scHexStr); err != nil {
		return err
	}
	return l.stepHexStr(first)
}

func (l *Lexer) openLiteralStringValue() error {
	l.parenDepth = 1
	l.litBuf = l.litBuf[:0]
	l.escapeNext = false
	l.escapeOctal = l.escapeOctal[:0]
	if l.sem.IsJS() {
		return l.startU16Probe(scJsLstr, scJsLstrU16, scU16)
	}
	return l.push(scLitStr)
}

func isRegularNameChar(b byte) bool {
	return !isWhitespace(b) && !isDelimiter(b)
}

// stepLitStr implements literal-string recognition: balanced
// parentheses, the escape table, and octal escapes (spec.md §4.3).
// Structural bytes (parens, backslash escapes) are recognised
// identically whether the content is 8-bit or UTF-16BE; only the
// final emission path differs.
func (l *Lexer) stepLitStr(b byte) error {
	top := l.top()
	js := top == scJsLstr || top == scJsLstrU16
	u16 := top == scJsLstrU16

	if len(l.escapeOctal) > 0 {
		if b >= '0' && b <= '7' && len(l.escapeOctal) < 3 {
			l.escapeOctal = append(l.escapeOctal, b)
			return nil
		}
		if err := l.flushOctal(js, u16); err != nil {
			return err
		}
		return l.stepLitStr(b)
	}
	if l.escapeNext {
		l.escapeNext = false
		if b >= '0' && b <= '7' {
			l.escapeOctal = append(l.escapeOctal[:0], b)
			return nil
		}
		if mapped, ok := escapeTable[b]; ok {
			return l.emitLit(js, u16, mapped)
		} else if b == '\n' || b == '\r' {
			// line continuation: escaped EOL produces no character
		} else {
			return l.emitLit(js, u16, b)
		}
		return nil
	}

	switch b {
	case '\\':
		l.escapeNext = true
		return nil
	case '(':
		l.parenDepth++
		return l.emitLit(js, u16, b)
	case ')':
		l.parenDepth--
		if l.parenDepth == 0 {
			l.pop()
			if !l.sem.ExpectingKey() {
				l.sem.ConsumeValue()
			}
			return nil
		}
		return l.emitLit(js, u16, b)
	}
	return l.emitLit(js, u16, b)
}

func (l *Lexer) flushOctal(js, u16 bool) error {
	var v byte
	for _, d := range l.escapeOctal {
		v = v*8 + (d - '0')
	}
	l.escapeOctal = l.escapeOctal[:0]
	return l.emitLit(js, u16, v)
}

func (l *Lexer) emitLit(js, u16 bool, b byte) error {
	if !js {
		return nil
	}
	if u16 {
		return l.sem.FeedU16(b)
	}
	l.litBuf = append(l.litBuf[:0], b)
	return l.sem.WriteRaw(l.litBuf)
}

// stepHexStr implements hex-string recognition: non-hex bytes are
// skipped; an odd trailing nibble is zero-padded on close
// (spec.md §4.3, §9).
func (l *Lexer) stepHexStr(b byte) error {
	top := l.top()
	js := top == scJsHstr || top == scJsHstrU16
	u16 := top == scJsHstrU16

	if b == '>' {
		if l.hexHaveHi {
			if err := l.emitHex(js, u16, l.hexHigh<<4); err != nil {
				return err
			}
		}
		l.pop()
		if !l.sem.ExpectingKey() {
			l.sem.ConsumeValue()
		}
		return nil
	}
	if !isHexDigit(b) {
		return nil
	}
	v := hexValue(b)
	if !l.hexHaveHi {
		l.hexHigh = v
		l.hexHaveHi = true
		return nil
	}
	err := l.emitHex(js, u16, l.hexHigh<<4|v)
	l.hexHaveHi = false
	return err
}

func (l *Lexer) emitHex(js, u16 bool, b byte) error {
	if !js {
		return nil
	}
	if u16 {
		return l.sem.FeedU16(b)
	}
	l.hexBuf = append(l.hexBuf[:0], b)
	return l.sem.WriteRaw(l.hexBuf)
}

// stepStream consumes exactly the bytes promised by /Length, then
// expects an EOL and the "endstream" keyword (spec.md §4.3).
func (l *Lexer) stepStream(b byte) error {
	js := l.top() == scJsStream

	if l.sem.StreamRemaining() > 0 {
		l.sem.ConsumeStream(1)
		if js {
			l.hexBuf = append(l.hexBuf[:0], b)
			return l.sem.WriteRaw(l.hexBuf)
		}
		return nil
	}

	// trailing EOL + "endstream"
	if b == '\r' || b == '\n' {
		return nil
	}
	if isAlphaLower(b) {
		l.kwBuf2 = append(l.kwBuf2, b)
		if matchesPrefix(l.kwBuf2, "endstream") {
			if string(l.kwBuf2) == "endstream" {
				l.kwBuf2 = l.kwBuf2[:0]
				l.pop()
				if js {
					return l.sem.EndJSStream()
				}
			}
			return nil
		}
		l.kwBuf2 = l.kwBuf2[:0]
	}
	return nil
}
