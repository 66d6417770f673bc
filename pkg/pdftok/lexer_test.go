package pdftok

import (
	"bytes"
	"testing"

	"github.com/qpoint-io/h2pdfinspect/pkg/limits"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// bufSink is a simple in-memory OutputSink for assertions.
type bufSink struct {
	bytes.Buffer
}

func newTestLexer(t *testing.T) (*Lexer, *bufSink) {
	t.Helper()
	sink := &bufSink{}
	lex, err := NewLexer(sink, limits.Default(), nil)
	require.NoError(t, err)
	return lex, sink
}

func processAll(t *testing.T, lex *Lexer, input []byte) {
	t.Helper()
	_, err := lex.Process(input)
	require.NoError(t, err)
}

// jsExtractionDoc builds the indirect-object/stream byte layout: an
// object whose dictionary marks a later object as JS via "/JS n g R",
// then that later object opening a 5-byte stream holding "alert".
func jsExtractionDoc() []byte {
	return []byte("1 0 obj\n<< /JS 4 0 R >>\nendobj\n" +
		"4 0 obj\n<< /Length 5 >>\nstream\nalert\nendstream\nendobj\n")
}

func TestLexer_JSExtractionFromStream(t *testing.T) {
	lex, sink := newTestLexer(t)
	processAll(t, lex, jsExtractionDoc())
	assert.Equal(t, "alert\n", sink.String())
}

func TestLexer_JSExtractionFromStream_SplitAcrossChunks(t *testing.T) {
	doc := jsExtractionDoc()
	for split := 1; split < len(doc); split++ {
		lex, sink := newTestLexer(t)
		_, err := lex.Process(doc[:split])
		require.NoError(t, err, "split at %d", split)
		_, err = lex.Process(doc[split:])
		require.NoError(t, err, "split at %d", split)
		assert.Equal(t, "alert\n", sink.String(), "split at %d", split)
	}
}

// surrogatePairDoc builds an object marked JS whose body is a literal
// string opening with a UTF-16BE byte-order mark followed by the
// surrogate pair D834 DD1E (U+1D11E).
func surrogatePairDoc() []byte {
	body := []byte{0xfe, 0xff, 0xd8, 0x34, 0xdd, 0x1e}
	out := []byte("1 0 obj\n<< /JS 4 0 R >>\nendobj\n4 0 obj\n(")
	out = append(out, body...)
	out = append(out, []byte(")\nendobj\n")...)
	return out
}

func TestLexer_UTF16SurrogatePairInLiteralString(t *testing.T) {
	lex, sink := newTestLexer(t)
	processAll(t, lex, surrogatePairDoc())
	assert.Equal(t, []byte{0xf0, 0x9d, 0x84, 0x9e}, sink.Bytes())
}

func TestLexer_UTF16SurrogatePairInLiteralString_SplitAcrossChunks(t *testing.T) {
	doc := surrogatePairDoc()
	for split := 1; split < len(doc); split++ {
		lex, sink := newTestLexer(t)
		_, err := lex.Process(doc[:split])
		require.NoError(t, err, "split at %d", split)
		_, err = lex.Process(doc[split:])
		require.NoError(t, err, "split at %d", split)
		assert.Equal(t, []byte{0xf0, 0x9d, 0x84, 0x9e}, sink.Bytes(), "split at %d", split)
	}
}

// A hex string on a JS object decodes the same way a literal string
// does, including the BOM probe.
func TestLexer_UTF16SurrogatePairInHexString(t *testing.T) {
	lex, sink := newTestLexer(t)
	doc := []byte("1 0 obj\n<< /JS 4 0 R >>\nendobj\n4 0 obj\n<FEFFD834DD1E>\nendobj\n")
	processAll(t, lex, doc)
	assert.Equal(t, []byte{0xf0, 0x9d, 0x84, 0x9e}, sink.Bytes())
}

// Without a BOM, a JS literal string is treated as plain 8-bit text.
func TestLexer_JSLiteralString_NoBOM_PassesThroughRaw(t *testing.T) {
	lex, sink := newTestLexer(t)
	doc := []byte("1 0 obj\n<< /JS 4 0 R >>\nendobj\n4 0 obj\n(hi)\nendobj\n")
	processAll(t, lex, doc)
	assert.Equal(t, "hi", sink.String())
}

// A string on an object never referenced by /JS produces no output.
func TestLexer_NonJSObjectString_ProducesNoOutput(t *testing.T) {
	lex, sink := newTestLexer(t)
	doc := []byte("4 0 obj\n(hi)\nendobj\n")
	processAll(t, lex, doc)
	assert.Equal(t, "", sink.String())
}

// Octal and named escapes inside a JS literal string decode correctly.
func TestLexer_LiteralStringEscapes(t *testing.T) {
	lex, sink := newTestLexer(t)
	doc := []byte("1 0 obj\n<< /JS 4 0 R >>\nendobj\n4 0 obj\n(a\\tb\\101)\nendobj\n")
	processAll(t, lex, doc)
	assert.Equal(t, "a\tbA", sink.String())
}

// Balanced nested parentheses inside a literal string are content, not
// terminators.
func TestLexer_LiteralStringBalancedParens(t *testing.T) {
	lex, sink := newTestLexer(t)
	doc := []byte("1 0 obj\n<< /JS 4 0 R >>\nendobj\n4 0 obj\n(a(b)c)\nendobj\n")
	processAll(t, lex, doc)
	assert.Equal(t, "a(b)c", sink.String())
}

// An odd trailing hex nibble is zero-padded on close.
func TestLexer_HexString_OddNibblePadded(t *testing.T) {
	lex, sink := newTestLexer(t)
	doc := []byte("1 0 obj\n<< /JS 4 0 R >>\nendobj\n4 0 obj\n<48656C6C6F7>\nendobj\n")
	processAll(t, lex, doc)
	assert.Equal(t, "Hello\x70", sink.String())
}

// A "% ... EOL" comment inside a dictionary is skipped entirely, even
// when it contains digits and slashes that would otherwise corrupt the
// "n g R" reference tracking.
func TestLexer_CommentInsideDictionarySkipped(t *testing.T) {
	lex, sink := newTestLexer(t)
	doc := []byte("1 0 obj\n<< /JS 4 0 R % see ISO 32000 /3\n>>\nendobj\n" +
		"4 0 obj\n<< /Length 5 >>\nstream\nalert\nendstream\nendobj\n")
	processAll(t, lex, doc)
	assert.Equal(t, "alert\n", sink.String())
}

// A comment before the "obj" keyword does not disrupt object-header
// matching.
func TestLexer_CommentBeforeObjKeyword(t *testing.T) {
	lex, sink := newTestLexer(t)
	doc := []byte("4 0 % comment\nobj\n<< /Length 2 >>\nstream\nhi\nendstream\nendobj\n")
	processAll(t, lex, doc)
	// object 4 was never referenced by /JS, so nothing is emitted.
	assert.Equal(t, "", sink.String())
}

// A non-name token in dictionary key position is a grammar violation.
func TestLexer_NonNameInKeyPosition_ReturnsError(t *testing.T) {
	lex, _ := newTestLexer(t)
	doc := []byte("1 0 obj\n<< 5 /Foo 1 0 R >>\nendobj\n")
	_, err := lex.Process(doc)
	require.ErrorIs(t, err, ErrNotNameInDictionaryKey)
}

// An array used as a dictionary's value is itself the value; its
// elements are not individually subject to the key/value check.
func TestLexer_ArrayValue_NotTreatedAsKeyViolation(t *testing.T) {
	lex, sink := newTestLexer(t)
	doc := []byte("1 0 obj\n<< /Kids [1 0 R 2 0 R] /JS 4 0 R >>\nendobj\n" +
		"4 0 obj\n<< /Length 2 >>\nstream\nhi\nendstream\nendobj\n")
	processAll(t, lex, doc)
	assert.Equal(t, "hi\n", sink.String())
}

func TestLexer_Close_ReturnsEos(t *testing.T) {
	lex, _ := newTestLexer(t)
	ret, err := lex.Close()
	require.NoError(t, err)
	assert.Equal(t, Eos, ret)
}
