// Package bytecursor provides a read-only, allocation-free view over a
// byte chunk with offset tracking: the "where am I, how much is left"
// bookkeeping for walking untrusted, arbitrarily fragmented input one
// byte (or small run of bytes) at a time without ever copying the
// chunk itself. PDFTok's lexer reads its chunks through it; H2FS's
// scanner and reassembler do not use it and index their chunks
// directly.
package bytecursor

import "errors"

// ErrOutOfRange names an out-of-range read. No Cursor method returns
// it: Advance and PeekAt report a short or out-of-range read through
// their bool result.
var ErrOutOfRange = errors.New("bytecursor: out of range")

// Cursor is a non-owning view over chunk[pos:]. It never allocates and
// never copies chunk; callers must keep chunk alive for the Cursor's
// lifetime.
type Cursor struct {
	chunk []byte
	pos   int
}

// New returns a Cursor positioned at the start of chunk.
func New(chunk []byte) Cursor {
	return Cursor{chunk: chunk}
}

// Len returns the number of unread bytes remaining in the chunk.
func (c *Cursor) Len() int {
	return len(c.chunk) - c.pos
}

// Pos returns the current read offset into the chunk.
func (c *Cursor) Pos() int {
	return c.pos
}

// Done reports whether the cursor has consumed the entire chunk.
func (c *Cursor) Done() bool {
	return c.pos >= len(c.chunk)
}

// Byte returns the next unread byte without advancing, and false if
// the cursor is exhausted.
func (c *Cursor) Byte() (byte, bool) {
	if c.pos >= len(c.chunk) {
		return 0, false
	}
	return c.chunk[c.pos], true
}

// PeekAt returns the byte at offset n past the current position
// without advancing, and false if that offset is past the end of the
// chunk.
func (c *Cursor) PeekAt(n int) (byte, bool) {
	idx := c.pos + n
	if idx < 0 || idx >= len(c.chunk) {
		return 0, false
	}
	return c.chunk[idx], true
}

// Advance consumes and returns up to n bytes starting at the current
// position. The returned slice aliases chunk; it is never copied. If
// fewer than n bytes remain, the returned slice is shorter than n and
// ok is false.
func (c *Cursor) Advance(n int) (out []byte, ok bool) {
	if n < 0 {
		return nil, false
	}
	remaining := c.Len()
	if n > remaining {
		n = remaining
		ok = false
	} else {
		ok = true
	}
	out = c.chunk[c.pos : c.pos+n]
	c.pos += n
	return out, ok
}

// SkipByte advances past a single byte, returning false if the cursor
// is already exhausted.
func (c *Cursor) SkipByte() bool {
	if c.pos >= len(c.chunk) {
		return false
	}
	c.pos++
	return true
}

// Rest returns the unread tail of the chunk without advancing.
func (c *Cursor) Rest() []byte {
	return c.chunk[c.pos:]
}

// Chunk returns the full backing chunk this cursor was created over.
func (c *Cursor) Chunk() []byte {
	return c.chunk
}
