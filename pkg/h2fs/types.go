// Package h2fs implements the HTTP/2 Frame Splitter & Reassembler: a
// single-directional state machine that decides, without ever
// requiring a caller to hand it a whole frame, when a complete logical
// unit (connection preface, DATA segment, HEADERS+CONTINUATION run, or
// any other control frame) should be flushed downstream, and then
// reassembles the flushed bytes into separate header/data buffers with
// padding elided.
package h2fs

import "golang.org/x/net/http2"

// Status is the verdict a Scan returns to its caller.
type Status int

const (
	// Search means the scanner needs more bytes before anything can
	// be flushed; the caller should deliver another chunk.
	Search Status = iota
	// Flush means the caller should deliver chunk[:flushOffset] (plus
	// any previously buffered bytes for this PDU) to the Reassembler
	// and resume scanning at chunk[flushOffset:].
	Flush
	// Abort means a protocol error was recorded; the caller must tear
	// down this direction.
	Abort
)

func (s Status) String() string {
	switch s {
	case Search:
		return "Search"
	case Flush:
		return "Flush"
	case Abort:
		return "Abort"
	default:
		return "Status(?)"
	}
}

// Direction identifies which half of a duplex TCP stream a Scanner
// instance is tracking. Only the client→server direction carries a
// connection preface.
type Direction int

const (
	ClientToServer Direction = iota
	ServerToClient
)

func (d Direction) String() string {
	if d == ClientToServer {
		return "client->server"
	}
	return "server->client"
}

const (
	// frameHeaderLen is the fixed HTTP/2 frame header size: length
	// (24b BE), type (8b), flags (8b), reserved bit + stream id (31b
	// BE).
	frameHeaderLen = 9

	// prefaceLen is the length of the fixed HTTP/2 connection preface.
	prefaceLen = 24
)

// clientPreface is the literal 24-octet connection preface, reused
// from golang.org/x/net/http2 rather than re-declared.
var clientPreface = []byte(http2.ClientPreface)

// FrameFlags referenced directly by this package; re-exported as a
// convenience so callers constructing tests don't need their own
// import of golang.org/x/net/http2.
const (
	FlagEndHeaders = uint8(http2.FlagHeadersEndHeaders)
	FlagPadded     = uint8(http2.FlagHeadersPadded) // same bit as FlagDataPadded
)
