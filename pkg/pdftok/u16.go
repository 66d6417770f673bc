package pdftok

// U16Decoder is the explicit 4-state byte automaton from spec.md §4.3
// (u16_eval): it assembles UTF-16BE code units two bytes at a time and
// resolves surrogate pairs into a single code point, without ever
// requiring the whole string to be available at once. Deliberately
// hand-rolled rather than built on a library UTF-16 codec, which would
// reject a call split mid-unit (spec.md §9).
type U16Decoder struct {
	state byte // 0: first byte of unit; 1: second byte; 2: first byte of low surrogate; 3: second byte
	b0    byte
	high  uint32
}

// Feed advances the automaton by one byte. emit is called with a
// decoded code point whenever a full (possibly surrogate-paired) unit
// completes. An error is returned if a high surrogate is followed by
// anything other than a low surrogate, or if a low surrogate arrives
// without a preceding high surrogate.
func (d *U16Decoder) Feed(b byte, emit func(uint32)) error {
	switch d.state {
	case 0:
		d.b0 = b
		d.state = 1
	case 1:
		unit := uint32(d.b0)<<8 | uint32(b)
		if unit < 0xd800 || unit > 0xdfff {
			emit(unit)
			d.state = 0
			return nil
		}
		if unit > 0xdbff {
			return ErrUnexpectedSymbol
		}
		d.high = (unit - 0xd800) * 0x400
		d.state = 2
	case 2:
		d.b0 = b
		d.state = 3
	case 3:
		unit := uint32(d.b0)<<8 | uint32(b)
		if unit < 0xdc00 || unit > 0xdfff {
			return ErrUnexpectedSymbol
		}
		cp := 0x10000 + d.high + (unit - 0xdc00)
		emit(cp)
		d.state = 0
		d.high = 0
	}
	return nil
}

// Reset returns the decoder to its initial state, used when a new
// JS string or stream begins.
func (d *U16Decoder) Reset() {
	*d = U16Decoder{}
}

// EncodeUTF8 appends the canonical 1/2/3/4-byte UTF-8 encoding of cp
// to dst, per spec.md §4.3. Code points above 0x1fffff are rejected by
// assertion, not by error return, since u16_eval can never produce one.
func EncodeUTF8(dst []byte, cp uint32) []byte {
	assertCodePointRange(cp)
	switch {
	case cp <= 0x7f:
		return append(dst, byte(cp))
	case cp <= 0x7ff:
		return append(dst, 0xc0|byte(cp>>6), 0x80|byte(cp&0x3f))
	case cp <= 0xffff:
		return append(dst,
			0xe0|byte(cp>>12),
			0x80|byte((cp>>6)&0x3f),
			0x80|byte(cp&0x3f))
	default:
		return append(dst,
			0xf0|byte(cp>>18),
			0x80|byte((cp>>12)&0x3f),
			0x80|byte((cp>>6)&0x3f),
			0x80|byte(cp&0x3f))
	}
}
