package pdftok

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// feedAll drives every byte of raw through d, collecting emitted code
// points in order.
func feedAll(t *testing.T, d *U16Decoder, raw []byte) []uint32 {
	t.Helper()
	var got []uint32
	for _, b := range raw {
		err := d.Feed(b, func(cp uint32) { got = append(got, cp) })
		require.NoError(t, err)
	}
	return got
}

func TestU16Decoder_BMPCodePoint(t *testing.T) {
	var d U16Decoder
	got := feedAll(t, &d, []byte{0x00, 0x41}) // 'A'
	assert.Equal(t, []uint32{0x41}, got)
}

// Surrogate pair D834 DD1E decodes to U+1D11E (MUSICAL SYMBOL G CLEF).
func TestU16Decoder_SurrogatePair(t *testing.T) {
	var d U16Decoder
	got := feedAll(t, &d, []byte{0xd8, 0x34, 0xdd, 0x1e})
	require.Len(t, got, 1)
	assert.Equal(t, uint32(0x1d11e), got[0])
}

func TestU16Decoder_SurrogatePair_SplitAcrossFeeds(t *testing.T) {
	for split := 1; split < 4; split++ {
		raw := []byte{0xd8, 0x34, 0xdd, 0x1e}
		var d U16Decoder
		var got []uint32
		for _, b := range raw[:split] {
			require.NoError(t, d.Feed(b, func(cp uint32) { got = append(got, cp) }))
		}
		for _, b := range raw[split:] {
			require.NoError(t, d.Feed(b, func(cp uint32) { got = append(got, cp) }))
		}
		require.Len(t, got, 1, "split at %d", split)
		assert.Equal(t, uint32(0x1d11e), got[0], "split at %d", split)
	}
}

func TestU16Decoder_HighSurrogateWithoutLow(t *testing.T) {
	var d U16Decoder
	var got []uint32
	require.NoError(t, d.Feed(0xd8, func(uint32) {}))
	require.NoError(t, d.Feed(0x34, func(uint32) {}))
	require.NoError(t, d.Feed(0x00, func(uint32) {}))
	err := d.Feed(0x41, func(cp uint32) { got = append(got, cp) })
	assert.ErrorIs(t, err, ErrUnexpectedSymbol)
}

func TestU16Decoder_Reset(t *testing.T) {
	var d U16Decoder
	require.NoError(t, d.Feed(0xd8, func(uint32) {}))
	d.Reset()
	got := feedAll(t, &d, []byte{0x00, 0x42}) // 'B', proves state didn't carry over
	assert.Equal(t, []uint32{0x42}, got)
}

func TestEncodeUTF8_OneByte(t *testing.T) {
	assert.Equal(t, []byte{'A'}, EncodeUTF8(nil, 'A'))
}

func TestEncodeUTF8_TwoByte(t *testing.T) {
	// U+00E9 (é)
	assert.Equal(t, []byte{0xc3, 0xa9}, EncodeUTF8(nil, 0xe9))
}

func TestEncodeUTF8_ThreeByte(t *testing.T) {
	// U+20AC (€)
	assert.Equal(t, []byte{0xe2, 0x82, 0xac}, EncodeUTF8(nil, 0x20ac))
}

func TestEncodeUTF8_FourByte(t *testing.T) {
	assert.Equal(t, []byte{0xf0, 0x9d, 0x84, 0x9e}, EncodeUTF8(nil, 0x1d11e))
}

func TestEncodeUTF8_AppendsToDst(t *testing.T) {
	dst := []byte("prefix:")
	out := EncodeUTF8(dst, 'A')
	assert.Equal(t, []byte("prefix:A"), out)
}

func TestEncodeUTF8_OutOfRangePanics(t *testing.T) {
	assert.Panics(t, func() {
		EncodeUTF8(nil, 0x200000)
	})
}
