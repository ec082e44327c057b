package magni

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVarintRoundTrip(t *testing.T) {
	values := []uint64{
		0, 1, 2, 127, 128, 129, 255, 256,
		1 << 13, 1 << 20, 1 << 34, 1 << 48,
		^uint64(0), ^uint64(0) - 1,
	}
	for _, v := range values {
		buf := make([]byte, maxVarintLen)
		n := putUvarint(buf, v)
		assert.Equal(t, uvarintSize(v), n, "uvarintSize should match bytes written for %d", v)

		got, consumed, ok := getUvarint(buf)
		require.True(t, ok, "decode of %d should succeed", v)
		assert.Equal(t, v, got, "round trip should preserve %d", v)
		assert.Equal(t, n, consumed, "decode should consume exactly what was written")
	}
}

func TestVarintRejectsTruncatedInput(t *testing.T) {
	buf := []byte{0x80, 0x80, 0x80}
	_, _, ok := getUvarint(buf)
	assert.False(t, ok, "a buffer with no terminating byte must not decode")
}

func TestVarintDecodeStopsAtMaxLen(t *testing.T) {
	buf := make([]byte, 10)
	for i := 0; i < 9; i++ {
		buf[i] = 0xff
	}
	buf[9] = 0x7f
	_, n, ok := getUvarint(buf)
	require.True(t, ok)
	assert.Equal(t, maxVarintLen, n, "decode must stop at the 9th byte and never read a 10th")
}

func TestVarintNinthByteCarriesEightBits(t *testing.T) {
	buf := make([]byte, maxVarintLen)
	for i := 0; i < maxVarintLen-1; i++ {
		buf[i] = 0xff
	}
	buf[maxVarintLen-1] = 0x02 // the 9th byte has no continuation bit; all 8 bits are payload
	got, _, ok := getUvarint(buf)
	require.True(t, ok)
	assert.Equal(t, uint64(1)<<57|(uint64(1)<<56-1), got, "the 9th byte lands at bit 56 and up")
}

func TestFixedWidthIntRoundTrip(t *testing.T) {
	cases := []struct {
		v     int64
		width int
	}{
		{0, 1}, {127, 1}, {-128, 1},
		{32767, 2}, {-32768, 2},
		{1 << 20, 3}, {-(1 << 20), 3},
		{1 << 30, 4}, {-(1 << 30), 4},
		{1 << 40, 6}, {-(1 << 40), 6},
		{1 << 60, 8}, {-(1 << 60), 8},
	}
	for _, c := range cases {
		buf := make([]byte, 8)
		writeIntLE(buf, 0, c.width, c.v)
		got := readIntLE(buf, 0, c.width)
		assert.Equal(t, c.v, got, "width %d round trip of %d", c.width, c.v)
	}
}

func TestIntWidthForPicksSmallestWidth(t *testing.T) {
	assert.Equal(t, 1, intWidthFor(0))
	assert.Equal(t, 1, intWidthFor(127))
	assert.Equal(t, 2, intWidthFor(128))
	assert.Equal(t, 2, intWidthFor(-129))
	assert.Equal(t, 3, intWidthFor(1<<20))
	assert.Equal(t, 6, intWidthFor(1<<32))
	assert.Equal(t, 8, intWidthFor(1<<50))
}

func TestFloat64RoundTrip(t *testing.T) {
	buf := make([]byte, 8)
	writeFloat64BE(buf, 0, 3.14159)
	assert.Equal(t, 3.14159, readFloat64BE(buf, 0))
}
