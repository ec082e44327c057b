package magni

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleValueSets() [][]Value {
	return [][]Value{
		{IntValue(0), TextValue("hello"), NullValue()},
		{IntValue(1), IntValue(-1), RealValue(2.5)},
		{IntValue(1 << 40), BlobValue([]byte{1, 2, 3, 4}), TextValue("")},
		{NullValue(), NullValue(), NullValue()},
		{IntValue(1 << 60), RealValue(-0.0001), TextValue("a longer piece of text data")},
	}
}

// TestCellRoundTrip is property 1 of the testable properties: serialize
// then deserialize yields an equal rowid and matching values.
func TestCellRoundTrip(t *testing.T) {
	for _, values := range sampleValueSets() {
		rowid := int64(42)
		size := calculateCellSize(rowid, values)
		buf := make([]byte, size)

		n, ok := serializeCell(buf, rowid, values)
		require.True(t, ok)
		assert.Equal(t, size, n, "property 2: calculate_size equals bytes_written")

		cell, consumed, ok := deserializeCell(buf, 0, false)
		require.True(t, ok)
		assert.Equal(t, size, consumed)
		assert.Equal(t, rowid, cell.Rowid)
		require.Len(t, cell.Values, len(values))
		for i := range values {
			assert.True(t, values[i].Equal(cell.Values[i]), "value %d mismatch: want %v got %v", i, values[i], cell.Values[i])
		}
	}
}

func TestCellSizeIdentityWithSlack(t *testing.T) {
	values := []Value{IntValue(7), TextValue("slack")}
	size := calculateCellSize(1, values)
	buf := make([]byte, size+32)
	n, ok := serializeCell(buf, 1, values)
	require.True(t, ok)
	assert.Equal(t, size, n)
}

func TestSerializeCellRejectsUndersizedBuffer(t *testing.T) {
	values := []Value{IntValue(7), TextValue("too small")}
	size := calculateCellSize(1, values)
	buf := make([]byte, size-1)
	_, ok := serializeCell(buf, 1, values)
	assert.False(t, ok)
}

// TestCellRowidProbe is property 3.
func TestCellRowidProbe(t *testing.T) {
	for _, values := range sampleValueSets() {
		rowid := int64(12345)
		size := calculateCellSize(rowid, values)
		buf := make([]byte, size)
		_, ok := serializeCell(buf, rowid, values)
		require.True(t, ok)

		probed, ok := getCellRowid(buf, 0)
		require.True(t, ok)
		assert.Equal(t, rowid, probed)

		full, _, ok := deserializeCell(buf, 0, false)
		require.True(t, ok)
		assert.Equal(t, full.Rowid, probed)
	}
}

func TestCellZeroCopyAliasesBuffer(t *testing.T) {
	values := []Value{TextValue("borrowed text")}
	rowid := int64(1)
	buf := make([]byte, calculateCellSize(rowid, values))
	_, ok := serializeCell(buf, rowid, values)
	require.True(t, ok)

	cell, _, ok := deserializeCell(buf, 0, true)
	require.True(t, ok)
	require.Len(t, cell.Values, 1)

	got := cell.Values[0].Bytes
	require.Len(t, got, len("borrowed text"))
	assert.Same(t, &buf[len(buf)-len("borrowed text")], &got[0], "property 10: zero-copy bytes must alias the source buffer")
}

func TestCellOwnedCopyDoesNotAliasBuffer(t *testing.T) {
	values := []Value{TextValue("owned text")}
	rowid := int64(1)
	buf := make([]byte, calculateCellSize(rowid, values))
	_, ok := serializeCell(buf, rowid, values)
	require.True(t, ok)

	cell, _, ok := deserializeCell(buf, 0, false)
	require.True(t, ok)
	got := cell.Values[0].Bytes
	assert.NotSame(t, &buf[len(buf)-len("owned text")], &got[0])
	assert.Equal(t, "owned text", cell.Values[0].Text())
}

func TestDeserializeCellRejectsReservedSerialCode(t *testing.T) {
	values := []Value{IntValue(5)}
	rowid := int64(1)
	buf := make([]byte, calculateCellSize(rowid, values))
	_, ok := serializeCell(buf, rowid, values)
	require.True(t, ok)

	// Corrupt the single serial code byte (immediately after the
	// payload_size, rowid and header_size varints, all single-byte here)
	// to the reserved code 10.
	buf[3] = 10

	_, _, ok = deserializeCell(buf, 0, false)
	assert.False(t, ok, "reserved serial codes 10/11 must be rejected")
}

func TestGetCellSizeMatchesCalculateCellSize(t *testing.T) {
	values := []Value{IntValue(99), TextValue("abc"), BlobValue([]byte{9, 9})}
	rowid := int64(1)
	size := calculateCellSize(rowid, values)
	buf := make([]byte, size)
	_, ok := serializeCell(buf, rowid, values)
	require.True(t, ok)

	probed, ok := getCellSize(buf, 0)
	require.True(t, ok)
	assert.Equal(t, size, probed)
}

func TestCellDestroyReleasesBorrowedPageExactlyOnce(t *testing.T) {
	released := 0
	c := &Cell{Rowid: 1, Values: []Value{IntValue(1)}}
	c.bindPage(func() { released++ })
	assert.True(t, c.Borrowed())

	c.Destroy()
	c.Destroy()
	assert.Equal(t, 1, released)
	assert.False(t, c.Borrowed())
}
