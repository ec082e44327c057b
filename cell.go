package magni

// Cell is an in-memory (rowid, values) record decoded from a leaf page
// (§3.3). A Cell obtained with zero-copy deserialization is "borrowed":
// its text/blob Values alias the page buffer it came from directly, and it
// must not outlive that page's pin. Destroy releases that pin; an owned
// Cell has no pin to release, since its text/blob bytes were copied out and
// are managed by the Go garbage collector like any other allocation.
type Cell struct {
	Rowid  int64
	Values []Value

	borrowed bool
	release  func()
}

// Borrowed reports whether this Cell's text/blob Values alias a pinned
// page buffer rather than owning their own copy.
func (c *Cell) Borrowed() bool { return c.borrowed }

// Destroy releases the page pin backing a borrowed Cell and clears Values.
// On an owned Cell it only clears Values; calling it twice is safe and
// releases the pin once.
func (c *Cell) Destroy() {
	if c.borrowed && c.release != nil {
		c.release()
	}
	c.release = nil
	c.borrowed = false
	c.Values = nil
}

// bindPage ties a borrowed Cell's lifetime to an extra pin on the page it
// was decoded from; release is invoked exactly once, by Destroy.
func (c *Cell) bindPage(release func()) {
	c.borrowed = true
	c.release = release
}

// Serial type codes (§4.3).
const (
	serialNull    = 0
	serialInt48   = 5
	serialInt64   = 6
	serialFloat64 = 7
	serialZero    = 8
	serialOne     = 9
	// 10, 11 are reserved.
	serialBlobBase = 12
	serialTextBase = 13
)

// intWidthCode maps a fixed integer width to its serial code (codes 1-4
// are width==code; width 6 and 8 are codes 5 and 6).
func intWidthCode(width int) uint64 {
	switch width {
	case 1, 2, 3, 4:
		return uint64(width)
	case 6:
		return serialInt48
	case 8:
		return serialInt64
	default:
		panic("magni: unreachable integer width")
	}
}

func intCodeWidth(code uint64) (int, bool) {
	switch code {
	case 1, 2, 3, 4:
		return int(code), true
	case serialInt48:
		return 6, true
	case serialInt64:
		return 8, true
	default:
		return 0, false
	}
}

// valueSerialCode returns the serial code and stored width a Value will be
// encoded with.
func valueSerialCode(v Value) (code uint64, width int) {
	switch v.Kind {
	case KindNull:
		return serialNull, 0
	case KindInt:
		switch v.Int {
		case 0:
			return serialZero, 0
		case 1:
			return serialOne, 0
		default:
			w := intWidthFor(v.Int)
			return intWidthCode(w), w
		}
	case KindReal:
		return serialFloat64, 8
	case KindText:
		n := len(v.Bytes)
		return uint64(serialTextBase + 2*n), n
	case KindBlob:
		n := len(v.Bytes)
		return uint64(serialBlobBase + 2*n), n
	default:
		panic("magni: unreachable value kind")
	}
}

// calculateCellSize returns the exact serialized size of (rowid, values),
// including the outer payload_size varint (§4.3).
func calculateCellSize(rowid int64, values []Value) int {
	headerSize := 0
	bodySize := 0
	for _, v := range values {
		code, width := valueSerialCode(v)
		headerSize += uvarintSize(code)
		bodySize += width
	}
	payloadSize := uvarintSize(uint64(rowid)) + uvarintSize(uint64(headerSize)) + headerSize + bodySize
	return uvarintSize(uint64(payloadSize)) + payloadSize
}

// serializeCell writes (rowid, values) into buf starting at offset 0 in
// the §3.5 leaf cell layout. It returns (0, false) if buf is smaller than
// the computed size.
func serializeCell(buf []byte, rowid int64, values []Value) (int, bool) {
	size := calculateCellSize(rowid, values)
	if len(buf) < size {
		return 0, false
	}

	headerSize := 0
	bodySize := 0
	codes := make([]uint64, len(values))
	widths := make([]int, len(values))
	for i, v := range values {
		code, width := valueSerialCode(v)
		codes[i] = code
		widths[i] = width
		headerSize += uvarintSize(code)
		bodySize += width
	}
	payloadSize := uvarintSize(uint64(rowid)) + uvarintSize(uint64(headerSize)) + headerSize + bodySize

	off := 0
	off += putUvarint(buf[off:], uint64(payloadSize))
	off += putUvarint(buf[off:], uint64(rowid))
	off += putUvarint(buf[off:], uint64(headerSize))
	for _, code := range codes {
		off += putUvarint(buf[off:], code)
	}
	for i, v := range values {
		w := widths[i]
		if w == 0 {
			continue
		}
		switch v.Kind {
		case KindInt:
			writeIntLE(buf, off, w, v.Int)
		case KindReal:
			writeFloat64BE(buf, off, v.Real)
		case KindText, KindBlob:
			copy(buf[off:off+w], v.Bytes)
		}
		off += w
	}

	return off, true
}

// deserializeCell reads a cell starting at offset in buf. When zeroCopy is
// true, text/blob Values reference buf directly and the returned Cell is
// tagged borrowed (the caller is responsible for pinning buf's backing
// page and supplying a release function via bindPage); otherwise
// text/blob bytes are copied out.
//
// It returns (nil, 0, false) on any malformed field: a reserved serial
// code, an out-of-range offset, or a declared length that runs past buf.
func deserializeCell(buf []byte, offset int, zeroCopy bool) (*Cell, int, bool) {
	if offset < 0 || offset > len(buf) {
		return nil, 0, false
	}
	rest := buf[offset:]

	payloadSize, n0, ok := getUvarint(rest)
	if !ok {
		return nil, 0, false
	}
	rest = rest[n0:]

	rowidU, n1, ok := getUvarint(rest)
	if !ok {
		return nil, 0, false
	}
	rowid := int64(rowidU)
	rest = rest[n1:]

	headerSize, n2, ok := getUvarint(rest)
	if !ok {
		return nil, 0, false
	}
	headerBytes := rest[n2:]

	var codes []uint64
	consumed := uint64(0)
	for consumed < headerSize {
		if uint64(len(headerBytes)) < consumed {
			return nil, 0, false
		}
		code, n, ok := getUvarint(headerBytes[consumed:])
		if !ok {
			return nil, 0, false
		}
		codes = append(codes, code)
		consumed += uint64(n)
	}
	if consumed != headerSize {
		return nil, 0, false
	}

	valuesStart := n2 + int(headerSize)
	if valuesStart > len(rest) {
		return nil, 0, false
	}
	cursor := valuesStart

	values := make([]Value, len(codes))
	for i, code := range codes {
		switch {
		case code == serialNull:
			values[i] = NullValue()
		case code == serialZero:
			values[i] = IntValue(0)
		case code == serialOne:
			values[i] = IntValue(1)
		case code == serialFloat64:
			if cursor+8 > len(rest) {
				return nil, 0, false
			}
			values[i] = RealValue(readFloat64BE(rest, cursor))
			cursor += 8
		case code == 10 || code == 11:
			return nil, 0, false
		case code >= serialBlobBase && code%2 == 0:
			width := int((code - serialBlobBase) / 2)
			if cursor+width > len(rest) {
				return nil, 0, false
			}
			values[i] = Value{Kind: KindBlob, Bytes: sliceValueBytes(rest, cursor, width, zeroCopy)}
			cursor += width
		case code >= serialTextBase && code%2 == 1:
			width := int((code - serialTextBase) / 2)
			if cursor+width > len(rest) {
				return nil, 0, false
			}
			values[i] = Value{Kind: KindText, Bytes: sliceValueBytes(rest, cursor, width, zeroCopy)}
			cursor += width
		default:
			if width, isInt := intCodeWidth(code); isInt {
				if cursor+width > len(rest) {
					return nil, 0, false
				}
				values[i] = IntValue(readIntLE(rest, cursor, width))
				cursor += width
			} else {
				return nil, 0, false
			}
		}
	}

	if int(payloadSize) != n1+n2+int(headerSize)+(cursor-valuesStart) {
		return nil, 0, false
	}

	cell := &Cell{Rowid: rowid, Values: values}
	bytesConsumed := n0 + n1 + cursor
	return cell, bytesConsumed, true
}

// sliceValueBytes returns either a direct alias into rest or a copy of its
// bytes, depending on zeroCopy.
func sliceValueBytes(rest []byte, cursor, width int, zeroCopy bool) []byte {
	if zeroCopy {
		return rest[cursor : cursor+width]
	}
	out := make([]byte, width)
	copy(out, rest[cursor:cursor+width])
	return out
}

// getCellRowid is a cheap probe that decodes only the leading varints to
// recover a cell's rowid without building its Values slice (§4.3).
func getCellRowid(buf []byte, offset int) (int64, bool) {
	if offset < 0 || offset > len(buf) {
		return 0, false
	}
	rest := buf[offset:]
	_, n0, ok := getUvarint(rest)
	if !ok {
		return 0, false
	}
	rowidU, _, ok := getUvarint(rest[n0:])
	if !ok {
		return 0, false
	}
	return int64(rowidU), true
}

// getCellSize is a cheap probe that returns the total number of bytes a
// cell occupies starting at offset, without decoding its values (§4.3).
func getCellSize(buf []byte, offset int) (int, bool) {
	if offset < 0 || offset > len(buf) {
		return 0, false
	}
	rest := buf[offset:]
	payloadSize, n0, ok := getUvarint(rest)
	if !ok {
		return 0, false
	}
	return n0 + int(payloadSize), true
}
