package magni

// This file holds the low-level accessors for the shared B+ tree page
// layout of §3.5: the 12-byte common+extension header, the cell pointer
// array, and the interior cell's fixed (child, separator) shape. Every
// offset here is relative to Page.data(), never to the raw on-disk
// buffer, so the page-1 header carve-out is handled once, in Page.

func nodeType(page *Page) pageType { return pageType(page.data()[0]) }

func setNodeType(page *Page, t pageType) { page.data()[0] = byte(t) }

func cellCount(page *Page) int { return int(readUint16LE(page.data(), 3)) }

func setCellCount(page *Page, n int) { writeUint16LE(page.data(), 3, uint16(n)) }

func cellContentOffset(page *Page) int { return int(readUint16LE(page.data(), 5)) }

func setCellContentOffset(page *Page, off int) { writeUint16LE(page.data(), 5, uint16(off)) }

func fragmentedBytes(page *Page) int { return int(page.data()[7]) }

func setFragmentedBytes(page *Page, n int) {
	if n > 255 {
		n = 255
	}
	if n < 0 {
		n = 0
	}
	page.data()[7] = byte(n)
}

// rightmostChild and nextLeaf alias the same 4-byte extension slot; which
// one is meaningful depends on the page's type.
func rightmostChild(page *Page) uint32 { return readUint32BE(page.data(), commonHeaderSize) }

func setRightmostChild(page *Page, p uint32) { writeUint32BE(page.data(), commonHeaderSize, p) }

func nextLeaf(page *Page) uint32 { return readUint32BE(page.data(), commonHeaderSize) }

func setNextLeaf(page *Page, p uint32) { writeUint32BE(page.data(), commonHeaderSize, p) }

func pointerOffset(i int) int { return pageHeaderSize + 2*i }

func cellPointer(page *Page, i int) int { return int(readUint16LE(page.data(), pointerOffset(i))) }

func setCellPointer(page *Page, i, off int) { writeUint16LE(page.data(), pointerOffset(i), uint16(off)) }

// initLeaf resets page to an empty leaf node.
func initLeaf(page *Page) {
	setNodeType(page, pageTypeLeaf)
	writeUint16LE(page.data(), 1, 0) // first_freeblock, reserved
	setCellCount(page, 0)
	setCellContentOffset(page, page.usableSize())
	setFragmentedBytes(page, 0)
	setNextLeaf(page, 0)
}

// initInterior resets page to an empty interior node.
func initInterior(page *Page) {
	setNodeType(page, pageTypeInterior)
	writeUint16LE(page.data(), 1, 0)
	setCellCount(page, 0)
	setCellContentOffset(page, page.usableSize())
	setFragmentedBytes(page, 0)
	setRightmostChild(page, 0)
}

// leafFindIndex returns the index at which rowid is, or would be inserted,
// within page's pointer array, via binary search (§4.4.2/§4.4.4).
func leafFindIndex(page *Page, rowid int64) (idx int, found bool) {
	n := cellCount(page)
	lo, hi := 0, n
	for lo < hi {
		mid := (lo + hi) / 2
		k, _ := getCellRowid(page.data(), cellPointer(page, mid))
		if k < rowid {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo < n {
		k, _ := getCellRowid(page.data(), cellPointer(page, lo))
		if k == rowid {
			return lo, true
		}
	}
	return lo, false
}

// leafInsertCell implements §4.4.4: space check, then (if enabled)
// duplicate check, then physical placement.
func leafInsertCell(page *Page, rowid int64, values []Value, checkDuplicates bool) error {
	size := calculateCellSize(rowid, values)
	n := cellCount(page)
	if pageHeaderSize+2*(n+1)+size > cellContentOffset(page) {
		return wrapf(ErrPageFull, "leaf page %d", page.Num())
	}

	idx, found := leafFindIndex(page, rowid)
	if checkDuplicates && found {
		return wrapf(ErrDuplicateRowid, "rowid %d", rowid)
	}

	newOffset := cellContentOffset(page) - size
	if _, ok := serializeCell(page.data()[newOffset:], rowid, values); !ok {
		return wrapf(ErrSerializationFailed, "rowid %d", rowid)
	}

	for i := n; i > idx; i-- {
		setCellPointer(page, i, cellPointer(page, i-1))
	}
	setCellPointer(page, idx, newOffset)
	setCellCount(page, n+1)
	setCellContentOffset(page, newOffset)
	return nil
}

// leafDeleteAt removes the cell at pointer-array index idx per §4.4.5.
func leafDeleteAt(page *Page, idx int) error {
	n := cellCount(page)
	cellOff := cellPointer(page, idx)
	size, ok := getCellSize(page.data(), cellOff)
	if !ok {
		return wrapf(ErrInvalidCellPointer, "page %d index %d", page.Num(), idx)
	}

	for i := idx; i < n-1; i++ {
		setCellPointer(page, i, cellPointer(page, i+1))
	}
	setCellCount(page, n-1)

	if cellOff == cellContentOffset(page) {
		setCellContentOffset(page, cellContentOffset(page)+size)
	} else {
		setFragmentedBytes(page, fragmentedBytes(page)+size)
	}
	return nil
}

// interiorCellSize returns the serialized size of an interior cell for
// the given separator key: a fixed 4-byte child pointer plus a varint key.
func interiorCellSize(key int64) int {
	return 4 + uvarintSize(uint64(key))
}

// readInteriorCell decodes the (child, separator) pair at pointer-array
// index i.
func readInteriorCell(page *Page, i int) (child uint32, key int64, ok bool) {
	off := cellPointer(page, i)
	data := page.data()
	if off+4 > len(data) {
		return 0, 0, false
	}
	child = readUint32BE(data, off)
	k, _, ok := getUvarint(data[off+4:])
	return child, int64(k), ok
}

// setCellChildAt overwrites only the fixed-width child pointer field of an
// existing interior cell, leaving its separator key untouched.
func setCellChildAt(page *Page, i int, child uint32) {
	off := cellPointer(page, i)
	writeUint32BE(page.data(), off, child)
}

// interiorFindChildIndex binary-searches for the first separator >= key
// (§4.4.2 step 1). isRightmost is true when no separator qualifies, in
// which case the caller should follow rightmost_child.
func interiorFindChildIndex(page *Page, key int64) (idx int, isRightmost bool) {
	n := cellCount(page)
	lo, hi := 0, n
	for lo < hi {
		mid := (lo + hi) / 2
		_, sep, _ := readInteriorCell(page, mid)
		if sep < key {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo == n {
		return n, true
	}
	return lo, false
}

// interiorFindChild returns the child page to descend into for key.
func interiorFindChild(page *Page, key int64) uint32 {
	idx, isRightmost := interiorFindChildIndex(page, key)
	if isRightmost {
		return rightmostChild(page)
	}
	child, _, _ := readInteriorCell(page, idx)
	return child
}

// interiorInsertCellAt places a new (child, key) cell at pointer-array
// index idx, shifting subsequent pointers right. The caller must have
// already verified the page has room.
func interiorInsertCellAt(page *Page, idx int, child uint32, key int64) error {
	size := interiorCellSize(key)
	n := cellCount(page)
	newOffset := cellContentOffset(page) - size
	if newOffset < pageHeaderSize+2*(n+1) {
		return wrapf(ErrPageFull, "interior page %d", page.Num())
	}

	writeUint32BE(page.data(), newOffset, child)
	putUvarint(page.data()[newOffset+4:], uint64(key))

	for i := n; i > idx; i-- {
		setCellPointer(page, i, cellPointer(page, i-1))
	}
	setCellPointer(page, idx, newOffset)
	setCellCount(page, n+1)
	setCellContentOffset(page, newOffset)
	return nil
}

// interiorEntry is the logical (child, separator) shape of one interior
// cell, used to rebuild a page's content wholesale during an interior
// split (§4.4.7), where shifting pointers incrementally would be more
// error-prone than just re-appending a fresh cell list.
type interiorEntry struct {
	child uint32
	key   int64
}

// interiorEntries reads every cell of an interior page into a slice.
func interiorEntries(page *Page) []interiorEntry {
	n := cellCount(page)
	out := make([]interiorEntry, n)
	for i := 0; i < n; i++ {
		child, key, _ := readInteriorCell(page, i)
		out[i] = interiorEntry{child: child, key: key}
	}
	return out
}

// interiorRebuild reinitializes page as an interior node containing
// exactly entries, in order, with the given rightmost child.
func interiorRebuild(page *Page, entries []interiorEntry, rightmost uint32) error {
	initInterior(page)
	for _, e := range entries {
		if err := interiorInsertCellAt(page, cellCount(page), e.child, e.key); err != nil {
			return err
		}
	}
	setRightmostChild(page, rightmost)
	return nil
}
