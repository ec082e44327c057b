package magni

// Cursor walks a BTree's leaves in ascending rowid order (§4.4.8). It
// records page numbers and pointer-array indices, not live pointers, so a
// Cursor can be parked between calls without holding any page pinned; a
// page is only (re)pinned for the duration of a single Advance or GetCell
// call, except for the extra pin a zero-copy GetCell hands off to its
// returned Cell.
type Cursor struct {
	tree  *BTree
	path  []cursorFrame
	valid bool
}

type cursorFrame struct {
	page  uint32
	index int
}

// StartCursor positions a new Cursor at the first cell of the tree's
// leftmost leaf. If that leaf holds no cells, the cursor starts out
// invalid, even when later leaves still hold cells.
func StartCursor(tree *BTree) (*Cursor, error) {
	c := &Cursor{tree: tree}
	if err := c.descendLeftmost(tree.root); err != nil {
		return nil, err
	}
	return c, nil
}

// Valid reports whether the cursor is currently positioned on a cell.
func (c *Cursor) Valid() bool { return c.valid }

// descendLeftmost resets the cursor's path and descends from pageNum to
// its leftmost leaf.
func (c *Cursor) descendLeftmost(pageNum uint32) error {
	c.path = c.path[:0]
	return c.descendLeftmostAppend(pageNum)
}

// descendLeftmostAppend descends from pageNum to its leftmost leaf,
// appending frames onto the existing path. Used both by descendLeftmost
// (on an empty path) and by Advance (resuming from an interior frame).
func (c *Cursor) descendLeftmostAppend(pageNum uint32) error {
	pager := c.tree.pager
	for {
		page, err := pager.GetPage(pageNum)
		if err != nil {
			return err
		}
		if nodeType(page) == pageTypeLeaf {
			n := cellCount(page)
			c.path = append(c.path, cursorFrame{page: pageNum, index: 0})
			c.valid = n > 0
			pager.UnpinPage(pageNum)
			return nil
		}

		n := cellCount(page)
		var child uint32
		if n == 0 {
			child = rightmostChild(page)
		} else {
			child, _, _ = readInteriorCell(page, 0)
		}
		c.path = append(c.path, cursorFrame{page: pageNum, index: 0})
		pager.UnpinPage(pageNum)
		pageNum = child
	}
}

// Advance moves the cursor to the next cell in ascending rowid order,
// invalidating it once the last leaf's last cell has been passed (§4.4.8).
// It is a no-op on an already-invalid cursor.
func (c *Cursor) Advance() error {
	if !c.valid {
		return nil
	}
	pager := c.tree.pager

	for {
		leaf := &c.path[len(c.path)-1]
		page, err := pager.GetPage(leaf.page)
		if err != nil {
			return err
		}
		n := cellCount(page)
		leaf.index++
		stillInLeaf := leaf.index < n
		pager.UnpinPage(leaf.page)
		if stillInLeaf {
			return nil
		}

		c.path = c.path[:len(c.path)-1]
		advanced := false
		for len(c.path) > 0 {
			parent := &c.path[len(c.path)-1]
			page, err := pager.GetPage(parent.page)
			if err != nil {
				return err
			}
			pn := cellCount(page)
			parent.index++
			if parent.index <= pn {
				var child uint32
				if parent.index == pn {
					child = rightmostChild(page)
				} else {
					child, _, _ = readInteriorCell(page, parent.index)
				}
				pager.UnpinPage(parent.page)
				if err := c.descendLeftmostAppend(child); err != nil {
					return err
				}
				advanced = true
				break
			}
			pager.UnpinPage(parent.page)
			c.path = c.path[:len(c.path)-1]
		}
		if !advanced {
			c.valid = false
			c.path = nil
			return nil
		}

		// The freshly descended-to leaf might be empty: deletes never
		// rebalance (§4.4.5), so a leaf can be left with zero cells while
		// its siblings still hold data. If so, loop around and advance
		// past it too instead of stopping on it.
		newLeaf := &c.path[len(c.path)-1]
		page, err = pager.GetPage(newLeaf.page)
		if err != nil {
			return err
		}
		n = cellCount(page)
		pager.UnpinPage(newLeaf.page)
		if n > 0 {
			return nil
		}
	}
}

// GetCell decodes the cell the cursor is currently positioned on. See
// BTree.Find for the zeroCopy/ownership contract.
func (c *Cursor) GetCell(zeroCopy bool) (*Cell, error) {
	if !c.valid {
		return nil, wrapf(ErrCellNotFound, "cursor is not positioned on a cell")
	}
	frame := c.path[len(c.path)-1]
	page, err := c.tree.pager.GetPage(frame.page)
	if err != nil {
		return nil, err
	}
	off := cellPointer(page, frame.index)
	return c.tree.decodeAt(frame.page, page, off, zeroCopy)
}
