package magni

// Verify walks the whole tree from the root, checking the §3.6 invariants:
// ascending, unique keys within every node; interior separators bounding
// their child subtree from above; and a well-formed header on every page
// visited. It returns the first violation found, wrapped with the
// offending page number, or nil if the tree is well-formed. This is a
// diagnostic for tests and tooling, not something the insert/delete path
// calls on every operation.
func (t *BTree) Verify() error {
	return t.verifyNode(t.root, nil, nil)
}

func (t *BTree) verifyNode(pageNum uint32, minKey, maxKey *int64) error {
	page, err := t.pager.GetPage(pageNum)
	if err != nil {
		return err
	}
	defer t.pager.UnpinPage(pageNum)

	n := cellCount(page)
	if pageHeaderSize+2*n > cellContentOffset(page) {
		return wrapf(ErrInvalidPageHeader, "page %d: pointer array overruns cell content", pageNum)
	}

	if nodeType(page) == pageTypeLeaf {
		var prev *int64
		for i := 0; i < n; i++ {
			off := cellPointer(page, i)
			key, ok := getCellRowid(page.data(), off)
			if !ok {
				return wrapf(ErrInvalidPageHeader, "page %d cell %d: malformed rowid", pageNum, i)
			}
			if minKey != nil && key <= *minKey {
				return wrapf(ErrInvalidBounds, "page %d cell %d: rowid %d <= lower bound %d", pageNum, i, key, *minKey)
			}
			if maxKey != nil && key > *maxKey {
				return wrapf(ErrInvalidBounds, "page %d cell %d: rowid %d > upper bound %d", pageNum, i, key, *maxKey)
			}
			if prev != nil && key <= *prev {
				return wrapf(ErrInvalidBounds, "page %d cell %d: rowid %d out of order after %d", pageNum, i, key, *prev)
			}
			k := key
			prev = &k
		}
		return nil
	}

	var prevSep *int64
	lowerBound := minKey
	for i := 0; i < n; i++ {
		child, sep, ok := readInteriorCell(page, i)
		if !ok {
			return wrapf(ErrInvalidPageHeader, "page %d cell %d: malformed interior cell", pageNum, i)
		}
		if prevSep != nil && sep <= *prevSep {
			return wrapf(ErrInvalidBounds, "page %d cell %d: separator %d out of order after %d", pageNum, i, sep, *prevSep)
		}
		if maxKey != nil && sep > *maxKey {
			return wrapf(ErrInvalidBounds, "page %d cell %d: separator %d > upper bound %d", pageNum, i, sep, *maxKey)
		}
		s := sep
		if err := t.verifyNode(child, lowerBound, &s); err != nil {
			return err
		}
		prevSep = &s
		lowerBound = &s
	}

	right := rightmostChild(page)
	if right != 0 {
		if err := t.verifyNode(right, lowerBound, maxKey); err != nil {
			return err
		}
	}
	return nil
}
