package magni

// DefaultPageSize is the fixed page size used when Options.PageSize is left
// at its zero value.
const DefaultPageSize = 4096

// DatabaseHeaderSize is the width of the database header carved out of the
// front of page 1 (§6.1). Every other page, and the rest of page 1, is
// addressed relative to this carve-out.
const DatabaseHeaderSize = 100

// pageType tags a B+ tree page as interior or leaf. The numeric values
// match the on-disk byte at offset 0 of the common page header.
type pageType byte

const (
	pageTypeInterior pageType = 5
	pageTypeLeaf     pageType = 13
)

func (t pageType) String() string {
	switch t {
	case pageTypeInterior:
		return "interior"
	case pageTypeLeaf:
		return "leaf"
	default:
		return "invalid"
	}
}

// commonHeaderSize is the width of the header bytes shared by leaf and
// interior pages (§3.5): type, first_freeblock, cell_count,
// cell_content_offset, fragmented_bytes.
const commonHeaderSize = 8

// extHeaderSize is the width of the type-specific extension that follows
// the common header: rightmost_child_page for interiors, next_leaf_page
// for leaves. Both extensions are 4 bytes, so every B-tree page has the
// same 12-byte header regardless of type.
const extHeaderSize = 4

// pageHeaderSize is the combined common + extension header width.
const pageHeaderSize = commonHeaderSize + extHeaderSize

// Page is a fixed-size, pinned, cached buffer over one block of the
// database file (§3.4). Page 0 on disk is unused; page 1 holds the
// database header in its first DatabaseHeaderSize bytes, so its usable
// (logical) region is correspondingly shorter than every other page's.
//
// All offsets used by the cell codec and the B+ tree are relative to a
// page's logical region, obtained with Page.data(); callers never address
// the raw on-disk buffer directly.
type Page struct {
	num      uint32
	size     int // full physical page size, equal across every page
	raw      []byte
	dirty    bool
	pinCount uint32
}

func newPage(num uint32, size int) *Page {
	return &Page{
		num:  num,
		size: size,
		raw:  make([]byte, size),
	}
}

// Num returns the page's 1-indexed page number.
func (p *Page) Num() uint32 { return p.num }

// Dirty reports whether the page has unflushed modifications.
func (p *Page) Dirty() bool { return p.dirty }

// PinCount reports how many live borrowers hold this page pinned.
func (p *Page) PinCount() uint32 { return p.pinCount }

// headerOffset is the byte offset within the physical page buffer at which
// the page's logical (B-tree-addressable) region begins. Page 1 is the
// database header page and so starts its logical region after the
// DatabaseHeaderSize-byte header; every other page starts at 0.
func headerOffset(num uint32) int {
	if num == 1 {
		return DatabaseHeaderSize
	}
	return 0
}

// data returns the page's logical region: the slice every cell and header
// offset is measured against.
func (p *Page) data() []byte {
	return p.raw[headerOffset(p.num):]
}

// usableSize returns the length of the page's logical region.
func (p *Page) usableSize() int {
	return p.size - headerOffset(p.num)
}

// databaseHeaderBytes returns the mutable slice backing the first
// DatabaseHeaderSize bytes of page 1. It is only meaningful for page 1.
func (p *Page) databaseHeaderBytes() []byte {
	return p.raw[:DatabaseHeaderSize]
}
