package magni

import (
	"github.com/pkg/errors"
)

// Sentinel error kinds surfaced by the core. Every fallible operation
// returns one of these (optionally wrapped with page/rowid/offset context
// via errors.Wrapf) or nil; callers compare with errors.Is rather than on
// string content.
var (
	// Pager I/O.
	ErrFileOpenFailed = errors.New("magni: file open failed")
	ErrIoError        = errors.New("magni: io error")
	ErrShortWrite     = errors.New("magni: short write")

	// Pager resource exhaustion.
	ErrOutOfMemory = errors.New("magni: out of memory")
	ErrCacheFull   = errors.New("magni: page cache full")

	// Pager addressing.
	ErrPageNotFound   = errors.New("magni: page not found")
	ErrInvalidPageNum = errors.New("magni: invalid page number")

	// Corrupt or truncated page content.
	ErrInvalidPageHeader  = errors.New("magni: invalid page header")
	ErrInvalidCellPointer = errors.New("magni: invalid cell pointer")
	ErrInvalidBounds      = errors.New("magni: invalid bounds")

	// Cell codec contract violations.
	ErrCellDeserializeFailed = errors.New("magni: cell deserialize failed")
	ErrSerializationFailed   = errors.New("magni: serialization failed")

	// B-tree.
	//
	// ErrPageFull is always caught internally by the insert path, which
	// responds by splitting the page. Seeing it escape Insert is a bug.
	ErrPageFull       = errors.New("magni: page full")
	ErrDuplicateRowid = errors.New("magni: duplicate rowid")
	ErrCellNotFound   = errors.New("magni: cell not found")

	// Schema catalog. Lookup/delete-absent and insert-collision cases reuse
	// the core's own ErrCellNotFound/ErrDuplicateRowid (§7 defines a closed
	// set of error kinds and neither lists a catalog-specific substitute).
	ErrTooManyColumns = errors.New("magni: too many columns")
	ErrInvalidColumn  = errors.New("magni: invalid column")
)

// wrapf is a thin alias kept local so call sites read the same whether they
// are wrapping a sentinel or an *os.File error bubbling up from the pager.
func wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return errors.Wrapf(err, format, args...)
}
