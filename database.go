package magni

import "bytes"

// magic is the on-disk literal identifying a magni database file (§6.1).
const magic = "MAGNI_DB_v1.0"

const schemaVersion = 1

// Header field offsets within the first DatabaseHeaderSize bytes of page 1.
const (
	headerMagicOffset     = 0
	headerPageSizeOffset  = len(magic)
	headerPageCountOffset = headerPageSizeOffset + 4
	headerSchemaVerOffset = headerPageCountOffset + 4
	headerReservedOffset  = headerSchemaVerOffset + 4
	headerReservedSize    = DatabaseHeaderSize - headerReservedOffset
)

// Options configures Open. The zero value is not valid on its own; use
// DefaultOptions and override individual fields.
type Options struct {
	// PageSize is the fixed page size. When opening an existing file it
	// must equal the file's page_size header field, or Open fails with
	// ErrInvalidPageHeader.
	PageSize int
	// MaxCachePages bounds the pager's page cache (§4.2.1).
	MaxCachePages int
	// ZeroCopy is recorded on the table trees created or opened through
	// Database. BTree.Find and Cursor.GetCell do not read it: each call
	// takes its own zeroCopy argument.
	ZeroCopy bool
	// CheckDuplicates enables duplicate-rowid rejection on table trees
	// opened through Database. The schema catalog itself always checks.
	CheckDuplicates bool
}

// DefaultOptions returns the spec's default configuration: 4096-byte
// pages, a generous cache, owned (non-zero-copy) reads, and duplicate
// checking enabled.
func DefaultOptions() Options {
	return Options{
		PageSize:        DefaultPageSize,
		MaxCachePages:   DefaultMaxCachePages,
		ZeroCopy:        false,
		CheckDuplicates: true,
	}
}

// Database is the top-level handle returned by Open: a pager plus the
// schema catalog rooted on its page 1 (§6.1/§6.2).
type Database struct {
	pager   *Pager
	schema  *Schema
	options Options
}

// Open opens path, creating and initializing it if it does not already
// contain a magni database. For an existing file, opts.PageSize must match
// the page-1 header's page_size, or Open fails with ErrInvalidPageHeader.
func Open(path string, opts Options) (*Database, error) {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.MaxCachePages <= 0 {
		opts.MaxCachePages = DefaultMaxCachePages
	}

	pager, err := OpenPager(path, opts.PageSize, opts.MaxCachePages)
	if err != nil {
		return nil, err
	}

	if pager.IsEmpty() {
		if err := createDatabase(pager, opts.PageSize); err != nil {
			_ = pager.Close()
			return nil, err
		}
	} else if err := verifyHeader(pager, opts.PageSize); err != nil {
		_ = pager.Close()
		return nil, err
	}

	db := &Database{pager: pager, schema: OpenSchema(pager), options: opts}
	log.WithFields(logFields{"path": path}).Info("magni: database opened")
	return db, nil
}

// createDatabase initializes a brand-new file: page 1's header plus an
// empty schema catalog leaf occupying the rest of page 1.
func createDatabase(pager *Pager, pageSize int) error {
	page, err := pager.GetOrAllocatePage(1)
	if err != nil {
		return err
	}
	defer pager.UnpinPage(1)

	h := page.databaseHeaderBytes()
	copy(h[headerMagicOffset:], magic)
	writeUint32LE(h, headerPageSizeOffset, uint32(pageSize))
	writeUint32LE(h, headerPageCountOffset, 1)
	writeUint32LE(h, headerSchemaVerOffset, schemaVersion)
	for i := 0; i < headerReservedSize; i++ {
		h[headerReservedOffset+i] = 0
	}

	initLeaf(page)
	pager.MarkDirty(1)
	return pager.SyncFile()
}

// verifyHeader checks an existing file's page-1 header against pageSize,
// per §6.1's "page_size must equal the compile-time page size" contract.
func verifyHeader(pager *Pager, pageSize int) error {
	if pager.PageCount() == 0 {
		return wrapf(ErrInvalidPageHeader, "page size mismatch: file is shorter than one %d-byte page", pageSize)
	}
	page, err := pager.GetPage(1)
	if err != nil {
		return err
	}
	defer pager.UnpinPage(1)

	h := page.databaseHeaderBytes()
	if !bytes.Equal(h[headerMagicOffset:headerMagicOffset+len(magic)], []byte(magic)) {
		return wrapf(ErrInvalidPageHeader, "bad magic")
	}
	storedPageSize := readUint32LE(h, headerPageSizeOffset)
	if int(storedPageSize) != pageSize {
		return wrapf(ErrInvalidPageHeader, "page size mismatch: file has %d, opened with %d", storedPageSize, pageSize)
	}
	return nil
}

// updatePageCount refreshes page 1's page_count header field to match the
// pager's current view of the file.
func (db *Database) updatePageCount() error {
	page, err := db.pager.GetPage(1)
	if err != nil {
		return err
	}
	defer db.pager.UnpinPage(1)
	writeUint32LE(page.databaseHeaderBytes(), headerPageCountOffset, db.pager.PageCount())
	db.pager.MarkDirty(1)
	return nil
}

// Schema returns the database's schema catalog.
func (db *Database) Schema() *Schema { return db.schema }

// Pager returns the database's pager, for callers that need
// FlushAll/SyncFile checkpoint control (§6.2).
func (db *Database) Pager() *Pager { return db.pager }

// CreateTable allocates a fresh data page for a new table, registers it in
// the schema catalog, and returns a BTree over it.
func (db *Database) CreateTable(name string, columns []Column, sqlText string) (*BTree, error) {
	tree, err := CreateBTree(db.pager, db.options.ZeroCopy, db.options.CheckDuplicates)
	if err != nil {
		return nil, err
	}
	t := Table{Name: name, RootPage: tree.Root(), SQL: sqlText, Columns: columns}
	if err := db.schema.AddTable(t); err != nil {
		return nil, err
	}
	if err := db.updatePageCount(); err != nil {
		return nil, err
	}
	return tree, nil
}

// OpenTable returns a BTree over an already-registered table's data pages.
func (db *Database) OpenTable(name string) (*BTree, error) {
	t, err := db.schema.FindTable(name)
	if err != nil {
		return nil, err
	}
	return OpenBTree(db.pager, t.RootPage, db.options.ZeroCopy, db.options.CheckDuplicates), nil
}

// Close flushes and fsyncs every dirty page, then closes the underlying
// file. It panics, via Pager.Close, if any page is still pinned.
func (db *Database) Close() error {
	if err := db.updatePageCount(); err != nil {
		return err
	}
	log.Info("magni: database closing")
	return db.pager.Close()
}
