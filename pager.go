package magni

import (
	"io"
	"os"
	"sync"

	"github.com/pkg/errors"
)

// DefaultMaxCachePages bounds the pager's page cache when Options leaves
// MaxCachePages at its zero value. It is generous enough that no test in
// this package reaches it; the eviction tests of §4.2.1 open their pager
// with an explicit small cap instead.
const DefaultMaxCachePages = 2000

// Pager is a bounded page cache over a block-addressed file (§4.2). Every
// public method is safe for concurrent use; a single mutex serializes all
// access, matching the single-writer model of §5.
type Pager struct {
	mu            sync.Mutex
	file          *os.File
	pageSize      int
	fileLen       int64
	cache         map[uint32]*Page
	maxCachePages int
}

// OpenPager opens or creates path for read/write and records its current
// length. The returned Pager has an empty cache regardless of how much of
// the file already exists on disk.
func OpenPager(path string, pageSize, maxCachePages int) (*Pager, error) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if maxCachePages <= 0 {
		maxCachePages = DefaultMaxCachePages
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, wrapf(ErrFileOpenFailed, "open %q", path)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, wrapf(ErrIoError, "stat %q", path)
	}

	p := &Pager{
		file:          f,
		pageSize:      pageSize,
		fileLen:       info.Size(),
		cache:         make(map[uint32]*Page),
		maxCachePages: maxCachePages,
	}
	log.WithFields(logFields{"path": path, "pages": p.pageCountLocked()}).Debug("magni: pager opened")
	return p, nil
}

// PageSize returns the fixed page size this pager was opened with.
func (p *Pager) PageSize() int {
	return p.pageSize
}

// PageCount returns the number of pages currently backing the file.
func (p *Pager) PageCount() uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pageCountLocked()
}

func (p *Pager) pageCountLocked() uint32 {
	return uint32(p.fileLen / int64(p.pageSize))
}

// GetPage returns the page numbered n, pinning it. Callers must call
// UnpinPage exactly once for every successful GetPage/AllocatePage call.
func (p *Pager) GetPage(n uint32) (*Page, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.getPageLocked(n)
}

func (p *Pager) getPageLocked(n uint32) (*Page, error) {
	if n == 0 || n > p.pageCountLocked() {
		return nil, wrapf(ErrPageNotFound, "page %d", n)
	}
	if pg, ok := p.cache[n]; ok {
		pg.pinCount++
		return pg, nil
	}

	pg, err := p.loadSlot(n)
	if err != nil {
		return nil, err
	}

	off := int64(n-1) * int64(p.pageSize)
	if _, err := p.file.ReadAt(pg.raw, off); err != nil && err != io.EOF {
		return nil, wrapf(ErrIoError, "read page %d", n)
	}
	pg.pinCount = 1
	p.cache[n] = pg
	log.WithFields(logFields{"page": n}).Debug("magni: page read")
	return pg, nil
}

// AllocatePage extends the file logically by one page and returns a
// zero-filled, dirty, pinned Page for it. The physical write is deferred
// until a flush.
func (p *Pager) AllocatePage() (*Page, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := p.pageCountLocked() + 1
	p.fileLen += int64(p.pageSize)

	pg, err := p.loadSlot(n)
	if err != nil {
		return nil, err
	}
	pg.dirty = true
	pg.pinCount = 1
	p.cache[n] = pg
	log.WithFields(logFields{"page": n}).Debug("magni: page allocated")
	return pg, nil
}

// GetOrAllocatePage returns page n if it already exists; if n is exactly
// one past the current page count it is allocated. Any other out-of-range
// n fails with ErrPageNotFound.
func (p *Pager) GetOrAllocatePage(n uint32) (*Page, error) {
	p.mu.Lock()
	count := p.pageCountLocked()
	p.mu.Unlock()

	if n == count+1 {
		return p.AllocatePage()
	}
	return p.GetPage(n)
}

// UnpinPage decrements the pin count of page n, clamped at zero.
func (p *Pager) UnpinPage(n uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if pg, ok := p.cache[n]; ok && pg.pinCount > 0 {
		pg.pinCount--
	}
}

// MarkDirty marks page n dirty.
func (p *Pager) MarkDirty(n uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if pg, ok := p.cache[n]; ok {
		pg.dirty = true
	}
}

// FlushPage writes page n to its file offset if it is cached and dirty.
func (p *Pager) FlushPage(n uint32) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	pg, ok := p.cache[n]
	if !ok || !pg.dirty {
		return nil
	}
	return p.flushLocked(pg)
}

// FlushAll writes every dirty cached page to its file offset.
func (p *Pager) FlushAll() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, pg := range p.cache {
		if pg.dirty {
			if err := p.flushLocked(pg); err != nil {
				return err
			}
		}
	}
	return nil
}

func (p *Pager) flushLocked(pg *Page) error {
	off := int64(pg.num-1) * int64(p.pageSize)
	n, err := p.file.WriteAt(pg.raw, off)
	if err != nil {
		return wrapf(ErrIoError, "write page %d", pg.num)
	}
	if n != len(pg.raw) {
		return wrapf(ErrShortWrite, "write page %d: wrote %d of %d bytes", pg.num, n, len(pg.raw))
	}
	pg.dirty = false
	log.WithFields(logFields{"page": pg.num}).Debug("magni: page flushed")
	return nil
}

// SyncFile flushes every dirty page and then fsyncs the underlying file,
// guaranteeing durability for anything flushed once this returns nil.
func (p *Pager) SyncFile() error {
	if err := p.FlushAll(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.file.Sync(); err != nil {
		return wrapf(ErrIoError, "fsync")
	}
	return nil
}

// Close flushes every dirty page, fsyncs, and closes the file. It panics if
// any page is still pinned, mirroring the "no outstanding pinned pages"
// precondition of §4.2: closing a pager out from under a live borrow is a
// programming error, not a recoverable one.
func (p *Pager) Close() error {
	if err := p.SyncFile(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for n, pg := range p.cache {
		if pg.pinCount > 0 {
			panic(errors.Errorf("magni: pager closed with page %d still pinned (count=%d)", n, pg.pinCount))
		}
	}
	p.cache = make(map[uint32]*Page)
	log.Debug("magni: pager closed")
	return p.file.Close()
}

// IsEmpty reports whether the underlying file is brand new.
func (p *Pager) IsEmpty() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fileLen == 0
}

// loadSlot returns a cache slot for page n, evicting per §4.2.1 if the
// cache is at capacity. Must be called with p.mu held.
func (p *Pager) loadSlot(n uint32) (*Page, error) {
	if len(p.cache) < p.maxCachePages {
		return newPage(n, p.pageSize), nil
	}

	if victim := p.findEvictable(); victim != 0 {
		delete(p.cache, victim)
		log.WithFields(logFields{"page": victim}).Debug("magni: page evicted")
		return newPage(n, p.pageSize), nil
	}

	// No unpinned, clean page available. Flush to clear dirty flags on
	// unpinned pages and try once more before giving up.
	for _, pg := range p.cache {
		if pg.dirty {
			if err := p.flushLocked(pg); err != nil {
				return nil, err
			}
		}
	}
	if victim := p.findEvictable(); victim != 0 {
		delete(p.cache, victim)
		log.WithFields(logFields{"page": victim}).Debug("magni: page evicted after flush")
		return newPage(n, p.pageSize), nil
	}

	return nil, wrapf(ErrCacheFull, "cache full at %d pages", p.maxCachePages)
}

// findEvictable scans for a page with pinCount == 0 && !dirty. The scan
// order is unspecified by §4.2.1; map iteration order suffices since the
// only correctness contract is that a pinned or dirty page is never
// returned.
func (p *Pager) findEvictable() uint32 {
	for n, pg := range p.cache {
		if pg.pinCount == 0 && !pg.dirty {
			return n
		}
	}
	return 0
}

// logFields is a small alias so call sites read naturally with logrus.
type logFields = map[string]interface{}
