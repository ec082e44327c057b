package magni

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tempPager(t *testing.T, maxCachePages int) *Pager {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), t.Name())
	require.NoError(t, err)
	require.NoError(t, f.Close())

	p, err := OpenPager(f.Name(), DefaultPageSize, maxCachePages)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestPagerAllocateThenGet(t *testing.T) {
	p := tempPager(t, 0)

	page, err := p.AllocatePage()
	require.NoError(t, err)
	assert.Equal(t, uint32(1), page.Num())
	assert.True(t, page.Dirty())
	p.UnpinPage(page.Num())

	reread, err := p.GetPage(1)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), reread.Num())
	p.UnpinPage(1)
}

// TestPagerIdentity is property 5: two successive GetPage calls without an
// intervening eviction return the same buffer and bump pin_count by 2.
func TestPagerIdentity(t *testing.T) {
	p := tempPager(t, 0)
	_, err := p.AllocatePage()
	require.NoError(t, err)
	p.UnpinPage(1)

	a, err := p.GetPage(1)
	require.NoError(t, err)
	b, err := p.GetPage(1)
	require.NoError(t, err)

	assert.Same(t, a, b)
	assert.Equal(t, uint32(2), a.PinCount())
	p.UnpinPage(1)
	p.UnpinPage(1)
}

// TestPagerDurability is property 4: after flush_all + sync_file,
// reopening the file yields the same bytes on every previously dirty page.
func TestPagerDurability(t *testing.T) {
	path := t.TempDir() + "/durable.db"
	p, err := OpenPager(path, DefaultPageSize, 0)
	require.NoError(t, err)

	page, err := p.AllocatePage()
	require.NoError(t, err)
	copy(page.data(), []byte("hello durability"))
	p.MarkDirty(page.Num())
	p.UnpinPage(page.Num())

	require.NoError(t, p.SyncFile())
	require.NoError(t, p.Close())

	reopened, err := OpenPager(path, DefaultPageSize, 0)
	require.NoError(t, err)
	defer reopened.Close()

	reread, err := reopened.GetPage(1)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello durability"), reread.data()[:len("hello durability")])
	reopened.UnpinPage(1)
}

func TestPagerGetPageOutOfRangeFails(t *testing.T) {
	p := tempPager(t, 0)
	_, err := p.GetPage(1)
	assert.ErrorIs(t, err, ErrPageNotFound)
}

func TestPagerEvictsUnpinnedCleanPages(t *testing.T) {
	p := tempPager(t, 2)

	for i := 0; i < 2; i++ {
		pg, err := p.AllocatePage()
		require.NoError(t, err)
		p.MarkDirty(pg.Num())
		require.NoError(t, p.FlushPage(pg.Num()))
		p.UnpinPage(pg.Num())
	}

	// Both cache slots are now occupied by unpinned, clean pages; a third
	// allocation should evict one rather than failing.
	pg3, err := p.AllocatePage()
	require.NoError(t, err)
	assert.Equal(t, uint32(3), pg3.Num())
	p.UnpinPage(pg3.Num())
}

func TestPagerCacheFullWhenEverythingPinned(t *testing.T) {
	p := tempPager(t, 1)
	pg, err := p.AllocatePage()
	require.NoError(t, err)
	defer p.UnpinPage(pg.Num())

	_, err = p.AllocatePage()
	assert.ErrorIs(t, err, ErrCacheFull)
}

func TestPagerCloseWithPinnedPagePanics(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), t.Name())
	require.NoError(t, err)
	require.NoError(t, f.Close())
	p, err := OpenPager(f.Name(), DefaultPageSize, 0)
	require.NoError(t, err)

	_, err = p.AllocatePage()
	require.NoError(t, err)

	assert.Panics(t, func() { _ = p.Close() })
}
