package magni

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tempSchema(t *testing.T) *Schema {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), t.Name())
	require.NoError(t, err)
	require.NoError(t, f.Close())

	pager, err := OpenPager(f.Name(), DefaultPageSize, 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pager.Close() })

	page, err := pager.GetOrAllocatePage(1)
	require.NoError(t, err)
	initLeaf(page)
	pager.MarkDirty(1)
	pager.UnpinPage(1)

	return OpenSchema(pager)
}

func sampleColumns() []Column {
	return []Column{
		{Name: "id", Type: ColumnInteger, PK: true, NotNull: true},
		{Name: "name", Type: ColumnText, NotNull: true},
		{Name: "score", Type: ColumnReal},
	}
}

func TestSchemaAddFindTable(t *testing.T) {
	s := tempSchema(t)

	tbl := Table{Name: "users", RootPage: 2, SQL: "CREATE TABLE users(...)", Columns: sampleColumns()}
	require.NoError(t, s.AddTable(tbl))

	got, err := s.FindTable("users")
	require.NoError(t, err)
	assert.Equal(t, tbl.Name, got.Name)
	assert.Equal(t, tbl.RootPage, got.RootPage)
	assert.Equal(t, tbl.SQL, got.SQL)
	require.Len(t, got.Columns, len(tbl.Columns))
	for i := range tbl.Columns {
		assert.Equal(t, tbl.Columns[i], got.Columns[i])
	}

	assert.True(t, s.TableExists("users"))
	assert.False(t, s.TableExists("missing"))
}

func TestSchemaAddDuplicateTableFails(t *testing.T) {
	s := tempSchema(t)
	tbl := Table{Name: "dup", RootPage: 2, Columns: sampleColumns()}
	require.NoError(t, s.AddTable(tbl))
	err := s.AddTable(tbl)
	assert.ErrorIs(t, err, ErrDuplicateRowid)
}

func TestSchemaFindMissingTableFails(t *testing.T) {
	s := tempSchema(t)
	_, err := s.FindTable("nope")
	assert.ErrorIs(t, err, ErrCellNotFound)
}

func TestSchemaDropTable(t *testing.T) {
	s := tempSchema(t)
	tbl := Table{Name: "gone", RootPage: 2, Columns: sampleColumns()}
	require.NoError(t, s.AddTable(tbl))
	require.NoError(t, s.DropTable("gone"))

	_, err := s.FindTable("gone")
	assert.ErrorIs(t, err, ErrCellNotFound)

	err = s.DropTable("gone")
	assert.ErrorIs(t, err, ErrCellNotFound)
}

func TestSchemaListTables(t *testing.T) {
	s := tempSchema(t)
	names := []string{"alpha", "beta", "gamma", "delta"}
	for i, n := range names {
		require.NoError(t, s.AddTable(Table{Name: n, RootPage: uint32(2 + i), Columns: sampleColumns()}))
	}

	tables, err := s.ListTables()
	require.NoError(t, err)
	require.Len(t, tables, len(names))

	seen := make(map[string]bool, len(names))
	for _, tbl := range tables {
		seen[tbl.Name] = true
	}
	for _, n := range names {
		assert.True(t, seen[n], "table %q should be listed", n)
	}
}

func TestSchemaRejectsInvalidColumns(t *testing.T) {
	s := tempSchema(t)
	tooMany := make([]Column, MaxCols+1)
	for i := range tooMany {
		tooMany[i] = Column{Name: "c", Type: ColumnInteger}
	}
	err := s.AddTable(Table{Name: "bad", RootPage: 2, Columns: tooMany})
	assert.ErrorIs(t, err, ErrTooManyColumns)
}

func TestColumnsBlobRoundTrip(t *testing.T) {
	columns := sampleColumns()
	blob := encodeColumnsBlob(columns)
	decoded, err := decodeColumnsBlob(blob)
	require.NoError(t, err)
	assert.Equal(t, columns, decoded)
}

func TestTableRowidIsStableAndMasked(t *testing.T) {
	a := tableRowid("same-name")
	b := tableRowid("same-name")
	assert.Equal(t, a, b)
	assert.GreaterOrEqual(t, a, int64(0), "rowid must be masked to 63 bits, never negative")
}
