package magni

import (
	"hash/fnv"
)

// schemaRootPage is the fixed page number of the schema catalog's B+ tree
// root. Page 1 also carries the 100-byte database header ahead of it
// (§6.1); Page.data()/Page.usableSize() already account for that carve-out
// so the catalog tree's node logic never needs to know it is special.
const schemaRootPage = 1

// Schema catalog column order (§4.5): a fixed six-column rowid table.
const (
	schemaColType = iota
	schemaColName
	schemaColTblName
	schemaColRootPage
	schemaColSQL
	schemaColColumnsBlob
	schemaColumnCount
)

// Schema is the schema catalog: a dedicated B+ tree, rooted at page 1,
// whose rows describe every user table (§4.5). Grounded on
// tinydb.storage's sqlite_master-shaped row, generalized here to carry an
// arbitrary per-table column list via columns_blob rather than hard-coding
// a fixed handful of known columns.
type Schema struct {
	tree *BTree
}

// OpenSchema wraps the catalog tree rooted at page 1. Callers must have
// already initialized that page (createDatabase does, on a brand new
// file); OpenSchema itself never writes.
func OpenSchema(pager *Pager) *Schema {
	return &Schema{tree: OpenBTree(pager, schemaRootPage, false, true)}
}

// tableRowid is the non-cryptographic 64-bit FNV-1a hash of name, masked
// to 63 bits so it is always representable as a non-negative int64 rowid.
func tableRowid(name string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(name))
	return int64(h.Sum64() & 0x7fffffffffffffff)
}

// encodeColumnsBlob implements §4.5's columns_blob layout: u32 count
// followed by, per column, u32 name_len, name_bytes, u8 type, u8 flags
// (bit 0 = not_null, bit 1 = pk).
func encodeColumnsBlob(columns []Column) []byte {
	size := 4
	for _, c := range columns {
		size += 4 + len(c.Name) + 1 + 1
	}
	buf := make([]byte, size)
	off := 0
	writeUint32LE(buf, off, uint32(len(columns)))
	off += 4
	for _, c := range columns {
		writeUint32LE(buf, off, uint32(len(c.Name)))
		off += 4
		copy(buf[off:], c.Name)
		off += len(c.Name)
		buf[off] = byte(c.Type)
		off++
		var flags byte
		if c.NotNull {
			flags |= 1
		}
		if c.PK {
			flags |= 2
		}
		buf[off] = flags
		off++
	}
	return buf
}

// decodeColumnsBlob is encodeColumnsBlob's inverse. It returns
// ErrInvalidColumn if buf is malformed or truncated.
func decodeColumnsBlob(buf []byte) ([]Column, error) {
	if len(buf) < 4 {
		return nil, wrapf(ErrInvalidColumn, "columns_blob too short")
	}
	count := readUint32LE(buf, 0)
	off := 4
	columns := make([]Column, 0, count)
	for i := uint32(0); i < count; i++ {
		if off+4 > len(buf) {
			return nil, wrapf(ErrInvalidColumn, "columns_blob truncated at column %d", i)
		}
		nameLen := int(readUint32LE(buf, off))
		off += 4
		if off+nameLen+2 > len(buf) {
			return nil, wrapf(ErrInvalidColumn, "columns_blob truncated at column %d", i)
		}
		name := string(buf[off : off+nameLen])
		off += nameLen
		typ := ColumnType(buf[off])
		off++
		flags := buf[off]
		off++
		columns = append(columns, Column{
			Name:    name,
			Type:    typ,
			NotNull: flags&1 != 0,
			PK:      flags&2 != 0,
		})
	}
	return columns, nil
}

// rowToTable decodes one schema catalog cell into a Table.
func rowToTable(cell *Cell) (Table, error) {
	if len(cell.Values) != schemaColumnCount {
		return Table{}, wrapf(ErrInvalidPageHeader, "schema row has %d columns, want %d", len(cell.Values), schemaColumnCount)
	}
	columns, err := decodeColumnsBlob(cell.Values[schemaColColumnsBlob].Bytes)
	if err != nil {
		return Table{}, err
	}
	return Table{
		Name:     cell.Values[schemaColName].Text(),
		RootPage: uint32(cell.Values[schemaColRootPage].Int),
		SQL:      cell.Values[schemaColSQL].Text(),
		Columns:  columns,
	}, nil
}

func tableToRow(t Table) []Value {
	row := make([]Value, schemaColumnCount)
	row[schemaColType] = TextValue("table")
	row[schemaColName] = TextValue(t.Name)
	row[schemaColTblName] = TextValue(t.Name)
	row[schemaColRootPage] = IntValue(int64(t.RootPage))
	row[schemaColSQL] = TextValue(t.SQL)
	row[schemaColColumnsBlob] = BlobValue(encodeColumnsBlob(t.Columns))
	return row
}

// AddTable registers a new table descriptor. A name already present
// (whether an actual duplicate or, in principle, an FNV-1a collision)
// surfaces as the core's own ErrDuplicateRowid: the catalog is an
// ordinary rowid table and collisions are a rowid-insert concern, not a
// distinct catalog error kind (spec.md's error enumeration has no
// separate "table exists" kind).
func (s *Schema) AddTable(t Table) error {
	if err := validateTable(t); err != nil {
		return err
	}
	rowid := tableRowid(t.Name)
	if err := s.tree.Insert(rowid, tableToRow(t)); err != nil {
		return wrapf(err, "table %q", t.Name)
	}
	log.WithFields(logFields{"table": t.Name, "rootpage": t.RootPage}).Info("magni: table registered")
	return nil
}

// FindTable looks up a table descriptor by name, returning the core's
// ErrCellNotFound if it is absent.
func (s *Schema) FindTable(name string) (Table, error) {
	cell, err := s.tree.Find(tableRowid(name), false)
	if err != nil {
		return Table{}, wrapf(err, "table %q", name)
	}
	defer cell.Destroy()
	return rowToTable(cell)
}

// GetTable is FindTable's deep-copy counterpart: since FindTable already
// decodes with zeroCopy=false, every byte in the returned Table is an
// independent allocation the caller may retain after the catalog tree is
// next modified.
func (s *Schema) GetTable(name string) (Table, error) {
	return s.FindTable(name)
}

// TableExists reports whether name is currently registered.
func (s *Schema) TableExists(name string) bool {
	_, err := s.tree.Find(tableRowid(name), false)
	return err == nil
}

// DropTable removes a table's descriptor from the catalog. It does not
// touch the table's own data pages; the caller is responsible for
// reclaiming or ignoring them, matching this engine's no-vacuum Non-goal.
func (s *Schema) DropTable(name string) error {
	if err := s.tree.Delete(tableRowid(name)); err != nil {
		return wrapf(err, "table %q", name)
	}
	log.WithFields(logFields{"table": name}).Info("magni: table dropped")
	return nil
}

// ListTables returns every registered table, in ascending rowid order.
func (s *Schema) ListTables() ([]Table, error) {
	cur, err := StartCursor(s.tree)
	if err != nil {
		return nil, err
	}
	var tables []Table
	for cur.Valid() {
		cell, err := cur.GetCell(false)
		if err != nil {
			return nil, err
		}
		t, err := rowToTable(cell)
		cell.Destroy()
		if err != nil {
			return nil, err
		}
		tables = append(tables, t)
		if err := cur.Advance(); err != nil {
			return nil, err
		}
	}
	return tables, nil
}
