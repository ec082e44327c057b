package magni

import "fmt"

// ValueKind tags the variant held by a Value (§3.1).
type ValueKind byte

const (
	KindNull ValueKind = iota
	KindInt
	KindReal
	KindText
	KindBlob
)

func (k ValueKind) String() string {
	switch k {
	case KindNull:
		return "NULL"
	case KindInt:
		return "INTEGER"
	case KindReal:
		return "REAL"
	case KindText:
		return "TEXT"
	case KindBlob:
		return "BLOB"
	default:
		return "INVALID"
	}
}

// Value is a tagged union of NULL, a signed 64-bit integer, a 64-bit float,
// UTF-8 text or an arbitrary blob (§3.1). Text and blob values carry their
// bytes in Bytes; whether those bytes are owned or borrowed from a pinned
// page is tracked by the containing Cell, not by the Value itself.
type Value struct {
	Kind  ValueKind
	Int   int64
	Real  float64
	Bytes []byte
}

// NullValue returns a NULL Value.
func NullValue() Value { return Value{Kind: KindNull} }

// IntValue returns an integer Value.
func IntValue(v int64) Value { return Value{Kind: KindInt, Int: v} }

// RealValue returns a floating point Value.
func RealValue(v float64) Value { return Value{Kind: KindReal, Real: v} }

// TextValue returns a text Value over s.
func TextValue(s string) Value { return Value{Kind: KindText, Bytes: []byte(s)} }

// BlobValue returns a blob Value over b.
func BlobValue(b []byte) Value { return Value{Kind: KindBlob, Bytes: b} }

// Text returns the value's bytes as a string. It is only meaningful for
// KindText and KindBlob values.
func (v Value) Text() string { return string(v.Bytes) }

// Equal reports whether v and other carry the same kind and contents,
// comparing text/blob bytes by value rather than by identity so a borrowed
// Value compares equal to an owned copy of the same data.
func (v Value) Equal(other Value) bool {
	if v.Kind != other.Kind {
		return false
	}
	switch v.Kind {
	case KindNull:
		return true
	case KindInt:
		return v.Int == other.Int
	case KindReal:
		return v.Real == other.Real
	case KindText, KindBlob:
		if len(v.Bytes) != len(other.Bytes) {
			return false
		}
		for i := range v.Bytes {
			if v.Bytes[i] != other.Bytes[i] {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func (v Value) String() string {
	switch v.Kind {
	case KindNull:
		return "NULL"
	case KindInt:
		return fmt.Sprintf("%d", v.Int)
	case KindReal:
		return fmt.Sprintf("%g", v.Real)
	case KindText:
		return fmt.Sprintf("%q", v.Bytes)
	case KindBlob:
		return fmt.Sprintf("x'%x'", v.Bytes)
	default:
		return "<invalid value>"
	}
}

// ColumnType is the declared type of a table column (§3.2).
type ColumnType byte

const (
	ColumnInteger ColumnType = iota
	ColumnText
	ColumnReal
	ColumnBlob
)

func (t ColumnType) String() string {
	switch t {
	case ColumnInteger:
		return "INTEGER"
	case ColumnText:
		return "TEXT"
	case ColumnReal:
		return "REAL"
	case ColumnBlob:
		return "BLOB"
	default:
		return "INVALID"
	}
}

// Column describes one column of a Table (§3.2).
type Column struct {
	Name    string
	Type    ColumnType
	NotNull bool
	PK      bool
}

// MaxCols is the maximum number of columns a Table may declare (§3.2).
const MaxCols = 10

// MinRootPage is the smallest legal root page number for a user table:
// page 0 is unused, page 1 is the database header/schema page (§3.2).
const MinRootPage = 2

// Table is a table descriptor as stored by the schema catalog (§3.2).
type Table struct {
	Name     string
	RootPage uint32
	SQL      string
	Columns  []Column
}

// validateColumns enforces the §3.2 invariants: at most one PK column,
// unique column names, and at most MaxCols columns.
func validateColumns(columns []Column) error {
	if len(columns) == 0 {
		return wrapf(ErrInvalidColumn, "table must declare at least one column")
	}
	if len(columns) > MaxCols {
		return wrapf(ErrTooManyColumns, "%d columns exceeds limit of %d", len(columns), MaxCols)
	}

	seenNames := make(map[string]struct{}, len(columns))
	pkSeen := false
	for _, c := range columns {
		if c.Name == "" {
			return wrapf(ErrInvalidColumn, "column name must not be empty")
		}
		if _, dup := seenNames[c.Name]; dup {
			return wrapf(ErrInvalidColumn, "duplicate column name %q", c.Name)
		}
		seenNames[c.Name] = struct{}{}

		if c.PK {
			if pkSeen {
				return wrapf(ErrInvalidColumn, "table declares more than one primary key column")
			}
			pkSeen = true
		}
	}
	return nil
}

// validateTable checks a Table's invariants, including that RootPage is
// within the legal data-page range.
func validateTable(t Table) error {
	if err := validateColumns(t.Columns); err != nil {
		return err
	}
	if t.RootPage < MinRootPage {
		return wrapf(ErrInvalidColumn, "root page %d is reserved (must be >= %d)", t.RootPage, MinRootPage)
	}
	return nil
}

// validateValues checks that values satisfies arity, NOT NULL and type
// compatibility against columns (§4.3's validate operation). TEXT and BLOB
// are interchangeable by stored bytes, matching the cell codec's serial
// type table where text/blob differ only in their length-tag parity.
func validateValues(values []Value, columns []Column) error {
	if len(values) != len(columns) {
		return wrapf(ErrInvalidColumn, "expected %d values, got %d", len(columns), len(values))
	}
	for i, v := range values {
		col := columns[i]
		if v.Kind == KindNull {
			if col.NotNull {
				return wrapf(ErrInvalidColumn, "column %q is NOT NULL", col.Name)
			}
			continue
		}
		switch col.Type {
		case ColumnInteger:
			if v.Kind != KindInt {
				return wrapf(ErrInvalidColumn, "column %q expects INTEGER, got %s", col.Name, v.Kind)
			}
		case ColumnReal:
			if v.Kind != KindInt && v.Kind != KindReal {
				return wrapf(ErrInvalidColumn, "column %q expects REAL, got %s", col.Name, v.Kind)
			}
		case ColumnText, ColumnBlob:
			if v.Kind != KindText && v.Kind != KindBlob {
				return wrapf(ErrInvalidColumn, "column %q expects TEXT/BLOB, got %s", col.Name, v.Kind)
			}
		default:
			return wrapf(ErrInvalidColumn, "column %q has unknown type", col.Name)
		}
	}
	return nil
}
