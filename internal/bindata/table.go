// Package bindata implements the binary-data table interpreter: given a
// table descriptor and a byte slice it emits (tag name, value) pairs,
// honoring FIRST_ENTRY, per-field formats, negative-from-end offsets, and
// byte order, without ever reading outside the supplied slice.
package bindata

// Format identifies the wire shape of one table field. The zero value is
// FormatUnset, not a real format, so a FieldDef that omits Format defers to
// the table's DefaultFormat without colliding with int8u.
type Format int

const (
	// FormatUnset defers to the table's DefaultFormat.
	FormatUnset Format = iota
	Int8U
	Int8S
	Int16U
	Int16S
	Int32U
	Int32S
	Float32
	Float64
	// StringN is a fixed-width byte run (FieldDef.Count bytes) decoded as a
	// string cut at its first NUL and trimmed of surrounding whitespace.
	StringN
)

// ElemSize returns sizeof(format) for one scalar element, matching the
// ExifTool format names this engine's tables are modeled on.
func (f Format) ElemSize() int {
	switch f {
	case Int8U, Int8S, StringN:
		return 1
	case Int16U, Int16S:
		return 2
	case Int32U, Int32S, Float32:
		return 4
	case Float64:
		return 8
	default:
		return 1
	}
}

// Subdirectory marks a FieldDef whose decoded value is itself the entry
// point of another binary-data table, for the recursion driver to follow.
type Subdirectory struct {
	TableName string
	// Condition is an optional expression (evaluated against the
	// subdirectory condition context) selecting among variant tables with
	// the same TableName prefix; empty means unconditional.
	Condition string
}

// FieldDef describes one entry in a BinaryDataTable: spec.md §3's
// `{ name, format?, print_conv?, value_conv?, subdirectory? }`. print_conv
// and value_conv are resolved by the caller's Converter (internal/convert)
// keyed by Name, not stored here, to avoid a dependency cycle between
// bindata and convert.
type FieldDef struct {
	Name string
	// Format is the field's wire format; FormatUnset (the zero value) means
	// the table's DefaultFormat applies.
	Format Format
	// Count is the element count: 1 for scalars, N for arrays, and the byte
	// width for StringN.
	Count int
	// Group1 overrides the table's default group1 label for this field, if
	// non-empty (resolved against Table.Groups by group number in real
	// ExifTool tables; flattened here to a direct string for simplicity).
	Group1       string
	Subdirectory *Subdirectory
}

// Table is a BinaryDataTable descriptor (spec.md §3).
type Table struct {
	Name          string
	FirstEntry    int32
	DefaultFormat Format
	// Tags maps table index -> field descriptor. Indices are table
	// positions, not byte offsets — see Decode.
	Tags map[int32]FieldDef
	// Groups maps a group number to its label, for tables that assign
	// fields to sub-groups (e.g. Canon CameraSettings vs CameraInfo).
	Groups map[uint8]string
}

func (t *Table) fieldFormat(f FieldDef) Format {
	if f.Format == FormatUnset {
		if t.DefaultFormat != FormatUnset {
			return t.DefaultFormat
		}
		return Int8U
	}
	return f.Format
}
