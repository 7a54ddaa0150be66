package bindata

import (
	"encoding/binary"
	"strings"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/finchlabs/pixmeta/internal/tagval"
)

// TestNegativeOffsetReadsFromEnd pins the negative-from-end convention:
// index 0 with FIRST_ENTRY=1 and a 2-byte format lands at byte offset -2,
// which against a 10-byte buffer reads bytes 8..10 — scenario S5.
func TestNegativeOffsetReadsFromEnd(t *testing.T) {
	c := qt.New(t)

	table := &Table{
		Name:       "Test::NegOffset",
		FirstEntry: 1,
		Tags: map[int32]FieldDef{
			0: {Name: "Tail", Format: Int16U, Count: 1},
		},
	}

	data := []byte{0, 1, 2, 3, 4, 5, 6, 7, 0x12, 0x34}
	entries := Decode(data, binary.BigEndian, table, nil, nil)

	c.Assert(entries, qt.HasLen, 1)
	c.Assert(entries[0].Name, qt.Equals, "Tail")
	c.Assert(entries[0].Raw, qt.DeepEquals, tagval.NewU16(0x1234))
}

// TestFirstEntryOneIndexing pins the Canon-style FIRST_ENTRY=1 origin:
// indices {1,2,3} with a 2-byte format read bytes 0..2, 2..4, 4..6.
func TestFirstEntryOneIndexing(t *testing.T) {
	c := qt.New(t)

	table := &Table{
		Name:          "Test::FirstEntryOne",
		FirstEntry:    1,
		DefaultFormat: Int16U,
		Tags: map[int32]FieldDef{
			1: {Name: "A", Format: Int16U, Count: 1},
			2: {Name: "B", Format: Int16U, Count: 1},
			3: {Name: "C", Format: Int16U, Count: 1},
		},
	}

	data := []byte{0x00, 0x01, 0x00, 0x02, 0x00, 0x03}
	entries := Decode(data, binary.BigEndian, table, nil, nil)

	got := map[string]tagval.Value{}
	for _, e := range entries {
		got[e.Name] = e.Raw
	}
	c.Assert(got["A"], qt.DeepEquals, tagval.NewU16(1))
	c.Assert(got["B"], qt.DeepEquals, tagval.NewU16(2))
	c.Assert(got["C"], qt.DeepEquals, tagval.NewU16(3))
}

// TestOutOfBoundsFieldSkippedWithWarning: a field whose end lands past the
// buffer is omitted and warned about, never read — invariant 2.
func TestOutOfBoundsFieldSkippedWithWarning(t *testing.T) {
	c := qt.New(t)

	table := &Table{
		Name:       "Test::Bounds",
		FirstEntry: 0,
		Tags: map[int32]FieldDef{
			0: {Name: "InBounds", Format: Int16U, Count: 1},
			9: {Name: "PastEnd", Format: Int16U, Count: 1},
		},
	}

	var warnings []string
	warnf := func(format string, args ...any) {
		warnings = append(warnings, format)
	}

	data := []byte{0x00, 0x07, 0x00, 0x08}
	entries := Decode(data, binary.BigEndian, table, nil, warnf)

	c.Assert(entries, qt.HasLen, 1)
	c.Assert(entries[0].Name, qt.Equals, "InBounds")
	c.Assert(warnings, qt.HasLen, 1)
}

// TestNegativeOffsetStillOutOfBounds: an offset that stays negative even
// after the from-end rebase is skipped, not wrapped.
func TestNegativeOffsetStillOutOfBounds(t *testing.T) {
	c := qt.New(t)

	table := &Table{
		Name:       "Test::DoubleNegative",
		FirstEntry: 8,
		Tags: map[int32]FieldDef{
			0: {Name: "WayBefore", Format: Int16U, Count: 1},
		},
	}

	entries := Decode([]byte{1, 2, 3, 4}, binary.BigEndian, table, nil, nil)
	c.Assert(entries, qt.HasLen, 0)
}

func TestStringFieldTrimsNulsAndWhitespace(t *testing.T) {
	c := qt.New(t)

	table := &Table{
		Name:       "Test::Strings",
		FirstEntry: 0,
		Tags: map[int32]FieldDef{
			0: {Name: "CameraType", Format: StringN, Count: 8},
		},
	}

	data := []byte{'E', '-', 'M', '1', ' ', 0, 0, 0}
	entries := Decode(data, binary.LittleEndian, table, nil, nil)

	c.Assert(entries, qt.HasLen, 1)
	c.Assert(entries[0].Raw.String(), qt.Equals, "E-M1")
}

func TestArrayFieldDecodes(t *testing.T) {
	c := qt.New(t)

	table := &Table{
		Name:       "Test::Arrays",
		FirstEntry: 0,
		Tags: map[int32]FieldDef{
			0: {Name: "Levels", Format: Int16U, Count: 3},
		},
	}

	data := []byte{0x00, 0x0a, 0x00, 0x0b, 0x00, 0x0c}
	entries := Decode(data, binary.BigEndian, table, nil, nil)

	c.Assert(entries, qt.HasLen, 1)
	c.Assert(entries[0].Raw, qt.DeepEquals, tagval.NewU16Array([]uint16{10, 11, 12}))
}

// TestLittleEndianDecoding: byte order comes from the caller, not the table.
func TestLittleEndianDecoding(t *testing.T) {
	c := qt.New(t)

	table := &Table{
		Name:       "Test::LE",
		FirstEntry: 0,
		Tags: map[int32]FieldDef{
			0: {Name: "V", Format: Int32U, Count: 1},
		},
	}

	entries := Decode([]byte{0x01, 0x00, 0x00, 0x00}, binary.LittleEndian, table, nil, nil)
	c.Assert(entries, qt.HasLen, 1)
	c.Assert(entries[0].Raw, qt.DeepEquals, tagval.NewU32(1))
}

// TestConverterDrivesPrint: the converter's print form lands on the entry
// while the raw value is preserved alongside it.
func TestConverterDrivesPrint(t *testing.T) {
	c := qt.New(t)

	table := &Table{
		Name:       "Test::Conv",
		FirstEntry: 0,
		Tags: map[int32]FieldDef{
			0: {Name: "Mode", Format: Int16U, Count: 1},
		},
	}

	entries := Decode([]byte{0x00, 0x02}, binary.BigEndian, table, upperConverter{}, nil)
	c.Assert(entries, qt.HasLen, 1)
	c.Assert(entries[0].Raw, qt.DeepEquals, tagval.NewU16(2))
	c.Assert(entries[0].Print, qt.Equals, "MODE=2")
}

type upperConverter struct{}

func (upperConverter) Convert(tagName string, raw tagval.Value) (tagval.Value, string) {
	return raw, strings.ToUpper(tagName) + "=" + raw.String()
}
