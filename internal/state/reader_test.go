package state

import (
	"encoding/binary"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/finchlabs/pixmeta/internal/tagval"
)

// TestPriorityInsert pins the only legal overwrite rule: an entry carrying
// subdirectory dispatch metadata survives a later plain-value insert for the
// same (name, namespace), while the reverse replaces.
func TestPriorityInsert(t *testing.T) {
	c := qt.New(t)

	r := New(nil, binary.BigEndian)
	key := Key{Name: "LensData", Namespace: "Nikon"}

	r.Insert(key, Entry{Value: tagval.NewU32(0x100), HasSubdirectory: true})
	r.Insert(key, Entry{Value: tagval.NewString("plain"), HasSubdirectory: false})

	entry, ok := r.Get(key)
	c.Assert(ok, qt.IsTrue)
	c.Assert(entry.HasSubdirectory, qt.IsTrue)
	c.Assert(entry.Value, qt.DeepEquals, tagval.NewU32(0x100))

	// A subdirectory-carrying insert always wins over a plain one.
	r2 := New(nil, binary.BigEndian)
	r2.Insert(key, Entry{Value: tagval.NewString("plain"), HasSubdirectory: false})
	r2.Insert(key, Entry{Value: tagval.NewU32(0x200), HasSubdirectory: true})

	entry, ok = r2.Get(key)
	c.Assert(ok, qt.IsTrue)
	c.Assert(entry.HasSubdirectory, qt.IsTrue)
	c.Assert(entry.Value, qt.DeepEquals, tagval.NewU32(0x200))
}

func TestPlainInsertsOverwrite(t *testing.T) {
	c := qt.New(t)

	r := New(nil, binary.BigEndian)
	key := Key{Name: "Quality", Namespace: "Canon"}

	r.Insert(key, Entry{Value: tagval.NewU16(1)})
	r.Insert(key, Entry{Value: tagval.NewU16(2)})

	entry, _ := r.Get(key)
	c.Assert(entry.Value, qt.DeepEquals, tagval.NewU16(2))
	c.Assert(r.Len(), qt.Equals, 1)
}

func TestStrictEscalatesWarnings(t *testing.T) {
	c := qt.New(t)

	r := New(nil, binary.BigEndian)
	r.Strict = true
	r.Warnf("bounds: %d past end", 12)

	c.Assert(r.Warnings, qt.HasLen, 1)
	c.Assert(r.Errors, qt.HasLen, 1)
	c.Assert(r.Errors[0].Error(), qt.Equals, "bounds: 12 past end")
}

func TestWarnfCallback(t *testing.T) {
	c := qt.New(t)

	var got []string
	r := New(nil, binary.BigEndian)
	r.SetWarnf(func(format string, args ...any) {
		got = append(got, format)
	})
	r.Warnf("short read")

	c.Assert(r.Warnings, qt.DeepEquals, []string{"short read"})
	c.Assert(got, qt.DeepEquals, []string{"short read"})
}
