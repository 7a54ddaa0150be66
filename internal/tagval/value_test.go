package tagval

import (
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestValueString(t *testing.T) {
	c := qt.New(t)

	c.Assert(NewU32(42).String(), qt.Equals, "42")
	c.Assert(NewI16(-7).String(), qt.Equals, "-7")
	c.Assert(NewString("hello").String(), qt.Equals, "hello")
	c.Assert(NewRational(3, 5).String(), qt.Equals, "3/5")
	c.Assert(NewRational(4, 1).String(), qt.Equals, "4")
	c.Assert(NewU8Array([]uint8{1, 2, 3}).String(), qt.Equals, "1 2 3")
	c.Assert(NewEmpty().String(), qt.Equals, "")

	obj := NewObject(map[string]Value{"x-default": NewString("Hello"), "en": NewString("Hi")})
	c.Assert(obj.String(), qt.Equals, "Hello")
}

func TestCompareNumeric(t *testing.T) {
	c := qt.New(t)

	cmp, ok := CompareNumeric(NewU16(1275), NewI32(1275))
	c.Assert(ok, qt.IsTrue)
	c.Assert(cmp, qt.Equals, 0)

	cmp, ok = CompareNumeric(NewF64(1.0000000001), NewU8(1))
	c.Assert(ok, qt.IsTrue)
	c.Assert(cmp, qt.Equals, 0)

	_, ok = CompareNumeric(NewString("not-a-number"), NewU8(1))
	c.Assert(ok, qt.IsFalse)

	cmp, ok = CompareNumeric(NewString("5"), NewU8(3))
	c.Assert(ok, qt.IsTrue)
	c.Assert(cmp, qt.Equals, 1)
}

func TestEqual(t *testing.T) {
	c := qt.New(t)

	c.Assert(Equal(NewString("Canon EOS R5"), NewString("Canon EOS R5")), qt.IsTrue)
	c.Assert(Equal(NewU32(1275), NewI32(1275)), qt.IsTrue)
	c.Assert(Equal(NewU32(1275), NewI32(1273)), qt.IsFalse)
}

func TestCompareString(t *testing.T) {
	c := qt.New(t)

	c.Assert(CompareString(NewString("abc"), NewString("abc")), qt.Equals, 0)
	c.Assert(CompareString(NewU32(2), NewU32(10)) != 0, qt.IsTrue)
}
