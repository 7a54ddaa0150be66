package expr

import (
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/finchlabs/pixmeta/internal/tagval"
)

type mapContext struct {
	fields map[string]tagval.Value
	valPt  []byte
	count  *int
	format string
}

func (m mapContext) Lookup(name string) (tagval.Value, bool) {
	v, ok := m.fields[name]
	return v, ok
}

func (m mapContext) ValPtr() ([]byte, bool) {
	if m.valPt == nil {
		return nil, false
	}
	return m.valPt, true
}

func (m mapContext) Count() (int, bool) {
	if m.count == nil {
		return 0, false
	}
	return *m.count, true
}

func (m mapContext) Format() (string, bool) {
	if m.format == "" {
		return "", false
	}
	return m.format, true
}

func (m mapContext) FormatVersion() (string, bool) {
	return "", false
}

func intPtr(i int) *int { return &i }

func TestParseAndEvalOrCount(t *testing.T) {
	c := qt.New(t)
	ev := NewEvaluator()

	node, err := Parse("$count == 1273 or $count == 1275")
	c.Assert(err, qt.IsNil)

	ok, err := ev.Eval(node, mapContext{count: intPtr(1275)})
	c.Assert(err, qt.IsNil)
	c.Assert(ok, qt.IsTrue)

	ok, err = ev.Eval(node, mapContext{count: intPtr(9)})
	c.Assert(err, qt.IsNil)
	c.Assert(ok, qt.IsFalse)
}

func TestSelfModelRegex(t *testing.T) {
	c := qt.New(t)
	ev := NewEvaluator()

	node, err := Parse("$$self{Model} =~ /EOS R5/")
	c.Assert(err, qt.IsNil)

	ctx := mapContext{fields: map[string]tagval.Value{"Model": tagval.NewString("Canon EOS R5")}}
	ok, err := ev.Eval(node, ctx)
	c.Assert(err, qt.IsNil)
	c.Assert(ok, qt.IsTrue)

	ctx = mapContext{fields: map[string]tagval.Value{"Model": tagval.NewString("Canon EOS R6")}}
	ok, err = ev.Eval(node, ctx)
	c.Assert(err, qt.IsNil)
	c.Assert(ok, qt.IsFalse)
}

func TestValPtrHexView(t *testing.T) {
	c := qt.New(t)
	ev := NewEvaluator()

	node, err := Parse("$$valPt =~ /^0204/")
	c.Assert(err, qt.IsNil)

	ctx := mapContext{valPt: []byte{0x02, 0x04, 0x00, 0x01}}
	ok, err := ev.Eval(node, ctx)
	c.Assert(err, qt.IsNil)
	c.Assert(ok, qt.IsTrue)
}

func TestExistsAndNot(t *testing.T) {
	c := qt.New(t)
	ev := NewEvaluator()

	node, err := Parse("not exists($DecryptStart)")
	c.Assert(err, qt.IsNil)

	ok, err := ev.Eval(node, mapContext{fields: map[string]tagval.Value{}})
	c.Assert(err, qt.IsNil)
	c.Assert(ok, qt.IsTrue)

	ok, err = ev.Eval(node, mapContext{fields: map[string]tagval.Value{"DecryptStart": tagval.NewU32(1)}})
	c.Assert(err, qt.IsNil)
	c.Assert(ok, qt.IsFalse)
}

// TestNotBindsTighterThanOr: "not A or B" must parse as (not A) or B, not
// not(A or B). With A and B both true the two readings disagree: the
// correct one is true, the greedy one false.
func TestNotBindsTighterThanOr(t *testing.T) {
	c := qt.New(t)
	ev := NewEvaluator()

	node, err := Parse("not $count == 1 or $count == 1")
	c.Assert(err, qt.IsNil)

	ok, err := ev.Eval(node, mapContext{count: intPtr(1)})
	c.Assert(err, qt.IsNil)
	c.Assert(ok, qt.IsTrue)

	// Parenthesized form keeps the grouped reading available.
	node, err = Parse("not ($count == 1 or $count == 2)")
	c.Assert(err, qt.IsNil)

	ok, err = ev.Eval(node, mapContext{count: intPtr(1)})
	c.Assert(err, qt.IsNil)
	c.Assert(ok, qt.IsFalse)

	ok, err = ev.Eval(node, mapContext{count: intPtr(3)})
	c.Assert(err, qt.IsNil)
	c.Assert(ok, qt.IsTrue)
}

func TestNotBindsTighterThanAnd(t *testing.T) {
	c := qt.New(t)
	ev := NewEvaluator()

	// (not exists($A)) and $count == 2 — true when A is absent.
	node, err := Parse("not exists($A) and $count == 2")
	c.Assert(err, qt.IsNil)

	ok, err := ev.Eval(node, mapContext{fields: map[string]tagval.Value{}, count: intPtr(2)})
	c.Assert(err, qt.IsNil)
	c.Assert(ok, qt.IsTrue)

	ok, err = ev.Eval(node, mapContext{fields: map[string]tagval.Value{"A": tagval.NewU32(1)}, count: intPtr(2)})
	c.Assert(err, qt.IsNil)
	c.Assert(ok, qt.IsFalse)
}

func TestSameContextSameResult(t *testing.T) {
	// Property 4: for two contexts agreeing on every field an expression
	// references, evaluation must agree.
	c := qt.New(t)
	ev := NewEvaluator()

	node, err := Parse(`$$self{Make} eq "Canon"`)
	c.Assert(err, qt.IsNil)

	ctx1 := mapContext{fields: map[string]tagval.Value{"Make": tagval.NewString("Canon"), "Model": tagval.NewString("R5")}}
	ctx2 := mapContext{fields: map[string]tagval.Value{"Make": tagval.NewString("Canon"), "Model": tagval.NewString("R3")}}

	ok1, err1 := ev.Eval(node, ctx1)
	ok2, err2 := ev.Eval(node, ctx2)
	c.Assert(err1, qt.IsNil)
	c.Assert(err2, qt.IsNil)
	c.Assert(ok1, qt.Equals, ok2)
}
