package convert

import (
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/finchlabs/pixmeta/internal/tagval"
)

func TestArithExpression(t *testing.T) {
	c := qt.New(t)

	reg := NewRegistry()
	reg.RegisterValueExpr("Test", "Half", "$val / 8")
	p := NewPipeline(reg, "Test", nil)

	v := p.ValueConv("Half", tagval.NewF64(16))
	f, ok := v.Float64()
	c.Assert(ok, qt.IsTrue)
	c.Assert(f, qt.Equals, 2.0)
}

func TestArithDivisionByZero(t *testing.T) {
	c := qt.New(t)

	reg := NewRegistry()
	reg.RegisterValueExpr("Test", "Bad", "$val / 0")
	p := NewPipeline(reg, "Test", nil)

	v := p.ValueConv("Bad", tagval.NewF64(1))
	c.Assert(v.IsEmpty(), qt.IsTrue)
}

func TestPrintConvEnum(t *testing.T) {
	c := qt.New(t)

	reg := NewRegistry()
	reg.RegisterEnum("Canon", "MacroMode", SimpleEnum{1: "Macro", 2: "Normal"})
	p := NewPipeline(reg, "Canon", nil)

	s := p.PrintConv("MacroMode", tagval.NewI16(2))
	c.Assert(s, qt.Equals, "Normal")
}

func TestValueFuncWinsOverExpression(t *testing.T) {
	c := qt.New(t)

	reg := NewRegistry()
	reg.RegisterValueExpr("Test", "Both", "$val * 100")
	reg.RegisterValueFunc("Test", "Both", func(raw tagval.Value) (tagval.Value, error) {
		return tagval.NewF64(1), nil
	})
	p := NewPipeline(reg, "Test", nil)

	v := p.ValueConv("Both", tagval.NewF64(5))
	f, _ := v.Float64()
	c.Assert(f, qt.Equals, 1.0)
}

func TestAPEXToFNumber(t *testing.T) {
	c := qt.New(t)
	v, err := apexToFNumber(tagval.NewF64(4))
	c.Assert(err, qt.IsNil)
	f, _ := v.Float64()
	c.Assert(f, qt.Equals, 4.0)
}

func TestDegreesToDecimal(t *testing.T) {
	c := qt.New(t)
	arr := tagval.NewArray([]tagval.Value{tagval.NewF64(40), tagval.NewF64(30), tagval.NewF64(0)})
	v, err := degreesToDecimal(arr)
	c.Assert(err, qt.IsNil)
	f, _ := v.Float64()
	c.Assert(f, qt.Equals, 40.5)
}
