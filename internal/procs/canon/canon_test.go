package canon

import (
	"encoding/binary"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/finchlabs/pixmeta/internal/convert"
	"github.com/finchlabs/pixmeta/internal/proc"
)

// TestMacroModeNormal exercises scenario S2: Canon CameraSettings index 1
// (MacroMode) with raw value 2 prints as "Normal".
func TestMacroModeNormal(t *testing.T) {
	c := qt.New(t)

	reg := convert.NewRegistry()
	RegisterConversions(reg)
	pipeline := convert.NewPipeline(reg, namespace, nil)

	data := make([]byte, 16)
	binary.BigEndian.PutUint16(data[0:2], 2) // index 1, FirstEntry=1 -> byte offset (1-1)*2=0

	csProc := CameraSettingsProcessor{Pipeline: pipeline}
	ctx := newCanonContext()

	result, err := csProc.ProcessData(data, ctx)
	c.Assert(err, qt.IsNil)

	v, ok := result.ExtractedTags["MacroMode"]
	c.Assert(ok, qt.IsTrue)
	f, ok := v.Float64()
	c.Assert(ok, qt.IsTrue)
	c.Assert(f, qt.Equals, float64(2))

	print := pipeline.PrintConv("MacroMode", v)
	c.Assert(print, qt.Equals, "Normal")
}

func TestSerialDataMkIISelectedForR5(t *testing.T) {
	c := qt.New(t)

	ctx := newCanonContext()
	model := "Canon EOS R5"
	ctx.Model = &model

	mk2 := SerialDataMkIIProcessor{}
	c.Assert(mk2.CanProcess(ctx), qt.Equals, proc.Perfect)

	data := make([]byte, 8)
	binary.BigEndian.PutUint32(data[0:4], 123456)
	binary.BigEndian.PutUint32(data[4:8], 99)

	result, err := mk2.ProcessData(data, ctx)
	c.Assert(err, qt.IsNil)

	serial, ok := result.ExtractedTags["SerialNumber"].Float64()
	c.Assert(ok, qt.IsTrue)
	c.Assert(serial, qt.Equals, float64(123456))

	count, ok := result.ExtractedTags["ShutterCount"].Float64()
	c.Assert(ok, qt.IsTrue)
	c.Assert(count, qt.Equals, float64(99))
}

func newCanonContext() proc.Context {
	ctx := proc.NewContext("TIFF", "Canon::CameraSettings")
	ctx = ctx.WithCameraInfo("Canon", "Canon EOS 5D Mark IV")
	ctx.ByteOrder = binary.BigEndian
	return ctx
}
