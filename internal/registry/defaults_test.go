package registry

import (
	"encoding/binary"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/finchlabs/pixmeta/internal/convert"
	"github.com/finchlabs/pixmeta/internal/proc"
	"github.com/finchlabs/pixmeta/internal/procs/canon"
)

// TestSelectPrefersCanonMkIIForR5 exercises the ManufacturerRule variant
// selection: an EOS R5 SerialData table must dispatch to the MkII processor
// even though the generic SerialData processor is also compatible.
func TestSelectPrefersCanonMkIIForR5(t *testing.T) {
	c := qt.New(t)

	convReg := NewDefaultConversionRegistry()
	canonPipeline := convert.NewPipeline(convReg, "Canon", nil)
	panaPipeline := convert.NewPipeline(convReg, "PanasonicRaw", nil)

	reg := NewDefaultRegistry(DefaultConfig(), canonPipeline, panaPipeline)

	ctx := proc.NewContext("TIFF", "Canon::SerialData")
	ctx = ctx.WithCameraInfo("Canon", "Canon EOS R5")
	ctx.ByteOrder = binary.BigEndian

	key, p, ok := reg.Select(ctx)
	c.Assert(ok, qt.IsTrue)
	c.Assert(key.Variant, qt.Equals, "MkII")
	c.Assert(p, qt.Not(qt.IsNil))
}

// TestSelectPicksGenericCanonSerialDataForOlderBody ensures the hijack guard
// and variant preference don't accidentally force MkII everywhere.
func TestSelectPicksGenericCanonSerialDataForOlderBody(t *testing.T) {
	c := qt.New(t)

	convReg := NewDefaultConversionRegistry()
	canonPipeline := convert.NewPipeline(convReg, "Canon", nil)
	panaPipeline := convert.NewPipeline(convReg, "PanasonicRaw", nil)
	reg := NewDefaultRegistry(DefaultConfig(), canonPipeline, panaPipeline)

	ctx := proc.NewContext("TIFF", "Canon::SerialData")
	ctx = ctx.WithCameraInfo("Canon", "Canon EOS 5D Mark IV")
	ctx.ByteOrder = binary.BigEndian

	key, _, ok := reg.Select(ctx)
	c.Assert(ok, qt.IsTrue)
	c.Assert(key.Variant, qt.Equals, "")
}

// TestSelectFailsWithNoCompatibleProcessorAndNoFallback exercises selection
// algorithm step 4: an empty candidate set with no configured fallback chain
// yields ok=false rather than panicking or guessing.
func TestSelectFailsWithNoCompatibleProcessorAndNoFallback(t *testing.T) {
	c := qt.New(t)

	reg := New(NewDefaultEngine(), DefaultConfig())
	reg.Register(canonCameraSettingsKey, canon.CameraSettingsProcessor{})

	ctx := proc.NewContext("TIFF", "Canon::CameraSettings")
	ctx = ctx.WithCameraInfo("Nikon", "D850")
	ctx.ByteOrder = binary.BigEndian

	// The only registered processor requires a Canon manufacturer, so it
	// reports Incompatible here; with no fallback chain configured, Select
	// must report ok=false rather than hijacking the table for Nikon.
	_, _, ok := reg.Select(ctx)
	c.Assert(ok, qt.IsFalse)
}
