package olympus

import (
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/finchlabs/pixmeta/internal/proc"
)

func TestEquipmentExtractsLensType(t *testing.T) {
	c := qt.New(t)

	data := make([]byte, 0x210)
	copy(data[0x100:], []byte("E-M1  \x00"))
	data[0x201] = 0x01
	data[0x203] = 0x02
	data[0x204] = 0x03

	ctx := proc.NewContext("TIFF", "Olympus::Equipment")
	ctx = ctx.WithCameraInfo("OLYMPUS", "E-M1")

	p := EquipmentProcessor{}
	c.Assert(p.CanProcess(ctx), qt.Equals, proc.Perfect)

	result, err := p.ProcessData(data, ctx)
	c.Assert(err, qt.IsNil)
	c.Assert(result.ExtractedTags["LensType"].String(), qt.Equals, "1 02 03")
	c.Assert(result.ExtractedTags["CameraType2"].String(), qt.Equals, "E-M1")
}

func TestNonOlympusIncompatible(t *testing.T) {
	c := qt.New(t)
	ctx := proc.NewContext("TIFF", "Olympus::Equipment")
	ctx = ctx.WithCameraInfo("Canon", "EOS R5")
	p := EquipmentProcessor{}
	c.Assert(p.CanProcess(ctx), qt.Equals, proc.Incompatible)
}
