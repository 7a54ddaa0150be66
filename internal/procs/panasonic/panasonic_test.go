package panasonic

import (
	"encoding/binary"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/finchlabs/pixmeta/internal/bindata"
	"github.com/finchlabs/pixmeta/internal/convert"
	"github.com/finchlabs/pixmeta/internal/proc"
	"github.com/finchlabs/pixmeta/internal/tagval"
)

func TestPrintConvMainKnownAndUnknown(t *testing.T) {
	c := qt.New(t)

	c.Assert(PrintConvMain("Compression", tagval.NewU32(34826)), qt.Equals, "Panasonic RAW 2")
	c.Assert(PrintConvMain("Orientation", tagval.NewU8(6)), qt.Equals, "Rotate 90 CW")
	c.Assert(PrintConvMain("CFAPattern", tagval.NewU8(2)), qt.Equals, "[Green,Red][Blue,Green]")
	c.Assert(PrintConvMain("Multishot", tagval.NewU32(65536)), qt.Equals, "Pixel Shift")
	c.Assert(PrintConvMain("Compression", tagval.NewU32(99999)), qt.Equals, "Unknown (99999)")
}

// mainTableBuffer builds a buffer shaped like the Main table expects:
// int8u fields at byte offsets 9 and 274, int32u fields at byte offsets
// 11*4 and 289*4 (each field's offset is index * sizeof its own format).
func mainTableBuffer() []byte {
	data := make([]byte, 1160)
	data[9] = 2    // CFAPattern
	data[274] = 6  // Orientation
	binary.LittleEndian.PutUint32(data[11*4:], 34826)  // Compression
	binary.LittleEndian.PutUint32(data[289*4:], 65536) // Multishot
	return data
}

// TestMainTableDecode pins the int8u fields' byte offsets: CFAPattern at
// index 9 and Orientation at index 274 must decode one byte at offsets 9
// and 274, not at DefaultFormat-sized (int32u) offsets.
func TestMainTableDecode(t *testing.T) {
	c := qt.New(t)

	entries := bindata.Decode(mainTableBuffer(), binary.LittleEndian, MainTable, nil, nil)
	got := map[string]tagval.Value{}
	for _, e := range entries {
		got[e.Name] = e.Raw
	}

	c.Assert(got["CFAPattern"], qt.DeepEquals, tagval.NewU8(2))
	c.Assert(got["Orientation"], qt.DeepEquals, tagval.NewU8(6))
	c.Assert(got["Compression"], qt.DeepEquals, tagval.NewU32(34826))
	c.Assert(got["Multishot"], qt.DeepEquals, tagval.NewU32(65536))
}

func TestMainProcessorProcessData(t *testing.T) {
	c := qt.New(t)

	reg := convert.NewRegistry()
	RegisterConversions(reg)
	pipeline := convert.NewPipeline(reg, namespace, nil)

	p := MainProcessor{Pipeline: pipeline}
	ctx := proc.NewContext("RAW", "PanasonicRaw::Main")
	ctx = ctx.WithCameraInfo("Panasonic", "DC-S5")
	ctx.ByteOrder = binary.LittleEndian

	result, err := p.ProcessData(mainTableBuffer(), ctx)
	c.Assert(err, qt.IsNil)

	c.Assert(result.ExtractedTags["Orientation"], qt.DeepEquals, tagval.NewU8(6))
	c.Assert(pipeline.PrintConv("Orientation", result.ExtractedTags["Orientation"]), qt.Equals, "Rotate 90 CW")
	c.Assert(pipeline.PrintConv("Compression", result.ExtractedTags["Compression"]), qt.Equals, "Panasonic RAW 2")
}
