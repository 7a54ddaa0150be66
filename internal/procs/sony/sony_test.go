package sony

import (
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/finchlabs/pixmeta/internal/proc"
	"github.com/finchlabs/pixmeta/internal/tagval"
)

// TestFileFormatARW235 exercises scenario S1: tag 0xB000 bytes [3,3,5,0]
// print as "ARW 2.3.5".
func TestFileFormatARW235(t *testing.T) {
	c := qt.New(t)

	ctx := proc.NewContext("TIFF", "Sony::FileFormat")
	ctx = ctx.WithCameraInfo("Sony", "ILCE-7RM4")

	p := FileFormatProcessor{}
	c.Assert(p.CanProcess(ctx), qt.Equals, proc.Perfect)

	result, err := p.ProcessData([]byte{3, 3, 5, 0}, ctx)
	c.Assert(err, qt.IsNil)
	c.Assert(result.ExtractedTags["FileFormat"].String(), qt.Equals, "ARW 2.3.5")
	c.Assert(result.Warnings, qt.HasLen, 0)
}

func TestDetectIDCCorruptionViaSoftwareField(t *testing.T) {
	c := qt.New(t)
	got := DetectIDCCorruption("Sony IDC 4.0", "DSLR-A100", tagval.Value{}, false)
	c.Assert(got, qt.Equals, GeneralCorruption)
}

func TestDetectIDCCorruptionViaA100Tag014a(t *testing.T) {
	c := qt.New(t)
	tag := tagval.NewU32Array([]uint32{100, 200})
	got := DetectIDCCorruption("", "DSLR-A100", tag, true)
	c.Assert(got, qt.Equals, A100SubIFDCorruption)
}

func TestDetectIDCCorruptionNoneWhenNotA100(t *testing.T) {
	c := qt.New(t)
	tag := tagval.NewU32Array([]uint32{100, 200})
	got := DetectIDCCorruption("", "ILCE-7RM4", tag, true)
	c.Assert(got, qt.Equals, NoCorruption)
}

func TestRecoverIDCOffsetA100(t *testing.T) {
	c := qt.New(t)

	// A small 0x14a offset is forced to the known-good 0x2000.
	c.Assert(RecoverIDCOffset(A100SubIFDCorruption, 0x014a, 0x100), qt.Equals, int64(0x2000))
	// A large one is already plausible and stays.
	c.Assert(RecoverIDCOffset(A100SubIFDCorruption, 0x014a, 0x20000), qt.Equals, int64(0x20000))
	// Other tags are untouched under A100 corruption.
	c.Assert(RecoverIDCOffset(A100SubIFDCorruption, 0x7200, 0x100), qt.Equals, int64(0x100))
}

func TestRecoverIDCOffsetGeneral(t *testing.T) {
	c := qt.New(t)

	c.Assert(RecoverIDCOffset(GeneralCorruption, 0x7200, 0x50), qt.Equals, int64(0x40))
	c.Assert(RecoverIDCOffset(GeneralCorruption, 0x7200, 0x8), qt.Equals, int64(0))
	c.Assert(RecoverIDCOffset(GeneralCorruption, 0x7201, 0x100), qt.Equals, int64(0x2100))
	c.Assert(RecoverIDCOffset(GeneralCorruption, 0xb000, 0x100), qt.Equals, int64(0x100))
}

func TestRecoverIDCOffsetNoCorruption(t *testing.T) {
	c := qt.New(t)
	c.Assert(RecoverIDCOffset(NoCorruption, 0x014a, 0x100), qt.Equals, int64(0x100))
}
