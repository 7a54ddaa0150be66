package nikon

import (
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/finchlabs/pixmeta/internal/proc"
	"github.com/finchlabs/pixmeta/internal/tagval"
)

// TestEncryptedLensDataWithoutKeys is scenario S4: a Nikon LensData
// subdirectory whose first 4 bytes carry the encryption signature, with no
// SerialNumber/ShutterCount present in parent_tags.
func TestEncryptedLensDataWithoutKeys(t *testing.T) {
	c := qt.New(t)

	data := []byte{0x02, 0x00, 0x00, 0x00, 0xAA, 0xBB}
	ctx := proc.NewContext("TIFF", "Nikon::LensData")
	ctx = ctx.WithCameraInfo("NIKON CORPORATION", "NIKON D850")

	p := EncryptedDataProcessor{}
	c.Assert(p.CanProcess(ctx), qt.Equals, proc.Good)

	result, err := p.ProcessData(data, ctx)
	c.Assert(err, qt.IsNil)
	c.Assert(result.ExtractedTags["EncryptionStatus"].String(), qt.Equals,
		"Encrypted data detected - no encryption context")
	c.Assert(len(result.Warnings), qt.Not(qt.Equals), 0)
}

func TestEncryptedLensDataWithKeys(t *testing.T) {
	c := qt.New(t)

	data := []byte{0x02, 0x04, 0x00, 0x00}
	ctx := proc.NewContext("TIFF", "Nikon::LensData")
	ctx = ctx.WithCameraInfo("NIKON CORPORATION", "NIKON D850")
	ctx.ParentTags["SerialNumber"] = tagval.NewString("3012345")
	ctx.ParentTags["ShutterCount"] = tagval.NewU32(1000)

	p := EncryptedDataProcessor{}
	result, err := p.ProcessData(data, ctx)
	c.Assert(err, qt.IsNil)
	c.Assert(result.ExtractedTags["EncryptionStatus"].String(), qt.Equals,
		"Encrypted data with keys available (serial: 3012345, count: 1000)")
}

func TestNoEncryptionSignature(t *testing.T) {
	c := qt.New(t)

	data := []byte{0x01, 0x02, 0x03, 0x04}
	ctx := proc.NewContext("TIFF", "Nikon::LensData")
	ctx = ctx.WithCameraInfo("NIKON CORPORATION", "NIKON D850")

	p := EncryptedDataProcessor{}
	result, err := p.ProcessData(data, ctx)
	c.Assert(err, qt.IsNil)
	c.Assert(result.ExtractedTags["EncryptionStatus"].String(), qt.Equals, "No encryption detected")
}

func TestNonNikonIncompatible(t *testing.T) {
	c := qt.New(t)
	ctx := proc.NewContext("TIFF", "Nikon::LensData")
	ctx = ctx.WithCameraInfo("Canon", "EOS R5")
	p := EncryptedDataProcessor{}
	c.Assert(p.CanProcess(ctx), qt.Equals, proc.Incompatible)
}
