// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package pixmeta

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/rwcarlsen/goexif/tiff"

	qt "github.com/frankban/quicktest"
)

// buildMinimalIFD0 returns a byte-for-byte valid little-endian TIFF stream
// with a single IFD0 holding one Orientation (0x0112) SHORT tag. It exists
// so the engine's own TIFF/EXIF path can be cross-validated against an
// independent reference decoder for the same bytes.
func buildMinimalIFD0(orientation uint16) []byte {
	var buf bytes.Buffer
	buf.WriteString("II")
	binary.Write(&buf, binary.LittleEndian, uint16(42))
	binary.Write(&buf, binary.LittleEndian, uint32(8)) // offset of IFD0

	binary.Write(&buf, binary.LittleEndian, uint16(1)) // one entry
	binary.Write(&buf, binary.LittleEndian, uint16(0x0112)) // Orientation
	binary.Write(&buf, binary.LittleEndian, uint16(3))       // SHORT
	binary.Write(&buf, binary.LittleEndian, uint32(1))       // count
	binary.Write(&buf, binary.LittleEndian, orientation)
	binary.Write(&buf, binary.LittleEndian, uint16(0)) // pad value field to 4 bytes

	binary.Write(&buf, binary.LittleEndian, uint32(0)) // no next IFD

	return buf.Bytes()
}

// TestCrossValidateIFD0WithGoexif decodes the same synthetic TIFF bytes with
// this engine and with github.com/rwcarlsen/goexif/tiff (the teacher's own
// reference dependency for comparison testing) and checks they agree on the
// directory shape and the Orientation value.
func TestCrossValidateIFD0WithGoexif(t *testing.T) {
	c := qt.New(t)

	data := buildMinimalIFD0(1)

	tif, err := tiff.Decode(bytes.NewReader(data))
	c.Assert(err, qt.IsNil)
	c.Assert(tif.Order, qt.Equals, binary.LittleEndian)
	c.Assert(len(tif.Dirs), qt.Not(qt.Equals), 0)
	c.Assert(len(tif.Dirs[0].Tags), qt.Equals, 1)

	var tags Tags
	_, err = Decode(Options{
		R:           bytes.NewReader(data),
		ImageFormat: TIFF,
		HandleTag: func(ti TagInfo) error {
			tags.Add(ti)
			return nil
		},
	})
	c.Assert(err, qt.IsNil)
	c.Assert(tags.EXIF()["Orientation"].Value, qt.Equals, uint16(1))
}
