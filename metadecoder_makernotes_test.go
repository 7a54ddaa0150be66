// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package pixmeta

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"
	"testing"

	qt "github.com/frankban/quicktest"
)

// tiffBuilder assembles a minimal big-endian TIFF in memory: IFD0 with
// Make/Model (and optionally Software) and an Exif IFD whose MakerNote tag
// points at a synthetic maker-note blob. Offsets are absolute (relative to
// the TIFF header), which is also what bare maker-note IFDs use for their
// value offsets.
type tiffBuilder struct {
	make      string
	model     string
	software  string
	makerNote func(makerNoteOffset uint32) []byte
}

func (b tiffBuilder) build() []byte {
	const ifd0Offset = 8

	numIFD0 := 3
	if b.software != "" {
		numIFD0 = 4
	}
	// IFD0: count + entries + next pointer.
	ifd0Size := 2 + numIFD0*12 + 4

	makeStr := b.make + "\x00"
	modelStr := b.model + "\x00"
	softwareStr := ""
	if b.software != "" {
		softwareStr = b.software + "\x00"
	}

	makeOffset := uint32(ifd0Offset + ifd0Size)
	modelOffset := makeOffset + uint32(len(makeStr))
	softwareOffset := modelOffset + uint32(len(modelStr))
	exifIFDOffset := softwareOffset + uint32(len(softwareStr))
	// Exif IFD: count + 1 entry + next pointer.
	makerNoteOffset := exifIFDOffset + 2 + 12 + 4

	makerNote := b.makerNote(makerNoteOffset)

	var buf bytes.Buffer
	w := func(v any) {
		binary.Write(&buf, binary.BigEndian, v)
	}

	// TIFF header.
	buf.WriteString("MM")
	w(uint16(42))
	w(uint32(ifd0Offset))

	// IFD0.
	w(uint16(numIFD0))
	writeIFDEntryPointer(w, 0x010f, 2, uint32(len(makeStr)), makeOffset)
	writeIFDEntryPointer(w, 0x0110, 2, uint32(len(modelStr)), modelOffset)
	if softwareStr != "" {
		writeIFDEntryPointer(w, 0x0131, 2, uint32(len(softwareStr)), softwareOffset)
	}
	writeIFDEntryPointer(w, 0x8769, 4, 1, exifIFDOffset)
	w(uint32(0))

	buf.WriteString(makeStr)
	buf.WriteString(modelStr)
	buf.WriteString(softwareStr)

	// Exif IFD.
	w(uint16(1))
	writeIFDEntryPointer(w, 0x927c, 7, uint32(len(makerNote)), makerNoteOffset)
	w(uint32(0))

	buf.Write(makerNote)

	return buf.Bytes()
}

func writeIFDEntryPointer(w func(any), tagID, typ uint16, count, valueOrOffset uint32) {
	w(tagID)
	w(typ)
	w(count)
	w(valueOrOffset)
}

func decodeTIFFTags(t *testing.T, data []byte) (Tags, []string) {
	t.Helper()
	var tags Tags
	var warnings []string
	_, err := Decode(Options{
		R:           bytes.NewReader(data),
		ImageFormat: TIFF,
		HandleTag: func(ti TagInfo) error {
			tags.Add(ti)
			return nil
		},
		Warnf: func(format string, args ...any) {
			warnings = append(warnings, fmt.Sprintf(format, args...))
		},
	})
	qt.New(t).Assert(err, qt.IsNil)
	return tags, warnings
}

// TestMakerNotesSonyFileFormat: a Sony maker note exposing tag 0xB000 with
// value bytes [3,3,5,0] produces MakerNotes FileFormat "ARW 2.3.5" —
// scenario S1.
func TestMakerNotesSonyFileFormat(t *testing.T) {
	c := qt.New(t)

	data := tiffBuilder{
		make:  "SONY",
		model: "ILCE-7M3",
		makerNote: func(makerNoteOffset uint32) []byte {
			var buf bytes.Buffer
			w := func(v any) { binary.Write(&buf, binary.BigEndian, v) }
			// Bare maker IFD, the ARW convention: no signature header.
			w(uint16(1))
			w(uint16(0xb000))
			w(uint16(7)) // undef
			w(uint32(4))
			buf.Write([]byte{3, 3, 5, 0}) // inline value
			w(uint32(0))
			return buf.Bytes()
		},
	}.build()

	tags, _ := decodeTIFFTags(t, data)

	ti, ok := tags.MakerNotes()["FileFormat"]
	c.Assert(ok, qt.IsTrue)
	c.Assert(ti.Namespace, qt.Equals, "Sony")
	c.Assert(ti.Value, qt.Equals, "ARW 2.3.5")
}

// TestMakerNotesCanonCameraSettings: a Canon CameraSettings block with
// int16s value 2 at table index 1 prints MacroMode "Normal" — scenario S2.
func TestMakerNotesCanonCameraSettings(t *testing.T) {
	c := qt.New(t)

	data := tiffBuilder{
		make:  "Canon",
		model: "Canon EOS 5D Mark IV",
		makerNote: func(makerNoteOffset uint32) []byte {
			// Canon maker notes are a bare IFD with value offsets relative
			// to the TIFF base. CameraSettings (0x0001) carries 8 int16s
			// values starting right after the IFD.
			const numSettings = 8
			settingsOffset := makerNoteOffset + 2 + 12 + 4

			var buf bytes.Buffer
			w := func(v any) { binary.Write(&buf, binary.BigEndian, v) }
			w(uint16(1))
			w(uint16(0x0001))
			w(uint16(8)) // int16s
			w(uint32(numSettings))
			w(settingsOffset)
			w(uint32(0))
			for _, v := range []int16{2, 0, 3, 0, 0, 0, 3, 0} {
				w(v)
			}
			return buf.Bytes()
		},
	}.build()

	tags, _ := decodeTIFFTags(t, data)
	maker := tags.MakerNotes()

	macro, ok := maker["MacroMode"]
	c.Assert(ok, qt.IsTrue)
	c.Assert(macro.Namespace, qt.Equals, "Canon")
	c.Assert(macro.Value, qt.Equals, int64(2))
	c.Assert(macro.Print, qt.Equals, "Normal")

	focus, ok := maker["FocusMode"]
	c.Assert(ok, qt.IsTrue)
	c.Assert(focus.Print, qt.Equals, "Manual Focus")
}

// TestMakerNotesSonyIDCCorruptionDetected: a Sony file whose IFD0 Software
// string names Sony's Image Data Converter gets the IDC offset-recovery
// hook installed (surfaced as a warning) while inline values keep decoding
// normally.
func TestMakerNotesSonyIDCCorruptionDetected(t *testing.T) {
	c := qt.New(t)

	data := tiffBuilder{
		make:     "SONY",
		model:    "DSLR-A100",
		software: "Sony IDC 4.0",
		makerNote: func(makerNoteOffset uint32) []byte {
			var buf bytes.Buffer
			w := func(v any) { binary.Write(&buf, binary.BigEndian, v) }
			w(uint16(1))
			w(uint16(0xb000))
			w(uint16(7)) // undef
			w(uint32(4))
			buf.Write([]byte{1, 0, 0, 0}) // inline value, "ARW 1.0"
			w(uint32(0))
			return buf.Bytes()
		},
	}.build()

	tags, warnings := decodeTIFFTags(t, data)

	ti, ok := tags.MakerNotes()["FileFormat"]
	c.Assert(ok, qt.IsTrue)
	c.Assert(ti.Value, qt.Equals, "ARW 1.0")

	var sawIDCWarning bool
	for _, w := range warnings {
		if strings.Contains(w, "IDC corruption") {
			sawIDCWarning = true
		}
	}
	c.Assert(sawIDCWarning, qt.IsTrue)
}

// TestMakerNotesNikonEncryptedWithoutKeys: a Nikon LensData block whose
// first bytes carry the encryption signature, with no SerialNumber or
// ShutterCount available, reports the no-context sentinel and a warning
// instead of failing — scenario S4.
func TestMakerNotesNikonEncryptedWithoutKeys(t *testing.T) {
	c := qt.New(t)

	data := tiffBuilder{
		make:  "NIKON CORPORATION",
		model: "NIKON Z 7",
		makerNote: func(makerNoteOffset uint32) []byte {
			var buf bytes.Buffer
			w := func(v any) { binary.Write(&buf, binary.BigEndian, v) }
			// "Nikon" signature, version 2.x, then an embedded TIFF header;
			// value offsets are relative to that header.
			buf.WriteString("Nikon\x00")
			buf.Write([]byte{0x02, 0x10, 0x00, 0x00})
			buf.WriteString("MM")
			w(uint16(42))
			w(uint32(8)) // IFD right after this header

			// IFD with one LensData entry; its 8 bytes follow the IFD, at
			// offset 8 (header) + 18 (IFD) relative to the embedded header.
			w(uint16(1))
			w(uint16(0x0098))
			w(uint16(7)) // undef
			w(uint32(8))
			w(uint32(8 + 18))
			w(uint32(0))
			buf.Write([]byte{0x02, 0x00, 0x00, 0x00, 0xaa, 0xbb, 0xcc, 0xdd})
			return buf.Bytes()
		},
	}.build()

	tags, warnings := decodeTIFFTags(t, data)

	status, ok := tags.MakerNotes()["EncryptionStatus"]
	c.Assert(ok, qt.IsTrue)
	c.Assert(status.Namespace, qt.Equals, "Nikon")
	c.Assert(status.Value, qt.Equals, "Encrypted data detected - no encryption context")

	var sawEncryptionWarning bool
	for _, w := range warnings {
		if strings.Contains(w, "encryption context") {
			sawEncryptionWarning = true
		}
	}
	c.Assert(sawEncryptionWarning, qt.IsTrue)
}

// TestMakerNotesUnknownManufacturerWarns: an unrecognized Make string skips
// maker-note processing with a warning, leaving the rest of the extraction
// untouched.
func TestMakerNotesUnknownManufacturerWarns(t *testing.T) {
	c := qt.New(t)

	data := tiffBuilder{
		make:  "ACME",
		model: "Roadrunner 9000",
		makerNote: func(makerNoteOffset uint32) []byte {
			return []byte{0, 0, 0, 0, 0, 0}
		},
	}.build()

	tags, warnings := decodeTIFFTags(t, data)
	c.Assert(tags.MakerNotes(), qt.HasLen, 0)

	var sawWarning bool
	for _, w := range warnings {
		if strings.Contains(w, "unrecognized manufacturer") {
			sawWarning = true
		}
	}
	c.Assert(sawWarning, qt.IsTrue)
}
