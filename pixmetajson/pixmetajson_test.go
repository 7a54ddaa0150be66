// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package pixmetajson

import (
	"encoding/json"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/finchlabs/pixmeta"
)

func sampleTags(c *qt.C) pixmeta.Tags {
	var tags pixmeta.Tags

	rat, err := pixmeta.NewRat[uint32](1, 200)
	c.Assert(err, qt.IsNil)

	tags.Add(pixmeta.TagInfo{Source: pixmeta.EXIF, Tag: "Orientation", Namespace: "IFD0", Value: uint16(1)})
	tags.Add(pixmeta.TagInfo{Source: pixmeta.EXIF, Tag: "ExposureTime", Namespace: "IFD0/ExifIFDP", Value: rat})
	tags.Add(pixmeta.TagInfo{Source: pixmeta.XMP, Tag: "Title", Namespace: "XMP", Value: "Hello"})
	tags.Add(pixmeta.TagInfo{Source: pixmeta.MakerNotes, Tag: "FileFormat", Namespace: "Sony", Value: "ARW 2.3.5"})
	tags.Add(pixmeta.TagInfo{
		Source: pixmeta.MakerNotes, Tag: "MacroMode", Namespace: "Canon",
		Value: int64(2), Print: "Normal",
	})
	tags.Add(pixmeta.TagInfo{Source: pixmeta.XMP, Tag: "Subject", Namespace: "XMP", Value: []string{"a", "b"}})
	return tags
}

func TestMarshalGroupQualifiedKeys(t *testing.T) {
	c := qt.New(t)

	b, err := Marshal(sampleTags(c))
	c.Assert(err, qt.IsNil)

	var got map[string]any
	c.Assert(json.Unmarshal(b, &got), qt.IsNil)

	c.Assert(got["EXIF:Orientation"], qt.Equals, "1")
	c.Assert(got["EXIF:ExposureTime"], qt.Equals, "1/200")
	c.Assert(got["XMP:Title"], qt.Equals, "Hello")
	c.Assert(got["Sony:FileFormat"], qt.Equals, "ARW 2.3.5")
	c.Assert(got["Canon:MacroMode"], qt.Equals, "Normal")
	c.Assert(got["XMP:Subject"], qt.DeepEquals, []any{"a", "b"})
}

func TestMarshalValuesKeepsLogicalForms(t *testing.T) {
	c := qt.New(t)

	b, err := MarshalValues(sampleTags(c))
	c.Assert(err, qt.IsNil)

	var got map[string]any
	c.Assert(json.Unmarshal(b, &got), qt.IsNil)

	// Numbers stay numbers, rationals keep their "n/d" text form, and the
	// print conversion is not applied.
	c.Assert(got["EXIF:Orientation"], qt.Equals, float64(1))
	c.Assert(got["EXIF:ExposureTime"], qt.Equals, "1/200")
	c.Assert(got["Canon:MacroMode"], qt.Equals, float64(2))
}

// TestRoundTrip: unmarshal(marshal(tags)) reproduces the same key set and
// print values — the stable-output property of the JSON shape.
func TestRoundTrip(t *testing.T) {
	c := qt.New(t)

	tags := sampleTags(c)
	b1, err := Marshal(tags)
	c.Assert(err, qt.IsNil)

	var got map[string]any
	c.Assert(json.Unmarshal(b1, &got), qt.IsNil)

	b2, err := json.MarshalIndent(got, "", "  ")
	c.Assert(err, qt.IsNil)
	c.Assert(string(b2), qt.Equals, string(b1))
}

func TestEmptyValueSerializesAsNull(t *testing.T) {
	c := qt.New(t)

	var tags pixmeta.Tags
	tags.Add(pixmeta.TagInfo{Source: pixmeta.EXIF, Tag: "Padding", Namespace: "IFD0", Value: nil})

	b, err := MarshalValues(tags)
	c.Assert(err, qt.IsNil)

	var got map[string]any
	c.Assert(json.Unmarshal(b, &got), qt.IsNil)
	v, ok := got["EXIF:Padding"]
	c.Assert(ok, qt.IsTrue)
	c.Assert(v, qt.IsNil)
}
