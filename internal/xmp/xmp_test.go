package xmp

import (
	"testing"

	qt "github.com/frankban/quicktest"
)

// TestNestedAltCollapsesToDefault exercises scenario S3: a single dc:title
// Alt with one x-default alternative collapses to that scalar value.
func TestNestedAltCollapsesToDefault(t *testing.T) {
	c := qt.New(t)

	doc := []byte(`<?xml version="1.0"?>
<x:xmpmeta xmlns:x="adobe:ns:meta/">
<rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#">
<rdf:Description xmlns:dc="http://purl.org/dc/elements/1.1/">
<dc:title><rdf:Alt><rdf:li xml:lang="x-default">Hello</rdf:li></rdf:Alt></dc:title>
</rdf:Description>
</rdf:RDF>
</x:xmpmeta>`)

	tags, warnings, err := Read(doc)
	c.Assert(err, qt.IsNil)
	c.Assert(warnings, qt.HasLen, 0)
	c.Assert(tags, qt.HasLen, 1)
	c.Assert(tags[0].Name, qt.Equals, "Title")
	c.Assert(tags[0].Print, qt.Equals, "Hello")
}

func TestBagCollapsesToArray(t *testing.T) {
	c := qt.New(t)

	doc := []byte(`<rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#">
<rdf:Description xmlns:dc="http://purl.org/dc/elements/1.1/">
<dc:subject><rdf:Bag><rdf:li>travel</rdf:li><rdf:li>sunset</rdf:li></rdf:Bag></dc:subject>
</rdf:Description>
</rdf:RDF>`)

	tags, _, err := Read(doc)
	c.Assert(err, qt.IsNil)
	c.Assert(tags, qt.HasLen, 1)
	arr, ok := tags[0].Value.AsArray()
	c.Assert(ok, qt.IsTrue)
	c.Assert(arr, qt.HasLen, 2)
}

func TestUnknownPropertyFallsBackToBareName(t *testing.T) {
	c := qt.New(t)

	doc := []byte(`<rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#">
<rdf:Description xmlns:custom="http://example.com/ns/">
<custom:myField>value</custom:myField>
</rdf:Description>
</rdf:RDF>`)

	tags, _, err := Read(doc)
	c.Assert(err, qt.IsNil)
	c.Assert(tags, qt.HasLen, 1)
	c.Assert(tags[0].Name, qt.Equals, "MyField")
}
