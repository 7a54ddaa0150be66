// Package xmp implements the RDF/XML metadata reader (spec.md §4.K):
// namespace-aware parsing of rdf:Description properties into a flattened
// tag stream, with rdf:Bag/Seq collapsing to arrays and rdf:Alt collapsing
// to the x-default alternative.
//
// Grounded on the teacher's metadecoder_xmp.go (encoding/xml decode-into-
// struct approach for a fixed property set), generalized here to a
// token-streaming decoder (xml.Decoder.Token) so arbitrary namespaces and
// properties are handled instead of only the teacher's hand-picked subset.
package xmp

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"unicode"
	"unicode/utf8"

	xunicode "golang.org/x/text/encoding/unicode"

	"github.com/finchlabs/pixmeta/internal/metaerr"
	"github.com/finchlabs/pixmeta/internal/tagval"
)

// Tag is one flattened XMP property, ready to fold into the engine's tag
// stream — spec.md §4.K's "Group=XMP, Group1=XMP" emission mode.
type Tag struct {
	Name  string
	Value tagval.Value
	Print string
}

// standardNamespaces seeds the URI->prefix map with the well-known XMP
// namespaces (a stand-in for the generated standard-namespaces table spec.md
// §4.K references), merged with any per-document xmlns:* declarations.
var standardNamespaces = map[string]string{
	"http://purl.org/dc/elements/1.1/":          "dc",
	"http://ns.adobe.com/photoshop/1.0/":        "photoshop",
	"http://ns.adobe.com/exif/1.0/":             "exif",
	"http://ns.adobe.com/tiff/1.0/":             "tiff",
	"http://ns.adobe.com/xap/1.0/":              "xmp",
	"http://ns.adobe.com/xap/1.0/rights/":       "xmpRights",
	"http://ns.adobe.com/xap/1.0/mm/":           "xmpMM",
	"http://cipa.jp/exif/1.0/":                  "exifEX",
	"http://www.w3.org/1999/02/22-rdf-syntax-ns#": "rdf",
	// Alias for the ExifTool-compatible "et" prefix (spec.md §4.K).
	"http://ns.exiftool.org/1.0/": "et",
}

// propertyTagNames maps a (prefix, localName) pair to the engine's
// ExifTool-compatible tag name, per spec.md §4.K's examples
// (dc:title -> Title, photoshop:City -> City, exif:GPSLatitude ->
// GPSLatitude). An unmapped pair falls back to the bare, capitalized local
// name.
var propertyTagNames = map[string]string{
	"dc:title":             "Title",
	"dc:description":       "Description",
	"dc:creator":           "Creator",
	"dc:subject":           "Subject",
	"dc:rights":            "Rights",
	"photoshop:City":       "City",
	"photoshop:State":      "State",
	"photoshop:Country":    "Country",
	"photoshop:Headline":   "Headline",
	"photoshop:Credit":     "Credit",
	"exif:GPSLatitude":     "GPSLatitude",
	"exif:GPSLongitude":    "GPSLongitude",
	"exif:DateTimeOriginal": "DateTimeOriginal",
	"tiff:Make":            "Make",
	"tiff:Model":           "Model",
	"xmp:CreateDate":       "CreateDate",
	"xmp:ModifyDate":       "ModifyDate",
	"xmp:Rating":           "Rating",
}

// Read parses raw XMP bytes (standalone, JPEG APP1, or TIFF tag 0x02BC) and
// returns the flattened tag stream. It detects and transcodes a UTF-16 BOM
// before XML parsing, since XMP payloads are occasionally emitted in UTF-16
// by non-JPEG containers (TIFF/RAW) even though JPEG APP1 XMP is always
// UTF-8.
func Read(data []byte) ([]Tag, []string, error) {
	data, err := transcodeToUTF8(data)
	if err != nil {
		return nil, nil, metaerr.New(metaerr.ParseError, "xmp", err)
	}

	dec := xml.NewDecoder(bytes.NewReader(data))
	nsAliases := map[string]string{}
	for uri, prefix := range standardNamespaces {
		nsAliases[uri] = prefix
	}

	var tags []Tag
	var warnings []string

	for {
		tok, err := dec.Token()
		if err != nil {
			if err == io.EOF {
				break
			}
			return tags, warnings, metaerr.New(metaerr.ParseError, "xmp", fmt.Errorf("xml parse error: %w", err))
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		for _, attr := range start.Attr {
			if attr.Name.Space == "xmlns" {
				nsAliases[attr.Value] = attr.Name.Local
			}
		}
		if start.Name.Local != "Description" {
			continue
		}

		descTags, warns, err := readDescription(dec, start, nsAliases)
		if err != nil {
			warnings = append(warnings, err.Error())
			continue
		}
		tags = append(tags, descTags...)
		warnings = append(warnings, warns...)
	}

	return tags, warnings, nil
}

func readDescription(dec *xml.Decoder, start xml.StartElement, nsAliases map[string]string) ([]Tag, []string, error) {
	var tags []Tag
	var warnings []string

	// Simple attribute-form properties: rdf:Description xmlns:x="..." x:Foo="bar".
	for _, attr := range start.Attr {
		if attr.Name.Space == "" || attr.Name.Space == "xmlns" {
			continue
		}
		prefix := nsAliases[attr.Name.Space]
		if prefix == "" {
			prefix = attr.Name.Space
		}
		name := tagName(prefix, attr.Name.Local)
		tags = append(tags, Tag{Name: name, Value: tagval.NewString(attr.Value), Print: attr.Value})
	}

	depth := 0
	for {
		tok, err := dec.Token()
		if err != nil {
			return tags, warnings, fmt.Errorf("xmp: truncated rdf:Description: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == start.Name.Local && t.Name.Space == start.Name.Space {
				depth++
				continue
			}
			prefix := nsAliases[t.Name.Space]
			if prefix == "" {
				prefix = t.Name.Space
			}
			value, warns, err := readPropertyValue(dec, t)
			warnings = append(warnings, warns...)
			if err != nil {
				warnings = append(warnings, err.Error())
				continue
			}
			name := tagName(prefix, t.Name.Local)
			tags = append(tags, Tag{Name: name, Value: value, Print: value.String()})
		case xml.EndElement:
			if t.Name.Local == start.Name.Local && t.Name.Space == start.Name.Space {
				if depth == 0 {
					return tags, warnings, nil
				}
				depth--
			}
		}
	}
}

// readPropertyValue reads one property element's content: a container
// (rdf:Bag/Seq -> Array, rdf:Alt -> Object keyed by xml:lang collapsing to
// x-default) or a plain scalar text value.
func readPropertyValue(dec *xml.Decoder, propStart xml.StartElement) (tagval.Value, []string, error) {
	var warnings []string
	var textBuf bytes.Buffer

	for {
		tok, err := dec.Token()
		if err != nil {
			return tagval.Value{}, warnings, fmt.Errorf("xmp: truncated property %s: %w", propStart.Name.Local, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "Bag", "Seq":
				items, warns, err := readListItems(dec, t)
				warnings = append(warnings, warns...)
				if err != nil {
					return tagval.Value{}, warnings, err
				}
				if err := skipToClose(dec, propStart); err != nil {
					return tagval.Value{}, warnings, err
				}
				return tagval.NewArray(stringsToValues(items)), warnings, nil
			case "Alt":
				obj, warns, err := readAltItems(dec, t)
				warnings = append(warnings, warns...)
				if err != nil {
					return tagval.Value{}, warnings, err
				}
				if err := skipToClose(dec, propStart); err != nil {
					return tagval.Value{}, warnings, err
				}
				if len(obj) == 1 {
					for _, v := range obj {
						return v, warnings, nil
					}
				}
				if def, ok := obj["x-default"]; ok {
					return def, warnings, nil
				}
				return tagval.NewObject(obj), warnings, nil
			default:
				// Nested structured property we don't model explicitly;
				// skip its subtree and fall back to any sibling text.
				if err := skipToClose(dec, t); err != nil {
					return tagval.Value{}, warnings, err
				}
			}
		case xml.CharData:
			textBuf.Write(t)
		case xml.EndElement:
			if t.Name.Local == propStart.Name.Local && t.Name.Space == propStart.Name.Space {
				return tagval.NewString(strings.TrimSpace(textBuf.String())), warnings, nil
			}
		}
	}
}

func readListItems(dec *xml.Decoder, container xml.StartElement) ([]string, []string, error) {
	var items []string
	var warnings []string
	for {
		tok, err := dec.Token()
		if err != nil {
			return items, warnings, fmt.Errorf("xmp: truncated %s: %w", container.Name.Local, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "li" {
				text, err := readText(dec, t)
				if err != nil {
					return items, warnings, err
				}
				items = append(items, text)
			}
		case xml.EndElement:
			if t.Name.Local == container.Name.Local {
				return items, warnings, nil
			}
		}
	}
}

func readAltItems(dec *xml.Decoder, container xml.StartElement) (map[string]tagval.Value, []string, error) {
	obj := map[string]tagval.Value{}
	var warnings []string
	for {
		tok, err := dec.Token()
		if err != nil {
			return obj, warnings, fmt.Errorf("xmp: truncated Alt: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "li" {
				lang := "x-default"
				for _, a := range t.Attr {
					if a.Name.Local == "lang" {
						lang = a.Value
					}
				}
				text, err := readText(dec, t)
				if err != nil {
					return obj, warnings, err
				}
				obj[lang] = tagval.NewString(text)
			}
		case xml.EndElement:
			if t.Name.Local == container.Name.Local {
				return obj, warnings, nil
			}
		}
	}
}

func readText(dec *xml.Decoder, start xml.StartElement) (string, error) {
	var buf bytes.Buffer
	for {
		tok, err := dec.Token()
		if err != nil {
			return "", fmt.Errorf("xmp: truncated %s: %w", start.Name.Local, err)
		}
		switch t := tok.(type) {
		case xml.CharData:
			buf.Write(t)
		case xml.EndElement:
			if t.Name.Local == start.Name.Local {
				return strings.TrimSpace(buf.String()), nil
			}
		}
	}
}

// skipToClose consumes tokens up to and including start's matching end tag,
// for subtrees this reader doesn't model explicitly.
func skipToClose(dec *xml.Decoder, start xml.StartElement) error {
	depth := 0
	for {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("xmp: truncated %s: %w", start.Name.Local, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name == start.Name {
				depth++
			}
		case xml.EndElement:
			if t.Name == start.Name {
				if depth == 0 {
					return nil
				}
				depth--
			}
		}
	}
}

func stringsToValues(items []string) []tagval.Value {
	out := make([]tagval.Value, len(items))
	for i, s := range items {
		out[i] = tagval.NewString(s)
	}
	return out
}

// tagName applies the property->tag-name mapping table, falling back to the
// bare, initial-capitalized local name for unmapped (prefix, property)
// pairs, per spec.md §4.K.
func tagName(prefix, local string) string {
	if mapped, ok := propertyTagNames[prefix+":"+local]; ok {
		return mapped
	}
	return firstUpper(local)
}

func firstUpper(s string) string {
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[size:]
}

// transcodeToUTF8 detects a UTF-16 BOM (LE or BE) and transcodes to UTF-8;
// data with no BOM (including plain UTF-8, the common JPEG APP1 case) is
// returned unchanged.
func transcodeToUTF8(data []byte) ([]byte, error) {
	if len(data) < 2 {
		return data, nil
	}
	var order xunicode.Endianness
	switch {
	case data[0] == 0xFF && data[1] == 0xFE:
		order = xunicode.LittleEndian
	case data[0] == 0xFE && data[1] == 0xFF:
		order = xunicode.BigEndian
	default:
		return data, nil
	}
	dec := xunicode.UTF16(order, xunicode.ExpectBOM).NewDecoder()
	return io.ReadAll(dec.Reader(bytes.NewReader(data)))
}
