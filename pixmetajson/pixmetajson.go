// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

// Package pixmetajson renders a Tags snapshot to the stable JSON shape
// "Group:Name": value, where Group is EXIF, IPTC, XMP, or the maker-note
// manufacturer namespace. Rationals serialize as "n/d", arrays as JSON
// arrays, absent values as null.
package pixmetajson

import (
	"encoding/json"
	"fmt"

	"github.com/finchlabs/pixmeta"
)

// Marshal renders the print form: a tag's Print string when one was
// converted, otherwise its value reduced to a human string (or an array of
// strings). encoding/json sorts the map keys, so output is deterministic
// for a given tag set.
func Marshal(tags pixmeta.Tags) ([]byte, error) {
	return marshal(tags, func(ti pixmeta.TagInfo) any {
		if ti.Print != "" {
			return ti.Print
		}
		return printValue(ti.Value)
	})
}

// MarshalValues renders the logical-value form: tag values serialize as
// their native JSON types (numbers, arrays, "n/d" rationals) instead of
// print strings.
func MarshalValues(tags pixmeta.Tags) ([]byte, error) {
	return marshal(tags, func(ti pixmeta.TagInfo) any { return ti.Value })
}

func marshal(tags pixmeta.Tags, render func(pixmeta.TagInfo) any) ([]byte, error) {
	all := tags.All()
	out := make(map[string]any, len(all))
	for _, ti := range all {
		out[groupName(ti)+":"+ti.Tag] = render(ti)
	}
	return json.MarshalIndent(out, "", "  ")
}

func groupName(ti pixmeta.TagInfo) string {
	switch ti.Source {
	case pixmeta.EXIF:
		return "EXIF"
	case pixmeta.IPTC:
		return "IPTC"
	case pixmeta.XMP:
		return "XMP"
	case pixmeta.MakerNotes:
		if ti.Namespace != "" {
			return ti.Namespace
		}
		return "MakerNotes"
	default:
		return ti.Source.String()
	}
}

func printValue(v any) any {
	switch vv := v.(type) {
	case nil:
		return nil
	case string:
		return vv
	case []string:
		return vv
	case fmt.Stringer:
		return vv.String()
	case []byte:
		return fmt.Sprintf("(%d bytes)", len(vv))
	case []any:
		out := make([]any, len(vv))
		for i, e := range vv {
			out[i] = printValue(e)
		}
		return out
	default:
		return fmt.Sprintf("%v", vv)
	}
}
