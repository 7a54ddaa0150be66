// Package panasonic implements Panasonic's RW2/RWL RAW Main table: a
// ProcessBinaryData decoder plus the PrintConv lookups for its
// Compression/Orientation/Multishot/CFAPattern tags (spec.md §4.I).
//
// Grounded on original_source's implementations/panasonic_raw.rs: the four
// PrintConv tables (values and "Unknown (N)" fallback behavior verified
// against that file's own unit tests) and its tag-ID-to-name routing
// (apply_panasonic_raw_print_conv_by_tag_id), reproduced here as plain
// value-to-name maps plus a PrintConv function registered per tag that
// falls back to "Unknown (N)" — this engine's enum PrintConv has no such
// fallback by default, so it is implemented explicitly for this table only.
package panasonic

import (
	"fmt"
	"strconv"

	"github.com/finchlabs/pixmeta/internal/bindata"
	"github.com/finchlabs/pixmeta/internal/convert"
	"github.com/finchlabs/pixmeta/internal/proc"
	"github.com/finchlabs/pixmeta/internal/tagval"
)

const namespace = "PanasonicRaw"

// RegisterConversions installs the four Main-table PrintConv lookups into
// reg, each falling back to "Unknown (N)" per PrintConvMain.
func RegisterConversions(reg *convert.Registry) {
	for _, tag := range []string{"Compression", "Orientation", "Multishot", "CFAPattern"} {
		tag := tag
		reg.RegisterPrintFunc(namespace, tag, func(v tagval.Value) string {
			return PrintConvMain(tag, v)
		})
	}
}

// MainTable is Panasonic's RAW Main IFD, decoded as a fixed binary-data
// layout the way the teacher's metadecoder_exif.go decodes IFD0 — here
// narrowed to the four tags the original source's PrintConv functions
// cover.
var MainTable = &bindata.Table{
	Name:          "PanasonicRaw::Main",
	FirstEntry:    0,
	DefaultFormat: bindata.Int32U,
	Tags: map[int32]bindata.FieldDef{
		9:   {Name: "CFAPattern", Format: bindata.Int8U, Count: 1},
		11:  {Name: "Compression", Format: bindata.Int32U, Count: 1},
		274: {Name: "Orientation", Format: bindata.Int8U, Count: 1},
		289: {Name: "Multishot", Format: bindata.Int32U, Count: 1},
	},
}

var compressionNames = map[int64]string{
	34316: "Panasonic RAW 1",
	34826: "Panasonic RAW 2",
	34828: "Panasonic RAW 3",
	34830: "Panasonic RAW 4",
}

var orientationNames = map[int64]string{
	1: "Horizontal (normal)",
	2: "Mirror horizontal",
	3: "Rotate 180",
	4: "Mirror vertical",
	5: "Mirror horizontal and rotate 270 CW",
	6: "Rotate 90 CW",
	7: "Mirror horizontal and rotate 90 CW",
	8: "Rotate 270 CW",
}

var multishotNames = map[int64]string{
	0:     "Off",
	65536: "Pixel Shift",
}

var cfaPatternNames = map[int64]string{
	0: "n/a",
	1: "[Red,Green][Green,Blue]",
	2: "[Green,Red][Blue,Green]",
	3: "[Green,Blue][Red,Green]",
	4: "[Blue,Green][Green,Red]",
}

// PrintConvMain reproduces apply_main_print_conv: an enum lookup with an
// "Unknown (N)" fallback instead of the identity fallback
// internal/convert's three-tier PrintConv uses for unmatched enum keys.
func PrintConvMain(tagName string, v tagval.Value) string {
	n, ok := asInt64(v)
	if !ok {
		return v.String()
	}
	var table map[int64]string
	switch tagName {
	case "Compression":
		table = compressionNames
	case "Orientation":
		table = orientationNames
	case "Multishot":
		table = multishotNames
	case "CFAPattern":
		table = cfaPatternNames
	default:
		return v.String()
	}
	if name, ok := table[n]; ok {
		return name
	}
	return fmt.Sprintf("Unknown (%s)", strconv.FormatInt(n, 10))
}

func asInt64(v tagval.Value) (int64, bool) {
	f, ok := v.Float64()
	if !ok {
		return 0, false
	}
	return int64(f), true
}

// MainProcessor decodes the Panasonic RAW Main table via internal/bindata
// and applies PrintConvMain to the four known tags through Pipeline.
type MainProcessor struct {
	Pipeline *convert.Pipeline
}

func (p MainProcessor) CanProcess(ctx proc.Context) proc.Capability {
	if !ctx.ManufacturerIs("Panasonic") {
		return proc.Incompatible
	}
	if ctx.TableName == "PanasonicRaw::Main" || ctx.TableName == "Panasonic::Main" {
		return proc.Perfect
	}
	return proc.Incompatible
}

func (p MainProcessor) ProcessData(data []byte, ctx proc.Context) (*proc.Result, error) {
	order := ctx.ByteOrder
	entries := bindata.Decode(data, order, MainTable, p.Pipeline, nil)

	result := proc.NewResult()
	for _, e := range entries {
		result.AddTag(e.Name, e.Value)
	}
	if len(result.ExtractedTags) == 0 {
		result.AddWarning("no Panasonic RAW Main tags extracted")
	}
	return result, nil
}

func (p MainProcessor) Metadata() proc.Metadata {
	return proc.NewMetadata("Panasonic RAW Main", "PanasonicRaw.pm Main table ProcessBinaryData").
		WithManufacturers("Panasonic").
		WithExampleConditions(`manufacturer == "Panasonic" && table == "PanasonicRaw::Main"`)
}
