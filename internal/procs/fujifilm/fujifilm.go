// Package fujifilm implements FujiFilm's FFMV (movie stream) binary-data
// table processor (spec.md §4.I).
//
// Grounded on original_source's processor_registry/processors/fujifilm.rs:
// the CanProcess manufacturer/table-name matching ("FUJIFILM" + "FFMV", with
// a Good-capability fallback for "Movie"/"Stream" table names), and its
// noted-but-unimplemented generated-table decode — which this package
// completes using internal/bindata now that a real interpreter exists,
// rather than leaving the TODO loop the original source carries.
package fujifilm

import (
	"strings"

	"github.com/finchlabs/pixmeta/internal/bindata"
	"github.com/finchlabs/pixmeta/internal/proc"
)

// FFMVTable is FujiFilm's movie-stream ProcessBinaryData table: a small,
// representative slice of Exiftool's FujiFilm.pm FFMV table holding one
// field, the 48-byte movie stream name.
var FFMVTable = &bindata.Table{
	Name:          "FujiFilm::FFMV",
	FirstEntry:    0,
	DefaultFormat: bindata.Int32U,
	Tags: map[int32]bindata.FieldDef{
		0: {Name: "MovieStreamName", Format: bindata.StringN, Count: 48},
	},
}

// FFMVProcessor decodes FujiFilm's FFMV movie-stream section.
type FFMVProcessor struct {
	Pipeline bindata.Converter
}

func isFujiFilm(ctx proc.Context) bool {
	return ctx.Manufacturer != nil && strings.Contains(strings.ToUpper(*ctx.Manufacturer), "FUJIFILM")
}

func (p FFMVProcessor) CanProcess(ctx proc.Context) proc.Capability {
	if !isFujiFilm(ctx) {
		return proc.Incompatible
	}
	if strings.Contains(ctx.TableName, "FFMV") {
		return proc.Perfect
	}
	if strings.Contains(ctx.TableName, "Movie") || strings.Contains(ctx.TableName, "Stream") {
		return proc.Good
	}
	return proc.Incompatible
}

func (p FFMVProcessor) ProcessData(data []byte, ctx proc.Context) (*proc.Result, error) {
	order := ctx.ByteOrder
	entries := bindata.Decode(data, order, FFMVTable, p.Pipeline, nil)

	result := proc.NewResult()
	for _, e := range entries {
		result.AddTag(e.Name, e.Value)
	}
	if len(result.ExtractedTags) == 0 {
		result.AddWarning("no tags extracted from FujiFilm FFMV data (table: " + ctx.TableName + ")")
	}
	return result, nil
}

func (p FFMVProcessor) Metadata() proc.Metadata {
	return proc.NewMetadata("FujiFilm FFMV Processor", "FujiFilm.pm FFMV ProcessBinaryData table").
		WithManufacturers("FujiFilm").
		WithExampleConditions(`manufacturer == "FUJIFILM" && table.contains("FFMV")`)
}
