// Package canon implements Canon's manufacturer-specific processors
// (spec.md §4.I): CameraSettings (with the MacroMode PrintConv — scenario
// S2), SerialData, and its MkII variant for newer EOS R-series bodies.
//
// Grounded on original_source's processor_registry/processors/canon.rs for
// selection conditions (manufacturer.is("Canon") && table.contains(...),
// model.contains("EOS R5"/"R6"/"R3") for the MkII variant), decoded via
// internal/bindata the way metadecoder_exif.go decodes the fixed IFD layout.
package canon

import (
	"strings"

	"github.com/finchlabs/pixmeta/internal/bindata"
	"github.com/finchlabs/pixmeta/internal/convert"
	"github.com/finchlabs/pixmeta/internal/expr"
	"github.com/finchlabs/pixmeta/internal/proc"
	"github.com/finchlabs/pixmeta/internal/tagval"
)

const namespace = "Canon"

// CameraSettingsTable is a representative slice of ExifTool's real Canon
// CameraSettings binary-data table: FIRST_ENTRY=1 (table indices start at
// 1, matching spec.md §8 boundary behavior #11), MacroMode at index 1.
var CameraSettingsTable = &bindata.Table{
	Name:          "Canon::CameraSettings",
	FirstEntry:    1,
	DefaultFormat: bindata.Int16S,
	Tags: map[int32]bindata.FieldDef{
		1: {Name: "MacroMode", Format: bindata.Int16S, Count: 1},
		2: {Name: "SelfTimer", Format: bindata.Int16S, Count: 1},
		3: {Name: "Quality", Format: bindata.Int16S, Count: 1},
		4: {Name: "CanonFlashMode", Format: bindata.Int16S, Count: 1},
		7: {Name: "FocusMode", Format: bindata.Int16S, Count: 1},
	},
}

// macroModeEnum is the shipped PrintConv enum for scenario S2: index 2 ->
// "Normal".
var macroModeEnum = convert.SimpleEnum{1: "Macro", 2: "Normal"}

// RegisterConversions installs Canon's PrintConv enums into reg, grounded
// on the table-embedded simple enums spec.md §4.C describes.
func RegisterConversions(reg *convert.Registry) {
	reg.RegisterEnum(namespace, "MacroMode", macroModeEnum)
	reg.RegisterEnum(namespace, "SelfTimer", convert.SimpleEnum{0: "Off"})
	reg.RegisterEnum(namespace, "Quality", convert.SimpleEnum{1: "Economy", 2: "Normal", 3: "Fine", 5: "Superfine"})
	reg.RegisterEnum(namespace, "CanonFlashMode", convert.SimpleEnum{0: "Off", 1: "Auto", 2: "On"})
	reg.RegisterEnum(namespace, "FocusMode", convert.SimpleEnum{0: "One-shot AF", 1: "AI Servo AF", 2: "AI Focus AF", 3: "Manual Focus"})
}

// CameraSettingsProcessor decodes Canon::CameraSettings via the binary-data
// interpreter.
type CameraSettingsProcessor struct {
	Pipeline *convert.Pipeline
}

func (p CameraSettingsProcessor) CanProcess(ctx proc.Context) proc.Capability {
	if !ctx.ManufacturerIs("Canon") {
		return proc.Incompatible
	}
	if strings.Contains(ctx.TableName, "CameraSettings") {
		return proc.Perfect
	}
	return proc.Incompatible
}

func (p CameraSettingsProcessor) ProcessData(data []byte, ctx proc.Context) (*proc.Result, error) {
	order := ctx.ByteOrder
	entries := bindata.Decode(data, order, CameraSettingsTable, p.Pipeline, nil)

	result := proc.NewResult()
	if len(entries) == 0 {
		result.AddWarning("no Canon CameraSettings tags extracted")
	}
	for _, e := range entries {
		result.AddTag(e.Name, e.Value)
	}
	return result, nil
}

func (p CameraSettingsProcessor) Metadata() proc.Metadata {
	return proc.NewMetadata("Canon CameraSettings", "Processes Canon CameraSettings binary data table").
		WithManufacturers("Canon").
		WithExampleConditions(`manufacturer == "Canon" && table.contains("CameraSettings")`)
}

// SerialDataProcessor handles the generic Canon::SerialData table, the
// Good-capability fallback when the MkII variant below doesn't apply.
type SerialDataProcessor struct {
	Pipeline *convert.Pipeline
}

func (p SerialDataProcessor) CanProcess(ctx proc.Context) proc.Capability {
	if !ctx.ManufacturerIs("Canon") {
		return proc.Incompatible
	}
	if strings.Contains(ctx.TableName, "SerialData") {
		return proc.Good
	}
	return proc.Incompatible
}

func (p SerialDataProcessor) ProcessData(data []byte, ctx proc.Context) (*proc.Result, error) {
	result := proc.NewResult()
	if len(data) < 4 {
		result.AddWarning("Canon SerialData too short")
		return result, nil
	}
	serial := ctx.ByteOrder.Uint32(data[:4])
	result.AddTag("SerialNumber", tagval.NewU32(serial))
	return result, nil
}

func (p SerialDataProcessor) Metadata() proc.Metadata {
	return proc.NewMetadata("Canon SerialData", "Canon.pm ProcessSerialData binary data processing").
		WithManufacturers("Canon").
		WithExampleConditions(`manufacturer == "Canon" && table.contains("SerialData")`)
}

// SerialDataMkIIProcessor handles the enhanced serial-data layout used by
// newer EOS R-series bodies (R5, R6, R3) — a Perfect match that the
// ManufacturerRule dispatch rule (internal/dispatch) prefers over the
// generic SerialDataProcessor's Good match for those models.
type SerialDataMkIIProcessor struct {
	Pipeline *convert.Pipeline
}

func (p SerialDataMkIIProcessor) CanProcess(ctx proc.Context) proc.Capability {
	if !ctx.ManufacturerIs("Canon") || !strings.Contains(ctx.TableName, "SerialData") {
		return proc.Incompatible
	}
	model := ctx.ModelOrEmpty()
	if strings.Contains(model, "EOS R5") || strings.Contains(model, "EOS R6") || strings.Contains(model, "EOS R3") {
		return proc.Perfect
	}
	return proc.Incompatible
}

func (p SerialDataMkIIProcessor) ProcessData(data []byte, ctx proc.Context) (*proc.Result, error) {
	result := proc.NewResult()
	if len(data) < 8 {
		result.AddWarning("Canon MkII serial data too short")
		return result, nil
	}
	serial := ctx.ByteOrder.Uint32(data[:4])
	shutterCount := ctx.ByteOrder.Uint32(data[4:8])
	result.AddTag("SerialNumber", tagval.NewU32(serial))
	result.AddTag("ShutterCount", tagval.NewU32(shutterCount))
	return result, nil
}

func (p SerialDataMkIIProcessor) Metadata() proc.Metadata {
	return proc.NewMetadata("Canon Serial Data MkII", "Enhanced serial data processing for newer Canon models (R5, R6, R3)").
		WithManufacturers("Canon").
		WithExampleConditions(`manufacturer == "Canon" && (model.contains("EOS R5") || model.contains("EOS R6"))`)
}

// mkIICondition is the dispatch condition for the enhanced serial-data
// layout, written in the same dialect the subdirectory tables carry so the
// rule and the tables share one evaluator.
const mkIICondition = `$$self{Model} =~ /EOS R5/ or $$self{Model} =~ /EOS R6/ or $$self{Model} =~ /EOS R3/`

// ModelSelectsMkII is the ManufacturerRule.SelectVariant callback (see
// internal/registry/defaults.go) for Canon SerialData: it returns "MkII"
// when ctx.Model matches one of the enhanced bodies, else "" to defer to
// capability ranking between the generic and MkII processors. An evaluation
// error (e.g. no Model in the context) is a plain non-match here, since the
// generic SerialData processor is always a safe selection.
func ModelSelectsMkII(ctx proc.Context) string {
	cond := &expr.SubdirContext{Make: ctx.Manufacturer, Model: ctx.Model}
	ok, err := expr.EvalCondition(mkIICondition, cond)
	if err != nil || !ok {
		return ""
	}
	return "MkII"
}
