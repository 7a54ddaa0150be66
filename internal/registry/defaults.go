package registry

import (
	"github.com/finchlabs/pixmeta/internal/convert"
	"github.com/finchlabs/pixmeta/internal/dispatch"
	"github.com/finchlabs/pixmeta/internal/proc"
	"github.com/finchlabs/pixmeta/internal/procs/canon"
	"github.com/finchlabs/pixmeta/internal/procs/fujifilm"
	"github.com/finchlabs/pixmeta/internal/procs/nikon"
	"github.com/finchlabs/pixmeta/internal/procs/olympus"
	"github.com/finchlabs/pixmeta/internal/procs/panasonic"
	"github.com/finchlabs/pixmeta/internal/procs/sony"
)

// Canon SerialData keys need both variants registered up front so
// ManufacturerRule.SelectVariant can choose between them by Key.Variant.
var (
	canonCameraSettingsKey = proc.Key{Namespace: "Canon", Name: "CameraSettings"}
	canonSerialDataKey     = proc.Key{Namespace: "Canon", Name: "SerialData"}
	canonSerialDataMkIIKey = proc.Key{Namespace: "Canon", Name: "SerialData", Variant: "MkII"}

	nikonEncryptedKey = proc.Key{Namespace: "Nikon", Name: "Encrypted"}

	sonyFileFormatKey = proc.Key{Namespace: "Sony", Name: "FileFormat"}
	sonyTag2010Key    = proc.Key{Namespace: "Sony", Name: "Tag2010"}
	sonyAFInfoKey     = proc.Key{Namespace: "Sony", Name: "AFInfo"}

	olympusEquipmentKey       = proc.Key{Namespace: "Olympus", Name: "Equipment"}
	olympusCameraSettingsKey  = proc.Key{Namespace: "Olympus", Name: "CameraSettings"}
	olympusFocusInfoKey       = proc.Key{Namespace: "Olympus", Name: "FocusInfo"}

	fujifilmFFMVKey = proc.Key{Namespace: "FujiFilm", Name: "FFMV"}

	panasonicMainKey = proc.Key{Namespace: "PanasonicRaw", Name: "Main"}
)

// NewDefaultConversionRegistry builds a convert.Registry with every
// manufacturer package's PrintConv/ValueConv tables installed, plus the EXIF
// core conversions (internal/convert/exif.go).
func NewDefaultConversionRegistry() *convert.Registry {
	reg := convert.NewRegistry()
	convert.RegisterEXIF(reg)
	canon.RegisterConversions(reg)
	panasonic.RegisterConversions(reg)
	return reg
}

// NewDefaultEngine builds the standard dispatch-rule chain (spec.md §4.G):
// one ManufacturerRule per manufacturer (highest priority, so maker-specific
// variant selection always gets first refusal within its own namespace),
// then a FormatRule and a TableRule as generic fallbacks.
func NewDefaultEngine() *dispatch.Engine {
	return dispatch.New(
		dispatch.NewManufacturerRule("Canon", "Canon", 100, canon.ModelSelectsMkII),
		dispatch.NewManufacturerRule("Nikon", "Nikon", 100, nil),
		dispatch.NewManufacturerRule("Sony", "Sony", 100, nil),
		dispatch.NewManufacturerRule("Olympus", "Olympus", 100, nil),
		dispatch.NewManufacturerRule("OLYMPUS", "Olympus", 100, nil),
		dispatch.NewManufacturerRule("FUJIFILM", "FujiFilm", 100, nil),
		dispatch.NewManufacturerRule("Panasonic", "PanasonicRaw", 100, nil),
		dispatch.NewFormatRule("TIFF", "BinaryData", 10),
		dispatch.NewTableRule(1),
	)
}

// NewDefaultRegistry builds a Registry with every concrete manufacturer
// processor (internal/procs/*) registered under its natural Key, the
// standard dispatch-rule engine, and cfg applied. pipeline supplies the
// ValueConv/PrintConv pass each processor runs decoded fields through —
// typically built from NewDefaultConversionRegistry via convert.NewPipeline
// per module namespace.
func NewDefaultRegistry(cfg Config, canonPipeline, panasonicPipeline *convert.Pipeline) *Registry {
	reg := New(NewDefaultEngine(), cfg)

	reg.Register(canonCameraSettingsKey, canon.CameraSettingsProcessor{Pipeline: canonPipeline})
	reg.Register(canonSerialDataKey, canon.SerialDataProcessor{Pipeline: canonPipeline})
	reg.Register(canonSerialDataMkIIKey, canon.SerialDataMkIIProcessor{Pipeline: canonPipeline})

	reg.Register(nikonEncryptedKey, nikon.EncryptedDataProcessor{})

	reg.Register(sonyFileFormatKey, sony.FileFormatProcessor{})
	reg.Register(sonyTag2010Key, sony.Tag2010Processor{})
	reg.Register(sonyAFInfoKey, sony.AFInfoProcessor{})

	reg.Register(olympusEquipmentKey, olympus.EquipmentProcessor{})
	reg.Register(olympusCameraSettingsKey, olympus.CameraSettingsProcessor{})
	reg.Register(olympusFocusInfoKey, olympus.FocusInfoProcessor{})

	reg.Register(fujifilmFFMVKey, fujifilm.FFMVProcessor{})

	reg.Register(panasonicMainKey, panasonic.MainProcessor{Pipeline: panasonicPipeline})

	reg.SetFallbackChain(canonSerialDataKey, nikonEncryptedKey, sonyFileFormatKey)

	return reg
}
