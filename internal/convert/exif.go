package convert

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/finchlabs/pixmeta/internal/tagval"
)

// RegisterEXIF installs the standard EXIF module's ValueConv functions,
// ported from the teacher's vc converter methods (helpers.go) and
// exifValueConverterMap (metadecoder_exif.go), generalized to the
// (tagval.Value) -> (tagval.Value, error) shape this engine's Pipeline uses
// instead of the teacher's `any`-typed valueConverter.
func RegisterEXIF(reg *Registry) {
	reg.RegisterValueFunc("EXIF", "ApertureValue", apexToFNumber)
	reg.RegisterValueFunc("EXIF", "MaxApertureValue", apexToFNumber)
	reg.RegisterValueFunc("EXIF", "ShutterSpeedValue", apexToSeconds)
	reg.RegisterValueFunc("EXIF", "GPSLatitude", degreesToDecimal)
	reg.RegisterValueFunc("EXIF", "GPSLongitude", degreesToDecimal)
	reg.RegisterValueFunc("EXIF", "GPSMeasureMode", stringToInt)
	reg.RegisterValueFunc("EXIF", "SubSecTime", stringToInt)
	reg.RegisterValueFunc("EXIF", "SubSecTimeOriginal", stringToInt)
	reg.RegisterValueFunc("EXIF", "SubSecTimeDigitized", stringToInt)
	reg.RegisterValueFunc("EXIF", "GPSSatellites", stringToInt)

	reg.RegisterPrintFunc("EXIF", "ApertureValue", formatFNumber)
	reg.RegisterPrintFunc("EXIF", "MaxApertureValue", formatFNumber)
	reg.RegisterPrintFunc("EXIF", "ShutterSpeedValue", formatShutterSpeed)
}

// apexToFNumber implements the APEX aperture-value conversion
// f = 2^(apex/2), grounded on vc.convertAPEXToFNumber.
func apexToFNumber(raw tagval.Value) (tagval.Value, error) {
	f, ok := raw.Float64()
	if !ok {
		return tagval.Value{}, fmt.Errorf("not numeric")
	}
	return tagval.NewF64(math.Pow(2, f/2)), nil
}

// apexToSeconds implements the APEX shutter-speed conversion
// t = 1 / 2^apex, grounded on vc.convertAPEXToSeconds.
func apexToSeconds(raw tagval.Value) (tagval.Value, error) {
	f, ok := raw.Float64()
	if !ok {
		return tagval.Value{}, fmt.Errorf("not numeric")
	}
	return tagval.NewF64(1 / math.Pow(2, f)), nil
}

// degreesToDecimal converts a 3-rational (deg, min, sec) GPS coordinate
// array to a single decimal-degrees float, grounded on vc.convertDegreesToDecimal.
func degreesToDecimal(raw tagval.Value) (tagval.Value, error) {
	arr, ok := raw.AsArray()
	if !ok || len(arr) != 3 {
		return tagval.Value{}, fmt.Errorf("expected a 3-element degrees/minutes/seconds array")
	}
	deg, ok1 := arr[0].Float64()
	min, ok2 := arr[1].Float64()
	sec, ok3 := arr[2].Float64()
	if !ok1 || !ok2 || !ok3 {
		return tagval.Value{}, fmt.Errorf("non-numeric degrees/minutes/seconds component")
	}
	return tagval.NewF64(deg + min/60 + sec/3600), nil
}

// stringToInt parses a numeric EXIF string tag (e.g. SubSecTime) to an
// integer, grounded on vc.convertStringToInt.
func stringToInt(raw tagval.Value) (tagval.Value, error) {
	s := strings.TrimSpace(raw.String())
	n, err := strconv.Atoi(s)
	if err != nil {
		return tagval.Value{}, err
	}
	return tagval.NewI32(int32(n)), nil
}

func formatFNumber(v tagval.Value) string {
	f, ok := v.Float64()
	if !ok {
		return v.String()
	}
	return fmt.Sprintf("%.1f", f)
}

func formatShutterSpeed(v tagval.Value) string {
	f, ok := v.Float64()
	if !ok || f <= 0 {
		return v.String()
	}
	if f >= 1 {
		return fmt.Sprintf("%.1f", f)
	}
	return fmt.Sprintf("1/%d", int(math.Round(1/f)))
}
