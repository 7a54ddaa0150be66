// Package olympus implements Olympus's Equipment, CameraSettings, and
// FocusInfo section processors (spec.md §4.I).
//
// Grounded on original_source's processor_registry/processors/olympus.rs:
// CanProcess's manufacturer/table-name matching, and Equipment's fixed byte
// offsets for CameraType2 (0x100, 6-byte string) and LensType (0x201,
// 6 bytes formatted as "%x %.2x %.2x" of bytes 0/2/3) — read here by direct
// slice indexing at those absolute offsets, not through internal/bindata,
// since the Equipment layout is sparse rather than a FIRST_ENTRY-relative
// table.
package olympus

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/finchlabs/pixmeta/internal/proc"
	"github.com/finchlabs/pixmeta/internal/tagval"
)

func isOlympus(ctx proc.Context) bool {
	return ctx.Manufacturer != nil && strings.Contains(strings.ToUpper(*ctx.Manufacturer), "OLYMPUS")
}

// EquipmentProcessor decodes the Olympus Equipment section (tag 0x2010).
type EquipmentProcessor struct{}

func (p EquipmentProcessor) CanProcess(ctx proc.Context) proc.Capability {
	if isOlympus(ctx) && strings.Contains(ctx.TableName, "Equipment") {
		return proc.Perfect
	}
	return proc.Incompatible
}

func (p EquipmentProcessor) ProcessData(data []byte, ctx proc.Context) (*proc.Result, error) {
	result := proc.NewResult()

	if len(data) > 0x100 && len(data) >= 0x106 {
		end := 0x106
		if end > len(data) {
			end = len(data)
		}
		cameraType := trimNulString(data[0x100:end])
		if cameraType != "" {
			result.AddTag("CameraType2", tagval.NewString(cameraType))
		}
	}

	if len(data) > 0x201 && len(data) >= 0x207 {
		end := 0x207
		if end > len(data) {
			end = len(data)
		}
		lens := data[0x201:end]
		if len(lens) >= 6 {
			lensCode := fmt.Sprintf("%x %02x %02x", lens[0], lens[2], lens[3])
			result.AddTag("LensType", tagval.NewString(lensCode))
		}
	}

	if len(result.ExtractedTags) == 0 {
		result.AddWarning("no Olympus Equipment tags extracted")
	}
	return result, nil
}

func (p EquipmentProcessor) Metadata() proc.Metadata {
	return proc.NewMetadata("Olympus Equipment", "Olympus.pm Equipment table (tag 0x2010)").
		WithManufacturers("Olympus").
		WithExampleConditions(`manufacturer == "Olympus" && table.contains("Equipment")`)
}

// CameraSettingsProcessor handles the Olympus CameraSettings section (tag
// 0x2020). Like the original source's placeholder, full field decoding is
// deferred; this processor still claims the table (so dispatch doesn't fall
// through to an incompatible generic handler) and reports the gap honestly.
type CameraSettingsProcessor struct{}

func (p CameraSettingsProcessor) CanProcess(ctx proc.Context) proc.Capability {
	if isOlympus(ctx) && strings.Contains(ctx.TableName, "CameraSettings") {
		return proc.Perfect
	}
	return proc.Incompatible
}

func (p CameraSettingsProcessor) ProcessData(data []byte, ctx proc.Context) (*proc.Result, error) {
	result := proc.NewResult()
	result.AddWarning("Olympus CameraSettings processing not fully implemented")
	return result, nil
}

func (p CameraSettingsProcessor) Metadata() proc.Metadata {
	return proc.NewMetadata("Olympus CameraSettings", "Olympus.pm CameraSettings table (tag 0x2020)").
		WithManufacturers("Olympus")
}

// FocusInfoProcessor handles the Olympus FocusInfo section (tag 0x2050).
type FocusInfoProcessor struct{}

func (p FocusInfoProcessor) CanProcess(ctx proc.Context) proc.Capability {
	if isOlympus(ctx) && strings.Contains(ctx.TableName, "FocusInfo") {
		return proc.Perfect
	}
	return proc.Incompatible
}

func (p FocusInfoProcessor) ProcessData(data []byte, ctx proc.Context) (*proc.Result, error) {
	result := proc.NewResult()
	if len(data) < 2 {
		result.AddWarning("Olympus FocusInfo data too short")
		return result, nil
	}
	order := ctx.ByteOrder
	if order == nil {
		order = binary.BigEndian
	}
	result.AddTag("FocusDistance", tagval.NewU16(order.Uint16(data[0:2])))
	return result, nil
}

func (p FocusInfoProcessor) Metadata() proc.Metadata {
	return proc.NewMetadata("Olympus FocusInfo", "Olympus.pm FocusInfo table (tag 0x2050)").
		WithManufacturers("Olympus")
}

func trimNulString(b []byte) string {
	s := string(b)
	if i := strings.IndexByte(s, 0); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
