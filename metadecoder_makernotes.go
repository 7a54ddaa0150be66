// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package pixmeta

import (
	"bytes"
	"encoding/binary"
	"sort"
	"strings"

	"github.com/finchlabs/pixmeta/internal/convert"
	"github.com/finchlabs/pixmeta/internal/expr"
	"github.com/finchlabs/pixmeta/internal/proc"
	"github.com/finchlabs/pixmeta/internal/procs/sony"
	"github.com/finchlabs/pixmeta/internal/registry"
	"github.com/finchlabs/pixmeta/internal/state"
	"github.com/finchlabs/pixmeta/internal/subdir"
	"github.com/finchlabs/pixmeta/internal/tagval"
)

// Maker notes are too large to be sensible inline values; anything bigger
// than this is treated as a corrupt length rather than read.
const maxMakerNoteSize = 1 << 24

// canonicalManufacturer normalizes the EXIF Make string to the processor
// namespace names used by internal/procs. Camera Make strings vary freely
// ("NIKON CORPORATION", "OLYMPUS IMAGING CORP.", "SONY"); the engine's
// dispatch rules match on the canonical form.
func canonicalManufacturer(cameraMake string) string {
	up := strings.ToUpper(cameraMake)
	switch {
	case strings.HasPrefix(up, "CANON"):
		return "Canon"
	case strings.HasPrefix(up, "NIKON"):
		return "Nikon"
	case strings.HasPrefix(up, "SONY"):
		return "Sony"
	case strings.HasPrefix(up, "OLYMPUS"), strings.HasPrefix(up, "OM DIGITAL"):
		return "Olympus"
	case strings.HasPrefix(up, "FUJIFILM"):
		return "FujiFilm"
	case strings.HasPrefix(up, "PANASONIC"):
		return "Panasonic"
	}
	return ""
}

// makerSubdirCandidate is one candidate target table for a maker-note tag.
// Candidates are tried in order; the first whose condition holds (or whose
// condition is empty) wins. Conditions use the engine's expression dialect
// evaluated against the subdirectory condition context, so e.g. a Nikon
// LensData block is routed by its leading version bytes and a Sony 0x2010
// block by its element count.
type makerSubdirCandidate struct {
	table     string
	condition string
}

var makerSubdirTables = map[string]map[uint16][]makerSubdirCandidate{
	"Canon": {
		0x0001: {{table: "Canon::CameraSettings"}},
		0x0096: {{table: "Canon::SerialData"}},
	},
	"Nikon": {
		0x0098: {
			{table: "Nikon::LensData0204", condition: `$$valPt =~ /^0204/`},
			{table: "Nikon::LensData"},
		},
	},
	"Sony": {
		0xb000: {{table: "Sony::FileFormat"}},
		0x2010: {
			{table: "Sony::Tag2010e", condition: `$count == 1273 or $count == 1275`},
			{table: "Sony::Tag2010"},
		},
		0x9050: {{table: "Sony::Tag9050"}},
		0x940e: {{table: "Sony::AFInfo"}},
	},
	"Olympus": {
		0x2010: {{table: "Olympus::Equipment"}},
		0x2020: {{table: "Olympus::CameraSettings"}},
		0x2050: {{table: "Olympus::FocusInfo"}},
	},
}

// makerParentTags names the scalar maker-note tags that must be collected
// before subdirectory processing because processors consult them via
// ParentTags — currently Nikon's encryption keys.
var makerParentTags = map[string]map[uint16]string{
	"Nikon": {
		0x001d: "SerialNumber",
		0x00a7: "ShutterCount",
	},
}

// exifFormatNames maps the TIFF wire type to ExifTool's format name, the
// form $format conditions compare against.
var exifFormatNames = map[exifType]string{
	exifTypeUnsignedByte1:  "int8u",
	exifTypeASCIIString1:   "string",
	exifTypeUnsignedShort2: "int16u",
	exifTypeUnsignedLong4:  "int32u",
	exifTypeUnsignedRat8:   "rational64u",
	exifTypeSignedByte1:    "int8s",
	exifTypeUndef1:         "undef",
	exifTypeSignedShort2:   "int16s",
	exifTypeSignedLong4:    "int32s",
	exifTypeSignedRat8:     "rational64s",
	exifTypeSignedFloat4:   "float",
	exifTypeSignedDouble8:  "double",
}

// makerNoteLayout describes where the maker IFD lives inside the raw maker
// note blob and how its entry value offsets translate to blob positions.
type makerNoteLayout struct {
	// ifdOffset is the IFD's start within the blob.
	ifdOffset int64
	// valueBase is added to an entry's value offset to get a blob position.
	// 0 for self-contained notes (offsets relative to the note itself),
	// -makerNoteOffset for the common convention of offsets relative to the
	// EXIF/TIFF base.
	valueBase int64
	byteOrder binary.ByteOrder

	// recoverOffset, when set, rewrites an entry's stored value offset
	// before valueBase rebasing — the hook the Sony IDC corruption fixup
	// installs.
	recoverOffset func(tagID uint16, offset int64) int64
}

// makerNoteHeader sniffs the manufacturer signature prefix and returns the
// IFD layout. Unrecognized headers fall back to a bare IFD at offset 0 with
// EXIF-base-relative value offsets, which is the layout Canon and most
// Sony bodies write.
func makerNoteHeader(data []byte, makerNoteOffset int64, order binary.ByteOrder) (makerNoteLayout, bool) {
	switch {
	case bytes.HasPrefix(data, []byte("Nikon\x00")):
		// Format 3 embeds a full TIFF header at offset 10; entry value
		// offsets are relative to that header, and the note carries its own
		// byte order.
		if len(data) < 18 || data[6] != 0x02 {
			return makerNoteLayout{}, false
		}
		var o binary.ByteOrder
		switch {
		case data[10] == 'I' && data[11] == 'I':
			o = binary.LittleEndian
		case data[10] == 'M' && data[11] == 'M':
			o = binary.BigEndian
		default:
			return makerNoteLayout{}, false
		}
		return makerNoteLayout{
			ifdOffset: int64(o.Uint32(data[14:18])) + 10,
			valueBase: 10,
			byteOrder: o,
		}, true

	case bytes.HasPrefix(data, []byte("OLYMPUS\x00")):
		// Newer Olympus notes are self-contained: offsets relative to the
		// note start, byte order declared at offset 8.
		if len(data) < 12 {
			return makerNoteLayout{}, false
		}
		o := order
		switch data[8] {
		case 'I':
			o = binary.LittleEndian
		case 'M':
			o = binary.BigEndian
		}
		return makerNoteLayout{ifdOffset: 12, valueBase: 0, byteOrder: o}, true

	case bytes.HasPrefix(data, []byte("OLYMP\x00")):
		return makerNoteLayout{ifdOffset: 8, valueBase: -makerNoteOffset, byteOrder: order}, true

	case bytes.HasPrefix(data, []byte("SONY DSC \x00\x00\x00")),
		bytes.HasPrefix(data, []byte("SONY CAM \x00\x00\x00")):
		return makerNoteLayout{ifdOffset: 12, valueBase: -makerNoteOffset, byteOrder: order}, true

	case bytes.HasPrefix(data, []byte("FUJIFILM")):
		// Always little-endian, offsets relative to the note start, IFD
		// position in the 4 bytes after the signature.
		if len(data) < 12 {
			return makerNoteLayout{}, false
		}
		return makerNoteLayout{
			ifdOffset: int64(binary.LittleEndian.Uint32(data[8:12])),
			valueBase: 0,
			byteOrder: binary.LittleEndian,
		}, true

	case bytes.HasPrefix(data, []byte("Panasonic\x00\x00\x00")):
		return makerNoteLayout{ifdOffset: 12, valueBase: -makerNoteOffset, byteOrder: order}, true
	}

	return makerNoteLayout{ifdOffset: 0, valueBase: -makerNoteOffset, byteOrder: order}, true
}

// makerIFDEntry is one parsed maker-IFD entry with its value bytes resolved
// against the note blob (nil when the value points outside it).
type makerIFDEntry struct {
	tagID  uint16
	typ    exifType
	count  uint32
	offset int64
	data   []byte
}

func parseMakerIFD(data []byte, layout makerNoteLayout, warnf func(string, ...any)) []makerIFDEntry {
	o := layout.byteOrder
	pos := layout.ifdOffset
	if pos < 0 || pos+2 > int64(len(data)) {
		warnf("maker notes: IFD offset %d out of bounds for %d-byte note", pos, len(data))
		return nil
	}
	numTags := int(o.Uint16(data[pos : pos+2]))

	var entries []makerIFDEntry
	for i := 0; i < numTags; i++ {
		epos := pos + 2 + int64(i)*12
		if epos+12 > int64(len(data)) {
			warnf("maker notes: truncated IFD after %d of %d entries", i, numTags)
			break
		}
		tagID := o.Uint16(data[epos : epos+2])
		typ := exifType(o.Uint16(data[epos+2 : epos+4]))
		count := o.Uint32(data[epos+4 : epos+8])

		elemSize, ok := exifTypeSize[typ]
		if !ok {
			continue
		}
		size := int64(elemSize) * int64(count)
		if size > int64(len(data)) {
			continue
		}

		entry := makerIFDEntry{tagID: tagID, typ: typ, count: count}
		if size <= 4 {
			entry.offset = epos + 8
			entry.data = data[epos+8 : epos+8+size]
		} else {
			stored := int64(o.Uint32(data[epos+8 : epos+12]))
			if layout.recoverOffset != nil {
				stored = layout.recoverOffset(tagID, stored)
			}
			off := stored + layout.valueBase
			entry.offset = off
			if off >= 0 && off+size <= int64(len(data)) {
				entry.data = data[off : off+size]
			} else {
				warnf("maker notes: tag 0x%04x value at %d (size %d) outside %d-byte note", tagID, off, size, len(data))
			}
		}
		entries = append(entries, entry)
	}
	return entries
}

// selectSubdirTable picks the target table for one maker-note subdirectory
// tag by evaluating each candidate's condition against the subdirectory
// condition context. A condition that cannot be evaluated (missing context)
// is a negative match for dispatch purposes.
func selectSubdirTable(cands []makerSubdirCandidate, entry makerIFDEntry, cameraMake, cameraModel string) string {
	count := int(entry.count)
	ctx := &expr.SubdirContext{ValPt: entry.data, CountVal: &count}
	if cameraMake != "" {
		ctx.Make = &cameraMake
	}
	if cameraModel != "" {
		ctx.Model = &cameraModel
	}
	if name, ok := exifFormatNames[entry.typ]; ok {
		ctx.FormatName = &name
	}

	for _, cand := range cands {
		if cand.condition == "" {
			return cand.table
		}
		ok, err := expr.EvalCondition(cand.condition, ctx)
		if err == nil && ok {
			return cand.table
		}
	}
	return ""
}

// tag014aValue lifts the decoder's captured IFD0 tag 0x14a into the value
// shape DetectIDCCorruption's A100 heuristic inspects (a u32 or a u32
// array).
func (e *metaDecoderEXIF) tag014aValue() tagval.Value {
	switch v := e.tag014a.(type) {
	case uint32:
		return tagval.NewU32(v)
	case []any:
		arr := make([]uint32, 0, len(v))
		for _, x := range v {
			if u, ok := x.(uint32); ok {
				arr = append(arr, u)
			}
		}
		return tagval.NewU32Array(arr)
	}
	return tagval.NewEmpty()
}

func decodeMakerScalar(entry makerIFDEntry, o binary.ByteOrder) tagval.Value {
	switch entry.typ {
	case exifTypeASCIIString1:
		return tagval.NewString(string(trimBytesNulls(entry.data)))
	case exifTypeUnsignedShort2:
		if len(entry.data) >= 2 {
			return tagval.NewU16(o.Uint16(entry.data))
		}
	case exifTypeUnsignedLong4:
		if len(entry.data) >= 4 {
			return tagval.NewU32(o.Uint32(entry.data))
		}
	}
	return tagval.NewBytes(entry.data)
}

// tagValueToAny converts an engine tag value to the plain Go value TagInfo
// carries, matching the shapes the EXIF decoder itself produces (string,
// int64/float64, []byte, "n/d" for rationals).
func tagValueToAny(v tagval.Value) any {
	switch v.Kind {
	case tagval.Empty:
		return nil
	case tagval.String:
		return v.String()
	case tagval.Bytes:
		b, _ := v.AsBytes()
		return b
	case tagval.Rational, tagval.SRational:
		r, _ := v.AsRat()
		return r.String()
	case tagval.F32, tagval.F64:
		f, _ := v.Float64()
		return f
	case tagval.U32Array:
		a, _ := v.AsU32Array()
		return a
	case tagval.U8, tagval.I8, tagval.U16, tagval.I16, tagval.U32, tagval.I32, tagval.U64, tagval.I64:
		f, _ := v.Float64()
		return int64(f)
	default:
		return v.String()
	}
}

// decodeMakerNotes is the container-walker side of maker-note handling: it
// sniffs the manufacturer header, walks the maker IFD, and hands each
// recognized subdirectory's byte range to the extraction engine
// (internal/subdir + internal/registry), then forwards every extracted tag
// to the caller's HandleTag. makerNoteOffset is the note's position
// relative to the EXIF/TIFF base, needed to rebase base-relative value
// offsets into the note blob.
func (e *metaDecoderEXIF) decodeMakerNotes(data []byte, makerNoteOffset int64) error {
	manufacturer := canonicalManufacturer(e.cameraMake)
	if manufacturer == "" {
		e.opts.Warnf("maker notes: unrecognized manufacturer %q", e.cameraMake)
		return nil
	}
	tables := makerSubdirTables[manufacturer]
	if len(tables) == 0 {
		return nil
	}

	layout, ok := makerNoteHeader(data, makerNoteOffset, e.byteOrder)
	if !ok {
		e.opts.Warnf("maker notes: unsupported %s maker note layout", manufacturer)
		return nil
	}

	if manufacturer == "Sony" {
		corruption := sony.DetectIDCCorruption(e.cameraSoftware, e.cameraModel, e.tag014aValue(), e.has014a)
		if corruption != sony.NoCorruption {
			e.opts.Warnf("maker notes: Sony IDC corruption detected; recovering tag offsets")
			layout.recoverOffset = func(tagID uint16, offset int64) int64 {
				return sony.RecoverIDCOffset(corruption, tagID, offset)
			}
		}
	}

	entries := parseMakerIFD(data, layout, e.opts.Warnf)
	if len(entries) == 0 {
		return nil
	}

	parentTags := map[string]tagval.Value{}
	for _, entry := range entries {
		name, ok := makerParentTags[manufacturer][entry.tagID]
		if !ok || entry.data == nil {
			continue
		}
		parentTags[name] = decodeMakerScalar(entry, layout.byteOrder)
	}

	cfg := registry.DefaultConfig()
	cfg.Strict = e.opts.Strict
	cfg.KeepBinaryBlobs = e.opts.KeepBinaryBlobs
	if e.opts.MaxRecursionDepth > 0 {
		cfg.MaxDepth = e.opts.MaxRecursionDepth
	}

	convReg := registry.NewDefaultConversionRegistry()
	canonPipeline := convert.NewPipeline(convReg, "Canon", e.opts.Warnf)
	panasonicPipeline := convert.NewPipeline(convReg, "PanasonicRaw", e.opts.Warnf)
	reg := registry.NewDefaultRegistry(cfg, canonPipeline, panasonicPipeline)
	driver := subdir.NewDriver(reg, cfg.MaxDepth)

	reader := state.New(data, layout.byteOrder)
	reader.Strict = cfg.Strict
	reader.SetWarnf(e.opts.Warnf)

	baseCtx := proc.NewContext(e.opts.ImageFormat.String(), "MakerNotes")
	baseCtx = baseCtx.WithCameraInfo(manufacturer, e.cameraModel)
	baseCtx.ByteOrder = layout.byteOrder
	baseCtx.ParentTags = parentTags
	baseCtx.BaseOffset = makerNoteOffset
	baseCtx.Strict = cfg.Strict

	var walkEntries []subdir.Entry
	for _, entry := range entries {
		cands := tables[entry.tagID]
		if len(cands) == 0 || entry.data == nil {
			continue
		}
		table := selectSubdirTable(cands, entry, e.cameraMake, e.cameraModel)
		if table == "" {
			continue
		}
		tagID := entry.tagID
		child := baseCtx.DeriveForNested(table, &tagID)
		child.DataOffset = entry.offset
		size := len(entry.data)
		child.DataSize = &size
		walkEntries = append(walkEntries, subdir.Entry{Context: child, Data: entry.data})
	}
	if len(walkEntries) == 0 {
		return nil
	}

	driver.Walk(reader, walkEntries)

	if cfg.Strict && len(reader.Errors) > 0 {
		return reader.Errors[0]
	}

	all := reader.All()
	keys := make([]state.Key, 0, len(all))
	for k := range all {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Namespace != keys[j].Namespace {
			return keys[i].Namespace < keys[j].Namespace
		}
		return keys[i].Name < keys[j].Name
	})

	// PrintConv runs against the merged values here rather than inside the
	// processors, since ProcessorResult carries logical values only.
	pipelines := map[string]*convert.Pipeline{
		"Canon":        canonPipeline,
		"PanasonicRaw": panasonicPipeline,
	}

	for _, k := range keys {
		entry := all[k]
		printed := entry.Print
		if p, ok := pipelines[k.Namespace]; ok {
			printed = p.PrintConv(k.Name, entry.Value)
		}
		tagInfo := TagInfo{
			Source:    MakerNotes,
			Tag:       k.Name,
			Namespace: k.Namespace,
			Value:     tagValueToAny(entry.Value),
			Group1:    entry.Group1,
			Print:     printed,
		}
		if !e.opts.ShouldHandleTag(tagInfo) {
			continue
		}
		if err := e.opts.HandleTag(tagInfo); err != nil {
			return err
		}
	}
	return nil
}
