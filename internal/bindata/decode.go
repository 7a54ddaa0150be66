package bindata

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"github.com/finchlabs/pixmeta/internal/tagval"
)

// Entry is one decoded (and converted) table field, ready for the caller to
// fold into a Reader.
type Entry struct {
	Name         string
	Group1       string
	Raw          tagval.Value
	Value        tagval.Value
	Print        string
	Subdirectory *Subdirectory
}

// Converter pipes a raw decoded value through the ValueConv/PrintConv
// pipeline (internal/convert). Decode depends only on this interface, not on
// internal/convert itself, so the two packages don't cycle.
type Converter interface {
	Convert(tagName string, raw tagval.Value) (value tagval.Value, print string)
}

// identityConverter is used when the caller has no pipeline to run — value
// and print both default to the raw decoded value's natural string form.
type identityConverter struct{}

func (identityConverter) Convert(_ string, raw tagval.Value) (tagval.Value, string) {
	return raw, raw.String()
}

// Decode walks table against data in the given byte order, emitting one
// Entry per in-bounds field. Offsets are computed as
// (index - FirstEntry) * sizeof(format). A negative result counts from the
// end of data (ExifTool's "negative offset" convention); a field whose
// offset is still negative after that, or whose bytes run past len(data),
// is skipped with a warning instead of erroring the whole table, per the
// engine's bounds-skip semantics (spec.md §4.C).
func Decode(data []byte, order binary.ByteOrder, table *Table, conv Converter, warnf func(string, ...any)) []Entry {
	if conv == nil {
		conv = identityConverter{}
	}
	if warnf == nil {
		warnf = func(string, ...any) {}
	}

	var entries []Entry
	for index, field := range table.Tags {
		format := table.fieldFormat(field)
		count := field.Count
		if count <= 0 {
			count = 1
		}

		elemSize := format.ElemSize()
		size := elemSize * count

		offset := int64(index-table.FirstEntry) * int64(elemSize)
		if format == StringN {
			offset = int64(index-table.FirstEntry) * int64(count)
			size = count
		}

		if offset < 0 {
			offset += int64(len(data))
		}
		if offset < 0 || offset+int64(size) > int64(len(data)) {
			warnf("%s: offset %d (size %d) out of bounds for %d-byte buffer", field.Name, offset, size, len(data))
			continue
		}

		raw, err := decodeField(data[offset:offset+int64(size)], order, format, count)
		if err != nil {
			warnf("%s: %v", field.Name, err)
			continue
		}

		value, print := conv.Convert(field.Name, raw)
		entries = append(entries, Entry{
			Name:         field.Name,
			Group1:       field.Group1,
			Raw:          raw,
			Value:        value,
			Print:        print,
			Subdirectory: field.Subdirectory,
		})
	}
	return entries
}

// trimStringField cuts a fixed-width string field at its first NUL and
// trims surrounding whitespace. Bytes that are not valid UTF-8 are kept
// as-is; no replacement-character decoding is done.
func trimStringField(b []byte) string {
	s := string(b)
	if i := strings.IndexByte(s, 0); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

func decodeField(b []byte, order binary.ByteOrder, format Format, count int) (tagval.Value, error) {
	switch format {
	case Int8U:
		if count == 1 {
			return tagval.NewU8(b[0]), nil
		}
		return tagval.NewU8Array(append([]byte(nil), b...)), nil

	case Int8S:
		if count == 1 {
			return tagval.NewI8(int8(b[0])), nil
		}
		out := make([]tagval.Value, count)
		for i := range out {
			out[i] = tagval.NewI8(int8(b[i]))
		}
		return tagval.NewArray(out), nil

	case Int16U:
		out := make([]uint16, count)
		for i := range out {
			out[i] = order.Uint16(b[i*2:])
		}
		if count == 1 {
			return tagval.NewU16(out[0]), nil
		}
		return tagval.NewU16Array(out), nil

	case Int16S:
		if count == 1 {
			return tagval.NewI16(int16(order.Uint16(b))), nil
		}
		out := make([]tagval.Value, count)
		for i := range out {
			out[i] = tagval.NewI16(int16(order.Uint16(b[i*2:])))
		}
		return tagval.NewArray(out), nil

	case Int32U:
		out := make([]uint32, count)
		for i := range out {
			out[i] = order.Uint32(b[i*4:])
		}
		if count == 1 {
			return tagval.NewU32(out[0]), nil
		}
		return tagval.NewU32Array(out), nil

	case Int32S:
		out := make([]int32, count)
		for i := range out {
			out[i] = int32(order.Uint32(b[i*4:]))
		}
		if count == 1 {
			return tagval.NewI32(out[0]), nil
		}
		vals := make([]tagval.Value, count)
		for i, v := range out {
			vals[i] = tagval.NewI32(v)
		}
		return tagval.NewArray(vals), nil

	case Float32:
		out := make([]float64, count)
		for i := range out {
			bits := order.Uint32(b[i*4:])
			out[i] = float64(math.Float32frombits(bits))
		}
		if count == 1 {
			return tagval.NewF64(out[0]), nil
		}
		return tagval.NewF64Array(out), nil

	case Float64:
		out := make([]float64, count)
		for i := range out {
			bits := order.Uint64(b[i*8:])
			out[i] = math.Float64frombits(bits)
		}
		if count == 1 {
			return tagval.NewF64(out[0]), nil
		}
		return tagval.NewF64Array(out), nil

	case StringN:
		return tagval.NewString(trimStringField(b)), nil

	default:
		return tagval.Value{}, fmt.Errorf("unknown format %d", format)
	}
}
