// Package tagval implements the TagValue sum type shared by every stage of
// the extraction engine: binary-data decoding, the conversion pipeline, the
// expression evaluator, and the XMP reader all produce and consume Values.
package tagval

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind discriminates the variant held by a Value.
type Kind int

const (
	Empty Kind = iota
	U8
	I8
	U16
	I16
	U32
	I32
	U64
	I64
	F32
	F64
	Rational
	SRational
	String
	Bytes
	U8Array
	U16Array
	U32Array
	F64Array
	Object
	Array
)

func (k Kind) String() string {
	switch k {
	case Empty:
		return "Empty"
	case U8:
		return "U8"
	case I8:
		return "I8"
	case U16:
		return "U16"
	case I16:
		return "I16"
	case U32:
		return "U32"
	case I32:
		return "I32"
	case U64:
		return "U64"
	case I64:
		return "I64"
	case F32:
		return "F32"
	case F64:
		return "F64"
	case Rational:
		return "Rational"
	case SRational:
		return "SRational"
	case String:
		return "String"
	case Bytes:
		return "Bytes"
	case U8Array:
		return "U8Array"
	case U16Array:
		return "U16Array"
	case U32Array:
		return "U32Array"
	case F64Array:
		return "F64Array"
	case Object:
		return "Object"
	case Array:
		return "Array"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Rat is a rational pair, numerator over denominator. It is kept as a plain
// struct (rather than the teacher's generic rat[T]) so Value can hold both
// signed and unsigned rationals behind one field without type parameters
// leaking into the sum type.
type Rat struct {
	Num, Den int64
}

func (r Rat) Float64() float64 {
	if r.Den == 0 {
		return math.NaN()
	}
	return float64(r.Num) / float64(r.Den)
}

func (r Rat) String() string {
	if r.Den == 1 {
		return strconv.FormatInt(r.Num, 10)
	}
	return fmt.Sprintf("%d/%d", r.Num, r.Den)
}

// Value is a tagged union over every shape a decoded or converted tag value
// can take. Only the field matching Kind is meaningful.
type Value struct {
	Kind Kind

	u   uint64
	i   int64
	f   float64
	rat Rat
	str string
	by  []byte

	u8a  []uint8
	u16a []uint16
	u32a []uint32
	f64a []float64

	obj map[string]Value
	arr []Value
}

func NewEmpty() Value { return Value{Kind: Empty} }

func NewU8(v uint8) Value   { return Value{Kind: U8, u: uint64(v)} }
func NewI8(v int8) Value    { return Value{Kind: I8, i: int64(v)} }
func NewU16(v uint16) Value { return Value{Kind: U16, u: uint64(v)} }
func NewI16(v int16) Value  { return Value{Kind: I16, i: int64(v)} }
func NewU32(v uint32) Value { return Value{Kind: U32, u: uint64(v)} }
func NewI32(v int32) Value  { return Value{Kind: I32, i: int64(v)} }
func NewU64(v uint64) Value { return Value{Kind: U64, u: v} }
func NewI64(v int64) Value  { return Value{Kind: I64, i: v} }
func NewF32(v float32) Value {
	return Value{Kind: F32, f: float64(v)}
}
func NewF64(v float64) Value { return Value{Kind: F64, f: v} }

func NewRational(num, den uint32) Value {
	return Value{Kind: Rational, rat: Rat{Num: int64(num), Den: int64(den)}}
}

func NewSRational(num, den int32) Value {
	return Value{Kind: SRational, rat: Rat{Num: int64(num), Den: int64(den)}}
}

func NewString(v string) Value { return Value{Kind: String, str: v} }
func NewBytes(v []byte) Value  { return Value{Kind: Bytes, by: v} }

func NewU8Array(v []uint8) Value   { return Value{Kind: U8Array, u8a: v} }
func NewU16Array(v []uint16) Value { return Value{Kind: U16Array, u16a: v} }
func NewU32Array(v []uint32) Value { return Value{Kind: U32Array, u32a: v} }
func NewF64Array(v []float64) Value {
	return Value{Kind: F64Array, f64a: v}
}

func NewObject(v map[string]Value) Value { return Value{Kind: Object, obj: v} }
func NewArray(v []Value) Value           { return Value{Kind: Array, arr: v} }

// IsEmpty reports whether v is the Empty variant.
func (v Value) IsEmpty() bool { return v.Kind == Empty }

// AsBytes returns the raw bytes for the Bytes variant, nil otherwise.
func (v Value) AsBytes() ([]byte, bool) {
	if v.Kind != Bytes {
		return nil, false
	}
	return v.by, true
}

// AsRat returns the rational pair for Rational/SRational, false otherwise.
func (v Value) AsRat() (Rat, bool) {
	if v.Kind != Rational && v.Kind != SRational {
		return Rat{}, false
	}
	return v.rat, true
}

// AsObject returns the map for the Object variant.
func (v Value) AsObject() (map[string]Value, bool) {
	if v.Kind != Object {
		return nil, false
	}
	return v.obj, true
}

// AsArray returns the slice for the Array variant.
func (v Value) AsArray() ([]Value, bool) {
	if v.Kind != Array {
		return nil, false
	}
	return v.arr, true
}

// AsU32Array returns the slice for the U32Array variant.
func (v Value) AsU32Array() ([]uint32, bool) {
	if v.Kind != U32Array {
		return nil, false
	}
	return v.u32a, true
}

// IsNumeric reports whether v participates in numeric widening (§4.B).
func (v Value) IsNumeric() bool {
	switch v.Kind {
	case U8, I8, U16, I16, U32, I32, U64, I64, F32, F64, Rational, SRational:
		return true
	default:
		return false
	}
}

// Float64 widens v to a float64 for numeric comparison. ok is false for
// variants with no numeric interpretation.
func (v Value) Float64() (float64, bool) {
	switch v.Kind {
	case U8, U16, U32, U64:
		return float64(v.u), true
	case I8, I16, I32, I64:
		return float64(v.i), true
	case F32, F64:
		return v.f, true
	case Rational, SRational:
		return v.rat.Float64(), true
	case String:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.str), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// String renders v the way ExifTool's left-hand-side stringification does:
// numeric kinds in decimal, rationals as "n/d", Bytes as their raw bytes
// (not checked or repaired as UTF-8).
func (v Value) String() string {
	switch v.Kind {
	case Empty:
		return ""
	case U8, U16, U32, U64:
		return strconv.FormatUint(v.u, 10)
	case I8, I16, I32, I64:
		return strconv.FormatInt(v.i, 10)
	case F32, F64:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case Rational, SRational:
		return v.rat.String()
	case String:
		return v.str
	case Bytes:
		return string(v.by)
	case U8Array:
		return joinUint(uint8sToUint64s(v.u8a))
	case U16Array:
		return joinUint(uint16sToUint64s(v.u16a))
	case U32Array:
		return joinUint(uint32sToUint64s(v.u32a))
	case F64Array:
		parts := make([]string, len(v.f64a))
		for i, f := range v.f64a {
			parts[i] = strconv.FormatFloat(f, 'g', -1, 64)
		}
		return strings.Join(parts, " ")
	case Object:
		if def, ok := v.obj["x-default"]; ok {
			return def.String()
		}
		return fmt.Sprintf("%v", v.obj)
	case Array:
		parts := make([]string, len(v.arr))
		for i, e := range v.arr {
			parts[i] = e.String()
		}
		return strings.Join(parts, ", ")
	default:
		return ""
	}
}

func joinUint(vs []uint64) string {
	parts := make([]string, len(vs))
	for i, u := range vs {
		parts[i] = strconv.FormatUint(u, 10)
	}
	return strings.Join(parts, " ")
}

func uint8sToUint64s(in []uint8) []uint64 {
	out := make([]uint64, len(in))
	for i, v := range in {
		out[i] = uint64(v)
	}
	return out
}

func uint16sToUint64s(in []uint16) []uint64 {
	out := make([]uint64, len(in))
	for i, v := range in {
		out[i] = uint64(v)
	}
	return out
}

func uint32sToUint64s(in []uint32) []uint64 {
	out := make([]uint64, len(in))
	for i, v := range in {
		out[i] = uint64(v)
	}
	return out
}
