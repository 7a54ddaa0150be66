// Package convert implements the value/print conversion pipeline (spec.md
// §4.D): ValueConv (raw → logical) then PrintConv (logical → human string),
// each resolved through a registered function, a compiled small arithmetic
// expression, a generated simple-enum lookup, or identity.
package convert

import "github.com/finchlabs/pixmeta/internal/tagval"

// ValueFunc is a registered ValueConv implementation, keyed by
// (modulePath, tagName) — e.g. ("EXIF", "GPSLatitude"). Grounded on the
// teacher's valueConverter func(valueConverterContext, any) any
// (metadecoder_exif.go's exifValueConverterMap), generalized to return an
// error instead of silently producing a zero value on failure.
type ValueFunc func(raw tagval.Value) (tagval.Value, error)

// PrintFunc is a registered PrintConv implementation.
type PrintFunc func(v tagval.Value) string

// SimpleEnum is a generated int->string PrintConv lookup table (the
// "shared fallback ... table-embedded simple enum" tier of spec.md §4.C).
type SimpleEnum map[int64]string

// Registry holds every generated/registered conversion for one or more
// modules (EXIF, Canon, Nikon, ...), keyed by (module, tagName). It is built
// once at startup and is read-only thereafter, per spec.md §5's shared
// resource policy.
type Registry struct {
	valueFuncs map[key]ValueFunc
	valueExprs map[key]string // compiled lazily; see arith.go
	printFuncs map[key]PrintFunc
	printExprs map[key]string
	enums      map[key]SimpleEnum
}

type key struct {
	module, tag string
}

func NewRegistry() *Registry {
	return &Registry{
		valueFuncs: map[key]ValueFunc{},
		valueExprs: map[key]string{},
		printFuncs: map[key]PrintFunc{},
		printExprs: map[key]string{},
		enums:      map[key]SimpleEnum{},
	}
}

func (r *Registry) RegisterValueFunc(module, tag string, fn ValueFunc) {
	r.valueFuncs[key{module, tag}] = fn
}

func (r *Registry) RegisterValueExpr(module, tag, expr string) {
	r.valueExprs[key{module, tag}] = expr
}

func (r *Registry) RegisterPrintFunc(module, tag string, fn PrintFunc) {
	r.printFuncs[key{module, tag}] = fn
}

func (r *Registry) RegisterPrintExpr(module, tag, expr string) {
	r.printExprs[key{module, tag}] = expr
}

func (r *Registry) RegisterEnum(module, tag string, enum SimpleEnum) {
	r.enums[key{module, tag}] = enum
}
