package convert

import (
	"strconv"
	"sync"

	"github.com/finchlabs/pixmeta/internal/tagval"
)

// Pipeline runs the two-stage ValueConv -> PrintConv conversion (spec.md
// §4.D) for one module's tags against a Registry. A Pipeline is safe for
// concurrent read-only use (the Registry it wraps is built once and never
// mutated after registration).
type Pipeline struct {
	reg    *Registry
	module string
	warnf  func(string, ...any)

	// compiled caches expression strings -> compiled arithOp so repeated
	// conversions of the same tag across many files don't recompile.
	// mu guards it.
	mu       sync.Mutex
	compiled map[string]*arithOp
}

func NewPipeline(reg *Registry, module string, warnf func(string, ...any)) *Pipeline {
	if warnf == nil {
		warnf = func(string, ...any) {}
	}
	return &Pipeline{reg: reg, module: module, warnf: warnf, compiled: map[string]*arithOp{}}
}

// ValueConv applies the raw-to-logical conversion for tagName. Resolution
// order, per the ValueConv-function-over-expression Open Question decision
// recorded in DESIGN.md: a registered function always wins over a
// registered expression when both exist for the same tag. On any failure
// the original raw value is preserved and a warning is emitted — ValueConv
// never discards data on error.
func (p *Pipeline) ValueConv(tagName string, raw tagval.Value) tagval.Value {
	k := key{p.module, tagName}

	if fn, ok := p.reg.valueFuncs[k]; ok {
		v, err := fn(raw)
		if err != nil {
			p.warnf("%s: ValueConv function failed: %v", tagName, err)
			return raw
		}
		return v
	}

	if expr, ok := p.reg.valueExprs[k]; ok {
		v, ok := p.evalArith(tagName, expr, raw)
		if !ok {
			return raw
		}
		return v
	}

	return raw
}

// PrintConv applies the logical-to-human conversion for tagName, following
// the three-tier lookup of spec.md §4.C: (i) tag-specific function, (ii)
// expression-based lookup, (iii) shared fallback (simple enum, else the
// value's default string form). PrintConv never fails fatally.
func (p *Pipeline) PrintConv(tagName string, logical tagval.Value) string {
	k := key{p.module, tagName}

	if fn, ok := p.reg.printFuncs[k]; ok {
		return fn(logical)
	}

	if expr, ok := p.reg.printExprs[k]; ok {
		if v, ok := p.evalArith(tagName, expr, logical); ok {
			return v.String()
		}
		return logical.String()
	}

	if enum, ok := p.reg.enums[k]; ok {
		if n, ok := asInt64(logical); ok {
			if s, ok := enum[n]; ok {
				return s
			}
		}
	}

	return logical.String()
}

// Convert runs both stages and returns (value, print), matching
// bindata.Converter so the binary-data interpreter can drive a Pipeline
// directly without depending on this package's types.
func (p *Pipeline) Convert(tagName string, raw tagval.Value) (tagval.Value, string) {
	v := p.ValueConv(tagName, raw)
	return v, p.PrintConv(tagName, v)
}

func (p *Pipeline) evalArith(tagName, expr string, input tagval.Value) (tagval.Value, bool) {
	p.mu.Lock()
	op, ok := p.compiled[expr]
	if !ok {
		compiled, err := CompileArith(expr)
		if err != nil {
			p.mu.Unlock()
			p.warnf("%s: bad arithmetic expression %q: %v", tagName, expr, err)
			return tagval.Value{}, false
		}
		p.compiled[expr] = compiled
		op = compiled
	}
	p.mu.Unlock()

	vals := compositeFloats(input)
	result, err := op.Eval(vals)
	if err != nil {
		p.warnf("%s: arithmetic expression error: %v", tagName, err)
		return tagval.Value{}, false
	}
	if isNaNOrInf(result) {
		p.warnf("%s: arithmetic expression produced an undefined value", tagName)
		return tagval.NewEmpty(), true
	}
	return tagval.NewF64(result), true
}

// compositeFloats widens a Value to the []float64 the arithmetic evaluator
// indexes with $val/$val[i]: scalars become a one-element slice, arrays
// widen element-wise.
func compositeFloats(v tagval.Value) []float64 {
	if f, ok := v.Float64(); ok {
		return []float64{f}
	}
	if arr, ok := v.AsArray(); ok {
		out := make([]float64, len(arr))
		for i, e := range arr {
			f, _ := e.Float64()
			out[i] = f
		}
		return out
	}
	return []float64{0}
}

func asInt64(v tagval.Value) (int64, bool) {
	f, ok := v.Float64()
	if !ok {
		return 0, false
	}
	return int64(f), true
}

func isNaNOrInf(f float64) bool {
	return f != f || f > 1e308 || f < -1e308
}

// ParseHexOrDecimal is a small helper shared by generated enum tables whose
// keys are written as ExifTool writes them ("0x10" or "16").
func ParseHexOrDecimal(s string) (int64, error) {
	if len(s) > 2 && (s[:2] == "0x" || s[:2] == "0X") {
		n, err := strconv.ParseInt(s[2:], 16, 64)
		return n, err
	}
	return strconv.ParseInt(s, 10, 64)
}
