package tagval

import "math"

// epsilon is the tolerance used for F64 comparisons, matching the "|a-b| < ε"
// rule of spec §4.B.
const epsilon = 1e-9

// CompareNumeric implements the cross-variant numeric comparison rule: all
// integer variants widen to float64, String parses as a float and fails the
// comparison (ok=false) if it doesn't parse, and anything else that isn't
// IsNumeric or a parseable String returns ok=false. The returned cmp is -1,
// 0, or 1 as in strings.Compare / bytes.Compare, with F64-style semantics
// (values within epsilon compare equal) applied throughout since every
// operand is widened to float64 first.
func CompareNumeric(a, b Value) (cmp int, ok bool) {
	af, aok := a.Float64()
	bf, bok := b.Float64()
	if !aok || !bok {
		return 0, false
	}
	if math.Abs(af-bf) < epsilon {
		return 0, true
	}
	if af < bf {
		return -1, true
	}
	return 1, true
}

// CompareString implements ExifTool's `eq`/`ne` string comparison: both
// operands are stringified (never parsed as numbers) and compared
// byte-for-byte.
func CompareString(a, b Value) int {
	as, bs := a.String(), b.String()
	switch {
	case as < bs:
		return -1
	case as > bs:
		return 1
	default:
		return 0
	}
}

// Equal implements the `==` operator: numeric widening when both sides are
// numeric (or string operands that parse as numbers), otherwise a string
// comparison fallback so `==` against a non-numeric String still behaves
// sensibly instead of silently being false.
func Equal(a, b Value) bool {
	if cmp, ok := CompareNumeric(a, b); ok {
		return cmp == 0
	}
	return CompareString(a, b) == 0
}
