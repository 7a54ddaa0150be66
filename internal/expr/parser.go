package expr

import (
	"strconv"
	"strings"

	"github.com/finchlabs/pixmeta/internal/metaerr"
	"github.com/finchlabs/pixmeta/internal/tagval"
)

// Parse parses an ExifTool condition string into an expression tree.
// Binding, loosest to tightest, is: or; and; unary not/!; the comparison,
// equality, and regex operators; parentheses group. The splits below run
// loosest-first ("or" before "and" before "not"), so each operator's
// operands end up as tightly bound as possible — "not A or B" parses as
// (not A) or B, and a regex containing "==" inside its pattern isn't
// mistaken for an equality condition because the regex forms are tried
// before the equality forms.
func Parse(s string) (*Node, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, metaerr.Newf(metaerr.ParseError, s, "empty expression")
	}

	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") && parensBalanced(s[1:len(s)-1]) {
		return Parse(s[1 : len(s)-1])
	}

	if idx := findOperatorOutsideParensAndQuotes(s, " or "); idx >= 0 {
		left, err := Parse(s[:idx])
		if err != nil {
			return nil, err
		}
		right, err := Parse(s[idx+len(" or "):])
		if err != nil {
			return nil, err
		}
		return or(left, right), nil
	}

	if idx := findOperatorOutsideParensAndQuotes(s, " and "); idx >= 0 {
		left, err := Parse(s[:idx])
		if err != nil {
			return nil, err
		}
		right, err := Parse(s[idx+len(" and "):])
		if err != nil {
			return nil, err
		}
		return and(left, right), nil
	}

	if rest, ok := strings.CutPrefix(s, "not "); ok {
		inner, err := Parse(rest)
		if err != nil {
			return nil, err
		}
		return not(inner), nil
	}
	if rest, ok := strings.CutPrefix(s, "!"); ok {
		inner, err := Parse(rest)
		if err != nil {
			return nil, err
		}
		return not(inner), nil
	}

	if strings.HasPrefix(s, "exists(") && strings.HasSuffix(s, ")") {
		field := s[len("exists(") : len(s)-1]
		field = strings.Trim(field, "$\"'")
		return exists(field), nil
	}

	if strings.Contains(s, "$$valPt") && strings.Contains(s, "=~") {
		pattern, err := extractSlashPattern(s)
		if err != nil {
			return nil, err
		}
		return &Node{Kind: KindDataPattern, Field: "valPt", Pattern: pattern}, nil
	}

	if strings.Contains(s, "=~") || strings.Contains(s, "!~") {
		return parseRegexCondition(s)
	}

	if op := findComparisonOperator(s); op != "" {
		return parseComparison(s, op)
	}

	if strings.Contains(s, "==") || strings.Contains(s, " eq ") || strings.Contains(s, "!=") || strings.Contains(s, " ne ") {
		return parseEquality(s)
	}

	if strings.Contains(s, "0x") || strings.Contains(s, "0X") {
		if strings.Contains(s, "==") {
			return parseEquality(s)
		}
	}

	return nil, metaerr.Newf(metaerr.ParseError, s, "unsupported condition expression")
}

func parensBalanced(s string) bool {
	depth := 0
	for _, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		}
		if depth < 0 {
			return false
		}
	}
	return depth == 0
}

// findOperatorOutsideParensAndQuotes finds the first occurrence of op that is
// not nested inside parentheses or a quoted string.
func findOperatorOutsideParensAndQuotes(s, op string) int {
	depth := 0
	var quote rune
	for i := 0; i < len(s); i++ {
		c := rune(s[i])
		if quote == 0 && (c == '"' || c == '\'') {
			quote = c
			continue
		}
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '(':
			depth++
		case ')':
			depth--
		default:
			if depth == 0 && i+len(op) <= len(s) && s[i:i+len(op)] == op {
				return i
			}
		}
	}
	return -1
}

func extractSlashPattern(s string) (string, error) {
	first := strings.Index(s, "/")
	last := strings.LastIndex(s, "/")
	if first < 0 || last <= first {
		return "", metaerr.Newf(metaerr.ParseError, s, "invalid data pattern condition")
	}
	return s[first+1 : last], nil
}

func parseRegexCondition(s string) (*Node, error) {
	negative := strings.Contains(s, "!~")
	op := "=~"
	if negative {
		op = "!~"
	}

	idx := strings.Index(s, op)
	if idx < 0 {
		return nil, metaerr.Newf(metaerr.ParseError, s, "invalid regex condition")
	}
	field := fieldName(s[:idx])
	patternPart := strings.TrimSpace(s[idx+len(op):])
	pattern := strings.Trim(patternPart, "/")
	node := &Node{Kind: KindRegexMatch, Field: field, Pattern: pattern}
	if negative {
		return not(node), nil
	}
	return node, nil
}

// fieldName normalizes a variable reference — "$name", "$$self{Name}", or
// "$$name" — to the bare field name used for Context lookups.
func fieldName(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "$$self{") && strings.HasSuffix(raw, "}") {
		return raw[len("$$self{") : len(raw)-1]
	}
	return strings.TrimLeft(raw, "$")
}

func findComparisonOperator(s string) string {
	for _, op := range []string{">=", "<=", ">", "<"} {
		if strings.Contains(s, op) {
			return op
		}
	}
	return ""
}

func parseComparison(s, op string) (*Node, error) {
	idx := strings.Index(s, op)
	if idx < 0 {
		return nil, metaerr.Newf(metaerr.ParseError, s, "invalid comparison condition")
	}
	field := fieldName(s[:idx])
	value, err := parseValue(s[idx+len(op):])
	if err != nil {
		return nil, err
	}

	var kind Kind
	switch op {
	case ">":
		kind = KindGreaterThan
	case ">=":
		kind = KindGreaterThanOrEqual
	case "<":
		kind = KindLessThan
	case "<=":
		kind = KindLessThanOrEqual
	}
	return &Node{Kind: kind, Field: field, Value: value}, nil
}

func parseEquality(s string) (*Node, error) {
	var op string
	var negative bool
	var stringCompare bool

	switch {
	case strings.Contains(s, "!="):
		op, negative, stringCompare = "!=", true, false
	case strings.Contains(s, " ne "):
		op, negative, stringCompare = " ne ", true, true
	case strings.Contains(s, "=="):
		op, negative, stringCompare = "==", false, false
	case strings.Contains(s, " eq "):
		op, negative, stringCompare = " eq ", false, true
	default:
		return nil, metaerr.Newf(metaerr.ParseError, s, "no equality operator found")
	}

	idx := strings.Index(s, op)
	if idx < 0 {
		return nil, metaerr.Newf(metaerr.ParseError, s, "invalid equality condition")
	}
	field := fieldName(s[:idx])
	value, err := parseValue(s[idx+len(op):])
	if err != nil {
		return nil, err
	}

	node := &Node{Kind: KindEquals, Field: field, Value: value, StringCompare: stringCompare}
	if negative {
		return not(node), nil
	}
	return node, nil
}

// parseValue parses an equality/comparison right-hand side the way
// ExifTool condition literals are written: quoted strings, 0x hex, decimal
// int, float, falling back to a bare string.
func parseValue(s string) (tagval.Value, error) {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "\"'")

	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		if n, err := strconv.ParseUint(s[2:], 16, 32); err == nil {
			return tagval.NewU32(uint32(n)), nil
		}
	}
	if n, err := strconv.ParseInt(s, 10, 32); err == nil {
		return tagval.NewI32(int32(n)), nil
	}
	if n, err := strconv.ParseUint(s, 10, 32); err == nil {
		return tagval.NewU32(uint32(n)), nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return tagval.NewF64(f), nil
	}
	return tagval.NewString(s), nil
}
