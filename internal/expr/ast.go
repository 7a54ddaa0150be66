// Package expr implements the ExifTool conditional-expression dialect used
// both for PrintConv/ValueConv selection (spec component B) and for
// subdirectory dispatch conditions (component E, which is B plus the
// $$valPt/$$self{}/$count/$format vocabulary). One AST and one evaluator
// serve both call sites; Context is the only thing that differs between
// them.
package expr

import "github.com/finchlabs/pixmeta/internal/tagval"

// Kind discriminates an expression node.
type Kind int

const (
	KindExists Kind = iota
	KindEquals
	KindGreaterThan
	KindGreaterThanOrEqual
	KindLessThan
	KindLessThanOrEqual
	KindRegexMatch
	KindDataPattern
	KindAnd
	KindOr
	KindNot
)

// Node is a single expression AST node. Only the fields relevant to Kind are
// populated; see the Kind* constants for which.
type Node struct {
	Kind Kind

	// Field holds the variable name for Exists/Equals/GreaterThan/.../RegexMatch.
	// It is the name as written after stripping "$"/"$$self{...}" syntax:
	// "Model", "count", "format", "formatVersion", "valPt", or an arbitrary
	// tag name.
	Field string

	// Value is the right-hand side literal for Equals/GreaterThan/....
	Value tagval.Value

	// StringCompare is true when Equals was spelled "eq"/"ne" (always a
	// string comparison) rather than "=="/"!=" (numeric-widening comparison
	// that falls back to string compare when either side cannot be read as a
	// number).
	StringCompare bool

	// Pattern is the regex source for RegexMatch/DataPattern.
	Pattern string

	// Children holds operands for And/Or; Child holds the single operand of Not.
	Children []*Node
	Child    *Node
}

func exists(field string) *Node { return &Node{Kind: KindExists, Field: field} }

func and(nodes ...*Node) *Node { return &Node{Kind: KindAnd, Children: nodes} }
func or(nodes ...*Node) *Node  { return &Node{Kind: KindOr, Children: nodes} }
func not(n *Node) *Node        { return &Node{Kind: KindNot, Child: n} }
