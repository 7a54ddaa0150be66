package expr

import "github.com/finchlabs/pixmeta/internal/tagval"

// SubdirContext is the condition-evaluation carrier used when choosing
// between subdirectory variant tables: it binds $$valPt to the candidate
// data, $$self{Make}/$$self{Model} to the camera info, and $count/$format/
// $formatVersion to the parent IFD entry's shape. Fields left nil evaluate
// as "not available", which Eval reports as MissingContext rather than a
// clean false.
type SubdirContext struct {
	ValPt []byte

	Make  *string
	Model *string

	FormatName *string
	CountVal   *int
	Version    *string

	// Metadata holds any additional tag values a condition may reference by
	// name (e.g. previously extracted sibling tags).
	Metadata map[string]tagval.Value
}

func (c *SubdirContext) Lookup(name string) (tagval.Value, bool) {
	switch name {
	case "Make":
		if c.Make != nil {
			return tagval.NewString(*c.Make), true
		}
		return tagval.Value{}, false
	case "Model":
		if c.Model != nil {
			return tagval.NewString(*c.Model), true
		}
		return tagval.Value{}, false
	}
	v, ok := c.Metadata[name]
	return v, ok
}

func (c *SubdirContext) ValPtr() ([]byte, bool) {
	if c.ValPt == nil {
		return nil, false
	}
	return c.ValPt, true
}

func (c *SubdirContext) Count() (int, bool) {
	if c.CountVal == nil {
		return 0, false
	}
	return *c.CountVal, true
}

func (c *SubdirContext) Format() (string, bool) {
	if c.FormatName == nil {
		return "", false
	}
	return *c.FormatName, true
}

func (c *SubdirContext) FormatVersion() (string, bool) {
	if c.Version == nil {
		return "", false
	}
	return *c.Version, true
}

// defaultEvaluator backs EvalCondition. Conditions are interpreted, not
// compiled (they run at most a handful of times per file), but the regexes
// they compile are cached for the process lifetime inside the Evaluator.
var defaultEvaluator = NewEvaluator()

// EvalCondition parses and evaluates a condition string in one step — the
// convenience entry point for dispatch-time variant selection, where the
// condition source is a table literal and the caller only needs the boolean.
func EvalCondition(condition string, ctx Context) (bool, error) {
	node, err := Parse(condition)
	if err != nil {
		return false, err
	}
	return defaultEvaluator.Eval(node, ctx)
}
