// Package dispatch implements the dispatch-rule engine (spec.md §4.G): rules
// that narrow or pick among compatible processors for a Context, evaluated
// before raw capability ranking. This lets a Canon-specific rule pick the
// MkII serial-data variant for an EOS R5 even though a generic Canon
// processor would also report a compatible (if lower) capability.
package dispatch

import (
	"sort"

	"github.com/finchlabs/pixmeta/internal/proc"
)

// Candidate pairs a processor Key with its reported Capability, the input
// every Rule chooses among.
type Candidate struct {
	Key        proc.Key
	Processor  proc.BinaryDataProcessor
	Capability proc.Capability
}

// Rule is one dispatch rule — spec.md §4.G's AppliesTo/Select pair, plus a
// Priority used to order rules when more than one applies to the same
// Context.
type Rule interface {
	// Name identifies the rule for debugging/Explain output.
	Name() string
	// Priority orders rules when more than one AppliesTo a Context; rules
	// are tried in descending Priority order, first non-nil Select wins.
	Priority() int
	// AppliesTo reports whether this rule has an opinion about ctx at all.
	AppliesTo(ctx proc.Context) bool
	// Select picks one candidate from candidates for ctx, or returns
	// ok=false to defer to the next rule / the fallback ranking.
	Select(candidates []Candidate, ctx proc.Context) (Candidate, bool)
}

// Engine holds the standard rule set plus any caller-registered rules,
// sorted by descending priority once at construction — the rule set is
// read-only after New, per spec.md §5's shared resource policy.
type Engine struct {
	rules []Rule
}

func New(rules ...Rule) *Engine {
	sorted := append([]Rule{}, rules...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority() > sorted[j].Priority()
	})
	return &Engine{rules: sorted}
}

// Select runs the rule chain (spec.md §4.G step 2): each applicable rule is
// asked to select, in descending priority order, and the first non-nil
// answer wins. ok=false means no rule made a decision and the caller should
// fall back to capability-ranked selection (step 3).
func (e *Engine) Select(candidates []Candidate, ctx proc.Context) (Candidate, bool) {
	for _, rule := range e.rules {
		if !rule.AppliesTo(ctx) {
			continue
		}
		if c, ok := rule.Select(candidates, ctx); ok {
			return c, true
		}
	}
	return Candidate{}, false
}

// Rules exposes the sorted rule set, for registry.Registry.Explain.
func (e *Engine) Rules() []Rule { return e.rules }
