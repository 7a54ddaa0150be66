// Package registry implements the processor registry (spec.md §4.H):
// storage of processors by Key, and selection of the best processor for a
// Context via dispatch rules (internal/dispatch) then raw capability
// ranking.
package registry

import (
	"sort"
	"sync"

	"github.com/finchlabs/pixmeta/internal/dispatch"
	"github.com/finchlabs/pixmeta/internal/proc"
)

// Config carries the runtime-visible knobs of spec.md §6: maximum recursion
// depth, whether to retain intermediate binary blobs, and the strict flag
// that escalates warnings to errors.
type Config struct {
	MaxDepth        int
	KeepBinaryBlobs bool
	Strict          bool
}

// DefaultConfig matches spec.md §6's stated defaults.
func DefaultConfig() Config {
	return Config{MaxDepth: 16}
}

// Registry stores every registered processor and the dispatch engine used
// to pick among them. Built once via New/Register and read-only thereafter
// (sync.RWMutex guards registration only; Select never mutates state),
// mirroring the original implementation's process-wide PROCESSOR_REGISTRY
// global built with LazyLock.
type Registry struct {
	mu         sync.RWMutex
	processors map[proc.Key]proc.BinaryDataProcessor
	engine     *dispatch.Engine
	fallback   []proc.Key
	Config     Config
}

func New(engine *dispatch.Engine, config Config) *Registry {
	return &Registry{
		processors: map[proc.Key]proc.BinaryDataProcessor{},
		engine:     engine,
		Config:     config,
	}
}

// Register adds a processor under key. Intended to be called during
// process startup only (see package doc); Register after concurrent Select
// calls have begun is not supported.
func (r *Registry) Register(key proc.Key, p proc.BinaryDataProcessor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.processors[key] = p
}

// SetFallbackChain configures the ordered list of processor Keys tried when
// no candidate is compatible at all (spec.md §4.G step 4).
func (r *Registry) SetFallbackChain(keys ...proc.Key) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = keys
}

// Select implements the 4-step selection algorithm of spec.md §4.G.
func (r *Registry) Select(ctx proc.Context) (proc.Key, proc.BinaryDataProcessor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	// Step 1: rank every registered processor's capability, keep >= Fallback.
	var candidates []dispatch.Candidate
	for key, p := range r.processors {
		cap := p.CanProcess(ctx)
		if cap.IsCompatible() {
			candidates = append(candidates, dispatch.Candidate{Key: key, Processor: p, Capability: cap})
		}
	}

	// Step 2: dispatch rules, in descending priority, first decision wins.
	if r.engine != nil && len(candidates) > 0 {
		if c, ok := r.engine.Select(candidates, ctx); ok {
			return c.Key, c.Processor, true
		}
	}

	// Step 3: sort by (Capability desc, key lexicographic), pick the head.
	if len(candidates) > 0 {
		sort.SliceStable(candidates, func(i, j int) bool {
			if candidates[i].Capability != candidates[j].Capability {
				return candidates[i].Capability > candidates[j].Capability
			}
			return candidates[i].Key.String() < candidates[j].Key.String()
		})
		head := candidates[0]
		return head.Key, head.Processor, true
	}

	// Step 4: fallback chain, first processor that exists in the registry.
	for _, key := range r.fallback {
		if p, ok := r.processors[key]; ok {
			return key, p, true
		}
	}

	return proc.Key{}, nil, false
}

// Get looks up a processor directly by Key, bypassing dispatch — used when
// a ProcessorResult.NextProcessors entry already names an exact Key.
func (r *Registry) Get(key proc.Key) (proc.BinaryDataProcessor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.processors[key]
	return p, ok
}

// Explain lists every registered processor with its Capability for ctx,
// Incompatible ones included, sorted the way Select's step 3 sorts, for
// debugging processor-dispatch decisions. Dispatch rules are not evaluated
// and the fallback chain is not consulted.
func (r *Registry) Explain(ctx proc.Context) []dispatch.Candidate {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var candidates []dispatch.Candidate
	for key, p := range r.processors {
		candidates = append(candidates, dispatch.Candidate{Key: key, Processor: p, Capability: p.CanProcess(ctx)})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Capability != candidates[j].Capability {
			return candidates[i].Capability > candidates[j].Capability
		}
		return candidates[i].Key.String() < candidates[j].Key.String()
	})
	return candidates
}
