package proc

import (
	"fmt"

	"github.com/finchlabs/pixmeta/internal/tagval"
)

// Key identifies a registered processor by (namespace, name, variant) —
// spec.md §3's ProcessorKey. Two processors are distinct iff their keys
// differ, including in Variant (e.g. Canon SerialData vs SerialData/MkII).
type Key struct {
	Namespace string
	Name      string
	Variant   string
}

func (k Key) String() string {
	s := k.Namespace + "::" + k.Name
	if k.Variant != "" {
		s += "/" + k.Variant
	}
	return s
}

// NextProcessor pairs a processor Key with the Context it should run under,
// the unit of ProcessorResult.NextProcessors (§4.F).
type NextProcessor struct {
	Key     Key
	Context Context
}

// Result is everything a processor produces from one process_data call —
// spec.md §4.F's ProcessorResult.
type Result struct {
	ExtractedTags  map[string]tagval.Value
	Warnings       []string
	NextProcessors []NextProcessor
}

func NewResult() *Result {
	return &Result{ExtractedTags: map[string]tagval.Value{}}
}

func (r *Result) AddTag(name string, v tagval.Value) {
	if r.ExtractedTags == nil {
		r.ExtractedTags = map[string]tagval.Value{}
	}
	r.ExtractedTags[name] = v
}

func (r *Result) AddWarning(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

func (r *Result) AddNestedProcessor(key Key, ctx Context) {
	r.NextProcessors = append(r.NextProcessors, NextProcessor{Key: key, Context: ctx})
}

// Metadata describes a processor for introspection/debugging — spec.md
// §4.F's ProcessorMetadata, ported with the original implementation's
// builder-method style (traits.rs).
type Metadata struct {
	Name                  string
	Description           string
	SupportedManufacturers []string
	RequiredContext       []string
	OptionalContext       []string
	ExampleConditions     []string
}

func NewMetadata(name, description string) Metadata {
	return Metadata{Name: name, Description: description}
}

func (m Metadata) WithManufacturers(names ...string) Metadata {
	m.SupportedManufacturers = append(m.SupportedManufacturers, names...)
	return m
}

func (m Metadata) WithRequiredContext(fields ...string) Metadata {
	m.RequiredContext = append(m.RequiredContext, fields...)
	return m
}

func (m Metadata) WithOptionalContext(fields ...string) Metadata {
	m.OptionalContext = append(m.OptionalContext, fields...)
	return m
}

func (m Metadata) WithExampleConditions(conditions ...string) Metadata {
	m.ExampleConditions = append(m.ExampleConditions, conditions...)
	return m
}

// BinaryDataProcessor is the narrow trait (spec.md §4.F) every concrete
// manufacturer processor implements. CanProcess must be pure and cheap;
// ProcessData may do real work but must not mutate anything outside the
// Result it returns (no writes to a shared Reader, no global state) —
// callers fold the Result into state.Reader themselves.
type BinaryDataProcessor interface {
	CanProcess(ctx Context) Capability
	ProcessData(data []byte, ctx Context) (*Result, error)
	Metadata() Metadata
}
