package dispatch

import (
	"strings"

	"github.com/finchlabs/pixmeta/internal/proc"
)

// ManufacturerRule narrows selection to one manufacturer's namespace and
// encodes model/parameter-specific variant selection within it. A
// manufacturer rule whose condition fires but whose table is not in its own
// namespace returns ok=false, so standard EXIF directories are never
// hijacked by a maker rule — spec.md §4.G's explicit hijack-guard invariant.
type ManufacturerRule struct {
	// Manufacturer is the exact Make-string this rule governs (e.g. "Canon").
	Manufacturer string
	// Namespace is the processor namespace this rule is allowed to select
	// within (candidates outside it are never returned).
	Namespace string
	priority  int
	// SelectVariant inspects ctx (already known to match Manufacturer and
	// Namespace) and returns the Key.Variant to prefer, or "" for no
	// preference (defer to capability ranking among this namespace's
	// candidates).
	SelectVariant func(ctx proc.Context) string
}

func NewManufacturerRule(manufacturer, namespace string, priority int, selectVariant func(proc.Context) string) *ManufacturerRule {
	return &ManufacturerRule{Manufacturer: manufacturer, Namespace: namespace, priority: priority, SelectVariant: selectVariant}
}

func (r *ManufacturerRule) Name() string  { return r.Manufacturer + " manufacturer rule" }
func (r *ManufacturerRule) Priority() int { return r.priority }

func (r *ManufacturerRule) AppliesTo(ctx proc.Context) bool {
	return ctx.ManufacturerIs(r.Manufacturer)
}

func (r *ManufacturerRule) Select(candidates []Candidate, ctx proc.Context) (Candidate, bool) {
	var inNamespace []Candidate
	for _, c := range candidates {
		if c.Key.Namespace == r.Namespace {
			inNamespace = append(inNamespace, c)
		}
	}
	if len(inNamespace) == 0 {
		// The table isn't in this manufacturer's own namespace: hijack guard.
		return Candidate{}, false
	}

	if r.SelectVariant != nil {
		if variant := r.SelectVariant(ctx); variant != "" {
			for _, c := range inNamespace {
				if c.Key.Variant == variant {
					return c, true
				}
			}
		}
	}

	return bestByCapability(inNamespace)
}

// FormatRule prefers processors whose name contains a format-specific
// substring for a given file format ("TIFF" for TIFF inputs, "RAW" for raw
// inputs, per spec.md §4.G).
type FormatRule struct {
	FileFormat string
	NameHint   string
	priority   int
}

func NewFormatRule(fileFormat, nameHint string, priority int) *FormatRule {
	return &FormatRule{FileFormat: fileFormat, NameHint: nameHint, priority: priority}
}

func (r *FormatRule) Name() string  { return "format rule (" + r.FileFormat + ")" }
func (r *FormatRule) Priority() int { return r.priority }

func (r *FormatRule) AppliesTo(ctx proc.Context) bool {
	return ctx.FileFormat == r.FileFormat
}

func (r *FormatRule) Select(candidates []Candidate, ctx proc.Context) (Candidate, bool) {
	var matching []Candidate
	for _, c := range candidates {
		if strings.Contains(c.Key.Name, r.NameHint) {
			matching = append(matching, c)
		}
	}
	if len(matching) == 0 {
		return Candidate{}, false
	}
	return bestByCapability(matching)
}

// TableRule prefers processors whose name matches a structural hint in the
// table name being processed ("BinaryData", "SerialData", "AFInfo", ...).
type TableRule struct {
	priority int
}

func NewTableRule(priority int) *TableRule { return &TableRule{priority: priority} }

func (r *TableRule) Name() string  { return "table-name structural hint rule" }
func (r *TableRule) Priority() int { return r.priority }

func (r *TableRule) AppliesTo(ctx proc.Context) bool { return ctx.TableName != "" }

func (r *TableRule) Select(candidates []Candidate, ctx proc.Context) (Candidate, bool) {
	var matching []Candidate
	for _, c := range candidates {
		if strings.Contains(ctx.TableName, c.Key.Name) || strings.Contains(c.Key.Name, ctx.TableName) {
			matching = append(matching, c)
		}
	}
	if len(matching) == 0 {
		return Candidate{}, false
	}
	return bestByCapability(matching)
}

// bestByCapability implements selection algorithm step 3 (spec.md §4.G):
// sort by (Capability desc, key lexicographic) and take the head.
func bestByCapability(candidates []Candidate) (Candidate, bool) {
	if len(candidates) == 0 {
		return Candidate{}, false
	}
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.Capability > best.Capability {
			best = c
			continue
		}
		if c.Capability == best.Capability && c.Key.String() < best.Key.String() {
			best = c
		}
	}
	return best, true
}
