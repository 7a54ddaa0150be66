// Package proc defines the processor trait (spec.md §4.F): the Capability
// assessment a processor reports for a given Context, the Context itself,
// and the Key identifying a registered processor.
package proc

// Capability is a processor's self-reported fitness to handle a given
// Context, in descending order of preference: Perfect > Good > Fallback >
// Incompatible.
type Capability int

const (
	Incompatible Capability = iota
	Fallback
	Good
	Perfect
)

func (c Capability) String() string {
	switch c {
	case Perfect:
		return "Perfect"
	case Good:
		return "Good"
	case Fallback:
		return "Fallback"
	default:
		return "Incompatible"
	}
}

// IsCompatible reports whether c is usable at all (anything but Incompatible).
func (c Capability) IsCompatible() bool { return c >= Fallback }

// priorityScore mirrors the original implementation's numeric scoring, kept
// only for Combine's "lowest compatible wins" rule below — the ordering
// itself is carried by the iota values above.
func (c Capability) priorityScore() int {
	switch c {
	case Perfect:
		return 100
	case Good:
		return 75
	case Fallback:
		return 25
	default:
		return 0
	}
}

// Combine folds several capability assessments (e.g. one per criterion a
// processor checks) into a single overall capability: any Incompatible
// makes the whole assessment Incompatible, otherwise the worst (lowest)
// compatible capability wins, so a processor can't claim Perfect on the
// strength of one matching criterion while failing another.
func Combine(capabilities ...Capability) Capability {
	if len(capabilities) == 0 {
		return Incompatible
	}
	worst := Perfect
	for _, c := range capabilities {
		if c == Incompatible {
			return Incompatible
		}
		if c.priorityScore() < worst.priorityScore() {
			worst = c
		}
	}
	return worst
}

// FromBoolean is a helper for processors that only need a yes/no
// compatibility check.
func FromBoolean(isCompatible bool) Capability {
	if isCompatible {
		return Good
	}
	return Incompatible
}

// FromSpecificity helps manufacturer-specific processors grade their match:
// no manufacturer match is always Incompatible; a model match that is also
// the processor's primary purpose is Perfect; any other combination with a
// manufacturer match is Good or Fallback.
func FromSpecificity(manufacturerMatches, modelMatches, isPrimaryPurpose bool) Capability {
	if !manufacturerMatches {
		return Incompatible
	}
	switch {
	case modelMatches && isPrimaryPurpose:
		return Perfect
	case modelMatches, isPrimaryPurpose:
		return Good
	default:
		return Fallback
	}
}

// Factor is one contributing check behind a capability Assessment, carried
// for debugging/introspection rather than for the dispatch decision itself.
type Factor struct {
	Kind  string // e.g. "ManufacturerMatch", "ModelMatch", "TableNameMatch"
	Label string
}

// Assessment is a debuggable explanation of why a processor returned a
// particular Capability, ported from the original implementation's
// CapabilityAssessment for parity with upstream introspection tooling.
type Assessment struct {
	Capability          Capability
	Reason              string
	Factors             []Factor
	MissingRequirements []string
}

func NewAssessment(capability Capability, reason string) Assessment {
	return Assessment{Capability: capability, Reason: reason}
}

func (a Assessment) WithFactor(kind, label string) Assessment {
	a.Factors = append(a.Factors, Factor{Kind: kind, Label: label})
	return a
}

func (a Assessment) WithMissingRequirement(req string) Assessment {
	a.MissingRequirements = append(a.MissingRequirements, req)
	return a
}
