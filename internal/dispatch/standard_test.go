package dispatch

import (
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/finchlabs/pixmeta/internal/proc"
)

type stubProcessor struct {
	capability proc.Capability
}

func (p stubProcessor) CanProcess(ctx proc.Context) proc.Capability { return p.capability }

func (p stubProcessor) ProcessData(data []byte, ctx proc.Context) (*proc.Result, error) {
	return proc.NewResult(), nil
}

func (p stubProcessor) Metadata() proc.Metadata { return proc.NewMetadata("stub", "test") }

func candidate(namespace, name, variant string, cap proc.Capability) Candidate {
	return Candidate{
		Key:        proc.Key{Namespace: namespace, Name: name, Variant: variant},
		Processor:  stubProcessor{capability: cap},
		Capability: cap,
	}
}

// TestManufacturerRuleHijackGuard: a Canon rule whose condition fires must
// refuse to select when no candidate is in the Canon namespace, so standard
// EXIF directories never get taken over by a maker rule.
func TestManufacturerRuleHijackGuard(t *testing.T) {
	c := qt.New(t)

	rule := NewManufacturerRule("Canon", "Canon", 100, nil)

	ctx := proc.NewContext("TIFF", "IFD0")
	ctx = ctx.WithCameraInfo("Canon", "Canon EOS R5")
	c.Assert(rule.AppliesTo(ctx), qt.IsTrue)

	candidates := []Candidate{
		candidate("EXIF", "IFD", "", proc.Good),
		candidate("Nikon", "Encrypted", "", proc.Fallback),
	}
	_, ok := rule.Select(candidates, ctx)
	c.Assert(ok, qt.IsFalse)
}

func TestManufacturerRuleVariantSelection(t *testing.T) {
	c := qt.New(t)

	rule := NewManufacturerRule("Canon", "Canon", 100, func(ctx proc.Context) string {
		return "MkII"
	})

	ctx := proc.NewContext("TIFF", "Canon::SerialData")
	ctx = ctx.WithCameraInfo("Canon", "Canon EOS R5")

	candidates := []Candidate{
		candidate("Canon", "SerialData", "", proc.Good),
		candidate("Canon", "SerialData", "MkII", proc.Perfect),
	}
	selected, ok := rule.Select(candidates, ctx)
	c.Assert(ok, qt.IsTrue)
	c.Assert(selected.Key.Variant, qt.Equals, "MkII")
}

// TestManufacturerRuleFallsBackToCapability: with no variant preference the
// rule picks the namespace's best candidate by capability.
func TestManufacturerRuleFallsBackToCapability(t *testing.T) {
	c := qt.New(t)

	rule := NewManufacturerRule("Sony", "Sony", 100, nil)

	ctx := proc.NewContext("TIFF", "Sony::FileFormat")
	ctx = ctx.WithCameraInfo("Sony", "ILCE-7M3")

	candidates := []Candidate{
		candidate("Sony", "Tag2010", "", proc.Good),
		candidate("Sony", "FileFormat", "", proc.Perfect),
	}
	selected, ok := rule.Select(candidates, ctx)
	c.Assert(ok, qt.IsTrue)
	c.Assert(selected.Key.Name, qt.Equals, "FileFormat")
}

func TestFormatRulePrefersNameHint(t *testing.T) {
	c := qt.New(t)

	rule := NewFormatRule("TIFF", "BinaryData", 10)

	ctx := proc.NewContext("TIFF", "SomeTable")
	c.Assert(rule.AppliesTo(ctx), qt.IsTrue)

	ctxJPEG := proc.NewContext("JPEG", "SomeTable")
	c.Assert(rule.AppliesTo(ctxJPEG), qt.IsFalse)

	candidates := []Candidate{
		candidate("Test", "Generic", "", proc.Perfect),
		candidate("Test", "BinaryData", "", proc.Good),
	}
	selected, ok := rule.Select(candidates, ctx)
	c.Assert(ok, qt.IsTrue)
	c.Assert(selected.Key.Name, qt.Equals, "BinaryData")
}

func TestTableRuleMatchesStructuralHint(t *testing.T) {
	c := qt.New(t)

	rule := NewTableRule(1)
	ctx := proc.NewContext("TIFF", "Canon::SerialData")

	candidates := []Candidate{
		candidate("Canon", "CameraSettings", "", proc.Perfect),
		candidate("Canon", "SerialData", "", proc.Good),
	}
	selected, ok := rule.Select(candidates, ctx)
	c.Assert(ok, qt.IsTrue)
	c.Assert(selected.Key.Name, qt.Equals, "SerialData")
}

// TestEngineHonorsPriorityOrder: the higher-priority rule answers first even
// when registered last.
func TestEngineHonorsPriorityOrder(t *testing.T) {
	c := qt.New(t)

	engine := New(
		NewTableRule(1),
		NewManufacturerRule("Canon", "Canon", 100, nil),
	)

	ctx := proc.NewContext("TIFF", "Canon::CameraSettings")
	ctx = ctx.WithCameraInfo("Canon", "Canon EOS 5D")

	candidates := []Candidate{
		candidate("Canon", "CameraSettings", "", proc.Perfect),
		candidate("Other", "CameraSettings", "", proc.Perfect),
	}
	selected, ok := engine.Select(candidates, ctx)
	c.Assert(ok, qt.IsTrue)
	c.Assert(selected.Key.Namespace, qt.Equals, "Canon")
}
