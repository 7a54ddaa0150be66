package subdir

import (
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/finchlabs/pixmeta/internal/dispatch"
	"github.com/finchlabs/pixmeta/internal/proc"
	"github.com/finchlabs/pixmeta/internal/registry"
	"github.com/finchlabs/pixmeta/internal/state"
	"github.com/finchlabs/pixmeta/internal/tagval"
)

// selfRefProcessor always points back at its own (offset, table) pair,
// exercising the cycle guard — scenario S6.
type selfRefProcessor struct {
	key proc.Key
}

func (p selfRefProcessor) CanProcess(ctx proc.Context) proc.Capability { return proc.Good }

func (p selfRefProcessor) ProcessData(data []byte, ctx proc.Context) (*proc.Result, error) {
	r := proc.NewResult()
	r.AddTag("Cycled", tagval.NewU8(1))
	r.AddNestedProcessor(p.key, ctx)
	return r, nil
}

func (p selfRefProcessor) Metadata() proc.Metadata { return proc.NewMetadata("selfref", "test") }

func TestCycleGuardStopsAfterOnePass(t *testing.T) {
	c := qt.New(t)

	key := proc.Key{Namespace: "Test", Name: "SelfRef"}
	reg := registry.New(dispatch.New(), registry.DefaultConfig())
	reg.Register(key, selfRefProcessor{key: key})

	r := state.New([]byte{0, 0, 0, 0}, nil)
	driver := NewDriver(reg, 16)

	ctx := proc.NewContext("TIFF", "SelfRef")
	ctx.DataOffset = 10

	driver.Walk(r, []Entry{{Key: key, Context: ctx, Data: nil}})

	entry, ok := r.Get(state.Key{Name: "Cycled", Namespace: "Test"})
	c.Assert(ok, qt.IsTrue)
	c.Assert(entry.Value.String(), qt.Equals, "1")
	c.Assert(len(r.Warnings) >= 1, qt.IsTrue)
}

func TestDepthExceededWarns(t *testing.T) {
	c := qt.New(t)

	key := proc.Key{Namespace: "Test", Name: "Deep"}
	reg := registry.New(dispatch.New(), registry.DefaultConfig())

	depth := 0
	var dp deepProcessor
	dp.key = key
	dp.depth = &depth
	reg.Register(key, dp)

	r := state.New(nil, nil)
	driver := NewDriver(reg, 2)

	driver.Walk(r, []Entry{{Key: key, Context: proc.NewContext("TIFF", "Deep"), Data: nil}})
	c.Assert(len(r.Warnings) >= 1, qt.IsTrue)
}

// deepProcessor recurses into a fresh table name each time (no cycle) to
// exercise the depth bound independently of the cycle guard.
type deepProcessor struct {
	key   proc.Key
	depth *int
}

func (p deepProcessor) CanProcess(ctx proc.Context) proc.Capability { return proc.Good }

func (p deepProcessor) ProcessData(data []byte, ctx proc.Context) (*proc.Result, error) {
	*p.depth++
	r := proc.NewResult()
	nextCtx := ctx
	nextCtx.TableName = ctx.TableName + "/n"
	nextCtx.DataOffset = int64(*p.depth)
	r.AddNestedProcessor(p.key, nextCtx)
	return r, nil
}

func (p deepProcessor) Metadata() proc.Metadata { return proc.NewMetadata("deep", "test") }
