// Package subdir implements the subdirectory recursion driver (spec.md
// §4.J): it resolves a subdirectory's byte range, derives a child
// ProcessorContext, asks the registry for a processor, runs it, merges
// results into the Reader with the priority-insert rule, and recurses into
// any next_processors the processor names — bounded by depth and guarded
// against cycles.
//
// Grounded on the teacher's decodeTagsAt/preservePos recursion style
// (metadecoder_exif.go), generalized from "always recurse into the fixed
// IFD pointer table" to "ask the registry which processor to recurse with".
package subdir

import (
	"fmt"
	"strings"

	"github.com/finchlabs/pixmeta/internal/metaerr"
	"github.com/finchlabs/pixmeta/internal/proc"
	"github.com/finchlabs/pixmeta/internal/registry"
	"github.com/finchlabs/pixmeta/internal/state"
	"github.com/finchlabs/pixmeta/internal/tagval"
)

// visitKey is the (data_offset, table_name) pair the cycle guard tracks,
// per spec.md §4.J step 6.
type visitKey struct {
	offset    int64
	tableName string
}

// Driver owns one extraction's recursion bookkeeping: the visited set for
// cycle detection and the configured depth bound. A Driver is single-use,
// scoped to one file's extraction, same lifecycle as the Reader it walks.
type Driver struct {
	registry *registry.Registry
	maxDepth int
	visited  map[visitKey]bool
}

func NewDriver(reg *registry.Registry, maxDepth int) *Driver {
	if maxDepth <= 0 {
		maxDepth = 16
	}
	return &Driver{registry: reg, maxDepth: maxDepth, visited: map[visitKey]bool{}}
}

// Entry is one unit of recursion input: either a parent tag's subdirectory
// hint (resolved to a byte range by the caller) or an explicit
// (Key, Context) pair carried in a ProcessorResult.NextProcessors.
type Entry struct {
	Key     proc.Key
	Context proc.Context
	Data    []byte
}

// Walk runs the recursion loop starting from the given entries, merging
// every processor's extracted tags into r. It never panics on malformed
// input: bounds issues, missing processors, cycles, and depth overruns all
// become warnings on r.
func (d *Driver) Walk(r *state.Reader, entries []Entry) {
	for _, e := range entries {
		d.walkOne(r, e, 0)
	}
}

func (d *Driver) walkOne(r *state.Reader, e Entry, depth int) {
	if depth > d.maxDepth {
		r.Warnf("%s: %v", e.Context.TableName, metaerr.Newf(metaerr.DepthExceeded, e.Context.TableName, "recursion depth %d exceeds max %d", depth, d.maxDepth))
		return
	}

	vk := visitKey{offset: e.Context.DataOffset, tableName: e.Context.TableName}
	if d.visited[vk] {
		r.Warnf("%v", metaerr.Newf(metaerr.CycleDetected, e.Context.TableName, "already visited (offset=%d, table=%s); skipping", vk.offset, vk.tableName))
		return
	}
	d.visited[vk] = true

	key := e.Key
	p, ok := d.registry.Get(key)
	if !ok {
		selected, sp, sok := d.registry.Select(e.Context)
		if !sok {
			r.Warnf("no processor found for table %q (manufacturer=%v)", e.Context.TableName, e.Context.Manufacturer)
			return
		}
		key, p = selected, sp
	}

	result, err := p.ProcessData(e.Data, e.Context)
	if err != nil {
		r.Warnf("%s: processor %s failed: %v", e.Context.TableName, key, err)
		return
	}

	// Plain extracted values never carry subdirectory metadata themselves —
	// only the IFD-level walker that discovers a tag IS a subdirectory
	// pointer (before handing its bytes here) knows that, and it calls
	// Reader.Insert directly with HasSubdirectory=true for that tag. This
	// merge only ever writes the "no subdirectory" side of the
	// priority-insert rule, so it can never clobber that marker (spec.md's
	// invariant: a plain-value insert never replaces a subdirectory one).
	for name, v := range result.ExtractedTags {
		r.Insert(state.Key{Name: name, Namespace: key.Namespace}, state.Entry{
			Value: v,
			Print: v.String(),
		})
	}
	for _, w := range result.Warnings {
		r.Warnf("%s", w)
	}

	if d.registry.Config.KeepBinaryBlobs && len(e.Data) > 0 {
		r.Insert(state.Key{Name: blobTagName(e.Context.TableName), Namespace: key.Namespace}, state.Entry{
			Value: tagval.NewBytes(e.Data),
			Print: fmt.Sprintf("(%d bytes)", len(e.Data)),
			// The blob is the subdirectory itself; marking it keeps a later
			// plain value with a colliding name from replacing it.
			HasSubdirectory: true,
		})
	}

	for _, next := range result.NextProcessors {
		d.walkOne(r, Entry{Key: next.Key, Context: next.Context, Data: dataForNested(r, next.Context)}, depth+1)
	}
}

// blobTagName derives the tag name a retained subdirectory blob is stored
// under: the table's own name with its namespace prefix dropped, suffixed
// "Data" ("Canon::CameraSettings" -> "CameraSettingsData").
func blobTagName(tableName string) string {
	if i := strings.LastIndex(tableName, "::"); i >= 0 {
		tableName = tableName[i+2:]
	}
	return tableName + "Data"
}

// dataForNested resolves the byte range for a nested processor's context
// from the Reader's file bytes, per spec.md §4.J step 1: DataOffset/DataSize
// describe an absolute offset into the whole file.
func dataForNested(r *state.Reader, ctx proc.Context) []byte {
	if ctx.DataSize == nil {
		return nil
	}
	start := ctx.DataOffset
	end := start + int64(*ctx.DataSize)
	if start < 0 || end > int64(len(r.FileBytes)) || start > end {
		r.Warnf("%s: %v", ctx.TableName, metaerr.Newf(metaerr.BoundsError, ctx.TableName, "subdirectory range [%d,%d) out of bounds for %d-byte file", start, end, len(r.FileBytes)))
		return nil
	}
	return r.FileBytes[start:end]
}

// NewSubdirEntry builds an Entry from a parent tag carrying a subdirectory
// hint, deriving the child context per §4.J step 2. offsetIsInline signals
// that value is already the subdirectory's bytes (e.g. an inline MakerNotes
// block), which become Entry.Data. Otherwise value is taken as a file
// offset and only stored as the child's DataOffset: Data stays nil,
// DataSize is not set, and fileBytes is not read.
func NewSubdirEntry(parentCtx proc.Context, tableName string, tagID uint16, value tagval.Value, fileBytes []byte, offsetIsInline bool) (Entry, error) {
	child := parentCtx.DeriveForNested(tableName, &tagID)

	if offsetIsInline {
		b, ok := value.AsBytes()
		if !ok {
			return Entry{}, fmt.Errorf("subdirectory value for tag 0x%04x is not inline bytes", tagID)
		}
		return Entry{Context: child, Data: b}, nil
	}

	offset, ok := value.Float64()
	if !ok {
		return Entry{}, fmt.Errorf("subdirectory value for tag 0x%04x is not an offset", tagID)
	}
	child.DataOffset = int64(offset)
	return Entry{Context: child, Data: nil}, nil
}
