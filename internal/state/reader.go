// Package state implements the shared extraction state (spec.md §3's
// Reader, component M): the mutable accumulator of extracted tags, byte
// order, and diagnostics that flows through J and the concrete processors
// during one file's extraction. It is exclusively owned by the current
// extraction — mirrors the teacher's streamReader, which is documented "not
// thread safe" for the same reason (see imagemeta.go).
package state

import (
	"encoding/binary"
	"fmt"

	"github.com/finchlabs/pixmeta/internal/tagval"
)

// Key identifies one extracted tag slot: a tag name scoped to a namespace.
// spec.md §3 keys extracted_tags by (tag_id, namespace); this engine keys by
// (name, namespace) instead, since by the time a value reaches the Reader
// (from a BinaryDataProcessor's name-keyed ProcessorResult, per §4.F) its
// fractional-ID disambiguation has already been resolved to a concrete tag
// name — §9's "runtime stores only the integer part; disambiguation moves
// into the dispatch layer" decision, carried one step further here since Go
// tag tables are keyed by name from the start.
type Key struct {
	Name      string
	Namespace string
}

// Entry is one slot in the reader's tag table: the decoded value plus
// whether it carries subdirectory dispatch metadata, which is what the
// priority-insert rule (spec.md invariant) keys off of.
type Entry struct {
	Value           tagval.Value
	Print           string
	Group1          string
	HasSubdirectory bool
}

// Reader is the per-file shared state passed to processors. Create one per
// file with New; discard it once extraction completes.
type Reader struct {
	FileBytes []byte
	ByteOrder binary.ByteOrder
	Strict    bool

	tags     map[Key]Entry
	Warnings []string
	Errors   []error

	warnf func(string, ...any)
}

func New(fileBytes []byte, order binary.ByteOrder) *Reader {
	return &Reader{
		FileBytes: fileBytes,
		ByteOrder: order,
		tags:      map[Key]Entry{},
	}
}

// SetWarnf installs a callback invoked alongside every Warnf call, mirroring
// the teacher's Options.Warnf hook (imagemeta.go) so callers can route
// warnings to their own logger in addition to the Reader's own list.
func (r *Reader) SetWarnf(fn func(string, ...any)) { r.warnf = fn }

// Warnf records a warning both on r.Warnings and, if Strict is set, as a
// recorded Error — spec.md §7's "strict mode collapses warnings into fatal
// errors" policy.
func (r *Reader) Warnf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	r.Warnings = append(r.Warnings, msg)
	if r.warnf != nil {
		r.warnf(format, args...)
	}
	if r.Strict {
		r.Errors = append(r.Errors, fmt.Errorf("%s", msg))
	}
}

// AddError records a fatal error without necessarily aborting extraction —
// the caller decides whether an Errors-non-empty Reader should still
// produce output.
func (r *Reader) AddError(err error) {
	r.Errors = append(r.Errors, err)
}

// Insert writes value under key, enforcing the priority-insert discipline
// (spec.md invariant): an existing entry that carries a subdirectory never
// loses to an incoming entry that doesn't, so IFD dispatch metadata for a
// tag ID survives a later plain-value write for the same id/namespace. An
// incoming entry with hasSubdirectory=true always wins, since it carries
// strictly more information than a plain value.
func (r *Reader) Insert(key Key, entry Entry) {
	existing, ok := r.tags[key]
	if ok && existing.HasSubdirectory && !entry.HasSubdirectory {
		return
	}
	r.tags[key] = entry
}

// Get looks up a previously inserted entry.
func (r *Reader) Get(key Key) (Entry, bool) {
	e, ok := r.tags[key]
	return e, ok
}

// All returns every extracted entry, for serialization.
func (r *Reader) All() map[Key]Entry {
	out := make(map[Key]Entry, len(r.tags))
	for k, v := range r.tags {
		out[k] = v
	}
	return out
}

// Len reports how many tags have been extracted so far.
func (r *Reader) Len() int { return len(r.tags) }
