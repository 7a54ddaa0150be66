package proc

import (
	"encoding/binary"

	"github.com/finchlabs/pixmeta/internal/tagval"
)

// Context is the immutable (per call) bundle of everything a processor needs
// to assess its own fitness (Capability) and, if selected, to decode data —
// spec.md §3's ProcessorContext. Every field that serves as a dispatch
// predicate uses a pointer or explicit zero value so "absent" and "present
// but empty" are distinguishable, per spec.md's "defined absent state" rule.
type Context struct {
	FileFormat string

	Manufacturer  *string
	Model         *string
	Firmware      *string
	FormatVersion *string

	TableName      string
	TagID          *uint16
	DirectoryPath  []string
	DataOffset     int64
	ParentTags     map[string]tagval.Value
	Parameters     map[string]string
	ByteOrder      binary.ByteOrder
	BaseOffset     int64
	DataSize       *int
	Strict         bool
}

// NewContext builds the minimal context needed before any camera info is
// known (e.g. before IFD0's Make/Model tags have been read).
func NewContext(fileFormat, tableName string) Context {
	return Context{
		FileFormat: fileFormat,
		TableName:  tableName,
		ParentTags: map[string]tagval.Value{},
		Parameters: map[string]string{},
	}
}

// WithCameraInfo returns a copy of c with manufacturer/model set.
func (c Context) WithCameraInfo(manufacturer, model string) Context {
	c.Manufacturer = &manufacturer
	c.Model = &model
	return c
}

// DeriveForNested builds a child context for subdirectory recursion (§4.J
// step 2): the new table/tag become current, the parent's table is appended
// to DirectoryPath, and camera info/byte order/strictness are inherited
// unless explicitly overridden by the caller afterward.
func (c Context) DeriveForNested(tableName string, tagID *uint16) Context {
	child := c
	child.DirectoryPath = append(append([]string{}, c.DirectoryPath...), c.TableName)
	child.TableName = tableName
	child.TagID = tagID
	child.Parameters = map[string]string{}
	for k, v := range c.Parameters {
		child.Parameters[k] = v
	}
	return child
}

// ManufacturerIs reports whether Manufacturer is present and equals m
// (case-sensitive, matching ExifTool's exact Make-string comparisons).
func (c Context) ManufacturerIs(m string) bool {
	return c.Manufacturer != nil && *c.Manufacturer == m
}

// ModelOrEmpty returns Model if present, "" otherwise — for callers that
// only need it as a regex target and treat absence and empty the same way.
func (c Context) ModelOrEmpty() string {
	if c.Model == nil {
		return ""
	}
	return *c.Model
}

// Param looks up a SubDirectory parameter (e.g. "DecryptStart").
func (c Context) Param(name string) (string, bool) {
	v, ok := c.Parameters[name]
	return v, ok
}
