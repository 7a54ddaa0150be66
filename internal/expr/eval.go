package expr

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/finchlabs/pixmeta/internal/metaerr"
	"github.com/finchlabs/pixmeta/internal/tagval"
)

// Context supplies the variable bindings an expression can reference. $name
// and $$self{Name} both resolve through Lookup — in ExifTool these draw from
// the same per-file "self" hash, so there is no reason to separate them here.
// The four ExifTool pseudo-variables that aren't ordinary tag lookups get
// their own accessors.
type Context interface {
	// Lookup resolves $name or $$self{name}. ok is false if the field has no
	// value in this context (a defined "absent" state, not an empty string).
	Lookup(name string) (tagval.Value, bool)

	// ValPtr returns the bytes bound to $$valPt, if any.
	ValPtr() ([]byte, bool)

	// Count returns $count, the element count of the data being evaluated.
	Count() (int, bool)

	// Format returns $format, the ExifTool format name of the field being
	// evaluated (e.g. "int16u").
	Format() (string, bool)

	// FormatVersion returns $formatVersion.
	FormatVersion() (string, bool)
}

// Evaluator evaluates parsed expressions against a Context, caching compiled
// regexes for the process lifetime per the engine's "compiled regexes ...
// process lifetime" resource policy.
type Evaluator struct {
	mu    sync.Mutex
	cache map[string]*regexp.Regexp
}

func NewEvaluator() *Evaluator {
	return &Evaluator{cache: map[string]*regexp.Regexp{}}
}

func (e *Evaluator) regex(pattern string) (*regexp.Regexp, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if re, ok := e.cache[pattern]; ok {
		return re, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, metaerr.Newf(metaerr.ParseError, pattern, "invalid regex: %v", err)
	}
	e.cache[pattern] = re
	return re, nil
}

// Eval evaluates node against ctx. A nil error with a false result is a
// legitimate negative match; a non-nil error means the expression could not
// be evaluated at all (missing context data, bad regex) and it is up to the
// caller whether to treat that as a negative match or propagate it.
func (e *Evaluator) Eval(node *Node, ctx Context) (bool, error) {
	switch node.Kind {
	case KindExists:
		_, ok := e.resolve(node.Field, ctx)
		return ok, nil

	case KindEquals:
		v, ok := e.resolve(node.Field, ctx)
		if !ok {
			return false, metaerr.New(metaerr.MissingContext, node.Field, fmt.Errorf("field not available"))
		}
		if node.StringCompare {
			return tagval.CompareString(v, node.Value) == 0, nil
		}
		return tagval.Equal(v, node.Value), nil

	case KindGreaterThan, KindGreaterThanOrEqual, KindLessThan, KindLessThanOrEqual:
		v, ok := e.resolve(node.Field, ctx)
		if !ok {
			return false, metaerr.New(metaerr.MissingContext, node.Field, fmt.Errorf("field not available"))
		}
		cmp, ok := tagval.CompareNumeric(v, node.Value)
		if !ok {
			return false, metaerr.New(metaerr.ConversionError, node.Field, fmt.Errorf("non-numeric comparison"))
		}
		switch node.Kind {
		case KindGreaterThan:
			return cmp > 0, nil
		case KindGreaterThanOrEqual:
			return cmp >= 0, nil
		case KindLessThan:
			return cmp < 0, nil
		default:
			return cmp <= 0, nil
		}

	case KindRegexMatch:
		v, ok := e.resolve(node.Field, ctx)
		if !ok {
			return false, metaerr.New(metaerr.MissingContext, node.Field, fmt.Errorf("field not available"))
		}
		return e.matchString(node.Pattern, v.String())

	case KindDataPattern:
		data, ok := ctx.ValPtr()
		if !ok {
			return false, metaerr.New(metaerr.MissingContext, "valPt", fmt.Errorf("$$valPt not bound in this context"))
		}
		return MatchValPtr(e, node.Pattern, data)

	case KindAnd:
		for _, child := range node.Children {
			ok, err := e.Eval(child, ctx)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil

	case KindOr:
		var lastErr error
		for _, child := range node.Children {
			ok, err := e.Eval(child, ctx)
			if err != nil {
				lastErr = err
				continue
			}
			if ok {
				return true, nil
			}
		}
		if lastErr != nil {
			return false, lastErr
		}
		return false, nil

	case KindNot:
		ok, err := e.Eval(node.Child, ctx)
		if err != nil {
			return false, err
		}
		return !ok, nil

	default:
		return false, metaerr.Newf(metaerr.ParseError, "", "unknown expression kind %d", node.Kind)
	}
}

// resolve dispatches the pseudo-variables ($count, $format, $formatVersion,
// $valPt stringified) before falling back to Context.Lookup for ordinary tag
// names and $$self{...} fields.
func (e *Evaluator) resolve(field string, ctx Context) (tagval.Value, bool) {
	switch field {
	case "count":
		n, ok := ctx.Count()
		if !ok {
			return tagval.Value{}, false
		}
		return tagval.NewI64(int64(n)), true
	case "format":
		s, ok := ctx.Format()
		if !ok {
			return tagval.Value{}, false
		}
		return tagval.NewString(s), true
	case "formatVersion":
		s, ok := ctx.FormatVersion()
		if !ok {
			return tagval.Value{}, false
		}
		return tagval.NewString(s), true
	case "valPt":
		b, ok := ctx.ValPtr()
		if !ok {
			return tagval.Value{}, false
		}
		return tagval.NewBytes(b), true
	default:
		return ctx.Lookup(field)
	}
}

// matchString implements "=~"/RegexMatch semantics against a stringified
// value: substring match for literal patterns (the permitted optimization),
// otherwise a real regex search with no implicit anchoring.
func (e *Evaluator) matchString(pattern, s string) (bool, error) {
	if isLiteralPattern(pattern) {
		return strings.Contains(s, pattern), nil
	}
	re, err := e.regex(pattern)
	if err != nil {
		return false, err
	}
	return re.MatchString(s), nil
}

// isLiteralPattern reports whether pattern contains no regex metacharacters,
// in which case a substring check is observationally identical to a regex
// search and cheaper.
func isLiteralPattern(pattern string) bool {
	return !strings.ContainsAny(pattern, `.^$*+?()[]{}|\`)
}

// MatchValPtr implements the three-view $$valPt matching strategy: raw bytes
// decoded as a (possibly lossy) string, uppercase hex of the first 16 bytes,
// and the decimal form of the leading big-endian uint32. A match in any view
// is a positive match. This is the superset explicitly permitted by the
// engine's open design question on $$valPt semantics.
func MatchValPtr(e *Evaluator, pattern string, data []byte) (bool, error) {
	views := valPtrViews(data)
	for _, v := range views {
		ok, err := e.matchString(pattern, v)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func valPtrViews(data []byte) []string {
	raw := string(data)

	hexLen := len(data)
	if hexLen > 16 {
		hexLen = 16
	}
	var hex strings.Builder
	for _, b := range data[:hexLen] {
		fmt.Fprintf(&hex, "%02X", b)
	}

	var decimal string
	if len(data) >= 4 {
		u := uint32(data[0])<<24 | uint32(data[1])<<16 | uint32(data[2])<<8 | uint32(data[3])
		decimal = strconv.FormatUint(uint64(u), 10)
	}

	views := []string{raw, hex.String()}
	if decimal != "" {
		views = append(views, decimal)
	}
	return views
}
