// Package query builds filters, paths and index definitions over JSON
// documents and compiles them to SQLite JSON1 text plus bound parameters.
//
// Paths address a location inside a document ($."key"[3]."sub"). Expressions
// are immutable predicate trees over paths. The compiler renders both into
// deterministic, parameter-safe SQL.
package query

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrPathSegment is returned when a path segment is neither text nor a
	// non-negative integer.
	ErrPathSegment = errors.New("invalid path segment")
)

type segmentKind uint8

const (
	segKey segmentKind = iota
	segIndex
)

// Segment is a single step in a path: either an object key or an array index.
type Segment struct {
	kind  segmentKind
	key   string
	index int
}

// KeySegment returns a key segment.
func KeySegment(key string) Segment { return Segment{kind: segKey, key: key} }

// IndexSegment returns an array index segment.
func IndexSegment(i int) Segment { return Segment{kind: segIndex, index: i} }

func (s Segment) IsKey() bool { return s.kind == segKey }
func (s Segment) Key() string { return s.key }
func (s Segment) Index() int  { return s.index }

// Path is an ordered sequence of key/index segments addressing a location
// inside a document. The zero value addresses the whole document ("$").
//
// Path is an immutable value: Field, Index and At copy the segment slice, so
// a partially built path can be branched without sharing state.
//
// A Path obtained from Parse of an engine-native "$..." string keeps that
// spelling verbatim. SQLite matches indexes on the literal extracted path
// text, so Parse(`$.key`) and Field("key") (rendered `$."key"`) are distinct
// identities on purpose, even though they address the same location.
type Path struct {
	segs []Segment
	// raw holds the verbatim engine-native spelling when the path came from
	// Parse of a "$..." string. It wins over the quoted rendering.
	raw string
}

// Root returns the whole-document path ("$").
func Root() Path { return Path{} }

// Field returns a root path with a single key segment.
func Field(name string) Path { return Root().Field(name) }

// Elem returns a root path with a single array index segment.
func Elem(i int) Path { return Root().Index(i) }

// Field appends a key segment, returning a new Path.
func (p Path) Field(name string) Path {
	return p.append(KeySegment(name))
}

// Index appends an array index segment, returning a new Path.
func (p Path) Index(i int) Path {
	return p.append(IndexSegment(i))
}

// At appends mixed segments: strings become keys, ints become array indexes.
// Any other type, or a negative index, fails with ErrPathSegment.
func (p Path) At(parts ...any) (Path, error) {
	out := p
	for _, part := range parts {
		switch v := part.(type) {
		case string:
			out = out.Field(v)
		case int:
			if v < 0 {
				return Path{}, fmt.Errorf("%w: negative index %d", ErrPathSegment, v)
			}
			out = out.Index(v)
		case int64:
			if v < 0 {
				return Path{}, fmt.Errorf("%w: negative index %d", ErrPathSegment, v)
			}
			out = out.Index(int(v))
		default:
			return Path{}, fmt.Errorf("%w: %T(%v)", ErrPathSegment, part, part)
		}
	}
	return out, nil
}

// MustAt is At but panics on invalid segments. For literals in tests and
// examples.
func MustAt(parts ...any) Path {
	p, err := Root().At(parts...)
	if err != nil {
		panic(err)
	}
	return p
}

// append copies the segment slice. The extra capacity of an earlier append
// must never be shared between branches.
func (p Path) append(s Segment) Path {
	segs := make([]Segment, len(p.segs), len(p.segs)+1)
	copy(segs, p.segs)
	return Path{segs: append(segs, s)}
}

// Parse interprets a caller-supplied path string.
//
// Strings starting with "$" are engine-native JSON paths and are kept
// verbatim: no re-quoting is performed and the original spelling is what the
// compiler emits. Any other string is taken as a single key and quoted, the
// same as Field would.
func Parse(s string) (Path, error) {
	if !strings.HasPrefix(s, "$") {
		return Field(s), nil
	}
	segs, err := parseJSONPath(s)
	if err != nil {
		return Path{}, err
	}
	return Path{segs: segs, raw: s}, nil
}

// parseJSONPath splits an engine-native path ($.a."b c"[3]) into segments.
func parseJSONPath(s string) ([]Segment, error) {
	var segs []Segment
	i := 1 // past "$"
	for i < len(s) {
		switch s[i] {
		case '[':
			end := strings.IndexByte(s[i:], ']')
			if end < 0 {
				return nil, fmt.Errorf("%w: unterminated index in %q", ErrPathSegment, s)
			}
			n, err := strconv.Atoi(s[i+1 : i+end])
			if err != nil || n < 0 {
				return nil, fmt.Errorf("%w: bad index in %q", ErrPathSegment, s)
			}
			segs = append(segs, IndexSegment(n))
			i += end + 1
		case '.':
			i++
			if i < len(s) && s[i] == '"' {
				end := strings.IndexByte(s[i+1:], '"')
				if end < 0 {
					return nil, fmt.Errorf("%w: unterminated quote in %q", ErrPathSegment, s)
				}
				segs = append(segs, KeySegment(s[i+1:i+1+end]))
				i += end + 2
				continue
			}
			start := i
			for i < len(s) && s[i] != '.' && s[i] != '[' {
				i++
			}
			if i == start {
				return nil, fmt.Errorf("%w: empty key in %q", ErrPathSegment, s)
			}
			segs = append(segs, KeySegment(s[start:i]))
		default:
			return nil, fmt.Errorf("%w: unexpected %q in %q", ErrPathSegment, s[i], s)
		}
	}
	return segs, nil
}

// JSONPath renders the canonical engine path. Built paths quote every key
// ($."a"."b"[3]); parsed "$..." paths render exactly as given.
func (p Path) JSONPath() string {
	if p.raw != "" {
		return p.raw
	}
	var sb strings.Builder
	sb.WriteByte('$')
	for _, s := range p.segs {
		if s.kind == segIndex {
			sb.WriteByte('[')
			sb.WriteString(strconv.Itoa(s.index))
			sb.WriteByte(']')
			continue
		}
		sb.WriteString(`."`)
		sb.WriteString(s.key)
		sb.WriteByte('"')
	}
	return sb.String()
}

// String implements fmt.Stringer.
func (p Path) String() string { return p.JSONPath() }

// Equal reports whether two paths are the same identity. Identity follows the
// compiled text: a raw "$..." path and a built path over the same keys are
// not equal.
func (p Path) Equal(other Path) bool {
	return p.JSONPath() == other.JSONPath()
}

// IsRoot reports whether the path addresses the whole document.
func (p Path) IsRoot() bool {
	return (p.raw == "" || p.raw == "$") && len(p.segs) == 0
}

// Segments returns a copy of the path's segments.
func (p Path) Segments() []Segment {
	out := make([]Segment, len(p.segs))
	copy(out, p.segs)
	return out
}

// Split divides the path into its parent (re-rendered in quoted form) and
// final segment, returned as a string key or an int index. The root path
// splits into the root and an empty key. Used by the JSON_EACH existence
// scan, which matches the parent's keys against the leaf.
func (p Path) Split() (Path, any, error) {
	if p.raw != "" && len(p.segs) == 0 && p.raw != "$" {
		return Path{}, nil, fmt.Errorf("%w: cannot split %q", ErrPathSegment, p.raw)
	}
	if len(p.segs) == 0 {
		return Root(), "", nil
	}
	parent := Path{segs: p.segs[:len(p.segs)-1]}
	last := p.segs[len(p.segs)-1]
	if last.kind == segIndex {
		return parent, last.index, nil
	}
	return parent, last.key, nil
}
