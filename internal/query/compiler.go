package query

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/jocketf/storyquery/internal/archive"
	"github.com/jocketf/storyquery/internal/storyerrors"
)

// fieldKind identifies which value-side compiler a field uses.
type fieldKind int

const (
	kindInt fieldKind = iota
	kindStr
	kindDate
)

type intAccessor func(*archive.Story) int64
type strAccessor func(*archive.Story) string
type dateAccessor func(*archive.Story) *time.Time

type fieldSpec struct {
	kind   fieldKind
	intFn  intAccessor
	strFn  strAccessor
	dateFn dateAccessor
}

func authorOrNil(s *archive.Story) *archive.Author { return s.Author }

// fieldTable is the canonical field-name-to-accessor table. Keys are the
// exact, case-sensitive field names a query may use.
var fieldTable = map[string]fieldSpec{
	"id": {kind: kindInt, intFn: func(s *archive.Story) int64 { return int64(s.ID) }},

	"story": {kind: kindStr, strFn: func(s *archive.Story) string { return s.Title }},
	"title": {kind: kindStr, strFn: func(s *archive.Story) string { return s.Title }},

	"description":       {kind: kindStr, strFn: func(s *archive.Story) string { return s.DescriptionHTML }},
	"short description": {kind: kindStr, strFn: func(s *archive.Story) string { return s.ShortDescription }},
	"url":               {kind: kindStr, strFn: func(s *archive.Story) string { return s.URL }},

	"modified": {kind: kindDate, dateFn: func(s *archive.Story) *time.Time { return s.DateModified }},
	"published": {kind: kindDate, dateFn: func(s *archive.Story) *time.Time { return s.DatePublished }},
	"updated": {kind: kindDate, dateFn: func(s *archive.Story) *time.Time { return s.DateUpdated }},

	"chapters":     {kind: kindInt, intFn: func(s *archive.Story) int64 { return int64(s.NumChapters) }},
	"comments":     {kind: kindInt, intFn: func(s *archive.Story) int64 { return int64(s.NumComments) }},
	"dislikes":     {kind: kindInt, intFn: func(s *archive.Story) int64 { return int64(s.NumDislikes) }},
	"likes":        {kind: kindInt, intFn: func(s *archive.Story) int64 { return int64(s.NumLikes) }},
	"total views":  {kind: kindInt, intFn: func(s *archive.Story) int64 { return int64(s.TotalNumViews) }},
	"views":        {kind: kindInt, intFn: func(s *archive.Story) int64 { return int64(s.NumViews) }},
	"words":        {kind: kindInt, intFn: func(s *archive.Story) int64 { return int64(s.NumWords) }},

	"author": {kind: kindStr, strFn: func(s *archive.Story) string {
		if a := authorOrNil(s); a != nil {
			return a.Name
		}
		return ""
	}},
	"author name": {kind: kindStr, strFn: func(s *archive.Story) string {
		if a := authorOrNil(s); a != nil {
			return a.Name
		}
		return ""
	}},
	"author id": {kind: kindInt, intFn: func(s *archive.Story) int64 {
		if a := authorOrNil(s); a != nil {
			return int64(a.ID)
		}
		return 0
	}},
	"author joined": {kind: kindDate, dateFn: func(s *archive.Story) *time.Time {
		if a := authorOrNil(s); a != nil {
			return a.DateJoined
		}
		return nil
	}},

	"status": {kind: kindStr, strFn: func(s *archive.Story) string { return s.Status.String() }},

	"path":          {kind: kindStr, strFn: func(s *archive.Story) string { return s.Archive.Path }},
	"archive":       {kind: kindStr, strFn: func(s *archive.Story) string { return s.Archive.Path }},
	"archive path":  {kind: kindStr, strFn: func(s *archive.Story) string { return s.Archive.Path }},

	"entry checked": {kind: kindDate, dateFn: func(s *archive.Story) *time.Time { return s.Archive.DateChecked }},
	"entry created": {kind: kindDate, dateFn: func(s *archive.Story) *time.Time { return s.Archive.DateCreated }},
	"entry fetched": {kind: kindDate, dateFn: func(s *archive.Story) *time.Time { return s.Archive.DateFetched }},
	"entry updated": {kind: kindDate, dateFn: func(s *archive.Story) *time.Time { return s.Archive.DateUpdated }},
}

const regexSizeLimit = 1 << 20

// Compile lowers an AST node into a thread-safe predicate. All value-side
// work (regex compilation, date parsing, integer parsing) happens here,
// once, so per-story evaluation never allocates.
func Compile(node *Node) (archive.Predicate, error) {
	switch node.Kind {
	case NodeLeaf:
		return compileLeaf(node)
	case NodeNot:
		child, err := Compile(node.Child)
		if err != nil {
			return nil, err
		}
		return func(s *archive.Story) bool { return !child(s) }, nil
	case NodeAnd:
		children, err := compileChildren(node.Children)
		if err != nil {
			return nil, err
		}
		return func(s *archive.Story) bool {
			for _, c := range children {
				if !c(s) {
					return false
				}
			}
			return true
		}, nil
	case NodeOr:
		children, err := compileChildren(node.Children)
		if err != nil {
			return nil, err
		}
		return func(s *archive.Story) bool {
			for _, c := range children {
				if c(s) {
					return true
				}
			}
			return false
		}, nil
	default:
		return nil, storyerrors.NewQueryError(fmt.Sprintf("unknown node kind %d", node.Kind))
	}
}

func compileChildren(nodes []*Node) ([]archive.Predicate, error) {
	preds := make([]archive.Predicate, len(nodes))
	for i, n := range nodes {
		p, err := Compile(n)
		if err != nil {
			return nil, err
		}
		preds[i] = p
	}
	return preds, nil
}

func compileLeaf(node *Node) (archive.Predicate, error) {
	spec, ok := fieldTable[node.Field]
	if !ok {
		return nil, storyerrors.NewQueryErrorAt(fmt.Sprintf("unrecognized field %q", node.Field), node.Pos)
	}

	switch spec.kind {
	case kindInt:
		return compileInt(spec.intFn, node)
	case kindStr:
		return compileStr(spec.strFn, node)
	case kindDate:
		return compileDate(spec.dateFn, node)
	default:
		return nil, storyerrors.NewQueryErrorAt("unknown field kind", node.Pos)
	}
}

func compileInt(fn intAccessor, node *Node) (archive.Predicate, error) {
	value, err := strconv.ParseInt(node.Value, 10, 64)
	if err != nil {
		return nil, storyerrors.NewQueryErrorAt("invalid value for number type", node.Pos)
	}

	switch node.Op {
	case OpExact, OpFuzzy:
		return func(s *archive.Story) bool { return fn(s) == value }, nil
	case OpLess:
		return func(s *archive.Story) bool { return fn(s) < value }, nil
	case OpMore:
		return func(s *archive.Story) bool { return fn(s) > value }, nil
	default:
		return nil, storyerrors.NewQueryErrorAt("invalid operation for number type", node.Pos)
	}
}

func compileStr(fn strAccessor, node *Node) (archive.Predicate, error) {
	switch node.Op {
	case OpExact:
		want := node.Value
		return func(s *archive.Story) bool { return fn(s) == want }, nil
	case OpFuzzy:
		re, err := regexp.Compile("(?i)" + regexp.QuoteMeta(node.Value))
		if err != nil {
			return nil, storyerrors.NewQueryErrorAt("invalid value for fuzzy match", node.Pos)
		}
		if len(re.String()) > regexSizeLimit {
			return nil, storyerrors.NewQueryErrorAt("invalid value for fuzzy match", node.Pos)
		}
		return func(s *archive.Story) bool { return re.MatchString(fn(s)) }, nil
	default:
		return nil, storyerrors.NewQueryErrorAt("invalid operation for text type", node.Pos)
	}
}

func compileDate(fn dateAccessor, node *Node) (archive.Predicate, error) {
	value, err := dateparse.ParseLocal(node.Value)
	if err != nil {
		return nil, storyerrors.NewQueryErrorAt("invalid value for date type", node.Pos)
	}

	switch node.Op {
	case OpExact:
		return func(s *archive.Story) bool {
			dt := fn(s)
			return dt != nil && dt.Equal(value)
		}, nil
	case OpFuzzy:
		y1, m1, d1 := value.UTC().Date()
		return func(s *archive.Story) bool {
			dt := fn(s)
			if dt == nil {
				return false
			}
			y2, m2, d2 := dt.UTC().Date()
			return y1 == y2 && m1 == m2 && d1 == d2
		}, nil
	case OpLess:
		return func(s *archive.Story) bool {
			dt := fn(s)
			return dt != nil && dt.Before(value)
		}, nil
	case OpMore:
		return func(s *archive.Story) bool {
			dt := fn(s)
			return dt != nil && dt.After(value)
		}, nil
	default:
		return nil, storyerrors.NewQueryErrorAt("invalid operation for date type", node.Pos)
	}
}

// ParseAndCompile is the end-to-end entry point: parse text into an AST,
// then compile it into a predicate.
func ParseAndCompile(text string) (archive.Predicate, error) {
	node, err := Parse(strings.TrimSpace(text))
	if err != nil {
		return nil, err
	}
	return Compile(node)
}
