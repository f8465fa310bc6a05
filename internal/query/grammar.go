// Package query implements the metadata filter expression language and
// its compiler into Story predicates.
package query

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jocketf/storyquery/internal/storyerrors"
)

// Op is one of the four comparison operators recognized by the grammar.
type Op byte

const (
	OpExact Op = '='
	OpFuzzy Op = ':'
	OpLess  Op = '<'
	OpMore  Op = '>'
)

func (o Op) String() string { return string(rune(o)) }

// NodeKind discriminates the shape of an AST Node.
type NodeKind int

const (
	NodeOr NodeKind = iota
	NodeAnd
	NodeNot
	NodeLeaf
)

// Node is one AST node produced by Parse. Or/And nodes hold Children; Not
// holds a single Child; Leaf holds a recognized field name, an operator,
// and the trimmed, unescaped value text.
type Node struct {
	Kind     NodeKind
	Children []*Node
	Child    *Node
	Field    string
	Op       Op
	Value    string
	Pos      int
}

// fieldNames is every field name the grammar recognizes, longest first so
// that ambiguous prefixes ("author" vs "author id") resolve to the
// longest match.
var fieldNames = sortedFieldNames()

func sortedFieldNames() []string {
	names := make([]string, 0, len(fieldTable))
	for name := range fieldTable {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return len(names[i]) > len(names[j]) })
	return names
}

// Parse parses a filter expression into an AST. The returned error is
// always a *storyerrors.QueryError carrying a textual message and, where
// known, the rune offset at which parsing failed.
func Parse(query string) (*Node, error) {
	p := &parser{runes: []rune(query)}

	node, err := p.parseOfunc()
	if err != nil {
		return nil, err
	}

	p.skipSpace()
	if p.pos != len(p.runes) {
		return nil, storyerrors.NewQueryErrorAt("unexpected trailing input", p.pos)
	}

	return node, nil
}

type parser struct {
	runes []rune
	pos   int
}

func (p *parser) skipSpace() {
	for p.pos < len(p.runes) && p.runes[p.pos] == ' ' {
		p.pos++
	}
}

func (p *parser) peek() (rune, bool) {
	if p.pos >= len(p.runes) {
		return 0, false
	}
	return p.runes[p.pos], true
}

// parseOfunc := afunc ('|' afunc)*
func (p *parser) parseOfunc() (*Node, error) {
	first, err := p.parseAfunc()
	if err != nil {
		return nil, err
	}

	children := []*Node{first}
	for {
		p.skipSpace()
		c, ok := p.peek()
		if !ok || c != '|' {
			break
		}
		p.pos++

		next, err := p.parseAfunc()
		if err != nil {
			return nil, err
		}
		children = append(children, next)
	}

	if len(children) == 1 {
		return children[0], nil
	}
	return &Node{Kind: NodeOr, Children: children}, nil
}

// parseAfunc := nlist (',' nlist)*
func (p *parser) parseAfunc() (*Node, error) {
	first, err := p.parseNlist()
	if err != nil {
		return nil, err
	}

	children := []*Node{first}
	for {
		p.skipSpace()
		c, ok := p.peek()
		if !ok || c != ',' {
			break
		}
		p.pos++

		next, err := p.parseNlist()
		if err != nil {
			return nil, err
		}
		children = append(children, next)
	}

	if len(children) == 1 {
		return children[0], nil
	}
	return &Node{Kind: NodeAnd, Children: children}, nil
}

// parseNlist := '!'? parens
func (p *parser) parseNlist() (*Node, error) {
	p.skipSpace()

	c, ok := p.peek()
	if ok && c == '!' {
		p.pos++
		child, err := p.parseParens()
		if err != nil {
			return nil, err
		}
		return &Node{Kind: NodeNot, Child: child}, nil
	}

	return p.parseParens()
}

// parseParens := '(' ofunc ')' | item
func (p *parser) parseParens() (*Node, error) {
	p.skipSpace()

	c, ok := p.peek()
	if ok && c == '(' {
		p.pos++

		node, err := p.parseOfunc()
		if err != nil {
			return nil, err
		}

		p.skipSpace()
		c, ok := p.peek()
		if !ok || c != ')' {
			return nil, storyerrors.NewQueryErrorAt("expected closing parenthesis", p.pos)
		}
		p.pos++

		return node, nil
	}

	return p.parseItem()
}

// parseItem := field OP value
func (p *parser) parseItem() (*Node, error) {
	fieldPos := p.pos

	field, err := p.parseField()
	if err != nil {
		return nil, err
	}

	op, err := p.parseOp()
	if err != nil {
		return nil, err
	}

	value, err := p.parseValue()
	if err != nil {
		return nil, err
	}

	return &Node{Kind: NodeLeaf, Field: field, Op: op, Value: value, Pos: fieldPos}, nil
}

func (p *parser) parseField() (string, error) {
	p.skipSpace()

	remaining := string(p.runes[p.pos:])
	for _, name := range fieldNames {
		if !strings.HasPrefix(remaining, name) {
			continue
		}

		// Guard against a real field name being a strict prefix of an
		// unrecognized longer identifier (e.g. "id" inside "identity").
		rest := remaining[len(name):]
		if rest != "" {
			next := rest[0]
			if next >= 'a' && next <= 'z' {
				continue
			}
		}

		p.pos += len([]rune(name))
		return name, nil
	}

	return "", storyerrors.NewQueryErrorAt("unrecognized field name", p.pos)
}

func (p *parser) parseOp() (Op, error) {
	p.skipSpace()

	c, ok := p.peek()
	if !ok {
		return 0, storyerrors.NewQueryErrorAt("expected operator", p.pos)
	}

	switch c {
	case '=', ':', '<', '>':
		p.pos++
		return Op(c), nil
	default:
		return 0, storyerrors.NewQueryErrorAt(fmt.Sprintf("expected operator, found %q", c), p.pos)
	}
}

const escapable = "),|\\"

func (p *parser) parseValue() (string, error) {
	p.skipSpace()

	var raw []rune
	for p.pos < len(p.runes) {
		c := p.runes[p.pos]

		if c == '\\' {
			if p.pos+1 >= len(p.runes) || strings.IndexRune(escapable, p.runes[p.pos+1]) < 0 {
				return "", storyerrors.NewQueryErrorAt("invalid escape sequence", p.pos)
			}
			raw = append(raw, c, p.runes[p.pos+1])
			p.pos += 2
			continue
		}

		if c == ')' || c == ',' || c == '|' {
			break
		}

		raw = append(raw, c)
		p.pos++
	}

	return unescapeValue(strings.TrimSpace(string(raw))), nil
}

func unescapeValue(s string) string {
	s = strings.ReplaceAll(s, `\)`, ")")
	s = strings.ReplaceAll(s, `\,`, ",")
	s = strings.ReplaceAll(s, `\|`, "|")
	s = strings.ReplaceAll(s, `\\`, `\`)
	return s
}
