package css

import (
	"strings"

	"github.com/tdewolff/parse/v2/css"
)

// Token is lexer token with its absolute byte offset in the source.
type Token struct {
	Type   css.TokenType
	Data   string
	Offset int
}

// End returns offset right after the token.
func (t Token) End() int {
	return t.Offset + len(t.Data)
}

func (t Token) insignificant() bool {
	return t.Type == css.WhitespaceToken || t.Type == css.CommentToken
}

// Node is an element of parsed stylesheet: *AtRule, *Rule or *Declaration.
type Node interface {
	Span() (start, end int)
}

// AtRule is @-rule, Block is nil for statements like @import.
type AtRule struct {
	Name    string
	Prelude []Token
	Block   []Node
	Start   int
	End     int
}

func (a *AtRule) Span() (int, int) { return a.Start, a.End }

// IsFontFace reports if this is @font-face rule.
func (a *AtRule) IsFontFace() bool {
	return a.Name == "font-face"
}

// Rule is qualified rule, its block may contain declarations as well as
// nested rules.
type Rule struct {
	Selector string
	Block    []Node
	Start    int
	End      int
}

func (r *Rule) Span() (int, int) { return r.Start, r.End }

// Declaration is a single property. Value does not include surrounding
// whitespace and trailing !important.
type Declaration struct {
	Property  string
	Value     []Token
	Important bool
	Start     int
	End       int
}

func (d *Declaration) Span() (int, int) { return d.Start, d.End }

// IsCustomProperty reports if this is --custom-property declaration.
func (d *Declaration) IsCustomProperty() bool {
	return strings.HasPrefix(d.Property, "--")
}

// Text returns declaration value as it appears in the source.
func (d *Declaration) Text() string {
	var sb strings.Builder
	for _, t := range d.Value {
		sb.WriteString(t.Data)
	}
	return sb.String()
}

// Stylesheet is parsed CSS source.
type Stylesheet struct {
	Source string
	Nodes  []Node
}

// Walk visits all nodes in document order. Parents holds enclosing rules of
// the node, outermost first. When fn returns false children of the node are
// not visited.
func (s *Stylesheet) Walk(fn func(n Node, parents []Node) bool) {
	walk(s.Nodes, nil, fn)
}

func walk(nodes []Node, parents []Node, fn func(Node, []Node) bool) {
	for _, n := range nodes {
		if !fn(n, parents) {
			continue
		}
		var children []Node
		switch v := n.(type) {
		case *AtRule:
			children = v.Block
		case *Rule:
			children = v.Block
		}
		if len(children) > 0 {
			walk(children, append(parents[:len(parents):len(parents)], n), fn)
		}
	}
}

// FontFaces returns all @font-face rules regardless of nesting.
func (s *Stylesheet) FontFaces() []*AtRule {
	var res []*AtRule
	s.Walk(func(n Node, _ []Node) bool {
		if a, ok := n.(*AtRule); ok && a.IsFontFace() {
			res = append(res, a)
			return false
		}
		return true
	})
	return res
}

// Declarations returns declarations with given property name found in the
// block.
func Declarations(block []Node, property string) []*Declaration {
	var res []*Declaration
	for _, n := range block {
		if d, ok := n.(*Declaration); ok && d.Property == property {
			res = append(res, d)
		}
	}
	return res
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) < 2 {
		return s
	}
	if (s[0] == '"' && s[len(s)-1] == '"') ||
		(s[0] == '\'' && s[len(s)-1] == '\'') {
		return unescape(s[1 : len(s)-1])
	}
	return s
}

func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// EscapeDoubleQuoted escapes value to be put into double quoted CSS string.
func EscapeDoubleQuoted(s string) string {
	if !strings.ContainsAny(s, `"\`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 4)
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
