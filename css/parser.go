// Package css provides just enough of CSS parsing to find font related
// declarations and @font-face rules at any nesting level.
package css

import (
	"errors"
	"io"
	"strings"

	parse "github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
	"go.uber.org/zap"
)

// Parser parses CSS stylesheets into tree of rules and declarations.
type Parser struct {
	log *zap.Logger
}

// NewParser creates a new CSS parser.
func NewParser(log *zap.Logger) *Parser {
	if log == nil {
		log = zap.NewNop()
	}
	return &Parser{log: log.Named("css-parser")}
}

// Parse parses CSS text into a Stylesheet. Parsing never fails, malformed
// parts of the input are skipped.
// The optional source parameter identifies what's being parsed (for debug logging).
func (p *Parser) Parse(data string, source ...string) *Stylesheet {
	if len(source) > 0 && source[0] != "" {
		p.log.Debug("Parsing CSS", zap.String("source", source[0]), zap.Int("bytes", len(data)))
	}

	toks, err := tokenize(data)
	if err != nil {
		p.log.Debug("CSS tokenizer error", zap.Error(err))
	}

	st := &state{toks: toks, eof: len(data)}
	nodes, _ := st.parseList(true)
	return &Stylesheet{Source: data, Nodes: nodes}
}

func tokenize(data string) ([]Token, error) {
	l := css.NewLexer(parse.NewInputBytes([]byte(data)))

	var (
		toks   []Token
		offset int
	)
	for {
		tt, text := l.Next()
		if tt == css.ErrorToken {
			if err := l.Err(); err != nil && !errors.Is(err, io.EOF) {
				return toks, err
			}
			return toks, nil
		}
		toks = append(toks, Token{Type: tt, Data: string(text), Offset: offset})
		offset += len(text)
	}
}

type state struct {
	toks []Token
	pos  int
	eof  int
}

// parseList reads rules (and declarations when not on top level) until
// closing brace or end of input. Returns offset right after the block.
func (s *state) parseList(top bool) ([]Node, int) {
	var nodes []Node
	for s.pos < len(s.toks) {
		t := s.toks[s.pos]
		switch t.Type {
		case css.WhitespaceToken, css.CommentToken, css.CDOToken, css.CDCToken, css.SemicolonToken:
			s.pos++
		case css.RightBraceToken:
			s.pos++
			if !top {
				return nodes, t.End()
			}
		case css.AtKeywordToken:
			nodes = append(nodes, s.parseAtRule())
		default:
			if n := s.parseRuleOrDeclaration(top); n != nil {
				nodes = append(nodes, n)
			}
		}
	}
	return nodes, s.eof
}

// findStop returns index of first ';', '{' or '}' which is not enclosed in
// parenthesis or brackets, or len(toks).
func (s *state) findStop(from int) int {
	depth := 0
	for i := from; i < len(s.toks); i++ {
		switch s.toks[i].Type {
		case css.FunctionToken, css.LeftParenthesisToken, css.LeftBracketToken:
			depth++
		case css.RightParenthesisToken, css.RightBracketToken:
			if depth > 0 {
				depth--
			}
		case css.SemicolonToken, css.LeftBraceToken, css.RightBraceToken:
			if depth == 0 {
				return i
			}
		}
	}
	return len(s.toks)
}

func (s *state) parseAtRule() *AtRule {
	kw := s.toks[s.pos]
	rule := &AtRule{
		Name:  strings.ToLower(strings.TrimPrefix(kw.Data, "@")),
		Start: kw.Offset,
		End:   kw.End(),
	}

	stop := s.findStop(s.pos + 1)
	rule.Prelude = trimTokens(s.toks[s.pos+1 : stop])
	if len(rule.Prelude) > 0 {
		rule.End = rule.Prelude[len(rule.Prelude)-1].End()
	}
	s.pos = stop
	if stop == len(s.toks) {
		return rule
	}

	switch s.toks[stop].Type {
	case css.SemicolonToken:
		rule.End = s.toks[stop].End()
		s.pos++
	case css.LeftBraceToken:
		s.pos++
		rule.Block, rule.End = s.parseList(false)
		if rule.Block == nil {
			rule.Block = []Node{}
		}
	}
	// closing brace belongs to enclosing block
	return rule
}

func (s *state) parseRuleOrDeclaration(top bool) Node {
	stop := s.findStop(s.pos)

	if stop < len(s.toks) && s.toks[stop].Type == css.LeftBraceToken {
		rule := &Rule{
			Selector: strings.TrimSpace(joinTokens(s.toks[s.pos:stop])),
			Start:    s.toks[s.pos].Offset,
		}
		s.pos = stop + 1
		rule.Block, rule.End = s.parseList(false)
		return rule
	}

	var decl *Declaration
	if !top {
		decl = parseDeclaration(s.toks[s.pos:stop])
	}
	s.pos = stop
	if stop < len(s.toks) && s.toks[stop].Type == css.SemicolonToken {
		s.pos++
	}
	if decl == nil {
		return nil
	}
	return decl
}

func parseDeclaration(toks []Token) *Declaration {
	toks = trimTokens(toks)
	if len(toks) < 2 {
		return nil
	}
	name := toks[0]
	if name.Type != css.IdentToken && name.Type != css.CustomPropertyNameToken {
		return nil
	}
	i := 1
	for i < len(toks) && toks[i].insignificant() {
		i++
	}
	if i == len(toks) || toks[i].Type != css.ColonToken {
		return nil
	}

	d := &Declaration{
		Property: name.Data,
		Start:    name.Offset,
		End:      toks[i].End(),
	}
	if !strings.HasPrefix(d.Property, "--") {
		d.Property = strings.ToLower(d.Property)
	}

	value := trimTokens(toks[i+1:])
	if n := len(value); n >= 2 && value[n-1].Type == css.IdentToken && strings.EqualFold(value[n-1].Data, "important") {
		j := n - 2
		for j >= 0 && value[j].insignificant() {
			j--
		}
		if j >= 0 && value[j].Type == css.DelimToken && value[j].Data == "!" {
			d.Important = true
			value = trimTokens(value[:j])
		}
	}
	d.Value = value
	if len(toks) > 0 {
		d.End = toks[len(toks)-1].End()
	}
	return d
}

// trimTokens removes whitespace and comments from both ends.
func trimTokens(toks []Token) []Token {
	for len(toks) > 0 && toks[0].insignificant() {
		toks = toks[1:]
	}
	for len(toks) > 0 && toks[len(toks)-1].insignificant() {
		toks = toks[:len(toks)-1]
	}
	return toks
}

func joinTokens(toks []Token) string {
	var sb strings.Builder
	for _, t := range toks {
		sb.WriteString(t.Data)
	}
	return sb.String()
}
