package css

import (
	"strings"

	"github.com/tdewolff/parse/v2/css"
)

// https://developer.mozilla.org/en-US/docs/Web/CSS/font-family
var genericFamilies = map[string]bool{
	"serif":         true,
	"sans-serif":    true,
	"monospace":     true,
	"cursive":       true,
	"fantasy":       true,
	"system-ui":     true,
	"ui-serif":      true,
	"ui-sans-serif": true,
	"ui-monospace":  true,
	"ui-rounded":    true,
	"emoji":         true,
	"math":          true,
	"fangsong":      true,
}

var globalValues = map[string]bool{
	"inherit":      true,
	"initial":      true,
	"revert":       true,
	"revert-layer": true,
	"unset":        true,
}

// IsGeneric reports if name is CSS generic family keyword.
func IsGeneric(name string) bool {
	return genericFamilies[strings.ToLower(name)]
}

// Family is a single entry of font family list.
type Family struct {
	Name string
	// Keyword is set for unquoted generic families and global values.
	Keyword bool
	Quoted  bool
	Start   int
	End     int
}

// FamilyList returns all entries of the family list carried by declaration.
// font-family and custom properties are treated as plain lists, for font
// shorthand only part after the font size is considered. Entries which are
// not names (var(), numbers) are returned with empty Name.
func FamilyList(d *Declaration) []Family {
	var toks []Token
	switch {
	case d.Property == "font":
		toks = shorthandFamilies(d.Value)
	default:
		toks = d.Value
	}

	var res []Family
	for _, seg := range splitComma(toks) {
		if f, ok := segmentFamily(seg); ok {
			res = append(res, f)
		}
	}
	return res
}

// ExtractFontFamilies returns ordered family names from declaration
// excluding generic families and global values.
func ExtractFontFamilies(d *Declaration) []string {
	var res []string
	for _, f := range FamilyList(d) {
		if !f.Keyword && f.Name != "" {
			res = append(res, f.Name)
		}
	}
	return res
}

// ExtractGeneric returns the last generic family keyword from declaration
// or empty string.
func ExtractGeneric(d *Declaration) string {
	generic := ""
	for _, f := range FamilyList(d) {
		if f.Keyword && genericFamilies[strings.ToLower(f.Name)] {
			generic = strings.ToLower(f.Name)
		}
	}
	return generic
}

func splitComma(toks []Token) [][]Token {
	var (
		res   [][]Token
		depth int
		start int
	)
	for i, t := range toks {
		switch t.Type {
		case css.FunctionToken, css.LeftParenthesisToken, css.LeftBracketToken:
			depth++
		case css.RightParenthesisToken, css.RightBracketToken:
			if depth > 0 {
				depth--
			}
		case css.CommaToken:
			if depth == 0 {
				res = append(res, toks[start:i])
				start = i + 1
			}
		}
	}
	if start < len(toks) {
		res = append(res, toks[start:])
	}
	return res
}

// segmentFamily converts tokens between commas into family: single string
// is taken verbatim, sequence of identifiers is joined with single space.
func segmentFamily(seg []Token) (Family, bool) {
	seg = trimTokens(seg)
	if len(seg) == 0 {
		return Family{}, false
	}
	f := Family{Start: seg[0].Offset, End: seg[len(seg)-1].End()}

	if len(seg) == 1 && seg[0].Type == css.StringToken {
		f.Name = unquote(seg[0].Data)
		f.Quoted = true
		return f, f.Name != ""
	}

	var words []string
	for _, t := range seg {
		switch {
		case t.Type == css.IdentToken:
			words = append(words, t.Data)
		case t.insignificant():
		default:
			return Family{Start: f.Start, End: f.End}, true
		}
	}
	f.Name = strings.Join(words, " ")
	if len(words) == 1 {
		lw := strings.ToLower(f.Name)
		f.Keyword = genericFamilies[lw] || globalValues[lw]
	}
	return f, true
}

var sizeKeywords = map[string]bool{
	"xx-small":  true,
	"x-small":   true,
	"small":     true,
	"medium":    true,
	"large":     true,
	"x-large":   true,
	"xx-large":  true,
	"xxx-large": true,
	"smaller":   true,
	"larger":    true,
}

// shorthandFamilies returns tokens of font shorthand value following the
// font size and optional line height.
func shorthandFamilies(toks []Token) []Token {
	end := len(toks)
	for i, t := range toks {
		if t.Type == css.CommaToken {
			end = i
			break
		}
	}

	// first size wins, the same words may be part of family name
	size := -1
scan:
	for i := range end {
		switch t := toks[i]; t.Type {
		case css.DimensionToken, css.PercentageToken:
			size = i
			break scan
		case css.IdentToken:
			if sizeKeywords[strings.ToLower(t.Data)] {
				size = i
				break scan
			}
		case css.FunctionToken:
			// calc() and friends, family cannot start with function
			return nil
		}
	}
	if size < 0 {
		return nil
	}

	next := func(i int) int {
		for i < len(toks) && toks[i].insignificant() {
			i++
		}
		return i
	}
	i := next(size + 1)
	if i < end && toks[i].Type == css.DelimToken && toks[i].Data == "/" {
		i = next(i + 1)
		if i < end {
			i++
		}
	}
	if i > len(toks) {
		i = len(toks)
	}
	return toks[i:]
}
