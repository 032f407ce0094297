package css

import (
	"strings"

	"github.com/tdewolff/parse/v2/css"
	"go.uber.org/zap"

	"fontpipe/fontface"
)

// ExtractFontFaceData collects @font-face rules from CSS (usually returned
// by font provider). When family is not empty rules declaring other families
// are dropped. Rules with identical descriptors are merged and sources of
// every face are sorted by preference.
func (p *Parser) ExtractFontFaceData(data, family string) []fontface.Face {
	sheet := p.Parse(data)

	var faces []fontface.Face
	for _, rule := range sheet.FontFaces() {
		face, name := fontFaceFromBlock(rule.Block)
		if family != "" && name != "" && !strings.EqualFold(name, family) {
			continue
		}
		if len(face.Src) == 0 {
			p.log.Debug("Ignoring @font-face without sources", zap.String("family", name))
			continue
		}
		faces = append(faces, face)
	}

	faces = fontface.Merge(faces)
	for i := range faces {
		faces[i].SortSources()
	}
	return faces
}

func fontFaceFromBlock(block []Node) (fontface.Face, string) {
	var (
		face   fontface.Face
		family string
	)
	for _, n := range block {
		d, ok := n.(*Declaration)
		if !ok {
			continue
		}
		switch d.Property {
		case "font-family":
			if names := ExtractFontFamilies(d); len(names) > 0 {
				family = names[0]
			}
		case "src":
			face.Src = parseSources(d.Value)
		case "font-display":
			face.Display = spaced(d.Value)
		case "font-weight":
			face.Weight = spaced(d.Value)
		case "font-style":
			face.Style = spaced(d.Value)
		case "font-stretch":
			face.Stretch = spaced(d.Value)
		case "unicode-range":
			for _, seg := range splitComma(d.Value) {
				if r := strings.TrimSpace(joinTokens(seg)); r != "" {
					face.UnicodeRange = append(face.UnicodeRange, r)
				}
			}
		case "font-feature-settings":
			face.FeatureSettings = d.Text()
		case "font-variation-settings":
			face.VariationSettings = d.Text()
		}
	}
	return face, family
}

// spaced joins significant tokens with single space.
func spaced(toks []Token) string {
	var parts []string
	for _, t := range toks {
		if !t.insignificant() {
			parts = append(parts, t.Data)
		}
	}
	return strings.Join(parts, " ")
}

func parseSources(toks []Token) []fontface.Source {
	var res []fontface.Source
	for _, seg := range splitComma(toks) {
		var (
			src  fontface.Source
			have bool
		)
		for i := 0; i < len(seg); i++ {
			t := seg[i]
			switch t.Type {
			case css.URLToken:
				src.URL, have = urlValue(t.Data), true
			case css.FunctionToken:
				arg, next := functionArgument(seg, i+1)
				switch strings.ToLower(t.Data) {
				case "url(":
					src.URL, have = arg, true
				case "local(":
					src.Name, have = arg, true
				case "format(":
					src.Format = arg
				case "tech(":
					src.Tech = arg
				}
				i = next
			}
		}
		if !have || (src.URL == "" && src.Name == "") {
			continue
		}
		if src.URL != "" {
			src.Name = ""
			if src.Format == "" {
				src.Format = fontface.FormatFromPath(src.URL)
			}
		}
		res = append(res, src)
	}
	return res
}

// functionArgument returns unquoted argument of the function which opening
// token precedes from, and index of closing parenthesis.
func functionArgument(seg []Token, from int) (string, int) {
	var (
		sb    strings.Builder
		depth int
	)
	for i := from; i < len(seg); i++ {
		t := seg[i]
		switch t.Type {
		case css.FunctionToken, css.LeftParenthesisToken:
			depth++
		case css.RightParenthesisToken:
			if depth == 0 {
				return unquote(sb.String()), i
			}
			depth--
		}
		sb.WriteString(t.Data)
	}
	return unquote(sb.String()), len(seg)
}

// urlValue extracts address from url() token, quoted or not.
func urlValue(data string) string {
	if len(data) >= 4 && strings.EqualFold(data[:4], "url(") {
		data = data[4:]
	}
	data = strings.TrimSuffix(data, ")")
	return unquote(strings.TrimSpace(data))
}
