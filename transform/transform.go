// Package transform injects @font-face declarations for families used by
// stylesheets and inserts metric matched fallback families next to them.
package transform

import (
	"context"
	"path"
	"regexp"
	"slices"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"fontpipe/css"
	"fontpipe/fontface"
	"fontpipe/metrics"
	"fontpipe/resolve"
)

// Resolver provides faces for families.
type Resolver interface {
	Resolve(ctx context.Context, req resolve.Request) (*resolve.Result, error)
	IsGlobal(family string) bool
	ShouldPreload(family string, face *fontface.Face) bool
}

// FallbackGenerator produces metric overrides for fallback fonts.
type FallbackGenerator interface {
	GenerateFallbacks(ctx context.Context, family string, face *fontface.Face, fallbacks []string) []metrics.Block
}

// Options control what is processed and how output looks.
type Options struct {
	// ProcessCSSVariables treats custom properties as font family lists.
	ProcessCSSVariables bool
	// Minify injected declarations.
	Minify bool
}

// Transformer rewrites stylesheets. It is safe for concurrent use, files
// are independent except for shared preload map and resolver memo.
type Transformer struct {
	resolver  Resolver
	fallbacks FallbackGenerator
	parser    *css.Parser
	preload   *PreloadMap
	opts      Options
	log       *zap.Logger
}

// New creates transformer. Nil fallbacks disables fallback generation, nil
// preload map disables preload bookkeeping.
func New(r Resolver, fallbacks FallbackGenerator, preload *PreloadMap, opts Options, log *zap.Logger) *Transformer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Transformer{
		resolver:  r,
		fallbacks: fallbacks,
		parser:    css.NewParser(log),
		preload:   preload,
		opts:      opts,
		log:       log.Named("transform"),
	}
}

// Preloads returns preload map transformer records into.
func (t *Transformer) Preloads() *PreloadMap {
	return t.preload
}

var (
	cssFileRE      = regexp.MustCompile(`\.(?:css|scss|sass|postcss|pcss|less|stylus|styl)(?:\?[^.]+)?$`)
	cssLangQueryRE = regexp.MustCompile(`&lang\.css`)
	inlineStyleRE  = regexp.MustCompile(`[?&]index=\d+\.css$`)
	skipRE         = regexp.MustCompile(`/node_modules/vite-plugin-vue-inspector/`)

	fontDeclRE = regexp.MustCompile(`(?i)font(?:-family)?\s*:`)
)

// IsCSS reports if file name is a stylesheet.
func IsCSS(id string) bool {
	return cssFileRE.MatchString(id)
}

// Accepts reports if module id should be transformed.
func Accepts(id string) bool {
	if skipRE.MatchString(id) {
		return false
	}
	return IsCSS(id) || cssLangQueryRE.MatchString(id) || inlineStyleRE.MatchString(id)
}

// usage is single declaration using a family as primary one.
type usage struct {
	// end of primary family name in source
	end int
	// all names already present in the list
	names []string
}

type familyInfo struct {
	name      string
	fallbacks []string
	generic   string
	usages    []usage
}

type edit struct {
	pos  int
	text string
}

// Transform processes single stylesheet. It returns transformed code and
// whether anything was changed. With relative set absolute font urls of
// injected declarations are made relative to directory of id, this is
// used for final bundle assets.
func (t *Transformer) Transform(ctx context.Context, id, code string, relative bool) (string, bool, error) {
	if !t.opts.ProcessCSSVariables && !fontDeclRE.MatchString(code) {
		return code, false, nil
	}

	sheet := t.parser.Parse(code, id)
	defined := definedFamilies(sheet)
	families := t.collectFamilies(sheet, defined)
	if len(families) == 0 {
		return code, false, nil
	}

	results := make([]*resolve.Result, len(families))
	g, gctx := errgroup.WithContext(ctx)
	for i, f := range families {
		g.Go(func() error {
			res, err := t.resolver.Resolve(gctx, resolve.Request{Family: f.name, Fallbacks: f.fallbacks, Generic: f.generic})
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return code, false, err
	}

	var (
		blocks []string
		seen   = make(map[string]bool)
		edits  []edit
	)
	add := func(block string) {
		if !seen[block] {
			seen[block] = true
			blocks = append(blocks, block)
		}
	}

	for i, f := range families {
		res := results[i]
		if res == nil || len(res.Fonts) == 0 {
			continue
		}
		for j := range res.Fonts {
			face := &res.Fonts[j]
			block := fontface.Render(f.name, *face)
			if relative {
				block = css.RewriteURLs(block, func(u string) string { return relativeURL(id, u) })
			}
			add(block)

			if t.preload != nil && t.resolver.ShouldPreload(f.name, face) {
				if u := face.FirstRemote(); u != "" {
					t.preload.Add(id, u)
				}
			}
		}

		if t.fallbacks == nil || len(res.Fallbacks) == 0 {
			continue
		}
		var names []string
		for _, b := range t.fallbacks.GenerateFallbacks(ctx, f.name, &res.Fonts[0], res.Fallbacks) {
			add(b.CSS)
			names = append(names, b.Family)
		}
		for _, u := range f.usages {
			if text := insertion(names, u.names); text != "" {
				edits = append(edits, edit{pos: u.end, text: text})
			}
		}
	}
	if len(blocks) == 0 {
		return code, false, nil
	}

	injected := strings.Join(blocks, "\n") + "\n"
	if t.opts.Minify {
		injected = t.minify(injected)
	}
	t.log.Debug("Font faces injected", zap.String("id", id), zap.Int("families", len(families)), zap.Int("blocks", len(blocks)))
	return injected + applyEdits(code, edits), true, nil
}

// definedFamilies returns names of families declared by @font-face rules
// of the stylesheet, lower cased.
func definedFamilies(sheet *css.Stylesheet) map[string]bool {
	defined := make(map[string]bool)
	for _, ff := range sheet.FontFaces() {
		for _, d := range css.Declarations(ff.Block, "font-family") {
			for _, f := range css.FamilyList(d) {
				if f.Name != "" {
					defined[strings.ToLower(f.Name)] = true
				}
			}
		}
	}
	return defined
}

// collectFamilies walks all declarations outside of @font-face and returns
// families used as primary ones in first seen order.
func (t *Transformer) collectFamilies(sheet *css.Stylesheet, defined map[string]bool) []*familyInfo {
	var (
		families []*familyInfo
		index    = make(map[string]*familyInfo)
	)
	sheet.Walk(func(n css.Node, _ []css.Node) bool {
		switch v := n.(type) {
		case *css.AtRule:
			return !v.IsFontFace()
		case *css.Declaration:
			if v.Property != "font-family" && v.Property != "font" && !(t.opts.ProcessCSSVariables && v.IsCustomProperty()) {
				return false
			}
			list := css.FamilyList(v)
			if len(list) == 0 || list[0].Keyword || list[0].Name == "" {
				return false
			}
			primary := list[0]
			if defined[strings.ToLower(primary.Name)] || t.resolver.IsGlobal(primary.Name) {
				return false
			}

			var names, fallbacks []string
			for k, f := range list {
				names = append(names, f.Name)
				if k > 0 && !f.Keyword && f.Name != "" {
					fallbacks = append(fallbacks, f.Name)
				}
			}

			info, ok := index[primary.Name]
			if !ok {
				info = &familyInfo{name: primary.Name, fallbacks: fallbacks, generic: css.ExtractGeneric(v)}
				index[primary.Name] = info
				families = append(families, info)
			}
			info.usages = append(info.usages, usage{end: primary.End, names: names})
		}
		return true
	})
	return families
}

// insertion returns text adding fallback names missing from the list.
func insertion(fallbacks, present []string) string {
	var sb strings.Builder
	for _, name := range fallbacks {
		if slices.Contains(present, name) {
			continue
		}
		sb.WriteString(`, "`)
		sb.WriteString(css.EscapeDoubleQuoted(name))
		sb.WriteString(`"`)
	}
	return sb.String()
}

// applyEdits inserts texts at positions of the original code.
func applyEdits(code string, edits []edit) string {
	if len(edits) == 0 {
		return code
	}
	slices.SortStableFunc(edits, func(a, b edit) int { return a.pos - b.pos })

	var (
		sb   strings.Builder
		last int
	)
	sb.Grow(len(code))
	for _, e := range edits {
		sb.WriteString(code[last:e.pos])
		sb.WriteString(e.text)
		last = e.pos
	}
	sb.WriteString(code[last:])
	return sb.String()
}

// relativeURL makes root relative url relative to directory of asset id.
// Anything else is returned unchanged.
func relativeURL(id, u string) string {
	if !strings.HasPrefix(u, "/") || strings.HasPrefix(u, "//") {
		return u
	}
	rel, err := relativePath(path.Dir("/"+strings.TrimPrefix(id, "/")), u)
	if err != nil {
		return u
	}
	return rel
}
