package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"fontpipe/fetch"
	"fontpipe/fontface"
	"fontpipe/provider"
)

const (
	googleMetaURL = "https://fonts.google.com/metadata/fonts"
	googleCSSURL  = "https://fonts.googleapis.com"
)

type googleAxis struct {
	Tag string  `json:"tag"`
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

type googleFamily struct {
	Family string              `json:"family"`
	Fonts  map[string]struct{} `json:"fonts"`
	Axes   []googleAxis        `json:"axes"`
}

type googleMeta struct {
	FamilyMetadataList []googleFamily `json:"familyMetadataList"`
}

// Google resolves families from Google Fonts.
type Google struct {
	base
	metaURL  string
	cssURL   string
	families map[string]googleFamily
}

// NewGoogle accepts "meta_url" and "css_url" parameters.
func NewGoogle(params provider.Params) (provider.Provider, error) {
	return &Google{
		base:    base{name: "google"},
		metaURL: params.String("meta_url", googleMetaURL),
		cssURL:  params.String("css_url", googleCSSURL),
	}, nil
}

func (g *Google) Setup(ctx context.Context, env *provider.Env) error {
	g.init(env)
	meta := loadMeta(ctx, &g.base, g.metaKey(), func(ctx context.Context) (googleMeta, error) {
		var m googleMeta
		data, err := g.fetch.Bytes(ctx, fetch.Request{Path: g.metaURL})
		if err != nil {
			return m, err
		}
		if err := json.Unmarshal(stripXSSIPrefix(data), &m); err != nil {
			return m, fmt.Errorf("unable to decode google metadata: %w", err)
		}
		return m, nil
	})
	g.families = make(map[string]googleFamily, len(meta.FamilyMetadataList))
	for _, f := range meta.FamilyMetadataList {
		g.families[f.Family] = f
	}
	return nil
}

func (g *Google) ResolveFontFaces(ctx context.Context, family string, opts provider.Options) (*provider.Result, error) {
	f, ok := g.families[family]
	if !ok {
		return nil, nil
	}
	return g.faces(ctx, family, opts, func(ctx context.Context) ([]fontface.Face, error) {
		variants := googleVariants(f, opts)
		if len(variants) == 0 {
			return nil, nil
		}
		query := url.Values{"family": {family + ":ital,wght@" + strings.Join(variants, ";")}}

		var css strings.Builder
		for _, ua := range userAgents {
			text, err := g.fetch.Text(ctx, fetch.Request{BaseURL: g.cssURL, Path: "/css2", Query: query, Header: userAgentHeader(ua.agent)})
			if err != nil {
				return nil, err
			}
			css.WriteString(text)
			css.WriteByte('\n')
		}
		return g.parser.ExtractFontFaceData(css.String(), family), nil
	}), nil
}

func (f googleFamily) axis(tag string) (googleAxis, bool) {
	for _, a := range f.Axes {
		if a.Tag == tag {
			return a, true
		}
	}
	return googleAxis{}, false
}

func (f googleFamily) hasItalic() bool {
	for k := range f.Fonts {
		if strings.HasSuffix(k, "i") {
			return true
		}
	}
	return false
}

type googleVariant struct {
	ital   int
	weight float64
	text   string
}

// googleVariants builds sorted "ital,wght" tuples of CSS2 API request
// limited to what family actually has.
func googleVariants(f googleFamily, opts provider.Options) []string {
	wght, variable := f.axis("wght")

	var itals []int
	for _, s := range opts.Styles {
		ital := 0
		if s == "italic" || s == "oblique" {
			if !f.hasItalic() {
				continue
			}
			ital = 1
		}
		if !slices.Contains(itals, ital) {
			itals = append(itals, ital)
		}
	}

	var list []googleVariant
	for _, ital := range itals {
		for _, w := range opts.Weights {
			v := googleVariant{ital: ital}
			if fields := strings.Fields(w); len(fields) == 2 {
				if !variable {
					continue
				}
				lo, err1 := strconv.ParseFloat(fields[0], 64)
				hi, err2 := strconv.ParseFloat(fields[1], 64)
				if err1 != nil || err2 != nil {
					continue
				}
				lo, hi = max(lo, wght.Min), min(hi, wght.Max)
				if lo > hi {
					continue
				}
				v.weight = lo
				v.text = fmt.Sprintf("%d,%s..%s", ital, formatNumber(lo), formatNumber(hi))
			} else {
				n := fontface.NumericWeight(w)
				if n == 0 {
					continue
				}
				if variable {
					if float64(n) < wght.Min || float64(n) > wght.Max {
						continue
					}
				} else {
					k := strconv.Itoa(n)
					if ital == 1 {
						k += "i"
					}
					if _, ok := f.Fonts[k]; !ok {
						continue
					}
				}
				v.weight = float64(n)
				v.text = fmt.Sprintf("%d,%d", ital, n)
			}
			if !slices.ContainsFunc(list, func(e googleVariant) bool { return e.text == v.text }) {
				list = append(list, v)
			}
		}
	}
	slices.SortFunc(list, func(a, b googleVariant) int {
		if a.ital != b.ital {
			return a.ital - b.ital
		}
		switch {
		case a.weight < b.weight:
			return -1
		case a.weight > b.weight:
			return 1
		}
		return 0
	})

	res := make([]string, 0, len(list))
	for _, v := range list {
		res = append(res, v.text)
	}
	return res
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
