package remote

import (
	"context"
	"slices"
	"strconv"
	"strings"

	"fontpipe/fetch"
	"fontpipe/fontface"
	"fontpipe/provider"
)

const fontsourceURL = "https://api.fontsource.org/v1"

type fontsourceFont struct {
	ID        string   `json:"id"`
	Family    string   `json:"family"`
	Subsets   []string `json:"subsets"`
	Weights   []int    `json:"weights"`
	Styles    []string `json:"styles"`
	DefSubset string   `json:"defSubset"`
}

type fontsourceFile struct {
	URL struct {
		Woff2 string `json:"woff2"`
		Woff  string `json:"woff"`
		TTF   string `json:"ttf"`
	} `json:"url"`
}

type fontsourceDetail struct {
	ID           string            `json:"id"`
	Family       string            `json:"family"`
	DefSubset    string            `json:"defSubset"`
	UnicodeRange map[string]string `json:"unicodeRange"`
	// weight -> style -> subset
	Variants map[string]map[string]map[string]fontsourceFile `json:"variants"`
}

// Fontsource resolves families from Fontsource API. It returns font files
// directly so faces are built without parsing CSS.
type Fontsource struct {
	base
	apiURL string
	fonts  map[string]fontsourceFont
}

// NewFontsource accepts "api_url" parameter.
func NewFontsource(params provider.Params) (provider.Provider, error) {
	return &Fontsource{base: base{name: "fontsource"}, apiURL: params.String("api_url", fontsourceURL)}, nil
}

func (f *Fontsource) Setup(ctx context.Context, env *provider.Env) error {
	f.init(env)
	fonts := loadMeta(ctx, &f.base, f.metaKey(), func(ctx context.Context) ([]fontsourceFont, error) {
		var list []fontsourceFont
		err := f.fetch.JSON(ctx, fetch.Request{BaseURL: f.apiURL, Path: "/fonts"}, &list)
		return list, err
	})
	f.fonts = make(map[string]fontsourceFont, len(fonts))
	for _, font := range fonts {
		f.fonts[font.Family] = font
	}
	return nil
}

func (f *Fontsource) ResolveFontFaces(ctx context.Context, family string, opts provider.Options) (*provider.Result, error) {
	font, ok := f.fonts[family]
	if !ok {
		return nil, nil
	}
	return f.faces(ctx, family, opts, func(ctx context.Context) ([]fontface.Face, error) {
		var weights []string
		for _, w := range opts.Weights {
			n := fontface.NumericWeight(w)
			if s := strconv.Itoa(n); slices.Contains(font.Weights, n) && !slices.Contains(weights, s) {
				weights = append(weights, s)
			}
		}
		styles := slices.DeleteFunc(slices.Clone(opts.Styles), func(s string) bool { return !slices.Contains(font.Styles, s) })
		if len(weights) == 0 || len(styles) == 0 {
			return nil, nil
		}

		var detail fontsourceDetail
		if err := f.fetch.JSON(ctx, fetch.Request{BaseURL: f.apiURL, Path: "/fonts/" + font.ID}, &detail); err != nil {
			return nil, err
		}

		subsets := slices.DeleteFunc(slices.Clone(opts.Subsets), func(s string) bool { return !slices.Contains(font.Subsets, s) })
		if len(subsets) == 0 {
			subsets = []string{detail.DefSubset}
		}

		var faces []fontface.Face
		for _, weight := range weights {
			for _, style := range styles {
				for _, subset := range subsets {
					file, ok := detail.Variants[weight][style][subset]
					if !ok {
						continue
					}
					face := fontface.Face{Display: "swap", Weight: weight, Style: style}
					for _, src := range []fontface.Source{
						fontface.Remote(file.URL.Woff2, "woff2"),
						fontface.Remote(file.URL.Woff, "woff"),
						fontface.Remote(file.URL.TTF, "truetype"),
					} {
						if src.URL != "" {
							face.Src = append(face.Src, src)
						}
					}
					if len(face.Src) == 0 {
						continue
					}
					if r := detail.UnicodeRange[subset]; r != "" {
						for _, part := range strings.Split(r, ",") {
							face.UnicodeRange = append(face.UnicodeRange, strings.TrimSpace(part))
						}
					}
					faces = append(faces, face)
				}
			}
		}
		return faces, nil
	}), nil
}
