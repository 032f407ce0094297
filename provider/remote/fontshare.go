package remote

import (
	"context"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"fontpipe/fetch"
	"fontpipe/fontface"
	"fontpipe/provider"
)

const (
	fontshareURL = "https://api.fontshare.com/v2"
	// upper bound on catalog pages
	fontshareMaxPages = 100
)

type fontshareStyle struct {
	IsItalic bool `json:"is_italic"`
	Weight   struct {
		Number int `json:"number"`
	} `json:"weight"`
}

type fontshareFont struct {
	Slug   string           `json:"slug"`
	Name   string           `json:"name"`
	Styles []fontshareStyle `json:"styles"`
}

// Fontshare resolves families from Indian Type Foundry's Fontshare.
type Fontshare struct {
	base
	apiURL string
	fonts  map[string]fontshareFont
}

// NewFontshare accepts "api_url" parameter.
func NewFontshare(params provider.Params) (provider.Provider, error) {
	return &Fontshare{base: base{name: "fontshare"}, apiURL: params.String("api_url", fontshareURL)}, nil
}

func (f *Fontshare) Setup(ctx context.Context, env *provider.Env) error {
	f.init(env)
	fonts := loadMeta(ctx, &f.base, f.metaKey(), f.catalog)
	f.fonts = make(map[string]fontshareFont, len(fonts))
	for _, font := range fonts {
		f.fonts[font.Name] = font
	}
	return nil
}

// catalog downloads all pages of font list.
func (f *Fontshare) catalog(ctx context.Context) ([]fontshareFont, error) {
	var fonts []fontshareFont
	for page := 0; page < fontshareMaxPages; page++ {
		var chunk struct {
			Fonts   []fontshareFont `json:"fonts"`
			HasMore bool            `json:"has_more"`
		}
		err := f.fetch.JSON(ctx, fetch.Request{
			BaseURL: f.apiURL,
			Path:    "/fonts",
			Query:   url.Values{"offset": {strconv.Itoa(page)}, "limit": {"100"}},
		}, &chunk)
		if err != nil {
			return nil, err
		}
		fonts = append(fonts, chunk.Fonts...)
		if !chunk.HasMore {
			break
		}
	}
	return fonts, nil
}

func (f *Fontshare) ResolveFontFaces(ctx context.Context, family string, opts provider.Options) (*provider.Result, error) {
	font, ok := f.fonts[family]
	if !ok {
		return nil, nil
	}
	return f.faces(ctx, family, opts, func(ctx context.Context) ([]fontface.Face, error) {
		italic := italicRequested(opts.Styles)
		var numbers []string
		for _, s := range font.Styles {
			if s.IsItalic && !italic {
				continue
			}
			n := strconv.Itoa(s.Weight.Number)
			if !slices.ContainsFunc(opts.Weights, func(w string) bool { return fontface.NumericWeight(w) == s.Weight.Number }) {
				continue
			}
			if !slices.Contains(numbers, n) {
				numbers = append(numbers, n)
			}
		}
		if len(numbers) == 0 {
			return nil, nil
		}

		css, err := f.fetch.Text(ctx, fetch.Request{
			BaseURL: f.apiURL,
			Path:    "/css",
			Query:   url.Values{"f[]": {font.Slug + "@" + strings.Join(numbers, ",")}},
		})
		if err != nil {
			return nil, err
		}
		return f.parser.ExtractFontFaceData(css, family), nil
	}), nil
}
