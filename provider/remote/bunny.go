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

const bunnyURL = "https://fonts.bunny.net"

type bunnyFamily struct {
	FamilyName string   `json:"familyName"`
	Weights    []int    `json:"weights"`
	Styles     []string `json:"styles"`
}

// Bunny resolves families from Bunny Fonts.
type Bunny struct {
	base
	apiURL string
	meta   map[string]bunnyFamily
	ids    map[string]string
}

// NewBunny accepts "api_url" parameter.
func NewBunny(params provider.Params) (provider.Provider, error) {
	return &Bunny{base: base{name: "bunny"}, apiURL: params.String("api_url", bunnyURL)}, nil
}

func (b *Bunny) Setup(ctx context.Context, env *provider.Env) error {
	b.init(env)
	b.meta = loadMeta(ctx, &b.base, b.metaKey(), func(ctx context.Context) (map[string]bunnyFamily, error) {
		var m map[string]bunnyFamily
		err := b.fetch.JSON(ctx, fetch.Request{BaseURL: b.apiURL, Path: "/list"}, &m)
		return m, err
	})
	b.ids = make(map[string]string, len(b.meta))
	for id, f := range b.meta {
		b.ids[f.FamilyName] = id
	}
	return nil
}

var bunnyStyles = map[string]string{
	"normal":  "",
	"italic":  "i",
	"oblique": "i",
}

func (b *Bunny) ResolveFontFaces(ctx context.Context, family string, opts provider.Options) (*provider.Result, error) {
	id, ok := b.ids[family]
	if !ok {
		return nil, nil
	}
	font := b.meta[id]
	return b.faces(ctx, family, opts, func(ctx context.Context) ([]fontface.Face, error) {
		var styles []string
		for _, s := range opts.Styles {
			if suffix, ok := bunnyStyles[s]; ok && !slices.Contains(styles, suffix) {
				styles = append(styles, suffix)
			}
		}
		var variants []string
		for _, w := range opts.Weights {
			n := fontface.NumericWeight(w)
			if !slices.Contains(font.Weights, n) {
				continue
			}
			for _, s := range styles {
				if v := strconv.Itoa(n) + s; !slices.Contains(variants, v) {
					variants = append(variants, v)
				}
			}
		}
		if len(variants) == 0 {
			return nil, nil
		}

		css, err := b.fetch.Text(ctx, fetch.Request{
			BaseURL: b.apiURL,
			Path:    "/css",
			Query:   url.Values{"family": {id + ":" + strings.Join(variants, ",")}},
		})
		if err != nil {
			return nil, err
		}
		return b.parser.ExtractFontFaceData(css, family), nil
	}), nil
}
