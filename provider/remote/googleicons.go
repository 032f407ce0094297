package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"slices"
	"strings"

	"fontpipe/fetch"
	"fontpipe/fontface"
	"fontpipe/provider"
)

const (
	googleIconsMetaURL = "https://fonts.google.com/metadata/icons?key=material_symbols&incomplete=true"
	// full variable range of Material Symbols
	symbolsAxes = "opsz,wght,FILL,GRAD@20..48,100..700,0..1,-50..200"
)

// GoogleIcons resolves Material Icons and Material Symbols families.
type GoogleIcons struct {
	base
	metaURL  string
	cssURL   string
	families []string
}

// NewGoogleIcons accepts "meta_url" and "css_url" parameters.
func NewGoogleIcons(params provider.Params) (provider.Provider, error) {
	return &GoogleIcons{
		base:    base{name: "googleicons"},
		metaURL: params.String("meta_url", googleIconsMetaURL),
		cssURL:  params.String("css_url", googleCSSURL),
	}, nil
}

func (g *GoogleIcons) Setup(ctx context.Context, env *provider.Env) error {
	g.init(env)
	g.families = loadMeta(ctx, &g.base, g.metaKey(), func(ctx context.Context) ([]string, error) {
		data, err := g.fetch.Bytes(ctx, fetch.Request{Path: g.metaURL})
		if err != nil {
			return nil, err
		}
		var m struct {
			Families []string `json:"families"`
		}
		if err := json.Unmarshal(stripXSSIPrefix(data), &m); err != nil {
			return nil, fmt.Errorf("unable to decode icons metadata: %w", err)
		}
		return m.Families, nil
	})
	return nil
}

func (g *GoogleIcons) ResolveFontFaces(ctx context.Context, family string, opts provider.Options) (*provider.Result, error) {
	if !slices.Contains(g.families, family) {
		return nil, nil
	}
	return g.faces(ctx, family, opts, func(ctx context.Context) ([]fontface.Face, error) {
		// legacy Material Icons have their own endpoint and no axes
		path, query := "/css2", url.Values{"family": {family + ":" + symbolsAxes}}
		if strings.Contains(family, "Icons") {
			path, query = "/icon", url.Values{"family": {family}}
		}

		var css strings.Builder
		for _, ua := range userAgents {
			text, err := g.fetch.Text(ctx, fetch.Request{BaseURL: g.cssURL, Path: path, Query: query, Header: userAgentHeader(ua.agent)})
			if err != nil {
				return nil, err
			}
			css.WriteString(text)
			css.WriteByte('\n')
		}
		return g.parser.ExtractFontFaceData(css.String(), family), nil
	}), nil
}
