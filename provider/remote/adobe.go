package remote

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"fontpipe/fetch"
	"fontpipe/fontface"
	"fontpipe/provider"
)

const (
	adobeAPIURL = "https://typekit.com"
	adobeCSSURL = "https://use.typekit.net"
)

type adobeFamily struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Slug       string   `json:"slug"`
	CSSNames   []string `json:"css_names"`
	Variations []string `json:"variations"`
}

type adobeKit struct {
	ID       string        `json:"id"`
	Families []adobeFamily `json:"families"`
}

// Adobe resolves families published in Adobe Fonts web projects (kits).
type Adobe struct {
	base
	apiURL string
	cssURL string
	ids    []string
	kits   []adobeKit
}

// NewAdobe requires "id" (single kit) or "kits" parameter, "api_url" and
// "css_url" are optional.
func NewAdobe(params provider.Params) (provider.Provider, error) {
	ids := slices.Concat(params.Strings("id"), params.Strings("kits"))
	if len(ids) == 0 {
		return nil, errors.New("adobe provider requires kit id")
	}
	return &Adobe{
		base:   base{name: "adobe"},
		apiURL: params.String("api_url", adobeAPIURL),
		cssURL: params.String("css_url", adobeCSSURL),
		ids:    ids,
	}, nil
}

func (a *Adobe) Setup(ctx context.Context, env *provider.Env) error {
	a.init(env)
	a.kits = a.kits[:0]
	for _, id := range a.ids {
		kit := loadMeta(ctx, &a.base, fmt.Sprintf("%s:%s-meta.json", a.name, id), func(ctx context.Context) (adobeKit, error) {
			var m struct {
				Kit adobeKit `json:"kit"`
			}
			err := a.fetch.JSON(ctx, fetch.Request{BaseURL: a.apiURL, Path: "/api/v1/json/kits/" + id + "/published"}, &m)
			return m.Kit, err
		})
		if kit.ID != "" {
			a.kits = append(a.kits, kit)
		}
	}
	return nil
}

func (a *Adobe) find(family string) (adobeKit, adobeFamily, bool) {
	for _, kit := range a.kits {
		for _, f := range kit.Families {
			if f.Name == family {
				return kit, f, true
			}
		}
	}
	return adobeKit{}, adobeFamily{}, false
}

func (a *Adobe) ResolveFontFaces(ctx context.Context, family string, opts provider.Options) (*provider.Result, error) {
	kit, font, ok := a.find(family)
	if !ok {
		return nil, nil
	}
	return a.faces(ctx, family, opts, func(ctx context.Context) ([]fontface.Face, error) {
		if !adobeHasVariation(font, opts) {
			return nil, nil
		}
		css, err := a.fetch.Text(ctx, fetch.Request{BaseURL: a.cssURL, Path: "/" + kit.ID + ".css"})
		if err != nil {
			return nil, err
		}
		faces := a.parser.ExtractFontFaceData(css, family)
		// kit stylesheets use css names rather than family names
		for _, name := range font.CSSNames {
			if len(faces) > 0 {
				break
			}
			faces = a.parser.ExtractFontFaceData(css, name)
		}
		return faces, nil
	}), nil
}

// adobeHasVariation checks font variation descriptions ("n4", "i7") against
// requested weights and styles.
func adobeHasVariation(font adobeFamily, opts provider.Options) bool {
	italic := italicRequested(opts.Styles)
	for _, v := range font.Variations {
		if strings.Contains(v, "i") && !italic {
			continue
		}
		if len(v) == 0 {
			continue
		}
		n, err := strconv.Atoi(v[len(v)-1:])
		if err != nil {
			continue
		}
		if slices.ContainsFunc(opts.Weights, func(w string) bool { return fontface.NumericWeight(w) == n*100 }) {
			return true
		}
	}
	return false
}
