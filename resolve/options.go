package resolve

import (
	"slices"

	"fontpipe/fontface"
	"fontpipe/provider"
)

// ProviderNone disables resolution of the family.
const ProviderNone = "none"

// Override is per-family configuration. Override with Src is manual: faces
// are built from its fields and providers are never asked. Otherwise it
// selects provider and replaces default resolve options.
type Override struct {
	Name     string   `yaml:"name" json:"name" validate:"required"`
	Global   bool     `yaml:"global,omitempty" json:"global,omitempty"`
	Preload  *bool    `yaml:"preload,omitempty" json:"preload,omitempty"`
	Provider string   `yaml:"provider,omitempty" json:"provider,omitempty"`
	Weights  []string `yaml:"weights,omitempty" json:"weights,omitempty"`
	Styles   []string `yaml:"styles,omitempty" json:"styles,omitempty"`
	Subsets  []string `yaml:"subsets,omitempty" json:"subsets,omitempty"`
	// Fallbacks are system fonts to generate metric overrides for.
	Fallbacks []string `yaml:"fallbacks,omitempty" json:"fallbacks,omitempty"`

	// Src is list of shorthand sources: "/fonts/a.woff2", "https://..." or
	// local font name.
	Src               []string `yaml:"src,omitempty" json:"src,omitempty"`
	Display           string   `yaml:"display,omitempty" json:"display,omitempty" validate:"omitempty,oneof=auto block swap fallback optional"`
	Weight            string   `yaml:"weight,omitempty" json:"weight,omitempty"`
	Style             string   `yaml:"style,omitempty" json:"style,omitempty"`
	Stretch           string   `yaml:"stretch,omitempty" json:"stretch,omitempty"`
	UnicodeRange      []string `yaml:"unicode_range,omitempty" json:"unicodeRange,omitempty"`
	FeatureSettings   string   `yaml:"feature_settings,omitempty" json:"featureSettings,omitempty"`
	VariationSettings string   `yaml:"variation_settings,omitempty" json:"variationSettings,omitempty"`
}

// IsManual reports if override defines sources itself.
func (o *Override) IsManual() bool {
	return o != nil && len(o.Src) > 0
}

// Face builds descriptor from manual override fields.
func (o *Override) Face() fontface.Face {
	face := fontface.Face{
		Display:           o.Display,
		Weight:            o.Weight,
		Style:             o.Style,
		Stretch:           o.Stretch,
		UnicodeRange:      slices.Clone(o.UnicodeRange),
		FeatureSettings:   o.FeatureSettings,
		VariationSettings: o.VariationSettings,
	}
	for _, s := range o.Src {
		face.Src = append(face.Src, fontface.ParseShorthand(s))
	}
	return face
}

// Defaults apply to every family unless override replaces them.
type Defaults struct {
	Weights []string `yaml:"weights" json:"weights"`
	Styles  []string `yaml:"styles" json:"styles"`
	Subsets []string `yaml:"subsets" json:"subsets"`
	// Fallbacks per generic family.
	Fallbacks map[string][]string `yaml:"fallbacks" json:"fallbacks"`
	Preload   *bool               `yaml:"preload,omitempty" json:"preload,omitempty"`
}

// DefaultDefaults returns built-in defaults.
func DefaultDefaults() Defaults {
	return Defaults{
		Weights: []string{"400"},
		Styles:  []string{"normal", "italic"},
		Subsets: []string{"cyrillic-ext", "cyrillic", "greek-ext", "greek", "vietnamese", "latin-ext", "latin"},
		Fallbacks: map[string][]string{
			"serif":         {"Times New Roman"},
			"sans-serif":    {"Arial"},
			"monospace":     {"Courier New"},
			"cursive":       {},
			"fantasy":       {},
			"system-ui":     {"BlinkMacSystemFont", "Segoe UI", "Roboto", "Helvetica Neue", "Arial"},
			"ui-serif":      {"Times New Roman"},
			"ui-sans-serif": {"Arial"},
			"ui-monospace":  {"Courier New"},
			"ui-rounded":    {},
			"emoji":         {},
			"math":          {},
			"fangsong":      {},
		},
	}
}

// merged returns options for providers: arrays of the override replace
// defaults as a whole.
func (d *Defaults) merged(o *Override) provider.Options {
	opts := provider.Options{
		Weights: slices.Clone(d.Weights),
		Styles:  slices.Clone(d.Styles),
		Subsets: slices.Clone(d.Subsets),
	}
	if o == nil {
		return opts
	}
	if len(o.Weights) > 0 {
		opts.Weights = slices.Clone(o.Weights)
	}
	if len(o.Styles) > 0 {
		opts.Styles = slices.Clone(o.Styles)
	}
	if len(o.Subsets) > 0 {
		opts.Subsets = slices.Clone(o.Subsets)
	}
	if len(o.Fallbacks) > 0 {
		opts.Fallbacks = slices.Clone(o.Fallbacks)
	}
	return opts
}

// Options configure Resolver.
type Options struct {
	Families []Override
	Defaults Defaults
	// Priority lists provider names to try first.
	Priority              []string
	DisableLocalFallbacks bool
}
