package fontface

import (
	"slices"
	"strconv"
	"strings"
)

// Face is everything necessary to produce single @font-face rule.
type Face struct {
	Src               []Source `json:"src"`
	Display           string   `json:"display,omitempty"`
	Weight            string   `json:"weight,omitempty"`
	Style             string   `json:"style,omitempty"`
	Stretch           string   `json:"stretch,omitempty"`
	UnicodeRange      []string `json:"unicodeRange,omitempty"`
	FeatureSettings   string   `json:"featureSettings,omitempty"`
	VariationSettings string   `json:"variationSettings,omitempty"`
}

// HasRemote reports if at least one of the sources has to be downloaded.
func (f *Face) HasRemote() bool {
	return slices.ContainsFunc(f.Src, func(s Source) bool { return !s.IsLocal() })
}

// FirstRemote returns url of the first remote source or empty string.
func (f *Face) FirstRemote() string {
	for _, s := range f.Src {
		if !s.IsLocal() {
			return s.URL
		}
	}
	return ""
}

// descriptorKey identifies face by everything except its sources.
func (f *Face) descriptorKey() string {
	return strings.Join([]string{
		f.Display, f.Weight, f.Style, f.Stretch,
		strings.Join(f.UnicodeRange, ","),
		f.FeatureSettings, f.VariationSettings,
	}, "\x00")
}

// SortSources orders sources in place: local fonts first, then by format
// preference. Relative order of equal sources is kept.
func (f *Face) SortSources() {
	slices.SortStableFunc(f.Src, func(a, b Source) int {
		return sourceRank(a) - sourceRank(b)
	})
}

// Merge combines faces with identical descriptors into one, union of their
// sources is kept in original order without duplicates. Order of faces is
// the order of first appearance.
func Merge(faces []Face) []Face {
	var (
		out   []Face
		index = make(map[string]int)
	)
	for _, f := range faces {
		key := f.descriptorKey()
		i, ok := index[key]
		if !ok {
			f.Src = slices.Clone(f.Src)
			index[key] = len(out)
			out = append(out, f)
			continue
		}
		for _, s := range f.Src {
			if !slices.Contains(out[i].Src, s) {
				out[i].Src = append(out[i].Src, s)
			}
		}
	}
	return out
}

var weightNames = map[int]string{
	100: "Thin",
	200: "ExtraLight",
	300: "Light",
	400: "Regular",
	500: "Medium",
	600: "SemiBold",
	700: "Bold",
	800: "ExtraBold",
	900: "Black",
}

var styleNames = map[string]string{
	"normal":  "",
	"italic":  "Italic",
	"oblique": "Oblique",
}

// NumericWeight converts single weight value to number, keywords normal and
// bold are recognized. Returns 0 if value cannot be converted.
func NumericWeight(w string) int {
	switch w = strings.TrimSpace(strings.ToLower(w)); w {
	case "normal", "":
		return 400
	case "bold":
		return 700
	}
	n, err := strconv.ParseFloat(w, 64)
	if err != nil {
		return 0
	}
	return int(n)
}

// IsWeightRange reports if weight describes variable font axis ("100 900").
func IsWeightRange(w string) bool {
	return len(strings.Fields(w)) == 2
}

// AddLocalFallbacks puts local sources named after family, weight and
// style in front of every face which does not start with local source
// already, so installed copy of the font is preferred over download.
func AddLocalFallbacks(family string, faces []Face) []Face {
	for i := range faces {
		f := &faces[i]
		if len(f.Src) == 0 || f.Src[0].IsLocal() {
			continue
		}
		style := styleNames[strings.ToLower(f.Style)]
		if IsWeightRange(f.Weight) {
			f.Src = slices.Insert(f.Src, 0, Local(joinName(family, "Variable", style)))
			continue
		}
		name, ok := weightNames[NumericWeight(f.Weight)]
		if !ok {
			continue
		}
		locals := []Source{Local(joinName(family, name, style))}
		if name == "Regular" {
			locals = append(locals, Local(joinName(family, style)))
		}
		f.Src = slices.Insert(f.Src, 0, locals...)
	}
	return faces
}

func joinName(parts ...string) string {
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}
