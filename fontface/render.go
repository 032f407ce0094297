package fontface

import (
	"strings"
)

var quoteEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

// Render produces canonical @font-face rule for the family.
func Render(family string, f Face) string {
	var sb strings.Builder

	sb.WriteString("@font-face {\n")
	sb.WriteString("  font-family: '" + quoteEscaper.Replace(family) + "';\n")
	sb.WriteString("  src: " + RenderSources(f.Src) + ";\n")

	display := f.Display
	if display == "" {
		display = "swap"
	}
	sb.WriteString("  font-display: " + display + ";\n")

	writeDescriptor(&sb, "unicode-range", strings.Join(f.UnicodeRange, ", "))
	writeDescriptor(&sb, "font-weight", f.Weight)
	writeDescriptor(&sb, "font-style", f.Style)
	writeDescriptor(&sb, "font-stretch", f.Stretch)
	writeDescriptor(&sb, "font-feature-settings", f.FeatureSettings)
	writeDescriptor(&sb, "font-variation-settings", f.VariationSettings)
	sb.WriteString("}")
	return sb.String()
}

func writeDescriptor(sb *strings.Builder, name, value string) {
	if value == "" {
		return
	}
	sb.WriteString("  " + name + ": " + value + ";\n")
}

// RenderSources produces value for src descriptor.
func RenderSources(src []Source) string {
	parts := make([]string, 0, len(src))
	for _, s := range src {
		if s.IsLocal() {
			parts = append(parts, `local("`+s.Name+`")`)
			continue
		}
		r := `url("` + s.URL + `")`
		if s.Format != "" {
			r += " format(" + s.Format + ")"
		}
		if s.Tech != "" {
			r += " tech(" + s.Tech + ")"
		}
		parts = append(parts, r)
	}
	return strings.Join(parts, ", ")
}
