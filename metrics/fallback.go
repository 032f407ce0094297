package metrics

import (
	"context"
	"math"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"fontpipe/css"
	"fontpipe/fontface"
)

// Block is generated @font-face rule for single fallback font.
type Block struct {
	// Family is synthetic family name to be added to font-family lists.
	Family string
	CSS    string
}

// FallbackName returns synthetic family name of fallback font.
func FallbackName(family, fallback string) string {
	return family + " Fallback: " + fallback
}

// FontData gives access to already downloaded font files.
type FontData interface {
	Cached(ctx context.Context, url string) ([]byte, bool)
}

// Generator produces fallback rules for resolved families.
type Generator struct {
	lookup Lookup
	data   FontData
	log    *zap.Logger
}

// NewGenerator creates generator, nil lookup means built-in table and nil
// data disables reading downloaded font files.
func NewGenerator(lookup Lookup, data FontData, log *zap.Logger) *Generator {
	if lookup == nil {
		lookup = Builtin().Lookup
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Generator{lookup: lookup, data: data, log: log.Named("metrics")}
}

// Primary returns metrics of the font: read from already downloaded file of
// the face if possible, looked up by family name otherwise.
func (g *Generator) Primary(ctx context.Context, family string, face *fontface.Face) *Metrics {
	if g.data != nil && face != nil {
		for _, src := range face.Src {
			if src.IsLocal() {
				continue
			}
			data, ok := g.data.Cached(ctx, src.URL)
			if !ok {
				continue
			}
			m, err := ReadMetrics(data)
			if err != nil {
				g.log.Debug("Unable to read metrics from font file", zap.String("url", src.URL), zap.Error(err))
				continue
			}
			return m
		}
	}
	return g.lookup(family)
}

// GenerateFallbacks returns rules for every fallback with known metrics.
// Nothing is generated when metrics of the font itself are unknown.
func (g *Generator) GenerateFallbacks(ctx context.Context, family string, face *fontface.Face, fallbacks []string) []Block {
	primary := g.Primary(ctx, family, face)
	if primary == nil {
		g.log.Debug("No metrics for family", zap.String("family", family))
		return nil
	}
	return GenerateFallbacks(family, primary, fallbacks, g.lookup)
}

// GenerateFallbacks computes overrides for fallbacks against primary metrics.
func GenerateFallbacks(family string, primary *Metrics, fallbacks []string, lookup Lookup) []Block {
	if primary == nil || primary.UnitsPerEm == 0 {
		return nil
	}

	var blocks []Block
	for _, name := range fallbacks {
		fm := lookup(name)
		if fm == nil || fm.UnitsPerEm == 0 {
			continue
		}

		sizeAdjust := 1.0
		if primary.XWidthAvg != 0 && fm.XWidthAvg != 0 {
			sizeAdjust = (primary.XWidthAvg / primary.UnitsPerEm) / (fm.XWidthAvg / fm.UnitsPerEm)
		}
		adjustedEm := primary.UnitsPerEm * sizeAdjust

		fallbackFamily := FallbackName(family, name)
		var sb strings.Builder
		sb.WriteString("@font-face {\n")
		sb.WriteString(`  font-family: "` + css.EscapeDoubleQuoted(fallbackFamily) + "\";\n")
		sb.WriteString(`  src: local("` + css.EscapeDoubleQuoted(name) + "\");\n")
		sb.WriteString("  size-adjust: " + percent(sizeAdjust) + ";\n")
		sb.WriteString("  ascent-override: " + percent(primary.Ascent/adjustedEm) + ";\n")
		sb.WriteString("  descent-override: " + percent(math.Abs(primary.Descent)/adjustedEm) + ";\n")
		sb.WriteString("  line-gap-override: " + percent(primary.LineGap/adjustedEm) + ";\n")
		sb.WriteString("}")

		blocks = append(blocks, Block{Family: fallbackFamily, CSS: sb.String()})
	}
	return blocks
}

// percent formats ratio as percentage rounded to 4 decimal places.
func percent(v float64) string {
	return strconv.FormatFloat(math.Round(v*100*1e4)/1e4, 'f', -1, 64) + "%"
}
