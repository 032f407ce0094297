package metrics

import (
	"errors"
	"fmt"

	"github.com/h2non/filetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
)

// ErrUnsupported is returned for font files metrics cannot be read from.
var ErrUnsupported = errors.New("unsupported font format")

// letter frequencies of English text, used to weight advance widths
var charFrequency = []struct {
	r rune
	w float64
}{
	{'a', 0.0668}, {'b', 0.0122}, {'c', 0.0228}, {'d', 0.0348}, {'e', 0.1039}, {'f', 0.0182},
	{'g', 0.0165}, {'h', 0.0499}, {'i', 0.057}, {'j', 0.0013}, {'k', 0.0063}, {'l', 0.0329},
	{'m', 0.0197}, {'n', 0.0552}, {'o', 0.0614}, {'p', 0.0158}, {'q', 0.0008}, {'r', 0.049},
	{'s', 0.0518}, {'t', 0.0741}, {'u', 0.0226}, {'v', 0.008}, {'w', 0.0193}, {'x', 0.0012},
	{'y', 0.0162}, {'z', 0.0006}, {' ', 0.1818},
}

// ReadMetrics extracts metrics from TrueType or OpenType font file.
// Compressed formats (woff, woff2) are not supported.
func ReadMetrics(data []byte) (*Metrics, error) {
	kind, err := filetype.Match(data)
	if err != nil {
		return nil, fmt.Errorf("unable to detect font type: %w", err)
	}
	if kind.Extension != "ttf" && kind.Extension != "otf" {
		return nil, fmt.Errorf("%w: '%s'", ErrUnsupported, kind.Extension)
	}

	f, err := sfnt.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("unable to parse font: %w", err)
	}

	var (
		buf  sfnt.Buffer
		upem = f.UnitsPerEm()
		ppem = fixed.I(int(upem))
	)
	fm, err := f.Metrics(&buf, ppem, font.HintingNone)
	if err != nil {
		return nil, fmt.Errorf("unable to read font metrics: %w", err)
	}

	m := &Metrics{
		Ascent:     toUnits(fm.Ascent),
		Descent:    -toUnits(fm.Descent),
		LineGap:    toUnits(fm.Height - fm.Ascent - fm.Descent),
		UnitsPerEm: float64(upem),
	}

	var total, weights float64
	for _, c := range charFrequency {
		idx, err := f.GlyphIndex(&buf, c.r)
		if err != nil || idx == 0 {
			continue
		}
		adv, err := f.GlyphAdvance(&buf, idx, ppem, font.HintingNone)
		if err != nil {
			continue
		}
		total += toUnits(adv) * c.w
		weights += c.w
	}
	if weights > 0 {
		m.XWidthAvg = total / weights
	}
	return m, nil
}

func toUnits(v fixed.Int26_6) float64 {
	return float64(v) / 64
}
