package metrics_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/image/font/gofont/goregular"

	"fontpipe/fontface"
	"fontpipe/metrics"
)

var testTable = metrics.Table{
	"Primary":  {Ascent: 1050, Descent: -350, LineGap: 100, UnitsPerEm: 1000, XWidthAvg: 500},
	"Fallback": {Ascent: 1800, Descent: -400, LineGap: 0, UnitsPerEm: 2000, XWidthAvg: 800},
	"NoWidth":  {Ascent: 900, Descent: -300, UnitsPerEm: 1000},
}

func TestGenerateFallbacks(t *testing.T) {
	blocks := metrics.GenerateFallbacks("Primary", testTable.Lookup("Primary"), []string{"Fallback", "Unknown", "nowidth"}, testTable.Lookup)

	want := []metrics.Block{
		{
			Family: "Primary Fallback: Fallback",
			CSS: `@font-face {
  font-family: "Primary Fallback: Fallback";
  src: local("Fallback");
  size-adjust: 125%;
  ascent-override: 84%;
  descent-override: 28%;
  line-gap-override: 8%;
}`,
		},
		{
			Family: "Primary Fallback: nowidth",
			CSS: `@font-face {
  font-family: "Primary Fallback: nowidth";
  src: local("nowidth");
  size-adjust: 100%;
  ascent-override: 105%;
  descent-override: 35%;
  line-gap-override: 10%;
}`,
		},
	}
	if diff := cmp.Diff(want, blocks); diff != "" {
		t.Errorf("blocks mismatch (-want +got):\n%s", diff)
	}
}

func TestGenerateFallbacks_Rounding(t *testing.T) {
	table := metrics.Table{
		"A": {Ascent: 1000, Descent: -1, UnitsPerEm: 3000, XWidthAvg: 1000},
		"B": {UnitsPerEm: 1000, XWidthAvg: 333},
	}
	blocks := metrics.GenerateFallbacks("A", table.Lookup("A"), []string{"B"}, table.Lookup)
	if len(blocks) != 1 {
		t.Fatalf("expected one block, got %d", len(blocks))
	}
	// size-adjust = (1000/3000)/(333/1000) = 1.001001...
	want := `@font-face {
  font-family: "A Fallback: B";
  src: local("B");
  size-adjust: 100.1001%;
  ascent-override: 33.3%;
  descent-override: 0.0333%;
  line-gap-override: 0%;
}`
	if diff := cmp.Diff(want, blocks[0].CSS); diff != "" {
		t.Errorf("css mismatch (-want +got):\n%s", diff)
	}
}

func TestGenerateFallbacks_UnknownPrimary(t *testing.T) {
	g := metrics.NewGenerator(testTable.Lookup, nil, nil)
	face := fontface.Face{Src: []fontface.Source{fontface.Remote("https://x/a.woff2", "")}}
	blocks := g.GenerateFallbacks(context.Background(), "Mystery", &face, []string{"Fallback"})
	if len(blocks) != 0 {
		t.Errorf("expected no blocks, got %+v", blocks)
	}
}

func TestBuiltin(t *testing.T) {
	table := metrics.Builtin()
	for _, name := range []string{"Arial", "times new roman", "Courier New", "Segoe UI"} {
		if table.Lookup(name) == nil {
			t.Errorf("expected metrics for '%s'", name)
		}
	}
	if table.Lookup("BlinkMacSystemFont") != nil {
		t.Error("unexpected metrics for BlinkMacSystemFont")
	}

	blocks := metrics.NewGenerator(nil, nil, nil).GenerateFallbacks(context.Background(), "Poppins", nil, []string{"Arial"})
	if len(blocks) != 1 || blocks[0].Family != "Poppins Fallback: Arial" {
		t.Errorf("unexpected blocks %+v", blocks)
	}
}

func TestReadMetrics(t *testing.T) {
	m, err := metrics.ReadMetrics(goregular.TTF)
	if err != nil {
		t.Fatalf("ReadMetrics() error = %v", err)
	}
	if m.UnitsPerEm != 2048 {
		t.Errorf("expected 2048 units per em, got %v", m.UnitsPerEm)
	}
	if m.Ascent <= 0 || m.Descent >= 0 || m.LineGap < 0 {
		t.Errorf("unexpected vertical metrics %+v", m)
	}
	if m.XWidthAvg <= 0 || m.XWidthAvg >= m.UnitsPerEm {
		t.Errorf("unexpected average width %v", m.XWidthAvg)
	}

	woff2 := append([]byte("wOF2\x00\x01\x00\x00"), make([]byte, 64)...)
	if _, err := metrics.ReadMetrics(woff2); !errors.Is(err, metrics.ErrUnsupported) {
		t.Errorf("expected ErrUnsupported, got %v", err)
	}
}

type cachedFonts map[string][]byte

func (c cachedFonts) Cached(_ context.Context, url string) ([]byte, bool) {
	data, ok := c[url]
	return data, ok
}

func TestGenerator_PrimaryFromFile(t *testing.T) {
	data := cachedFonts{"/_fonts/go.ttf": goregular.TTF}
	g := metrics.NewGenerator(testTable.Lookup, data, nil)

	face := fontface.Face{Src: []fontface.Source{
		fontface.Local("Go Regular"),
		fontface.Remote("/_fonts/missing.woff2", ""),
		fontface.Remote("/_fonts/go.ttf", ""),
	}}
	m := g.Primary(context.Background(), "Go", &face)
	if m == nil || m.UnitsPerEm != 2048 {
		t.Fatalf("expected metrics read from file, got %+v", m)
	}

	blocks := g.GenerateFallbacks(context.Background(), "Go", &face, []string{"Fallback"})
	if len(blocks) != 1 || blocks[0].Family != "Go Fallback: Fallback" {
		t.Errorf("unexpected blocks %+v", blocks)
	}
}
