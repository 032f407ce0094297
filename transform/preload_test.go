package transform_test

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"fontpipe/transform"
)

func TestPreloadMap_RemapChunk(t *testing.T) {
	p := transform.NewPreloadMap()
	p.Add("entry.js", "/_fonts/a.woff2")
	p.Add("a.css", "/_fonts/b.woff2", "/_fonts/a.woff2")
	p.Add("b.css", "/_fonts/c.woff2")
	p.Add("other.css", "/_fonts/d.woff2")

	p.RemapChunk("entry.js", []string{"entry.js", "a.css", "b.css", "missing.css"})

	if diff := cmp.Diff([]string{"/_fonts/a.woff2", "/_fonts/b.woff2", "/_fonts/c.woff2"}, p.Get("entry.js")); diff != "" {
		t.Errorf("facade preloads mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"entry.js", "other.css"}, p.IDs()); diff != "" {
		t.Errorf("ids mismatch (-want +got):\n%s", diff)
	}
}

func TestAddPreloadLinks(t *testing.T) {
	p := transform.NewPreloadMap()
	p.Add("_nuxt/entry.css", "/_fonts/a.woff2")
	p.Add("/src/app.vue", "/_fonts/b.woff2")
	p.Add("/src/orphan.css", "/_fonts/c.woff2")

	m := transform.Manifest{
		"entry.js": {File: "entry.js", Src: "entry.js", IsEntry: true, CSS: []string{"entry.css"}},
		"app.vue":  {File: "app.js", Src: "app.vue"},
	}
	p.AddPreloadLinks(m, transform.ManifestOptions{BuildAssetsDir: "/_nuxt/", SrcDir: "/src", Entry: "entry.js"})

	want := transform.Manifest{
		"entry.js": {
			File: "entry.js", Src: "entry.js", IsEntry: true, CSS: []string{"entry.css"},
			Assets: []string{"/_fonts/a.woff2", "/_fonts/c.woff2"},
		},
		"app.vue":         {File: "app.js", Src: "app.vue", Assets: []string{"/_fonts/b.woff2"}},
		"/_fonts/a.woff2": {File: "../_fonts/a.woff2", ResourceType: "font", Preload: true},
		"/_fonts/b.woff2": {File: "../_fonts/b.woff2", ResourceType: "font", Preload: true},
		"/_fonts/c.woff2": {File: "../_fonts/c.woff2", ResourceType: "font", Preload: true},
	}
	if diff := cmp.Diff(want, m); diff != "" {
		t.Errorf("manifest mismatch (-want +got):\n%s", diff)
	}
}

func TestParseManifest(t *testing.T) {
	m, err := transform.ParseManifest([]byte(`{"entry.js":{"file":"entry.123.js","isEntry":true,"css":["entry.css"]}}`))
	if err != nil {
		t.Fatal(err)
	}
	if c := m["entry.js"]; c == nil || c.File != "entry.123.js" || !c.IsEntry {
		t.Errorf("unexpected manifest %+v", m)
	}
	if _, err := transform.ParseManifest([]byte(`[`)); err == nil {
		t.Error("expected error for malformed manifest")
	}
}

func TestPreloadLink(t *testing.T) {
	want := `<link rel="preload" as="font" href="/_fonts/a.woff2" type="font/woff2" crossorigin>`
	if got := transform.PreloadLink("/_fonts/a.woff2"); got != want {
		t.Errorf("PreloadLink() = %s", got)
	}
	if got := transform.PreloadLink("/fonts/a.eot"); strings.Contains(got, "type=") {
		t.Errorf("unexpected type for eot: %s", got)
	}
}

func TestInjectPreloadLinks(t *testing.T) {
	doc := `<!DOCTYPE html><html><head><title>t</title><link rel="preload" as="font" href="/_fonts/a.woff2" crossorigin></head><body><p>hi</p></body></html>`
	out, err := transform.InjectPreloadLinks(doc, []string{"/_fonts/a.woff2", "/_fonts/b.woff2", "/_fonts/b.woff2"})
	if err != nil {
		t.Fatal(err)
	}
	if n := strings.Count(out, `href="/_fonts/a.woff2"`); n != 1 {
		t.Errorf("expected existing preload kept once, found %d", n)
	}
	if n := strings.Count(out, `href="/_fonts/b.woff2"`); n != 1 {
		t.Errorf("expected new preload added once, found %d", n)
	}
	head := out[:strings.Index(out, "</head>")]
	if !strings.Contains(head, `type="font/woff2"`) {
		t.Errorf("preload is not in head: %s", out)
	}
	if !strings.Contains(out, "<p>hi</p>") {
		t.Errorf("body lost: %s", out)
	}

	same, err := transform.InjectPreloadLinks(doc, []string{"/_fonts/a.woff2"})
	if err != nil || same != doc {
		t.Errorf("document changed although nothing to add: %v", err)
	}
}
