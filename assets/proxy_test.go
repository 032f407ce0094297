package assets_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/image/font/gofont/goregular"

	"fontpipe/assets"
	"fontpipe/cache"
	"fontpipe/fetch"
	"fontpipe/fontface"
)

func newFontServer(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/f/Go-Regular.ttf", func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		_, _ = w.Write(goregular.TTF)
	})
	mux.HandleFunc("/f/broken.woff2", func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte("<html>not a font</html>"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &hits
}

func newProxy(store cache.Storage) *assets.Proxy {
	return assets.New("", store, fetch.New(nil, fetch.WithRateLimit(0, 0)), nil)
}

func TestFileName(t *testing.T) {
	name := assets.FileName("https://fonts.gstatic.com/s/inter/v13/Inter-Regular.WOFF2?v=1")
	if !regexp.MustCompile(`^inter-regular-[0-9a-f]{10}\.woff2$`).MatchString(name) {
		t.Errorf("unexpected file name '%s'", name)
	}
	if a, b := assets.FileName("//cdn.example.com/a.ttf"), assets.FileName("https://cdn.example.com/a.ttf"); a != b {
		t.Errorf("protocol relative url named differently: '%s' != '%s'", a, b)
	}
	if a, b := assets.FileName("https://one.example.com/a.ttf"), assets.FileName("https://two.example.com/a.ttf"); a == b {
		t.Errorf("different urls share name '%s'", a)
	}
}

func TestProxy_Normalize(t *testing.T) {
	p := newProxy(nil)
	faces := []fontface.Face{{Src: []fontface.Source{
		fontface.Local("Inter Regular"),
		fontface.Remote("https://cdn.example.com/Inter.woff2", ""),
		fontface.Remote("//cdn.example.com/Inter.woff", ""),
		fontface.Remote("/fonts/Inter.ttf", ""),
	}}}
	got := p.Normalize(faces)

	want := []fontface.Source{
		fontface.Local("Inter Regular"),
		{URL: "/_fonts/" + assets.FileName("https://cdn.example.com/Inter.woff2"), Format: "woff2"},
		{URL: "/_fonts/" + assets.FileName("//cdn.example.com/Inter.woff"), Format: "woff"},
		fontface.Remote("/fonts/Inter.ttf", ""),
	}
	if diff := cmp.Diff(want, got[0].Src); diff != "" {
		t.Errorf("sources mismatch (-want +got):\n%s", diff)
	}

	files := p.Files()
	if len(files) != 2 {
		t.Fatalf("expected two proxied files, got %v", files)
	}
	for _, name := range files {
		original, ok := p.Original(name)
		if !ok || !strings.HasPrefix(original, "https://cdn.example.com/") {
			t.Errorf("unexpected original of '%s': '%s'", name, original)
		}
	}
}

func TestProxy_ServeHTTP(t *testing.T) {
	srv, hits := newFontServer(t)
	store := cache.NewMemoryStore()
	p := newProxy(store)
	proxied := p.Rewrite(srv.URL + "/f/Go-Regular.ttf")

	if _, ok := p.Cached(context.Background(), proxied); ok {
		t.Fatal("font reported cached before download")
	}

	for range 2 {
		rec := httptest.NewRecorder()
		p.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, proxied, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("unexpected status %d", rec.Code)
		}
		if ct := rec.Header().Get("Content-Type"); ct != "font/ttf" {
			t.Errorf("unexpected content type '%s'", ct)
		}
		if !bytes.Equal(rec.Body.Bytes(), goregular.TTF) {
			t.Error("served data differs from original")
		}
	}
	if n := hits.Load(); n != 1 {
		t.Errorf("expected single download, got %d", n)
	}

	data, ok := p.Cached(context.Background(), proxied)
	if !ok || !bytes.Equal(data, goregular.TTF) {
		t.Error("font is not cached after serving")
	}
	if _, ok := p.Cached(context.Background(), srv.URL+"/f/Go-Regular.ttf"); !ok {
		t.Error("font is not found by its remote url")
	}

	rec := httptest.NewRecorder()
	p.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/_fonts/unknown-0123456789.woff2", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown file, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	p.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, proxied, nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405 for POST, got %d", rec.Code)
	}
}

func TestProxy_ServeHTTP_UpstreamFailure(t *testing.T) {
	srv, _ := newFontServer(t)
	p := newProxy(nil)
	proxied := p.Rewrite(srv.URL + "/f/missing.woff2")

	rec := httptest.NewRecorder()
	p.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, proxied, nil))
	if rec.Code != http.StatusBadGateway {
		t.Errorf("expected 502, got %d", rec.Code)
	}
}

func TestProxy_Download(t *testing.T) {
	srv, _ := newFontServer(t)
	p := newProxy(cache.NewMemoryStore())
	proxied := p.Rewrite(srv.URL + "/f/Go-Regular.ttf")

	dir := filepath.Join(t.TempDir(), "fonts")
	if err := p.Download(context.Background(), dir); err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, filepath.Base(proxied)))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, goregular.TTF) {
		t.Error("written data differs from original")
	}
}

func TestProxy_DownloadRejectsNonFonts(t *testing.T) {
	srv, _ := newFontServer(t)
	p := newProxy(nil)
	p.Rewrite(srv.URL + "/f/broken.woff2")

	err := p.Download(context.Background(), t.TempDir())
	if err == nil || !strings.Contains(err.Error(), "is not a font") {
		t.Errorf("expected validation error, got %v", err)
	}
}
