package server_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"fontpipe/server"
	"fontpipe/transform"
)

type fakeTransformer struct {
	preloads *transform.PreloadMap

	mu    sync.Mutex
	calls []string
}

func (f *fakeTransformer) Transform(_ context.Context, id, code string, relative bool) (string, bool, error) {
	f.mu.Lock()
	f.calls = append(f.calls, id)
	f.mu.Unlock()
	prefix := "@font-face{font-family:X}"
	if relative {
		prefix = "@font-face{font-family:Relative}"
	}
	return prefix + code, true, nil
}

func (f *fakeTransformer) Preloads() *transform.PreloadMap {
	return f.preloads
}

type fakeGlobal struct{}

func (fakeGlobal) GlobalStylesheet(context.Context) (string, error) {
	return "@font-face{font-family:Global}\n", nil
}

type fakeFonts struct{}

func (fakeFonts) Prefix() string { return "/_fonts" }

func (fakeFonts) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	_, _ = io.WriteString(w, "font:"+r.URL.Path)
}

func newServer(t *testing.T) (*httptest.Server, *fakeTransformer) {
	t.Helper()
	tr := &fakeTransformer{preloads: transform.NewPreloadMap()}
	tr.preloads.Add("/src/a.css", "/_fonts/a.woff2")
	tr.preloads.Add("/src/b.css", "/_fonts/b.woff2", "/_fonts/a.woff2")

	s := server.New(server.Options{Transformer: tr, Global: fakeGlobal{}, Fonts: fakeFonts{}}, nil)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts, tr
}

func do(t *testing.T, method, url, body string) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp, string(data)
}

func TestTransformEndpoint(t *testing.T) {
	ts, tr := newServer(t)

	resp, body := do(t, http.MethodPost, ts.URL+"/transform?id=/src/a.css", "body{}")
	if resp.StatusCode != http.StatusOK || body != "@font-face{font-family:X}body{}" {
		t.Errorf("unexpected response %d: %s", resp.StatusCode, body)
	}
	if resp.Header.Get(server.ChangedHeader) != "true" {
		t.Errorf("%s = %q", server.ChangedHeader, resp.Header.Get(server.ChangedHeader))
	}

	_, body = do(t, http.MethodPost, ts.URL+"/transform?id=_nuxt/a.css&relative=true", "body{}")
	if !strings.HasPrefix(body, "@font-face{font-family:Relative}") {
		t.Errorf("relative flag was not passed: %s", body)
	}

	resp, body = do(t, http.MethodPost, ts.URL+"/transform?id=/src/app.ts", "body{}")
	if body != "body{}" || resp.Header.Get(server.ChangedHeader) != "false" {
		t.Errorf("non stylesheet module was transformed: %s", body)
	}

	resp, _ = do(t, http.MethodPost, ts.URL+"/transform", "body{}")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 without id, got %d", resp.StatusCode)
	}

	resp, _ = do(t, http.MethodGet, ts.URL+"/transform?id=/src/a.css", "")
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("expected 405 for GET, got %d", resp.StatusCode)
	}

	tr.mu.Lock()
	defer tr.mu.Unlock()
	if diff := cmp.Diff([]string{"/src/a.css", "_nuxt/a.css"}, tr.calls); diff != "" {
		t.Errorf("transformer calls mismatch (-want +got):\n%s", diff)
	}
}

func TestGlobalAndFonts(t *testing.T) {
	ts, _ := newServer(t)

	resp, body := do(t, http.MethodGet, ts.URL+"/global.css", "")
	if body != "@font-face{font-family:Global}\n" || !strings.HasPrefix(resp.Header.Get("Content-Type"), "text/css") {
		t.Errorf("unexpected global stylesheet: %s", body)
	}

	_, body = do(t, http.MethodGet, ts.URL+"/_fonts/a-0123456789.woff2", "")
	if body != "font:/_fonts/a-0123456789.woff2" {
		t.Errorf("font request was not routed to font handler: %s", body)
	}
}

func TestPreloadsEndpoint(t *testing.T) {
	ts, _ := newServer(t)

	_, body := do(t, http.MethodGet, ts.URL+"/preloads", "")
	var got map[string][]string
	if err := json.Unmarshal([]byte(body), &got); err != nil {
		t.Fatal(err)
	}
	want := map[string][]string{
		"/src/a.css": {"/_fonts/a.woff2"},
		"/src/b.css": {"/_fonts/b.woff2", "/_fonts/a.woff2"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("preloads mismatch (-want +got):\n%s", diff)
	}

	_, body = do(t, http.MethodGet, ts.URL+"/preloads?id=/src/a.css&id=/src/none.css", "")
	got = nil
	if err := json.Unmarshal([]byte(body), &got); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(map[string][]string{"/src/a.css": {"/_fonts/a.woff2"}}, got); diff != "" {
		t.Errorf("filtered preloads mismatch (-want +got):\n%s", diff)
	}
}

func TestInjectEndpoint(t *testing.T) {
	ts, _ := newServer(t)

	doc := `<html><head><title>t</title></head><body></body></html>`
	_, body := do(t, http.MethodPost, ts.URL+"/inject?id=/src/a.css&id=/src/b.css", doc)
	for _, u := range []string{"/_fonts/a.woff2", "/_fonts/b.woff2"} {
		if strings.Count(body, `href="`+u+`"`) != 1 {
			t.Errorf("expected single preload of %s:\n%s", u, body)
		}
	}
	if strings.Count(body, `rel="preload"`) != 2 {
		t.Errorf("unexpected number of preload links:\n%s", body)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ts, _ := newServer(t)
	do(t, http.MethodPost, ts.URL+"/transform?id=/src/a.css", "body{}")

	_, body := do(t, http.MethodGet, ts.URL+"/metrics", "")
	for _, want := range []string{
		`fontpipe_transforms_total{changed="true"} 1`,
		`fontpipe_http_requests_total{method="POST",route="/transform",status_code="200"} 1`,
		`fontpipe_transform_duration_seconds_count 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics do not contain %q", want)
		}
	}
}

func TestRun(t *testing.T) {
	s := server.New(server.Options{Listen: "127.0.0.1:0", Transformer: &fakeTransformer{preloads: transform.NewPreloadMap()}, Global: fakeGlobal{}}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("server did not stop")
	}
}
