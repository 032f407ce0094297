package fetch_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"go.uber.org/zap"

	"fontpipe/fetch"
)

func TestRequestURL(t *testing.T) {
	tests := []struct {
		req  fetch.Request
		want string
	}{
		{fetch.Request{BaseURL: "https://fonts.bunny.net/", Path: "/list"}, "https://fonts.bunny.net/list"},
		{fetch.Request{BaseURL: "https://api.fontshare.com/v2", Path: "css?f[]=alpino@300"}, "https://api.fontshare.com/v2/css?f[]=alpino@300"},
		{fetch.Request{Path: "https://x.test/css", Query: url.Values{"family": {"Inter:400"}}}, "https://x.test/css?family=Inter%3A400"},
		{fetch.Request{Path: "https://x.test/css?a=1", Query: url.Values{"b": {"2"}}}, "https://x.test/css?a=1&b=2"},
	}
	for _, tt := range tests {
		if got := tt.req.URL(); got != tt.want {
			t.Errorf("expected '%s', got '%s'", tt.want, got)
		}
	}
}

func TestClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/json":
			w.Write([]byte(`{"family":"Inter","ua":"` + r.Header.Get("User-Agent") + `"}`))
		case "/css":
			w.Write([]byte("@font-face{}"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := fetch.New(zap.NewNop(), fetch.WithRateLimit(0, 0), fetch.WithUserAgent("test-agent"))
	ctx := context.Background()

	var v struct {
		Family string `json:"family"`
		UA     string `json:"ua"`
	}
	if err := c.JSON(ctx, fetch.Request{BaseURL: srv.URL, Path: "/json"}, &v); err != nil {
		t.Fatalf("JSON() error = %v", err)
	}
	if v.Family != "Inter" || v.UA != "test-agent" {
		t.Errorf("unexpected response %+v", v)
	}

	text, err := c.Text(ctx, fetch.Request{BaseURL: srv.URL, Path: "/css", Header: http.Header{"User-Agent": {"custom"}}})
	if err != nil {
		t.Fatalf("Text() error = %v", err)
	}
	if text != "@font-face{}" {
		t.Errorf("unexpected body '%s'", text)
	}

	if _, err := c.Bytes(ctx, fetch.Request{BaseURL: srv.URL, Path: "/missing"}); err == nil {
		t.Error("expected error for 404 response")
	}
}
