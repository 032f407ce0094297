package assets

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/h2non/filetype"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const downloadConcurrency = 5

var contentTypes = map[string]string{
	".woff2": "font/woff2",
	".woff":  "font/woff",
	".ttf":   "font/ttf",
	".otf":   "font/otf",
	".eot":   "application/vnd.ms-fontobject",
	".svg":   "image/svg+xml",
}

// ServeHTTP serves proxied fonts under the proxy prefix.
func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}
	name, ok := strings.CutPrefix(r.URL.Path, p.prefix+"/")
	if !ok || name == "" || strings.Contains(name, "/") {
		http.NotFound(w, r)
		return
	}

	data, err := p.Data(r.Context(), name)
	switch {
	case errors.Is(err, ErrUnknownFile):
		http.NotFound(w, r)
		return
	case err != nil:
		p.log.Warn("Unable to serve font", zap.String("file", name), zap.Error(err))
		http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
		return
	}

	if ct, ok := contentTypes[path.Ext(name)]; ok {
		w.Header().Set("Content-Type", ct)
	}
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodGet {
		_, _ = w.Write(data)
	}
}

// validFont performs sanity check of downloaded data against its extension.
func validFont(name string, data []byte) bool {
	switch path.Ext(name) {
	case ".woff":
		return filetype.Is(data, "woff")
	case ".woff2":
		return filetype.Is(data, "woff2")
	case ".ttf":
		return filetype.Is(data, "ttf")
	case ".otf":
		return filetype.Is(data, "otf")
	}
	return true
}

// Download writes every proxied font into dir, so production output does
// not depend on remote hosts.
func (p *Proxy) Download(ctx context.Context, dir string) error {
	names := p.Files()
	if len(names) == 0 {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("unable to create fonts directory: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(downloadConcurrency)
	for _, name := range names {
		g.Go(func() error {
			data, err := p.Data(ctx, name)
			if err != nil {
				return err
			}
			if !validFont(name, data) {
				original, _ := p.Original(name)
				return fmt.Errorf("downloaded file '%s' from '%s' is not a font", name, original)
			}
			if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
				return fmt.Errorf("unable to write font file: %w", err)
			}
			p.log.Debug("Font downloaded", zap.String("file", name), zap.Int("bytes", len(data)))
			return nil
		})
	}
	return g.Wait()
}
