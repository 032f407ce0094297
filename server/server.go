// Package server exposes font pipeline over HTTP for development setups
// where bundler talks to a long running process: stylesheets are posted for
// transformation and proxied fonts are served from the same origin.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"net"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"fontpipe/transform"
)

// MaxBodySize limits posted stylesheets and documents.
const MaxBodySize = 16 << 20

// ChangedHeader tells client if posted stylesheet was modified.
const ChangedHeader = "X-Fontpipe-Changed"

// Transformer processes single stylesheet.
type Transformer interface {
	Transform(ctx context.Context, id, code string, relative bool) (string, bool, error)
	Preloads() *transform.PreloadMap
}

// Stylesheets provides @font-face rules of global families.
type Stylesheets interface {
	GlobalStylesheet(ctx context.Context) (string, error)
}

// FontHandler serves proxied font files under its prefix.
type FontHandler interface {
	http.Handler
	Prefix() string
}

type Options struct {
	Listen      string
	Transformer Transformer
	Global      Stylesheets
	// Fonts is optional, nil when remote fonts are not proxied.
	Fonts FontHandler
	// Registry metrics are registered with, new one is created when nil.
	Registry *prometheus.Registry
}

type Server struct {
	opts    Options
	log     *zap.Logger
	metrics *metrics
	router  chi.Router
}

func New(opts Options, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Registry == nil {
		opts.Registry = prometheus.NewRegistry()
	}
	s := &Server{
		opts:    opts,
		log:     log.Named("server"),
		metrics: newMetrics(opts.Registry),
	}
	s.router = s.setupRouter()
	return s
}

// Handler returns root handler of the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(s.observe)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "ok")
	})
	r.Handle("/metrics", promhttp.HandlerFor(s.opts.Registry, promhttp.HandlerOpts{}))

	r.Post("/transform", s.handleTransform)
	r.Get("/global.css", s.handleGlobal)
	r.Get("/preloads", s.handlePreloads)
	r.Post("/inject", s.handleInject)

	if s.opts.Fonts != nil {
		r.Handle(s.opts.Fonts.Prefix()+"/*", s.opts.Fonts)
	}
	return r
}

// Run serves requests until context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Listen,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	errs := make(chan error, 1)
	go func() {
		s.log.Info("Listening", zap.String("address", s.opts.Listen))
		errs <- srv.ListenAndServe()
	}()

	select {
	case err := <-errs:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("unable to shutdown server: %w", err)
	}
	if err := <-errs; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func readBody(w http.ResponseWriter, r *http.Request) (string, bool) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodySize))
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			http.Error(w, http.StatusText(http.StatusRequestEntityTooLarge), http.StatusRequestEntityTooLarge)
		} else {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		}
		return "", false
	}
	return string(data), true
}

// handleTransform processes posted stylesheet, module id is passed in "id"
// query parameter and "relative" asks for urls relative to it.
func (s *Server) handleTransform(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "missing id", http.StatusBadRequest)
		return
	}
	relative, _ := strconv.ParseBool(r.URL.Query().Get("relative"))

	code, ok := readBody(w, r)
	if !ok {
		return
	}

	out, changed := code, false
	if transform.Accepts(id) {
		start := time.Now()
		var err error
		out, changed, err = s.opts.Transformer.Transform(r.Context(), id, code, relative)
		if err != nil {
			s.log.Warn("Unable to transform stylesheet", zap.String("id", id), zap.Error(err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		s.metrics.transformDuration.Observe(time.Since(start).Seconds())
	}
	s.metrics.transforms.WithLabelValues(strconv.FormatBool(changed)).Inc()

	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	w.Header().Set(ChangedHeader, strconv.FormatBool(changed))
	_, _ = io.WriteString(w, out)
}

func (s *Server) handleGlobal(w http.ResponseWriter, r *http.Request) {
	text, err := s.opts.Global.GlobalStylesheet(r.Context())
	if err != nil {
		s.log.Warn("Unable to build global stylesheet", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	_, _ = io.WriteString(w, text)
}

// preloadURLs returns fonts recorded for the ids, all of them when no ids
// given.
func (s *Server) preloadURLs(ids []string) map[string][]string {
	preloads := s.opts.Transformer.Preloads()
	if len(ids) == 0 {
		ids = preloads.IDs()
	}
	res := make(map[string][]string, len(ids))
	for _, id := range ids {
		if urls := preloads.Get(id); len(urls) > 0 {
			res[id] = urls
		}
	}
	return res
}

func (s *Server) handlePreloads(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.preloadURLs(r.URL.Query()["id"])); err != nil {
		s.log.Debug("Unable to write preloads", zap.Error(err))
	}
}

// handleInject adds preload links for fonts of stylesheets listed in "id"
// query parameters into posted HTML document.
func (s *Server) handleInject(w http.ResponseWriter, r *http.Request) {
	doc, ok := readBody(w, r)
	if !ok {
		return
	}

	var urls []string
	preloads := s.preloadURLs(r.URL.Query()["id"])
	for _, id := range slices.Sorted(maps.Keys(preloads)) {
		for _, u := range preloads[id] {
			if !slices.Contains(urls, u) {
				urls = append(urls, u)
			}
		}
	}

	out, err := transform.InjectPreloadLinks(doc, urls)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = io.WriteString(w, out)
}
