// Package server is the SmithForge web front end: an upload form that runs
// the forge pipeline, static downloads of the results and a small JSON API
// used by the browser preview.
package server

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/philipparndt/smithforge/internal/catalog"
	"github.com/philipparndt/smithforge/internal/engine"
	"github.com/philipparndt/smithforge/internal/models"
	"github.com/philipparndt/smithforge/internal/store"
)

//go:embed templates/*.html
var templateFS embed.FS

// Options wires the server to its collaborators
type Options struct {
	Config  models.ServerConfig
	Forge   models.ForgeConfig
	Engine  engine.Engine
	Catalog *catalog.Catalog
	// Store records job history, optional
	Store  *store.Store
	Logger *zap.Logger
	// Now is used for default output names, time.Now when nil
	Now func() time.Time
}

// Server handles the HTTP routes
type Server struct {
	cfg     models.ServerConfig
	forge   models.ForgeConfig
	engine  engine.Engine
	catalog *catalog.Catalog
	store   *store.Store
	logger  *zap.Logger
	now     func() time.Time

	jobs     *semaphore.Weighted
	tmpl     *template.Template
	mux      *http.ServeMux
	maxBytes int64
}

// New creates the server and the input and output directories
func New(opts Options) (*Server, error) {
	if opts.Engine == nil {
		return nil, errors.New("server needs an engine")
	}
	if opts.Catalog == nil {
		return nil, errors.New("server needs a base catalog")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	for _, dir := range []string{opts.Config.InputsDir, opts.Config.OutputsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	tmpl, err := template.New("").Funcs(template.FuncMap{
		"join": joinLines,
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	concurrent := opts.Config.MaxConcurrentJobs
	if concurrent <= 0 {
		concurrent = 1
	}
	maxMB := opts.Config.MaxUploadMB
	if maxMB <= 0 {
		maxMB = 200
	}

	s := &Server{
		cfg:      opts.Config,
		forge:    opts.Forge,
		engine:   opts.Engine,
		catalog:  opts.Catalog,
		store:    opts.Store,
		logger:   opts.Logger.Named("server"),
		now:      opts.Now,
		jobs:     semaphore.NewWeighted(concurrent),
		tmpl:     tmpl,
		mux:      http.NewServeMux(),
		maxBytes: maxMB << 20,
	}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("POST /run-smithforge", s.handleRun)

	s.mux.Handle("GET /outputs/", http.StripPrefix("/outputs/", http.FileServer(http.Dir(s.cfg.OutputsDir))))
	s.mux.Handle("GET /inputs/", http.StripPrefix("/inputs/", http.FileServer(http.Dir(s.cfg.InputsDir))))
	s.mux.Handle("GET /bases/", http.StripPrefix("/bases/", http.FileServer(http.Dir(s.catalog.Dir()))))

	s.mux.HandleFunc("GET /api/bases", s.handleBases)
	s.mux.HandleFunc("POST /api/layers", s.handleLayers)
	s.mux.HandleFunc("POST /api/swap-instructions", s.handleSwapInstructions)
	s.mux.HandleFunc("POST /api/preview", s.handlePreview)
	s.mux.HandleFunc("GET /api/jobs", s.handleJobs)
	s.mux.HandleFunc("GET /api/jobs/{id}", s.handleJob)
}

// Handler returns the root handler with request logging
func (s *Server) Handler() http.Handler {
	return s.logRequests(s.mux)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("addr", s.cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)))
	})
}
