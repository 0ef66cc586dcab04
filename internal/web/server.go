package web

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Sruimeng/vestige/internal/filter"
	"github.com/Sruimeng/vestige/internal/model"
	"github.com/Sruimeng/vestige/internal/timecapsule"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

// Deps are the collaborators the HUD server drives.
type Deps struct {
	DB           *sql.DB
	Orchestrator *timecapsule.Orchestrator
	Filters      *filter.Context

	// Loader and Registry are optional; without them model URLs are
	// served as-is and /blobs/ always 404s
	Loader   *model.Loader
	Registry *model.Registry

	Logger *zap.Logger
}

// NewServer creates and configures the HTTP server for the HUD.
func NewServer(deps Deps, version, bind string, port int) (*http.Server, error) {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	templateSub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		return nil, fmt.Errorf("template sub-FS: %w", err)
	}
	staticSub, err := fs.Sub(staticFS, "static")
	if err != nil {
		return nil, fmt.Errorf("static sub-FS: %w", err)
	}

	h := &Handlers{
		deps:     deps,
		renderer: NewRenderer(templateSub, version, deps.Logger),
		log:      deps.Logger,
	}

	return &http.Server{
		Addr:              fmt.Sprintf("%s:%d", bind, port),
		Handler:           securityHeaders(h.routes(staticSub)),
		ReadHeaderTimeout: 10 * time.Second,
	}, nil
}

func (h *Handlers) routes(static fs.FS) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", h.HandleCapsule)
	mux.HandleFunc("GET /{year}", h.HandleYear)
	mux.HandleFunc("GET /archive", h.HandleArchive)
	mux.HandleFunc("GET /archive/{id}", h.HandleEntry)
	mux.HandleFunc("GET /blobs/{id}", h.HandleBlob)

	mux.HandleFunc("GET /api/state", h.HandleState)
	mux.HandleFunc("POST /api/year", h.HandleSetYear)
	mux.HandleFunc("POST /api/retry", h.HandleRetry)
	mux.HandleFunc("POST /api/reset", h.HandleReset)
	mux.HandleFunc("GET /api/filters", h.HandleFilters)
	mux.HandleFunc("POST /api/filter", h.HandleSetFilter)
	mux.HandleFunc("GET /api/archive", h.HandleArchiveJSON)

	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(static)))
	return mux
}

// securityHeaders adds security-related HTTP headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self'; style-src 'self'; img-src 'self' data:")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		next.ServeHTTP(w, r)
	})
}

// Run serves srv until ctx is done or SIGINT/SIGTERM arrives, then shuts
// down gracefully.
func Run(ctx context.Context, srv *http.Server, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	logger.Info("HUD running", zap.String("url", "http://"+srv.Addr))
	if strings.Contains(srv.Addr, "0.0.0.0") || strings.Contains(srv.Addr, "::") {
		logger.Warn("server is binding to all interfaces and may be accessible from the network")
	}

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
