package core

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MountRoutes registers the global middleware chain, domain handler routes,
// operational endpoints, and the static-asset fallback.
//
// Middleware order: Recoverer outermost so every panic is caught, then
// request ID generation so logging and metrics can correlate, then the
// request logger and metrics recorder.
func (s *Server) MountRoutes() {
	s.router.Use(s.Recoverer)
	s.router.Use(RequestIDMiddleware)
	s.router.Use(RequestLogger(s.Logger))
	s.router.Use(MetricsMiddleware)

	for _, registrar := range s.RouteRegistrars {
		registrar(s.router)
	}

	s.router.Get("/health", s.HandleHealth)
	s.router.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// Unmatched requests fall through to the static file server.
	s.router.NotFound(s.serveStatic)
}

// serveStatic serves a file from the configured static directory for
// unmatched GETs: "/" maps to index.html, any other path to the
// corresponding file. Missing files and non-GET methods get a 404.
func (s *Server) serveStatic(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.NotFound(w, r)
		return
	}

	rel := r.URL.Path
	if rel == "/" {
		rel = "/index.html"
	}

	// Clean with a leading slash so ".." segments cannot escape the root.
	path := filepath.Join(s.Config.Server.StaticDir, filepath.FromSlash(filepath.Clean("/"+rel)))

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}

	http.ServeFile(w, r, path)
}
