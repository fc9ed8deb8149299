// Package server serves a resolved ZIP -> county mapping and FIPS lookups
// over HTTP.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sells-group/zipcounty/internal/fips"
	"github.com/sells-group/zipcounty/internal/zipcode"
)

// Options configures the server.
type Options struct {
	Port        int
	CORSOrigins []string
}

// Server answers lookups against an immutable mapping.
type Server struct {
	mapping  zipcode.Mapping
	resolver *fips.Resolver
	metrics  *Metrics
	router   chi.Router
	http     *http.Server
}

// New builds the router. The mapping must not be modified afterwards.
func New(m zipcode.Mapping, resolver *fips.Resolver, metrics *Metrics, opts Options) *Server {
	if resolver == nil {
		resolver = fips.NewResolver(nil)
	}
	if metrics == nil {
		metrics = NewMetrics()
	}
	metrics.MappedZIPs.Set(float64(len(m)))

	s := &Server{mapping: m, resolver: resolver, metrics: metrics}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(corsHandler(opts.CORSOrigins))

	r.Get("/health", s.handleHealth)
	r.Get("/zip/{zip}", s.handleZIP)
	r.Get("/fips/{code}", s.handleFIPS)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	s.router = r

	s.http = &http.Server{
		Addr:         fmt.Sprintf(":%d", opts.Port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func corsHandler(origins []string) func(http.Handler) http.Handler {
	opts := cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}
	if len(origins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	return cors.Handler(opts)
}

// ServeHTTP delegates to the router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Start listens until Shutdown. It returns http.ErrServerClosed after a
// graceful shutdown.
func (s *Server) Start() error {
	zap.L().Info("starting server", zap.String("addr", s.http.Addr), zap.Int("zips", len(s.mapping)))
	return s.http.ListenAndServe()
}

// Shutdown drains connections within ctx's deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	zap.L().Info("shutting down server")
	return s.http.Shutdown(ctx)
}

type zipResponse struct {
	ZIP      string   `json:"zip"`
	Counties []string `json:"counties"`
}

type fipsResponse struct {
	FIPS  string `json:"fips"`
	Label string `json:"label"`
	Found bool   `json:"found"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleZIP(w http.ResponseWriter, r *http.Request) {
	defer s.observe("zip", time.Now())

	zip := chi.URLParam(r, "zip")
	labels := s.mapping.Labels(zip)
	if len(labels) == 0 {
		labels = s.mapping.Labels(zipcode.Normalize(zip))
	}
	if len(labels) == 0 {
		s.metrics.Lookups.WithLabelValues("zip", "not_found").Inc()
		writeJSON(w, http.StatusNotFound, map[string]string{"error": fmt.Sprintf("zip %s not found", zip)})
		return
	}
	s.metrics.Lookups.WithLabelValues("zip", "found").Inc()
	writeJSON(w, http.StatusOK, zipResponse{ZIP: zip, Counties: labels})
}

func (s *Server) handleFIPS(w http.ResponseWriter, r *http.Request) {
	defer s.observe("fips", time.Now())

	code := chi.URLParam(r, "code")
	if !isDigits(code) || len(code) > fips.CodeLen {
		s.metrics.Lookups.WithLabelValues("fips", "invalid").Inc()
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("invalid fips code %q", code)})
		return
	}

	code = fips.Normalize(code)
	label, ok := s.resolver.Lookup(code)
	outcome := "found"
	if !ok {
		outcome = "not_found"
	}
	s.metrics.Lookups.WithLabelValues("fips", outcome).Inc()
	writeJSON(w, http.StatusOK, fipsResponse{FIPS: code, Label: label, Found: ok})
}

func (s *Server) observe(route string, start time.Time) {
	s.metrics.LookupDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}
