// Package server exposes the resolution engine over HTTP: per-airport
// building estimates, comparisons, registry-wide aggregates, and the
// operational endpoints around them.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/aerosolar/solar-cli/internal/airport"
	"github.com/aerosolar/solar-cli/internal/config"
	"github.com/aerosolar/solar-cli/internal/resolver"
	"github.com/aerosolar/solar-cli/internal/solar"
)

// Version is reported by the status endpoint.
const Version = "2.0.0"

// Server is the HTTP API frontend over a cached resolver.
type Server struct {
	cfg      config.ServerConfig
	defaults resolver.Query
	res      resolver.Interface
	cache    *resolver.Cache
	registry *airport.Registry
	regions  solar.Regions
	metrics  *Metrics

	startedAt time.Time
	requests  atomic.Int64
}

// New builds a server over the given cached resolver. cache may be nil
// when the caller wires an uncached resolver, at the cost of the status
// endpoint's cache stats.
func New(cfg config.ServerConfig, res resolver.Interface, cache *resolver.Cache, reg *airport.Registry, regions solar.Regions, defaults resolver.Query) *Server {
	s := &Server{
		cfg:       cfg,
		defaults:  defaults,
		res:       res,
		cache:     cache,
		registry:  reg,
		regions:   regions,
		startedAt: time.Now(),
	}
	s.metrics = NewMetrics(s.cacheStats)
	return s
}

func (s *Server) cacheStats() (entries, hits, misses float64) {
	if s.cache == nil {
		return 0, 0, 0
	}
	st := s.cache.Stats()
	return float64(st.Entries), float64(st.Hits), float64(st.Misses)
}

// Router assembles the chi router with the full middleware chain.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(requestID)
	r.Use(securityHeaders)
	r.Use(s.countRequests)
	r.Use(inFlight(s.metrics))
	r.Use(observe(s.metrics))
	r.Use(newIPLimiter(s.cfg.RateLimitPerSec, s.cfg.RateBurst).middleware)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", requestIDHeader},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", s.handleHealth)
	r.Get("/api/health", s.handleHealth)
	r.Get("/api/status", s.handleStatus)
	r.Get("/api/ready", s.handleReady)
	r.Get("/api/airports", s.handleAirports)
	r.Get("/api/capacity-factors", s.handleCapacityFactors)
	r.Get("/api/buildings/{code}", s.handleBuildings)
	r.Get("/api/compare", s.handleCompare)
	r.Get("/api/aggregate", s.handleAggregate)
	r.Handle("/metrics", s.metrics.Handler())

	return r
}

func (s *Server) countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.requests.Add(1)
		next.ServeHTTP(w, r)
	})
}

// Run serves until ctx is cancelled, then drains in-flight requests
// within the shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:      s.Router(),
		ReadTimeout:  time.Duration(s.cfg.ReadTimeoutSecs) * time.Second,
		WriteTimeout: time.Duration(s.cfg.WriteTimeoutSecs) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zap.L().Info("api server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return eris.Wrap(err, "server: listen")
		}
		return nil
	case <-ctx.Done():
	}

	zap.L().Info("api server shutting down",
		zap.Int64("requests_handled", s.requests.Load()))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(s.cfg.ShutdownTimeoutSecs)*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return eris.Wrap(err, "server: shutdown")
	}
	return nil
}
