// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package server implements the preload warmer daemon: an HTTP service that
// runs the bootstrap preload on behalf of a page-rendering layer and returns
// the aggregated results.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/tombee/preflight/internal/cache"
	"github.com/tombee/preflight/internal/httputil"
	"github.com/tombee/preflight/internal/log"
	"github.com/tombee/preflight/internal/metrics"
)

// Config holds the daemon configuration.
type Config struct {
	// Addr is the listen address.
	Addr string

	// Origin is the default API origin for same-origin sessions.
	Origin string

	// RequestTimeout bounds how long a bootstrap call waits for the preload
	// futures to settle.
	RequestTimeout time.Duration

	// RateRPS and RateBurst configure the bootstrap rate limiter.
	// RateRPS 0 disables limiting.
	RateRPS   float64
	RateBurst int

	// CacheMaxAge bounds snapshot staleness for fallback responses.
	CacheMaxAge time.Duration

	Version   string
	Commit    string
	BuildDate string
}

// Server is the warmer daemon.
type Server struct {
	cfg       Config
	mux       *http.ServeMux
	logger    *slog.Logger
	collector *metrics.Collector
	store     *cache.Store
	client    *http.Client
	limiter   *rate.Limiter
}

// New creates a Server. store may be nil to disable the snapshot cache;
// client may be nil to use the default preload client.
func New(cfg Config, logger *slog.Logger, collector *metrics.Collector, store *cache.Store, client *http.Client) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if collector == nil {
		collector = metrics.NewCollector()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}

	s := &Server{
		cfg:       cfg,
		mux:       http.NewServeMux(),
		logger:    log.WithComponent(logger, "server"),
		collector: collector,
		store:     store,
		client:    client,
	}

	if cfg.RateRPS > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateRPS), cfg.RateBurst)
	}

	s.mux.HandleFunc("POST /v1/bootstrap", s.handleBootstrap)
	s.mux.HandleFunc("GET /v1/health", s.handleHealth)
	s.mux.HandleFunc("GET /v1/version", s.handleVersion)
	s.mux.Handle("GET /metrics", collector.Handler())
	s.mux.HandleFunc("GET /", s.handleRoot)

	return s
}

// ServeHTTP implements http.Handler with request logging around the mux.
func (s *Server) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	start := time.Now()

	s.mux.ServeHTTP(w, req)

	s.logger.Info("request completed",
		slog.String("method", req.Method),
		slog.String("path", req.URL.Path),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	s.logger.Info("listening", slog.String("addr", s.cfg.Addr))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleRoot(w http.ResponseWriter, req *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"name":    "preflight",
		"version": s.cfg.Version,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, req *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, req *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"version":    s.cfg.Version,
		"commit":     s.cfg.Commit,
		"build_date": s.cfg.BuildDate,
	})
}
