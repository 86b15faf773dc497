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

// Package serve implements the warmer daemon command.
package serve

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tombee/preflight/internal/cache"
	"github.com/tombee/preflight/internal/commands/shared"
	"github.com/tombee/preflight/internal/config"
	"github.com/tombee/preflight/internal/log"
	"github.com/tombee/preflight/internal/metrics"
	"github.com/tombee/preflight/internal/server"
	"github.com/tombee/preflight/internal/tracing"
	"github.com/tombee/preflight/pkg/httpclient"
)

type serveOptions struct {
	addr      string
	origin    string
	cachePath string
	noCache   bool
}

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the preload warmer daemon",
		Long: `Run an HTTP service that accepts initial page data documents, performs the
bootstrap preload, and returns the aggregated results. Settled payloads are
cached so a failed revalidation can fall back to the last good snapshot.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.addr, "addr", "", "listen address (overrides config)")
	cmd.Flags().StringVar(&opts.origin, "origin", "", "default API origin (overrides config)")
	cmd.Flags().StringVar(&opts.cachePath, "cache", "", "snapshot cache path (overrides config)")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable the snapshot cache")

	return cmd
}

func runServe(cmd *cobra.Command, opts *serveOptions) error {
	path := shared.GetConfigPath()
	if path == "" {
		var err error
		path, err = config.Path()
		if err != nil {
			return fmt.Errorf("resolve config path: %w", err)
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	if opts.addr != "" {
		cfg.Server.Addr = opts.addr
	}
	if opts.origin != "" {
		cfg.Origin = opts.origin
	}
	if opts.cachePath != "" {
		cfg.Cache.Path = opts.cachePath
	}

	logger := log.New(&log.Config{Level: cfg.Log.Level, Format: log.Format(cfg.Log.Format)})
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	version, commit, buildDate := shared.GetVersion()

	provider, err := tracing.NewProvider(ctx, tracing.Config{
		ServiceName:    "preflight",
		ServiceVersion: version,
		Exporter:       tracing.Exporter(cfg.Tracing.Exporter),
		Endpoint:       cfg.Tracing.Endpoint,
		SampleRate:     cfg.Tracing.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("initialize tracing: %w", err)
	}
	defer func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			logger.Warn("tracing shutdown failed", log.Error(err))
		}
	}()

	var store *cache.Store
	if !opts.noCache {
		cachePath := cfg.Cache.Path
		if cachePath == "" {
			cachePath, err = config.DefaultCachePath()
			if err != nil {
				return fmt.Errorf("resolve cache path: %w", err)
			}
		}
		store, err = cache.Open(cachePath)
		if err != nil {
			return fmt.Errorf("open snapshot cache: %w", err)
		}
		defer store.Close()
	}

	client, err := httpclient.New(httpclient.Config{
		Timeout:   cfg.HTTP.Timeout,
		UserAgent: cfg.HTTP.UserAgent,
		CookieJar: false, // credentials are forwarded per request
	})
	if err != nil {
		return err
	}

	srv := server.New(server.Config{
		Addr:           cfg.Server.Addr,
		Origin:         cfg.Origin,
		RequestTimeout: cfg.Server.RequestTimeout,
		RateRPS:        cfg.Server.RateLimit.RPS,
		RateBurst:      cfg.Server.RateLimit.Burst,
		CacheMaxAge:    cfg.Cache.MaxAge,
		Version:        version,
		Commit:         commit,
		BuildDate:      buildDate,
	}, logger, metrics.NewCollector(), store, client)

	return srv.Run(ctx)
}
