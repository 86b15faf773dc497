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

package preload

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/tombee/preflight/internal/metrics"
	"github.com/tombee/preflight/internal/tracing"
	"github.com/tombee/preflight/pkg/pagedata"
	"github.com/tombee/preflight/pkg/session"
)

// Options configures a Bootstrap call.
type Options struct {
	// Client is the HTTP client for preload requests. Defaults to the
	// httpclient factory default.
	Client *http.Client

	// Origin is the base URL used when the session resolves same-origin.
	Origin string

	// Credentials is the Cookie header value sent with every request.
	Credentials string

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Collector records preload metrics when set.
	Collector *metrics.Collector
}

// Bootstrap resolves the session context from data and issues the preload.
//
// This is the best-effort top level: any failure, including a panic during
// setup, yields an empty registry and an advisory error. Callers must treat
// a non-nil error as "proceed without preload", never as fatal — the
// mechanism exists to hide latency, not to gate rendering.
func Bootstrap(ctx context.Context, data *pagedata.InitialData, opts Options) (reg *Registry, err error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Warn("bootstrap recovered", slog.Any("panic", r))
			if opts.Collector != nil {
				opts.Collector.ObserveBootstrap(metrics.BootstrapError)
			}
			reg = NewRegistry()
			err = fmt.Errorf("bootstrap: %v", r)
		}
	}()

	resolved := session.Resolve(data)
	if !resolved.HasOrg() {
		logger.Debug("preload skipped: no tenant resolved")
		if opts.Collector != nil {
			opts.Collector.ObserveBootstrap(metrics.BootstrapSkipped)
		}
		return NewRegistry(), nil
	}

	issuerOpts := []IssuerOption{
		WithOrigin(opts.Origin),
		WithCredentials(opts.Credentials),
		WithLogger(logger),
	}
	if opts.Client != nil {
		issuerOpts = append(issuerOpts, WithClient(opts.Client))
	}
	if opts.Collector != nil {
		issuerOpts = append(issuerOpts, WithCollector(opts.Collector))
	}

	reg = NewIssuer(issuerOpts...).Issue(ctx, resolved, tracing.TraceContext{
		SentryTrace: data.InitialTrace.SentryTrace,
		Baggage:     data.InitialTrace.Baggage,
	})

	if opts.Collector != nil {
		opts.Collector.ObserveBootstrap(metrics.BootstrapIssued)
	}

	return reg, nil
}
