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

package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/tombee/preflight/internal/httputil"
	"github.com/tombee/preflight/internal/tracing"
	preflighterrors "github.com/tombee/preflight/pkg/errors"
	"github.com/tombee/preflight/pkg/pagedata"
	"github.com/tombee/preflight/pkg/preload"
)

// BootstrapResponse is the aggregated preload result for one page.
type BootstrapResponse struct {
	OrgSlug string               `json:"org_slug"`
	Results map[string]KeyResult `json:"results"`
}

// KeyResult is the outcome for a single logical key.
type KeyResult struct {
	// Body is the preloaded JSON payload when the request resolved, or a
	// cached snapshot when Stale is set.
	Body json.RawMessage `json:"body,omitempty"`

	// Stale marks a snapshot-cache fallback after a failed revalidation.
	Stale bool `json:"stale,omitempty"`

	// Error carries the rejection when no payload is available.
	Error *KeyError `json:"error,omitempty"`
}

// KeyError mirrors the preload rejection shape.
type KeyError struct {
	Status     int    `json:"status"`
	StatusText string `json:"status_text"`
}

// handleBootstrap runs a preload for the posted page-data document and
// responds with the settled results. The preload itself stays best-effort:
// request failures show up as per-key errors, never as an HTTP failure.
func (s *Server) handleBootstrap(w http.ResponseWriter, req *http.Request) {
	if s.limiter != nil && !s.limiter.Allow() {
		httputil.WriteError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	doc, err := pagedata.Decode(req.Body)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid page data document")
		return
	}

	// The document's own trace context wins. When the rendering layer didn't
	// mint one, continue the caller's trace from the request headers, or
	// start a fresh one so daemon-originated warms are still traceable.
	if doc.InitialTrace.SentryTrace == "" {
		if tc := tracing.Extract(req.Header); tc.SentryTrace != "" {
			doc.InitialTrace = pagedata.TraceContext{SentryTrace: tc.SentryTrace, Baggage: tc.Baggage}
		} else {
			doc.InitialTrace.SentryTrace = tracing.NewTraceContext().SentryTrace
		}
	}

	reg, err := preload.Bootstrap(req.Context(), doc, preload.Options{
		Client: s.client,
		Origin: s.cfg.Origin,
		// The page-rendering layer forwards the browser's cookies; the
		// preload carries them on to the API.
		Credentials: req.Header.Get("Cookie"),
		Logger:      s.logger,
		Collector:   s.collector,
	})
	if err != nil {
		// Best-effort contract: proceed without preload.
		s.logger.Warn("bootstrap failed", slog.Any("error", err))
	}

	resp := BootstrapResponse{
		OrgSlug: reg.OrgSlug(),
		Results: make(map[string]KeyResult),
	}

	if reg.Empty() {
		httputil.WriteJSON(w, http.StatusOK, resp)
		return
	}

	waitCtx, cancel := context.WithTimeout(req.Context(), s.cfg.RequestTimeout)
	defer cancel()

	for _, key := range preload.Keys() {
		f, ok := reg.Get(key)
		if !ok {
			continue
		}
		resp.Results[string(key)] = s.settleKey(waitCtx, reg.OrgSlug(), key, f)
	}

	httputil.WriteJSON(w, http.StatusOK, resp)
}

// settleKey waits for one future and converts it to a response entry,
// storing fresh payloads in the snapshot cache and falling back to it on
// failure.
func (s *Server) settleKey(ctx context.Context, orgSlug string, key preload.Key, f *preload.Future) KeyResult {
	res, err := f.Wait(ctx)
	if err == nil {
		// Stored on a fresh context: the wait context may already be
		// near its deadline.
		s.storeSnapshot(context.Background(), orgSlug, key, res.Body)
		return KeyResult{Body: res.Body}
	}

	if body, ok := s.loadSnapshot(orgSlug, key); ok {
		return KeyResult{Body: body, Stale: true}
	}

	if reqErr, ok := preflighterrors.AsRequestError(err); ok {
		return KeyResult{Error: &KeyError{Status: reqErr.StatusCode, StatusText: reqErr.StatusText}}
	}
	// Wait abandoned (timeout); the underlying request keeps running.
	return KeyResult{Error: &KeyError{StatusText: "timeout"}}
}

func (s *Server) storeSnapshot(ctx context.Context, orgSlug string, key preload.Key, body []byte) {
	if s.store == nil {
		return
	}
	if err := s.store.Put(ctx, orgSlug, string(key), body); err != nil {
		s.logger.Warn("snapshot store failed",
			slog.String("key", string(key)),
			slog.Any("error", err),
		)
	}
}

func (s *Server) loadSnapshot(orgSlug string, key preload.Key) ([]byte, bool) {
	if s.store == nil {
		return nil, false
	}

	// Snapshot reads get their own context: the request context may
	// already be past its deadline when we fall back.
	body, ok, err := s.store.Get(context.Background(), orgSlug, string(key), s.cfg.CacheMaxAge)
	if err != nil {
		s.logger.Warn("snapshot load failed",
			slog.String("key", string(key)),
			slog.Any("error", err),
		)
		return nil, false
	}

	if ok {
		s.collector.ObserveCache("stale")
	} else {
		s.collector.ObserveCache("miss")
	}
	return body, ok
}
