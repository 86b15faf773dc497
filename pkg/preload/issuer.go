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
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tombee/preflight/internal/metrics"
	"github.com/tombee/preflight/internal/tracing"
	"github.com/tombee/preflight/pkg/errors"
	"github.com/tombee/preflight/pkg/httpclient"
	"github.com/tombee/preflight/pkg/session"
)

const apiPathPrefix = "/api/0/organizations/"

// endpoints is the fixed request set, in issuance order.
var endpoints = []struct {
	key    Key
	suffix string
}{
	{KeyOrganization, "/?detailed=0"},
	{KeyProjects, "/projects/?all_projects=1&collapse=latestDeploys&collapse=unusedFeatures"},
	{KeyTeams, "/teams/"},
}

// Issuer issues the fixed set of preload requests for a resolved tenant.
type Issuer struct {
	client    *http.Client
	origin    string
	cookie    string
	logger    *slog.Logger
	collector *metrics.Collector
	tracer    trace.Tracer
}

// IssuerOption configures an Issuer.
type IssuerOption func(*Issuer)

// WithClient sets the HTTP client used for preload requests.
func WithClient(client *http.Client) IssuerOption {
	return func(i *Issuer) { i.client = client }
}

// WithOrigin sets the base URL used when the resolved session is
// same-origin (empty API host). In a browser this is implicit; a Go host
// environment has to supply it.
func WithOrigin(origin string) IssuerOption {
	return func(i *Issuer) { i.origin = origin }
}

// WithCredentials sets the Cookie header value attached to every preload
// request, regardless of which host the request targets.
func WithCredentials(cookie string) IssuerOption {
	return func(i *Issuer) { i.cookie = cookie }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) IssuerOption {
	return func(i *Issuer) { i.logger = logger }
}

// WithCollector sets the metrics collector.
func WithCollector(c *metrics.Collector) IssuerOption {
	return func(i *Issuer) { i.collector = c }
}

// NewIssuer creates an Issuer. Without options it uses the default
// httpclient factory client and the global tracer.
func NewIssuer(opts ...IssuerOption) *Issuer {
	i := &Issuer{
		logger: slog.Default(),
		tracer: otel.Tracer("preflight.preload"),
	}

	for _, opt := range opts {
		opt(i)
	}

	if i.client == nil {
		client, err := httpclient.New(httpclient.DefaultConfig())
		if err != nil {
			// DefaultConfig always validates; this is unreachable in
			// practice but the fallback keeps Issue total.
			client = http.DefaultClient
		}
		i.client = client
	}

	return i
}

// Issue starts the preload for the resolved session and returns the registry.
//
// When no tenant resolved, the registry is returned empty and no network
// traffic happens. Otherwise all three futures are published synchronously
// before Issue returns, so a caller reading the registry immediately
// afterwards sees every key; the requests themselves run concurrently and
// settle independently.
//
// ctx scopes the lifetime of the in-flight requests to the owning page
// context. Issue itself never blocks on the network.
func (i *Issuer) Issue(ctx context.Context, sess session.Resolved, tc tracing.TraceContext) *Registry {
	reg := NewRegistry()
	if !sess.HasOrg() {
		return reg
	}
	reg.setOrgSlug(sess.OrgSlug)

	host := sess.APIHost
	if host == "" {
		host = i.origin
	}

	for _, ep := range endpoints {
		f := newFuture()
		reg.Publish(ep.key, f)

		url := host + apiPathPrefix + sess.OrgSlug + ep.suffix
		go i.fetch(ctx, f, ep.key, url, tc)
	}

	i.logger.Debug("preload issued",
		slog.String("org_slug", sess.OrgSlug),
		slog.String("host", host),
	)

	return reg
}

// fetch performs one preload request and settles its future.
func (i *Issuer) fetch(ctx context.Context, f *Future, key Key, url string, tc tracing.TraceContext) {
	start := time.Now()

	ctx, span := i.tracer.Start(ctx, "preload "+string(key),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("preload.key", string(key))),
	)
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		i.settleRejected(f, key, span, start, &errors.RequestError{StatusText: "invalid request", Cause: err})
		return
	}

	// Correlation headers are copied verbatim from the page's initial trace
	// context so the receiving service stitches these requests into the
	// same distributed trace as the page load.
	tc.Inject(req.Header)

	if i.cookie != "" {
		req.Header.Set("Cookie", i.cookie)
	}

	resp, err := i.client.Do(req)
	if err != nil {
		i.settleRejected(f, key, span, start, &errors.RequestError{StatusText: "network error", Cause: err})
		return
	}
	defer resp.Body.Close()

	statusText := http.StatusText(resp.StatusCode)

	body, readErr := io.ReadAll(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		i.settleRejected(f, key, span, start, &errors.RequestError{StatusCode: resp.StatusCode, StatusText: statusText})
		return
	}

	// A 2xx body that is not valid JSON collapses into the same rejection
	// shape as a server error. Downstream consumers rely on this coarse
	// failure shape; do not attach parse detail.
	if readErr != nil || !json.Valid(body) {
		i.settleRejected(f, key, span, start, &errors.RequestError{StatusCode: resp.StatusCode, StatusText: statusText})
		return
	}

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	span.SetStatus(codes.Ok, "")

	if i.collector != nil {
		i.collector.ObserveRequest(string(key), metrics.OutcomeResolved, time.Since(start))
	}

	f.resolve(Result{Body: body, StatusText: statusText, Response: resp})
}

func (i *Issuer) settleRejected(f *Future, key Key, span trace.Span, start time.Time, reqErr *errors.RequestError) {
	span.RecordError(reqErr)
	span.SetStatus(codes.Error, reqErr.Error())

	if i.collector != nil {
		i.collector.ObserveRequest(string(key), metrics.OutcomeRejected, time.Since(start))
	}

	i.logger.Debug("preload request rejected",
		slog.String("key", string(key)),
		slog.Int("status", reqErr.StatusCode),
		slog.String("status_text", reqErr.StatusText),
	)

	f.reject(reqErr)
}
