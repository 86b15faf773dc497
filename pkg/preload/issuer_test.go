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
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/preflight/internal/tracing"
	"github.com/tombee/preflight/pkg/errors"
	"github.com/tombee/preflight/pkg/session"
)

const testSentryTrace = "4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-1"
const testBaggage = "sentry-environment=prod,sentry-trace_id=4bf92f3577b34da6a3ce929d0e0e4736"

// recordingBackend is a fake API origin that records every request.
type recordingBackend struct {
	mu       sync.Mutex
	requests []*http.Request
	handler  http.HandlerFunc
	server   *httptest.Server
}

func newRecordingBackend(t *testing.T, handler http.HandlerFunc) *recordingBackend {
	t.Helper()

	b := &recordingBackend{handler: handler}
	b.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		clone := r.Clone(context.Background())
		b.requests = append(b.requests, clone)
		b.mu.Unlock()

		if b.handler != nil {
			b.handler(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{}`))
	}))
	t.Cleanup(b.server.Close)

	return b
}

func (b *recordingBackend) recorded() []*http.Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*http.Request(nil), b.requests...)
}

func waitAll(t *testing.T, reg *Registry) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for _, key := range Keys() {
		f, ok := reg.Get(key)
		require.True(t, ok, "missing future for %s", key)
		f.Wait(ctx)
	}
}

func testTrace() tracing.TraceContext {
	return tracing.TraceContext{SentryTrace: testSentryTrace, Baggage: testBaggage}
}

func TestIssue_NoTenantIsNoOp(t *testing.T) {
	backend := newRecordingBackend(t, nil)

	issuer := NewIssuer(WithOrigin(backend.server.URL))
	reg := issuer.Issue(context.Background(), session.Resolved{}, testTrace())

	assert.True(t, reg.Empty())
	assert.Equal(t, "", reg.OrgSlug())
	assert.Empty(t, backend.recorded(), "no tenant must mean zero network calls")
}

func TestIssue_RequestPaths(t *testing.T) {
	backend := newRecordingBackend(t, nil)

	issuer := NewIssuer(WithOrigin(backend.server.URL))
	reg := issuer.Issue(context.Background(), session.Resolved{OrgSlug: "acme"}, testTrace())
	waitAll(t, reg)

	var paths []string
	for _, r := range backend.recorded() {
		paths = append(paths, r.URL.RequestURI())
	}

	assert.ElementsMatch(t, []string{
		"/api/0/organizations/acme/?detailed=0",
		"/api/0/organizations/acme/projects/?all_projects=1&collapse=latestDeploys&collapse=unusedFeatures",
		"/api/0/organizations/acme/teams/",
	}, paths)
}

func TestIssue_RegistryPopulatedSynchronously(t *testing.T) {
	release := make(chan struct{})
	backend := newRecordingBackend(t, func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.Write([]byte(`{}`))
	})
	defer close(release)

	issuer := NewIssuer(WithOrigin(backend.server.URL))
	reg := issuer.Issue(context.Background(), session.Resolved{OrgSlug: "acme"}, testTrace())

	// All three keys must be visible before any request settles.
	assert.Equal(t, 3, reg.Len())
	assert.Equal(t, "acme", reg.OrgSlug())
	for _, key := range Keys() {
		f, ok := reg.Get(key)
		require.True(t, ok, "key %s missing right after Issue", key)
		_, _, settled := f.TryGet()
		assert.False(t, settled, "key %s settled while backend is held", key)
	}
}

func TestIssue_CorrelationHeadersVerbatim(t *testing.T) {
	backend := newRecordingBackend(t, nil)

	issuer := NewIssuer(WithOrigin(backend.server.URL))
	reg := issuer.Issue(context.Background(), session.Resolved{OrgSlug: "acme"}, testTrace())
	waitAll(t, reg)

	recorded := backend.recorded()
	require.Len(t, recorded, 3)
	for _, r := range recorded {
		assert.Equal(t, testSentryTrace, r.Header.Get("sentry-trace"))
		assert.Equal(t, testBaggage, r.Header.Get("baggage"))
	}
}

func TestIssue_CredentialsOnEveryRequest(t *testing.T) {
	backend := newRecordingBackend(t, nil)

	issuer := NewIssuer(
		WithOrigin(backend.server.URL),
		WithCredentials("session=s3cr3t"),
	)
	reg := issuer.Issue(context.Background(), session.Resolved{OrgSlug: "acme"}, testTrace())
	waitAll(t, reg)

	recorded := backend.recorded()
	require.Len(t, recorded, 3)
	for _, r := range recorded {
		assert.Equal(t, "session=s3cr3t", r.Header.Get("Cookie"))
	}
}

func TestIssue_RegionHostWins(t *testing.T) {
	origin := newRecordingBackend(t, nil)
	region := newRecordingBackend(t, nil)

	issuer := NewIssuer(WithOrigin(origin.server.URL))
	reg := issuer.Issue(context.Background(), session.Resolved{
		OrgSlug: "acme",
		APIHost: region.server.URL,
	}, testTrace())
	waitAll(t, reg)

	assert.Empty(t, origin.recorded(), "default origin must not be hit when a region host resolved")
	assert.Len(t, region.recorded(), 3)
}

func TestIssue_FailureStaysLocal(t *testing.T) {
	backend := newRecordingBackend(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/0/organizations/acme/teams/" {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	})

	issuer := NewIssuer(WithOrigin(backend.server.URL))
	reg := issuer.Issue(context.Background(), session.Resolved{OrgSlug: "acme"}, testTrace())

	ctx := context.Background()

	teams, _ := reg.Get(KeyTeams)
	_, err := teams.Wait(ctx)
	reqErr, ok := errors.AsRequestError(err)
	require.True(t, ok, "teams should reject with RequestError, got %v", err)
	assert.Equal(t, http.StatusInternalServerError, reqErr.StatusCode)
	assert.Equal(t, "Internal Server Error", reqErr.StatusText)

	for _, key := range []Key{KeyOrganization, KeyProjects} {
		f, _ := reg.Get(key)
		res, err := f.Wait(ctx)
		require.NoError(t, err, "%s must settle independently of the teams failure", key)
		assert.JSONEq(t, `{"ok":true}`, string(res.Body))
		assert.Equal(t, "OK", res.StatusText)
	}
}

func TestIssue_MalformedBodyCollapsesToRejection(t *testing.T) {
	backend := newRecordingBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html>not json</html>"))
	})

	issuer := NewIssuer(WithOrigin(backend.server.URL))
	reg := issuer.Issue(context.Background(), session.Resolved{OrgSlug: "acme"}, testTrace())

	f, _ := reg.Get(KeyOrganization)
	_, err := f.Wait(context.Background())

	reqErr, ok := errors.AsRequestError(err)
	require.True(t, ok, "malformed 2xx body must reject, got %v", err)
	// Same coarse shape as a server failure; no parse detail attached.
	assert.Equal(t, http.StatusOK, reqErr.StatusCode)
	assert.NoError(t, reqErr.Cause)
}

func TestIssue_TransportFailure(t *testing.T) {
	// Point at a closed port.
	backend := newRecordingBackend(t, nil)
	url := backend.server.URL
	backend.server.Close()

	issuer := NewIssuer(WithOrigin(url))
	reg := issuer.Issue(context.Background(), session.Resolved{OrgSlug: "acme"}, testTrace())

	for _, key := range Keys() {
		f, _ := reg.Get(key)
		_, err := f.Wait(context.Background())
		assert.True(t, errors.IsTransportFailure(err), "%s: expected transport failure, got %v", key, err)
	}
}
