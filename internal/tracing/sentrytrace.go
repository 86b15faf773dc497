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

// Package tracing provides trace-correlation support for preload requests
// and OpenTelemetry instrumentation for preflight itself.
package tracing

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// HTTP header names for trace correlation. The receiving service uses these
// to stitch preload requests into the same distributed trace as the page
// load that spawned them.
const (
	// HeaderSentryTrace carries the trace identifier pair.
	HeaderSentryTrace = "sentry-trace"
	// HeaderBaggage carries the associated trace metadata.
	HeaderBaggage = "baggage"
)

// sentryTraceRegex validates the <trace_id>-<span_id>[-<sampled>] format.
var sentryTraceRegex = regexp.MustCompile(`^[0-9a-f]{32}-[0-9a-f]{16}(-[01])?$`)

// TraceContext is a trace correlation pair. Both values are opaque: they are
// injected into outgoing requests exactly as received, never rewritten.
type TraceContext struct {
	SentryTrace string
	Baggage     string
}

// IsValid reports whether the sentry-trace value is well formed.
// The baggage string is free-form and is not validated.
func (tc TraceContext) IsValid() bool {
	return sentryTraceRegex.MatchString(tc.SentryTrace)
}

// TraceID returns the trace identifier segment of the sentry-trace value,
// or empty when the value is malformed.
func (tc TraceContext) TraceID() string {
	if !tc.IsValid() {
		return ""
	}
	return tc.SentryTrace[:strings.Index(tc.SentryTrace, "-")]
}

// Inject copies the correlation pair into h verbatim. Empty values are
// skipped rather than set to empty headers.
func (tc TraceContext) Inject(h http.Header) {
	if tc.SentryTrace != "" {
		h.Set(HeaderSentryTrace, tc.SentryTrace)
	}
	if tc.Baggage != "" {
		h.Set(HeaderBaggage, tc.Baggage)
	}
}

// Extract reads a correlation pair from h.
func Extract(h http.Header) TraceContext {
	return TraceContext{
		SentryTrace: h.Get(HeaderSentryTrace),
		Baggage:     h.Get(HeaderBaggage),
	}
}

// NewTraceContext mints a fresh sampled trace context. Used when preflight
// originates the trace itself (daemon-initiated warms) instead of continuing
// a page load's trace.
func NewTraceContext() TraceContext {
	traceID := hex32()
	spanID := hex32()[:16]
	return TraceContext{SentryTrace: traceID + "-" + spanID + "-1"}
}

// hex32 returns 32 lowercase hex characters of randomness.
func hex32() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}
