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

package tracing

import (
	"net/http"
	"testing"
)

const validSentryTrace = "4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-1"

func TestTraceContext_IsValid(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  bool
	}{
		{"with sampled flag", validSentryTrace, true},
		{"without sampled flag", "4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7", true},
		{"unsampled", "4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-0", true},
		{"empty", "", false},
		{"uppercase hex", "4BF92F3577B34DA6A3CE929D0E0E4736-00f067aa0ba902b7", false},
		{"short trace id", "4bf92f35-00f067aa0ba902b7", false},
		{"garbage", "not-a-trace", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc := TraceContext{SentryTrace: tt.value}
			if got := tc.IsValid(); got != tt.want {
				t.Errorf("IsValid(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestTraceContext_TraceID(t *testing.T) {
	tc := TraceContext{SentryTrace: validSentryTrace}
	if got := tc.TraceID(); got != "4bf92f3577b34da6a3ce929d0e0e4736" {
		t.Errorf("TraceID() = %q", got)
	}

	if got := (TraceContext{SentryTrace: "bogus"}).TraceID(); got != "" {
		t.Errorf("TraceID() for malformed value = %q, want empty", got)
	}
}

func TestTraceContext_Inject(t *testing.T) {
	h := http.Header{}
	tc := TraceContext{SentryTrace: validSentryTrace, Baggage: "sentry-environment=prod"}
	tc.Inject(h)

	if got := h.Get(HeaderSentryTrace); got != validSentryTrace {
		t.Errorf("sentry-trace = %q", got)
	}
	if got := h.Get(HeaderBaggage); got != "sentry-environment=prod" {
		t.Errorf("baggage = %q", got)
	}
}

func TestTraceContext_Inject_SkipsEmptyValues(t *testing.T) {
	h := http.Header{}
	TraceContext{}.Inject(h)

	if _, ok := h[http.CanonicalHeaderKey(HeaderSentryTrace)]; ok {
		t.Error("empty sentry-trace should not be set")
	}
	if _, ok := h[http.CanonicalHeaderKey(HeaderBaggage)]; ok {
		t.Error("empty baggage should not be set")
	}
}

func TestExtract_RoundTrip(t *testing.T) {
	h := http.Header{}
	tc := TraceContext{SentryTrace: validSentryTrace, Baggage: "a=b"}
	tc.Inject(h)

	got := Extract(h)
	if got != tc {
		t.Errorf("Extract() = %+v, want %+v", got, tc)
	}
}

func TestNewTraceContext(t *testing.T) {
	tc := NewTraceContext()
	if !tc.IsValid() {
		t.Fatalf("minted trace context is malformed: %q", tc.SentryTrace)
	}

	other := NewTraceContext()
	if tc.SentryTrace == other.SentryTrace {
		t.Error("expected distinct trace contexts")
	}
}
