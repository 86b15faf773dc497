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

// Package pagedata models the initial data payload the page-rendering layer
// embeds into a page before the application shell loads.
//
// The document is owned by the rendering layer and is read-only for the
// lifetime of the page. preflight only ever decodes it; it never writes one.
package pagedata

import (
	"encoding/json"
	"fmt"
	"io"
)

// InitialData is the initial page payload.
//
// All fields except Links are optional. A missing User field means the page
// was rendered for an anonymous visitor and no preload work should happen.
type InitialData struct {
	// User is the authenticated-user marker. Presence, not content, is what
	// gates the preload; the fields exist for logging only.
	User *User `json:"user,omitempty"`

	// LastOrganization is the slug of the organization the user most
	// recently used, when known.
	LastOrganization string `json:"lastOrganization,omitempty"`

	// CustomerDomain describes the customer-specific domain the page was
	// served from, when the deployment uses per-tenant subdomains.
	CustomerDomain *CustomerDomain `json:"customerDomain,omitempty"`

	// Links carries the API hosts the client may talk to.
	Links Links `json:"links"`

	// InitialTrace is the distributed-trace context minted for the page
	// load itself. Preload requests propagate it verbatim.
	InitialTrace TraceContext `json:"initialTrace"`
}

// User is the authenticated-user marker embedded in the page payload.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
}

// CustomerDomain describes a tenant-specific serving domain.
type CustomerDomain struct {
	// Subdomain is the tenant slug derived from the serving hostname.
	Subdomain string `json:"subdomain"`

	// OrganizationURL is the canonical URL for the tenant, when present.
	OrganizationURL string `json:"organizationUrl,omitempty"`
}

// Links holds the API origins available to the client.
type Links struct {
	// SentryURL is the default API host.
	SentryURL string `json:"sentryUrl"`

	// RegionURL is the region-specific API host for data-residency
	// deployments. Empty when the tenant lives on the default host.
	RegionURL string `json:"regionUrl,omitempty"`
}

// TraceContext is the page load's trace correlation pair. Both values are
// opaque strings copied into outgoing request headers without modification.
type TraceContext struct {
	SentryTrace string `json:"sentry_trace"`
	Baggage     string `json:"baggage"`
}

// Decode reads and parses an InitialData document from r.
func Decode(r io.Reader) (*InitialData, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read page data: %w", err)
	}
	return Parse(data)
}

// Parse parses an InitialData document from raw JSON.
func Parse(data []byte) (*InitialData, error) {
	var doc InitialData
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse page data: %w", err)
	}
	return &doc, nil
}
