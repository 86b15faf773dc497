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

// Package session resolves the active tenant context from initial page data.
package session

import "github.com/tombee/preflight/pkg/pagedata"

// Resolved is the tenant context derived from a page's initial data.
// Computed once per page load, never mutated.
type Resolved struct {
	// OrgSlug identifies the tenant whose data should be preloaded.
	// Empty means no tenant resolved and all downstream work is skipped.
	OrgSlug string

	// APIHost is the origin preload requests are sent to. Empty means
	// same-origin: the issuer prefixes its configured default origin.
	APIHost string
}

// HasOrg reports whether a tenant was resolved.
func (r Resolved) HasOrg() bool {
	return r.OrgSlug != ""
}

// Resolve computes the tenant context from data.
//
// Resolution never fails; an anonymous page or a page with no usable tenant
// source yields an absent slug rather than an error.
//
// Slug priority: the explicit last-used organization always wins over the
// slug derived from a customer domain's subdomain.
//
// Host selection: the region host is used only when it is present and
// differs from the default host by value; otherwise requests stay
// same-origin (empty host).
func Resolve(data *pagedata.InitialData) Resolved {
	if data == nil || data.User == nil {
		return Resolved{}
	}

	var slug string
	switch {
	case data.LastOrganization != "":
		slug = data.LastOrganization
	case data.CustomerDomain != nil && data.CustomerDomain.Subdomain != "":
		slug = data.CustomerDomain.Subdomain
	default:
		return Resolved{}
	}

	var host string
	if data.Links.RegionURL != "" && data.Links.RegionURL != data.Links.SentryURL {
		host = data.Links.RegionURL
	}

	return Resolved{OrgSlug: slug, APIHost: host}
}
