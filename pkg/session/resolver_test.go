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

package session

import (
	"testing"

	"github.com/tombee/preflight/pkg/pagedata"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name string
		data *pagedata.InitialData
		want Resolved
	}{
		{
			name: "nil document",
			data: nil,
			want: Resolved{},
		},
		{
			name: "anonymous page skips resolution even with tenant sources",
			data: &pagedata.InitialData{
				LastOrganization: "acme",
				CustomerDomain:   &pagedata.CustomerDomain{Subdomain: "acme-eu"},
			},
			want: Resolved{},
		},
		{
			name: "no tenant source",
			data: &pagedata.InitialData{
				User: &pagedata.User{ID: "1"},
			},
			want: Resolved{},
		},
		{
			name: "last organization wins over customer domain",
			data: &pagedata.InitialData{
				User:             &pagedata.User{ID: "1"},
				LastOrganization: "acme",
				CustomerDomain:   &pagedata.CustomerDomain{Subdomain: "acme-eu"},
			},
			want: Resolved{OrgSlug: "acme"},
		},
		{
			name: "customer domain as fallback",
			data: &pagedata.InitialData{
				User:           &pagedata.User{ID: "1"},
				CustomerDomain: &pagedata.CustomerDomain{Subdomain: "acme-eu"},
			},
			want: Resolved{OrgSlug: "acme-eu"},
		},
		{
			name: "region host differing from default is selected",
			data: &pagedata.InitialData{
				User:             &pagedata.User{ID: "1"},
				LastOrganization: "acme",
				Links: pagedata.Links{
					SentryURL: "https://example.io",
					RegionURL: "https://eu.example.io",
				},
			},
			want: Resolved{OrgSlug: "acme", APIHost: "https://eu.example.io"},
		},
		{
			name: "region host equal to default stays same-origin",
			data: &pagedata.InitialData{
				User:             &pagedata.User{ID: "1"},
				LastOrganization: "acme",
				Links: pagedata.Links{
					SentryURL: "https://example.io",
					RegionURL: "https://example.io",
				},
			},
			want: Resolved{OrgSlug: "acme"},
		},
		{
			name: "absent region host stays same-origin",
			data: &pagedata.InitialData{
				User:             &pagedata.User{ID: "1"},
				LastOrganization: "acme",
				Links:            pagedata.Links{SentryURL: "https://example.io"},
			},
			want: Resolved{OrgSlug: "acme"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Resolve(tt.data)
			if got != tt.want {
				t.Errorf("Resolve() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestResolved_HasOrg(t *testing.T) {
	if (Resolved{}).HasOrg() {
		t.Error("empty Resolved should not have an org")
	}
	if !(Resolved{OrgSlug: "acme"}).HasOrg() {
		t.Error("expected HasOrg for non-empty slug")
	}
}
