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

import "sync"

// Key identifies one of the fixed preload requests.
type Key string

const (
	// KeyOrganization is the tenant organization detail request.
	KeyOrganization Key = "organization"
	// KeyProjects is the tenant project list request.
	KeyProjects Key = "projects"
	// KeyTeams is the tenant team list request.
	KeyTeams Key = "teams"
)

// Keys returns the logical keys in issuance order.
func Keys() []Key {
	return []Key{KeyOrganization, KeyProjects, KeyTeams}
}

// Registry is the page-lifetime store of preload futures.
//
// A registry is populated at most once, synchronously, by an Issuer; after
// that it is read-only. There is no removal: the registry lives as long as
// the page context that owns it. An empty registry (anonymous page, no
// tenant resolved) is a valid terminal state, not an error.
type Registry struct {
	mu      sync.RWMutex
	orgSlug string
	futures map[Key]*Future
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{futures: make(map[Key]*Future)}
}

// Publish stores f under key. The first publish per key wins; later
// publishes are dropped, preserving the one-outstanding-request-per-key
// invariant. Returns whether f was stored.
func (r *Registry) Publish(key Key, f *Future) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.futures[key]; exists {
		return false
	}
	r.futures[key] = f
	return true
}

// Get returns the future published under key, if any.
func (r *Registry) Get(key Key) (*Future, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.futures[key]
	return f, ok
}

// OrgSlug returns the tenant slug the registry was populated for.
// Empty for an unpopulated registry.
func (r *Registry) OrgSlug() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.orgSlug
}

func (r *Registry) setOrgSlug(slug string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orgSlug = slug
}

// Empty reports whether the registry holds no futures.
func (r *Registry) Empty() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.futures) == 0
}

// Len returns the number of published futures.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.futures)
}
