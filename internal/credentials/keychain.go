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

// Package credentials stores the session cookie preload requests authenticate
// with. The cookie is an opaque value; preflight never inspects it.
package credentials

import (
	"errors"
	"fmt"
	"os"

	"github.com/zalando/go-keyring"
)

const (
	// keychainService is the service name used for keychain entries.
	keychainService = "preflight"

	// keychainAccount is the account name the session cookie is stored under.
	keychainAccount = "session-cookie"

	// EnvCookie is the environment variable override for the session cookie.
	EnvCookie = "PREFLIGHT_COOKIE"
)

// Store persists the session cookie in the system keychain.
// Supported platforms:
//   - macOS: Keychain Access
//   - Linux: Secret Service API (GNOME Keyring, KWallet)
//   - Windows: Credential Manager
type Store struct {
	service string
}

// NewStore creates a keychain-backed credential store.
func NewStore() *Store {
	return &Store{service: keychainService}
}

// Set stores the session cookie.
func (s *Store) Set(cookie string) error {
	if cookie == "" {
		return fmt.Errorf("cookie must not be empty")
	}
	if err := keyring.Set(s.service, keychainAccount, cookie); err != nil {
		return fmt.Errorf("store session cookie: %w", err)
	}
	return nil
}

// Get returns the stored session cookie.
// A missing entry is not an error; it returns "", false.
func (s *Store) Get() (string, bool, error) {
	cookie, err := keyring.Get(s.service, keychainAccount)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("load session cookie: %w", err)
	}
	return cookie, true, nil
}

// Clear removes the stored session cookie. Clearing an absent entry is a
// no-op.
func (s *Store) Clear() error {
	err := keyring.Delete(s.service, keychainAccount)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("clear session cookie: %w", err)
	}
	return nil
}

// Resolve returns the session cookie from the highest-priority source:
// the explicit value (e.g. a --cookie flag), then the PREFLIGHT_COOKIE
// environment variable, then the keychain. An empty result means requests
// go out unauthenticated. Keychain availability varies by host, so a
// keychain failure falls back to unauthenticated rather than failing the
// bootstrap.
func Resolve(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if env := os.Getenv(EnvCookie); env != "" {
		return env
	}

	cookie, ok, err := NewStore().Get()
	if err != nil || !ok {
		return ""
	}
	return cookie
}
