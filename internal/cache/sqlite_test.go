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

package cache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(filepath.Join(t.TempDir(), "preflight.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return store
}

func TestOpen_EmptyPath(t *testing.T) {
	_, err := Open("")
	require.Error(t, err)
}

func TestStore_PutGet(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "acme", "organization", []byte(`{"slug":"acme"}`)))

	body, ok, err := store.Get(ctx, "acme", "organization", 0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"slug":"acme"}`, string(body))
}

func TestStore_GetMiss(t *testing.T) {
	store := openTestStore(t)

	_, ok, err := store.Get(context.Background(), "acme", "teams", 0)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_PutOverwrites(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "acme", "projects", []byte(`[1]`)))
	require.NoError(t, store.Put(ctx, "acme", "projects", []byte(`[1,2]`)))

	body, ok, err := store.Get(ctx, "acme", "projects", 0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `[1,2]`, string(body))
}

func TestStore_MaxAge(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "acme", "teams", []byte(`[]`)))

	// Fresh enough for a generous window.
	_, ok, err := store.Get(ctx, "acme", "teams", time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)

	// Backdate the row, then a tight window must miss.
	_, err = store.db.ExecContext(ctx,
		`UPDATE snapshots SET fetched_at = ? WHERE org_slug = 'acme' AND key = 'teams'`,
		time.Now().Add(-2*time.Hour).Unix())
	require.NoError(t, err)

	_, ok, err = store.Get(ctx, "acme", "teams", time.Hour)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_Purge(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "acme", "organization", []byte(`{}`)))
	require.NoError(t, store.Put(ctx, "umbrella", "organization", []byte(`{}`)))

	_, err := store.db.ExecContext(ctx,
		`UPDATE snapshots SET fetched_at = ? WHERE org_slug = 'umbrella'`,
		time.Now().Add(-48*time.Hour).Unix())
	require.NoError(t, err)

	removed, err := store.Purge(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	_, ok, err := store.Get(ctx, "acme", "organization", 0)
	require.NoError(t, err)
	assert.True(t, ok)
}
