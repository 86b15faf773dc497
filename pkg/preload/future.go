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
	"net/http"
	"sync"
)

// Result is the resolved value of a preload request: the JSON body, the HTTP
// status text, and the raw transport response. The response body has already
// been drained and closed; Response is kept for header and status inspection.
type Result struct {
	Body       json.RawMessage
	StatusText string
	Response   *http.Response
}

// Future is a settle-once promise for one preload request.
//
// A Future settles exactly once, with either a Result or an error. It may be
// awaited by any number of consumers; each sees the same settled value.
type Future struct {
	done chan struct{}
	once sync.Once

	result Result
	err    error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// resolve settles the future with a result. Later settles are no-ops.
func (f *Future) resolve(res Result) {
	f.once.Do(func() {
		f.result = res
		close(f.done)
	})
}

// reject settles the future with an error. Later settles are no-ops.
func (f *Future) reject(err error) {
	f.once.Do(func() {
		f.err = err
		close(f.done)
	})
}

// Done returns a channel closed when the future settles.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the future settles or ctx is done. The returned error is
// the future's rejection, or ctx.Err() if the wait itself was abandoned;
// abandoning a wait does not cancel the underlying request.
func (f *Future) Wait(ctx context.Context) (Result, error) {
	select {
	case <-f.done:
		return f.result, f.err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// TryGet returns the settled value without blocking.
// ok is false while the future is still in flight.
func (f *Future) TryGet() (res Result, err error, ok bool) {
	select {
	case <-f.done:
		return f.result, f.err, true
	default:
		return Result{}, nil, false
	}
}
