// Package preload implements the bootstrap data-preload mechanism: as early
// as possible in a page's life, issue a fixed set of credentialed,
// trace-correlated API requests for the resolved tenant and publish the
// in-flight futures in a registry the application shell can attach to later,
// instead of re-issuing the same fetches itself.
//
// The mechanism is a latency optimization, not a correctness dependency.
// Nothing in this package blocks the caller: requests run concurrently, every
// failure stays local to its own future, and the top-level Bootstrap entry
// point swallows setup failures so the page always proceeds, with or without
// preloaded data.
//
// Typical use:
//
//	reg, _ := preload.Bootstrap(ctx, doc, preload.Options{Origin: origin})
//	if f, ok := reg.Get(preload.KeyOrganization); ok {
//	    res, err := f.Wait(ctx)
//	    ...
//	}
package preload
