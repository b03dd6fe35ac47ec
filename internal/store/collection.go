// Raceday - Marathon Event Operations Console
// Copyright 2026 K. Moyo (kmoyo)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kmoyo/raceday

package store

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/time/rate"

	"github.com/kmoyo/raceday/internal/logging"
	"github.com/kmoyo/raceday/internal/metrics"
)

// Collection holds the current page of a filtered collection and applies
// incremental patches. Safe for concurrent use; all mutation happens
// under a single mutex and listeners are notified outside it.
type Collection[E Entity, P Patch[E]] struct {
	name  string
	fetch FetchFunc[E]

	mu     sync.Mutex
	items  []E
	total  int
	query  Query
	err    error
	loaded bool

	// token is the latest issued load token. A completed load whose
	// token no longer matches is discarded wholesale.
	token uint64

	// refetch limits background reconciliation fetches so a burst of
	// off-page events cannot storm the API.
	refetch    *rate.Limiter
	refetching bool
	bg         sync.WaitGroup

	subMu     sync.Mutex
	nextSub   uint64
	listeners map[uint64]func()
}

// NewCollection creates a collection store. name labels metrics and logs;
// refetchLimit caps background reconciliation fetches (nil means no
// background refetching, patches that miss the page are counted and
// dropped).
func NewCollection[E Entity, P Patch[E]](name string, fetch FetchFunc[E], refetchLimit *rate.Limiter) *Collection[E, P] {
	return &Collection[E, P]{
		name:      name,
		fetch:     fetch,
		refetch:   refetchLimit,
		listeners: make(map[uint64]func()),
	}
}

// Load fetches the given query and replaces the store's contents
// wholesale on success. On failure the store is cleared to empty, total
// is reset to zero, and the error is recorded and retrievable via Err.
// A response superseded by a newer Load is discarded entirely and
// ErrStale is returned.
func (c *Collection[E, P]) Load(ctx context.Context, q Query) error {
	c.mu.Lock()
	c.token++
	token := c.token
	c.query = q
	c.mu.Unlock()

	items, total, err := c.fetch(ctx, q)

	c.mu.Lock()
	if token != c.token {
		c.mu.Unlock()
		metrics.StoreLoadsTotal.WithLabelValues(c.name, "stale").Inc()
		logging.Debug().Str("store", c.name).Msg("discarding superseded load")
		return ErrStale
	}

	c.loaded = true
	if err != nil {
		// Fail-empty: stale data inconsistent with the requested filter
		// must not stay visible.
		c.items = nil
		c.total = 0
		c.err = err
	} else {
		c.items = items
		c.total = total
		c.err = nil
	}
	c.mu.Unlock()

	if err != nil {
		metrics.StoreLoadsTotal.WithLabelValues(c.name, "error").Inc()
	} else {
		metrics.StoreLoadsTotal.WithLabelValues(c.name, "success").Inc()
	}

	c.notify()
	return err
}

// Patch merges the patch into the entity with the given key if it is on
// the current page. If the entity is absent, one background refetch of
// the current query is scheduled (rate-limited) so the newly-relevant
// entity has a chance to appear. Returns true if the patch was applied.
func (c *Collection[E, P]) Patch(id string, p P) bool {
	return c.PatchMatching(func(e E) bool { return e.Key() == id }, p)
}

// PatchMatching is Patch with a caller-supplied match predicate, used
// where the wire event carries a fallback matching key (runner number).
// The patch is applied to every matching entity on the page.
func (c *Collection[E, P]) PatchMatching(match func(E) bool, p P) bool {
	c.mu.Lock()
	applied := false
	for i := range c.items {
		if match(c.items[i]) {
			c.items[i] = p.Apply(c.items[i])
			applied = true
		}
	}
	c.mu.Unlock()

	if applied {
		metrics.StorePatchesTotal.WithLabelValues(c.name, "applied").Inc()
		c.notify()
		return true
	}

	metrics.StorePatchesTotal.WithLabelValues(c.name, "miss").Inc()
	c.scheduleRefetch()
	return false
}

// scheduleRefetch starts one background reload of the current query.
// Single-flight: a refetch already in progress absorbs further misses.
func (c *Collection[E, P]) scheduleRefetch() {
	if c.refetch == nil {
		return
	}

	c.mu.Lock()
	if !c.loaded || c.refetching || !c.refetch.Allow() {
		c.mu.Unlock()
		return
	}
	c.refetching = true
	q := c.query
	c.mu.Unlock()

	metrics.StoreRefetchesTotal.WithLabelValues(c.name).Inc()
	c.bg.Add(1)
	go func() {
		defer c.bg.Done()
		defer func() {
			c.mu.Lock()
			c.refetching = false
			c.mu.Unlock()
		}()
		if err := c.Load(context.Background(), q); err != nil && err != ErrStale {
			logging.Warn().Err(err).Str("store", c.name).Msg("reconciliation refetch failed")
		}
	}()
}

// Wait blocks until in-flight background refetches have completed.
func (c *Collection[E, P]) Wait() {
	c.bg.Wait()
}

// Items returns a copy of the current page.
func (c *Collection[E, P]) Items() []E {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]E, len(c.items))
	copy(out, c.items)
	return out
}

// Get returns the entity with the given key from the current page.
func (c *Collection[E, P]) Get(id string) (E, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.items {
		if c.items[i].Key() == id {
			return c.items[i], true
		}
	}
	var zero E
	return zero, false
}

// Len returns the number of entities on the current page.
func (c *Collection[E, P]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Total returns the server-reported count across all pages.
func (c *Collection[E, P]) Total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total
}

// TotalPages derives the page count: ceil(total/pageSize).
// An unpaginated query (PageSize 0) is a single page.
func (c *Collection[E, P]) TotalPages() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.query.PageSize <= 0 {
		return 1
	}
	return (c.total + c.query.PageSize - 1) / c.query.PageSize
}

// Query returns the query the current page was loaded with.
func (c *Collection[E, P]) Query() Query {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.query
}

// Err returns the error recorded by the most recent load, if any.
func (c *Collection[E, P]) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Subscribe registers a change listener, called after every state change
// (load, failed load, applied patch). Returns an unsubscribe token.
func (c *Collection[E, P]) Subscribe(fn func()) uint64 {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	c.nextSub++
	c.listeners[c.nextSub] = fn
	return c.nextSub
}

// Unsubscribe removes the listener registered under the token.
func (c *Collection[E, P]) Unsubscribe(token uint64) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	delete(c.listeners, token)
}

// notify invokes listeners in token order, outside the state lock.
func (c *Collection[E, P]) notify() {
	c.subMu.Lock()
	tokens := make([]uint64, 0, len(c.listeners))
	for t := range c.listeners {
		tokens = append(tokens, t)
	}
	sort.Slice(tokens, func(i, j int) bool { return tokens[i] < tokens[j] })
	fns := make([]func(), 0, len(tokens))
	for _, t := range tokens {
		fns = append(fns, c.listeners[t])
	}
	c.subMu.Unlock()

	for _, fn := range fns {
		fn()
	}
}
