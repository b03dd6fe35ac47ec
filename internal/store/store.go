// Raceday - Marathon Event Operations Console
// Copyright 2026 K. Moyo (kmoyo)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kmoyo/raceday

// Package store provides the in-memory live mirrors of the marathon API's
// collections: a paginated, filtered Collection per entity kind plus an
// optional single-entity Detail projection.
//
// Both are standalone and framework-agnostic: callers subscribe for
// change notification with Subscribe and read state through snapshot
// accessors. A Collection is refreshed wholesale by Load and patched
// incrementally by the reconciliation policy; a patch that misses the
// loaded page triggers one rate-limited background refetch of the
// current query so the entity has a chance to appear.
//
// Every Load carries a monotonically increasing request token. A load
// whose token has been superseded by a newer Load is discarded in its
// entirety, so a slow page-2 response can never overwrite the page-3
// state the user has already navigated to.
package store

import (
	"context"
	"errors"
	"net/url"
	"strconv"
)

// ErrStale is returned by Load when its response was superseded by a
// newer Load and therefore discarded without touching store state.
var ErrStale = errors.New("store: load superseded by newer request")

// Entity is anything the stores can hold, identified by a stable key.
type Entity interface {
	Key() string
}

// Patch is a partial update applicable to an entity. Apply merges into a
// copy and returns it; nil/absent fields leave the entity untouched.
type Patch[E Entity] interface {
	Apply(E) E
}

// Query describes one page of a filtered collection.
type Query struct {
	// Page is 1-based. Pages beyond the last valid page are not clamped;
	// the server decides what an out-of-range page returns.
	Page int

	// PageSize is the page length. Zero means the collection endpoint is
	// unpaginated and returns everything matching the filters.
	PageSize int

	// Filters holds query-parameter filters (status, category, search).
	// Empty values are omitted from the request.
	Filters map[string]string
}

// Values renders the query as URL query parameters.
func (q Query) Values() url.Values {
	v := url.Values{}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.PageSize > 0 {
		v.Set("limit", strconv.Itoa(q.PageSize))
	}
	for k, val := range q.Filters {
		if val != "" {
			v.Set(k, val)
		}
	}
	return v
}

// WithPage returns a copy of the query on a different page.
func (q Query) WithPage(page int) Query {
	q.Page = page
	return q
}

// FetchFunc retrieves one page of a collection from the remote API.
// total is the server-reported count across all pages.
type FetchFunc[E Entity] func(ctx context.Context, q Query) (items []E, total int, err error)
