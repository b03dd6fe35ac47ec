// Raceday - Marathon Event Operations Console
// Copyright 2026 K. Moyo (kmoyo)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kmoyo/raceday

package store

import (
	"sort"
	"sync"
)

// Detail tracks at most one currently-open entity, independently
// patchable from the Collection holding the summary copy. The projection
// always holds its own copy, never an alias into a Collection page.
type Detail[E Entity, P Patch[E]] struct {
	mu     sync.Mutex
	entity *E

	subMu     sync.Mutex
	nextSub   uint64
	listeners map[uint64]func()
}

// NewDetail creates an empty detail projection.
func NewDetail[E Entity, P Patch[E]]() *Detail[E, P] {
	return &Detail[E, P]{listeners: make(map[uint64]func())}
}

// Open replaces the projection with the given entity, typically the
// result of a dedicated single-entity fetch.
func (d *Detail[E, P]) Open(e E) {
	d.mu.Lock()
	copied := e
	d.entity = &copied
	d.mu.Unlock()
	d.notify()
}

// Patch applies the patch only if the projection is currently open on
// that exact key; otherwise it is a no-op. Returns true if applied.
func (d *Detail[E, P]) Patch(id string, p P) bool {
	d.mu.Lock()
	if d.entity == nil || (*d.entity).Key() != id {
		d.mu.Unlock()
		return false
	}
	updated := p.Apply(*d.entity)
	d.entity = &updated
	d.mu.Unlock()
	d.notify()
	return true
}

// Close clears the projection. Closing never affects any Collection.
func (d *Detail[E, P]) Close() {
	d.mu.Lock()
	cleared := d.entity != nil
	d.entity = nil
	d.mu.Unlock()
	if cleared {
		d.notify()
	}
}

// Current returns a copy of the open entity, if any.
func (d *Detail[E, P]) Current() (E, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.entity == nil {
		var zero E
		return zero, false
	}
	return *d.entity, true
}

// IsOpen reports whether the projection is open on the given key.
func (d *Detail[E, P]) IsOpen(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.entity != nil && (*d.entity).Key() == id
}

// Subscribe registers a change listener. Returns an unsubscribe token.
func (d *Detail[E, P]) Subscribe(fn func()) uint64 {
	d.subMu.Lock()
	defer d.subMu.Unlock()
	d.nextSub++
	d.listeners[d.nextSub] = fn
	return d.nextSub
}

// Unsubscribe removes the listener registered under the token.
func (d *Detail[E, P]) Unsubscribe(token uint64) {
	d.subMu.Lock()
	defer d.subMu.Unlock()
	delete(d.listeners, token)
}

func (d *Detail[E, P]) notify() {
	d.subMu.Lock()
	tokens := make([]uint64, 0, len(d.listeners))
	for t := range d.listeners {
		tokens = append(tokens, t)
	}
	sort.Slice(tokens, func(i, j int) bool { return tokens[i] < tokens[j] })
	fns := make([]func(), 0, len(tokens))
	for _, t := range tokens {
		fns = append(fns, d.listeners[t])
	}
	d.subMu.Unlock()

	for _, fn := range fns {
		fn()
	}
}
